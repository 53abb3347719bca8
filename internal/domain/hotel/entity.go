package hotel

import (
	"strings"
	"time"
)

// AdminStatus は管理者による審査状態
type AdminStatus string

const (
	AdminStatusPending  AdminStatus = "PENDING"
	AdminStatusApproved AdminStatus = "APPROVED"
)

// ActiveStatus はオーナーが切り替える公開状態
type ActiveStatus string

const (
	StatusActive    ActiveStatus = "ACTIVE"
	StatusNonActive ActiveStatus = "NONACTIVE"
)

// Valid は既知の状態かを返す
func (s ActiveStatus) Valid() bool {
	return s == StatusActive || s == StatusNonActive
}

// Hotel はホテルエンティティを表す
type Hotel struct {
	ID          string
	OwnerID     string
	Name        string
	Address     string
	AdminStatus AdminStatus
	Status      ActiveStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int
}

// NewHotel は審査待ちのホテルを作成する
func NewHotel(ownerID, name, address string) *Hotel {
	now := time.Now()
	return &Hotel{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		Address:     strings.TrimSpace(address),
		AdminStatus: AdminStatusPending,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
}

// Validate はホテルの検証を行う
func (h *Hotel) Validate() error {
	if h.OwnerID == "" {
		return ErrOwnerIDRequired
	}
	if h.Name == "" {
		return ErrHotelNameRequired
	}
	return nil
}

// IsBookable は管理者承認済みかつオーナーが公開中の場合にtrueを返す
func (h *Hotel) IsBookable() bool {
	return h.AdminStatus == AdminStatusApproved && h.Status == StatusActive
}

// IsOwnedBy は指定ユーザーがオーナーかを返す
func (h *Hotel) IsOwnedBy(userID string) bool {
	return userID != "" && h.OwnerID == userID
}

// Approve はホテルを承認する
func (h *Hotel) Approve() error {
	if h.AdminStatus == AdminStatusApproved {
		return ErrHotelAlreadyApproved
	}
	h.AdminStatus = AdminStatusApproved
	h.UpdatedAt = time.Now()
	return nil
}

// SetStatus は公開状態を変更する
func (h *Hotel) SetStatus(s ActiveStatus) error {
	if !s.Valid() {
		return ErrInvalidStatus
	}
	h.Status = s
	h.UpdatedAt = time.Now()
	return nil
}

// Room は部屋タイプを表す。物理的な部屋は個別に管理せず TotalQuantity で数える
type Room struct {
	ID            string
	HotelID       string
	Name          string
	Price         int
	TotalQuantity int
	Status        ActiveStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int
}

// NewRoom は新しい部屋タイプを作成する
func NewRoom(hotelID, name string, price, totalQuantity int) *Room {
	now := time.Now()
	return &Room{
		HotelID:       hotelID,
		Name:          strings.TrimSpace(name),
		Price:         price,
		TotalQuantity: totalQuantity,
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
}

// Validate は部屋タイプの検証を行う
func (r *Room) Validate() error {
	if r.HotelID == "" {
		return ErrHotelIDRequired
	}
	if r.Name == "" {
		return ErrRoomNameRequired
	}
	if r.Price < 0 {
		return ErrInvalidPrice
	}
	if r.TotalQuantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// IsActive は部屋タイプが予約受付中かを返す
func (r *Room) IsActive() bool {
	return r.Status == StatusActive
}

// SetStatus は部屋タイプの状態を変更する
func (r *Room) SetStatus(s ActiveStatus) error {
	if !s.Valid() {
		return ErrInvalidStatus
	}
	r.Status = s
	r.UpdatedAt = time.Now()
	return nil
}

// Service はホテルの付帯サービス（朝食、送迎など）
type Service struct {
	ID        string
	HotelID   string
	Name      string
	Price     int
	Status    ActiveStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

// NewService は新しい付帯サービスを作成する
func NewService(hotelID, name string, price int) *Service {
	now := time.Now()
	return &Service{
		HotelID:   hotelID,
		Name:      strings.TrimSpace(name),
		Price:     price,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Validate は付帯サービスの検証を行う
func (s *Service) Validate() error {
	if s.HotelID == "" {
		return ErrHotelIDRequired
	}
	if s.Name == "" {
		return ErrServiceNameRequired
	}
	if s.Price < 0 {
		return ErrInvalidPrice
	}
	return nil
}

func (s *Service) IsActive() bool {
	return s.Status == StatusActive
}

// SetStatus は付帯サービスの状態を変更する
func (s *Service) SetStatus(st ActiveStatus) error {
	if !st.Valid() {
		return ErrInvalidStatus
	}
	s.Status = st
	s.UpdatedAt = time.Now()
	return nil
}
