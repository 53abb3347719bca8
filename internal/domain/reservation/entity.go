package reservation

import (
	"sort"
	"time"
)

// RoomLine は部屋タイプごとの予約数量
type RoomLine struct {
	RoomID    string
	Quantity  int
	UnitPrice int
}

// ServiceLine は付帯サービスの予約内容。料金は宿泊数ではなく利用日数で計算する
type ServiceLine struct {
	ServiceID string
	Quantity  int
	Dates     []time.Time
	UnitPrice int
}

// Reservation は予約エンティティを表す
type Reservation struct {
	ID                string
	UserID            string
	HotelID           string
	Rooms             []RoomLine
	Services          []ServiceLine
	CheckInDate       time.Time
	CheckOutDate      time.Time
	Status            Status
	TotalPrice        int
	PromotionID       string
	PromotionDiscount int
	FinalPrice        int
	PaymentHandle     string
	PaymentReference  string
	CancelledAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int
}

// NewReservation は未払い状態の予約を作成する
func NewReservation(userID, hotelID string, checkIn, checkOut time.Time, rooms []RoomLine, services []ServiceLine, now time.Time) *Reservation {
	return &Reservation{
		UserID:       userID,
		HotelID:      hotelID,
		Rooms:        rooms,
		Services:     services,
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
		Status:       StatusNotPaid,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
}

// NewOfflineReservation はオーナーが登録する決済済みの予約を作成する
func NewOfflineReservation(userID, hotelID string, checkIn, checkOut time.Time, rooms []RoomLine, services []ServiceLine, now time.Time) *Reservation {
	r := NewReservation(userID, hotelID, checkIn, checkOut, rooms, services, now)
	r.Status = StatusOffline
	return r
}

// Validate は予約の検証を行う
func (r *Reservation) Validate() error {
	if r.UserID == "" {
		return ErrUserIDRequired
	}
	if r.HotelID == "" {
		return ErrHotelIDRequired
	}
	if !r.CheckInDate.Before(r.CheckOutDate) {
		return ErrInvalidDateRange
	}
	if len(r.Rooms) == 0 {
		return ErrRoomsRequired
	}
	seen := make(map[string]struct{}, len(r.Rooms))
	for _, l := range r.Rooms {
		if l.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if _, ok := seen[l.RoomID]; ok {
			return ErrDuplicateRoom
		}
		seen[l.RoomID] = struct{}{}
	}
	for _, s := range r.Services {
		if s.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if len(s.Dates) == 0 {
			return ErrServiceDatesRequired
		}
		for _, d := range s.Dates {
			if d.Before(r.CheckInDate) || d.After(r.CheckOutDate) {
				return ErrServiceDateOutOfStay
			}
		}
	}
	return nil
}

// Nights は宿泊数を返す
func (r *Reservation) Nights() int {
	return len(Nights(r.CheckInDate, r.CheckOutDate))
}

// RoomIDs は重複を除きソートした部屋タイプIDを返す
func (r *Reservation) RoomIDs() []string {
	seen := make(map[string]struct{}, len(r.Rooms))
	ids := make([]string, 0, len(r.Rooms))
	for _, l := range r.Rooms {
		if _, ok := seen[l.RoomID]; ok {
			continue
		}
		seen[l.RoomID] = struct{}{}
		ids = append(ids, l.RoomID)
	}
	sort.Strings(ids)
	return ids
}

// ServiceIDs は付帯サービスIDを返す
func (r *Reservation) ServiceIDs() []string {
	ids := make([]string, 0, len(r.Services))
	for _, s := range r.Services {
		ids = append(ids, s.ServiceID)
	}
	return ids
}

// QuantityFor は指定部屋タイプの予約数量を返す
func (r *Reservation) QuantityFor(roomID string) int {
	total := 0
	for _, l := range r.Rooms {
		if l.RoomID == roomID {
			total += l.Quantity
		}
	}
	return total
}

// HoldsCapacity は在庫を占有しているかを返す
func (r *Reservation) HoldsCapacity() bool {
	return r.Status.HoldsCapacity()
}

// Overlaps は予約期間が [from, to) と重なるかを返す
func (r *Reservation) Overlaps(from, to time.Time) bool {
	return Overlaps(r.CheckInDate, r.CheckOutDate, from, to)
}

// IsOwnedBy は予約者本人かを返す
func (r *Reservation) IsOwnedBy(userID string) bool {
	return userID != "" && r.UserID == userID
}

// Subtotal は単価が設定済みの明細から割引前の合計を計算する
func (r *Reservation) Subtotal() int {
	nights := r.Nights()
	total := 0
	for _, l := range r.Rooms {
		total += l.UnitPrice * l.Quantity * nights
	}
	for _, s := range r.Services {
		total += s.UnitPrice * s.Quantity * len(s.Dates)
	}
	return total
}

// ApplyPricing は料金と適用プロモーションを設定する
func (r *Reservation) ApplyPricing(total int, promotionID string, discount int) {
	if discount > total {
		discount = total
	}
	if discount < 0 {
		discount = 0
	}
	r.TotalPrice = total
	r.PromotionID = promotionID
	r.PromotionDiscount = discount
	r.FinalPrice = total - discount
}

// Revise は未払い予約の内容を差し替える
func (r *Reservation) Revise(hotelID string, checkIn, checkOut time.Time, rooms []RoomLine, services []ServiceLine, now time.Time) error {
	if r.Status != StatusNotPaid {
		return ErrReservationNotUnpaid
	}
	r.HotelID = hotelID
	r.CheckInDate = checkIn
	r.CheckOutDate = checkOut
	r.Rooms = rooms
	r.Services = services
	// 金額が変わり得るためチェックアウトは作り直す
	r.PaymentHandle = ""
	r.UpdatedAt = now
	return nil
}

// AttachPaymentHandle は決済ゲートウェイのチェックアウトIDを記録する
func (r *Reservation) AttachPaymentHandle(handle string, now time.Time) error {
	if r.Status != StatusNotPaid {
		return ErrReservationNotUnpaid
	}
	r.PaymentHandle = handle
	r.UpdatedAt = now
	return nil
}

func (r *Reservation) transitionTo(to Status, now time.Time) error {
	if !CanTransition(r.Status, to) {
		return &TransitionError{From: r.Status, To: to}
	}
	r.Status = to
	r.UpdatedAt = now
	return nil
}

// Cancel は予約をキャンセルする。終端ステータスからは遷移できない
func (r *Reservation) Cancel(now time.Time) error {
	if err := r.transitionTo(StatusCancelled, now); err != nil {
		return err
	}
	r.CancelledAt = &now
	return nil
}

// Accept は未払い予約を手動で受け付ける（NOT_PAID → PENDING）
func (r *Reservation) Accept(now time.Time) error {
	if r.Status != StatusNotPaid {
		return &TransitionError{From: r.Status, To: StatusPending}
	}
	return r.transitionTo(StatusPending, now)
}

// MarkPaid は決済完了を記録する（NOT_PAID|PENDING → BOOKED）
func (r *Reservation) MarkPaid(paymentRef string, now time.Time) error {
	if paymentRef == "" {
		return ErrPaymentRefRequired
	}
	if err := r.transitionTo(StatusBooked, now); err != nil {
		return err
	}
	r.PaymentReference = paymentRef
	return nil
}

// Confirm はオーナーが受付済み予約を確定する（PENDING → BOOKED）
func (r *Reservation) Confirm(now time.Time) error {
	if r.Status != StatusPending {
		return &TransitionError{From: r.Status, To: StatusBooked}
	}
	return r.transitionTo(StatusBooked, now)
}

// CheckIn はチェックイン済みにする
func (r *Reservation) CheckIn(now time.Time) error {
	return r.transitionTo(StatusCheckedIn, now)
}

// CheckOut はチェックアウト済みにする
func (r *Reservation) CheckOut(now time.Time) error {
	return r.transitionTo(StatusCheckedOut, now)
}

// Complete は滞在を完了にする
func (r *Reservation) Complete(now time.Time) error {
	return r.transitionTo(StatusCompleted, now)
}
