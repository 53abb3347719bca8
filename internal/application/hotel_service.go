package application

import (
	"context"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
)

// HotelService はホテル・部屋タイプ・付帯サービスの管理を行う
type HotelService struct {
	hotelRepo hotel.Repository
}

func NewHotelService(hr hotel.Repository) *HotelService {
	return &HotelService{hotelRepo: hr}
}

// requireHotelOwner はホテルを取得し、userID がオーナーであることを確認する
func requireHotelOwner(ctx context.Context, repo hotel.Repository, hotelID, userID string) (*hotel.Hotel, error) {
	h, err := repo.GetHotel(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	if !h.IsOwnedBy(userID) {
		return nil, hotel.ErrNotHotelOwner
	}
	return h, nil
}

type CreateHotelInput struct {
	OwnerID string
	Name    string
	Address string
}

func (s *HotelService) CreateHotel(ctx context.Context, input CreateHotelInput) (*hotel.Hotel, error) {
	h := hotel.NewHotel(input.OwnerID, input.Name, input.Address)
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := s.hotelRepo.CreateHotel(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *HotelService) GetHotel(ctx context.Context, id string) (*hotel.Hotel, error) {
	return s.hotelRepo.GetHotel(ctx, id)
}

// ApproveHotel は管理者がホテルを承認する
func (s *HotelService) ApproveHotel(ctx context.Context, id string) (*hotel.Hotel, error) {
	h, err := s.hotelRepo.GetHotel(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := h.Approve(); err != nil {
		return nil, err
	}
	if err := s.hotelRepo.UpdateHotel(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *HotelService) SetHotelStatus(ctx context.Context, ownerID, id string, status hotel.ActiveStatus) (*hotel.Hotel, error) {
	h, err := requireHotelOwner(ctx, s.hotelRepo, id, ownerID)
	if err != nil {
		return nil, err
	}
	if err := h.SetStatus(status); err != nil {
		return nil, err
	}
	if err := s.hotelRepo.UpdateHotel(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

type CreateRoomInput struct {
	OwnerID       string
	HotelID       string
	Name          string
	Price         int
	TotalQuantity int
}

func (s *HotelService) CreateRoom(ctx context.Context, input CreateRoomInput) (*hotel.Room, error) {
	if _, err := requireHotelOwner(ctx, s.hotelRepo, input.HotelID, input.OwnerID); err != nil {
		return nil, err
	}
	room := hotel.NewRoom(input.HotelID, input.Name, input.Price, input.TotalQuantity)
	if err := room.Validate(); err != nil {
		return nil, err
	}
	if err := s.hotelRepo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *HotelService) GetRoom(ctx context.Context, id string) (*hotel.Room, error) {
	return s.hotelRepo.GetRoom(ctx, id)
}

// SetRoomStatus は部屋タイプの受付状態を切り替える。既存予約には影響しない
func (s *HotelService) SetRoomStatus(ctx context.Context, ownerID, roomID string, status hotel.ActiveStatus) (*hotel.Room, error) {
	room, err := s.hotelRepo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if _, err := requireHotelOwner(ctx, s.hotelRepo, room.HotelID, ownerID); err != nil {
		return nil, err
	}
	if err := room.SetStatus(status); err != nil {
		return nil, err
	}
	if err := s.hotelRepo.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

type CreateServiceInput struct {
	OwnerID string
	HotelID string
	Name    string
	Price   int
}

func (s *HotelService) CreateService(ctx context.Context, input CreateServiceInput) (*hotel.Service, error) {
	if _, err := requireHotelOwner(ctx, s.hotelRepo, input.HotelID, input.OwnerID); err != nil {
		return nil, err
	}
	sv := hotel.NewService(input.HotelID, input.Name, input.Price)
	if err := sv.Validate(); err != nil {
		return nil, err
	}
	if err := s.hotelRepo.CreateService(ctx, sv); err != nil {
		return nil, err
	}
	return sv, nil
}

func (s *HotelService) SetServiceStatus(ctx context.Context, ownerID, serviceID string, status hotel.ActiveStatus) (*hotel.Service, error) {
	sv, err := s.hotelRepo.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if _, err := requireHotelOwner(ctx, s.hotelRepo, sv.HotelID, ownerID); err != nil {
		return nil, err
	}
	if err := sv.SetStatus(status); err != nil {
		return nil, err
	}
	if err := s.hotelRepo.UpdateService(ctx, sv); err != nil {
		return nil, err
	}
	return sv, nil
}
