package handler

import (
	"context"
	"time"

	"github.com/sanosuguru/go-hotel-reservation/internal/application"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/promotion"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/refund"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
)

// BookingServiceInterface は予約作成サービスのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*reservation.Reservation, error)
	CreateOfflineBooking(ctx context.Context, ownerID string, input application.CreateBookingInput) (*reservation.Reservation, error)
}

// InventoryServiceInterface は空室照会サービスのインターフェース
type InventoryServiceInterface interface {
	AvailableUnits(ctx context.Context, roomID string, checkIn, checkOut time.Time) (*application.Availability, error)
}

// ReservationServiceInterface は予約ライフサイクルサービスのインターフェース
type ReservationServiceInterface interface {
	GetReservation(ctx context.Context, requesterID, id string) (*reservation.Reservation, error)
	GetUserReservations(ctx context.Context, userID string, limit, offset int) ([]*reservation.Reservation, error)
	GetHotelReservations(ctx context.Context, ownerID, hotelID string, limit, offset int) ([]*reservation.Reservation, error)
	CancelReservation(ctx context.Context, requesterID, id string) (*reservation.Reservation, error)
	AcceptReservation(ctx context.Context, ownerID, id string) (*reservation.Reservation, error)
	ConfirmReservation(ctx context.Context, ownerID, id string) (*reservation.Reservation, error)
	CompleteReservation(ctx context.Context, ownerID, id string) (*reservation.Reservation, error)
}

// PaymentServiceInterface は決済サービスのインターフェース
type PaymentServiceInterface interface {
	CreateCheckout(ctx context.Context, userID, reservationID string) (*payment.Checkout, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*application.WebhookResult, error)
}

// RefundServiceInterface は返金サービスのインターフェース
type RefundServiceInterface interface {
	CreateRefundRequest(ctx context.Context, input application.CreateRefundInput) (*refund.RefundRequest, error)
	GetUserRefunds(ctx context.Context, userID string, limit, offset int) ([]*refund.RefundRequest, error)
	SubmitPayeeInfo(ctx context.Context, userID, id string, payee refund.PayeeInfo) (*refund.RefundRequest, error)
	ApproveRefund(ctx context.Context, ownerID, id string) (*refund.RefundRequest, error)
	RejectRefund(ctx context.Context, ownerID, id, reason string) (*refund.RefundRequest, error)
}

// PromotionServiceInterface はプロモーションサービスのインターフェース
type PromotionServiceInterface interface {
	CreatePromotion(ctx context.Context, input application.CreatePromotionInput) (*promotion.Promotion, error)
	GetPromotion(ctx context.Context, id string) (*promotion.Promotion, error)
	GetPromotionByCode(ctx context.Context, code string) (*promotion.Promotion, error)
	ListActivePromotions(ctx context.Context, limit, offset int) ([]*promotion.Promotion, error)
	Quote(ctx context.Context, code string, amount int, userID string) (*application.Quote, error)
}

// HotelServiceInterface はホテル管理サービスのインターフェース
type HotelServiceInterface interface {
	CreateHotel(ctx context.Context, input application.CreateHotelInput) (*hotel.Hotel, error)
	ApproveHotel(ctx context.Context, id string) (*hotel.Hotel, error)
	SetHotelStatus(ctx context.Context, ownerID, id string, status hotel.ActiveStatus) (*hotel.Hotel, error)
	CreateRoom(ctx context.Context, input application.CreateRoomInput) (*hotel.Room, error)
	SetRoomStatus(ctx context.Context, ownerID, roomID string, status hotel.ActiveStatus) (*hotel.Room, error)
	CreateService(ctx context.Context, input application.CreateServiceInput) (*hotel.Service, error)
	SetServiceStatus(ctx context.Context, ownerID, serviceID string, status hotel.ActiveStatus) (*hotel.Service, error)
}
