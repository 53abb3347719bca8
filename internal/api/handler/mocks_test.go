package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-hotel-reservation/internal/api"
	"github.com/sanosuguru/go-hotel-reservation/internal/application"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/promotion"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/refund"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
)

var ict = time.FixedZone("ICT", 7*60*60)

type mocks struct {
	booking     *MockBookingService
	inventory   *MockInventoryService
	reservation *MockReservationService
	payment     *MockPaymentService
	refund      *MockRefundService
	promotion   *MockPromotionService
	hotel       *MockHotelService
}

// newTestEcho は本番と同じバリデーターとエラーハンドラーを設定したEchoを返す
func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	return e
}

// newTestRouter は全ルートをモックサービスで登録したEchoを返す
func newTestRouter() (*echo.Echo, *mocks) {
	m := &mocks{
		booking:     new(MockBookingService),
		inventory:   new(MockInventoryService),
		reservation: new(MockReservationService),
		payment:     new(MockPaymentService),
		refund:      new(MockRefundService),
		promotion:   new(MockPromotionService),
		hotel:       new(MockHotelService),
	}
	e := newTestEcho()
	RegisterRoutes(e, &Handlers{
		Health:       NewHealthHandler(),
		Booking:      NewBookingHandler(m.booking, ict),
		Availability: NewAvailabilityHandler(m.inventory, ict),
		Reservation:  NewReservationHandler(m.reservation),
		Payment:      NewPaymentHandler(m.payment),
		Refund:       NewRefundHandler(m.refund),
		Promotion:    NewPromotionHandler(m.promotion),
		Hotel:        NewHotelHandler(m.hotel),
	})
	return e, m
}

func (m *mocks) assertExpectations(t mock.TestingT) {
	m.booking.AssertExpectations(t)
	m.inventory.AssertExpectations(t)
	m.reservation.AssertExpectations(t)
	m.payment.AssertExpectations(t)
	m.refund.AssertExpectations(t)
	m.promotion.AssertExpectations(t)
	m.hotel.AssertExpectations(t)
}

func doRequest(e *echo.Echo, method, path, body, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// MockBookingService はBookingServiceInterfaceのモック
type MockBookingService struct{ mock.Mock }

func (m *MockBookingService) CreateBooking(ctx context.Context, input application.CreateBookingInput) (*reservation.Reservation, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockBookingService) CreateOfflineBooking(ctx context.Context, ownerID string, input application.CreateBookingInput) (*reservation.Reservation, error) {
	args := m.Called(ctx, ownerID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

// MockInventoryService はInventoryServiceInterfaceのモック
type MockInventoryService struct{ mock.Mock }

func (m *MockInventoryService) AvailableUnits(ctx context.Context, roomID string, checkIn, checkOut time.Time) (*application.Availability, error) {
	args := m.Called(ctx, roomID, checkIn, checkOut)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.Availability), args.Error(1)
}

// MockReservationService はReservationServiceInterfaceのモック
type MockReservationService struct{ mock.Mock }

func (m *MockReservationService) one(args mock.Arguments) (*reservation.Reservation, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationService) list(args mock.Arguments) ([]*reservation.Reservation, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationService) GetReservation(ctx context.Context, requesterID, id string) (*reservation.Reservation, error) {
	return m.one(m.Called(ctx, requesterID, id))
}

func (m *MockReservationService) GetUserReservations(ctx context.Context, userID string, limit, offset int) ([]*reservation.Reservation, error) {
	return m.list(m.Called(ctx, userID, limit, offset))
}

func (m *MockReservationService) GetHotelReservations(ctx context.Context, ownerID, hotelID string, limit, offset int) ([]*reservation.Reservation, error) {
	return m.list(m.Called(ctx, ownerID, hotelID, limit, offset))
}

func (m *MockReservationService) CancelReservation(ctx context.Context, requesterID, id string) (*reservation.Reservation, error) {
	return m.one(m.Called(ctx, requesterID, id))
}

func (m *MockReservationService) AcceptReservation(ctx context.Context, ownerID, id string) (*reservation.Reservation, error) {
	return m.one(m.Called(ctx, ownerID, id))
}

func (m *MockReservationService) ConfirmReservation(ctx context.Context, ownerID, id string) (*reservation.Reservation, error) {
	return m.one(m.Called(ctx, ownerID, id))
}

func (m *MockReservationService) CompleteReservation(ctx context.Context, ownerID, id string) (*reservation.Reservation, error) {
	return m.one(m.Called(ctx, ownerID, id))
}

// MockPaymentService はPaymentServiceInterfaceのモック
type MockPaymentService struct{ mock.Mock }

func (m *MockPaymentService) CreateCheckout(ctx context.Context, userID, reservationID string) (*payment.Checkout, error) {
	args := m.Called(ctx, userID, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Checkout), args.Error(1)
}

func (m *MockPaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*application.WebhookResult, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.WebhookResult), args.Error(1)
}

// MockRefundService はRefundServiceInterfaceのモック
type MockRefundService struct{ mock.Mock }

func (m *MockRefundService) one(args mock.Arguments) (*refund.RefundRequest, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.RefundRequest), args.Error(1)
}

func (m *MockRefundService) CreateRefundRequest(ctx context.Context, input application.CreateRefundInput) (*refund.RefundRequest, error) {
	return m.one(m.Called(ctx, input))
}

func (m *MockRefundService) GetUserRefunds(ctx context.Context, userID string, limit, offset int) ([]*refund.RefundRequest, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*refund.RefundRequest), args.Error(1)
}

func (m *MockRefundService) SubmitPayeeInfo(ctx context.Context, userID, id string, payee refund.PayeeInfo) (*refund.RefundRequest, error) {
	return m.one(m.Called(ctx, userID, id, payee))
}

func (m *MockRefundService) ApproveRefund(ctx context.Context, ownerID, id string) (*refund.RefundRequest, error) {
	return m.one(m.Called(ctx, ownerID, id))
}

func (m *MockRefundService) RejectRefund(ctx context.Context, ownerID, id, reason string) (*refund.RefundRequest, error) {
	return m.one(m.Called(ctx, ownerID, id, reason))
}

// MockPromotionService はPromotionServiceInterfaceのモック
type MockPromotionService struct{ mock.Mock }

func (m *MockPromotionService) CreatePromotion(ctx context.Context, input application.CreatePromotionInput) (*promotion.Promotion, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*promotion.Promotion), args.Error(1)
}

func (m *MockPromotionService) GetPromotion(ctx context.Context, id string) (*promotion.Promotion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*promotion.Promotion), args.Error(1)
}

func (m *MockPromotionService) GetPromotionByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*promotion.Promotion), args.Error(1)
}

func (m *MockPromotionService) ListActivePromotions(ctx context.Context, limit, offset int) ([]*promotion.Promotion, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*promotion.Promotion), args.Error(1)
}

func (m *MockPromotionService) Quote(ctx context.Context, code string, amount int, userID string) (*application.Quote, error) {
	args := m.Called(ctx, code, amount, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.Quote), args.Error(1)
}

// MockHotelService はHotelServiceInterfaceのモック
type MockHotelService struct{ mock.Mock }

func (m *MockHotelService) hotel(args mock.Arguments) (*hotel.Hotel, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hotel.Hotel), args.Error(1)
}

func (m *MockHotelService) CreateHotel(ctx context.Context, input application.CreateHotelInput) (*hotel.Hotel, error) {
	return m.hotel(m.Called(ctx, input))
}

func (m *MockHotelService) ApproveHotel(ctx context.Context, id string) (*hotel.Hotel, error) {
	return m.hotel(m.Called(ctx, id))
}

func (m *MockHotelService) SetHotelStatus(ctx context.Context, ownerID, id string, status hotel.ActiveStatus) (*hotel.Hotel, error) {
	return m.hotel(m.Called(ctx, ownerID, id, status))
}

func (m *MockHotelService) CreateRoom(ctx context.Context, input application.CreateRoomInput) (*hotel.Room, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hotel.Room), args.Error(1)
}

func (m *MockHotelService) SetRoomStatus(ctx context.Context, ownerID, roomID string, status hotel.ActiveStatus) (*hotel.Room, error) {
	args := m.Called(ctx, ownerID, roomID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hotel.Room), args.Error(1)
}

func (m *MockHotelService) CreateService(ctx context.Context, input application.CreateServiceInput) (*hotel.Service, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hotel.Service), args.Error(1)
}

func (m *MockHotelService) SetServiceStatus(ctx context.Context, ownerID, serviceID string, status hotel.ActiveStatus) (*hotel.Service, error) {
	args := m.Called(ctx, ownerID, serviceID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hotel.Service), args.Error(1)
}

func doWebhook(e *echo.Echo, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(HeaderWebhookSignature, signature)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
