package application

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/promotion"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/metrics"
)

var ict = time.FixedZone("ICT", 7*60*60)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, ict)
}

const gracePeriod = 5 * time.Minute

type testEnv struct {
	store        *memStore
	hotelRepo    *memHotelRepo
	resRepo      *memReservationRepo
	promoRepo    *memPromotionRepo
	refundRepo   *memRefundRepo
	cache        *memCache
	gateway      *MockGateway
	clock        *fakeClock
	metrics      *metrics.Metrics
	inventory    *InventoryService
	promotions   *PromotionService
	booking      *BookingService
	reservations *ReservationService
	refunds      *RefundService
	payments     *PaymentService
	hotels       *HotelService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	env := &testEnv{
		store:      store,
		hotelRepo:  &memHotelRepo{s: store},
		resRepo:    &memReservationRepo{s: store},
		promoRepo:  &memPromotionRepo{s: store},
		refundRepo: &memRefundRepo{s: store},
		cache:      newMemCache(),
		gateway:    new(MockGateway),
		clock:      &fakeClock{now: time.Date(2025, 5, 20, 10, 0, 0, 0, ict)},
		metrics:    metrics.NewWithRegistry(prometheus.NewRegistry()),
	}
	env.wire(store)
	return env
}

func (e *testEnv) wire(store *memStore) {
	now := e.clock.Now
	e.inventory = NewInventoryService(e.hotelRepo, e.resRepo, e.cache, time.Minute)
	e.promotions = NewPromotionService(e.promoRepo)
	e.promotions.now = now
	policy := reservation.SweepPolicy{GracePeriod: gracePeriod, Location: ict}
	e.booking = NewBookingService(store, e.hotelRepo, e.resRepo, e.promotions, e.inventory, NewLocalRoomLocker(), e.metrics, policy)
	e.booking.now = now
	e.reservations = NewReservationService(store, e.resRepo, e.hotelRepo, e.refundRepo, e.promotions, e.inventory, e.metrics, policy)
	e.reservations.now = now
	e.refunds = NewRefundService(store, e.refundRepo, e.resRepo, e.hotelRepo, e.gateway)
	e.refunds.now = now
	e.payments = NewPaymentService(store, e.resRepo, e.refundRepo, e.promotions, e.inventory, e.gateway, "INR", e.metrics)
	e.payments.now = now
	e.hotels = NewHotelService(e.hotelRepo)
}

// seedHotel は承認済みで公開中のホテルを作成する
func (e *testEnv) seedHotel(t *testing.T, ownerID string) *hotel.Hotel {
	t.Helper()
	ctx := context.Background()
	h, err := e.hotels.CreateHotel(ctx, CreateHotelInput{OwnerID: ownerID, Name: "サイゴンホテル", Address: "ホーチミン市1区"})
	require.NoError(t, err)
	h, err = e.hotels.ApproveHotel(ctx, h.ID)
	require.NoError(t, err)
	return h
}

func (e *testEnv) seedRoom(t *testing.T, h *hotel.Hotel, price, quantity int) *hotel.Room {
	t.Helper()
	room, err := e.hotels.CreateRoom(context.Background(), CreateRoomInput{
		OwnerID: h.OwnerID, HotelID: h.ID, Name: "デラックス", Price: price, TotalQuantity: quantity,
	})
	require.NoError(t, err)
	return room
}

func (e *testEnv) seedService(t *testing.T, h *hotel.Hotel, price int) *hotel.Service {
	t.Helper()
	sv, err := e.hotels.CreateService(context.Background(), CreateServiceInput{
		OwnerID: h.OwnerID, HotelID: h.ID, Name: "朝食", Price: price,
	})
	require.NoError(t, err)
	return sv
}

func (e *testEnv) seedPromotion(t *testing.T, code string, percent, maxPerUser int, limit *int) *promotion.Promotion {
	t.Helper()
	p, err := e.promotions.CreatePromotion(context.Background(), CreatePromotionInput{
		Code:            code,
		Name:            code + " キャンペーン",
		DiscountType:    promotion.DiscountPercentage,
		DiscountValue:   percent,
		StartDate:       date(2025, 1, 1),
		EndDate:         date(2025, 12, 31),
		UsageLimit:      limit,
		MaxUsagePerUser: maxPerUser,
		IsActive:        true,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) book(t *testing.T, userID string, h *hotel.Hotel, room *hotel.Room, qty int, in, out time.Time) *reservation.Reservation {
	t.Helper()
	res, err := e.booking.CreateBooking(context.Background(), bookingInput(userID, h, room, qty, in, out))
	require.NoError(t, err)
	return res
}

func bookingInput(userID string, h *hotel.Hotel, room *hotel.Room, qty int, in, out time.Time) CreateBookingInput {
	return CreateBookingInput{
		UserID:   userID,
		HotelID:  h.ID,
		CheckIn:  in,
		CheckOut: out,
		Rooms:    []BookingRoomInput{{RoomID: room.ID, Quantity: qty}},
	}
}

// setStatus はテストの前提となる状態をストアに直接書き込む
func (e *testEnv) setStatus(t *testing.T, id string, status reservation.Status, ref string) {
	t.Helper()
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	res, ok := e.store.reservations[id]
	require.True(t, ok)
	res.Status = status
	if ref != "" {
		res.PaymentReference = ref
	}
}

func (e *testEnv) promotionUsedCount(t *testing.T, id string) int {
	t.Helper()
	p, err := e.promoRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.UsedCount
}

func intPtr(v int) *int { return &v }
