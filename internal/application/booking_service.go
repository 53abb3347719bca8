package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/promotion"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/tracing"
)

// BookingService は予約の作成・未払い予約の更新を行う
type BookingService struct {
	txManager       transaction.Manager
	hotelRepo       hotel.Repository
	reservationRepo reservation.Repository
	promotions      *PromotionService
	inventory       *InventoryService
	locker          inventory.Locker
	metrics         *metrics.Metrics
	policy          reservation.SweepPolicy
	loc             *time.Location
	now             func() time.Time
}

func NewBookingService(
	tm transaction.Manager,
	hr hotel.Repository,
	rr reservation.Repository,
	promotions *PromotionService,
	inv *InventoryService,
	locker inventory.Locker,
	m *metrics.Metrics,
	policy reservation.SweepPolicy,
) *BookingService {
	loc := policy.Location
	if loc == nil {
		loc = time.UTC
	}
	return &BookingService{
		txManager:       tm,
		hotelRepo:       hr,
		reservationRepo: rr,
		promotions:      promotions,
		inventory:       inv,
		locker:          locker,
		metrics:         m,
		policy:          policy,
		loc:             loc,
		now:             time.Now,
	}
}

type BookingRoomInput struct {
	RoomID   string
	Quantity int
}

type BookingServiceInput struct {
	ServiceID string
	Quantity  int
	Dates     []time.Time
}

type CreateBookingInput struct {
	UserID        string
	HotelID       string
	CheckIn       time.Time
	CheckOut      time.Time
	Rooms         []BookingRoomInput
	Services      []BookingServiceInput
	PromotionCode string
	// ExpectedFinalPrice は利用者が確認した金額。0 の場合は照合しない
	ExpectedFinalPrice int
}

// CreateBooking は予約を作成する。利用者に未払い予約があればその内容を差し替える
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (res *reservation.Reservation, err error) {
	ctx, span := tracing.Start(ctx, "BookingService.CreateBooking")
	span.SetAttributes(attribute.String("user_id", input.UserID), attribute.String("hotel_id", input.HotelID))
	defer func() {
		s.metrics.ObserveBooking(bookingResult(err))
		tracing.End(span, err)
	}()

	draft := s.draft(input, reservation.NewReservation)
	res, err = s.book(ctx, draft, input, true)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("予約を受け付けました",
		zap.String("reservation_id", res.ID),
		zap.String("user_id", res.UserID),
		zap.Int("final_price", res.FinalPrice))
	return res, nil
}

// CreateOfflineBooking はホテルオーナーが窓口で受けた予約を登録する
// プロモーションは適用せず、未払い予約の差し替えも行わない
func (s *BookingService) CreateOfflineBooking(ctx context.Context, ownerID string, input CreateBookingInput) (res *reservation.Reservation, err error) {
	ctx, span := tracing.Start(ctx, "BookingService.CreateOfflineBooking")
	defer func() {
		s.metrics.ObserveBooking(bookingResult(err))
		tracing.End(span, err)
	}()

	h, err := s.hotelRepo.GetHotel(ctx, input.HotelID)
	if err != nil {
		return nil, err
	}
	if !h.IsOwnedBy(ownerID) {
		return nil, hotel.ErrNotHotelOwner
	}
	if input.UserID == "" {
		input.UserID = ownerID
	}
	input.PromotionCode = ""

	draft := s.draft(input, reservation.NewOfflineReservation)
	res, err = s.book(ctx, draft, input, false)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("オフライン予約を登録しました",
		zap.String("reservation_id", res.ID),
		zap.String("hotel_id", res.HotelID))
	return res, nil
}

type newReservationFunc func(userID, hotelID string, checkIn, checkOut time.Time, rooms []reservation.RoomLine, services []reservation.ServiceLine, now time.Time) *reservation.Reservation

// draft は入力を宿泊日単位に正規化した予約にする
func (s *BookingService) draft(input CreateBookingInput, newFn newReservationFunc) *reservation.Reservation {
	rooms := make([]reservation.RoomLine, 0, len(input.Rooms))
	for _, r := range input.Rooms {
		rooms = append(rooms, reservation.RoomLine{RoomID: r.RoomID, Quantity: r.Quantity})
	}
	var services []reservation.ServiceLine
	for _, sv := range input.Services {
		dates := make([]time.Time, 0, len(sv.Dates))
		for _, d := range sv.Dates {
			dates = append(dates, reservation.DateOf(d, s.loc))
		}
		services = append(services, reservation.ServiceLine{ServiceID: sv.ServiceID, Quantity: sv.Quantity, Dates: dates})
	}
	return newFn(input.UserID, input.HotelID,
		reservation.DateOf(input.CheckIn, s.loc), reservation.DateOf(input.CheckOut, s.loc),
		rooms, services, s.now())
}

func (s *BookingService) book(ctx context.Context, draft *reservation.Reservation, input CreateBookingInput, reviseUnpaid bool) (*reservation.Reservation, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	rooms, err := s.loadCatalogue(ctx, draft)
	if err != nil {
		return nil, err
	}

	roomIDs := draft.RoomIDs()
	release, err := s.locker.Lock(ctx, roomIDs)
	if err != nil {
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))

	var (
		result   *reservation.Reservation
		released []string
		lapsed   *reservation.Reservation
	)
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := s.hotelRepo.LockRooms(ctx, tx, roomIDs); err != nil {
			return err
		}

		var existing *reservation.Reservation
		if reviseUnpaid {
			found, err := s.reservationRepo.FindUnpaidByUser(ctx, tx, draft.UserID)
			switch {
			case err == nil:
				existing = found
			case !errors.Is(err, reservation.ErrReservationNotFound):
				return fmt.Errorf("未払い予約の取得に失敗: %w", err)
			}
		}
		// 猶予期間を過ぎた未払い予約は差し替えずに失効させ、新規予約として扱う
		if existing != nil {
			if target, due := existing.SweepTarget(s.now(), s.policy); due && target == reservation.StatusCancelled {
				if err := s.lapse(ctx, tx, existing); err != nil {
					return err
				}
				lapsed, existing = existing, nil
			}
		}
		excludeID, heldPromotionID := "", ""
		if existing != nil {
			excludeID = existing.ID
			heldPromotionID = existing.PromotionID
		}

		if err := s.inventory.checkCapacity(ctx, tx, rooms, draft, excludeID); err != nil {
			return err
		}

		subtotal := draft.Subtotal()
		var promo *promotion.Promotion
		discount := 0
		if input.PromotionCode != "" {
			promo, discount, err = s.promotions.resolve(ctx, input.PromotionCode, subtotal, "", heldPromotionID)
			if err != nil {
				return err
			}
		}
		promoID := ""
		if promo != nil {
			promoID = promo.ID
		}
		draft.ApplyPricing(subtotal, promoID, discount)
		if input.ExpectedFinalPrice != 0 && input.ExpectedFinalPrice != draft.FinalPrice {
			return reservation.ErrPriceChanged
		}

		if existing == nil {
			if err := s.reservationRepo.Create(ctx, tx, draft); err != nil {
				return err
			}
			if promo != nil {
				if err := s.promotions.RegisterUse(ctx, tx, promo, draft.UserID, draft.ID); err != nil {
					return err
				}
			}
			result = draft
			return nil
		}

		released = existing.RoomIDs()
		if err := existing.Revise(draft.HotelID, draft.CheckInDate, draft.CheckOutDate, draft.Rooms, draft.Services, s.now()); err != nil {
			return err
		}
		existing.ApplyPricing(draft.TotalPrice, draft.PromotionID, draft.PromotionDiscount)
		if err := s.reservationRepo.Update(ctx, tx, existing); err != nil {
			return err
		}
		if err := s.promotions.SwapUse(ctx, tx, heldPromotionID, promo, existing.UserID, existing.ID); err != nil {
			return err
		}
		result = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	if lapsed != nil {
		released = append(released, lapsed.RoomIDs()...)
		s.metrics.ObserveTransition(string(reservation.StatusNotPaid), string(reservation.StatusCancelled), TriggerSweeper)
		logger.FromContext(ctx).Info("猶予期間切れの未払い予約を失効",
			zap.String("reservation_id", lapsed.ID),
			zap.String("user_id", lapsed.UserID))
	}
	s.inventory.Invalidate(ctx, append(roomIDs, released...)...)
	return result, nil
}

// lapse は猶予期間切れの未払い予約をキャンセルし、プロモーション利用を戻す
func (s *BookingService) lapse(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	if err := res.Cancel(s.now()); err != nil {
		return err
	}
	if err := s.reservationRepo.Update(ctx, tx, res); err != nil {
		return err
	}
	return s.promotions.ReverseUse(ctx, tx, res.PromotionID, res.UserID)
}

// loadCatalogue はホテル・部屋タイプ・サービスの予約可否を確認し、単価を明細に設定する
func (s *BookingService) loadCatalogue(ctx context.Context, draft *reservation.Reservation) (map[string]*hotel.Room, error) {
	h, err := s.hotelRepo.GetHotel(ctx, draft.HotelID)
	if err != nil {
		return nil, err
	}
	if !h.IsBookable() {
		return nil, hotel.ErrHotelNotBookable
	}

	roomList, err := s.hotelRepo.GetRoomsByIDs(ctx, draft.RoomIDs())
	if err != nil {
		return nil, fmt.Errorf("部屋タイプ取得に失敗: %w", err)
	}
	rooms := make(map[string]*hotel.Room, len(roomList))
	for _, r := range roomList {
		rooms[r.ID] = r
	}
	for i, line := range draft.Rooms {
		room, ok := rooms[line.RoomID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", hotel.ErrRoomNotFound, line.RoomID)
		}
		if room.HotelID != h.ID {
			return nil, hotel.ErrRoomNotInHotel
		}
		if !room.IsActive() {
			return nil, fmt.Errorf("%w: %s", hotel.ErrRoomInactive, room.ID)
		}
		draft.Rooms[i].UnitPrice = room.Price
	}

	if len(draft.Services) == 0 {
		return rooms, nil
	}
	serviceList, err := s.hotelRepo.GetServicesByIDs(ctx, draft.ServiceIDs())
	if err != nil {
		return nil, fmt.Errorf("サービス取得に失敗: %w", err)
	}
	services := make(map[string]*hotel.Service, len(serviceList))
	for _, sv := range serviceList {
		services[sv.ID] = sv
	}
	for i, line := range draft.Services {
		sv, ok := services[line.ServiceID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", hotel.ErrServiceNotFound, line.ServiceID)
		}
		if sv.HotelID != h.ID {
			return nil, hotel.ErrServiceNotInHotel
		}
		if !sv.IsActive() {
			return nil, fmt.Errorf("%w: %s", hotel.ErrServiceInactive, sv.ID)
		}
		draft.Services[i].UnitPrice = sv.Price
	}
	return rooms, nil
}

func bookingResult(err error) string {
	switch {
	case err == nil:
		return metrics.BookingSuccess
	case errors.Is(err, reservation.ErrCapacityExceeded):
		return metrics.BookingCapacity
	case errors.Is(err, inventory.ErrRoomBusy):
		return metrics.BookingLockFailed
	case promotion.IsRejection(err):
		return metrics.BookingPromoRejected
	case isValidationError(err):
		return metrics.BookingInvalid
	default:
		return metrics.BookingError
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		reservation.ErrUserIDRequired, reservation.ErrHotelIDRequired, reservation.ErrRoomsRequired,
		reservation.ErrDuplicateRoom, reservation.ErrInvalidQuantity, reservation.ErrInvalidDateRange,
		reservation.ErrServiceDatesRequired, reservation.ErrServiceDateOutOfStay, reservation.ErrPriceChanged,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return hotel.IsInactiveResource(err)
}
