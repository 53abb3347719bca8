package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/refund"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/tracing"
)

// 状態遷移の契機（メトリクスのラベル）
const (
	TriggerUser    = "user"
	TriggerOwner   = "owner"
	TriggerSweeper = "sweeper"
	TriggerWebhook = "webhook"
)

// ReservationService は予約の参照と状態遷移、時間経過による遷移（スイープ）を扱う
type ReservationService struct {
	txManager       transaction.Manager
	reservationRepo reservation.Repository
	hotelRepo       hotel.Repository
	refundRepo      refund.Repository
	promotions      *PromotionService
	inventory       *InventoryService
	metrics         *metrics.Metrics
	policy          reservation.SweepPolicy
	now             func() time.Time
}

func NewReservationService(
	tm transaction.Manager,
	rr reservation.Repository,
	hr hotel.Repository,
	fr refund.Repository,
	promotions *PromotionService,
	inv *InventoryService,
	m *metrics.Metrics,
	policy reservation.SweepPolicy,
) *ReservationService {
	return &ReservationService{
		txManager:       tm,
		reservationRepo: rr,
		hotelRepo:       hr,
		refundRepo:      fr,
		promotions:      promotions,
		inventory:       inv,
		metrics:         m,
		policy:          policy,
		now:             time.Now,
	}
}

// GetReservation は予約者本人またはホテルオーナーに予約を返す
func (s *ReservationService) GetReservation(ctx context.Context, requesterID, id string) (*reservation.Reservation, error) {
	res, err := s.reservationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, res, requesterID); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ReservationService) GetUserReservations(ctx context.Context, userID string, limit, offset int) ([]*reservation.Reservation, error) {
	limit, offset = normalizePage(limit, offset)
	return s.reservationRepo.GetByUserID(ctx, userID, limit, offset)
}

func (s *ReservationService) GetHotelReservations(ctx context.Context, ownerID, hotelID string, limit, offset int) ([]*reservation.Reservation, error) {
	if _, err := requireHotelOwner(ctx, s.hotelRepo, hotelID, ownerID); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	return s.reservationRepo.GetByHotelID(ctx, hotelID, limit, offset)
}

// authorize は予約者本人なら TriggerUser、ホテルオーナーなら TriggerOwner を返す
func (s *ReservationService) authorize(ctx context.Context, res *reservation.Reservation, requesterID string) (string, error) {
	if res.IsOwnedBy(requesterID) {
		return TriggerUser, nil
	}
	h, err := s.hotelRepo.GetHotel(ctx, res.HotelID)
	if err != nil && !errors.Is(err, hotel.ErrHotelNotFound) {
		return "", fmt.Errorf("ホテル取得に失敗: %w", err)
	}
	if h != nil && h.IsOwnedBy(requesterID) {
		return TriggerOwner, nil
	}
	return "", reservation.ErrNotReservationOwner
}

// CancelReservation は予約をキャンセルし、在庫とプロモーション利用回数を戻す
func (s *ReservationService) CancelReservation(ctx context.Context, requesterID, id string) (*reservation.Reservation, error) {
	res, err := s.reservationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	trigger, err := s.authorize(ctx, res, requesterID)
	if err != nil {
		return nil, err
	}
	from := res.Status
	now := s.now()
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := res.Cancel(now); err != nil {
			return err
		}
		if err := s.reservationRepo.Update(ctx, tx, res); err != nil {
			return err
		}
		return s.promotions.ReverseUse(ctx, tx, res.PromotionID, res.UserID)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(from), string(res.Status), trigger)
	s.inventory.Invalidate(ctx, res.RoomIDs()...)
	logger.FromContext(ctx).Info("予約をキャンセルしました",
		zap.String("reservation_id", res.ID),
		zap.String("from", string(from)),
		zap.String("trigger", trigger))
	return res, nil
}

// AcceptReservation はオーナーが未払い予約を受け付ける（NOT_PAID → PENDING）
func (s *ReservationService) AcceptReservation(ctx context.Context, ownerID, id string) (*reservation.Reservation, error) {
	return s.ownerTransition(ctx, ownerID, id, (*reservation.Reservation).Accept)
}

// ConfirmReservation はオーナーが受付済み予約を確定する（PENDING → BOOKED）
func (s *ReservationService) ConfirmReservation(ctx context.Context, ownerID, id string) (*reservation.Reservation, error) {
	return s.ownerTransition(ctx, ownerID, id, (*reservation.Reservation).Confirm)
}

// CompleteReservation はオーナーが滞在を完了にする（CHECKED_OUT → COMPLETED）
func (s *ReservationService) CompleteReservation(ctx context.Context, ownerID, id string) (*reservation.Reservation, error) {
	return s.ownerTransition(ctx, ownerID, id, (*reservation.Reservation).Complete)
}

func (s *ReservationService) ownerTransition(ctx context.Context, ownerID, id string, apply func(*reservation.Reservation, time.Time) error) (*reservation.Reservation, error) {
	res, err := s.reservationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := requireHotelOwner(ctx, s.hotelRepo, res.HotelID, ownerID); err != nil {
		return nil, err
	}
	from := res.Status
	if err := s.update(ctx, res, func(r *reservation.Reservation) error { return apply(r, s.now()) }); err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(from), string(res.Status), TriggerOwner)
	return res, nil
}

// update は変更を適用してトランザクション内で保存する
func (s *ReservationService) update(ctx context.Context, res *reservation.Reservation, apply func(*reservation.Reservation) error) error {
	return transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := apply(res); err != nil {
			return err
		}
		return s.reservationRepo.Update(ctx, tx, res)
	})
}

// Sweep は now 時点で期限を迎えた予約を遷移させる
// 1予約1トランザクションで処理し、競合した予約は次回に持ち越す
func (s *ReservationService) Sweep(ctx context.Context, now time.Time) (report reservation.SweepReport, err error) {
	ctx, span := tracing.Start(ctx, "ReservationService.Sweep")
	start := time.Now()
	defer func() {
		s.metrics.ObserveSweep(time.Since(start))
		span.SetAttributes(
			attribute.Int("sweep.scanned", report.Scanned),
			attribute.Int("sweep.transitioned", report.Transitioned()),
			attribute.Int("sweep.failed", report.Failed),
		)
		tracing.End(span, err)
	}()

	candidates, err := s.reservationRepo.ListByStatuses(ctx, reservation.SweepStatuses())
	if err != nil {
		return report, fmt.Errorf("スイープ対象の取得に失敗: %w", err)
	}

	var released []string
	for _, res := range candidates {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Scanned++
		target, due := res.SweepTarget(now, s.policy)
		if !due {
			continue
		}
		from := res.Status
		refunded, err := s.sweepOne(ctx, res, target, now)
		switch {
		case errors.Is(err, reservation.ErrReservationConflict):
			report.Skipped++
			continue
		case err != nil:
			report.Failed++
			logger.Error("スイープ処理に失敗",
				zap.String("reservation_id", res.ID),
				zap.String("from", string(from)),
				zap.String("to", string(target)),
				zap.Error(err))
			continue
		}

		s.metrics.ObserveTransition(string(from), string(target), TriggerSweeper)
		switch target {
		case reservation.StatusCancelled:
			report.Cancelled++
			released = append(released, res.RoomIDs()...)
		case reservation.StatusCheckedIn:
			report.CheckedIn++
		case reservation.StatusCheckedOut:
			report.CheckedOut++
		}
		if refunded {
			report.Refunded++
		}
	}

	s.inventory.Invalidate(ctx, released...)
	return report, nil
}

func (s *ReservationService) sweepOne(ctx context.Context, res *reservation.Reservation, target reservation.Status, now time.Time) (bool, error) {
	from := res.Status
	refunded := false
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := res.ApplySweep(target, now); err != nil {
			return err
		}
		if err := s.reservationRepo.Update(ctx, tx, res); err != nil {
			return err
		}
		if target != reservation.StatusCancelled {
			return nil
		}
		if err := s.promotions.ReverseUse(ctx, tx, res.PromotionID, res.UserID); err != nil {
			return err
		}
		if from != reservation.StatusPending || res.FinalPrice <= 0 {
			return nil
		}
		created, err := ensureRefundRequest(ctx, tx, s.refundRepo,
			refund.NewAutoRequest(res.ID, res.UserID, res.FinalPrice, now))
		refunded = created
		return err
	})
	return refunded, err
}
