package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/refund"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/tracing"
)

// ErrPaymentNotConfigured は決済ゲートウェイが設定されていないことを表す
var ErrPaymentNotConfigured = errors.New("決済ゲートウェイが設定されていません")

// PaymentService はチェックアウト作成と決済Webhookの反映を行う
type PaymentService struct {
	txManager       transaction.Manager
	reservationRepo reservation.Repository
	refundRepo      refund.Repository
	promotions      *PromotionService
	inventory       *InventoryService
	gateway         payment.Gateway
	currency        string
	metrics         *metrics.Metrics
	now             func() time.Time
}

func NewPaymentService(
	tm transaction.Manager,
	rr reservation.Repository,
	fr refund.Repository,
	promotions *PromotionService,
	inv *InventoryService,
	gw payment.Gateway,
	currency string,
	m *metrics.Metrics,
) *PaymentService {
	return &PaymentService{
		txManager:       tm,
		reservationRepo: rr,
		refundRepo:      fr,
		promotions:      promotions,
		inventory:       inv,
		gateway:         gw,
		currency:        currency,
		metrics:         m,
		now:             time.Now,
	}
}

// CreateCheckout は未払い予約のチェックアウトを作成し、そのIDを予約に記録する
func (s *PaymentService) CreateCheckout(ctx context.Context, userID, reservationID string) (*payment.Checkout, error) {
	if s.gateway == nil {
		return nil, ErrPaymentNotConfigured
	}
	res, err := s.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !res.IsOwnedBy(userID) {
		return nil, reservation.ErrNotReservationOwner
	}
	if res.Status != reservation.StatusNotPaid {
		return nil, reservation.ErrReservationNotUnpaid
	}

	checkout, err := s.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		ReservationID: res.ID,
		Amount:        res.FinalPrice,
		Currency:      s.currency,
	})
	if err != nil {
		return nil, err
	}
	if err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := res.AttachPaymentHandle(checkout.Handle, s.now()); err != nil {
			return err
		}
		return s.reservationRepo.Update(ctx, tx, res)
	}); err != nil {
		return nil, err
	}
	return checkout, nil
}

// WebhookResult はWebhook処理の結果
type WebhookResult struct {
	Event         *payment.WebhookEvent
	ReservationID string
	Applied       bool
	Duplicate     bool
	RefundCreated bool
}

// HandleWebhook は署名を検証し、決済結果を予約に反映する
// 同じ決済の再送は何もしない。キャンセル済み予約への入金は返金申請にする
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (result *WebhookResult, err error) {
	ctx, span := tracing.Start(ctx, "PaymentService.HandleWebhook")
	defer func() { tracing.End(span, err) }()

	if s.gateway == nil {
		return nil, ErrPaymentNotConfigured
	}
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("webhook.type", event.RawType), attribute.String("webhook.kind", string(event.Kind)))
	result = &WebhookResult{Event: event}
	if event.Kind == payment.EventIgnored {
		return result, nil
	}

	res, err := s.findReservation(ctx, event)
	if err != nil {
		return nil, err
	}
	result.ReservationID = res.ID

	switch event.Kind {
	case payment.EventPaymentConfirmed:
		err = s.applyConfirmed(ctx, res, event, result)
	case payment.EventPaymentFailed:
		err = s.applyFailed(ctx, res, result)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PaymentService) findReservation(ctx context.Context, event *payment.WebhookEvent) (*reservation.Reservation, error) {
	if event.ReservationID != "" {
		res, err := s.reservationRepo.GetByID(ctx, event.ReservationID)
		if err == nil || !errors.Is(err, reservation.ErrReservationNotFound) || event.CheckoutHandle == "" {
			return res, err
		}
	}
	if event.CheckoutHandle == "" {
		return nil, reservation.ErrReservationNotFound
	}
	return s.reservationRepo.GetByPaymentHandle(ctx, event.CheckoutHandle)
}

func (s *PaymentService) applyConfirmed(ctx context.Context, res *reservation.Reservation, event *payment.WebhookEvent, result *WebhookResult) error {
	if event.PaymentReference == "" {
		return reservation.ErrPaymentRefRequired
	}
	switch res.Status {
	case reservation.StatusCancelled:
		logger.FromContext(ctx).Warn("キャンセル済み予約への入金を検知",
			zap.String("reservation_id", res.ID),
			zap.String("payment_reference", event.PaymentReference),
			zap.Int("amount", paidAmount(res, event)))
		return s.refundPayment(ctx, result,
			refund.NewLatePaymentRequest(res.ID, res.UserID, paidAmount(res, event), event.PaymentReference, s.now()))
	case reservation.StatusNotPaid, reservation.StatusPending:
		if stalePayment(res, event) {
			logger.FromContext(ctx).Warn("予約内容変更前の注文への入金を検知",
				zap.String("reservation_id", res.ID),
				zap.String("checkout_handle", event.CheckoutHandle),
				zap.String("current_handle", res.PaymentHandle),
				zap.Int("amount", event.Amount),
				zap.Int("final_price", res.FinalPrice))
			return s.refundPayment(ctx, result,
				refund.NewStalePaymentRequest(res.ID, res.UserID, paidAmount(res, event), event.PaymentReference, s.now()))
		}
	default:
		if res.PaymentReference == event.PaymentReference {
			result.Duplicate = true
			return nil
		}
		return &reservation.TransitionError{From: res.Status, To: reservation.StatusBooked}
	}

	from := res.Status
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := res.MarkPaid(event.PaymentReference, s.now()); err != nil {
			return err
		}
		return s.reservationRepo.Update(ctx, tx, res)
	})
	if err != nil {
		return fmt.Errorf("決済完了の反映に失敗: %w", err)
	}
	result.Applied = true
	s.metrics.ObserveTransition(string(from), string(res.Status), TriggerWebhook)
	logger.FromContext(ctx).Info("決済完了を反映しました",
		zap.String("reservation_id", res.ID),
		zap.String("payment_reference", event.PaymentReference))
	return nil
}

// stalePayment は入金が予約の現在のチェックアウト・金額と一致しないかを返す。
// 未払い予約の変更でチェックアウトは破棄されるが、ゲートウェイ側の注文は残り得る
func stalePayment(res *reservation.Reservation, event *payment.WebhookEvent) bool {
	if event.CheckoutHandle != "" && event.CheckoutHandle != res.PaymentHandle {
		return true
	}
	return event.Amount > 0 && event.Amount != res.FinalPrice
}

func paidAmount(res *reservation.Reservation, event *payment.WebhookEvent) int {
	if event.Amount > 0 {
		return event.Amount
	}
	return res.FinalPrice
}

// refundPayment は予約に反映しない入金の返金申請を作成する。再送では作成しない
func (s *PaymentService) refundPayment(ctx context.Context, result *WebhookResult, req *refund.RefundRequest) error {
	if req.Amount <= 0 {
		return nil
	}
	return transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		created, err := ensureRefundRequest(ctx, tx, s.refundRepo, req)
		result.RefundCreated = created
		result.Duplicate = !created
		return err
	})
}

// applyFailed は決済失敗時に未払い予約をキャンセルする。それ以外の状態では何もしない
func (s *PaymentService) applyFailed(ctx context.Context, res *reservation.Reservation, result *WebhookResult) error {
	if res.Status != reservation.StatusNotPaid {
		result.Duplicate = true
		return nil
	}
	from := res.Status
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := res.Cancel(s.now()); err != nil {
			return err
		}
		if err := s.reservationRepo.Update(ctx, tx, res); err != nil {
			return err
		}
		return s.promotions.ReverseUse(ctx, tx, res.PromotionID, res.UserID)
	})
	if err != nil {
		return fmt.Errorf("決済失敗の反映に失敗: %w", err)
	}
	result.Applied = true
	s.metrics.ObserveTransition(string(from), string(res.Status), TriggerWebhook)
	s.inventory.Invalidate(ctx, res.RoomIDs()...)
	return nil
}
