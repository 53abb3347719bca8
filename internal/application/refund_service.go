package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/refund"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/tracing"
)

// RefundService は返金申請の作成から承認・却下までを扱う
type RefundService struct {
	txManager       transaction.Manager
	refundRepo      refund.Repository
	reservationRepo reservation.Repository
	hotelRepo       hotel.Repository
	gateway         payment.Gateway
	now             func() time.Time
}

// NewRefundService はゲートウェイ未設定（nil）でも作成できる。その場合の自動返金は ErrGatewayFailure になる
func NewRefundService(tm transaction.Manager, fr refund.Repository, rr reservation.Repository, hr hotel.Repository, gw payment.Gateway) *RefundService {
	return &RefundService{
		txManager:       tm,
		refundRepo:      fr,
		reservationRepo: rr,
		hotelRepo:       hr,
		gateway:         gw,
		now:             time.Now,
	}
}

// ensureRefundRequest は同じ対象の有効な返金申請がなければ作成する
// 対象は予約単位、STALE_PAYMENT は決済ID単位。
// SQLエラーでトランザクションを中断させないよう、作成前に既存申請を確認する
func ensureRefundRequest(ctx context.Context, tx transaction.Tx, repo refund.Repository, req *refund.RefundRequest) (bool, error) {
	var err error
	if req.PerReservation() {
		_, err = repo.FindActiveByReservation(ctx, tx, req.ReservationID)
	} else {
		_, err = repo.FindByPaymentReference(ctx, tx, req.PaymentReference)
	}
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, refund.ErrRefundNotFound):
		return false, fmt.Errorf("返金申請の確認に失敗: %w", err)
	}
	if err := repo.Create(ctx, tx, req); err != nil {
		return false, err
	}
	return true, nil
}

type CreateRefundInput struct {
	ReservationID string
	UserID        string
	Amount        int
	Reason        string
	Payee         *refund.PayeeInfo
}

// CreateRefundRequest は予約者による返金申請を作成する
func (s *RefundService) CreateRefundRequest(ctx context.Context, input CreateRefundInput) (*refund.RefundRequest, error) {
	res, err := s.reservationRepo.GetByID(ctx, input.ReservationID)
	if err != nil {
		return nil, err
	}
	if !res.IsOwnedBy(input.UserID) {
		return nil, reservation.ErrNotReservationOwner
	}
	if res.Status == reservation.StatusNotPaid || res.FinalPrice <= 0 {
		return nil, refund.ErrReservationNotRefundable
	}
	if input.Amount > res.FinalPrice {
		return nil, refund.ErrAmountExceedsPaid
	}

	req := refund.NewManualRequest(res.ID, res.UserID, input.Amount, input.Reason, input.Payee, s.now())
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		return s.refundRepo.Create(ctx, tx, req)
	}); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("返金申請を受け付けました",
		zap.String("refund_id", req.ID),
		zap.String("reservation_id", res.ID),
		zap.Int("amount", req.Amount))
	return req, nil
}

// SubmitPayeeInfo は申請者が返金先口座を登録する
func (s *RefundService) SubmitPayeeInfo(ctx context.Context, userID, id string, payee refund.PayeeInfo) (*refund.RefundRequest, error) {
	req, err := s.refundRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, refund.ErrNotRefundOwner
	}
	if err := req.SubmitPayeeInfo(payee, s.now()); err != nil {
		return nil, err
	}
	if err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		return s.refundRepo.Update(ctx, tx, req)
	}); err != nil {
		return nil, err
	}
	return req, nil
}

// ApproveRefund はホテルオーナーが返金を承認する
// 決済参照IDがあればゲートウェイで返金し、なければ登録済み口座への振込として記録する
// ゲートウェイ返金は申請を PROCESSING に確保してから呼び出すため、同時承認でも実行は1回だけ。
// 呼び出しに失敗した申請は PENDING に戻る
func (s *RefundService) ApproveRefund(ctx context.Context, ownerID, id string) (req *refund.RefundRequest, err error) {
	ctx, span := tracing.Start(ctx, "RefundService.Approve")
	span.SetAttributes(attribute.String("refund_id", id))
	defer func() { tracing.End(span, err) }()

	req, res, err := s.loadForDecision(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	paymentRef := req.PaymentReference
	if paymentRef == "" {
		paymentRef = res.PaymentReference
	}
	gatewayRefundID := ""
	if paymentRef != "" {
		if s.gateway == nil {
			return nil, payment.ErrGatewayFailure
		}
		if err := s.transition(ctx, req, req.StartProcessing); err != nil {
			return nil, err
		}
		gatewayRefundID, err = s.gateway.Refund(ctx, paymentRef, req.Amount)
		if err != nil {
			logger.FromContext(ctx).Warn("ゲートウェイ返金に失敗",
				zap.String("refund_id", req.ID),
				zap.String("reservation_id", res.ID),
				zap.Error(err))
			if rerr := s.transition(context.WithoutCancel(ctx), req, req.AbortProcessing); rerr != nil {
				logger.FromContext(ctx).Error("返金申請をPENDINGに戻せません",
					zap.String("refund_id", req.ID),
					zap.Error(rerr))
			}
			return nil, err
		}
	} else if req.Payee == nil {
		return nil, refund.ErrPayeeInfoRequired
	}

	// 返金実行後は呼び出し元が切断しても記録を残す
	if err := s.transition(context.WithoutCancel(ctx), req, func(now time.Time) error {
		return req.Approve(gatewayRefundID, now)
	}); err != nil {
		if gatewayRefundID != "" {
			logger.FromContext(ctx).Error("返金は実行済みだが申請の更新に失敗",
				zap.String("refund_id", req.ID),
				zap.String("gateway_refund_id", gatewayRefundID),
				zap.Error(err))
		}
		return nil, err
	}
	logger.FromContext(ctx).Info("返金を承認しました",
		zap.String("refund_id", req.ID),
		zap.String("gateway_refund_id", gatewayRefundID))
	return req, nil
}

// transition は申請の状態を変更し、バージョン付きで保存する
func (s *RefundService) transition(ctx context.Context, req *refund.RefundRequest, apply func(now time.Time) error) error {
	if err := apply(s.now()); err != nil {
		return err
	}
	return transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		return s.refundRepo.Update(ctx, tx, req)
	})
}

// RejectRefund はホテルオーナーが返金を却下する
func (s *RefundService) RejectRefund(ctx context.Context, ownerID, id, reason string) (*refund.RefundRequest, error) {
	req, _, err := s.loadForDecision(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, req, func(now time.Time) error {
		return req.Reject(reason, now)
	}); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *RefundService) loadForDecision(ctx context.Context, ownerID, id string) (*refund.RefundRequest, *reservation.Reservation, error) {
	req, err := s.refundRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if req.Status != refund.StatusPending {
		return nil, nil, refund.ErrRefundNotPending
	}
	res, err := s.reservationRepo.GetByID(ctx, req.ReservationID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := requireHotelOwner(ctx, s.hotelRepo, res.HotelID, ownerID); err != nil {
		return nil, nil, err
	}
	return req, res, nil
}

func (s *RefundService) GetUserRefunds(ctx context.Context, userID string, limit, offset int) ([]*refund.RefundRequest, error) {
	limit, offset = normalizePage(limit, offset)
	return s.refundRepo.GetByUserID(ctx, userID, limit, offset)
}
