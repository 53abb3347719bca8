package refund

import (
	"context"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
)

// Repository は返金申請リポジトリ
type Repository interface {
	// Create は返金申請を作成する。同じ予約に却下以外の申請がある場合は ErrRefundAlreadyRequested
	// （STALE_PAYMENT は同じ決済IDの申請がある場合）
	Create(ctx context.Context, tx transaction.Tx, r *RefundRequest) error
	// Update は返金申請を更新する（楽観的ロック）
	Update(ctx context.Context, tx transaction.Tx, r *RefundRequest) error
	GetByID(ctx context.Context, id string) (*RefundRequest, error)
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*RefundRequest, error)
	// FindActiveByReservation は却下されていない申請（STALE_PAYMENT を除く）を返す。なければ ErrRefundNotFound
	FindActiveByReservation(ctx context.Context, tx transaction.Tx, reservationID string) (*RefundRequest, error)
	// FindByPaymentReference は決済IDに対する STALE_PAYMENT 申請を返す。なければ ErrRefundNotFound
	FindByPaymentReference(ctx context.Context, tx transaction.Tx, paymentRef string) (*RefundRequest, error)
}
