package promotion

import (
	"context"
	"time"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
)

// Repository はプロモーションと利用台帳のリポジトリ
type Repository interface {
	// Create は新しいプロモーションを作成する。コード重複時は ErrCodeAlreadyExists
	Create(ctx context.Context, p *Promotion) error
	GetByID(ctx context.Context, id string) (*Promotion, error)
	GetByCode(ctx context.Context, code string) (*Promotion, error)
	ListActive(ctx context.Context, now time.Time, limit, offset int) ([]*Promotion, error)

	// IncrementUsage は全体の利用回数を1増やす。上限到達時は ErrUsageLimitReached
	IncrementUsage(ctx context.Context, tx transaction.Tx, promotionID string) error
	// DecrementUsage は全体の利用回数を1減らす。既に0なら ErrCounterUnderflow
	DecrementUsage(ctx context.Context, tx transaction.Tx, promotionID string) error

	GetUsage(ctx context.Context, promotionID, userID string) (*Usage, error)
	// IncrementUserUsage はユーザー別利用回数を1増やす。maxPerUser 到達時は ErrUserLimitReached
	IncrementUserUsage(ctx context.Context, tx transaction.Tx, promotionID, userID, reservationID string, maxPerUser int, now time.Time) error
	// DecrementUserUsage はユーザー別利用回数を1減らす。既に0なら ErrCounterUnderflow
	DecrementUserUsage(ctx context.Context, tx transaction.Tx, promotionID, userID string) error
}
