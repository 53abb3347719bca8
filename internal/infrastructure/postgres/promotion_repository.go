package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/promotion"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
)

type promotionRow struct {
	ID                string        `db:"id"`
	Code              string        `db:"code"`
	Name              string        `db:"name"`
	Description       string        `db:"description"`
	DiscountType      string        `db:"discount_type"`
	DiscountValue     int           `db:"discount_value"`
	MaxDiscountAmount int           `db:"max_discount_amount"`
	MinOrderAmount    int           `db:"min_order_amount"`
	StartDate         time.Time     `db:"start_date"`
	EndDate           time.Time     `db:"end_date"`
	UsageLimit        sql.NullInt64 `db:"usage_limit"`
	UsedCount         int           `db:"used_count"`
	MaxUsagePerUser   int           `db:"max_usage_per_user"`
	IsActive          bool          `db:"is_active"`
	CreatedAt         time.Time     `db:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at"`
}

func (r *promotionRow) toEntity() *promotion.Promotion {
	p := &promotion.Promotion{
		ID: r.ID, Code: r.Code, Name: r.Name, Description: r.Description,
		DiscountType: promotion.DiscountType(r.DiscountType), DiscountValue: r.DiscountValue,
		MaxDiscountAmount: r.MaxDiscountAmount, MinOrderAmount: r.MinOrderAmount,
		StartDate: r.StartDate, EndDate: r.EndDate,
		UsedCount: r.UsedCount, MaxUsagePerUser: r.MaxUsagePerUser, IsActive: r.IsActive,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if r.UsageLimit.Valid {
		limit := int(r.UsageLimit.Int64)
		p.UsageLimit = &limit
	}
	return p
}

type promotionUsageRow struct {
	PromotionID       string         `db:"promotion_id"`
	UserID            string         `db:"user_id"`
	UsedCount         int            `db:"used_count"`
	LastReservationID sql.NullString `db:"last_reservation_id"`
	LastUsedAt        *time.Time     `db:"last_used_at"`
}

const promotionColumns = `id, code, name, description, discount_type, discount_value, max_discount_amount, min_order_amount, start_date, end_date, usage_limit, used_count, max_usage_per_user, is_active, created_at, updated_at`

// PromotionRepository はプロモーションと利用台帳を永続化する。
// カウンタの増減は条件付きUPDATEで行い、上限超過と0未満を防ぐ
type PromotionRepository struct{ db *sqlx.DB }

func NewPromotionRepository(db *sqlx.DB) *PromotionRepository { return &PromotionRepository{db: db} }

func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	var usageLimit sql.NullInt64
	if p.UsageLimit != nil {
		usageLimit = sql.NullInt64{Int64: int64(*p.UsageLimit), Valid: true}
	}
	query := `INSERT INTO promotions (code, name, description, discount_type, discount_value, max_discount_amount, min_order_amount, start_date, end_date, usage_limit, used_count, max_usage_per_user, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query,
		p.Code, p.Name, p.Description, string(p.DiscountType), p.DiscountValue, p.MaxDiscountAmount, p.MinOrderAmount,
		p.StartDate, p.EndDate, usageLimit, p.UsedCount, p.MaxUsagePerUser, p.IsActive, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID); err != nil {
		if isUniqueViolation(err) {
			return promotion.ErrCodeAlreadyExists
		}
		return fmt.Errorf("プロモーション作成に失敗: %w", err)
	}
	return nil
}

func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*promotion.Promotion, error) {
	return r.getOne(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id)
}

func (r *PromotionRepository) GetByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	return r.getOne(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE code = $1`, promotion.NormalizeCode(code))
}

func (r *PromotionRepository) getOne(ctx context.Context, query string, arg string) (*promotion.Promotion, error) {
	var row promotionRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
			return nil, promotion.ErrPromotionNotFound
		}
		return nil, fmt.Errorf("プロモーション取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *PromotionRepository) ListActive(ctx context.Context, now time.Time, limit, offset int) ([]*promotion.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions
		WHERE is_active = TRUE AND start_date <= $1 AND end_date >= $1
		  AND (usage_limit IS NULL OR used_count < usage_limit)
		ORDER BY end_date, code LIMIT $2 OFFSET $3`
	var rows []promotionRow
	if err := r.db.SelectContext(ctx, &rows, query, now, limit, offset); err != nil {
		return nil, fmt.Errorf("プロモーション一覧取得に失敗: %w", err)
	}
	result := make([]*promotion.Promotion, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

func (r *PromotionRepository) IncrementUsage(ctx context.Context, tx transaction.Tx, promotionID string) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	result, err := t.ExecContext(ctx,
		`UPDATE promotions SET used_count = used_count + 1, updated_at = NOW() WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`,
		promotionID)
	if err != nil {
		return fmt.Errorf("プロモーション利用回数の更新に失敗: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return r.missingOr(ctx, t, promotionID, promotion.ErrUsageLimitReached)
	}
	return nil
}

func (r *PromotionRepository) DecrementUsage(ctx context.Context, tx transaction.Tx, promotionID string) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	result, err := t.ExecContext(ctx,
		`UPDATE promotions SET used_count = used_count - 1, updated_at = NOW() WHERE id = $1 AND used_count > 0`,
		promotionID)
	if err != nil {
		return fmt.Errorf("プロモーション利用回数の更新に失敗: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return r.missingOr(ctx, t, promotionID, promotion.ErrCounterUnderflow)
	}
	return nil
}

// missingOr は対象が存在しなければ ErrPromotionNotFound、存在すれば fallback を返す
func (r *PromotionRepository) missingOr(ctx context.Context, t *sqlx.Tx, promotionID string, fallback error) error {
	var exists bool
	if err := t.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM promotions WHERE id = $1)`, promotionID); err != nil {
		return fmt.Errorf("プロモーション存在確認に失敗: %w", err)
	}
	if !exists {
		return promotion.ErrPromotionNotFound
	}
	return fallback
}

func (r *PromotionRepository) GetUsage(ctx context.Context, promotionID, userID string) (*promotion.Usage, error) {
	var row promotionUsageRow
	err := r.db.GetContext(ctx, &row,
		`SELECT promotion_id, user_id, used_count, last_reservation_id, last_used_at FROM promotion_users WHERE promotion_id = $1 AND user_id = $2`,
		promotionID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &promotion.Usage{PromotionID: promotionID, UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロモーション利用状況の取得に失敗: %w", err)
	}
	return &promotion.Usage{
		PromotionID: row.PromotionID, UserID: row.UserID, UsedCount: row.UsedCount,
		LastReservationID: row.LastReservationID.String, LastUsedAt: row.LastUsedAt,
	}, nil
}

func (r *PromotionRepository) IncrementUserUsage(ctx context.Context, tx transaction.Tx, promotionID, userID, reservationID string, maxPerUser int, now time.Time) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO promotion_users (promotion_id, user_id, used_count, last_reservation_id, last_used_at)
		VALUES ($1, $2, 1, $3, $4)
		ON CONFLICT (promotion_id, user_id) DO UPDATE
		SET used_count = promotion_users.used_count + 1,
		    last_reservation_id = EXCLUDED.last_reservation_id,
		    last_used_at = EXCLUDED.last_used_at
		WHERE $5::int <= 0 OR promotion_users.used_count < $5::int`
	result, err := t.ExecContext(ctx, query, promotionID, userID, nullString(reservationID), now, maxPerUser)
	if err != nil {
		return fmt.Errorf("ユーザー別利用回数の更新に失敗: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return promotion.ErrUserLimitReached
	}
	return nil
}

func (r *PromotionRepository) DecrementUserUsage(ctx context.Context, tx transaction.Tx, promotionID, userID string) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	result, err := t.ExecContext(ctx,
		`UPDATE promotion_users SET used_count = used_count - 1 WHERE promotion_id = $1 AND user_id = $2 AND used_count > 0`,
		promotionID, userID)
	if err != nil {
		return fmt.Errorf("ユーザー別利用回数の更新に失敗: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return promotion.ErrCounterUnderflow
	}
	return nil
}

var _ promotion.Repository = (*PromotionRepository)(nil)
