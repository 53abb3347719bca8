package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/refund"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
)

type refundRow struct {
	ID                string         `db:"id"`
	ReservationID     string         `db:"reservation_id"`
	UserID            string         `db:"user_id"`
	Amount            int            `db:"amount"`
	Status            string         `db:"status"`
	Source            string         `db:"source"`
	Reason            string         `db:"reason"`
	AccountHolderName sql.NullString `db:"account_holder_name"`
	AccountNumber     sql.NullString `db:"account_number"`
	BankName          sql.NullString `db:"bank_name"`
	PaymentReference  string         `db:"payment_reference"`
	GatewayRefundID   string         `db:"gateway_refund_id"`
	RequestedAt       time.Time      `db:"requested_at"`
	DecidedAt         *time.Time     `db:"decided_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
	Version           int            `db:"version"`
}

func (r *refundRow) toEntity() *refund.RefundRequest {
	req := &refund.RefundRequest{
		ID: r.ID, ReservationID: r.ReservationID, UserID: r.UserID, Amount: r.Amount,
		Status: refund.Status(r.Status), Source: refund.Source(r.Source), Reason: r.Reason,
		PaymentReference: r.PaymentReference, GatewayRefundID: r.GatewayRefundID, RequestedAt: r.RequestedAt, DecidedAt: r.DecidedAt,
		UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
	if r.AccountHolderName.Valid {
		req.Payee = &refund.PayeeInfo{
			AccountHolderName: r.AccountHolderName.String,
			AccountNumber:     r.AccountNumber.String,
			BankName:          r.BankName.String,
		}
	}
	return req
}

// payeeParams は口座情報をカラム値に分解する。未登録なら全て NULL
func payeeParams(p *refund.PayeeInfo) (sql.NullString, sql.NullString, sql.NullString) {
	if p == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: p.AccountHolderName, Valid: true},
		sql.NullString{String: p.AccountNumber, Valid: true},
		sql.NullString{String: p.BankName, Valid: true}
}

const refundColumns = `id, reservation_id, user_id, amount, status, source, reason, account_holder_name, account_number, bank_name, payment_reference, gateway_refund_id, requested_at, decided_at, updated_at, version`

type RefundRepository struct{ db *sqlx.DB }

func NewRefundRepository(db *sqlx.DB) *RefundRepository { return &RefundRepository{db: db} }

func (r *RefundRepository) Create(ctx context.Context, tx transaction.Tx, req *refund.RefundRequest) error {
	holder, number, bank := payeeParams(req.Payee)
	query := `INSERT INTO refund_requests (reservation_id, user_id, amount, status, source, reason, account_holder_name, account_number, bank_name, payment_reference, gateway_refund_id, requested_at, decided_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`
	row := pick(r.db, tx).QueryRowxContext(ctx, query,
		req.ReservationID, req.UserID, req.Amount, string(req.Status), string(req.Source), req.Reason,
		holder, number, bank, req.PaymentReference, req.GatewayRefundID, req.RequestedAt, req.DecidedAt, req.UpdatedAt, req.Version)
	if err := row.Scan(&req.ID); err != nil {
		if isUniqueViolation(err) {
			return refund.ErrRefundAlreadyRequested
		}
		return fmt.Errorf("返金申請作成に失敗: %w", err)
	}
	return nil
}

func (r *RefundRepository) Update(ctx context.Context, tx transaction.Tx, req *refund.RefundRequest) error {
	holder, number, bank := payeeParams(req.Payee)
	query := `UPDATE refund_requests SET status = $1, reason = $2, account_holder_name = $3, account_number = $4, bank_name = $5, gateway_refund_id = $6, decided_at = $7, updated_at = $8, version = version + 1
		WHERE id = $9 AND version = $10`
	result, err := pick(r.db, tx).ExecContext(ctx, query,
		string(req.Status), req.Reason, holder, number, bank, req.GatewayRefundID, req.DecidedAt, req.UpdatedAt, req.ID, req.Version)
	if err != nil {
		return fmt.Errorf("返金申請更新に失敗: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return refund.ErrRefundConflict
	}
	req.Version++
	return nil
}

func (r *RefundRepository) GetByID(ctx context.Context, id string) (*refund.RefundRequest, error) {
	var row refundRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+refundColumns+` FROM refund_requests WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
			return nil, refund.ErrRefundNotFound
		}
		return nil, fmt.Errorf("返金申請取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *RefundRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*refund.RefundRequest, error) {
	var rows []refundRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+refundColumns+` FROM refund_requests WHERE user_id = $1 ORDER BY requested_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset); err != nil {
		return nil, fmt.Errorf("返金申請一覧取得に失敗: %w", err)
	}
	result := make([]*refund.RefundRequest, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

func (r *RefundRepository) FindActiveByReservation(ctx context.Context, tx transaction.Tx, reservationID string) (*refund.RefundRequest, error) {
	var row refundRow
	err := sqlx.GetContext(ctx, pick(r.db, tx), &row,
		`SELECT `+refundColumns+` FROM refund_requests WHERE reservation_id = $1 AND status <> $2 AND source <> $3`,
		reservationID, string(refund.StatusRejected), string(refund.SourceStalePayment))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
			return nil, refund.ErrRefundNotFound
		}
		return nil, fmt.Errorf("返金申請取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *RefundRepository) FindByPaymentReference(ctx context.Context, tx transaction.Tx, paymentRef string) (*refund.RefundRequest, error) {
	var row refundRow
	err := sqlx.GetContext(ctx, pick(r.db, tx), &row,
		`SELECT `+refundColumns+` FROM refund_requests WHERE payment_reference = $1 AND source = $2`,
		paymentRef, string(refund.SourceStalePayment))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, refund.ErrRefundNotFound
		}
		return nil, fmt.Errorf("返金申請取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

var _ refund.Repository = (*RefundRepository)(nil)
