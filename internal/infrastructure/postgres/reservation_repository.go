package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
)

type reservationRow struct {
	ID                string         `db:"id"`
	UserID            string         `db:"user_id"`
	HotelID           string         `db:"hotel_id"`
	CheckInDate       time.Time      `db:"check_in_date"`
	CheckOutDate      time.Time      `db:"check_out_date"`
	Status            string         `db:"status"`
	TotalPrice        int            `db:"total_price"`
	PromotionID       sql.NullString `db:"promotion_id"`
	PromotionDiscount int            `db:"promotion_discount"`
	FinalPrice        int            `db:"final_price"`
	PaymentHandle     string         `db:"payment_handle"`
	PaymentReference  string         `db:"payment_reference"`
	CancelledAt       *time.Time     `db:"cancelled_at"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
	Version           int            `db:"version"`
}

type reservationRoomRow struct {
	ReservationID string `db:"reservation_id"`
	RoomID        string `db:"room_id"`
	Quantity      int    `db:"quantity"`
	UnitPrice     int    `db:"unit_price"`
}

type reservationServiceRow struct {
	ReservationID string         `db:"reservation_id"`
	ServiceID     string         `db:"service_id"`
	Quantity      int            `db:"quantity"`
	Dates         pq.StringArray `db:"dates"`
	UnitPrice     int            `db:"unit_price"`
}

const reservationColumns = `r.id, r.user_id, r.hotel_id, r.check_in_date, r.check_out_date, r.status, r.total_price, r.promotion_id, r.promotion_discount, r.final_price, r.payment_handle, r.payment_reference, r.cancelled_at, r.created_at, r.updated_at, r.version`

// ReservationRepository は予約と明細（部屋・付帯サービス）を永続化する。
// 宿泊日は DATE 型で保存し、読み出し時に予約タイムゾーンの0時へ戻す
type ReservationRepository struct {
	db  *sqlx.DB
	loc *time.Location
}

func NewReservationRepository(db *sqlx.DB, loc *time.Location) *ReservationRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &ReservationRepository{db: db, loc: loc}
}

func (r *ReservationRepository) Create(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO reservations (user_id, hotel_id, check_in_date, check_out_date, status, total_price, promotion_id, promotion_discount, final_price, payment_handle, payment_reference, cancelled_at, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`
	if err := t.QueryRowContext(ctx, query,
		res.UserID, res.HotelID, dateParam(res.CheckInDate), dateParam(res.CheckOutDate), string(res.Status),
		res.TotalPrice, nullString(res.PromotionID), res.PromotionDiscount, res.FinalPrice,
		res.PaymentHandle, res.PaymentReference, res.CancelledAt, res.CreatedAt, res.UpdatedAt, res.Version,
	).Scan(&res.ID); err != nil {
		if isUniqueViolation(err) {
			return reservation.ErrReservationConflict
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return r.insertLines(ctx, t, res)
}

// Update はバージョン一致時のみ更新する。未払い予約は明細も差し替える
func (r *ReservationRepository) Update(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE reservations SET hotel_id = $1, check_in_date = $2, check_out_date = $3, status = $4, total_price = $5, promotion_id = $6, promotion_discount = $7, final_price = $8, payment_handle = $9, payment_reference = $10, cancelled_at = $11, updated_at = $12, version = version + 1
		WHERE id = $13 AND version = $14`
	result, err := t.ExecContext(ctx, query,
		res.HotelID, dateParam(res.CheckInDate), dateParam(res.CheckOutDate), string(res.Status),
		res.TotalPrice, nullString(res.PromotionID), res.PromotionDiscount, res.FinalPrice,
		res.PaymentHandle, res.PaymentReference, res.CancelledAt, res.UpdatedAt, res.ID, res.Version,
	)
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return reservation.ErrReservationConflict
	}
	res.Version++

	if res.Status != reservation.StatusNotPaid {
		return nil
	}
	if _, err := t.ExecContext(ctx, `DELETE FROM reservation_rooms WHERE reservation_id = $1`, res.ID); err != nil {
		return fmt.Errorf("予約明細削除に失敗: %w", err)
	}
	if _, err := t.ExecContext(ctx, `DELETE FROM reservation_services WHERE reservation_id = $1`, res.ID); err != nil {
		return fmt.Errorf("予約明細削除に失敗: %w", err)
	}
	return r.insertLines(ctx, t, res)
}

func (r *ReservationRepository) insertLines(ctx context.Context, t *sqlx.Tx, res *reservation.Reservation) error {
	for _, l := range res.Rooms {
		if _, err := t.ExecContext(ctx, `INSERT INTO reservation_rooms (reservation_id, room_id, quantity, unit_price) VALUES ($1, $2, $3, $4)`,
			res.ID, l.RoomID, l.Quantity, l.UnitPrice); err != nil {
			return fmt.Errorf("予約部屋関連付けに失敗: %w", err)
		}
	}
	for _, s := range res.Services {
		dates := make([]string, len(s.Dates))
		for i, d := range s.Dates {
			dates[i] = dateParam(d)
		}
		if _, err := t.ExecContext(ctx, `INSERT INTO reservation_services (reservation_id, service_id, quantity, dates, unit_price) VALUES ($1, $2, $3, $4::date[], $5)`,
			res.ID, s.ServiceID, s.Quantity, pq.Array(dates), s.UnitPrice); err != nil {
			return fmt.Errorf("予約サービス関連付けに失敗: %w", err)
		}
	}
	return nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	var row reservationRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+reservationColumns+` FROM reservations r WHERE r.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	list, err := r.withLines(ctx, r.db, []reservationRow{row})
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

func (r *ReservationRepository) GetByPaymentHandle(ctx context.Context, handle string) (*reservation.Reservation, error) {
	if handle == "" {
		return nil, reservation.ErrReservationNotFound
	}
	list, err := r.selectList(ctx, r.db, `SELECT `+reservationColumns+` FROM reservations r WHERE r.payment_handle = $1 ORDER BY r.created_at DESC LIMIT 1`, handle)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, reservation.ErrReservationNotFound
	}
	return list[0], nil
}

func (r *ReservationRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*reservation.Reservation, error) {
	return r.selectList(ctx, r.db, `SELECT `+reservationColumns+` FROM reservations r WHERE r.user_id = $1 ORDER BY r.created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
}

func (r *ReservationRepository) GetByHotelID(ctx context.Context, hotelID string, limit, offset int) ([]*reservation.Reservation, error) {
	return r.selectList(ctx, r.db, `SELECT `+reservationColumns+` FROM reservations r WHERE r.hotel_id = $1 ORDER BY r.created_at DESC LIMIT $2 OFFSET $3`, hotelID, limit, offset)
}

func (r *ReservationRepository) FindUnpaidByUser(ctx context.Context, tx transaction.Tx, userID string) (*reservation.Reservation, error) {
	q := pick(r.db, tx)
	query := `SELECT ` + reservationColumns + ` FROM reservations r WHERE r.user_id = $1 AND r.status = $2`
	if tx != nil {
		query += ` FOR UPDATE`
	}
	var row reservationRow
	if err := sqlx.GetContext(ctx, q, &row, query, userID, string(reservation.StatusNotPaid)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("未払い予約取得に失敗: %w", err)
	}
	list, err := r.withLines(ctx, q, []reservationRow{row})
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

func (r *ReservationRepository) ListCapacityHolding(ctx context.Context, tx transaction.Tx, roomIDs []string, from, to time.Time) ([]*reservation.Reservation, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations r
		WHERE r.status = ANY($1)
		  AND r.check_in_date < $3 AND r.check_out_date > $2
		  AND EXISTS (SELECT 1 FROM reservation_rooms rr WHERE rr.reservation_id = r.id AND rr.room_id = ANY($4::uuid[]))
		ORDER BY r.created_at`
	return r.selectList(ctx, pick(r.db, tx), query,
		pq.Array(statusStrings(reservation.CapacityHoldingStatuses())), dateParam(from), dateParam(to), pq.Array(roomIDs))
}

func (r *ReservationRepository) ListByStatuses(ctx context.Context, statuses []reservation.Status) ([]*reservation.Reservation, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	return r.selectList(ctx, r.db, `SELECT `+reservationColumns+` FROM reservations r WHERE r.status = ANY($1) ORDER BY r.created_at`,
		pq.Array(statusStrings(statuses)))
}

func (r *ReservationRepository) selectList(ctx context.Context, q queryer, query string, args ...interface{}) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return r.withLines(ctx, q, rows)
}

// withLines は明細をまとめて読み込み予約エンティティを組み立てる
func (r *ReservationRepository) withLines(ctx context.Context, q queryer, rows []reservationRow) ([]*reservation.Reservation, error) {
	if len(rows) == 0 {
		return []*reservation.Reservation{}, nil
	}
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}

	var roomRows []reservationRoomRow
	if err := sqlx.SelectContext(ctx, q, &roomRows,
		`SELECT reservation_id, room_id, quantity, unit_price FROM reservation_rooms WHERE reservation_id = ANY($1::uuid[]) ORDER BY room_id`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("予約部屋取得に失敗: %w", err)
	}
	var serviceRows []reservationServiceRow
	if err := sqlx.SelectContext(ctx, q, &serviceRows,
		`SELECT reservation_id, service_id, quantity, dates::text[] AS dates, unit_price FROM reservation_services WHERE reservation_id = ANY($1::uuid[]) ORDER BY service_id`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("予約サービス取得に失敗: %w", err)
	}

	rooms := make(map[string][]reservation.RoomLine)
	for _, rr := range roomRows {
		rooms[rr.ReservationID] = append(rooms[rr.ReservationID], reservation.RoomLine{
			RoomID: rr.RoomID, Quantity: rr.Quantity, UnitPrice: rr.UnitPrice,
		})
	}
	services := make(map[string][]reservation.ServiceLine)
	for _, sr := range serviceRows {
		dates := make([]time.Time, 0, len(sr.Dates))
		for _, s := range sr.Dates {
			d, err := reservation.ParseDate(s, r.loc)
			if err != nil {
				return nil, fmt.Errorf("サービス利用日の解析に失敗: %w", err)
			}
			dates = append(dates, d)
		}
		services[sr.ReservationID] = append(services[sr.ReservationID], reservation.ServiceLine{
			ServiceID: sr.ServiceID, Quantity: sr.Quantity, Dates: dates, UnitPrice: sr.UnitPrice,
		})
	}

	result := make([]*reservation.Reservation, len(rows))
	for i := range rows {
		result[i] = r.toEntity(&rows[i], rooms[rows[i].ID], services[rows[i].ID])
	}
	return result, nil
}

func (r *ReservationRepository) toEntity(row *reservationRow, rooms []reservation.RoomLine, services []reservation.ServiceLine) *reservation.Reservation {
	return &reservation.Reservation{
		ID:                row.ID,
		UserID:            row.UserID,
		HotelID:           row.HotelID,
		Rooms:             rooms,
		Services:          services,
		CheckInDate:       reservation.CalendarDate(row.CheckInDate, r.loc),
		CheckOutDate:      reservation.CalendarDate(row.CheckOutDate, r.loc),
		Status:            reservation.Status(row.Status),
		TotalPrice:        row.TotalPrice,
		PromotionID:       row.PromotionID.String,
		PromotionDiscount: row.PromotionDiscount,
		FinalPrice:        row.FinalPrice,
		PaymentHandle:     row.PaymentHandle,
		PaymentReference:  row.PaymentReference,
		CancelledAt:       row.CancelledAt,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
		Version:           row.Version,
	}
}

// dateParam は宿泊日を DATE カラムへ渡す文字列にする
func dateParam(t time.Time) string {
	return t.Format(reservation.DateLayout)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func statusStrings(statuses []reservation.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

var _ reservation.Repository = (*ReservationRepository)(nil)
