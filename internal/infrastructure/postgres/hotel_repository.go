package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
)

type hotelRow struct {
	ID          string    `db:"id"`
	OwnerID     string    `db:"owner_id"`
	Name        string    `db:"name"`
	Address     string    `db:"address"`
	AdminStatus string    `db:"admin_status"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	Version     int       `db:"version"`
}

func (r *hotelRow) toEntity() *hotel.Hotel {
	return &hotel.Hotel{
		ID: r.ID, OwnerID: r.OwnerID, Name: r.Name, Address: r.Address,
		AdminStatus: hotel.AdminStatus(r.AdminStatus), Status: hotel.ActiveStatus(r.Status),
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

type roomRow struct {
	ID            string    `db:"id"`
	HotelID       string    `db:"hotel_id"`
	Name          string    `db:"name"`
	Price         int       `db:"price"`
	TotalQuantity int       `db:"total_quantity"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
	Version       int       `db:"version"`
}

func (r *roomRow) toEntity() *hotel.Room {
	return &hotel.Room{
		ID: r.ID, HotelID: r.HotelID, Name: r.Name, Price: r.Price,
		TotalQuantity: r.TotalQuantity, Status: hotel.ActiveStatus(r.Status),
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

type serviceRow struct {
	ID        string    `db:"id"`
	HotelID   string    `db:"hotel_id"`
	Name      string    `db:"name"`
	Price     int       `db:"price"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	Version   int       `db:"version"`
}

func (r *serviceRow) toEntity() *hotel.Service {
	return &hotel.Service{
		ID: r.ID, HotelID: r.HotelID, Name: r.Name, Price: r.Price,
		Status:    hotel.ActiveStatus(r.Status),
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

const (
	hotelColumns   = `id, owner_id, name, address, admin_status, status, created_at, updated_at, version`
	roomColumns    = `id, hotel_id, name, price, total_quantity, status, created_at, updated_at, version`
	serviceColumns = `id, hotel_id, name, price, status, created_at, updated_at, version`
)

type HotelRepository struct{ db *sqlx.DB }

func NewHotelRepository(db *sqlx.DB) *HotelRepository { return &HotelRepository{db: db} }

func (r *HotelRepository) CreateHotel(ctx context.Context, h *hotel.Hotel) error {
	query := `INSERT INTO hotels (owner_id, name, address, admin_status, status, created_at, updated_at, version) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, h.OwnerID, h.Name, h.Address, string(h.AdminStatus), string(h.Status), h.CreatedAt, h.UpdatedAt, h.Version).Scan(&h.ID); err != nil {
		return fmt.Errorf("ホテル作成に失敗: %w", err)
	}
	return nil
}

func (r *HotelRepository) GetHotel(ctx context.Context, id string) (*hotel.Hotel, error) {
	var row hotelRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+hotelColumns+` FROM hotels WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
			return nil, hotel.ErrHotelNotFound
		}
		return nil, fmt.Errorf("ホテル取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *HotelRepository) UpdateHotel(ctx context.Context, h *hotel.Hotel) error {
	query := `UPDATE hotels SET name = $1, address = $2, admin_status = $3, status = $4, updated_at = $5, version = version + 1 WHERE id = $6 AND version = $7`
	result, err := r.db.ExecContext(ctx, query, h.Name, h.Address, string(h.AdminStatus), string(h.Status), h.UpdatedAt, h.ID, h.Version)
	if err != nil {
		return fmt.Errorf("ホテル更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return hotel.ErrVersionConflict
	}
	h.Version++
	return nil
}

func (r *HotelRepository) CreateRoom(ctx context.Context, room *hotel.Room) error {
	query := `INSERT INTO rooms (hotel_id, name, price, total_quantity, status, created_at, updated_at, version) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, room.HotelID, room.Name, room.Price, room.TotalQuantity, string(room.Status), room.CreatedAt, room.UpdatedAt, room.Version).Scan(&room.ID); err != nil {
		return fmt.Errorf("部屋タイプ作成に失敗: %w", err)
	}
	return nil
}

func (r *HotelRepository) GetRoom(ctx context.Context, id string) (*hotel.Room, error) {
	var row roomRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
			return nil, hotel.ErrRoomNotFound
		}
		return nil, fmt.Errorf("部屋タイプ取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// GetRoomsByIDs は存在する部屋タイプのみを返す。欠けているIDの判定は呼び出し側で行う
func (r *HotelRepository) GetRoomsByIDs(ctx context.Context, ids []string) ([]*hotel.Room, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []roomRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+roomColumns+` FROM rooms WHERE id = ANY($1::uuid[]) ORDER BY id`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("部屋タイプ一覧取得に失敗: %w", err)
	}
	rooms := make([]*hotel.Room, len(rows))
	for i := range rows {
		rooms[i] = rows[i].toEntity()
	}
	return rooms, nil
}

func (r *HotelRepository) UpdateRoom(ctx context.Context, room *hotel.Room) error {
	query := `UPDATE rooms SET name = $1, price = $2, total_quantity = $3, status = $4, updated_at = $5, version = version + 1 WHERE id = $6 AND version = $7`
	result, err := r.db.ExecContext(ctx, query, room.Name, room.Price, room.TotalQuantity, string(room.Status), room.UpdatedAt, room.ID, room.Version)
	if err != nil {
		return fmt.Errorf("部屋タイプ更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return hotel.ErrVersionConflict
	}
	room.Version++
	return nil
}

// LockRooms は部屋タイプ行をID順に排他ロックする
func (r *HotelRepository) LockRooms(ctx context.Context, tx transaction.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	t, err := mustTx(tx)
	if err != nil {
		return err
	}
	var locked []string
	if err := t.SelectContext(ctx, &locked, `SELECT id FROM rooms WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`, pq.Array(ids)); err != nil {
		return fmt.Errorf("部屋タイプのロックに失敗: %w", err)
	}
	if len(locked) != len(ids) {
		return hotel.ErrRoomNotFound
	}
	return nil
}

func (r *HotelRepository) CreateService(ctx context.Context, s *hotel.Service) error {
	query := `INSERT INTO hotel_services (hotel_id, name, price, status, created_at, updated_at, version) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, s.HotelID, s.Name, s.Price, string(s.Status), s.CreatedAt, s.UpdatedAt, s.Version).Scan(&s.ID); err != nil {
		return fmt.Errorf("付帯サービス作成に失敗: %w", err)
	}
	return nil
}

func (r *HotelRepository) GetService(ctx context.Context, id string) (*hotel.Service, error) {
	var row serviceRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+serviceColumns+` FROM hotel_services WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidInput(err) {
			return nil, hotel.ErrServiceNotFound
		}
		return nil, fmt.Errorf("付帯サービス取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *HotelRepository) GetServicesByIDs(ctx context.Context, ids []string) ([]*hotel.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []serviceRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+serviceColumns+` FROM hotel_services WHERE id = ANY($1::uuid[]) ORDER BY id`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("付帯サービス一覧取得に失敗: %w", err)
	}
	services := make([]*hotel.Service, len(rows))
	for i := range rows {
		services[i] = rows[i].toEntity()
	}
	return services, nil
}

func (r *HotelRepository) UpdateService(ctx context.Context, s *hotel.Service) error {
	query := `UPDATE hotel_services SET name = $1, price = $2, status = $3, updated_at = $4, version = version + 1 WHERE id = $5 AND version = $6`
	result, err := r.db.ExecContext(ctx, query, s.Name, s.Price, string(s.Status), s.UpdatedAt, s.ID, s.Version)
	if err != nil {
		return fmt.Errorf("付帯サービス更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return hotel.ErrVersionConflict
	}
	s.Version++
	return nil
}

var _ hotel.Repository = (*HotelRepository)(nil)
