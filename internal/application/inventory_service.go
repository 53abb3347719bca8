package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
)

// Availability は部屋タイプの空室照会結果
type Availability struct {
	RoomID        string    `json:"room_id"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	TotalQuantity int       `json:"total_quantity"`
	// Available は総数からピーク占有数を引いた値。不変条件が破れている場合は負になり得る
	Available int  `json:"available"`
	Bookable  int  `json:"bookable"`
	Cached    bool `json:"cached"`
}

// InventoryService は既存予約から空室数を導出する
type InventoryService struct {
	hotelRepo       hotel.Repository
	reservationRepo reservation.Repository
	cache           AvailabilityCache
	cacheTTL        time.Duration
}

func NewInventoryService(hr hotel.Repository, rr reservation.Repository, cache AvailabilityCache, cacheTTL time.Duration) *InventoryService {
	return &InventoryService{hotelRepo: hr, reservationRepo: rr, cache: cache, cacheTTL: cacheTTL}
}

// AvailableUnits は [checkIn, checkOut) に対する部屋タイプの空室数を返す。
// 照会用のためキャッシュを優先する
func (s *InventoryService) AvailableUnits(ctx context.Context, roomID string, checkIn, checkOut time.Time) (*Availability, error) {
	if !checkIn.Before(checkOut) {
		return nil, reservation.ErrInvalidDateRange
	}
	room, err := s.hotelRepo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	result := &Availability{RoomID: roomID, CheckIn: checkIn, CheckOut: checkOut, TotalQuantity: room.TotalQuantity}

	if s.cache != nil {
		units, ok, err := s.cache.Get(ctx, roomID, checkIn, checkOut)
		if err != nil {
			logger.Warn("空室キャッシュの取得に失敗", zap.String("room_id", roomID), zap.Error(err))
		} else if ok {
			result.Available = units
			result.Bookable = inventory.Bookable(units)
			result.Cached = true
			return result, nil
		}
	}

	available, err := s.availableUnits(ctx, nil, room, checkIn, checkOut, "")
	if err != nil {
		return nil, err
	}
	result.Available = available
	result.Bookable = inventory.Bookable(available)

	if s.cache != nil {
		if err := s.cache.Set(ctx, roomID, checkIn, checkOut, available, s.cacheTTL); err != nil {
			logger.Warn("空室キャッシュの保存に失敗", zap.String("room_id", roomID), zap.Error(err))
		}
	}
	return result, nil
}

// availableUnits は予約データから空室数を導出する。excludeID の予約は数えない
func (s *InventoryService) availableUnits(ctx context.Context, tx transaction.Tx, room *hotel.Room, from, to time.Time, excludeID string) (int, error) {
	holding, err := s.reservationRepo.ListCapacityHolding(ctx, tx, []string{room.ID}, from, to)
	if err != nil {
		return 0, fmt.Errorf("占有中の予約取得に失敗: %w", err)
	}
	occ := inventory.NightlyOccupancy(room.ID, from, to, inventory.Excluding(holding, excludeID))
	return inventory.Available(room.TotalQuantity, occ), nil
}

// checkCapacity はトランザクション内で予約明細の全部屋タイプについて空室を再計算し判定する
func (s *InventoryService) checkCapacity(ctx context.Context, tx transaction.Tx, rooms map[string]*hotel.Room, r *reservation.Reservation, excludeID string) error {
	holding, err := s.reservationRepo.ListCapacityHolding(ctx, tx, r.RoomIDs(), r.CheckInDate, r.CheckOutDate)
	if err != nil {
		return fmt.Errorf("占有中の予約取得に失敗: %w", err)
	}
	holding = inventory.Excluding(holding, excludeID)
	for _, line := range r.Rooms {
		room := rooms[line.RoomID]
		occ := inventory.NightlyOccupancy(room.ID, r.CheckInDate, r.CheckOutDate, holding)
		if err := inventory.Check(room.ID, line.Quantity, inventory.Available(room.TotalQuantity, occ)); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate は空室キャッシュを無効化する。失敗は記録のみ
func (s *InventoryService) Invalidate(ctx context.Context, roomIDs ...string) {
	if s == nil || s.cache == nil || len(roomIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, roomIDs...); err != nil {
		logger.Warn("空室キャッシュの無効化に失敗", zap.Strings("room_ids", roomIDs), zap.Error(err))
	}
}
