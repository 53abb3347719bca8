package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
)

func TestInventoryService_AvailableUnits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	h := env.seedHotel(t, "owner-1")
	room := env.seedRoom(t, h, 1000, 5)
	env.book(t, "user-1", h, room, 2, date(2025, 6, 1), date(2025, 6, 4))
	env.book(t, "user-2", h, room, 1, date(2025, 6, 3), date(2025, 6, 6))

	tests := []struct {
		name     string
		from, to int
		want     int
	}{
		{name: "重なる泊がピーク", from: 1, to: 6, want: 2},
		{name: "1件のみの期間", from: 1, to: 3, want: 3},
		{name: "チェックアウト日からは空き", from: 6, to: 8, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.inventory.AvailableUnits(ctx, room.ID, date(2025, 6, tt.from), date(2025, 6, tt.to))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Available)
			assert.Equal(t, tt.want, got.Bookable)
			assert.Equal(t, 5, got.TotalQuantity)
		})
	}

	_, err := env.inventory.AvailableUnits(ctx, room.ID, date(2025, 6, 2), date(2025, 6, 2))
	assert.ErrorIs(t, err, reservation.ErrInvalidDateRange)

	_, err = env.inventory.AvailableUnits(ctx, "missing", date(2025, 6, 1), date(2025, 6, 2))
	assert.ErrorIs(t, err, hotel.ErrRoomNotFound)
}

func TestInventoryService_WithoutCache(t *testing.T) {
	env := newTestEnv(t)
	h := env.seedHotel(t, "owner-1")
	room := env.seedRoom(t, h, 1000, 2)
	inv := NewInventoryService(env.hotelRepo, env.resRepo, nil, 0)

	got, err := inv.AvailableUnits(context.Background(), room.ID, date(2025, 6, 1), date(2025, 6, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Available)
	assert.False(t, got.Cached)
	inv.Invalidate(context.Background(), room.ID)
}

func TestInventoryService_NegativeAvailabilityIsClamped(t *testing.T) {
	env := newTestEnv(t)
	h := env.seedHotel(t, "owner-1")
	room := env.seedRoom(t, h, 1000, 2)
	res := env.book(t, "user-1", h, room, 2, date(2025, 6, 1), date(2025, 6, 2))

	// 部屋数が減らされた状態を再現する
	env.store.mu.Lock()
	env.store.rooms[room.ID].TotalQuantity = 1
	env.store.mu.Unlock()

	got, err := env.inventory.AvailableUnits(context.Background(), room.ID, res.CheckInDate, res.CheckOutDate)
	require.NoError(t, err)
	assert.Equal(t, -1, got.Available)
	assert.Equal(t, 0, got.Bookable)
}
