package application

import (
	"context"
	"time"
)

// AvailabilityCache は空室照会結果のキャッシュ。予約判定では参照しない
type AvailabilityCache interface {
	Get(ctx context.Context, roomID string, from, to time.Time) (int, bool, error)
	Set(ctx context.Context, roomID string, from, to time.Time, units int, ttl time.Duration) error
	Invalidate(ctx context.Context, roomIDs ...string) error
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// normalizePage はページングの既定値と上限を適用する
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
