package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache は空室数照会の結果をキャッシュする。予約判定には使わない。
// 部屋タイプごとの世代番号をキーに含め、無効化は世代を進めるだけで行う
type AvailabilityCache struct {
	client *redis.Client
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

// Get はキャッシュ済みの空室数を返す。ヒットしなければ ok=false
func (c *AvailabilityCache) Get(ctx context.Context, roomID string, from, to time.Time) (int, bool, error) {
	gen, err := c.generation(ctx, roomID)
	if err != nil {
		return 0, false, err
	}
	val, err := c.client.Get(ctx, c.availabilityKey(roomID, gen, from, to)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, true, nil
}

// Set は空室数をキャッシュに保存する
func (c *AvailabilityCache) Set(ctx context.Context, roomID string, from, to time.Time, units int, ttl time.Duration) error {
	gen, err := c.generation(ctx, roomID)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.availabilityKey(roomID, gen, from, to), units, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は部屋タイプの世代を進め、既存のキャッシュを参照不能にする
func (c *AvailabilityCache) Invalidate(ctx context.Context, roomIDs ...string) error {
	if len(roomIDs) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for _, id := range roomIDs {
		pipe.Incr(ctx, c.generationKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) generation(ctx context.Context, roomID string) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(roomID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("キャッシュ世代の取得に失敗: %w", err)
	}
	return gen, nil
}

func (c *AvailabilityCache) generationKey(roomID string) string {
	return fmt.Sprintf("availability:gen:%s", roomID)
}

func (c *AvailabilityCache) availabilityKey(roomID string, gen int64, from, to time.Time) string {
	return fmt.Sprintf("availability:%s:%d:%s:%s", roomID, gen, from.Format("2006-01-02"), to.Format("2006-01-02"))
}
