package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// 所有者確認と削除・延長をアトミックに行う
var (
	releaseScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)
	extendScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// DistributedLock は SET NX で取得したロック。値に所有者トークンを持つ
type DistributedLock struct {
	client redis.Scripter
	key    string
	token  string
}

// LockManager は分散ロックを発行する
type LockManager struct {
	client *redis.Client
}

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

// AcquireLock はロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	lockKey := "lock:" + key
	token := uuid.NewString()

	ok, err := m.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return &DistributedLock{client: m.client, key: lockKey, token: token}, nil
}

// AcquireLockWithRetry はリトライ付きでロックを取得する
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (*DistributedLock, error) {
	var lastErr error = ErrLockNotAcquired
	for i := 0; i < maxRetries; i++ {
		lock, err := m.AcquireLock(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

// Release はロックを解放する
func (l *DistributedLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if n == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// Extend はロックの有効期限を延長する
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if n == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// RoomLocker は部屋タイプごとの分散ロックで予約判定を直列化する
type RoomLocker struct {
	manager    *LockManager
	ttl        time.Duration
	maxRetries int
	retryDelay time.Duration
	metrics    *metrics.Metrics
}

func NewRoomLocker(manager *LockManager, ttl time.Duration, m *metrics.Metrics) *RoomLocker {
	return &RoomLocker{manager: manager, ttl: ttl, maxRetries: 30, retryDelay: 50 * time.Millisecond, metrics: m}
}

// Lock は部屋タイプIDをソート順にロックする（デッドロック防止）
func (r *RoomLocker) Lock(ctx context.Context, roomIDs []string) (inventory.Release, error) {
	start := time.Now()
	acquired := make([]*DistributedLock, 0, len(roomIDs))
	releaseAll := func(ctx context.Context) {
		for i := len(acquired) - 1; i >= 0; i-- {
			if err := acquired[i].Release(ctx); err != nil {
				logger.Warn("部屋ロックの解放に失敗", zap.String("key", acquired[i].key), zap.Error(err))
			}
		}
	}

	for _, id := range inventory.LockOrder(roomIDs) {
		lock, err := r.manager.AcquireLockWithRetry(ctx, "room:"+id, r.ttl, r.maxRetries, r.retryDelay)
		if err != nil {
			releaseAll(ctx)
			r.metrics.ObserveLock("acquire", start, err)
			if errors.Is(err, ErrLockNotAcquired) {
				return nil, fmt.Errorf("%w: %s", inventory.ErrRoomBusy, id)
			}
			return nil, err
		}
		acquired = append(acquired, lock)
	}
	r.metrics.ObserveLock("acquire", start, nil)

	return func(ctx context.Context) {
		releaseStart := time.Now()
		releaseAll(ctx)
		r.metrics.ObserveLock("release", releaseStart, nil)
	}, nil
}

var _ inventory.Locker = (*RoomLocker)(nil)
