package redis

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewRateLimitStore はレート制限のカウンタをRedisに保持するストアを作成する
// 複数インスタンスで同じ制限を共有するために使う
func NewRateLimitStore(client *redis.Client, prefix string) (limiter.Store, error) {
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   "rate_limiter:" + prefix,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("レート制限ストアの作成に失敗: %w", err)
	}
	return store, nil
}
