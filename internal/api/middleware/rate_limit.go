package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
)

// NewRateLimiter は "20-M" 形式のレートからリミッターを作成する。store が nil ならプロセス内メモリを使う
func NewRateLimiter(rate string, store limiter.Store) (*limiter.Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("レート制限の書式が不正です: %w", err)
	}
	if store == nil {
		store = memory.NewStore()
	}
	return limiter.New(store, r), nil
}

// RateLimit はユーザー単位（X-User-ID、なければ接続元IP）でリクエスト数を制限するミドルウェア
// ストア障害時は制限せずに通す
func RateLimit(l *limiter.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get("X-User-ID")
			if key == "" {
				key = c.RealIP()
			}

			lc, err := l.Get(c.Request().Context(), key)
			if err != nil {
				logger.Warn("レート制限の確認に失敗", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(lc.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(lc.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(lc.Reset, 10))

			if lc.Reached {
				return echo.NewHTTPError(http.StatusTooManyRequests, "リクエストが多すぎます。しばらくしてから再試行してください")
			}
			return next(c)
		}
	}
}
