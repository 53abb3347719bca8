package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation/internal/api"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/metrics"
)

// unmatchedRoute は未登録パスをまとめるラベル。パスをそのまま使うとラベルが際限なく増える
const unmatchedRoute = "unmatched"

// PrometheusMiddleware はHTTPメトリクスを収集するミドルウェア
// ハンドラーがエラーを返した場合はエラーハンドラーと同じ対応表でステータスを決める
func PrometheusMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = api.StatusOf(err)
			}
			m.ObserveHTTP(c.Request().Method, routeOf(c), status, time.Since(start))
			return err
		}
	}
}

// routeOf はルート定義（例: /api/v1/reservations/:id）を返す
func routeOf(c echo.Context) string {
	switch p := c.Path(); p {
	case "", "/*":
		return unmatchedRoute
	default:
		return p
	}
}
