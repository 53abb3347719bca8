package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/metrics"
)

// maxBodySize は予約・Webhookのリクエストボディの上限
const maxBodySize = "1M"

// SetupMiddleware は全ルート共通のミドルウェアを登録する。
// ログは Recover より外側に置き、パニックも500として記録する。m が nil ならHTTPメトリクスは記録しない
func SetupMiddleware(e *echo.Echo, m *metrics.Metrics) {
	e.Use(RequestIDMiddleware())
	e.Use(RequestLogger())
	e.Use(middleware.Recover())
	if m != nil {
		e.Use(PrometheusMiddleware(m))
	}

	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{echo.GET, echo.HEAD, echo.PUT, echo.PATCH, echo.POST, echo.DELETE},
		AllowHeaders:  []string{echo.HeaderContentType, "X-User-ID", "X-Razorpay-Signature"},
		ExposeHeaders: []string{echo.HeaderXRequestID, "X-RateLimit-Remaining"},
	}))
}
