// Package app は設定と接続済みの依存先からHTTPサーバーとワーカーを組み立てる
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/api"
	"github.com/sanosuguru/go-hotel-reservation/internal/api/handler"
	"github.com/sanosuguru/go-hotel-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-hotel-reservation/internal/application"
	"github.com/sanosuguru/go-hotel-reservation/internal/config"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-hotel-reservation/internal/infrastructure/razorpay"
	redisinfra "github.com/sanosuguru/go-hotel-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-hotel-reservation/internal/worker"
)

// App は組み立て済みのサーバーとバックグラウンドワーカー
type App struct {
	Echo         *echo.Echo
	Sweeper      *worker.ReservationSweeper
	Reservations *application.ReservationService
}

// New は依存先を配線する。rc が nil の場合はプロセス内ロック・メモリ上のレート制限で動作し、
// 空室照会キャッシュは使わない。m が nil の場合はHTTPメトリクスを記録しない
func New(cfg *config.Config, db *sqlx.DB, rc *redis.Client, m *metrics.Metrics) (*App, error) {
	loc := cfg.Booking.Location()

	hotelRepo := postgres.NewHotelRepository(db)
	reservationRepo := postgres.NewReservationRepository(db, loc)
	promotionRepo := postgres.NewPromotionRepository(db)
	refundRepo := postgres.NewRefundRepository(db)
	txManager := postgres.NewTxManager(db)

	var (
		locker    inventory.Locker
		cache     application.AvailabilityCache
		rateStore limiter.Store
	)
	if rc != nil {
		locker = redisinfra.NewRoomLocker(redisinfra.NewLockManager(rc), cfg.Booking.LockTTL, m)
		cache = redisinfra.NewAvailabilityCache(rc)
		store, err := redisinfra.NewRateLimitStore(rc, "booking")
		if err != nil {
			return nil, fmt.Errorf("レート制限ストアの作成に失敗しました: %w", err)
		}
		rateStore = store
	} else {
		logger.Warn("Redis未使用: プロセス内ロックで動作します（単一インスタンス限定）")
		locker = application.NewLocalRoomLocker()
	}

	var gateway payment.Gateway
	if cfg.Payment.Enabled() {
		gateway = razorpay.NewGateway(
			razorpay.NewSDKClient(cfg.Payment.KeyID, cfg.Payment.KeySecret),
			razorpay.Config{
				WebhookSecret: cfg.Payment.WebhookSecret,
				Currency:      cfg.Payment.Currency,
				MinorUnit:     cfg.Payment.MinorUnit,
				CheckoutURL:   cfg.Payment.CheckoutURL,
			},
			m,
		)
	} else {
		logger.Warn("決済ゲートウェイ未設定: チェックアウトと返金実行は利用できません")
	}

	inventoryService := application.NewInventoryService(hotelRepo, reservationRepo, cache, cfg.Booking.AvailabilityCacheTTL)
	promotionService := application.NewPromotionService(promotionRepo)
	hotelService := application.NewHotelService(hotelRepo)
	sweepPolicy := reservation.SweepPolicy{
		GracePeriod: cfg.Booking.UnpaidGracePeriod,
		Location:    loc,
	}
	bookingService := application.NewBookingService(txManager, hotelRepo, reservationRepo, promotionService, inventoryService, locker, m, sweepPolicy)
	reservationService := application.NewReservationService(txManager, reservationRepo, hotelRepo, refundRepo,
		promotionService, inventoryService, m, sweepPolicy)
	paymentService := application.NewPaymentService(txManager, reservationRepo, refundRepo,
		promotionService, inventoryService, gateway, cfg.Payment.Currency, m)
	refundService := application.NewRefundService(txManager, refundRepo, reservationRepo, hotelRepo, gateway)

	bookingLimiter, err := middleware.NewRateLimiter(cfg.RateLimit.Booking, rateStore)
	if err != nil {
		return nil, fmt.Errorf("レート制限の設定が不正です: %w", err)
	}

	checks := []handler.HealthCheck{{
		Name:  "postgres",
		Check: func(ctx context.Context) error { return postgres.Ping(ctx, db) },
	}}
	if rc != nil {
		checks = append(checks, handler.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisinfra.Ping(ctx, rc) },
		})
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e, m)

	handler.RegisterRoutes(e, &handler.Handlers{
		Health:       handler.NewHealthHandler(checks...),
		Booking:      handler.NewBookingHandler(bookingService, loc),
		Availability: handler.NewAvailabilityHandler(inventoryService, loc),
		Reservation:  handler.NewReservationHandler(reservationService),
		Payment:      handler.NewPaymentHandler(paymentService),
		Refund:       handler.NewRefundHandler(refundService),
		Promotion:    handler.NewPromotionHandler(promotionService),
		Hotel:        handler.NewHotelHandler(hotelService),
	}, middleware.RateLimit(bookingLimiter))

	logger.Info("アプリケーションを構成しました",
		zap.String("timezone", loc.String()),
		zap.Bool("redis", rc != nil),
		zap.Bool("payment", gateway != nil),
	)

	return &App{
		Echo:         e,
		Sweeper:      worker.NewReservationSweeper(reservationService, cfg.Booking.SweepInterval),
		Reservations: reservationService,
	}, nil
}
