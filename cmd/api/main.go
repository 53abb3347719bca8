package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-hotel-reservation/internal/app"
	"github.com/sanosuguru/go-hotel-reservation/internal/config"
	"github.com/sanosuguru/go-hotel-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-hotel-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/tracing"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logger.Warn(".env の読み込みに失敗しました", zap.Error(err))
	}
	cfg := config.Load()
	log := logger.Init(cfg.Env, cfg.LogLevel, cfg.Tracing.ServiceName)
	defer logger.Sync()

	shutdownTracing, err := tracing.Init(cfg.Tracing.JaegerEndpoint, cfg.Tracing.ServiceName)
	if err != nil {
		log.Fatal("トレーシング初期化エラー", zap.Error(err))
	}

	// データベース
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal("データベース接続エラー", zap.Error(err))
	}
	defer db.Close()

	version, err := postgres.RunMigrations(db.DB, cfg.Server.MigrationsPath)
	if err != nil {
		log.Fatal("マイグレーションエラー", zap.Error(err))
	}
	log.Info("マイグレーション適用済み", zap.Uint("version", version))

	// Redis（任意）
	var rc *redis.Client
	if cfg.Redis.Enabled {
		rc, err = redisinfra.NewClient(&cfg.Redis)
		if err != nil {
			log.Fatal("Redis接続エラー", zap.Error(err))
		}
		defer rc.Close()
	}

	m := metrics.Init()
	a, err := app.New(cfg, db, rc, m)
	if err != nil {
		log.Fatal("アプリケーション構成エラー", zap.Error(err))
	}

	e := a.Echo
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.Metrics))

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	go a.Sweeper.Start(workerCtx)

	// Graceful shutdown
	go func() {
		log.Info("サーバー起動", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error("サーバーシャットダウンエラー", zap.Error(err))
	}
	a.Sweeper.Stop()
	cancelWorkers()
	if err := shutdownTracing(ctx); err != nil {
		log.Warn("トレーシング停止エラー", zap.Error(err))
	}

	log.Info("サーバーが正常にシャットダウンしました")
}
