package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
)

// Sweeper は時刻起点の状態遷移をまとめて適用するインターフェース
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (reservation.SweepReport, error)
}

// ReservationSweeper は一定間隔でスイープを実行するワーカー
type ReservationSweeper struct {
	sweeper  Sweeper
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewReservationSweeper は新しいスイーパーを作成
func NewReservationSweeper(s Sweeper, interval time.Duration) *ReservationSweeper {
	return &ReservationSweeper{
		sweeper:  s,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はスイーパーを開始する。停止中に溜まった遷移を反映するため起動直後に1回実行する
func (w *ReservationSweeper) Start(ctx context.Context) {
	logger.Info("予約スイーパー開始", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("予約スイーパー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("予約スイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止し、実行中のスイープの完了を待つ
func (w *ReservationSweeper) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *ReservationSweeper) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("スイープ開始")

	report, err := w.sweeper.Sweep(ctx, w.now())
	if err != nil {
		log.Error("スイープ失敗", zap.Error(err),
			zap.Int("transitioned", report.Transitioned()),
			zap.Int("failed", report.Failed))
		return
	}

	if report.Transitioned() > 0 || report.Failed > 0 {
		log.Info("スイープ完了",
			zap.Int("scanned", report.Scanned),
			zap.Int("cancelled", report.Cancelled),
			zap.Int("refunded", report.Refunded),
			zap.Int("checked_in", report.CheckedIn),
			zap.Int("checked_out", report.CheckedOut),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
	} else {
		log.Debug("遷移対象の予約なし", zap.Int("scanned", report.Scanned))
	}
}
