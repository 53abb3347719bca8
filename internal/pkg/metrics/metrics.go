package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 予約作成の結果ラベル
const (
	BookingSuccess       = "success"
	BookingCapacity      = "capacity_exceeded"
	BookingLockFailed    = "lock_failed"
	BookingPromoRejected = "promotion_rejected"
	BookingInvalid       = "invalid"
	BookingError         = "error"
)

// Metrics はアプリケーションのメトリクスを管理する。
// ヘルパーメソッドは nil レシーバでも安全に呼び出せる
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約作成の試行数（result）
	BookingsTotal *prometheus.CounterVec

	// 予約ステータス遷移数（from, to, trigger: user/owner/sweeper/webhook）
	ReservationTransitionsTotal *prometheus.CounterVec

	// 部屋ロックの取得時間（operation, status）
	DistributedLockDuration *prometheus.HistogramVec

	// スイープ1回あたりの処理時間
	SweepDuration prometheus.Histogram

	// 決済ゲートウェイ呼び出し数（operation, status）
	GatewayRequestsTotal *prometheus.CounterVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Total number of booking attempts by result",
			},
			[]string{"result"},
		),
		ReservationTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservation_transitions_total",
				Help: "Total number of reservation status transitions",
			},
			[]string{"from", "to", "trigger"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on room lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sweep_duration_seconds",
				Help:    "Duration of one reservation sweep pass",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		GatewayRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_gateway_requests_total",
				Help: "Total number of payment gateway calls",
			},
			[]string{"operation", "status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.ReservationTransitionsTotal,
		m.DistributedLockDuration,
		m.SweepDuration,
		m.GatewayRequestsTotal,
	)

	return m
}

// ObserveHTTP はHTTPリクエストの件数とレイテンシを記録する
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveBooking は予約作成の結果を記録する
func (m *Metrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.BookingsTotal.WithLabelValues(result).Inc()
}

// ObserveTransition はステータス遷移を記録する
func (m *Metrics) ObserveTransition(from, to, trigger string) {
	if m == nil {
		return
	}
	m.ReservationTransitionsTotal.WithLabelValues(from, to, trigger).Inc()
}

// ObserveLock はロック操作の所要時間を記録する
func (m *Metrics) ObserveLock(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, statusLabel(err)).Observe(time.Since(start).Seconds())
}

// ObserveSweep はスイープの所要時間を記録する
func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
}

// ObserveGateway は決済ゲートウェイ呼び出しの結果を記録する
func (m *Metrics) ObserveGateway(operation string, err error) {
	if m == nil {
		return
	}
	m.GatewayRequestsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
