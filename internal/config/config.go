package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション設定を表す
type Config struct {
	Env       string
	LogLevel  string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Booking   BookingConfig
	Payment   PaymentConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
	Metrics   MetricsConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MigrationsPath string
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// BookingConfig は予約ライフサイクルの設定
type BookingConfig struct {
	Timezone             string
	UnpaidGracePeriod    time.Duration
	SweepInterval        time.Duration
	AvailabilityCacheTTL time.Duration
	LockTTL              time.Duration
}

// PaymentConfig は決済ゲートウェイ（Razorpay）の設定
type PaymentConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	// MinorUnit は1通貨単位あたりの最小単位数（INRなら100）
	MinorUnit   int
	CheckoutURL string
}

// RateLimitConfig は予約作成のレート制限設定（ulule/limiter 形式 例: "20-M"）
type RateLimitConfig struct {
	Booking string
}

// TracingConfig はトレーシング設定
type TracingConfig struct {
	JaegerEndpoint string
	ServiceName    string
}

// MetricsConfig は /metrics のBasic認証設定。両方未設定なら認証しない
type MetricsConfig struct {
	User     string
	Password string
}

// AuthEnabled は認証が有効かどうかを返す
func (c *MetricsConfig) AuthEnabled() bool {
	return c.User != "" && c.Password != ""
}

// LoadDotEnv は .env ファイルがあれば環境変数に読み込む
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load は環境変数から設定を読み込む
func Load() *Config {
	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", ""),
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "hotel_reservation"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Booking: BookingConfig{
			Timezone:             getEnv("BOOKING_TIMEZONE", "Asia/Ho_Chi_Minh"),
			UnpaidGracePeriod:    getDurationEnv("UNPAID_GRACE_PERIOD", 5*time.Minute),
			SweepInterval:        getDurationEnv("SWEEP_INTERVAL", time.Minute),
			AvailabilityCacheTTL: getDurationEnv("AVAILABILITY_CACHE_TTL", 30*time.Second),
			LockTTL:              getDurationEnv("ROOM_LOCK_TTL", 10*time.Second),
		},
		Payment: PaymentConfig{
			KeyID:         getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
			Currency:      getEnv("PAYMENT_CURRENCY", "INR"),
			MinorUnit:     getIntEnv("PAYMENT_MINOR_UNIT", 100),
			CheckoutURL:   getEnv("PAYMENT_CHECKOUT_URL", "https://checkout.example.com/pay"),
		},
		RateLimit: RateLimitConfig{
			Booking: getEnv("BOOKING_RATE_LIMIT", "20-M"),
		},
		Tracing: TracingConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
			ServiceName:    getEnv("SERVICE_NAME", "hotel-reservation"),
		},
		Metrics: MetricsConfig{
			User:     getEnv("METRICS_USER", ""),
			Password: getEnv("METRICS_PASSWORD", ""),
		},
	}

	// PaaS形式の接続URLがあれば個別設定より優先する
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		if db, ok := parseDatabaseURL(raw); ok {
			db.MaxOpenConns = cfg.Database.MaxOpenConns
			db.MaxIdleConns = cfg.Database.MaxIdleConns
			db.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
			cfg.Database = db
		}
	}
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		parseRedisURL(raw, &cfg.Redis)
	}
	return cfg
}

// Location は予約日付の解釈に使うタイムゾーンを返す。不正な値はUTCにフォールバックする
func (c *BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Enabled はゲートウェイの認証情報が設定されているかを返す
func (c *PaymentConfig) Enabled() bool {
	return c.KeyID != "" && c.KeySecret != ""
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func parseDatabaseURL(raw string) (DatabaseConfig, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return DatabaseConfig{}, false
	}
	password, _ := u.User.Password()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "require"
	}
	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, true
}

func parseRedisURL(raw string, cfg *RedisConfig) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}
	cfg.Host = u.Hostname()
	if port := u.Port(); port != "" {
		cfg.Port = port
	}
	if password, ok := u.User.Password(); ok {
		cfg.Password = password
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		if i, err := strconv.Atoi(db); err == nil {
			cfg.DB = i
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
