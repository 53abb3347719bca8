package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-hotel-reservation/internal/config"
)

// PostgreSQL のエラーコード
const (
	codeUniqueViolation = "23505"
	codeInvalidText     = "22P02"
)

// NewConnection はPostgreSQLへ接続し、設定に従って接続プールを構成する
func NewConnection(cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました (%s:%s/%s): %w", cfg.Host, cfg.Port, cfg.DBName, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// Ping はヘルスチェック用にデータベース接続を確認する
func Ping(ctx context.Context, db *sqlx.DB) error {
	return db.PingContext(ctx)
}

func pqCode(err error) pq.ErrorCode {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation はプロモーションコードや返金申請の重複を検出する
func isUniqueViolation(err error) bool {
	return pqCode(err) == codeUniqueViolation
}

// isInvalidInput は不正な形式のUUIDをIDとして渡された場合に true
func isInvalidInput(err error) bool {
	return pqCode(err) == codeInvalidText
}
