package postgres

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
)

var errTxRequired = errors.New("トランザクションが必要です")

// sqlTx は *sqlx.Tx を transaction.Tx として扱うための型。Commit/Rollback は埋め込みから得る
type sqlTx struct {
	*sqlx.Tx
}

// TxManager は予約・在庫・プロモーション・返金の更新をまとめるトランザクションを開始する
type TxManager struct {
	db *sqlx.DB
}

func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// Begin は READ COMMITTED のトランザクションを開始する。
// 在庫の整合性は行ロック（SELECT ... FOR UPDATE）で担保する
func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return sqlTx{Tx: tx}, nil
}

// queryer は *sqlx.DB と *sqlx.Tx の共通部分
type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

func unwrap(tx transaction.Tx) *sqlx.Tx {
	if t, ok := tx.(sqlTx); ok {
		return t.Tx
	}
	return nil
}

// pick は読み取り系で使う。tx があればそれを、なければ db を返す
func pick(db *sqlx.DB, tx transaction.Tx) queryer {
	if t := unwrap(tx); t != nil {
		return t
	}
	return db
}

// mustTx は書き込み系で使う。tx が nil や別実装なら errTxRequired
func mustTx(tx transaction.Tx) (*sqlx.Tx, error) {
	if t := unwrap(tx); t != nil {
		return t, nil
	}
	return nil, errTxRequired
}

var _ transaction.Manager = (*TxManager)(nil)
