package reservation

import (
	"context"
	"time"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
// tx を受け取る読み取りメソッドは tx が nil の場合トランザクション外で実行する
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, r *Reservation) error

	// Update は予約を更新する（楽観的ロック、トランザクション必須）
	// バージョンが一致しない場合は ErrReservationConflict を返す
	Update(ctx context.Context, tx transaction.Tx, r *Reservation) error

	GetByID(ctx context.Context, id string) (*Reservation, error)

	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*Reservation, error)

	GetByHotelID(ctx context.Context, hotelID string, limit, offset int) ([]*Reservation, error)

	// GetByPaymentHandle はチェックアウトIDから予約を引く。なければ ErrReservationNotFound
	GetByPaymentHandle(ctx context.Context, handle string) (*Reservation, error)

	// FindUnpaidByUser はユーザーの未払い予約を返す。なければ ErrReservationNotFound
	FindUnpaidByUser(ctx context.Context, tx transaction.Tx, userID string) (*Reservation, error)

	// ListCapacityHolding は指定部屋タイプを含み [from, to) と重なる在庫占有中の予約を返す
	ListCapacityHolding(ctx context.Context, tx transaction.Tx, roomIDs []string, from, to time.Time) ([]*Reservation, error)

	// ListByStatuses は指定ステータスの予約を返す（スイープ用）
	ListByStatuses(ctx context.Context, statuses []Status) ([]*Reservation, error)
}
