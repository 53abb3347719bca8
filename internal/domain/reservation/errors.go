package reservation

import (
	"errors"
	"fmt"
)

// Reservation ドメインのエラー定義
var (
	ErrReservationNotFound  = errors.New("予約が見つかりません")
	ErrReservationConflict  = errors.New("予約は他の処理によって更新されました")
	ErrReservationNotUnpaid = errors.New("未払いの予約のみ変更できます")
	ErrNotReservationOwner  = errors.New("予約の所有者ではありません")
	ErrUserIDRequired       = errors.New("ユーザーIDは必須です")
	ErrHotelIDRequired      = errors.New("ホテルIDは必須です")
	ErrRoomsRequired        = errors.New("部屋タイプを1つ以上指定してください")
	ErrDuplicateRoom        = errors.New("同じ部屋タイプが重複しています")
	ErrInvalidQuantity      = errors.New("数量は1以上である必要があります")
	ErrInvalidDateRange     = errors.New("チェックアウト日はチェックイン日より後である必要があります")
	ErrServiceDatesRequired = errors.New("サービス利用日を指定してください")
	ErrServiceDateOutOfStay = errors.New("サービス利用日が宿泊期間外です")
	ErrPaymentRefRequired   = errors.New("決済参照IDは必須です")
	ErrPriceChanged         = errors.New("料金が変更されました。再度ご確認ください")

	// ErrCapacityExceeded は空室数を超える予約要求を表す
	ErrCapacityExceeded = errors.New("空室数を超えています")
	// ErrInvalidTransition は許可されていない状態遷移を表す
	ErrInvalidTransition = errors.New("許可されていない状態遷移です")
	// ErrReservationAlreadyCancelled はキャンセル済み予約への再キャンセルを表す
	ErrReservationAlreadyCancelled = errors.New("予約は既にキャンセルされています")
)

// CapacityError は部屋タイプごとの空室不足を表す
type CapacityError struct {
	RoomID    string
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("部屋タイプ %s の空室が不足しています（要求: %d, 空室: %d）", e.RoomID, e.Requested, e.Available)
}

// Is は ErrCapacityExceeded との比較を可能にする
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// TransitionError は状態遷移の失敗を表す
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	if e.From == StatusCancelled && e.To == StatusCancelled {
		return ErrReservationAlreadyCancelled.Error()
	}
	return fmt.Sprintf("予約ステータスを %s から %s に変更できません", e.From, e.To)
}

// Is は ErrInvalidTransition（キャンセル済みの場合は ErrReservationAlreadyCancelled も）との比較を可能にする
func (e *TransitionError) Is(target error) bool {
	if target == ErrInvalidTransition {
		return true
	}
	return target == ErrReservationAlreadyCancelled && e.From == StatusCancelled
}
