package hotel

import "errors"

// Hotel ドメインのエラー定義
var (
	ErrHotelNotFound        = errors.New("ホテルが見つかりません")
	ErrRoomNotFound         = errors.New("部屋タイプが見つかりません")
	ErrServiceNotFound      = errors.New("サービスが見つかりません")
	ErrHotelNotBookable     = errors.New("ホテルは予約を受け付けていません")
	ErrRoomInactive         = errors.New("部屋タイプは予約を受け付けていません")
	ErrServiceInactive      = errors.New("サービスは利用できません")
	ErrRoomNotInHotel       = errors.New("部屋タイプは指定ホテルに属していません")
	ErrServiceNotInHotel    = errors.New("サービスは指定ホテルに属していません")
	ErrHotelAlreadyApproved = errors.New("ホテルは既に承認されています")
	ErrNotHotelOwner        = errors.New("ホテルのオーナーではありません")
	ErrOwnerIDRequired      = errors.New("オーナーIDは必須です")
	ErrHotelIDRequired      = errors.New("ホテルIDは必須です")
	ErrHotelNameRequired    = errors.New("ホテル名は必須です")
	ErrRoomNameRequired     = errors.New("部屋タイプ名は必須です")
	ErrServiceNameRequired  = errors.New("サービス名は必須です")
	ErrInvalidPrice         = errors.New("価格は0以上である必要があります")
	ErrInvalidQuantity      = errors.New("部屋数は1以上である必要があります")
	ErrInvalidStatus        = errors.New("無効なステータスです")
	ErrVersionConflict      = errors.New("他の更新と競合しました")
)

// IsInactiveResource は予約対象が無効化されていることを示すエラーかを返す
func IsInactiveResource(err error) bool {
	return errors.Is(err, ErrRoomInactive) ||
		errors.Is(err, ErrServiceInactive) ||
		errors.Is(err, ErrHotelNotBookable)
}
