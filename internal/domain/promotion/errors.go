package promotion

import "errors"

// Promotion ドメインのエラー定義
var (
	ErrPromotionNotFound    = errors.New("プロモーションが見つかりません")
	ErrCodeAlreadyExists    = errors.New("同じコードのプロモーションが既に存在します")
	ErrCodeRequired         = errors.New("プロモーションコードは必須です")
	ErrNameRequired         = errors.New("プロモーション名は必須です")
	ErrInvalidDiscountType  = errors.New("無効な割引種別です")
	ErrInvalidDiscountValue = errors.New("無効な割引値です")
	ErrInvalidPeriod        = errors.New("終了日は開始日より後である必要があります")
	ErrInvalidUsageLimit    = errors.New("利用上限は0以上である必要があります")
	ErrPromotionInactive    = errors.New("プロモーションは無効です")
	ErrPromotionNotStarted  = errors.New("プロモーションは開始前です")
	ErrPromotionExpired     = errors.New("プロモーションは期限切れです")
	ErrUsageLimitReached    = errors.New("プロモーションの利用上限に達しました")
	ErrUserLimitReached     = errors.New("このユーザーはプロモーションの利用上限に達しました")
	ErrMinOrderNotMet       = errors.New("最低注文金額に達していません")

	// ErrCounterUnderflow は利用回数が0の状態で減算しようとしたことを表す（整合性違反）
	ErrCounterUnderflow = errors.New("プロモーション利用回数の整合性違反: 0未満への減算")
)

// IsRejection は予約者に返すべき利用不可エラーかを返す
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrPromotionNotFound, ErrPromotionInactive, ErrPromotionNotStarted, ErrPromotionExpired,
		ErrUsageLimitReached, ErrUserLimitReached, ErrMinOrderNotMet,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
