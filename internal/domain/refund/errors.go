package refund

import "errors"

// Refund ドメインのエラー定義
var (
	ErrRefundNotFound           = errors.New("返金申請が見つかりません")
	ErrRefundAlreadyRequested   = errors.New("この予約には既に返金申請があります")
	ErrRefundNotPending         = errors.New("返金申請は処理待ちではありません")
	ErrRefundNotProcessing      = errors.New("返金申請はゲートウェイ返金の実行中ではありません")
	ErrRefundConflict           = errors.New("返金申請は他の処理によって更新されました")
	ErrNotRefundOwner           = errors.New("返金申請の所有者ではありません")
	ErrReservationIDRequired    = errors.New("予約IDは必須です")
	ErrUserIDRequired           = errors.New("ユーザーIDは必須です")
	ErrInvalidAmount            = errors.New("返金額は1以上である必要があります")
	ErrAmountExceedsPaid        = errors.New("返金額が支払額を超えています")
	ErrPayeeInfoIncomplete      = errors.New("口座名義・口座番号・銀行名は必須です")
	ErrPayeeInfoRequired        = errors.New("決済参照IDがない予約の返金には口座情報が必要です")
	ErrReservationNotRefundable = errors.New("この予約は返金対象ではありません")
)
