package refund

import (
	"strings"
	"time"
)

// Status は返金申請の状態
type Status string

const (
	StatusPending Status = "PENDING"
	// StatusProcessing はゲートウェイ返金の実行中。承認者が1人だけになるよう、呼び出し前にこの状態を確保する
	StatusProcessing Status = "PROCESSING"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
)

// Source は返金申請の発生元
type Source string

const (
	SourceManual Source = "MANUAL"
	// SourceAuto はチェックイン期限切れによりスイープが作成した申請
	SourceAuto Source = "AUTO"
	// SourceLatePayment はキャンセル後に決済完了通知が届いた予約への申請
	SourceLatePayment Source = "LATE_PAYMENT"
	// SourceStalePayment は予約内容の変更で無効になったチェックアウトへの入金に対する申請。
	// 予約ごとの件数制限を受けず、決済参照IDごとに1件
	SourceStalePayment Source = "STALE_PAYMENT"
)

// PayeeInfo は返金先の銀行口座情報
type PayeeInfo struct {
	AccountHolderName string
	AccountNumber     string
	BankName          string
}

// Validate は口座情報の検証を行う
func (p PayeeInfo) Validate() error {
	if strings.TrimSpace(p.AccountHolderName) == "" ||
		strings.TrimSpace(p.AccountNumber) == "" ||
		strings.TrimSpace(p.BankName) == "" {
		return ErrPayeeInfoIncomplete
	}
	return nil
}

// RefundRequest は返金申請エンティティ
type RefundRequest struct {
	ID            string
	ReservationID string
	UserID        string
	Amount        int
	Status        Status
	Source        Source
	Reason        string
	Payee         *PayeeInfo
	// PaymentReference は返金対象の決済ID。空なら予約の決済IDを使う
	PaymentReference string
	GatewayRefundID  string
	RequestedAt      time.Time
	DecidedAt        *time.Time
	UpdatedAt        time.Time
	Version          int
}

func newRequest(reservationID, userID string, amount int, source Source, reason string, now time.Time) *RefundRequest {
	return &RefundRequest{
		ReservationID: reservationID,
		UserID:        userID,
		Amount:        amount,
		Status:        StatusPending,
		Source:        source,
		Reason:        reason,
		RequestedAt:   now,
		UpdatedAt:     now,
		Version:       1,
	}
}

// NewManualRequest はユーザーによる返金申請を作成する
func NewManualRequest(reservationID, userID string, amount int, reason string, payee *PayeeInfo, now time.Time) *RefundRequest {
	r := newRequest(reservationID, userID, amount, SourceManual, reason, now)
	r.Payee = payee
	return r
}

// NewAutoRequest は口座情報未登録の自動返金申請を作成する
func NewAutoRequest(reservationID, userID string, amount int, now time.Time) *RefundRequest {
	return newRequest(reservationID, userID, amount, SourceAuto, "チェックイン期限切れによる自動キャンセル", now)
}

// NewLatePaymentRequest はキャンセル済み予約への入金に対する返金申請を作成する
func NewLatePaymentRequest(reservationID, userID string, amount int, paymentRef string, now time.Time) *RefundRequest {
	r := newRequest(reservationID, userID, amount, SourceLatePayment, "キャンセル後の入金", now)
	r.PaymentReference = paymentRef
	return r
}

// NewStalePaymentRequest は変更前のチェックアウトへの入金に対する返金申請を作成する
func NewStalePaymentRequest(reservationID, userID string, amount int, paymentRef string, now time.Time) *RefundRequest {
	r := newRequest(reservationID, userID, amount, SourceStalePayment, "予約内容変更前の注文への入金", now)
	r.PaymentReference = paymentRef
	return r
}

// PerReservation は予約ごとに1件までの制限を受ける申請かを返す
func (r *RefundRequest) PerReservation() bool {
	return r.Source != SourceStalePayment
}

// Validate は返金申請の検証を行う
func (r *RefundRequest) Validate() error {
	if r.ReservationID == "" {
		return ErrReservationIDRequired
	}
	if r.UserID == "" {
		return ErrUserIDRequired
	}
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	if r.Payee != nil {
		return r.Payee.Validate()
	}
	return nil
}

// AwaitingPayeeInfo は口座情報の登録待ちかを返す
func (r *RefundRequest) AwaitingPayeeInfo() bool {
	return r.Status == StatusPending && r.Payee == nil
}

// SubmitPayeeInfo は口座情報を登録する。ステータスは PENDING のまま
func (r *RefundRequest) SubmitPayeeInfo(p PayeeInfo, now time.Time) error {
	if r.Status != StatusPending {
		return ErrRefundNotPending
	}
	if err := p.Validate(); err != nil {
		return err
	}
	r.Payee = &p
	r.UpdatedAt = now
	return nil
}

// StartProcessing はゲートウェイ返金の実行権を確保する
func (r *RefundRequest) StartProcessing(now time.Time) error {
	if r.Status != StatusPending {
		return ErrRefundNotPending
	}
	r.Status = StatusProcessing
	r.UpdatedAt = now
	return nil
}

// AbortProcessing はゲートウェイ返金の失敗時に PENDING へ戻す
func (r *RefundRequest) AbortProcessing(now time.Time) error {
	if r.Status != StatusProcessing {
		return ErrRefundNotProcessing
	}
	r.Status = StatusPending
	r.UpdatedAt = now
	return nil
}

// Approve は返金を承認済みにする。PENDING（口座振込）と PROCESSING（ゲートウェイ返金）から遷移できる
func (r *RefundRequest) Approve(gatewayRefundID string, now time.Time) error {
	if r.Status != StatusPending && r.Status != StatusProcessing {
		return ErrRefundNotPending
	}
	r.Status = StatusApproved
	r.GatewayRefundID = gatewayRefundID
	r.DecidedAt = &now
	r.UpdatedAt = now
	return nil
}

// Reject は返金を却下する
func (r *RefundRequest) Reject(reason string, now time.Time) error {
	if r.Status != StatusPending {
		return ErrRefundNotPending
	}
	r.Status = StatusRejected
	if reason != "" {
		r.Reason = reason
	}
	r.DecidedAt = &now
	r.UpdatedAt = now
	return nil
}
