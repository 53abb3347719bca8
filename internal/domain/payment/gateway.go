// Package payment は外部決済ゲートウェイとの境界を定義する
package payment

import (
	"context"
	"errors"
)

var (
	// ErrGatewayFailure は決済・返金呼び出しの失敗（タイムアウト、サーキットオープン含む）
	ErrGatewayFailure = errors.New("決済ゲートウェイの呼び出しに失敗しました")
	// ErrInvalidSignature はWebhook署名の検証失敗
	ErrInvalidSignature = errors.New("Webhook署名が不正です")
	// ErrMalformedWebhook はWebhookペイロードの解析失敗
	ErrMalformedWebhook = errors.New("Webhookペイロードが不正です")
)

// CheckoutRequest はチェックアウト作成要求
type CheckoutRequest struct {
	ReservationID string
	Amount        int
	Currency      string
}

// Checkout はゲートウェイが発行したチェックアウト
type Checkout struct {
	Handle      string
	RedirectURL string
}

// EventKind はWebhookイベントの種類
type EventKind string

const (
	EventPaymentConfirmed EventKind = "PAYMENT_CONFIRMED"
	EventPaymentFailed    EventKind = "PAYMENT_FAILED"
	// EventIgnored は予約ライフサイクルに関係しないイベント
	EventIgnored EventKind = "IGNORED"
)

// WebhookEvent は署名検証済みのWebhookイベント
type WebhookEvent struct {
	ID               string
	Kind             EventKind
	ReservationID    string
	CheckoutHandle   string
	PaymentReference string
	Amount           int
	RawType          string
}

// Gateway は決済ゲートウェイアダプタのインターフェース
type Gateway interface {
	// CreateCheckout はチェックアウト（注文）を作成する
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	// ParseWebhook は署名を検証しイベントを解析する
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
	// Refund は決済参照IDに対して返金を実行し、返金IDを返す
	Refund(ctx context.Context, paymentReference string, amount int) (string, error)
}
