// Package razorpay は決済ゲートウェイ境界をRazorpayで実装する
package razorpay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/metrics"
)

// APIClient はゲートウェイが使うRazorpay SDKの操作
type APIClient interface {
	CreateOrder(data map[string]interface{}) (map[string]interface{}, error)
	RefundPayment(paymentID string, amount int, data map[string]interface{}) (map[string]interface{}, error)
	VerifyWebhookSignature(body, signature, secret string) bool
}

// SDKClient は razorpay-go による APIClient 実装
type SDKClient struct {
	client *razorpay.Client
}

func NewSDKClient(keyID, keySecret string) *SDKClient {
	return &SDKClient{client: razorpay.NewClient(keyID, keySecret)}
}

func (c *SDKClient) CreateOrder(data map[string]interface{}) (map[string]interface{}, error) {
	return c.client.Order.Create(data, nil)
}

func (c *SDKClient) RefundPayment(paymentID string, amount int, data map[string]interface{}) (map[string]interface{}, error) {
	return c.client.Payment.Refund(paymentID, amount, data, nil)
}

func (c *SDKClient) VerifyWebhookSignature(body, signature, secret string) bool {
	return utils.VerifyWebhookSignature(body, signature, secret)
}

// Config はゲートウェイの設定
type Config struct {
	WebhookSecret string
	Currency      string
	// MinorUnit は1通貨単位あたりの最小単位数（INRなら100）
	MinorUnit   int
	CheckoutURL string
}

// Gateway は payment.Gateway の実装。外向き呼び出しはサーキットブレーカー越しに行う
type Gateway struct {
	client  APIClient
	cfg     Config
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

func NewGateway(client APIClient, cfg Config, m *metrics.Metrics) *Gateway {
	if cfg.MinorUnit <= 0 {
		cfg.MinorUnit = 1
	}
	return &Gateway{client: client, cfg: cfg, cb: newCircuitBreaker("razorpay"), metrics: m}
}

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 2
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("サーキットブレーカーの状態が変化",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// CreateCheckout は予約IDをメモに持つ注文を作成する
func (g *Gateway) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	currency := req.Currency
	if currency == "" {
		currency = g.cfg.Currency
	}
	data := map[string]interface{}{
		"amount":   req.Amount * g.cfg.MinorUnit,
		"currency": currency,
		"receipt":  req.ReservationID,
		"notes":    map[string]interface{}{"reservation_id": req.ReservationID},
	}

	res, err := g.call(ctx, "checkout", func() (map[string]interface{}, error) {
		return g.client.CreateOrder(data)
	})
	if err != nil {
		return nil, err
	}
	orderID, _ := res["id"].(string)
	if orderID == "" {
		return nil, fmt.Errorf("%w: 注文IDがレスポンスにありません", payment.ErrGatewayFailure)
	}
	return &payment.Checkout{Handle: orderID, RedirectURL: g.redirectURL(orderID)}, nil
}

// Refund は決済IDに対して返金し、返金IDを返す
func (g *Gateway) Refund(ctx context.Context, paymentReference string, amount int) (string, error) {
	res, err := g.call(ctx, "refund", func() (map[string]interface{}, error) {
		return g.client.RefundPayment(paymentReference, amount*g.cfg.MinorUnit, map[string]interface{}{"speed": "normal"})
	})
	if err != nil {
		return "", err
	}
	refundID, _ := res["id"].(string)
	if refundID == "" {
		return "", fmt.Errorf("%w: 返金IDがレスポンスにありません", payment.ErrGatewayFailure)
	}
	return refundID, nil
}

func (g *Gateway) call(ctx context.Context, op string, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		g.metrics.ObserveGateway(op, err)
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayFailure, err)
	}
	out, err := g.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	g.metrics.ObserveGateway(op, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", payment.ErrGatewayFailure, op, err)
	}
	res, _ := out.(map[string]interface{})
	return res, nil
}

func (g *Gateway) redirectURL(orderID string) string {
	if g.cfg.CheckoutURL == "" {
		return ""
	}
	u, err := url.Parse(g.cfg.CheckoutURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("order_id", orderID)
	u.RawQuery = q.Encode()
	return u.String()
}

type webhookBody struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity entity `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity entity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

type entity struct {
	ID      string            `json:"id"`
	OrderID string            `json:"order_id"`
	Amount  int               `json:"amount"`
	Status  string            `json:"status"`
	Notes   map[string]string `json:"notes"`
}

// UnmarshalJSON はRazorpayが空のnotesを配列で送る場合を許容する
func (e *entity) UnmarshalJSON(b []byte) error {
	type plain struct {
		ID      string          `json:"id"`
		OrderID string          `json:"order_id"`
		Amount  int             `json:"amount"`
		Status  string          `json:"status"`
		Notes   json.RawMessage `json:"notes"`
	}
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	e.ID, e.OrderID, e.Amount, e.Status = p.ID, p.OrderID, p.Amount, p.Status
	e.Notes = map[string]string{}
	if len(p.Notes) > 0 && p.Notes[0] == '{' {
		return json.Unmarshal(p.Notes, &e.Notes)
	}
	return nil
}

// ParseWebhook は署名を検証し、予約ライフサイクルに関係するイベントに変換する
func (g *Gateway) ParseWebhook(body []byte, signature string) (*payment.WebhookEvent, error) {
	if signature == "" || !g.client.VerifyWebhookSignature(string(body), signature, g.cfg.WebhookSecret) {
		return nil, payment.ErrInvalidSignature
	}
	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrMalformedWebhook, err)
	}

	ev := &payment.WebhookEvent{RawType: wb.Event, Kind: payment.EventIgnored}
	switch wb.Event {
	case "payment.captured", "order.paid":
		ev.Kind = payment.EventPaymentConfirmed
	case "payment.failed":
		ev.Kind = payment.EventPaymentFailed
	default:
		return ev, nil
	}

	var pay, order *entity
	if wb.Payload.Payment != nil {
		pay = &wb.Payload.Payment.Entity
	}
	if wb.Payload.Order != nil {
		order = &wb.Payload.Order.Entity
	}
	if pay == nil {
		return nil, fmt.Errorf("%w: payment エンティティがありません", payment.ErrMalformedWebhook)
	}

	ev.ID = pay.ID
	ev.PaymentReference = pay.ID
	ev.CheckoutHandle = pay.OrderID
	ev.Amount = pay.Amount / g.cfg.MinorUnit
	ev.ReservationID = pay.Notes["reservation_id"]
	if order != nil {
		if ev.CheckoutHandle == "" {
			ev.CheckoutHandle = order.ID
		}
		if ev.ReservationID == "" {
			ev.ReservationID = order.Notes["reservation_id"]
		}
	}
	if ev.ReservationID == "" && ev.CheckoutHandle == "" {
		return nil, fmt.Errorf("%w: 予約を特定できません", payment.ErrMalformedWebhook)
	}
	return ev, nil
}

var _ payment.Gateway = (*Gateway)(nil)
