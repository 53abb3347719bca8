package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-hotel-reservation/internal/application"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
)

func TestPaymentHandler_Checkout(t *testing.T) {
	t.Run("チェックアウトを作成できる", func(t *testing.T) {
		e, m := newTestRouter()
		m.payment.On("CreateCheckout", mock.Anything, "user-1", "res-1").
			Return(&payment.Checkout{Handle: "order_1", RedirectURL: "https://checkout.example.com/pay?order_id=order_1"}, nil)

		rec := doRequest(e, http.MethodPost, "/api/v1/reservations/res-1/checkout", "", "user-1")

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{
			"reservation_id": "res-1",
			"handle": "order_1",
			"redirect_url": "https://checkout.example.com/pay?order_id=order_1"
		}`, rec.Body.String())
		m.assertExpectations(t)
	})

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "未払いでない予約は409", err: reservation.ErrReservationNotUnpaid, wantCode: http.StatusConflict},
		{name: "ゲートウェイ障害は502", err: payment.ErrGatewayFailure, wantCode: http.StatusBadGateway},
		{name: "決済未設定は503", err: application.ErrPaymentNotConfigured, wantCode: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, m := newTestRouter()
			m.payment.On("CreateCheckout", mock.Anything, "user-1", "res-1").Return(nil, tt.err)

			rec := doRequest(e, http.MethodPost, "/api/v1/reservations/res-1/checkout", "", "user-1")

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestPaymentHandler_Webhook(t *testing.T) {
	payload := `{"event":"payment.captured"}`

	t.Run("署名ヘッダーがない場合は401", func(t *testing.T) {
		e, m := newTestRouter()

		rec := doRequest(e, http.MethodPost, "/api/v1/payments/webhook", payload, "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		m.payment.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("署名が不正な場合は401", func(t *testing.T) {
		e, m := newTestRouter()
		m.payment.On("HandleWebhook", mock.Anything, []byte(payload), "bad").Return(nil, payment.ErrInvalidSignature)

		rec := doWebhook(e, payload, "bad")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		m.assertExpectations(t)
	})

	t.Run("決済完了を反映できる", func(t *testing.T) {
		e, m := newTestRouter()
		m.payment.On("HandleWebhook", mock.Anything, []byte(payload), "sig").Return(&application.WebhookResult{
			Event:         &payment.WebhookEvent{Kind: payment.EventPaymentConfirmed},
			ReservationID: "res-1",
			Applied:       true,
		}, nil)

		rec := doWebhook(e, payload, "sig")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"event": "PAYMENT_CONFIRMED",
			"reservation_id": "res-1",
			"applied": true,
			"duplicate": false,
			"refund_created": false
		}`, rec.Body.String())
		m.assertExpectations(t)
	})

	t.Run("ペイロード不正は400", func(t *testing.T) {
		e, m := newTestRouter()
		m.payment.On("HandleWebhook", mock.Anything, mock.Anything, "sig").Return(nil, payment.ErrMalformedWebhook)

		rec := doWebhook(e, "not-json", "sig")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
