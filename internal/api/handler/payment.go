package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HeaderWebhookSignature はRazorpayのWebhook署名ヘッダー
const HeaderWebhookSignature = "X-Razorpay-Signature"

// webhookBodyLimit はWebhookペイロードの上限サイズ
const webhookBodyLimit = 1 << 20

type PaymentHandler struct {
	service PaymentServiceInterface
}

func NewPaymentHandler(s PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: s}
}

type CheckoutResponse struct {
	ReservationID string `json:"reservation_id"`
	Handle        string `json:"handle" example:"order_NB5mGJ2v4b6xk1"`
	RedirectURL   string `json:"redirect_url" example:"https://checkout.example.com/pay?order_id=order_NB5mGJ2v4b6xk1"`
}

type WebhookResponse struct {
	Event         string `json:"event"`
	ReservationID string `json:"reservation_id,omitempty"`
	Applied       bool   `json:"applied"`
	Duplicate     bool   `json:"duplicate"`
	RefundCreated bool   `json:"refund_created"`
}

// Checkout godoc
// @Summary 決済用チェックアウトを作成
// @Description 未払い予約の決済を開始します
// @Tags payments
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Success 201 {object} CheckoutResponse
// @Failure 409 {object} api.ErrorResponse "未払いではない"
// @Failure 502 {object} api.ErrorResponse "ゲートウェイ障害"
// @Router /reservations/{id}/checkout [post]
func (h *PaymentHandler) Checkout(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	checkout, err := h.service.CreateCheckout(c.Request().Context(), userID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, CheckoutResponse{
		ReservationID: id, Handle: checkout.Handle, RedirectURL: checkout.RedirectURL,
	})
}

// Webhook godoc
// @Summary 決済Webhookを受信
// @Description 署名を検証し、決済結果を予約に反映します。再送は冪等に処理します
// @Tags payments
// @Accept json
// @Produce json
// @Param X-Razorpay-Signature header string true "Webhook署名"
// @Success 200 {object} WebhookResponse
// @Failure 401 {object} api.ErrorResponse "署名不正"
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c echo.Context) error {
	signature := c.Request().Header.Get(HeaderWebhookSignature)
	if signature == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Webhook署名が必要です")
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookBodyLimit))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストボディを読み込めません").SetInternal(err)
	}

	result, err := h.service.HandleWebhook(c.Request().Context(), payload, signature)
	if err != nil {
		return err
	}
	resp := WebhookResponse{
		ReservationID: result.ReservationID,
		Applied:       result.Applied,
		Duplicate:     result.Duplicate,
		RefundCreated: result.RefundCreated,
	}
	if result.Event != nil {
		resp.Event = string(result.Event.Kind)
	}
	return c.JSON(http.StatusOK, resp)
}
