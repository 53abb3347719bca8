package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation/internal/application"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/refund"
)

type RefundHandler struct {
	service RefundServiceInterface
}

func NewRefundHandler(s RefundServiceInterface) *RefundHandler {
	return &RefundHandler{service: s}
}

type PayeeRequest struct {
	AccountHolderName string `json:"account_holder_name" validate:"required" example:"NGUYEN VAN A"`
	AccountNumber     string `json:"account_number" validate:"required" example:"0123456789"`
	BankName          string `json:"bank_name" validate:"required" example:"Vietcombank"`
}

func (p *PayeeRequest) toInfo() refund.PayeeInfo {
	return refund.PayeeInfo{AccountHolderName: p.AccountHolderName, AccountNumber: p.AccountNumber, BankName: p.BankName}
}

type CreateRefundRequest struct {
	ReservationID string        `json:"reservation_id" validate:"required"`
	Amount        int           `json:"amount" validate:"required,gt=0" example:"4500"`
	Reason        string        `json:"reason" example:"予定変更のため"`
	Payee         *PayeeRequest `json:"payee" validate:"omitempty"`
}

type RejectRefundRequest struct {
	Reason string `json:"reason" example:"返金対象外の期間です"`
}

type PayeeResponse struct {
	AccountHolderName string `json:"account_holder_name"`
	// AccountNumber は下4桁以外を伏せる
	AccountNumber string `json:"account_number" example:"******6789"`
	BankName      string `json:"bank_name"`
}

type RefundResponse struct {
	ID              string         `json:"id"`
	ReservationID   string         `json:"reservation_id"`
	UserID          string         `json:"user_id"`
	Amount          int            `json:"amount" example:"4500"`
	Status          string         `json:"status" example:"PENDING"`
	Source          string         `json:"source" example:"MANUAL"`
	Reason          string         `json:"reason,omitempty"`
	AwaitingPayee   bool           `json:"awaiting_payee"`
	Payee           *PayeeResponse `json:"payee,omitempty"`
	GatewayRefundID string         `json:"gateway_refund_id,omitempty"`
	RequestedAt     time.Time      `json:"requested_at"`
	DecidedAt       *time.Time     `json:"decided_at,omitempty"`
}

func maskAccount(n string) string {
	if len(n) <= 4 {
		return n
	}
	masked := make([]byte, len(n))
	for i := range masked {
		if i < len(n)-4 {
			masked[i] = '*'
		} else {
			masked[i] = n[i]
		}
	}
	return string(masked)
}

func toRefundResponse(r *refund.RefundRequest) RefundResponse {
	resp := RefundResponse{
		ID: r.ID, ReservationID: r.ReservationID, UserID: r.UserID,
		Amount: r.Amount, Status: string(r.Status), Source: string(r.Source), Reason: r.Reason,
		AwaitingPayee: r.AwaitingPayeeInfo(), GatewayRefundID: r.GatewayRefundID,
		RequestedAt: r.RequestedAt, DecidedAt: r.DecidedAt,
	}
	if r.Payee != nil {
		resp.Payee = &PayeeResponse{
			AccountHolderName: r.Payee.AccountHolderName,
			AccountNumber:     maskAccount(r.Payee.AccountNumber),
			BankName:          r.Payee.BankName,
		}
	}
	return resp
}

// Create godoc
// @Summary 返金を申請
// @Tags refunds
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateRefundRequest true "返金申請"
// @Success 201 {object} RefundResponse
// @Failure 409 {object} api.ErrorResponse "申請済み"
// @Failure 422 {object} api.ErrorResponse "返金対象外"
// @Router /refunds [post]
func (h *RefundHandler) Create(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req CreateRefundRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	input := application.CreateRefundInput{
		ReservationID: req.ReservationID, UserID: userID, Amount: req.Amount, Reason: req.Reason,
	}
	if req.Payee != nil {
		p := req.Payee.toInfo()
		input.Payee = &p
	}
	r, err := h.service.CreateRefundRequest(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toRefundResponse(r))
}

// List godoc
// @Summary ユーザーの返金申請一覧
// @Tags refunds
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Success 200 {array} RefundResponse
// @Router /refunds [get]
func (h *RefundHandler) List(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	rs, err := h.service.GetUserRefunds(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return err
	}
	resp := make([]RefundResponse, len(rs))
	for i, r := range rs {
		resp[i] = toRefundResponse(r)
	}
	return c.JSON(http.StatusOK, resp)
}

// SubmitPayee godoc
// @Summary 返金先口座を登録
// @Description 自動作成された返金申請に口座情報を登録します
// @Tags refunds
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "返金申請ID"
// @Param request body PayeeRequest true "口座情報"
// @Success 200 {object} RefundResponse
// @Router /refunds/{id}/payee [put]
func (h *RefundHandler) SubmitPayee(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req PayeeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	r, err := h.service.SubmitPayeeInfo(c.Request().Context(), userID, c.Param("id"), req.toInfo())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRefundResponse(r))
}

// Approve godoc
// @Summary 返金を承認
// @Description ホテルオーナーが返金を承認します。決済参照IDがあればゲートウェイで返金します
// @Tags refunds
// @Produce json
// @Param X-User-ID header string true "オーナーのユーザーID"
// @Param id path string true "返金申請ID"
// @Success 200 {object} RefundResponse
// @Failure 502 {object} api.ErrorResponse "ゲートウェイ障害"
// @Router /refunds/{id}/approve [post]
func (h *RefundHandler) Approve(c echo.Context) error {
	ownerID, err := requireUser(c)
	if err != nil {
		return err
	}
	r, err := h.service.ApproveRefund(c.Request().Context(), ownerID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRefundResponse(r))
}

// Reject godoc
// @Summary 返金を却下
// @Tags refunds
// @Accept json
// @Produce json
// @Param X-User-ID header string true "オーナーのユーザーID"
// @Param id path string true "返金申請ID"
// @Param request body RejectRefundRequest false "却下理由"
// @Success 200 {object} RefundResponse
// @Router /refunds/{id}/reject [post]
func (h *RefundHandler) Reject(c echo.Context) error {
	ownerID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req RejectRefundRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト").SetInternal(err)
		}
	}
	r, err := h.service.RejectRefund(c.Request().Context(), ownerID, c.Param("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRefundResponse(r))
}
