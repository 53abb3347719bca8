package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation/internal/application"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/promotion"
)

type PromotionHandler struct {
	service PromotionServiceInterface
}

func NewPromotionHandler(s PromotionServiceInterface) *PromotionHandler {
	return &PromotionHandler{service: s}
}

type CreatePromotionRequest struct {
	Code              string    `json:"code" validate:"required" example:"SUMMER25"`
	Name              string    `json:"name" validate:"required" example:"夏の早割"`
	Description       string    `json:"description"`
	DiscountType      string    `json:"discount_type" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT" example:"PERCENTAGE"`
	DiscountValue     int       `json:"discount_value" validate:"required,gt=0" example:"25"`
	MaxDiscountAmount int       `json:"max_discount_amount" validate:"gte=0"`
	MinOrderAmount    int       `json:"min_order_amount" validate:"gte=0"`
	StartDate         time.Time `json:"start_date" validate:"required" example:"2025-06-01T00:00:00+07:00"`
	EndDate           time.Time `json:"end_date" validate:"required" example:"2025-08-31T23:59:59+07:00"`
	UsageLimit        *int      `json:"usage_limit" validate:"omitempty,gte=0"`
	MaxUsagePerUser   int       `json:"max_usage_per_user" validate:"gte=0"`
	IsActive          *bool     `json:"is_active"`
}

type QuoteRequest struct {
	Code        string `json:"code" validate:"required" example:"SUMMER25"`
	OrderAmount int    `json:"order_amount" validate:"required,gt=0" example:"6000"`
}

type PromotionResponse struct {
	ID                string    `json:"id"`
	Code              string    `json:"code" example:"SUMMER25"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	DiscountType      string    `json:"discount_type"`
	DiscountValue     int       `json:"discount_value"`
	MaxDiscountAmount int       `json:"max_discount_amount"`
	MinOrderAmount    int       `json:"min_order_amount"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	UsageLimit        *int      `json:"usage_limit"`
	UsedCount         int       `json:"used_count"`
	MaxUsagePerUser   int       `json:"max_usage_per_user"`
	IsActive          bool      `json:"is_active"`
}

func toPromotionResponse(p *promotion.Promotion) PromotionResponse {
	return PromotionResponse{
		ID: p.ID, Code: p.Code, Name: p.Name, Description: p.Description,
		DiscountType: string(p.DiscountType), DiscountValue: p.DiscountValue,
		MaxDiscountAmount: p.MaxDiscountAmount, MinOrderAmount: p.MinOrderAmount,
		StartDate: p.StartDate, EndDate: p.EndDate,
		UsageLimit: p.UsageLimit, UsedCount: p.UsedCount, MaxUsagePerUser: p.MaxUsagePerUser,
		IsActive: p.IsActive,
	}
}

// Create godoc
// @Summary プロモーションを作成
// @Tags promotions
// @Accept json
// @Produce json
// @Param request body CreatePromotionRequest true "プロモーション"
// @Success 201 {object} PromotionResponse
// @Failure 409 {object} api.ErrorResponse "コード重複"
// @Router /promotions [post]
func (h *PromotionHandler) Create(c echo.Context) error {
	var req CreatePromotionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	p, err := h.service.CreatePromotion(c.Request().Context(), application.CreatePromotionInput{
		Code: req.Code, Name: req.Name, Description: req.Description,
		DiscountType: promotion.DiscountType(req.DiscountType), DiscountValue: req.DiscountValue,
		MaxDiscountAmount: req.MaxDiscountAmount, MinOrderAmount: req.MinOrderAmount,
		StartDate: req.StartDate, EndDate: req.EndDate,
		UsageLimit: req.UsageLimit, MaxUsagePerUser: req.MaxUsagePerUser, IsActive: active,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toPromotionResponse(p))
}

// List godoc
// @Summary 利用可能なプロモーション一覧
// @Tags promotions
// @Produce json
// @Success 200 {array} PromotionResponse
// @Router /promotions [get]
func (h *PromotionHandler) List(c echo.Context) error {
	limit, offset := pageParams(c)
	ps, err := h.service.ListActivePromotions(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	resp := make([]PromotionResponse, len(ps))
	for i, p := range ps {
		resp[i] = toPromotionResponse(p)
	}
	return c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary IDまたはコードでプロモーションを取得
// @Tags promotions
// @Produce json
// @Param code path string true "プロモーションIDまたはコード"
// @Success 200 {object} PromotionResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /promotions/{code} [get]
func (h *PromotionHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	key := c.Param("code")

	var (
		p   *promotion.Promotion
		err error
	)
	// コードはUUID形式にならない
	if _, perr := uuid.Parse(key); perr == nil {
		p, err = h.service.GetPromotion(ctx, key)
	} else {
		p, err = h.service.GetPromotionByCode(ctx, key)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPromotionResponse(p))
}

// Quote godoc
// @Summary 割引額を見積もる
// @Description X-User-ID を指定するとユーザー別の利用上限も確認します
// @Tags promotions
// @Accept json
// @Produce json
// @Param request body QuoteRequest true "見積もり条件"
// @Success 200 {object} application.Quote
// @Failure 422 {object} api.ErrorResponse "利用不可"
// @Router /promotions/quote [post]
func (h *PromotionHandler) Quote(c echo.Context) error {
	var req QuoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	q, err := h.service.Quote(c.Request().Context(), req.Code, req.OrderAmount, c.Request().Header.Get(HeaderUserID))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}
