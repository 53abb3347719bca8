package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/application"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/inventory"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/promotion"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/refund"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// statusRules はドメインエラーとHTTPステータスの対応。上から順に評価する
var statusRules = []struct {
	code    int
	targets []error
}{
	{http.StatusNotFound, []error{
		hotel.ErrHotelNotFound, hotel.ErrRoomNotFound, hotel.ErrServiceNotFound,
		reservation.ErrReservationNotFound, promotion.ErrPromotionNotFound, refund.ErrRefundNotFound,
	}},
	{http.StatusForbidden, []error{
		hotel.ErrNotHotelOwner, reservation.ErrNotReservationOwner, refund.ErrNotRefundOwner,
	}},
	{http.StatusUnauthorized, []error{payment.ErrInvalidSignature}},
	{http.StatusConflict, []error{
		reservation.ErrCapacityExceeded, reservation.ErrInvalidTransition, reservation.ErrReservationConflict,
		reservation.ErrReservationNotUnpaid, reservation.ErrPriceChanged, inventory.ErrRoomBusy,
		refund.ErrRefundAlreadyRequested, refund.ErrRefundNotPending, refund.ErrRefundNotProcessing, refund.ErrRefundConflict,
		promotion.ErrCodeAlreadyExists, hotel.ErrHotelAlreadyApproved, hotel.ErrVersionConflict,
	}},
	{http.StatusUnprocessableEntity, []error{
		hotel.ErrHotelNotBookable, hotel.ErrRoomInactive, hotel.ErrServiceInactive,
		promotion.ErrPromotionInactive, promotion.ErrPromotionNotStarted, promotion.ErrPromotionExpired,
		promotion.ErrUsageLimitReached, promotion.ErrUserLimitReached, promotion.ErrMinOrderNotMet,
		refund.ErrReservationNotRefundable, refund.ErrAmountExceedsPaid, refund.ErrPayeeInfoRequired,
	}},
	{http.StatusBadGateway, []error{payment.ErrGatewayFailure}},
	{http.StatusServiceUnavailable, []error{application.ErrPaymentNotConfigured}},
	{http.StatusBadRequest, []error{
		reservation.ErrUserIDRequired, reservation.ErrHotelIDRequired, reservation.ErrRoomsRequired,
		reservation.ErrDuplicateRoom, reservation.ErrInvalidQuantity, reservation.ErrInvalidDateRange,
		reservation.ErrServiceDatesRequired, reservation.ErrServiceDateOutOfStay, reservation.ErrPaymentRefRequired,
		hotel.ErrRoomNotInHotel, hotel.ErrServiceNotInHotel, hotel.ErrOwnerIDRequired, hotel.ErrHotelIDRequired,
		hotel.ErrHotelNameRequired, hotel.ErrRoomNameRequired, hotel.ErrServiceNameRequired,
		hotel.ErrInvalidPrice, hotel.ErrInvalidQuantity, hotel.ErrInvalidStatus,
		promotion.ErrCodeRequired, promotion.ErrNameRequired, promotion.ErrInvalidDiscountType,
		promotion.ErrInvalidDiscountValue, promotion.ErrInvalidPeriod, promotion.ErrInvalidUsageLimit,
		refund.ErrReservationIDRequired, refund.ErrUserIDRequired, refund.ErrInvalidAmount,
		refund.ErrPayeeInfoIncomplete, payment.ErrMalformedWebhook,
	}},
}

// StatusOf はエラーに対応するHTTPステータスを返す。未知のエラーは500
func StatusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	for _, rule := range statusRules {
		for _, target := range rule.targets {
			if errors.Is(err, target) {
				return rule.code
			}
		}
	}
	return http.StatusInternalServerError
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := StatusOf(err)
	message := "内部サーバーエラー"
	var details string

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
		if he.Internal != nil {
			details = he.Internal.Error()
		}
	case code < http.StatusInternalServerError:
		message = err.Error()
	case code == http.StatusBadGateway || code == http.StatusServiceUnavailable:
		message = http.StatusText(code)
		details = err.Error()
	}

	var capErr *reservation.CapacityError
	if errors.As(err, &capErr) {
		message = reservation.ErrCapacityExceeded.Error()
		details = capErr.Error()
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	// JSONレスポンスを返す
	if err := c.JSON(code, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
