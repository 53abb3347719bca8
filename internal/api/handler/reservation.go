package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
)

type ReservationHandler struct {
	service ReservationServiceInterface
}

func NewReservationHandler(s ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{service: s}
}

type ReservationRoomResponse struct {
	RoomID    string `json:"room_id"`
	Quantity  int    `json:"quantity" example:"2"`
	UnitPrice int    `json:"unit_price" example:"1500"`
}

type ReservationServiceResponse struct {
	ServiceID string   `json:"service_id"`
	Quantity  int      `json:"quantity" example:"1"`
	Dates     []string `json:"dates" example:"2025-06-01"`
	UnitPrice int      `json:"unit_price" example:"200"`
}

type ReservationResponse struct {
	ID                string                       `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	UserID            string                       `json:"user_id" example:"user-123"`
	HotelID           string                       `json:"hotel_id"`
	CheckIn           string                       `json:"check_in" example:"2025-06-01"`
	CheckOut          string                       `json:"check_out" example:"2025-06-03"`
	Nights            int                          `json:"nights" example:"2"`
	Rooms             []ReservationRoomResponse    `json:"rooms"`
	Services          []ReservationServiceResponse `json:"services"`
	Status            string                       `json:"status" example:"NOT_PAID"`
	TotalPrice        int                          `json:"total_price" example:"6000"`
	PromotionID       string                       `json:"promotion_id,omitempty"`
	PromotionDiscount int                          `json:"promotion_discount" example:"1500"`
	FinalPrice        int                          `json:"final_price" example:"4500"`
	PaymentHandle     string                       `json:"payment_handle,omitempty"`
	PaymentReference  string                       `json:"payment_reference,omitempty"`
	CancelledAt       *time.Time                   `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time                    `json:"created_at"`
	UpdatedAt         time.Time                    `json:"updated_at"`
}

func toReservationResponse(r *reservation.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ID: r.ID, UserID: r.UserID, HotelID: r.HotelID,
		CheckIn:    reservation.NightKey(r.CheckInDate),
		CheckOut:   reservation.NightKey(r.CheckOutDate),
		Nights:     r.Nights(),
		Rooms:      make([]ReservationRoomResponse, len(r.Rooms)),
		Services:   make([]ReservationServiceResponse, len(r.Services)),
		Status:     string(r.Status),
		TotalPrice: r.TotalPrice, PromotionID: r.PromotionID,
		PromotionDiscount: r.PromotionDiscount, FinalPrice: r.FinalPrice,
		PaymentHandle: r.PaymentHandle, PaymentReference: r.PaymentReference,
		CancelledAt: r.CancelledAt, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	for i, l := range r.Rooms {
		resp.Rooms[i] = ReservationRoomResponse{RoomID: l.RoomID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	for i, s := range r.Services {
		resp.Services[i] = ReservationServiceResponse{
			ServiceID: s.ServiceID, Quantity: s.Quantity, Dates: formatDates(s.Dates), UnitPrice: s.UnitPrice,
		}
	}
	return resp
}

func toReservationResponses(rs []*reservation.Reservation) []ReservationResponse {
	resp := make([]ReservationResponse, len(rs))
	for i, r := range rs {
		resp[i] = toReservationResponse(r)
	}
	return resp
}

// GetByID godoc
// @Summary 予約を取得
// @Description 予約者またはホテルオーナーが予約を取得します
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetByID(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	r, err := h.service.GetReservation(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// GetUserReservations godoc
// @Summary ユーザーの予約一覧を取得
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} ReservationResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /reservations [get]
func (h *ReservationHandler) GetUserReservations(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	rs, err := h.service.GetUserReservations(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponses(rs))
}

// GetHotelReservations godoc
// @Summary ホテルの予約一覧を取得
// @Description ホテルオーナーが自ホテルの予約一覧を取得します
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "オーナーのユーザーID"
// @Param hotel_id path string true "ホテルID"
// @Success 200 {array} ReservationResponse
// @Failure 403 {object} api.ErrorResponse
// @Router /hotels/{hotel_id}/reservations [get]
func (h *ReservationHandler) GetHotelReservations(c echo.Context) error {
	ownerID, err := requireUser(c)
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	rs, err := h.service.GetHotelReservations(c.Request().Context(), ownerID, c.Param("hotel_id"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponses(rs))
}

func (h *ReservationHandler) transition(c echo.Context, fn func(ctx context.Context, userID, id string) (*reservation.Reservation, error)) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	r, err := fn(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 予約者またはホテルオーナーが予約をキャンセルし、空室を戻します
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 409 {object} api.ErrorResponse "キャンセルできない状態"
// @Router /reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c echo.Context) error {
	return h.transition(c, h.service.CancelReservation)
}

// Accept godoc
// @Summary 予約を受付（NOT_PAID → PENDING）
// @Tags reservations
// @Param X-User-ID header string true "オーナーのユーザーID"
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Router /reservations/{id}/accept [post]
func (h *ReservationHandler) Accept(c echo.Context) error {
	return h.transition(c, h.service.AcceptReservation)
}

// Confirm godoc
// @Summary 予約を確定（PENDING → BOOKED）
// @Tags reservations
// @Param X-User-ID header string true "オーナーのユーザーID"
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Router /reservations/{id}/confirm [post]
func (h *ReservationHandler) Confirm(c echo.Context) error {
	return h.transition(c, h.service.ConfirmReservation)
}

// Complete godoc
// @Summary 予約を完了（CHECKED_OUT → COMPLETED）
// @Tags reservations
// @Param X-User-ID header string true "オーナーのユーザーID"
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Router /reservations/{id}/complete [post]
func (h *ReservationHandler) Complete(c echo.Context) error {
	return h.transition(c, h.service.CompleteReservation)
}
