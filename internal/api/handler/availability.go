package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
)

type AvailabilityHandler struct {
	service InventoryServiceInterface
	loc     *time.Location
}

func NewAvailabilityHandler(s InventoryServiceInterface, loc *time.Location) *AvailabilityHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityHandler{service: s, loc: loc}
}

type AvailabilityResponse struct {
	RoomID        string `json:"room_id"`
	CheckIn       string `json:"check_in" example:"2025-06-01"`
	CheckOut      string `json:"check_out" example:"2025-06-03"`
	TotalQuantity int    `json:"total_quantity" example:"10"`
	Available     int    `json:"available" example:"4"`
	Cached        bool   `json:"cached"`
}

// Get godoc
// @Summary 空室数を照会
// @Description 期間中の各泊で最も混んでいる日を基準に空室数を返します（参考値。予約時に再判定します）
// @Tags rooms
// @Produce json
// @Param room_id path string true "部屋タイプID"
// @Param check_in query string true "チェックイン日 (YYYY-MM-DD)"
// @Param check_out query string true "チェックアウト日 (YYYY-MM-DD)"
// @Success 200 {object} AvailabilityResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /rooms/{room_id}/availability [get]
func (h *AvailabilityHandler) Get(c echo.Context) error {
	in, err := parseDate("check_in", c.QueryParam("check_in"), h.loc)
	if err != nil {
		return err
	}
	out, err := parseDate("check_out", c.QueryParam("check_out"), h.loc)
	if err != nil {
		return err
	}
	a, err := h.service.AvailableUnits(c.Request().Context(), c.Param("room_id"), in, out)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{
		RoomID:        a.RoomID,
		CheckIn:       reservation.NightKey(a.CheckIn),
		CheckOut:      reservation.NightKey(a.CheckOut),
		TotalQuantity: a.TotalQuantity,
		Available:     a.Bookable,
		Cached:        a.Cached,
	})
}
