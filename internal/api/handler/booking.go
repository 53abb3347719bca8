package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation/internal/application"
)

type BookingHandler struct {
	service BookingServiceInterface
	loc     *time.Location
}

// NewBookingHandler は宿泊日を loc の日付として解釈するハンドラーを作成する
func NewBookingHandler(s BookingServiceInterface, loc *time.Location) *BookingHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingHandler{service: s, loc: loc}
}

type BookingRoomRequest struct {
	RoomID   string `json:"room_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Quantity int    `json:"quantity" validate:"required,gt=0" example:"2"`
}

type BookingServiceRequest struct {
	ServiceID string   `json:"service_id" validate:"required"`
	Quantity  int      `json:"quantity" validate:"required,gt=0" example:"1"`
	Dates     []string `json:"dates" validate:"required,min=1,dive,datetime=2006-01-02" example:"2025-06-01"`
}

type CreateBookingRequest struct {
	HotelID            string                  `json:"hotel_id" validate:"required"`
	CheckIn            string                  `json:"check_in" validate:"required,datetime=2006-01-02" example:"2025-06-01"`
	CheckOut           string                  `json:"check_out" validate:"required,datetime=2006-01-02" example:"2025-06-03"`
	Rooms              []BookingRoomRequest    `json:"rooms" validate:"required,min=1,dive"`
	Services           []BookingServiceRequest `json:"services" validate:"omitempty,dive"`
	PromotionCode      string                  `json:"promotion_code" example:"SUMMER25"`
	ExpectedFinalPrice int                     `json:"expected_final_price" validate:"gte=0" example:"4500"`
}

type OfflineBookingRequest struct {
	UserID   string                  `json:"user_id"`
	CheckIn  string                  `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut string                  `json:"check_out" validate:"required,datetime=2006-01-02"`
	Rooms    []BookingRoomRequest    `json:"rooms" validate:"required,min=1,dive"`
	Services []BookingServiceRequest `json:"services" validate:"omitempty,dive"`
}

func (h *BookingHandler) toInput(userID, hotelID, checkIn, checkOut string, rooms []BookingRoomRequest, services []BookingServiceRequest) (application.CreateBookingInput, error) {
	in, err := parseDate("check_in", checkIn, h.loc)
	if err != nil {
		return application.CreateBookingInput{}, err
	}
	out, err := parseDate("check_out", checkOut, h.loc)
	if err != nil {
		return application.CreateBookingInput{}, err
	}
	input := application.CreateBookingInput{
		UserID:   userID,
		HotelID:  hotelID,
		CheckIn:  in,
		CheckOut: out,
		Rooms:    make([]application.BookingRoomInput, len(rooms)),
	}
	for i, r := range rooms {
		input.Rooms[i] = application.BookingRoomInput{RoomID: r.RoomID, Quantity: r.Quantity}
	}
	for _, s := range services {
		dates := make([]time.Time, 0, len(s.Dates))
		for _, d := range s.Dates {
			t, err := parseDate("dates", d, h.loc)
			if err != nil {
				return application.CreateBookingInput{}, err
			}
			dates = append(dates, t)
		}
		input.Services = append(input.Services, application.BookingServiceInput{
			ServiceID: s.ServiceID, Quantity: s.Quantity, Dates: dates,
		})
	}
	return input, nil
}

// Create godoc
// @Summary 予約を作成
// @Description 未払いの予約を作成します。未払い予約がある場合はその内容を差し替えます
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateBookingRequest true "予約内容"
// @Success 201 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "空室不足"
// @Failure 422 {object} api.ErrorResponse "予約受付停止中"
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req CreateBookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	input, err := h.toInput(userID, req.HotelID, req.CheckIn, req.CheckOut, req.Rooms, req.Services)
	if err != nil {
		return err
	}
	input.PromotionCode = req.PromotionCode
	input.ExpectedFinalPrice = req.ExpectedFinalPrice

	r, err := h.service.CreateBooking(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r))
}

// CreateOffline godoc
// @Summary オフライン予約を登録
// @Description ホテルオーナーが窓口等で受け付けた決済済みの予約を登録します
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string true "オーナーのユーザーID"
// @Param hotel_id path string true "ホテルID"
// @Param request body OfflineBookingRequest true "予約内容"
// @Success 201 {object} ReservationResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /hotels/{hotel_id}/bookings/offline [post]
func (h *BookingHandler) CreateOffline(c echo.Context) error {
	ownerID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req OfflineBookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	input, err := h.toInput(req.UserID, c.Param("hotel_id"), req.CheckIn, req.CheckOut, req.Rooms, req.Services)
	if err != nil {
		return err
	}

	r, err := h.service.CreateOfflineBooking(c.Request().Context(), ownerID, input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r))
}
