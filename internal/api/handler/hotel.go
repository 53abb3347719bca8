package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation/internal/application"
	"github.com/sanosuguru/go-hotel-reservation/internal/domain/hotel"
)

type HotelHandler struct {
	service HotelServiceInterface
}

func NewHotelHandler(s HotelServiceInterface) *HotelHandler {
	return &HotelHandler{service: s}
}

type CreateHotelRequest struct {
	Name    string `json:"name" validate:"required" example:"サイゴンリバーサイドホテル"`
	Address string `json:"address" example:"ホーチミン市1区"`
}

type CreateRoomRequest struct {
	Name          string `json:"name" validate:"required" example:"デラックスツイン"`
	Price         int    `json:"price" validate:"gte=0" example:"1500"`
	TotalQuantity int    `json:"total_quantity" validate:"required,gt=0" example:"10"`
}

type CreateServiceRequest struct {
	Name  string `json:"name" validate:"required" example:"朝食"`
	Price int    `json:"price" validate:"gte=0" example:"200"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE NONACTIVE" example:"NONACTIVE"`
}

type HotelResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	AdminStatus string    `json:"admin_status" example:"APPROVED"`
	Status      string    `json:"status" example:"ACTIVE"`
	Bookable    bool      `json:"bookable"`
	CreatedAt   time.Time `json:"created_at"`
}

type RoomResponse struct {
	ID            string `json:"id"`
	HotelID       string `json:"hotel_id"`
	Name          string `json:"name"`
	Price         int    `json:"price"`
	TotalQuantity int    `json:"total_quantity"`
	Status        string `json:"status"`
}

type ServiceResponse struct {
	ID      string `json:"id"`
	HotelID string `json:"hotel_id"`
	Name    string `json:"name"`
	Price   int    `json:"price"`
	Status  string `json:"status"`
}

func toHotelResponse(h *hotel.Hotel) HotelResponse {
	return HotelResponse{
		ID: h.ID, OwnerID: h.OwnerID, Name: h.Name, Address: h.Address,
		AdminStatus: string(h.AdminStatus), Status: string(h.Status),
		Bookable: h.IsBookable(), CreatedAt: h.CreatedAt,
	}
}

func toRoomResponse(r *hotel.Room) RoomResponse {
	return RoomResponse{
		ID: r.ID, HotelID: r.HotelID, Name: r.Name, Price: r.Price,
		TotalQuantity: r.TotalQuantity, Status: string(r.Status),
	}
}

func toServiceResponse(s *hotel.Service) ServiceResponse {
	return ServiceResponse{ID: s.ID, HotelID: s.HotelID, Name: s.Name, Price: s.Price, Status: string(s.Status)}
}

// Create godoc
// @Summary ホテルを登録
// @Description 審査待ちのホテルを登録します。呼び出し元がオーナーになります
// @Tags hotels
// @Accept json
// @Produce json
// @Param X-User-ID header string true "オーナーのユーザーID"
// @Param request body CreateHotelRequest true "ホテル情報"
// @Success 201 {object} HotelResponse
// @Router /hotels [post]
func (h *HotelHandler) Create(c echo.Context) error {
	ownerID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req CreateHotelRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ht, err := h.service.CreateHotel(c.Request().Context(), application.CreateHotelInput{
		OwnerID: ownerID, Name: req.Name, Address: req.Address,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toHotelResponse(ht))
}

// Approve godoc
// @Summary ホテルを承認
// @Tags hotels
// @Produce json
// @Param hotel_id path string true "ホテルID"
// @Success 200 {object} HotelResponse
// @Failure 409 {object} api.ErrorResponse "承認済み"
// @Router /hotels/{hotel_id}/approve [post]
func (h *HotelHandler) Approve(c echo.Context) error {
	ht, err := h.service.ApproveHotel(c.Request().Context(), c.Param("hotel_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toHotelResponse(ht))
}

// SetStatus godoc
// @Summary ホテルの公開状態を変更
// @Tags hotels
// @Accept json
// @Produce json
// @Param X-User-ID header string true "オーナーのユーザーID"
// @Param hotel_id path string true "ホテルID"
// @Param request body StatusRequest true "状態"
// @Success 200 {object} HotelResponse
// @Router /hotels/{hotel_id}/status [put]
func (h *HotelHandler) SetStatus(c echo.Context) error {
	ownerID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req StatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ht, err := h.service.SetHotelStatus(c.Request().Context(), ownerID, c.Param("hotel_id"), hotel.ActiveStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toHotelResponse(ht))
}

// CreateRoom godoc
// @Summary 部屋タイプを登録
// @Tags hotels
// @Accept json
// @Produce json
// @Param X-User-ID header string true "オーナーのユーザーID"
// @Param hotel_id path string true "ホテルID"
// @Param request body CreateRoomRequest true "部屋タイプ"
// @Success 201 {object} RoomResponse
// @Router /hotels/{hotel_id}/rooms [post]
func (h *HotelHandler) CreateRoom(c echo.Context) error {
	ownerID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req CreateRoomRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	room, err := h.service.CreateRoom(c.Request().Context(), application.CreateRoomInput{
		OwnerID: ownerID, HotelID: c.Param("hotel_id"), Name: req.Name, Price: req.Price, TotalQuantity: req.TotalQuantity,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toRoomResponse(room))
}

// SetRoomStatus godoc
// @Summary 部屋タイプの受付状態を変更
// @Tags hotels
// @Param X-User-ID header string true "オーナーのユーザーID"
// @Param room_id path string true "部屋タイプID"
// @Param request body StatusRequest true "状態"
// @Success 200 {object} RoomResponse
// @Router /rooms/{room_id}/status [put]
func (h *HotelHandler) SetRoomStatus(c echo.Context) error {
	ownerID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req StatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	room, err := h.service.SetRoomStatus(c.Request().Context(), ownerID, c.Param("room_id"), hotel.ActiveStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRoomResponse(room))
}

// CreateService godoc
// @Summary 付帯サービスを登録
// @Tags hotels
// @Param X-User-ID header string true "オーナーのユーザーID"
// @Param hotel_id path string true "ホテルID"
// @Param request body CreateServiceRequest true "付帯サービス"
// @Success 201 {object} ServiceResponse
// @Router /hotels/{hotel_id}/services [post]
func (h *HotelHandler) CreateService(c echo.Context) error {
	ownerID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req CreateServiceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	sv, err := h.service.CreateService(c.Request().Context(), application.CreateServiceInput{
		OwnerID: ownerID, HotelID: c.Param("hotel_id"), Name: req.Name, Price: req.Price,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toServiceResponse(sv))
}

// SetServiceStatus godoc
// @Summary 付帯サービスの状態を変更
// @Tags hotels
// @Param X-User-ID header string true "オーナーのユーザーID"
// @Param service_id path string true "サービスID"
// @Param request body StatusRequest true "状態"
// @Success 200 {object} ServiceResponse
// @Router /services/{service_id}/status [put]
func (h *HotelHandler) SetServiceStatus(c echo.Context) error {
	ownerID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req StatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	sv, err := h.service.SetServiceStatus(c.Request().Context(), ownerID, c.Param("service_id"), hotel.ActiveStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toServiceResponse(sv))
}
