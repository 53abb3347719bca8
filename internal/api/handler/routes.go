package handler

import "github.com/labstack/echo/v4"

// Handlers はルーティング対象のハンドラー一式
type Handlers struct {
	Health       *HealthHandler
	Booking      *BookingHandler
	Availability *AvailabilityHandler
	Reservation  *ReservationHandler
	Payment      *PaymentHandler
	Refund       *RefundHandler
	Promotion    *PromotionHandler
	Hotel        *HotelHandler
}

// RegisterRoutes は /api/v1 配下にルートを登録する。bookingLimit は予約作成にのみ適用する
func RegisterRoutes(e *echo.Echo, h *Handlers, bookingLimit ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health.Check)

	v1 := e.Group("/api/v1")
	v1.GET("/health", h.Health.Check)

	v1.POST("/bookings", h.Booking.Create, bookingLimit...)
	v1.POST("/hotels/:hotel_id/bookings/offline", h.Booking.CreateOffline)
	v1.GET("/rooms/:room_id/availability", h.Availability.Get)

	v1.GET("/reservations", h.Reservation.GetUserReservations)
	v1.GET("/reservations/:id", h.Reservation.GetByID)
	v1.GET("/hotels/:hotel_id/reservations", h.Reservation.GetHotelReservations)
	v1.POST("/reservations/:id/cancel", h.Reservation.Cancel)
	v1.POST("/reservations/:id/accept", h.Reservation.Accept)
	v1.POST("/reservations/:id/confirm", h.Reservation.Confirm)
	v1.POST("/reservations/:id/complete", h.Reservation.Complete)
	v1.POST("/reservations/:id/checkout", h.Payment.Checkout)

	v1.POST("/payments/webhook", h.Payment.Webhook)

	v1.POST("/refunds", h.Refund.Create)
	v1.GET("/refunds", h.Refund.List)
	v1.PUT("/refunds/:id/payee", h.Refund.SubmitPayee)
	v1.POST("/refunds/:id/approve", h.Refund.Approve)
	v1.POST("/refunds/:id/reject", h.Refund.Reject)

	v1.POST("/promotions", h.Promotion.Create)
	v1.GET("/promotions", h.Promotion.List)
	v1.POST("/promotions/quote", h.Promotion.Quote)
	v1.GET("/promotions/:code", h.Promotion.Get)

	v1.POST("/hotels", h.Hotel.Create)
	v1.POST("/hotels/:hotel_id/approve", h.Hotel.Approve)
	v1.PUT("/hotels/:hotel_id/status", h.Hotel.SetStatus)
	v1.POST("/hotels/:hotel_id/rooms", h.Hotel.CreateRoom)
	v1.PUT("/rooms/:room_id/status", h.Hotel.SetRoomStatus)
	v1.POST("/hotels/:hotel_id/services", h.Hotel.CreateService)
	v1.PUT("/services/:service_id/status", h.Hotel.SetServiceStatus)
}
