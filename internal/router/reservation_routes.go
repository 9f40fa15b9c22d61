package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/middleware"
)

// RegisterReservation registers the lock and booking endpoints.  Every
// route requires a bearer token and runs behind the rate limiter, which
// keys on the holder identity JWTAuth stores.
func RegisterReservation(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		APIPrefix,
		middleware.JWTAuth(jwtSecret),
		limiter,
	)
	g.PATCH("/seats/:id/lock", h.LockSeat)
	g.POST("/seats/:id/lock", h.LockSeat)
	g.DELETE("/seats/:id/lock", h.ReleaseSeat)

	g.POST("/bookings", h.CreateBooking)
	g.GET("/bookings/:id", h.GetBooking)
}
