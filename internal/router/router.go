// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/middleware"
)

// APIPrefix is the version prefix of every business route.
const APIPrefix = "/api/v1"

// Use installs the global middleware chain: panic recovery, request ids,
// a per-request deadline and request logging.
func Use(e *echo.Echo, log logrus.FieldLogger, timeout time.Duration) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	if timeout > 0 {
		e.Use(echomw.ContextTimeout(timeout))
	}
	e.Use(middleware.RequestLogger(log))
}

// RegisterRoutes registers the operational endpoints: /healthz for load
// balancers and /metrics for Prometheus.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers the unauthenticated browsing endpoints.  The
// movie and show listings go through the response cache; the seat map
// never does because clients poll it for live lock state.
func RegisterPublic(e *echo.Echo, h *handler.InventoryHandler, cache echo.MiddlewareFunc) {
	g := e.Group(APIPrefix)
	g.GET("/movies", h.ListMovies, cache)
	g.GET("/movies/:id/shows", h.ListShows, cache)
	g.GET("/shows/:id", h.GetShow, cache)
	g.GET("/shows/:id/seats", h.ListSeats)
}
