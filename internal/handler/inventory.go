package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/inventory"
)

// InventoryHandler serves the public browsing endpoints.  Responses wrap
// lists in an "items" array.
type InventoryHandler struct {
	svc *inventory.Service
}

func NewInventoryHandler(svc *inventory.Service) *InventoryHandler {
	if svc == nil {
		panic("nil inventory service passed to NewInventoryHandler")
	}
	return &InventoryHandler{svc: svc}
}

// ListMovies handles GET /api/v1/movies.
func (h *InventoryHandler) ListMovies(c echo.Context) error {
	movies, err := h.svc.Movies(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": movies})
}

// ListShows handles GET /api/v1/movies/:id/shows.
func (h *InventoryHandler) ListShows(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	shows, err := h.svc.ShowsForMovie(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": shows})
}

// GetShow handles GET /api/v1/shows/:id.
func (h *InventoryHandler) GetShow(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	show, err := h.svc.Show(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, show)
}

// ListSeats handles GET /api/v1/shows/:id/seats.  Clients poll it to
// refresh the seat map; a lapsed lock shows as AVAILABLE.
func (h *InventoryHandler) ListSeats(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid show id")
	}
	seats, err := h.svc.SeatMap(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": id, "items": seats})
}
