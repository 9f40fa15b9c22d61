package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/inventory"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

// errorMapping pairs a sentinel with its HTTP status and machine code.
type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{reservation.ErrSeatUnavailable, http.StatusConflict, "seat_unavailable"},
	{reservation.ErrSeatLocked, http.StatusConflict, "seat_locked"},
	{reservation.ErrLockExpiredOrMissing, http.StatusConflict, "lock_expired_or_missing"},
	{reservation.ErrSeatAlreadyBooked, http.StatusConflict, "seat_already_booked"},
	{reservation.ErrIdempotencyKeyReused, http.StatusConflict, "idempotency_key_reused"},
	{reservation.ErrSeatNotFound, http.StatusNotFound, "seat_not_found"},
	{reservation.ErrBookingNotFound, http.StatusNotFound, "booking_not_found"},
	{inventory.ErrMovieNotFound, http.StatusNotFound, "movie_not_found"},
	{inventory.ErrShowNotFound, http.StatusNotFound, "show_not_found"},
	{reservation.ErrIdempotencyKeyRequired, http.StatusBadRequest, "idempotency_key_required"},
	{reservation.ErrIdempotencyKeyTooLong, http.StatusBadRequest, "idempotency_key_too_long"},
	{reservation.ErrHolderIDTooLong, http.StatusBadRequest, "holder_id_too_long"},
	{reservation.ErrHolderRequired, http.StatusUnauthorized, "unauthorized"},
	{reservation.ErrStorage, http.StatusServiceUnavailable, "storage_unavailable"},
}

// respondError writes the JSON error body for err.  Infrastructure
// details are never echoed back to the client.
func respondError(c echo.Context, err error) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.target.Error()
			if m.status == http.StatusServiceUnavailable {
				c.Response().Header().Set("Retry-After", "1")
			}
			return c.JSON(m.status, echo.Map{"error": m.code, "message": msg})
		}
	}
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error", "message": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad_request", "message": msg})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
