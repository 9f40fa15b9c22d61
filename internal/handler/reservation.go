package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/middleware"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

// IdempotencyKeyHeader carries the client's per-attempt key on booking
// requests.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReservationHandler exposes the lock and booking protocol.  All routes
// sit behind JWTAuth; the token subject is the holder identity.
type ReservationHandler struct {
	svc *reservation.Service
}

func NewReservationHandler(svc *reservation.Service) *ReservationHandler {
	if svc == nil {
		panic("nil reservation service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc}
}

type lockResp struct {
	SeatID     uint64    `json:"seat_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
}

type bookingReq struct {
	ShowID uint64 `json:"show_id"`
	SeatID uint64 `json:"seat_id"`
}

type bookingResp struct {
	BookingID string              `json:"booking_id"`
	ShowID    uint64              `json:"show_id"`
	SeatID    uint64              `json:"seat_id"`
	Status    model.BookingStatus `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	Message   string              `json:"message,omitempty"`
}

func toBookingResp(b model.Booking, msg string) bookingResp {
	return bookingResp{
		BookingID: b.ID,
		ShowID:    b.ShowID,
		SeatID:    b.SeatID,
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
		Message:   msg,
	}
}

// LockSeat handles PATCH (and POST) /api/v1/seats/:id/lock.  Locking a
// seat the caller already holds refreshes the expiry.
func (h *ReservationHandler) LockSeat(c echo.Context) error {
	seatID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid seat id")
	}
	grant, err := h.svc.RequestLock(c.Request().Context(), seatID, middleware.HolderID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, lockResp{
		SeatID:     grant.SeatID,
		ExpiresAt:  grant.ExpiresAt,
		TTLSeconds: int64(h.svc.LockTTL() / time.Second),
	})
}

// ReleaseSeat handles DELETE /api/v1/seats/:id/lock.
func (h *ReservationHandler) ReleaseSeat(c echo.Context) error {
	seatID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid seat id")
	}
	if err := h.svc.ReleaseLock(c.Request().Context(), seatID, middleware.HolderID(c)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateBooking handles POST /api/v1/bookings.  The first commit of an
// Idempotency-Key answers 201; retries of the same key answer 200 with
// the original booking.
func (h *ReservationHandler) CreateBooking(c echo.Context) error {
	var body bookingReq
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ShowID == 0 || body.SeatID == 0 {
		return badRequest(c, "show_id and seat_id are required")
	}
	key := strings.TrimSpace(c.Request().Header.Get(IdempotencyKeyHeader))

	conf, err := h.svc.ConfirmBooking(c.Request().Context(), body.ShowID, body.SeatID, middleware.HolderID(c), key)
	if err != nil {
		return respondError(c, err)
	}
	if conf.Replayed {
		return c.JSON(http.StatusOK, toBookingResp(conf.Booking, "Booking already exists"))
	}
	return c.JSON(http.StatusCreated, toBookingResp(conf.Booking, "Booking confirmed"))
}

// GetBooking handles GET /api/v1/bookings/:id.  Another holder's
// booking is reported as not found.
func (h *ReservationHandler) GetBooking(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.svc.GetBooking(c.Request().Context(), id, middleware.HolderID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResp(b, ""))
}
