// Package queue carries booking events over RabbitMQ: the publisher the
// reservation service notifies after a commit, and the consumer that
// appends each confirmed booking to the booking log.
package queue

import (
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// BookingQueue is the durable queue booking events are routed to.
const BookingQueue = "booking.confirmed"

// BookingConfirmedEvent is published once per committed booking.  It
// contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID   string `json:"booking_id"`
	HolderID    string `json:"holder_id"`
	ShowID      uint64 `json:"show_id"`
	SeatID      uint64 `json:"seat_id"`
	Status      string `json:"status"`
	ConfirmedAt string `json:"confirmed_at"`
}

func NewBookingConfirmedEvent(b model.Booking) BookingConfirmedEvent {
	return BookingConfirmedEvent{
		BookingID:   b.ID,
		HolderID:    b.HolderID,
		ShowID:      b.ShowID,
		SeatID:      b.SeatID,
		Status:      string(b.Status),
		ConfirmedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
}
