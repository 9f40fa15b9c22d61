package model

import (
	"time"
	"unicode/utf8"
)

// BookingStatus enumerates persisted booking states.  Failed attempts
// are never stored, so CONFIRMED is the only value in use.
type BookingStatus string

const BookingConfirmed BookingStatus = "CONFIRMED"

// Widths of the holder_id and idempotency_key columns, in characters.
const (
	MaxHolderIDLen       = 128
	MaxIdempotencyKeyLen = 255
)

// HolderIDFits reports whether id fits the holder_id column.
func HolderIDFits(id string) bool { return utf8.RuneCountInString(id) <= MaxHolderIDLen }

// IdempotencyKeyFits reports whether key fits the idempotency_key column.
func IdempotencyKeyFits(key string) bool { return utf8.RuneCountInString(key) <= MaxIdempotencyKeyLen }

// Booking records a sold seat.  Bookings are immutable once written and
// at most one exists per (ShowID, SeatID).
//
// Fields:
//
//	ID             – bookings.id (UUID string).
//	ShowID         – show the seat belongs to.
//	SeatID         – sold seat.
//	HolderID       – identity that held the lock and confirmed.
//	IdempotencyKey – client-supplied key of the confirming attempt.
//	Status         – always CONFIRMED.
//	CreatedAt      – commit timestamp (UTC).
type Booking struct {
	ID             string        `json:"booking_id" db:"id"`
	ShowID         uint64        `json:"show_id" db:"show_id"`
	SeatID         uint64        `json:"seat_id" db:"seat_id"`
	HolderID       string        `json:"holder_id" db:"holder_id"`
	IdempotencyKey string        `json:"-" db:"idempotency_key"`
	Status         BookingStatus `json:"status" db:"status"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// IdempotencyRecord maps a client key to the booking it produced.  The
// record is kept until ExpiresAt so retried submissions replay the same
// result instead of creating or failing a second booking.
type IdempotencyRecord struct {
	Key       string
	Booking   Booking
	ExpiresAt time.Time
}

// Expired reports whether the record may be garbage collected at now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
