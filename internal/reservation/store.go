package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// SeatLockStore owns the per-seat status and lock record.  Every method
// must be atomic per seat; operations on different seats must not
// contend.  None of them wait for another holder's lock.
type SeatLockStore interface {
	// AcquireLock installs or refreshes a lock for holderID.  It fails
	// with ErrSeatUnavailable on a SOLD seat and ErrSeatLocked when a
	// different holder has an active lock.  A repeat call by the current
	// holder refreshes the expiry to now+ttl.
	AcquireLock(ctx context.Context, seatID uint64, holderID string, now time.Time, ttl time.Duration) (model.Lock, error)
	// ValidateLock reports whether holderID has an active lock on seatID.
	ValidateLock(ctx context.Context, seatID uint64, holderID string, now time.Time) (bool, error)
	// ReleaseLock drops holderID's lock and returns the seat to
	// AVAILABLE.  It is a no-op when holderID does not hold the seat.
	ReleaseLock(ctx context.Context, seatID uint64, holderID string) error
	// ReclaimExpired returns every seat whose lock expired at or before
	// now to AVAILABLE and reports how many were reclaimed.
	ReclaimExpired(ctx context.Context, now time.Time) (int, error)
	// GetSeat returns the seat record, or ErrSeatNotFound.
	GetSeat(ctx context.Context, seatID uint64) (model.Seat, error)
}

// CommitRequest carries everything the ledger needs to write a booking.
type CommitRequest struct {
	BookingID      string
	ShowID         uint64
	SeatID         uint64
	HolderID       string
	IdempotencyKey string
	Now            time.Time
}

// BookingLedger is the authoritative record of confirmed bookings.
type BookingLedger interface {
	// LookupByIdempotencyKey returns the booking created under key, if any.
	LookupByIdempotencyKey(ctx context.Context, key string) (model.Booking, bool, error)
	// CommitBooking atomically checks that no booking exists for the
	// seat, inserts the booking, marks the seat SOLD and drops its lock.
	// A conflicting seat yields ErrSeatAlreadyBooked and a reused key
	// yields ErrDuplicateIdempotencyKey.
	CommitBooking(ctx context.Context, req CommitRequest) (model.Booking, error)
	// GetBooking returns a booking by id, or ErrBookingNotFound.
	GetBooking(ctx context.Context, id string) (model.Booking, error)
}

// IdempotencyStore is a TTL-bounded replay cache in front of the
// ledger's idempotency index.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (model.Booking, bool, error)
	Put(ctx context.Context, key string, b model.Booking, ttl time.Duration) error
}

// EventPublisher is notified after a booking is committed for the first time.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, b model.Booking) error
}

// Purger is implemented by stores that need periodic garbage collection.
type Purger interface {
	Purge(now time.Time) int
}
