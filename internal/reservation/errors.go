// Package reservation implements the seat hold and booking protocol:
// advisory per-seat locks with a fixed TTL, an authoritative booking
// ledger that allows one confirmed booking per seat, idempotent replay
// of confirmations, and a background reaper for stale locks.
package reservation

import (
	"errors"
	"fmt"
)

// Domain errors.  All of them are recoverable by the client and carry
// business meaning; handlers map them to 4xx responses.
var (
	// ErrSeatUnavailable means the seat is SOLD.  Permanent for that seat.
	ErrSeatUnavailable = errors.New("seat unavailable")
	// ErrSeatLocked means another holder has an active lock.  Retry after it lapses.
	ErrSeatLocked = errors.New("seat locked by another holder")
	// ErrLockExpiredOrMissing means the caller no longer holds the seat and must re-acquire.
	ErrLockExpiredOrMissing = errors.New("lock expired or missing")
	// ErrSeatAlreadyBooked means a booking for the seat already exists.  Pick another seat.
	ErrSeatAlreadyBooked = errors.New("seat already booked")

	// ErrSeatNotFound is returned for unknown seats or a seat that does
	// not belong to the requested show.
	ErrSeatNotFound = errors.New("seat not found")
	// ErrBookingNotFound is returned when a booking id is unknown to the caller.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrHolderRequired is returned when a request carries no holder identity.
	ErrHolderRequired = errors.New("holder identity required")
	// ErrHolderIDTooLong is returned for a holder identity wider than model.MaxHolderIDLen.
	ErrHolderIDTooLong = errors.New("holder identity too long")
	// ErrIdempotencyKeyRequired is returned when a confirmation carries no key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
	// ErrIdempotencyKeyTooLong is returned for a key wider than model.MaxIdempotencyKeyLen.
	ErrIdempotencyKeyTooLong = errors.New("idempotency key too long")
	// ErrIdempotencyKeyReused is returned when a key already produced a
	// booking for a different holder.
	ErrIdempotencyKeyReused = errors.New("idempotency key already used by another holder")
	// ErrDuplicateIdempotencyKey is raised by a ledger when the key index
	// rejects an insert.  The service resolves it into a replay.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// ErrStorage marks infrastructure failures (store unreachable, query
// failed).  Callers retry these with backoff; they are never domain errors.
var ErrStorage = errors.New("storage failure")

type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string { return fmt.Sprintf("%s: %s: %v", ErrStorage, e.op, e.err) }

func (e *storageError) Unwrap() error { return e.err }

func (e *storageError) Is(target error) bool { return target == ErrStorage }

// StorageError wraps err as an infrastructure failure for operation op.
// A nil err returns nil.  Errors that already carry a domain meaning or
// are already storage errors are returned unchanged.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) || errors.Is(err, ErrStorage) {
		return err
	}
	return &storageError{op: op, err: err}
}

// IsDomainError reports whether err is one of the protocol outcomes the
// client can act on, as opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrSeatUnavailable,
		ErrSeatLocked,
		ErrLockExpiredOrMissing,
		ErrSeatAlreadyBooked,
		ErrSeatNotFound,
		ErrBookingNotFound,
		ErrHolderRequired,
		ErrHolderIDTooLong,
		ErrIdempotencyKeyRequired,
		ErrIdempotencyKeyTooLong,
		ErrIdempotencyKeyReused,
		ErrDuplicateIdempotencyKey,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
