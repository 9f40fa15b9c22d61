package model

import "time"

// Lock is a time-bounded, holder-scoped claim on a seat.  ExpiresAt is
// always CreatedAt plus the configured TTL; once now reaches ExpiresAt
// the lock is logically gone even if its columns are still populated.
type Lock struct {
	SeatID    uint64    // show_seats.id
	HolderID  string    // show_seats.holder_id (opaque caller identity)
	CreatedAt time.Time // show_seats.locked_at
	ExpiresAt time.Time // show_seats.lock_expires_at
}

// NewLock builds a lock for holderID created at now with the given ttl.
func NewLock(seatID uint64, holderID string, now time.Time, ttl time.Duration) Lock {
	now = now.UTC()
	return Lock{
		SeatID:    seatID,
		HolderID:  holderID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Active reports whether the lock still holds at now.
func (l Lock) Active(now time.Time) bool {
	return now.Before(l.ExpiresAt)
}

// HeldBy reports whether the lock is active at now and owned by holderID.
func (l Lock) HeldBy(holderID string, now time.Time) bool {
	return l.HolderID == holderID && l.Active(now)
}
