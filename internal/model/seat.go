package model

import "time"

// SeatStatus is the live availability state of a seat for one show.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatLocked    SeatStatus = "LOCKED"
	SeatSold      SeatStatus = "SOLD"
)

// Valid reports whether s is one of the three known statuses.
func (s SeatStatus) Valid() bool {
	switch s {
	case SeatAvailable, SeatLocked, SeatSold:
		return true
	}
	return false
}

// Seat is a bookable place for a single show.  There is one row per
// seat per show; it is created when the show is scheduled.  The lock
// columns are only meaningful while Status is LOCKED.
//
// Fields:
//
//	ID     – show_seats.id, unique across shows.
//	ShowID – the show this seat belongs to.
//	Label  – row letter(s) followed by the seat number, e.g. "A10".
//	Status – AVAILABLE, LOCKED or SOLD.
//	Lock   – current lock, nil unless Status is LOCKED.
type Seat struct {
	ID     uint64     // show_seats.id
	ShowID uint64     // show_seats.show_id
	Label  string     // show_seats.label
	Status SeatStatus // show_seats.status
	Lock   *Lock      // show_seats.holder_id / locked_at / lock_expires_at
}

// ActiveLock returns the seat's lock when it is still active at now.
func (s Seat) ActiveLock(now time.Time) (Lock, bool) {
	if s.Status != SeatLocked || s.Lock == nil || !s.Lock.Active(now) {
		return Lock{}, false
	}
	return *s.Lock, true
}

// View renders the seat the way listing clients see it at now.  A
// LOCKED seat whose lock has lapsed is reported AVAILABLE even if the
// reaper has not reclaimed it yet.
func (s Seat) View(now time.Time) SeatView {
	v := SeatView{ID: s.ID, ShowID: s.ShowID, Label: s.Label, Status: s.Status}
	if s.Status == SeatLocked {
		if l, ok := s.ActiveLock(now); ok {
			exp := l.ExpiresAt
			v.LockExpiresAt = &exp
		} else {
			v.Status = SeatAvailable
		}
	}
	return v
}

// SeatView is the read model returned by the seat listing.
type SeatView struct {
	ID            uint64     `json:"id"`
	ShowID        uint64     `json:"show_id"`
	Label         string     `json:"label"`
	Status        SeatStatus `json:"status"`
	LockExpiresAt *time.Time `json:"lock_expires_at,omitempty"`
}
