// Package memstore is the in-process backend: seat locks, the booking
// ledger, the idempotency cache and the movie catalog all live in maps.
// It backs --store=memory and the protocol tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

type seatEntry struct {
	mu   sync.Mutex
	seat model.Seat
}

// SeatStore implements reservation.SeatLockStore.  Each seat carries its
// own mutex so operations on different seats never contend; the map
// itself is only written when seats are added.
type SeatStore struct {
	mu     sync.RWMutex
	seats  map[uint64]*seatEntry
	byShow map[uint64][]uint64
	nextID uint64
}

var _ reservation.SeatLockStore = (*SeatStore)(nil)

func NewSeatStore() *SeatStore {
	return &SeatStore{
		seats:  make(map[uint64]*seatEntry),
		byShow: make(map[uint64][]uint64),
	}
}

// AddSeats creates AVAILABLE seats for showID with the given labels and
// returns them in order.
func (s *SeatStore) AddSeats(showID uint64, labels []string) []model.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Seat, 0, len(labels))
	for _, label := range labels {
		s.nextID++
		seat := model.Seat{ID: s.nextID, ShowID: showID, Label: label, Status: model.SeatAvailable}
		s.seats[seat.ID] = &seatEntry{seat: seat}
		s.byShow[showID] = append(s.byShow[showID], seat.ID)
		out = append(out, seat)
	}
	return out
}

// ListByShow returns a snapshot of the seats of showID in creation order.
func (s *SeatStore) ListByShow(showID uint64) []model.Seat {
	s.mu.RLock()
	ids := append([]uint64(nil), s.byShow[showID]...)
	s.mu.RUnlock()

	out := make([]model.Seat, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entry(id); ok {
			e.mu.Lock()
			out = append(out, snapshot(e.seat))
			e.mu.Unlock()
		}
	}
	return out
}

func (s *SeatStore) entry(id uint64) (*seatEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.seats[id]
	return e, ok
}

// withSeat runs fn with the seat's mutex held.
func (s *SeatStore) withSeat(id uint64, fn func(seat *model.Seat) error) error {
	e, ok := s.entry(id)
	if !ok {
		return reservation.ErrSeatNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&e.seat)
}

func (s *SeatStore) AcquireLock(ctx context.Context, seatID uint64, holderID string, now time.Time, ttl time.Duration) (model.Lock, error) {
	if err := ctx.Err(); err != nil {
		return model.Lock{}, reservation.StorageError("acquire lock", err)
	}
	var lock model.Lock
	err := s.withSeat(seatID, func(seat *model.Seat) error {
		if seat.Status == model.SeatSold {
			return reservation.ErrSeatUnavailable
		}
		if cur, ok := seat.ActiveLock(now); ok && cur.HolderID != holderID {
			return reservation.ErrSeatLocked
		}
		lock = model.NewLock(seatID, holderID, now, ttl)
		seat.Status = model.SeatLocked
		seat.Lock = &lock
		return nil
	})
	return lock, err
}

func (s *SeatStore) ValidateLock(ctx context.Context, seatID uint64, holderID string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, reservation.StorageError("validate lock", err)
	}
	var held bool
	err := s.withSeat(seatID, func(seat *model.Seat) error {
		held = seat.Status == model.SeatLocked && seat.Lock != nil && seat.Lock.HeldBy(holderID, now)
		return nil
	})
	if err == reservation.ErrSeatNotFound {
		return false, nil
	}
	return held, err
}

func (s *SeatStore) ReleaseLock(ctx context.Context, seatID uint64, holderID string) error {
	if err := ctx.Err(); err != nil {
		return reservation.StorageError("release lock", err)
	}
	err := s.withSeat(seatID, func(seat *model.Seat) error {
		if seat.Status == model.SeatLocked && seat.Lock != nil && seat.Lock.HolderID == holderID {
			clearLock(seat)
		}
		return nil
	})
	if err == reservation.ErrSeatNotFound {
		return nil
	}
	return err
}

func (s *SeatStore) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	entries := make([]*seatEntry, 0, len(s.seats))
	for _, e := range s.seats {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	n := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return n, reservation.StorageError("reclaim expired", err)
		}
		e.mu.Lock()
		if e.seat.Status == model.SeatLocked {
			if _, ok := e.seat.ActiveLock(now); !ok {
				clearLock(&e.seat)
				n++
			}
		}
		e.mu.Unlock()
	}
	return n, nil
}

func (s *SeatStore) GetSeat(ctx context.Context, seatID uint64) (model.Seat, error) {
	var out model.Seat
	err := s.withSeat(seatID, func(seat *model.Seat) error {
		out = snapshot(*seat)
		return nil
	})
	return out, err
}

func clearLock(seat *model.Seat) {
	seat.Status = model.SeatAvailable
	seat.Lock = nil
}

// snapshot copies seat so callers never alias the stored lock.
func snapshot(seat model.Seat) model.Seat {
	if seat.Lock != nil {
		l := *seat.Lock
		seat.Lock = &l
	}
	return seat
}
