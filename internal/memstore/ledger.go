package memstore

import (
	"context"
	"sync"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

type showSeat struct {
	showID, seatID uint64
}

// Ledger implements reservation.BookingLedger.  Commits take the seat
// mutex first and the ledger mutex second; the seat index and the key
// index are checked and written under both.
type Ledger struct {
	seats *SeatStore

	mu     sync.RWMutex
	byID   map[string]model.Booking
	byKey  map[string]string
	bySeat map[showSeat]string
}

var _ reservation.BookingLedger = (*Ledger)(nil)

// NewLedger returns a ledger that marks seats in seats SOLD on commit.
func NewLedger(seats *SeatStore) *Ledger {
	return &Ledger{
		seats:  seats,
		byID:   make(map[string]model.Booking),
		byKey:  make(map[string]string),
		bySeat: make(map[showSeat]string),
	}
}

func (l *Ledger) LookupByIdempotencyKey(ctx context.Context, key string) (model.Booking, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Booking{}, false, reservation.StorageError("lookup idempotency key", err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byKey[key]
	if !ok {
		return model.Booking{}, false, nil
	}
	return l.byID[id], true, nil
}

// CommitBooking writes the booking and sells the seat.  A seat actively
// locked by another holder is rejected with ErrLockExpiredOrMissing: the
// caller's hold lapsed and someone else already claimed the seat.
func (l *Ledger) CommitBooking(ctx context.Context, req reservation.CommitRequest) (model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return model.Booking{}, reservation.StorageError("commit booking", err)
	}
	var out model.Booking
	err := l.seats.withSeat(req.SeatID, func(seat *model.Seat) error {
		if seat.ShowID != req.ShowID {
			return reservation.ErrSeatNotFound
		}

		l.mu.Lock()
		defer l.mu.Unlock()

		if _, dup := l.byKey[req.IdempotencyKey]; dup {
			return reservation.ErrDuplicateIdempotencyKey
		}
		k := showSeat{showID: req.ShowID, seatID: req.SeatID}
		if _, sold := l.bySeat[k]; sold || seat.Status == model.SeatSold {
			return reservation.ErrSeatAlreadyBooked
		}
		if cur, ok := seat.ActiveLock(req.Now); ok && cur.HolderID != req.HolderID {
			return reservation.ErrLockExpiredOrMissing
		}

		out = model.Booking{
			ID:             req.BookingID,
			ShowID:         req.ShowID,
			SeatID:         req.SeatID,
			HolderID:       req.HolderID,
			IdempotencyKey: req.IdempotencyKey,
			Status:         model.BookingConfirmed,
			CreatedAt:      req.Now.UTC(),
		}
		l.byID[out.ID] = out
		l.byKey[out.IdempotencyKey] = out.ID
		l.bySeat[k] = out.ID

		seat.Status = model.SeatSold
		seat.Lock = nil
		return nil
	})
	return out, err
}

func (l *Ledger) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.byID[id]
	if !ok {
		return model.Booking{}, reservation.ErrBookingNotFound
	}
	return b, nil
}

// Len reports how many bookings have been committed.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byID)
}
