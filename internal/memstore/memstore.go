package memstore

import "github.com/iliyamo/showtime-booking/internal/clock"

// Store bundles the in-memory components over one shared seat table.
type Store struct {
	Seats       *SeatStore
	Ledger      *Ledger
	Idempotency *IdempotencyCache
	Catalog     *Catalog
}

func New(c clock.Clock) *Store {
	seats := NewSeatStore()
	return &Store{
		Seats:       seats,
		Ledger:      NewLedger(seats),
		Idempotency: NewIdempotencyCache(c),
		Catalog:     NewCatalog(seats),
	}
}
