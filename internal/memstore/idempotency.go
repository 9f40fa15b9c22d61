package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/showtime-booking/internal/clock"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

// IdempotencyCache is an in-memory reservation.IdempotencyStore.
// Expired records are invisible to Get and are dropped by Purge.
type IdempotencyCache struct {
	clock clock.Clock

	mu   sync.Mutex
	recs map[string]model.IdempotencyRecord
}

var (
	_ reservation.IdempotencyStore = (*IdempotencyCache)(nil)
	_ reservation.Purger           = (*IdempotencyCache)(nil)
)

func NewIdempotencyCache(c clock.Clock) *IdempotencyCache {
	if c == nil {
		c = clock.System{}
	}
	return &IdempotencyCache{clock: c, recs: make(map[string]model.IdempotencyRecord)}
}

func (c *IdempotencyCache) Get(_ context.Context, key string) (model.Booking, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.recs[key]
	if !ok || rec.Expired(c.clock.Now()) {
		return model.Booking{}, false, nil
	}
	return rec.Booking, true, nil
}

func (c *IdempotencyCache) Put(_ context.Context, key string, b model.Booking, ttl time.Duration) error {
	c.mu.Lock()
	c.recs[key] = model.IdempotencyRecord{Key: key, Booking: b, ExpiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Purge drops records expired at now and returns how many were removed.
func (c *IdempotencyCache) Purge(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, rec := range c.recs {
		if rec.Expired(now) {
			delete(c.recs, k)
			n++
		}
	}
	return n
}

// Len reports how many records are held, expired or not.
func (c *IdempotencyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}
