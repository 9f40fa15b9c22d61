// Package cache keeps booking replay records in Redis with a native TTL
// so every server instance answers a retried confirmation the same way.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

const DefaultPrefix = "idem"

// IdempotencyStore implements reservation.IdempotencyStore on Redis.
// Values are the JSON-encoded booking, including its idempotency key.
type IdempotencyStore struct {
	rdb    redis.Cmdable
	prefix string
}

var _ reservation.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore returns a store writing keys as "<prefix>:<key>".
func NewIdempotencyStore(rdb redis.Cmdable, prefix string) *IdempotencyStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &IdempotencyStore{rdb: rdb, prefix: prefix}
}

// record is the stored form.  model.Booking hides the key from JSON
// responses, so it is carried alongside.
type record struct {
	Booking        model.Booking `json:"booking"`
	IdempotencyKey string        `json:"idempotency_key"`
}

func (s *IdempotencyStore) key(k string) string { return s.prefix + ":" + k }

func (s *IdempotencyStore) Get(ctx context.Context, key string) (model.Booking, bool, error) {
	bs, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Booking{}, false, nil
	}
	if err != nil {
		return model.Booking{}, false, reservation.StorageError("idempotency get", err)
	}
	var rec record
	if err := json.Unmarshal(bs, &rec); err != nil {
		return model.Booking{}, false, reservation.StorageError("idempotency decode", err)
	}
	rec.Booking.IdempotencyKey = rec.IdempotencyKey
	return rec.Booking, true, nil
}

// Put stores b under key for ttl.  An existing record is kept: the first
// booking produced under a key is the one every retry must see.
func (s *IdempotencyStore) Put(ctx context.Context, key string, b model.Booking, ttl time.Duration) error {
	bs, err := json.Marshal(record{Booking: b, IdempotencyKey: b.IdempotencyKey})
	if err != nil {
		return reservation.StorageError("idempotency encode", err)
	}
	if err := s.rdb.SetNX(ctx, s.key(key), bs, ttl).Err(); err != nil {
		return reservation.StorageError("idempotency put", err)
	}
	return nil
}
