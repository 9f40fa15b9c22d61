package reservation

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/showtime-booking/internal/clock"
	"github.com/iliyamo/showtime-booking/internal/metrics"
)

// Reaper periodically returns seats with lapsed locks to AVAILABLE and
// garbage collects stores that keep expiring records in memory.
// Correctness never depends on it running: every read path treats an
// expired lock as absent.
type Reaper struct {
	locks    SeatLockStore
	interval time.Duration
	clock    clock.Clock
	purgers  []Purger
	log      logrus.FieldLogger
}

// ReaperOption configures a Reaper.
type ReaperOption func(*Reaper)

func ReaperClock(c clock.Clock) ReaperOption {
	return func(r *Reaper) {
		if c != nil {
			r.clock = c
		}
	}
}

func ReaperLogger(l logrus.FieldLogger) ReaperOption {
	return func(r *Reaper) {
		if l != nil {
			r.log = l
		}
	}
}

// ReaperPurgers registers stores to purge on every sweep.
func ReaperPurgers(p ...Purger) ReaperOption {
	return func(r *Reaper) { r.purgers = append(r.purgers, p...) }
}

// NewReaper builds a Reaper.  A non-positive interval defaults to a
// quarter of DefaultLockTTL.
func NewReaper(locks SeatLockStore, interval time.Duration, opts ...ReaperOption) *Reaper {
	if interval <= 0 {
		interval = DefaultLockTTL / 4
	}
	r := &Reaper{
		locks:    locks,
		interval: interval,
		clock:    clock.System{},
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sweeps every interval until ctx is cancelled.  Sweep failures are
// logged and retried on the next tick.
func (r *Reaper) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	r.log.WithField("interval", r.interval.String()).Info("expiry reaper started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("expiry reaper stopped")
			return nil
		case <-t.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.log.WithError(err).Error("expiry sweep failed")
			}
		}
	}
}

// Sweep runs one reclamation pass and reports how many locks it reclaimed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	now := r.clock.Now()
	n, err := r.locks.ReclaimExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	metrics.LocksReclaimed.Add(float64(n))

	purged := 0
	for _, p := range r.purgers {
		purged += p.Purge(now)
	}
	metrics.IdempotencyPurged.Add(float64(purged))

	if n > 0 || purged > 0 {
		r.log.WithFields(logrus.Fields{"reclaimed": n, "purged": purged}).Debug("expiry sweep")
	}
	return n, nil
}
