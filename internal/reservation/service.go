package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/showtime-booking/internal/clock"
	"github.com/iliyamo/showtime-booking/internal/metrics"
	"github.com/iliyamo/showtime-booking/internal/model"
)

const (
	DefaultLockTTL        = 10 * time.Minute
	DefaultIdempotencyTTL = 24 * time.Hour
)

// LockGrant is returned to a client whose lock request succeeded.
type LockGrant struct {
	SeatID    uint64    `json:"seat_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Confirmation is the outcome of ConfirmBooking.  Replayed is true when
// the idempotency key had already produced Booking.
type Confirmation struct {
	Booking  model.Booking
	Replayed bool
}

// Service orchestrates lock acquisition, lock validation and booking
// commit.  The lock is a soft hold that keeps the common case free of
// conflicts; the ledger's per-seat uniqueness is what guarantees a seat
// is sold once.  Service holds no state of its own between calls.
type Service struct {
	locks   SeatLockStore
	ledger  BookingLedger
	idem    IdempotencyStore
	events  EventPublisher
	clock   clock.Clock
	lockTTL time.Duration
	idemTTL time.Duration
	newID   func() string
	log     logrus.FieldLogger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

// WithIdempotencyTTL overrides how long replay records are cached.
func WithIdempotencyTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.idemTTL = d
		}
	}
}

// WithIdempotencyStore puts a replay cache in front of the ledger.
func WithIdempotencyStore(st IdempotencyStore) Option {
	return func(s *Service) { s.idem = st }
}

// WithEventPublisher publishes confirmed bookings.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger sets the logger.  The default is logrus' standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithIDGenerator overrides how booking ids are minted.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) {
		if f != nil {
			s.newID = f
		}
	}
}

// NewService wires a Service over the given stores.  Both stores are
// required.
func NewService(locks SeatLockStore, ledger BookingLedger, opts ...Option) *Service {
	if locks == nil || ledger == nil {
		panic("nil store passed to reservation.NewService")
	}
	s := &Service{
		locks:   locks,
		ledger:  ledger,
		clock:   clock.System{},
		lockTTL: DefaultLockTTL,
		idemTTL: DefaultIdempotencyTTL,
		newID:   uuid.NewString,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LockTTL reports the configured lock lifetime.
func (s *Service) LockTTL() time.Duration { return s.lockTTL }

// checkHolder rejects an empty holder identity or one the ledger cannot store.
func checkHolder(holderID string) error {
	if holderID == "" {
		return ErrHolderRequired
	}
	if !model.HolderIDFits(holderID) {
		return ErrHolderIDTooLong
	}
	return nil
}

// RequestLock places or refreshes a soft hold on seatID for holderID.
func (s *Service) RequestLock(ctx context.Context, seatID uint64, holderID string) (LockGrant, error) {
	if err := checkHolder(holderID); err != nil {
		return LockGrant{}, err
	}
	log := s.log.WithFields(logrus.Fields{"seat_id": seatID, "holder_id": holderID})

	lock, err := s.locks.AcquireLock(ctx, seatID, holderID, s.clock.Now(), s.lockTTL)
	metrics.LockRequests.WithLabelValues(outcome(err, "granted")).Inc()
	if err != nil {
		if IsDomainError(err) {
			log.WithError(err).Info("lock rejected")
		} else {
			log.WithError(err).Error("lock failed")
		}
		return LockGrant{}, err
	}
	log.WithField("expires_at", lock.ExpiresAt).Debug("lock granted")
	return LockGrant{SeatID: seatID, ExpiresAt: lock.ExpiresAt}, nil
}

// ReleaseLock gives up holderID's hold on seatID.  Releasing a seat the
// caller does not hold is a no-op.
func (s *Service) ReleaseLock(ctx context.Context, seatID uint64, holderID string) error {
	if err := checkHolder(holderID); err != nil {
		return err
	}
	if err := s.locks.ReleaseLock(ctx, seatID, holderID); err != nil {
		s.log.WithError(err).WithField("seat_id", seatID).Error("release failed")
		return err
	}
	metrics.LocksReleased.Inc()
	return nil
}

// ConfirmBooking turns holderID's lock on seatID into a booking.
//
//  1. A key that already produced a booking replays it unchanged.
//  2. Otherwise the caller must still hold an active lock.
//  3. The ledger commit decides; a lost race yields ErrSeatAlreadyBooked.
//  4. The key is remembered for the idempotency TTL.
func (s *Service) ConfirmBooking(ctx context.Context, showID, seatID uint64, holderID, idempotencyKey string) (Confirmation, error) {
	if err := checkHolder(holderID); err != nil {
		return Confirmation{}, err
	}
	if idempotencyKey == "" {
		return Confirmation{}, ErrIdempotencyKeyRequired
	}
	if !model.IdempotencyKeyFits(idempotencyKey) {
		return Confirmation{}, ErrIdempotencyKeyTooLong
	}
	log := s.log.WithFields(logrus.Fields{
		"show_id":         showID,
		"seat_id":         seatID,
		"holder_id":       holderID,
		"idempotency_key": idempotencyKey,
	})

	if b, ok, err := s.replay(ctx, idempotencyKey, holderID); err != nil {
		metrics.BookingRequests.WithLabelValues(outcome(err, "")).Inc()
		return Confirmation{}, err
	} else if ok {
		metrics.BookingRequests.WithLabelValues("replayed").Inc()
		log.WithField("booking_id", b.ID).Info("booking replayed")
		return Confirmation{Booking: b, Replayed: true}, nil
	}

	now := s.clock.Now()
	held, err := s.locks.ValidateLock(ctx, seatID, holderID, now)
	if err != nil {
		metrics.BookingRequests.WithLabelValues(outcome(err, "")).Inc()
		return Confirmation{}, err
	}
	if !held {
		err := s.explainMissingLock(ctx, showID, seatID)
		return s.afterConflict(ctx, log, idempotencyKey, holderID, err)
	}

	b, err := s.ledger.CommitBooking(ctx, CommitRequest{
		BookingID:      s.newID(),
		ShowID:         showID,
		SeatID:         seatID,
		HolderID:       holderID,
		IdempotencyKey: idempotencyKey,
		Now:            now,
	})
	if err != nil {
		return s.afterConflict(ctx, log, idempotencyKey, holderID, err)
	}

	s.remember(ctx, b)
	if s.events != nil {
		if perr := s.events.PublishBookingConfirmed(ctx, b); perr != nil {
			log.WithError(perr).Warn("publish booking confirmed failed")
		}
	}
	metrics.BookingRequests.WithLabelValues("confirmed").Inc()
	log.WithField("booking_id", b.ID).Info("booking confirmed")
	return Confirmation{Booking: b}, nil
}

// afterConflict resolves a failed validation or commit.  A concurrent
// retry of the same attempt may have committed between the replay check
// and this call, in which case its booking is replayed.
func (s *Service) afterConflict(ctx context.Context, log logrus.FieldLogger, key, holderID string, err error) (Confirmation, error) {
	if errors.Is(err, ErrDuplicateIdempotencyKey) || errors.Is(err, ErrSeatAlreadyBooked) {
		prior, ok, lerr := s.replay(ctx, key, holderID)
		switch {
		case lerr == nil && ok:
			metrics.BookingRequests.WithLabelValues("replayed").Inc()
			log.WithField("booking_id", prior.ID).Info("booking replayed after commit race")
			return Confirmation{Booking: prior, Replayed: true}, nil
		case lerr != nil && !errors.Is(lerr, ErrIdempotencyKeyReused):
			err = lerr
		case errors.Is(err, ErrDuplicateIdempotencyKey):
			err = ErrIdempotencyKeyReused
		}
	}
	metrics.BookingRequests.WithLabelValues(outcome(err, "")).Inc()
	if IsDomainError(err) {
		log.WithError(err).Info("booking rejected")
	} else {
		log.WithError(err).Error("booking failed")
	}
	return Confirmation{}, err
}

// GetBooking returns one of holderID's bookings.  Bookings owned by
// other holders are reported as not found.
func (s *Service) GetBooking(ctx context.Context, bookingID, holderID string) (model.Booking, error) {
	b, err := s.ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.HolderID != holderID {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, nil
}

// replay looks the key up in the cache, then in the ledger.  A cache
// failure is logged and bypassed; the ledger is authoritative.
func (s *Service) replay(ctx context.Context, key, holderID string) (model.Booking, bool, error) {
	var (
		b     model.Booking
		found bool
	)
	if s.idem != nil {
		cached, ok, err := s.idem.Get(ctx, key)
		if err != nil {
			s.log.WithError(err).Warn("idempotency cache read failed")
		} else if ok {
			b, found = cached, true
		}
	}
	if !found {
		stored, ok, err := s.ledger.LookupByIdempotencyKey(ctx, key)
		if err != nil {
			return model.Booking{}, false, err
		}
		if !ok {
			return model.Booking{}, false, nil
		}
		b, found = stored, true
		s.remember(ctx, b)
	}
	if b.HolderID != holderID {
		return model.Booking{}, false, ErrIdempotencyKeyReused
	}
	return b, true, nil
}

func (s *Service) remember(ctx context.Context, b model.Booking) {
	if s.idem == nil {
		return
	}
	if err := s.idem.Put(ctx, b.IdempotencyKey, b, s.idemTTL); err != nil {
		s.log.WithError(err).WithField("booking_id", b.ID).Warn("idempotency cache write failed")
	}
}

// explainMissingLock picks the error for a failed lock validation.  A
// SOLD seat is reported as booked so that every confirmation after the
// sale fails the same way regardless of who asks.
func (s *Service) explainMissingLock(ctx context.Context, showID, seatID uint64) error {
	seat, err := s.locks.GetSeat(ctx, seatID)
	if err != nil {
		return err
	}
	if seat.ShowID != showID {
		return ErrSeatNotFound
	}
	if seat.Status == model.SeatSold {
		return ErrSeatAlreadyBooked
	}
	return ErrLockExpiredOrMissing
}

func outcome(err error, ok string) string {
	switch {
	case err == nil:
		return ok
	case errors.Is(err, ErrSeatLocked):
		return "seat_locked"
	case errors.Is(err, ErrSeatUnavailable):
		return "seat_unavailable"
	case errors.Is(err, ErrLockExpiredOrMissing):
		return "lock_expired"
	case errors.Is(err, ErrSeatAlreadyBooked):
		return "already_booked"
	case errors.Is(err, ErrSeatNotFound):
		return "not_found"
	case errors.Is(err, ErrIdempotencyKeyReused):
		return "key_reused"
	case IsDomainError(err):
		return "rejected"
	}
	return "error"
}
