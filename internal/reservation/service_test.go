package reservation_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/clock"
	"github.com/iliyamo/showtime-booking/internal/memstore"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type harness struct {
	clk    *clock.Fake
	store  *memstore.Store
	svc    *reservation.Service
	show   model.Show
	seats  []model.Seat
	events *recordingPublisher
	logs   *logtest.Hook
}

func newHarness(t *testing.T, opts ...reservation.Option) *harness {
	t.Helper()
	ctx := context.Background()
	clk := clock.NewFake(t0)
	store := memstore.New(clk)

	m, err := store.Catalog.CreateMovie(ctx, model.Movie{Title: "Test Movie"})
	require.NoError(t, err)
	show, err := store.Catalog.CreateShowWithSeats(ctx, model.Show{MovieID: m.ID, Theatre: "Hall 1", StartsAt: t0.Add(48 * time.Hour)}, 2, 5)
	require.NoError(t, err)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	events := &recordingPublisher{}

	base := []reservation.Option{
		reservation.WithClock(clk),
		reservation.WithLockTTL(10 * time.Minute),
		reservation.WithIdempotencyStore(store.Idempotency),
		reservation.WithEventPublisher(events),
		reservation.WithLogger(logger),
	}
	svc := reservation.NewService(store.Seats, store.Ledger, append(base, opts...)...)

	return &harness{
		clk:    clk,
		store:  store,
		svc:    svc,
		show:   show,
		seats:  store.Seats.ListByShow(show.ID),
		events: events,
		logs:   hook,
	}
}

func (h *harness) seat(label string) model.Seat {
	for _, s := range h.seats {
		if s.Label == label {
			return s
		}
	}
	panic("no seat " + label)
}

type recordingPublisher struct {
	mu       sync.Mutex
	bookings []model.Booking
	err      error
}

func (p *recordingPublisher) PublishBookingConfirmed(_ context.Context, b model.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bookings = append(p.bookings, b)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bookings)
}

func TestScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a1 := h.seat("A1")

	grant, err := h.svc.RequestLock(ctx, a1.ID, "U1")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(10*time.Minute), grant.ExpiresAt)

	h.clk.Set(t0.Add(time.Minute))
	_, err = h.svc.RequestLock(ctx, a1.ID, "U2")
	assert.ErrorIs(t, err, reservation.ErrSeatLocked)

	h.clk.Set(t0.Add(2 * time.Minute))
	first, err := h.svc.ConfirmBooking(ctx, h.show.ID, a1.ID, "U1", "k1")
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Equal(t, a1.ID, first.Booking.SeatID)
	assert.Equal(t, model.BookingConfirmed, first.Booking.Status)

	h.clk.Set(t0.Add(3 * time.Minute))
	_, err = h.svc.RequestLock(ctx, a1.ID, "U2")
	assert.ErrorIs(t, err, reservation.ErrSeatUnavailable)

	h.clk.Set(t0.Add(2 * time.Minute))
	again, err := h.svc.ConfirmBooking(ctx, h.show.ID, a1.ID, "U1", "k1")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Booking, again.Booking)
	assert.Equal(t, 1, h.store.Ledger.Len())
	assert.Equal(t, 1, h.events.count(), "a replay is not published again")
}

func TestLockExclusivityUntilRelease(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seat("A2")

	_, err := h.svc.RequestLock(ctx, s.ID, "A")
	require.NoError(t, err)
	_, err = h.svc.RequestLock(ctx, s.ID, "B")
	assert.ErrorIs(t, err, reservation.ErrSeatLocked)

	// Releasing someone else's lock does nothing.
	require.NoError(t, h.svc.ReleaseLock(ctx, s.ID, "B"))
	_, err = h.svc.RequestLock(ctx, s.ID, "B")
	assert.ErrorIs(t, err, reservation.ErrSeatLocked)

	require.NoError(t, h.svc.ReleaseLock(ctx, s.ID, "A"))
	_, err = h.svc.RequestLock(ctx, s.ID, "B")
	assert.NoError(t, err)
}

func TestRequestLockRefreshesForSameHolder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seat("A3")

	g1, err := h.svc.RequestLock(ctx, s.ID, "A")
	require.NoError(t, err)
	h.clk.Advance(4 * time.Minute)
	g2, err := h.svc.RequestLock(ctx, s.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, g1.ExpiresAt.Add(4*time.Minute), g2.ExpiresAt)
}

func TestExpiryLiveness(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seat("B1")

	_, err := h.svc.RequestLock(ctx, s.ID, "A")
	require.NoError(t, err)

	h.clk.Advance(10*time.Minute - time.Second)
	_, err = h.svc.RequestLock(ctx, s.ID, "B")
	assert.ErrorIs(t, err, reservation.ErrSeatLocked)

	// No reaper has run; the expired lock is simply ignored.
	h.clk.Advance(time.Second)
	_, err = h.svc.RequestLock(ctx, s.ID, "B")
	require.NoError(t, err)

	_, err = h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, "A", "late")
	assert.ErrorIs(t, err, reservation.ErrLockExpiredOrMissing)

	res, err := h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, "B", "on-time")
	require.NoError(t, err)
	assert.Equal(t, "B", res.Booking.HolderID)
}

func TestTerminalState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seat("B2")

	_, err := h.svc.RequestLock(ctx, s.ID, "A")
	require.NoError(t, err)
	_, err = h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, "A", "a-1")
	require.NoError(t, err)

	for _, holder := range []string{"A", "B", "C"} {
		_, err = h.svc.RequestLock(ctx, s.ID, holder)
		assert.ErrorIs(t, err, reservation.ErrSeatUnavailable, holder)

		_, err = h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, holder, "fresh-"+holder)
		assert.ErrorIs(t, err, reservation.ErrSeatAlreadyBooked, holder)
	}
	assert.Equal(t, 1, h.store.Ledger.Len())
}

func TestConfirmWithoutLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.ConfirmBooking(ctx, h.show.ID, h.seat("A4").ID, "A", "k")
	assert.ErrorIs(t, err, reservation.ErrLockExpiredOrMissing)

	_, err = h.svc.ConfirmBooking(ctx, h.show.ID, 9999, "A", "k")
	assert.ErrorIs(t, err, reservation.ErrSeatNotFound)
}

func TestConfirmRejectsSeatFromAnotherShow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seat("A5")

	_, err := h.svc.RequestLock(ctx, s.ID, "A")
	require.NoError(t, err)
	_, err = h.svc.ConfirmBooking(ctx, h.show.ID+1, s.ID, "A", "k")
	assert.ErrorIs(t, err, reservation.ErrSeatNotFound)
	assert.Equal(t, 0, h.store.Ledger.Len())
}

func TestConfirmValidatesInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.ConfirmBooking(ctx, h.show.ID, h.seat("A1").ID, "A", "")
	assert.ErrorIs(t, err, reservation.ErrIdempotencyKeyRequired)

	_, err = h.svc.ConfirmBooking(ctx, h.show.ID, h.seat("A1").ID, "", "k")
	assert.ErrorIs(t, err, reservation.ErrHolderRequired)

	_, err = h.svc.RequestLock(ctx, h.seat("A1").ID, "")
	assert.ErrorIs(t, err, reservation.ErrHolderRequired)
}

func TestRejectsIdentifiersWiderThanTheirColumns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seat("A1")
	longHolder := strings.Repeat("h", model.MaxHolderIDLen+1)
	longKey := strings.Repeat("k", model.MaxIdempotencyKeyLen+1)

	_, err := h.svc.RequestLock(ctx, s.ID, longHolder)
	assert.ErrorIs(t, err, reservation.ErrHolderIDTooLong)
	assert.True(t, reservation.IsDomainError(err))
	assert.ErrorIs(t, h.svc.ReleaseLock(ctx, s.ID, longHolder), reservation.ErrHolderIDTooLong)
	_, err = h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, longHolder, "k")
	assert.ErrorIs(t, err, reservation.ErrHolderIDTooLong)

	_, err = h.svc.RequestLock(ctx, s.ID, "A")
	require.NoError(t, err)
	_, err = h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, "A", longKey)
	assert.ErrorIs(t, err, reservation.ErrIdempotencyKeyTooLong)
	assert.True(t, reservation.IsDomainError(err))

	// Limits count characters, not bytes.
	conf, err := h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, "A", strings.Repeat("é", model.MaxIdempotencyKeyLen))
	require.NoError(t, err)
	assert.False(t, conf.Replayed)

	seat := h.seat("A2")
	wide := strings.Repeat("ü", model.MaxHolderIDLen)
	_, err = h.svc.RequestLock(ctx, seat.ID, wide)
	assert.NoError(t, err)
}

func TestReplaySurvivesLockExpiryAndCachePurge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seat("B3")

	_, err := h.svc.RequestLock(ctx, s.ID, "A")
	require.NoError(t, err)
	first, err := h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, "A", "attempt-1")
	require.NoError(t, err)

	// Past the lock TTL and the cache retention window.
	h.clk.Advance(25 * time.Hour)
	assert.Equal(t, 1, h.store.Idempotency.Purge(h.clk.Now()))

	again, err := h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, "A", "attempt-1")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Booking, again.Booking)
	assert.Equal(t, 1, h.store.Ledger.Len())
}

func TestReplayByAnotherHolderIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seat("B4")

	_, err := h.svc.RequestLock(ctx, s.ID, "A")
	require.NoError(t, err)
	_, err = h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, "A", "shared")
	require.NoError(t, err)

	other := h.seat("B5")
	_, err = h.svc.RequestLock(ctx, other.ID, "B")
	require.NoError(t, err)
	_, err = h.svc.ConfirmBooking(ctx, h.show.ID, other.ID, "B", "shared")
	assert.ErrorIs(t, err, reservation.ErrIdempotencyKeyReused)
}

type failingIdempotency struct{}

func (failingIdempotency) Get(context.Context, string) (model.Booking, bool, error) {
	return model.Booking{}, false, errors.New("redis down")
}

func (failingIdempotency) Put(context.Context, string, model.Booking, time.Duration) error {
	return errors.New("redis down")
}

func TestIdempotencyCacheFailureFallsBackToLedger(t *testing.T) {
	h := newHarness(t, reservation.WithIdempotencyStore(failingIdempotency{}))
	ctx := context.Background()
	s := h.seat("A1")

	_, err := h.svc.RequestLock(ctx, s.ID, "A")
	require.NoError(t, err)
	first, err := h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, "A", "k")
	require.NoError(t, err)

	again, err := h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, "A", "k")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Booking, again.Booking)

	var warned bool
	for _, e := range h.logs.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "idempotency cache read failed" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestPublishFailureDoesNotFailBooking(t *testing.T) {
	h := newHarness(t)
	h.events.err = errors.New("broker unavailable")
	ctx := context.Background()
	s := h.seat("A2")

	_, err := h.svc.RequestLock(ctx, s.ID, "A")
	require.NoError(t, err)
	_, err = h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, "A", "k")
	require.NoError(t, err)
	assert.Equal(t, 1, h.events.count())
}

func TestGetBookingIsScopedToHolder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seat("A3")

	_, err := h.svc.RequestLock(ctx, s.ID, "A")
	require.NoError(t, err)
	res, err := h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, "A", "k")
	require.NoError(t, err)

	got, err := h.svc.GetBooking(ctx, res.Booking.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, res.Booking, got)

	_, err = h.svc.GetBooking(ctx, res.Booking.ID, "B")
	assert.ErrorIs(t, err, reservation.ErrBookingNotFound)
	_, err = h.svc.GetBooking(ctx, "missing", "A")
	assert.ErrorIs(t, err, reservation.ErrBookingNotFound)
}

func TestConcurrentLockAndConfirmSellsSeatOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seat("B5")

	const holders = 64
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			holder := fmt.Sprintf("holder-%d", i)
			<-start
			if _, err := h.svc.RequestLock(ctx, s.ID, holder); err != nil {
				// Locked while the winner holds it, unavailable once it is sold.
				assert.True(t, errors.Is(err, reservation.ErrSeatLocked) || errors.Is(err, reservation.ErrSeatUnavailable), "unexpected lock error: %v", err)
				return
			}
			if _, err := h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, holder, "key-"+holder); err == nil {
				successes.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, 1, h.store.Ledger.Len())
}

func TestConcurrentCommitsBypassingLocksSellSeatOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seat("A5")

	const writers = 64
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := h.store.Ledger.CommitBooking(ctx, reservation.CommitRequest{
				BookingID:      fmt.Sprintf("b-%d", i),
				ShowID:         h.show.ID,
				SeatID:         s.ID,
				HolderID:       fmt.Sprintf("h-%d", i),
				IdempotencyKey: fmt.Sprintf("k-%d", i),
				Now:            t0,
			})
			if err == nil {
				successes.Add(1)
				return
			}
			assert.ErrorIs(t, err, reservation.ErrSeatAlreadyBooked)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	seat, err := h.store.Seats.GetSeat(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatSold, seat.Status)
}

func TestConcurrentRetriesOfOneAttemptReplay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seat("B1")

	_, err := h.svc.RequestLock(ctx, s.ID, "A")
	require.NoError(t, err)

	const retries = 32
	results := make([]reservation.Confirmation, retries)
	errs := make([]error, retries)
	var wg sync.WaitGroup
	for i := 0; i < retries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.svc.ConfirmBooking(ctx, h.show.ID, s.ID, "A", "retry-key")
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Booking.ID, results[i].Booking.ID)
		if !results[i].Replayed {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, 1, h.store.Ledger.Len())
}
