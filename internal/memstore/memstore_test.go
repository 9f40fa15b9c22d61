package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/clock"
	"github.com/iliyamo/showtime-booking/internal/inventory"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func TestSeatStoreLockLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewSeatStore()
	seat := s.AddSeats(1, []string{"A1"})[0]

	l, err := s.AcquireLock(ctx, seat.ID, "u1", t0, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute), l.ExpiresAt)

	_, err = s.AcquireLock(ctx, seat.ID, "u2", t0.Add(30*time.Second), time.Minute)
	assert.ErrorIs(t, err, reservation.ErrSeatLocked)

	ok, err := s.ValidateLock(ctx, seat.ID, "u1", t0.Add(59*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ValidateLock(ctx, seat.ID, "u1", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "expiry is exclusive")

	// The stale lock still sits on the seat until reclaimed, but a new
	// holder may take it.
	_, err = s.AcquireLock(ctx, seat.ID, "u2", t0.Add(time.Minute), time.Minute)
	require.NoError(t, err)

	got, err := s.GetSeat(ctx, seat.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatLocked, got.Status)
	assert.Equal(t, "u2", got.Lock.HolderID)

	require.NoError(t, s.ReleaseLock(ctx, seat.ID, "u1"))
	got, _ = s.GetSeat(ctx, seat.ID)
	assert.Equal(t, model.SeatLocked, got.Status, "a non-holder cannot release")

	require.NoError(t, s.ReleaseLock(ctx, seat.ID, "u2"))
	got, _ = s.GetSeat(ctx, seat.ID)
	assert.Equal(t, model.SeatAvailable, got.Status)
	assert.Nil(t, got.Lock)
}

func TestSeatStoreUnknownSeat(t *testing.T) {
	ctx := context.Background()
	s := NewSeatStore()

	_, err := s.AcquireLock(ctx, 42, "u1", t0, time.Minute)
	assert.ErrorIs(t, err, reservation.ErrSeatNotFound)
	_, err = s.GetSeat(ctx, 42)
	assert.ErrorIs(t, err, reservation.ErrSeatNotFound)

	ok, err := s.ValidateLock(ctx, 42, "u1", t0)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.ReleaseLock(ctx, 42, "u1"))
}

func TestSeatStoreCancelledContext(t *testing.T) {
	s := NewSeatStore()
	seat := s.AddSeats(1, []string{"A1"})[0]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AcquireLock(ctx, seat.ID, "u1", t0, time.Minute)
	assert.ErrorIs(t, err, reservation.ErrStorage)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSeatStoreSnapshotsDoNotAlias(t *testing.T) {
	ctx := context.Background()
	s := NewSeatStore()
	seat := s.AddSeats(1, []string{"A1"})[0]
	_, err := s.AcquireLock(ctx, seat.ID, "u1", t0, time.Minute)
	require.NoError(t, err)

	got, _ := s.GetSeat(ctx, seat.ID)
	got.Lock.HolderID = "mallory"

	ok, err := s.ValidateLock(ctx, seat.ID, "u1", t0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReclaimExpired(t *testing.T) {
	ctx := context.Background()
	s := NewSeatStore()
	seats := s.AddSeats(1, []string{"A1", "A2", "A3"})

	_, _ = s.AcquireLock(ctx, seats[0].ID, "u1", t0, time.Minute)
	_, _ = s.AcquireLock(ctx, seats[1].ID, "u2", t0, 5*time.Minute)

	n, err := s.ReclaimExpired(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	statuses := map[string]model.SeatStatus{}
	for _, seat := range s.ListByShow(1) {
		statuses[seat.Label] = seat.Status
	}
	assert.Equal(t, map[string]model.SeatStatus{
		"A1": model.SeatAvailable,
		"A2": model.SeatLocked,
		"A3": model.SeatAvailable,
	}, statuses)
}

func TestLedgerCommit(t *testing.T) {
	ctx := context.Background()
	s := NewSeatStore()
	l := NewLedger(s)
	seats := s.AddSeats(7, []string{"A1", "A2"})

	_, err := s.AcquireLock(ctx, seats[0].ID, "u1", t0, time.Minute)
	require.NoError(t, err)

	req := reservation.CommitRequest{BookingID: "b1", ShowID: 7, SeatID: seats[0].ID, HolderID: "u1", IdempotencyKey: "k1", Now: t0}
	b, err := l.CommitBooking(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, t0, b.CreatedAt)

	seat, _ := s.GetSeat(ctx, seats[0].ID)
	assert.Equal(t, model.SeatSold, seat.Status)
	assert.Nil(t, seat.Lock)

	got, ok, err := l.LookupByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, b, got)

	_, err = l.CommitBooking(ctx, reservation.CommitRequest{BookingID: "b2", ShowID: 7, SeatID: seats[0].ID, HolderID: "u2", IdempotencyKey: "k2", Now: t0})
	assert.ErrorIs(t, err, reservation.ErrSeatAlreadyBooked)

	_, err = l.CommitBooking(ctx, reservation.CommitRequest{BookingID: "b3", ShowID: 7, SeatID: seats[1].ID, HolderID: "u1", IdempotencyKey: "k1", Now: t0})
	assert.ErrorIs(t, err, reservation.ErrDuplicateIdempotencyKey)

	_, err = l.CommitBooking(ctx, reservation.CommitRequest{BookingID: "b4", ShowID: 8, SeatID: seats[1].ID, HolderID: "u1", IdempotencyKey: "k4", Now: t0})
	assert.ErrorIs(t, err, reservation.ErrSeatNotFound)

	assert.Equal(t, 1, l.Len())
	_, err = l.GetBooking(ctx, "b2")
	assert.ErrorIs(t, err, reservation.ErrBookingNotFound)
}

func TestLedgerRejectsSeatHeldByAnotherHolder(t *testing.T) {
	ctx := context.Background()
	s := NewSeatStore()
	l := NewLedger(s)
	seat := s.AddSeats(1, []string{"A1"})[0]

	_, err := s.AcquireLock(ctx, seat.ID, "u2", t0, time.Minute)
	require.NoError(t, err)

	_, err = l.CommitBooking(ctx, reservation.CommitRequest{BookingID: "b1", ShowID: 1, SeatID: seat.ID, HolderID: "u1", IdempotencyKey: "k1", Now: t0})
	assert.ErrorIs(t, err, reservation.ErrLockExpiredOrMissing)
	assert.Equal(t, 0, l.Len())
}

func TestIdempotencyCache(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	c := NewIdempotencyCache(clk)
	b := model.Booking{ID: "b1", IdempotencyKey: "k1", HolderID: "u1"}

	require.NoError(t, c.Put(ctx, "k1", b, time.Hour))
	got, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, b, got)

	clk.Advance(time.Hour)
	_, ok, _ = c.Get(ctx, "k1")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.Purge(clk.Now()))
	assert.Equal(t, 0, c.Len())
}

func TestCatalogAndSeed(t *testing.T) {
	ctx := context.Background()
	st := New(clock.NewFake(t0))

	n, err := inventory.Seed(ctx, st.Catalog, t0, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	movies, err := st.Catalog.ListMovies(ctx)
	require.NoError(t, err)
	require.Len(t, movies, len(inventory.Demo))
	assert.Equal(t, inventory.Demo[0].Movie.Title, movies[0].Title)

	shows, err := st.Catalog.ListShowsByMovie(ctx, movies[0].ID)
	require.NoError(t, err)
	require.Len(t, shows, 4)
	assert.False(t, shows[1].StartsAt.Before(shows[0].StartsAt))

	seats, err := st.Catalog.ListSeatsByShow(ctx, shows[0].ID)
	require.NoError(t, err)
	require.Len(t, seats, 12)
	assert.Equal(t, "A1", seats[0].Label)
	assert.Equal(t, "C4", seats[11].Label)

	_, err = st.Catalog.GetShow(ctx, 999)
	assert.ErrorIs(t, err, inventory.ErrShowNotFound)
	_, err = st.Catalog.CreateShowWithSeats(ctx, model.Show{MovieID: 999}, 1, 1)
	assert.ErrorIs(t, err, inventory.ErrMovieNotFound)
}
