package reservation_test

import (
	"context"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/reservation"
)

func TestReaperSweepReclaimsExpiredLocks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	logger, _ := logtest.NewNullLogger()

	_, err := h.svc.RequestLock(ctx, h.seat("A1").ID, "A")
	require.NoError(t, err)
	h.clk.Advance(5 * time.Minute)
	_, err = h.svc.RequestLock(ctx, h.seat("A2").ID, "B")
	require.NoError(t, err)
	_, err = h.svc.ConfirmBooking(ctx, h.show.ID, h.seat("A2").ID, "B", "k")
	require.NoError(t, err)

	r := reservation.NewReaper(h.store.Seats, time.Minute,
		reservation.ReaperClock(h.clk),
		reservation.ReaperLogger(logger),
		reservation.ReaperPurgers(h.store.Idempotency),
	)

	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "A1 is still held")

	h.clk.Advance(5 * time.Minute)
	n, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a1, err := h.store.Seats.GetSeat(ctx, h.seat("A1").ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, a1.Status)
	assert.Nil(t, a1.Lock)

	a2, err := h.store.Seats.GetSeat(ctx, h.seat("A2").ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatSold, a2.Status, "sold seats are never reclaimed")

	assert.Equal(t, 1, h.store.Idempotency.Len())
	h.clk.Advance(24 * time.Hour)
	_, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, h.store.Idempotency.Len())
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	logger, _ := logtest.NewNullLogger()
	r := reservation.NewReaper(h.store.Seats, 5*time.Millisecond, reservation.ReaperLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
