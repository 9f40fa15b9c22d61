// Package metrics exposes Prometheus counters for the reservation
// protocol.  They are registered on the default registry and served by
// the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "showtime_booking"

var (
	// LockRequests counts RequestLock outcomes by result label
	// (granted, seat_locked, seat_unavailable, not_found, error).
	LockRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lock_requests_total",
		Help:      "Seat lock requests by outcome.",
	}, []string{"result"})

	// BookingRequests counts ConfirmBooking outcomes by result label
	// (confirmed, replayed, lock_expired, already_booked, error, ...).
	BookingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_requests_total",
		Help:      "Booking confirmations by outcome.",
	}, []string{"result"})

	LocksReleased = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "locks_released_total",
		Help:      "Explicit lock releases.",
	})

	LocksReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "locks_reclaimed_total",
		Help:      "Expired locks returned to AVAILABLE by the reaper.",
	})

	IdempotencyPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idempotency_records_purged_total",
		Help:      "Idempotency records dropped after their retention window.",
	})
)
