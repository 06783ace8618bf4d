// Package metrics provides Prometheus metrics for the reservation core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label cardinality stays bounded: no requester, reservation or seat ids in labels.

var (
	// BookingsTotal counts booking attempts by outcome
	// (confirmed, unknown_seat, seat_unavailable, conflict, payment_declined, invalid).
	BookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_bookings_total",
		Help: "Total number of booking attempts, by outcome.",
	}, []string{"outcome"})

	// BookingDuration observes the wall time of Book calls by outcome.
	BookingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reservation_booking_duration_seconds",
		Help:    "Duration of booking attempts, by outcome.",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"outcome"})

	// ReleaseMismatchTotal counts releases by a caller that is not the
	// current holder. Any increase points at a logic fault upstream.
	ReleaseMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_release_mismatch_total",
		Help: "Total number of seat releases attempted by a non-holder.",
	})

	// LeaseExpiredTotal counts holds reclaimed after their lease ran out, by path (access, sweep).
	LeaseExpiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_lease_expired_total",
		Help: "Total number of expired seat holds reclaimed, by path.",
	}, []string{"path"})

	// CompensationsTotal counts committed seats reverted after a partial commit failure.
	CompensationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_compensations_total",
		Help: "Total number of committed seats reverted by compensating rollback.",
	})

	// RefundRequiredTotal counts bookings rolled back after a successful charge.
	RefundRequiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_refund_required_total",
		Help: "Total number of charged booking attempts that had to be rolled back.",
	})

	// ReservationTransitionsTotal counts reservation status changes by target status.
	ReservationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_transitions_total",
		Help: "Total number of reservation status transitions, by target status.",
	}, []string{"status"})

	// WaitlistPromotionsTotal counts promotion attempts by result (promoted, skipped, failed).
	WaitlistPromotionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_waitlist_promotions_total",
		Help: "Total number of waitlist promotion attempts, by result.",
	}, []string{"result"})

	// WaitlistDepth tracks queued requesters across all events.
	WaitlistDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reservation_waitlist_depth",
		Help: "Current number of waitlist entries across all events.",
	})

	// ProvisionedEvents tracks events currently registered.
	ProvisionedEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reservation_provisioned_events",
		Help: "Current number of provisioned events.",
	})
)
