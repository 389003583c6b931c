// Package metrics registers the service's Prometheus collectors.  Counters
// are package-level so components can increment them without threading a
// registry through every constructor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BookingsCreated counts PENDING bookings successfully created.
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_holds_created_total",
		Help: "Number of PENDING bookings created.",
	})

	// SeatConflicts counts hold attempts rejected because a seat was
	// locked or no longer available.
	SeatConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_seat_conflicts_total",
		Help: "Number of hold attempts rejected due to seat contention.",
	})

	// BookingsExpired counts bookings freed by the expiry sweeper.
	BookingsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_expired_total",
		Help: "Number of PENDING bookings expired by the sweeper.",
	})

	// SweepRuns counts sweeper ticks, successful or not.
	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_sweep_runs_total",
		Help: "Number of expiry sweep cycles executed.",
	})

	// WebhookEvents counts webhook deliveries by outcome: processed,
	// duplicate, ignored, invalid_signature or error.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Number of payment webhook deliveries by outcome.",
	}, []string{"outcome"})
)

// Handler exposes the default registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
