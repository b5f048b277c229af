package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// All collectors register with the default registry through promauto.
var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sr_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	HoldsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sr_holds_total",
			Help: "Find-and-hold requests by resulting status",
		},
		[]string{"status"},
	)

	ReservationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sr_reservations_total",
			Help: "Holds confirmed into reservations",
		},
	)

	HoldsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sr_holds_expired_total",
			Help: "Holds evicted by the reconciler",
		},
	)

	SeatAnomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sr_seat_anomalies_total",
			Help: "Seat transitions lost to a concurrent terminal transition",
		},
		[]string{"source"},
	)

	LiveHolds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sr_live_holds",
			Help: "Holds currently registered",
		},
	)

	OpenSeats = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sr_open_seats",
			Help: "Seats currently open",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sr_sweep_seconds",
			Help:    "Duration of reconciler sweeps",
			Buckets: prometheus.DefBuckets,
		},
	)

	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sr_events_published_total",
			Help: "Lifecycle events published to the broker",
		},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sr_events_dropped_total",
			Help: "Lifecycle events dropped because the outbox was full or publishing failed",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sr_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
