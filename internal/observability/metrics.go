package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rail_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	StepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rail_workflow_transitions_total",
			Help: "Booking workflow step transitions",
		},
		[]string{"from", "to"},
	)

	GuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rail_workflow_guard_rejections_total",
			Help: "Forward transitions refused by a step guard",
		},
		[]string{"step"},
	)

	SearchFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rail_search_fetches_total",
			Help: "Train search fetches by outcome",
		},
		[]string{"outcome"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rail_search_seconds",
			Help:    "Duration of train search calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rail_booking_submissions_total",
			Help: "Create-booking calls by outcome",
		},
		[]string{"outcome"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rail_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rail_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rail_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rail_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
