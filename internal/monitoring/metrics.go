package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refledger_http_response_time_seconds",
			Help:    "Histogram of HTTP response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PaymentEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refledger_payment_events_total",
			Help: "Payment events by processing result",
		},
		[]string{"result"},
	)

	RefundEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refledger_refund_events_total",
			Help: "Refund events by processing result",
		},
		[]string{"result"},
	)

	FraudAssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refledger_fraud_assessments_total",
			Help: "Fraud assessments by resulting risk level",
		},
		[]string{"level"},
	)

	ParkedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refledger_parked_events_total",
			Help: "Events parked after exhausting retries",
		},
		[]string{"kind"},
	)

	CounterDriftTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refledger_counter_drift_total",
			Help: "Cached counters corrected during reconciliation",
		},
		[]string{"field"},
	)

	InvariantViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refledger_invariant_violations_total",
			Help: "Ledger invariant violations detected during reconciliation",
		},
	)

	SnapshotRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refledger_snapshot_refresh_total",
			Help: "Leaderboard snapshot refresh runs by outcome",
		},
		[]string{"outcome"},
	)
)
