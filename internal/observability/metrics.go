// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Setup metrics
	LaunchesCreated *prometheus.CounterVec
	TokensMinted    prometheus.Counter

	// Sale metrics
	Purchases         *prometheus.CounterVec
	TokensSold        prometheus.Counter
	LamportsDeposited prometheus.Counter
	Claims            *prometheus.CounterVec
	TokensReturned    prometheus.Counter
	LamportsRefunded  prometheus.Counter
	FeesCollected     *prometheus.CounterVec
	Settlements       prometheus.Counter
	StatusTransitions *prometheus.CounterVec
	HaltedLaunches    prometheus.Counter

	// Error and latency metrics
	OperationErrors  *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec

	// Feed metrics
	FeedClients         prometheus.Gauge
	FeedMessagesDropped prometheus.Counter
	PublishErrors       *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "meme_presale"
	}

	return &Metrics{
		// Setup metrics
		LaunchesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "setup",
			Name:      "launches_created_total",
			Help:      "Total number of launches created by tier",
		}, []string{"tier"}),
		TokensMinted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "setup",
			Name:      "tokens_minted_total",
			Help:      "Total number of launch tokens minted",
		}),

		// Sale metrics
		Purchases: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "purchases_total",
			Help:      "Total number of successful purchases by tier",
		}, []string{"tier"}),
		TokensSold: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "tokens_sold_units_total",
			Help:      "Total token units sold",
		}),
		LamportsDeposited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "lamports_deposited_total",
			Help:      "Total lamports deposited by buyers",
		}),
		Claims: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "claims_total",
			Help:      "Total number of refund claims by tier",
		}, []string{"tier"}),
		TokensReturned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "tokens_returned_units_total",
			Help:      "Total token units returned through claims",
		}),
		LamportsRefunded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "lamports_refunded_total",
			Help:      "Total net lamports refunded to claimers",
		}),
		FeesCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "fees_collected_lamports_total",
			Help:      "Total fee lamports paid to the fee receiver by source",
		}, []string{"source"}),
		Settlements: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "settlements_total",
			Help:      "Total number of success distributions",
		}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "status_transitions_total",
			Help:      "Total number of persisted status transitions",
		}, []string{"from", "to"}),
		HaltedLaunches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "halted_launches_total",
			Help:      "Total number of launches halted after a consistency fault",
		}),

		// Error and latency metrics
		OperationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_errors_total",
			Help:      "Total number of failed operations by error class",
		}, []string{"operation", "class"}),
		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_latency_seconds",
			Help:      "Engine operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		// Feed metrics
		FeedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Current number of receipt feed subscribers",
		}),
		FeedMessagesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_dropped_total",
			Help:      "Total number of receipt messages dropped for slow subscribers",
		}),
		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "publish_errors_total",
			Help:      "Total number of receipt publish failures by kind",
		}, []string{"kind"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordLaunchCreated increments the launches created counter.
func RecordLaunchCreated(tier string) {
	DefaultMetrics.LaunchesCreated.WithLabelValues(tier).Inc()
}

// RecordTokenMinted increments the tokens minted counter.
func RecordTokenMinted() {
	DefaultMetrics.TokensMinted.Inc()
}

// RecordPurchase records a successful purchase.
func RecordPurchase(tier string, units, deposit uint64) {
	DefaultMetrics.Purchases.WithLabelValues(tier).Inc()
	DefaultMetrics.TokensSold.Add(float64(units))
	DefaultMetrics.LamportsDeposited.Add(float64(deposit))
}

// RecordClaim records a successful refund claim.
func RecordClaim(tier string, units, netRefund, fee uint64) {
	DefaultMetrics.Claims.WithLabelValues(tier).Inc()
	DefaultMetrics.TokensReturned.Add(float64(units))
	DefaultMetrics.LamportsRefunded.Add(float64(netRefund))
	DefaultMetrics.FeesCollected.WithLabelValues("claim").Add(float64(fee))
}

// RecordSettlement records a success distribution.
func RecordSettlement(fee uint64) {
	DefaultMetrics.Settlements.Inc()
	DefaultMetrics.FeesCollected.WithLabelValues("settlement").Add(float64(fee))
}

// RecordTransition records a persisted status transition.
func RecordTransition(from, to string) {
	DefaultMetrics.StatusTransitions.WithLabelValues(from, to).Inc()
}

// RecordHalt records a launch halted after a consistency fault.
func RecordHalt() {
	DefaultMetrics.HaltedLaunches.Inc()
}

// RecordOperation records engine operation latency and, on failure, the error class.
func RecordOperation(operation string, seconds float64, errClass string) {
	DefaultMetrics.OperationLatency.WithLabelValues(operation).Observe(seconds)
	if errClass != "" {
		DefaultMetrics.OperationErrors.WithLabelValues(operation, errClass).Inc()
	}
}

// SetFeedClients updates the receipt feed subscriber gauge.
func SetFeedClients(n int) {
	DefaultMetrics.FeedClients.Set(float64(n))
}

// RecordFeedDrop increments the dropped feed message counter.
func RecordFeedDrop() {
	DefaultMetrics.FeedMessagesDropped.Inc()
}

// RecordPublishError records a failed receipt publish.
func RecordPublishError(kind string) {
	DefaultMetrics.PublishErrors.WithLabelValues(kind).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
