package prometheus

import (
	"time"

	"github.com/noahdhickman/Quodsi-API-sub001/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Authentication metrics
	AuthErrorsCounter           prometheus.Counter
	TenantContextMissingCounter prometheus.Counter

	// Database operation metrics
	DbOperationDuration prometheus.HistogramVec

	// Entity operation metrics
	ModelOperationsCounter    prometheus.CounterVec
	AnalysisOperationsCounter prometheus.CounterVec
	ScenarioOperationsCounter prometheus.CounterVec

	// Lifecycle metrics
	ScenarioTransitionsCounter prometheus.CounterVec
	RunningScenariosGauge      prometheus.Gauge
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(config *config.Config) {
	// Use metric prefix from configuration
	prefix := config.Metrics.Prefix

	HttpRequestsTotal = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AuthErrorsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors",
		},
	)

	TenantContextMissingCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_tenant_context_missing_total",
			Help: "Total number of requests without tenant context",
		},
	)

	DbOperationDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	ModelOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_model_operations_total",
			Help: "Total number of model operations",
		},
		[]string{"operation"},
	)

	AnalysisOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_analysis_operations_total",
			Help: "Total number of analysis operations",
		},
		[]string{"operation"},
	)

	ScenarioOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_scenario_operations_total",
			Help: "Total number of scenario operations",
		},
		[]string{"operation"},
	)

	ScenarioTransitionsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_scenario_transitions_total",
			Help: "Total number of scenario lifecycle transition attempts",
		},
		[]string{"operation", "outcome"},
	)

	RunningScenariosGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_scenarios_running",
			Help: "Scenarios currently reported as running",
		},
	)
}

// RecordModelOperation increments the model operation counter
func RecordModelOperation(operation string) {
	ModelOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordAnalysisOperation increments the analysis operation counter
func RecordAnalysisOperation(operation string) {
	AnalysisOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordScenarioOperation increments the scenario operation counter
func RecordScenarioOperation(operation string) {
	ScenarioOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordScenarioTransition increments the transition counter
func RecordScenarioTransition(operation, outcome string) {
	ScenarioTransitionsCounter.WithLabelValues(operation, outcome).Inc()
}

// RecordAuthError increments the auth error counter
func RecordAuthError() {
	AuthErrorsCounter.Inc()
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}
