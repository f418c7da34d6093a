// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"math/big"
	"net/http"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Engine metrics
	OperationsTotal     *prometheus.CounterVec
	OperationLatency    *prometheus.HistogramVec
	InstructionsEmitted prometheus.Counter

	// Oracle metrics
	OracleCallLatency *prometheus.HistogramVec
	OracleCallErrors  *prometheus.CounterVec

	// State gauges
	TotalSupply prometheus.Gauge
	VaultValue  prometheus.Gauge

	// Event stream metrics
	WSClientsConnected prometheus.Gauge
	EventsBroadcast    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Export metrics
	ExportRunsTotal    *prometheus.CounterVec
	ExportDuration     prometheus.Histogram
	OperationsExported prometheus.Counter

	// Health metrics
	LastSuccessfulOperation prometheus.Gauge
	LastSuccessfulExport    prometheus.Gauge
	UptimeSeconds           prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pooled_vault"
	}

	return &Metrics{
		// Engine metrics
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total number of vault operations by kind and status",
		}, []string{"kind", "status"}),
		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_latency_seconds",
			Help:      "Vault operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		InstructionsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "instructions_emitted_total",
			Help:      "Total number of host instructions emitted",
		}),

		// Oracle metrics
		OracleCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "call_latency_seconds",
			Help:      "Valuation oracle call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		OracleCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "call_errors_total",
			Help:      "Total number of failed valuation oracle calls",
		}, []string{"method"}),

		// State gauges
		TotalSupply: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "total_supply",
			Help:      "Outstanding share supply (approximate above 2^53)",
		}),
		VaultValue: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "vault_value",
			Help:      "Last observed vault valuation in underlying units (approximate above 2^53)",
		}),

		// Event stream metrics
		WSClientsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "ws_clients_connected",
			Help:      "Number of connected WebSocket subscribers",
		}),
		EventsBroadcast: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "broadcast_total",
			Help:      "Total number of operation events broadcast to subscribers",
		}),

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

		// Export metrics
		ExportRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "runs_total",
			Help:      "Total number of analytics export runs by status",
		}, []string{"status"}),
		ExportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "Analytics export run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		OperationsExported: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "operations_total",
			Help:      "Total number of operations copied to the analytics sink",
		}),

		// Health metrics
		LastSuccessfulOperation: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_operation_timestamp",
			Help:      "Unix timestamp of the last committed vault operation",
		}),
		LastSuccessfulExport: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_export_timestamp",
			Help:      "Unix timestamp of the last successful analytics export",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordOperation records one vault operation outcome.
func RecordOperation(kind, status string, seconds float64) {
	DefaultMetrics.OperationsTotal.WithLabelValues(kind, status).Inc()
	DefaultMetrics.OperationLatency.WithLabelValues(kind).Observe(seconds)
}

// RecordInstructions adds to the emitted instruction counter.
func RecordInstructions(count int) {
	DefaultMetrics.InstructionsEmitted.Add(float64(count))
}

// RecordOracleCall records oracle call latency and failures.
func RecordOracleCall(method string, seconds float64, err error) {
	DefaultMetrics.OracleCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.OracleCallErrors.WithLabelValues(method).Inc()
	}
}

// UpdateTotalSupply sets the supply gauge. Values above 2^53 lose
// precision, which is acceptable for a monitoring signal.
func UpdateTotalSupply(supply math.Int) {
	DefaultMetrics.TotalSupply.Set(approxFloat(supply))
}

// UpdateVaultValue sets the valuation gauge.
func UpdateVaultValue(value math.Int) {
	DefaultMetrics.VaultValue.Set(approxFloat(value))
}

// UpdateWSClients sets the connected subscriber gauge.
func UpdateWSClients(n int) {
	DefaultMetrics.WSClientsConnected.Set(float64(n))
}

// RecordEventBroadcast increments the broadcast counter.
func RecordEventBroadcast() {
	DefaultMetrics.EventsBroadcast.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordExportRun records one analytics export run.
func RecordExportRun(status string, durationSeconds float64, exported int) {
	DefaultMetrics.ExportRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.ExportDuration.Observe(durationSeconds)
	DefaultMetrics.OperationsExported.Add(float64(exported))
}

func approxFloat(v math.Int) float64 {
	if v.IsNil() {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.BigInt()).Float64()
	return f
}
