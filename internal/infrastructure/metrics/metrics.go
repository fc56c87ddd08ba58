// Package metrics provides Prometheus instrumentation for the analyzer.
package metrics

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aml"

var (
	// AnalysesTotal counts comprehensive analyses by final status.
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total comprehensive analyses by status.",
		},
		[]string{"status"},
	)

	// AnalysisDuration observes comprehensive analysis latency.
	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Comprehensive analysis duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// BranchOutcomesTotal counts analysis branch outcomes by branch and status.
	BranchOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_branch_outcomes_total",
			Help:      "Analysis branch outcomes by branch and status.",
		},
		[]string{"branch", "status"},
	)

	// FactorFailuresTotal counts risk factors that degraded to zero after a failure.
	FactorFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_factor_failures_total",
			Help:      "Risk factor calculations that failed and degraded to zero.",
		},
		[]string{"factor"},
	)

	// RiskLevelsTotal counts assessments by resulting risk level.
	RiskLevelsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_levels_total",
			Help:      "Risk assessments by risk level.",
		},
		[]string{"level"},
	)

	// FindingsTotal counts detector findings by detector.
	FindingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_findings_total",
			Help:      "Pattern detector findings by detector.",
		},
		[]string{"detector"},
	)

	// GraphCallDuration observes graph store call latency by operation.
	GraphCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "call_duration_seconds",
			Help:      "Graph store call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// GraphCallErrorsTotal counts failed graph store calls by operation and reason.
	GraphCallErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "call_errors_total",
			Help:      "Failed graph store calls by operation and reason.",
		},
		[]string{"operation", "reason"}, // "timeout", "unavailable", "error"
	)

	// RequestsTotal counts analysis requests received over messaging by result.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "requests_total",
			Help:      "Analysis requests received over messaging by result.",
		},
		[]string{"result"},
	)

	// QueueDepth tracks requests waiting for a worker.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "messaging",
		Name:      "queue_depth",
		Help:      "Analysis requests waiting for a worker.",
	})

	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "goroutines",
		Help:      "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		AnalysesTotal,
		AnalysisDuration,
		BranchOutcomesTotal,
		FactorFailuresTotal,
		RiskLevelsTotal,
		FindingsTotal,
		GraphCallDuration,
		GraphCallErrorsTotal,
		RequestsTotal,
		QueueDepth,
		GoroutineCount,
	)
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartRuntimeCollector periodically samples the goroutine count.
// Call in a goroutine; exits when ctx is done.
func StartRuntimeCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}
