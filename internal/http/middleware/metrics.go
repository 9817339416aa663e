// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic and for the
// background analysis pipeline. HTTP labels are kept to method, registered
// route, and status code to bound cardinality.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// httpReqs counts requests by method, route path, and status code.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// httpLat records request duration in seconds by method and route path.
	// Status is omitted to keep histogram cardinality lower.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpInflight gauges the number of in-flight (currently processing) requests.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// httpRespSize captures response sizes in bytes by method and route path.
	// Buckets are tuned for typical JSON API payload sizes.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 2 << 10, 5 << 10, // 200B..5KiB
				10 << 10, 25 << 10, 50 << 10, // 10..50KiB
				100 << 10, 250 << 10, 500 << 10, // 100..500KiB
				1 << 20, // 1MiB
			},
		},
		[]string{"method", "path"},
	)

	// analysisOutcomes counts finished background analysis attempts by
	// terminal outcome (completed, failed, retrying, skipped).
	analysisOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_analysis_outcomes_total",
			Help: "Background analysis outcomes by result.",
		},
		[]string{"outcome"},
	)

	// analysisQueueDepth gauges the analysis queue length.
	analysisQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "journal_analysis_queue_depth",
			Help: "Entries waiting in the analysis queue.",
		},
	)

	// analysisDuration records wall time of successful analysis runs.
	analysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "journal_analysis_duration_seconds",
			Help:    "Duration of completed analysis runs in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpReqs, httpLat, httpInflight, httpRespSize,
		analysisOutcomes, analysisQueueDepth, analysisDuration,
	)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
// Semantics:
//   - Increments http_requests_total(method, path, status) per request
//   - Observes http_request_duration_seconds(method, path) on completion
//   - Tracks http_requests_inflight gauge during handler execution
//   - Observes http_response_size_bytes(method, path) with bytes written
//
// The "path" label uses the registered route (c.FullPath()) to avoid
// unbounded label cardinality from raw URLs; unmatched routes fall back to
// the raw URL path.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		dur := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())
		size := c.Writer.Size() // -1 when unknown

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(dur)
		if size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

// ObserveAnalysisOutcome records one background analysis outcome. Called from
// the coordinator's event listener.
func ObserveAnalysisOutcome(outcome string) {
	analysisOutcomes.WithLabelValues(outcome).Inc()
}

// SetAnalysisQueueDepth publishes the current analysis queue length.
func SetAnalysisQueueDepth(n int) {
	analysisQueueDepth.Set(float64(n))
}

// ObserveAnalysisDuration records the wall time of one completed analysis.
func ObserveAnalysisDuration(d time.Duration) {
	analysisDuration.Observe(d.Seconds())
}
