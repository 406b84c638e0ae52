package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	upstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowtrack",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Upstream HTTP calls grouped by provider, operation and status class.",
	}, []string{"provider", "operation", "status"})

	upstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flowtrack",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency of upstream HTTP calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "operation"})

	queryPages = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "flowtrack",
		Subsystem: "query",
		Name:      "upstream_pages",
		Help:      "Upstream pages pulled to satisfy one activity list request.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 20},
	})

	analysisOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowtrack",
		Subsystem: "analysis",
		Name:      "outcomes_total",
		Help:      "Analytics bridge results by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(upstreamRequests, upstreamLatency, queryPages, analysisOutcomes)
}

// StatusClass collapses a status code into "2xx", "4xx", ... and uses
// "error" for transport failures (status 0).
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

// RecordUpstreamCall counts one upstream call and observes its latency.
func RecordUpstreamCall(provider, operation string, status int, elapsed time.Duration) {
	upstreamRequests.WithLabelValues(provider, operation, StatusClass(status)).Inc()
	upstreamLatency.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

// RecordQueryPages observes how many upstream pages a list request needed.
func RecordQueryPages(pages int) {
	queryPages.Observe(float64(pages))
}

// RecordAnalysisOutcome counts a bridge result ("success", "duplicate",
// "failure", "skipped").
func RecordAnalysisOutcome(outcome string) {
	analysisOutcomes.WithLabelValues(outcome).Inc()
}

// UpstreamRequests exposes the counter for tests.
func UpstreamRequests() *prometheus.CounterVec { return upstreamRequests }

// AnalysisOutcomes exposes the counter for tests.
func AnalysisOutcomes() *prometheus.CounterVec { return analysisOutcomes }
