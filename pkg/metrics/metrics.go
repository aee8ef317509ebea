// Package metrics exposes Prometheus counters for scrape runs and serves
// them over HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dscraper",
		Name:      "search_requests_total",
		Help:      "Per-day search requests by outcome.",
	}, []string{"outcome"})

	daysScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dscraper",
		Name:      "days_scanned_total",
		Help:      "Calendar days visited across all targets.",
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dscraper",
		Name:      "downloads_total",
		Help:      "Attachment downloads by status.",
	}, []string{"status"})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dscraper",
		Name:      "download_bytes_total",
		Help:      "Bytes written to disk.",
	})

	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dscraper",
		Name:      "rate_limited_total",
		Help:      "Responses asking the client to back off, by endpoint kind.",
	}, []string{"endpoint"})

	nameFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dscraper",
		Name:      "name_fallbacks_total",
		Help:      "Display names generated because metadata lookup failed.",
	}, []string{"kind"})

	targetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dscraper",
		Name:      "targets_total",
		Help:      "Scan targets by final state.",
	}, []string{"state"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dscraper",
		Name:      "http_request_duration_seconds",
		Help:      "Outbound request latency.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})
)

// Search outcomes
const (
	OutcomeOK          = "ok"
	OutcomeFailed      = "failed"
	OutcomeInvalidDate = "invalid_date"
)

func RecordSearch(outcome string) {
	searchRequestsTotal.WithLabelValues(outcome).Inc()
}

func RecordDay() {
	daysScannedTotal.Inc()
}

// RecordDownload counts one download result; bytes only count when the file was written
func RecordDownload(status string, bytes int64) {
	downloadsTotal.WithLabelValues(status).Inc()
	if bytes > 0 {
		downloadBytesTotal.Add(float64(bytes))
	}
}

func RecordRateLimit(endpoint string) {
	rateLimitedTotal.WithLabelValues(endpoint).Inc()
}

func RecordNameFallback(kind string) {
	nameFallbacksTotal.WithLabelValues(kind).Inc()
}

func RecordTarget(state string) {
	targetsTotal.WithLabelValues(state).Inc()
}

func ObserveRequest(endpoint string, seconds float64) {
	requestDuration.WithLabelValues(endpoint).Observe(seconds)
}
