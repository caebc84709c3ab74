// Package telemetry defines the Prometheus metrics for the crawl engine.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newswatch_jobs_total",
			Help: "Total number of crawl jobs reaching a terminal state, labeled by status and type.",
		},
		[]string{"status", "type"},
	)

	articlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newswatch_articles_total",
			Help: "Total articles processed, labeled by outcome (saved, duplicate, failed).",
		},
		[]string{"outcome"},
	)

	scanDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newswatch_scan_duration_seconds",
			Help:    "Histogram of schedule scanner pass durations.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	scanJobsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newswatch_scan_jobs_created_total",
			Help: "Total scheduled jobs created by the schedule scanner.",
		},
	)

	scanErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newswatch_scan_errors_total",
			Help: "Total per-category errors encountered during scans.",
		},
	)

	capacityJobsPerHour = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newswatch_capacity_jobs_per_hour",
			Help: "Estimated aggregate scheduled job creation rate.",
		},
	)

	capacityLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "newswatch_capacity_level",
			Help: "Capacity classification as a one-hot gauge per level.",
		},
		[]string{"level"},
	)

	throttleEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newswatch_throttle_events_total",
			Help: "Total throttling signals (429/503) observed by executors.",
		},
	)

	breakerOpenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newswatch_breaker_open_total",
			Help: "Total jobs abandoned early because the throttle breaker opened.",
		},
	)
)

// ObserveJobFinished records a terminal job transition.
func ObserveJobFinished(status, jobType string) {
	jobsTotal.WithLabelValues(status, jobType).Inc()
}

// ObserveArticle records the outcome of one candidate URL.
func ObserveArticle(outcome string) {
	articlesTotal.WithLabelValues(outcome).Inc()
}

// ObserveScan records the duration and counters of one scanner pass.
func ObserveScan(duration time.Duration, created, errors int) {
	scanDurationSeconds.Observe(duration.Seconds())
	scanJobsCreatedTotal.Add(float64(created))
	scanErrorsTotal.Add(float64(errors))
}

// ObserveCapacity publishes the latest capacity estimate.
func ObserveCapacity(jobsPerHour float64, level string) {
	capacityJobsPerHour.Set(jobsPerHour)
	for _, l := range []string{"normal", "warning", "critical"} {
		v := 0.0
		if l == level {
			v = 1.0
		}
		capacityLevel.WithLabelValues(l).Set(v)
	}
}

// ObserveThrottle counts one throttling signal from a provider or source.
func ObserveThrottle() {
	throttleEventsTotal.Inc()
}

// ObserveBreakerOpen counts one job abandoned by the throttle breaker.
func ObserveBreakerOpen() {
	breakerOpenTotal.Inc()
}

// Handler exposes the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
