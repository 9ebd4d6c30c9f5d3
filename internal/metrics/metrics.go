// Package metrics exposes Prometheus collectors for the price
// intelligence service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapesTotal           *prometheus.CounterVec
	scrapeDurationSeconds  *prometheus.HistogramVec
	listingsExtractedTotal *prometheus.CounterVec
	robotsBlocksTotal      *prometheus.CounterVec
	proxyRotationsTotal    prometheus.Counter
	jobsTotal              *prometheus.CounterVec
	activeWorkers          prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compintel_scrapes_total",
				Help: "Total number of scrape invocations, labeled by platform and outcome.",
			},
			[]string{"platform", "outcome"},
		)

		scrapeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "compintel_scrape_duration_seconds",
				Help:    "Histogram of end-to-end scrape durations, labeled by platform.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
			},
			[]string{"platform"},
		)

		listingsExtractedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compintel_listings_extracted_total",
				Help: "Total number of competitor listings extracted, labeled by platform.",
			},
			[]string{"platform"},
		)

		robotsBlocksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compintel_robots_blocks_total",
				Help: "Total number of scrapes blocked by robots.txt, labeled by platform.",
			},
			[]string{"platform"},
		)

		proxyRotationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "compintel_proxy_rotations_total",
				Help: "Total number of proxy endpoints handed out by the pool.",
			},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compintel_jobs_total",
				Help: "Total number of scrape jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "compintel_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScrape records one scrape invocation and its duration.
func ObserveScrape(platform, outcome string, duration time.Duration) {
	scrapesTotal.WithLabelValues(platform, outcome).Inc()
	scrapeDurationSeconds.WithLabelValues(platform).Observe(duration.Seconds())
}

// ObserveListings adds extracted listing counts for a platform.
func ObserveListings(platform string, count int) {
	if count > 0 {
		listingsExtractedTotal.WithLabelValues(platform).Add(float64(count))
	}
}

// ObserveRobotsBlock increments the robots block counter.
func ObserveRobotsBlock(platform string) {
	robotsBlocksTotal.WithLabelValues(platform).Inc()
}

// ObserveProxyRotation increments the proxy rotation counter.
func ObserveProxyRotation() {
	proxyRotationsTotal.Inc()
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}
