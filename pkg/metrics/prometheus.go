// Package metrics provides Prometheus metrics for the rating report builder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Replay Metrics
	replays        *prometheus.CounterVec
	eventsReplayed prometheus.Counter
	matchesRated   prometheus.Counter
	eventsLoaded   *prometheus.CounterVec

	// Report Metrics
	snapshotsBuilt      *prometheus.CounterVec
	reportBuildDuration *prometheus.HistogramVec
	reportErrors        *prometheus.CounterVec
	rankedCompetitors   *prometheus.GaugeVec
	lastBuildUnix       prometheus.Gauge

	// Sink Metrics
	publishDuration *prometheus.HistogramVec
	publishErrors   *prometheus.CounterVec
	storedReports   prometheus.Gauge
	publishQueue    prometheus.Gauge
	publishedTotal  *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "matchrank",
		subsystem:        "reports",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.replays = auto.NewCounterVec(m.counterOpts("replays_total",
		"Total number of collection replays by rating algorithm"), []string{"algorithm"})
	m.eventsReplayed = auto.NewCounter(m.counterOpts("events_replayed_total",
		"Total number of events folded into rating state"))
	m.matchesRated = auto.NewCounter(m.counterOpts("matches_rated_total",
		"Total number of matches folded into rating state"))
	m.eventsLoaded = auto.NewCounterVec(m.counterOpts("events_loaded_total",
		"Total number of events loaded from sources by kind"), []string{"kind"})

	m.snapshotsBuilt = auto.NewCounterVec(m.counterOpts("snapshots_built_total",
		"Total number of leaderboard snapshots built by report"), []string{"report"})
	m.reportBuildDuration = auto.NewHistogramVec(m.histogramOpts("build_duration_milliseconds",
		"Report build duration in milliseconds by rating algorithm"), []string{"algorithm"})
	m.reportErrors = auto.NewCounterVec(m.counterOpts("build_errors_total",
		"Total number of failed report builds by report"), []string{"report"})
	m.rankedCompetitors = auto.NewGaugeVec(m.gaugeOpts("ranked_competitors",
		"Competitors with a rating in the current snapshot by report"), []string{"report"})
	m.lastBuildUnix = auto.NewGauge(m.gaugeOpts("last_build_unix",
		"Unix timestamp of the last completed build run"))

	m.publishDuration = auto.NewHistogramVec(m.histogramOpts("publish_duration_milliseconds",
		"Report publish duration in milliseconds by sink"), []string{"sink"})
	m.publishErrors = auto.NewCounterVec(m.counterOpts("publish_errors_total",
		"Total number of failed report publishes by sink"), []string{"sink"})
	m.storedReports = auto.NewGauge(m.gaugeOpts("stored",
		"Number of reports held by the serving store"))
	m.publishQueue = auto.NewGauge(m.gaugeOpts("publish_queue_length",
		"Number of built reports waiting to be published"))
	m.publishedTotal = auto.NewCounterVec(m.counterOpts("published_total",
		"Total number of successful report publishes by sink"), []string{"sink"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Total number of errors by component"), []string{"component", "error_type"})
}

// RecordReplay counts one replay and the events and matches it folded.
func RecordReplay(algorithm string, events, matches int) {
	globalManager.replays.WithLabelValues(algorithm).Inc()
	globalManager.eventsReplayed.Add(float64(events))
	globalManager.matchesRated.Add(float64(matches))
}

// RecordEventsLoaded counts events loaded from sources.
func RecordEventsLoaded(kind string, n int) {
	globalManager.eventsLoaded.WithLabelValues(kind).Add(float64(n))
}

// RecordSnapshotsBuilt counts snapshots built for a report.
func RecordSnapshotsBuilt(report string, n int) {
	globalManager.snapshotsBuilt.WithLabelValues(report).Add(float64(n))
}

// RecordReportBuildLatency records a report build duration in milliseconds.
func RecordReportBuildLatency(algorithm string, latencyMs float64) {
	globalManager.reportBuildDuration.WithLabelValues(algorithm).Observe(latencyMs)
}

// RecordReportError increments the build errors counter for a report.
func RecordReportError(report string) {
	globalManager.reportErrors.WithLabelValues(report).Inc()
}

// UpdateRankedCompetitors sets the number of rated entries in a report.
func UpdateRankedCompetitors(report string, n int) {
	globalManager.rankedCompetitors.WithLabelValues(report).Set(float64(n))
}

// UpdateLastBuild sets the last build timestamp.
func UpdateLastBuild(unix int64) {
	globalManager.lastBuildUnix.Set(float64(unix))
}

// RecordPublishLatency records a publish duration in milliseconds.
func RecordPublishLatency(sink string, latencyMs float64) {
	globalManager.publishDuration.WithLabelValues(sink).Observe(latencyMs)
}

// RecordPublishError increments the publish errors counter for a sink.
func RecordPublishError(sink string) {
	globalManager.publishErrors.WithLabelValues(sink).Inc()
}

// RecordPublished increments the successful publishes counter for a sink.
func RecordPublished(sink string) {
	globalManager.publishedTotal.WithLabelValues(sink).Inc()
}

// UpdatePublishQueueLength sets the number of reports waiting to be published.
func UpdatePublishQueueLength(n int) {
	globalManager.publishQueue.Set(float64(n))
}

// UpdateStoredReports sets the number of reports in the serving store.
func UpdateStoredReports(n int) {
	globalManager.storedReports.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
