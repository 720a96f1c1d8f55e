// Package metrics holds the Prometheus collectors for the toolkit. Library
// packages report through small recorder interfaces they declare themselves,
// so they stay testable without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// MetricsNamespace is the namespace for all toolkit metrics.
	MetricsNamespace = "dpd"

	// MetricsSubsystem is the subsystem for dispatch metrics.
	MetricsSubsystem = "dispatch"
)

// Metrics holds all Prometheus metrics for the toolkit.
type Metrics struct {
	registry *prometheus.Registry

	QueriesTotal          *prometheus.CounterVec
	QueryDurationSeconds  *prometheus.HistogramVec
	RecordsRetrievedTotal prometheus.Counter
	GeocodeRequestsTotal  *prometheus.CounterVec
	GeocodeCacheEntries   prometheus.Gauge
}

// New creates and registers all toolkit metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{registry: registry}

	m.QueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "queries_total",
			Help:      "Total number of SODA queries issued",
		},
		[]string{"dataset", "mode"},
	)

	m.QueryDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "query_duration_seconds",
			Help:      "Duration of SODA query round trips in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"dataset"},
	)

	m.RecordsRetrievedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "records_retrieved_total",
			Help:      "Total number of records returned by the backend",
		},
	)

	m.GeocodeRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "geocode_requests_total",
			Help:      "Geocode lookups by result (hit, miss, notfound, error)",
		},
		[]string{"result"},
	)

	m.GeocodeCacheEntries = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "geocode_cache_entries",
			Help:      "Number of entries in the geocode cache",
		},
	)

	return m
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordQuery implements the soda package's Recorder interface.
func (m *Metrics) RecordQuery(dataset, mode string, duration time.Duration, records int) {
	m.QueriesTotal.WithLabelValues(dataset, mode).Inc()
	m.QueryDurationSeconds.WithLabelValues(dataset).Observe(duration.Seconds())
	m.RecordsRetrievedTotal.Add(float64(records))
}

// RecordGeocode implements the geocode package's Recorder interface.
func (m *Metrics) RecordGeocode(result string) {
	m.GeocodeRequestsTotal.WithLabelValues(result).Inc()
}

// SetCacheEntries implements the geocode package's Recorder interface.
func (m *Metrics) SetCacheEntries(n int) {
	m.GeocodeCacheEntries.Set(float64(n))
}
