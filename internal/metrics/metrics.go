// Package metrics exposes Prometheus collectors for the dashboard widgets and
// background jobs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricCacheLookupsTotal     = "weather_cache_lookups_total"
	MetricFetchTotal            = "weather_fetch_total"
	MetricStateTransitionsTotal = "weather_state_transitions_total"
	MetricReadingAgeSeconds     = "weather_reading_age_seconds"
	MetricWriteFailuresTotal    = "kvstore_write_failures_total"
	MetricQuoteServedTotal      = "quote_served_total"
	MetricJobRunsTotal          = "background_job_runs_total"
	MetricJobDuration           = "background_job_duration_seconds"
	MetricStreamClients         = "stream_clients"
)

// Job status labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds every collector. It implements weather.Recorder and
// quote.Recorder. All operations are thread-safe.
type Metrics struct {
	cacheLookups     *prometheus.CounterVec
	fetches          *prometheus.CounterVec
	stateTransitions *prometheus.CounterVec
	readingAge       prometheus.Gauge
	writeFailures    *prometheus.CounterVec
	quotesServed     *prometheus.CounterVec
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	streamClients    *prometheus.GaugeVec
}

// New creates the collectors. They are not registered; call Register.
func New() *Metrics {
	return &Metrics{
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheLookupsTotal,
				Help: "Cache lookups by cache key and result",
			},
			[]string{"cache", "result"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFetchTotal,
				Help: "Upstream weather fetches by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		stateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricStateTransitionsTotal,
				Help: "Weather widget state transitions",
			},
			[]string{"from", "to"},
		),
		readingAge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricReadingAgeSeconds,
				Help: "Age of the most recently read cached weather reading",
			},
		),
		writeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricWriteFailuresTotal,
				Help: "Swallowed key-value store write failures by key",
			},
			[]string{"key"},
		),
		quotesServed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricQuoteServedTotal,
				Help: "Quotes served by source",
			},
			[]string{"source"},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobRunsTotal,
				Help: "Scheduled job runs by job and status",
			},
			[]string{"job", "status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricJobDuration,
				Help:    "Scheduled job duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"job"},
		),
		streamClients: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricStreamClients,
				Help: "Connected stream clients by topic",
			},
			[]string{"topic"},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.cacheLookups,
		m.fetches,
		m.stateTransitions,
		m.readingAge,
		m.writeFailures,
		m.quotesServed,
		m.jobRuns,
		m.jobDuration,
		m.streamClients,
	}
}

func (m *Metrics) CacheLookup(cache, result string) {
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) FetchCompleted(endpoint, outcome string) {
	m.fetches.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) StateChanged(from, to string) {
	m.stateTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) WriteFailed(key string) {
	m.writeFailures.WithLabelValues(key).Inc()
}

func (m *Metrics) ReadingAge(age time.Duration) {
	m.readingAge.Set(age.Seconds())
}

func (m *Metrics) QuoteServed(source string) {
	m.quotesServed.WithLabelValues(source).Inc()
}

// JobCompleted records one scheduled job run.
func (m *Metrics) JobCompleted(job string, d time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	m.jobRuns.WithLabelValues(job, status).Inc()
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// StreamClients adjusts the connected client gauge for topic by delta.
func (m *Metrics) StreamClients(topic string, delta int) {
	m.streamClients.WithLabelValues(topic).Add(float64(delta))
}
