package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningdash/morningdash/internal/metrics"
	"github.com/morningdash/morningdash/internal/quote"
	"github.com/morningdash/morningdash/internal/weather"
)

var (
	_ weather.Recorder = (*metrics.Metrics)(nil)
	_ quote.Recorder   = (*metrics.Metrics)(nil)
)

func TestRegister(t *testing.T) {
	m := metrics.New()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	assert.Error(t, metrics.New().Register(reg), "duplicate registration fails")
}

func TestRecorderMethods(t *testing.T) {
	m := metrics.New()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.CacheLookup("weather_cache", "fresh")
	m.CacheLookup("weather_cache", "fresh")
	m.FetchCompleted("weather", "ok")
	m.StateChanged("loading", "loaded")
	m.WriteFailed("last_location")
	m.ReadingAge(90 * time.Second)
	m.QuoteServed(quote.SourceRotation)
	m.JobCompleted("clock_tick", time.Millisecond, nil)
	m.JobCompleted("quote_rollover", time.Millisecond, errors.New("boom"))
	m.StreamClients("weather", 2)
	m.StreamClients("weather", -1)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		metrics.MetricCacheLookupsTotal,
		metrics.MetricFetchTotal,
		metrics.MetricStateTransitionsTotal,
		metrics.MetricReadingAgeSeconds,
		metrics.MetricWriteFailuresTotal,
		metrics.MetricQuoteServedTotal,
		metrics.MetricJobRunsTotal,
		metrics.MetricJobDuration,
		metrics.MetricStreamClients,
	} {
		assert.True(t, found[name], "metric %s not gathered", name)
	}

	assert.Equal(t, 4, testutil.CollectAndCount(m.Collectors()[0])+testutil.CollectAndCount(m.Collectors()[1])+
		testutil.CollectAndCount(m.Collectors()[2])+testutil.CollectAndCount(m.Collectors()[4]))
}

func TestReadingAgeGauge(t *testing.T) {
	m := metrics.New()
	m.ReadingAge(30 * time.Minute)

	gauge := m.Collectors()[3]
	assert.InDelta(t, 1800, testutil.ToFloat64(gauge), 0.001)
}

func TestCacheLookupCounter(t *testing.T) {
	m := metrics.New()
	m.CacheLookup("weather_cache", "stale")
	m.CacheLookup("weather_cache", "stale")
	m.CacheLookup("last_location", "miss")

	vec := m.Collectors()[0].(*prometheus.CounterVec)
	assert.Equal(t, 2.0, testutil.ToFloat64(vec.WithLabelValues("weather_cache", "stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("last_location", "miss")))
}
