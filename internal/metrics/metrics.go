// Package metrics defines the Prometheus collectors of the index and a
// searcher wrapper that records every query.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/viniciusth/rankindex"
)

const (
	ModeExact    = "exact"
	ModeWildcard = "wildcard"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	QueriesTotal   *prometheus.CounterVec
	QueryDuration  *prometheus.HistogramVec
	QueryResults   *prometheus.HistogramVec
	BuildDuration  prometheus.Histogram
	IndexedSymbols prometheus.Gauge
	IndexLevels    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankindex_queries_total",
				Help: "Total queries by mode and result (hit, zero_result, error).",
			},
			[]string{"mode", "result"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rankindex_query_duration_seconds",
				Help:    "Query latency in seconds.",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"mode"},
		),
		QueryResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rankindex_query_results",
				Help:    "Number of positions returned per query.",
				Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
			},
			[]string{"mode"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rankindex_build_duration_seconds",
				Help:    "Index construction time in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		IndexedSymbols: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankindex_indexed_symbols",
				Help: "Length of the indexed text.",
			},
		),
		IndexLevels: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rankindex_levels",
				Help: "Doubling levels held by the index.",
			},
		),
	}

	reg.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.QueryResults,
		m.BuildDuration,
		m.IndexedSymbols,
		m.IndexLevels,
	)
	return m
}

// ObserveBuild records a finished build.
func (m *Metrics) ObserveBuild(ix *rankindex.Index, d time.Duration) {
	m.BuildDuration.Observe(d.Seconds())
	m.IndexedSymbols.Set(float64(ix.Len()))
	m.IndexLevels.Set(float64(ix.Levels()))
}

func (m *Metrics) observeQuery(mode string, start time.Time, positions []int, err error) {
	m.QueryDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		m.QueriesTotal.WithLabelValues(mode, "error").Inc()
		return
	case len(positions) == 0:
		m.QueriesTotal.WithLabelValues(mode, "zero_result").Inc()
	default:
		m.QueriesTotal.WithLabelValues(mode, "hit").Inc()
	}
	m.QueryResults.WithLabelValues(mode).Observe(float64(len(positions)))
}

// Searcher is the query surface of an index.
type Searcher interface {
	Search(pattern []byte) ([]int, error)
	SearchWithWildcards(pattern []byte) ([]int, error)
}

type instrumented struct {
	next    Searcher
	metrics *Metrics
}

// Instrument wraps s so every query is counted and timed.
func Instrument(s Searcher, m *Metrics) Searcher {
	return &instrumented{next: s, metrics: m}
}

func (i *instrumented) Search(pattern []byte) ([]int, error) {
	start := time.Now()
	positions, err := i.next.Search(pattern)
	i.metrics.observeQuery(ModeExact, start, positions, err)
	return positions, err
}

func (i *instrumented) SearchWithWildcards(pattern []byte) ([]int, error) {
	start := time.Now()
	positions, err := i.next.SearchWithWildcards(pattern)
	i.metrics.observeQuery(ModeWildcard, start, positions, err)
	return positions, err
}

// IsClientError reports whether err comes from a bad query rather than the
// index itself.
func IsClientError(err error) bool {
	return errors.Is(err, rankindex.ErrPatternTooLong) || errors.Is(err, rankindex.ErrInvalidInput)
}

// CacheStats reports query cache lookups.
type CacheStats interface {
	Stats() (hits, misses int64)
}

type cacheCollector struct {
	stats CacheStats
	desc  *prometheus.Desc
}

// NewCacheCollector exports the lookup counts of stats as
// rankindex_cache_lookups_total{result="hit"|"miss"}.
func NewCacheCollector(stats CacheStats) prometheus.Collector {
	return &cacheCollector{
		stats: stats,
		desc: prometheus.NewDesc(
			"rankindex_cache_lookups_total",
			"Query cache lookups by result.",
			[]string{"result"}, nil,
		),
	}
}

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	hits, misses := c.stats.Stats()
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(hits), "hit")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(misses), "miss")
}

// Handler returns the Prometheus scrape HTTP handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
