// Package cache provides the key-value stores that hold ticket snapshots.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("cache: store closed")

// Store is a string-keyed byte store. Get reports a missing key with
// ok=false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys returns the keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Metrics tracks store operations.
type Metrics struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	errors  prometheus.Counter
	sets    prometheus.Counter
	latency prometheus.Histogram
}

// NewMetrics creates the cache metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsti_cache_hits_total",
			Help: "Total number of cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsti_cache_misses_total",
			Help: "Total number of cache misses",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsti_cache_errors_total",
			Help: "Total number of cache errors",
		}),
		sets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsti_cache_sets_total",
			Help: "Total number of cache sets",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logsti_cache_operation_duration_seconds",
			Help:    "Cache operation latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.errors, m.sets, m.latency)
	}
	return m
}

// Instrument wraps s so every call is counted on m.
func Instrument(s Store, m *Metrics) Store {
	return &instrumented{Store: s, m: m}
}

type instrumented struct {
	Store
	m *Metrics
}

func (i *instrumented) observe(start time.Time, err error) {
	i.m.latency.Observe(time.Since(start).Seconds())
	if err != nil {
		i.m.errors.Inc()
	}
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	v, ok, err := i.Store.Get(ctx, key)
	i.observe(start, err)
	if err == nil {
		if ok {
			i.m.hits.Inc()
		} else {
			i.m.misses.Inc()
		}
	}
	return v, ok, err
}

func (i *instrumented) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := i.Store.Set(ctx, key, value)
	i.observe(start, err)
	if err == nil {
		i.m.sets.Inc()
	}
	return err
}
