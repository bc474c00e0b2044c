package store

import (
	"sync/atomic"
	"time"

	"github.com/heysubinoy/pyazcell/pkg/kv"
)

// Metrics holds timing statistics for store operations.
// Uses atomic operations for thread-safe updates without locks.
type Metrics struct {
	GetCount    atomic.Uint64
	SetCount    atomic.Uint64
	DeleteCount atomic.Uint64

	// Failed operations, included in the counts above
	GetErrors    atomic.Uint64
	SetErrors    atomic.Uint64
	DeleteErrors atomic.Uint64

	// Cumulative latencies in nanoseconds
	GetLatencyNs    atomic.Uint64
	SetLatencyNs    atomic.Uint64
	DeleteLatencyNs atomic.Uint64
}

// InstrumentedStore wraps any kv.Store implementation with timing metrics.
// This pattern works for in-memory, bolt and Raft-backed stores alike.
type InstrumentedStore struct {
	store   kv.Store
	metrics *Metrics
}

// Compile-time check to ensure InstrumentedStore implements kv.Store.
var (
	_ kv.Store  = (*InstrumentedStore)(nil)
	_ kv.Prober = (*InstrumentedStore)(nil)
)

// NewInstrumentedStore wraps a store with instrumentation.
func NewInstrumentedStore(store kv.Store) *InstrumentedStore {
	return &InstrumentedStore{
		store:   store,
		metrics: &Metrics{},
	}
}

// Available forwards to the wrapped store.
func (s *InstrumentedStore) Available() bool {
	return kv.Available(s.store)
}

// Get delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Get(key string) (string, bool, error) {
	start := time.Now()
	value, found, err := s.store.Get(key)
	s.record(&s.metrics.GetCount, &s.metrics.GetErrors, &s.metrics.GetLatencyNs, start, err)
	return value, found, err
}

// Set delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Set(key, value string) error {
	start := time.Now()
	err := s.store.Set(key, value)
	s.record(&s.metrics.SetCount, &s.metrics.SetErrors, &s.metrics.SetLatencyNs, start, err)
	return err
}

// Delete delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Delete(key string) error {
	start := time.Now()
	err := s.store.Delete(key)
	s.record(&s.metrics.DeleteCount, &s.metrics.DeleteErrors, &s.metrics.DeleteLatencyNs, start, err)
	return err
}

func (s *InstrumentedStore) record(count, errs, latency *atomic.Uint64, start time.Time, err error) {
	count.Add(1)
	latency.Add(uint64(time.Since(start).Nanoseconds()))
	if err != nil {
		errs.Add(1)
	}
}

// GetMetrics returns a snapshot of current metrics.
func (s *InstrumentedStore) GetMetrics() MetricsSnapshot {
	getCount := s.metrics.GetCount.Load()
	setCount := s.metrics.SetCount.Load()
	deleteCount := s.metrics.DeleteCount.Load()

	return MetricsSnapshot{
		GetCount:         getCount,
		SetCount:         setCount,
		DeleteCount:      deleteCount,
		GetErrors:        s.metrics.GetErrors.Load(),
		SetErrors:        s.metrics.SetErrors.Load(),
		DeleteErrors:     s.metrics.DeleteErrors.Load(),
		GetAvgLatency:    avgLatency(s.metrics.GetLatencyNs.Load(), getCount),
		SetAvgLatency:    avgLatency(s.metrics.SetLatencyNs.Load(), setCount),
		DeleteAvgLatency: avgLatency(s.metrics.DeleteLatencyNs.Load(), deleteCount),
	}
}

// ResetMetrics clears all metrics counters.
func (s *InstrumentedStore) ResetMetrics() {
	for _, c := range []*atomic.Uint64{
		&s.metrics.GetCount, &s.metrics.SetCount, &s.metrics.DeleteCount,
		&s.metrics.GetErrors, &s.metrics.SetErrors, &s.metrics.DeleteErrors,
		&s.metrics.GetLatencyNs, &s.metrics.SetLatencyNs, &s.metrics.DeleteLatencyNs,
	} {
		c.Store(0)
	}
}

func avgLatency(totalNs, count uint64) time.Duration {
	if count == 0 {
		return 0
	}
	return time.Duration(totalNs / count)
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	GetCount         uint64
	SetCount         uint64
	DeleteCount      uint64
	GetErrors        uint64
	SetErrors        uint64
	DeleteErrors     uint64
	GetAvgLatency    time.Duration
	SetAvgLatency    time.Duration
	DeleteAvgLatency time.Duration
}
