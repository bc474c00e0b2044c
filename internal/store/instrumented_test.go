package store

import (
	"testing"

	"github.com/heysubinoy/pyazcell/pkg/cell"
	"github.com/heysubinoy/pyazcell/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentedStore_Counts(t *testing.T) {
	s := NewInstrumentedStore(NewMemStoreWithQuota(4))

	require.NoError(t, s.Set("a", "1"))
	require.ErrorIs(t, s.Set("b", "too long"), kv.ErrQuotaExceeded)
	_, _, err := s.Get("a")
	require.NoError(t, err)
	require.NoError(t, s.Delete("a"))

	m := s.GetMetrics()
	assert.Equal(t, uint64(1), m.GetCount)
	assert.Equal(t, uint64(2), m.SetCount)
	assert.Equal(t, uint64(1), m.SetErrors)
	assert.Equal(t, uint64(1), m.DeleteCount)
	assert.Zero(t, m.GetErrors)
	assert.Zero(t, m.DeleteErrors)

	s.ResetMetrics()
	assert.Equal(t, MetricsSnapshot{}, s.GetMetrics())
}

func TestInstrumentedStore_CellTraffic(t *testing.T) {
	s := NewInstrumentedStore(NewMemStore())

	c := cell.MustNew(s, "count", cell.WithInitial(0))
	c.Set(5)
	c.Remove()

	m := s.GetMetrics()
	assert.Equal(t, uint64(1), m.GetCount)
	assert.Equal(t, uint64(2), m.SetCount) // seed + set
	assert.Equal(t, uint64(1), m.DeleteCount)
}

func TestInstrumentedStore_ForwardsAvailability(t *testing.T) {
	assert.False(t, kv.Available(NewInstrumentedStore(nil)))
	assert.True(t, kv.Available(NewInstrumentedStore(NewMemStore())))
}
