package store

import (
	"maps"
	"sync"

	"github.com/heysubinoy/pyazcell/pkg/kv"
)

// MemStore is an in-memory implementation of the kv.Store interface.
// It uses a map protected by a RWMutex for thread-safe operations.
// An optional quota caps the total size of keys and values in bytes.
type MemStore struct {
	mu    sync.RWMutex
	data  map[string]string
	used  int
	quota int
}

// Compile-time check to ensure MemStore implements kv.Store.
var _ kv.Store = (*MemStore)(nil)

// NewMemStore creates and returns a new MemStore instance with no quota.
func NewMemStore() *MemStore {
	return NewMemStoreWithQuota(0)
}

// NewMemStoreWithQuota creates a MemStore that rejects writes once keys and
// values together would exceed quota bytes. A quota of zero or less disables the limit.
func NewMemStoreWithQuota(quota int) *MemStore {
	return &MemStore{
		data:  make(map[string]string),
		quota: quota,
	}
}

// Get retrieves a value by key from the store.
// Returns the value and true if found, empty string and false otherwise.
func (s *MemStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	return val, ok, nil
}

// Set stores a key-value pair in the store.
// Fails with kv.ErrQuotaExceeded when the write does not fit.
func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used + len(key) + len(value)
	if old, ok := s.data[key]; ok {
		used -= len(key) + len(old)
	}
	if s.quota > 0 && used > s.quota {
		return kv.ErrQuotaExceeded
	}

	s.data[key] = value
	s.used = used
	return nil
}

// Delete removes a key from the store.
// Always returns nil, even if the key doesn't exist.
func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.data[key]; ok {
		s.used -= len(key) + len(old)
		delete(s.data, key)
	}
	return nil
}

// Snapshot returns a copy of every key-value pair.
func (s *MemStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.data)
}

// Replace swaps the store contents for data, ignoring the quota.
func (s *MemStore) Replace(data map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]string, len(data))
	s.used = 0
	for k, v := range data {
		s.data[k] = v
		s.used += len(k) + len(v)
	}
}
