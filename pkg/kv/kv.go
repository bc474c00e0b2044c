package kv

import "errors"

var (
	// ErrUnavailable is returned by stores that are closed or unreachable.
	ErrUnavailable = errors.New("kv: store unavailable")
	// ErrQuotaExceeded is returned when a write would exceed the store quota.
	ErrQuotaExceeded = errors.New("kv: quota exceeded")
	// ErrNotLeader is returned by replicated stores when this node cannot accept writes.
	ErrNotLeader = errors.New("kv: not leader")
)

// Store defines the interface for a persistent key-value store.
// Implementations of this interface can be swapped out,
// allowing for different storage backends (e.g., in-memory, bolt, Raft-replicated, remote).
type Store interface {
	// Get retrieves the value associated with the given key.
	// Returns the value and true if the key exists, or empty string and false if not.
	// A non-nil error means the store could not be read at all.
	Get(key string) (string, bool, error)

	// Set stores a key-value pair.
	// Returns an error if the operation fails.
	Set(key, value string) error

	// Delete removes a key from the store.
	// Returns an error if the operation fails.
	Delete(key string) error
}

// Prober is implemented by stores that can report whether they are usable
// in the current environment.
type Prober interface {
	Available() bool
}

// Available reports whether s can be used. A nil store is never available;
// stores that do not implement Prober are assumed to be.
func Available(s Store) bool {
	if s == nil {
		return false
	}
	if p, ok := s.(Prober); ok {
		return p.Available()
	}
	return true
}
