package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/heysubinoy/pyazcell/pkg/kv"
)

var bucketName = []byte("cells")

// BoltStore is a file-backed kv.Store on top of a single bolt bucket.
type BoltStore struct {
	mu sync.RWMutex
	db *bolt.DB
}

// Compile-time check to ensure BoltStore implements kv.Store.
var (
	_ kv.Store  = (*BoltStore)(nil)
	_ kv.Prober = (*BoltStore)(nil)
)

// OpenBoltStore opens (or creates) the bolt database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Available reports whether the database is still open.
func (s *BoltStore) Available() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

// Get reads a value by key.
func (s *BoltStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return "", false, kv.ErrUnavailable
	}

	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		// Bolt memory is only valid inside the transaction, so copy out.
		if v := tx.Bucket(bucketName).Get([]byte(key)); v != nil {
			value, found = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, found, nil
}

// Set writes a key-value pair.
func (s *BoltStore) Set(key, value string) error {
	return s.update(key, func(b *bolt.Bucket) error {
		return b.Put([]byte(key), []byte(value))
	})
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *BoltStore) Delete(key string) error {
	return s.update(key, func(b *bolt.Bucket) error {
		return b.Delete([]byte(key))
	})
}

func (s *BoltStore) update(key string, fn func(*bolt.Bucket) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return kv.ErrUnavailable
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(bucketName))
	})
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Close closes the database. Later calls fail with kv.ErrUnavailable.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil && !errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return err
	}
	return nil
}
