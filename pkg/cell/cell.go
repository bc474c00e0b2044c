// Package cell binds a typed in-memory value to one key of a kv.Store.
//
// Persistence is best effort: storage and codec failures are swallowed and
// the in-memory value stays consistent with the last successful write.
package cell

import (
	"errors"
	"sync"

	"github.com/heysubinoy/pyazcell/pkg/kv"
)

// ErrEmptyKey is returned by New when the key is empty.
var ErrEmptyKey = errors.New("cell: key may not be empty")

// Updater computes the next value from the current one. ok reports whether
// the current value is defined. Returning set == false leaves the cell untouched.
type Updater[T any] func(prev T, ok bool) (next T, set bool)

// Cell is a value mirrored into a key-value store under a single key.
// Updaters run while the cell is locked and must not call back into it.
type Cell[T any] struct {
	mu sync.Mutex

	key         string
	store       kv.Store
	persist     bool
	serialize   Serializer[T]
	deserialize Deserializer[T]
	onError     ErrorHandler

	initial    T
	hasInitial bool

	value   T
	defined bool
}

// New binds a cell to key in store. If the store is nil or reports itself
// unavailable, the cell keeps the initial value in memory and ignores writes.
func New[T any](store kv.Store, key string, opts ...Option[T]) (*Cell[T], error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	var o options[T]
	for _, opt := range opts {
		opt(&o)
	}
	ser, de := o.codec()

	c := &Cell[T]{
		key:         key,
		store:       store,
		serialize:   ser,
		deserialize: de,
		onError:     o.onError,
		initial:     o.initial,
		hasInitial:  o.hasInitial,
		value:       o.initial,
		defined:     o.hasInitial,
	}

	if !kv.Available(store) {
		return c, nil
	}
	c.persist = true
	c.load()
	return c, nil
}

// MustNew is like New but panics on an empty key.
func MustNew[T any](store kv.Store, key string, opts ...Option[T]) *Cell[T] {
	c, err := New[T](store, key, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// load reads the key, seeding it with the initial value when absent.
// Any failure leaves the initial value in place.
func (c *Cell[T]) load() {
	raw, found, err := c.store.Get(c.key)
	if err != nil {
		c.fail(OpLoad, err)
		return
	}

	if found {
		v, err := c.deserialize(raw)
		if err != nil {
			c.fail(OpLoad, err)
			return
		}
		c.value, c.defined = v, true
		return
	}

	if !c.hasInitial {
		return
	}
	encoded, err := c.serialize(c.initial)
	if err != nil {
		c.fail(OpLoad, err)
		return
	}
	if err := c.store.Set(c.key, encoded); err != nil {
		c.fail(OpLoad, err)
	}
}

// Key returns the store key the cell is bound to.
func (c *Cell[T]) Key() string {
	return c.key
}

// Persistent reports whether the cell is backed by a store.
func (c *Cell[T]) Persistent() bool {
	return c.persist
}

// Get returns the current value and whether it is defined.
func (c *Cell[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.defined
}

// Value returns the current value, or the zero value when undefined.
func (c *Cell[T]) Value() T {
	v, _ := c.Get()
	return v
}

// Set replaces the current value with v.
func (c *Cell[T]) Set(v T) {
	c.Update(func(T, bool) (T, bool) {
		return v, true
	})
}

// Update replaces the current value with the one computed by fn.
// The adopted value is what the codec reads back from the encoded form,
// so lossy codecs yield their projection of the value fn returned.
func (c *Cell[T]) Update(fn Updater[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.persist {
		return
	}

	next, ok := fn(c.value, c.defined)
	if !ok {
		return
	}

	encoded, err := c.serialize(next)
	if err != nil {
		c.fail(OpSet, err)
		return
	}
	if err := c.store.Set(c.key, encoded); err != nil {
		c.fail(OpSet, err)
		return
	}
	v, err := c.deserialize(encoded)
	if err != nil {
		c.fail(OpSet, err)
		return
	}
	c.value, c.defined = v, true
}

// Remove deletes the key and restores the initial value.
func (c *Cell[T]) Remove() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.persist {
		return
	}
	if err := c.store.Delete(c.key); err != nil {
		c.fail(OpRemove, err)
		return
	}
	c.value, c.defined = c.initial, c.hasInitial
}

func (c *Cell[T]) fail(op Op, err error) {
	if c.onError != nil {
		c.onError(op, c.key, err)
	}
}
