// Package waitmap implements a bounded, insert-or-wait rendezvous map: the
// primitive that turns a single demultiplexed inbound stream into
// per-transaction futures. A Get for a key that is not yet present suspends
// until a matching Insert happens (or the context is cancelled); every
// waiter on a given key is woken by the same Insert.
package waitmap

import (
	"context"
	"errors"
	"sync"

	"github.com/go-janus/janus/internal/ringbuf"
)

// ErrEvicted is returned by Get when a waiter was woken by an Insert on
// its key, but by the time it re-read the map the value had already
// been evicted by a later Insert exceeding capacity. It is distinct
// from ctx.Err(): the waiter's own deadline may not have elapsed yet.
var ErrEvicted = errors.New("waitmap: value evicted before waiter could read it")

// Map is a WaitMap of type V keyed by K, bounded at a fixed capacity.
type Map[K comparable, V any] struct {
	mu        sync.Mutex
	values    *ringbuf.Map[K, V]
	notifiers map[K]chan struct{}
}

// New creates a Map with the given capacity. Capacity has the same meaning
// as ringbuf.New: once full, the oldest stored entry is evicted.
func New[K comparable, V any](capacity int) *Map[K, V] {
	return &Map[K, V]{
		values:    ringbuf.New[K, V](capacity),
		notifiers: make(map[K]chan struct{}),
	}
}

// Insert stores v under k, evicting the oldest entry if the map is at
// capacity, then wakes every goroutine currently blocked in Get(k).
func (m *Map[K, V]) Insert(k K, v V) {
	m.mu.Lock()
	m.values.Put(k, v)
	notify, ok := m.notifiers[k]
	if ok {
		delete(m.notifiers, k)
	}
	m.mu.Unlock()
	if ok {
		close(notify)
	}
}

// Get returns the value stored under k, blocking until one is inserted if
// necessary. It returns ctx.Err() if ctx is done before a value arrives,
// or ErrEvicted if k resolved but was evicted before Get could read it
// back. Callers must always pass a context with a deadline or
// cancellation — WaitMap applies no internal timeout.
func (m *Map[K, V]) Get(ctx context.Context, k K) (V, error) {
	m.mu.Lock()
	if v, ok := m.values.Get(k); ok {
		m.mu.Unlock()
		return v, nil
	}
	notify, ok := m.notifiers[k]
	if !ok {
		notify = make(chan struct{})
		m.notifiers[k] = notify
	}
	m.mu.Unlock()

	select {
	case <-notify:
		m.mu.Lock()
		v, ok := m.values.Get(k)
		m.mu.Unlock()
		if !ok {
			// The entry was evicted between notify and this re-read.
			// ctx.Err() may still be nil here, so it cannot stand in for
			// this case without telling the caller its deadline expired
			// when it didn't.
			var zero V
			return zero, ErrEvicted
		}
		return v, nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Delete removes k, if present, without waking anyone.
func (m *Map[K, V]) Delete(k K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values.Delete(k)
}
