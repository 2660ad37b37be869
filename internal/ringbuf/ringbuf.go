// Package ringbuf implements a fixed-capacity keyed map with insertion-order
// eviction: once full, the least-recently-inserted entry is dropped to make
// room for the new one. It is the backing store for the transaction table
// and, composed with a notifier, for the ack/response rendezvous maps.
package ringbuf

import "container/list"

// Map is a mapping from K to V with a fixed positive capacity. Put evicts
// the oldest entry by insertion order when full; Get never blocks. Map is
// not safe for concurrent use by multiple goroutines without external
// locking — callers that need that (WaitMap) add their own mutex.
type Map[K comparable, V any] struct {
	capacity int
	order    *list.List
	elems    map[K]*list.Element
}

type entry[K comparable, V any] struct {
	key K
	val V
}

// New creates a Map with the given capacity. It panics if capacity is not
// positive: a zero-capacity bounded map can never hold anything and is
// always a caller bug.
func New[K comparable, V any](capacity int) *Map[K, V] {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &Map[K, V]{
		capacity: capacity,
		order:    list.New(),
		elems:    make(map[K]*list.Element, capacity),
	}
}

// Put inserts or overwrites the value for k. If k is new and the map is at
// capacity, the oldest entry (by insertion order) is evicted first.
func (m *Map[K, V]) Put(k K, v V) {
	if el, ok := m.elems[k]; ok {
		el.Value.(*entry[K, V]).val = v
		m.order.MoveToBack(el)
		return
	}
	if len(m.elems) >= m.capacity {
		front := m.order.Front()
		if front != nil {
			m.order.Remove(front)
			delete(m.elems, front.Value.(*entry[K, V]).key)
		}
	}
	el := m.order.PushBack(&entry[K, V]{key: k, val: v})
	m.elems[k] = el
}

// Get returns the value for k and whether it was present.
func (m *Map[K, V]) Get(k K) (V, bool) {
	el, ok := m.elems[k]
	if !ok {
		var zero V
		return zero, false
	}
	return el.Value.(*entry[K, V]).val, true
}

// Delete removes k, if present.
func (m *Map[K, V]) Delete(k K) {
	el, ok := m.elems[k]
	if !ok {
		return
	}
	m.order.Remove(el)
	delete(m.elems, k)
}

// Len returns the number of entries currently stored.
func (m *Map[K, V]) Len() int {
	return len(m.elems)
}
