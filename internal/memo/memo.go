// Package memo caches reference datasets for the lifetime of a run.
package memo

import "sync"

// Memo computes a value once per key and hands the same value to later callers.
// Failed loads are not cached, so a later call retries the load.
type Memo[K comparable, V any] struct {
	mu     sync.Mutex
	values map[K]V
	load   func(K) (V, error)
}

func New[K comparable, V any](load func(K) (V, error)) *Memo[K, V] {
	return &Memo[K, V]{
		values: make(map[K]V),
		load:   load,
	}
}

func (m *Memo[K, V]) Get(key K) (V, error) {
	m.mu.Lock()
	if value, ok := m.values[key]; ok {
		m.mu.Unlock()
		return value, nil
	}
	m.mu.Unlock()

	value, err := m.load(key)
	if err != nil {
		var zero V
		return zero, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.values[key]; ok {
		return existing, nil
	}
	m.values[key] = value
	return value, nil
}

// Once is a Memo with a single implicit key.
type Once[V any] struct {
	memo *Memo[struct{}, V]
}

func NewOnce[V any](load func() (V, error)) *Once[V] {
	return &Once[V]{memo: New(func(struct{}) (V, error) { return load() })}
}

func (o *Once[V]) Get() (V, error) {
	return o.memo.Get(struct{}{})
}
