package discovery

import (
	"context"
	"sync"
)

// Memo runs a loader once and keeps its result for the rest of the process.
// A failed load is not kept, so the next call retries.
type Memo[T any] struct {
	mu     sync.Mutex
	load   func(ctx context.Context) (T, error)
	value  T
	loaded bool
}

func NewMemo[T any](load func(ctx context.Context) (T, error)) *Memo[T] {
	return &Memo[T]{load: load}
}

func (m *Memo[T]) Get(ctx context.Context) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return m.value, nil
	}
	v, err := m.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	m.value = v
	m.loaded = true
	return v, nil
}

// Reset forgets the memoized value.
func (m *Memo[T]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	m.value = zero
	m.loaded = false
}
