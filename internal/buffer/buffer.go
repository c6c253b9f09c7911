package buffer

import (
	"sync"
)

// Buffer holds pending items until they are drained or discarded.
type Buffer[T any] struct {
	mu sync.Mutex
	ts []T
}

func New[T any]() *Buffer[T] {
	return &Buffer[T]{}
}

// Add appends items in order.
func (b *Buffer[T]) Add(items ...T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ts = append(b.ts, items...)
}

// Len returns the number of pending items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ts)
}

// Each calls fn for every pending item in order without removing it.
func (b *Buffer[T]) Each(fn func(T)) {
	b.mu.Lock()
	ts := make([]T, len(b.ts))
	copy(ts, b.ts)
	b.mu.Unlock()
	for _, t := range ts {
		fn(t)
	}
}

// Drain removes and returns every pending item.
func (b *Buffer[T]) Drain() []T {
	b.mu.Lock()
	ts := b.ts
	b.ts = nil
	b.mu.Unlock()
	return ts
}

// Requeue puts items back in front of the pending ones.
func (b *Buffer[T]) Requeue(items []T) {
	if len(items) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ts = append(append(make([]T, 0, len(items)+len(b.ts)), items...), b.ts...)
}

func (b *Buffer[T]) Reset() {
	b.Drain()
}
