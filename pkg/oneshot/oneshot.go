// Package oneshot provides a single-use resolution latch for bridging
// callback-driven APIs into blocking calls.
package oneshot

import (
	"context"
	"sync"
)

// Latch holds at most one value of type T. The first Resolve wins and
// unblocks all waiters; every later Resolve is dropped.
type Latch[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
}

// NewLatch creates an unresolved latch.
func NewLatch[T any]() *Latch[T] {
	return &Latch[T]{done: make(chan struct{})}
}

// Resolve stores v if the latch is still open. It reports whether this
// call was the one that resolved the latch.
func (l *Latch[T]) Resolve(v T) bool {
	won := false
	l.once.Do(func() {
		l.val = v
		won = true
		close(l.done)
	})

	return won
}

// Done returns a channel that is closed once the latch has resolved.
func (l *Latch[T]) Done() <-chan struct{} {
	return l.done
}

// Value returns the resolved value, if any, without blocking.
func (l *Latch[T]) Value() (T, bool) {
	select {
	case <-l.done:
		return l.val, true
	default:
		var zero T
		return zero, false
	}
}

// Wait blocks until the latch resolves or ctx ends. On a context end the
// latch stays open and the context error is returned.
func (l *Latch[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-l.done:
		return l.val, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
