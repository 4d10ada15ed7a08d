// Package completion provides a result slot that can be claimed exactly once.
//
// Several event sources (a dial result, a timer, a cancelled context) race to
// finish an operation. Each of them calls Resolve; the first call wins and the
// rest are no-ops, so the waiting side observes a single outcome.
package completion

import (
	"context"
	"sync"
)

// Result is the value delivered by a Latch.
type Result[T any] struct {
	Value T
	Err   error
}

// Latch delivers at most one Result.
type Latch[T any] struct {
	once sync.Once
	ch   chan Result[T]
}

// New creates an unresolved latch.
func New[T any]() *Latch[T] {
	return &Latch[T]{ch: make(chan Result[T], 1)}
}

// Resolve claims the latch. It reports whether this call was the one that won.
func (l *Latch[T]) Resolve(value T, err error) bool {
	claimed := false
	l.once.Do(func() {
		claimed = true
		l.ch <- Result[T]{Value: value, Err: err}
	})
	return claimed
}

// Done returns a channel that yields the winning result once.
func (l *Latch[T]) Done() <-chan Result[T] {
	return l.ch
}

// Wait blocks until the latch is resolved or ctx ends. A cancelled context
// resolves the latch itself, so a late producer still sees Resolve return false.
func (l *Latch[T]) Wait(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, func() {
		var zero T
		l.Resolve(zero, ctx.Err())
	})
	defer stop()

	res := <-l.ch
	return res.Value, res.Err
}
