package engine

import (
	"context"
	"sync"
)

// Completion is a one-shot result handle. It settles exactly once, either
// resolved with a value or rejected with an error; later calls are no-ops.
type Completion[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// NewCompletion returns an unsettled completion.
func NewCompletion[T any]() *Completion[T] {
	return &Completion[T]{done: make(chan struct{})}
}

// Resolve settles c with v. It reports whether this call settled c.
func (c *Completion[T]) Resolve(v T) bool {
	settled := false
	c.once.Do(func() {
		c.val = v
		settled = true
		close(c.done)
	})
	return settled
}

// Reject settles c with err. It reports whether this call settled c.
func (c *Completion[T]) Reject(err error) bool {
	settled := false
	c.once.Do(func() {
		c.err = err
		settled = true
		close(c.done)
	})
	return settled
}

// Done is closed once c has settled.
func (c *Completion[T]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until c settles or ctx ends.
func (c *Completion[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
