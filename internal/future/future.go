// Package future provides the engine-owned handle for an in-flight atom
// operation. The engine never inspects an operation's body; it only starts
// it, waits on its done channel, and reads the single settled result.
package future

import (
	"context"
	"fmt"
)

// Future is a single-result asynchronous handle. It settles exactly once,
// either with a value or with an error, and then never changes.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

// Go starts fn on its own goroutine and returns a Future that settles with
// its result. A panic inside fn settles the future with an error instead of
// crossing the engine boundary.
func Go(fn func() (any, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.value = nil
				f.err = fmt.Errorf("operation panicked: %v", r)
			}
		}()
		f.value, f.err = fn()
	}()
	return f
}

// Resolved returns an already-settled future carrying v.
func Resolved(v any) *Future {
	f := &Future{done: make(chan struct{}), value: v}
	close(f.done)
	return f
}

// Failed returns an already-settled future carrying err.
func Failed(err error) *Future {
	f := &Future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Done returns a channel that is closed once the future has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future settles or ctx is canceled. A ctx error means
// the caller stopped waiting; the operation itself keeps running and its
// eventual result is simply never observed.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryResult reports the settled result without blocking. ok is false while
// the operation is still outstanding.
func (f *Future) TryResult() (value any, err error, ok bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		return nil, nil, false
	}
}
