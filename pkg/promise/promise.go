package promise

import (
	"context"
	"errors"
	"sync"
)

var errNilRejection = errors.New("promise: rejected with nil error")

// Promise carries the eventual result of an asynchronous operation.
// A promise starts pending and resolves exactly once: the first Fulfill
// or Reject wins, every later call is a no-op. All methods are safe for
// concurrent use.
type Promise[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// New creates a pending promise.
func New[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Fulfilled returns a promise already resolved with v.
func Fulfilled[T any](v T) *Promise[T] {
	p := New[T]()
	p.Fulfill(v)
	return p
}

// Rejected returns a promise already rejected with err.
func Rejected[T any](err error) *Promise[T] {
	p := New[T]()
	p.Reject(err)
	return p
}

// Fulfill resolves the promise with v. It reports whether this call was
// the one that resolved it.
func (p *Promise[T]) Fulfill(v T) bool {
	resolved := false
	p.once.Do(func() {
		p.val = v
		close(p.done)
		resolved = true
	})
	return resolved
}

// Reject resolves the promise with err. A nil err is replaced with a
// generic rejection error so Await can never report success for a
// rejected promise. It reports whether this call was the one that
// resolved it.
func (p *Promise[T]) Reject(err error) bool {
	if err == nil {
		err = errNilRejection
	}
	resolved := false
	p.once.Do(func() {
		p.err = err
		close(p.done)
		resolved = true
	})
	return resolved
}

// Await blocks until the promise resolves or ctx is done. A ctx error
// abandons the wait only; the promise itself stays pending and may still
// resolve for other waiters.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel that is closed once the promise resolves.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Poll returns the result without blocking. The boolean reports whether
// the promise has resolved; until then the value and error are zero.
func (p *Promise[T]) Poll() (T, error, bool) {
	select {
	case <-p.done:
		return p.val, p.err, true
	default:
		var zero T
		return zero, nil, false
	}
}
