package subscription

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/c360/traitstore/graph/request"
)

// Pending is the outcome of a one-shot operation. It resolves exactly once.
type Pending[T any] struct {
	state atomic.Int32
	once  sync.Once
	done  chan struct{}
	val   T
	err   error
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{done: make(chan struct{})}
}

// resolve records the outcome. Only the first call has any effect.
func (p *Pending[T]) resolve(val T, err error, state State) bool {
	resolved := false
	p.once.Do(func() {
		p.val = val
		p.err = err
		p.state.Store(int32(state))
		close(p.done)
		resolved = true
	})
	return resolved
}

// State returns the current lifecycle state
func (p *Pending[T]) State() State {
	return State(p.state.Load())
}

// Done is closed once the operation has resolved
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the operation resolves or ctx ends. A context error
// does not affect the operation itself.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Resolved reports whether the operation has resolved
func (p *Pending[T]) Resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// QueryHandle is the outcome of a one-shot query. A pending query cannot be
// cancelled; Release only drops interest in a query that already resolved.
type QueryHandle struct {
	*Pending[*request.QueryResult]
	released atomic.Bool
}

// Release marks the handle released. It never reaches the transport and
// reports whether the query had resolved; calling it repeatedly is safe.
func (h *QueryHandle) Release() bool {
	if !h.Resolved() {
		return false
	}
	h.released.Store(true)
	return true
}

// Released reports whether Release was called after resolution
func (h *QueryHandle) Released() bool {
	return h.released.Load()
}

func (p *Pending[T]) resolveErr(err error, state State) bool {
	var zero T
	return p.resolve(zero, err, state)
}
