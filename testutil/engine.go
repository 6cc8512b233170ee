package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360/traitstore/codec"
	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/transport"
)

type engineOp struct {
	id     string
	cb     transport.Callback
	active bool
}

// MemoryEngine is a transport.Transport backed by a MemoryStore. Callbacks
// are delivered asynchronously from a single goroutine, so every handle
// sees its invocations in order. Every applied mutation pushes a fresh
// Running snapshot to each active watch.
type MemoryEngine struct {
	Store *MemoryStore
	codec codec.EngineCodec

	mu      sync.Mutex
	next    int
	ops     map[string]*engineOp
	watches map[string]watchSpec
	queue   []func()
	wake    chan struct{}
	closed  bool
	done    chan struct{}
}

type watchSpec struct {
	op  *engineOp
	req []byte
}

// NewMemoryEngine starts an engine over store. A nil store creates one.
func NewMemoryEngine(store *MemoryStore) *MemoryEngine {
	if store == nil {
		store = NewMemoryStore()
	}
	e := &MemoryEngine{
		Store:   store,
		codec:   codec.JSON{},
		ops:     make(map[string]*engineOp),
		watches: make(map[string]watchSpec),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *MemoryEngine) loop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			if e.closed {
				e.mu.Unlock()
				return
			}
			e.mu.Unlock()
			<-e.wake
			continue
		}
		fn := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()
		fn()
	}
}

func (e *MemoryEngine) enqueueLocked(fn func()) {
	e.queue = append(e.queue, fn)
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// deliver invokes op's callback if it is still active. Terminal statuses
// deactivate the op.
func (e *MemoryEngine) deliver(op *engineOp, status transport.Status, data []byte) {
	e.mu.Lock()
	if !op.active {
		e.mu.Unlock()
		return
	}
	if status.Terminal() {
		op.active = false
		delete(e.ops, op.id)
		delete(e.watches, op.id)
	}
	e.mu.Unlock()
	op.cb(status, data)
}

func (e *MemoryEngine) register(ctx context.Context, kind string, cb transport.Callback) (*engineOp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.ErrNoConnection
	}
	e.next++
	op := &engineOp{id: fmt.Sprintf("%s-%d", kind, e.next), cb: cb, active: true}
	e.ops[op.id] = op
	return op, nil
}

// Mutate implements transport.Transport
func (e *MemoryEngine) Mutate(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error) {
	op, err := e.register(ctx, KindMutate, cb)
	if err != nil {
		return nil, err
	}
	data := append([]byte(nil), req...)

	e.mu.Lock()
	e.enqueueLocked(func() {
		status, out := applyEncoded(e.Store, e.codec, data)
		e.deliver(op, status, out)
		if status == transport.StatusDone {
			e.notifyWatches()
		}
	})
	e.mu.Unlock()
	return transport.StringHandle(op.id), nil
}

// Query implements transport.Transport
func (e *MemoryEngine) Query(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error) {
	op, err := e.register(ctx, KindQuery, cb)
	if err != nil {
		return nil, err
	}
	data := append([]byte(nil), req...)

	e.mu.Lock()
	e.enqueueLocked(func() {
		status, out := e.evaluate(data)
		if status == transport.StatusRunning {
			status = transport.StatusDone
		}
		e.deliver(op, status, out)
	})
	e.mu.Unlock()
	return transport.StringHandle(op.id), nil
}

// WatchedQuery implements transport.Transport. The first Running snapshot
// is delivered immediately.
func (e *MemoryEngine) WatchedQuery(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error) {
	op, err := e.register(ctx, KindWatch, cb)
	if err != nil {
		return nil, err
	}
	data := append([]byte(nil), req...)

	e.mu.Lock()
	e.watches[op.id] = watchSpec{op: op, req: data}
	e.enqueueLocked(func() {
		status, out := e.evaluate(data)
		e.deliver(op, status, out)
	})
	e.mu.Unlock()
	return transport.StringHandle(op.id), nil
}

// evaluate runs an encoded query against the engine's store
func (e *MemoryEngine) evaluate(req []byte) (transport.Status, []byte) {
	return queryEncoded(e.Store, e.codec, req)
}

// applyEncoded decodes and applies a mutation request. Engine failures
// become an Error status carrying the message.
func applyEncoded(store *MemoryStore, c codec.EngineCodec, req []byte) (transport.Status, []byte) {
	mreq, err := c.DecodeMutation(req)
	if err != nil {
		return transport.StatusError, []byte(err.Error())
	}
	res, err := store.Apply(mreq)
	if err != nil {
		return transport.StatusError, []byte(err.Error())
	}
	out, err := c.EncodeMutationResult(res)
	if err != nil {
		return transport.StatusError, []byte(err.Error())
	}
	return transport.StatusDone, out
}

// queryEncoded runs an encoded query. A successful evaluation is a Running
// snapshot; one-shot callers promote it to Done.
func queryEncoded(store *MemoryStore, c codec.EngineCodec, req []byte) (transport.Status, []byte) {
	q, err := c.DecodeQuery(req)
	if err != nil {
		return transport.StatusError, []byte(err.Error())
	}
	res, err := store.Query(q)
	if err != nil {
		return transport.StatusError, []byte(err.Error())
	}
	out, err := c.EncodeQueryResult(res)
	if err != nil {
		return transport.StatusError, []byte(err.Error())
	}
	return transport.StatusRunning, out
}

func (e *MemoryEngine) notifyWatches() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, w := range e.watches {
		w := w
		e.enqueueLocked(func() {
			status, out := e.evaluate(w.req)
			e.deliver(w.op, status, out)
		})
	}
}

// CancelQuery implements transport.Transport
func (e *MemoryEngine) CancelQuery(h transport.Handle) {
	e.cancel(h)
}

// CancelWatchedQuery implements transport.Transport
func (e *MemoryEngine) CancelWatchedQuery(h transport.Handle) {
	e.cancel(h)
}

func (e *MemoryEngine) cancel(h transport.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if op, ok := e.ops[h.ID()]; ok {
		op.active = false
		delete(e.ops, op.id)
		delete(e.watches, op.id)
	}
}

// FinishWatch ends an active watch with Done
func (e *MemoryEngine) FinishWatch(h transport.Handle) bool {
	return e.endWatch(h, transport.StatusDone, nil)
}

// FailWatch ends an active watch with Error carrying detail
func (e *MemoryEngine) FailWatch(h transport.Handle, detail string) bool {
	return e.endWatch(h, transport.StatusError, []byte(detail))
}

func (e *MemoryEngine) endWatch(h transport.Handle, status transport.Status, detail []byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.watches[h.ID()]
	if !ok {
		return false
	}
	e.enqueueLocked(func() {
		e.deliver(w.op, status, detail)
	})
	return true
}

// ActiveWatches returns the number of watches that can still deliver
func (e *MemoryEngine) ActiveWatches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.watches)
}

// Close fails every open operation with an Error status, drains queued
// deliveries, and stops the delivery goroutine.
func (e *MemoryEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	for _, op := range e.ops {
		op := op
		e.enqueueLocked(func() {
			e.deliver(op, transport.StatusError, []byte("engine closed"))
		})
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
	e.mu.Unlock()

	<-e.done
	return nil
}
