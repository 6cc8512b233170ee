package subscription

import (
	"context"
	"log/slog"
	"sync"

	"github.com/c360/traitstore/codec"
	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/graph/request"
	"github.com/c360/traitstore/transport"
)

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger. nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics enables metrics recording
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// Manager sends operations through a transport and owns their callbacks
type Manager struct {
	transport transport.Transport
	codec     codec.Codec
	logger    *slog.Logger
	metrics   *Metrics

	reg *registry

	// mu orders registration against Close. It is never held across a
	// transport call, so callbacks that run during a send may close the
	// manager.
	mu     sync.Mutex
	closed bool
}

// NewManager creates a manager. A nil codec selects the JSON codec.
func NewManager(t transport.Transport, c codec.Codec, opts ...Option) *Manager {
	if c == nil {
		c = codec.JSON{}
	}
	m := &Manager{
		transport: t,
		codec:     c,
		logger:    slog.Default(),
		reg:       newRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "subscription")
	return m
}

// Stats returns registry counters
func (m *Manager) Stats() RegistryStats {
	return m.reg.stats()
}

// Mutate sends req. The returned Pending cannot be cancelled.
func (m *Manager) Mutate(ctx context.Context, req request.MutationRequest) (*Pending[*request.MutationResult], error) {
	data, err := m.codec.EncodeMutation(req)
	if err != nil {
		return nil, errors.Wrap(err, "Manager", "Mutate", "encode request")
	}

	p := newPending[*request.MutationResult]()
	e := &entry{
		kind: opMutate,
		deliver: func(status transport.Status, result []byte) {
			if status == transport.StatusError {
				m.resolveError(p, opMutate, result)
				return
			}
			res, err := m.codec.DecodeMutationResult(result)
			if err != nil {
				m.resolveDecodeError(p, opMutate, err)
				return
			}
			p.resolve(res, nil, StateDone)
			m.metrics.outcome(opMutate, outcomeDone)
		},
		abandon: func() {},
	}

	if _, err := m.sendEntry(ctx, e, p.state.Store, data, m.transport.Mutate); err != nil {
		return nil, errors.Wrap(err, "Manager", "Mutate", "send request")
	}
	return p, nil
}

// Query sends q as a one-shot query
func (m *Manager) Query(ctx context.Context, q request.EntityQuery) (*QueryHandle, error) {
	data, err := m.codec.EncodeQuery(q)
	if err != nil {
		return nil, errors.Wrap(err, "Manager", "Query", "encode request")
	}

	h := &QueryHandle{Pending: newPending[*request.QueryResult]()}
	p := h.Pending
	e := &entry{
		kind: opQuery,
		deliver: func(status transport.Status, result []byte) {
			if status == transport.StatusError {
				m.resolveError(p, opQuery, result)
				return
			}
			res, err := m.codec.DecodeQueryResult(result)
			if err != nil {
				m.resolveDecodeError(p, opQuery, err)
				return
			}
			p.resolve(res, nil, StateDone)
			m.metrics.outcome(opQuery, outcomeDone)
		},
		abandon: func() {
			p.resolve(nil, errors.ErrCancelled, StateCancelled)
			m.metrics.outcome(opQuery, outcomeCancelled)
		},
	}

	if _, err := m.sendEntry(ctx, e, p.state.Store, data, m.transport.Query); err != nil {
		return nil, errors.Wrap(err, "Manager", "Query", "send request")
	}
	return h, nil
}

// Watch sends q as a watched query. fn is called for every Running update
// and for the terminal Done or Error, in transport order, on the
// transport's goroutine. fn is never called after Cancel has returned true
// unless the invocation had already started.
func (m *Manager) Watch(ctx context.Context, q request.EntityQuery, fn func(WatchEvent)) (*WatchHandle, error) {
	data, err := m.codec.EncodeQuery(q)
	if err != nil {
		return nil, errors.Wrap(err, "Manager", "Watch", "encode request")
	}
	if fn == nil {
		fn = func(WatchEvent) {}
	}

	st := &watchState{fn: fn}
	e := &entry{
		kind: opWatch,
		abandon: func() {
			st.state.Store(int32(StateCancelled))
			m.metrics.outcome(opWatch, outcomeCancelled)
		},
	}
	e.deliver = func(status transport.Status, result []byte) {
		m.deliverWatch(e.token, st, status, result)
	}

	token, err := m.sendEntry(ctx, e, st.state.Store, data, m.transport.WatchedQuery)
	if err != nil {
		return nil, errors.Wrap(err, "Manager", "Watch", "send request")
	}
	return newWatchHandle(m, st, token, e.handle), nil
}

type sendFunc func(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error)

// sendEntry registers e, then hands the transport a callback bound to its
// token. The transport may invoke the callback before it returns.
func (m *Manager) sendEntry(ctx context.Context, e *entry, setState func(int32), data []byte, fn sendFunc) (uint64, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, errors.ErrManagerClosed
	}
	token := m.reg.insert(e)
	kind := e.kind
	setState(int32(StatePending))
	m.mu.Unlock()

	h, err := fn(ctx, data, func(status transport.Status, result []byte) {
		m.dispatch(token, kind, status, result)
	})
	if err != nil {
		if m.reg.abort(token) {
			setState(int32(StateCreated))
		}
		return 0, err
	}

	m.metrics.request(kind)
	if m.reg.bind(e, h) {
		// Close drained the entry while the send was in flight
		m.cancelTransport(kind, h)
		m.logger.Debug("Operation cancelled on send", "op", kind.String(), "token", token, "handle", h.ID())
		return token, nil
	}
	m.logger.Debug("Operation sent", "op", kind.String(), "token", token, "handle", h.ID())
	return token, nil
}

func (m *Manager) cancelTransport(kind opKind, h transport.Handle) {
	switch kind {
	case opWatch:
		m.transport.CancelWatchedQuery(h)
	case opQuery:
		m.transport.CancelQuery(h)
	}
}

// dispatch routes a transport callback to its registry entry. One-shot
// entries are consumed on first invocation.
func (m *Manager) dispatch(token uint64, kind opKind, status transport.Status, result []byte) {
	var (
		e  *entry
		ok bool
	)
	if kind == opWatch {
		e, ok = m.reg.lookup(token)
	} else {
		e, ok = m.reg.release(token)
	}
	if !ok {
		m.metrics.discard(kind)
		m.logger.Debug("Discarding callback for released operation",
			"op", kind.String(), "token", token, "status", status.String())
		return
	}
	m.logger.Debug("Callback", "op", kind.String(), "token", token, "status", status.String(), "bytes", len(result))
	e.deliver(status, result)
}

func (m *Manager) deliverWatch(token uint64, st *watchState, status transport.Status, result []byte) {
	switch status {
	case transport.StatusRunning:
		res, err := m.codec.DecodeQueryResult(result)
		if !st.toRunning() {
			return
		}
		if err != nil {
			m.metrics.decodeError(opWatch)
			m.logger.Warn("Watch update failed to decode", "token", token, "error", err)
			st.fn(WatchEvent{State: StateRunning, Err: asDecodeError("watch", err)})
			return
		}
		st.fn(WatchEvent{State: StateRunning, Result: res})

	case transport.StatusDone, transport.StatusError:
		if _, ok := m.reg.release(token); !ok {
			m.metrics.discard(opWatch)
			return
		}
		if status == transport.StatusDone {
			st.state.Store(int32(StateDone))
			m.metrics.outcome(opWatch, outcomeDone)
			st.fn(WatchEvent{State: StateDone})
			return
		}
		st.state.Store(int32(StateError))
		m.metrics.outcome(opWatch, outcomeError)
		st.fn(WatchEvent{State: StateError, Err: &errors.TransportError{Op: "watch", Detail: clone(result)}})
	}
}

// cancelWatch releases the watch entry and cancels it on the transport. It
// reports false if the entry was already released.
func (m *Manager) cancelWatch(token uint64, dropped bool) bool {
	e, ok := m.reg.release(token)
	if !ok {
		return false
	}
	e.abandon()
	if e.handle != nil {
		m.transport.CancelWatchedQuery(e.handle)
	}
	if dropped {
		m.logger.Warn("Watch handle dropped without Cancel", "token", token)
	} else {
		m.logger.Debug("Watch cancelled", "token", token)
	}
	return true
}

// Close cancels every watch and resolves pending queries with
// errors.ErrCancelled. Pending mutations are left to resolve normally.
// Further sends fail with errors.ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	abandoned := m.reg.drain(func(e *entry) bool { return e.kind != opMutate })
	for _, e := range abandoned {
		e.abandon()
		if e.detached {
			continue
		}
		m.cancelTransport(e.kind, e.handle)
	}
	m.logger.Info("Subscription manager closed", "cancelled", len(abandoned))
	return nil
}

func (m *Manager) resolveError(p interface{ resolveErr(error, State) bool }, kind opKind, detail []byte) {
	if p.resolveErr(&errors.TransportError{Op: kind.String(), Detail: clone(detail)}, StateError) {
		m.metrics.outcome(kind, outcomeError)
	}
}

func (m *Manager) resolveDecodeError(p interface{ resolveErr(error, State) bool }, kind opKind, err error) {
	m.metrics.decodeError(kind)
	if p.resolveErr(asDecodeError(kind.String(), err), StateError) {
		m.metrics.outcome(kind, outcomeDecode)
	}
}

func asDecodeError(op string, err error) error {
	if errors.IsDecode(err) {
		return err
	}
	return &errors.DecodeError{Op: op, Err: err}
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
