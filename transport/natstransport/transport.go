package natstransport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/metric"
	"github.com/c360/traitstore/transport"
)

// Headers exchanged with the store engine
const (
	HeaderStatus    = "Store-Status"
	HeaderRequestID = "Store-Request-Id"
	HeaderWatchID   = "Store-Watch-Id"
	HeaderWatchMode = "Store-Watch-Mode"

	// WatchModeKV asks the engine to publish snapshots into a KV bucket
	WatchModeKV = "kv"
)

// Server status header used for no-responders replies
const (
	natsStatusHeader   = "Status"
	natsNoResponders   = "503"
	metricsTransport   = "nats"
	detailNoResponders = "no responders"
	detailClosed       = "transport closed"
)

// ErrClosed is returned by sends after Close
var ErrClosed = fmt.Errorf("%w: nats transport closed", errors.ErrNoConnection)

// Conn is the part of natsclient.Client the transport relies on.
type Conn interface {
	NewInbox() (string, error)
	Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error)
	Unsubscribe(sub *nats.Subscription) error
	PublishMsg(ctx context.Context, msg *nats.Msg) error
	GetKeyValueBucket(ctx context.Context, name string) (jetstream.KeyValue, error)
}

// Subjects names the engine's request subjects
type Subjects struct {
	Mutate      string `json:"mutate" mapstructure:"mutate"`
	Query       string `json:"query" mapstructure:"query"`
	Watch       string `json:"watch" mapstructure:"watch"`
	WatchCancel string `json:"watch_cancel" mapstructure:"watch_cancel"`
	QueryCancel string `json:"query_cancel" mapstructure:"query_cancel"`
}

// DefaultSubjects returns the store.* subject set
func DefaultSubjects() Subjects {
	return Subjects{
		Mutate:      "store.mutate",
		Query:       "store.query",
		Watch:       "store.watch",
		WatchCancel: "store.watch.cancel",
		QueryCancel: "store.query.cancel",
	}
}

// Option configures a Transport
type Option func(*Transport)

// WithSubjects overrides the request subjects
func WithSubjects(s Subjects) Option {
	return func(t *Transport) {
		t.subjects = s
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMetrics records request and response counts into m
func WithMetrics(m *metric.Metrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// WithKVWatch switches watched queries to KV mode: the engine writes each
// snapshot under the watch id in bucket and deletes the key when the watch
// completes.
func WithKVWatch(bucket string) Option {
	return func(t *Transport) {
		t.kvBucket = bucket
	}
}

type opKind string

const (
	kindMutate opKind = "mutate"
	kindQuery  opKind = "query"
	kindWatch  opKind = "watch"
)

type operation struct {
	id      string
	kind    opKind
	cb      transport.Callback
	sent    time.Time
	sub     *nats.Subscription
	watcher jetstream.KeyWatcher

	first    atomic.Bool
	finished atomic.Bool
	// serializes callbacks when a KV watcher and the reply inbox both deliver
	deliverMu sync.Mutex
}

// Transport implements transport.Transport over NATS request/reply.
//
// Every operation gets a private inbox. One-shot operations expect a single
// reply and unsubscribe on it; watched queries keep the inbox open until a
// terminal status or cancel. The reply status travels in the Store-Status
// header; a no-responders reply from the server becomes Error.
type Transport struct {
	conn     Conn
	subjects Subjects
	logger   *slog.Logger
	metrics  *metric.Metrics
	kvBucket string

	mu     sync.Mutex
	ops    map[string]*operation
	kv     jetstream.KeyValue
	closed bool
}

var _ transport.Transport = (*Transport)(nil)

// New creates a transport over conn, usually a connected *natsclient.Client.
func New(conn Conn, opts ...Option) *Transport {
	t := &Transport{
		conn:     conn,
		subjects: DefaultSubjects(),
		logger:   slog.Default(),
		ops:      make(map[string]*operation),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "natstransport")
	return t
}

// Mutate implements transport.Transport
func (t *Transport) Mutate(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error) {
	return t.send(ctx, kindMutate, t.subjects.Mutate, req, cb)
}

// Query implements transport.Transport
func (t *Transport) Query(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error) {
	return t.send(ctx, kindQuery, t.subjects.Query, req, cb)
}

// WatchedQuery implements transport.Transport
func (t *Transport) WatchedQuery(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error) {
	if t.kvBucket != "" {
		return t.watchKV(ctx, req, cb)
	}
	return t.send(ctx, kindWatch, t.subjects.Watch, req, cb)
}

// CancelQuery implements transport.Transport
func (t *Transport) CancelQuery(h transport.Handle) {
	t.cancel(h, t.subjects.QueryCancel)
}

// CancelWatchedQuery implements transport.Transport
func (t *Transport) CancelWatchedQuery(h transport.Handle) {
	t.cancel(h, t.subjects.WatchCancel)
}

func (t *Transport) register(ctx context.Context, kind opKind, cb transport.Callback) (*operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	op := &operation{
		id:   uuid.NewString(),
		kind: kind,
		cb:   cb,
		sent: time.Now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	t.ops[op.id] = op
	return op, nil
}

func (t *Transport) unregister(op *operation) {
	t.mu.Lock()
	delete(t.ops, op.id)
	t.mu.Unlock()
}

// send subscribes the reply inbox before publishing so no reply is lost.
func (t *Transport) send(
	ctx context.Context, kind opKind, subject string, req []byte, cb transport.Callback,
) (transport.Handle, error) {
	op, err := t.register(ctx, kind, cb)
	if err != nil {
		return nil, err
	}

	msg, err := t.subscribeReply(op, subject, req, func(status transport.Status, payload []byte) {
		if kind != kindWatch && status == transport.StatusRunning {
			// One-shot operations get exactly one reply.
			status = transport.StatusDone
		}
		t.deliver(op, status, payload)
	})
	if err != nil {
		t.unregister(op)
		return nil, err
	}

	if kind == kindWatch {
		msg.Header.Set(HeaderWatchID, op.id)
	}

	if err := t.conn.PublishMsg(ctx, msg); err != nil {
		t.finish(op)
		t.metrics.RecordTransportError(metricsTransport, "publish")
		return nil, errors.WrapTransient(err, "Transport", string(kind), "publish request")
	}

	t.metrics.RecordRequest(metricsTransport, string(kind))
	t.logger.Debug("Request sent", "op", kind, "id", op.id, "subject", subject)
	return transportHandle(op), nil
}

// subscribeReply opens op's reply inbox and returns the request message
// addressed from it.
func (t *Transport) subscribeReply(
	op *operation, subject string, req []byte, onReply func(transport.Status, []byte),
) (*nats.Msg, error) {
	inbox, err := t.conn.NewInbox()
	if err != nil {
		return nil, errors.WrapTransient(err, "Transport", string(op.kind), "create inbox")
	}

	sub, err := t.conn.Subscribe(inbox, func(msg *nats.Msg) {
		onReply(replyStatus(msg))
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Transport", string(op.kind), "subscribe reply inbox")
	}
	op.sub = sub

	msg := nats.NewMsg(subject)
	msg.Reply = inbox
	msg.Data = req
	msg.Header.Set(HeaderRequestID, op.id)
	return msg, nil
}

// replyStatus reads the status of an engine reply. A reply without a
// recognizable status is an Error carrying the header value.
func replyStatus(msg *nats.Msg) (transport.Status, []byte) {
	if msg.Header.Get(natsStatusHeader) == natsNoResponders && len(msg.Data) == 0 {
		return transport.StatusError, []byte(detailNoResponders)
	}

	raw := msg.Header.Get(HeaderStatus)
	if raw == "" {
		return transport.StatusError, []byte("reply missing " + HeaderStatus + " header")
	}
	status, ok := transport.ParseStatus(raw)
	if !ok {
		return transport.StatusError, []byte("unknown reply status " + raw)
	}
	return status, msg.Data
}

// deliver hands a result to the operation's callback. Nothing is delivered
// after a terminal status or a cancel.
func (t *Transport) deliver(op *operation, status transport.Status, payload []byte) {
	op.deliverMu.Lock()
	defer op.deliverMu.Unlock()

	if op.finished.Load() {
		return
	}
	if status.Terminal() {
		t.finish(op)
	}

	if op.first.CompareAndSwap(false, true) {
		t.metrics.RecordLatency(metricsTransport, string(op.kind), time.Since(op.sent))
	}
	t.metrics.RecordResponse(metricsTransport, string(op.kind), status.String())
	if status == transport.StatusError && string(payload) == detailNoResponders {
		t.metrics.RecordTransportError(metricsTransport, "no_responders")
	}

	op.cb(status, payload)
}

// finish releases the operation's NATS resources. It reports false when
// the operation was already finished.
func (t *Transport) finish(op *operation) bool {
	if !op.finished.CompareAndSwap(false, true) {
		return false
	}
	t.unregister(op)
	if op.watcher != nil {
		if err := op.watcher.Stop(); err != nil {
			t.logger.Debug("Stop KV watcher", "id", op.id, "error", err)
		}
	}
	if op.sub != nil {
		if err := t.conn.Unsubscribe(op.sub); err != nil {
			t.logger.Debug("Unsubscribe reply inbox", "id", op.id, "error", err)
		}
	}
	return true
}

func (t *Transport) lookup(h transport.Handle) (*operation, bool) {
	if h == nil {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[h.ID()]
	return op, ok
}

// cancel stops local delivery and tells the engine, best effort.
func (t *Transport) cancel(h transport.Handle, subject string) {
	op, ok := t.lookup(h)
	if !ok || !t.finish(op) {
		return
	}

	msg := nats.NewMsg(subject)
	msg.Data = []byte(op.id)
	msg.Header.Set(HeaderRequestID, op.id)
	if op.kind == kindWatch {
		msg.Header.Set(HeaderWatchID, op.id)
	}
	if err := t.conn.PublishMsg(context.Background(), msg); err != nil {
		t.logger.Warn("Cancel notification failed", "id", op.id, "subject", subject, "error", err)
		return
	}
	t.logger.Debug("Operation cancelled", "op", op.kind, "id", op.id)
}

// ActiveOperations returns the number of operations that can still deliver
func (t *Transport) ActiveOperations() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}

// Close fails every open operation with an Error status once and rejects
// further sends. The NATS connection stays open; its owner closes it.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	open := make([]*operation, 0, len(t.ops))
	for _, op := range t.ops {
		open = append(open, op)
	}
	t.mu.Unlock()

	for _, op := range open {
		t.deliver(op, transport.StatusError, []byte(detailClosed))
	}
	t.logger.Info("NATS transport closed", "failed_operations", len(open))
	return nil
}

func transportHandle(op *operation) transport.Handle {
	return transport.StringHandle(op.id)
}
