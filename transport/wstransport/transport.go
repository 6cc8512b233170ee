package wstransport

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/metric"
	"github.com/c360/traitstore/transport"
)

const metricsTransport = "websocket"

// ErrClosed is returned by sends once the connection is gone
var ErrClosed = fmt.Errorf("%w: websocket transport closed", errors.ErrConnectionLost)

// Option configures a Transport
type Option func(*Transport)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMetrics records traffic and connection state into m
func WithMetrics(m *metric.Metrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// WithTLSConfig is used by Dial for wss URLs
func WithTLSConfig(cfg *tls.Config) Option {
	return func(t *Transport) {
		t.tlsConfig = cfg
	}
}

// WithWriteTimeout bounds each frame write. Zero disables the deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.writeTimeout = d
	}
}

type operation struct {
	id       string
	op       string
	cb       transport.Callback
	sent     time.Time
	first    atomic.Bool
	finished atomic.Bool
}

// Transport implements transport.Transport over one WebSocket connection.
// A single reader goroutine dispatches result frames by id, so callbacks
// for a handle never run concurrently. Writes are serialized. When the
// connection ends every open operation receives one Error.
type Transport struct {
	conn         *websocket.Conn
	logger       *slog.Logger
	metrics      *metric.Metrics
	writeTimeout time.Duration
	tlsConfig    *tls.Config

	writeMu sync.Mutex

	mu     sync.Mutex
	ops    map[string]*operation
	closed bool
	reason string

	done chan struct{}
}

var _ transport.Transport = (*Transport)(nil)

// Dial connects to url and starts the transport
func Dial(ctx context.Context, url string, header http.Header, opts ...Option) (*Transport, error) {
	var settings Transport
	for _, opt := range opts {
		opt(&settings)
	}
	dialer := *websocket.DefaultDialer
	dialer.TLSClientConfig = settings.tlsConfig

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "Transport", "Dial", "connect to "+url)
	}
	return New(conn, opts...), nil
}

// New starts a transport on an established connection. The transport owns
// conn from here on.
func New(conn *websocket.Conn, opts ...Option) *Transport {
	t := &Transport{
		conn:         conn,
		logger:       slog.Default(),
		writeTimeout: 10 * time.Second,
		ops:          make(map[string]*operation),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "wstransport")
	t.metrics.RecordWebSocketStatus(true)

	go t.readLoop()
	return t
}

// Mutate implements transport.Transport
func (t *Transport) Mutate(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error) {
	return t.send(ctx, OpMutate, req, cb)
}

// Query implements transport.Transport
func (t *Transport) Query(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error) {
	return t.send(ctx, OpQuery, req, cb)
}

// WatchedQuery implements transport.Transport
func (t *Transport) WatchedQuery(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error) {
	return t.send(ctx, OpWatch, req, cb)
}

// CancelQuery implements transport.Transport
func (t *Transport) CancelQuery(h transport.Handle) {
	t.cancel(h, OpCancelQuery)
}

// CancelWatchedQuery implements transport.Transport
func (t *Transport) CancelWatchedQuery(h transport.Handle) {
	t.cancel(h, OpCancelWatch)
}

// Done is closed once the reader has stopped and every open operation has
// been failed.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

func (t *Transport) send(ctx context.Context, op string, req []byte, cb transport.Callback) (transport.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o := &operation{id: uuid.NewString(), op: op, cb: cb, sent: time.Now()}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	t.ops[o.id] = o
	t.mu.Unlock()

	if err := t.write(Frame{Op: op, ID: o.id, Payload: req}); err != nil {
		if t.remove(o) {
			o.finished.Store(true)
		}
		t.metrics.RecordTransportError(metricsTransport, "write")
		return nil, errors.WrapTransient(err, "Transport", op, "write request frame")
	}

	t.metrics.RecordRequest(metricsTransport, op)
	t.logger.Debug("Request sent", "op", op, "id", o.id)
	return transport.StringHandle(o.id), nil
}

func (t *Transport) write(f Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	return t.conn.WriteJSON(f)
}

// remove unregisters o and reports whether it was still registered
func (t *Transport) remove(o *operation) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ops[o.id]; !ok {
		return false
	}
	delete(t.ops, o.id)
	return true
}

func (t *Transport) lookup(id string) (*operation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.ops[id]
	return o, ok
}

func (t *Transport) cancel(h transport.Handle, op string) {
	if h == nil {
		return
	}
	o, ok := t.lookup(h.ID())
	if !ok || !o.finished.CompareAndSwap(false, true) {
		return
	}
	t.remove(o)

	if err := t.write(Frame{Op: op, ID: o.id}); err != nil {
		t.logger.Debug("Cancel frame not sent", "id", o.id, "error", err)
		return
	}
	t.logger.Debug("Operation cancelled", "op", o.op, "id", o.id)
}

func (t *Transport) readLoop() {
	defer close(t.done)
	defer t.conn.Close()

	for {
		var f Frame
		if err := t.conn.ReadJSON(&f); err != nil {
			t.shutdown(readFailure(err))
			return
		}
		if f.Op != OpResult {
			t.logger.Debug("Ignoring frame", "op", f.Op, "id", f.ID)
			continue
		}
		t.dispatch(f)
	}
}

func readFailure(err error) string {
	var closeErr *websocket.CloseError
	if stderrors.As(err, &closeErr) {
		return fmt.Sprintf("connection closed: %d %s", closeErr.Code, closeErr.Text)
	}
	return "connection lost: " + err.Error()
}

func (t *Transport) dispatch(f Frame) {
	o, ok := t.lookup(f.ID)
	if !ok {
		t.logger.Debug("Result for unknown operation", "id", f.ID)
		return
	}

	status, known := transport.ParseStatus(f.Status)
	payload := f.Payload
	if !known {
		payload = []byte("unknown result status " + f.Status)
	}
	if o.op != OpWatch && status == transport.StatusRunning {
		status = transport.StatusDone
	}
	t.deliver(o, status, payload)
}

func (t *Transport) deliver(o *operation, status transport.Status, payload []byte) {
	if o.finished.Load() {
		return
	}
	if status.Terminal() {
		if !o.finished.CompareAndSwap(false, true) {
			return
		}
		t.remove(o)
	}

	if o.first.CompareAndSwap(false, true) {
		t.metrics.RecordLatency(metricsTransport, o.op, time.Since(o.sent))
	}
	t.metrics.RecordResponse(metricsTransport, o.op, status.String())
	o.cb(status, payload)
}

// shutdown marks the transport closed and fails every open operation once.
func (t *Transport) shutdown(reason string) {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		t.reason = reason
	}
	reason = t.reason
	open := make([]*operation, 0, len(t.ops))
	for _, o := range t.ops {
		open = append(open, o)
	}
	t.mu.Unlock()

	t.metrics.RecordWebSocketStatus(false)
	if len(open) > 0 {
		t.logger.Warn("WebSocket closed with open operations", "reason", reason, "open", len(open))
	}
	for _, o := range open {
		t.deliver(o, transport.StatusError, []byte(reason))
	}
}

// Close sends a close frame, closes the connection, and waits for the
// reader to fail any operations still open.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		<-t.done
		return nil
	}
	t.closed = true
	t.reason = "transport closed"
	t.mu.Unlock()

	t.writeMu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()

	err := t.conn.Close()
	<-t.done
	if err != nil {
		return errors.Wrap(err, "Transport", "Close", "close connection")
	}
	return nil
}
