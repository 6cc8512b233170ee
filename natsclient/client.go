package natsclient

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/metric"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error messages
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
	ErrClosed       = stderrors.New("client closed")
)

// Status holds runtime status information for the client
type Status struct {
	Status          ConnectionStatus
	FailureCount    int32
	LastFailureTime time.Time
	RTT             time.Duration
}

// Client manages a NATS connection guarded by a circuit breaker
type Client struct {
	url      string
	status   atomic.Value // stores ConnectionStatus
	failures atomic.Int32
	logger   *slog.Logger
	metrics  *metric.Metrics

	conn *nats.Conn
	js   jetstream.JetStream
	subs []*nats.Subscription

	// Circuit breaker
	lastFailure      atomic.Value // stores time.Time
	backoff          atomic.Value // stores time.Duration
	circuitFailures  atomic.Int32
	circuitThreshold int32
	maxBackoff       time.Duration

	// Connection options
	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	// Authentication, cleared on close
	username string
	password string
	token    string

	tlsConfig *tls.Config

	clientName string

	onDisconnect   func(error)
	onReconnect    func()
	onHealthChange func(bool)

	mu      sync.RWMutex
	closeMu sync.Mutex
	closed  atomic.Bool
}

// NewClient creates a new NATS client with optional configuration
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           slog.Default(),
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     10 * time.Second,
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
	}
	c.status.Store(StatusDisconnected)
	c.backoff.Store(time.Second)
	c.lastFailure.Store(time.Time{})

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}
	c.logger = c.logger.With("component", "natsclient")

	return c, nil
}

// URL returns the NATS server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	return c.status.Load().(ConnectionStatus)
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
}

// IsHealthy returns true if the connection is healthy
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the current failure count
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

// Backoff returns the current circuit breaker backoff
func (c *Client) Backoff() time.Duration {
	return c.backoff.Load().(time.Duration)
}

// Conn returns the underlying NATS connection, or nil when not connected.
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Metrics returns the metrics the client records to, which may be nil.
func (c *Client) Metrics() *metric.Metrics {
	return c.metrics
}

// recordFailure counts a failure and opens the circuit once the threshold
// is reached within a round. Each opening doubles the backoff up to maxBackoff.
func (c *Client) recordFailure() {
	total := c.failures.Add(1)
	c.lastFailure.Store(time.Now())
	round := c.circuitFailures.Add(1)

	c.logger.Debug("Recorded NATS failure", "failures", total, "circuit_failures", round)

	if round < c.circuitThreshold {
		return
	}

	current := c.Status()
	backoff := c.Backoff()
	next := min(backoff*2, c.maxBackoff)

	if current != StatusCircuitOpen {
		// Only one goroutine wins the transition.
		if !c.status.CompareAndSwap(current, StatusCircuitOpen) {
			return
		}
		c.backoff.Store(next)
		c.circuitFailures.Store(0)
		c.metrics.RecordCircuitBreakerState(metric.CircuitOpen)
		c.logger.Warn("Circuit breaker opened", "failures", round, "backoff", backoff)
		time.AfterFunc(backoff, c.testCircuit)
		return
	}

	c.backoff.Store(next)
	c.circuitFailures.Store(0)
	c.logger.Warn("Circuit breaker still open", "backoff", next)
}

func (c *Client) resetCircuit() {
	c.failures.Store(0)
	c.circuitFailures.Store(0)
	c.backoff.Store(time.Second)
	c.lastFailure.Store(time.Time{})
	c.metrics.RecordCircuitBreakerState(metric.CircuitClosed)

	if c.Status() == StatusCircuitOpen {
		c.setStatus(StatusDisconnected)
	}
}

// testCircuit half-opens the circuit so the next Connect may try again.
func (c *Client) testCircuit() {
	if c.status.CompareAndSwap(StatusCircuitOpen, StatusDisconnected) {
		c.logger.Debug("Circuit breaker half-open")
	}
}

// WaitForConnection waits for the connection to be established
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.IsHealthy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("connection timeout: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// GetStatus returns current status information
func (c *Client) GetStatus() *Status {
	status := &Status{
		Status:          c.Status(),
		FailureCount:    c.failures.Load(),
		LastFailureTime: c.lastFailure.Load().(time.Time),
	}
	if rtt, err := c.RTT(); err == nil {
		status.RTT = rtt
	}
	return status
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}

	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	if c.tlsConfig != nil {
		opts = append(opts, nats.Secure(c.tlsConfig))
	}
	return opts
}

// Connect establishes connection to the NATS server. It fails fast with
// ErrCircuitOpen while the circuit breaker is open.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.Status() == StatusCircuitOpen {
		c.logger.Debug("Circuit breaker is open, skipping connection attempt")
		return ErrCircuitOpen
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("Connecting to NATS", "url", c.url)

	opts := c.connectionOptions()
	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		if err != nil {
			connectDone <- err
			return
		}

		js, jsErr := jetstream.New(conn)

		c.mu.Lock()
		c.conn = conn
		if jsErr == nil {
			c.js = js
		}
		c.mu.Unlock()

		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			return c.connectFailed(errors.WrapTransient(err, "Client", "Connect", "establish connection"))
		}
	case <-ctx.Done():
		return c.connectFailed(errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled"))
	}

	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.metrics.RecordNATSStatus(true)
	if rtt, err := c.RTT(); err == nil {
		c.metrics.RecordNATSRTT(rtt)
	}
	c.logger.Info("Connected to NATS", "url", c.url)

	c.mu.RLock()
	onHealthChange := c.onHealthChange
	c.mu.RUnlock()
	if onHealthChange != nil {
		onHealthChange(true)
	}
	return nil
}

func (c *Client) connectFailed(err error) error {
	c.recordFailure()
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}
	c.setStatus(StatusDisconnected)
	return err
}

// Close unsubscribes everything and drains the connection. The drain is
// bounded by the drain timeout and by ctx.
func (c *Client) Close(ctx context.Context) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe"))
		}
	}
	c.subs = nil

	if c.conn != nil {
		drainTimeout := c.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		conn := c.conn
		drainDone := make(chan error, 1)
		go func() {
			drainDone <- conn.Drain()
		}()

		select {
		case err := <-drainDone:
			if err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
				errs = append(errs, errors.Wrap(err, "Client", "Close", "drain connection"))
			}
		case <-time.After(drainTimeout):
			errs = append(errs, errors.WrapTransient(
				fmt.Errorf("drain timeout after %v", drainTimeout), "Client", "Close", "drain"))
		case <-ctx.Done():
			errs = append(errs, errors.Wrap(ctx.Err(), "Client", "Close", "drain"))
		}

		conn.Close()
		c.conn = nil
		c.js = nil
	}

	c.username = ""
	c.password = ""
	c.token = ""

	c.setStatus(StatusDisconnected)
	c.metrics.RecordNATSStatus(false)

	for _, err := range errs {
		c.logger.Error("NATS close error", "error", err)
	}
	return stderrors.Join(errs...)
}

// RTT returns the round-trip time to the NATS server
func (c *Client) RTT() (time.Duration, error) {
	conn := c.Conn()
	if conn == nil || !conn.IsConnected() {
		return 0, ErrNotConnected
	}
	return conn.RTT()
}

// connected returns the live connection or the reason there is none.
func (c *Client) connected() (*nats.Conn, error) {
	if c.Status() == StatusCircuitOpen {
		return nil, ErrCircuitOpen
	}
	conn := c.Conn()
	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}
	return conn, nil
}

// NewInbox returns a unique reply subject on the current connection.
func (c *Client) NewInbox() (string, error) {
	conn, err := c.connected()
	if err != nil {
		return "", err
	}
	return conn.NewInbox(), nil
}

// Subscribe registers handler on subject. The subscription is removed when
// the client closes, or earlier through the returned subscription.
func (c *Client) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	conn, err := c.connected()
	if err != nil {
		return nil, err
	}

	sub, err := conn.Subscribe(subject, handler)
	if err != nil {
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "Subscribe", "subscribe to "+subject)
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub, nil
}

// Unsubscribe removes sub and stops tracking it.
func (c *Client) Unsubscribe(sub *nats.Subscription) error {
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil &&
		!stderrors.Is(err, nats.ErrBadSubscription) && !stderrors.Is(err, nats.ErrConnectionClosed) {
		return errors.Wrap(err, "Client", "Unsubscribe", "unsubscribe "+sub.Subject)
	}
	return nil
}

// Publish sends data on subject.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	conn, err := c.connected()
	if err != nil {
		return err
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", "publish to "+subject)
	}
	return nil
}

// PublishMsg sends msg, including its headers and reply subject.
func (c *Client) PublishMsg(_ context.Context, msg *nats.Msg) error {
	conn, err := c.connected()
	if err != nil {
		return err
	}
	if err := conn.PublishMsg(msg); err != nil {
		return errors.WrapTransient(err, "Client", "PublishMsg", "publish to "+msg.Subject)
	}
	return nil
}

// JetStream returns the JetStream context for the connection
func (c *Client) JetStream() (jetstream.JetStream, error) {
	if _, err := c.connected(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, errors.WrapFatal(ErrNotConnected, "Client", "JetStream", "JetStream not initialized")
	}
	return c.js, nil
}

// CreateKeyValueBucket creates a KV bucket, or returns it when it exists.
func (c *Client) CreateKeyValueBucket(ctx context.Context, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	if bucket, err := js.KeyValue(ctx, cfg.Bucket); err == nil {
		c.logger.Debug("Using existing KV bucket", "bucket", cfg.Bucket)
		return bucket, nil
	}

	bucket, err := js.CreateKeyValue(ctx, cfg)
	if err != nil {
		if !isAlreadyExistsError(err) {
			c.recordFailure()
			return nil, errors.Wrap(err, "Client", "CreateKeyValueBucket", "create bucket "+cfg.Bucket)
		}
		// Lost a creation race.
		bucket, err = js.KeyValue(ctx, cfg.Bucket)
		if err != nil {
			c.recordFailure()
			return nil, errors.Wrap(err, "Client", "CreateKeyValueBucket", "access existing bucket "+cfg.Bucket)
		}
	}

	c.logger.Info("Created KV bucket", "bucket", cfg.Bucket)
	return bucket, nil
}

// GetKeyValueBucket gets an existing KV bucket
func (c *Client) GetKeyValueBucket(ctx context.Context, name string) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	bucket, err := js.KeyValue(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "Client", "GetKeyValueBucket", "get bucket "+name)
	}
	return bucket, nil
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusReconnecting)
	c.metrics.RecordNATSStatus(false)
	c.logger.Warn("Disconnected from NATS", "error", err)

	c.mu.RLock()
	onDisconnect := c.onDisconnect
	onHealthChange := c.onHealthChange
	c.mu.RUnlock()

	if onDisconnect != nil {
		go onDisconnect(err)
	}
	if onHealthChange != nil {
		go onHealthChange(false)
	}
}

func (c *Client) handleReconnect(_ *nats.Conn) {
	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.metrics.RecordNATSStatus(true)
	c.metrics.RecordNATSReconnect()
	c.logger.Info("Reconnected to NATS", "url", c.url)

	c.mu.RLock()
	onReconnect := c.onReconnect
	onHealthChange := c.onHealthChange
	c.mu.RUnlock()

	if onReconnect != nil {
		go onReconnect()
	}
	if onHealthChange != nil {
		go onHealthChange(true)
	}
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.setStatus(StatusDisconnected)
	c.metrics.RecordNATSStatus(false)

	c.mu.RLock()
	onHealthChange := c.onHealthChange
	c.mu.RUnlock()

	if onHealthChange != nil {
		go onHealthChange(false)
	}
}

func (c *Client) handleError(_ *nats.Conn, sub *nats.Subscription, err error) {
	// Async errors (slow consumers, permission violations) do not count
	// against the circuit.
	subject := ""
	if sub != nil {
		subject = sub.Subject
	}
	c.logger.Error("NATS async error", "subject", subject, "error", err)
}

func isAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, jetstream.ErrBucketExists) || stderrors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "already in use") || strings.Contains(errStr, "already exists")
}
