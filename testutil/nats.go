package testutil

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/traitstore/codec"
	"github.com/c360/traitstore/natsclient"
	"github.com/c360/traitstore/transport"
	"github.com/c360/traitstore/transport/natstransport"
)

type natsWatch struct {
	reply string
	req   []byte
	kv    bool
}

// NATSEngine serves store requests over NATS from a MemoryStore, speaking
// the natstransport protocol. Watches registered in KV mode get their
// snapshots written to the bucket passed to WithKVBucket.
type NATSEngine struct {
	Store *MemoryStore

	client   *natsclient.Client
	subjects natstransport.Subjects
	codec    codec.EngineCodec
	kv       jetstream.KeyValue
	logger   *slog.Logger

	mu      sync.Mutex
	watches map[string]natsWatch
	cancels []string
	subs    []*nats.Subscription
}

// NATSEngineOption configures a NATSEngine
type NATSEngineOption func(*NATSEngine)

// WithKVBucket sets the bucket KV-mode watches write to
func WithKVBucket(kv jetstream.KeyValue) NATSEngineOption {
	return func(e *NATSEngine) {
		e.kv = kv
	}
}

// WithEngineSubjects overrides the subjects the engine answers on
func WithEngineSubjects(s natstransport.Subjects) NATSEngineOption {
	return func(e *NATSEngine) {
		e.subjects = s
	}
}

// NewNATSEngine creates an engine over store using client for NATS. A nil
// store creates one. Start subscribes it.
func NewNATSEngine(client *natsclient.Client, store *MemoryStore, opts ...NATSEngineOption) *NATSEngine {
	if store == nil {
		store = NewMemoryStore()
	}
	e := &NATSEngine{
		Store:    store,
		client:   client,
		subjects: natstransport.DefaultSubjects(),
		codec:    codec.JSON{},
		logger:   slog.Default().With("component", "natsengine"),
		watches:  make(map[string]natsWatch),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start subscribes the request subjects and flushes so requests published
// afterwards are seen.
func (e *NATSEngine) Start() error {
	handlers := map[string]nats.MsgHandler{
		e.subjects.Mutate:      e.handleMutate,
		e.subjects.Query:       e.handleQuery,
		e.subjects.Watch:       e.handleWatch,
		e.subjects.WatchCancel: e.handleCancel,
		e.subjects.QueryCancel: e.handleCancel,
	}
	for subject, h := range handlers {
		sub, err := e.client.Subscribe(subject, h)
		if err != nil {
			e.Stop()
			return err
		}
		e.mu.Lock()
		e.subs = append(e.subs, sub)
		e.mu.Unlock()
	}
	return e.client.Conn().Flush()
}

// Stop unsubscribes the engine
func (e *NATSEngine) Stop() {
	e.mu.Lock()
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()

	for _, sub := range subs {
		_ = e.client.Unsubscribe(sub)
	}
}

func (e *NATSEngine) respond(reply string, status transport.Status, data []byte) {
	if reply == "" {
		return
	}
	msg := nats.NewMsg(reply)
	msg.Header.Set(natstransport.HeaderStatus, status.String())
	msg.Data = data
	if err := e.client.PublishMsg(context.Background(), msg); err != nil {
		e.logger.Debug("Reply failed", "reply", reply, "error", err)
	}
}

func (e *NATSEngine) handleMutate(msg *nats.Msg) {
	status, out := applyEncoded(e.Store, e.codec, msg.Data)
	e.respond(msg.Reply, status, out)
	if status == transport.StatusDone {
		e.notifyWatches()
	}
}

func (e *NATSEngine) handleQuery(msg *nats.Msg) {
	status, out := queryEncoded(e.Store, e.codec, msg.Data)
	if status == transport.StatusRunning {
		status = transport.StatusDone
	}
	e.respond(msg.Reply, status, out)
}

func (e *NATSEngine) handleWatch(msg *nats.Msg) {
	id := msg.Header.Get(natstransport.HeaderWatchID)
	if id == "" {
		e.respond(msg.Reply, transport.StatusError, []byte("missing "+natstransport.HeaderWatchID))
		return
	}
	kvMode := msg.Header.Get(natstransport.HeaderWatchMode) == natstransport.WatchModeKV
	if kvMode && e.kv == nil {
		e.respond(msg.Reply, transport.StatusError, []byte("kv watch mode not configured"))
		return
	}

	status, out := queryEncoded(e.Store, e.codec, msg.Data)
	if status == transport.StatusError {
		e.respond(msg.Reply, status, out)
		return
	}

	w := natsWatch{reply: msg.Reply, req: append([]byte(nil), msg.Data...), kv: kvMode}
	e.mu.Lock()
	e.watches[id] = w
	e.mu.Unlock()

	if kvMode {
		e.respond(msg.Reply, transport.StatusRunning, nil)
	}
	e.push(id, w, out)
}

func (e *NATSEngine) push(id string, w natsWatch, snapshot []byte) {
	if !w.kv {
		e.respond(w.reply, transport.StatusRunning, snapshot)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := e.kv.Put(ctx, id, snapshot); err != nil {
		e.logger.Debug("KV snapshot failed", "watch", id, "error", err)
	}
}

func (e *NATSEngine) notifyWatches() {
	e.mu.Lock()
	watches := make(map[string]natsWatch, len(e.watches))
	for id, w := range e.watches {
		watches[id] = w
	}
	e.mu.Unlock()

	for id, w := range watches {
		status, out := queryEncoded(e.Store, e.codec, w.req)
		if status == transport.StatusError {
			e.endWatch(id, status, out)
			continue
		}
		e.push(id, w, out)
	}
}

func (e *NATSEngine) handleCancel(msg *nats.Msg) {
	id := string(msg.Data)
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.watches, id)
	e.cancels = append(e.cancels, id)
}

// FinishWatch completes a watch with Done. In KV mode the key is deleted.
func (e *NATSEngine) FinishWatch(id string) bool {
	return e.endWatch(id, transport.StatusDone, nil)
}

// FailWatch completes a watch with Error carrying detail
func (e *NATSEngine) FailWatch(id, detail string) bool {
	return e.endWatch(id, transport.StatusError, []byte(detail))
}

func (e *NATSEngine) endWatch(id string, status transport.Status, detail []byte) bool {
	e.mu.Lock()
	w, ok := e.watches[id]
	delete(e.watches, id)
	e.mu.Unlock()
	if !ok {
		return false
	}

	if w.kv && status == transport.StatusDone {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.kv.Delete(ctx, id); err != nil {
			e.logger.Debug("KV delete failed", "watch", id, "error", err)
		}
		return true
	}
	e.respond(w.reply, status, detail)
	return true
}

// ActiveWatches returns the number of registered watches
func (e *NATSEngine) ActiveWatches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.watches)
}

// Cancellations returns the ids received on the cancel subjects
func (e *NATSEngine) Cancellations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.cancels...)
}
