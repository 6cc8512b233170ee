package testutil

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/c360/traitstore/codec"
	"github.com/c360/traitstore/transport"
	"github.com/c360/traitstore/transport/wstransport"
)

// WSEngine is an http.Handler serving store requests over WebSocket from a
// MemoryStore. Mount it on an httptest.Server and point wstransport.Dial at
// the server's ws:// URL.
type WSEngine struct {
	Store *MemoryStore

	codec    codec.EngineCodec
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	conns   map[*wsConn]struct{}
	cancels []string
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	watches map[string][]byte
}

func (c *wsConn) send(f wstransport.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(f)
}

func (c *wsConn) result(id string, status transport.Status, data []byte) {
	_ = c.send(wstransport.Frame{Op: wstransport.OpResult, ID: id, Status: status.String(), Payload: data})
}

// NewWSEngine creates an engine over store. A nil store creates one.
func NewWSEngine(store *MemoryStore) *WSEngine {
	if store == nil {
		store = NewMemoryStore()
	}
	return &WSEngine{
		Store:  store,
		codec:  codec.JSON{},
		logger: slog.Default().With("component", "wsengine"),
		conns:  make(map[*wsConn]struct{}),
	}
}

// ServeHTTP upgrades the request and serves frames until the peer goes away
func (e *WSEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Debug("Upgrade failed", "error", err)
		return
	}
	c := &wsConn{conn: conn, watches: make(map[string][]byte)}

	e.mu.Lock()
	e.conns[c] = struct{}{}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.conns, c)
		e.mu.Unlock()
		conn.Close()
	}()

	for {
		var f wstransport.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		e.handle(c, f)
	}
}

func (e *WSEngine) handle(c *wsConn, f wstransport.Frame) {
	switch f.Op {
	case wstransport.OpMutate:
		status, out := applyEncoded(e.Store, e.codec, f.Payload)
		c.result(f.ID, status, out)
		if status == transport.StatusDone {
			e.notifyWatches()
		}
	case wstransport.OpQuery:
		status, out := queryEncoded(e.Store, e.codec, f.Payload)
		if status == transport.StatusRunning {
			status = transport.StatusDone
		}
		c.result(f.ID, status, out)
	case wstransport.OpWatch:
		status, out := queryEncoded(e.Store, e.codec, f.Payload)
		if status == transport.StatusRunning {
			c.mu.Lock()
			c.watches[f.ID] = f.Payload
			c.mu.Unlock()
		}
		c.result(f.ID, status, out)
	case wstransport.OpCancelQuery, wstransport.OpCancelWatch:
		c.mu.Lock()
		delete(c.watches, f.ID)
		c.mu.Unlock()
		e.mu.Lock()
		e.cancels = append(e.cancels, f.ID)
		e.mu.Unlock()
	default:
		c.result(f.ID, transport.StatusError, []byte("unknown op "+f.Op))
	}
}

func (e *WSEngine) connections() []*wsConn {
	e.mu.Lock()
	defer e.mu.Unlock()
	conns := make([]*wsConn, 0, len(e.conns))
	for c := range e.conns {
		conns = append(conns, c)
	}
	return conns
}

func (e *WSEngine) notifyWatches() {
	for _, c := range e.connections() {
		c.mu.Lock()
		watches := make(map[string][]byte, len(c.watches))
		for id, req := range c.watches {
			watches[id] = req
		}
		c.mu.Unlock()

		for id, req := range watches {
			status, out := queryEncoded(e.Store, e.codec, req)
			if status.Terminal() {
				c.mu.Lock()
				delete(c.watches, id)
				c.mu.Unlock()
			}
			c.result(id, status, out)
		}
	}
}

// FinishWatch completes the watch with Done on whichever connection owns it
func (e *WSEngine) FinishWatch(id string) bool {
	for _, c := range e.connections() {
		c.mu.Lock()
		_, ok := c.watches[id]
		delete(c.watches, id)
		c.mu.Unlock()
		if ok {
			c.result(id, transport.StatusDone, nil)
			return true
		}
	}
	return false
}

// ActiveWatches returns the number of watches across all connections
func (e *WSEngine) ActiveWatches() int {
	n := 0
	for _, c := range e.connections() {
		c.mu.Lock()
		n += len(c.watches)
		c.mu.Unlock()
	}
	return n
}

// Cancellations returns the ids of every cancel frame received
func (e *WSEngine) Cancellations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.cancels...)
}

// DropConnections closes every server side connection abruptly
func (e *WSEngine) DropConnections() {
	for _, c := range e.connections() {
		c.conn.Close()
	}
}
