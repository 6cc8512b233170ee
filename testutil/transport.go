package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360/traitstore/transport"
)

// Send kinds recorded by ScriptedTransport
const (
	KindMutate = "mutate"
	KindQuery  = "query"
	KindWatch  = "watch"
)

// Call is one send recorded by ScriptedTransport
type Call struct {
	Kind    string
	Handle  transport.StringHandle
	Request []byte
}

// ScriptedTransport records sends and cancels and lets a test drive
// callbacks by hand with Fire. Callbacks stay reachable after cancellation
// so tests can simulate a delivery racing a cancel.
//
// Thread-safe for concurrent use from multiple goroutines.
type ScriptedTransport struct {
	mu        sync.Mutex
	next      int
	calls     []Call
	callbacks map[transport.StringHandle]transport.Callback
	cancels   map[transport.StringHandle]int

	// SendErr, when set, is returned by every send and no handle is created
	SendErr error

	// OnSend, when set, runs synchronously inside the send after the call is
	// recorded. It may invoke cb before the send returns.
	OnSend func(call Call, cb transport.Callback)
}

// NewScriptedTransport creates an empty scripted transport
func NewScriptedTransport() *ScriptedTransport {
	return &ScriptedTransport{
		callbacks: make(map[transport.StringHandle]transport.Callback),
		cancels:   make(map[transport.StringHandle]int),
	}
}

// Mutate implements transport.Transport
func (s *ScriptedTransport) Mutate(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error) {
	return s.send(ctx, KindMutate, req, cb)
}

// Query implements transport.Transport
func (s *ScriptedTransport) Query(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error) {
	return s.send(ctx, KindQuery, req, cb)
}

// WatchedQuery implements transport.Transport
func (s *ScriptedTransport) WatchedQuery(ctx context.Context, req []byte, cb transport.Callback) (transport.Handle, error) {
	return s.send(ctx, KindWatch, req, cb)
}

func (s *ScriptedTransport) send(ctx context.Context, kind string, req []byte, cb transport.Callback) (transport.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.SendErr != nil {
		err := s.SendErr
		s.mu.Unlock()
		return nil, err
	}
	s.next++
	h := transport.StringHandle(fmt.Sprintf("%s-%d", kind, s.next))
	call := Call{Kind: kind, Handle: h, Request: append([]byte(nil), req...)}
	s.calls = append(s.calls, call)
	s.callbacks[h] = cb
	onSend := s.OnSend
	s.mu.Unlock()

	if onSend != nil {
		onSend(call, cb)
	}
	return h, nil
}

// CancelQuery implements transport.Transport
func (s *ScriptedTransport) CancelQuery(h transport.Handle) {
	s.cancel(h)
}

// CancelWatchedQuery implements transport.Transport
func (s *ScriptedTransport) CancelWatchedQuery(h transport.Handle) {
	s.cancel(h)
}

func (s *ScriptedTransport) cancel(h transport.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[transport.StringHandle(h.ID())]++
}

// Fire invokes the callback registered for h. It reports false if h is
// unknown.
func (s *ScriptedTransport) Fire(h transport.Handle, status transport.Status, result []byte) bool {
	s.mu.Lock()
	cb, ok := s.callbacks[transport.StringHandle(h.ID())]
	s.mu.Unlock()

	if !ok {
		return false
	}
	cb(status, result)
	return true
}

// Calls returns every recorded send in order
func (s *ScriptedTransport) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// LastCall returns the most recent send of the given kind
func (s *ScriptedTransport) LastCall(kind string) (Call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].Kind == kind {
			return s.calls[i], true
		}
	}
	return Call{}, false
}

// CancelCount returns how many times h was cancelled
func (s *ScriptedTransport) CancelCount(h transport.Handle) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cancels[transport.StringHandle(h.ID())]
}

// TotalCancels returns the number of cancel calls across all handles
func (s *ScriptedTransport) TotalCancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, n := range s.cancels {
		total += n
	}
	return total
}
