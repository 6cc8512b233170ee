package subscription

import (
	"sync"

	"github.com/c360/traitstore/transport"
)

type opKind int

const (
	opMutate opKind = iota
	opQuery
	opWatch
)

func (k opKind) String() string {
	switch k {
	case opMutate:
		return "mutate"
	case opQuery:
		return "query"
	default:
		return "watch"
	}
}

// entry is the boxed callback owned by the registry for one token
type entry struct {
	token  uint64
	kind   opKind
	handle transport.Handle
	// detached is set when the entry was drained before its send returned
	detached bool

	// deliver handles a callback that found its entry
	deliver func(status transport.Status, data []byte)
	// abandon moves the operation to its cancelled outcome
	abandon func()
}

// RegistryStats counts registry traffic. Active equals Registered minus
// Released at any quiescent point.
type RegistryStats struct {
	Registered uint64
	Released   uint64
	Active     int
}

// registry maps tokens to callbacks. Each entry is removed exactly once.
type registry struct {
	mu         sync.Mutex
	next       uint64
	entries    map[uint64]*entry
	registered uint64
	released   uint64
}

func newRegistry() *registry {
	return &registry{entries: make(map[uint64]*entry)}
}

func (r *registry) insert(e *entry) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	e.token = r.next
	r.entries[e.token] = e
	r.registered++
	return e.token
}

// bind records the transport handle once the send succeeded. The entry
// may already have been released by a callback that ran during the send.
// It reports true if a drain took the entry before the handle was known,
// leaving the transport cancel to the caller.
func (r *registry) bind(e *entry, h transport.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.handle = h
	return e.detached
}

// abort removes an entry whose send failed. It is not counted as a release:
// the entry never crossed the boundary. It reports false if a drain took
// the entry first.
func (r *registry) abort(token uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[token]; !ok {
		return false
	}
	delete(r.entries, token)
	r.registered--
	return true
}

func (r *registry) lookup(token uint64) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[token]
	return e, ok
}

// release removes the entry and reports whether this call removed it
func (r *registry) release(token uint64) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[token]
	if !ok {
		return nil, false
	}
	delete(r.entries, token)
	r.released++
	return e, true
}

// drain releases every entry matching keep and returns them. Entries still
// waiting on their send are marked detached.
func (r *registry) drain(keep func(*entry) bool) []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entry
	for token, e := range r.entries {
		if !keep(e) {
			continue
		}
		delete(r.entries, token)
		r.released++
		e.detached = e.handle == nil
		out = append(out, e)
	}
	return out
}

func (r *registry) stats() RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RegistryStats{
		Registered: r.registered,
		Released:   r.released,
		Active:     len(r.entries),
	}
}
