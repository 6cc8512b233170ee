package subscription

import (
	"runtime"
	"sync/atomic"
	"weak"

	"github.com/c360/traitstore/graph/request"
	"github.com/c360/traitstore/transport"
)

// WatchEvent is one delivery to a watch function. Result is set for a
// successfully decoded Running update. Err is set for a Running update that
// failed to decode, in which case State stays Running, and for a terminal
// Error.
type WatchEvent struct {
	State  State
	Result *request.QueryResult
	Err    error
}

// watchState is shared by the registry entry and the handle. It never
// points back at the handle, so the handle can become unreachable while
// the transport still holds the callback.
type watchState struct {
	state atomic.Int32
	fn    func(WatchEvent)
}

func (w *watchState) load() State {
	return State(w.state.Load())
}

// toRunning moves Pending or Running to Running
func (w *watchState) toRunning() bool {
	for {
		cur := w.load()
		if cur != StatePending && cur != StateRunning {
			return false
		}
		if w.state.CompareAndSwap(int32(cur), int32(StateRunning)) {
			return true
		}
	}
}

// WatchHandle controls a watched query
type WatchHandle struct {
	st      *watchState
	token   uint64
	handle  transport.Handle
	manager weak.Pointer[Manager]
}

// watchCleanup carries what a dropped handle needs to cancel its watch
type watchCleanup struct {
	manager weak.Pointer[Manager]
	token   uint64
}

func newWatchHandle(m *Manager, st *watchState, token uint64, h transport.Handle) *WatchHandle {
	wh := &WatchHandle{
		st:      st,
		token:   token,
		handle:  h,
		manager: weak.Make(m),
	}
	runtime.AddCleanup(wh, func(c watchCleanup) {
		if mgr := c.manager.Value(); mgr != nil {
			mgr.cancelWatch(c.token, true)
		}
	}, watchCleanup{manager: wh.manager, token: token})
	return wh
}

// ID returns the transport handle id
func (h *WatchHandle) ID() string {
	if h.handle == nil {
		return ""
	}
	return h.handle.ID()
}

// State returns the current lifecycle state
func (h *WatchHandle) State() State {
	return h.st.load()
}

// Cancel stops the watch. It reports whether this call cancelled it: false
// after a terminal status, after an earlier Cancel, or once the manager is
// gone. The transport's cancel is invoked at most once per watch.
func (h *WatchHandle) Cancel() bool {
	m := h.manager.Value()
	if m == nil {
		return false
	}
	return m.cancelWatch(h.token, false)
}
