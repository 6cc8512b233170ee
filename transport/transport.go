// Package transport defines the boundary between the client layer and a
// store engine.
//
// A Transport accepts encoded request bytes and a Callback and returns an
// opaque Handle. The callback is later invoked from a goroutine the
// transport owns:
//
//   - one-shot Mutate and Query invoke it exactly once, with Done or Error
//   - WatchedQuery invokes it with Running any number of times, then at
//     most one Done or Error, which is always last
//
// Invocations for one handle never overlap and arrive in order. After
// CancelQuery or CancelWatchedQuery returns, no further invocation for that
// handle starts; an invocation already in flight may still complete. Both
// cancel operations are idempotent.
package transport

import (
	"context"
	"fmt"
)

// Status reports the kind of a callback invocation
type Status int

const (
	// StatusRunning carries an intermediate watched-query result
	StatusRunning Status = iota
	// StatusDone is terminal and carries the final result, if any
	StatusDone
	// StatusError is terminal and may carry failure detail bytes
	StatusError
)

// String returns the wire name of the status
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus converts a wire name back to a Status
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "running":
		return StatusRunning, true
	case "done":
		return StatusDone, true
	case "error":
		return StatusError, true
	default:
		return StatusError, false
	}
}

// Terminal reports whether no invocation follows this status
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Callback receives results for one handle. result is only valid for the
// duration of the call.
type Callback func(status Status, result []byte)

// Handle identifies a transport-side resource. Implementations choose the
// concrete type; callers only pass it back to cancel operations.
type Handle interface {
	ID() string
}

// Transport reaches a store engine. The context bounds only the send
// itself: it is never used to cancel an operation after the handle is
// returned.
type Transport interface {
	Mutate(ctx context.Context, req []byte, cb Callback) (Handle, error)
	Query(ctx context.Context, req []byte, cb Callback) (Handle, error)
	WatchedQuery(ctx context.Context, req []byte, cb Callback) (Handle, error)
	CancelQuery(h Handle)
	CancelWatchedQuery(h Handle)
}

// StringHandle is a Handle backed by its id
type StringHandle string

// ID implements Handle
func (h StringHandle) ID() string { return string(h) }
