package subscription

import "fmt"

// State is the lifecycle position of an operation
type State int32

const (
	StateCreated State = iota
	StatePending
	StateRunning
	StateDone
	StateError
	StateCancelled
)

// String returns the lowercase state name
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s == StateDone || s == StateError || s == StateCancelled
}
