package entity

import "github.com/c360/traitstore/graph"

// Handlers selects a function per payload kind. Unset handlers fall through
// to Default.
type Handlers[R any] struct {
	Note       func(*Instance, graph.Note) R
	Task       func(*Instance, graph.Task) R
	Contact    func(*Instance, graph.Contact) R
	Collection func(*Instance, graph.Collection) R
	Link       func(*Instance, graph.Link) R
	File       func(*Instance, graph.File) R
	Opaque     func(*Instance, graph.Opaque) R
	Default    func(*Instance) R
}

// Match dispatches inst to the handler for its payload kind. It reports
// false when neither a kind handler nor Default is set.
func Match[R any](inst *Instance, h Handlers[R]) (R, bool) {
	var zero R
	if inst == nil {
		return zero, false
	}

	switch p := inst.trait.Payload.(type) {
	case graph.Note:
		if h.Note != nil {
			return h.Note(inst, p), true
		}
	case graph.Task:
		if h.Task != nil {
			return h.Task(inst, p), true
		}
	case graph.Contact:
		if h.Contact != nil {
			return h.Contact(inst, p), true
		}
	case graph.Collection:
		if h.Collection != nil {
			return h.Collection(inst, p), true
		}
	case graph.Link:
		if h.Link != nil {
			return h.Link(inst, p), true
		}
	case graph.File:
		if h.File != nil {
			return h.File(inst, p), true
		}
	case graph.Opaque:
		if h.Opaque != nil {
			return h.Opaque(inst, p), true
		}
	}

	if h.Default != nil {
		return h.Default(inst), true
	}
	return zero, false
}
