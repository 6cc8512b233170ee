package request

import "github.com/c360/traitstore/graph"

// MutationResult is the engine's answer to a MutationRequest. Entities is
// populated only when the request asked for them.
type MutationResult struct {
	OperationID uint64         `json:"operation_id"`
	Entities    []graph.Entity `json:"entities,omitempty"`
}

// QueryResult carries the entities matched by an EntityQuery and the
// operation id the snapshot reflects
type QueryResult struct {
	Entities    []graph.Entity `json:"entities"`
	OperationID uint64         `json:"operation_id"`
}

// Entity returns the entity with the given id, if present
func (r *QueryResult) Entity(id string) (graph.Entity, bool) {
	if r == nil {
		return graph.Entity{}, false
	}
	for _, e := range r.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return graph.Entity{}, false
}
