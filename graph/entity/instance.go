package entity

import (
	"context"

	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/graph"
	"github.com/c360/traitstore/graph/request"
)

// Instance is the memoized, typed view of one trait. The same *Instance is
// returned for every access to a trait id on a given Model.
type Instance struct {
	model    *Model
	trait    graph.Trait
	priority graph.Priority
	ranked   bool
}

// ID returns the trait id
func (i *Instance) ID() string { return i.trait.ID }

// Type returns the semantic type name
func (i *Instance) Type() string { return i.trait.Type }

// EntityID returns the id of the owning entity
func (i *Instance) EntityID() string { return i.model.entity.ID }

// Payload returns the typed payload
func (i *Instance) Payload() graph.Payload { return i.trait.Payload }

// Trait returns a copy of the underlying trait
func (i *Instance) Trait() graph.Trait { return i.trait }

// Priority returns the metadata ranking this trait, if any
func (i *Instance) Priority() (graph.Priority, bool) {
	return i.priority, i.ranked
}

// DisplayName returns the fixed label of the trait's priority entry, else
// the payload's own name when the entry allows it, else the type name.
func (i *Instance) DisplayName() string {
	if i.ranked {
		if i.priority.Label != "" {
			return i.priority.Label
		}
		if i.priority.UseDisplayName {
			if n, ok := i.trait.Payload.(graph.Named); ok && n.DisplayName() != "" {
				return n.DisplayName()
			}
		}
	}
	return i.trait.Type
}

// CanRename reports whether Rename would build a mutation
func (i *Instance) CanRename() bool {
	if !i.ranked || !i.priority.Renamable {
		return false
	}
	_, ok := i.trait.Payload.(graph.Renamable)
	return ok
}

// Rename writes a copy of the payload carrying newName back to the same
// trait id and waits for the store to acknowledge it.
//
// The instance and its model are not updated. The new name becomes visible
// only after the entity is fetched again.
func (i *Instance) Rename(ctx context.Context, newName string) (*request.MutationResult, error) {
	req, err := i.RenameRequest(newName)
	if err != nil {
		return nil, err
	}
	if i.model.mutator == nil {
		return nil, errors.Wrap(errors.ErrNoMutator, "Instance", "Rename", "submit mutation")
	}
	res, err := i.model.mutator.Apply(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "Instance", "Rename", "apply mutation")
	}
	return res, nil
}

// RenameRequest builds the mutation Rename would submit
func (i *Instance) RenameRequest(newName string) (request.MutationRequest, error) {
	if !i.CanRename() {
		return request.MutationRequest{}, errors.ErrNoRenameRule
	}
	renamed := i.trait.Payload.(graph.Renamable).WithName(newName)
	return request.NewMutationBuilder(i.model.builderOpts...).
		UpdateEntity(i.model.entity.ID).
		PutTraitWithID(i.trait.ID, renamed).
		Build(), nil
}
