// Package entity materializes a fetched graph.Entity into an indexed,
// read-only model with typed, memoized access to its traits.
//
// A Model is a snapshot. Its traits are copied at construction and the
// indexes and priority trait are computed once; changes in the store are
// observed only by fetching the entity again and building a new Model.
//
// Models are not safe for concurrent use. The instance cache is filled
// lazily on first access and assumes a single writer.
package entity

import (
	"context"

	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/graph"
	"github.com/c360/traitstore/graph/request"
)

// Mutator submits a mutation and waits for its outcome. The client facade
// implements it on top of the subscription manager.
type Mutator interface {
	Apply(ctx context.Context, req request.MutationRequest) (*request.MutationResult, error)
}

// Option configures a Model
type Option func(*Model)

// WithMutator sets the mutator used by Instance.Rename
func WithMutator(m Mutator) Option {
	return func(model *Model) {
		model.mutator = m
	}
}

// WithMutationOptions passes builder options, such as an id generator or a
// clock, to the mutations built by Instance.Rename
func WithMutationOptions(opts ...request.MutationOption) Option {
	return func(model *Model) {
		model.builderOpts = append(model.builderOpts, opts...)
	}
}

// Model indexes the traits of one entity by id and by type
type Model struct {
	entity graph.Entity
	table  *graph.PriorityTable

	idIndex   map[string]int
	typeIndex map[string][]int
	types     []string

	priorityIdx int

	instances map[string]*Instance

	mutator     Mutator
	builderOpts []request.MutationOption
}

// New builds a model from e in a single pass over its traits. A nil table
// behaves as an empty one: every trait is unranked and the first trait is
// the priority trait. The model keeps its own copy of table, so later edits
// to the table do not reach existing models.
func New(e graph.Entity, table *graph.PriorityTable, opts ...Option) *Model {
	m := &Model{
		entity:      e.Clone(),
		table:       table.Clone(),
		idIndex:     make(map[string]int, len(e.Traits)),
		typeIndex:   make(map[string][]int),
		priorityIdx: -1,
		instances:   make(map[string]*Instance),
	}
	for _, opt := range opts {
		opt(m)
	}

	bestOrder := 0
	ranked := false
	for i, t := range m.entity.Traits {
		m.idIndex[t.ID] = i
		if _, seen := m.typeIndex[t.Type]; !seen {
			m.types = append(m.types, t.Type)
		}
		m.typeIndex[t.Type] = append(m.typeIndex[t.Type], i)

		p, ok := m.priorityOf(t)
		if !ok {
			continue
		}
		// Strictly lower order replaces; ties keep the first encountered
		if !ranked || p.Order < bestOrder {
			m.priorityIdx = i
			bestOrder = p.Order
			ranked = true
		}
	}
	if !ranked && len(m.entity.Traits) > 0 {
		m.priorityIdx = 0
	}

	return m
}

// priorityOf returns the metadata that ranks t. A trait whose id equals the
// entity id is ranked by the entity's pseudo-type when the entity id is
// well known; every other trait is ranked by its type.
func (m *Model) priorityOf(t graph.Trait) (graph.Priority, bool) {
	if t.ID == m.entity.ID {
		if p, ok := m.table.ForEntity(m.entity.ID); ok {
			return p, true
		}
	}
	return m.table.ForType(t.Type)
}

// ID returns the entity id
func (m *Model) ID() string {
	return m.entity.ID
}

// Entity returns a copy of the snapshot the model was built from
func (m *Model) Entity() graph.Entity {
	return m.entity.Clone()
}

// Deleted reports whether the snapshot was a tombstone
func (m *Model) Deleted() bool {
	return m.entity.Deleted
}

// Len returns the number of traits
func (m *Model) Len() int {
	return len(m.entity.Traits)
}

// Types returns the distinct trait types in order of first appearance
func (m *Model) Types() []string {
	return append([]string(nil), m.types...)
}

// Trait returns the instance for a trait id
func (m *Model) Trait(id string) (*Instance, error) {
	i, ok := m.idIndex[id]
	if !ok {
		return nil, errors.ErrTraitNotFound
	}
	return m.instance(i), nil
}

// TraitOfType returns the first trait of the given type in entity order
func (m *Model) TraitOfType(traitType string) (*Instance, bool) {
	idx := m.typeIndex[traitType]
	if len(idx) == 0 {
		return nil, false
	}
	return m.instance(idx[0]), true
}

// TraitsOfType returns every trait of the given type in entity order
func (m *Model) TraitsOfType(traitType string) []*Instance {
	idx := m.typeIndex[traitType]
	out := make([]*Instance, 0, len(idx))
	for _, i := range idx {
		out = append(out, m.instance(i))
	}
	return out
}

// Traits returns every trait in entity order
func (m *Model) Traits() []*Instance {
	out := make([]*Instance, 0, len(m.entity.Traits))
	for i := range m.entity.Traits {
		out = append(out, m.instance(i))
	}
	return out
}

// PriorityTraitID returns the id of the trait chosen to represent the
// entity, or "" when the entity has no traits
func (m *Model) PriorityTraitID() string {
	if m.priorityIdx < 0 {
		return ""
	}
	return m.entity.Traits[m.priorityIdx].ID
}

// PriorityTrait returns the instance chosen to represent the entity
func (m *Model) PriorityTrait() (*Instance, error) {
	if m.priorityIdx < 0 {
		return nil, errors.ErrNoTraits
	}
	return m.instance(m.priorityIdx), nil
}

// DisplayName summarises the entity through its priority trait
func (m *Model) DisplayName() string {
	inst, err := m.PriorityTrait()
	if err != nil {
		return m.entity.ID
	}
	return inst.DisplayName()
}

func (m *Model) instance(i int) *Instance {
	t := m.entity.Traits[i]
	if inst, ok := m.instances[t.ID]; ok {
		return inst
	}
	p, ranked := m.priorityOf(t)
	inst := &Instance{
		model:    m,
		trait:    t,
		priority: p,
		ranked:   ranked,
	}
	m.instances[t.ID] = inst
	return inst
}
