package request

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/traitstore/graph"
)

// MutationOp identifies the kind of an EntityMutation
type MutationOp int

const (
	// OpPutTrait inserts or replaces a trait
	OpPutTrait MutationOp = iota
	// OpDeleteTrait removes a trait by id
	OpDeleteTrait
	// OpDeleteEntity removes the target entity
	OpDeleteEntity
)

var mutationOpNames = map[MutationOp]string{
	OpPutTrait:     "put_trait",
	OpDeleteTrait:  "delete_trait",
	OpDeleteEntity: "delete_entity",
}

// String returns the wire name of the op
func (o MutationOp) String() string {
	if s, ok := mutationOpNames[o]; ok {
		return s
	}
	return fmt.Sprintf("mutation_op(%d)", int(o))
}

// MarshalJSON encodes the op as its wire name
func (o MutationOp) MarshalJSON() ([]byte, error) {
	s, ok := mutationOpNames[o]
	if !ok {
		return nil, fmt.Errorf("unknown mutation op %d", int(o))
	}
	return json.Marshal(s)
}

// UnmarshalJSON decodes a wire name
func (o *MutationOp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for op, name := range mutationOpNames {
		if name == s {
			*o = op
			return nil
		}
	}
	return fmt.Errorf("unknown mutation op %q", s)
}

// EntityMutation is one operation scoped to a target entity. TraitID is set
// for put and delete-trait; Payload and CreatedAt are set for put only.
type EntityMutation struct {
	EntityID  string        `json:"entity_id"`
	NewEntity bool          `json:"new_entity,omitempty"`
	Op        MutationOp    `json:"op"`
	TraitID   string        `json:"trait_id,omitempty"`
	Payload   graph.Payload `json:"-"`
	CreatedAt *time.Time    `json:"created_at,omitempty"`
}

// MutationRequest is an ordered list of mutations. When ReturnEntities is
// set the engine echoes every affected entity back in the result.
type MutationRequest struct {
	Mutations      []EntityMutation `json:"mutations"`
	ReturnEntities bool             `json:"return_entities,omitempty"`
}

// MutationOption configures a MutationBuilder
type MutationOption func(*MutationBuilder)

// WithIDGenerator replaces the default UUID generator
func WithIDGenerator(g IDGenerator) MutationOption {
	return func(b *MutationBuilder) {
		if g != nil {
			b.ids = g
		}
	}
}

// WithClock replaces time.Now for creation timestamps
func WithClock(now func() time.Time) MutationOption {
	return func(b *MutationBuilder) {
		if now != nil {
			b.now = now
		}
	}
}

// MutationBuilder accumulates mutations against one target entity at a time.
// CreateEntity and UpdateEntity switch the target; trait operations apply to
// the current target.
type MutationBuilder struct {
	ids IDGenerator
	now func() time.Time

	entityID  string
	newEntity bool

	mutations      []EntityMutation
	returnEntities bool
}

// NewMutationBuilder returns an empty builder
func NewMutationBuilder(opts ...MutationOption) *MutationBuilder {
	b := &MutationBuilder{
		ids: UUIDGenerator{},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CreateEntity targets a new entity with a generated id
func (b *MutationBuilder) CreateEntity() *MutationBuilder {
	return b.CreateEntityWithID("")
}

// CreateEntityWithID targets a new entity. An empty id is generated in the
// entity namespace.
func (b *MutationBuilder) CreateEntityWithID(id string) *MutationBuilder {
	if id == "" {
		id = b.ids.Generate(EntityPrefix)
	}
	b.entityID = id
	b.newEntity = true
	return b
}

// UpdateEntity targets an existing entity
func (b *MutationBuilder) UpdateEntity(id string) *MutationBuilder {
	b.entityID = id
	b.newEntity = false
	return b
}

// EntityID returns the current target entity id
func (b *MutationBuilder) EntityID() string {
	return b.entityID
}

// PutTrait appends a put with a generated trait id
func (b *MutationBuilder) PutTrait(payload graph.Payload) *MutationBuilder {
	return b.PutTraitWithID("", payload)
}

// PutTraitWithID appends a put for traitID. An empty id is generated in the
// trait namespace. The creation timestamp is the time of this call.
func (b *MutationBuilder) PutTraitWithID(traitID string, payload graph.Payload) *MutationBuilder {
	if traitID == "" {
		traitID = b.ids.Generate(TraitPrefix)
	}
	created := b.now()
	b.append(EntityMutation{
		Op:        OpPutTrait,
		TraitID:   traitID,
		Payload:   payload,
		CreatedAt: &created,
	})
	return b
}

// DeleteTrait appends a trait removal
func (b *MutationBuilder) DeleteTrait(traitID string) *MutationBuilder {
	b.append(EntityMutation{Op: OpDeleteTrait, TraitID: traitID})
	return b
}

// DeleteEntity appends removal of the current target
func (b *MutationBuilder) DeleteEntity() *MutationBuilder {
	b.append(EntityMutation{Op: OpDeleteEntity})
	return b
}

// ReturnEntities asks the engine to echo affected entities
func (b *MutationBuilder) ReturnEntities() *MutationBuilder {
	b.returnEntities = true
	return b
}

func (b *MutationBuilder) append(m EntityMutation) {
	m.EntityID = b.entityID
	m.NewEntity = b.newEntity
	b.mutations = append(b.mutations, m)
}

// Build snapshots the accumulated mutations
func (b *MutationBuilder) Build() MutationRequest {
	muts := make([]EntityMutation, len(b.mutations))
	copy(muts, b.mutations)
	for i := range muts {
		if muts[i].CreatedAt != nil {
			ts := *muts[i].CreatedAt
			muts[i].CreatedAt = &ts
		}
	}
	return MutationRequest{
		Mutations:      muts,
		ReturnEntities: b.returnEntities,
	}
}
