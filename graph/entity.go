package graph

import (
	"encoding/json"
	"time"
)

// Entity is a store record: an id and the traits attached to it. Trait order
// is whatever the store returned and is not sorted.
type Entity struct {
	ID      string  `json:"id"`
	Traits  []Trait `json:"traits"`
	Deleted bool    `json:"deleted,omitempty"`
}

// Trait is a single typed fact attached to an entity. IDs are unique within
// their entity.
type Trait struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Payload    Payload    `json:"-"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
}

// NewTrait builds a trait whose type name is taken from the payload
func NewTrait(id string, payload Payload) Trait {
	t := Trait{ID: id, Payload: payload}
	if payload != nil {
		t.Type = payload.TypeName()
	}
	return t
}

// Validate checks that the trait type agrees with its payload
func (t Trait) Validate() error {
	if t.Type == "" {
		return ErrEmptyTypeName
	}
	if t.Payload != nil && t.Payload.TypeName() != t.Type {
		return ErrPayloadMismatch
	}
	return nil
}

// Clone returns a deep copy of the entity. Timestamps, Task due dates and
// Opaque data are copied so neither side can see writes through the other.
func (e Entity) Clone() Entity {
	out := e
	if e.Traits != nil {
		out.Traits = make([]Trait, len(e.Traits))
		for i, t := range e.Traits {
			out.Traits[i] = t.Clone()
		}
	}
	return out
}

// Clone returns a copy of the trait that shares no memory with t
func (t Trait) Clone() Trait {
	out := t
	out.CreatedAt = cloneTime(t.CreatedAt)
	out.ModifiedAt = cloneTime(t.ModifiedAt)
	out.Payload = clonePayload(t.Payload)
	return out
}

func clonePayload(p Payload) Payload {
	switch v := p.(type) {
	case Task:
		v.Due = cloneTime(v.Due)
		return v
	case Opaque:
		if v.Data != nil {
			v.Data = append(json.RawMessage(nil), v.Data...)
		}
		return v
	default:
		return p
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// TraitIDs returns trait ids in entity order
func (e Entity) TraitIDs() []string {
	ids := make([]string, 0, len(e.Traits))
	for _, t := range e.Traits {
		ids = append(ids, t.ID)
	}
	return ids
}
