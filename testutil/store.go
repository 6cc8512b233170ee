package testutil

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/graph"
	"github.com/c360/traitstore/graph/request"
)

// ErrNoPredicate is returned for a query built without a predicate
var ErrNoPredicate = fmt.Errorf("%w: query has no predicate", errors.ErrInvalidData)

type storedEntity struct {
	entity graph.Entity
	lastOp uint64
}

// MemoryStore is a minimal in-memory entity store used as the far side of
// test transports. Mutation requests apply atomically: either every
// mutation in a request succeeds or none does.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[string]*storedEntity
	order    []string
	opID     uint64
	now      func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[string]*storedEntity),
		now:      time.Now,
	}
}

// Seed inserts entities as they are, in one operation
func (s *MemoryStore) Seed(entities ...graph.Entity) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opID++
	for _, e := range entities {
		if _, exists := s.entities[e.ID]; !exists {
			s.order = append(s.order, e.ID)
		}
		s.entities[e.ID] = &storedEntity{entity: e.Clone(), lastOp: s.opID}
	}
	return s.opID
}

// OperationID returns the id of the last applied operation
func (s *MemoryStore) OperationID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opID
}

// Get returns a copy of an entity
func (s *MemoryStore) Get(id string) (graph.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	se, ok := s.entities[id]
	if !ok {
		return graph.Entity{}, false
	}
	return se.entity.Clone(), true
}

// Apply executes a mutation request
func (s *MemoryStore) Apply(req request.MutationRequest) (*request.MutationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opID := s.opID + 1
	now := s.now()

	staged := make(map[string]*storedEntity)
	var touched []string
	var created []string

	for i, m := range req.Mutations {
		se, ok := staged[m.EntityID]
		if !ok {
			if cur, exists := s.entities[m.EntityID]; exists {
				se = &storedEntity{entity: cur.entity.Clone(), lastOp: opID}
			} else if m.NewEntity || m.Op == request.OpPutTrait {
				se = &storedEntity{entity: graph.Entity{ID: m.EntityID}, lastOp: opID}
				created = append(created, m.EntityID)
			} else {
				return nil, fmt.Errorf("mutation %d: %w: %s", i, errors.ErrEntityMissing, m.EntityID)
			}
			staged[m.EntityID] = se
			touched = append(touched, m.EntityID)
		}

		if err := applyMutation(&se.entity, m, now); err != nil {
			return nil, fmt.Errorf("mutation %d: %w", i, err)
		}
	}

	s.opID = opID
	s.order = append(s.order, created...)
	res := &request.MutationResult{OperationID: opID}
	for _, id := range touched {
		s.entities[id] = staged[id]
		if req.ReturnEntities {
			res.Entities = append(res.Entities, staged[id].entity.Clone())
		}
	}
	return res, nil
}

func applyMutation(e *graph.Entity, m request.EntityMutation, now time.Time) error {
	switch m.Op {
	case request.OpPutTrait:
		if m.Payload == nil {
			return fmt.Errorf("%w: put without payload", errors.ErrInvalidData)
		}
		t := graph.NewTrait(m.TraitID, m.Payload)
		t.CreatedAt = m.CreatedAt
		for i := range e.Traits {
			if e.Traits[i].ID == m.TraitID {
				if e.Traits[i].CreatedAt != nil {
					t.CreatedAt = e.Traits[i].CreatedAt
				}
				modified := now
				t.ModifiedAt = &modified
				e.Traits[i] = t
				return nil
			}
		}
		e.Deleted = false
		e.Traits = append(e.Traits, t)
		return nil

	case request.OpDeleteTrait:
		for i := range e.Traits {
			if e.Traits[i].ID == m.TraitID {
				e.Traits = append(e.Traits[:i], e.Traits[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", errors.ErrTraitNotFound, m.TraitID)

	case request.OpDeleteEntity:
		e.Deleted = true
		return nil

	default:
		return fmt.Errorf("%w: unknown op %v", errors.ErrInvalidData, m.Op)
	}
}

// Query evaluates q against the current state
func (s *MemoryStore) Query(q request.EntityQuery) (*request.QueryResult, error) {
	if q.Predicate == nil {
		return nil, ErrNoPredicate
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*storedEntity
	for _, id := range s.order {
		se := s.entities[id]
		if se.entity.Deleted && !q.IncludeDeleted {
			continue
		}
		ok, err := matches(se.entity, q.Predicate)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, se)
		}
	}

	if q.Ordering != nil {
		sortEntities(matched, *q.Ordering)
	}
	if q.Count > 0 && len(matched) > q.Count {
		matched = matched[:q.Count]
	}

	res := &request.QueryResult{OperationID: s.opID}
	for _, se := range matched {
		res.Entities = append(res.Entities, project(se.entity, q.Projections))
	}
	return res, nil
}

func matches(e graph.Entity, p request.Predicate) (bool, error) {
	switch v := p.(type) {
	case request.All:
		return true, nil
	case request.IDs:
		for _, id := range v.IDs {
			if id == e.ID {
				return true, nil
			}
		}
		return false, nil
	case request.TraitType:
		found := false
		for _, t := range e.Traits {
			if t.Type == v.Type {
				found = true
				break
			}
		}
		if !found || v.Sub == nil {
			return found, nil
		}
		return matches(e, v.Sub)
	case request.FullText:
		needle := strings.ToLower(v.Query)
		for _, t := range e.Traits {
			if strings.Contains(strings.ToLower(payloadText(t.Payload)), needle) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: unsupported predicate %T", errors.ErrInvalidData, p)
	}
}

func payloadText(p graph.Payload) string {
	switch v := p.(type) {
	case nil:
		return ""
	case graph.Opaque:
		return string(v.Data)
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}

// fieldValue returns the first value of field found in the entity's
// payloads, or the entity id for the "id" field
func fieldValue(e graph.Entity, field string) string {
	if field == "id" {
		return e.ID
	}
	for _, t := range e.Traits {
		var fields map[string]any
		if err := json.Unmarshal([]byte(payloadText(t.Payload)), &fields); err != nil {
			continue
		}
		if v, ok := fields[field]; ok {
			return fmt.Sprint(v)
		}
	}
	return ""
}

func sortEntities(es []*storedEntity, o request.Ordering) {
	sort.SliceStable(es, func(i, j int) bool {
		var less bool
		if o.ByOperationID {
			if es[i].lastOp == es[j].lastOp {
				return false
			}
			less = es[i].lastOp < es[j].lastOp
		} else {
			a, b := fieldValue(es[i].entity, o.Field), fieldValue(es[j].entity, o.Field)
			if a == b {
				return false
			}
			less = a < b
		}
		if o.Ascending {
			return less
		}
		return !less
	})
}

// project keeps only traits whose type is listed. No projections keeps all.
func project(e graph.Entity, types []string) graph.Entity {
	out := e.Clone()
	if len(types) == 0 {
		return out
	}
	keep := make(map[string]bool, len(types))
	for _, t := range types {
		keep[t] = true
	}
	traits := out.Traits[:0]
	for _, t := range out.Traits {
		if keep[t.Type] {
			traits = append(traits, t)
		}
	}
	out.Traits = traits
	return out
}
