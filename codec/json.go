package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/graph"
	"github.com/c360/traitstore/graph/request"
)

// Predicate kinds on the wire
const (
	predicateIDs       = "ids"
	predicateTraitType = "trait_type"
	predicateFullText  = "full_text"
	predicateAll       = "all"
)

type wireMutation struct {
	EntityID  string             `json:"entity_id"`
	NewEntity bool               `json:"new_entity,omitempty"`
	Op        request.MutationOp `json:"op"`
	TraitID   string             `json:"trait_id,omitempty"`
	Payload   *payloadEnvelope   `json:"payload,omitempty"`
	CreatedAt *time.Time         `json:"created_at,omitempty"`
}

type wireMutationRequest struct {
	Mutations      []wireMutation `json:"mutations"`
	ReturnEntities bool           `json:"return_entities,omitempty"`
}

type wirePredicate struct {
	Kind  string         `json:"kind"`
	IDs   []string       `json:"ids,omitempty"`
	Type  string         `json:"type,omitempty"`
	Sub   *wirePredicate `json:"sub,omitempty"`
	Query string         `json:"query,omitempty"`
}

type wireOrdering struct {
	Field         string `json:"field,omitempty"`
	ByOperationID bool   `json:"by_operation_id,omitempty"`
	Ascending     bool   `json:"ascending"`
}

type wireQuery struct {
	Predicate      *wirePredicate `json:"predicate,omitempty"`
	Count          int            `json:"count,omitempty"`
	Ordering       *wireOrdering  `json:"ordering,omitempty"`
	Projections    []string       `json:"projections,omitempty"`
	IncludeDeleted bool           `json:"include_deleted,omitempty"`
}

type wireTrait struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	Payload    *payloadEnvelope `json:"payload,omitempty"`
	CreatedAt  *time.Time       `json:"created_at,omitempty"`
	ModifiedAt *time.Time       `json:"modified_at,omitempty"`
}

type wireEntity struct {
	ID      string      `json:"id"`
	Traits  []wireTrait `json:"traits"`
	Deleted bool        `json:"deleted,omitempty"`
}

type wireResult struct {
	OperationID uint64       `json:"operation_id"`
	Entities    []wireEntity `json:"entities,omitempty"`
}

// JSON is the JSON codec. The zero value is ready to use.
type JSON struct{}

var _ EngineCodec = JSON{}

// EncodeMutation implements Codec
func (JSON) EncodeMutation(req request.MutationRequest) ([]byte, error) {
	w := wireMutationRequest{
		Mutations:      make([]wireMutation, 0, len(req.Mutations)),
		ReturnEntities: req.ReturnEntities,
	}
	for _, m := range req.Mutations {
		env, err := encodePayload(m.Payload)
		if err != nil {
			return nil, errors.WrapInvalid(err, "JSON", "EncodeMutation", "encode payload")
		}
		w.Mutations = append(w.Mutations, wireMutation{
			EntityID:  m.EntityID,
			NewEntity: m.NewEntity,
			Op:        m.Op,
			TraitID:   m.TraitID,
			Payload:   env,
			CreatedAt: m.CreatedAt,
		})
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, errors.WrapInvalid(err, "JSON", "EncodeMutation", "marshal request")
	}
	return data, nil
}

// EncodeQuery implements Codec
func (JSON) EncodeQuery(q request.EntityQuery) ([]byte, error) {
	pred, err := encodePredicate(q.Predicate)
	if err != nil {
		return nil, errors.WrapInvalid(err, "JSON", "EncodeQuery", "encode predicate")
	}
	w := wireQuery{
		Predicate:      pred,
		Count:          q.Count,
		Projections:    q.Projections,
		IncludeDeleted: q.IncludeDeleted,
	}
	if q.Ordering != nil {
		w.Ordering = &wireOrdering{
			Field:         q.Ordering.Field,
			ByOperationID: q.Ordering.ByOperationID,
			Ascending:     q.Ordering.Ascending,
		}
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, errors.WrapInvalid(err, "JSON", "EncodeQuery", "marshal query")
	}
	return data, nil
}

// DecodeMutationResult implements Codec
func (JSON) DecodeMutationResult(data []byte) (*request.MutationResult, error) {
	w, err := decodeResult(data)
	if err != nil {
		return nil, &errors.DecodeError{Op: "mutation result", Err: err}
	}
	entities, err := decodeEntities(w.Entities)
	if err != nil {
		return nil, &errors.DecodeError{Op: "mutation result", Err: err}
	}
	return &request.MutationResult{OperationID: w.OperationID, Entities: entities}, nil
}

// DecodeQueryResult implements Codec
func (JSON) DecodeQueryResult(data []byte) (*request.QueryResult, error) {
	w, err := decodeResult(data)
	if err != nil {
		return nil, &errors.DecodeError{Op: "query result", Err: err}
	}
	entities, err := decodeEntities(w.Entities)
	if err != nil {
		return nil, &errors.DecodeError{Op: "query result", Err: err}
	}
	return &request.QueryResult{OperationID: w.OperationID, Entities: entities}, nil
}

// DecodeMutation implements EngineCodec
func (JSON) DecodeMutation(data []byte) (request.MutationRequest, error) {
	var w wireMutationRequest
	if err := strictUnmarshal(data, &w); err != nil {
		return request.MutationRequest{}, &errors.DecodeError{Op: "mutation", Err: err}
	}
	req := request.MutationRequest{
		Mutations:      make([]request.EntityMutation, 0, len(w.Mutations)),
		ReturnEntities: w.ReturnEntities,
	}
	for _, m := range w.Mutations {
		p, err := decodePayload(m.Payload, "")
		if err != nil {
			return request.MutationRequest{}, &errors.DecodeError{Op: "mutation", Err: err}
		}
		req.Mutations = append(req.Mutations, request.EntityMutation{
			EntityID:  m.EntityID,
			NewEntity: m.NewEntity,
			Op:        m.Op,
			TraitID:   m.TraitID,
			Payload:   p,
			CreatedAt: m.CreatedAt,
		})
	}
	return req, nil
}

// DecodeQuery implements EngineCodec
func (JSON) DecodeQuery(data []byte) (request.EntityQuery, error) {
	var w wireQuery
	if err := strictUnmarshal(data, &w); err != nil {
		return request.EntityQuery{}, &errors.DecodeError{Op: "query", Err: err}
	}
	pred, err := decodePredicate(w.Predicate)
	if err != nil {
		return request.EntityQuery{}, &errors.DecodeError{Op: "query", Err: err}
	}
	q := request.EntityQuery{
		Predicate:      pred,
		Count:          w.Count,
		Projections:    w.Projections,
		IncludeDeleted: w.IncludeDeleted,
	}
	if w.Ordering != nil {
		q.Ordering = &request.Ordering{
			Field:         w.Ordering.Field,
			ByOperationID: w.Ordering.ByOperationID,
			Ascending:     w.Ordering.Ascending,
		}
	}
	return q, nil
}

// EncodeMutationResult implements EngineCodec
func (JSON) EncodeMutationResult(res *request.MutationResult) ([]byte, error) {
	if res == nil {
		res = &request.MutationResult{}
	}
	return encodeResult(res.OperationID, res.Entities)
}

// EncodeQueryResult implements EngineCodec
func (JSON) EncodeQueryResult(res *request.QueryResult) ([]byte, error) {
	if res == nil {
		res = &request.QueryResult{}
	}
	return encodeResult(res.OperationID, res.Entities)
}

func encodeResult(opID uint64, entities []graph.Entity) ([]byte, error) {
	w := wireResult{OperationID: opID, Entities: make([]wireEntity, 0, len(entities))}
	for _, e := range entities {
		we := wireEntity{ID: e.ID, Deleted: e.Deleted, Traits: make([]wireTrait, 0, len(e.Traits))}
		for _, t := range e.Traits {
			env, err := encodePayload(t.Payload)
			if err != nil {
				return nil, errors.WrapInvalid(err, "JSON", "EncodeResult", "encode payload")
			}
			we.Traits = append(we.Traits, wireTrait{
				ID:         t.ID,
				Type:       t.Type,
				Payload:    env,
				CreatedAt:  t.CreatedAt,
				ModifiedAt: t.ModifiedAt,
			})
		}
		w.Entities = append(w.Entities, we)
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, errors.WrapInvalid(err, "JSON", "EncodeResult", "marshal result")
	}
	return data, nil
}

func decodeResult(data []byte) (wireResult, error) {
	var w wireResult
	err := strictUnmarshal(data, &w)
	return w, err
}

// strictUnmarshal rejects empty input and anything that is not a JSON object
func strictUnmarshal(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.ErrInvalidData
	}
	if trimmed[0] != '{' {
		return fmt.Errorf("%w: expected JSON object", errors.ErrInvalidData)
	}
	return json.Unmarshal(trimmed, v)
}

func decodeEntities(in []wireEntity) ([]graph.Entity, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]graph.Entity, 0, len(in))
	for _, we := range in {
		e := graph.Entity{ID: we.ID, Deleted: we.Deleted, Traits: make([]graph.Trait, 0, len(we.Traits))}
		for _, wt := range we.Traits {
			p, err := decodePayload(wt.Payload, wt.Type)
			if err != nil {
				return nil, fmt.Errorf("trait %s: %w", wt.ID, err)
			}
			typ := wt.Type
			if typ == "" && p != nil {
				typ = p.TypeName()
			}
			e.Traits = append(e.Traits, graph.Trait{
				ID:         wt.ID,
				Type:       typ,
				Payload:    p,
				CreatedAt:  wt.CreatedAt,
				ModifiedAt: wt.ModifiedAt,
			})
		}
		out = append(out, e)
	}
	return out, nil
}

func encodePredicate(p request.Predicate) (*wirePredicate, error) {
	switch v := p.(type) {
	case nil:
		return nil, nil
	case request.IDs:
		return &wirePredicate{Kind: predicateIDs, IDs: v.IDs}, nil
	case request.TraitType:
		sub, err := encodePredicate(v.Sub)
		if err != nil {
			return nil, err
		}
		return &wirePredicate{Kind: predicateTraitType, Type: v.Type, Sub: sub}, nil
	case request.FullText:
		return &wirePredicate{Kind: predicateFullText, Query: v.Query}, nil
	case request.All:
		return &wirePredicate{Kind: predicateAll}, nil
	default:
		return nil, fmt.Errorf("%w: unknown predicate %T", errors.ErrInvalidData, p)
	}
}

func decodePredicate(w *wirePredicate) (request.Predicate, error) {
	if w == nil {
		return nil, nil
	}
	switch w.Kind {
	case predicateIDs:
		return request.IDs{IDs: w.IDs}, nil
	case predicateTraitType:
		sub, err := decodePredicate(w.Sub)
		if err != nil {
			return nil, err
		}
		return request.TraitType{Type: w.Type, Sub: sub}, nil
	case predicateFullText:
		return request.FullText{Query: w.Query}, nil
	case predicateAll:
		return request.All{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown predicate kind %q", errors.ErrInvalidData, w.Kind)
	}
}
