package codec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/traitstore/errors"
	"github.com/c360/traitstore/graph"
	"github.com/c360/traitstore/graph/request"
)

func TestJSON_MutationWireFormat(t *testing.T) {
	ts := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	req := request.NewMutationBuilder(request.WithClock(func() time.Time { return ts })).
		CreateEntityWithID("e1").
		PutTraitWithID("n1", graph.Note{Title: "groceries"}).
		DeleteTrait("old").
		ReturnEntities().
		Build()

	data, err := JSON{}.EncodeMutation(req)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"mutations": [
			{"entity_id":"e1","new_entity":true,"op":"put_trait","trait_id":"n1",
			 "payload":{"type":"note","data":{"title":"groceries"}},
			 "created_at":"2025-06-01T08:00:00Z"},
			{"entity_id":"e1","new_entity":true,"op":"delete_trait","trait_id":"old"}
		],
		"return_entities": true
	}`, string(data))

	back, err := JSON{}.DecodeMutation(data)
	require.NoError(t, err)
	assert.Equal(t, req, back)
}

func TestJSON_QueryWireFormat(t *testing.T) {
	q := request.NewQueryBuilder().
		WithTraitWhere(graph.TypeTask, request.IDs{IDs: []string{"a"}}).
		Count(10).
		OrderByOperationIDs(false).
		Project("title").
		Build()

	data, err := JSON{}.EncodeQuery(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"predicate":{"kind":"trait_type","type":"task","sub":{"kind":"ids","ids":["a"]}},
		"count":10,
		"ordering":{"by_operation_id":true,"ascending":false},
		"projections":["title"]
	}`, string(data))

	back, err := JSON{}.DecodeQuery(data)
	require.NoError(t, err)
	assert.Equal(t, q, back)
}

func TestJSON_DecodeQueryResult(t *testing.T) {
	data := []byte(`{
		"operation_id": 42,
		"entities": [{
			"id": "e1",
			"traits": [
				{"id":"n1","type":"note","payload":{"type":"note","data":{"title":"hello"}}},
				{"id":"w1","type":"vendor.widget","payload":{"type":"vendor.widget","data":{"size":3}}},
				{"id":"b1","type":"bare"}
			]
		}]
	}`)

	res, err := JSON{}.DecodeQueryResult(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.OperationID)
	require.Len(t, res.Entities, 1)

	traits := res.Entities[0].Traits
	require.Len(t, traits, 3)
	assert.Equal(t, graph.Note{Title: "hello"}, traits[0].Payload)

	opaque, ok := traits[1].Payload.(graph.Opaque)
	require.True(t, ok)
	assert.Equal(t, "vendor.widget", opaque.Type)
	assert.JSONEq(t, `{"size":3}`, string(opaque.Data))

	assert.Equal(t, graph.Opaque{Type: "bare"}, traits[2].Payload)
}

func TestJSON_ResultRoundTripKeepsOpaqueData(t *testing.T) {
	created := time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC)
	in := &request.MutationResult{
		OperationID: 9,
		Entities: []graph.Entity{{
			ID: "e1",
			Traits: []graph.Trait{
				{ID: "c1", Type: graph.TypeContact, Payload: graph.Contact{Name: "Ada"}, CreatedAt: &created},
				{ID: "x1", Type: "x", Payload: graph.Opaque{Type: "x", Data: json.RawMessage(`{"k":"v"}`)}},
			},
		}},
	}

	data, err := JSON{}.EncodeMutationResult(in)
	require.NoError(t, err)

	out, err := JSON{}.DecodeMutationResult(data)
	require.NoError(t, err)
	assert.Equal(t, in.OperationID, out.OperationID)
	if diff := cmp.Diff(in.Entities, out.Entities, rawJSONEqual); diff != "" {
		t.Errorf("entities changed in round trip (-want +got):\n%s", diff)
	}
}

// rawJSONEqual compares raw messages by value, ignoring formatting
var rawJSONEqual = cmp.Comparer(func(a, b json.RawMessage) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return string(a) == string(b)
	}
	return cmp.Equal(va, vb)
})

func TestJSON_DecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"whitespace", []byte("  \n")},
		{"null", []byte("null")},
		{"array", []byte("[]")},
		{"truncated", []byte(`{"operation_id":`)},
		{"wrong field type", []byte(`{"operation_id":"seven"}`)},
		{"bad known payload", []byte(`{"entities":[{"id":"e","traits":[{"id":"t","type":"note","payload":{"type":"note","data":[1]}}]}]}`)},
		{"empty payload type", []byte(`{"entities":[{"id":"e","traits":[{"id":"t","type":"note","payload":{"type":""}}]}]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSON{}.DecodeQueryResult(tt.data)
			assert.True(t, errors.IsDecode(err), "expected decode error, got %v", err)

			_, err = JSON{}.DecodeMutationResult(tt.data)
			assert.True(t, errors.IsDecode(err), "expected decode error, got %v", err)
		})
	}
}

func TestJSON_EmptyResultObjectIsValid(t *testing.T) {
	res, err := JSON{}.DecodeQueryResult([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, res.Entities)
}

func TestJSON_UnknownPredicateKind(t *testing.T) {
	_, err := JSON{}.DecodeQuery([]byte(`{"predicate":{"kind":"fuzzy"}}`))
	assert.True(t, errors.IsDecode(err))
}
