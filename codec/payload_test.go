package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/traitstore/graph"
)

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload(graph.TypeTask, []byte(`{"title":"ship"}`))
	require.NoError(t, err)
	assert.Equal(t, graph.Task{Title: "ship"}, p)

	p, err = DecodePayload("x.custom", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, graph.Opaque{Type: "x.custom", Data: []byte(`{"a":1}`)}, p)

	_, err = DecodePayload(graph.TypeNote, []byte(`{"title":`))
	assert.Error(t, err)

	_, err = DecodePayload("", nil)
	assert.ErrorIs(t, err, graph.ErrEmptyTypeName)
}

func TestPayloadData(t *testing.T) {
	data, err := PayloadData(graph.Note{Title: "n"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"n"}`, string(data))

	data, err = PayloadData(nil)
	require.NoError(t, err)
	assert.Nil(t, data)
}
