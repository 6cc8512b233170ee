package codec

import (
	"encoding/json"
	"fmt"

	"github.com/c360/traitstore/graph"
)

// payloadEnvelope is the wire form of a graph.Payload
type payloadEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type payloadDecoder func(json.RawMessage) (graph.Payload, error)

func decodeInto[T graph.Payload](data json.RawMessage) (graph.Payload, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var payloadDecoders = map[string]payloadDecoder{
	graph.TypeNote:       decodeInto[graph.Note],
	graph.TypeTask:       decodeInto[graph.Task],
	graph.TypeContact:    decodeInto[graph.Contact],
	graph.TypeCollection: decodeInto[graph.Collection],
	graph.TypeLink:       decodeInto[graph.Link],
	graph.TypeFile:       decodeInto[graph.File],
}

func encodePayload(p graph.Payload) (*payloadEnvelope, error) {
	if p == nil {
		return nil, nil
	}
	if o, ok := p.(graph.Opaque); ok {
		return &payloadEnvelope{Type: o.Type, Data: o.Data}, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.TypeName(), err)
	}
	return &payloadEnvelope{Type: p.TypeName(), Data: data}, nil
}

// decodePayload resolves an envelope to a known payload kind. Unknown type
// names are kept as graph.Opaque with their data untouched.
func decodePayload(env *payloadEnvelope, fallbackType string) (graph.Payload, error) {
	if env == nil {
		if fallbackType == "" {
			return nil, nil
		}
		return graph.Opaque{Type: fallbackType}, nil
	}
	if env.Type == "" {
		return nil, graph.ErrEmptyTypeName
	}
	dec, ok := payloadDecoders[env.Type]
	if !ok {
		return graph.Opaque{Type: env.Type, Data: env.Data}, nil
	}
	p, err := dec(env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return p, nil
}

// DecodePayload builds a payload of the named type from its JSON data, the
// way payload envelopes are decoded. Unknown types become graph.Opaque.
func DecodePayload(typeName string, data []byte) (graph.Payload, error) {
	if len(data) > 0 && !json.Valid(data) {
		return nil, fmt.Errorf("decode %s payload: invalid JSON", typeName)
	}
	return decodePayload(&payloadEnvelope{Type: typeName, Data: data}, "")
}

// PayloadData returns the JSON data of p without its type envelope
func PayloadData(p graph.Payload) ([]byte, error) {
	env, err := encodePayload(p)
	if err != nil || env == nil {
		return nil, err
	}
	return env.Data, nil
}
