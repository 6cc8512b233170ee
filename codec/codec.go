// Package codec converts request and result values to and from the bytes
// carried by a transport.
//
// The Codec interface is the client half: it encodes requests and decodes
// results. EngineCodec adds the mirror image used by in-process engines and
// test servers. JSON is the only shipped format.
package codec

import (
	"github.com/c360/traitstore/graph/request"
)

// Codec is used by the subscription manager. Decode methods return an
// *errors.DecodeError for empty or malformed input.
type Codec interface {
	EncodeMutation(req request.MutationRequest) ([]byte, error)
	EncodeQuery(q request.EntityQuery) ([]byte, error)
	DecodeMutationResult(data []byte) (*request.MutationResult, error)
	DecodeQueryResult(data []byte) (*request.QueryResult, error)
}

// EngineCodec is implemented by codecs that can also serve the engine side
// of a transport
type EngineCodec interface {
	Codec
	DecodeMutation(data []byte) (request.MutationRequest, error)
	DecodeQuery(data []byte) (request.EntityQuery, error)
	EncodeMutationResult(res *request.MutationResult) ([]byte, error)
	EncodeQueryResult(res *request.QueryResult) ([]byte, error)
}
