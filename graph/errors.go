// Package graph defines the entity and trait data model shared by request
// builders, the entity model, and codecs.
package graph

import "errors"

// Payload errors
var (
	// ErrEmptyTypeName indicates a trait or payload without a semantic type name
	ErrEmptyTypeName = errors.New("empty trait type name")

	// ErrPayloadMismatch indicates a payload whose type name disagrees with its trait
	ErrPayloadMismatch = errors.New("payload type does not match trait type")
)
