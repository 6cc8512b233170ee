package request

import (
	"github.com/google/uuid"
)

// Id namespaces used when a builder generates an id
const (
	EntityPrefix = "entity"
	TraitPrefix  = "trait"
)

// IDGenerator produces unique ids within a namespace prefix
type IDGenerator interface {
	Generate(prefix string) string
}

// IDGeneratorFunc adapts a function to IDGenerator
type IDGeneratorFunc func(prefix string) string

// Generate calls f(prefix)
func (f IDGeneratorFunc) Generate(prefix string) string {
	return f(prefix)
}

// UUIDGenerator generates "<prefix>_<uuid>" ids. Time-ordered v7 UUIDs are
// used so ids sort by creation time; v4 is the fallback if the clock source
// fails.
type UUIDGenerator struct{}

// Generate returns a new prefixed id. An empty prefix yields the bare UUID.
func (UUIDGenerator) Generate(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if prefix == "" {
		return id.String()
	}
	return prefix + "_" + id.String()
}
