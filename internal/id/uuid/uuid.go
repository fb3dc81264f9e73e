// Package uuid generates request ids.
package uuid

import (
	"github.com/google/uuid"
)

// Generator creates time-ordered UUIDv7 strings so request ids sort with
// log timestamps.
type Generator struct{}

// New creates a new Generator.
func New() Generator {
	return Generator{}
}

// NewID returns a UUIDv7 string, falling back to a random UUIDv4 if the
// clock sequence cannot be read.
func (Generator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
