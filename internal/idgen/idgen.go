// Package idgen supplies values for auto-generated identifier fields.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"graphdb-graphql/internal/schema"
)

// Generator produces a fresh value for an entity type's auto-generated
// field. Implementations must be safe for concurrent use.
type Generator interface {
	Generate(et *schema.EntityType) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(et *schema.EntityType) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(et *schema.EntityType) (string, error) {
	return f(et)
}

// UUIDGenerator returns random version 4 UUIDs in lower-case canonical form.
type UUIDGenerator struct{}

// Generate returns a new random UUID.
func (UUIDGenerator) Generate(*schema.EntityType) (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate identifier: %w", err)
	}
	return strings.ToLower(u.String()), nil
}

// Default returns the UUID generator.
func Default() Generator {
	return UUIDGenerator{}
}
