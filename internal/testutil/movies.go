// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"graphdb-graphql/internal/naming"
	"graphdb-graphql/internal/schema"
)

// MovieSchemaYAML is a small movie graph: movies with auto-generated ids and
// unique titles, actors linked by ACTED_IN edges, and genres keyed by name
// only.
const MovieSchemaYAML = `
types:
  - name: Movie
    fields:
      - {name: id, type: ID, autogenerate: true}
      - {name: title, type: String, unique: true}
      - {name: released, type: Int}
      - {name: tagline, type: String}
    relationships:
      - {field: actors, target: Actor, type: ACTED_IN, direction: IN}
      - {field: genres, target: Genre}
  - name: Actor
    fields:
      - {name: id, type: ID, autogenerate: true}
      - {name: name, type: String, unique: true}
      - {name: born, type: Int}
    relationships:
      - {field: movies, target: Movie, type: ACTED_IN}
  - name: Genre
    fields:
      - {name: name, type: String, unique: true}
      - {name: rating, type: Float}
`

// MovieModel parses MovieSchemaYAML.
func MovieModel(t testing.TB) *schema.Model {
	t.Helper()
	model, err := schema.Parse([]byte(MovieSchemaYAML), naming.Default())
	require.NoError(t, err)
	return model
}

// EntityType returns a type from model or fails the test.
func EntityType(t testing.TB, model *schema.Model, name string) *schema.EntityType {
	t.Helper()
	et, ok := model.Type(name)
	require.True(t, ok, "entity type %s", name)
	return et
}
