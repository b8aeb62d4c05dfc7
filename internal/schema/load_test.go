package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphdb-graphql/internal/naming"
)

const movieSchema = `
types:
  - name: Movie
    fields:
      - {name: id, type: ID, autogenerate: true}
      - {name: title, type: String, unique: true}
      - {name: released, type: Int}
    relationships:
      - {field: actors, target: Actor, type: ACTED_IN, direction: IN}
      - {field: genres, target: Genre}
  - name: Actor
    fields:
      - {name: name, type: String, unique: true}
  - name: Genre
    fields:
      - {name: name, type: String, unique: true}
`

func TestParse_MovieSchema(t *testing.T) {
	model, err := Parse([]byte(movieSchema), naming.Default())
	require.NoError(t, err)

	movie, ok := model.Type("Movie")
	require.True(t, ok)
	assert.Equal(t, "id", movie.AutoIDField)
	assert.Equal(t, []string{"id", "title"}, movie.UniqueFields)
	assert.True(t, movie.IsUniqueField("id"))
	assert.True(t, movie.IsUniqueField("title"))
	assert.False(t, movie.IsUniqueField("released"))
	assert.False(t, movie.IsUniqueField("missing"))

	id, ok := movie.Field("id")
	require.True(t, ok)
	assert.True(t, id.IsAutoGenerated)
	assert.True(t, id.IsUnique, "auto-generated fields default to unique")
	assert.Equal(t, ValueID, id.ValueType)

	fields := movie.OrderedFields()
	require.Len(t, fields, 3)
	assert.Equal(t, "released", fields[2].Name)

	actors, ok := movie.Relationship("actors")
	require.True(t, ok)
	assert.Equal(t, "Actor", actors.TargetType)
	assert.Equal(t, "ACTED_IN", actors.RelType)
	assert.Equal(t, DirectionIn, actors.Direction)

	genres, ok := movie.Relationship("genres")
	require.True(t, ok)
	assert.Equal(t, "HAS_GENRE", genres.RelType)
	assert.Equal(t, DirectionOut, genres.Direction)

	rels := movie.OrderedRelationships()
	require.Len(t, rels, 2)
	assert.Equal(t, "actors", rels[0].FieldName)

	assert.Equal(t, []string{"Actor", "Genre", "Movie"}, model.TypeNames())
	require.Len(t, model.Types(), 3)
	assert.Equal(t, "Movie", model.Types()[0].Name)

	_, ok = model.Type("Missing")
	assert.False(t, ok)
}

func TestParse_SelfReferencingRelationship(t *testing.T) {
	model, err := Parse([]byte(`
types:
  - name: Person
    fields:
      - {name: email, type: String, unique: true}
    relationships:
      - {field: friends, target: Person, type: FRIEND_OF}
`), nil)
	require.NoError(t, err)

	person, _ := model.Type("Person")
	rel, ok := person.Relationship("friends")
	require.True(t, ok)
	assert.Equal(t, "Person", rel.TargetType)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		errPart string
	}{
		{
			name:    "no types",
			yaml:    "types: []",
			errPart: "no entity types",
		},
		{
			name: "auto-generated but explicitly not unique",
			yaml: `
types:
  - name: Movie
    fields:
      - {name: id, type: ID, autogenerate: true, unique: false}`,
			errPart: "auto-generated fields must be unique",
		},
		{
			name: "two auto-generated fields",
			yaml: `
types:
  - name: Movie
    fields:
      - {name: id, type: ID, autogenerate: true}
      - {name: uuid, type: ID, autogenerate: true}`,
			errPart: "only one auto-generated field",
		},
		{
			name: "auto-generated int",
			yaml: `
types:
  - name: Movie
    fields:
      - {name: id, type: Int, autogenerate: true}`,
			errPart: "must be of type ID or String",
		},
		{
			name: "unknown value type",
			yaml: `
types:
  - name: Movie
    fields:
      - {name: title, type: Text}`,
			errPart: `unsupported type "Text"`,
		},
		{
			name: "duplicate field",
			yaml: `
types:
  - name: Movie
    fields:
      - {name: title, type: String}
      - {name: title, type: String}`,
			errPart: "declared more than once",
		},
		{
			name: "duplicate type",
			yaml: `
types:
  - name: Movie
    fields: [{name: title, type: String}]
  - name: Movie
    fields: [{name: title, type: String}]`,
			errPart: `entity type "Movie" declared more than once`,
		},
		{
			name: "reserved type",
			yaml: `
types:
  - name: Query
    fields: [{name: title, type: String}]`,
			errPart: "reserved",
		},
		{
			name: "lowercase type",
			yaml: `
types:
  - name: movie
    fields: [{name: title, type: String}]`,
			errPart: "must be PascalCase",
		},
		{
			name: "unknown target",
			yaml: `
types:
  - name: Movie
    fields: [{name: title, type: String, unique: true}]
    relationships:
      - {field: actors, target: Actor}`,
			errPart: `unknown target type "Actor"`,
		},
		{
			name: "relationship collides with field",
			yaml: `
types:
  - name: Movie
    fields: [{name: title, type: String, unique: true}]
    relationships:
      - {field: title, target: Movie}`,
			errPart: "collides with a scalar field",
		},
		{
			name: "bad direction",
			yaml: `
types:
  - name: Movie
    fields: [{name: title, type: String, unique: true}]
    relationships:
      - {field: sequels, target: Movie, direction: BOTH}`,
			errPart: "direction must be OUT or IN",
		},
		{
			name: "unknown key",
			yaml: `
types:
  - name: Movie
    primary: title
    fields: [{name: title, type: String}]`,
			errPart: "field primary not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), naming.Default())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(movieSchema), 0o600))

	model, err := LoadFile(path, naming.Default())
	require.NoError(t, err)
	_, ok := model.Type("Genre")
	assert.True(t, ok)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read schema file")
}

func TestValueTypeValid(t *testing.T) {
	for _, vt := range []ValueType{ValueString, ValueInt, ValueFloat, ValueBoolean, ValueID} {
		assert.True(t, vt.Valid(), string(vt))
	}
	assert.False(t, ValueType("Date").Valid())
}
