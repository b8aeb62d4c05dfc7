package graphdb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphdb-graphql/internal/predicate"
	"graphdb-graphql/internal/schema"
)

func TestConstraintViolationError(t *testing.T) {
	cause := errors.New("duplicate entry")
	err := fmt.Errorf("create: %w", &ConstraintViolationError{
		EntityType: "Movie",
		Field:      "title",
		Value:      "X",
		Err:        cause,
	})

	assert.True(t, IsConstraintViolation(err))
	assert.ErrorIs(t, err, cause)

	cv, ok := AsConstraintViolation(err)
	require.True(t, ok)
	assert.Equal(t, "title", cv.Field)
	assert.False(t, cv.TxAborted)
	assert.Equal(t, "graphdb: unique constraint violation on Movie.title (value X): duplicate entry", cv.Error())

	_, ok = AsConstraintViolation(errors.New("other"))
	assert.False(t, ok)
	assert.False(t, IsConstraintViolation(nil))
}

func TestUniqueValues(t *testing.T) {
	et := &schema.EntityType{Name: "Movie", UniqueFields: []string{"id", "title"}}

	got := UniqueValues(et, map[string]any{"title": "X", "released": 2004, "id": nil})
	assert.Equal(t, []predicate.Condition{{Field: "title", Value: "X"}}, got)

	assert.Empty(t, UniqueValues(et, map[string]any{"released": 2004}))
}

func TestCloneFields(t *testing.T) {
	src := map[string]any{"title": "X"}
	dst := CloneFields(src)
	dst["title"] = "Y"
	assert.Equal(t, "X", src["title"])
}
