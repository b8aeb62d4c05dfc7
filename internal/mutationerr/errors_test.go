package mutationerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("duplicate")
	tests := []struct {
		name     string
		err      error
		sentinel error
		code     string
	}{
		{"schema mismatch", NewSchemaMismatch("Movie", "released", "not a unique field"), ErrSchemaMismatch, CodeSchemaMismatch},
		{"invalid input", NewInvalidInput("Movie", "", "empty where"), ErrInvalidInput, CodeInvalidInput},
		{"ambiguous match", NewAmbiguousMatch("Movie", []string{"title"}, 2), ErrAmbiguousMatch, CodeAmbiguousMatch},
		{"constraint violation", NewConstraintViolation("Movie", "title", 2, cause), ErrConstraintViolation, CodeUniqueViolation},
		{"aborted", &AbortedError{Cause: cause}, ErrAborted, CodeAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("resolve: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.code, Code(wrapped))

			ext, ok := tt.err.(interface{ Extensions() map[string]interface{} })
			require.True(t, ok)
			assert.Equal(t, tt.code, ext.Extensions()["code"])
		})
	}
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsSchemaMismatch(NewSchemaMismatch("Movie", "x", "unknown field")))
	assert.True(t, IsInvalidInput(NewInvalidInput("Movie", "", "empty")))
	assert.True(t, IsAmbiguousMatch(NewAmbiguousMatch("Movie", []string{"title"}, 3)))
	assert.True(t, IsConstraintViolation(NewConstraintViolation("Movie", "title", 1, nil)))

	assert.False(t, IsSchemaMismatch(nil))
	assert.False(t, IsConstraintViolation(errors.New("other")))
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "internal_error", Code(errors.New("boom")))
}

func TestConstraintViolationUnwrap(t *testing.T) {
	cause := errors.New("driver said no")
	err := NewConstraintViolation("Movie", "title", 2, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "unique constraint violation on Movie.title after 2 attempts", err.Error())
	assert.Equal(t, 2, err.Extensions()["attempts"])
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "schema mismatch on Movie.released: not a unique field",
		NewSchemaMismatch("Movie", "released", "not a unique field").Error())
	assert.Equal(t, "schema mismatch on Ghost: unknown entity type",
		NewSchemaMismatch("Ghost", "", "unknown entity type").Error())
	assert.Equal(t, "invalid input for Movie: connect-or-create requires at least one match field",
		NewInvalidInput("Movie", "", "connect-or-create requires at least one match field").Error())
	assert.Equal(t, "ambiguous match on Movie (id, title): 2 entities matched, expected at most 1",
		NewAmbiguousMatch("Movie", []string{"id", "title"}, 2).Error())
}
