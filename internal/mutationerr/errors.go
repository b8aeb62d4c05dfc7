// Package mutationerr defines the errors a connect-or-create mutation can
// surface to its caller. Each error carries the entity type and field names
// involved and a stable code exposed through GraphQL error extensions.
package mutationerr

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes reported under extensions.code.
const (
	CodeSchemaMismatch  = "schema_mismatch"
	CodeInvalidInput    = "invalid_input"
	CodeAmbiguousMatch  = "ambiguous_match"
	CodeUniqueViolation = "unique_violation"
	CodeAborted         = "mutation_aborted"
)

// Sentinel errors for errors.Is matching.
var (
	// ErrSchemaMismatch is returned when an input names a field, relationship
	// or entity type the model does not declare, or uses a non-unique field
	// as a match key.
	ErrSchemaMismatch = errors.New("mutation: schema mismatch")

	// ErrInvalidInput is returned for structurally invalid input such as an
	// empty where clause.
	ErrInvalidInput = errors.New("mutation: invalid input")

	// ErrAmbiguousMatch is returned when a where clause matches more than one
	// entity.
	ErrAmbiguousMatch = errors.New("mutation: ambiguous match")

	// ErrConstraintViolation is returned when a create keeps colliding with a
	// unique constraint after the re-match retry.
	ErrConstraintViolation = errors.New("mutation: unique constraint violation")

	// ErrAborted is returned for mutation fields that run after an earlier
	// field in the same request already failed.
	ErrAborted = errors.New("mutation: aborted after earlier failure")
)

// SchemaMismatchError reports input that does not fit the constraint model.
type SchemaMismatchError struct {
	EntityType string
	Field      string
	Reason     string
}

func (e *SchemaMismatchError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema mismatch on %s: %s", e.EntityType, e.Reason)
	}
	return fmt.Sprintf("schema mismatch on %s.%s: %s", e.EntityType, e.Field, e.Reason)
}

// Is allows errors.Is(err, ErrSchemaMismatch).
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// Extensions implements graphql-go's extended error interface.
func (e *SchemaMismatchError) Extensions() map[string]interface{} {
	return extensions(CodeSchemaMismatch, e.EntityType, e.Field)
}

// NewSchemaMismatch returns a SchemaMismatchError.
func NewSchemaMismatch(entityType, field, reason string) *SchemaMismatchError {
	return &SchemaMismatchError{EntityType: entityType, Field: field, Reason: reason}
}

// InvalidInputError reports a structurally invalid mutation input.
type InvalidInputError struct {
	EntityType string
	Field      string
	Reason     string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input for %s: %s", e.EntityType, e.Reason)
	}
	return fmt.Sprintf("invalid input for %s.%s: %s", e.EntityType, e.Field, e.Reason)
}

// Is allows errors.Is(err, ErrInvalidInput).
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Extensions implements graphql-go's extended error interface.
func (e *InvalidInputError) Extensions() map[string]interface{} {
	return extensions(CodeInvalidInput, e.EntityType, e.Field)
}

// NewInvalidInput returns an InvalidInputError.
func NewInvalidInput(entityType, field, reason string) *InvalidInputError {
	return &InvalidInputError{EntityType: entityType, Field: field, Reason: reason}
}

// AmbiguousMatchError reports a where clause that matched several entities.
type AmbiguousMatchError struct {
	EntityType string
	Fields     []string
	Count      int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous match on %s (%s): %d entities matched, expected at most 1",
		e.EntityType, strings.Join(e.Fields, ", "), e.Count)
}

// Is allows errors.Is(err, ErrAmbiguousMatch).
func (e *AmbiguousMatchError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}

// Extensions implements graphql-go's extended error interface.
func (e *AmbiguousMatchError) Extensions() map[string]interface{} {
	ext := extensions(CodeAmbiguousMatch, e.EntityType, "")
	ext["fields"] = append([]string(nil), e.Fields...)
	ext["count"] = e.Count
	return ext
}

// NewAmbiguousMatch returns an AmbiguousMatchError.
func NewAmbiguousMatch(entityType string, fields []string, count int) *AmbiguousMatchError {
	return &AmbiguousMatchError{EntityType: entityType, Fields: fields, Count: count}
}

// ConstraintViolationError reports a create that lost a uniqueness race and
// could not be resolved by re-matching.
type ConstraintViolationError struct {
	EntityType string
	Field      string
	Attempts   int
	Err        error
}

func (e *ConstraintViolationError) Error() string {
	target := e.EntityType
	if e.Field != "" {
		target += "." + e.Field
	}
	if e.Attempts > 1 {
		return fmt.Sprintf("unique constraint violation on %s after %d attempts", target, e.Attempts)
	}
	return fmt.Sprintf("unique constraint violation on %s", target)
}

// Is allows errors.Is(err, ErrConstraintViolation).
func (e *ConstraintViolationError) Is(target error) bool {
	return target == ErrConstraintViolation
}

func (e *ConstraintViolationError) Unwrap() error {
	return e.Err
}

// Extensions implements graphql-go's extended error interface.
func (e *ConstraintViolationError) Extensions() map[string]interface{} {
	ext := extensions(CodeUniqueViolation, e.EntityType, e.Field)
	ext["attempts"] = e.Attempts
	return ext
}

// NewConstraintViolation returns a ConstraintViolationError.
func NewConstraintViolation(entityType, field string, attempts int, cause error) *ConstraintViolationError {
	return &ConstraintViolationError{EntityType: entityType, Field: field, Attempts: attempts, Err: cause}
}

// AbortedError is returned by mutation fields skipped because the request's
// transaction already failed.
type AbortedError struct {
	Cause error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("mutation aborted: an earlier mutation in this request failed: %v", e.Cause)
}

// Is allows errors.Is(err, ErrAborted).
func (e *AbortedError) Is(target error) bool {
	return target == ErrAborted
}

// Extensions implements graphql-go's extended error interface.
func (e *AbortedError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": CodeAborted}
}

// IsSchemaMismatch reports whether err is a SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	return err != nil && errors.Is(err, ErrSchemaMismatch)
}

// IsInvalidInput reports whether err is an InvalidInputError.
func IsInvalidInput(err error) bool {
	return err != nil && errors.Is(err, ErrInvalidInput)
}

// IsAmbiguousMatch reports whether err is an AmbiguousMatchError.
func IsAmbiguousMatch(err error) bool {
	return err != nil && errors.Is(err, ErrAmbiguousMatch)
}

// IsConstraintViolation reports whether err is a ConstraintViolationError.
func IsConstraintViolation(err error) bool {
	return err != nil && errors.Is(err, ErrConstraintViolation)
}

// Code returns the extensions code for err, or "internal_error" when err is
// not one of the mutation errors.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case IsSchemaMismatch(err):
		return CodeSchemaMismatch
	case IsInvalidInput(err):
		return CodeInvalidInput
	case IsAmbiguousMatch(err):
		return CodeAmbiguousMatch
	case IsConstraintViolation(err):
		return CodeUniqueViolation
	case errors.Is(err, ErrAborted):
		return CodeAborted
	default:
		return "internal_error"
	}
}

func extensions(code, entityType, field string) map[string]interface{} {
	ext := map[string]interface{}{"code": code}
	if entityType != "" {
		ext["entityType"] = entityType
	}
	if field != "" {
		ext["field"] = field
	}
	return ext
}
