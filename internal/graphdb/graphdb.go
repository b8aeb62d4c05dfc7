// Package graphdb is the boundary between the mutation engine and the
// property-graph database. The engine needs three operations inside a
// transaction: find the entities matching a predicate, create an entity and
// create a relationship. Backends live in subpackages.
package graphdb

import (
	"context"
	"errors"
	"fmt"

	"graphdb-graphql/internal/predicate"
	"graphdb-graphql/internal/schema"
)

// Entity is a node reference together with the properties read or written
// with it. ID is the backend's own node identity, not a schema field.
type Entity struct {
	ID     string
	Type   string
	Fields map[string]any
}

// Store opens transactions against a graph backend.
type Store interface {
	// BeginTx starts a read-write transaction.
	BeginTx(ctx context.Context) (Tx, error)
	// EnsureConstraints creates the uniqueness constraints the model
	// declares, if the backend needs them created explicitly.
	EnsureConstraints(ctx context.Context, model *schema.Model) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Tx is a single graph transaction. It is not safe for concurrent use.
//
// Reads observe committed data plus the transaction's own pending writes.
type Tx interface {
	FindMatching(ctx context.Context, et *schema.EntityType, pred predicate.Predicate) ([]Entity, error)
	// CreateEntity creates a node labelled et.Name. A unique-field collision
	// is reported as *ConstraintViolationError.
	CreateEntity(ctx context.Context, et *schema.EntityType, fields map[string]any) (Entity, error)
	// CreateRelationship creates an edge of relType. DirectionOut points
	// from -> to, DirectionIn points to -> from. It is a no-op when the same
	// edge already exists.
	CreateRelationship(ctx context.Context, from, to Entity, relType string, dir schema.Direction) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

var (
	// ErrConstraintViolation matches every *ConstraintViolationError.
	ErrConstraintViolation = errors.New("graphdb: unique constraint violation")

	// ErrTxDone is returned when a committed or rolled back transaction is used.
	ErrTxDone = errors.New("graphdb: transaction already committed or rolled back")

	// ErrEntityNotFound is returned when a relationship endpoint does not exist.
	ErrEntityNotFound = errors.New("graphdb: entity not found")
)

// ConstraintViolationError reports a unique value already taken, by a
// committed entity or by another live transaction.
type ConstraintViolationError struct {
	EntityType string
	Field      string
	Value      any
	// TxAborted is set when the backend terminated the transaction as part
	// of the failure, so no further statement may run in it.
	TxAborted bool
	Err       error
}

func (e *ConstraintViolationError) Error() string {
	msg := fmt.Sprintf("graphdb: unique constraint violation on %s", e.EntityType)
	if e.Field != "" {
		msg += "." + e.Field
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value %v)", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is allows errors.Is(err, ErrConstraintViolation).
func (e *ConstraintViolationError) Is(target error) bool {
	return target == ErrConstraintViolation
}

func (e *ConstraintViolationError) Unwrap() error {
	return e.Err
}

// AsConstraintViolation extracts a *ConstraintViolationError from err.
func AsConstraintViolation(err error) (*ConstraintViolationError, bool) {
	var cv *ConstraintViolationError
	if errors.As(err, &cv) {
		return cv, true
	}
	return nil, false
}

// IsConstraintViolation reports whether err is a unique constraint violation.
func IsConstraintViolation(err error) bool {
	return err != nil && errors.Is(err, ErrConstraintViolation)
}

// UniqueValues returns the unique fields of et present in fields with a
// non-nil value, in the type's unique field order.
func UniqueValues(et *schema.EntityType, fields map[string]any) []predicate.Condition {
	var out []predicate.Condition
	for _, name := range et.UniqueFields {
		v, ok := fields[name]
		if !ok || v == nil {
			continue
		}
		out = append(out, predicate.Condition{Field: name, Value: v})
	}
	return out
}

// CloneFields returns a shallow copy of fields.
func CloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
