// Package resolver implements connect-or-create resolution of nested
// mutation input trees: the per-occurrence state machine, the depth-first
// walker, transaction ownership for non-HTTP callers, and projection of the
// resolved tree onto the requested selection.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/idgen"
	"graphdb-graphql/internal/logging"
	"graphdb-graphql/internal/mutationerr"
	"graphdb-graphql/internal/observability"
	"graphdb-graphql/internal/predicate"
	"graphdb-graphql/internal/schema"
)

// State is a step of the connect-or-create state machine.
type State string

const (
	StateStart     State = "START"
	StateMatching  State = "MATCHING"
	StateFound     State = "FOUND"
	StateNotFound  State = "NOT_FOUND"
	StateCreating  State = "CREATING"
	StateCreated   State = "CREATED"
	StateConnected State = "CONNECTED"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

// DefaultMaxRetries is the number of re-match attempts after a create loses
// a uniqueness race.
const DefaultMaxRetries = 1

// Resolver resolves single connect-or-create occurrences inside a caller
// supplied transaction.
type Resolver struct {
	model      *schema.Model
	ids        idgen.Generator
	metrics    *observability.MutationMetrics
	maxRetries int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(g idgen.Generator) Option {
	return func(r *Resolver) {
		if g != nil {
			r.ids = g
		}
	}
}

// WithMetrics enables connect-or-create metrics.
func WithMetrics(m *observability.MutationMetrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithMaxRetries sets the re-match retry bound. Values outside [0, 1] are
// clamped.
func WithMaxRetries(n int) Option {
	return func(r *Resolver) {
		switch {
		case n < 0:
			r.maxRetries = 0
		case n > DefaultMaxRetries:
			r.maxRetries = DefaultMaxRetries
		default:
			r.maxRetries = n
		}
	}
}

// New creates a Resolver over model.
func New(model *schema.Model, opts ...Option) *Resolver {
	r := &Resolver{
		model:      model,
		ids:        idgen.Default(),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Model returns the constraint model the resolver validates against.
func (r *Resolver) Model() *schema.Model {
	return r.model
}

// occurrence tracks one pass through the state machine.
type occurrence struct {
	entityType string
	state      State
	span       trace.Span
	logger     *logging.Logger
}

func (o *occurrence) transition(next State) {
	o.state = next
	o.span.AddEvent(string(next))
	o.logger.Debug("connect-or-create state",
		slog.String("entity_type", o.entityType),
		slog.String("state", string(next)),
	)
}

// Resolve finds or creates the entity for node and, when parent is set,
// links parent to it through node's relationship. It returns the entity and
// whether it was created. Children of node are not visited.
func (r *Resolver) Resolve(ctx context.Context, tx graphdb.Tx, parent *graphdb.Entity, node *MutationInputNode) (ent graphdb.Entity, created bool, err error) {
	et, ok := r.model.Type(node.EntityType)
	if !ok {
		return graphdb.Entity{}, false, mutationerr.NewSchemaMismatch(node.EntityType, "", "unknown entity type")
	}
	var rel *schema.RelationshipSpec
	if parent != nil {
		if rel, err = r.relationshipFor(parent.Type, node); err != nil {
			return graphdb.Entity{}, false, err
		}
	}

	ctx, span := startOccurrenceSpan(ctx, et, node.Mode, rel)
	start := time.Now()
	occ := &occurrence{entityType: et.Name, span: span, logger: logging.FromContext(ctx)}
	occ.transition(StateStart)

	defer func() {
		outcome := observability.OutcomeConnected
		switch {
		case err != nil:
			outcome = observability.OutcomeFailed
			occ.transition(StateFailed)
		case created:
			outcome = observability.OutcomeCreated
		}
		endOccurrenceSpan(span, outcome, err)
		r.metrics.RecordOccurrence(ctx, et.Name, outcome, time.Since(start))
	}()

	if node.Mode == ModeCreate {
		ent, err = r.createOnly(ctx, tx, et, node, occ)
		created = err == nil
	} else {
		ent, created, err = r.matchOrCreate(ctx, tx, et, node, occ)
	}
	if err != nil {
		return graphdb.Entity{}, false, err
	}

	if rel != nil {
		if err = tx.CreateRelationship(ctx, *parent, ent, rel.RelType, rel.Direction); err != nil {
			return graphdb.Entity{}, false, fmt.Errorf("link %s.%s: %w", parent.Type, rel.FieldName, err)
		}
		occ.transition(StateConnected)
	}
	occ.transition(StateDone)
	return ent, created, nil
}

// matchOrCreate runs MATCHING -> FOUND | NOT_FOUND -> CREATING -> CREATED,
// re-matching once when the create collides with a unique constraint.
func (r *Resolver) matchOrCreate(ctx context.Context, tx graphdb.Tx, et *schema.EntityType, node *MutationInputNode, occ *occurrence) (graphdb.Entity, bool, error) {
	pred, err := predicate.Build(et, node.Where)
	if err != nil {
		return graphdb.Entity{}, false, err
	}

	var violation *graphdb.ConstraintViolationError
	attempts := 0
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		occ.transition(StateMatching)
		matches, err := tx.FindMatching(ctx, et, pred)
		if err != nil {
			return graphdb.Entity{}, false, fmt.Errorf("match %s: %w", pred, err)
		}
		switch {
		case len(matches) == 1:
			occ.transition(StateFound)
			return matches[0], false, nil
		case len(matches) > 1:
			return graphdb.Entity{}, false, mutationerr.NewAmbiguousMatch(et.Name, pred.Fields(), len(matches))
		}

		occ.transition(StateNotFound)
		occ.transition(StateCreating)
		attempts++
		ent, err := r.create(ctx, tx, et, node)
		if err == nil {
			occ.transition(StateCreated)
			return ent, true, nil
		}
		cv, ok := graphdb.AsConstraintViolation(err)
		if !ok {
			return graphdb.Entity{}, false, err
		}
		violation = cv
		if cv.TxAborted {
			break
		}
		if attempt < r.maxRetries {
			occ.logger.Warn("unique constraint violation on create, re-matching",
				slog.String("entity_type", et.Name),
				slog.String("field", cv.Field),
				slog.String("predicate", pred.String()),
			)
			occ.span.AddEvent("retry", trace.WithAttributes(attribute.String("graphdb.field", cv.Field)))
			r.metrics.RecordRetry(ctx, et.Name)
		}
	}
	return graphdb.Entity{}, false, mutationerr.NewConstraintViolation(et.Name, violation.Field, attempts, violation)
}

func (r *Resolver) createOnly(ctx context.Context, tx graphdb.Tx, et *schema.EntityType, node *MutationInputNode, occ *occurrence) (graphdb.Entity, error) {
	occ.transition(StateCreating)
	ent, err := r.create(ctx, tx, et, node)
	if err != nil {
		if cv, ok := graphdb.AsConstraintViolation(err); ok {
			return graphdb.Entity{}, mutationerr.NewConstraintViolation(et.Name, cv.Field, 1, cv)
		}
		return graphdb.Entity{}, err
	}
	occ.transition(StateCreated)
	return ent, nil
}

func (r *Resolver) create(ctx context.Context, tx graphdb.Tx, et *schema.EntityType, node *MutationInputNode) (graphdb.Entity, error) {
	fields, err := r.createFields(et, node)
	if err != nil {
		return graphdb.Entity{}, err
	}
	ent, err := tx.CreateEntity(ctx, et, fields)
	if err != nil {
		if graphdb.IsConstraintViolation(err) {
			return graphdb.Entity{}, err
		}
		return graphdb.Entity{}, fmt.Errorf("create %s: %w", et.Name, err)
	}
	return ent, nil
}

// createFields merges onCreate with where, where winning on shared keys, and
// fills the auto-generated field when neither supplies it.
func (r *Resolver) createFields(et *schema.EntityType, node *MutationInputNode) (map[string]any, error) {
	fields := make(map[string]any, len(node.OnCreate)+len(node.Where)+1)
	for k, v := range node.OnCreate {
		if v != nil {
			fields[k] = v
		}
	}
	for k, v := range node.Where {
		fields[k] = v
	}
	if et.AutoIDField != "" {
		if v, ok := fields[et.AutoIDField]; !ok || v == nil {
			id, err := r.ids.Generate(et)
			if err != nil {
				return nil, fmt.Errorf("generate %s.%s: %w", et.Name, et.AutoIDField, err)
			}
			fields[et.AutoIDField] = id
		}
	}
	return fields, nil
}

func (r *Resolver) relationshipFor(parentType string, node *MutationInputNode) (*schema.RelationshipSpec, error) {
	pt, ok := r.model.Type(parentType)
	if !ok {
		return nil, mutationerr.NewSchemaMismatch(parentType, "", "unknown entity type")
	}
	if node.Relationship == "" {
		return nil, mutationerr.NewSchemaMismatch(parentType, "", fmt.Sprintf("nested %s occurrence names no relationship", node.EntityType))
	}
	rel, ok := pt.Relationship(node.Relationship)
	if !ok {
		return nil, mutationerr.NewSchemaMismatch(parentType, node.Relationship, "unknown relationship")
	}
	if rel.TargetType != node.EntityType {
		return nil, mutationerr.NewSchemaMismatch(parentType, node.Relationship,
			fmt.Sprintf("relationship targets %s, not %s", rel.TargetType, node.EntityType))
	}
	return rel, nil
}

// Validate checks a whole input tree against the model without touching
// the database.
func (r *Resolver) Validate(node *MutationInputNode) error {
	return r.validate(nil, node)
}

func (r *Resolver) validate(parent *schema.EntityType, node *MutationInputNode) error {
	if node == nil {
		return mutationerr.NewInvalidInput("", "", "missing mutation input")
	}
	et, ok := r.model.Type(node.EntityType)
	if !ok {
		return mutationerr.NewSchemaMismatch(node.EntityType, "", "unknown entity type")
	}
	if parent == nil && node.Relationship != "" {
		return mutationerr.NewInvalidInput(et.Name, node.Relationship, "root occurrence cannot name a relationship")
	}
	if parent != nil {
		if _, err := r.relationshipFor(parent.Name, node); err != nil {
			return err
		}
	}

	switch node.Mode {
	case ModeCreate:
		if len(node.Where) > 0 {
			return mutationerr.NewInvalidInput(et.Name, "", "create does not take a where clause")
		}
	case ModeConnectOrCreate:
		if _, err := predicate.Build(et, node.Where); err != nil {
			return err
		}
	default:
		return mutationerr.NewInvalidInput(et.Name, "", fmt.Sprintf("unknown mode %d", node.Mode))
	}

	keys := make([]string, 0, len(node.OnCreate))
	for k := range node.OnCreate {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := et.Field(k); !ok {
			return mutationerr.NewSchemaMismatch(et.Name, k, "unknown field")
		}
	}

	for _, child := range node.Children {
		if err := r.validate(et, child); err != nil {
			return err
		}
	}
	return nil
}
