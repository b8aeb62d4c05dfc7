package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/logging"
	"graphdb-graphql/internal/mutationerr"
	"graphdb-graphql/internal/observability"
)

// Walker resolves nested input trees depth-first, children in insertion
// order, stopping at the first error. It never commits or rolls back; the
// transaction belongs to the caller.
type Walker struct {
	resolver *Resolver
}

// NewWalker creates a Walker over r.
func NewWalker(r *Resolver) *Walker {
	return &Walker{resolver: r}
}

// Resolver returns the underlying resolver.
func (w *Walker) Resolver() *Resolver {
	return w.resolver
}

// Resolve validates root and resolves its whole tree in tx.
func (w *Walker) Resolve(ctx context.Context, tx graphdb.Tx, root *MutationInputNode) (*ResolvedEntity, error) {
	if err := w.resolver.Validate(root); err != nil {
		return nil, err
	}
	return w.walk(ctx, tx, nil, root)
}

// ResolveAll validates every root before any write, then resolves them in
// order within tx.
func (w *Walker) ResolveAll(ctx context.Context, tx graphdb.Tx, roots []*MutationInputNode) ([]*ResolvedEntity, error) {
	for _, root := range roots {
		if err := w.resolver.Validate(root); err != nil {
			return nil, err
		}
	}
	out := make([]*ResolvedEntity, 0, len(roots))
	for _, root := range roots {
		resolved, err := w.walk(ctx, tx, nil, root)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

func (w *Walker) walk(ctx context.Context, tx graphdb.Tx, parent *graphdb.Entity, node *MutationInputNode) (*ResolvedEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ent, created, err := w.resolver.Resolve(ctx, tx, parent, node)
	if err != nil {
		return nil, err
	}

	resolved := newResolvedEntity(node, ent, created)
	for _, child := range node.Children {
		c, err := w.walk(ctx, tx, &ent, child)
		if err != nil {
			return nil, err
		}
		resolved.Children = append(resolved.Children, c)
	}
	return resolved, nil
}

// Executor runs input trees in a transaction it owns: begin, walk, then
// commit, or roll back on the first error.
type Executor struct {
	store   graphdb.Store
	walker  *Walker
	metrics *observability.MutationMetrics
}

// NewExecutor creates an Executor.
func NewExecutor(store graphdb.Store, walker *Walker, metrics *observability.MutationMetrics) *Executor {
	return &Executor{store: store, walker: walker, metrics: metrics}
}

// Run resolves roots in one transaction and returns their resolved trees.
func (e *Executor) Run(ctx context.Context, roots ...*MutationInputNode) ([]*ResolvedEntity, error) {
	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	results, err := e.walker.ResolveAll(ctx, tx, roots)
	if err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logging.FromContext(ctx).Warn("failed to roll back mutation transaction",
				slog.String("error", rbErr.Error()),
			)
		}
		e.metrics.RecordTransaction(ctx, false)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		e.metrics.RecordTransaction(ctx, false)
		return nil, normalizeCommitError(err)
	}
	e.metrics.RecordTransaction(ctx, true)
	return results, nil
}

// normalizeCommitError maps a unique violation detected at commit time to
// the caller-facing constraint error.
func normalizeCommitError(err error) error {
	if cv, ok := graphdb.AsConstraintViolation(err); ok {
		return mutationerr.NewConstraintViolation(cv.EntityType, cv.Field, 1, cv)
	}
	return fmt.Errorf("commit transaction: %w", err)
}
