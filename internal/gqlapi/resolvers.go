package gqlapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"

	"graphdb-graphql/internal/logging"
	"graphdb-graphql/internal/mutationerr"
	"graphdb-graphql/internal/naming"
	"graphdb-graphql/internal/predicate"
	"graphdb-graphql/internal/resolver"
	"graphdb-graphql/internal/schema"
)

var errNoMutationContext = errors.New("mutation transaction not available")

// withMutationContext runs fn in the request's shared transaction. Once a
// field has failed, later mutation fields are rejected without touching the
// database.
func withMutationContext(fn func(p graphql.ResolveParams, mc *resolver.MutationContext) (interface{}, error)) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		mc := resolver.MutationContextFromContext(p.Context)
		if mc == nil || mc.Tx() == nil {
			return nil, errNoMutationContext
		}
		if cause := mc.Err(); cause != nil {
			return nil, &mutationerr.AbortedError{Cause: cause}
		}
		result, err := fn(p, mc)
		if err != nil {
			mc.MarkError(err)
			logging.FromContext(p.Context).Info("mutation field failed",
				slog.String("field", p.Info.FieldName),
				slog.String("code", mutationerr.Code(err)),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
		return result, nil
	}
}

func (b *Builder) selections(p graphql.ResolveParams) selectionBuilder {
	return selectionBuilder{model: b.model, fragments: p.Info.Fragments}
}

func (b *Builder) makeConnectOrCreateResolver(et *schema.EntityType) graphql.FieldResolveFn {
	entityField := naming.LowerFirst(et.Name)

	return withMutationContext(func(p graphql.ResolveParams, mc *resolver.MutationContext) (result interface{}, err error) {
		ctx, span := startFieldSpan(p.Context, "graphql.mutation.connect_or_create",
			attribute.String("graphdb.entity_type", et.Name),
			attribute.String("graphql.field.name", p.Info.FieldName),
		)
		defer func() { endFieldSpan(span, err) }()

		input, _ := p.Args["input"].(map[string]interface{})
		node, err := DecodeConnectOrCreate(b.model, et.Name, input)
		if err != nil {
			return nil, err
		}
		resolved, err := b.walker.Resolve(ctx, mc.Tx(), node)
		if err != nil {
			return nil, err
		}

		sb := b.selections(p)
		sel := sb.forType(et, sb.childSets(fieldSets(p.Info.FieldASTs), entityField))
		return map[string]interface{}{
			"created":   resolved.WasCreated,
			entityField: resolver.Project(resolved, sel),
		}, nil
	})
}

func (b *Builder) makeCreateResolver(et *schema.EntityType) graphql.FieldResolveFn {
	return withMutationContext(func(p graphql.ResolveParams, mc *resolver.MutationContext) (result interface{}, err error) {
		ctx, span := startFieldSpan(p.Context, "graphql.mutation.create",
			attribute.String("graphdb.entity_type", et.Name),
			attribute.String("graphql.field.name", p.Info.FieldName),
		)
		defer func() { endFieldSpan(span, err) }()

		items, _ := p.Args["input"].([]interface{})
		roots := make([]*resolver.MutationInputNode, 0, len(items))
		for _, item := range items {
			obj, _ := item.(map[string]interface{})
			node, err := DecodeCreate(b.model, et.Name, obj)
			if err != nil {
				// Returned unwrapped so graphql-go keeps the error extensions.
				return nil, err
			}
			roots = append(roots, node)
		}

		resolved, err := b.walker.ResolveAll(ctx, mc.Tx(), roots)
		if err != nil {
			return nil, err
		}
		sb := b.selections(p)
		return resolver.ProjectAll(resolved, sb.forType(et, fieldSets(p.Info.FieldASTs))), nil
	})
}

// makeLookupResolver finds the entity matching where in a short-lived
// transaction that is always rolled back.
func (b *Builder) makeLookupResolver(et *schema.EntityType) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (result interface{}, err error) {
		ctx, span := startFieldSpan(p.Context, "graphql.query.lookup",
			attribute.String("graphdb.entity_type", et.Name),
		)
		defer func() { endFieldSpan(span, err) }()

		where, _ := p.Args["where"].(map[string]interface{})
		pred, err := predicate.Build(et, where)
		if err != nil {
			return nil, err
		}

		tx, err := b.store.BeginTx(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin lookup: %w", err)
		}
		defer func() {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				logging.FromContext(ctx).Debug("lookup rollback failed", slog.String("error", rbErr.Error()))
			}
		}()

		matches, err := tx.FindMatching(ctx, et, pred)
		if err != nil {
			return nil, err
		}
		switch len(matches) {
		case 0:
			return nil, nil
		case 1:
		default:
			return nil, mutationerr.NewAmbiguousMatch(et.Name, pred.Fields(), len(matches))
		}

		resolved := &resolver.ResolvedEntity{
			Identity:   matches[0].ID,
			EntityType: et.Name,
			Fields:     matches[0].Fields,
		}
		sb := b.selections(p)
		return resolver.Project(resolved, sb.forType(et, fieldSets(p.Info.FieldASTs))), nil
	}
}
