package resolver

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"graphdb-graphql/internal/mutationerr"
	"graphdb-graphql/internal/schema"
)

const tracerName = "graphdb-graphql/resolver"

// startOccurrenceSpan opens the span covering one connect-or-create
// occurrence. rel is nil for roots.
func startOccurrenceSpan(ctx context.Context, et *schema.EntityType, mode Mode, rel *schema.RelationshipSpec) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("graphdb.entity_type", et.Name),
		attribute.String("graphdb.mode", mode.String()),
	}
	if rel != nil {
		attrs = append(attrs,
			attribute.String("graphdb.relationship", rel.FieldName),
			attribute.String("graphdb.relationship.type", rel.RelType),
		)
	}
	return otel.Tracer(tracerName).Start(ctx, "graphdb.connect_or_create", trace.WithAttributes(attrs...))
}

// endOccurrenceSpan records the outcome and, on failure, the error and its
// mutation error code, then ends the span.
func endOccurrenceSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("graphdb.connect_or_create.outcome", outcome))
	if err != nil {
		if code := mutationerr.Code(err); code != "" {
			span.SetAttributes(attribute.String("graphdb.error.code", code))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
