package gqlapi

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"graphdb-graphql/internal/mutationerr"
)

func startFieldSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("graphdb-graphql/gqlapi").Start(ctx, name, trace.WithAttributes(attrs...))
}

func endFieldSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("graphdb.error.code", mutationerr.Code(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
