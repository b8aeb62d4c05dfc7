package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"graphdb-graphql/internal/gqlrequest"
	"graphdb-graphql/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// GraphQLTracingMiddleware instruments GraphQL execution with an inner span.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil || strings.TrimSpace(analysis.Envelope.Query) == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := otel.Tracer("graphdb-graphql/graphql").Start(r.Context(), "graphql.execute")
			defer span.End()
			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}

			if span.IsRecording() {
				span.SetAttributes(graphQLSpanAttributes(analysis)...)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func graphQLSpanAttributes(analysis *gqlrequest.Analysis) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int("graphql.document.size_bytes", analysis.Envelope.DocumentSizeBytes),
	}
	if analysis.OperationType != "" {
		attrs = append(attrs,
			attribute.String("graphql.operation.type", analysis.OperationType),
			attribute.Int("graphql.field_count", analysis.FieldCount),
			attribute.Int("graphql.selection_depth", analysis.SelectionDepth),
			attribute.StringSlice("graphql.root_fields", analysis.RootFields),
		)
	}
	if analysis.OperationName != "" {
		attrs = append(attrs, attribute.String("graphql.operation.name", analysis.OperationName))
	}
	if err := analysis.Err(); err != nil {
		attrs = append(attrs, attribute.String("graphql.analysis.error", err.Error()))
	}
	return attrs
}
