package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"graphdb-graphql/internal/gqlrequest"
	"graphdb-graphql/internal/logging"
)

// GraphQLRequestAnalysisMiddleware decodes and analyzes the GraphQL request once
// and stores derived metadata in request context for downstream middleware.
// Batched requests are rejected with 400.
func GraphQLRequestAnalysisMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r)
			ctx := gqlrequest.WithAnalysis(r.Context(), analysis)

			if fields := analysisLogFields(analysis); len(fields) > 0 {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(fields...))
			}
			if errors.Is(analysis.DecodeError, gqlrequest.ErrBatchUnsupported) {
				writeGraphQLError(w, http.StatusBadRequest, errorMessage{
					Message:    analysis.DecodeError.Error(),
					Extensions: map[string]any{"code": "bad_request"},
				})
				return
			}
			if err := analysis.Err(); err != nil {
				logging.FromContext(ctx).Debug("graphql request analysis failed",
					slog.String("error", err.Error()),
				)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func analysisLogFields(analysis *gqlrequest.Analysis) []any {
	var fields []any
	if analysis.OperationType != "" {
		fields = append(fields, slog.String("graphql.operation.type", analysis.OperationType))
	}
	if analysis.OperationName != "" {
		fields = append(fields, slog.String("graphql.operation.name", analysis.OperationName))
	}
	return fields
}
