package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"graphdb-graphql/internal/gqlrequest"
	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/logging"
	"graphdb-graphql/internal/observability"
	"graphdb-graphql/internal/resolver"
)

// MutationTransactionMiddleware wraps GraphQL mutations in a single
// transaction. The response is held back until the transaction is finalized,
// so a client never sees data from a commit that failed.
func MutationTransactionMiddleware(store graphdb.Store, metrics *observability.MutationMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || !gqlrequest.IsMutation(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			logger := logging.FromContext(r.Context())
			tx, err := store.BeginTx(r.Context())
			if err != nil {
				logger.Error("failed to start mutation transaction", slog.String("error", err.Error()))
				http.Error(w, "failed to start transaction", http.StatusInternalServerError)
				return
			}

			mc := resolver.NewMutationContext(tx)
			ctx := resolver.WithMutationContext(r.Context(), mc)
			buffered := &bufferedResponseWriter{header: w.Header(), statusCode: http.StatusOK}

			defer func() {
				if rec := recover(); rec != nil {
					mc.MarkError(fmt.Errorf("panic during mutation: %v", rec))
					_ = mc.Finalize(ctx)
					metrics.RecordTransaction(ctx, false)
					panic(rec)
				}
			}()

			next.ServeHTTP(buffered, r.WithContext(ctx))

			finalizeErr := mc.Finalize(ctx)
			metrics.RecordTransaction(ctx, mc.Committed())
			switch {
			case finalizeErr == nil:
				buffered.flushTo(w)
			case mc.Err() != nil:
				// The response already reports the failure that caused the rollback.
				logger.Warn("failed to roll back mutation transaction", slog.String("error", finalizeErr.Error()))
				buffered.flushTo(w)
			default:
				logger.Error("failed to commit mutation transaction", slog.String("error", finalizeErr.Error()))
				writeCommitError(w, finalizeErr)
			}
		})
	}
}

type bufferedResponseWriter struct {
	header     http.Header
	statusCode int
	body       bytes.Buffer
}

func (b *bufferedResponseWriter) Header() http.Header {
	return b.header
}

func (b *bufferedResponseWriter) WriteHeader(statusCode int) {
	b.statusCode = statusCode
}

func (b *bufferedResponseWriter) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

func (b *bufferedResponseWriter) flushTo(w http.ResponseWriter) {
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(b.body.Bytes())
}

type errorResponse struct {
	Data   any            `json:"data"`
	Errors []errorMessage `json:"errors"`
}

type errorMessage struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// writeCommitError replaces the buffered result with a GraphQL error
// response describing the failed commit.
func writeCommitError(w http.ResponseWriter, err error) {
	msg := errorMessage{Message: err.Error()}
	var extended interface{ Extensions() map[string]interface{} }
	if errors.As(err, &extended) {
		msg.Extensions = extended.Extensions()
	}
	writeGraphQLError(w, http.StatusOK, msg)
}

func writeGraphQLError(w http.ResponseWriter, status int, msg errorMessage) {
	body, err := json.Marshal(errorResponse{Errors: []errorMessage{msg}})
	if err != nil {
		http.Error(w, msg.Message, http.StatusInternalServerError)
		return
	}
	w.Header().Del("Content-Length")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
