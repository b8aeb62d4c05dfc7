package serverapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"graphdb-graphql/internal/config"
	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/graphdb/memgraph"
	"graphdb-graphql/internal/resolver"
)

type graphQLResponse struct {
	Data   map[string]any   `json:"data"`
	Errors []map[string]any `json:"errors"`
}

func postGraphQL(t *testing.T, h http.Handler, query string) graphQLResponse {
	t.Helper()
	body, err := jsoniter.MarshalToString(map[string]any{"query": query})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp graphQLResponse
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func initApp(t *testing.T) *App {
	t.Helper()
	app, err := New(testConfig(t), testLogger())
	require.NoError(t, err)
	require.NoError(t, app.Init(context.Background()))
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

const connectOrCreateTerminal = `mutation {
	connectOrCreateMovie(input: {
		where: {node: {id: "myid"}}
		onCreate: {node: {title: "The Terminal"}}
	}) {
		created
		movie { id title }
	}
}`

func TestGraphQLEndpoint_CreateThenConnect(t *testing.T) {
	app := initApp(t)

	first := postGraphQL(t, app.Handler(), connectOrCreateTerminal)
	require.Empty(t, first.Errors)
	payload := first.Data["connectOrCreateMovie"].(map[string]any)
	assert.Equal(t, true, payload["created"])
	assert.Equal(t, map[string]any{"id": "myid", "title": "The Terminal"}, payload["movie"])

	second := postGraphQL(t, app.Handler(), connectOrCreateTerminal)
	require.Empty(t, second.Errors)
	payload = second.Data["connectOrCreateMovie"].(map[string]any)
	assert.Equal(t, false, payload["created"])
	assert.Equal(t, "myid", payload["movie"].(map[string]any)["id"])
}

func TestGraphQLEndpoint_InvalidInputReportsCode(t *testing.T) {
	app := initApp(t)

	resp := postGraphQL(t, app.Handler(), `mutation {
		connectOrCreateMovie(input: {where: {node: {tagline: "not unique"}}}) { created }
	}`)
	require.NotEmpty(t, resp.Errors)
}

func TestExecutor_SharesStoreWithHTTP(t *testing.T) {
	app := initApp(t)

	_, err := app.Executor().Run(context.Background(),
		resolver.ConnectOrCreate("Movie", map[string]any{"id": "myid"}, map[string]any{"title": "Seeded"}))
	require.NoError(t, err)

	resp := postGraphQL(t, app.Handler(), connectOrCreateTerminal)
	require.Empty(t, resp.Errors)
	payload := resp.Data["connectOrCreateMovie"].(map[string]any)
	assert.Equal(t, false, payload["created"])
	assert.Equal(t, "Seeded", payload["movie"].(map[string]any)["title"])
}

func TestRouter_HealthAndRedirect(t *testing.T) {
	app := initApp(t)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","graph":"ok","backend":"memory"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/graphql", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type downStore struct{ graphdb.Store }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthHandler_Unhealthy(t *testing.T) {
	h := healthHandler(downStore{Store: memgraph.New()}, "neo4j", 50*time.Millisecond)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","graph":"failed","backend":"neo4j"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestWrapHTTPHandler_LimitsRequestBody(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{MaxRequestBytes: 8}}
	h := wrapHTTPHandler(cfg, testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		_, err := r.Body.Read(buf)
		for err == nil {
			_, err = r.Body.Read(buf)
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(strings.Repeat("x", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestWrapHTTPHandler_UsesHTTPRootSpanName(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)
	originalTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(originalTP)
	})

	cfg := &config.Config{Observability: config.ObservabilityConfig{TracingEnabled: true}}
	h := wrapHTTPHandler(cfg, testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "GET /health")
}

func TestNormalizeHTTPSpanRoute(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/graphql", "/graphql"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/users/123", "/*"},
		{"", "/*"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizeHTTPSpanRoute(tt.input), tt.input)
	}
	assert.Equal(t, "HTTP /*", httpRootSpanName(nil))
}
