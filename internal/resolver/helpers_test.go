package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/graphdb/memgraph"
	"graphdb-graphql/internal/predicate"
	"graphdb-graphql/internal/schema"
	"graphdb-graphql/internal/testutil"
)

type testEnv struct {
	model    *schema.Model
	store    *memgraph.Store
	resolver *Resolver
	walker   *Walker
	executor *Executor
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	model := testutil.MovieModel(t)
	store := memgraph.New()
	r := New(model, opts...)
	w := NewWalker(r)
	return &testEnv{
		model:    model,
		store:    store,
		resolver: r,
		walker:   w,
		executor: NewExecutor(store, w, nil),
	}
}

func (e *testEnv) seed(t *testing.T, entityType string, fields map[string]any) graphdb.Entity {
	t.Helper()
	ctx := context.Background()
	et := testutil.EntityType(t, e.model, entityType)
	tx, err := e.store.BeginTx(ctx)
	require.NoError(t, err)
	ent, err := tx.CreateEntity(ctx, et, fields)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	return ent
}

func fixedIDs() Option {
	return WithIDGenerator(testutil.SequenceIDs("gen"))
}

// fakeTx scripts FindMatching and CreateEntity results.
type fakeTx struct {
	findResults [][]graphdb.Entity
	findCalls   int
	createErrs  []error
	createCalls int
	created     []map[string]any
	links       []string
	committed   bool
	rolledBack  bool
}

func (f *fakeTx) FindMatching(_ context.Context, _ *schema.EntityType, _ predicate.Predicate) ([]graphdb.Entity, error) {
	i := f.findCalls
	f.findCalls++
	if i < len(f.findResults) {
		return f.findResults[i], nil
	}
	return nil, nil
}

func (f *fakeTx) CreateEntity(_ context.Context, et *schema.EntityType, fields map[string]any) (graphdb.Entity, error) {
	i := f.createCalls
	f.createCalls++
	if i < len(f.createErrs) && f.createErrs[i] != nil {
		return graphdb.Entity{}, f.createErrs[i]
	}
	f.created = append(f.created, fields)
	return graphdb.Entity{ID: fmt.Sprintf("fake-%d", i), Type: et.Name, Fields: fields}, nil
}

func (f *fakeTx) CreateRelationship(_ context.Context, from, to graphdb.Entity, relType string, _ schema.Direction) error {
	f.links = append(f.links, from.ID+"-"+relType+"->"+to.ID)
	return nil
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

// hookTx runs beforeCreate ahead of each CreateEntity on the wrapped
// transaction, letting tests interleave a competing transaction.
type hookTx struct {
	graphdb.Tx
	beforeCreate func()
}

func (h *hookTx) CreateEntity(ctx context.Context, et *schema.EntityType, fields map[string]any) (graphdb.Entity, error) {
	if h.beforeCreate != nil {
		h.beforeCreate()
	}
	return h.Tx.CreateEntity(ctx, et, fields)
}

// fakeStore hands out a prepared transaction.
type fakeStore struct {
	tx graphdb.Tx
}

func (s *fakeStore) BeginTx(context.Context) (graphdb.Tx, error)            { return s.tx, nil }
func (s *fakeStore) EnsureConstraints(context.Context, *schema.Model) error { return nil }
func (s *fakeStore) Ping(context.Context) error                             { return nil }
func (s *fakeStore) Close(context.Context) error                            { return nil }

func installResolverSpanRecorder(t *testing.T) (*tracetest.SpanRecorder, func()) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)

	oldProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	return recorder, func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(oldProvider)
	}
}
