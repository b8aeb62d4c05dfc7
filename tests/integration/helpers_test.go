//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/mutationerr"
	"graphdb-graphql/internal/predicate"
	"graphdb-graphql/internal/resolver"
	"graphdb-graphql/internal/schema"
	"graphdb-graphql/internal/testutil"
)

func requireIntegrationEnv(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// uniqueTitle keeps runs against a shared database from colliding.
func uniqueTitle(base string) string {
	return base + " " + uuid.NewString()
}

func newExecutor(t *testing.T, store graphdb.Store) (*schema.Model, *resolver.Executor) {
	t.Helper()
	model := testutil.MovieModel(t)
	require.NoError(t, store.EnsureConstraints(context.Background(), model))
	walker := resolver.NewWalker(resolver.New(model))
	return model, resolver.NewExecutor(store, walker, nil)
}

func findAll(t *testing.T, store graphdb.Store, model *schema.Model, entityType string, where map[string]any) []graphdb.Entity {
	t.Helper()
	ctx := context.Background()
	et := testutil.EntityType(t, model, entityType)
	pred, err := predicate.Build(et, where)
	require.NoError(t, err)

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	found, err := tx.FindMatching(ctx, et, pred)
	require.NoError(t, err)
	return found
}

// runBackendSuite exercises connect-or-create semantics against a live store.
func runBackendSuite(t *testing.T, store graphdb.Store) {
	model, executor := newExecutor(t, store)
	ctx := context.Background()

	t.Run("CreateThenConnect", func(t *testing.T) {
		title := uniqueTitle("The Terminal")
		id := uuid.NewString()
		input := resolver.ConnectOrCreate("Movie",
			map[string]any{"id": id},
			map[string]any{"title": title},
		)

		first, err := executor.Run(ctx, input)
		require.NoError(t, err)
		assert.True(t, first[0].WasCreated)
		assert.Equal(t, title, first[0].Fields["title"])

		second, err := executor.Run(ctx, input)
		require.NoError(t, err)
		assert.False(t, second[0].WasCreated)
		assert.Equal(t, first[0].Identity, second[0].Identity)

		assert.Len(t, findAll(t, store, model, "Movie", map[string]any{"title": title}), 1)
	})

	t.Run("GeneratesMissingID", func(t *testing.T) {
		title := uniqueTitle("X")
		results, err := executor.Run(ctx, resolver.ConnectOrCreate("Movie",
			map[string]any{"title": title},
			map[string]any{"title": title},
		))
		require.NoError(t, err)
		require.True(t, results[0].WasCreated)

		id, ok := results[0].Fields["id"].(string)
		require.True(t, ok)
		_, err = uuid.Parse(id)
		assert.NoError(t, err)
	})

	t.Run("FailureRollsBackWholeTree", func(t *testing.T) {
		actorID := uuid.NewString()
		_, err := executor.Run(ctx, resolver.ConnectOrCreate("Actor",
			map[string]any{"id": actorID, "name": uniqueTitle("Meg Ryan")}, nil))
		require.NoError(t, err)

		title := uniqueTitle("Sleepless in Seattle")
		genre := uniqueTitle("Romance")
		tree := resolver.ConnectOrCreate("Movie",
			map[string]any{"title": title}, nil,
			resolver.ConnectOrCreate("Genre", map[string]any{"name": genre}, nil).Under("genres"),
			resolver.ConnectOrCreate("Actor", map[string]any{"id": actorID, "name": uniqueTitle("Tom Hanks")}, nil).Under("actors"),
		)

		_, err = executor.Run(ctx, tree)
		require.Error(t, err)
		assert.Contains(t, []string{mutationerr.CodeUniqueViolation, mutationerr.CodeAborted}, mutationerr.Code(err))
		assert.Empty(t, findAll(t, store, model, "Movie", map[string]any{"title": title}))
		assert.Empty(t, findAll(t, store, model, "Genre", map[string]any{"name": genre}))
	})

	t.Run("ConcurrentSameKey", func(t *testing.T) {
		title := uniqueTitle("Race")
		const workers = 6

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			success int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results, err := executor.Run(ctx, resolver.ConnectOrCreate("Movie",
					map[string]any{"title": title}, nil))
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					t.Logf("worker failed: code=%s err=%v", mutationerr.Code(err), err)
					return
				}
				success++
				if results[0].WasCreated {
					created++
				}
			}()
		}
		wg.Wait()

		assert.GreaterOrEqual(t, success, 1)
		assert.Equal(t, 1, created)
		assert.Len(t, findAll(t, store, model, "Movie", map[string]any{"title": title}), 1)
	})
}

type serverProcess struct {
	cmd    *exec.Cmd
	port   int
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// startTestServer builds cmd/server and runs it with GDBGQL_ overrides.
func startTestServer(t *testing.T, port int, extraEnv ...string) *serverProcess {
	t.Helper()

	dir := t.TempDir()
	binary := filepath.Join(dir, "graphdb-graphql-test")
	buildCmd := exec.Command("go", "build", "-o", binary, "../../cmd/server")
	out, err := buildCmd.CombinedOutput()
	require.NoError(t, err, "Failed to build server: %s", out)

	schemaPath := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testutil.MovieSchemaYAML), 0o600))

	base := append(os.Environ(),
		"GDBGQL_GRAPH_SCHEMA_FILE="+schemaPath,
		fmt.Sprintf("GDBGQL_SERVER_PORT=%d", port),
		"GDBGQL_OBSERVABILITY_TRACING_ENABLED=false",
	)

	proc := &serverProcess{
		cmd:    exec.Command(binary),
		port:   port,
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	proc.cmd.Env = mergeEnv(base, extraEnv...)
	proc.cmd.Stdout = proc.stdout
	proc.cmd.Stderr = proc.stderr
	require.NoError(t, proc.cmd.Start())

	t.Cleanup(func() {
		if proc.cmd.ProcessState == nil && proc.cmd.Process != nil {
			_ = proc.cmd.Process.Kill()
			_, _ = proc.cmd.Process.Wait()
		}
	})

	waitForHealthy(t, proc)
	return proc
}

func waitForHealthy(t *testing.T, proc *serverProcess) {
	t.Helper()
	url := fmt.Sprintf("http://localhost:%d/health", proc.port)
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
	t.Fatalf("Server did not become ready within 15 seconds.\n%s", proc.debugInfo())
}

func (p *serverProcess) debugInfo() string {
	return fmt.Sprintf("Environment:\n%s\nSTDOUT:\n%s\nSTDERR:\n%s",
		strings.Join(filterEnv(p.cmd.Env, "GDBGQL_GRAPH_", "GDBGQL_SERVER_", "GDBGQL_NEO4J_URI"), "\n"),
		tailString(p.stdout, 4000),
		tailString(p.stderr, 4000),
	)
}

func mergeEnv(base []string, overrides ...string) []string {
	if len(overrides) == 0 {
		return base
	}

	overrideKeys := make(map[string]struct{}, len(overrides))
	for _, kv := range overrides {
		overrideKeys[strings.SplitN(kv, "=", 2)[0]] = struct{}{}
	}

	merged := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		if _, exists := overrideKeys[strings.SplitN(kv, "=", 2)[0]]; exists {
			continue
		}
		merged = append(merged, kv)
	}
	return append(merged, overrides...)
}

func filterEnv(env []string, prefixes ...string) []string {
	var filtered []string
	for _, kv := range env {
		for _, prefix := range prefixes {
			if strings.HasPrefix(kv, prefix) {
				filtered = append(filtered, kv)
				break
			}
		}
	}
	return filtered
}

func tailString(buf *bytes.Buffer, max int) string {
	if buf == nil {
		return ""
	}
	s := buf.String()
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
