//go:build integration
// +build integration

package integration

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"syscall"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerConnectOrCreateOverHTTP(t *testing.T) {
	requireIntegrationEnv(t)
	proc := startTestServer(t, 18081, "GDBGQL_GRAPH_BACKEND=memory")

	query := `mutation {
		connectOrCreateMovie(input: {
			where: {node: {id: "myid"}}
			onCreate: {node: {title: "The Terminal"}}
		}) {
			created
			movie { id title }
		}
	}`
	body, err := jsoniter.Marshal(map[string]any{"query": query})
	require.NoError(t, err)

	for i, wantCreated := range []bool{true, false} {
		resp, err := http.Post(fmt.Sprintf("http://localhost:%d/graphql", proc.port), "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		payload, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, "%s", payload)

		var out struct {
			Data   map[string]map[string]any `json:"data"`
			Errors []map[string]any          `json:"errors"`
		}
		require.NoError(t, jsoniter.Unmarshal(payload, &out))
		require.Empty(t, out.Errors)
		result := out.Data["connectOrCreateMovie"]
		assert.Equal(t, wantCreated, result["created"], "request %d", i)
		assert.Equal(t, "myid", result["movie"].(map[string]any)["id"])
	}
}

func TestGracefulShutdown(t *testing.T) {
	requireIntegrationEnv(t)

	// The server must exit with status 0 after SIGTERM, within the shutdown
	// timeout.
	proc := startTestServer(t, 18080, "GDBGQL_GRAPH_BACKEND=memory")

	require.NoError(t, proc.cmd.Process.Signal(syscall.SIGTERM), "Failed to send SIGTERM")

	done := make(chan error, 1)
	go func() { done <- proc.cmd.Wait() }()

	select {
	case err := <-done:
		assert.NoError(t, err, "Server should exit cleanly after SIGTERM.\n%s", proc.debugInfo())
	case <-time.After(35 * time.Second):
		t.Fatal("Server did not shut down within 35 seconds")
	}
}
