package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphdb-graphql/internal/testutil"
)

const seedStream = `
type: Movie
input:
  where: {node: {title: The Terminal}}
  connectOrCreate:
    actors:
      - where: {node: {name: Tom Hanks}}
---
type: Genre
input:
  where: {node: {name: Drama}}
`

func baseArgs(t *testing.T) []string {
	t.Helper()
	schemaFile := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(schemaFile, []byte(testutil.MovieSchemaYAML), 0o600))
	return []string{
		"--graph.backend", "memory",
		"--graph.schema_file", schemaFile,
		"--observability.metrics_enabled=false",
		"--observability.logging.level", "error",
	}
}

func TestRun_SeedsFromStdin(t *testing.T) {
	var out bytes.Buffer
	err := run(append(baseArgs(t), "--concurrency", "2"), strings.NewReader(seedStream), &out)
	require.NoError(t, err)
	assert.Equal(t, "documents=2 created=2 connected=0 failed=0\n", out.String())
}

func TestRun_SeedsFromFile(t *testing.T) {
	seedFile := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedFile, []byte(seedStream), 0o600))

	var out bytes.Buffer
	require.NoError(t, run(append(baseArgs(t), "-f", seedFile), strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "created=2")
}

func TestRun_DecodeFailureWritesNothing(t *testing.T) {
	var out bytes.Buffer
	err := run(baseArgs(t), strings.NewReader("type: Studio\ninput: {where: {node: {name: A24}}}\n"), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed document 0")
	assert.Contains(t, out.String(), "documents=0")
}

func TestRun_MissingFile(t *testing.T) {
	err := run(append(baseArgs(t), "-f", filepath.Join(t.TempDir(), "none.yaml")), strings.NewReader(""), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open seed file")
}
