package gqlrequest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope_GET(t *testing.T) {
	values := url.Values{}
	values.Set("query", "query FindMovie { movie(where: {title: \"Forrest Gump\"}) { id } }")
	values.Set("operationName", "FindMovie")
	values.Set("variables", `{"limit":5}`)
	req := httptest.NewRequest(http.MethodGet, "/graphql?"+values.Encode(), nil)

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, "FindMovie", env.OperationName)
	assert.Equal(t, len(env.Query), env.DocumentSizeBytes)
	assert.Equal(t, map[string]any{"limit": float64(5)}, env.Variables)
}

func TestDecodeEnvelope_GETInvalidVariables(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/graphql?query=%7Bx%7D&variables=%7Bnope", nil)
	_, err := DecodeEnvelope(req)
	require.Error(t, err)
}

func TestDecodeEnvelope_PostApplicationGraphQL_RewindsBody(t *testing.T) {
	body := "mutation { createMovies(input: [{title: \"Heat\"}]) { id } }"
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/graphql")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, body, env.Query)

	rewound, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(rewound))
}

func TestDecodeEnvelope_PostJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(
		`{"query":"mutation Link($in: MovieConnectOrCreateInput!) { connectOrCreateMovie(input: $in) { created } }","operationName":"Link","variables":{"in":{"where":{"node":{"title":"Heat"}}}}}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, "Link", env.OperationName)
	assert.Contains(t, env.Query, "connectOrCreateMovie")
	require.Contains(t, env.Variables, "in")

	rewound, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Contains(t, string(rewound), `"operationName":"Link"`)
}

func TestDecodeEnvelope_PostInvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":`))
	req.Header.Set("Content-Type", "application/json")

	_, err := DecodeEnvelope(req)
	require.Error(t, err)
}

func TestDecodeEnvelope_OtherMethodsIgnored(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/graphql", strings.NewReader(`{"query":"{ x }"}`))
	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Empty(t, env.Query)
	assert.Equal(t, http.MethodPut, env.Method)
}

func TestDecodeEnvelope_BatchRejected(t *testing.T) {
	body := `[{"query":"mutation { a }"},{"query":"mutation { b }"}]`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	_, err := DecodeEnvelope(req)
	require.ErrorIs(t, err, ErrBatchUnsupported)

	rewound, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(rewound))
}

func TestDecodeEnvelope_ContentTypeCaseInsensitive(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("{ movie(where: {title: \"Heat\"}) { id } }"))
	req.Header.Set("Content-Type", "Application/GraphQL")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Contains(t, env.Query, "movie")
}
