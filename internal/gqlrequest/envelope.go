package gqlrequest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrBatchUnsupported is returned for a JSON array body. Every mutation field
// of a request shares one transaction, and batches would need one each.
var ErrBatchUnsupported = errors.New("batched GraphQL requests are not supported")

// Envelope is the transport-independent form of a GraphQL request.
type Envelope struct {
	Method      string
	ContentType string

	Query         string
	OperationName string
	Variables     map[string]any

	DocumentSizeBytes int
}

type jsonBody struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// DecodeEnvelope reads the GraphQL payload from a GET query string or a POST
// body. A POST body is restored on r so the GraphQL handler can read it.
// Other methods yield an envelope with no query.
func DecodeEnvelope(r *http.Request) (Envelope, error) {
	if r == nil {
		return Envelope{}, fmt.Errorf("request is nil")
	}
	env := Envelope{Method: r.Method, ContentType: r.Header.Get("Content-Type")}

	var err error
	switch {
	case r.Method == http.MethodGet:
		err = env.fromQueryString(r)
	case r.Method == http.MethodPost && r.Body != nil:
		err = env.fromBody(r)
	}
	env.DocumentSizeBytes = len(env.Query)
	return env, err
}

func (env *Envelope) fromQueryString(r *http.Request) error {
	values := r.URL.Query()
	env.Query = values.Get("query")
	env.OperationName = values.Get("operationName")
	raw := values.Get("variables")
	if raw == "" {
		return nil
	}
	if err := json.UnmarshalFromString(raw, &env.Variables); err != nil {
		return fmt.Errorf("invalid variables: %w", err)
	}
	return nil
}

func (env *Envelope) fromBody(r *http.Request) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if mediaType(env.ContentType) == "application/graphql" {
		env.Query = string(body)
		return nil
	}

	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
		return nil
	case trimmed[0] == '[':
		return ErrBatchUnsupported
	}
	var payload jsonBody
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	env.Query = payload.Query
	env.OperationName = payload.OperationName
	env.Variables = payload.Variables
	return nil
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt == "" {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}
