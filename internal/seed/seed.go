// Package seed applies a stream of connect-or-create documents to the graph.
// Every document runs in its own transaction. Values are converted to their
// field types before matching and edges are never duplicated, so re-running a
// seed file connects to what earlier runs created and adds nothing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"graphdb-graphql/internal/gqlapi"
	"graphdb-graphql/internal/logging"
	"graphdb-graphql/internal/resolver"
	"graphdb-graphql/internal/schema"
)

// Document is one YAML document of a seed stream. Input has the shape of the
// connectOrCreate<T> mutation argument.
//
//	type: Movie
//	input:
//	  where: {node: {title: The Matrix}}
//	  onCreate: {node: {released: 1999}}
//	  connectOrCreate:
//	    actors:
//	      - where: {node: {name: Keanu Reeves}}
type Document struct {
	Type  string         `yaml:"type"`
	Input map[string]any `yaml:"input"`
}

// Parse reads every document of a YAML stream. Empty documents are skipped.
func Parse(r io.Reader) ([]Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var docs []Document
	for i := 0; ; i++ {
		var doc Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("seed document %d: %w", i, err)
		}
		if doc.Type == "" && doc.Input == nil {
			continue
		}
		docs = append(docs, doc)
	}
}

// Runner executes input trees. *resolver.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, roots ...*resolver.MutationInputNode) ([]*resolver.ResolvedEntity, error)
}

// Options tune a Loader.
type Options struct {
	// Concurrency bounds the documents applied at once; values below 1 mean 1.
	Concurrency int
	// ContinueOnError keeps applying documents after a failure instead of
	// canceling the rest.
	ContinueOnError bool
}

// Loader applies seed documents.
type Loader struct {
	model  *schema.Model
	runner Runner
	opts   Options
}

// NewLoader creates a Loader.
func NewLoader(model *schema.Model, runner Runner, opts Options) *Loader {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Loader{model: model, runner: runner, opts: opts}
}

// DocumentError ties a failure to the document that caused it.
type DocumentError struct {
	Index int
	Type  string
	Err   error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("seed document %d (%s): %v", e.Index, e.Type, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// Summary counts the outcome of a load. Created and Connected count root
// occurrences only.
type Summary struct {
	Documents int
	Created   int
	Connected int
	Failed    []*DocumentError
}

// Load decodes every document before applying any, then applies them with
// bounded concurrency. A decode error aborts the load with no writes.
func (l *Loader) Load(ctx context.Context, docs []Document) (Summary, error) {
	roots := make([]*resolver.MutationInputNode, len(docs))
	for i, doc := range docs {
		node, err := gqlapi.DecodeConnectOrCreate(l.model, doc.Type, doc.Input)
		if err != nil {
			return Summary{}, &DocumentError{Index: i, Type: doc.Type, Err: err}
		}
		roots[i] = node
	}

	logger := logging.FromContext(ctx)
	summary := Summary{Documents: len(docs)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)
	for i, root := range roots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resolved, err := l.runner.Run(gctx, root)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				docErr := &DocumentError{Index: i, Type: root.EntityType, Err: err}
				summary.Failed = append(summary.Failed, docErr)
				logger.Warn("seed document failed",
					slog.Int("index", i),
					slog.String("entity_type", root.EntityType),
					slog.String("error", err.Error()),
				)
				if l.opts.ContinueOnError {
					return nil
				}
				return docErr
			}
			if resolved[0].WasCreated {
				summary.Created++
			} else {
				summary.Connected++
			}
			logger.Debug("seed document applied",
				slog.Int("index", i),
				slog.String("entity_type", root.EntityType),
				slog.String("id", resolved[0].Identity),
				slog.Bool("created", resolved[0].WasCreated),
			)
			return nil
		})
	}

	err := g.Wait()
	if err == nil && len(summary.Failed) > 0 {
		err = summary.Failed[0]
	}
	return summary, err
}
