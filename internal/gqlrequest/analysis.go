// Package gqlrequest decodes and inspects GraphQL HTTP requests before they
// reach the executor.
package gqlrequest

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// Analysis stores parsed and derived GraphQL request metadata.
type Analysis struct {
	Envelope Envelope

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	OperationName string
	OperationType string

	// RootFields lists the top-level field names of the selected operation
	// in document order, with fragments expanded.
	RootFields     []string
	FieldCount     int
	SelectionDepth int

	DecodeError    error
	ParseError     error
	SelectionError error
}

// Err returns the first problem found while analyzing the request.
func (a *Analysis) Err() error {
	switch {
	case a == nil:
		return nil
	case a.DecodeError != nil:
		return a.DecodeError
	case a.ParseError != nil:
		return a.ParseError
	default:
		return a.SelectionError
	}
}

// AnalyzeRequest decodes and analyzes a GraphQL request payload.
func AnalyzeRequest(r *http.Request) *Analysis {
	envelope, err := DecodeEnvelope(r)
	analysis := AnalyzeEnvelope(envelope)
	if err != nil {
		analysis.DecodeError = err
	}
	return analysis
}

// AnalyzeEnvelope parses and analyzes a normalized request envelope.
func AnalyzeEnvelope(env Envelope) *Analysis {
	analysis := &Analysis{
		Envelope:  env,
		Fragments: map[string]*ast.FragmentDefinition{},
	}

	if strings.TrimSpace(env.Query) == "" {
		return analysis
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(env.Query),
			Name: "graphql",
		}),
	})
	if err != nil {
		analysis.ParseError = err
		return analysis
	}

	analysis.Document = doc
	analysis.Fragments = buildFragmentMap(doc)

	op, err := selectOperation(doc, env.OperationName)
	if err != nil {
		analysis.SelectionError = err
		return analysis
	}

	analysis.Operation = op
	if op.Name != nil {
		analysis.OperationName = op.Name.Value
	}
	analysis.OperationType = string(op.Operation)
	analysis.RootFields = rootFieldNames(op.SelectionSet, analysis.Fragments, map[string]bool{})
	analysis.FieldCount, analysis.SelectionDepth = countFieldsAndDepth(op.SelectionSet, analysis.Fragments, 1, map[string]bool{})

	return analysis
}

func buildFragmentMap(doc *ast.Document) map[string]*ast.FragmentDefinition {
	fragments := map[string]*ast.FragmentDefinition{}
	for _, def := range doc.Definitions {
		fragment, ok := def.(*ast.FragmentDefinition)
		if !ok || fragment.Name == nil || fragment.Name.Value == "" {
			continue
		}
		fragments[fragment.Name.Value] = fragment
	}
	return fragments
}

func selectOperation(doc *ast.Document, operationName string) (*ast.OperationDefinition, error) {
	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok && op != nil {
			operations = append(operations, op)
		}
	}

	if operationName != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == operationName {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", operationName)
	}

	switch len(operations) {
	case 0:
		return nil, fmt.Errorf("request does not include an operation")
	case 1:
		return operations[0], nil
	default:
		return nil, fmt.Errorf("operationName is required when request has multiple operations")
	}
}

func rootFieldNames(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, inFlight map[string]bool) []string {
	if set == nil {
		return nil
	}
	var names []string
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			if sel.Name != nil {
				names = append(names, sel.Name.Value)
			}
		case *ast.InlineFragment:
			names = append(names, rootFieldNames(sel.SelectionSet, fragments, inFlight)...)
		case *ast.FragmentSpread:
			name := sel.Name.Value
			fragment, ok := fragments[name]
			if !ok || inFlight[name] {
				continue
			}
			inFlight[name] = true
			names = append(names, rootFieldNames(fragment.SelectionSet, fragments, inFlight)...)
			delete(inFlight, name)
		}
	}
	return names
}

func countFieldsAndDepth(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, depth int, inFlight map[string]bool) (fields, maxDepth int) {
	if set == nil {
		return 0, depth - 1
	}
	maxDepth = depth
	merge := func(f, d int) {
		fields += f
		if d > maxDepth {
			maxDepth = d
		}
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.SelectionSet != nil {
				merge(countFieldsAndDepth(sel.SelectionSet, fragments, depth+1, inFlight))
			}
		case *ast.InlineFragment:
			merge(countFieldsAndDepth(sel.SelectionSet, fragments, depth, inFlight))
		case *ast.FragmentSpread:
			name := sel.Name.Value
			fragment, ok := fragments[name]
			if !ok || inFlight[name] {
				continue
			}
			inFlight[name] = true
			merge(countFieldsAndDepth(fragment.SelectionSet, fragments, depth, inFlight))
			delete(inFlight, name)
		}
	}
	return fields, maxDepth
}
