package gqlapi

import (
	"github.com/graphql-go/graphql/language/ast"

	"graphdb-graphql/internal/resolver"
	"graphdb-graphql/internal/schema"
)

// selectionBuilder turns GraphQL selection sets into projector selections,
// expanding fragment spreads and inline fragments.
type selectionBuilder struct {
	model     *schema.Model
	fragments map[string]ast.Definition
}

// forType builds the selection for sets evaluated against et.
func (s selectionBuilder) forType(et *schema.EntityType, sets []*ast.SelectionSet) *resolver.Selection {
	sel := &resolver.Selection{}
	seen := map[string]bool{}
	nested := map[string][]*ast.SelectionSet{}
	var relOrder []string

	s.eachField(sets, map[string]bool{}, func(f *ast.Field) {
		name := f.Name.Value
		if _, ok := et.Field(name); ok {
			if !seen[name] {
				seen[name] = true
				sel.Fields = append(sel.Fields, name)
			}
			return
		}
		if _, ok := et.Relationship(name); ok {
			if _, ok := nested[name]; !ok {
				relOrder = append(relOrder, name)
			}
			nested[name] = append(nested[name], f.SelectionSet)
		}
	})

	if len(relOrder) > 0 {
		sel.Relationships = make(map[string]*resolver.Selection, len(relOrder))
		for _, name := range relOrder {
			rel, _ := et.Relationship(name)
			target, _ := s.model.Type(rel.TargetType)
			sel.Relationships[name] = s.forType(target, nested[name])
		}
	}
	return sel
}

// childSets collects the selection sets of every field called name.
func (s selectionBuilder) childSets(sets []*ast.SelectionSet, name string) []*ast.SelectionSet {
	var out []*ast.SelectionSet
	s.eachField(sets, map[string]bool{}, func(f *ast.Field) {
		if f.Name.Value == name && f.SelectionSet != nil {
			out = append(out, f.SelectionSet)
		}
	})
	return out
}

func (s selectionBuilder) eachField(sets []*ast.SelectionSet, inFlight map[string]bool, fn func(*ast.Field)) {
	for _, set := range sets {
		if set == nil {
			continue
		}
		for _, selection := range set.Selections {
			switch node := selection.(type) {
			case *ast.Field:
				if node.Name != nil {
					fn(node)
				}
			case *ast.InlineFragment:
				s.eachField([]*ast.SelectionSet{node.SelectionSet}, inFlight, fn)
			case *ast.FragmentSpread:
				if node.Name == nil || inFlight[node.Name.Value] {
					continue
				}
				frag, ok := s.fragments[node.Name.Value].(*ast.FragmentDefinition)
				if !ok {
					continue
				}
				inFlight[node.Name.Value] = true
				s.eachField([]*ast.SelectionSet{frag.SelectionSet}, inFlight, fn)
				delete(inFlight, node.Name.Value)
			}
		}
	}
}

func fieldSets(fields []*ast.Field) []*ast.SelectionSet {
	sets := make([]*ast.SelectionSet, 0, len(fields))
	for _, f := range fields {
		if f != nil && f.SelectionSet != nil {
			sets = append(sets, f.SelectionSet)
		}
	}
	return sets
}
