// Package gqlapi exposes the constraint model as a GraphQL schema. Every
// entity type gets a connect-or-create mutation, a nested create mutation
// and a unique lookup query. Mutations run in the request's shared
// transaction, which the mutation transaction middleware owns.
package gqlapi

import (
	"sync"

	"github.com/graphql-go/graphql"

	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/naming"
	"graphdb-graphql/internal/resolver"
	"graphdb-graphql/internal/schema"
)

// Builder generates a graphql.Schema from a constraint model.
type Builder struct {
	model  *schema.Model
	namer  *naming.Namer
	walker *resolver.Walker
	store  graphdb.Store

	objects           map[string]*graphql.Object
	payloads          map[string]*graphql.Object
	uniqueWheres      map[string]*graphql.InputObject
	connectWheres     map[string]*graphql.InputObject
	onCreateNodes     map[string]*graphql.InputObject
	onCreateInputs    map[string]*graphql.InputObject
	relationInputs    map[string]*graphql.InputObject
	connectOrCreateIn map[string]*graphql.InputObject
	createInputs      map[string]*graphql.InputObject
	mu                sync.Mutex
}

// NewBuilder creates a Builder. The store is used by lookup queries, which
// run outside the mutation transaction.
func NewBuilder(model *schema.Model, namer *naming.Namer, walker *resolver.Walker, store graphdb.Store) *Builder {
	if namer == nil {
		namer = naming.Default()
	}
	return &Builder{
		model:             model,
		namer:             namer,
		walker:            walker,
		store:             store,
		objects:           make(map[string]*graphql.Object),
		payloads:          make(map[string]*graphql.Object),
		uniqueWheres:      make(map[string]*graphql.InputObject),
		connectWheres:     make(map[string]*graphql.InputObject),
		onCreateNodes:     make(map[string]*graphql.InputObject),
		onCreateInputs:    make(map[string]*graphql.InputObject),
		relationInputs:    make(map[string]*graphql.InputObject),
		connectOrCreateIn: make(map[string]*graphql.InputObject),
		createInputs:      make(map[string]*graphql.InputObject),
	}
}

// Build constructs the executable schema.
func (b *Builder) Build() (graphql.Schema, error) {
	queryFields := graphql.Fields{}
	mutationFields := graphql.Fields{}

	for _, et := range b.model.Types() {
		objType := b.objectType(et)

		mutationFields[b.namer.CreateFieldName(et.Name)] = &graphql.Field{
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(objType))),
			Description: "Create " + b.namer.PluralTypeName(et.Name) + ", resolving nested connect-or-create input.",
			Args: graphql.FieldConfigArgument{
				"input": &graphql.ArgumentConfig{
					Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.createInput(et)))),
				},
			},
			Resolve: b.makeCreateResolver(et),
		}

		if len(et.UniqueFields) == 0 {
			continue
		}
		mutationFields[b.namer.ConnectOrCreateFieldName(et.Name)] = &graphql.Field{
			Type:        graphql.NewNonNull(b.payloadType(et)),
			Description: "Connect to the " + et.Name + " matching where, or create it.",
			Args: graphql.FieldConfigArgument{
				"input": &graphql.ArgumentConfig{
					Type: graphql.NewNonNull(b.connectOrCreateInput(et)),
				},
			},
			Resolve: b.makeConnectOrCreateResolver(et),
		}
		queryFields[b.namer.LookupFieldName(et.Name)] = &graphql.Field{
			Type:        objType,
			Description: "Look up a " + et.Name + " by unique fields.",
			Args: graphql.FieldConfigArgument{
				"where": &graphql.ArgumentConfig{
					Type: graphql.NewNonNull(b.uniqueWhere(et)),
				},
			},
			Resolve: b.makeLookupResolver(et),
		}
	}

	// GraphQL requires at least one query field.
	if len(queryFields) == 0 {
		queryFields["_schema"] = &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return "No entity types declare unique fields", nil
			},
			Description: "Placeholder field when no entity type can be looked up",
		}
	}

	schemaConfig := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: queryFields}),
	}
	if len(mutationFields) > 0 {
		schemaConfig.Mutation = graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: mutationFields})
	}
	return graphql.NewSchema(schemaConfig)
}

func scalarType(vt schema.ValueType) graphql.Output {
	switch vt {
	case schema.ValueInt:
		return graphql.Int
	case schema.ValueFloat:
		return graphql.Float
	case schema.ValueBoolean:
		return graphql.Boolean
	case schema.ValueID:
		return graphql.ID
	default:
		return graphql.String
	}
}

func inputScalarType(vt schema.ValueType) graphql.Input {
	return scalarType(vt).(graphql.Input)
}

// objectType builds T. Relationship fields are resolved from the projected
// response map, so they carry no resolver of their own.
func (b *Builder) objectType(et *schema.EntityType) *graphql.Object {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cached, ok := b.objects[et.Name]; ok {
		return cached
	}

	// Fields are built lazily so types may reference each other.
	obj := graphql.NewObject(graphql.ObjectConfig{
		Name: et.Name,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			fields := graphql.Fields{}
			for _, f := range et.OrderedFields() {
				fields[f.Name] = &graphql.Field{Type: scalarType(f.ValueType)}
			}
			for _, rel := range et.OrderedRelationships() {
				target, _ := b.model.Type(rel.TargetType)
				fields[rel.FieldName] = &graphql.Field{
					Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.objectType(target)))),
					Description: rel.TargetType + " entities linked by " + rel.RelType + " in this mutation.",
				}
			}
			return fields
		}),
	})
	b.objects[et.Name] = obj
	return obj
}

func (b *Builder) payloadType(et *schema.EntityType) *graphql.Object {
	objType := b.objectType(et)

	b.mu.Lock()
	defer b.mu.Unlock()
	if cached, ok := b.payloads[et.Name]; ok {
		return cached
	}
	obj := graphql.NewObject(graphql.ObjectConfig{
		Name: et.Name + "ConnectOrCreatePayload",
		Fields: graphql.Fields{
			"created": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Boolean),
				Description: "True when no existing " + et.Name + " matched and one was created.",
			},
			naming.LowerFirst(et.Name): &graphql.Field{Type: graphql.NewNonNull(objType)},
		},
	})
	b.payloads[et.Name] = obj
	return obj
}

func (b *Builder) uniqueWhere(et *schema.EntityType) *graphql.InputObject {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cached, ok := b.uniqueWheres[et.Name]; ok {
		return cached
	}
	fields := graphql.InputObjectConfigFieldMap{}
	for _, name := range et.UniqueFields {
		f, _ := et.Field(name)
		fields[name] = &graphql.InputObjectFieldConfig{Type: inputScalarType(f.ValueType)}
	}
	obj := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        et.Name + "UniqueWhere",
		Description: "Unique fields of " + et.Name + ". Every field given must match.",
		Fields:      fields,
	})
	b.uniqueWheres[et.Name] = obj
	return obj
}

func (b *Builder) connectOrCreateWhere(et *schema.EntityType) *graphql.InputObject {
	node := b.uniqueWhere(et)

	b.mu.Lock()
	defer b.mu.Unlock()
	if cached, ok := b.connectWheres[et.Name]; ok {
		return cached
	}
	obj := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: et.Name + "ConnectOrCreateWhere",
		Fields: graphql.InputObjectConfigFieldMap{
			"node": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(node)},
		},
	})
	b.connectWheres[et.Name] = obj
	return obj
}

func (b *Builder) onCreateNode(et *schema.EntityType) *graphql.InputObject {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cached, ok := b.onCreateNodes[et.Name]; ok {
		return cached
	}
	obj := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   et.Name + "OnCreateNode",
		Fields: scalarInputFields(et),
	})
	b.onCreateNodes[et.Name] = obj
	return obj
}

func (b *Builder) onCreateInput(et *schema.EntityType) *graphql.InputObject {
	node := b.onCreateNode(et)

	b.mu.Lock()
	defer b.mu.Unlock()
	if cached, ok := b.onCreateInputs[et.Name]; ok {
		return cached
	}
	obj := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: et.Name + "OnCreateInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"node": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(node)},
		},
	})
	b.onCreateInputs[et.Name] = obj
	return obj
}

// relationInput returns nil when et has no relationship whose target can be
// connected to.
func (b *Builder) relationInput(et *schema.EntityType) *graphql.InputObject {
	if len(b.connectableRelationships(et)) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cached, ok := b.relationInputs[et.Name]; ok {
		return cached
	}
	obj := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: et.Name + "RelationInput",
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := graphql.InputObjectConfigFieldMap{}
			for _, rel := range b.connectableRelationships(et) {
				target, _ := b.model.Type(rel.TargetType)
				fields[rel.FieldName] = &graphql.InputObjectFieldConfig{
					Type:        graphql.NewList(graphql.NewNonNull(b.connectOrCreateInput(target))),
					Description: "Connect or create " + rel.TargetType + " entities and link them with " + rel.RelType + ".",
				}
			}
			return fields
		}),
	})
	b.relationInputs[et.Name] = obj
	return obj
}

func (b *Builder) connectOrCreateInput(et *schema.EntityType) *graphql.InputObject {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cached, ok := b.connectOrCreateIn[et.Name]; ok {
		return cached
	}
	obj := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: et.Name + "ConnectOrCreateInput",
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := graphql.InputObjectConfigFieldMap{
				"where":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(b.connectOrCreateWhere(et))},
				"onCreate": &graphql.InputObjectFieldConfig{Type: b.onCreateInput(et)},
			}
			if rel := b.relationInput(et); rel != nil {
				fields["connectOrCreate"] = &graphql.InputObjectFieldConfig{Type: rel}
			}
			return fields
		}),
	})
	b.connectOrCreateIn[et.Name] = obj
	return obj
}

func (b *Builder) createInput(et *schema.EntityType) *graphql.InputObject {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cached, ok := b.createInputs[et.Name]; ok {
		return cached
	}
	obj := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: et.Name + "CreateInput",
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := scalarInputFields(et)
			if rel := b.relationInput(et); rel != nil {
				fields["connectOrCreate"] = &graphql.InputObjectFieldConfig{Type: rel}
			}
			return fields
		}),
	})
	b.createInputs[et.Name] = obj
	return obj
}

// connectableRelationships lists relationships whose target has at least one
// unique field to match on.
func (b *Builder) connectableRelationships(et *schema.EntityType) []*schema.RelationshipSpec {
	var out []*schema.RelationshipSpec
	for _, rel := range et.OrderedRelationships() {
		if target, ok := b.model.Type(rel.TargetType); ok && len(target.UniqueFields) > 0 {
			out = append(out, rel)
		}
	}
	return out
}

func scalarInputFields(et *schema.EntityType) graphql.InputObjectConfigFieldMap {
	fields := graphql.InputObjectConfigFieldMap{}
	for _, f := range et.OrderedFields() {
		fields[f.Name] = &graphql.InputObjectFieldConfig{Type: inputScalarType(f.ValueType)}
	}
	return fields
}
