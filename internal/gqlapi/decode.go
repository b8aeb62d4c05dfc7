package gqlapi

import (
	"fmt"
	"sort"

	"graphdb-graphql/internal/mutationerr"
	"graphdb-graphql/internal/resolver"
	"graphdb-graphql/internal/schema"
)

// Input objects arrive as unordered maps, so nested relationship groups are
// visited in the order the model declares them; entries within one group
// keep their list order.

// DecodeConnectOrCreate converts a TConnectOrCreateInput value into an input
// tree rooted at typeName.
//
//	{where: {node: {...}}, onCreate: {node: {...}}, connectOrCreate: {rel: [...]}}
func DecodeConnectOrCreate(model *schema.Model, typeName string, input map[string]any) (*resolver.MutationInputNode, error) {
	et, ok := model.Type(typeName)
	if !ok {
		return nil, mutationerr.NewSchemaMismatch(typeName, "", "unknown entity type")
	}
	return decodeConnectOrCreate(model, et, input)
}

// DecodeCreate converts a TCreateInput value: T's scalar fields plus an
// optional connectOrCreate relation input.
func DecodeCreate(model *schema.Model, typeName string, input map[string]any) (*resolver.MutationInputNode, error) {
	et, ok := model.Type(typeName)
	if !ok {
		return nil, mutationerr.NewSchemaMismatch(typeName, "", "unknown entity type")
	}
	if input == nil {
		return nil, mutationerr.NewInvalidInput(et.Name, "", "missing create input")
	}

	fields := make(map[string]any, len(input))
	var relations map[string]any
	for _, key := range sortedKeys(input) {
		if key == "connectOrCreate" {
			m, err := asObject(et.Name, key, input[key])
			if err != nil {
				return nil, err
			}
			relations = m
			continue
		}
		spec, ok := et.Field(key)
		if !ok {
			return nil, mutationerr.NewSchemaMismatch(et.Name, key, "unknown field")
		}
		value, err := spec.ValueType.Coerce(input[key])
		if err != nil {
			return nil, mutationerr.NewInvalidInput(et.Name, key, err.Error())
		}
		fields[key] = value
	}

	children, err := decodeRelations(model, et, relations)
	if err != nil {
		return nil, err
	}
	return resolver.Create(et.Name, fields, children...), nil
}

func decodeConnectOrCreate(model *schema.Model, et *schema.EntityType, input map[string]any) (*resolver.MutationInputNode, error) {
	if input == nil {
		return nil, mutationerr.NewInvalidInput(et.Name, "", "missing connect-or-create input")
	}
	for _, key := range sortedKeys(input) {
		switch key {
		case "where", "onCreate", "connectOrCreate":
		default:
			return nil, mutationerr.NewInvalidInput(et.Name, key, "unknown connect-or-create key")
		}
	}

	whereObj, err := asObject(et.Name, "where", input["where"])
	if err != nil {
		return nil, err
	}
	if whereObj == nil {
		return nil, mutationerr.NewInvalidInput(et.Name, "where", "connect-or-create requires where")
	}
	where, err := nodeOf(et.Name, "where", whereObj)
	if err != nil {
		return nil, err
	}
	if where, err = coerceFields(et, where); err != nil {
		return nil, err
	}

	var onCreate map[string]any
	onCreateObj, err := asObject(et.Name, "onCreate", input["onCreate"])
	if err != nil {
		return nil, err
	}
	if onCreateObj != nil {
		if onCreate, err = nodeOf(et.Name, "onCreate", onCreateObj); err != nil {
			return nil, err
		}
		if onCreate, err = coerceFields(et, onCreate); err != nil {
			return nil, err
		}
	}

	relations, err := asObject(et.Name, "connectOrCreate", input["connectOrCreate"])
	if err != nil {
		return nil, err
	}
	children, err := decodeRelations(model, et, relations)
	if err != nil {
		return nil, err
	}
	return resolver.ConnectOrCreate(et.Name, where, onCreate, children...), nil
}

func decodeRelations(model *schema.Model, et *schema.EntityType, relations map[string]any) ([]*resolver.MutationInputNode, error) {
	if len(relations) == 0 {
		return nil, nil
	}
	for _, key := range sortedKeys(relations) {
		if _, ok := et.Relationship(key); !ok {
			return nil, mutationerr.NewSchemaMismatch(et.Name, key, "unknown relationship")
		}
	}

	var children []*resolver.MutationInputNode
	for _, rel := range et.OrderedRelationships() {
		raw, ok := relations[rel.FieldName]
		if !ok || raw == nil {
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			return nil, mutationerr.NewInvalidInput(et.Name, rel.FieldName, "expected a list of connect-or-create inputs")
		}
		target, ok := model.Type(rel.TargetType)
		if !ok {
			return nil, mutationerr.NewSchemaMismatch(et.Name, rel.FieldName, "unknown target type "+rel.TargetType)
		}
		for i, item := range items {
			obj, err := asObject(target.Name, fmt.Sprintf("%s[%d]", rel.FieldName, i), item)
			if err != nil {
				return nil, err
			}
			child, err := decodeConnectOrCreate(model, target, obj)
			if err != nil {
				return nil, err
			}
			children = append(children, child.Under(rel.FieldName))
		}
	}
	return children, nil
}

// coerceFields returns a copy of fields with every declared field converted
// to its value type. Undeclared fields are copied as-is for the resolver to
// reject.
func coerceFields(et *schema.EntityType, fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, key := range sortedKeys(fields) {
		spec, ok := et.Field(key)
		if !ok {
			out[key] = fields[key]
			continue
		}
		value, err := spec.ValueType.Coerce(fields[key])
		if err != nil {
			return nil, mutationerr.NewInvalidInput(et.Name, key, err.Error())
		}
		out[key] = value
	}
	return out, nil
}

// nodeOf unwraps the {node: {...}} envelope used by where and onCreate.
func nodeOf(typeName, key string, obj map[string]any) (map[string]any, error) {
	for k := range obj {
		if k != "node" {
			return nil, mutationerr.NewInvalidInput(typeName, key, "unexpected key "+k)
		}
	}
	node, err := asObject(typeName, key+".node", obj["node"])
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, mutationerr.NewInvalidInput(typeName, key, "missing node")
	}
	return node, nil
}

func asObject(typeName, key string, v any) (map[string]any, error) {
	switch obj := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return obj, nil
	default:
		return nil, mutationerr.NewInvalidInput(typeName, key, fmt.Sprintf("expected an object, got %T", v))
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
