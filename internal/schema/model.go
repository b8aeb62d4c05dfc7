// Package schema holds the constraint model: the entity types the mutation
// engine can match and create, which of their fields are unique, which field
// is generated on create, and the relationships between types.
package schema

import "sort"

// ValueType is the scalar type of an entity field.
type ValueType string

const (
	ValueString  ValueType = "String"
	ValueInt     ValueType = "Int"
	ValueFloat   ValueType = "Float"
	ValueBoolean ValueType = "Boolean"
	ValueID      ValueType = "ID"
)

// Valid reports whether t is a supported value type.
func (t ValueType) Valid() bool {
	switch t {
	case ValueString, ValueInt, ValueFloat, ValueBoolean, ValueID:
		return true
	}
	return false
}

// Direction is the orientation of an edge relative to the entity declaring
// the relationship.
type Direction string

const (
	DirectionOut Direction = "OUT"
	DirectionIn  Direction = "IN"
)

// FieldSpec describes one scalar field of an entity type.
type FieldSpec struct {
	Name            string
	ValueType       ValueType
	IsUnique        bool
	IsAutoGenerated bool
}

// RelationshipSpec describes a relationship field linking an entity type to
// a target type through edges of RelType.
type RelationshipSpec struct {
	FieldName  string
	TargetType string
	RelType    string
	Direction  Direction
}

// EntityType is the constraint model for one entity type.
type EntityType struct {
	Name          string
	Fields        map[string]*FieldSpec
	UniqueFields  []string
	AutoIDField   string
	Relationships map[string]*RelationshipSpec

	fieldOrder        []string
	relationshipOrder []string
}

// Field returns the named field spec.
func (et *EntityType) Field(name string) (*FieldSpec, bool) {
	f, ok := et.Fields[name]
	return f, ok
}

// IsUniqueField reports whether name is a unique field of the type.
func (et *EntityType) IsUniqueField(name string) bool {
	f, ok := et.Fields[name]
	return ok && f.IsUnique
}

// Relationship returns the relationship declared under fieldName.
func (et *EntityType) Relationship(fieldName string) (*RelationshipSpec, bool) {
	r, ok := et.Relationships[fieldName]
	return r, ok
}

// OrderedFields returns field specs in declaration order.
func (et *EntityType) OrderedFields() []*FieldSpec {
	out := make([]*FieldSpec, 0, len(et.fieldOrder))
	for _, name := range et.fieldOrder {
		out = append(out, et.Fields[name])
	}
	return out
}

// OrderedRelationships returns relationship specs in declaration order.
func (et *EntityType) OrderedRelationships() []*RelationshipSpec {
	out := make([]*RelationshipSpec, 0, len(et.relationshipOrder))
	for _, name := range et.relationshipOrder {
		out = append(out, et.Relationships[name])
	}
	return out
}

// Model is the immutable set of entity types loaded at startup.
type Model struct {
	types map[string]*EntityType
	order []string
}

// Type returns the named entity type.
func (m *Model) Type(name string) (*EntityType, bool) {
	if m == nil {
		return nil, false
	}
	et, ok := m.types[name]
	return et, ok
}

// Types returns all entity types in declaration order.
func (m *Model) Types() []*EntityType {
	out := make([]*EntityType, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.types[name])
	}
	return out
}

// TypeNames returns entity type names sorted alphabetically.
func (m *Model) TypeNames() []string {
	names := append([]string(nil), m.order...)
	sort.Strings(names)
	return names
}
