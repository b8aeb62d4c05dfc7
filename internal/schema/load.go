package schema

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"graphdb-graphql/internal/naming"
)

// Definition is the YAML form of the constraint model.
//
//	types:
//	  - name: Movie
//	    fields:
//	      - {name: id, type: ID, autogenerate: true}
//	      - {name: title, type: String, unique: true}
//	    relationships:
//	      - {field: actors, target: Actor, type: ACTED_IN, direction: IN}
type Definition struct {
	Types []TypeDefinition `yaml:"types"`
}

// TypeDefinition declares one entity type.
type TypeDefinition struct {
	Name          string                   `yaml:"name"`
	Fields        []FieldDefinition        `yaml:"fields"`
	Relationships []RelationshipDefinition `yaml:"relationships"`
}

// FieldDefinition declares one scalar field. Unique defaults to the value of
// Autogenerate when omitted.
type FieldDefinition struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	Unique       *bool  `yaml:"unique"`
	Autogenerate bool   `yaml:"autogenerate"`
}

// RelationshipDefinition declares one relationship field. Type defaults to
// a name derived from Field and Direction defaults to OUT.
type RelationshipDefinition struct {
	Field     string `yaml:"field"`
	Target    string `yaml:"target"`
	Type      string `yaml:"type"`
	Direction string `yaml:"direction"`
}

var (
	typeNamePattern  = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*$`)
	fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	relTypePattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// LoadFile reads and builds a model from a YAML schema file.
func LoadFile(path string, namer *naming.Namer) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %q: %w", path, err)
	}
	model, err := Parse(data, namer)
	if err != nil {
		return nil, fmt.Errorf("schema file %q: %w", path, err)
	}
	return model, nil
}

// Parse decodes a YAML definition strictly and builds a model from it.
func Parse(data []byte, namer *naming.Namer) (*Model, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to decode schema definition: %w", err)
	}
	return Build(def, namer)
}

// Build validates a definition and returns the model. Every violated
// invariant is a load error.
func Build(def Definition, namer *naming.Namer) (*Model, error) {
	if namer == nil {
		namer = naming.Default()
	}
	if len(def.Types) == 0 {
		return nil, fmt.Errorf("schema declares no entity types")
	}

	m := &Model{types: make(map[string]*EntityType, len(def.Types))}
	for _, td := range def.Types {
		et, err := buildType(td)
		if err != nil {
			return nil, err
		}
		if _, dup := m.types[et.Name]; dup {
			return nil, fmt.Errorf("entity type %q declared more than once", et.Name)
		}
		m.types[et.Name] = et
		m.order = append(m.order, et.Name)
	}

	// Relationships are resolved once every type is known so they may point
	// forward or at the declaring type itself.
	for _, td := range def.Types {
		et := m.types[td.Name]
		for _, rd := range td.Relationships {
			rel, err := buildRelationship(m, et, rd, namer)
			if err != nil {
				return nil, err
			}
			et.Relationships[rel.FieldName] = rel
			et.relationshipOrder = append(et.relationshipOrder, rel.FieldName)
		}
	}
	return m, nil
}

func buildType(td TypeDefinition) (*EntityType, error) {
	if !typeNamePattern.MatchString(td.Name) {
		return nil, fmt.Errorf("entity type name %q must be PascalCase", td.Name)
	}
	if naming.IsReservedTypeName(td.Name) {
		return nil, fmt.Errorf("entity type name %q is reserved", td.Name)
	}
	if len(td.Fields) == 0 {
		return nil, fmt.Errorf("entity type %q declares no fields", td.Name)
	}

	et := &EntityType{
		Name:          td.Name,
		Fields:        make(map[string]*FieldSpec, len(td.Fields)),
		Relationships: make(map[string]*RelationshipSpec),
	}
	for _, fd := range td.Fields {
		if !fieldNamePattern.MatchString(fd.Name) || naming.IsReservedFieldName(fd.Name) {
			return nil, fmt.Errorf("%s: invalid field name %q", td.Name, fd.Name)
		}
		if _, dup := et.Fields[fd.Name]; dup {
			return nil, fmt.Errorf("%s: field %q declared more than once", td.Name, fd.Name)
		}
		vt := ValueType(fd.Type)
		if !vt.Valid() {
			return nil, fmt.Errorf("%s.%s: unsupported type %q", td.Name, fd.Name, fd.Type)
		}

		unique := fd.Autogenerate
		if fd.Unique != nil {
			unique = *fd.Unique
		}
		if fd.Autogenerate && !unique {
			return nil, fmt.Errorf("%s.%s: auto-generated fields must be unique", td.Name, fd.Name)
		}
		if fd.Autogenerate {
			if et.AutoIDField != "" {
				return nil, fmt.Errorf("%s: only one auto-generated field is allowed (%q and %q)",
					td.Name, et.AutoIDField, fd.Name)
			}
			if vt != ValueID && vt != ValueString {
				return nil, fmt.Errorf("%s.%s: auto-generated fields must be of type ID or String", td.Name, fd.Name)
			}
			et.AutoIDField = fd.Name
		}

		et.Fields[fd.Name] = &FieldSpec{
			Name:            fd.Name,
			ValueType:       vt,
			IsUnique:        unique,
			IsAutoGenerated: fd.Autogenerate,
		}
		et.fieldOrder = append(et.fieldOrder, fd.Name)
		if unique {
			et.UniqueFields = append(et.UniqueFields, fd.Name)
		}
	}
	return et, nil
}

func buildRelationship(m *Model, et *EntityType, rd RelationshipDefinition, namer *naming.Namer) (*RelationshipSpec, error) {
	if !fieldNamePattern.MatchString(rd.Field) || naming.IsReservedFieldName(rd.Field) {
		return nil, fmt.Errorf("%s: invalid relationship field name %q", et.Name, rd.Field)
	}
	if _, clash := et.Fields[rd.Field]; clash {
		return nil, fmt.Errorf("%s.%s: relationship field collides with a scalar field", et.Name, rd.Field)
	}
	if _, dup := et.Relationships[rd.Field]; dup {
		return nil, fmt.Errorf("%s.%s: relationship declared more than once", et.Name, rd.Field)
	}
	if _, ok := m.types[rd.Target]; !ok {
		return nil, fmt.Errorf("%s.%s: unknown target type %q", et.Name, rd.Field, rd.Target)
	}

	relType := rd.Type
	if relType == "" {
		relType = namer.RelationshipType(rd.Field)
	}
	if !relTypePattern.MatchString(relType) {
		return nil, fmt.Errorf("%s.%s: invalid relationship type %q", et.Name, rd.Field, relType)
	}

	dir := Direction(rd.Direction)
	switch dir {
	case "":
		dir = DirectionOut
	case DirectionOut, DirectionIn:
	default:
		return nil, fmt.Errorf("%s.%s: direction must be OUT or IN, got %q", et.Name, rd.Field, rd.Direction)
	}

	return &RelationshipSpec{
		FieldName:  rd.Field,
		TargetType: rd.Target,
		RelType:    relType,
		Direction:  dir,
	}, nil
}
