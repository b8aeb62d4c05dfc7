package naming

import "strings"

// graphqlReservedTypeWords contains GraphQL keywords, built-in types and the
// root operation types that entity types must not shadow.
var graphqlReservedTypeWords = map[string]bool{
	"query":        true,
	"mutation":     true,
	"subscription": true,
	"type":         true,
	"schema":       true,
	"scalar":       true,
	"enum":         true,
	"input":        true,
	"interface":    true,
	"union":        true,
	"fragment":     true,
	"directive":    true,
	"extend":       true,
	"implements":   true,
	"on":           true,

	"int":     true,
	"float":   true,
	"string":  true,
	"boolean": true,
	"id":      true,

	"true":  true,
	"false": true,
	"null":  true,
}

// generatedTypeSuffixes are appended to entity type names by the GraphQL
// schema builder. An entity type ending in one of them could collide with a
// generated input or payload type.
var generatedTypeSuffixes = []string{
	"UniqueWhere",
	"ConnectOrCreateWhere",
	"ConnectOrCreateInput",
	"ConnectOrCreatePayload",
	"OnCreateNode",
	"OnCreateInput",
	"RelationInput",
	"CreateInput",
}

// IsReservedTypeName reports whether name cannot be used as an entity type.
func IsReservedTypeName(name string) bool {
	lowerName := strings.ToLower(name)
	if strings.HasPrefix(lowerName, "__") {
		return true
	}
	if graphqlReservedTypeWords[lowerName] {
		return true
	}
	for _, suffix := range generatedTypeSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// IsReservedFieldName reports whether name cannot be used as a field or
// relationship name.
func IsReservedFieldName(name string) bool {
	return strings.HasPrefix(name, "__")
}
