// Package naming derives GraphQL and graph-database names from the entity
// types declared in the schema file: plural mutation names, input type
// names and default relationship types.
package naming

// Config lets operators correct the inflection rules for their vocabulary.
// Keys match case-insensitively.
type Config struct {
	// singular -> plural, e.g. {"Person": "People"}
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`
	// plural -> singular, used for relationship fields, e.g. {"crew": "crewMember"}
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`
}

func DefaultConfig() Config {
	return Config{
		PluralOverrides:   map[string]string{},
		SingularOverrides: map[string]string{},
	}
}
