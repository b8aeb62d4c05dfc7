package naming

import (
	"log/slog"
	"strings"
	"unicode"
)

// Namer derives every generated name from an entity type or relationship
// field name.
type Namer struct {
	config Config
	logger *slog.Logger
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config: cfg,
		logger: logger,
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// PluralTypeName pluralizes an entity type name.
// Example: "Movie" -> "Movies", "Person" -> "People"
func (n *Namer) PluralTypeName(typeName string) string {
	plural := n.Pluralize(typeName)
	if plural == "" {
		return typeName
	}
	return strings.ToUpper(plural[:1]) + plural[1:]
}

// LookupFieldName returns the query field used for unique lookups.
// Example: "Movie" -> "movie"
func (n *Namer) LookupFieldName(typeName string) string {
	return LowerFirst(typeName)
}

// ConnectOrCreateFieldName returns the root connect-or-create mutation name.
// Example: "Movie" -> "connectOrCreateMovie"
func (n *Namer) ConnectOrCreateFieldName(typeName string) string {
	return "connectOrCreate" + typeName
}

// CreateFieldName returns the root bulk create mutation name.
// Example: "Movie" -> "createMovies"
func (n *Namer) CreateFieldName(typeName string) string {
	return "create" + n.PluralTypeName(typeName)
}

// RelationshipType derives the default edge type for a relationship field.
// Example: "actors" -> "HAS_ACTOR", "releaseDates" -> "HAS_RELEASE_DATE"
func (n *Namer) RelationshipType(fieldName string) string {
	singular := n.Singularize(fieldName)
	relType := "HAS_" + ToUpperSnake(singular)
	n.logger.Debug("derived relationship type",
		slog.String("field", fieldName),
		slog.String("type", relType),
	)
	return relType
}

// LowerFirst lowercases the first rune of s.
func LowerFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// ToUpperSnake converts camelCase, PascalCase or kebab-case to UPPER_SNAKE.
func ToUpperSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '_':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteRune('_')
			}
			continue
		case unicode.IsUpper(r) && i > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if (unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)) &&
				!strings.HasSuffix(b.String(), "_") {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return strings.Trim(b.String(), "_")
}
