package naming

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Pluralize returns the plural of word. An override whose key matches word
// case-insensitively wins over the inflection rules.
func (n *Namer) Pluralize(word string) string {
	return inflect(word, n.config.PluralOverrides, inflection.Plural)
}

// Singularize is the inverse of Pluralize and uses SingularOverrides.
func (n *Namer) Singularize(word string) string {
	return inflect(word, n.config.SingularOverrides, inflection.Singular)
}

func inflect(word string, overrides map[string]string, rules func(string) string) string {
	if v, ok := overrides[word]; ok {
		return v
	}
	for k, v := range overrides {
		if strings.EqualFold(k, word) {
			return matchInitialCase(word, v)
		}
	}
	return rules(word)
}

// matchInitialCase gives s the case of ref's first rune, so an override
// written for "person" also serves the type name "Person".
func matchInitialCase(ref, s string) string {
	if ref == "" || s == "" {
		return s
	}
	runes := []rune(s)
	if unicode.IsUpper([]rune(ref)[0]) {
		runes[0] = unicode.ToUpper(runes[0])
	} else {
		runes[0] = unicode.ToLower(runes[0])
	}
	return string(runes)
}
