// Package predicate builds the lookup predicate used to find the entity a
// connect-or-create occurrence refers to. A predicate is a conjunction of
// equality conditions on unique fields, nothing more.
package predicate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"graphdb-graphql/internal/mutationerr"
	"graphdb-graphql/internal/schema"
)

// Condition is one field = value constraint.
type Condition struct {
	Field string
	Value any
}

// Predicate is an AND of conditions sorted by field name.
type Predicate struct {
	EntityType string
	Conditions []Condition
}

// Build validates where against the entity type and returns its predicate.
// Every key must be a unique field of the type and at least one key is
// required.
func Build(et *schema.EntityType, where map[string]any) (Predicate, error) {
	if et == nil {
		return Predicate{}, mutationerr.NewSchemaMismatch("", "", "unknown entity type")
	}
	if len(where) == 0 {
		return Predicate{}, mutationerr.NewInvalidInput(et.Name, "", "connect-or-create requires at least one match field")
	}

	fields := make([]string, 0, len(where))
	for field := range where {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	p := Predicate{EntityType: et.Name, Conditions: make([]Condition, 0, len(fields))}
	for _, field := range fields {
		if _, ok := et.Field(field); !ok {
			return Predicate{}, mutationerr.NewSchemaMismatch(et.Name, field, "unknown field")
		}
		if !et.IsUniqueField(field) {
			return Predicate{}, mutationerr.NewSchemaMismatch(et.Name, field, "not a unique field and cannot be used as a match key")
		}
		value := where[field]
		if value == nil {
			return Predicate{}, mutationerr.NewInvalidInput(et.Name, field, "match value cannot be null")
		}
		p.Conditions = append(p.Conditions, Condition{Field: field, Value: value})
	}
	return p, nil
}

// Fields returns the condition field names in order.
func (p Predicate) Fields() []string {
	out := make([]string, len(p.Conditions))
	for i, c := range p.Conditions {
		out[i] = c.Field
	}
	return out
}

// Values returns the conditions as a map.
func (p Predicate) Values() map[string]any {
	out := make(map[string]any, len(p.Conditions))
	for _, c := range p.Conditions {
		out[c.Field] = c.Value
	}
	return out
}

// Matches reports whether every condition holds for fields.
func (p Predicate) Matches(fields map[string]any) bool {
	if len(p.Conditions) == 0 {
		return false
	}
	for _, c := range p.Conditions {
		v, ok := fields[c.Field]
		if !ok || !Equal(v, c.Value) {
			return false
		}
	}
	return true
}

func (p Predicate) String() string {
	parts := make([]string, len(p.Conditions))
	for i, c := range p.Conditions {
		parts[i] = fmt.Sprintf("%s=%v", c.Field, c.Value)
	}
	return p.EntityType + "{" + strings.Join(parts, ",") + "}"
}

// Equal compares two property values. Numbers compare by value regardless
// of their Go type so an Int argument matches a stored int64 or float64.
func Equal(a, b any) bool {
	return CanonicalValue(a) == CanonicalValue(b)
}

// CanonicalValue renders a property value as a type-tagged string. Values
// that are Equal render identically, which lets backends key unique indexes
// on it.
func CanonicalValue(v any) string {
	if n, ok := canonicalNumber(v); ok {
		return "n:" + n
	}
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return "s:" + val
	case bool:
		return "b:" + strconv.FormatBool(val)
	default:
		return fmt.Sprintf("v:%v", val)
	}
}

// canonicalNumber formats integers exactly. A float with no fractional part
// that fits in int64 takes the integer form so 1 and 1.0 agree.
func canonicalNumber(v any) (string, bool) {
	switch n := v.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), true
	case int8:
		return strconv.FormatInt(int64(n), 10), true
	case int16:
		return strconv.FormatInt(int64(n), 10), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint:
		return strconv.FormatUint(uint64(n), 10), true
	case uint8:
		return strconv.FormatUint(uint64(n), 10), true
	case uint16:
		return strconv.FormatUint(uint64(n), 10), true
	case uint32:
		return strconv.FormatUint(uint64(n), 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	case float32:
		return canonicalFloat(float64(n)), true
	case float64:
		return canonicalFloat(n), true
	}
	return "", false
}

func canonicalFloat(f float64) string {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return strconv.FormatInt(int64(f), 10)
	}
	if f == math.Trunc(f) && f >= 0 && f < math.MaxUint64 {
		return strconv.FormatUint(uint64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
