package testutil

import (
	"strconv"
	"sync/atomic"

	"graphdb-graphql/internal/idgen"
	"graphdb-graphql/internal/schema"
)

// SequenceIDs returns a generator yielding prefix-1, prefix-2, ... shared
// across entity types, for tests that assert on generated identifiers.
func SequenceIDs(prefix string) idgen.Generator {
	var n atomic.Int64
	return idgen.GeneratorFunc(func(*schema.EntityType) (string, error) {
		return prefix + "-" + strconv.FormatInt(n.Add(1), 10), nil
	})
}
