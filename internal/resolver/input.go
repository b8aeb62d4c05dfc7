package resolver

import (
	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/predicate"
)

// Mode selects how an occurrence finds its entity.
type Mode int

const (
	// ModeConnectOrCreate matches on the where clause and creates only when
	// nothing matches.
	ModeConnectOrCreate Mode = iota
	// ModeCreate always creates. Used for the nested create mutations.
	ModeCreate
)

func (m Mode) String() string {
	if m == ModeCreate {
		return "create"
	}
	return "connect_or_create"
}

// MutationInputNode is one occurrence in a nested mutation input tree.
// Nodes are treated as immutable once built; the engine never writes to the
// maps they carry.
type MutationInputNode struct {
	EntityType string
	// Relationship is the field on the parent occurrence's type this node
	// was nested under. Empty for a root occurrence.
	Relationship string
	Mode         Mode
	Where        map[string]any
	OnCreate     map[string]any
	Children     []*MutationInputNode
}

// ConnectOrCreate builds a connect-or-create occurrence.
func ConnectOrCreate(entityType string, where, onCreate map[string]any, children ...*MutationInputNode) *MutationInputNode {
	return &MutationInputNode{
		EntityType: entityType,
		Mode:       ModeConnectOrCreate,
		Where:      where,
		OnCreate:   onCreate,
		Children:   children,
	}
}

// Create builds an occurrence that always creates an entity from fields.
func Create(entityType string, fields map[string]any, children ...*MutationInputNode) *MutationInputNode {
	return &MutationInputNode{
		EntityType: entityType,
		Mode:       ModeCreate,
		OnCreate:   fields,
		Children:   children,
	}
}

// Under returns a copy of n nested under the parent's relationship field.
func (n *MutationInputNode) Under(relationship string) *MutationInputNode {
	cp := *n
	cp.Relationship = relationship
	return &cp
}

// ResolvedEntity is the outcome of resolving one occurrence. Children mirror
// the input tree's order.
type ResolvedEntity struct {
	Identity     string
	EntityType   string
	Relationship string
	WasCreated   bool
	Fields       map[string]any
	Children     []*ResolvedEntity
}

func newResolvedEntity(node *MutationInputNode, ent graphdb.Entity, created bool) *ResolvedEntity {
	return &ResolvedEntity{
		Identity:     ent.ID,
		EntityType:   node.EntityType,
		Relationship: node.Relationship,
		WasCreated:   created,
		Fields:       ent.Fields,
	}
}

// Find returns the first descendant (depth-first, including r) of the given
// type whose field equals value.
func (r *ResolvedEntity) Find(entityType, field string, value any) *ResolvedEntity {
	if r == nil {
		return nil
	}
	if r.EntityType == entityType && predicate.Equal(r.Fields[field], value) {
		return r
	}
	for _, c := range r.Children {
		if found := c.Find(entityType, field, value); found != nil {
			return found
		}
	}
	return nil
}
