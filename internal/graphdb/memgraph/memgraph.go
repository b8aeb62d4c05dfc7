// Package memgraph is an in-process graph store. Transactions see committed
// data plus their own pending writes. Unique values are reserved when an
// entity is created, so a value held by another live transaction conflicts
// just like a committed one.
package memgraph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/predicate"
	"graphdb-graphql/internal/schema"
)

// ErrClosed is returned by a closed store.
var ErrClosed = errors.New("memgraph: store closed")

// Edge is a directed relationship between two node ids.
type Edge struct {
	From string
	To   string
	Type string
}

type node struct {
	id     string
	label  string
	fields map[string]any
}

type uniqueKey struct {
	label string
	field string
	value string
}

// Store is safe for concurrent use by many transactions.
type Store struct {
	mu       sync.Mutex
	nextID   int64
	nodes    map[string]*node
	order    []string
	edges    []Edge
	unique   map[uniqueKey]string
	reserved map[uniqueKey]*Tx
	closed   bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		nodes:    make(map[string]*node),
		unique:   make(map[uniqueKey]string),
		reserved: make(map[uniqueKey]*Tx),
	}
}

// BeginTx starts a transaction.
func (s *Store) BeginTx(ctx context.Context) (graphdb.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return &Tx{store: s, nodes: make(map[string]*node), keys: make(map[uniqueKey]string)}, nil
}

// EnsureConstraints is a no-op; unique indexes follow the entity type passed
// to CreateEntity.
func (s *Store) EnsureConstraints(context.Context, *schema.Model) error {
	return nil
}

// Ping reports whether the store is open.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close rejects further transactions.
func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Nodes returns the committed entities with the given label in creation
// order.
func (s *Store) Nodes(label string) []graphdb.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []graphdb.Entity
	for _, id := range s.order {
		n := s.nodes[id]
		if n.label == label {
			out = append(out, n.entity())
		}
	}
	return out
}

// Edges returns the committed edges in creation order.
func (s *Store) Edges() []Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Edge(nil), s.edges...)
}

func (s *Store) newIDLocked() string {
	s.nextID++
	return "n" + strconv.FormatInt(s.nextID, 10)
}

func (n *node) entity() graphdb.Entity {
	return graphdb.Entity{ID: n.id, Type: n.label, Fields: graphdb.CloneFields(n.fields)}
}

// Tx is a memgraph transaction.
type Tx struct {
	store *Store
	nodes map[string]*node
	order []string
	edges []Edge
	keys  map[uniqueKey]string
	done  bool
}

// FindMatching returns committed and own pending entities of et matching
// pred, oldest first.
func (t *Tx) FindMatching(ctx context.Context, et *schema.EntityType, pred predicate.Predicate) ([]graphdb.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.done {
		return nil, graphdb.ErrTxDone
	}

	var out []graphdb.Entity
	for _, id := range s.order {
		n := s.nodes[id]
		if n.label == et.Name && pred.Matches(n.fields) {
			out = append(out, n.entity())
		}
	}
	for _, id := range t.order {
		n := t.nodes[id]
		if n.label == et.Name && pred.Matches(n.fields) {
			out = append(out, n.entity())
		}
	}
	return out, nil
}

// CreateEntity reserves every unique value of the new entity and adds it to
// the transaction.
func (t *Tx) CreateEntity(ctx context.Context, et *schema.EntityType, fields map[string]any) (graphdb.Entity, error) {
	if err := ctx.Err(); err != nil {
		return graphdb.Entity{}, err
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.done {
		return graphdb.Entity{}, graphdb.ErrTxDone
	}

	conds := graphdb.UniqueValues(et, fields)
	keys := make([]uniqueKey, 0, len(conds))
	for _, c := range conds {
		key := uniqueKey{label: et.Name, field: c.Field, value: predicate.CanonicalValue(c.Value)}
		_, committed := s.unique[key]
		_, held := s.reserved[key]
		if committed || held {
			return graphdb.Entity{}, &graphdb.ConstraintViolationError{
				EntityType: et.Name,
				Field:      c.Field,
				Value:      c.Value,
			}
		}
		keys = append(keys, key)
	}

	n := &node{id: s.newIDLocked(), label: et.Name, fields: graphdb.CloneFields(fields)}
	for _, key := range keys {
		s.reserved[key] = t
		t.keys[key] = n.id
	}
	t.nodes[n.id] = n
	t.order = append(t.order, n.id)
	return n.entity(), nil
}

// CreateRelationship records an edge between two visible entities. An edge
// of the same type between the same pair is not recorded twice.
func (t *Tx) CreateRelationship(ctx context.Context, from, to graphdb.Entity, relType string, dir schema.Direction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.done {
		return graphdb.ErrTxDone
	}
	for _, id := range []string{from.ID, to.ID} {
		if _, ok := s.nodes[id]; ok {
			continue
		}
		if _, ok := t.nodes[id]; ok {
			continue
		}
		return fmt.Errorf("%w: %s", graphdb.ErrEntityNotFound, id)
	}

	edge := Edge{From: from.ID, To: to.ID, Type: relType}
	if dir == schema.DirectionIn {
		edge.From, edge.To = to.ID, from.ID
	}
	if containsEdge(s.edges, edge) || containsEdge(t.edges, edge) {
		return nil
	}
	t.edges = append(t.edges, edge)
	return nil
}

func containsEdge(edges []Edge, e Edge) bool {
	for _, existing := range edges {
		if existing == e {
			return true
		}
	}
	return false
}

// Commit publishes the transaction's nodes, edges and unique values.
func (t *Tx) Commit(context.Context) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.done {
		return graphdb.ErrTxDone
	}
	t.done = true

	for _, id := range t.order {
		s.nodes[id] = t.nodes[id]
		s.order = append(s.order, id)
	}
	for _, edge := range t.edges {
		if !containsEdge(s.edges, edge) {
			s.edges = append(s.edges, edge)
		}
	}
	for key, id := range t.keys {
		s.unique[key] = id
		delete(s.reserved, key)
	}
	return nil
}

// Rollback discards the transaction and releases its reservations.
func (t *Tx) Rollback(context.Context) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.done {
		return graphdb.ErrTxDone
	}
	t.done = true
	for key := range t.keys {
		delete(s.reserved, key)
	}
	return nil
}
