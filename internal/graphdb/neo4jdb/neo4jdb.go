// Package neo4jdb stores the graph in Neo4j. Each transaction runs in its
// own write session; unique fields are backed by node property uniqueness
// constraints created by EnsureConstraints.
package neo4jdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"github.com/saulfrancisco-ruizacevedo/gocypher"

	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/logging"
	"graphdb-graphql/internal/predicate"
	"graphdb-graphql/internal/schema"
)

const constraintValidationFailed = "Neo.ClientError.Schema.ConstraintValidationFailed"

// Store is a graphdb.Store backed by a Neo4j driver.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// Open creates a driver for uri. It does not contact the server; use Ping.
func Open(uri, username, password, database string, configurers ...func(*config.Config)) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""), configurers...)
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	return &Store{driver: driver, database: database}, nil
}

// BeginTx opens a write session and starts an explicit transaction in it.
func (s *Store) BeginTx(ctx context.Context) (graphdb.Tx, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return nil, fmt.Errorf("begin neo4j transaction: %w", err)
	}
	return &Tx{session: session, tx: tx}, nil
}

// EnsureConstraints creates a uniqueness constraint for every unique field
// of every type in model. Existing constraints are left alone.
func (s *Store) EnsureConstraints(ctx context.Context, model *schema.Model) error {
	logger := logging.FromContext(ctx)
	for _, name := range model.TypeNames() {
		et, _ := model.Type(name)
		for _, f := range et.OrderedFields() {
			if !f.IsUnique {
				continue
			}
			_, err := neo4j.ExecuteQuery(ctx, s.driver, constraintStatement(et.Name, f.Name), nil,
				neo4j.EagerResultTransformer,
				neo4j.ExecuteQueryWithDatabase(s.database),
			)
			if err != nil {
				return fmt.Errorf("create constraint on %s.%s: %w", et.Name, f.Name, err)
			}
			logger.Debug("ensured uniqueness constraint",
				slog.String("label", et.Name),
				slog.String("property", f.Name),
			)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Tx wraps an explicit Neo4j transaction and the session that owns it.
type Tx struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
	done    bool
}

func (t *Tx) FindMatching(ctx context.Context, et *schema.EntityType, pred predicate.Predicate) ([]graphdb.Entity, error) {
	if t.done {
		return nil, graphdb.ErrTxDone
	}
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", et.Name).WithProperties(pred.Values())).
		Return("n").
		Build()
	if err != nil {
		return nil, fmt.Errorf("build match query: %w", err)
	}
	records, err := t.run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	out := make([]graphdb.Entity, 0, len(records))
	for _, record := range records {
		ent, err := entityFromRecord(record, "n", et.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, ent)
	}
	return out, nil
}

func (t *Tx) CreateEntity(ctx context.Context, et *schema.EntityType, fields map[string]any) (graphdb.Entity, error) {
	if t.done {
		return graphdb.Entity{}, graphdb.ErrTxDone
	}
	query, params, err := gocypher.NewQueryBuilder().
		Create(gocypher.N("n", et.Name).WithProperties(fields)).
		Return("n").
		Build()
	if err != nil {
		return graphdb.Entity{}, fmt.Errorf("build create query: %w", err)
	}
	records, err := t.run(ctx, query, params)
	if err != nil {
		if cv := classifyError(et.Name, fields, err); cv != nil {
			return graphdb.Entity{}, cv
		}
		return graphdb.Entity{}, err
	}
	if len(records) != 1 {
		return graphdb.Entity{}, fmt.Errorf("create %s returned %d records", et.Name, len(records))
	}
	return entityFromRecord(records[0], "n", et.Name)
}

func (t *Tx) CreateRelationship(ctx context.Context, from, to graphdb.Entity, relType string, dir schema.Direction) error {
	if t.done {
		return graphdb.ErrTxDone
	}
	if dir == schema.DirectionIn {
		from, to = to, from
	}
	query, params, err := relationshipQuery(from.ID, to.ID, relType)
	if err != nil {
		return fmt.Errorf("build relationship query: %w", err)
	}
	records, err := t.run(ctx, query, params)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: %s or %s", graphdb.ErrEntityNotFound, from.ID, to.ID)
	}
	return nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return graphdb.ErrTxDone
	}
	t.done = true
	defer t.session.Close(context.WithoutCancel(ctx))
	if err := t.tx.Commit(ctx); err != nil {
		if cv := classifyError("", nil, err); cv != nil {
			return cv
		}
		return fmt.Errorf("commit neo4j transaction: %w", err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return graphdb.ErrTxDone
	}
	t.done = true
	defer t.session.Close(context.WithoutCancel(ctx))
	return t.tx.Rollback(ctx)
}

func (t *Tx) run(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	result, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}

func entityFromRecord(record *neo4j.Record, key, label string) (graphdb.Entity, error) {
	value, ok := record.Get(key)
	if !ok {
		return graphdb.Entity{}, fmt.Errorf("could not find return value '%s' in query result", key)
	}
	node, ok := value.(neo4j.Node)
	if !ok {
		return graphdb.Entity{}, fmt.Errorf("return value '%s' is not a node", key)
	}
	return entityFromNode(node, label), nil
}

func entityFromNode(node neo4j.Node, label string) graphdb.Entity {
	return graphdb.Entity{ID: node.ElementId, Type: label, Fields: graphdb.CloneFields(node.Props)}
}

// constraintStatement is the DDL for a uniqueness constraint on label.field.
func constraintStatement(label, field string) string {
	name := strings.ToLower(label) + "_" + field + "_unique"
	return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
		quoteIdentifier(name), quoteIdentifier(label), quoteIdentifier(field))
}

// matchByElementID binds a and b by element id. gocypher has no working
// WHERE clause, so this part of the relationship query is fixed text.
const matchByElementID = "MATCH (a), (b) WHERE elementId(a) = $from AND elementId(b) = $to"

// relationshipQuery merges one relType edge from a to b, so linking the same
// pair twice leaves a single relationship. Relationship types cannot be
// parameterized, so relType is quoted into the pattern.
func relationshipQuery(fromID, toID, relType string) (string, map[string]any, error) {
	merge, params, err := gocypher.NewQueryBuilder().
		Merge(gocypher.NRef("a"), gocypher.R("r", quoteIdentifier(relType)).To(), gocypher.NRef("b")).
		Return("r").
		Build()
	if err != nil {
		return "", nil, err
	}
	params["from"] = fromID
	params["to"] = toID
	return matchByElementID + "\n" + merge, params, nil
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Neo4j 5 reports "Node(12) already exists with label `Movie` and property `title` = 'X'".
var violationPattern = regexp.MustCompile("label `([^`]+)` and propert(?:y|ies) `([^`]+)`")

// classifyError converts a uniqueness constraint failure into a
// *graphdb.ConstraintViolationError. Neo4j terminates the transaction on
// such a failure, so TxAborted is always set. It returns nil for other errors.
func classifyError(entityType string, fields map[string]any, err error) *graphdb.ConstraintViolationError {
	var neoErr *neo4j.Neo4jError
	if !errors.As(err, &neoErr) || neoErr.Code != constraintValidationFailed {
		return nil
	}
	cv := &graphdb.ConstraintViolationError{
		EntityType: entityType,
		TxAborted:  true,
		Err:        err,
	}
	if m := violationPattern.FindStringSubmatch(neoErr.Msg); m != nil {
		if cv.EntityType == "" {
			cv.EntityType = m[1]
		}
		cv.Field = m[2]
		cv.Value = fields[m[2]]
	}
	return cv
}
