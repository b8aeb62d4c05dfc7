// Package sqlgraph stores the graph in a MySQL-compatible database such as
// TiDB. Nodes keep their properties in a JSON column, and every unique
// property value is claimed by a row in a keyed table so the database
// rejects duplicates across concurrent transactions.
package sqlgraph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"graphdb-graphql/internal/dbexec"
	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/logging"
	"graphdb-graphql/internal/predicate"
	"graphdb-graphql/internal/schema"
)

const (
	errDuplicateEntry   = 1062
	errNoReferencedRow  = 1452
	errNoReferencedRow2 = 1216
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is a graphdb.Store over a *sql.DB opened with the mysql driver.
type Store struct {
	exec *dbexec.StandardExecutor
}

// New wraps db. The caller owns pool configuration; Close closes db.
func New(db *sql.DB) *Store {
	return &Store{exec: dbexec.NewStandardExecutor(db)}
}

func (s *Store) BeginTx(ctx context.Context) (graphdb.Tx, error) {
	tx, err := s.exec.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sql transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// EnsureConstraints creates the graph tables. Uniqueness for every type is
// enforced by the same keyed table, so model is only used for logging.
func (s *Store) EnsureConstraints(ctx context.Context, model *schema.Model) error {
	for _, stmt := range schemaStatements {
		if _, err := s.exec.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create graph tables: %w", err)
		}
	}
	logging.FromContext(ctx).Debug("ensured graph tables",
		slog.Int("entity_types", len(model.TypeNames())),
	)
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.exec.Ping(ctx)
}

func (s *Store) Close(context.Context) error {
	return s.exec.Close()
}

// Tx is a sqlgraph transaction.
type Tx struct {
	tx *dbexec.TxExecutor
}

func (t *Tx) FindMatching(ctx context.Context, et *schema.EntityType, pred predicate.Predicate) ([]graphdb.Entity, error) {
	planned, err := PlanFind(et.Name, pred)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		return nil, mapTxError(err)
	}
	defer rows.Close()

	var out []graphdb.Entity
	for rows.Next() {
		var id string
		var props []byte
		if err := rows.Scan(&id, &props); err != nil {
			return nil, err
		}
		fields, err := decodeProps(props)
		if err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", et.Name, id, err)
		}
		out = append(out, graphdb.Entity{ID: id, Type: et.Name, Fields: fields})
	}
	return out, rows.Err()
}

// CreateEntity inserts the node and its unique keys under a savepoint. A
// duplicate key rolls back to the savepoint, leaving the transaction usable
// for a re-match.
func (t *Tx) CreateEntity(ctx context.Context, et *schema.EntityType, fields map[string]any) (graphdb.Entity, error) {
	props, err := encodeProps(fields)
	if err != nil {
		return graphdb.Entity{}, fmt.Errorf("encode %s: %w", et.Name, err)
	}
	id := uuid.NewString()

	err = t.tx.Savepoint(ctx, savepointID, func(ctx context.Context) error {
		node, err := PlanInsertNode(id, et.Name, props)
		if err != nil {
			return err
		}
		if _, err := t.tx.ExecContext(ctx, node.SQL, node.Args...); err != nil {
			return err
		}
		for _, c := range graphdb.UniqueValues(et, fields) {
			key, err := PlanInsertKey(et.Name, c.Field, c.Value, id)
			if err != nil {
				return err
			}
			if _, err := t.tx.ExecContext(ctx, key.SQL, key.Args...); err != nil {
				if isMySQLError(err, errDuplicateEntry) {
					return &graphdb.ConstraintViolationError{
						EntityType: et.Name,
						Field:      c.Field,
						Value:      c.Value,
						Err:        err,
					}
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		var rbErr *dbexec.RollbackError
		if errors.As(err, &rbErr) {
			if cv, ok := graphdb.AsConstraintViolation(err); ok {
				cv.TxAborted = true
			}
			logging.FromContext(ctx).Warn("failed to roll back to savepoint",
				slog.String("error", rbErr.Err.Error()),
			)
		}
		return graphdb.Entity{}, mapTxError(err)
	}
	return graphdb.Entity{ID: id, Type: et.Name, Fields: graphdb.CloneFields(fields)}, nil
}

func (t *Tx) CreateRelationship(ctx context.Context, from, to graphdb.Entity, relType string, dir schema.Direction) error {
	if dir == schema.DirectionIn {
		from, to = to, from
	}
	planned, err := PlanInsertEdge(from.ID, to.ID, relType)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, planned.SQL, planned.Args...); err != nil {
		if isMySQLError(err, errNoReferencedRow) || isMySQLError(err, errNoReferencedRow2) {
			return fmt.Errorf("%w: %s or %s", graphdb.ErrEntityNotFound, from.ID, to.ID)
		}
		return mapTxError(err)
	}
	return nil
}

func (t *Tx) Commit(context.Context) error {
	return mapTxError(t.tx.Commit())
}

func (t *Tx) Rollback(context.Context) error {
	return mapTxError(t.tx.Rollback())
}

func mapTxError(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return graphdb.ErrTxDone
	}
	return err
}

func isMySQLError(err error, number uint16) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == number
}

func encodeProps(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	return json.Marshal(fields)
}

func decodeProps(data []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(data) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
