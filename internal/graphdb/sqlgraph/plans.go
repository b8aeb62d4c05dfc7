package sqlgraph

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"graphdb-graphql/internal/predicate"
)

const (
	nodesTable  = "graph_nodes"
	keysTable   = "graph_unique_keys"
	edgesTable  = "graph_edges"
	savepointID = "create_entity"
)

// SQLQuery is a planned statement and its arguments.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// schemaStatements create the three tables the store keeps the graph in.
// graph_unique_keys holds one row per unique property value; its primary
// key is what enforces uniqueness. graph_edges holds at most one edge of a
// type between two nodes.
var schemaStatements = []string{
	"CREATE TABLE IF NOT EXISTS `graph_nodes` (" +
		"`id` VARCHAR(36) NOT NULL, " +
		"`label` VARCHAR(255) NOT NULL, " +
		"`props` JSON NOT NULL, " +
		"`created_at` TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6), " +
		"PRIMARY KEY (`id`), " +
		"KEY `idx_label` (`label`))",
	"CREATE TABLE IF NOT EXISTS `graph_unique_keys` (" +
		"`label` VARCHAR(128) NOT NULL, " +
		"`field` VARCHAR(128) NOT NULL, " +
		"`value` VARCHAR(512) NOT NULL, " +
		"`node_id` VARCHAR(36) NOT NULL, " +
		"PRIMARY KEY (`label`, `field`, `value`), " +
		"KEY `idx_node` (`node_id`), " +
		"FOREIGN KEY (`node_id`) REFERENCES `graph_nodes` (`id`))",
	"CREATE TABLE IF NOT EXISTS `graph_edges` (" +
		"`id` BIGINT NOT NULL AUTO_INCREMENT, " +
		"`from_id` VARCHAR(36) NOT NULL, " +
		"`to_id` VARCHAR(36) NOT NULL, " +
		"`rel_type` VARCHAR(255) NOT NULL, " +
		"PRIMARY KEY (`id`), " +
		"UNIQUE KEY `uniq_edge` (`from_id`, `to_id`, `rel_type`), " +
		"KEY `idx_from` (`from_id`, `rel_type`), " +
		"FOREIGN KEY (`from_id`) REFERENCES `graph_nodes` (`id`), " +
		"FOREIGN KEY (`to_id`) REFERENCES `graph_nodes` (`id`))",
}

// PlanFind selects the nodes of label holding every value in pred. Each
// condition joins its own row of graph_unique_keys. The read is a locking
// read so a re-match observes rows committed after the transaction began.
func PlanFind(label string, pred predicate.Predicate) (SQLQuery, error) {
	if len(pred.Conditions) == 0 {
		return SQLQuery{}, fmt.Errorf("find %s: empty predicate", label)
	}
	builder := sq.Select("n.`id`", "n.`props`").
		From(quoteIdentifier(nodesTable) + " n")
	for i, c := range pred.Conditions {
		alias := fmt.Sprintf("k%d", i)
		builder = builder.Join(
			fmt.Sprintf("%s %s ON %s.`node_id` = n.`id` AND %s.`label` = ? AND %s.`field` = ? AND %s.`value` = ?",
				quoteIdentifier(keysTable), alias, alias, alias, alias, alias),
			label, c.Field, predicate.CanonicalValue(c.Value),
		)
	}
	query, args, err := builder.
		Where(sq.Eq{"n.`label`": label}).
		OrderBy("n.`created_at`", "n.`id`").
		Suffix("FOR UPDATE").
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanInsertNode inserts one node row.
func PlanInsertNode(id, label string, props []byte) (SQLQuery, error) {
	query, args, err := sq.Insert(quoteIdentifier(nodesTable)).
		Columns("`id`", "`label`", "`props`").
		Values(id, label, string(props)).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanInsertKey claims one unique value for a node.
func PlanInsertKey(label, field string, value any, nodeID string) (SQLQuery, error) {
	query, args, err := sq.Insert(quoteIdentifier(keysTable)).
		Columns("`label`", "`field`", "`value`", "`node_id`").
		Values(label, field, predicate.CanonicalValue(value), nodeID).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanInsertEdge inserts one directed edge. Inserting an edge that already
// exists is a no-op; foreign key failures still surface.
func PlanInsertEdge(fromID, toID, relType string) (SQLQuery, error) {
	query, args, err := sq.Insert(quoteIdentifier(edgesTable)).
		Columns("`from_id`", "`to_id`", "`rel_type`").
		Values(fromID, toID, relType).
		Suffix("ON DUPLICATE KEY UPDATE `rel_type` = `rel_type`").
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
