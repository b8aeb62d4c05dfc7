package sqlgraph

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/predicate"
	"graphdb-graphql/internal/schema"
	"graphdb-graphql/internal/testutil"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func movieType(t *testing.T) *schema.EntityType {
	return testutil.EntityType(t, testutil.MovieModel(t), "Movie")
}

func TestPlanFind(t *testing.T) {
	et := movieType(t)
	pred, err := predicate.Build(et, map[string]any{"title": "Big", "id": "m1"})
	require.NoError(t, err)

	planned, err := PlanFind("Movie", pred)
	require.NoError(t, err)
	assert.Contains(t, planned.SQL, "SELECT n.`id`, n.`props` FROM `graph_nodes` n")
	assert.Contains(t, planned.SQL, "JOIN `graph_unique_keys` k0 ON k0.`node_id` = n.`id`")
	assert.Contains(t, planned.SQL, "JOIN `graph_unique_keys` k1 ON k1.`node_id` = n.`id`")
	assert.Contains(t, planned.SQL, "WHERE n.`label` = ?")
	assert.True(t, strings.HasSuffix(planned.SQL, "FOR UPDATE"))
	assert.Equal(t, []interface{}{
		"Movie", "id", "s:m1",
		"Movie", "title", "s:Big",
		"Movie",
	}, planned.Args)
}

func TestPlanFind_EmptyPredicate(t *testing.T) {
	_, err := PlanFind("Movie", predicate.Predicate{EntityType: "Movie"})
	assert.Error(t, err)
}

func TestPlanInsertKey_CanonicalValue(t *testing.T) {
	planned, err := PlanInsertKey("Movie", "released", int64(1988), "node-1")
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `graph_unique_keys` (`label`,`field`,`value`,`node_id`) VALUES (?,?,?,?)", planned.SQL)
	assert.Equal(t, []interface{}{"Movie", "released", "n:1988", "node-1"}, planned.Args)
}

func TestSchemaStatements_KeyFitsIndexLimit(t *testing.T) {
	require.Len(t, schemaStatements, 3)
	assert.Contains(t, schemaStatements[1], "PRIMARY KEY (`label`, `field`, `value`)")
	assert.Contains(t, schemaStatements[2], "UNIQUE KEY `uniq_edge` (`from_id`, `to_id`, `rel_type`)")
}

func TestPlanInsertEdge_KeepsExistingEdge(t *testing.T) {
	planned, err := PlanInsertEdge("actor-1", "movie-1", "ACTED_IN")
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `graph_edges` (`from_id`,`to_id`,`rel_type`) VALUES (?,?,?) "+
		"ON DUPLICATE KEY UPDATE `rel_type` = `rel_type`", planned.SQL)
	assert.Equal(t, []interface{}{"actor-1", "movie-1", "ACTED_IN"}, planned.Args)
}

func TestFindMatching_DecodesProps(t *testing.T) {
	store, mock := newMockStore(t)
	et := movieType(t)
	pred, err := predicate.Build(et, map[string]any{"title": "Big"})
	require.NoError(t, err)
	planned, err := PlanFind("Movie", pred)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(planned.SQL).
		WithArgs("Movie", "title", "s:Big", "Movie").
		WillReturnRows(sqlmock.NewRows([]string{"id", "props"}).
			AddRow("node-1", []byte(`{"id":"m1","title":"Big","released":1988}`)))

	tx, err := store.BeginTx(context.Background())
	require.NoError(t, err)
	got, err := tx.FindMatching(context.Background(), et, pred)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "node-1", got[0].ID)
	assert.Equal(t, "Movie", got[0].Type)
	assert.Equal(t, "Big", got[0].Fields["title"])
	assert.True(t, predicate.Equal(1988, got[0].Fields["released"]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEntity_InsertsNodeAndKeys(t *testing.T) {
	store, mock := newMockStore(t)
	et := movieType(t)
	fields := map[string]any{"id": "m1", "title": "Big", "released": 1988}

	nodeSQL, err := PlanInsertNode("x", "Movie", nil)
	require.NoError(t, err)
	keySQL, err := PlanInsertKey("Movie", "id", "m1", "x")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT create_entity").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(nodeSQL.SQL).
		WithArgs(sqlmock.AnyArg(), "Movie", `{"id":"m1","released":1988,"title":"Big"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(keySQL.SQL).
		WithArgs("Movie", "id", "s:m1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(keySQL.SQL).
		WithArgs("Movie", "title", "s:Big", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("RELEASE SAVEPOINT create_entity").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	ent, err := tx.CreateEntity(ctx, et, fields)
	require.NoError(t, err)
	assert.Len(t, ent.ID, 36)
	assert.Equal(t, fields, ent.Fields)
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEntity_DuplicateRollsBackToSavepoint(t *testing.T) {
	store, mock := newMockStore(t)
	et := movieType(t)

	nodeSQL, err := PlanInsertNode("x", "Movie", nil)
	require.NoError(t, err)
	keySQL, err := PlanInsertKey("Movie", "title", "Big", "x")
	require.NoError(t, err)
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'Movie-title-s:Big' for key 'PRIMARY'"}

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT create_entity").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(nodeSQL.SQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(keySQL.SQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(keySQL.SQL).WithArgs("Movie", "title", "s:Big", sqlmock.AnyArg()).WillReturnError(dup)
	mock.ExpectExec("ROLLBACK TO SAVEPOINT create_entity").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.CreateEntity(ctx, et, map[string]any{"id": "m2", "title": "Big"})

	cv, ok := graphdb.AsConstraintViolation(err)
	require.True(t, ok)
	assert.Equal(t, "Movie", cv.EntityType)
	assert.Equal(t, "title", cv.Field)
	assert.Equal(t, "Big", cv.Value)
	assert.False(t, cv.TxAborted)
	assert.ErrorIs(t, err, dup)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEntity_FailedSavepointRollbackAbortsTx(t *testing.T) {
	store, mock := newMockStore(t)
	et := movieType(t)

	nodeSQL, err := PlanInsertNode("x", "Movie", nil)
	require.NoError(t, err)
	keySQL, err := PlanInsertKey("Movie", "title", "Big", "x")
	require.NoError(t, err)
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT create_entity").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(nodeSQL.SQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(keySQL.SQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(keySQL.SQL).WillReturnError(dup)
	mock.ExpectExec("ROLLBACK TO SAVEPOINT create_entity").WillReturnError(errors.New("connection lost"))

	ctx := context.Background()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.CreateEntity(ctx, et, map[string]any{"id": "m2", "title": "Big"})

	cv, ok := graphdb.AsConstraintViolation(err)
	require.True(t, ok)
	assert.True(t, cv.TxAborted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRelationship_Direction(t *testing.T) {
	store, mock := newMockStore(t)
	edgeSQL, err := PlanInsertEdge("a", "b", "ACTED_IN")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(edgeSQL.SQL).WithArgs("actor-1", "movie-1", "ACTED_IN").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(edgeSQL.SQL).WithArgs("actor-1", "movie-1", "ACTED_IN").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(edgeSQL.SQL).WithArgs("movie-1", "genre-1", "HAS_GENRE").
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	movie := graphdb.Entity{ID: "movie-1", Type: "Movie"}
	require.NoError(t, tx.CreateRelationship(ctx, movie, graphdb.Entity{ID: "actor-1"}, "ACTED_IN", schema.DirectionIn))
	require.NoError(t, tx.CreateRelationship(ctx, movie, graphdb.Entity{ID: "actor-1"}, "ACTED_IN", schema.DirectionIn))

	err = tx.CreateRelationship(ctx, movie, graphdb.Entity{ID: "genre-1"}, "HAS_GENRE", schema.DirectionOut)
	assert.ErrorIs(t, err, graphdb.ErrEntityNotFound)
	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTx_DoneMapsToErrTxDone(t *testing.T) {
	assert.ErrorIs(t, mapTxError(sql.ErrTxDone), graphdb.ErrTxDone)
	assert.Nil(t, mapTxError(nil))
}

func TestEnsureConstraints_CreatesTables(t *testing.T) {
	store, mock := newMockStore(t)
	for _, stmt := range schemaStatements {
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, store.EnsureConstraints(context.Background(), testutil.MovieModel(t)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
