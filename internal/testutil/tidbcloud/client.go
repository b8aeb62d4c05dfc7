// Package tidbcloud opens throwaway TiDB databases for integration tests.
package tidbcloud

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"graphdb-graphql/internal/config"
)

// TestDB is a connection to a database created for one test.
type TestDB struct {
	DB           *sql.DB
	DatabaseName string
	Config       config.DatabaseConfig
	admin        *sql.DB
}

// ConfigFromEnv reads TIDB_HOST, TIDB_PORT, TIDB_USER, TIDB_PASSWORD and
// TIDB_TLS_MODE. The test is skipped when credentials are missing.
func ConfigFromEnv(t *testing.T) config.DatabaseConfig {
	t.Helper()

	host := os.Getenv("TIDB_HOST")
	user := os.Getenv("TIDB_USER")
	password := os.Getenv("TIDB_PASSWORD")
	if host == "" || user == "" || password == "" {
		t.Skip("TiDB credentials not set. Set TIDB_HOST, TIDB_USER, TIDB_PASSWORD environment variables to run integration tests")
	}
	if prefix := os.Getenv("TIDB_USER_PREFIX"); prefix != "" && !strings.HasPrefix(user, prefix) {
		user = prefix + user
	}

	port := 4000
	if raw := os.Getenv("TIDB_PORT"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			t.Fatalf("invalid TIDB_PORT %q: %v", raw, err)
		}
		port = parsed
	}
	tlsMode := os.Getenv("TIDB_TLS_MODE")
	if tlsMode == "" {
		tlsMode = "true"
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		Database: "test",
		TLSMode:  tlsMode,
	}
}

// NewTestDB creates a uniquely named database and drops it on cleanup.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	cfg := ConfigFromEnv(t)
	admin := open(t, cfg)

	dbName := "test_" + sanitizeName(t.Name()) + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if len(dbName) > 64 {
		dbName = dbName[:64]
	}
	if _, err := admin.Exec(fmt.Sprintf("CREATE DATABASE `%s`", dbName)); err != nil {
		_ = admin.Close()
		t.Fatalf("Failed to create test database: %v", err)
	}

	cfg.Database = dbName
	testDB := &TestDB{
		DB:           open(t, cfg),
		DatabaseName: dbName,
		Config:       cfg,
		admin:        admin,
	}
	t.Cleanup(func() { testDB.Teardown(t) })
	return testDB
}

// Teardown drops the test database and closes both connections.
func (tdb *TestDB) Teardown(t *testing.T) {
	t.Helper()

	if tdb.DB != nil {
		if err := tdb.DB.Close(); err != nil {
			t.Logf("Warning: failed to close test database connection: %v", err)
		}
		tdb.DB = nil
	}
	if tdb.admin == nil {
		return
	}
	if isValidDatabaseName(tdb.DatabaseName) {
		if _, err := tdb.admin.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", tdb.DatabaseName)); err != nil {
			t.Logf("Warning: Failed to drop test database %s: %v", tdb.DatabaseName, err)
		}
	}
	if err := tdb.admin.Close(); err != nil {
		t.Logf("Warning: failed to close admin database connection: %v", err)
	}
	tdb.admin = nil
}

func open(t *testing.T, cfg config.DatabaseConfig) *sql.DB {
	t.Helper()

	dsn, err := cfg.DSN()
	if err != nil {
		t.Fatalf("Failed to build DSN: %v", err)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to TiDB: %v", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to ping TiDB: %v", err)
	}
	return db
}

// sanitizeName keeps alphanumerics and underscores from a test name.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, ch := range strings.ToLower(name) {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > 32 {
		s = s[:32]
	}
	return s
}

func isValidDatabaseName(name string) bool {
	if name == "" || len(name) > 64 || !strings.HasPrefix(name, "test_") {
		return false
	}
	for _, ch := range name {
		if !(ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')) {
			return false
		}
	}
	return true
}
