package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"graphdb-graphql/internal/config"
	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/graphdb/memgraph"
	"graphdb-graphql/internal/graphdb/neo4jdb"
	"graphdb-graphql/internal/graphdb/sqlgraph"
	"graphdb-graphql/internal/logging"
)

// maxRetryInterval caps the exponential backoff between connection attempts.
const maxRetryInterval = 30 * time.Second

// openStore opens the configured graph backend and waits until it answers
// pings. The returned cleanup releases everything openStore acquired.
func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (graphdb.Store, func(context.Context) error, error) {
	switch cfg.Graph.Backend {
	case config.BackendMemory:
		store := memgraph.New()
		logger.Warn("using in-memory graph store; data is lost on restart")
		return store, store.Close, nil

	case config.BackendNeo4j:
		logger.Info("connecting to Neo4j",
			slog.String("uri", cfg.Neo4j.URI),
			slog.String("database", cfg.Neo4j.Database),
			slog.String("user", cfg.Neo4j.User),
		)
		store, err := neo4jdb.Open(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database,
			func(c *neo4jconfig.Config) {
				if cfg.Neo4j.MaxConnectionPoolSize > 0 {
					c.MaxConnectionPoolSize = cfg.Neo4j.MaxConnectionPoolSize
				}
			},
		)
		if err != nil {
			return nil, nil, err
		}
		if err := waitForStore(ctx, logger, "neo4j", store.Ping, cfg.Neo4j.ConnectionTimeout, cfg.Neo4j.ConnectionRetryInterval); err != nil {
			_ = store.Close(context.WithoutCancel(ctx))
			return nil, nil, err
		}
		logger.Info("connected to Neo4j", slog.Int("max_connection_pool_size", cfg.Neo4j.MaxConnectionPoolSize))
		return store, store.Close, nil

	case config.BackendTiDB:
		logger.Info("connecting to TiDB",
			slog.String("host", cfg.Database.Host),
			slog.Int("port", cfg.Database.Port),
			slog.String("database", cfg.Database.Database),
			slog.Bool("dsn_present", cfg.Database.ConnectionString != ""),
		)
		db, dbStatsReg, err := connectDB(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		store := sqlgraph.New(db)
		cleanup := func(ctx context.Context) error {
			if dbStatsReg != nil {
				if err := dbStatsReg.Unregister(); err != nil {
					logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
				}
			}
			return store.Close(ctx)
		}

		db.SetMaxOpenConns(cfg.Database.Pool.MaxOpen)
		db.SetMaxIdleConns(cfg.Database.Pool.MaxIdle)
		db.SetConnMaxLifetime(cfg.Database.Pool.MaxLifetime)

		if err := waitForStore(ctx, logger, "database", store.Ping, cfg.Database.ConnectionTimeout, cfg.Database.ConnectionRetryInterval); err != nil {
			_ = cleanup(context.WithoutCancel(ctx))
			return nil, nil, err
		}
		logger.Info("connected to database",
			slog.Int("pool_max_open", cfg.Database.Pool.MaxOpen),
			slog.Int("pool_max_idle", cfg.Database.Pool.MaxIdle),
			slog.Duration("pool_max_lifetime", cfg.Database.Pool.MaxLifetime),
		)
		return store, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown graph backend %q", cfg.Graph.Backend)
	}
}

func connectDB(cfg *config.Config, logger *logging.Logger) (*sql.DB, interface{ Unregister() error }, error) {
	dsn, err := cfg.Database.DSN()
	if err != nil {
		return nil, nil, err
	}

	if !cfg.Observability.MetricsEnabled && !cfg.Observability.TracingEnabled {
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, nil, err
		}
		return db, nil, nil
	}

	opts := []otelsql.Option{
		otelsql.WithAttributes(semconv.DBSystemMySQL),
	}
	if cfg.Observability.TracingEnabled {
		opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{
			DisableErrSkip: true,
		}))
	}
	if cfg.Observability.SQLCommenterEnabled && cfg.Observability.TracingEnabled {
		opts = append(opts, otelsql.WithSQLCommenter(true))
		logger.Info("SQLCommenter enabled - trace context will be injected into SQL queries")
	} else if cfg.Observability.SQLCommenterEnabled {
		logger.Warn("SQLCommenter requires tracing to be enabled - skipping SQLCommenter")
	}

	db, err := otelsql.Open("mysql", dsn, opts...)
	if err != nil {
		return nil, nil, err
	}

	var dbStatsReg interface{ Unregister() error }
	if cfg.Observability.MetricsEnabled {
		dbStatsReg, err = otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(semconv.DBSystemMySQL))
		if err != nil {
			logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		}
	}

	logger.Info("database instrumentation enabled",
		slog.Bool("metrics", cfg.Observability.MetricsEnabled),
		slog.Bool("tracing", cfg.Observability.TracingEnabled),
	)
	return db, dbStatsReg, nil
}

// waitForStore pings until success, the timeout elapses or ctx is done.
// A zero timeout tries once.
func waitForStore(ctx context.Context, logger *logging.Logger, name string, ping func(context.Context) error, timeout, interval time.Duration) error {
	if timeout == 0 {
		return ping(ctx)
	}

	deadline := time.Now().Add(timeout)
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		err := ping(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info(name+" connection established", slog.Int("attempts", attempt))
			}
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%s not available after %v: %w", name, timeout, err)
		}

		logger.Warn(name+" not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		interval = min(interval*2, maxRetryInterval)
	}
}
