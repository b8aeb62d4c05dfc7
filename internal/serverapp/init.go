package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"graphdb-graphql/internal/logging"
	"graphdb-graphql/internal/resolver"
)

// Init initializes all runtime resources. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithLogger(ctx, a.logger)

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, graphqlMetrics, mutationMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	namer, model, err := loadModel(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to load schema file: %w", err)
	}

	store, closeStore, err := openStore(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to graph store: %w", err)
	}
	cleanup.push("graph store", closeStore)

	if err := store.EnsureConstraints(ctx, model); err != nil {
		return fmt.Errorf("failed to ensure uniqueness constraints: %w", err)
	}
	a.logger.Info("uniqueness constraints ensured", slog.String("backend", a.cfg.Graph.Backend))

	walker := buildWalker(a.cfg, model, mutationMetrics)
	executor := resolver.NewExecutor(store, walker, mutationMetrics)

	graphqlHandler, err := buildGraphQLHandler(a.cfg, a.logger, model, namer, walker, store, graphqlMetrics, mutationMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize GraphQL handler: %w", err)
	}

	mux := buildRouter(a.cfg, a.logger, store, graphqlHandler, meterProvider)
	handler := wrapHTTPHandler(a.cfg, a.logger, mux)

	serverAddr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := buildServer(a.cfg, handler, serverAddr)
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.graphqlMetrics = graphqlMetrics
	a.mutationMetrics = mutationMetrics
	a.tracerProvider = tracerProvider
	a.store = store
	a.namer = namer
	a.model = model
	a.executor = executor
	a.graphqlHandler = graphqlHandler
	a.mux = mux
	a.handler = handler
	a.serverAddr = serverAddr
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
