// Package serverapp wires configuration, the graph store, the GraphQL schema
// and the HTTP server into one lifecycle.
package serverapp

import (
	"fmt"
	"net/http"
	"sync"

	"graphdb-graphql/internal/config"
	"graphdb-graphql/internal/graphdb"
	"graphdb-graphql/internal/logging"
	"graphdb-graphql/internal/naming"
	"graphdb-graphql/internal/observability"
	"graphdb-graphql/internal/resolver"
	"graphdb-graphql/internal/schema"
)

// App owns runtime resources for the graphdb-graphql server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	meterProvider   *observability.MeterProvider
	graphqlMetrics  *observability.GraphQLMetrics
	mutationMetrics *observability.MutationMetrics
	tracerProvider  *observability.TracerProvider

	store    graphdb.Store
	namer    *naming.Namer
	model    *schema.Model
	executor *resolver.Executor

	graphqlHandler http.Handler
	mux            *http.ServeMux
	handler        http.Handler

	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the fully wrapped HTTP handler. It is nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}

// Executor runs input trees outside of HTTP, each in its own transaction.
// It is nil before Init.
func (a *App) Executor() *resolver.Executor {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.executor
}

// Model returns the loaded constraint model. It is nil before Init.
func (a *App) Model() *schema.Model {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.model
}
