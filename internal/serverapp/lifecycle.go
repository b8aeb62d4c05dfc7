package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"graphdb-graphql/internal/logging"
)

// StopReason says why WaitForStop returned.
type StopReason string

const (
	StopSignal      StopReason = "signal"
	StopServerError StopReason = "server_error"
)

// Start serves HTTP in the background. The returned channel receives the
// listener's error, if any.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	switch {
	case !a.initialized:
		return nil, fmt.Errorf("app is not initialized")
	case a.started:
		return a.serverErrors, nil
	}

	a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.serverAddr)
	a.started = true
	return a.serverErrors, nil
}

// WaitForStop blocks until a signal arrives on stop or the server fails. A
// nil serverErrors means the channel returned by Start.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (StopReason, error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		if a.serverErrors != nil {
			serverErrors = a.serverErrors
		}
		a.stateMu.Unlock()
	}
	if stop == nil && serverErrors == nil {
		return "", fmt.Errorf("both stop and serverErrors channels are nil")
	}

	// A nil channel never becomes ready, so one select covers every case.
	select {
	case sig := <-stop:
		a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		return StopSignal, nil
	case err := <-serverErrors:
		if err == nil {
			return StopServerError, fmt.Errorf("server stopped unexpectedly")
		}
		return StopServerError, err
	}
}

// Shutdown releases everything Init acquired, newest first. Only the first
// call does work; later calls return the same result.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		cleanup := a.cleanup
		a.cleanup = cleanupStack{}
		a.started = false
		a.stateMu.Unlock()

		a.shutdownErr = cleanup.run(ctx, a.logger)
	})
	return a.shutdownErr
}

type cleanupStack struct {
	items []cleanupItem
}

type cleanupItem struct {
	name string
	fn   func(context.Context) error
}

func (s *cleanupStack) push(name string, fn func(context.Context) error) {
	s.items = append(s.items, cleanupItem{name: name, fn: fn})
}

// run calls every item in reverse order and joins their errors. A failing
// item does not stop the ones acquired before it.
func (s *cleanupStack) run(ctx context.Context, logger *logging.Logger) error {
	var errs []error
	for i := len(s.items) - 1; i >= 0; i-- {
		item := s.items[i]
		start := time.Now()
		err := item.fn(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", item.name, err))
		}
		if logger == nil {
			continue
		}
		if err != nil {
			logger.Warn("cleanup failed",
				slog.String("component", item.name),
				slog.String("error", err.Error()),
			)
			continue
		}
		logger.Debug("released "+item.name, slog.Duration("took", time.Since(start)))
	}
	return errors.Join(errs...)
}
