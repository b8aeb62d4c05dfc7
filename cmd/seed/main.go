// Command seed applies a YAML stream of connect-or-create documents to the
// configured graph store.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"graphdb-graphql/internal/config"
	"graphdb-graphql/internal/logging"
	"graphdb-graphql/internal/seed"
	"graphdb-graphql/internal/serverapp"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := pflag.NewFlagSet("graphdb-seed", pflag.ContinueOnError)
	file := fs.StringP("file", "f", "-", "Seed file (YAML stream); - reads stdin")
	concurrency := fs.Int("concurrency", 4, "Documents applied in parallel")
	continueOnError := fs.Bool("continue-on-error", false, "Keep applying documents after a failure")

	cfg, err := config.Load(fs, args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := serverapp.ReportValidation(cfg.Validate()); err != nil {
		return err
	}

	docs, err := readDocuments(*file, stdin)
	if err != nil {
		return err
	}

	logger, loggerProvider, err := serverapp.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	app, err := serverapp.New(cfg, logger)
	if err != nil {
		return err
	}
	app.AttachLoggerProvider(loggerProvider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Init(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = app.Shutdown(shutdownCtx)
	}()

	loader := seed.NewLoader(app.Model(), app.Executor(), seed.Options{
		Concurrency:     *concurrency,
		ContinueOnError: *continueOnError,
	})
	summary, loadErr := loader.Load(logging.WithLogger(ctx, logger.WithFields("component", "seed")), docs)

	_, _ = fmt.Fprintf(stdout, "documents=%d created=%d connected=%d failed=%d\n",
		summary.Documents, summary.Created, summary.Connected, len(summary.Failed))
	return loadErr
}

func readDocuments(path string, stdin io.Reader) ([]seed.Document, error) {
	if path == "-" {
		return seed.Parse(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return seed.Parse(f)
}
