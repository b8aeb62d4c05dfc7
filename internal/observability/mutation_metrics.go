package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Connect-or-create outcomes.
const (
	OutcomeConnected = "connected"
	OutcomeCreated   = "created"
	OutcomeFailed    = "failed"
)

// MutationMetrics holds metrics for connect-or-create resolution and the
// transactions that carry it. A nil *MutationMetrics records nothing.
type MutationMetrics struct {
	occurrenceCounter metric.Int64Counter
	retryCounter      metric.Int64Counter
	durationHist      metric.Float64Histogram
	txCounter         metric.Int64Counter
	lastCommitUnix    atomic.Int64
}

// InitMutationMetrics initializes connect-or-create metrics.
func InitMutationMetrics(logger *slog.Logger) (*MutationMetrics, error) {
	meter := otel.Meter("graphdb-graphql")

	occurrenceCounter, err := meter.Int64Counter(
		"graphdb.connect_or_create.total",
		metric.WithDescription("Total number of resolved connect-or-create occurrences by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connect-or-create counter: %w", err)
	}

	retryCounter, err := meter.Int64Counter(
		"graphdb.connect_or_create.retries",
		metric.WithDescription("Number of re-match retries after a unique constraint violation"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connect-or-create retry counter: %w", err)
	}

	durationHist, err := meter.Float64Histogram(
		"graphdb.connect_or_create.duration",
		metric.WithDescription("Duration of connect-or-create occurrences in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connect-or-create duration histogram: %w", err)
	}

	txCounter, err := meter.Int64Counter(
		"graphdb.mutation.transactions.total",
		metric.WithDescription("Total number of mutation transactions by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mutation transaction counter: %w", err)
	}

	lastCommitGauge, err := meter.Int64ObservableGauge(
		"graphdb.mutation.last_commit_unix",
		metric.WithDescription("Unix timestamp of the last committed mutation transaction"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create last commit gauge: %w", err)
	}

	metrics := &MutationMetrics{
		occurrenceCounter: occurrenceCounter,
		retryCounter:      retryCounter,
		durationHist:      durationHist,
		txCounter:         txCounter,
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			if value := metrics.lastCommitUnix.Load(); value > 0 {
				observer.ObserveInt64(lastCommitGauge, value)
			}
			return nil
		},
		lastCommitGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register last commit gauge callback: %w", err)
	}

	logger.Info("mutation metrics initialized")
	return metrics, nil
}

// RecordOccurrence records one resolved connect-or-create occurrence.
func (m *MutationMetrics) RecordOccurrence(ctx context.Context, entityType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("entity_type", entityType),
		attribute.String("outcome", outcome),
	)
	m.occurrenceCounter.Add(ctx, 1, attrs)
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordRetry records a re-match after a constraint violation.
func (m *MutationMetrics) RecordRetry(ctx context.Context, entityType string) {
	if m == nil {
		return
	}
	m.retryCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("entity_type", entityType)))
}

// RecordTransaction records the end of a mutation transaction.
func (m *MutationMetrics) RecordTransaction(ctx context.Context, committed bool) {
	if m == nil {
		return
	}
	result := "rolled_back"
	if committed {
		result = "committed"
		m.lastCommitUnix.Store(time.Now().Unix())
	}
	m.txCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
