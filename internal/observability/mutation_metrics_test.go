package observability

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupMutationMetrics(t *testing.T) (*MutationMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	oldProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetMeterProvider(oldProvider)
	})

	metrics, err := InitMutationMetrics(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	require.NoError(t, err)
	return metrics, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return metricdata.Metrics{}
}

func TestMutationMetrics_RecordOccurrence(t *testing.T) {
	metrics, reader := setupMutationMetrics(t)
	ctx := context.Background()

	metrics.RecordOccurrence(ctx, "Movie", OutcomeConnected, time.Millisecond)
	metrics.RecordOccurrence(ctx, "Movie", OutcomeCreated, time.Millisecond)
	metrics.RecordOccurrence(ctx, "Genre", OutcomeCreated, time.Millisecond)

	sum, ok := findMetric(t, reader, "graphdb.connect_or_create.total").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[string]int64{}
	for _, point := range sum.DataPoints {
		entityType, _ := point.Attributes.Value("entity_type")
		outcome, _ := point.Attributes.Value("outcome")
		counts[entityType.AsString()+"/"+outcome.AsString()] += point.Value
	}
	assert.Equal(t, map[string]int64{
		"Movie/connected": 1,
		"Movie/created":   1,
		"Genre/created":   1,
	}, counts)

	hist, ok := findMetric(t, reader, "graphdb.connect_or_create.duration").Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 3)
}

func TestMutationMetrics_RetriesAndTransactions(t *testing.T) {
	metrics, reader := setupMutationMetrics(t)
	ctx := context.Background()

	metrics.RecordRetry(ctx, "Movie")
	metrics.RecordTransaction(ctx, true)
	metrics.RecordTransaction(ctx, false)
	metrics.RecordTransaction(ctx, false)

	retries, ok := findMetric(t, reader, "graphdb.connect_or_create.retries").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, retries.DataPoints, 1)
	assert.EqualValues(t, 1, retries.DataPoints[0].Value)

	txs, ok := findMetric(t, reader, "graphdb.mutation.transactions.total").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	results := map[string]int64{}
	for _, point := range txs.DataPoints {
		result, _ := point.Attributes.Value("result")
		results[result.AsString()] = point.Value
	}
	assert.Equal(t, map[string]int64{"committed": 1, "rolled_back": 2}, results)

	gauge, ok := findMetric(t, reader, "graphdb.mutation.last_commit_unix").Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Positive(t, gauge.DataPoints[0].Value)
}

func TestMutationMetrics_NilIsNoop(t *testing.T) {
	var metrics *MutationMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		metrics.RecordOccurrence(ctx, "Movie", OutcomeFailed, time.Second)
		metrics.RecordRetry(ctx, "Movie")
		metrics.RecordTransaction(ctx, true)
	})
}
