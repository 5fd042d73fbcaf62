package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	found := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			found[m.Name] = m
		}
	}
	return found
}

func setupReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	ResetMetricsForTest()
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		ResetMetricsForTest()
	})
	return reader
}

func TestRecordModuleMetrics(t *testing.T) {
	reader := setupReader(t)
	ctx := context.Background()

	RecordModuleMetrics(ctx, ModuleMetrics{
		PipelineID: "p",
		ModuleID:   "m",
		Outcome:    OutcomeSuccess,
		Duration:   25 * time.Millisecond,
	})
	RecordModuleMetrics(ctx, ModuleMetrics{
		PipelineID: "p",
		ModuleID:   "m",
		Outcome:    OutcomeFailure,
		Duration:   5 * time.Millisecond,
	})

	found := collectMetrics(t, reader)

	counter, ok := found["relay.module.executions_total"]
	require.True(t, ok, "execution counter must be exported")
	sum, ok := counter.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.EqualValues(t, 2, total)
	assert.Len(t, sum.DataPoints, 2, "success and failure must be separate series")

	histogram, ok := found["relay.module.duration_ms"]
	require.True(t, ok, "latency histogram must be exported")
	hist, ok := histogram.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.NotEmpty(t, hist.DataPoints)
}

func TestRecordDecisionMetrics(t *testing.T) {
	reader := setupReader(t)
	ctx := context.Background()

	RecordDecisionMetrics(ctx, DecisionMetrics{RouterID: "root", ChoiceIndex: 1, Retries: 1})
	RecordDecisionMetrics(ctx, DecisionMetrics{RouterID: "root", Failed: true})

	found := collectMetrics(t, reader)

	decisions, ok := found["relay.router.decisions_total"]
	require.True(t, ok, "decision counter must be exported")
	sum, ok := decisions.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.EqualValues(t, 2, total)

	retries, ok := found["relay.selector.retries_total"]
	require.True(t, ok, "retry counter must be exported")
	retrySum, ok := retries.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, retrySum.DataPoints, 1)
	assert.EqualValues(t, 1, retrySum.DataPoints[0].Value)
}
