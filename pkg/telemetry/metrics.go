package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome classifies a module execution for metric partitioning.
type Outcome string

const (
	// OutcomeSuccess indicates the module produced its declared outputs.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailure indicates the module surfaced an execution error.
	OutcomeFailure Outcome = "failure"
)

var (
	metricsOnce            sync.Once
	metricsInitErr         error
	moduleExecutionCounter metric.Int64Counter
	moduleLatencyHistogram metric.Float64Histogram
	routerDecisionCounter  metric.Int64Counter
	selectionRetryCounter  metric.Int64Counter
)

// ModuleMetrics captures the fields recorded for one module invocation.
type ModuleMetrics struct {
	PipelineID string
	ModuleID   string
	Outcome    Outcome
	Duration   time.Duration
}

// RecordModuleMetrics emits the execution counter and latency histogram for
// a module invocation.
func RecordModuleMetrics(ctx context.Context, m ModuleMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("pipeline.id", m.PipelineID),
		attribute.String("module.id", m.ModuleID),
		attribute.String("module.outcome", string(m.Outcome)),
	}

	moduleExecutionCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	if m.Duration > 0 {
		moduleLatencyHistogram.Record(ctx, float64(m.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}
}

// DecisionMetrics captures the fields recorded for one routing decision.
type DecisionMetrics struct {
	RouterID    string
	ChoiceIndex int
	Retries     int
	Failed      bool
}

// RecordDecisionMetrics emits counters describing a selector decision.
func RecordDecisionMetrics(ctx context.Context, m DecisionMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	outcome := "chosen"
	if m.Failed {
		outcome = "failed"
	}
	attrs := []attribute.KeyValue{
		attribute.String("router.id", m.RouterID),
		attribute.Int("router.choice_index", m.ChoiceIndex),
		attribute.String("router.outcome", outcome),
	}

	routerDecisionCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	if m.Retries > 0 {
		selectionRetryCounter.Add(ctx, int64(m.Retries), metric.WithAttributes(attrs...))
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("relay.pipeline")

		moduleExecutionCounter, metricsInitErr = meter.Int64Counter(
			"relay.module.executions_total",
			metric.WithDescription("Pipeline module executions partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		moduleLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"relay.module.duration_ms",
			metric.WithDescription("Pipeline module execution latency"),
			metric.WithUnit("ms"),
		)
		if metricsInitErr != nil {
			return
		}

		routerDecisionCounter, metricsInitErr = meter.Int64Counter(
			"relay.router.decisions_total",
			metric.WithDescription("Routing decisions partitioned by chosen index and outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		selectionRetryCounter, metricsInitErr = meter.Int64Counter(
			"relay.selector.retries_total",
			metric.WithDescription("Selector retries caused by unusable answers"),
			metric.WithUnit("{count}"),
		)
	})
	return metricsInitErr
}
