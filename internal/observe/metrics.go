// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing, structured logging helpers, and an
// optional HTTP endpoint for Prometheus scraping.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint served by [MetricsServer].
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/hfyydd/Open-AutoGLM"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use: the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscriptionDuration tracks speech-to-text latency per recording.
	TranscriptionDuration metric.Float64Histogram

	// AgentStepDuration tracks the latency of a single agent step.
	AgentStepDuration metric.Float64Histogram

	// TaskDuration tracks end-to-end task latency from submission to a
	// terminal outcome.
	TaskDuration metric.Float64Histogram

	// --- Counters ---

	// TasksCompleted counts tasks reaching a terminal outcome. Use with:
	//   attribute.String("status", "finished"|"failed"|"cancelled")
	TasksCompleted metric.Int64Counter

	// AgentSteps counts agent steps. Use with:
	//   attribute.String("status", "ok"|"error")
	AgentSteps metric.Int64Counter

	// ProviderErrors counts transcription and agent provider errors. Use with:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveRecordings tracks recordings currently in progress (0 or 1 with
	// a single capture device, but the instrument allows more).
	ActiveRecordings metric.Int64UpDownCounter

	// ActiveTasks tracks tasks currently running.
	ActiveTasks metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Agent
// steps can take tens of seconds, so the upper buckets are generous.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("autoglm.transcription.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AgentStepDuration, err = m.Float64Histogram("autoglm.agent.step.duration",
		metric.WithDescription("Latency of a single agent step."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TaskDuration, err = m.Float64Histogram("autoglm.task.duration",
		metric.WithDescription("End-to-end task latency from submission to terminal outcome."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TasksCompleted, err = m.Int64Counter("autoglm.tasks.completed",
		metric.WithDescription("Total tasks reaching a terminal outcome by status."),
	); err != nil {
		return nil, err
	}
	if met.AgentSteps, err = m.Int64Counter("autoglm.agent.steps",
		metric.WithDescription("Total agent steps by status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("autoglm.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRecordings, err = m.Int64UpDownCounter("autoglm.active_recordings",
		metric.WithDescription("Number of recordings currently in progress."),
	); err != nil {
		return nil, err
	}
	if met.ActiveTasks, err = m.Int64UpDownCounter("autoglm.active_tasks",
		metric.WithDescription("Number of tasks currently running."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTaskCompleted records a task's terminal outcome and duration.
func (m *Metrics) RecordTaskCompleted(ctx context.Context, status string, seconds float64) {
	m.TasksCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.TaskDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordAgentStep records one agent step with its status and duration.
func (m *Metrics) RecordAgentStep(ctx context.Context, status string, seconds float64) {
	m.AgentSteps.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.AgentStepDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
