// Package observe provides application-wide observability primitives for
// voicefill: OpenTelemetry metrics, tracing, trace-aware logging and the HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported for
// Prometheus scraping via [InitProvider]. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with their own [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voicefill metrics.
const meterName = "github.com/MrWong99/voicefill"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// ExtractDuration tracks one full extraction pass over a transcript.
	ExtractDuration metric.Float64Histogram

	// SlotExtractions counts per-slot outcomes. Attributes:
	//   slot, outcome ("match" | "no_match"), source (rule name or "range")
	SlotExtractions metric.Int64Counter

	// CaptureDuration tracks speech capture wall time, start to result.
	CaptureDuration metric.Float64Histogram

	// Captures counts finished captures. Attribute: status.
	Captures metric.Int64Counter

	// ActiveCaptures tracks captures in progress.
	ActiveCaptures metric.Int64UpDownCounter

	// ProviderRequests counts STT provider calls. Attributes:
	//   provider, status
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts STT provider failures. Attribute: provider.
	ProviderErrors metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   method, path
	HTTPRequestDuration metric.Float64Histogram
}

// extractBuckets are sized for a regex pass over one short utterance.
var extractBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
}

// captureBuckets are sized for spoken utterances.
var captureBuckets = []float64{
	0.5, 1, 2, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ExtractDuration, err = m.Float64Histogram("voicefill.extract.duration",
		metric.WithDescription("Latency of one slot extraction pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(extractBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SlotExtractions, err = m.Int64Counter("voicefill.slot.extractions",
		metric.WithDescription("Slot extraction outcomes by slot, outcome and source."),
	); err != nil {
		return nil, err
	}
	if met.CaptureDuration, err = m.Float64Histogram("voicefill.capture.duration",
		metric.WithDescription("Wall time of a speech capture."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(captureBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Captures, err = m.Int64Counter("voicefill.captures",
		metric.WithDescription("Finished speech captures by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveCaptures, err = m.Int64UpDownCounter("voicefill.active_captures",
		metric.WithDescription("Number of speech captures in progress."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("voicefill.provider.requests",
		metric.WithDescription("Total STT provider requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voicefill.provider.errors",
		metric.WithDescription("Total STT provider errors by provider."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voicefill.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordExtraction records the duration of one extraction pass.
func (m *Metrics) RecordExtraction(ctx context.Context, d time.Duration) {
	m.ExtractDuration.Record(ctx, d.Seconds())
}

// RecordSlot records the outcome of one slot. source is empty for a miss.
func (m *Metrics) RecordSlot(ctx context.Context, slot string, matched bool, source string) {
	outcome := "no_match"
	if matched {
		outcome = "match"
	}
	m.SlotExtractions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("slot", slot),
			attribute.String("outcome", outcome),
			attribute.String("source", source),
		),
	)
}

// RecordCapture records a finished capture with its status ("ok",
// "no_speech", "error", "cancelled").
func (m *Metrics) RecordCapture(ctx context.Context, status string, d time.Duration) {
	m.Captures.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.CaptureDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RecordProviderRequest records an STT provider request.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records an STT provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}
