// Package observe provides application-wide observability primitives for
// voxgate: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxgate metrics.
const meterName = "github.com/MrWong99/voxgate"

// Utterance outcomes recorded on [Metrics.Utterances].
const (
	OutcomeTranscribed = "transcribed"
	OutcomeEmpty       = "empty"
	OutcomeFailed      = "failed"
	OutcomeDiscarded   = "discarded"
	OutcomeDropped     = "dropped"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// STTDuration tracks recognizer latency per utterance. Use with
	// attribute.String("provider", ...).
	STTDuration metric.Float64Histogram

	// UtteranceDuration tracks the audio length of flushed utterances.
	UtteranceDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts recognizer calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// Utterances counts closed utterances by outcome. Use with
	// attribute.String("outcome", ...).
	Utterances metric.Int64Counter

	// DroppedSamples counts capture samples discarded on transfer buffer
	// overflow.
	DroppedSamples metric.Int64Counter

	// StreamErrors counts non-fatal capture stream errors.
	StreamErrors metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts recognizer failures. Use with
	// attribute.String("provider", ...).
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// BufferFill reports the transfer buffer fill level in samples.
	BufferFill metric.Int64Gauge

	// Talking is 1 while an utterance is open and 0 otherwise.
	Talking metric.Int64UpDownCounter

	// FeedSubscribers tracks connected event feed clients.
	FeedSubscribers metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// recognizer latency, from fast local models to slow cloud round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// utteranceBuckets defines histogram bucket boundaries (in seconds) for
// utterance audio length.
var utteranceBuckets = []float64{
	0.5, 1, 2, 4, 6, 8, 10, 15, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("voxgate.stt.duration",
		metric.WithDescription("Latency of speech-to-text recognition per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("voxgate.utterance.duration",
		metric.WithDescription("Audio length of flushed utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(utteranceBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("voxgate.provider.requests",
		metric.WithDescription("Total recognizer requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("voxgate.utterances",
		metric.WithDescription("Closed utterances by outcome."),
	); err != nil {
		return nil, err
	}
	if met.DroppedSamples, err = m.Int64Counter("voxgate.capture.dropped_samples",
		metric.WithDescription("Capture samples dropped because the transfer buffer was full."),
	); err != nil {
		return nil, err
	}
	if met.StreamErrors, err = m.Int64Counter("voxgate.capture.stream_errors",
		metric.WithDescription("Non-fatal capture stream errors."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("voxgate.provider.errors",
		metric.WithDescription("Total recognizer errors by provider."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.BufferFill, err = m.Int64Gauge("voxgate.capture.buffer_fill",
		metric.WithDescription("Samples waiting in the transfer buffer."),
	); err != nil {
		return nil, err
	}
	if met.Talking, err = m.Int64UpDownCounter("voxgate.talking",
		metric.WithDescription("1 while an utterance is open."),
	); err != nil {
		return nil, err
	}
	if met.FeedSubscribers, err = m.Int64UpDownCounter("voxgate.feed.subscribers",
		metric.WithDescription("Connected event feed clients."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxgate.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordRecognition records one recognizer call: latency, request counter
// and, when err is non-nil, the error counter.
func (m *Metrics) RecordRecognition(ctx context.Context, provider string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
	}
	m.STTDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("provider", provider)))
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordUtterance records a closed utterance with its outcome and audio
// length in seconds.
func (m *Metrics) RecordUtterance(ctx context.Context, outcome string, seconds float64) {
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if seconds > 0 {
		m.UtteranceDuration.Record(ctx, seconds)
	}
}
