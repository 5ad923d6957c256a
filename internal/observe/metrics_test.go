package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumByAttr returns the int64 sum data point whose attribute key has value.
func sumByAttr(t *testing.T, met *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", met.Name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordRecognition(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRecognition(ctx, "whisper", 0.2, nil)
	m.RecordRecognition(ctx, "whisper", 0.4, nil)
	m.RecordRecognition(ctx, "whisper", 1.5, errors.New("boom"))

	rm := collect(t, reader)

	hist := findMetric(rm, "voxgate.stt.duration")
	if hist == nil {
		t.Fatal("voxgate.stt.duration not found")
	}
	h, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok || len(h.DataPoints) != 1 || h.DataPoints[0].Count != 3 {
		t.Fatalf("stt.duration data = %+v", hist.Data)
	}

	req := findMetric(rm, "voxgate.provider.requests")
	if req == nil {
		t.Fatal("voxgate.provider.requests not found")
	}
	if got := sumByAttr(t, req, "status", "ok"); got != 2 {
		t.Errorf("ok requests = %d, want 2", got)
	}
	if got := sumByAttr(t, req, "status", "error"); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}

	errs := findMetric(rm, "voxgate.provider.errors")
	if errs == nil {
		t.Fatal("voxgate.provider.errors not found")
	}
	if got := sumByAttr(t, errs, "provider", "whisper"); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
}

func TestRecordUtterance(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUtterance(ctx, OutcomeTranscribed, 6.0)
	m.RecordUtterance(ctx, OutcomeFailed, 2.0)
	m.RecordUtterance(ctx, OutcomeDropped, 0)

	rm := collect(t, reader)
	met := findMetric(rm, "voxgate.utterances")
	if met == nil {
		t.Fatal("voxgate.utterances not found")
	}
	for _, outcome := range []string{OutcomeTranscribed, OutcomeFailed, OutcomeDropped} {
		if got := sumByAttr(t, met, "outcome", outcome); got != 1 {
			t.Errorf("%s = %d, want 1", outcome, got)
		}
	}

	dur := findMetric(rm, "voxgate.utterance.duration")
	if dur == nil {
		t.Fatal("voxgate.utterance.duration not found")
	}
	h := dur.Data.(metricdata.Histogram[float64])
	if h.DataPoints[0].Count != 2 {
		t.Errorf("utterance.duration count = %d, want 2 (zero-length not recorded)", h.DataPoints[0].Count)
	}
}

func TestGaugesAndCaptureCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.BufferFill.Record(ctx, 1234)
	m.Talking.Add(ctx, 1)
	m.Talking.Add(ctx, -1)
	m.Talking.Add(ctx, 1)
	m.DroppedSamples.Add(ctx, 10)
	m.StreamErrors.Add(ctx, 2)
	m.FeedSubscribers.Add(ctx, 3)

	rm := collect(t, reader)

	fill := findMetric(rm, "voxgate.capture.buffer_fill")
	if fill == nil {
		t.Fatal("buffer_fill not found")
	}
	g, ok := fill.Data.(metricdata.Gauge[int64])
	if !ok || g.DataPoints[0].Value != 1234 {
		t.Errorf("buffer_fill = %+v", fill.Data)
	}

	checks := map[string]int64{
		"voxgate.talking":                 1,
		"voxgate.capture.dropped_samples": 10,
		"voxgate.capture.stream_errors":   2,
		"voxgate.feed.subscribers":        3,
	}
	for name, want := range checks {
		met := findMetric(rm, name)
		if met == nil {
			t.Errorf("%s not found", name)
			continue
		}
		sum := met.Data.(metricdata.Sum[int64])
		if got := sum.DataPoints[0].Value; got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Fatal("DefaultMetrics returned different instances")
	}
}
