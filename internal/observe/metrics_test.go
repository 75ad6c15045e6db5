package observe

import (
	"context"
	"testing"
	"time"

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

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

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

// sumFor returns the value of the Int64 sum data point whose attributes
// contain every kv in want.
func sumFor(t *testing.T, m *metricdata.Metrics, want ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: data is %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, kv := range want {
			if v, ok := dp.Attributes.Value(kv.Key); !ok || v != kv.Value {
				match = false
				break
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func TestRecordExtraction(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordExtraction(context.Background(), 200*time.Microsecond)
	m.RecordExtraction(context.Background(), 300*time.Microsecond)

	got := findMetric(collect(t, reader), "voicefill.extract.duration")
	if got == nil {
		t.Fatal("voicefill.extract.duration not found")
	}
	hist, ok := got.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("data is %T, want Histogram[float64]", got.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
		t.Fatalf("data points = %+v, want one point with count 2", hist.DataPoints)
	}
	if len(hist.DataPoints[0].Bounds) != len(extractBuckets) {
		t.Errorf("bounds = %v, want %v", hist.DataPoints[0].Bounds, extractBuckets)
	}
}

func TestRecordSlot(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordSlot(ctx, "days", true, "range")
	m.RecordSlot(ctx, "days", true, "days.digits")
	m.RecordSlot(ctx, "budget", false, "")

	got := findMetric(collect(t, reader), "voicefill.slot.extractions")
	if got == nil {
		t.Fatal("voicefill.slot.extractions not found")
	}
	if n := sumFor(t, got, Attr("slot", "days"), Attr("outcome", "match")); n != 2 {
		t.Errorf("days matches = %d, want 2", n)
	}
	if n := sumFor(t, got, Attr("source", "range")); n != 1 {
		t.Errorf("range source = %d, want 1", n)
	}
	if n := sumFor(t, got, Attr("slot", "budget"), Attr("outcome", "no_match")); n != 1 {
		t.Errorf("budget misses = %d, want 1", n)
	}
}

func TestRecordCapture(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordCapture(ctx, "ok", 3*time.Second)
	m.RecordCapture(ctx, "no_speech", time.Second)
	m.ActiveCaptures.Add(ctx, 1)

	rm := collect(t, reader)
	captures := findMetric(rm, "voicefill.captures")
	if captures == nil {
		t.Fatal("voicefill.captures not found")
	}
	if n := sumFor(t, captures, Attr("status", "ok")); n != 1 {
		t.Errorf("ok captures = %d, want 1", n)
	}
	if findMetric(rm, "voicefill.capture.duration") == nil {
		t.Error("voicefill.capture.duration not found")
	}
	active := findMetric(rm, "voicefill.active_captures")
	if active == nil {
		t.Fatal("voicefill.active_captures not found")
	}
	if n := sumFor(t, active); n != 1 {
		t.Errorf("active captures = %d, want 1", n)
	}
}

func TestRecordProvider(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordProviderRequest(ctx, "deepgram", "ok")
	m.RecordProviderRequest(ctx, "deepgram", "error")
	m.RecordProviderError(ctx, "deepgram")

	rm := collect(t, reader)
	if n := sumFor(t, findMetric(rm, "voicefill.provider.requests"), Attr("provider", "deepgram")); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
	if n := sumFor(t, findMetric(rm, "voicefill.provider.errors"), Attr("provider", "deepgram")); n != 1 {
		t.Errorf("errors = %d, want 1", n)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
