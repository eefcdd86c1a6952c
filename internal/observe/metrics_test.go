package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

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

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordResolve_CountsByStatus(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordResolve(ctx, StatusOK, 120*time.Millisecond)
	m.RecordResolve(ctx, StatusOK, 80*time.Millisecond)
	m.RecordResolve(ctx, StatusAuthFailure, time.Second)

	met := findMetric(t, reader, "peerclient.resolve.requests")
	if met == nil {
		t.Fatal("peerclient.resolve.requests not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", met.Data)
	}

	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("status"))
		got[v.AsString()] = dp.Value
	}
	if got[StatusOK] != 2 {
		t.Errorf("ok count = %d, want 2", got[StatusOK])
	}
	if got[StatusAuthFailure] != 1 {
		t.Errorf("auth_failure count = %d, want 1", got[StatusAuthFailure])
	}
}

func TestRecordResolve_RecordsDuration(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordResolve(context.Background(), StatusMalformed, 250*time.Millisecond)

	met := findMetric(t, reader, "peerclient.resolve.duration")
	if met == nil {
		t.Fatal("peerclient.resolve.duration not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", met.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(hist.DataPoints))
	}
	if hist.DataPoints[0].Count != 1 {
		t.Errorf("count = %d, want 1", hist.DataPoints[0].Count)
	}
	if hist.DataPoints[0].Sum != 0.25 {
		t.Errorf("sum = %v, want 0.25", hist.DataPoints[0].Sum)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
