package otel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	goBlog "github.com/MrEthical07/goBlog"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goBlog.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goBlog.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goBlog.MetricsSnapshot{
		Counters:   make(map[goBlog.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goBlog.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

// collectInt sums each instrument's data points. Series with an "le"
// attribute are keyed as name{le}.
func collectInt(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					name := m.Name
					if le, ok := dp.Attributes.Value("le"); ok {
						name += "{" + le.AsString() + "}"
					}
					out[name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("blogportal-test")

	src := &fakeSource{
		snapshot: goBlog.MetricsSnapshot{
			Counters: map[goBlog.MetricID]uint64{
				goBlog.MetricGuardReconcile: 3,
			},
			Histograms: map[goBlog.MetricID][]uint64{
				goBlog.MetricAPILatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	got := collectInt(t, reader)
	if got["blogportal_guard_reconcile_total"] != 3 {
		t.Fatalf("expected reconcile=3, got %d", got["blogportal_guard_reconcile_total"])
	}
	if got["blogportal_api_latency_seconds_bucket{0.25}"] != 3 {
		t.Fatalf("expected cumulative bucket 0.25s = 3, got %d", got["blogportal_api_latency_seconds_bucket{0.25}"])
	}
	if got["blogportal_api_latency_seconds_bucket{+Inf}"] != 8 {
		t.Fatalf("expected +Inf bucket = 8, got %d", got["blogportal_api_latency_seconds_bucket{+Inf}"])
	}
	if got["blogportal_api_latency_seconds_count"] != 8 {
		t.Fatalf("expected count=8, got %d", got["blogportal_api_latency_seconds_count"])
	}
	if got["blogportal_audit_dropped_total"] != 1 {
		t.Fatalf("expected dropped=1, got %d", got["blogportal_audit_dropped_total"])
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("blogportal-test")

	if _, err := NewExporterFromSource(meter, nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(meter, nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("expected ErrNilSource for nil portal, got %v", err)
	}
}

func TestExporterReadsPortal(t *testing.T) {
	reader, provider := newReader()
	portal, err := goBlog.New().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer portal.Close()

	exp, err := NewExporter(provider.Meter("blogportal-test"), portal)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer exp.Close()

	portal.Evaluate(context.Background())
	portal.Evaluate(context.Background())

	if got := collectInt(t, reader)["blogportal_guard_redirect_total"]; got != 2 {
		t.Fatalf("expected 2 redirects, got %d", got)
	}
}

func TestExporterSkipsDisabledLatency(t *testing.T) {
	reader, provider := newReader()
	portal, err := goBlog.New().WithLatencyHistograms(false).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer portal.Close()

	exp, err := NewExporter(provider.Meter("blogportal-test"), portal)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer exp.Close()

	got := collectInt(t, reader)
	for name := range got {
		if strings.HasPrefix(name, "blogportal_api_latency_seconds") {
			t.Fatalf("latency series %s reported while histograms are disabled", name)
		}
	}
	if _, ok := got["blogportal_guard_allow_total"]; !ok {
		t.Fatal("counters missing from collection")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("blogportal-test")

	src := &fakeSource{
		snapshot: goBlog.MetricsSnapshot{
			Counters: map[goBlog.MetricID]uint64{
				goBlog.MetricLoginSuccess: 1,
			},
			Histograms: map[goBlog.MetricID][]uint64{
				goBlog.MetricAPILatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goBlog.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
