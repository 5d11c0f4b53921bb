package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"hostpilot/internal/models"
)

func TestParseExporterType(t *testing.T) {
	if ParseExporterType("stdout") != ExporterStdout {
		t.Fatal("stdout not parsed")
	}
	for _, s := range []string{"", "none", "otlp"} {
		if ParseExporterType(s) != ExporterNone {
			t.Fatalf("ParseExporterType(%q) != none", s)
		}
	}
}

func TestDisabledMetricsAreSafe(t *testing.T) {
	ctx := context.Background()
	m, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Shutdown(ctx)
	if m.Enabled() {
		t.Fatal("expected disabled metrics")
	}
	m.RecordTick(ctx, false)

	var nilMetrics *Metrics
	nilMetrics.RecordTick(ctx, true)
	nilMetrics.RecordOperation(ctx, models.RemoteOperation{Status: models.StatusSuccess})
}

func TestRecordsCounters(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	m, err := New(Config{Reader: reader})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Shutdown(ctx)

	m.RecordTick(ctx, false)
	m.RecordTick(ctx, true)
	m.RecordAlerts(ctx, []models.AlertEvent{
		{Kind: models.AlertCPUUsage, Severity: models.SeverityCritical},
		{Kind: models.AlertDiskUsage, Severity: models.SeverityWarning},
	})
	d := int64(12)
	m.RecordOperation(ctx, models.RemoteOperation{Kind: models.OpPing, Status: models.StatusSuccess, DurationMillis: &d})
	m.RecordOperation(ctx, models.RemoteOperation{Kind: models.OpPing, Status: models.StatusPending})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[md.Name] += dp.Value
				}
			}
		}
	}
	if totals["hostpilot.monitor.ticks"] != 2 {
		t.Fatalf("ticks = %d", totals["hostpilot.monitor.ticks"])
	}
	if totals["hostpilot.alerts"] != 2 {
		t.Fatalf("alerts = %d", totals["hostpilot.alerts"])
	}
	if totals["hostpilot.operations"] != 1 {
		t.Fatalf("operations = %d, pending ops must not count", totals["hostpilot.operations"])
	}
}
