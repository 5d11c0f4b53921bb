package alerts

import (
	"fmt"
	"testing"
	"time"

	"hostpilot/internal/models"
)

func TestClassifyBoundaries(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		kind models.AlertKind
		set  func(*models.MetricsSnapshot, float64)
		v    float64
		want models.Severity
	}{
		{models.AlertCPUUsage, setCPU, 89.9, ""},
		{models.AlertCPUUsage, setCPU, 90, models.SeverityWarning},
		{models.AlertCPUUsage, setCPU, 94.9, models.SeverityWarning},
		{models.AlertCPUUsage, setCPU, 95, models.SeverityCritical},
		{models.AlertCPUUsage, setCPU, 100, models.SeverityCritical},
		{models.AlertMemoryUsage, setMem, 84.9, ""},
		{models.AlertMemoryUsage, setMem, 85, models.SeverityWarning},
		{models.AlertMemoryUsage, setMem, 95, models.SeverityCritical},
		{models.AlertDiskUsage, setDisk, 79.9, ""},
		{models.AlertDiskUsage, setDisk, 80, models.SeverityWarning},
		{models.AlertDiskUsage, setDisk, 90, models.SeverityCritical},
		{models.AlertCPUTemperature, setTemp, 69.9, ""},
		{models.AlertCPUTemperature, setTemp, 70, models.SeverityWarning},
		{models.AlertCPUTemperature, setTemp, 80, models.SeverityCritical},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%v", tc.kind, tc.v), func(t *testing.T) {
			s := models.MetricsSnapshot{Timestamp: now}
			tc.set(&s, tc.v)
			got := Evaluate(s)
			if tc.want == "" {
				if len(got) != 0 {
					t.Fatalf("Evaluate = %+v, want no alerts", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("Evaluate returned %d alerts, want 1", len(got))
			}
			if got[0].Kind != tc.kind || got[0].Severity != tc.want {
				t.Fatalf("got %s/%s, want %s/%s", got[0].Kind, got[0].Severity, tc.kind, tc.want)
			}
			if got[0].ObservedValue != tc.v {
				t.Fatalf("observed = %v, want %v", got[0].ObservedValue, tc.v)
			}
		})
	}
}

func TestEvaluateAllKindsInTableOrder(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	s := models.MetricsSnapshot{Timestamp: now, CPUUsagePercent: 97, MemoryPercent: 86, DiskPercent: 91, CPUTemperatureC: 72}
	got := Evaluate(s)
	want := []struct {
		kind models.AlertKind
		sev  models.Severity
		th   float64
	}{
		{models.AlertCPUUsage, models.SeverityCritical, 95},
		{models.AlertMemoryUsage, models.SeverityWarning, 85},
		{models.AlertDiskUsage, models.SeverityCritical, 90},
		{models.AlertCPUTemperature, models.SeverityWarning, 70},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	ids := map[string]bool{}
	for i, w := range want {
		if got[i].Kind != w.kind || got[i].Severity != w.sev || got[i].ThresholdValue != w.th {
			t.Fatalf("alert %d = %+v, want %v/%v/%v", i, got[i], w.kind, w.sev, w.th)
		}
		if !got[i].Timestamp.Equal(now) {
			t.Fatalf("timestamp = %v, want %v", got[i].Timestamp, now)
		}
		if ids[got[i].ID] {
			t.Fatalf("duplicate id %q", got[i].ID)
		}
		ids[got[i].ID] = true
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	s := models.MetricsSnapshot{Timestamp: time.Unix(100, 0), CPUUsagePercent: 92}
	a, b := Evaluate(s), Evaluate(s)
	if len(a) != 1 || len(b) != 1 || a[0] != b[0] {
		t.Fatalf("evaluations differ: %+v vs %+v", a, b)
	}
}

func TestEvaluateUnstampedSnapshotIDFollowsStamp(t *testing.T) {
	got := Evaluate(models.MetricsSnapshot{CPUUsagePercent: 97})
	if len(got) != 1 {
		t.Fatalf("got %d events", len(got))
	}
	ev := got[0]
	if ev.Timestamp.IsZero() {
		t.Fatal("event not stamped")
	}
	if want := fmt.Sprintf("%s-%d", ev.Kind, ev.Timestamp.UnixNano()); ev.ID != want {
		t.Fatalf("id = %q, want %q", ev.ID, want)
	}
	if zero := fmt.Sprintf("%s-%d", ev.Kind, time.Time{}.UnixNano()); ev.ID == zero {
		t.Fatalf("id derived from zero time: %q", ev.ID)
	}
}

func TestEvaluateFallbackSnapshotHasNoAlerts(t *testing.T) {
	if got := Evaluate(models.FallbackSnapshot(time.Now())); len(got) != 0 {
		t.Fatalf("fallback produced alerts: %+v", got)
	}
}

func setCPU(s *models.MetricsSnapshot, v float64)  { s.CPUUsagePercent = v }
func setMem(s *models.MetricsSnapshot, v float64)  { s.MemoryPercent = v }
func setDisk(s *models.MetricsSnapshot, v float64) { s.DiskPercent = v }
func setTemp(s *models.MetricsSnapshot, v float64) { s.CPUTemperatureC = v }
