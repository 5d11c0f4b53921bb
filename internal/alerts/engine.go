package alerts

import (
	"fmt"
	"time"

	"hostpilot/internal/models"
)

type Threshold struct {
	Kind     models.AlertKind
	Label    string
	Unit     string
	Warning  float64
	Critical float64
}

// Thresholds is the fixed evaluation table, in evaluation order.
var Thresholds = []Threshold{
	{Kind: models.AlertCPUUsage, Label: "CPU usage", Unit: "%", Warning: 90, Critical: 95},
	{Kind: models.AlertMemoryUsage, Label: "Memory usage", Unit: "%", Warning: 85, Critical: 95},
	{Kind: models.AlertDiskUsage, Label: "Disk usage", Unit: "%", Warning: 80, Critical: 90},
	{Kind: models.AlertCPUTemperature, Label: "CPU temperature", Unit: "°C", Warning: 70, Critical: 80},
}

// Evaluate maps a snapshot to at most one event per kind. It has no side
// effects and does not suppress repeats across calls.
func Evaluate(s models.MetricsSnapshot) []models.AlertEvent {
	var out []models.AlertEvent
	ts := stamp(s.Timestamp)
	for _, th := range Thresholds {
		v := observed(s, th.Kind)
		sev, bound, ok := classify(v, th)
		if !ok {
			continue
		}
		out = append(out, models.AlertEvent{
			ID:             fmt.Sprintf("%s-%d", th.Kind, ts.UnixNano()),
			Kind:           th.Kind,
			Severity:       sev,
			Message:        fmt.Sprintf("%s %.1f%s reached %s threshold %.0f%s", th.Label, v, th.Unit, sev, bound, th.Unit),
			ObservedValue:  v,
			ThresholdValue: bound,
			Timestamp:      ts,
		})
	}
	return out
}

func classify(v float64, th Threshold) (models.Severity, float64, bool) {
	switch {
	case v >= th.Critical:
		return models.SeverityCritical, th.Critical, true
	case v >= th.Warning:
		return models.SeverityWarning, th.Warning, true
	default:
		return "", 0, false
	}
}

func observed(s models.MetricsSnapshot, kind models.AlertKind) float64 {
	switch kind {
	case models.AlertCPUUsage:
		return s.CPUUsagePercent
	case models.AlertMemoryUsage:
		return s.MemoryPercent
	case models.AlertDiskUsage:
		return s.DiskPercent
	case models.AlertCPUTemperature:
		return s.CPUTemperatureC
	default:
		return 0
	}
}

func stamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}
