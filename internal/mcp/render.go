package mcp

import (
	"fmt"
	"strings"
	"time"

	"hostpilot/internal/models"
)

// The render functions turn records into the text content of tool results.
// They never look anything up.

func RenderStatus(s models.MetricsSnapshot, running bool, interval time.Duration, alertCount int) string {
	var b strings.Builder
	host := s.Hostname
	if host == "" {
		host = "this machine"
	}
	fmt.Fprintf(&b, "System status for %s at %s\n", host, s.Timestamp.UTC().Format(time.RFC3339))
	if s.Degraded {
		b.WriteString("Metrics source unavailable; figures below are zeroed.\n")
	}
	fmt.Fprintf(&b, "CPU: %.1f%% across %d cores", s.CPUUsagePercent, s.CPUCoreCount)
	if s.CPUTemperatureC > 0 {
		fmt.Fprintf(&b, ", %.1f°C", s.CPUTemperatureC)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Memory: %s / %s (%.1f%%)\n", formatBytes(s.MemoryUsedBytes), formatBytes(s.MemoryTotalBytes), s.MemoryPercent)
	fmt.Fprintf(&b, "Disk: %s / %s (%.1f%%)\n", formatBytes(s.DiskUsedBytes), formatBytes(s.DiskTotalBytes), s.DiskPercent)
	fmt.Fprintf(&b, "Network: rx %s/s, tx %s/s\n", formatBytes(uint64(s.NetworkRxBytesPerSec)), formatBytes(uint64(s.NetworkTxBytesPerSec)))
	fmt.Fprintf(&b, "Load: %.2f %.2f %.2f\n", s.Load1, s.Load5, s.Load15)
	if len(s.NetworkInterfaces) > 0 {
		fmt.Fprintf(&b, "Interfaces: %s\n", strings.Join(s.NetworkInterfaces, ", "))
	}
	if s.ProcessCount > 0 {
		fmt.Fprintf(&b, "Processes: %d\n", s.ProcessCount)
	}
	fmt.Fprintf(&b, "Uptime: %s\n", formatUptime(s.UptimeSeconds))
	if running {
		fmt.Fprintf(&b, "Monitoring: running every %s", interval)
	} else {
		b.WriteString("Monitoring: stopped")
	}
	fmt.Fprintf(&b, ", %d alert(s) recorded", alertCount)
	return b.String()
}

// RenderAlerts lists events newest first.
func RenderAlerts(events []models.AlertEvent) string {
	if len(events) == 0 {
		return "No alerts recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d alert(s), newest first:", len(events))
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		fmt.Fprintf(&b, "\n- [%s] %s %s", strings.ToUpper(string(e.Severity)), e.Timestamp.UTC().Format(time.RFC3339), e.Message)
	}
	return b.String()
}

func RenderOperation(op models.RemoteOperation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s on %s: %s", op.Kind, op.Target, op.Status)
	if op.DurationMillis != nil {
		fmt.Fprintf(&b, " in %dms", *op.DurationMillis)
	}
	if op.Command != "" {
		fmt.Fprintf(&b, "\nCommand: %s", op.Command)
	}
	if op.Error != "" {
		fmt.Fprintf(&b, "\nError: %s", op.Error)
	}
	fmt.Fprintf(&b, "\nOperation ID: %s", op.ID)
	return b.String()
}

// RenderOperations lists operations in the chronological order given.
func RenderOperations(ops []models.RemoteOperation) string {
	if len(ops) == 0 {
		return "No operations recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d operation(s):", len(ops))
	for _, op := range ops {
		fmt.Fprintf(&b, "\n- %s %s %s: %s", op.Timestamp.UTC().Format(time.RFC3339), op.Kind, op.Target, op.Status)
		if op.Error != "" {
			fmt.Fprintf(&b, " (%s)", op.Error)
		}
	}
	return b.String()
}

func RenderTargets(targets []models.RemoteTarget) string {
	if len(targets) == 0 {
		return "No targets registered."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d target(s):", len(targets))
	for _, t := range targets {
		fmt.Fprintf(&b, "\n- %s ip=%s mac=%s", t.Name, orDash(t.IP), orDash(t.MAC))
		if t.Platform != "" {
			fmt.Fprintf(&b, " platform=%s", t.Platform)
		}
		if t.Port != 0 {
			fmt.Fprintf(&b, " port=%d", t.Port)
		}
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatUptime(sec uint64) string {
	d := time.Duration(sec) * time.Second
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, h, m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
