package models

import (
	"fmt"
	"net"
	"strings"
	"time"
)

type MetricsSnapshot struct {
	Timestamp            time.Time `json:"timestamp"`
	Hostname             string    `json:"hostname,omitempty"`
	Platform             string    `json:"platform,omitempty"`
	CPUUsagePercent      float64   `json:"cpu_usage_percent"`
	CPUTemperatureC      float64   `json:"cpu_temperature_c"`
	CPUCoreCount         int       `json:"cpu_core_count"`
	MemoryUsedBytes      uint64    `json:"memory_used_bytes"`
	MemoryTotalBytes     uint64    `json:"memory_total_bytes"`
	MemoryPercent        float64   `json:"memory_percent"`
	DiskUsedBytes        uint64    `json:"disk_used_bytes"`
	DiskTotalBytes       uint64    `json:"disk_total_bytes"`
	DiskPercent          float64   `json:"disk_percent"`
	NetworkRxBytesPerSec float64   `json:"network_rx_bytes_per_sec"`
	NetworkTxBytesPerSec float64   `json:"network_tx_bytes_per_sec"`
	NetworkInterfaces    []string  `json:"network_interfaces"`
	ProcessCount         int       `json:"process_count"`
	UptimeSeconds        uint64    `json:"uptime_seconds"`
	Load1                float64   `json:"load1"`
	Load5                float64   `json:"load5"`
	Load15               float64   `json:"load15"`
	// Degraded marks the fallback snapshot returned when the probe failed.
	Degraded bool `json:"degraded"`
}

// FallbackSnapshot is what callers receive when the metrics source is
// unavailable: every figure zeroed, stamped with now.
func FallbackSnapshot(now time.Time) MetricsSnapshot {
	return MetricsSnapshot{
		Timestamp:         now.UTC(),
		NetworkInterfaces: []string{},
		Degraded:          true,
	}
}

func ClampPercent(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

type AlertKind string

const (
	AlertCPUUsage       AlertKind = "cpu-usage"
	AlertMemoryUsage    AlertKind = "memory-usage"
	AlertDiskUsage      AlertKind = "disk-usage"
	AlertCPUTemperature AlertKind = "cpu-temperature"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type AlertEvent struct {
	ID             string    `json:"id"`
	Kind           AlertKind `json:"kind"`
	Severity       Severity  `json:"severity"`
	Message        string    `json:"message"`
	ObservedValue  float64   `json:"observed_value"`
	ThresholdValue float64   `json:"threshold_value"`
	Timestamp      time.Time `json:"timestamp"`
}

func (a AlertEvent) IsCritical() bool { return a.Severity == SeverityCritical }

var supportedPlatforms = []string{"windows", "linux", "darwin"}

// SupportedPlatforms lists the platform tags commands are mapped for.
func SupportedPlatforms() []string {
	out := make([]string, len(supportedPlatforms))
	copy(out, supportedPlatforms)
	return out
}

func IsSupportedPlatform(p string) bool {
	for _, s := range supportedPlatforms {
		if s == p {
			return true
		}
	}
	return false
}

type RemoteTarget struct {
	Name     string `json:"name"`
	IP       string `json:"ip"`
	MAC      string `json:"mac"`
	Platform string `json:"platform,omitempty"`
	Port     int    `json:"port,omitempty"`
}

func (t RemoteTarget) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("target name is required")
	}
	if t.IP != "" && net.ParseIP(t.IP) == nil {
		return fmt.Errorf("invalid ip %q", t.IP)
	}
	if t.MAC != "" {
		if _, err := net.ParseMAC(t.MAC); err != nil {
			return fmt.Errorf("invalid mac %q: %w", t.MAC, err)
		}
	}
	if t.Platform != "" && !IsSupportedPlatform(t.Platform) {
		return fmt.Errorf("unsupported platform %q", t.Platform)
	}
	if t.Port < 0 || t.Port > 65535 {
		return fmt.Errorf("invalid port %d", t.Port)
	}
	return nil
}

type OperationKind string

const (
	OpWake             OperationKind = "wake"
	OpShutdown         OperationKind = "shutdown"
	OpRestart          OperationKind = "restart"
	OpScheduleShutdown OperationKind = "schedule-shutdown"
	OpCancelShutdown   OperationKind = "cancel-shutdown"
	OpPing             OperationKind = "ping"
)

type OperationStatus string

const (
	StatusPending OperationStatus = "pending"
	StatusSuccess OperationStatus = "success"
	StatusFailed  OperationStatus = "failed"
)

type RemoteOperation struct {
	ID             string          `json:"id"`
	Target         string          `json:"target"`
	Kind           OperationKind   `json:"kind"`
	Status         OperationStatus `json:"status"`
	Timestamp      time.Time       `json:"timestamp"`
	Command        string          `json:"command,omitempty"`
	Error          string          `json:"error,omitempty"`
	DurationMillis *int64          `json:"duration_ms,omitempty"`
}

func (o RemoteOperation) Settled() bool { return o.Status != StatusPending }
