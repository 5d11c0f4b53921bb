package sinks

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"hostpilot/internal/models"
)

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Influx writes every snapshot and alert as InfluxDB points.
type Influx struct {
	client influxdb2.Client
	writer pointWriter
}

func NewInflux(ctx context.Context, cfg InfluxConfig) (*Influx, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	health, err := client.Health(hctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb health check: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("influxdb not healthy: status %s", health.Status)
	}
	return &Influx{client: client, writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket)}, nil
}

func (i *Influx) Name() string { return "influxdb" }

func (i *Influx) Publish(ctx context.Context, snap models.MetricsSnapshot, events []models.AlertEvent) error {
	points := make([]*write.Point, 0, len(events)+1)
	points = append(points, snapshotPoint(snap))
	for _, e := range events {
		points = append(points, alertPoint(snap, e))
	}
	if err := i.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influxdb write: %w", err)
	}
	return nil
}

func (i *Influx) Close() {
	if i.client != nil {
		i.client.Close()
	}
}

func hostTags(snap models.MetricsSnapshot) map[string]string {
	tags := map[string]string{}
	if snap.Hostname != "" {
		tags["hostname"] = snap.Hostname
	}
	if snap.Platform != "" {
		tags["platform"] = snap.Platform
	}
	return tags
}

func snapshotPoint(snap models.MetricsSnapshot) *write.Point {
	fields := map[string]interface{}{
		"cpu_usage_percent":  snap.CPUUsagePercent,
		"cpu_temperature_c":  snap.CPUTemperatureC,
		"cpu_cores":          snap.CPUCoreCount,
		"mem_used_bytes":     snap.MemoryUsedBytes,
		"mem_total_bytes":    snap.MemoryTotalBytes,
		"mem_usage_percent":  snap.MemoryPercent,
		"disk_used_bytes":    snap.DiskUsedBytes,
		"disk_total_bytes":   snap.DiskTotalBytes,
		"disk_usage_percent": snap.DiskPercent,
		"net_rx_bytes_sec":   snap.NetworkRxBytesPerSec,
		"net_tx_bytes_sec":   snap.NetworkTxBytesPerSec,
		"process_count":      snap.ProcessCount,
		"uptime_seconds":     snap.UptimeSeconds,
		"load1":              snap.Load1,
		"load5":              snap.Load5,
		"load15":             snap.Load15,
		"degraded":           snap.Degraded,
	}
	return write.NewPoint("system_metrics", hostTags(snap), fields, snap.Timestamp)
}

func alertPoint(snap models.MetricsSnapshot, e models.AlertEvent) *write.Point {
	tags := hostTags(snap)
	tags["kind"] = string(e.Kind)
	tags["severity"] = string(e.Severity)
	fields := map[string]interface{}{
		"observed":  e.ObservedValue,
		"threshold": e.ThresholdValue,
		"message":   e.Message,
	}
	return write.NewPoint("alerts", tags, fields, e.Timestamp)
}
