// Package telemetry records monitor and operation counters with OpenTelemetry.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"hostpilot/internal/models"
)

type ExporterType string

const (
	ExporterNone   ExporterType = "none"
	ExporterStdout ExporterType = "stdout"
)

func ParseExporterType(s string) ExporterType {
	if s == string(ExporterStdout) {
		return ExporterStdout
	}
	return ExporterNone
}

type Config struct {
	ServiceName  string
	ExporterType ExporterType
	// Reader overrides the exporter; tests pass a ManualReader.
	Reader sdkmetric.Reader
}

type Metrics struct {
	provider *sdkmetric.MeterProvider
	enabled  bool

	ticks      metric.Int64Counter
	alerts     metric.Int64Counter
	operations metric.Int64Counter
	opDuration metric.Float64Histogram
}

// New builds the instruments. With no exporter and no reader the provider
// records into nothing.
func New(cfg Config) (*Metrics, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "hostpilot"
	}
	var opts []sdkmetric.Option
	enabled := true
	switch {
	case cfg.Reader != nil:
		opts = append(opts, sdkmetric.WithReader(cfg.Reader))
	case cfg.ExporterType == ExporterStdout:
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("stdout metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	default:
		enabled = false
	}
	m := &Metrics{provider: sdkmetric.NewMeterProvider(opts...), enabled: enabled}
	meter := m.provider.Meter(cfg.ServiceName)

	var err error
	if m.ticks, err = meter.Int64Counter("hostpilot.monitor.ticks",
		metric.WithDescription("Monitor ticks by probe outcome")); err != nil {
		return nil, err
	}
	if m.alerts, err = meter.Int64Counter("hostpilot.alerts",
		metric.WithDescription("Alert events raised by kind and severity")); err != nil {
		return nil, err
	}
	if m.operations, err = meter.Int64Counter("hostpilot.operations",
		metric.WithDescription("Settled remote operations by kind and status")); err != nil {
		return nil, err
	}
	if m.opDuration, err = meter.Float64Histogram("hostpilot.operation.duration",
		metric.WithDescription("Remote operation duration"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

func (m *Metrics) RecordTick(ctx context.Context, degraded bool) {
	if m == nil {
		return
	}
	m.ticks.Add(ctx, 1, metric.WithAttributes(attribute.Bool("degraded", degraded)))
}

func (m *Metrics) RecordAlerts(ctx context.Context, events []models.AlertEvent) {
	if m == nil {
		return
	}
	for _, e := range events {
		m.alerts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(e.Kind)),
			attribute.String("severity", string(e.Severity)),
		))
	}
}

func (m *Metrics) RecordOperation(ctx context.Context, op models.RemoteOperation) {
	if m == nil || !op.Settled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", string(op.Kind)),
		attribute.String("status", string(op.Status)),
	)
	m.operations.Add(ctx, 1, attrs)
	if op.DurationMillis != nil {
		m.opDuration.Record(ctx, float64(*op.DurationMillis), attrs)
	}
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
