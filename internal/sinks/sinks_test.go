package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/twmb/franz-go/pkg/kgo"

	"hostpilot/internal/models"
)

var ts = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

func sample() (models.MetricsSnapshot, []models.AlertEvent) {
	snap := models.MetricsSnapshot{Timestamp: ts, Hostname: "nas", Platform: "linux", CPUUsagePercent: 96}
	events := []models.AlertEvent{{
		ID: "cpu-usage-1", Kind: models.AlertCPUUsage, Severity: models.SeverityCritical,
		Message: "CPU usage 96.0% reached critical threshold 95%", ObservedValue: 96, ThresholdValue: 95, Timestamp: ts,
	}}
	return snap, events
}

type capturePoints struct {
	points []*write.Point
	err    error
}

func (c *capturePoints) WritePoint(_ context.Context, p ...*write.Point) error {
	c.points = append(c.points, p...)
	return c.err
}

func TestInfluxPublish(t *testing.T) {
	w := &capturePoints{}
	sink := &Influx{writer: w}
	snap, events := sample()
	if err := sink.Publish(context.Background(), snap, events); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.points) != 2 {
		t.Fatalf("wrote %d points, want 2", len(w.points))
	}
	metrics := write.PointToLineProtocol(w.points[0], time.Second)
	if !strings.HasPrefix(metrics, "system_metrics,hostname=nas,platform=linux ") || !strings.Contains(metrics, "cpu_usage_percent=96") {
		t.Fatalf("metrics line = %q", metrics)
	}
	alert := write.PointToLineProtocol(w.points[1], time.Second)
	if !strings.HasPrefix(alert, "alerts,") || !strings.Contains(alert, "severity=critical") || !strings.Contains(alert, "kind=cpu-usage") {
		t.Fatalf("alert line = %q", alert)
	}
}

func TestInfluxPublishError(t *testing.T) {
	sink := &Influx{writer: &capturePoints{err: errors.New("unauthorized")}}
	snap, _ := sample()
	if err := sink.Publish(context.Background(), snap, nil); err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("err = %v", err)
	}
}

type captureProducer struct {
	records []*kgo.Record
	err     error
}

func (c *captureProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	c.records = append(c.records, rs...)
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		out = append(out, kgo.ProduceResult{Record: r, Err: c.err})
	}
	return out
}

func TestKafkaPublish(t *testing.T) {
	p := &captureProducer{}
	sink := &Kafka{producer: p, topic: "hostpilot.alerts"}
	snap, events := sample()
	if err := sink.Publish(context.Background(), snap, events); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(p.records) != 1 {
		t.Fatalf("produced %d records", len(p.records))
	}
	r := p.records[0]
	if r.Topic != "hostpilot.alerts" || string(r.Key) != "cpu-usage" {
		t.Fatalf("record topic=%q key=%q", r.Topic, r.Key)
	}
	var got map[string]any
	if err := json.Unmarshal(r.Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["hostname"] != "nas" || got["severity"] != "critical" || got["id"] != "cpu-usage-1" {
		t.Fatalf("payload = %v", got)
	}
}

func TestKafkaSkipsEmptyTicks(t *testing.T) {
	p := &captureProducer{}
	sink := &Kafka{producer: p, topic: "t"}
	snap, _ := sample()
	if err := sink.Publish(context.Background(), snap, nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(p.records) != 0 {
		t.Fatal("produced records for a quiet tick")
	}
}

func TestKafkaProduceError(t *testing.T) {
	sink := &Kafka{producer: &captureProducer{err: errors.New("broker down")}, topic: "t"}
	snap, events := sample()
	if err := sink.Publish(context.Background(), snap, events); err == nil {
		t.Fatal("expected produce error")
	}
}

func TestNewKafkaValidates(t *testing.T) {
	if _, err := NewKafka(" , ", "t"); err == nil {
		t.Fatal("expected error for empty broker list")
	}
	if _, err := NewKafka("localhost:9092", ""); err == nil {
		t.Fatal("expected error for missing topic")
	}
}

func TestNewKafkaBoundsDelivery(t *testing.T) {
	k, err := NewKafka("127.0.0.1:1", "hostpilot.alerts")
	if err != nil {
		t.Fatalf("NewKafka: %v", err)
	}
	defer k.Close()
	if got := k.client.OptValue(kgo.RecordDeliveryTimeout); got != deliveryTimeout {
		t.Fatalf("record delivery timeout = %v", got)
	}
	if got := k.client.OptValue(kgo.ProduceRequestTimeout); got != produceRequestTimeout {
		t.Fatalf("produce request timeout = %v", got)
	}
}
