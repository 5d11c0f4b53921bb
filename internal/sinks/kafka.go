package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"hostpilot/internal/models"
)

const (
	deliveryTimeout       = 10 * time.Second
	produceRequestTimeout = 5 * time.Second
)

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Kafka publishes alert events, one record per event keyed by kind.
type Kafka struct {
	client   *kgo.Client
	producer producer
	topic    string
}

type alertRecord struct {
	Hostname string `json:"hostname,omitempty"`
	models.AlertEvent
}

func NewKafka(brokers, topic string) (*Kafka, error) {
	var seeds []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			seeds = append(seeds, b)
		}
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("kafka: no brokers")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.DefaultProduceTopic(topic),
		kgo.RecordDeliveryTimeout(deliveryTimeout),
		kgo.ProduceRequestTimeout(produceRequestTimeout),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Kafka{client: client, producer: client, topic: topic}, nil
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Publish(ctx context.Context, snap models.MetricsSnapshot, events []models.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(alertRecord{Hostname: snap.Hostname, AlertEvent: e})
		if err != nil {
			return fmt.Errorf("encode alert %s: %w", e.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic:     k.topic,
			Key:       []byte(e.Kind),
			Value:     value,
			Timestamp: e.Timestamp,
		})
	}
	if err := k.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}
	return nil
}

func (k *Kafka) Close() {
	if k.client != nil {
		k.client.Close()
	}
}
