// Package events publishes domain events to the message bus. Delivery is
// best effort and at-least-once; nothing in the ledger waits on it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"

	"github.com/baharkarakas/securebank/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, e models.Event) error
}

// NewEvent stamps a payload with a fresh id and the current time.
func NewEvent(topic, key string, payload any) models.Event {
	return models.Event{
		ID:         uuid.NewString(),
		Type:       topic,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type ProducerConfig struct {
	Brokers  []string
	ClientID string
}

// KafkaPublisher writes each event as JSON to the topic named by its type,
// keyed by the aggregate id so events of one account stay in one partition.
type KafkaPublisher struct {
	client *kgo.Client
}

func NewKafkaPublisher(conf ProducerConfig, metrics *kprom.Metrics) (*KafkaPublisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(conf.Brokers...),
		kgo.ClientID(conf.ClientID),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if metrics != nil {
		opts = append(opts, kgo.WithHooks(metrics))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e models.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	rec := &kgo.Record{Topic: e.Type, Key: []byte(e.Key), Value: value, Timestamp: e.OccurredAt}
	return p.client.ProduceSync(ctx, rec).FirstErr()
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// LogPublisher only logs events. Used when no brokers are configured.
type LogPublisher struct {
	Log *slog.Logger
}

func (p LogPublisher) Publish(_ context.Context, e models.Event) error {
	p.Log.Info("event", "topic", e.Type, "id", e.ID, "key", e.Key)
	return nil
}
