package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
)

type ConsumerConfig struct {
	Brokers        []string
	Group          string
	Topics         []string
	RecordsPerPoll int
}

type RecordProcessor interface {
	ProcessRecords(ctx context.Context, records []Record) error
}

// Consumer polls the domain topics as part of a consumer group and commits
// a batch only after it was processed.
type Consumer struct {
	client    *kgo.Client
	conf      ConsumerConfig
	processor RecordProcessor
	log       *slog.Logger
}

func NewConsumer(conf ConsumerConfig, processor RecordProcessor, metrics *kprom.Metrics, log *slog.Logger) (*Consumer, error) {
	if conf.RecordsPerPoll <= 0 {
		conf.RecordsPerPoll = 100
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(conf.Brokers...),
		kgo.ConsumerGroup(conf.Group),
		kgo.ConsumeTopics(conf.Topics...),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	}
	if metrics != nil {
		opts = append(opts, kgo.WithHooks(metrics))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &Consumer{client: client, conf: conf, processor: processor, log: log}, nil
}

// Poll runs until ctx is cancelled or the client is closed.
func (c *Consumer) Poll(ctx context.Context) error {
	defer c.client.Close()

	for {
		if err := ctx.Err(); err != nil {
			c.log.Warn("polling stopped", "err", err)
			return nil
		}

		fetches := c.client.PollRecords(ctx, c.conf.RecordsPerPoll)
		if fetches.IsClientClosed() {
			return errors.New("kafka client closed")
		}
		if errors.Is(fetches.Err0(), context.Canceled) {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.log.Error("fetch error", "topic", topic, "partition", partition, "err", err)
		})

		fetched := fetches.Records()
		records := make([]Record, len(fetched))
		for i, r := range fetched {
			records[i] = Record{Topic: r.Topic, Key: string(r.Key), Value: r.Value}
		}

		if err := c.processor.ProcessRecords(ctx, records); err != nil {
			c.log.Error("failed to process records", "err", err)
			c.client.AllowRebalance()
			continue
		}
		if err := c.client.CommitRecords(ctx, fetched...); err != nil {
			c.log.Error("commit failed", "err", err)
		}
		c.client.AllowRebalance()
	}
}
