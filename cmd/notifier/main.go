package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/twmb/franz-go/plugin/kprom"

	"github.com/baharkarakas/securebank/internal/cache"
	"github.com/baharkarakas/securebank/internal/config"
	"github.com/baharkarakas/securebank/internal/logger"
	"github.com/baharkarakas/securebank/internal/notify"
)

var (
	configPath     = kingpin.Flag("config", "Path to the application config file").Short('c').Default("config.yml").String()
	recordsPerPoll = kingpin.Flag("records-per-poll", "Maximum records fetched per poll").Default("100").Int()
)

func main() {
	kingpin.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env).With("service", "notifier")
	slog.SetDefault(log)

	if len(cfg.Kafka.Brokers) == 0 {
		log.Error("kafka.brokers is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("notifier exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	mongoClient, err := notify.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	redisClient, err := cache.Connect(ctx, cfg.Redis.URI, cfg.Redis.Password)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer func() { _ = redisClient.Close() }()

	processor := notify.NewProcessor(
		notify.NewMongoStore(mongoClient, cfg.Mongo.Database),
		notify.NewDeadLetterQueue(redisClient, log),
		log,
	)

	consumer, err := notify.NewConsumer(notify.ConsumerConfig{
		Brokers:        cfg.Kafka.Brokers,
		Group:          cfg.Kafka.ConsumerGroup,
		Topics:         notify.Topics(),
		RecordsPerPoll: *recordsPerPoll,
	}, processor, kprom.NewMetrics("securebank_notifier"), log)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}

	log.Info("consuming domain events", "group", cfg.Kafka.ConsumerGroup)
	return consumer.Poll(ctx)
}
