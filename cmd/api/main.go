package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/twmb/franz-go/plugin/kprom"

	"github.com/baharkarakas/securebank/internal/api"
	"github.com/baharkarakas/securebank/internal/api/handlers"
	"github.com/baharkarakas/securebank/internal/auth"
	"github.com/baharkarakas/securebank/internal/cache"
	"github.com/baharkarakas/securebank/internal/config"
	"github.com/baharkarakas/securebank/internal/db"
	"github.com/baharkarakas/securebank/internal/events"
	"github.com/baharkarakas/securebank/internal/logger"
	"github.com/baharkarakas/securebank/internal/metrics"
	"github.com/baharkarakas/securebank/internal/repository"
	"github.com/baharkarakas/securebank/internal/repository/memory"
	"github.com/baharkarakas/securebank/internal/repository/postgres"
	"github.com/baharkarakas/securebank/internal/security"
	"github.com/baharkarakas/securebank/internal/services"
	"github.com/baharkarakas/securebank/internal/worker"
)

var configPath = kingpin.Flag("config", "Path to the application config file").Short('c').Default("config.yml").String()

func main() {
	kingpin.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("api exited", "err", err)
		os.Exit(1)
	}
}

type ledgerStore struct {
	ledger       repository.Ledger
	accounts     repository.Accounts
	transactions repository.Transactions
	audits       repository.AuditLogs
}

func openLedger(ctx context.Context, cfg config.Config, log *slog.Logger) (ledgerStore, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no database configured, using in-memory ledger")
		m := memory.NewStore()
		return ledgerStore{m, m, m.Transactions(), m.AuditLogs()}, func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return ledgerStore{}, nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.Migrate {
		if err := db.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return ledgerStore{}, nil, fmt.Errorf("migrations: %w", err)
		}
	}
	repos := postgres.NewRepositories(pool)
	return ledgerStore{repos.Ledger, repos.Accounts, repos.Transactions, repos.AuditLogs}, pool.Close, nil
}

func openCache(ctx context.Context, cfg config.Config) (cache.Store, func(), error) {
	if cfg.Cache.Backend != "redis" {
		m := cache.NewMemoryStore(time.Minute)
		return m, m.Close, nil
	}
	client, err := cache.Connect(ctx, cfg.Redis.URI, cfg.Redis.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("redis connect: %w", err)
	}
	return cache.NewRedisStore(client, "securebank:"), func() { _ = client.Close() }, nil
}

func openPublisher(cfg config.Config, log *slog.Logger) (events.Publisher, *kprom.Metrics, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("no kafka brokers configured, events are only logged")
		return events.LogPublisher{Log: log}, nil, func() {}, nil
	}
	m := kprom.NewMetrics("securebank_producer")
	p, err := events.NewKafkaPublisher(events.ProducerConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: cfg.Kafka.ClientID,
	}, m)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return p, m, p.Close, nil
}

func serverKey(cfg config.Config, log *slog.Logger) (*rsa.PrivateKey, error) {
	if cfg.Security.PrivateKeyPEM == "" {
		log.Warn("no server private key configured, generating an ephemeral one")
		priv, _, err := security.GenerateKeyPair(2048)
		if err != nil {
			return nil, err
		}
		return security.ParsePrivateKey(priv)
	}
	raw, err := security.LoadPEM(cfg.Security.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	return security.ParsePrivateKey(raw)
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	metrics.Init()

	store, closeLedger, err := openLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLedger()

	kv, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	pub, kafkaMetrics, closePub, err := openPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer closePub()

	wp := worker.NewPool(cfg.Workers.Size, cfg.Workers.Queue)
	defer wp.Stop()
	notifier := events.NewNotifier(pub, wp, log, cfg.Kafka.PublishTimeout())

	key, err := serverKey(cfg, log)
	if err != nil {
		return fmt.Errorf("server key: %w", err)
	}
	clients, err := security.NewStaticRegistry(cfg.Security.Clients)
	if err != nil {
		return fmt.Errorf("client keys: %w", err)
	}
	if len(clients) == 0 {
		log.Warn("no client public keys configured, every transfer will be rejected")
	}
	gw := security.NewGateway(cache.NewNonceCache(kv, cfg.Security.NonceTTL()), clients, key,
		security.WithDrift(cfg.Security.AllowedDrift()),
		security.WithCryptoTimeout(cfg.Security.CryptoTimeout()),
		security.WithLogger(log),
	)

	var sealer *security.ResponseSealer
	if cfg.Security.EncryptResponses {
		if sealer, err = security.NewResponseSealer(cfg.Security.DataEncryptionKey); err != nil {
			return fmt.Errorf("response sealer: %w", err)
		}
	}

	timeout := cfg.Storage.Timeout()
	// a claim outlives any transfer, which is bounded by the storage timeout
	idem := services.NewIdempotency(kv, cfg.Idempotency.TTL(), services.WithPendingTTL(3*timeout))
	transfers := services.NewTransferService(store.ledger, idem, notifier, log, timeout)
	accounts := services.NewAccountService(store.ledger, store.accounts, store.transactions, store.audits, notifier, log, timeout)

	directory := auth.Directory{}
	for id, op := range cfg.JWT.Operators {
		directory[id] = auth.Credential{PasswordHash: op.PasswordHash, Role: op.Role}
	}
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL)

	deps := api.RouterDeps{
		Log:      log,
		RateRPS:  cfg.RateRPS,
		Tokens:   tokens,
		Accounts: handlers.NewAccountHandler(accounts),
		Auth:     handlers.NewAuthHandler(tokens, directory),
	}
	if sealer != nil {
		deps.Transfers = handlers.NewTransferHandler(gw, transfers, sealer, log)
	} else {
		deps.Transfers = handlers.NewTransferHandler(gw, transfers, nil, log)
	}
	if kafkaMetrics != nil {
		deps.KafkaMetrics = kafkaMetrics.Handler()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
