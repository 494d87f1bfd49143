package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"

	"github.com/baharkarakas/securebank/internal/validate"
)

var DefaultConfig = []byte(`
env: "dev"
http_port: "8080"
database_url: ""
migrate: false
rate_rps: 100

jwt:
  secret: "changeme-secret"
  issuer: "securebank"
  access_ttl: "15m"
  operators: {}

cache:
  backend: "memory"

redis:
  uri: "localhost:6379"
  password: ""

kafka:
  brokers: []
  client_id: "bank-services"
  consumer_group: "notification-service"
  publish_timeout_ms: 3000

mongo:
  uri: "mongodb://localhost:27017"
  database: "bank"

security:
  allowed_timestamp_drift_ms: 120000
  nonce_ttl_ms: 300000
  crypto_timeout_ms: 2000
  private_key_pem: ""
  data_encryption_key: "default_secret_key"
  encrypt_responses: true
  clients: {}

idempotency:
  ttl_ms: 86400000

storage:
  timeout_ms: 5000

workers:
  size: 4
  queue: 1024
`)

type Config struct {
	Env         string      `koanf:"env"`
	HTTPPort    string      `koanf:"http_port"`
	DatabaseURL string      `koanf:"database_url"`
	Migrate     bool        `koanf:"migrate"`
	RateRPS     int         `koanf:"rate_rps"`
	JWT         JWT         `koanf:"jwt"`
	Cache       Cache       `koanf:"cache"`
	Redis       Redis       `koanf:"redis"`
	Kafka       Kafka       `koanf:"kafka"`
	Mongo       Mongo       `koanf:"mongo"`
	Security    Security    `koanf:"security"`
	Idempotency Idempotency `koanf:"idempotency"`
	Storage     Storage     `koanf:"storage"`
	Workers     Workers     `koanf:"workers"`
}

type JWT struct {
	Secret    string        `koanf:"secret"`
	Issuer    string        `koanf:"issuer"`
	AccessTTL time.Duration `koanf:"access_ttl"`
	// Operators may log in with a password to obtain an access token.
	Operators map[string]Operator `koanf:"operators"`
}

type Operator struct {
	PasswordHash string `koanf:"password_hash"` // bcrypt
	Role         string `koanf:"role"`
}

type Cache struct {
	Backend string `koanf:"backend"` // memory | redis
}

type Redis struct {
	URI      string `koanf:"uri"`
	Password string `koanf:"password"`
}

type Kafka struct {
	Brokers          []string `koanf:"brokers"`
	ClientID         string   `koanf:"client_id"`
	ConsumerGroup    string   `koanf:"consumer_group"`
	PublishTimeoutMS int64    `koanf:"publish_timeout_ms"`
}

type Mongo struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type Security struct {
	AllowedTimestampDriftMS int64  `koanf:"allowed_timestamp_drift_ms"`
	NonceTTLMS              int64  `koanf:"nonce_ttl_ms"`
	CryptoTimeoutMS         int64  `koanf:"crypto_timeout_ms"`
	PrivateKeyPEM           string `koanf:"private_key_pem"`
	DataEncryptionKey       string `koanf:"data_encryption_key"`
	EncryptResponses        bool   `koanf:"encrypt_responses"`
	// Clients maps clientId to PEM content or to a PEM file path.
	Clients map[string]string `koanf:"clients"`
}

type Idempotency struct {
	TTLMS int64 `koanf:"ttl_ms"`
}

type Storage struct {
	TimeoutMS int64 `koanf:"timeout_ms"`
}

type Workers struct {
	Size  int `koanf:"size"`
	Queue int `koanf:"queue"`
}

func (s Security) AllowedDrift() time.Duration  { return ms(s.AllowedTimestampDriftMS) }
func (s Security) NonceTTL() time.Duration      { return ms(s.NonceTTLMS) }
func (s Security) CryptoTimeout() time.Duration { return ms(s.CryptoTimeoutMS) }
func (i Idempotency) TTL() time.Duration        { return ms(i.TTLMS) }
func (s Storage) Timeout() time.Duration        { return ms(s.TimeoutMS) }
func (k Kafka) PublishTimeout() time.Duration   { return ms(k.PublishTimeoutMS) }

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

// envKeys maps the environment variables the service honours to koanf paths.
var envKeys = map[string]string{
	"APP_ENV":                    "env",
	"HTTP_PORT":                  "http_port",
	"DATABASE_URL":               "database_url",
	"APP_MIGRATE":                "migrate",
	"RATE_RPS":                   "rate_rps",
	"JWT_SECRET":                 "jwt.secret",
	"JWT_ISSUER":                 "jwt.issuer",
	"CACHE_BACKEND":              "cache.backend",
	"REDIS_URI":                  "redis.uri",
	"REDIS_PASSWORD":             "redis.password",
	"KAFKA_BROKERS":              "kafka.brokers",
	"KAFKA_CLIENT_ID":            "kafka.client_id",
	"MONGO_URI":                  "mongo.uri",
	"ALLOWED_TIMESTAMP_DRIFT_MS": "security.allowed_timestamp_drift_ms",
	"NONCE_TTL_MS":               "security.nonce_ttl_ms",
	"CRYPTO_TIMEOUT_MS":          "security.crypto_timeout_ms",
	"SERVER_PRIVATE_KEY_PEM":     "security.private_key_pem",
	"DATA_ENCRYPTION_KEY":        "security.data_encryption_key",
	"ENCRYPT_RESPONSES":          "security.encrypt_responses",
	"DEMO_CLIENT_PUBLIC_KEY_PEM": "security.clients.demo_client",
	"IDEMPOTENCY_TTL_MS":         "idempotency.ttl_ms",
	"STORAGE_TIMEOUT_MS":         "storage.timeout_ms",
}

// Load layers the embedded defaults, the optional YAML file at path and the
// environment, in that order.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(DefaultConfig), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}
	err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		path, ok := envKeys[key]
		if !ok || value == "" {
			return "", nil
		}
		if path == "kafka.brokers" {
			return path, strings.Split(value, ",")
		}
		return path, value
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var ve validate.Errs

	ve.Check(validate.Required("http_port", c.HTTPPort))
	ve.Check(validate.OneOf("cache.backend", c.Cache.Backend, "memory", "redis"))
	if c.Cache.Backend == "redis" {
		ve.Check(validate.Required("redis.uri", c.Redis.URI))
	}
	ve.Check(validate.MinInt("security.allowed_timestamp_drift_ms", c.Security.AllowedTimestampDriftMS, 1))
	ve.Check(validate.MinInt("security.nonce_ttl_ms", c.Security.NonceTTLMS, 1))
	ve.Check(validate.MinInt("security.crypto_timeout_ms", c.Security.CryptoTimeoutMS, 1))
	ve.Check(validate.MinInt("idempotency.ttl_ms", c.Idempotency.TTLMS, 1))
	ve.Check(validate.MinInt("storage.timeout_ms", c.Storage.TimeoutMS, 1))
	ve.Check(validate.MinInt("workers.size", int64(c.Workers.Size), 1))
	if c.Security.EncryptResponses {
		ve.Check(validate.Required("security.data_encryption_key", c.Security.DataEncryptionKey))
	}
	for id, op := range c.JWT.Operators {
		ve.Check(validate.Required("jwt.operators."+id+".password_hash", op.PasswordHash))
		ve.Check(validate.OneOf("jwt.operators."+id+".role", op.Role, "manager", "viewer"))
	}
	if c.Env == "prod" {
		ve.Check(validate.Required("database_url", c.DatabaseURL))
		if c.JWT.Secret == "changeme-secret" {
			ve.Add("jwt.secret", "must be changed in prod")
		}
		ve.Check(validate.Required("security.private_key_pem", c.Security.PrivateKeyPEM))
	}

	return ve.Err()
}
