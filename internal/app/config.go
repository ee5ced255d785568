package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/vladislavdragonenkov/dailygoods/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/dailygoods/internal/messaging/rabbitmq"
)

// StorageDriver выбирает хранилище записей.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
	StorageDriverMongo    StorageDriver = "mongo"
)

const (
	defaultPort          = "5000"
	defaultMongoURI      = "mongodb://localhost:27017/dailygoods"
	defaultMongoDatabase = "dailygoods"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool
	MongoURI            string
	MongoDatabase       string

	RedisAddr       string
	ProductCacheTTL time.Duration

	KafkaBrokers  []string
	KafkaTopic    string
	RabbitMQURL   string
	RabbitMQQueue string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	TracingEnabled bool
	LogLevel       string
	LogFormat      string
}

// DefaultConfig возвращает конфигурацию для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":" + defaultPort,
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		MongoURI:            defaultMongoURI,
		MongoDatabase:       defaultMongoDatabase,
		ProductCacheTTL:     5 * time.Minute,
		KafkaTopic:          kafka.TopicShopEvents,
		RabbitMQQueue:       rabbitmq.DefaultQueue,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// LoadConfig читает конфигурацию из окружения процесса.
func LoadConfig() (Config, error) {
	return loadConfig(os.Getenv)
}

func loadConfig(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if v := env("PORT"); v != "" {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			return Config{}, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.HTTPAddr = ":" + v
	}
	if v := env("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := env("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	if v := env("STORAGE_DRIVER"); v != "" {
		cfg.StorageDriver = StorageDriver(strings.ToLower(v))
	}
	switch cfg.StorageDriver {
	case StorageDriverMemory, StorageDriverPostgres, StorageDriverMongo:
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	cfg.PostgresDSN = env("POSTGRES_DSN")
	if cfg.StorageDriver == StorageDriverPostgres && cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN is required for storage driver %q", StorageDriverPostgres)
	}
	if v := env("POSTGRES_AUTO_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid POSTGRES_AUTO_MIGRATE %q: %w", v, err)
		}
		cfg.PostgresAutoMigrate = b
	}

	if v := env("MONGODB_URI"); v != "" {
		cfg.MongoURI = v
	}
	db, err := mongoDatabase(cfg.MongoURI, env("MONGODB_DATABASE"))
	if err != nil {
		return Config{}, err
	}
	cfg.MongoDatabase = db

	cfg.RedisAddr = env("REDIS_ADDR")
	if cfg.ProductCacheTTL, err = durationEnv(env, "PRODUCT_CACHE_TTL", cfg.ProductCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.ProductCacheTTL <= 0 {
		return Config{}, fmt.Errorf("PRODUCT_CACHE_TTL must be positive")
	}

	cfg.KafkaBrokers = splitList(env("KAFKA_BROKERS"))
	if v := env("KAFKA_TOPIC"); v != "" {
		cfg.KafkaTopic = v
	}
	cfg.RabbitMQURL = env("RABBITMQ_URL")
	if v := env("RABBITMQ_QUEUE"); v != "" {
		cfg.RabbitMQQueue = v
	}

	if cfg.OutboxPollInterval, err = durationEnv(env, "OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.OutboxRetryDelay, err = durationEnv(env, "OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay); err != nil {
		return Config{}, err
	}
	if cfg.OutboxBatchSize, err = positiveIntEnv(env, "OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize); err != nil {
		return Config{}, err
	}
	if cfg.OutboxMaxAttempts, err = positiveIntEnv(env, "OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts); err != nil {
		return Config{}, err
	}

	if v := env("TRACING_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TRACING_ENABLED %q: %w", v, err)
		}
		cfg.TracingEnabled = b
	}

	if v := env("LOG_LEVEL"); v != "" {
		if _, err := log.ParseLevel(v); err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		v = strings.ToLower(v)
		if v != "text" && v != "json" {
			return Config{}, fmt.Errorf("invalid LOG_FORMAT %q (use text|json)", v)
		}
		cfg.LogFormat = v
	}

	return cfg, nil
}

// SetupLogger настраивает формат и уровень глобального logrus-логгера.
func SetupLogger(cfg Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// mongoDatabase берёт имя базы из MONGODB_DATABASE, затем из пути URI.
func mongoDatabase(uri, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", fmt.Errorf("invalid MONGODB_URI: %w", err)
	}
	if cs.Database != "" {
		return cs.Database, nil
	}
	return defaultMongoDatabase, nil
}

func durationEnv(env func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func positiveIntEnv(env func(string) string, key string, fallback int) (int, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return n, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
