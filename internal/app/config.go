package app

import (
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/pricing"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/saga"
	redisstore "github.com/vladislavdragonenkov/fulfillment/internal/storage/redis"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	// SeedDemoCatalog заполняет каталог демонстрационными данными.
	// Для memory-хранилища каталог заполняется всегда.
	SeedDemoCatalog bool

	// RedisAddr включает Redis-хранилище idempotency-key; пусто — in-memory.
	RedisAddr          string
	IdempotencyTTL     time.Duration
	IdempotencyLockTTL time.Duration

	// IdempotencyCleanupInterval — период очистки in-memory ключей.
	IdempotencyCleanupInterval time.Duration

	KafkaBrokers  []string
	KafkaClientID string
	KafkaTopic    string

	TaxRegion string
	Saga      saga.Config

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxPending   int

	RedriveInterval    time.Duration
	RedriveAttempts    int
	RedriveMaxBacklog  int
	PaymentMaxFailures int
	PaymentResetAfter  time.Duration

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                   ":50051",
		MetricsAddr:                ":9090",
		StorageDriver:              StorageDriverMemory,
		PostgresAutoMigrate:        true,
		IdempotencyTTL:             redisstore.DefaultTTL,
		IdempotencyLockTTL:         redisstore.DefaultLockTTL,
		IdempotencyCleanupInterval: 10 * time.Minute,
		KafkaClientID:              "fulfillment-service",
		KafkaTopic:                 kafka.TopicOrderEvents,
		TaxRegion:                  pricing.DefaultTaxRegion,
		Saga:                       saga.DefaultConfig(),
		OutboxPollInterval:         time.Second,
		OutboxBatchSize:            100,
		OutboxMaxAttempts:          3,
		OutboxRetryDelay:           100 * time.Millisecond,
		OutboxMaxPending:           1000,
		RedriveInterval:            5 * time.Second,
		RedriveAttempts:            5,
		RedriveMaxBacklog:          50,
		PaymentMaxFailures:         5,
		PaymentResetAfter:          30 * time.Second,
		ShutdownTimeout:            5 * time.Second,
	}
}
