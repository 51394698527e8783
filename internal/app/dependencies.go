package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/fulfillment/internal/health"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/idempotency"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/inventory"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/fulfillment/internal/storage/redis"
)

// catalogSource — всё, что саге нужно от каталога.
type catalogSource interface {
	domain.CustomerDirectory
	domain.ProductCatalog
	domain.PromotionSource
	domain.TaxRateSource
}

// runtimeDependencies — хранилища, выбранные по конфигурации.
type runtimeDependencies struct {
	orders    domain.OrderRepository
	audit     domain.AuditLog
	outbox    domain.OutboxRepository
	inventory domain.InventoryService
	catalog   catalogSource
	idem      domain.IdempotencyStore

	// idemCleaner задан только для in-memory ключей.
	idemCleaner idempotency.ExpiredKeyStore

	checkers map[string]healthcheck.Checker
	closers  []func() error
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.WithError(err).Warn("failed to close dependency")
		}
	}
}

// initRuntimeDependencies поднимает хранилища: memory или postgres для заказов,
// каталога и склада; Redis или memory для idempotency-key.
func initRuntimeDependencies(ctx context.Context, cfg Config, registerer prometheus.Registerer, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{checkers: make(map[string]healthcheck.Checker)}

	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "", StorageDriverMemory:
		initMemoryStorage(deps, cfg, registerer, logger)
	case StorageDriverPostgres:
		if err := initPostgresStorage(ctx, deps, cfg, logger); err != nil {
			deps.close(logger)
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if err := initIdempotencyStore(ctx, deps, cfg, logger); err != nil {
		deps.close(logger)
		return nil, err
	}
	return deps, nil
}

func initMemoryStorage(deps *runtimeDependencies, cfg Config, registerer prometheus.Registerer, logger *log.Entry) {
	deps.audit = memory.NewAuditRepository()
	deps.orders = memory.NewOrderRepository()
	deps.outbox = memory.NewOutboxRepository()

	catalog := memory.NewCatalog()
	ledger := inventory.NewLedger(
		inventory.WithAuditRecorder(deps.audit),
		inventory.WithMetrics(metrics.NewInventoryMetrics(registerer)),
		inventory.WithLogger(logger.WithField("component", "inventory-ledger")),
	)
	newDemoCatalog(cfg.TaxRegion).seedMemory(catalog, ledger)

	deps.catalog = catalog
	deps.inventory = ledger
	logger.Info("using in-memory storage with demo catalog")
}

func initPostgresStorage(ctx context.Context, deps *runtimeDependencies, cfg Config, logger *log.Entry) error {
	dsn := strings.TrimSpace(cfg.PostgresDSN)
	if dsn == "" {
		return errors.New("postgres storage requires OMS_POSTGRES_DSN")
	}

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return err
	}
	deps.closers = append(deps.closers, store.Close)

	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	catalog := postgres.NewCatalog(store)
	if cfg.SeedDemoCatalog {
		if err := newDemoCatalog(cfg.TaxRegion).seedPostgres(ctx, catalog); err != nil {
			return err
		}
	}

	deps.audit = postgres.NewAuditRepository(store)
	deps.orders = postgres.NewOrderRepository(store)
	deps.outbox = postgres.NewOutboxRepository(store)
	deps.catalog = catalog
	deps.inventory = postgres.NewReservationRepository(store, deps.audit, logger.WithField("component", "postgres-inventory"))
	deps.checkers["postgres"] = healthcheck.NewPingChecker("postgres", store.Ping)

	logger.Info("using postgres storage")
	return nil
}

func initIdempotencyStore(ctx context.Context, deps *runtimeDependencies, cfg Config, logger *log.Entry) error {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		store := memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		deps.idem = store
		deps.idemCleaner = store
		return nil
	}

	client := redisstore.NewClient(addr)
	deps.closers = append(deps.closers, client.Close)

	store := redisstore.NewIdempotencyStore(client, cfg.IdempotencyTTL, cfg.IdempotencyLockTTL)
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("connect redis %s: %w", addr, err)
	}
	deps.idem = store
	deps.checkers["redis"] = healthcheck.NewPingChecker("redis", store.Ping)

	logger.WithField("addr", addr).Info("using redis idempotency store")
	return nil
}
