package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/dailygoods/internal/health"
	"github.com/vladislavdragonenkov/dailygoods/internal/storage/memory"
	"github.com/vladislavdragonenkov/dailygoods/internal/storage/mongodb"
	"github.com/vladislavdragonenkov/dailygoods/internal/storage/postgres"
)

// runtimeDependencies репозитории выбранного хранилища.
type runtimeDependencies struct {
	products       domain.ProductRepository
	users          domain.UserRepository
	carts          domain.CartRepository
	orders         domain.OrderRepository
	outbox         domain.OutboxRepository
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func (d runtimeDependencies) close(logger *log.Entry) {
	if d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
		return
	}
	logger.Info("storage closed")
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		users := memory.NewUserStore()
		logger.Info("using in-memory storage")
		return runtimeDependencies{
			products: memory.NewProductRepository(),
			users:    users,
			carts:    users,
			orders:   memory.NewOrderRepository(),
			outbox:   memory.NewOutboxRepository(),
			storageChecker: healthcheck.NewSimpleChecker("storage", func(context.Context) error {
				return nil
			}),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return runtimeDependencies{}, fmt.Errorf("postgres storage requires POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		logger.Info("using postgres storage")
		return runtimeDependencies{
			products:       postgres.NewProductRepository(store),
			users:          postgres.NewUserRepository(store),
			carts:          postgres.NewCartRepository(store),
			orders:         postgres.NewOrderRepository(store),
			outbox:         postgres.NewOutboxRepository(store),
			storageChecker: healthcheck.NewSimpleChecker("storage", store.Ping),
			closeFn:        store.Close,
		}, nil

	case StorageDriverMongo:
		store, err := mongodb.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open mongo store: %w", err)
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close()
			return runtimeDependencies{}, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		users := mongodb.NewUserStore(store)
		logger.WithField("database", cfg.MongoDatabase).Info("using mongo storage")
		return runtimeDependencies{
			products:       mongodb.NewProductRepository(store),
			users:          users,
			carts:          users,
			orders:         mongodb.NewOrderRepository(store),
			outbox:         mongodb.NewOutboxRepository(store),
			storageChecker: healthcheck.NewSimpleChecker("storage", store.Ping),
			closeFn:        store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
