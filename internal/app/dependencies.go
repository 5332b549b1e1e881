package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/restaurant/internal/health"
	"github.com/vladislavdragonenkov/restaurant/internal/storage/memory"
	"github.com/vladislavdragonenkov/restaurant/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/restaurant/internal/storage/redis"
)

// runtimeDependencies хранилища, выбранные конфигурацией, и их проверки здоровья.
type runtimeDependencies struct {
	orderRepo       domain.OrderRepository
	reservationRepo domain.ReservationRepository
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository
	cartRepo        domain.CartRepository

	storageChecker healthcheck.Checker
	cartChecker    healthcheck.Checker

	closers []func() error
}

// closeFn закрывает подключения в обратном порядке открытия.
func (d *runtimeDependencies) closeFn() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{}

	if err := initStorage(ctx, cfg, deps, logger); err != nil {
		_ = deps.closeFn()
		return nil, err
	}
	if err := initCartStore(ctx, cfg, deps, logger); err != nil {
		_ = deps.closeFn()
		return nil, err
	}
	return deps, nil
}

func initStorage(ctx context.Context, cfg Config, deps *runtimeDependencies, logger *log.Entry) error {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		deps.orderRepo = memory.NewOrderRepository()
		deps.reservationRepo = memory.NewReservationRepository()
		deps.outboxRepo = memory.NewOutboxRepository()
		deps.timelineRepo = memory.NewTimelineRepository()
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
		logger.Info("using in-memory storage")
		return nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return errors.New("postgres storage driver requires dsn")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		deps.closers = append(deps.closers, store.Close)

		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres schema is up to date")
		}

		deps.orderRepo = postgres.NewOrderRepository(store)
		deps.reservationRepo = postgres.NewReservationRepository(store)
		deps.outboxRepo = postgres.NewOutboxRepository(store)
		deps.timelineRepo = postgres.NewTimelineRepository(store)
		deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
		deps.storageChecker = healthcheck.NewPingChecker("postgres", store)
		logger.Info("using postgres storage")
		return nil

	default:
		return fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}

func initCartStore(ctx context.Context, cfg Config, deps *runtimeDependencies, logger *log.Entry) error {
	switch cfg.CartStore {
	case "", CartStoreMemory:
		deps.cartRepo = memory.NewCartRepository()
		return nil

	case CartStoreRedis:
		client, err := redisstore.NewClient(ctx, redisstore.Config{
			URL:      cfg.RedisURL,
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		deps.closers = append(deps.closers, client.Close)

		repo := redisstore.NewCartRepository(client, redisstore.WithTTL(cfg.CartTTL))
		deps.cartRepo = repo
		deps.cartChecker = healthcheck.NewPingChecker("redis", repo)
		logger.Info("using redis cart store")
		return nil

	default:
		return fmt.Errorf("unsupported cart store: %s", cfg.CartStore)
	}
}
