package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), DefaultConfig(), log.WithField("test", "memory-storage"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.closeFn() })

	assert.NotNil(t, deps.orderRepo)
	assert.NotNil(t, deps.reservationRepo)
	assert.NotNil(t, deps.outboxRepo)
	assert.NotNil(t, deps.timelineRepo)
	assert.NotNil(t, deps.idempotencyRepo)
	assert.NotNil(t, deps.cartRepo)
	assert.Nil(t, deps.storageChecker, "memory storage has nothing to ping")
	assert.Nil(t, deps.cartChecker)
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres

	_, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "postgres-missing-dsn"))
	require.Error(t, err)
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StorageDriver = "sqlite"

	_, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "unsupported-driver"))
	require.ErrorContains(t, err, "unsupported storage driver")
}

func TestInitRuntimeDependencies_UnsupportedCartStore(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CartStore = "memcached"

	_, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "unsupported-cart-store"))
	require.ErrorContains(t, err, "unsupported cart store")
}

func TestInitRuntimeDependencies_RedisUnreachable(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CartStore = CartStoreRedis
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "redis-unreachable"))
	require.ErrorContains(t, err, "ping redis")
}

func TestRuntimeDependencies_CloseInReverseOrder(t *testing.T) {
	var order []string
	deps := &runtimeDependencies{closers: []func() error{
		func() error { order = append(order, "postgres"); return nil },
		func() error { order = append(order, "redis"); return assert.AnError },
	}}

	err := deps.closeFn()
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"redis", "postgres"}, order)
	assert.NoError(t, deps.closeFn(), "second close is a no-op")
}
