package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testDSNEnv указывает на базу, которую интеграционные тесты могут очищать.
const testDSNEnv = "RESTAURANT_POSTGRES_TEST_DSN"

// rawTestStore открывает базу без миграций или пропускает тест.
func rawTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv(testDSNEnv))
	if dsn == "" {
		t.Skipf("%s is not set", testDSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	store, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres is not reachable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// testStore возвращает базу с актуальной схемой и пустыми таблицами.
func testStore(t *testing.T) *Store {
	t.Helper()

	store := rawTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, store.EnsureSchema(ctx))
	_, err := store.DB().ExecContext(ctx, `
		TRUNCATE TABLE idempotency_keys, outbox_messages, workflow_timeline,
			reservations, checkout_order_lines, checkout_orders
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return store
}
