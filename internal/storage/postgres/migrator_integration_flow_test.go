package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_PostgresUpDownCycle(t *testing.T) {
	store := rawTestStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	t.Cleanup(func() { _ = store.MigrateUp(context.Background(), 0) })

	require.NoError(t, store.MigrateDown(ctx, 100))

	steps := []struct {
		name        string
		apply       func() error
		wantVersion int64
		wantPending int
	}{
		{"reset", func() error { return nil }, 0, 2},
		{"up one", func() error { return store.MigrateUp(ctx, 1) }, 1, 1},
		{"up all", func() error { return store.MigrateUp(ctx, 0) }, 2, 0},
		{"up again is no-op", func() error { return store.MigrateUp(ctx, 0) }, 2, 0},
		{"down default step", func() error { return store.MigrateDown(ctx, 0) }, 1, 1},
	}
	for _, step := range steps {
		require.NoError(t, step.apply(), step.name)

		state, err := store.MigrationStatus(ctx)
		require.NoError(t, err, step.name)
		assert.Equal(t, step.wantVersion, state.Version, step.name)
		assert.Len(t, state.Pending, step.wantPending, step.name)
		assert.Equal(t, int(step.wantVersion), state.Applied, step.name)
	}
}

func TestMigrator_NilStore(t *testing.T) {
	var store *Store
	ctx := context.Background()

	assert.Error(t, store.MigrateUp(ctx, 0))
	assert.Error(t, store.MigrateDown(ctx, 1))
	_, err := store.MigrationStatus(ctx)
	assert.Error(t, err)
	assert.Error(t, (&Store{}).migrate(ctx, migrationDirection("sideways"), 0))
}
