package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

func TestIdempotencyRepository_Postgres(t *testing.T) {
	repo := NewIdempotencyRepository(testStore(t))
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("reserve and store response", func(t *testing.T) {
		ttl := now.Add(2 * time.Hour)
		created, err := repo.CreateProcessing("submit-done", "hash-1", ttl)
		require.NoError(t, err)
		assert.Equal(t, domain.IdempotencyStatusProcessing, created.Status)

		require.NoError(t, repo.MarkDone("submit-done", []byte(`{"data":{"state":"ORDER_PLACED"}}`), 200))

		got, err := repo.Get("submit-done")
		require.NoError(t, err)
		assert.Equal(t, domain.IdempotencyStatusDone, got.Status)
		assert.Equal(t, 200, got.HTTPStatus)
		assert.JSONEq(t, `{"data":{"state":"ORDER_PLACED"}}`, string(got.ResponseBody))
		assert.True(t, got.TTLAt.Equal(ttl), "ttl %s != %s", got.TTLAt, ttl)
	})

	t.Run("conflicts", func(t *testing.T) {
		_, err := repo.CreateProcessing("submit-conflict", "hash-a", now.Add(time.Hour))
		require.NoError(t, err)

		_, err = repo.CreateProcessing("submit-conflict", "hash-a", now.Add(time.Hour))
		assert.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
		_, err = repo.CreateProcessing("submit-conflict", "hash-b", now.Add(time.Hour))
		assert.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
	})

	t.Run("expired key is reused", func(t *testing.T) {
		_, err := repo.CreateProcessing("submit-reuse", "hash-old", now.Add(-time.Minute))
		require.NoError(t, err)
		require.NoError(t, repo.MarkFailed("submit-reuse", []byte(`{}`), 502))

		_, err = repo.Get("submit-reuse")
		require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)

		_, err = repo.CreateProcessing("submit-reuse", "hash-new", now.Add(time.Hour))
		require.NoError(t, err)
		got, err := repo.Get("submit-reuse")
		require.NoError(t, err)
		assert.Equal(t, "hash-new", got.RequestHash)
		assert.Empty(t, got.ResponseBody)
	})

	t.Run("missing key", func(t *testing.T) {
		assert.ErrorIs(t, repo.MarkDone("submit-missing", nil, 200), domain.ErrIdempotencyKeyNotFound)
	})
}

func TestIdempotencyRepository_PostgresDeleteExpired(t *testing.T) {
	repo := NewIdempotencyRepository(testStore(t))
	now := time.Now().UTC()

	for i, offset := range []time.Duration{-5 * time.Minute, -4 * time.Minute, -3 * time.Minute, time.Hour} {
		_, err := repo.CreateProcessing("notification-"+string(rune('a'+i)), "h", now.Add(offset))
		require.NoError(t, err)
	}

	removed, err := repo.DeleteExpired(now, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = repo.DeleteExpired(now, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = repo.Get("notification-d")
	require.NoError(t, err)
}

func TestIdempotencyRepository_PostgresReclaim(t *testing.T) {
	repo := NewIdempotencyRepository(testStore(t))
	ttl := time.Now().UTC().Add(time.Hour)

	_, err := repo.CreateProcessing("notification:evt-1", "evt-1", ttl)
	require.NoError(t, err)

	ok, err := repo.Reclaim("notification:evt-1", "evt-1", time.Now().UTC().Add(-time.Minute), ttl)
	require.NoError(t, err)
	assert.False(t, ok, "processing record inside its lease")

	ok, err = repo.Reclaim("notification:evt-1", "evt-1", time.Now().UTC().Add(time.Minute), ttl)
	require.NoError(t, err)
	assert.True(t, ok, "stale processing record is taken over")

	require.NoError(t, repo.MarkFailed("notification:evt-1", nil, 0))
	ok, err = repo.Reclaim("notification:evt-1", "evt-1", time.Time{}, ttl)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Reclaim("notification:evt-1", "evt-1", time.Time{}, ttl)
	require.NoError(t, err)
	assert.False(t, ok, "second reclaim loses to the first")

	got, err := repo.Get("notification:evt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusProcessing, got.Status)
}
