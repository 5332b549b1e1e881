package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
	"github.com/vladislavdragonenkov/restaurant/internal/storage/memory"
)

// batchRepo отдаёт заранее заданные результаты DeleteExpired; остальные
// методы хранилища в очистке не участвуют.
type batchRepo struct {
	domain.IdempotencyRepository

	mu      sync.Mutex
	results []int
	err     error
	limits  []int
}

func (r *batchRepo) DeleteExpired(_ time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.limits = append(r.limits, limit)
	if r.err != nil {
		return 0, r.err
	}
	if len(r.results) == 0 {
		return 0, nil
	}
	n := r.results[0]
	r.results = r.results[1:]
	return n, nil
}

func (r *batchRepo) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limits)
}

func TestPurge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		results    []int
		maxBatches int
		wantTotal  int
		wantCalls  int
	}{
		{name: "stops on partial batch", results: []int{3, 3, 1}, maxBatches: 10, wantTotal: 7, wantCalls: 3},
		{name: "nothing expired", results: nil, maxBatches: 10, wantTotal: 0, wantCalls: 1},
		{name: "batch limit reached", results: []int{3, 3, 3, 3}, maxBatches: 2, wantTotal: 6, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &batchRepo{results: tt.results}
			worker := NewCleanupWorker(repo, WithBatchSize(3), WithMaxBatches(tt.maxBatches))

			total, err := worker.Purge(context.Background(), time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantCalls, repo.calls())
			for _, limit := range repo.limits {
				assert.Equal(t, 3, limit)
			}
		})
	}
}

func TestPurge_RepositoryError(t *testing.T) {
	t.Parallel()

	worker := NewCleanupWorker(&batchRepo{err: errors.New("connection reset")})
	total, err := worker.Purge(context.Background(), time.Now())
	require.Error(t, err)
	assert.Zero(t, total)
	assert.Zero(t, worker.RunOnce(context.Background()))
}

func TestRunOnce_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := &batchRepo{results: []int{5}}
	worker := NewCleanupWorker(repo)

	assert.Zero(t, worker.RunOnce(ctx))
	assert.Zero(t, repo.calls())
}

func TestRunOnce_MemoryRepository(t *testing.T) {
	t.Parallel()

	now := time.Date(2030, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := memory.NewIdempotencyRepositoryWithClock(func() time.Time { return now })

	for key, ttl := range map[string]time.Time{
		"checkout-expired":     now.Add(-time.Hour),
		"notification-expired": now.Add(-time.Second),
		"checkout-alive":       now.Add(time.Hour),
	} {
		_, err := repo.CreateProcessing(key, "hash-"+key, ttl)
		require.NoError(t, err)
	}

	worker := NewCleanupWorker(repo, WithBatchSize(1), WithClock(func() time.Time { return now }))
	assert.Equal(t, 2, worker.RunOnce(context.Background()))

	_, err := repo.Get("checkout-alive")
	require.NoError(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	repo := &batchRepo{}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	require.Eventually(t, func() bool { return repo.calls() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop")
	}
}

func TestRun_DisabledWithoutRepository(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewCleanupWorker(nil).Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker without repository must return immediately")
	}
}
