// Package idempotency обслуживает хранилище ключей Idempotency-Key: ответы на
// отправку заказа и отметки обработанных уведомлений живут в нём до TTL.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
	// defaultMaxBatches ограничивает один проход, чтобы большой хвост
	// просроченных ключей не держал соединение с базой.
	defaultMaxBatches = 20
)

var (
	cleanupRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restaurant_idempotency_cleanup_runs_total",
		Help: "Total number of idempotency cleanup runs grouped by result.",
	}, []string{"result"})
	cleanupDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restaurant_idempotency_cleanup_deleted_total",
		Help: "Total number of deleted expired idempotency records.",
	})
	cleanupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "restaurant_idempotency_cleanup_duration_seconds",
		Help:    "Duration of one idempotency cleanup run.",
		Buckets: prometheus.DefBuckets,
	})
)

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupWorker)

func WithLogger(logger *log.Entry) CleanupOption {
	return func(w *CleanupWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) CleanupOption {
	return func(w *CleanupWorker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

func WithBatchSize(size int) CleanupOption {
	return func(w *CleanupWorker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithMaxBatches задаёт число удалений за один проход; остаток заберёт
// следующий тик.
func WithMaxBatches(n int) CleanupOption {
	return func(w *CleanupWorker) {
		if n > 0 {
			w.maxBatches = n
		}
	}
}

func WithClock(now func() time.Time) CleanupOption {
	return func(w *CleanupWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// CleanupWorker периодически удаляет просроченные записи идемпотентности.
type CleanupWorker struct {
	repo       domain.IdempotencyRepository
	logger     *log.Entry
	interval   time.Duration
	batchSize  int
	maxBatches int
	now        func() time.Time
}

func NewCleanupWorker(repo domain.IdempotencyRepository, options ...CleanupOption) *CleanupWorker {
	w := &CleanupWorker{
		repo:       repo,
		logger:     log.WithField("component", "idempotency-cleanup"),
		interval:   defaultCleanupInterval,
		batchSize:  defaultCleanupBatchSize,
		maxBatches: defaultMaxBatches,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(w)
	}
	return w
}

// Run чистит хранилище сразу и затем раз в interval до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup is disabled: repo is nil")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce выполняет один проход и возвращает число удалённых записей.
func (w *CleanupWorker) RunOnce(ctx context.Context) int {
	started := time.Now()
	deleted, err := w.Purge(ctx, w.now())
	switch {
	case errors.Is(err, context.Canceled):
		return deleted
	case err != nil:
		cleanupRuns.WithLabelValues("error").Inc()
		w.logger.WithError(err).WithField("deleted", deleted).Warn("idempotency cleanup failed")
		return deleted
	}

	cleanupRuns.WithLabelValues("ok").Inc()
	cleanupDuration.Observe(time.Since(started).Seconds())
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("expired idempotency keys removed")
	}
	return deleted
}

// Purge удаляет записи с TTL не позже before порциями batchSize, пока
// порция заполнена целиком и не исчерпан лимит maxBatches.
func (w *CleanupWorker) Purge(ctx context.Context, before time.Time) (int, error) {
	total := 0
	for batch := 0; batch < w.maxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := w.repo.DeleteExpired(before, w.batchSize)
		if err != nil {
			return total, err
		}
		total += n
		cleanupDeleted.Add(float64(n))

		if n < w.batchSize {
			return total, nil
		}
	}

	w.logger.WithField("deleted", total).Debug("cleanup batch limit reached, continuing on next tick")
	return total, nil
}
