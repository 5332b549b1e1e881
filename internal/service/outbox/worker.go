package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	maxRetryDelay         = 5 * time.Second
	// drainTimeout ограничивает последний проход по outbox при остановке.
	drainTimeout = 2 * time.Second

	tracerName = "github.com/vladislavdragonenkov/restaurant/internal/service/outbox"
)

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт logger воркера.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDLQPublisher включает отправку в DLQ событий, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) { w.dlq = publisher }
}

// WithPollInterval задаёт период опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithBatchSize задаёт число событий, забираемых за один проход.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithMaxAttempts задаёт число попыток публикации одного события.
func WithMaxAttempts(attempts int) Option {
	return func(w *Worker) {
		if attempts > 0 {
			w.maxAttempts = attempts
		}
	}
}

// WithRetryBaseDelay задаёт задержку перед второй попыткой; далее она
// удваивается, но не превышает maxRetryDelay. 0 отключает паузы.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) { w.baseDelay = max(delay, 0) }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// BatchResult итог одного прохода по outbox.
type BatchResult struct {
	Pulled int
	Sent   int
	Failed int
	// Deferred сообщения, чьи повторы прервала отмена контекста. Они остаются
	// pending и уходят в следующий проход или после рестарта.
	Deferred int
}

// Worker переносит события заказов и броней из outbox в брокер.
// Событие, не отправленное за maxAttempts попыток, помечается failed и
// (если настроен DLQ) публикуется туда в обёртке deadLetter.
type Worker struct {
	repo         domain.OutboxRepository
	publisher    domain.OutboxPublisher
	dlq          domain.OutboxPublisher
	logger       *log.Entry
	tracer       trace.Tracer
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	baseDelay    time.Duration
	now          func() time.Time
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	w := &Worker{
		repo:         repo,
		publisher:    publisher,
		logger:       log.WithField("component", "outbox-worker"),
		tracer:       otel.Tracer(tracerName),
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultRetryBaseDelay,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(w)
	}
	return w
}

// Run опрашивает outbox до отмены ctx. После отмены выполняется ещё один
// проход, ограниченный drainTimeout, чтобы не терять события последних
// запросов.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), drainTimeout)
	defer cancel()

	if res := w.ProcessOnce(ctx); res.Pulled > 0 {
		w.logger.WithFields(log.Fields{
			"sent":   res.Sent,
			"failed": res.Failed,
		}).Info("outbox drained on shutdown")
	}
}

// ProcessOnce забирает один батч и пытается опубликовать каждое событие.
func (w *Worker) ProcessOnce(ctx context.Context) BatchResult {
	var res BatchResult
	if ctx.Err() != nil {
		return res
	}

	ctx, span := w.tracer.Start(ctx, "outbox.process_batch")
	started := time.Now()
	defer func() {
		span.SetAttributes(
			attribute.Int("outbox.pulled", res.Pulled),
			attribute.Int("outbox.sent", res.Sent),
			attribute.Int("outbox.failed", res.Failed),
		)
		span.End()
		if res.Pulled > 0 {
			batchDuration.Observe(time.Since(started).Seconds())
		}
		w.observeBacklog()
	}()

	events, err := w.repo.PullPending(w.batchSize)
	if err != nil {
		span.RecordError(err)
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return res
	}
	res.Pulled = len(events)

	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		switch w.deliver(ctx, event) {
		case deliverySent:
			res.Sent++
		case deliveryDeferred:
			res.Deferred++
		default:
			res.Failed++
		}
	}
	return res
}

type delivery int

const (
	deliverySent delivery = iota
	deliveryFailed
	deliveryDeferred
)

func (w *Worker) deliver(ctx context.Context, event domain.OutboxMessage) delivery {
	logger := w.logger.WithFields(log.Fields{
		"outbox_id":    event.ID,
		"aggregate":    event.AggregateType,
		"aggregate_id": event.AggregateID,
		"event_type":   event.EventType,
	})

	err := w.publish(ctx, event)
	if err == nil {
		if markErr := w.repo.MarkSent(event.ID); markErr != nil {
			logger.WithError(markErr).Warn("failed to mark outbox as sent")
		}
		return deliverySent
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.WithError(err).Info("outbox retries interrupted, message stays pending")
		return deliveryDeferred
	}

	logger.WithError(err).Error("outbox publish failed after retries")
	publishAttempts.WithLabelValues(event.AggregateType, resultFailed).Inc()

	if w.dlq != nil {
		if dlqErr := w.toDeadLetter(event, err); dlqErr != nil {
			logger.WithError(dlqErr).Warn("failed to publish to DLQ")
			publishAttempts.WithLabelValues(event.AggregateType, resultDLQFailed).Inc()
		}
	}
	if markErr := w.repo.MarkFailed(event.ID); markErr != nil {
		logger.WithError(markErr).Warn("failed to mark outbox as failed")
	}
	return deliveryFailed
}

// publish делает до maxAttempts попыток с экспоненциальной паузой.
func (w *Worker) publish(ctx context.Context, event domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if lastErr = w.publisher.Publish(event); lastErr == nil {
			publishAttempts.WithLabelValues(event.AggregateType, resultSent).Inc()
			return nil
		}
		publishAttempts.WithLabelValues(event.AggregateType, resultRetry).Inc()

		if attempt == w.maxAttempts {
			break
		}
		if err := sleepCtx(ctx, w.backoff(attempt)); err != nil {
			return fmt.Errorf("retry after %d of %d attempts (last error: %v): %w", attempt, w.maxAttempts, lastErr, err)
		}
	}
	return fmt.Errorf("%w: %d attempts: %v", domain.ErrOutboxPublish, w.maxAttempts, lastErr)
}

// backoff возвращает паузу после attempt-й неудачной попытки.
func (w *Worker) backoff(attempt int) time.Duration {
	if w.baseDelay <= 0 {
		return 0
	}
	delay := w.baseDelay
	for i := 1; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Worker) toDeadLetter(event domain.OutboxMessage, cause error) error {
	letter, err := wrapDeadLetter(event, cause, w.now())
	if err != nil {
		return err
	}
	if err := w.dlq.Publish(letter); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}

func (w *Worker) observeBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	pendingRecords.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		oldestPendingAge.Set(0)
		return
	}
	oldestPendingAge.Set(max(w.now().Sub(stats.OldestPendingAt).Seconds(), 0))
}
