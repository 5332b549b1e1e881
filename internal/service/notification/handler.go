package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
	"github.com/vladislavdragonenkov/restaurant/internal/messaging/kafka"
)

const (
	dedupKeyPrefix  = "notification:"
	defaultDedupTTL = 7 * 24 * time.Hour
	// processingLease после него незавершённая обработка считается зависшей
	// (процесс упал посреди Notify), и событие можно взять заново.
	processingLease = 5 * time.Minute
)

var (
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restaurant_notifications_total",
		Help: "Processed reservation notifications grouped by result.",
	}, []string{"result"})
)

// Message уведомление ресторану о новой брони.
type Message struct {
	ReservationID string
	Text          string
	URL           string
}

// Notifier доставляет уведомление.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier пишет уведомление в лог вместе с deep link.
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создаёт notifier, пишущий в лог.
func NewLogNotifier(logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.WithField("component", "log-notifier")
	}
	return &LogNotifier{logger: logger}
}

// Notify логирует уведомление.
func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.WithFields(log.Fields{
		"reservation_id": msg.ReservationID,
		"url":            msg.URL,
	}).Info(msg.Text)
	return nil
}

// Option настраивает Handler.
type Option func(*Handler)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithDeduplication отбрасывает повторно доставленные события по id envelope.
func WithDeduplication(repo domain.IdempotencyRepository, ttl time.Duration) Option {
	return func(h *Handler) {
		h.dedup = repo
		if ttl > 0 {
			h.dedupTTL = ttl
		}
	}
}

// Handler обрабатывает события бронирования и заказов из Kafka.
type Handler struct {
	notifier Notifier
	dedup    domain.IdempotencyRepository
	dedupTTL time.Duration
	logger   *log.Entry
	now      func() time.Time
}

// NewHandler создаёт обработчик событий.
func NewHandler(notifier Notifier, opts ...Option) *Handler {
	h := &Handler{
		notifier: notifier,
		dedupTTL: defaultDedupTTL,
		logger:   log.WithField("component", "notification-handler"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle реализует kafka.MessageHandler. Ошибка возвращается только для
// сообщений, которые имеет смысл повторить или отправить в DLQ.
func (h *Handler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	envelope, err := kafka.ParseEnvelope(message)
	if err != nil {
		notificationsTotal.WithLabelValues("malformed").Inc()
		return err
	}

	logger := h.logger.WithFields(log.Fields{
		"event_id":     envelope.ID,
		"event_type":   envelope.EventType,
		"aggregate_id": envelope.AggregateID,
	})

	switch envelope.EventType {
	case domain.EventReservationNotificationRequested:
		return h.notify(ctx, envelope, logger)
	case domain.EventOrderPlaced, domain.EventOrderPlacementFailed:
		event, err := kafka.ParseOrderEvent(envelope.Payload)
		if err != nil {
			return err
		}
		logger.WithFields(log.Fields{
			"total":     event.Total,
			"reference": event.Reference,
			"reason":    event.Reason,
		}).Info("order event received")
		return nil
	default:
		logger.Debug("event skipped")
		return nil
	}
}

func (h *Handler) notify(ctx context.Context, envelope *kafka.Envelope, logger *log.Entry) error {
	event, err := kafka.ParseReservationEvent(envelope.Payload)
	if err != nil {
		notificationsTotal.WithLabelValues("malformed").Inc()
		return err
	}
	if strings.TrimSpace(event.Summary) == "" {
		notificationsTotal.WithLabelValues("malformed").Inc()
		return fmt.Errorf("reservation %s: notification summary is empty", event.ReservationID)
	}

	key := dedupKeyPrefix + envelope.ID
	deduplicate := h.dedup != nil && envelope.ID != ""
	if deduplicate {
		fresh, err := h.reserve(key, envelope.ID)
		if err != nil {
			return err
		}
		if !fresh {
			notificationsTotal.WithLabelValues("duplicate").Inc()
			logger.Debug("notification already processed")
			return nil
		}
	}

	msg := Message{
		ReservationID: event.ReservationID,
		Text:          event.Summary,
		URL:           event.NotifyURL,
	}
	if err := h.notifier.Notify(ctx, msg); err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		if deduplicate {
			if markErr := h.dedup.MarkFailed(key, nil, 0); markErr != nil {
				logger.WithError(markErr).Warn("mark notification key failed")
			}
		}
		return fmt.Errorf("notify reservation %s: %w", event.ReservationID, err)
	}

	if deduplicate {
		if err := h.dedup.MarkDone(key, nil, 0); err != nil {
			logger.WithError(err).Warn("mark notification key done")
		}
	}
	notificationsTotal.WithLabelValues("sent").Inc()
	logger.Info("reservation notification sent")
	return nil
}

// reserve занимает ключ события. Событие, чья прошлая обработка упала или
// зависла дольше processingLease, занимается заново через Reclaim, поэтому
// из параллельных повторов уведомление отправляет только один.
func (h *Handler) reserve(key, eventID string) (bool, error) {
	now := h.now()
	ttlAt := now.Add(h.dedupTTL)

	existing, err := h.dedup.CreateProcessing(key, eventID, ttlAt)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists), errors.Is(err, domain.ErrIdempotencyHashMismatch):
	default:
		return false, fmt.Errorf("reserve notification key: %w", err)
	}

	staleBefore := now.Add(-processingLease)
	if !existing.Reclaimable(staleBefore) {
		return false, nil
	}
	reclaimed, err := h.dedup.Reclaim(key, eventID, staleBefore, ttlAt)
	if err != nil {
		return false, fmt.Errorf("reclaim notification key: %w", err)
	}
	return reclaimed, nil
}
