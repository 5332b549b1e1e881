package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultConsumerRetryDelay = 200 * time.Millisecond
	defaultConsumerMaxRetries = 3
	consumerTracerName        = "github.com/vladislavdragonenkov/restaurant/internal/messaging/kafka"
)

// Итоги обработки сообщения для метки result.
const (
	resultHandled      = "handled"
	resultRetried      = "handled_after_retry"
	resultDeadLettered = "dead_lettered"
	resultFailed       = "failed"
)

var consumedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "restaurant_kafka_consumed_messages_total",
	Help: "Total number of consumed Kafka messages grouped by topic and processing result.",
}, []string{"topic", "result"})

// MessageHandler обрабатывает сообщение из Kafka.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// ConsumerConfig задаёт подключение и политику повторов consumer group.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
	// MaxRetries общее число попыток с учётом заголовка x-retry-count.
	MaxRetries int
	// RetryDelay пауза между попытками; 0 означает значение по умолчанию,
	// отрицательное значение отключает паузу.
	RetryDelay time.Duration
	// FromOldest читает новую группу с начала topic вместо хвоста.
	FromOldest bool
}

// ConsumerOption настраивает Consumer.
type ConsumerOption func(*Consumer)

// WithDeadLetterProducer включает отправку необработанных сообщений в DLQ.
func WithDeadLetterProducer(producer *Producer) ConsumerOption {
	return func(c *Consumer) {
		c.dlqProducer = producer
	}
}

// WithConsumerLogger задаёт логгер consumer-а.
func WithConsumerLogger(logger *log.Entry) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Consumer читает topics в consumer group. Сообщение, которое не удалось
// обработать за MaxRetries попыток, уходит в DLQ (если он настроен), после
// чего offset фиксируется.
type Consumer struct {
	group       sarama.ConsumerGroup
	topics      []string
	handler     MessageHandler
	dlqProducer *Producer
	maxRetries  int
	retryDelay  time.Duration
	tracer      trace.Tracer
	logger      *log.Entry
	wg          sync.WaitGroup
}

// NewConsumer создаёт consumer group по конфигурации.
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, opts ...ConsumerOption) (*Consumer, error) {
	if handler == nil {
		return nil, errors.New("kafka consumer requires a message handler")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("kafka consumer requires at least one topic")
	}

	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	if cfg.FromOldest {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return newConsumer(group, cfg, handler, opts...), nil
}

func newConsumer(group sarama.ConsumerGroup, cfg ConsumerConfig, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		group:      group,
		topics:     cfg.Topics,
		handler:    handler,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		tracer:     otel.Tracer(consumerTracerName),
		logger:     log.WithField("component", "kafka-consumer"),
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultConsumerMaxRetries
	}
	if c.retryDelay == 0 {
		c.retryDelay = defaultConsumerRetryDelay
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start запускает чтение в фоне.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for {
			// Consume завершается при каждом rebalance.
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("error from consumer")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// Stop закрывает consumer group и ждёт фоновые горутины.
func (c *Consumer) Stop() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim обрабатывает сообщения partition. Offset фиксируется только
// для обработанных или отправленных в DLQ сообщений.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			result := c.process(session.Context(), message)
			consumedMessages.WithLabelValues(message.Topic, result).Inc()
			if result != resultFailed {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) process(ctx context.Context, message *sarama.ConsumerMessage) string {
	ctx, span := c.tracer.Start(ctx, "kafka.consume", trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination", message.Topic),
			attribute.Int("messaging.kafka.partition", int(message.Partition)),
			attribute.Int64("messaging.kafka.offset", message.Offset),
		))
	defer span.End()

	fields := log.Fields{
		"topic":     message.Topic,
		"partition": message.Partition,
		"offset":    message.Offset,
	}

	attempts, err := c.handleWithRetry(ctx, message)
	if err == nil {
		span.SetAttributes(attribute.Int("messaging.attempts", attempts))
		if attempts > 1 {
			return resultRetried
		}
		return resultHandled
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if c.dlqProducer == nil || ctx.Err() != nil {
		c.logger.WithError(err).WithFields(fields).Error("message processing failed")
		return resultFailed
	}
	if dlqErr := c.sendToDLQ(message, err); dlqErr != nil {
		c.logger.WithError(dlqErr).WithFields(fields).Error("failed to send message to DLQ")
		return resultFailed
	}
	c.logger.WithError(err).WithFields(fields).Warn("message sent to DLQ after max retries")
	return resultDeadLettered
}

// handleWithRetry повторяет обработку, пока число попыток с учётом
// x-retry-count не достигнет maxRetries.
func (c *Consumer) handleWithRetry(ctx context.Context, message *sarama.ConsumerMessage) (int, error) {
	retryCount := retryCountOf(message)
	budget := max(c.maxRetries-retryCount, 1)

	var err error
	for attempt := 1; attempt <= budget; attempt++ {
		if err = c.handler(ctx, message); err == nil {
			return attempt, nil
		}
		if attempt == budget {
			break
		}

		c.logger.WithError(err).WithFields(log.Fields{
			"topic":       message.Topic,
			"attempt":     attempt,
			"retry_count": retryCount,
		}).Warn("message processing failed, will retry")

		if c.retryDelay > 0 {
			timer := time.NewTimer(c.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return budget, err
}

func retryCountOf(message *sarama.ConsumerMessage) int {
	for _, header := range message.Headers {
		if header == nil || string(header.Key) != HeaderRetryCount {
			continue
		}
		if count, err := strconv.Atoi(string(header.Value)); err == nil && count > 0 {
			return count
		}
	}
	return 0
}

type deadLetter struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int32  `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	OriginalKey       string `json:"original_key"`
	OriginalValue     string `json:"original_value"`
	ErrorMessage      string `json:"error_message"`
	FailedAt          string `json:"failed_at"`
	RetryCount        int    `json:"retry_count"`
}

func (c *Consumer) sendToDLQ(message *sarama.ConsumerMessage, processingErr error) error {
	letter := deadLetter{
		OriginalTopic:     message.Topic,
		OriginalPartition: message.Partition,
		OriginalOffset:    message.Offset,
		OriginalKey:       string(message.Key),
		OriginalValue:     string(message.Value),
		ErrorMessage:      processingErr.Error(),
		FailedAt:          time.Now().UTC().Format(time.RFC3339),
		RetryCount:        retryCountOf(message) + c.maxRetries,
	}

	return c.dlqProducer.PublishEvent(TopicDeadLetterQueue, letter.OriginalKey, letter,
		sarama.RecordHeader{Key: []byte(HeaderOriginalTopic), Value: []byte(letter.OriginalTopic)},
		sarama.RecordHeader{Key: []byte(HeaderErrorMessage), Value: []byte(letter.ErrorMessage)},
		sarama.RecordHeader{Key: []byte(HeaderFailedAt), Value: []byte(letter.FailedAt)},
		sarama.RecordHeader{Key: []byte(HeaderRetryCount), Value: []byte(strconv.Itoa(letter.RetryCount))},
	)
}

// ParseEnvelope разбирает сообщение, опубликованное outbox publisher.
func ParseEnvelope(message *sarama.ConsumerMessage) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return &envelope, nil
}

// ParseOrderEvent разбирает payload события заказа.
func ParseOrderEvent(payload []byte) (*OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	return &event, nil
}

// ParseReservationEvent разбирает payload события брони.
func ParseReservationEvent(payload []byte) (*ReservationEvent, error) {
	var event ReservationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reservation event: %w", err)
	}
	return &event, nil
}
