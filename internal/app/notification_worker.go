package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/restaurant/internal/service/notification"
	"github.com/vladislavdragonenkov/restaurant/internal/telemetry"
	"github.com/vladislavdragonenkov/restaurant/internal/version"
)

const notificationMaxRetries = 3

// RunNotificationWorker читает события броней и заказов из Kafka и доставляет
// уведомления. Повторные события отсекаются через хранилище идемпотентности
// выбранного StorageDriver.
func RunNotificationWorker(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := log.WithField("component", "notification-worker")

	brokers := cfg.kafkaBrokers()
	if len(brokers) == 0 {
		return errors.New("notification worker requires RESTAURANT_KAFKA_BROKERS")
	}

	shutdownTracing, err := telemetry.Setup(telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    version.ServiceName + "-notifications",
		ServiceVersion: version.GetVersion(),
		SampleRatio:    cfg.TracingSampleRatio,
	}, logger.WithField("layer", "telemetry"))
	if err != nil {
		return err
	}
	defer flushTracing(shutdownTracing, logger)

	deps := &runtimeDependencies{}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()
	if err := initStorage(ctx, cfg, deps, logger.WithField("layer", "storage")); err != nil {
		return err
	}

	dlqProducer, err := kafka.NewProducer(brokers, cfg.KafkaClientID+"-notifications")
	if err != nil {
		return fmt.Errorf("create dlq producer: %w", err)
	}
	defer closeKafkaProducer(dlqProducer, logger)

	handler := notification.NewHandler(
		notification.NewLogNotifier(logger.WithField("layer", "notifier")),
		notification.WithLogger(logger.WithField("layer", "handler")),
		notification.WithDeduplication(deps.idempotencyRepo, 0),
	)

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:    brokers,
		GroupID:    cfg.NotificationGroup,
		Topics:     []string{kafka.TopicReservationEvents, kafka.TopicOrderEvents},
		MaxRetries: notificationMaxRetries,
	}, handler.Handle,
		kafka.WithDeadLetterProducer(dlqProducer),
		kafka.WithConsumerLogger(logger.WithField("layer", "consumer")),
	)
	if err != nil {
		return err
	}
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	logger.WithField("group", cfg.NotificationGroup).Info("notification worker started")

	<-ctx.Done()
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop consumer")
	}
	return ctx.Err()
}
