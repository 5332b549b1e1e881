package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
	"github.com/vladislavdragonenkov/restaurant/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/restaurant/internal/service/outbox"
)

// eventSink описывает, куда outbox worker отдаёт события.
type eventSink struct {
	producer  *kafka.Producer
	publisher domain.OutboxPublisher
	// dlq задан только вместе с Kafka.
	dlq domain.OutboxPublisher
}

// newEventSink подключает Kafka, если брокеры заданы. Без брокеров или при
// недоступном кластере события пишутся в лог, а сервис продолжает работу.
func newEventSink(brokers []string, clientID string, logger *log.Entry) *eventSink {
	logOnly := &eventSink{publisher: outbox.NewLogPublisher(logger.WithField("publisher", "log"))}
	if len(brokers) == 0 {
		logger.Info("kafka brokers are not configured, outbox events go to log")
		return logOnly
	}

	producer, err := kafka.NewProducer(brokers, clientID)
	if err != nil {
		logger.WithError(err).WithField("brokers", brokers).Warn("kafka is unavailable, outbox events go to log")
		return logOnly
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return &eventSink{
		producer:  producer,
		publisher: kafka.NewOutboxPublisher(producer),
		dlq:       kafka.NewTopicPublisher(producer, kafka.TopicDeadLetterQueue),
	}
}

// Close закрывает producer, если он был создан.
func (s *eventSink) Close(logger *log.Entry) {
	closeKafkaProducer(s.producer, logger)
}

func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
