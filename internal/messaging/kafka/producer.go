package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	defaultClientID      = "restaurant-service"
	producerRetryMax     = 5
	producerRetryBackoff = 100 * time.Millisecond
)

var errNoBrokers = errors.New("kafka brokers are not configured")

var publishedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "restaurant_kafka_published_messages_total",
	Help: "Total number of messages sent to Kafka grouped by topic and result.",
}, []string{"topic", "result"})

// Producer синхронно публикует JSON-события. Доставка подтверждается всеми
// репликами, producer идемпотентен, поэтому повтор отправки внутри sarama
// не создаёт дублей.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

// NewProducer подключается к brokers. Пустой clientID заменяется на имя сервиса.
func NewProducer(brokers []string, clientID string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}

	sp, err := sarama.NewSyncProducer(brokers, producerConfig(clientID))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &Producer{
		producer: sp,
		logger:   log.WithField("component", "kafka-producer").WithField("client_id", clientID),
	}, nil
}

func producerConfig(clientID string) *sarama.Config {
	if clientID == "" {
		clientID = defaultClientID
	}

	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = producerRetryMax
	config.Producer.Retry.Backoff = producerRetryBackoff
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	// Идемпотентный producer требует одного запроса в полёте.
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// PublishEvent кодирует event в JSON и отправляет его в topic с ключом key.
func (p *Producer) PublishEvent(topic, key string, event any, headers ...sarama.RecordHeader) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", topic, err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Headers:   headers,
		Timestamp: time.Now().UTC(),
	})
	entry := p.logger.WithFields(log.Fields{"topic": topic, "key": key})
	if err != nil {
		publishedMessages.WithLabelValues(topic, "error").Inc()
		entry.WithError(err).Error("failed to send message to kafka")
		return fmt.Errorf("failed to send message to %s: %w", topic, err)
	}

	publishedMessages.WithLabelValues(topic, "ok").Inc()
	entry.WithFields(log.Fields{"partition": partition, "offset": offset}).Debug("message sent to kafka")
	return nil
}

// Close закрывает producer и дожидается отправки буфера.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
