package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в Kafka. Пустой topic
// означает маршрутизацию по типу агрегата.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт publisher, который маршрутизирует события по агрегату.
func NewOutboxPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxTopicPublisher{producer: producer}
}

// NewTopicPublisher создаёт publisher с фиксированным topic (например, DLQ).
func NewTopicPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	return &OutboxTopicPublisher{producer: producer, topic: topic}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	payload := json.RawMessage(event.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	envelope := Envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishEvent(p.topicFor(event), key, envelope, sarama.RecordHeader{
		Key:   []byte(HeaderEventType),
		Value: []byte(event.EventType),
	})
}

func (p *OutboxTopicPublisher) topicFor(event domain.OutboxMessage) string {
	if p.topic != "" {
		return p.topic
	}
	return TopicForAggregate(event.AggregateType)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
