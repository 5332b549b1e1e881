package kafka

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

func TestOutboxPublisher_RoutesByAggregate(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-publisher-test"),
	}
	publisher := NewOutboxPublisher(producer)

	expectTopic := func(topic, eventType string) {
		mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			if msg.Topic != topic {
				t.Errorf("expected topic %s, got %s", topic, msg.Topic)
			}
			raw, err := msg.Value.Encode()
			if err != nil {
				return err
			}
			var envelope Envelope
			if err := json.Unmarshal(raw, &envelope); err != nil {
				return err
			}
			if envelope.EventType != eventType {
				t.Errorf("expected event type %s, got %s", eventType, envelope.EventType)
			}
			return nil
		})
	}
	expectTopic(TopicOrderEvents, domain.EventOrderPlaced)
	expectTopic(TopicReservationEvents, domain.EventReservationConfirmed)

	if err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: domain.AggregateOrder,
		AggregateID:   "co-1",
		EventType:     domain.EventOrderPlaced,
		Payload:       []byte(`{"order_id":"co-1"}`),
	}); err != nil {
		t.Fatalf("publish order event: %v", err)
	}
	if err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: domain.AggregateReservation,
		AggregateID:   "res-1",
		EventType:     domain.EventReservationConfirmed,
	}); err != nil {
		t.Fatalf("publish reservation event: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestTopicPublisher_FixedTopic(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicDeadLetterQueue {
			t.Errorf("expected dlq topic, got %s", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "outbox-3" {
			t.Errorf("expected fallback key outbox-3, got %s", key)
		}
		return nil
	})

	producer := &Producer{producer: mockProducer, logger: log.WithField("component", "kafka-dlq-test")}
	publisher := NewTopicPublisher(producer, TopicDeadLetterQueue)

	if err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-3",
		AggregateType: domain.AggregateReservation,
		EventType:     domain.EventReservationNotificationRequested,
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-publisher-test"),
	}
	publisher := NewOutboxPublisher(producer)

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-4",
		AggregateType: domain.AggregateOrder,
		AggregateID:   "co-4",
		EventType:     domain.EventOrderPlacementFailed,
		Payload:       []byte(`{"reason":"declined"}`),
	})
	if err == nil {
		t.Fatal("expected publish error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishNilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil)
	if err := publisher.Publish(domain.OutboxMessage{ID: "outbox-5"}); err == nil {
		t.Fatal("expected error for nil producer")
	}
}
