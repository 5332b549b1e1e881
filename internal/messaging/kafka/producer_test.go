package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicOrderEvents {
			t.Errorf("unexpected topic %s", msg.Topic)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != HeaderEventType {
			t.Errorf("unexpected headers %+v", msg.Headers)
		}
		return nil
	})

	event := NewOrderPlacedEvent(sampleOrder(), "REF-1")
	err := producer.PublishEvent(TopicOrderEvents, "co-1", event, sarama.RecordHeader{
		Key:   []byte(HeaderEventType),
		Value: []byte(event.EventType),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	if err := producer.PublishEvent(TopicOrderEvents, "co-1", NewOrderFailedEvent(sampleOrder(), "declined")); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	producer := &Producer{logger: log.WithField("component", "kafka-producer-test")}

	if err := producer.PublishEvent(TopicOrderEvents, "k", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	if _, err := NewProducer(nil, ""); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestNewOrderEvents(t *testing.T) {
	order := sampleOrder()

	placed := NewOrderPlacedEvent(order, "REF-9")
	if placed.EventType != EventTypeOrderPlaced || placed.OrderID != "co-1" || placed.SessionID != "sess-1" {
		t.Fatalf("unexpected placed event: %+v", placed)
	}
	if placed.Total != "83.30" {
		t.Fatalf("expected total 83.30, got %s", placed.Total)
	}
	if placed.Reference != "REF-9" || placed.Reason != "" {
		t.Fatalf("unexpected reference/reason: %+v", placed)
	}
	if time.Since(placed.Timestamp) > time.Second {
		t.Fatal("timestamp should be close to current time")
	}

	failed := NewOrderFailedEvent(order, "payment declined")
	if failed.EventType != EventTypeOrderPlacementFailed || failed.Reason != "payment declined" {
		t.Fatalf("unexpected failed event: %+v", failed)
	}
}

func TestNewReservationEvent(t *testing.T) {
	r := domain.NewReservation("res-1", time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC))
	r.Request.TimeSlot = "19:00"
	r.Request.Contact.Name = "Ana"

	event := NewReservationEvent(EventTypeReservationNotificationRequested, r, "*Nueva Reserva*", "https://wa.me/1")
	if event.ReservationID != "res-1" || event.Date != "2030-01-02" || event.TimeSlot != "19:00" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.PartySize != domain.DefaultPartySize || event.ContactName != "Ana" {
		t.Fatalf("unexpected party/contact: %+v", event)
	}
	if event.NotifyURL != "https://wa.me/1" {
		t.Fatalf("unexpected notify url %s", event.NotifyURL)
	}
}

func TestTopicForAggregate(t *testing.T) {
	cases := map[string]string{
		domain.AggregateOrder:       TopicOrderEvents,
		domain.AggregateReservation: TopicReservationEvents,
		"unknown":                   TopicOrderEvents,
	}
	for aggregate, want := range cases {
		if got := TopicForAggregate(aggregate); got != want {
			t.Fatalf("TopicForAggregate(%q) = %s, want %s", aggregate, got, want)
		}
	}
}

func sampleOrder() domain.CheckoutOrder {
	return domain.CheckoutOrder{
		ID:            "co-1",
		SessionID:     "sess-1",
		Subtotal:      decimal.RequireFromString("78.30"),
		ShippingFee:   decimal.RequireFromString("5.00"),
		Total:         decimal.RequireFromString("83.30"),
		PaymentMethod: domain.PaymentMethodCash,
	}
}
