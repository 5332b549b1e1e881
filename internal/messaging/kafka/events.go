package kafka

import (
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

// EventType определяет тип события в payload сообщения.
type EventType string

const (
	EventTypeOrderPlaced          EventType = "order.placed"
	EventTypeOrderPlacementFailed EventType = "order.placement_failed"

	EventTypeReservationConfirmed             EventType = "reservation.confirmed"
	EventTypeReservationNotificationRequested EventType = "reservation.notification_requested"
)

// Topics для Kafka
const (
	TopicOrderEvents       = "restaurant.order.events"
	TopicReservationEvents = "restaurant.reservation.events"
	TopicDeadLetterQueue   = "restaurant.dlq"
)

// Kafka headers
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
	HeaderEventType     = "x-event-type"
)

// TopicForAggregate выбирает topic по типу агрегата outbox-сообщения.
func TopicForAggregate(aggregateType string) string {
	switch aggregateType {
	case domain.AggregateReservation:
		return TopicReservationEvents
	default:
		return TopicOrderEvents
	}
}

// Envelope формат сообщения, которое outbox publisher кладёт в Kafka.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// OrderEvent payload событий заказа.
type OrderEvent struct {
	EventType     EventType `json:"event_type"`
	OrderID       string    `json:"order_id"`
	SessionID     string    `json:"session_id"`
	Total         string    `json:"total,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Reference     string    `json:"reference,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewOrderPlacedEvent строит событие размещённого заказа.
func NewOrderPlacedEvent(order domain.CheckoutOrder, reference string) *OrderEvent {
	return &OrderEvent{
		EventType:     EventTypeOrderPlaced,
		OrderID:       order.ID,
		SessionID:     order.SessionID,
		Total:         order.Total.StringFixed(2),
		PaymentMethod: string(order.PaymentMethod),
		Reference:     reference,
		Timestamp:     time.Now().UTC(),
	}
}

// NewOrderFailedEvent строит событие неудачного размещения.
func NewOrderFailedEvent(order domain.CheckoutOrder, reason string) *OrderEvent {
	return &OrderEvent{
		EventType:     EventTypeOrderPlacementFailed,
		OrderID:       order.ID,
		SessionID:     order.SessionID,
		Total:         order.Total.StringFixed(2),
		PaymentMethod: string(order.PaymentMethod),
		Reason:        reason,
		Timestamp:     time.Now().UTC(),
	}
}

// ReservationEvent payload событий бронирования.
type ReservationEvent struct {
	EventType     EventType `json:"event_type"`
	ReservationID string    `json:"reservation_id"`
	Date          string    `json:"date"`
	TimeSlot      string    `json:"time_slot"`
	PartySize     int       `json:"party_size"`
	ContactName   string    `json:"contact_name"`
	Summary       string    `json:"summary,omitempty"`
	NotifyURL     string    `json:"notify_url,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewReservationEvent строит событие брони. summary и notifyURL заполняются
// только для запроса уведомления.
func NewReservationEvent(eventType EventType, r domain.Reservation, summary, notifyURL string) *ReservationEvent {
	return &ReservationEvent{
		EventType:     eventType,
		ReservationID: r.Request.ID,
		Date:          r.Request.Date.Format(time.DateOnly),
		TimeSlot:      r.Request.TimeSlot,
		PartySize:     r.Request.PartySize,
		ContactName:   r.Request.Contact.Name,
		Summary:       summary,
		NotifyURL:     notifyURL,
		Timestamp:     time.Now().UTC(),
	}
}
