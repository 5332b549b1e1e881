package domain

import (
	"context"
	"time"
)

// Catalog источник товаров меню (только чтение).
type Catalog interface {
	// List возвращает товары в порядке отображения.
	List() []Product
	// Get возвращает товар по id или ErrProductNotFound.
	Get(id string) (Product, error)
}

// OrderPlacementService внешний сервис размещения и оплаты заказа.
type OrderPlacementService interface {
	// PlaceOrder блокируется до ответа провайдера. Ошибка означает, что заказ не принят.
	PlaceOrder(ctx context.Context, order CheckoutOrder) (PlacementResult, error)
}

// CartRepository хранит корзины по идентификатору сессии.
type CartRepository interface {
	// Load возвращает корзину сессии; для неизвестной сессии — пустую корзину.
	Load(ctx context.Context, sessionID string) (Cart, error)
	Save(ctx context.Context, sessionID string, cart Cart) error
	Delete(ctx context.Context, sessionID string) error
}

// OrderRepository хранит размещённые заказы.
type OrderRepository interface {
	// Create сохраняет новый заказ или возвращает ErrOrderAlreadyExists.
	Create(order CheckoutOrder) error
	// Get возвращает заказ или ErrOrderNotFound.
	Get(id string) (CheckoutOrder, error)
	// ListBySession возвращает заказы сессии, новые первыми.
	ListBySession(sessionID string, limit int) ([]CheckoutOrder, error)
}

// ReservationRepository хранит подтверждённые брони.
type ReservationRepository interface {
	Save(reservation Reservation) error
	// Get возвращает бронь или ErrReservationNotFound.
	Get(id string) (Reservation, error)
	// ListByDate возвращает брони на день, отсортированные по времени.
	ListByDate(day time.Time) ([]Reservation, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла workflow.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(workflowID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	// Reclaim атомарно переводит Reclaimable запись обратно в processing.
	// false означает, что ключ занят живой обработкой или уже завершён.
	Reclaim(key, requestHash string, staleBefore, ttlAt time.Time) (bool, error)
	DeleteExpired(before time.Time, limit int) (int, error)
}

// Агрегаты outbox-сообщений.
const (
	AggregateOrder       = "order"
	AggregateReservation = "reservation"
)

// Типы outbox-событий.
const (
	EventOrderPlaced                      = "OrderPlaced"
	EventOrderPlacementFailed             = "OrderPlacementFailed"
	EventReservationConfirmed             = "ReservationConfirmed"
	EventReservationNotificationRequested = "ReservationNotificationRequested"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
