package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

// deadLetter payload, с которым неотправленное событие уходит в DLQ.
// Формат читает утилита dlq-reprocess.
type deadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt string          `json:"dlq_published_at"`
}

// wrapDeadLetter упаковывает событие в deadLetter, сохраняя его ключевые поля,
// чтобы DLQ-сообщение попало в ту же партицию.
func wrapDeadLetter(event domain.OutboxMessage, cause error, at time.Time) (domain.OutboxMessage, error) {
	letter := deadLetter{
		OutboxID:       event.ID,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		EventType:      event.EventType,
		PublishError:   cause.Error(),
		DLQPublishedAt: at.Format(time.RFC3339Nano),
	}
	if json.Valid(event.Payload) {
		letter.Payload = event.Payload
	}

	body, err := json.Marshal(letter)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal dlq payload: %w", err)
	}

	wrapped := event
	wrapped.Payload = body
	return wrapped, nil
}
