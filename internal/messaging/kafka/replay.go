package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotDeadLetter означает, что сообщение из DLQ не удалось распознать
// ни как письмо consumer-а, ни как письмо outbox worker-а.
var ErrNotDeadLetter = errors.New("message is not a dead letter")

// Replay сообщение, готовое к повторной публикации.
type Replay struct {
	Topic string
	Key   string
	Value []byte
}

type outboxDeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

// DecodeDeadLetter восстанавливает исходное сообщение из DLQ.
//
// Письма consumer-а возвращаются в original_topic как есть. Письма outbox
// worker-а упаковываются обратно в Envelope и направляются в topic агрегата.
func DecodeDeadLetter(value []byte, now time.Time) (Replay, error) {
	var letter deadLetter
	if err := json.Unmarshal(value, &letter); err == nil && letter.OriginalValue != "" {
		topic := strings.TrimSpace(letter.OriginalTopic)
		if topic == "" || topic == TopicDeadLetterQueue {
			return Replay{}, fmt.Errorf("dead letter has no replayable topic: %q", letter.OriginalTopic)
		}
		return Replay{Topic: topic, Key: letter.OriginalKey, Value: []byte(letter.OriginalValue)}, nil
	}

	var envelope Envelope
	if err := json.Unmarshal(value, &envelope); err != nil || len(envelope.Payload) == 0 {
		return Replay{}, ErrNotDeadLetter
	}

	var outboxLetter outboxDeadLetter
	if err := json.Unmarshal(envelope.Payload, &outboxLetter); err != nil {
		return Replay{}, fmt.Errorf("decode outbox dead letter: %w", err)
	}
	if len(outboxLetter.Payload) == 0 {
		return Replay{}, errors.New("outbox dead letter has no original payload")
	}

	restored := Envelope{
		ID:            firstNonEmpty(outboxLetter.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(outboxLetter.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(outboxLetter.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(outboxLetter.EventType, envelope.EventType),
		Payload:       outboxLetter.Payload,
		PublishedAt:   now.UTC(),
	}
	encoded, err := json.Marshal(restored)
	if err != nil {
		return Replay{}, fmt.Errorf("encode replay envelope: %w", err)
	}

	return Replay{
		Topic: TopicForAggregate(restored.AggregateType),
		Key:   firstNonEmpty(restored.AggregateID, restored.ID),
		Value: encoded,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
