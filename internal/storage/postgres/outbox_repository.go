package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

// Статусы строк outbox_messages.
const (
	outboxPending = "pending"
	outboxSent    = "sent"
	outboxFailed  = "failed"

	defaultOutboxPullLimit = 100
)

type outboxRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewOutboxRepository создаёт PostgreSQL-реализацию OutboxRepository.
// Pending-сообщения выдаются в порядке постановки в очередь.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return &outboxRepository{
		db:  store.DB(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *outboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	payload := msg.Payload
	if payload == nil {
		payload = []byte{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox_messages (id, aggregate_type, aggregate_id, event_type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, payload, outboxPending, r.now()); err != nil {
		if isUniqueViolation(err) {
			return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message %s: duplicate id", msg.ID)
		}
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message: %w", err)
	}
	return msg, nil
}

func (r *outboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxPullLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2
	`, outboxPending, limit)
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}
	defer rows.Close()

	var pending []domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		if err := rows.Scan(&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		pending = append(pending, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox messages: %w", err)
	}
	return pending, nil
}

func (r *outboxRepository) Stats() (domain.OutboxStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at) FROM outbox_messages WHERE status = $1`, outboxPending,
	).Scan(&stats.PendingCount, &oldest); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

func (r *outboxRepository) MarkSent(id string) error {
	return r.resolve(id, outboxSent)
}

func (r *outboxRepository) MarkFailed(id string) error {
	return r.resolve(id, outboxFailed)
}

// resolve переводит pending-сообщение в конечный статус. Повторная отметка
// уже обработанного сообщения считается ошибкой публикации.
func (r *outboxRepository) resolve(id, status string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $2, attempt_count = attempt_count + 1, updated_at = $3
		WHERE id = $1 AND status = $4
	`, id, status, r.now(), outboxPending)
	if err != nil {
		return fmt.Errorf("mark outbox message %s as %s: %w", id, status, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: message %s is not pending", domain.ErrOutboxPublish, id)
	}
	return nil
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
