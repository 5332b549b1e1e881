package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

type timelineRepository struct {
	db *sql.DB
}

// NewTimelineRepository создаёт PostgreSQL-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DB()}
}

// Append сохраняет событие. BIGSERIAL id упорядочивает события с одинаковым
// временем в порядке вставки.
func (r *timelineRepository) Append(event domain.TimelineEvent) error {
	if event.WorkflowID == "" {
		return domain.ErrTimelineWorkflowRequired
	}
	occurred := event.Occurred
	if occurred.IsZero() {
		occurred = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO workflow_timeline (workflow_id, type, reason, occurred) VALUES ($1, $2, $3, $4)`,
		event.WorkflowID, event.Type, event.Reason, occurred.UTC(),
	); err != nil {
		return fmt.Errorf("append timeline event %s/%s: %w", event.WorkflowID, event.Type, err)
	}
	return nil
}

func (r *timelineRepository) List(workflowID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT type, reason, occurred
		FROM workflow_timeline
		WHERE workflow_id = $1
		ORDER BY occurred, id
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list timeline of %s: %w", workflowID, err)
	}
	defer rows.Close()

	events := []domain.TimelineEvent{}
	for rows.Next() {
		event := domain.TimelineEvent{WorkflowID: workflowID}
		if err := rows.Scan(&event.Type, &event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		event.Occurred = event.Occurred.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
