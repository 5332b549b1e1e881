package workflow

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
	"github.com/vladislavdragonenkov/restaurant/internal/metrics"
)

// Journal пишет события workflow в outbox и timeline. Ошибки записи
// логируются и не прерывают workflow.
type Journal struct {
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	metrics  *metrics.WorkflowMetrics
	logger   *log.Entry
	now      func() time.Time
}

// NewJournal создаёт журнал. Любой из репозиториев может быть nil.
func NewJournal(outbox domain.OutboxRepository, timeline domain.TimelineRepository, m *metrics.WorkflowMetrics, logger *log.Entry) *Journal {
	if logger == nil {
		logger = log.WithField("component", "workflow-journal")
	}
	return &Journal{
		outbox:   outbox,
		timeline: timeline,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Emit сериализует payload и ставит событие в outbox.
func (j *Journal) Emit(aggregateType, aggregateID, eventType string, payload any) {
	if j == nil || j.outbox == nil {
		return
	}

	fields := log.Fields{
		"aggregate":    aggregateType,
		"aggregate_id": aggregateID,
		"event":        eventType,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		j.logger.WithError(err).WithFields(fields).Error("marshal event failed")
		return
	}

	if _, err := j.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}); err != nil {
		j.logger.WithError(err).WithFields(fields).Error("enqueue event failed")
		return
	}
	if j.metrics != nil {
		j.metrics.RecordOutboxEvent()
	}
}

// Record добавляет событие в timeline workflow.
func (j *Journal) Record(workflowID, eventType, reason string) {
	if j == nil || j.timeline == nil {
		return
	}

	event := domain.TimelineEvent{
		WorkflowID: workflowID,
		Type:       eventType,
		Reason:     reason,
		Occurred:   j.now(),
	}
	if err := j.timeline.Append(event); err != nil {
		j.logger.WithError(err).WithFields(log.Fields{
			"workflow_id": workflowID,
			"event":       eventType,
		}).Warn("append timeline event failed")
		return
	}
	if j.metrics != nil {
		j.metrics.RecordTimelineEvent()
	}
}

// Timeline возвращает события workflow. Без репозитория timeline пуст.
func (j *Journal) Timeline(workflowID string) ([]domain.TimelineEvent, error) {
	if j == nil || j.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return j.timeline.List(workflowID)
}
