package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	seq        uint64
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// OutboxRepository in-memory transactional outbox. Сообщения выдаются
// в порядке постановки в очередь.
type OutboxRepository struct {
	mu      sync.RWMutex
	seq     uint64
	records map[string]*outboxRecord
}

// NewOutboxRepository создаёт in-memory реализацию outbox.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{records: make(map[string]*outboxRecord)}
}

// Enqueue сохраняет событие со статусом `pending`.
func (r *OutboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Payload = append([]byte(nil), msg.Payload...)

	r.seq++
	now := time.Now().UTC()
	r.records[msg.ID] = &outboxRecord{
		msg:       msg,
		seq:       r.seq,
		status:    outboxStatusPending,
		createdAt: now,
		updatedAt: now,
	}
	return msg, nil
}

// PullPending возвращает до limit самых старых сообщений со статусом `pending`.
func (r *OutboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	pending := r.pendingRecords()
	if len(pending) > limit {
		pending = pending[:limit]
	}

	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result, nil
}

// Stats возвращает размер backlog и время самого старого pending-сообщения.
func (r *OutboxRepository) Stats() (domain.OutboxStats, error) {
	pending := r.pendingRecords()
	stats := domain.OutboxStats{PendingCount: len(pending)}
	if len(pending) > 0 {
		stats.OldestPendingAt = pending[0].createdAt
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *OutboxRepository) MarkSent(id string) error {
	return r.mark(id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *OutboxRepository) MarkFailed(id string) error {
	return r.mark(id, outboxStatusFailed)
}

// AllPending возвращает копию всех сообщений со статусом `pending` (используется в тестах).
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	pending := r.pendingRecords()
	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result
}

// ByEventType возвращает сообщения любого статуса с указанным типом события.
func (r *OutboxRepository) ByEventType(eventType string) []domain.OutboxMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*outboxRecord, 0)
	for _, rec := range r.records {
		if rec.msg.EventType == eventType {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })

	result := make([]domain.OutboxMessage, 0, len(records))
	for _, rec := range records {
		result = append(result, rec.msg)
	}
	return result
}

func (r *OutboxRepository) mark(id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok || record.status != outboxStatusPending {
		return fmt.Errorf("%w: message %s is not pending", domain.ErrOutboxPublish, id)
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = time.Now().UTC()
	return nil
}

func (r *OutboxRepository) pendingRecords() []*outboxRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*outboxRecord, 0)
	for _, rec := range r.records {
		if rec.status == outboxStatusPending {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
