package memory

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

// IdempotencyRepository держит ключи в map. Просроченная запись невидима для
// Get и может быть занята заново, физически её удаляет DeleteExpired.
type IdempotencyRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.IdempotencyRecord
	now     func() time.Time
}

func NewIdempotencyRepository() *IdempotencyRepository {
	return NewIdempotencyRepositoryWithClock(func() time.Time { return time.Now().UTC() })
}

// NewIdempotencyRepositoryWithClock подменяет часы, по которым считается TTL.
func NewIdempotencyRepositoryWithClock(now func() time.Time) *IdempotencyRepository {
	return &IdempotencyRepository{
		records: make(map[string]*domain.IdempotencyRecord),
		now:     now,
	}
}

func (r *IdempotencyRepository) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	now := r.now()
	record, err := domain.NewProcessingRecord(key, requestHash, ttlAt, now)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.live(record.Key, now); existing != nil {
		return copyRecord(existing), existing.ConflictWith(record.RequestHash)
	}
	r.records[record.Key] = &record
	return copyRecord(&record), nil
}

func (r *IdempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if record := r.live(key, r.now()); record != nil {
		return copyRecord(record), nil
	}
	return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
}

func (r *IdempotencyRepository) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return r.finish(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *IdempotencyRepository) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return r.finish(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// Reclaim занимает упавшую или зависшую запись заново. Отсутствующий или
// просроченный ключ не занимается: для него есть CreateProcessing.
func (r *IdempotencyRepository) Reclaim(key, requestHash string, staleBefore, ttlAt time.Time) (bool, error) {
	now := r.now()
	fresh, err := domain.NewProcessingRecord(key, requestHash, ttlAt, now)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.live(fresh.Key, now)
	if existing == nil || !existing.Reclaimable(staleBefore) {
		return false, nil
	}
	r.records[fresh.Key] = &fresh
	return true, nil
}

// DeleteExpired удаляет до limit записей с TTL не позже before, начиная с
// самых старых. limit<=0 снимает ограничение.
func (r *IdempotencyRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	expired := make([]*domain.IdempotencyRecord, 0)
	for _, record := range r.records {
		if !record.TTLAt.After(before) {
			expired = append(expired, record)
		}
	}
	slices.SortFunc(expired, func(a, b *domain.IdempotencyRecord) int {
		return a.TTLAt.Compare(b.TTLAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	for _, record := range expired {
		delete(r.records, record.Key)
	}
	return len(expired), nil
}

// finish сохраняет ответ. Запись обновляется, даже если TTL уже истёк:
// отправка, начатая до истечения, должна завершиться.
func (r *IdempotencyRepository) finish(key string, status domain.IdempotencyStatus, body []byte, httpStatus int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[key]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	record.Status = status
	record.ResponseBody = slices.Clone(body)
	record.HTTPStatus = httpStatus
	record.UpdatedAt = r.now()
	return nil
}

func (r *IdempotencyRepository) live(key string, now time.Time) *domain.IdempotencyRecord {
	record, ok := r.records[key]
	if !ok || record.Expired(now) {
		return nil
	}
	return record
}

func copyRecord(src *domain.IdempotencyRecord) domain.IdempotencyRecord {
	dst := *src
	dst.ResponseBody = slices.Clone(src.ResponseBody)
	return dst
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
