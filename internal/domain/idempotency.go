package domain

import (
	"strings"
	"time"
)

// DefaultIdempotencyTTL срок жизни ключа, если вызывающий не задал свой.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStatus состояние ключа Idempotency-Key для отправки заказа.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing отправка принята и ещё выполняется.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone ответ сохранён и отдаётся повторно.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed отправка закончилась ошибкой, ответ тоже сохранён.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// IdempotencyRecord связывает ключ клиента с хешем тела запроса и сохранённым ответом.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что ответ сохранён и его можно воспроизвести.
func (s IdempotencyStatus) Terminal() bool {
	return s == IdempotencyStatusDone || s == IdempotencyStatusFailed
}

// Expired сообщает, что запись старше своего TTL.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.IsZero() && !now.Before(r.TTLAt)
}

// Reclaimable сообщает, что живую запись можно занять заново: прошлая
// обработка упала или зависла в processing дольше staleBefore.
// Нулевой staleBefore не считает processing зависшим.
func (r IdempotencyRecord) Reclaimable(staleBefore time.Time) bool {
	switch r.Status {
	case IdempotencyStatusFailed:
		return true
	case IdempotencyStatusProcessing:
		return !staleBefore.IsZero() && !r.UpdatedAt.After(staleBefore)
	default:
		return false
	}
}

// NewProcessingRecord нормализует ключ и хеш и собирает запись в статусе
// processing. Нулевой ttlAt заменяется на now+DefaultIdempotencyTTL.
func NewProcessingRecord(key, requestHash string, ttlAt, now time.Time) (IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)
	switch {
	case key == "":
		return IdempotencyRecord{}, ErrIdempotencyKeyRequired
	case requestHash == "":
		return IdempotencyRecord{}, ErrIdempotencyRequestHashRequired
	}
	if ttlAt.IsZero() {
		ttlAt = now.Add(DefaultIdempotencyTTL)
	}
	return IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      IdempotencyStatusProcessing,
		TTLAt:       ttlAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ConflictWith возвращает ошибку повторной резервации живого ключа:
// ErrIdempotencyHashMismatch для другого тела запроса, иначе
// ErrIdempotencyKeyAlreadyExists.
func (r IdempotencyRecord) ConflictWith(requestHash string) error {
	if r.RequestHash != requestHash {
		return ErrIdempotencyHashMismatch
	}
	return ErrIdempotencyKeyAlreadyExists
}
