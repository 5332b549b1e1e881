package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

type idempotencyRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewIdempotencyRepository создаёт PostgreSQL-реализацию IdempotencyRepository.
func NewIdempotencyRepository(store *Store) domain.IdempotencyRepository {
	return &idempotencyRepository{
		db:  store.DB(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// reserveKeyQuery вставляет ключ или занимает просроченный. Живая запись не
// меняется, и RETURNING ничего не возвращает.
const reserveKeyQuery = `
	INSERT INTO idempotency_keys AS k (
		key, request_hash, response_body, http_status, status, ttl_at, created_at, updated_at
	) VALUES ($1, $2, NULL, NULL, $3, $4, $5, $5)
	ON CONFLICT (key) DO UPDATE SET
		request_hash  = EXCLUDED.request_hash,
		response_body = NULL,
		http_status   = NULL,
		status        = EXCLUDED.status,
		ttl_at        = EXCLUDED.ttl_at,
		created_at    = EXCLUDED.created_at,
		updated_at    = EXCLUDED.updated_at
	WHERE k.ttl_at <= EXCLUDED.created_at
	RETURNING k.key`

func (r *idempotencyRepository) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	record, err := domain.NewProcessingRecord(key, requestHash, ttlAt, r.now())
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var reserved string
	err = r.db.QueryRowContext(ctx, reserveKeyQuery,
		record.Key, record.RequestHash, string(record.Status), record.TTLAt, record.CreatedAt,
	).Scan(&reserved)
	switch {
	case err == nil:
		return record, nil
	case !errors.Is(err, sql.ErrNoRows):
		return domain.IdempotencyRecord{}, fmt.Errorf("reserve idempotency key: %w", err)
	}

	existing, err := r.get(ctx, record.Key)
	if err != nil {
		// Запись могла истечь между вставкой и чтением; клиент повторит запрос.
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
	}
	return existing, existing.ConflictWith(record.RequestHash)
}

func (r *idempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return r.get(ctx, key)
}

func (r *idempotencyRepository) get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	var (
		record     domain.IdempotencyRecord
		status     string
		httpStatus sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT key, request_hash, response_body, http_status, status, ttl_at, created_at, updated_at
		FROM idempotency_keys
		WHERE key = $1 AND ttl_at > $2
	`, key, r.now()).Scan(
		&record.Key, &record.RequestHash, &record.ResponseBody, &httpStatus,
		&status, &record.TTLAt, &record.CreatedAt, &record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency record: %w", err)
	}

	record.Status = domain.IdempotencyStatus(status)
	if !record.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("idempotency key %s has unknown status %q", key, status)
	}
	record.HTTPStatus = int(httpStatus.Int64)
	record.TTLAt = record.TTLAt.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

func (r *idempotencyRepository) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return r.finish(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyRepository) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return r.finish(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// Reclaim занимает упавшую или зависшую запись одним UPDATE, поэтому из
// конкурирующих вызовов выигрывает ровно один.
func (r *idempotencyRepository) Reclaim(key, requestHash string, staleBefore, ttlAt time.Time) (bool, error) {
	record, err := domain.NewProcessingRecord(key, requestHash, ttlAt, r.now())
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var stale sql.NullTime
	if !staleBefore.IsZero() {
		stale = sql.NullTime{Time: staleBefore.UTC(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET request_hash = $2, response_body = NULL, http_status = NULL, status = $3,
		    ttl_at = $4, created_at = $5, updated_at = $5
		WHERE key = $1 AND ttl_at > $5
		  AND (status = $6 OR (status = $3 AND $7::timestamptz IS NOT NULL AND updated_at <= $7))
	`, record.Key, record.RequestHash, string(domain.IdempotencyStatusProcessing),
		record.TTLAt, record.CreatedAt, string(domain.IdempotencyStatusFailed), stale)
	if err != nil {
		return false, fmt.Errorf("reclaim idempotency key: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpired удаляет до limit самых старых просроченных записей
// (limit<=0 удаляет все).
func (r *idempotencyRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		res sql.Result
		err error
	)
	if limit > 0 {
		res, err = r.db.ExecContext(ctx, `
			DELETE FROM idempotency_keys
			WHERE key IN (
				SELECT key FROM idempotency_keys
				WHERE ttl_at <= $1
				ORDER BY ttl_at
				LIMIT $2
				FOR UPDATE SKIP LOCKED
			)`, before, limit)
	} else {
		res, err = r.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE ttl_at <= $1`, before)
	}
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency keys: %w", err)
	}
	return rowsAffected(res)
}

func (r *idempotencyRepository) finish(key string, status domain.IdempotencyStatus, body []byte, httpStatus int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET response_body = $2, http_status = $3, status = $4, updated_at = $5
		WHERE key = $1
	`, key, body, httpStatus, string(status), r.now())
	if err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
