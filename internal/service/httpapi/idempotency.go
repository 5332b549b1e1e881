package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

const (
	// IdempotencyKeyHeader необязательный ключ повторной отправки заказа.
	IdempotencyKeyHeader = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour
	maxIdempotencyKeyLen = 128
)

var errIdempotencyInFlight = errors.New("request with the same idempotency key is already processing")

// withIdempotency выполняет handler один раз на ключ. Повтор с тем же ключом
// получает сохранённый ответ, повтор для другого запроса — 409.
func (s *Server) withIdempotency(w http.ResponseWriter, r *http.Request, scope string, handler func() response) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if s.idem == nil || key == "" {
		handler().write(w)
		return
	}
	if len(key) > maxIdempotencyKeyLen {
		s.writeError(w, r, newAPIError(http.StatusBadRequest, CodeInvalidArgument, "idempotency key is too long"))
		return
	}

	requestHash := hashScope(sessionFrom(r.Context()), scope)
	record, err := s.idem.CreateProcessing(key, requestHash, time.Now().UTC().Add(idempotencyTTL))
	if err != nil {
		s.replayIdempotency(w, r, err, record)
		return
	}

	resp := handler()
	logger := s.logger.WithField("idempotency_key", key)
	if resp.status >= http.StatusBadRequest {
		if err := s.idem.MarkFailed(key, resp.body, resp.status); err != nil {
			logger.WithError(err).Warn("failed to store idempotency failure response")
		}
	} else if err := s.idem.MarkDone(key, resp.body, resp.status); err != nil {
		logger.WithError(err).Warn("failed to store idempotent success response")
	}
	resp.write(w)
}

func (s *Server) replayIdempotency(w http.ResponseWriter, r *http.Request, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		s.writeError(w, r, newAPIError(http.StatusConflict, CodeIdempotency, "idempotency key is already used with different request"))
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Status == domain.IdempotencyStatusProcessing {
			s.writeError(w, r, newAPIError(http.StatusConflict, CodeSubmitInFlight, errIdempotencyInFlight.Error()))
			return
		}
		if len(record.ResponseBody) == 0 || record.HTTPStatus == 0 {
			s.writeError(w, r, errors.New("idempotency cache is empty"))
			return
		}
		w.Header().Set("Idempotent-Replayed", "true")
		response{status: record.HTTPStatus, body: record.ResponseBody}.write(w)
	default:
		s.logger.WithError(createErr).WithField("path", r.URL.Path).Warn("failed to create idempotency record")
		s.writeError(w, r, createErr)
	}
}

func hashScope(sessionID, scope string) string {
	sum := sha256.Sum256([]byte(sessionID + ":" + scope))
	return hex.EncodeToString(sum[:])
}
