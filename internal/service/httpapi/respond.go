package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

// Коды ошибок в теле ответа.
const (
	CodeInvalidArgument = "invalid_argument"
	CodeValidation      = "validation_failed"
	CodeGuard           = "precondition_failed"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeSubmitInFlight  = "submit_in_flight"
	CodeIdempotency     = "idempotency_conflict"
	CodeInternal        = "internal"
)

type successEnvelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
	status  int
}

func (e *apiError) Error() string { return e.Message }

func newAPIError(status int, code, message string, details ...string) *apiError {
	return &apiError{Code: code, Message: message, Details: details, status: status}
}

// response готовый к записи ответ; сохраняется для повторов по Idempotency-Key.
type response struct {
	status int
	body   []byte
}

func success(status int, data any) response {
	body, err := json.Marshal(successEnvelope{Data: data})
	if err != nil {
		return failure(newAPIError(http.StatusInternalServerError, CodeInternal, "failed to encode response"))
	}
	return response{status: status, body: body}
}

func failure(err *apiError) response {
	body, marshalErr := json.Marshal(errorEnvelope{Error: *err})
	if marshalErr != nil {
		body = []byte(`{"error":{"code":"internal","message":"failed to encode error"}}`)
	}
	return response{status: err.status, body: body}
}

func (r response) write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.status)
	_, _ = w.Write(r.body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	success(status, data).write(w)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorResponse(r, err).write(w)
}

func (s *Server) errorResponse(r *http.Request, err error) response {
	apiErr := classify(err)
	if apiErr.status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}
	return failure(apiErr)
}

// classify переводит доменную ошибку в HTTP-статус и код.
func classify(err error) *apiError {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			details = append(details, fe.Field()+" "+validationMessage(fe))
		}
		return newAPIError(http.StatusBadRequest, CodeValidation, "validation failed", details...)
	}

	switch {
	case domain.IsGuardFailure(err), errors.Is(err, domain.ErrDateInPast):
		return newAPIError(http.StatusUnprocessableEntity, CodeGuard, "action is not available", errorDetails(err)...)
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCheckoutNotFound),
		errors.Is(err, domain.ErrReservationNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return newAPIError(http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, domain.ErrSubmitInFlight):
		return newAPIError(http.StatusConflict, CodeSubmitInFlight, err.Error())
	case errors.Is(err, domain.ErrCheckoutCompleted),
		errors.Is(err, domain.ErrReservationFrozen),
		errors.Is(err, domain.ErrTransitionNotAllowed),
		errors.Is(err, domain.ErrStepMismatch):
		return newAPIError(http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, domain.ErrSessionRequired),
		errors.Is(err, domain.ErrPartySizeOutOfRange),
		errors.Is(err, domain.ErrLineQtyTooLarge),
		errors.Is(err, domain.ErrTimeSlotUnknown),
		errors.Is(err, domain.ErrPaymentMethodInvalid),
		errors.Is(err, domain.ErrCardDetailsNotAccepted):
		return newAPIError(http.StatusBadRequest, CodeInvalidArgument, err.Error())
	default:
		return newAPIError(http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// errorDetails раскрывает errors.Join в список сообщений.
func errorDetails(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		details := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			details = append(details, e.Error())
		}
		return details
	}
	return []string{err.Error()}
}
