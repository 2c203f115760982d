package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/taqa/internal/domain"
)

// ErrorResponse writes err to the client. The status and message follow the
// same failure classification the wizard uses for its flashes, so a backend
// that never answered is a 502 with the network message and a form that
// failed validation is a 422 listing its fields. JSON is returned to API
// clients, plain text otherwise.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := domain.ErrorCode(err)
	status := StatusOf(err)
	message := userMessage(err)
	fields := domain.FieldErrorsOf(err)

	logError(logger, r, err, code, domain.ErrorOp(err), status)

	if acceptsJSON(r) {
		writeJSONError(w, status, code, message, fields)
		return
	}
	http.Error(w, message, status)
}

// StatusOf returns the HTTP status for err. Failures reported by the backend
// or by form validation are mapped by kind, everything else by error code.
func StatusOf(err error) int {
	kind := domain.Classify(err)
	if kind == domain.FailureValidation || kind == domain.FailureNetwork || fromBackend(err) {
		return failureStatus(kind)
	}
	return ErrorCodeToHTTPStatus(domain.ErrorCode(err))
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests
	case domain.EUNAVAILABLE:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// failureStatus maps a failure to the status of the re-rendered page.
func failureStatus(kind domain.FailureKind) int {
	switch kind {
	case domain.FailureValidation:
		return http.StatusUnprocessableEntity
	case domain.FailureRejected:
		return http.StatusBadRequest
	case domain.FailureUnauthorized:
		return http.StatusUnauthorized
	case domain.FailureServer, domain.FailureNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

// fromBackend reports whether err carries a REST API response status.
func fromBackend(err error) bool {
	var e *domain.Error
	return errors.As(err, &e) && e.Status != 0
}

// userMessage picks text that is safe to show. Internal details and
// operation names never reach the client.
func userMessage(err error) string {
	switch domain.Classify(err) {
	case domain.FailureValidation, domain.FailureNetwork:
		return domain.FailureMessage(err, "")
	case domain.FailureServer:
		if fromBackend(err) {
			return domain.MsgServerFailure
		}
	}
	return domain.ErrorMessage(err)
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, domain.Errorf(domain.ENOTFOUND, "", "The requested page was not found"))
}

// UnauthorizedResponse is a convenience wrapper for 401 errors.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, domain.Errorf(domain.EUNAUTHORIZED, "", "Please sign in to continue"))
}

// ForbiddenResponse is a convenience wrapper for 403 errors.
func ForbiddenResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, domain.Errorf(domain.EFORBIDDEN, "", "Invalid or missing CSRF token. Reload the page and try again."))
}

// InternalErrorResponse logs err and returns a generic 500.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ErrorResponse(w, r, logger, domain.Internal(err, "", "An unexpected error occurred"))
}

// logError logs 5xx responses as errors and 4xx as info.
func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if op != "" {
		attrs = append(attrs, "op", op)
	}
	if fields := domain.FieldErrorsOf(err); len(fields) > 0 {
		attrs = append(attrs, "field_count", len(fields))
	}

	if status >= 500 {
		logger.Error("server error", attrs...)
	} else if status >= 400 {
		logger.Info("client error", attrs...)
	}
}

// acceptsJSON checks if the client prefers JSON responses. htmx requests
// always get text so the swap target can show it.
func acceptsJSON(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// JSONError is the body of an API error response.
type JSONError struct {
	Error struct {
		Code    string             `json:"code"`
		Message string             `json:"message"`
		Fields  domain.FieldErrors `json:"fields,omitempty"`
	} `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, code, message string, fields domain.FieldErrors) {
	var body JSONError
	body.Error.Code = code
	body.Error.Message = message
	body.Error.Fields = fields

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
