package middleware

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/DukeRupert/taqa/internal/csrf"
	"github.com/DukeRupert/taqa/internal/domain"
	"github.com/DukeRupert/taqa/internal/handler"
)

// MaxRequestBytes caps request bodies. Files a little over the import
// limit still reach the handler so it can report the size per field.
const MaxRequestBytes = 2*domain.MaxImportFileSize + 1<<20

// formMaxMemory matches what the import handler keeps in memory.
const formMaxMemory = 8 << 20

// CSRFMiddleware issues a double-submit token on every request and checks
// it on unsafe methods.
type CSRFMiddleware struct {
	logger   *slog.Logger
	isSecure bool
}

// NewCSRFMiddleware creates a new CSRF middleware.
func NewCSRFMiddleware(logger *slog.Logger, isSecure bool) *CSRFMiddleware {
	return &CSRFMiddleware{
		logger:   logger,
		isSecure: isSecure,
	}
}

// Handler returns middleware that stores the token on the request context
// for templates and rejects unsafe requests without a matching token.
//
// htmx requests carry the token in X-CSRF-Token, so their bodies are left
// for the handler to parse. Plain form posts are parsed here.
func (m *CSRFMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := csrf.EnsureToken(w, r, m.isSecure)
		r = r.WithContext(csrf.WithToken(r.Context(), token))

		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)

		if r.Header.Get(csrf.HeaderName) == "" {
			if err := parseForm(r); err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					m.logger.Warn("request body too large", "path", r.URL.Path, "limit", tooLarge.Limit)
					http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, "Malformed form body", http.StatusBadRequest)
				return
			}
		}

		if !csrf.ValidateRequest(r) {
			m.logger.Warn("csrf token mismatch",
				"path", r.URL.Path,
				"method", r.Method,
				"ip", getClientIP(r),
			)
			if isAPIRequest(r) {
				handler.ForbiddenResponse(w, r, m.logger)
				return
			}
			http.Error(w, "Invalid or missing CSRF token. Reload the page and try again.", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// parseForm parses urlencoded and multipart bodies alike. A later
// ParseMultipartForm in the handler is then a no-op.
func parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(formMaxMemory)
	}
	return r.ParseForm()
}
