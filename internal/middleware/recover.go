package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/DukeRupert/taqa/internal/handler"
)

// Recover turns a panicking handler into a logged 500 page instead of a
// dropped connection.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http uses this sentinel to abort a response on purpose
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("panic serving request",
					"request_id", RequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)

				if isAPIRequest(r) {
					handler.InternalErrorResponse(w, r, logger, fmt.Errorf("panic: %v", rec))
					return
				}
				handler.RenderErrorPage(w, fmt.Errorf("internal error"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
