package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsAuthMiddleware guards the Prometheus endpoint with HTTP basic auth.
// Credentials are compared as SHA-256 digests, so the comparison time does
// not depend on their length.
type MetricsAuthMiddleware struct {
	username [sha256.Size]byte
	password [sha256.Size]byte
	enabled  bool
}

// NewMetricsAuthMiddleware creates the guard. With no credentials configured
// the endpoint stays open and a warning is logged once.
func NewMetricsAuthMiddleware(username, password string, logger *slog.Logger) *MetricsAuthMiddleware {
	m := &MetricsAuthMiddleware{
		username: sha256.Sum256([]byte(username)),
		password: sha256.Sum256([]byte(password)),
		enabled:  username != "" || password != "",
	}
	if !m.enabled {
		logger.Warn("METRICS_USERNAME/METRICS_PASSWORD not set, /metrics is unprotected")
	}
	return m
}

// NewMetricsHandler returns the guarded Prometheus scrape handler for
// GET /metrics.
func NewMetricsHandler(username, password string, logger *slog.Logger) http.Handler {
	return NewMetricsAuthMiddleware(username, password, logger).Handler(promhttp.Handler())
}

// Handler returns middleware that requires the configured credentials.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.enabled && !m.authorized(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="taqa metrics", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *MetricsAuthMiddleware) authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userHash := sha256.Sum256([]byte(user))
	passHash := sha256.Sum256([]byte(pass))

	// Both comparisons always run.
	userMatch := subtle.ConstantTimeCompare(userHash[:], m.username[:])
	passMatch := subtle.ConstantTimeCompare(passHash[:], m.password[:])
	return userMatch&passMatch == 1
}
