// Package handler contains HTTP handlers for the Taqa back office.
//
// This file implements the login and logout handlers. Accounts live in the
// backend; the handler only keeps the backend token in a session cookie.
package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/DukeRupert/taqa/internal/csrf"
	"github.com/DukeRupert/taqa/internal/domain"
	"github.com/DukeRupert/taqa/internal/service"
	"github.com/DukeRupert/taqa/internal/session"
	"github.com/DukeRupert/taqa/internal/templ/partials"
)

// DefaultLandingPath is where a successful login goes without return_to.
const DefaultLandingPath = "/customers/new"

// =============================================================================
// Handler Configuration
// =============================================================================

// TemplateRenderer is the interface for rendering HTML templates.
// This interface allows for mocking in tests.
type TemplateRenderer interface {
	RenderHTTP(w http.ResponseWriter, name string, data interface{})
	RenderHTTPStatus(w http.ResponseWriter, name string, data interface{}, status int)
	RenderComponent(w http.ResponseWriter, r *http.Request, c templ.Component, toast partials.ToastData)
}

// AuthHandler handles authentication-related HTTP requests.
//
// Routes handled:
// - GET  /login    -> ShowLogin
// - POST /login    -> Login
// - POST /logout   -> Logout
type AuthHandler struct {
	authService service.AuthService
	renderer    TemplateRenderer
	logger      *slog.Logger
	isSecure    bool
}

// NewAuthHandler creates a new AuthHandler with the required dependencies.
//
// Example usage in main.go:
//
//	authHandler := handler.NewAuthHandler(authService, renderer, logger, cfg.Env != "development")
func NewAuthHandler(
	authService service.AuthService,
	renderer TemplateRenderer,
	logger *slog.Logger,
	isSecure bool,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		renderer:    renderer,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// =============================================================================
// Template Data Types
// =============================================================================

// Flash represents a flash message to display to the user.
//
// The Type field determines styling in templates:
// - "success" -> green background
// - "error"   -> red background
// - "info"    -> blue background
type Flash struct {
	Type    string // "success", "error", or "info"
	Message string
}

func successFlash(msg string) *Flash {
	if msg == "" {
		return nil
	}
	return &Flash{Type: "success", Message: msg}
}

func errorFlash(msg string) *Flash {
	if msg == "" {
		return nil
	}
	return &Flash{Type: "error", Message: msg}
}

// AuthPageData contains common data for authentication pages.
type AuthPageData struct {
	CurrentPath string            // Current URL path for navigation highlighting
	CSRFToken   string            // CSRF token for form protection
	Form        map[string]string // Form field values for re-populating on error
	Errors      map[string]string // Field-level validation errors
	Flash       *Flash            // Flash message to display
	ReturnTo    string            // URL to redirect to after successful login
}

// =============================================================================
// GET /login - Show Login Form
// =============================================================================

// ShowLogin renders the login form.
//
// Query Parameters:
// - return_to (optional): URL to redirect to after successful login
// - logout (optional): If "1", confirm the sign-out
// - expired (optional): If "1", the backend refused the previous session
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	var flash *Flash
	switch {
	case r.URL.Query().Get("logout") == "1":
		flash = &Flash{Type: "success", Message: "You have been signed out."}
	case r.URL.Query().Get("expired") == "1":
		flash = &Flash{Type: "info", Message: "Your session has expired. Please sign in again."}
	}

	data := AuthPageData{
		CurrentPath: r.URL.Path,
		CSRFToken:   csrf.Token(r),
		Form:        make(map[string]string),
		Errors:      make(map[string]string),
		Flash:       flash,
		ReturnTo:    r.URL.Query().Get("return_to"),
	}

	h.renderer.RenderHTTP(w, "auth/login", data)
}

// =============================================================================
// POST /login - Process Login
// =============================================================================

// Login posts the credentials to the backend and stores the returned token.
//
// Error Flow:
// - Field errors re-render the form next to the inputs
// - Refused credentials always show "Invalid email or password"
// - No backend answer shows the network message
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Error("failed to parse form", "error", err)
		h.renderLoginError(w, r, nil, nil, errorFlash("Invalid form submission. Please try again."))
		return
	}

	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	password := r.FormValue("password")
	returnTo := r.FormValue("return_to")

	// Store form values for re-rendering (except password)
	formValues := map[string]string{
		"Email": email,
	}

	user, err := h.authService.Login(r.Context(), domain.LoginParams{Email: email, Password: password})
	if err != nil {
		if fields := domain.FieldErrorsOf(err); len(fields) > 0 {
			h.renderLoginError(w, r, formValues, fields, nil)
			return
		}

		switch domain.ErrorCode(err) {
		case domain.EUNAUTHORIZED:
			h.renderLoginError(w, r, formValues, nil, errorFlash(domain.ErrorMessage(err)))
		case domain.EUNAVAILABLE:
			h.logger.Warn("login backend unreachable", "error", err)
			h.renderLoginError(w, r, formValues, nil, errorFlash(domain.MsgNetworkFailure))
		default:
			h.logger.Error("login failed", "error", err, "email", email)
			h.renderLoginError(w, r, formValues, nil, errorFlash("Login failed. Please try again later."))
		}
		return
	}

	setSessionCookie(w, user.Token, h.authService.CookieMaxAge(user), h.isSecure)
	csrf.RefreshToken(w, h.isSecure)

	h.logger.Info("user logged in",
		"user_id", user.ID,
		"tenant_id", user.TenantID,
	)

	redirectURL := DefaultLandingPath
	if returnTo != "" && isSafeRedirectURL(returnTo) {
		redirectURL = returnTo
	}
	http.Redirect(w, r, redirectURL, http.StatusSeeOther)
}

// renderLoginError re-renders the login form with errors.
func (h *AuthHandler) renderLoginError(
	w http.ResponseWriter,
	r *http.Request,
	formValues map[string]string,
	errors map[string]string,
	flash *Flash,
) {
	if formValues == nil {
		formValues = make(map[string]string)
	}
	if errors == nil {
		errors = make(map[string]string)
	}

	data := AuthPageData{
		CurrentPath: "/login",
		CSRFToken:   csrf.Token(r),
		Form:        formValues,
		Errors:      errors,
		Flash:       flash,
		ReturnTo:    r.FormValue("return_to"),
	}

	h.renderer.RenderHTTP(w, "auth/login", data)
}

// =============================================================================
// POST /logout - Process Logout
// =============================================================================

// Logout clears the session cookie. The backend token is stateless, so
// there is nothing to revoke remotely.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w, h.isSecure)

	h.logger.Debug("user logged out")

	http.Redirect(w, r, "/login?logout=1", http.StatusSeeOther)
}

// =============================================================================
// Session Cookie Helpers
// =============================================================================

// setSessionCookie sets the session cookie on the response.
//
// Cookie Settings:
// - HttpOnly: true - Prevents JavaScript access (XSS protection)
// - Secure: configurable - Set true in production (HTTPS only)
// - SameSite: Lax - Prevents CSRF while allowing normal navigation
// - MaxAge: follows the token expiry
func setSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, isSecure bool) {
	if maxAge <= 0 {
		maxAge = session.DefaultMaxAge
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     session.CookiePath,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie removes the session cookie from the client.
func clearSessionCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     session.CookiePath,
		MaxAge:   -1, // Delete immediately
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// =============================================================================
// Helper Functions
// =============================================================================

// isSafeRedirectURL checks if a URL is safe to redirect to.
//
// Examples:
// - "/customers/new"          -> true (relative URL)
// - "/customers/import?b=1"   -> true (relative URL with query)
// - "//evil.com"              -> false (protocol-relative, could be external)
// - "https://evil.com"        -> false (absolute URL to external domain)
// - "javascript:alert(1)"     -> false (javascript URL)
func isSafeRedirectURL(rawURL string) bool {
	// Must start with /
	if !strings.HasPrefix(rawURL, "/") {
		return false
	}

	// Must not start with // (protocol-relative URL)
	if strings.HasPrefix(rawURL, "//") || strings.HasPrefix(rawURL, "/\\") {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	// Must not have a scheme or host
	if parsed.Scheme != "" || parsed.Host != "" {
		return false
	}

	return true
}

// =============================================================================
// Route Registration Helper
// =============================================================================

// RegisterRoutes registers all auth routes on the provided ServeMux.
// login wraps POST /login, e.g. with the login rate limiter.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, login func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /login", h.ShowLogin)
	mux.Handle("POST /login", login(http.HandlerFunc(h.Login)))
	mux.HandleFunc("POST /logout", h.Logout)
}
