package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/taqa/internal/csrf"
	"github.com/DukeRupert/taqa/internal/domain"
	"github.com/DukeRupert/taqa/internal/session"
)

// newTestAuthHandler creates an AuthHandler with mock dependencies for testing.
func newTestAuthHandler(mock *mockAuthService) (*AuthHandler, *mockRenderer) {
	renderer := &mockRenderer{}
	return NewAuthHandler(mock, renderer, newTestLogger(), false), renderer
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest("POST", target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// =============================================================================
// Login Tests
// =============================================================================

func TestLogin_POST_SetsCookieAndRedirects(t *testing.T) {
	var gotParams domain.LoginParams
	mock := &mockAuthService{
		LoginFunc: func(ctx context.Context, params domain.LoginParams) (*domain.User, error) {
			gotParams = params
			return &domain.User{ID: "7", TenantID: "42", Token: "backend-token"}, nil
		},
		CookieMaxAgeFunc: func(user *domain.User) time.Duration {
			return 2 * time.Hour
		},
	}
	handler, _ := newTestAuthHandler(mock)

	rec := httptest.NewRecorder()
	handler.Login(rec, postForm("/login", url.Values{
		"email":    {"  Amina@Example.com "},
		"password": {"secret"},
	}))

	if gotParams.Email != "amina@example.com" {
		t.Errorf("email = %q, want normalized", gotParams.Email)
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != DefaultLandingPath {
		t.Errorf("Location = %q, want %q", loc, DefaultLandingPath)
	}

	cookie := findCookie(rec, session.CookieName)
	if cookie == nil {
		t.Fatal("session cookie not set")
	}
	if cookie.Value != "backend-token" {
		t.Errorf("cookie value = %q, want backend token", cookie.Value)
	}
	if cookie.MaxAge != 7200 {
		t.Errorf("cookie MaxAge = %d, want 7200", cookie.MaxAge)
	}
	if !cookie.HttpOnly {
		t.Error("cookie must be HttpOnly")
	}
	if findCookie(rec, csrf.CookieName) == nil {
		t.Error("csrf token not rotated on login")
	}
}

func TestLogin_POST_HonoursSafeReturnTo(t *testing.T) {
	mock := &mockAuthService{
		LoginFunc: func(ctx context.Context, params domain.LoginParams) (*domain.User, error) {
			return &domain.User{ID: "7", Token: "t"}, nil
		},
	}
	handler, _ := newTestAuthHandler(mock)

	tests := []struct {
		returnTo string
		want     string
	}{
		{"/customers/import", "/customers/import"},
		{"//evil.com", DefaultLandingPath},
		{"https://evil.com", DefaultLandingPath},
	}

	for _, tt := range tests {
		t.Run(tt.returnTo, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.Login(rec, postForm("/login", url.Values{
				"email":     {"a@b.co"},
				"password":  {"x"},
				"return_to": {tt.returnTo},
			}))
			if loc := rec.Header().Get("Location"); loc != tt.want {
				t.Errorf("Location = %q, want %q", loc, tt.want)
			}
		})
	}
}

func TestLogin_POST_RefusedShowsMessage(t *testing.T) {
	mock := &mockAuthService{
		LoginFunc: func(ctx context.Context, params domain.LoginParams) (*domain.User, error) {
			return nil, domain.Unauthorized("auth.login", "Invalid email or password")
		},
	}
	handler, renderer := newTestAuthHandler(mock)

	rec := httptest.NewRecorder()
	handler.Login(rec, postForm("/login", url.Values{"email": {"a@b.co"}, "password": {"wrong"}}))

	if renderer.Name != "auth/login" {
		t.Fatalf("rendered %q, want auth/login", renderer.Name)
	}
	data := renderer.Data.(AuthPageData)
	if data.Flash == nil || data.Flash.Message != "Invalid email or password" {
		t.Errorf("flash = %+v, want invalid credentials", data.Flash)
	}
	if data.Form["Email"] != "a@b.co" {
		t.Errorf("email not kept for re-render: %q", data.Form["Email"])
	}
	if findCookie(rec, session.CookieName) != nil {
		t.Error("no session cookie expected after refused login")
	}
}

func TestLogin_POST_FieldErrors(t *testing.T) {
	mock := &mockAuthService{
		LoginFunc: func(ctx context.Context, params domain.LoginParams) (*domain.User, error) {
			return nil, domain.NewValidationError("auth.login", "email", "Email is required")
		},
	}
	handler, renderer := newTestAuthHandler(mock)

	rec := httptest.NewRecorder()
	handler.Login(rec, postForm("/login", url.Values{"password": {"x"}}))

	data := renderer.Data.(AuthPageData)
	if data.Errors["email"] != "Email is required" {
		t.Errorf("errors = %v, want email error", data.Errors)
	}
	if data.Flash != nil {
		t.Errorf("flash = %+v, want none for field errors", data.Flash)
	}
}

func TestLogin_POST_BackendUnreachable(t *testing.T) {
	mock := &mockAuthService{
		LoginFunc: func(ctx context.Context, params domain.LoginParams) (*domain.User, error) {
			return nil, domain.Unavailable(context.DeadlineExceeded, "auth.login")
		},
	}
	handler, renderer := newTestAuthHandler(mock)

	rec := httptest.NewRecorder()
	handler.Login(rec, postForm("/login", url.Values{"email": {"a@b.co"}, "password": {"x"}}))

	data := renderer.Data.(AuthPageData)
	if data.Flash == nil || data.Flash.Message != domain.MsgNetworkFailure {
		t.Errorf("flash = %+v, want network message", data.Flash)
	}
}

// =============================================================================
// ShowLogin Tests
// =============================================================================

func TestShowLogin_Flashes(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"", ""},
		{"?logout=1", "You have been signed out."},
		{"?expired=1", "Your session has expired. Please sign in again."},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			handler, renderer := newTestAuthHandler(&mockAuthService{})
			rec := httptest.NewRecorder()
			handler.ShowLogin(rec, httptest.NewRequest("GET", "/login"+tt.query, nil))

			data := renderer.Data.(AuthPageData)
			got := ""
			if data.Flash != nil {
				got = data.Flash.Message
			}
			if got != tt.want {
				t.Errorf("flash = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Logout Tests
// =============================================================================

func TestLogout_POST_ClearsCookie(t *testing.T) {
	handler, _ := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest("POST", "/logout", nil)
	req.AddCookie(&http.Cookie{
		Name:  session.CookieName,
		Value: "session-token-123",
	})
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	// Verify cookie is cleared (MaxAge=-1)
	sessionCookie := findCookie(rec, session.CookieName)
	if sessionCookie == nil {
		t.Fatal("session cookie not found in response")
	}

	if sessionCookie.MaxAge != -1 {
		t.Errorf("cookie MaxAge = %d, want -1 (deleted)", sessionCookie.MaxAge)
	}
}

func TestLogout_POST_RedirectsToLogin(t *testing.T) {
	handler, _ := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest("POST", "/logout", nil)
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	// Verify redirect to login
	if rec.Code != http.StatusSeeOther {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "/login") {
		t.Errorf("Location = %q, want prefix /login", location)
	}
}

// =============================================================================
// isSafeRedirectURL Tests (P0)
// =============================================================================

func TestIsSafeRedirectURL_RelativeURLs_Safe(t *testing.T) {
	tests := []struct {
		name string
		url  string
		safe bool
	}{
		{"simple path", "/customers/new", true},
		{"path with query", "/customers/import?buildingId=b1", true},
		{"nested path", "/customer-details/123", true},
		{"root path", "/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isSafeRedirectURL(tt.url)
			if result != tt.safe {
				t.Errorf("isSafeRedirectURL(%q) = %v, want %v", tt.url, result, tt.safe)
			}
		})
	}
}

func TestIsSafeRedirectURL_ProtocolRelativeURLs_Unsafe(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"protocol-relative", "//evil.com"},
		{"protocol-relative with path", "//evil.com/phishing"},
		{"backslash", "/\\evil.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isSafeRedirectURL(tt.url)
			if result {
				t.Errorf("isSafeRedirectURL(%q) = true, want false (unsafe)", tt.url)
			}
		})
	}
}

func TestIsSafeRedirectURL_AbsoluteURLs_Unsafe(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"http URL", "http://evil.com"},
		{"https URL", "https://evil.com"},
		{"ftp URL", "ftp://evil.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isSafeRedirectURL(tt.url)
			if result {
				t.Errorf("isSafeRedirectURL(%q) = true, want false (unsafe)", tt.url)
			}
		})
	}
}

func TestIsSafeRedirectURL_JavaScriptURL_Unsafe(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"javascript scheme", "javascript:alert(1)"},
		{"data scheme", "data:text/html,<script>alert(1)</script>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isSafeRedirectURL(tt.url)
			if result {
				t.Errorf("isSafeRedirectURL(%q) = true, want false (unsafe)", tt.url)
			}
		})
	}
}

func TestIsSafeRedirectURL_EmptyURL_Unsafe(t *testing.T) {
	result := isSafeRedirectURL("")
	if result {
		t.Error("isSafeRedirectURL(\"\") = true, want false")
	}
}

func TestIsSafeRedirectURL_NoLeadingSlash_Unsafe(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"relative without slash", "dashboard"},
		{"domain-like", "evil.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isSafeRedirectURL(tt.url)
			if result {
				t.Errorf("isSafeRedirectURL(%q) = true, want false (unsafe)", tt.url)
			}
		})
	}
}
