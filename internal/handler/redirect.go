package handler

import (
	"net/http"
	"time"

	"github.com/DukeRupert/taqa/internal/auth"
	"github.com/DukeRupert/taqa/internal/csrf"
	"github.com/DukeRupert/taqa/internal/domain"
	"github.com/DukeRupert/taqa/internal/templ/partials"
)

// LoginExpiredPath is where a refused session ends up.
const LoginExpiredPath = "/login?expired=1"

// RedirectPageData contains data for the interstitial page: a snackbar
// message, then navigation to Target once the delay has passed.
type RedirectPageData struct {
	CurrentPath  string
	CSRFToken    string
	User         *domain.User
	Flash        *Flash
	Target       string
	DelayMS      int64
	DelaySeconds int64 // for the meta refresh fallback
}

// interstitial renders the delayed-navigation pages shared by every handler
// that calls the backend.
type interstitial struct {
	renderer TemplateRenderer
	delay    time.Duration
	isSecure bool
}

func newRedirectPageData(r *http.Request, flash *Flash, target string, delay time.Duration) RedirectPageData {
	ms := delay.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return RedirectPageData{
		CurrentPath:  r.URL.Path,
		CSRFToken:    csrf.Token(r),
		User:         auth.GetUserFromRequest(r),
		Flash:        flash,
		Target:       target,
		DelayMS:      ms,
		DelaySeconds: (ms + 999) / 1000,
	}
}

// redirectAfter shows flash and then navigates to target.
func (i interstitial) redirectAfter(w http.ResponseWriter, r *http.Request, status int, flash *Flash, target string) {
	i.renderer.RenderHTTPStatus(w, "redirect", newRedirectPageData(r, flash, target, i.delay), status)
}

// unauthorized drops the session and sends the operator to the login page
// after the delay. htmx requests get a toast that performs the redirect; it
// goes out with 200 because htmx does not swap error responses.
func (i interstitial) unauthorized(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w, i.isSecure)

	if r.Header.Get("HX-Request") == "true" {
		i.renderer.RenderComponent(w, r, partials.Toast(partials.ToastData{}), i.unauthorizedToast())
		return
	}

	i.redirectAfter(w, r, http.StatusUnauthorized, errorFlash(domain.MsgUnauthorized), LoginExpiredPath)
}

func (i interstitial) unauthorizedToast() partials.ToastData {
	return partials.ToastData{
		Type:            partials.ToastError,
		Message:         domain.MsgUnauthorized,
		RedirectTo:      LoginExpiredPath,
		RedirectAfterMS: i.delay.Milliseconds(),
	}
}
