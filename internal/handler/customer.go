package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/taqa/internal/auth"
	"github.com/DukeRupert/taqa/internal/csrf"
	"github.com/DukeRupert/taqa/internal/domain"
	"github.com/DukeRupert/taqa/internal/service"
)

// MsgCustomerFailed is shown when the customer could not be loaded.
const MsgCustomerFailed = "Failed to load customer"

// CustomerHandler serves the customer page the wizard finishes on.
//
// Routes handled:
// - GET /customer-details/{id} -> Show
type CustomerHandler struct {
	directory service.DirectoryService
	renderer  TemplateRenderer
	logger    *slog.Logger
	interstitial
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(directory service.DirectoryService, renderer TemplateRenderer, logger *slog.Logger, isSecure bool, redirectDelay time.Duration) *CustomerHandler {
	return &CustomerHandler{
		directory:    directory,
		renderer:     renderer,
		logger:       logger,
		interstitial: interstitial{renderer: renderer, delay: redirectDelay, isSecure: isSecure},
	}
}

// CustomerPageData contains data for the customer page.
type CustomerPageData struct {
	CurrentPath string
	CSRFToken   string
	User        *domain.User
	Customer    *domain.Customer // nil when loading failed
	Flash       *Flash
}

// Show renders one customer.
func (h *CustomerHandler) Show(w http.ResponseWriter, r *http.Request) {
	data := CustomerPageData{
		CurrentPath: r.URL.Path,
		CSRFToken:   csrf.Token(r),
		User:        auth.GetUserFromRequest(r),
	}

	customer, err := h.directory.GetCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		switch {
		case domain.ErrorCode(err) == domain.ENOTFOUND:
			NotFoundResponse(w, r, h.logger)
		case domain.RedirectsToLogin(err):
			h.unauthorized(w, r)
		default:
			h.logger.Warn("failed to load customer", "customer_id", r.PathValue("id"), "error", err)
			data.Flash = errorFlash(domain.FailureMessage(err, MsgCustomerFailed))
			h.renderer.RenderHTTPStatus(w, "customers/detail", data, failureStatus(domain.Classify(err)))
		}
		return
	}

	data.Customer = customer
	h.renderer.RenderHTTP(w, "customers/detail", data)
}

// RegisterRoutes registers the customer routes behind requireUser.
func (h *CustomerHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /customer-details/{id}", requireUser(http.HandlerFunc(h.Show)))
}
