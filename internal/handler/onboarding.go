package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/DukeRupert/taqa/internal/auth"
	"github.com/DukeRupert/taqa/internal/csrf"
	"github.com/DukeRupert/taqa/internal/domain"
	"github.com/DukeRupert/taqa/internal/service"
	"github.com/DukeRupert/taqa/internal/templ/partials"
)

// maxFormRows bounds the item/reading rows read from one submission.
const maxFormRows = 100

// =============================================================================
// Handler Configuration
// =============================================================================

// OnboardingHandler serves the customer onboarding wizard.
//
// Routes handled:
// - GET  /customers/new                 -> NewCustomer
// - GET  /onboarding/{id}               -> Show
// - GET  /onboarding/{id}/units         -> Units (htmx fragment)
// - POST /onboarding/{id}/details       -> SubmitDetails
// - POST /onboarding/{id}/invoice       -> SubmitInvoice
// - POST /onboarding/{id}/readings      -> SubmitReadings
// - POST /onboarding/{id}/confirmation  -> Confirm
type OnboardingHandler struct {
	onboarding service.OnboardingService
	directory  service.DirectoryService
	renderer   TemplateRenderer
	logger     *slog.Logger
	interstitial
}

// NewOnboardingHandler creates a new OnboardingHandler.
func NewOnboardingHandler(
	onboarding service.OnboardingService,
	directory service.DirectoryService,
	renderer TemplateRenderer,
	logger *slog.Logger,
	isSecure bool,
	redirectDelay time.Duration,
) *OnboardingHandler {
	return &OnboardingHandler{
		onboarding:   onboarding,
		directory:    directory,
		renderer:     renderer,
		logger:       logger,
		interstitial: interstitial{renderer: renderer, delay: redirectDelay, isSecure: isSecure},
	}
}

// =============================================================================
// Template Data Types
// =============================================================================

// WizardPageData contains data for the wizard page.
type WizardPageData struct {
	CurrentPath  string
	CSRFToken    string
	User         *domain.User
	Wizard       *domain.Wizard
	Steps        []domain.WizardStep
	Buildings    []domain.Building
	UnitSelect   templ.Component // nil outside the details step
	UtilityTypes []domain.UtilityType
	Fields       domain.FieldErrors
	Flash        *Flash
	LoadError    string // building list failure, shown above the form
}

// =============================================================================
// GET /customers/new - Start a Wizard
// =============================================================================

// NewCustomer starts a fresh wizard and redirects to it. Every visit starts
// over; the previous draft is left to expire.
func (h *OnboardingHandler) NewCustomer(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	wiz, err := h.onboarding.Start(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	http.Redirect(w, r, wizardPath(wiz.ID), http.StatusSeeOther)
}

// =============================================================================
// GET /onboarding/{id} - Show the Current Step
// =============================================================================

// Show renders the wizard at its current step, with the pending flash.
func (h *OnboardingHandler) Show(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	wiz, ok := h.loadWizard(w, r, user)
	if !ok {
		return
	}

	msg, err := h.onboarding.PopFlash(r.Context(), wiz)
	if err != nil {
		h.logger.Warn("failed to clear wizard flash", "wizard_id", wiz.ID, "error", err)
	}

	h.renderWizard(w, r, user, wiz, nil, successFlash(msg), http.StatusOK)
}

// =============================================================================
// GET /onboarding/{id}/units - Unit Select Fragment
// =============================================================================

// Units returns the unit select for ?buildingId=, swapped in by htmx when
// the building changes. Load failures come back as an out-of-band toast.
func (h *OnboardingHandler) Units(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	wiz, ok := h.loadWizard(w, r, user)
	if !ok {
		return
	}

	buildingID := strings.TrimSpace(r.URL.Query().Get("buildingId"))
	data := partials.UnitOptionsData{BuildingID: buildingID}
	if buildingID == wiz.Customer.BuildingID {
		data.SelectedID = wiz.Customer.UnitID
	}

	var toast partials.ToastData
	units, err := h.directory.ListUnits(r.Context(), buildingID)
	if err != nil {
		if domain.RedirectsToLogin(err) {
			h.unauthorized(w, r)
			return
		}
		data.Error = service.UnitsFailureMessage(err)
		toast = partials.ToastData{Type: partials.ToastError, Message: data.Error}
	}
	data.Units = units

	h.renderer.RenderComponent(w, r, partials.UnitOptions(data), toast)
}

// =============================================================================
// POST /onboarding/{id}/details
// =============================================================================

// SubmitDetails handles the details form.
//
// Actions:
// - select_building -> keep the typed values, reload units (no-JS fallback)
// - submit          -> create the customer
func (h *OnboardingHandler) SubmitDetails(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	id, ok := h.parsePost(w, r)
	if !ok {
		return
	}

	form := parseCustomerForm(r)

	switch action, _ := parseAction(r); action {
	case "select_building":
		h.edit(w, r, user, id, service.SelectBuilding{Form: form})
	default:
		out, err := h.onboarding.Submit(r.Context(), user, id, service.DetailsInput{Form: form})
		h.handleOutcome(w, r, user, id, out, err)
	}
}

// =============================================================================
// POST /onboarding/{id}/invoice
// =============================================================================

// SubmitInvoice handles the invoice form.
//
// Actions: add_item, remove_item:N, skip, back, submit.
func (h *OnboardingHandler) SubmitInvoice(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	id, ok := h.parsePost(w, r)
	if !ok {
		return
	}

	draft := parseInvoiceDraft(r)

	switch action, index := parseAction(r); action {
	case "add_item":
		h.edit(w, r, user, id, service.AddInvoiceItem{Draft: draft})
	case "remove_item":
		h.edit(w, r, user, id, service.RemoveInvoiceItem{Draft: draft, Index: index})
	case "skip":
		h.move(w, r, id, h.onboarding.Skip)
	case "back":
		h.move(w, r, id, h.onboarding.Back)
	default:
		out, err := h.onboarding.Submit(r.Context(), user, id, service.InvoiceInput{Draft: draft})
		h.handleOutcome(w, r, user, id, out, err)
	}
}

// =============================================================================
// POST /onboarding/{id}/readings
// =============================================================================

// SubmitReadings handles the utility readings form.
//
// Actions: add_reading, remove_reading:N, skip, back, submit.
func (h *OnboardingHandler) SubmitReadings(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	id, ok := h.parsePost(w, r)
	if !ok {
		return
	}

	draft := parseReadingDraft(r)

	switch action, index := parseAction(r); action {
	case "add_reading":
		h.edit(w, r, user, id, service.AddReading{Draft: draft})
	case "remove_reading":
		h.edit(w, r, user, id, service.RemoveReading{Draft: draft, Index: index})
	case "skip":
		h.move(w, r, id, h.onboarding.Skip)
	case "back":
		h.move(w, r, id, h.onboarding.Back)
	default:
		out, err := h.onboarding.Submit(r.Context(), user, id, service.ReadingsInput{Draft: draft})
		h.handleOutcome(w, r, user, id, out, err)
	}
}

// =============================================================================
// POST /onboarding/{id}/confirmation
// =============================================================================

// Confirm finishes the wizard, or goes back to the readings step.
func (h *OnboardingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	id, ok := h.parsePost(w, r)
	if !ok {
		return
	}

	if action, _ := parseAction(r); action == "back" {
		h.move(w, r, id, h.onboarding.Back)
		return
	}

	out, err := h.onboarding.Submit(r.Context(), user, id, service.FinishInput{})
	h.handleOutcome(w, r, user, id, out, err)
}

// =============================================================================
// Outcome Handling
// =============================================================================

// handleOutcome turns a submission result into a response:
// - refused session     -> interstitial to the login page
// - validation/backend  -> same step re-rendered with the message
// - finished            -> interstitial to the customer page
// - advanced            -> 303 to the wizard
func (h *OnboardingHandler) handleOutcome(w http.ResponseWriter, r *http.Request, user *domain.User, id uuid.UUID, out *service.Outcome, err error) {
	if err != nil {
		h.handleStepError(w, r, id, err)
		return
	}

	switch {
	case out.Failure == domain.FailureUnauthorized:
		h.unauthorized(w, r)
	case out.Failed():
		h.renderWizard(w, r, user, out.Wizard, out.Fields, errorFlash(out.Message), failureStatus(out.Failure))
	case out.Redirect != "":
		h.redirectAfter(w, r, http.StatusOK, successFlash(out.Message), out.Redirect)
	default:
		http.Redirect(w, r, wizardPath(id), http.StatusSeeOther)
	}
}

// handleStepError handles the errors Submit, Back, Skip and Edit reserve for
// the request itself. A stale form (step mismatch) just shows the wizard
// where it actually is.
func (h *OnboardingHandler) handleStepError(w http.ResponseWriter, r *http.Request, id uuid.UUID, err error) {
	switch domain.ErrorCode(err) {
	case domain.ENOTFOUND:
		NotFoundResponse(w, r, h.logger)
	case domain.EINVALID:
		h.logger.Debug("stale wizard action", "wizard_id", id, "error", err)
		http.Redirect(w, r, wizardPath(id), http.StatusSeeOther)
	default:
		ErrorResponse(w, r, h.logger, err)
	}
}

func (h *OnboardingHandler) edit(w http.ResponseWriter, r *http.Request, user *domain.User, id uuid.UUID, edit service.DraftEdit) {
	if _, err := h.onboarding.Edit(r.Context(), user, id, edit); err != nil {
		h.handleStepError(w, r, id, err)
		return
	}
	http.Redirect(w, r, wizardPath(id), http.StatusSeeOther)
}

func (h *OnboardingHandler) move(w http.ResponseWriter, r *http.Request, id uuid.UUID, fn func(context.Context, *domain.User, uuid.UUID) (*domain.Wizard, error)) {
	if _, err := fn(r.Context(), auth.GetUserFromRequest(r), id); err != nil {
		h.handleStepError(w, r, id, err)
		return
	}
	http.Redirect(w, r, wizardPath(id), http.StatusSeeOther)
}

// =============================================================================
// Rendering
// =============================================================================

func (h *OnboardingHandler) renderWizard(w http.ResponseWriter, r *http.Request, user *domain.User, wiz *domain.Wizard, fields domain.FieldErrors, flash *Flash, status int) {
	data := WizardPageData{
		CurrentPath:  r.URL.Path,
		CSRFToken:    csrf.Token(r),
		User:         user,
		Wizard:       wiz,
		Steps:        domain.Steps,
		UtilityTypes: []domain.UtilityType{domain.UtilityWater, domain.UtilityGas},
		Fields:       fields,
		Flash:        flash,
	}

	if wiz.Step == domain.StepDetails {
		buildings, err := h.directory.ListBuildings(r.Context())
		if err != nil {
			if domain.RedirectsToLogin(err) {
				h.unauthorized(w, r)
				return
			}
			data.LoadError = service.BuildingsFailureMessage(err)
		}
		data.Buildings = buildings
		data.UnitSelect = h.unitSelect(r.Context(), wiz.Customer, fields)
	}

	h.renderer.RenderHTTPStatus(w, "onboarding/wizard", data, status)
}

// unitSelect builds the unit select for the details step. A field error on
// unitId takes precedence over a load failure.
func (h *OnboardingHandler) unitSelect(ctx context.Context, form domain.CustomerForm, fields domain.FieldErrors) templ.Component {
	data := partials.UnitOptionsData{
		BuildingID: form.BuildingID,
		SelectedID: form.UnitID,
		Error:      fields["unitId"],
	}

	units, err := h.directory.ListUnits(ctx, form.BuildingID)
	if err != nil && data.Error == "" {
		data.Error = service.UnitsFailureMessage(err)
	}
	data.Units = units

	return partials.UnitOptions(data)
}

// =============================================================================
// Helper Functions
// =============================================================================

func (h *OnboardingHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		NotFoundResponse(w, r, h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// parsePost reads the wizard id and the posted form.
func (h *OnboardingHandler) parsePost(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := h.parseID(w, r)
	if !ok {
		return uuid.Nil, false
	}
	if err := r.ParseForm(); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("onboarding.parse_form", "Invalid form submission. Please try again."))
		return uuid.Nil, false
	}
	return id, true
}

func (h *OnboardingHandler) loadWizard(w http.ResponseWriter, r *http.Request, user *domain.User) (*domain.Wizard, bool) {
	id, ok := h.parseID(w, r)
	if !ok {
		return nil, false
	}

	wiz, err := h.onboarding.Get(r.Context(), user, id)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			NotFoundResponse(w, r, h.logger)
		} else {
			ErrorResponse(w, r, h.logger, err)
		}
		return nil, false
	}
	return wiz, true
}

func wizardPath(id uuid.UUID) string {
	return "/onboarding/" + id.String()
}

// parseAction splits the "action" button value. "remove_item:2" yields
// ("remove_item", 2); a value without an index yields -1.
func parseAction(r *http.Request) (string, int) {
	name, rawIndex, found := strings.Cut(r.PostFormValue("action"), ":")
	if !found {
		return name, -1
	}
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		return name, -1
	}
	return name, index
}

func parseCustomerForm(r *http.Request) domain.CustomerForm {
	return domain.CustomerForm{
		BuildingID:           r.PostFormValue("buildingId"),
		UnitID:               r.PostFormValue("unitId"),
		FirstName:            r.PostFormValue("firstName"),
		LastName:             r.PostFormValue("lastName"),
		Email:                r.PostFormValue("email"),
		PhoneNumber:          r.PostFormValue("phoneNumber"),
		SecondaryPhoneNumber: r.PostFormValue("secondaryPhoneNumber"),
		NationalID:           r.PostFormValue("nationalId"),
	}
}

// parseInvoiceDraft reads item{i}_description/amount/quantity rows until the
// first index with none of the three fields.
func parseInvoiceDraft(r *http.Request) domain.InvoiceDraft {
	var draft domain.InvoiceDraft
	for i := 0; i < maxFormRows; i++ {
		desc, hasDesc := postField(r, itemField(i, "description"))
		amount, hasAmount := postField(r, itemField(i, "amount"))
		qty, hasQty := postField(r, itemField(i, "quantity"))
		if !hasDesc && !hasAmount && !hasQty {
			break
		}
		draft.Items = append(draft.Items, domain.InvoiceItemInput{
			Description: desc,
			Amount:      amount,
			Quantity:    qty,
		})
	}
	return draft
}

// parseReadingDraft reads reading{i}_type/reading rows the same way.
func parseReadingDraft(r *http.Request) domain.ReadingDraft {
	var draft domain.ReadingDraft
	for i := 0; i < maxFormRows; i++ {
		typ, hasType := postField(r, readingField(i, "type"))
		value, hasValue := postField(r, readingField(i, "reading"))
		if !hasType && !hasValue {
			break
		}
		draft.Rows = append(draft.Rows, domain.ReadingInput{
			Type:    domain.UtilityType(strings.TrimSpace(typ)),
			Reading: value,
		})
	}
	return draft
}

func postField(r *http.Request, key string) (string, bool) {
	values, ok := r.PostForm[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// =============================================================================
// Route Registration Helper
// =============================================================================

// RegisterRoutes registers the wizard routes. requireUser guards every one.
func (h *OnboardingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /customers/new", requireUser(http.HandlerFunc(h.NewCustomer)))
	mux.Handle("GET /onboarding/{id}", requireUser(http.HandlerFunc(h.Show)))
	mux.Handle("GET /onboarding/{id}/units", requireUser(http.HandlerFunc(h.Units)))
	mux.Handle("POST /onboarding/{id}/details", requireUser(http.HandlerFunc(h.SubmitDetails)))
	mux.Handle("POST /onboarding/{id}/invoice", requireUser(http.HandlerFunc(h.SubmitInvoice)))
	mux.Handle("POST /onboarding/{id}/readings", requireUser(http.HandlerFunc(h.SubmitReadings)))
	mux.Handle("POST /onboarding/{id}/confirmation", requireUser(http.HandlerFunc(h.Confirm)))
}
