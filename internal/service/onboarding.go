// Package service contains the business logic layer.
//
// This file implements the customer onboarding wizard.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/taqa/internal/api"
	"github.com/DukeRupert/taqa/internal/domain"
	"github.com/DukeRupert/taqa/internal/metrics"
	"github.com/DukeRupert/taqa/internal/repository"
)

// Flash messages set on the wizard after a successful action.
const (
	MsgCustomerCreated    = "Customer created successfully"
	MsgInvoiceCreated     = "Invoice created successfully"
	MsgNoInvoiceItems     = "No invoice items provided. Proceeding to utility readings."
	MsgInvoiceSkipped     = "Invoice creation skipped"
	MsgReadingsSaved      = "Utility readings saved successfully"
	MsgNoReadings         = "No valid readings provided"
	MsgReadingsSkipped    = "Utility readings skipped"
	MsgOnboardingComplete = "Customer onboarding completed"
	MsgTenantMissing      = "Tenant ID is missing. Please log in again."
	MsgCustomerRequired   = "Please complete customer details first."
)

// Fallbacks shown for a backend 400 without a message of its own.
const (
	fallbackDetails  = "Invalid input. Please check your details."
	fallbackInvoice  = "Invalid invoice data."
	fallbackReadings = "Invalid reading data."
)

// =============================================================================
// Step Inputs
// =============================================================================

// StepInput is the submitted form of one wizard step. The set of
// implementations is closed: DetailsInput, InvoiceInput, ReadingsInput and
// FinishInput.
type StepInput interface {
	Step() domain.WizardStep
	sealed()
}

// DetailsInput submits the customer details step.
type DetailsInput struct {
	Form domain.CustomerForm
}

// InvoiceInput submits the invoice step.
type InvoiceInput struct {
	Draft domain.InvoiceDraft
}

// ReadingsInput submits the utility readings step.
type ReadingsInput struct {
	Draft domain.ReadingDraft
}

// FinishInput completes the wizard from the confirmation step.
type FinishInput struct{}

func (DetailsInput) Step() domain.WizardStep  { return domain.StepDetails }
func (InvoiceInput) Step() domain.WizardStep  { return domain.StepInvoice }
func (ReadingsInput) Step() domain.WizardStep { return domain.StepUtilityReadings }
func (FinishInput) Step() domain.WizardStep   { return domain.StepConfirmation }

func (DetailsInput) sealed()  {}
func (InvoiceInput) sealed()  {}
func (ReadingsInput) sealed() {}
func (FinishInput) sealed()   {}

// =============================================================================
// Draft Edits
// =============================================================================

// DraftEdit changes the draft without submitting it: row add/remove and
// building selection. Typed values travel with the edit so nothing the
// operator entered is lost.
type DraftEdit interface {
	apply(w *domain.Wizard) error
}

// SelectBuilding stores the details form and switches building.
type SelectBuilding struct {
	Form domain.CustomerForm
}

// AddInvoiceItem appends an empty invoice row.
type AddInvoiceItem struct {
	Draft domain.InvoiceDraft
}

// RemoveInvoiceItem drops one invoice row.
type RemoveInvoiceItem struct {
	Draft domain.InvoiceDraft
	Index int
}

// AddReading appends a water reading row.
type AddReading struct {
	Draft domain.ReadingDraft
}

// RemoveReading drops one reading row.
type RemoveReading struct {
	Draft domain.ReadingDraft
	Index int
}

func (e SelectBuilding) apply(w *domain.Wizard) error {
	if err := w.RequireStep("onboarding.select_building", domain.StepDetails); err != nil {
		return err
	}
	prev := w.Customer.BuildingID
	w.Customer = e.Form.Normalize()
	w.Customer.BuildingID = prev
	w.Customer.SelectBuilding(e.Form.Normalize().BuildingID)
	return nil
}

func (e AddInvoiceItem) apply(w *domain.Wizard) error {
	if err := w.RequireStep("onboarding.add_item", domain.StepInvoice); err != nil {
		return err
	}
	w.Invoice = e.Draft
	w.Invoice.AddItem()
	return nil
}

func (e RemoveInvoiceItem) apply(w *domain.Wizard) error {
	if err := w.RequireStep("onboarding.remove_item", domain.StepInvoice); err != nil {
		return err
	}
	w.Invoice = e.Draft
	w.Invoice.RemoveItem(e.Index)
	return nil
}

func (e AddReading) apply(w *domain.Wizard) error {
	if err := w.RequireStep("onboarding.add_reading", domain.StepUtilityReadings); err != nil {
		return err
	}
	w.Readings = e.Draft
	w.Readings.AddRow()
	return nil
}

func (e RemoveReading) apply(w *domain.Wizard) error {
	if err := w.RequireStep("onboarding.remove_reading", domain.StepUtilityReadings); err != nil {
		return err
	}
	w.Readings = e.Draft
	w.Readings.RemoveRow(e.Index)
	return nil
}

// =============================================================================
// Outcome
// =============================================================================

// Outcome is the result of a step submission.
//
// On success Failure is FailureNone and the success message is stored on the
// wizard's flash for the next render. On failure the wizard is returned
// unchanged apart from the draft, and Message is shown on this render.
type Outcome struct {
	Wizard   *domain.Wizard
	Failure  domain.FailureKind
	Fields   domain.FieldErrors
	Message  string
	Redirect string // set when the wizard finishes
}

// Failed reports whether the submission was refused.
func (o *Outcome) Failed() bool {
	return o.Failure != domain.FailureNone
}

// =============================================================================
// Interface Definition
// =============================================================================

// OnboardingService drives the onboarding wizard.
type OnboardingService interface {
	// Start creates a wizard at the details step for the operator's tenant.
	Start(ctx context.Context, user *domain.User) (*domain.Wizard, error)

	// Get loads a wizard. Returns domain.ENOTFOUND when it does not exist
	// or belongs to another tenant.
	Get(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Wizard, error)

	// Submit validates and posts the current step. Backend and validation
	// failures are reported in the Outcome. The error is reserved for a
	// missing wizard, a step mismatch, or a store failure. Changes to one
	// wizard run one at a time, so a repeated submit of a step that has
	// already advanced gets domain.EINVALID instead of posting again.
	Submit(ctx context.Context, user *domain.User, id uuid.UUID, input StepInput) (*Outcome, error)

	// Back moves one step back. Returns domain.EINVALID from the details step.
	Back(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Wizard, error)

	// Skip advances past an optional step without a backend call.
	// Returns domain.EINVALID for required steps.
	Skip(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Wizard, error)

	// Edit applies a draft edit and saves it.
	Edit(ctx context.Context, user *domain.User, id uuid.UUID, edit DraftEdit) (*domain.Wizard, error)

	// PopFlash returns the pending flash message and clears it.
	PopFlash(ctx context.Context, w *domain.Wizard) (string, error)

	// PurgeExpired removes drafts untouched for longer than ttl.
	PurgeExpired(ctx context.Context, ttl time.Duration) (int64, error)
}

// =============================================================================
// Implementation
// =============================================================================

type onboardingService struct {
	store   repository.WizardStore
	backend Backend
	locks   *wizardLocks
	logger  *slog.Logger
	now     func() time.Time
}

// NewOnboardingService creates a new OnboardingService.
func NewOnboardingService(store repository.WizardStore, backend Backend, logger *slog.Logger) OnboardingService {
	return &onboardingService{
		store:   store,
		backend: backend,
		locks:   newWizardLocks(),
		logger:  logger,
		now:     time.Now,
	}
}

func (s *onboardingService) Start(ctx context.Context, user *domain.User) (*domain.Wizard, error) {
	const op = "onboarding.start"

	if user == nil {
		return nil, domain.Unauthorized(op, "sign in required")
	}

	w := domain.NewWizard(user, s.now())
	if err := s.store.Save(ctx, w); err != nil {
		return nil, err
	}

	s.logger.Info("onboarding started", "wizard_id", w.ID, "tenant_id", w.TenantID, "user_id", w.UserID)
	return w, nil
}

func (s *onboardingService) Get(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Wizard, error) {
	const op = "onboarding.get"

	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !w.BelongsTo(user) {
		return nil, domain.NotFound(op, "wizard", id.String())
	}
	return w, nil
}

func (s *onboardingService) Submit(ctx context.Context, user *domain.User, id uuid.UUID, input StepInput) (*Outcome, error) {
	const op = "onboarding.submit"

	unlock := s.locks.lock(id)
	defer unlock()

	w, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := w.RequireStep(op, input.Step()); err != nil {
		return nil, err
	}

	var out *Outcome
	switch in := input.(type) {
	case DetailsInput:
		out = s.submitDetails(ctx, user, w, in)
	case InvoiceInput:
		out = s.submitInvoice(ctx, w, in)
	case ReadingsInput:
		out = s.submitReadings(ctx, w, in)
	case FinishInput:
		out = s.finish(w)
	default:
		return nil, domain.Errorf(domain.EINVALID, op, "unsupported step input %T", input)
	}

	action := "submit"
	if out.Failed() {
		action = "failed"
	}
	metrics.WizardAction(input.Step().String(), action)

	if err := s.save(ctx, w); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *onboardingService) Back(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Wizard, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	w, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	from := w.Step
	if err := w.Back(); err != nil {
		return nil, err
	}
	metrics.WizardAction(from.String(), "back")

	if err := s.save(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *onboardingService) Skip(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Wizard, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	w, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	from := w.Step
	if err := w.Skip(); err != nil {
		return nil, err
	}
	switch from {
	case domain.StepInvoice:
		w.SetFlash(MsgInvoiceSkipped)
	case domain.StepUtilityReadings:
		w.SetFlash(MsgReadingsSkipped)
	}
	metrics.WizardAction(from.String(), "skip")

	if err := s.save(ctx, w); err != nil {
		return nil, err
	}
	s.logger.Info("onboarding step skipped", "wizard_id", w.ID, "step", from.String())
	return w, nil
}

func (s *onboardingService) Edit(ctx context.Context, user *domain.User, id uuid.UUID, edit DraftEdit) (*domain.Wizard, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	w, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := edit.apply(w); err != nil {
		return nil, err
	}
	if _, ok := edit.(SelectBuilding); ok {
		s.resolveUnit(ctx, w)
	}
	if err := s.save(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// resolveUnit keeps the draft's unit only if it is a selectable unit of the
// chosen building. Submit checks again before the customer is created.
func (s *onboardingService) resolveUnit(ctx context.Context, w *domain.Wizard) {
	if w.Customer.UnitID == "" {
		return
	}
	units, err := s.backend.ListUnits(ctx, w.Customer.BuildingID)
	if err != nil {
		s.logger.Warn("unit check failed", "wizard_id", w.ID, "building_id", w.Customer.BuildingID, "error", err)
		w.Customer.UnitID = ""
		return
	}
	w.Customer.UnitID, _ = domain.SelectUnit(units, w.Customer.UnitID)
}

func (s *onboardingService) PopFlash(ctx context.Context, w *domain.Wizard) (string, error) {
	msg := w.PopFlash()
	if msg == "" {
		return "", nil
	}

	unlock := s.locks.lock(w.ID)
	defer unlock()

	// Clear the flash on the stored copy so a change saved since w was
	// loaded is kept.
	stored, err := s.store.Get(ctx, w.ID)
	if err != nil {
		return "", err
	}
	if stored.Flash != msg {
		return msg, nil
	}
	stored.PopFlash()
	return msg, s.save(ctx, stored)
}

func (s *onboardingService) PurgeExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	metrics.DraftsPurged(n)
	if n > 0 {
		s.logger.Info("purged expired wizard drafts", "count", n)
	}
	return n, nil
}

func (s *onboardingService) save(ctx context.Context, w *domain.Wizard) error {
	w.UpdatedAt = s.now()
	return s.store.Save(ctx, w)
}

// =============================================================================
// Step 1: Customer Details
// =============================================================================

func (s *onboardingService) submitDetails(ctx context.Context, user *domain.User, w *domain.Wizard, in DetailsInput) *Outcome {
	const op = "onboarding.details"

	w.Customer = in.Form.Normalize()

	if fields := domain.ValidateCustomer(w.Customer); len(fields) > 0 {
		return s.validationFailure(w, fields)
	}
	if !user.HasTenant() {
		return &Outcome{Wizard: w, Failure: domain.FailureValidation, Message: MsgTenantMissing}
	}

	if w.Customer.UnitID != "" {
		if out := s.checkUnit(ctx, w); out != nil {
			return out
		}
	}

	created, err := s.backend.CreateCustomer(ctx, api.NewCreateCustomerRequest(w.Customer, user.TenantID))
	if err != nil {
		return s.backendFailure(w, op, err, fallbackDetails)
	}
	if err := w.CompleteDetails(created.ID); err != nil {
		return s.backendFailure(w, op, domain.Internal(err, op, "backend returned no customer id"), fallbackDetails)
	}

	w.SetFlash(messageOr(created.Message, MsgCustomerCreated))
	metrics.CustomersOnboarded.Inc()
	s.logger.Info("customer created",
		"wizard_id", w.ID,
		"customer_id", w.CustomerID,
		"tenant_id", user.TenantID,
		"unit_id", w.Customer.UnitID,
	)
	return &Outcome{Wizard: w}
}

// checkUnit refuses an occupied unit, or one outside the selected building,
// before the customer is created. Disabled options are not enforced by the
// browser for a crafted post.
func (s *onboardingService) checkUnit(ctx context.Context, w *domain.Wizard) *Outcome {
	const op = "onboarding.details"

	units, err := s.backend.ListUnits(ctx, w.Customer.BuildingID)
	if err != nil {
		return s.backendFailure(w, op, err, MsgUnitsFailed)
	}
	unitID, err := domain.SelectUnit(units, w.Customer.UnitID)
	w.Customer.UnitID = unitID
	if err != nil {
		return s.validationFailure(w, domain.FieldErrorsOf(err))
	}
	return nil
}

// =============================================================================
// Step 2: Invoice
// =============================================================================

func (s *onboardingService) submitInvoice(ctx context.Context, w *domain.Wizard, in InvoiceInput) *Outcome {
	const op = "onboarding.invoice"

	w.Invoice = in.Draft
	if out := s.requireCustomer(w, op); out != nil {
		return out
	}

	if w.Invoice.IsEmpty() {
		_ = w.Advance()
		w.SetFlash(MsgNoInvoiceItems)
		return &Outcome{Wizard: w}
	}

	items, err := w.Invoice.ValidItems()
	if err != nil {
		return s.validationFailure(w, domain.FieldErrorsOf(err))
	}

	msg, err := s.backend.CreateOnboardingInvoice(ctx, api.NewCreateInvoiceRequest(w.CustomerID, items))
	if err != nil {
		return s.backendFailure(w, op, err, fallbackInvoice)
	}

	w.Submitted.Invoice = append(w.Submitted.Invoice, items...)
	_ = w.Advance()
	w.SetFlash(messageOr(msg, MsgInvoiceCreated))
	s.logger.Info("onboarding invoice created",
		"wizard_id", w.ID,
		"customer_id", w.CustomerID,
		"items", len(items),
		"total", w.Invoice.Total().StringFixed(2),
	)
	return &Outcome{Wizard: w}
}

// =============================================================================
// Step 3: Utility Readings
// =============================================================================

func (s *onboardingService) submitReadings(ctx context.Context, w *domain.Wizard, in ReadingsInput) *Outcome {
	const op = "onboarding.readings"

	w.Readings = in.Draft
	if out := s.requireCustomer(w, op); out != nil {
		return out
	}

	if fields := domain.ValidateReadings(w.Readings); len(fields) > 0 {
		return s.validationFailure(w, fields)
	}

	// Rows are posted one at a time in order. The first failure stops the
	// rest, and rows already saved are dropped from the draft so a retry
	// does not post them twice.
	var (
		posted  []int
		pending int
	)
	for _, row := range w.Readings.Rows {
		if !row.IsBlank() {
			pending++
		}
	}
	for i, row := range w.Readings.Rows {
		if row.IsBlank() {
			continue
		}
		reading, err := row.Parse()
		if err != nil {
			return s.validationFailure(w, domain.FieldErrorsOf(err))
		}
		if err := s.backend.CreateReading(ctx, w.CustomerID, reading); err != nil {
			out := s.backendFailure(w, op, err, fallbackReadings)
			if len(posted) > 0 {
				out.Message = fmt.Sprintf("%s (%d of %d readings saved)", out.Message, len(posted), pending)
				w.Readings.RemoveRows(posted)
			}
			return out
		}
		metrics.ReadingSubmitted(string(reading.Type))
		w.Submitted.Readings = append(w.Submitted.Readings, reading)
		posted = append(posted, i)
	}

	_ = w.Advance()
	if len(posted) > 0 {
		w.SetFlash(MsgReadingsSaved)
	} else {
		w.SetFlash(MsgNoReadings)
	}
	s.logger.Info("utility readings saved",
		"wizard_id", w.ID,
		"customer_id", w.CustomerID,
		"count", len(posted),
	)
	return &Outcome{Wizard: w}
}

// =============================================================================
// Step 4: Confirmation
// =============================================================================

func (s *onboardingService) finish(w *domain.Wizard) *Outcome {
	if out := s.requireCustomer(w, "onboarding.finish"); out != nil {
		return out
	}
	s.logger.Info("onboarding completed", "wizard_id", w.ID, "customer_id", w.CustomerID)
	return &Outcome{Wizard: w, Message: MsgOnboardingComplete, Redirect: w.CustomerPath()}
}

// =============================================================================
// Failure Helpers
// =============================================================================

// requireCustomer sends the wizard back to details when no customer exists.
func (s *onboardingService) requireCustomer(w *domain.Wizard, op string) *Outcome {
	if err := w.RequireCustomer(op); err == nil {
		return nil
	}
	s.logger.Warn("step submitted without customer", "wizard_id", w.ID, "step", w.Step.String())
	w.Step = domain.StepDetails
	return &Outcome{Wizard: w, Failure: domain.FailureRejected, Message: MsgCustomerRequired}
}

func (s *onboardingService) validationFailure(w *domain.Wizard, fields domain.FieldErrors) *Outcome {
	err := fields.Err("onboarding.validate")
	return &Outcome{
		Wizard:  w,
		Failure: domain.FailureValidation,
		Fields:  fields,
		Message: domain.FailureMessage(err, ""),
	}
}

func (s *onboardingService) backendFailure(w *domain.Wizard, op string, err error, fallback string) *Outcome {
	kind := domain.Classify(err)
	s.logger.Warn("onboarding step failed",
		"op", op,
		"wizard_id", w.ID,
		"step", w.Step.String(),
		"kind", int(kind),
		"error", err,
	)
	return &Outcome{
		Wizard:  w,
		Failure: kind,
		Message: domain.FailureMessage(err, fallback),
	}
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
