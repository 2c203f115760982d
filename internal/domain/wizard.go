// Package domain contains core business types and interfaces.
//
// This file defines the customer onboarding wizard: its steps, the allowed
// transitions between them, and the draft carried across requests.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Wizard Step
// =============================================================================

// WizardStep is the position in the onboarding flow.
type WizardStep int

const (
	// StepDetails captures the customer and, optionally, their unit.
	StepDetails WizardStep = iota

	// StepInvoice drafts an optional onboarding invoice.
	StepInvoice

	// StepUtilityReadings records optional initial water/gas readings.
	StepUtilityReadings

	// StepConfirmation summarises and hands off to the customer page.
	StepConfirmation
)

// Steps lists every step in order.
var Steps = []WizardStep{StepDetails, StepInvoice, StepUtilityReadings, StepConfirmation}

// String returns the string representation of the step.
func (s WizardStep) String() string {
	switch s {
	case StepDetails:
		return "details"
	case StepInvoice:
		return "invoice"
	case StepUtilityReadings:
		return "utility_readings"
	case StepConfirmation:
		return "confirmation"
	}
	return "unknown"
}

// Label returns the stepper caption.
func (s WizardStep) Label() string {
	switch s {
	case StepDetails:
		return "Step 1: Customer Details"
	case StepInvoice:
		return "Step 2: Create Invoice"
	case StepUtilityReadings:
		return "Step 3: Utility Readings"
	case StepConfirmation:
		return "Step 4: Confirmation"
	}
	return ""
}

// IsValid returns true if the step is a recognized value.
func (s WizardStep) IsValid() bool {
	return s >= StepDetails && s <= StepConfirmation
}

// IsSkippable returns true for the optional steps.
func (s WizardStep) IsSkippable() bool {
	return s == StepInvoice || s == StepUtilityReadings
}

// CanTransitionTo checks if the wizard can move from s to target.
//
// The flow is linear: one step forward after a submit or skip, one step
// back on "Back". Nothing jumps.
func (s WizardStep) CanTransitionTo(target WizardStep) bool {
	if !s.IsValid() || !target.IsValid() {
		return false
	}
	return target == s+1 || target == s-1
}

// =============================================================================
// Wizard
// =============================================================================

// Wizard is one onboarding run. It is created when the operator opens the
// "Add customer" page and is never reset; opening the page again starts a
// new one.
type Wizard struct {
	ID         uuid.UUID    `json:"id"`
	TenantID   string       `json:"tenantId"`
	UserID     string       `json:"userId"`
	Step       WizardStep   `json:"step"`
	CustomerID string       `json:"customerId"` // empty until the details step succeeds
	Customer   CustomerForm `json:"customer"`
	Invoice    InvoiceDraft `json:"invoice"`
	Readings   ReadingDraft `json:"readings"`
	Submitted  Submitted    `json:"submitted"`
	Flash      string       `json:"flash"` // shown once on the next render
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// NewWizard starts a wizard at the details step with default drafts.
func NewWizard(user *User, now time.Time) *Wizard {
	w := &Wizard{
		ID:        uuid.New(),
		Step:      StepDetails,
		Invoice:   NewInvoiceDraft(),
		Readings:  NewReadingDraft(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if user != nil {
		w.TenantID = user.TenantID
		w.UserID = user.ID
	}
	return w
}

// Submitted is what the backend accepted during this run. Drafts that were
// skipped or never posted are not recorded here.
type Submitted struct {
	Invoice  []InvoiceItem    `json:"invoice,omitempty"`
	Readings []UtilityReading `json:"readings,omitempty"`
}

// InvoiceTotal sums the accepted invoice items.
func (s Submitted) InvoiceTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Invoice {
		total = total.Add(item.Total())
	}
	return total
}

// HasCustomer reports whether the details step has produced a customer.
func (w *Wizard) HasCustomer() bool {
	return w.CustomerID != ""
}

// TransitionTo moves the wizard to target if the move is allowed.
// Moving past the details step requires a customer.
func (w *Wizard) TransitionTo(target WizardStep) error {
	const op = "wizard.transition"

	if !w.Step.CanTransitionTo(target) {
		return Errorf(EINVALID, op, "cannot transition from %s to %s", w.Step, target)
	}
	if target > StepDetails && target > w.Step && !w.HasCustomer() {
		return Invalid(op, "customer must be created before continuing")
	}
	w.Step = target
	return nil
}

// Advance moves one step forward.
func (w *Wizard) Advance() error {
	return w.TransitionTo(w.Step + 1)
}

// Back moves one step backward.
func (w *Wizard) Back() error {
	return w.TransitionTo(w.Step - 1)
}

// Skip advances an optional step without submitting it.
func (w *Wizard) Skip() error {
	if !w.Step.IsSkippable() {
		return Errorf(EINVALID, "wizard.skip", "%s cannot be skipped", w.Step)
	}
	return w.Advance()
}

// CompleteDetails records the created customer and advances.
func (w *Wizard) CompleteDetails(customerID string) error {
	if w.Step != StepDetails {
		return Errorf(EINVALID, "wizard.details", "details already submitted for step %s", w.Step)
	}
	if customerID == "" {
		return Invalid("wizard.details", "backend returned no customer id")
	}
	w.CustomerID = customerID
	return w.Advance()
}

// RequireStep fails unless the wizard is currently at step.
func (w *Wizard) RequireStep(op string, step WizardStep) error {
	if w.Step != step {
		return Errorf(EINVALID, op, "wizard is at %s, not %s", w.Step, step)
	}
	return nil
}

// RequireCustomer fails unless the details step has completed.
func (w *Wizard) RequireCustomer(op string) error {
	if !w.HasCustomer() {
		return Invalid(op, "customer must be created before continuing")
	}
	return nil
}

// SetFlash stores a one-shot message for the next render.
func (w *Wizard) SetFlash(msg string) {
	w.Flash = msg
}

// PopFlash returns and clears the pending message.
func (w *Wizard) PopFlash() string {
	msg := w.Flash
	w.Flash = ""
	return msg
}

// CustomerPath is where the wizard sends the operator when it finishes.
func (w *Wizard) CustomerPath() string {
	return "/customer-details/" + w.CustomerID
}

// BelongsTo reports whether the wizard was started within user's tenant.
func (w *Wizard) BelongsTo(user *User) bool {
	return user != nil && w.TenantID == user.TenantID
}
