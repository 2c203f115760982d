package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardStep_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from WizardStep
		to   WizardStep
		want bool
	}{
		// Forward by one
		{"details to invoice", StepDetails, StepInvoice, true},
		{"invoice to readings", StepInvoice, StepUtilityReadings, true},
		{"readings to confirmation", StepUtilityReadings, StepConfirmation, true},

		// Back by one
		{"invoice to details", StepInvoice, StepDetails, true},
		{"readings to invoice", StepUtilityReadings, StepInvoice, true},
		{"confirmation to readings", StepConfirmation, StepUtilityReadings, true},

		// Jumps and out of range
		{"details to readings", StepDetails, StepUtilityReadings, false},
		{"details to confirmation", StepDetails, StepConfirmation, false},
		{"confirmation to details", StepConfirmation, StepDetails, false},
		{"details to before start", StepDetails, StepDetails - 1, false},
		{"confirmation to past end", StepConfirmation, StepConfirmation + 1, false},
		{"same step", StepInvoice, StepInvoice, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestNewWizard_Defaults(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	w := NewWizard(&User{ID: "u1", TenantID: "t1"}, now)

	assert.Equal(t, StepDetails, w.Step)
	assert.Empty(t, w.CustomerID)
	assert.Equal(t, "t1", w.TenantID)
	require.Len(t, w.Invoice.Items, 1)
	assert.Equal(t, "1", w.Invoice.Items[0].Quantity)
	require.Len(t, w.Readings.Rows, 1)
	assert.Equal(t, UtilityWater, w.Readings.Rows[0].Type)
}

func TestWizard_CompleteDetailsAdvances(t *testing.T) {
	w := NewWizard(nil, time.Now())

	require.NoError(t, w.CompleteDetails("c1"))

	assert.Equal(t, StepInvoice, w.Step)
	assert.Equal(t, "c1", w.CustomerID)
	assert.Equal(t, "/customer-details/c1", w.CustomerPath())
}

func TestWizard_AdvanceRequiresCustomer(t *testing.T) {
	w := NewWizard(nil, time.Now())

	err := w.Advance()

	assert.Error(t, err)
	assert.Equal(t, EINVALID, ErrorCode(err))
	assert.Equal(t, StepDetails, w.Step)
}

func TestWizard_SkipOnlyOptionalSteps(t *testing.T) {
	w := NewWizard(nil, time.Now())

	err := w.Skip()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be skipped")
	assert.Equal(t, StepDetails, w.Step)

	require.NoError(t, w.CompleteDetails("c1"))
	require.NoError(t, w.Skip())
	assert.Equal(t, StepUtilityReadings, w.Step)
	require.NoError(t, w.Skip())
	assert.Equal(t, StepConfirmation, w.Step)

	err = w.Skip()
	assert.Error(t, err)
	assert.Equal(t, StepConfirmation, w.Step)
}

func TestWizard_BackNeverLeavesDetails(t *testing.T) {
	w := NewWizard(nil, time.Now())

	err := w.Back()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot transition")
	assert.Equal(t, StepDetails, w.Step)
}

func TestWizard_RevisitDetailsAfterAdvancing(t *testing.T) {
	w := NewWizard(nil, time.Now())
	require.NoError(t, w.CompleteDetails("c1"))
	require.NoError(t, w.Back())
	assert.Equal(t, StepDetails, w.Step)

	// Resubmitting replaces the customer, as the backend creates a new one.
	require.NoError(t, w.CompleteDetails("c2"))
	assert.Equal(t, "c2", w.CustomerID)
	assert.Equal(t, StepInvoice, w.Step)
}

func TestWizard_CompleteDetailsRejectsEmptyID(t *testing.T) {
	w := NewWizard(nil, time.Now())

	err := w.CompleteDetails("")

	assert.Error(t, err)
	assert.Equal(t, StepDetails, w.Step)
}

func TestWizard_PopFlash(t *testing.T) {
	w := NewWizard(nil, time.Now())
	w.SetFlash("Customer created successfully")

	assert.Equal(t, "Customer created successfully", w.PopFlash())
	assert.Empty(t, w.PopFlash())
}

func TestWizard_BelongsTo(t *testing.T) {
	w := NewWizard(&User{TenantID: "t1"}, time.Now())

	assert.True(t, w.BelongsTo(&User{TenantID: "t1"}))
	assert.False(t, w.BelongsTo(&User{TenantID: "t2"}))
	assert.False(t, w.BelongsTo(nil))
}
