package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInvoice(t *testing.T) {
	d := InvoiceDraft{Items: []InvoiceItemInput{
		{Description: "Deposit", Amount: "5000", Quantity: "1"},
		{Description: "", Amount: "0", Quantity: "0"},
		{Description: "Keys", Amount: "abc", Quantity: "-2"},
	}}

	errs := ValidateInvoice(d)

	assert.Equal(t, FieldErrors{
		"item1_description": "Description is required",
		"item1_amount":      "Valid amount is required",
		"item1_quantity":    "Valid quantity is required",
		"item2_amount":      "Valid amount is required",
		"item2_quantity":    "Valid quantity is required",
	}, errs)
}

func TestValidateInvoice_EmptyDraftIsValid(t *testing.T) {
	assert.Empty(t, ValidateInvoice(InvoiceDraft{}))
}

func TestInvoiceDraft_ValidItems(t *testing.T) {
	d := InvoiceDraft{Items: []InvoiceItemInput{
		{Description: " Deposit ", Amount: "2500.50", Quantity: "2"},
	}}

	items, err := d.ValidItems()

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Deposit", items[0].Description)
	assert.True(t, decimal.RequireFromString("2500.50").Equal(items[0].Amount))
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, decimal.RequireFromString("5001").Equal(items[0].Total()))
}

func TestInvoiceDraft_AddRemove(t *testing.T) {
	d := NewInvoiceDraft()

	d.RemoveItem(0)
	assert.Len(t, d.Items, 1, "last row is kept")

	d.AddItem()
	d.Items[1].Description = "second"
	assert.Len(t, d.Items, 2)
	assert.Equal(t, "1", d.Items[1].Quantity)

	d.RemoveItem(0)
	require.Len(t, d.Items, 1)
	assert.Equal(t, "second", d.Items[0].Description)

	d.RemoveItem(5)
	assert.Len(t, d.Items, 1)
}

func TestInvoiceDraft_Totals(t *testing.T) {
	d := InvoiceDraft{Items: []InvoiceItemInput{
		{Description: "Rent", Amount: "1234.5", Quantity: "1"},
		{Description: "Water", Amount: "", Quantity: "1"},
	}}

	assert.Equal(t, "KES 1,234.50", d.LineTotal(0))
	assert.Equal(t, "N/A", d.LineTotal(1))
	assert.Equal(t, "N/A", d.LineTotal(9))
	assert.Equal(t, "KES 1,234.50", FormatMoney(d.Total()))
}
