// Package domain contains core business types and interfaces.
//
// This file defines the optional onboarding invoice drafted in the second
// wizard step.
package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencyCode prefixes every displayed amount.
const CurrencyCode = "KES"

// InvoiceItemInput is one editable invoice row as typed by the operator.
type InvoiceItemInput struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Quantity    string `json:"quantity"`
}

// InvoiceItem is a validated invoice row.
type InvoiceItem struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Quantity    int             `json:"quantity"`
}

// Total returns amount times quantity.
func (i InvoiceItem) Total() decimal.Decimal {
	return i.Amount.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// InvoiceDraft is the ordered, editable list of invoice rows.
type InvoiceDraft struct {
	Items []InvoiceItemInput `json:"items"`
}

// NewInvoiceDraft returns the default draft: one empty row, quantity 1.
func NewInvoiceDraft() InvoiceDraft {
	return InvoiceDraft{Items: []InvoiceItemInput{newInvoiceRow()}}
}

func newInvoiceRow() InvoiceItemInput {
	return InvoiceItemInput{Quantity: "1"}
}

// AddItem appends an empty row.
func (d *InvoiceDraft) AddItem() {
	d.Items = append(d.Items, newInvoiceRow())
}

// RemoveItem drops the row at index. The last remaining row is kept.
func (d *InvoiceDraft) RemoveItem(index int) {
	if len(d.Items) <= 1 || index < 0 || index >= len(d.Items) {
		return
	}
	d.Items = append(d.Items[:index], d.Items[index+1:]...)
}

// IsEmpty reports whether there is nothing to invoice.
func (d InvoiceDraft) IsEmpty() bool {
	return len(d.Items) == 0
}

// ValidateInvoice checks every row. An empty draft is valid.
func ValidateInvoice(d InvoiceDraft) FieldErrors {
	errs := FieldErrors{}
	for i, item := range d.Items {
		if strings.TrimSpace(item.Description) == "" {
			errs.Add(itemField(i, "description"), "Description is required")
		}
		if amount, ok := parseAmount(item.Amount); !ok || !amount.IsPositive() {
			errs.Add(itemField(i, "amount"), "Valid amount is required")
		}
		if qty, ok := parseQuantity(item.Quantity); !ok || qty <= 0 {
			errs.Add(itemField(i, "quantity"), "Valid quantity is required")
		}
	}
	return errs
}

// ValidItems converts the draft into typed rows. It returns a validation
// error when any row fails.
func (d InvoiceDraft) ValidItems() ([]InvoiceItem, error) {
	if err := ValidateInvoice(d).Err("invoice.validate"); err != nil {
		return nil, err
	}
	items := make([]InvoiceItem, 0, len(d.Items))
	for _, in := range d.Items {
		amount, _ := parseAmount(in.Amount)
		qty, _ := parseQuantity(in.Quantity)
		items = append(items, InvoiceItem{
			Description: strings.TrimSpace(in.Description),
			Amount:      amount,
			Quantity:    qty,
		})
	}
	return items, nil
}

// LineTotal formats a row's total, or "N/A" while the row is incomplete.
func (d InvoiceDraft) LineTotal(index int) string {
	if index < 0 || index >= len(d.Items) {
		return "N/A"
	}
	amount, okA := parseAmount(d.Items[index].Amount)
	qty, okQ := parseQuantity(d.Items[index].Quantity)
	if !okA || !okQ || amount.IsZero() || qty == 0 {
		return "N/A"
	}
	return FormatMoney(amount.Mul(decimal.NewFromInt(int64(qty))))
}

// Total sums the rows that parse, ignoring incomplete ones.
func (d InvoiceDraft) Total() decimal.Decimal {
	total := decimal.Zero
	for _, in := range d.Items {
		amount, okA := parseAmount(in.Amount)
		qty, okQ := parseQuantity(in.Quantity)
		if okA && okQ {
			total = total.Add(amount.Mul(decimal.NewFromInt(int64(qty))))
		}
	}
	return total
}

// FormatMoney renders an amount as "KES 1,234.50".
func FormatMoney(amount decimal.Decimal) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%s %.2f", CurrencyCode, amount.Round(2).InexactFloat64())
}

func itemField(i int, name string) string {
	return fmt.Sprintf("item%d_%s", i, name)
}

func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parseQuantity(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
