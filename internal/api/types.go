package api

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/DukeRupert/taqa/internal/domain"
)

// ID is a backend identifier. The backend mixes numeric and string ids, so
// ID accepts both on the way in and writes integers back as JSON numbers.
type ID string

// UnmarshalJSON accepts "abc", 42, or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes integer ids as numbers, null for empty, strings otherwise.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// =============================================================================
// Response Envelopes
// =============================================================================

// errorBody is the shape of a failed response.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e errorBody) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// createdResponse is returned by creation endpoints: { data: { id }, message }.
type createdResponse struct {
	Data struct {
		ID ID `json:"id"`
	} `json:"data"`
	Message string `json:"message"`
}

// messageResponse carries only a message.
type messageResponse struct {
	Message string `json:"message"`
}

type buildingJSON struct {
	ID           ID     `json:"id"`
	BuildingName string `json:"buildingName"`
	Name         string `json:"name"`
	Landlord     *struct {
		Name string `json:"name"`
	} `json:"landlord"`
}

func (b buildingJSON) toDomain() domain.Building {
	name := b.BuildingName
	if name == "" {
		name = b.Name
	}
	if name == "" {
		name = "Unnamed"
	}
	out := domain.Building{ID: string(b.ID), Name: name}
	if b.Landlord != nil {
		out.LandlordName = b.Landlord.Name
	}
	return out
}

type buildingsResponse struct {
	Buildings []buildingJSON `json:"buildings"`
}

type unitJSON struct {
	ID         ID     `json:"id"`
	UnitNumber string `json:"unitNumber"`
	Status     string `json:"status"`
}

type buildingDetailResponse struct {
	Units []unitJSON `json:"units"`
}

type customerDetailResponse struct {
	ID          ID     `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	NationalID  string `json:"nationalId"`
	Status      string `json:"status"`
	Unit        *struct {
		UnitNumber string `json:"unitNumber"`
		Building   *struct {
			BuildingName string `json:"buildingName"`
			Name         string `json:"name"`
		} `json:"building"`
	} `json:"unit"`
}

func (c customerDetailResponse) toDomain() *domain.Customer {
	out := &domain.Customer{
		ID:          string(c.ID),
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
		NationalID:  c.NationalID,
		Status:      c.Status,
	}
	if c.Unit != nil {
		out.UnitNumber = c.Unit.UnitNumber
		if c.Unit.Building != nil {
			out.Building = c.Unit.Building.BuildingName
			if out.Building == "" {
				out.Building = c.Unit.Building.Name
			}
		}
	}
	return out
}

type importResponse struct {
	Message string `json:"message"`
	Errors  []struct {
		Row    int    `json:"row"`
		Reason string `json:"reason"`
	} `json:"errors"`
}

func (r importResponse) toDomain() *domain.ImportResult {
	out := &domain.ImportResult{Message: r.Message}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, domain.ImportRowError{Row: e.Row, Reason: e.Reason})
	}
	return out
}

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID        ID     `json:"id"`
		TenantID  ID     `json:"tenantId"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
	} `json:"user"`
}

// =============================================================================
// Request Payloads
// =============================================================================

// CreateCustomerRequest is the details-step payload.
type CreateCustomerRequest struct {
	TenantID             ID     `json:"tenantId"`
	UnitID               ID     `json:"unitId"`
	FirstName            string `json:"firstName"`
	LastName             string `json:"lastName"`
	Email                string `json:"email"`
	PhoneNumber          string `json:"phoneNumber"`
	SecondaryPhoneNumber string `json:"secondaryPhoneNumber"`
	NationalID           string `json:"nationalId"`
}

// NewCreateCustomerRequest builds the payload from the form and session tenant.
func NewCreateCustomerRequest(f domain.CustomerForm, tenantID string) CreateCustomerRequest {
	return CreateCustomerRequest{
		TenantID:             ID(tenantID),
		UnitID:               ID(f.UnitID),
		FirstName:            f.FirstName,
		LastName:             f.LastName,
		Email:                f.Email,
		PhoneNumber:          f.PhoneNumber,
		SecondaryPhoneNumber: f.SecondaryPhoneNumber,
		NationalID:           f.NationalID,
	}
}

// InvoiceItemPayload is one posted invoice row.
type InvoiceItemPayload struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Quantity    int     `json:"quantity"`
}

// CreateInvoiceRequest is the invoice-step payload.
type CreateInvoiceRequest struct {
	CustomerID        ID                   `json:"customerId"`
	IsSystemGenerated bool                 `json:"isSystemGenerated"`
	InvoiceItems      []InvoiceItemPayload `json:"invoiceItems"`
}

// NewCreateInvoiceRequest builds the payload from validated items.
func NewCreateInvoiceRequest(customerID string, items []domain.InvoiceItem) CreateInvoiceRequest {
	req := CreateInvoiceRequest{
		CustomerID:        ID(customerID),
		IsSystemGenerated: false,
		InvoiceItems:      make([]InvoiceItemPayload, 0, len(items)),
	}
	for _, it := range items {
		req.InvoiceItems = append(req.InvoiceItems, InvoiceItemPayload{
			Description: it.Description,
			Amount:      it.Amount.InexactFloat64(),
			Quantity:    it.Quantity,
		})
	}
	return req
}

type readingRequest struct {
	CustomerID ID      `json:"customerId"`
	Reading    float64 `json:"reading"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
