// Package domain contains core business types and interfaces.
//
// This file defines the customer details captured in the first onboarding
// step and the pure validation rules applied before it is posted.
package domain

import (
	"regexp"
	"strings"
)

var (
	// phonePattern accepts an optional leading plus and 10-15 digits.
	phonePattern = regexp.MustCompile(`^\+?\d{10,15}$`)

	// emailPattern is a loose search, not an anchored match: any
	// "x@y.z" run inside the value is enough.
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
)

// IsValidPhone reports whether s is an acceptable phone number.
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// =============================================================================
// Customer Form
// =============================================================================

// CustomerForm holds the details step. Field names mirror the form inputs.
type CustomerForm struct {
	BuildingID           string `json:"buildingId"`
	UnitID               string `json:"unitId"`
	FirstName            string `json:"firstName"`
	LastName             string `json:"lastName"`
	Email                string `json:"email"`
	PhoneNumber          string `json:"phoneNumber"`
	SecondaryPhoneNumber string `json:"secondaryPhoneNumber"`
	NationalID           string `json:"nationalId"`
}

// Normalize trims surrounding whitespace from every field.
func (f CustomerForm) Normalize() CustomerForm {
	return CustomerForm{
		BuildingID:           strings.TrimSpace(f.BuildingID),
		UnitID:               strings.TrimSpace(f.UnitID),
		FirstName:            strings.TrimSpace(f.FirstName),
		LastName:             strings.TrimSpace(f.LastName),
		Email:                strings.TrimSpace(f.Email),
		PhoneNumber:          strings.TrimSpace(f.PhoneNumber),
		SecondaryPhoneNumber: strings.TrimSpace(f.SecondaryPhoneNumber),
		NationalID:           strings.TrimSpace(f.NationalID),
	}
}

// SelectBuilding switches the building. Changing it clears the unit.
func (f *CustomerForm) SelectBuilding(buildingID string) {
	if f.BuildingID != buildingID {
		f.UnitID = ""
	}
	f.BuildingID = buildingID
}

// ValidateCustomer applies the details-step rules. It never touches the network.
func ValidateCustomer(f CustomerForm) FieldErrors {
	errs := FieldErrors{}

	if f.FirstName == "" {
		errs.Add("firstName", "First name is required")
	}
	if f.LastName == "" {
		errs.Add("lastName", "Last name is required")
	}
	if f.PhoneNumber == "" {
		errs.Add("phoneNumber", "Phone number is required")
	} else if !IsValidPhone(f.PhoneNumber) {
		errs.Add("phoneNumber", "Invalid phone number format")
	}
	if f.Email != "" && !IsValidEmail(f.Email) {
		errs.Add("email", "Invalid email format")
	}
	if f.SecondaryPhoneNumber != "" && !IsValidPhone(f.SecondaryPhoneNumber) {
		errs.Add("secondaryPhoneNumber", "Invalid secondary phone number format")
	}

	return errs
}

// =============================================================================
// Customer Detail
// =============================================================================

// Customer is the backend's view of an onboarded customer, used by the
// detail page the wizard lands on.
type Customer struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	NationalID  string
	Status      string
	UnitNumber  string
	Building    string
}

// FullName joins first and last name.
func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
