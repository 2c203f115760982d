// Package domain contains core business types and interfaces.
//
// This file defines the signed-in back-office operator.
package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// User is the back-office operator behind the current session.
//
// The backend owns the account; this is only what the session token says
// about it. TenantID is the property-management organisation, not a renter.
type User struct {
	ID        string
	TenantID  string
	FirstName string
	LastName  string
	Email     string
	Token     string    // Backend access token, attached to every API call
	ExpiresAt time.Time // Zero when the token carries no expiry
}

// HasTenant returns true if the session identifies an organisation.
func (u *User) HasTenant() bool {
	return u != nil && strings.TrimSpace(u.TenantID) != ""
}

// DisplayName returns the operator's name in title case, falling back to email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return cases.Title(language.English).String(strings.ToLower(name))
}

// IsExpired reports whether the token expiry has passed.
func (u *User) IsExpired(now time.Time) bool {
	return !u.ExpiresAt.IsZero() && now.After(u.ExpiresAt)
}

// LoginParams contains credentials posted to the backend.
type LoginParams struct {
	Email    string
	Password string
}
