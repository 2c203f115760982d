// Package session provides shared session constants used by both
// the handler and middleware packages.
package session

import "time"

const (
	// CookieName is the name of the cookie that stores the backend token.
	CookieName = "taqa_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// DefaultMaxAge is used when the token carries no expiry.
	// This should match DefaultSessionDuration in the auth service.
	DefaultMaxAge = 24 * time.Hour
)
