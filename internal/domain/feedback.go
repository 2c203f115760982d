package domain

import "errors"

// =============================================================================
// Failure Classification
// =============================================================================

// FailureKind is the user-facing category of a failed operation.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureValidation is caught before any backend call; it blocks submission
	// and is shown next to the offending fields.
	FailureValidation
	// FailureUnauthorized is a backend 401. The session is dropped and the
	// operator is sent to the login page after a short delay.
	FailureUnauthorized
	// FailureRejected is a backend 400. The server's message is shown verbatim.
	FailureRejected
	// FailureServer is any other backend status.
	FailureServer
	// FailureNetwork means the backend never answered.
	FailureNetwork
)

// Messages shared by every step.
const (
	MsgUnauthorized   = "Unauthorized. Redirecting to login..."
	MsgServerFailure  = "Something went wrong. Please try again later."
	MsgNetworkFailure = "Network error. Please check your connection."
)

// Classify maps an error to its user-facing category.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return FailureValidation
	}
	switch ErrorCode(err) {
	case EUNAUTHORIZED:
		return FailureUnauthorized
	case EINVALID:
		return FailureRejected
	case EUNAVAILABLE:
		return FailureNetwork
	default:
		return FailureServer
	}
}

// FailureMessage returns the transient message for a failed operation.
// rejectedFallback is shown for a 400 that carried no message of its own.
func FailureMessage(err error, rejectedFallback string) string {
	switch Classify(err) {
	case FailureNone:
		return ""
	case FailureValidation:
		return "Please correct the highlighted fields."
	case FailureUnauthorized:
		return MsgUnauthorized
	case FailureRejected:
		var e *Error
		if errors.As(err, &e) && e.Message != "" {
			return e.Message
		}
		return rejectedFallback
	case FailureNetwork:
		return MsgNetworkFailure
	default:
		return MsgServerFailure
	}
}

// RedirectsToLogin reports whether the failure must end the session.
func RedirectsToLogin(err error) bool {
	return Classify(err) == FailureUnauthorized
}
