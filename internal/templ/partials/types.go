// Package partials holds the HTML fragments swapped in by htmx.
package partials

import "github.com/DukeRupert/taqa/internal/domain"

// UnitOptionsData contains data for the unit select.
type UnitOptionsData struct {
	BuildingID string        // Selected building; empty disables the select
	SelectedID string        // Unit to pre-select
	Units      []domain.Unit // Units of the building, occupied ones included
	Error      string        // Load failure shown under the select
	Class      string        // Extra classes merged onto the select
}

// ToastType selects the snackbar colour.
type ToastType string

const (
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
	ToastWarning ToastType = "warning"
	ToastInfo    ToastType = "info"
)

// ToastData contains data for a snackbar message.
type ToastData struct {
	Type        ToastType
	Title       string // Optional bold first line
	Message     string
	AutoDismiss bool // Hide after a few seconds
	OOB         bool // Render as an htmx out-of-band swap into #toast-container

	// RedirectTo, when set, sends the browser there after RedirectAfterMS.
	RedirectTo      string
	RedirectAfterMS int64
}

// ImportErrorsData contains the row errors of the last upload.
type ImportErrorsData struct {
	Message string
	Errors  []domain.ImportRowError
}
