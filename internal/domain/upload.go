// Package domain contains core business types and interfaces.
//
// This file defines the bulk customer import: the file constraints checked
// before upload and the row-level results returned by the backend.
package domain

import (
	"path/filepath"
	"strings"
)

const (
	// MaxImportFileSize is the 5 MB ceiling for import files.
	MaxImportFileSize int64 = 5 << 20

	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// MsgImportTooLarge is shown for files over MaxImportFileSize.
	MsgImportTooLarge = "File size must not exceed 5 MB"
)

// AllowedImportTypes are the only MIME types accepted for import.
var AllowedImportTypes = map[string]bool{
	ContentTypeCSV:  true,
	ContentTypeXLSX: true,
}

// ImportFile describes an uploaded file before it is forwarded.
type ImportFile struct {
	Name        string
	ContentType string
	Size        int64
}

// IsSpreadsheet reports whether the file is an Excel workbook.
func (f ImportFile) IsSpreadsheet() bool {
	return baseContentType(f.ContentType) == ContentTypeXLSX
}

// Ext returns the extension to archive the file under.
func (f ImportFile) Ext() string {
	if f.IsSpreadsheet() {
		return ".xlsx"
	}
	if ext := strings.ToLower(filepath.Ext(f.Name)); ext != "" {
		return ext
	}
	return ".csv"
}

// ValidateImport checks the building and file constraints. It names the
// violated constraint so the panel can show it inline.
func ValidateImport(buildingID string, f *ImportFile) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(buildingID) == "" {
		errs.Add("buildingId", "Please select a building")
	}
	if f == nil || f.Name == "" {
		errs.Add("file", "Please choose a file to upload")
		return errs
	}
	if !AllowedImportTypes[baseContentType(f.ContentType)] {
		errs.Add("file", "Only CSV or Excel (.xlsx) files are allowed")
	}
	if f.Size > MaxImportFileSize {
		errs.Add("file", MsgImportTooLarge)
	}
	return errs
}

func baseContentType(ct string) string {
	return strings.TrimSpace(strings.ToLower(strings.Split(ct, ";")[0]))
}

// =============================================================================
// Import Results
// =============================================================================

// ImportRowError is a per-row rejection reported by the backend.
type ImportRowError struct {
	Row    int
	Reason string
}

// ImportResult is the backend's answer to an upload.
type ImportResult struct {
	Message string
	Errors  []ImportRowError
}

// BulkUpload is the panel state.
type BulkUpload struct {
	BuildingID string
	Message    string
	Errors     []ImportRowError
}

// Apply replaces the panel's message and errors with a new result.
// Errors never accumulate across uploads.
func (b *BulkUpload) Apply(r ImportResult) {
	b.Message = r.Message
	b.Errors = append([]ImportRowError(nil), r.Errors...)
}

// HasErrors returns true when the last upload reported row errors.
func (b *BulkUpload) HasErrors() bool {
	return len(b.Errors) > 0
}
