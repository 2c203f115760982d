package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateImport(t *testing.T) {
	tests := []struct {
		name       string
		buildingID string
		file       *ImportFile
		want       FieldErrors
	}{
		{
			name:       "csv within limit",
			buildingID: "b1",
			file:       &ImportFile{Name: "customers.csv", ContentType: "text/csv", Size: 1024},
			want:       FieldErrors{},
		},
		{
			name:       "xlsx with charset parameter",
			buildingID: "b1",
			file:       &ImportFile{Name: "c.xlsx", ContentType: ContentTypeXLSX + "; charset=binary", Size: 10},
			want:       FieldErrors{},
		},
		{
			name:       "disallowed type",
			buildingID: "b1",
			file:       &ImportFile{Name: "c.pdf", ContentType: "application/pdf", Size: 10},
			want:       FieldErrors{"file": "Only CSV or Excel (.xlsx) files are allowed"},
		},
		{
			name:       "too large",
			buildingID: "b1",
			file:       &ImportFile{Name: "c.csv", ContentType: "text/csv", Size: MaxImportFileSize + 1},
			want:       FieldErrors{"file": "File size must not exceed 5 MB"},
		},
		{
			name:       "exactly 5 MB",
			buildingID: "b1",
			file:       &ImportFile{Name: "c.csv", ContentType: "text/csv", Size: MaxImportFileSize},
			want:       FieldErrors{},
		},
		{
			name: "missing building and file",
			want: FieldErrors{
				"buildingId": "Please select a building",
				"file":       "Please choose a file to upload",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateImport(tt.buildingID, tt.file))
		})
	}
}

func TestBulkUpload_ApplyReplacesErrors(t *testing.T) {
	var b BulkUpload

	b.Apply(ImportResult{Message: "Partial import", Errors: []ImportRowError{{Row: 2, Reason: "bad phone"}, {Row: 5, Reason: "duplicate"}}})
	assert.True(t, b.HasErrors())
	assert.Len(t, b.Errors, 2)

	b.Apply(ImportResult{Message: "Partial import", Errors: []ImportRowError{{Row: 7, Reason: "missing name"}}})
	assert.Equal(t, []ImportRowError{{Row: 7, Reason: "missing name"}}, b.Errors)

	b.Apply(ImportResult{Message: "Imported 10 customers"})
	assert.False(t, b.HasErrors())
	assert.Equal(t, "Imported 10 customers", b.Message)
}

func TestImportFile_Ext(t *testing.T) {
	assert.Equal(t, ".xlsx", ImportFile{Name: "x", ContentType: ContentTypeXLSX}.Ext())
	assert.Equal(t, ".csv", ImportFile{Name: "list.CSV", ContentType: ContentTypeCSV}.Ext())
	assert.Equal(t, ".csv", ImportFile{Name: "noext", ContentType: ContentTypeCSV}.Ext())
}
