package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/DukeRupert/taqa/internal/api"
	"github.com/DukeRupert/taqa/internal/domain"
	"github.com/DukeRupert/taqa/internal/storage"
)

const customersCSV = "firstName,lastName,phoneNumber,email,unitNumber\n" +
	"Wanjiru,Kamau,+254712345678,wanjiru@example.com,A1\n" +
	"Otieno,Odhiambo,+254798765432,,A2\n"

func csvRequest(body string) ImportRequest {
	return ImportRequest{
		BuildingID: "b1",
		File:       &domain.ImportFile{Name: "customers.csv", ContentType: domain.ContentTypeCSV, Size: int64(len(body))},
		Body:       strings.NewReader(body),
	}
}

func xlsxBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// failingStorage rejects every write.
type failingStorage struct{ storage.Storage }

func (failingStorage) Put(context.Context, string, io.Reader, storage.PutOptions) error {
	return errors.New("bucket unavailable")
}

// =============================================================================
// Upload
// =============================================================================

func TestImport_ValidationBlocksBackend(t *testing.T) {
	testCases := []struct {
		name  string
		req   ImportRequest
		field string
		msg   string
	}{
		{
			name:  "no building",
			req:   ImportRequest{File: &domain.ImportFile{Name: "a.csv", ContentType: domain.ContentTypeCSV, Size: 10}, Body: strings.NewReader("x")},
			field: "buildingId",
			msg:   "Please select a building",
		},
		{
			name:  "no file",
			req:   ImportRequest{BuildingID: "b1"},
			field: "file",
			msg:   "Please choose a file to upload",
		},
		{
			name:  "wrong type",
			req:   ImportRequest{BuildingID: "b1", File: &domain.ImportFile{Name: "a.pdf", ContentType: "application/pdf", Size: 10}},
			field: "file",
			msg:   "Only CSV or Excel (.xlsx) files are allowed",
		},
		{
			name:  "too large",
			req:   ImportRequest{BuildingID: "b1", File: &domain.ImportFile{Name: "a.csv", ContentType: domain.ContentTypeCSV, Size: domain.MaxImportFileSize + 1}},
			field: "file",
			msg:   "File size must not exceed 5 MB",
		},
		{
			name:  "header only",
			req:   csvRequest("firstName,lastName\n\n , \n"),
			field: "file",
			msg:   MsgImportEmpty,
		},
		{
			name:  "unreadable csv",
			req:   csvRequest("a,\"b\nc,d\n"),
			field: "file",
			msg:   MsgImportUnreadable,
		},
		{
			name: "csv posing as workbook",
			req: ImportRequest{
				BuildingID: "b1",
				File:       &domain.ImportFile{Name: "c.xlsx", ContentType: domain.ContentTypeXLSX, Size: int64(len(customersCSV))},
				Body:       strings.NewReader(customersCSV),
			},
			field: "file",
			msg:   MsgImportUnreadable,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newMockBackend(t)
			svc := NewImportService(backend, nil, ImportConfig{}, testLogger())

			out, err := svc.Upload(context.Background(), testUser(), tc.req)
			require.NoError(t, err)

			assert.Equal(t, domain.FailureValidation, out.Failure)
			assert.Equal(t, tc.msg, out.Fields[tc.field])
			assert.Empty(t, backend.calls)
		})
	}
}

func TestImport_ForwardsAndArchives(t *testing.T) {
	archive, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()}, testLogger())
	require.NoError(t, err)

	backend := newMockBackend(t)
	backend.UploadCustomersFunc = func(_ context.Context, buildingID string, file domain.ImportFile, body io.Reader) (*domain.ImportResult, error) {
		assert.Equal(t, "b1", buildingID)
		assert.Equal(t, "customers.csv", file.Name)
		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, customersCSV, string(data))
		return &domain.ImportResult{Message: "2 customers uploaded"}, nil
	}

	svc := NewImportService(backend, archive, ImportConfig{ArchiveEnabled: true}, testLogger())

	out, err := svc.Upload(context.Background(), testUser(), csvRequest(customersCSV))
	require.NoError(t, err)
	require.False(t, out.Failed())

	assert.Equal(t, "2 customers uploaded", out.Message)
	assert.False(t, out.Panel.HasErrors())
	require.True(t, strings.HasPrefix(out.ArchiveKey, "imports/3/b1/"), out.ArchiveKey)
	assert.True(t, strings.HasSuffix(out.ArchiveKey, ".csv"))

	rc, _, err := archive.Get(context.Background(), out.ArchiveKey)
	require.NoError(t, err)
	defer rc.Close()
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, customersCSV, string(stored))
}

func TestImport_ArchiveFailureDoesNotBlock(t *testing.T) {
	backend := newMockBackend(t)
	backend.UploadCustomersFunc = func(context.Context, string, domain.ImportFile, io.Reader) (*domain.ImportResult, error) {
		return &domain.ImportResult{}, nil
	}
	svc := NewImportService(backend, failingStorage{}, ImportConfig{ArchiveEnabled: true}, testLogger())

	out, err := svc.Upload(context.Background(), testUser(), csvRequest(customersCSV))
	require.NoError(t, err)

	assert.False(t, out.Failed())
	assert.Empty(t, out.ArchiveKey)
	assert.Equal(t, MsgImportSucceeded, out.Message)
}

func TestImport_SpreadsheetPreflight(t *testing.T) {
	data := xlsxBytes(t, [][]interface{}{
		{"firstName", "lastName", "phoneNumber"},
		{"Wanjiru", "Kamau", "+254712345678"},
	})

	backend := newMockBackend(t)
	backend.UploadCustomersFunc = func(_ context.Context, _ string, file domain.ImportFile, _ io.Reader) (*domain.ImportResult, error) {
		assert.True(t, file.IsSpreadsheet())
		return &domain.ImportResult{Message: "1 customer uploaded"}, nil
	}
	svc := NewImportService(backend, nil, ImportConfig{}, testLogger())

	out, err := svc.Upload(context.Background(), testUser(), ImportRequest{
		BuildingID: "b1",
		File:       &domain.ImportFile{Name: "customers.xlsx", ContentType: domain.ContentTypeXLSX, Size: int64(len(data))},
		Body:       bytes.NewReader(data),
	})
	require.NoError(t, err)
	assert.False(t, out.Failed())
	assert.Equal(t, []string{"UploadCustomers"}, backend.calls)
}

func TestImport_RowErrorsReplacePreviousResponse(t *testing.T) {
	responses := []*domain.ImportResult{
		{Message: "Some rows failed", Errors: []domain.ImportRowError{{Row: 2, Reason: "Duplicate phone"}, {Row: 5, Reason: "Unknown unit"}}},
		{Message: "Some rows failed", Errors: []domain.ImportRowError{{Row: 3, Reason: "Missing last name"}}},
	}
	calls := 0
	backend := newMockBackend(t)
	backend.UploadCustomersFunc = func(context.Context, string, domain.ImportFile, io.Reader) (*domain.ImportResult, error) {
		r := responses[calls]
		calls++
		return r, backendErr(domain.EINVALID, r.Message)
	}
	svc := NewImportService(backend, nil, ImportConfig{}, testLogger())

	first, err := svc.Upload(context.Background(), testUser(), csvRequest(customersCSV))
	require.NoError(t, err)
	assert.Equal(t, domain.FailureRejected, first.Failure)
	assert.Len(t, first.Panel.Errors, 2)

	second, err := svc.Upload(context.Background(), testUser(), csvRequest(customersCSV))
	require.NoError(t, err)
	assert.Equal(t, []domain.ImportRowError{{Row: 3, Reason: "Missing last name"}}, second.Panel.Errors)
	assert.Equal(t, "Some rows failed", second.Message)
}

func TestImport_BackendFailureMessages(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{"rejected without message", backendErr(domain.EINVALID, ""), fallbackImport},
		{"unauthorized", backendErr(domain.EUNAUTHORIZED, ""), domain.MsgUnauthorized},
		{"no response", domain.Unavailable(errors.New("reset"), "api.upload"), domain.MsgNetworkFailure},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newMockBackend(t)
			backend.UploadCustomersFunc = func(context.Context, string, domain.ImportFile, io.Reader) (*domain.ImportResult, error) {
				return nil, tc.err
			}
			svc := NewImportService(backend, nil, ImportConfig{}, testLogger())

			out, err := svc.Upload(context.Background(), testUser(), csvRequest(customersCSV))
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Message)
		})
	}
}

// =============================================================================
// Template
// =============================================================================

func templateBackend(t *testing.T) *mockBackend {
	backend := newMockBackend(t)
	backend.DownloadCustomerTemplateFunc = func(context.Context) (*api.Template, error) {
		return &api.Template{Filename: "customers.csv", ContentType: "text/csv", Body: []byte(customersCSV)}, nil
	}
	return backend
}

func TestImport_TemplateCSVPassthrough(t *testing.T) {
	svc := NewImportService(templateBackend(t), nil, ImportConfig{}, testLogger())

	tmpl, err := svc.Template(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "customers.csv", tmpl.Filename)
	assert.Equal(t, customersCSV, string(tmpl.Body))
}

func TestImport_TemplateXLSXHeaderMatchesCSV(t *testing.T) {
	svc := NewImportService(templateBackend(t), nil, ImportConfig{}, testLogger())

	tmpl, err := svc.Template(context.Background(), "xlsx")
	require.NoError(t, err)
	assert.Equal(t, "customers.xlsx", tmpl.Filename)
	assert.Equal(t, domain.ContentTypeXLSX, tmpl.ContentType)

	f, err := excelize.OpenReader(bytes.NewReader(tmpl.Body))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"firstName", "lastName", "phoneNumber", "email", "unitNumber"}, rows[0])
}

func TestImport_TemplateErrors(t *testing.T) {
	svc := NewImportService(templateBackend(t), nil, ImportConfig{}, testLogger())
	_, err := svc.Template(context.Background(), "pdf")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	backend := newMockBackend(t)
	backend.DownloadCustomerTemplateFunc = func(context.Context) (*api.Template, error) {
		return nil, &domain.Error{Code: domain.EINTERNAL, Status: 500}
	}
	svc = NewImportService(backend, nil, ImportConfig{}, testLogger())
	_, err = svc.Template(context.Background(), "csv")
	require.Error(t, err)
	assert.Equal(t, MsgTemplateFailed, TemplateFailureMessage(err))
	assert.Equal(t, domain.MsgUnauthorized, TemplateFailureMessage(backendErr(domain.EUNAUTHORIZED, "")))
}
