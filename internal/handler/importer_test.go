package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/taqa/internal/api"
	"github.com/DukeRupert/taqa/internal/domain"
	"github.com/DukeRupert/taqa/internal/service"
)

func newTestImportHandler(imports *mockImportService, directory *mockDirectoryService) (*ImportHandler, *mockRenderer) {
	renderer := &mockRenderer{}
	if directory == nil {
		directory = &mockDirectoryService{}
	}
	return NewImportHandler(imports, directory, renderer, newTestLogger(), false, 2*time.Second), renderer
}

// multipartUpload builds a POST /customers/import request. An empty
// filename leaves the file part out.
func multipartUpload(t *testing.T, buildingID, filename, contentType string, body []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("buildingId", buildingID))
	if filename != "" {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
		header["Content-Type"] = []string{contentType}
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/customers/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return withUser(req)
}

func TestImportShow_RendersPanel(t *testing.T) {
	h, renderer := newTestImportHandler(&mockImportService{}, nil)

	rec := httptest.NewRecorder()
	h.Show(rec, withUser(httptest.NewRequest("GET", "/customers/import?buildingId=b1", nil)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "customers/import", renderer.Name)
	data := renderer.Data.(ImportPageData)
	assert.Equal(t, "b1", data.BuildingID)
	assert.Len(t, data.Buildings, 1)
	assert.Equal(t, int64(5), data.MaxSizeMB)
	assert.Nil(t, data.Flash)
}

func TestImportShow_TemplateFailedFlash(t *testing.T) {
	h, renderer := newTestImportHandler(&mockImportService{}, nil)

	h.Show(httptest.NewRecorder(), withUser(httptest.NewRequest("GET", "/customers/import?template=failed", nil)))

	data := renderer.Data.(ImportPageData)
	require.NotNil(t, data.Flash)
	assert.Equal(t, service.MsgTemplateFailed, data.Flash.Message)
}

func TestImportUpload_ForwardsFile(t *testing.T) {
	var got service.ImportRequest
	var gotBody []byte
	h, renderer := newTestImportHandler(&mockImportService{
		UploadFunc: func(ctx context.Context, user *domain.User, req service.ImportRequest) (*service.ImportOutcome, error) {
			got = req
			gotBody, _ = io.ReadAll(req.Body)
			return &service.ImportOutcome{
				Panel:   domain.BulkUpload{BuildingID: req.BuildingID, Message: "2 imported"},
				Message: "2 imported",
			}, nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.Upload(rec, multipartUpload(t, "b1", "customers.csv", "application/octet-stream", []byte("firstName\nAmina\n")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b1", got.BuildingID)
	require.NotNil(t, got.File)
	assert.Equal(t, "customers.csv", got.File.Name)
	assert.Equal(t, domain.ContentTypeCSV, got.File.ContentType, "generic type resolved from the extension")
	assert.Equal(t, int64(len(gotBody)), got.File.Size)
	assert.Equal(t, "firstName\nAmina\n", string(gotBody))

	data := renderer.Data.(ImportPageData)
	assert.Equal(t, "success", data.Flash.Type)
}

func TestImportUpload_MissingFile(t *testing.T) {
	var got service.ImportRequest
	h, renderer := newTestImportHandler(&mockImportService{
		UploadFunc: func(ctx context.Context, user *domain.User, req service.ImportRequest) (*service.ImportOutcome, error) {
			got = req
			return &service.ImportOutcome{
				Failure: domain.FailureValidation,
				Fields:  domain.FieldErrors{"file": "Please choose a file to upload"},
				Message: "Please correct the highlighted fields.",
			}, nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.Upload(rec, multipartUpload(t, "b1", "", "", nil))

	assert.Nil(t, got.File)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Please choose a file to upload", renderer.Data.(ImportPageData).Fields["file"])
}

func TestImportUpload_RowErrorsRendered(t *testing.T) {
	h, renderer := newTestImportHandler(&mockImportService{
		UploadFunc: func(ctx context.Context, user *domain.User, req service.ImportRequest) (*service.ImportOutcome, error) {
			return &service.ImportOutcome{
				Panel: domain.BulkUpload{
					Message: "1 row failed",
					Errors:  []domain.ImportRowError{{Row: 3, Reason: "Duplicate phone"}},
				},
				Message: "1 row failed",
			}, nil
		},
	}, nil)

	h.Upload(httptest.NewRecorder(), multipartUpload(t, "b1", "c.csv", "text/csv", []byte("x")))

	var b bytes.Buffer
	require.NoError(t, renderer.Data.(ImportPageData).Results.Render(context.Background(), &b))
	assert.Contains(t, b.String(), "Duplicate phone")
}

func TestImportUpload_TooLarge(t *testing.T) {
	h, renderer := newTestImportHandler(&mockImportService{
		UploadFunc: func(ctx context.Context, user *domain.User, req service.ImportRequest) (*service.ImportOutcome, error) {
			t.Fatal("oversized body must not reach the service")
			return nil, nil
		},
	}, nil)

	req := multipartUpload(t, "b1", "big.csv", "text/csv", bytes.Repeat([]byte("a"), 4096))
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 1024)

	h.Upload(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, domain.MsgImportTooLarge, renderer.Data.(ImportPageData).Fields["file"])
}

func TestImportUpload_Unauthorized(t *testing.T) {
	h, renderer := newTestImportHandler(&mockImportService{
		UploadFunc: func(ctx context.Context, user *domain.User, req service.ImportRequest) (*service.ImportOutcome, error) {
			return &service.ImportOutcome{Failure: domain.FailureUnauthorized, Message: domain.MsgUnauthorized}, nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.Upload(rec, multipartUpload(t, "b1", "c.csv", "text/csv", []byte("x")))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "redirect", renderer.Name)
}

func TestImportTemplate_Download(t *testing.T) {
	h, _ := newTestImportHandler(&mockImportService{
		TemplateFunc: func(ctx context.Context, format string) (*api.Template, error) {
			assert.Equal(t, "xlsx", format)
			return &api.Template{Filename: "customers.xlsx", ContentType: domain.ContentTypeXLSX, Body: []byte("PK")}, nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.Template(rec, withUser(httptest.NewRequest("GET", "/customers/import/template?format=xlsx", nil)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ContentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="customers.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK", rec.Body.String())
}

func TestImportTemplate_FailureRedirectsToPanel(t *testing.T) {
	h, _ := newTestImportHandler(&mockImportService{
		TemplateFunc: func(ctx context.Context, format string) (*api.Template, error) {
			return nil, &domain.Error{Code: domain.EINTERNAL, Status: 500}
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.Template(rec, withUser(httptest.NewRequest("GET", "/customers/import/template", nil)))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/customers/import?template=failed", rec.Header().Get("Location"))
}
