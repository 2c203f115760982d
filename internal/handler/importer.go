package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/DukeRupert/taqa/internal/auth"
	"github.com/DukeRupert/taqa/internal/csrf"
	"github.com/DukeRupert/taqa/internal/domain"
	"github.com/DukeRupert/taqa/internal/service"
	"github.com/DukeRupert/taqa/internal/storage"
	"github.com/DukeRupert/taqa/internal/templ/partials"
)

// importMaxMemory is how much of a multipart body is kept in memory.
const importMaxMemory = 8 << 20

// ImportHandler serves the bulk customer import panel.
//
// Routes handled:
// - GET  /customers/import           -> Show
// - POST /customers/import           -> Upload
// - GET  /customers/import/template  -> Template
type ImportHandler struct {
	imports   service.ImportService
	directory service.DirectoryService
	renderer  TemplateRenderer
	logger    *slog.Logger
	interstitial
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(
	imports service.ImportService,
	directory service.DirectoryService,
	renderer TemplateRenderer,
	logger *slog.Logger,
	isSecure bool,
	redirectDelay time.Duration,
) *ImportHandler {
	return &ImportHandler{
		imports:      imports,
		directory:    directory,
		renderer:     renderer,
		logger:       logger,
		interstitial: interstitial{renderer: renderer, delay: redirectDelay, isSecure: isSecure},
	}
}

// ImportPageData contains data for the import page.
type ImportPageData struct {
	CurrentPath string
	CSRFToken   string
	User        *domain.User
	Buildings   []domain.Building
	BuildingID  string
	Results     templ.Component // row errors of the last upload
	Fields      domain.FieldErrors
	Flash       *Flash
	LoadError   string
	MaxSizeMB   int64
}

// Show renders the empty panel. ?template=failed reports a failed download.
func (h *ImportHandler) Show(w http.ResponseWriter, r *http.Request) {
	var flash *Flash
	if r.URL.Query().Get("template") == "failed" {
		flash = errorFlash(service.MsgTemplateFailed)
	}

	panel := domain.BulkUpload{BuildingID: r.URL.Query().Get("buildingId")}
	h.renderPanel(w, r, panel, nil, flash, http.StatusOK)
}

// Upload validates and forwards the chosen file.
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	if err := r.ParseMultipartForm(importMaxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fields := domain.FieldErrors{"file": domain.MsgImportTooLarge}
			h.renderPanel(w, r, domain.BulkUpload{}, fields, nil, http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Warn("failed to parse import form", "error", err)
		h.renderPanel(w, r, domain.BulkUpload{}, nil, errorFlash("Invalid form submission. Please try again."), http.StatusBadRequest)
		return
	}

	req := service.ImportRequest{BuildingID: r.FormValue("buildingId")}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		req.File = &domain.ImportFile{
			Name:        header.Filename,
			ContentType: storage.DetectContentType(header.Header.Get("Content-Type"), header.Filename),
			Size:        header.Size,
		}
		req.Body = file
	case !errors.Is(err, http.ErrMissingFile):
		h.logger.Warn("failed to read uploaded file", "error", err)
	}

	out, err := h.imports.Upload(r.Context(), user, req)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if out.Failure == domain.FailureUnauthorized {
		h.unauthorized(w, r)
		return
	}

	flash := successFlash(out.Message)
	if out.Failed() {
		flash = errorFlash(out.Message)
	}
	h.renderPanel(w, r, out.Panel, out.Fields, flash, failureStatus(out.Failure))
}

// Template downloads the import template. ?format=xlsx converts it to a
// workbook. Failures go back to the panel with a message.
func (h *ImportHandler) Template(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.imports.Template(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		if domain.RedirectsToLogin(err) {
			h.unauthorized(w, r)
			return
		}
		h.logger.Warn("template download failed", "error", err)
		http.Redirect(w, r, "/customers/import?template=failed", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", tmpl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", tmpl.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(tmpl.Body)))
	if _, err := w.Write(tmpl.Body); err != nil {
		h.logger.Debug("template write aborted", "error", err)
	}
}

func (h *ImportHandler) renderPanel(w http.ResponseWriter, r *http.Request, panel domain.BulkUpload, fields domain.FieldErrors, flash *Flash, status int) {
	data := ImportPageData{
		CurrentPath: r.URL.Path,
		CSRFToken:   csrf.Token(r),
		User:        auth.GetUserFromRequest(r),
		BuildingID:  strings.TrimSpace(panel.BuildingID),
		Results:     partials.ImportErrors(partials.ImportErrorsData{Message: panel.Message, Errors: panel.Errors}),
		Fields:      fields,
		Flash:       flash,
		MaxSizeMB:   domain.MaxImportFileSize >> 20,
	}

	buildings, err := h.directory.ListBuildings(r.Context())
	if err != nil {
		if domain.RedirectsToLogin(err) {
			h.unauthorized(w, r)
			return
		}
		data.LoadError = service.BuildingsFailureMessage(err)
	}
	data.Buildings = buildings

	h.renderer.RenderHTTPStatus(w, "customers/import", data, status)
}

// RegisterRoutes registers the import routes behind requireUser.
func (h *ImportHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /customers/import", requireUser(http.HandlerFunc(h.Show)))
	mux.Handle("POST /customers/import", requireUser(http.HandlerFunc(h.Upload)))
	mux.Handle("GET /customers/import/template", requireUser(http.HandlerFunc(h.Template)))
}
