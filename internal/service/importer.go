// Package service contains the business logic layer.
//
// This file implements the bulk customer import panel.
package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/DukeRupert/taqa/internal/api"
	"github.com/DukeRupert/taqa/internal/domain"
	"github.com/DukeRupert/taqa/internal/metrics"
	"github.com/DukeRupert/taqa/internal/storage"
)

// Import panel messages.
const (
	MsgImportSucceeded    = "Customers imported successfully"
	MsgImportEmpty        = "The file contains no customer rows"
	MsgImportUnreadable   = "The file could not be read as CSV/Excel"
	MsgTemplateFailed     = "Failed to download template"
	fallbackImport        = "Invalid import file."
	templateSheetName     = "Customers"
	TemplateFormatCSV     = "csv"
	TemplateFormatXLSX    = "xlsx"
	templateXLSXFilename  = "customers.xlsx"
	importArchiveMetadata = "original-filename"
)

// ImportRequest is one submitted upload.
type ImportRequest struct {
	BuildingID string
	File       *domain.ImportFile // nil when no file was chosen
	Body       io.Reader
}

// ImportOutcome is what the panel shows after an upload.
type ImportOutcome struct {
	Panel      domain.BulkUpload
	Failure    domain.FailureKind
	Fields     domain.FieldErrors
	Message    string
	ArchiveKey string // empty when archiving is off or failed
}

// Failed reports whether the upload was refused.
func (o *ImportOutcome) Failed() bool {
	return o.Failure != domain.FailureNone
}

// =============================================================================
// Interface Definition
// =============================================================================

// ImportService validates, archives and forwards bulk customer imports.
type ImportService interface {
	// Upload checks the file before any backend call, then forwards it.
	// Failures are reported in the outcome. The error is reserved for
	// failures reading the request itself.
	Upload(ctx context.Context, user *domain.User, req ImportRequest) (*ImportOutcome, error)

	// Template downloads the import template as CSV, or converted to a
	// workbook when format is "xlsx".
	Template(ctx context.Context, format string) (*api.Template, error)
}

// ImportConfig controls archiving of accepted files.
type ImportConfig struct {
	ArchiveEnabled bool
}

// =============================================================================
// Implementation
// =============================================================================

type importService struct {
	backend Backend
	archive storage.Storage
	config  ImportConfig
	logger  *slog.Logger
}

// NewImportService creates a new ImportService. archive may be nil when
// archiving is disabled.
func NewImportService(backend Backend, archive storage.Storage, cfg ImportConfig, logger *slog.Logger) ImportService {
	return &importService{
		backend: backend,
		archive: archive,
		config:  cfg,
		logger:  logger,
	}
}

func (s *importService) Upload(ctx context.Context, user *domain.User, req ImportRequest) (*ImportOutcome, error) {
	const op = "import.upload"

	out := &ImportOutcome{Panel: domain.BulkUpload{BuildingID: strings.TrimSpace(req.BuildingID)}}

	if fields := domain.ValidateImport(out.Panel.BuildingID, req.File); len(fields) > 0 {
		return s.invalid(out, fields), nil
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, domain.MaxImportFileSize+1))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read upload")
	}
	if int64(len(data)) > domain.MaxImportFileSize {
		return s.invalid(out, domain.FieldErrors{"file": "File size must not exceed 5 MB"}), nil
	}

	rows, err := countImportRows(*req.File, data)
	if err != nil {
		s.logger.Info("import file unreadable", "filename", req.File.Name, "error", err)
		return s.invalid(out, domain.FieldErrors{"file": MsgImportUnreadable}), nil
	}
	if rows == 0 {
		return s.invalid(out, domain.FieldErrors{"file": MsgImportEmpty}), nil
	}

	out.ArchiveKey = s.archiveFile(ctx, user, out.Panel.BuildingID, *req.File, data)

	result, err := s.backend.UploadCustomers(ctx, out.Panel.BuildingID, *req.File, bytes.NewReader(data))
	if result != nil {
		out.Panel.Apply(*result)
	}
	if err != nil {
		out.Failure = domain.Classify(err)
		out.Message = domain.FailureMessage(err, fallbackImport)
		if result != nil && result.Message != "" && out.Failure == domain.FailureRejected {
			out.Message = result.Message
		}
		if out.Failure == domain.FailureRejected {
			metrics.ImportFinished("rejected")
		} else {
			metrics.ImportFinished("failed")
		}
		s.logger.Warn("customer import failed",
			"building_id", out.Panel.BuildingID,
			"filename", req.File.Name,
			"row_errors", len(out.Panel.Errors),
			"error", err,
		)
		return out, nil
	}

	out.Message = messageOr(out.Panel.Message, MsgImportSucceeded)
	if out.Panel.HasErrors() {
		metrics.ImportFinished("partial")
	} else {
		metrics.ImportFinished("accepted")
	}
	s.logger.Info("customer import forwarded",
		"building_id", out.Panel.BuildingID,
		"filename", req.File.Name,
		"rows", rows,
		"row_errors", len(out.Panel.Errors),
		"archive_key", out.ArchiveKey,
	)
	return out, nil
}

func (s *importService) invalid(out *ImportOutcome, fields domain.FieldErrors) *ImportOutcome {
	metrics.ImportFinished("invalid")
	out.Failure = domain.FailureValidation
	out.Fields = fields
	out.Message = domain.FailureMessage(fields.Err("import.validate"), "")
	return out
}

// archiveFile stores an accepted file. Failures are logged and never block
// the upload.
func (s *importService) archiveFile(ctx context.Context, user *domain.User, buildingID string, file domain.ImportFile, data []byte) string {
	if !s.config.ArchiveEnabled || s.archive == nil {
		return ""
	}

	var tenantID string
	if user != nil {
		tenantID = user.TenantID
	}
	key := storage.ImportKey(tenantID, buildingID, file.Ext())

	err := s.archive.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
		ContentType: file.ContentType,
		MaxSize:     domain.MaxImportFileSize,
		Metadata: map[string]string{
			"tenant":              tenantID,
			"building":            buildingID,
			importArchiveMetadata: file.Name,
		},
	})
	if err != nil {
		s.logger.Error("failed to archive import file", "key", key, "error", err)
		return ""
	}
	return key
}

// =============================================================================
// Preflight
// =============================================================================

// countImportRows parses the file and counts data rows below the header.
// Rows whose cells are all blank are not counted.
func countImportRows(file domain.ImportFile, data []byte) (int, error) {
	var rows [][]string
	var err error
	if file.IsSpreadsheet() {
		rows, err = readXLSXRows(data)
	} else {
		rows, err = readCSVRows(data)
	}
	if err != nil {
		return 0, err
	}

	count := 0
	for i, row := range rows {
		if i == 0 {
			continue
		}
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				count++
				break
			}
		}
	}
	return count, nil
}

func readCSVRows(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

func readXLSXRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

// =============================================================================
// Template
// =============================================================================

func (s *importService) Template(ctx context.Context, format string) (*api.Template, error) {
	const op = "import.template"

	tmpl, err := s.backend.DownloadCustomerTemplate(ctx)
	if err != nil {
		s.logger.Warn("failed to download import template", "error", err)
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", TemplateFormatCSV:
		return tmpl, nil
	case TemplateFormatXLSX:
		body, err := csvToXLSX(tmpl.Body)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to convert template")
		}
		return &api.Template{
			Filename:    templateXLSXFilename,
			ContentType: domain.ContentTypeXLSX,
			Body:        body,
		}, nil
	default:
		return nil, domain.Invalid(op, fmt.Sprintf("unsupported template format %q", format))
	}
}

// csvToXLSX copies every CSV row into the first sheet of a new workbook
// with a bold header row.
func csvToXLSX(data []byte) ([]byte, error) {
	rows, err := readCSVRows(data)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templateSheetName); err != nil {
		return nil, err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(templateSheetName, cell, &values); err != nil {
			return nil, err
		}
	}

	if len(rows) > 0 && len(rows[0]) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, err
		}
		last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(templateSheetName, "A1", last, style); err != nil {
			return nil, err
		}
		if err := f.SetColWidth(templateSheetName, "A", columnName(len(rows[0])), 20); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func columnName(n int) string {
	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return "A"
	}
	return name
}

// TemplateFailureMessage is the panel flash for a failed template download.
func TemplateFailureMessage(err error) string {
	if domain.RedirectsToLogin(err) {
		return domain.MsgUnauthorized
	}
	return MsgTemplateFailed
}
