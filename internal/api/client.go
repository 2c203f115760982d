// Package api is the client for the property-management REST backend.
//
// Every call carries the signed-in operator's token, taken from the request
// context. Failures are returned as *domain.Error:
//
//   - 401 → EUNAUTHORIZED
//   - 400 → EINVALID with the server's message
//   - any other status → EINTERNAL with Status set
//   - no response → EUNAVAILABLE
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/DukeRupert/taqa/internal/auth"
	"github.com/DukeRupert/taqa/internal/domain"
	"github.com/DukeRupert/taqa/internal/metrics"
)

const (
	// DefaultBaseURL is the production backend.
	DefaultBaseURL = "https://taqa.co.ke/api"

	// DefaultTimeout bounds every backend call.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of a failed response is read.
	maxErrorBody = 64 << 10

	// maxImportResponse caps an import response. It lists one entry per
	// rejected row, so it can be far larger than an ordinary error body.
	maxImportResponse = 16 << 20
)

// Endpoint labels, used for metrics and logs.
const (
	endpointLogin            = "/auth/login"
	endpointBuildings        = "/buildings"
	endpointBuilding         = "/buildings/{id}"
	endpointCustomers        = "/customers"
	endpointInvoice          = "/customer-onboarding-invoice"
	endpointWaterReading     = "/water-reading"
	endpointGasReading       = "/gas-reading"
	endpointUploadCustomers  = "/upload-customers-withbuildingId"
	endpointCustomerTemplate = "/templates/customers.csv"
	endpointCustomerDetails  = "/customer-details/{id}"
)

// Config contains configuration for the backend client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a backend client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// =============================================================================
// Authentication
// =============================================================================

// Login exchanges credentials for a token and the operator's profile.
func (c *Client) Login(ctx context.Context, params domain.LoginParams) (*domain.User, error) {
	const op = "api.login"

	var resp loginResponse
	if err := c.doJSON(ctx, op, endpointLogin, http.MethodPost, "/auth/login", loginRequest{
		Email:    params.Email,
		Password: params.Password,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, domain.Internal(nil, op, "backend returned no token")
	}

	return &domain.User{
		ID:        string(resp.User.ID),
		TenantID:  string(resp.User.TenantID),
		FirstName: resp.User.FirstName,
		LastName:  resp.User.LastName,
		Email:     resp.User.Email,
		Token:     resp.Token,
	}, nil
}

// =============================================================================
// Buildings and Units
// =============================================================================

// ListBuildings returns the buildings for the building selector.
func (c *Client) ListBuildings(ctx context.Context) ([]domain.Building, error) {
	const op = "api.list_buildings"

	var resp buildingsResponse
	if err := c.doJSON(ctx, op, endpointBuildings, http.MethodGet, "/buildings?minimal=true", nil, &resp); err != nil {
		return nil, err
	}

	buildings := make([]domain.Building, 0, len(resp.Buildings))
	for _, b := range resp.Buildings {
		buildings = append(buildings, b.toDomain())
	}
	return buildings, nil
}

// ListUnits returns the units of one building, occupied ones included.
func (c *Client) ListUnits(ctx context.Context, buildingID string) ([]domain.Unit, error) {
	const op = "api.list_units"

	var resp buildingDetailResponse
	path := "/buildings/" + url.PathEscape(buildingID)
	if err := c.doJSON(ctx, op, endpointBuilding, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	units := make([]domain.Unit, 0, len(resp.Units))
	for _, u := range resp.Units {
		units = append(units, domain.Unit{
			ID:         string(u.ID),
			UnitNumber: u.UnitNumber,
			Status:     domain.UnitStatus(u.Status),
		})
	}
	return units, nil
}

// =============================================================================
// Onboarding
// =============================================================================

// Created is the result of a creation endpoint.
type Created struct {
	ID      string
	Message string
}

// CreateCustomer creates the customer and returns its id.
func (c *Client) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Created, error) {
	const op = "api.create_customer"

	var resp createdResponse
	if err := c.doJSON(ctx, op, endpointCustomers, http.MethodPost, "/customers", req, &resp); err != nil {
		return nil, err
	}
	return &Created{ID: string(resp.Data.ID), Message: resp.Message}, nil
}

// CreateOnboardingInvoice posts the onboarding invoice and returns the
// server's message.
func (c *Client) CreateOnboardingInvoice(ctx context.Context, req CreateInvoiceRequest) (string, error) {
	const op = "api.create_invoice"

	var resp messageResponse
	if err := c.doJSON(ctx, op, endpointInvoice, http.MethodPost, "/customer-onboarding-invoice", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// CreateReading posts one utility reading to the endpoint for its type.
func (c *Client) CreateReading(ctx context.Context, customerID string, r domain.UtilityReading) error {
	const op = "api.create_reading"

	var endpoint string
	switch r.Type {
	case domain.UtilityWater:
		endpoint = endpointWaterReading
	case domain.UtilityGas:
		endpoint = endpointGasReading
	default:
		return domain.Errorf(domain.EINVALID, op, "unknown utility type %q", r.Type)
	}

	return c.doJSON(ctx, op, endpoint, http.MethodPost, endpoint, readingRequest{
		CustomerID: ID(customerID),
		Reading:    r.Value,
	}, nil)
}

// =============================================================================
// Customers
// =============================================================================

// GetCustomer returns the detail record for one customer.
func (c *Client) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	const op = "api.get_customer"

	var resp customerDetailResponse
	path := "/customer-details/" + url.PathEscape(id)
	if err := c.doJSON(ctx, op, endpointCustomerDetails, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

// UploadCustomers forwards an import file. When the backend rejects the file
// with row-level errors, both the result and the error are returned.
func (c *Client) UploadCustomers(ctx context.Context, buildingID string, file domain.ImportFile, body io.Reader) (*domain.ImportResult, error) {
	const op = "api.upload_customers"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", file.ContentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to build upload")
	}
	if _, err := io.Copy(part, body); err != nil {
		return nil, domain.Internal(err, op, "failed to read upload")
	}
	if err := mw.WriteField("buildingId", buildingID); err != nil {
		return nil, domain.Internal(err, op, "failed to build upload")
	}
	if err := mw.Close(); err != nil {
		return nil, domain.Internal(err, op, "failed to build upload")
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpointUploadCustomers, &buf)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req, endpointUploadCustomers)
	if err != nil {
		return nil, domain.Unavailable(err, op)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok && resp.StatusCode != http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, mapStatus(op, resp.StatusCode, raw)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImportResponse))
	if err != nil {
		return nil, domain.Unavailable(err, op)
	}

	var decoded importResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if ok {
		if len(bytes.TrimSpace(raw)) == 0 {
			return &domain.ImportResult{}, nil
		}
		if decodeErr != nil {
			return nil, domain.Internal(decodeErr, op, "failed to decode import response")
		}
		return decoded.toDomain(), nil
	}

	apiErr := mapStatus(op, resp.StatusCode, raw)
	if decodeErr == nil && len(decoded.Errors) > 0 {
		return decoded.toDomain(), apiErr
	}
	return nil, apiErr
}

// Template is a downloaded import template.
type Template struct {
	Filename    string
	ContentType string
	Body        []byte
}

// DownloadCustomerTemplate fetches the CSV import template.
func (c *Client) DownloadCustomerTemplate(ctx context.Context) (*Template, error) {
	const op = "api.download_template"

	req, err := c.newRequest(ctx, http.MethodGet, endpointCustomerTemplate, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to build request")
	}

	resp, err := c.do(req, endpointCustomerTemplate)
	if err != nil {
		return nil, domain.Unavailable(err, op)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, mapStatus(op, resp.StatusCode, raw)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, domain.MaxImportFileSize))
	if err != nil {
		return nil, domain.Unavailable(err, op)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = domain.ContentTypeCSV
	}
	return &Template{
		Filename:    "customers.csv",
		ContentType: contentType,
		Body:        body,
	}, nil
}

// =============================================================================
// Transport
// =============================================================================

// doJSON sends body as JSON (when non-nil) and decodes a 2xx response into
// out (when non-nil).
func (c *Client) doJSON(ctx context.Context, op, endpoint, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return domain.Internal(err, op, "failed to encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return domain.Internal(err, op, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, endpoint)
	if err != nil {
		return domain.Unavailable(err, op)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return mapStatus(op, resp.StatusCode, raw)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return domain.Internal(err, op, "failed to decode response")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if token := auth.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do executes the request and records metrics. A returned error means no
// response was received.
func (c *Client) do(req *http.Request, endpoint string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.BackendCall(endpoint, 0, duration)
		c.logger.Warn("backend request failed",
			"method", req.Method,
			"endpoint", endpoint,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	metrics.BackendCall(endpoint, resp.StatusCode, duration)
	c.logger.Debug("backend request",
		"method", req.Method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	)
	return resp, nil
}

// mapStatus converts a non-2xx response into a domain error.
func mapStatus(op string, status int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)
	msg := strings.TrimSpace(body.text())

	switch status {
	case http.StatusUnauthorized:
		if msg == "" {
			msg = "session rejected by backend"
		}
		return &domain.Error{Code: domain.EUNAUTHORIZED, Op: op, Message: msg, Status: status}
	case http.StatusBadRequest:
		return &domain.Error{Code: domain.EINVALID, Op: op, Message: msg, Status: status}
	default:
		return &domain.Error{
			Code:    domain.EINTERNAL,
			Op:      op,
			Message: msg,
			Status:  status,
			Err:     fmt.Errorf("backend returned %d %s", status, http.StatusText(status)),
		}
	}
}
