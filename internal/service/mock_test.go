package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/DukeRupert/taqa/internal/api"
	"github.com/DukeRupert/taqa/internal/domain"
)

// =============================================================================
// Mock Backend
// =============================================================================

// mockBackend implements Backend with overridable function fields.
// Calls to an unset field fail the test.
type mockBackend struct {
	t *testing.T

	LoginFunc                    func(ctx context.Context, params domain.LoginParams) (*domain.User, error)
	ListBuildingsFunc            func(ctx context.Context) ([]domain.Building, error)
	ListUnitsFunc                func(ctx context.Context, buildingID string) ([]domain.Unit, error)
	CreateCustomerFunc           func(ctx context.Context, req api.CreateCustomerRequest) (*api.Created, error)
	CreateOnboardingInvoiceFunc  func(ctx context.Context, req api.CreateInvoiceRequest) (string, error)
	CreateReadingFunc            func(ctx context.Context, customerID string, r domain.UtilityReading) error
	GetCustomerFunc              func(ctx context.Context, id string) (*domain.Customer, error)
	UploadCustomersFunc          func(ctx context.Context, buildingID string, file domain.ImportFile, body io.Reader) (*domain.ImportResult, error)
	DownloadCustomerTemplateFunc func(ctx context.Context) (*api.Template, error)

	mu    sync.Mutex
	calls []string
}

func newMockBackend(t *testing.T) *mockBackend {
	return &mockBackend{t: t}
}

func (m *mockBackend) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockBackend) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (m *mockBackend) unexpected(name string) {
	m.t.Helper()
	m.t.Fatalf("unexpected backend call: %s", name)
}

func (m *mockBackend) Login(ctx context.Context, params domain.LoginParams) (*domain.User, error) {
	m.record("Login")
	if m.LoginFunc == nil {
		m.unexpected("Login")
	}
	return m.LoginFunc(ctx, params)
}

func (m *mockBackend) ListBuildings(ctx context.Context) ([]domain.Building, error) {
	m.record("ListBuildings")
	if m.ListBuildingsFunc == nil {
		m.unexpected("ListBuildings")
	}
	return m.ListBuildingsFunc(ctx)
}

func (m *mockBackend) ListUnits(ctx context.Context, buildingID string) ([]domain.Unit, error) {
	m.record("ListUnits")
	if m.ListUnitsFunc == nil {
		m.unexpected("ListUnits")
	}
	return m.ListUnitsFunc(ctx, buildingID)
}

func (m *mockBackend) CreateCustomer(ctx context.Context, req api.CreateCustomerRequest) (*api.Created, error) {
	m.record("CreateCustomer")
	if m.CreateCustomerFunc == nil {
		m.unexpected("CreateCustomer")
	}
	return m.CreateCustomerFunc(ctx, req)
}

func (m *mockBackend) CreateOnboardingInvoice(ctx context.Context, req api.CreateInvoiceRequest) (string, error) {
	m.record("CreateOnboardingInvoice")
	if m.CreateOnboardingInvoiceFunc == nil {
		m.unexpected("CreateOnboardingInvoice")
	}
	return m.CreateOnboardingInvoiceFunc(ctx, req)
}

func (m *mockBackend) CreateReading(ctx context.Context, customerID string, r domain.UtilityReading) error {
	m.record("CreateReading")
	if m.CreateReadingFunc == nil {
		m.unexpected("CreateReading")
	}
	return m.CreateReadingFunc(ctx, customerID, r)
}

func (m *mockBackend) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	m.record("GetCustomer")
	if m.GetCustomerFunc == nil {
		m.unexpected("GetCustomer")
	}
	return m.GetCustomerFunc(ctx, id)
}

func (m *mockBackend) UploadCustomers(ctx context.Context, buildingID string, file domain.ImportFile, body io.Reader) (*domain.ImportResult, error) {
	m.record("UploadCustomers")
	if m.UploadCustomersFunc == nil {
		m.unexpected("UploadCustomers")
	}
	return m.UploadCustomersFunc(ctx, buildingID, file, body)
}

func (m *mockBackend) DownloadCustomerTemplate(ctx context.Context) (*api.Template, error) {
	m.record("DownloadCustomerTemplate")
	if m.DownloadCustomerTemplateFunc == nil {
		m.unexpected("DownloadCustomerTemplate")
	}
	return m.DownloadCustomerTemplateFunc(ctx)
}

// =============================================================================
// Helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testUser() *domain.User {
	return &domain.User{ID: "7", TenantID: "3", FirstName: "Amina", Email: "amina@example.com", Token: "tok"}
}

func backendErr(code, message string) error {
	return &domain.Error{Code: code, Op: "api.test", Message: message, Status: 400}
}
