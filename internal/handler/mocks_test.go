package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/DukeRupert/taqa/internal/api"
	"github.com/DukeRupert/taqa/internal/auth"
	"github.com/DukeRupert/taqa/internal/domain"
	"github.com/DukeRupert/taqa/internal/service"
	"github.com/DukeRupert/taqa/internal/templ/partials"
)

// =============================================================================
// Mock AuthService
// =============================================================================

type mockAuthService struct {
	LoginFunc        func(ctx context.Context, params domain.LoginParams) (*domain.User, error)
	SessionFunc      func(ctx context.Context, token string) (*domain.User, error)
	CookieMaxAgeFunc func(user *domain.User) time.Duration
}

func (m *mockAuthService) Login(ctx context.Context, params domain.LoginParams) (*domain.User, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, params)
	}
	return nil, domain.Unauthorized("auth.login", "Invalid email or password")
}

func (m *mockAuthService) Session(ctx context.Context, token string) (*domain.User, error) {
	if m.SessionFunc != nil {
		return m.SessionFunc(ctx, token)
	}
	return nil, domain.Unauthorized("auth.session", "invalid session")
}

func (m *mockAuthService) CookieMaxAge(user *domain.User) time.Duration {
	if m.CookieMaxAgeFunc != nil {
		return m.CookieMaxAgeFunc(user)
	}
	return time.Hour
}

// =============================================================================
// Mock OnboardingService
// =============================================================================

type mockOnboardingService struct {
	StartFunc    func(ctx context.Context, user *domain.User) (*domain.Wizard, error)
	GetFunc      func(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Wizard, error)
	SubmitFunc   func(ctx context.Context, user *domain.User, id uuid.UUID, input service.StepInput) (*service.Outcome, error)
	BackFunc     func(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Wizard, error)
	SkipFunc     func(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Wizard, error)
	EditFunc     func(ctx context.Context, user *domain.User, id uuid.UUID, edit service.DraftEdit) (*domain.Wizard, error)
	PopFlashFunc func(ctx context.Context, w *domain.Wizard) (string, error)
}

func (m *mockOnboardingService) Start(ctx context.Context, user *domain.User) (*domain.Wizard, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, user)
	}
	return domain.NewWizard(user, time.Now()), nil
}

func (m *mockOnboardingService) Get(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Wizard, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, user, id)
	}
	return nil, domain.NotFound("onboarding.get", "wizard", id.String())
}

func (m *mockOnboardingService) Submit(ctx context.Context, user *domain.User, id uuid.UUID, input service.StepInput) (*service.Outcome, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, user, id, input)
	}
	return &service.Outcome{}, nil
}

func (m *mockOnboardingService) Back(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Wizard, error) {
	if m.BackFunc != nil {
		return m.BackFunc(ctx, user, id)
	}
	return nil, nil
}

func (m *mockOnboardingService) Skip(ctx context.Context, user *domain.User, id uuid.UUID) (*domain.Wizard, error) {
	if m.SkipFunc != nil {
		return m.SkipFunc(ctx, user, id)
	}
	return nil, nil
}

func (m *mockOnboardingService) Edit(ctx context.Context, user *domain.User, id uuid.UUID, edit service.DraftEdit) (*domain.Wizard, error) {
	if m.EditFunc != nil {
		return m.EditFunc(ctx, user, id, edit)
	}
	return nil, nil
}

func (m *mockOnboardingService) PopFlash(ctx context.Context, w *domain.Wizard) (string, error) {
	if m.PopFlashFunc != nil {
		return m.PopFlashFunc(ctx, w)
	}
	return w.PopFlash(), nil
}

func (m *mockOnboardingService) PurgeExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	return 0, nil
}

// =============================================================================
// Mock DirectoryService
// =============================================================================

type mockDirectoryService struct {
	ListBuildingsFunc func(ctx context.Context) ([]domain.Building, error)
	ListUnitsFunc     func(ctx context.Context, buildingID string) ([]domain.Unit, error)
	GetCustomerFunc   func(ctx context.Context, id string) (*domain.Customer, error)
}

func (m *mockDirectoryService) ListBuildings(ctx context.Context) ([]domain.Building, error) {
	if m.ListBuildingsFunc != nil {
		return m.ListBuildingsFunc(ctx)
	}
	return []domain.Building{{ID: "b1", Name: "Sunrise Court", LandlordName: "Jane"}}, nil
}

func (m *mockDirectoryService) ListUnits(ctx context.Context, buildingID string) ([]domain.Unit, error) {
	if m.ListUnitsFunc != nil {
		return m.ListUnitsFunc(ctx, buildingID)
	}
	return nil, nil
}

func (m *mockDirectoryService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	if m.GetCustomerFunc != nil {
		return m.GetCustomerFunc(ctx, id)
	}
	return nil, domain.NotFound("directory.get_customer", "customer", id)
}

// =============================================================================
// Mock ImportService
// =============================================================================

type mockImportService struct {
	UploadFunc   func(ctx context.Context, user *domain.User, req service.ImportRequest) (*service.ImportOutcome, error)
	TemplateFunc func(ctx context.Context, format string) (*api.Template, error)
}

func (m *mockImportService) Upload(ctx context.Context, user *domain.User, req service.ImportRequest) (*service.ImportOutcome, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, user, req)
	}
	return &service.ImportOutcome{}, nil
}

func (m *mockImportService) Template(ctx context.Context, format string) (*api.Template, error) {
	if m.TemplateFunc != nil {
		return m.TemplateFunc(ctx, format)
	}
	return &api.Template{Filename: "customers.csv", ContentType: domain.ContentTypeCSV, Body: []byte("firstName\n")}, nil
}

// =============================================================================
// Mock Renderer
// =============================================================================

// mockRenderer records the last page rendered. Components are rendered for
// real so fragment output can be asserted on.
type mockRenderer struct {
	Name   string
	Data   interface{}
	Status int
	Toast  partials.ToastData
}

func (m *mockRenderer) RenderHTTP(w http.ResponseWriter, name string, data interface{}) {
	m.RenderHTTPStatus(w, name, data, http.StatusOK)
}

func (m *mockRenderer) RenderHTTPStatus(w http.ResponseWriter, name string, data interface{}, status int) {
	m.Name = name
	m.Data = data
	m.Status = status
	w.WriteHeader(status)
}

func (m *mockRenderer) RenderComponent(w http.ResponseWriter, r *http.Request, c templ.Component, toast partials.ToastData) {
	m.Toast = toast
	_ = c.Render(r.Context(), w)
	if toast.Message != "" {
		toast.OOB = true
		_ = partials.Toast(toast).Render(r.Context(), w)
	}
}

// =============================================================================
// Test Helpers
// =============================================================================

// newTestLogger creates a logger that only shows errors.
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}))
}

func testUser() *domain.User {
	return &domain.User{ID: "7", TenantID: "42", FirstName: "Amina", Email: "amina@example.com", Token: "tok"}
}

// withUser attaches the operator the auth middleware would have set.
func withUser(r *http.Request) *http.Request {
	return r.WithContext(auth.SetUser(r.Context(), testUser()))
}
