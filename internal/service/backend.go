// Package service contains the business logic layer.
//
// Services sit between the HTTP handlers and the REST backend. They own the
// wizard draft lifecycle and decide what the operator is told when a
// backend call fails.
package service

import (
	"context"
	"io"

	"github.com/DukeRupert/taqa/internal/api"
	"github.com/DukeRupert/taqa/internal/domain"
)

// Backend is the REST API as the services use it. *api.Client implements it.
type Backend interface {
	Login(ctx context.Context, params domain.LoginParams) (*domain.User, error)

	ListBuildings(ctx context.Context) ([]domain.Building, error)
	ListUnits(ctx context.Context, buildingID string) ([]domain.Unit, error)

	CreateCustomer(ctx context.Context, req api.CreateCustomerRequest) (*api.Created, error)
	CreateOnboardingInvoice(ctx context.Context, req api.CreateInvoiceRequest) (string, error)
	CreateReading(ctx context.Context, customerID string, r domain.UtilityReading) error
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)

	UploadCustomers(ctx context.Context, buildingID string, file domain.ImportFile, body io.Reader) (*domain.ImportResult, error)
	DownloadCustomerTemplate(ctx context.Context) (*api.Template, error)
}

var _ Backend = (*api.Client)(nil)
