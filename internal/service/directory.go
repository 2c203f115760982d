// Package service contains the business logic layer.
//
// This file implements building, unit and customer lookups.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/taqa/internal/domain"
)

// Messages for failed lookups.
const (
	MsgBuildingsFailed = "Failed to load buildings"
	MsgUnitsFailed     = "Failed to load units"
)

// DirectoryService reads buildings, units and customers from the backend.
type DirectoryService interface {
	ListBuildings(ctx context.Context) ([]domain.Building, error)

	// ListUnits returns the units of a building. An empty building id
	// yields no units and no backend call.
	ListUnits(ctx context.Context, buildingID string) ([]domain.Unit, error)

	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
}

type directoryService struct {
	backend Backend
	logger  *slog.Logger
}

// NewDirectoryService creates a new DirectoryService.
func NewDirectoryService(backend Backend, logger *slog.Logger) DirectoryService {
	return &directoryService{backend: backend, logger: logger}
}

func (s *directoryService) ListBuildings(ctx context.Context) ([]domain.Building, error) {
	buildings, err := s.backend.ListBuildings(ctx)
	if err != nil {
		s.logger.Warn("failed to load buildings", "error", err)
		return nil, err
	}
	return buildings, nil
}

func (s *directoryService) ListUnits(ctx context.Context, buildingID string) ([]domain.Unit, error) {
	buildingID = strings.TrimSpace(buildingID)
	if buildingID == "" {
		return nil, nil
	}
	units, err := s.backend.ListUnits(ctx, buildingID)
	if err != nil {
		s.logger.Warn("failed to load units", "building_id", buildingID, "error", err)
		return nil, err
	}
	return units, nil
}

func (s *directoryService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	const op = "directory.get_customer"

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NotFound(op, "customer", id)
	}
	return s.backend.GetCustomer(ctx, id)
}

// BuildingsFailureMessage is the flash for a failed building list.
func BuildingsFailureMessage(err error) string {
	if domain.RedirectsToLogin(err) {
		return domain.MsgUnauthorized
	}
	return MsgBuildingsFailed
}

// UnitsFailureMessage is the flash for a failed unit list: the server's
// message when it sent one.
func UnitsFailureMessage(err error) string {
	if domain.RedirectsToLogin(err) {
		return domain.MsgUnauthorized
	}
	return messageOr(serverMessage(err), MsgUnitsFailed)
}

// serverMessage returns the message the backend sent with a failed
// response, or "" when there was no response or no message.
func serverMessage(err error) string {
	var e *domain.Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Message
	}
	return ""
}
