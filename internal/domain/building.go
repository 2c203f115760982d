// Package domain contains core business types and interfaces.
//
// This file defines buildings and units as listed by the backend for the
// cascading building/unit selectors.
package domain

import "fmt"

// =============================================================================
// Unit Status
// =============================================================================

// UnitStatus is the occupancy state the backend reports for a unit.
type UnitStatus string

const (
	UnitStatusVacant                 UnitStatus = "VACANT"
	UnitStatusOccupied               UnitStatus = "OCCUPIED"
	UnitStatusOccupiedPendingPayment UnitStatus = "OCCUPIED_PENDING_PAYMENT"
	UnitStatusMaintenance            UnitStatus = "MAINTENANCE"
)

// IsOccupied returns true for the statuses that block assigning a customer.
func (s UnitStatus) IsOccupied() bool {
	return s == UnitStatusOccupied || s == UnitStatusOccupiedPendingPayment
}

// =============================================================================
// Building and Unit
// =============================================================================

// Building is a building option for the selector.
type Building struct {
	ID           string
	Name         string
	LandlordName string
}

// Label renders "Name (Landlord: X)".
func (b Building) Label() string {
	landlord := b.LandlordName
	if landlord == "" {
		landlord = "Unknown"
	}
	return fmt.Sprintf("%s (Landlord: %s)", b.Name, landlord)
}

// Unit is a unit option within a building.
type Unit struct {
	ID         string
	UnitNumber string
	Status     UnitStatus
}

// Selectable returns false for occupied units. They are still listed.
func (u Unit) Selectable() bool {
	return !u.Status.IsOccupied()
}

// SelectUnit resolves a posted unit id against the building's units.
// An empty id is a valid "no unit". Occupied or unknown units are refused
// and yield an empty id.
func SelectUnit(units []Unit, unitID string) (string, error) {
	const op = "unit.select"

	if unitID == "" {
		return "", nil
	}
	for _, u := range units {
		if u.ID != unitID {
			continue
		}
		if !u.Selectable() {
			return "", NewValidationError(op, "unitId", "Unit is occupied")
		}
		return u.ID, nil
	}
	return "", NewValidationError(op, "unitId", "Unit not found in building")
}
