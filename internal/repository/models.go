package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type WizardDraft struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   string          `json:"tenant_id"`
	UserID     string          `json:"user_id"`
	Step       int16           `json:"step"`
	CustomerID string          `json:"customer_id"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
