package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const upsertWizardDraft = `-- name: UpsertWizardDraft :exec
INSERT INTO wizard_drafts (id, tenant_id, user_id, step, customer_id, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    step = EXCLUDED.step,
    customer_id = EXCLUDED.customer_id,
    payload = EXCLUDED.payload,
    updated_at = EXCLUDED.updated_at
`

type UpsertWizardDraftParams struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   string          `json:"tenant_id"`
	UserID     string          `json:"user_id"`
	Step       int16           `json:"step"`
	CustomerID string          `json:"customer_id"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (q *Queries) UpsertWizardDraft(ctx context.Context, arg UpsertWizardDraftParams) error {
	_, err := q.db.ExecContext(ctx, upsertWizardDraft,
		arg.ID,
		arg.TenantID,
		arg.UserID,
		arg.Step,
		arg.CustomerID,
		arg.Payload,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getWizardDraft = `-- name: GetWizardDraft :one
SELECT id, tenant_id, user_id, step, customer_id, payload, created_at, updated_at
FROM wizard_drafts
WHERE id = $1
`

func (q *Queries) GetWizardDraft(ctx context.Context, id uuid.UUID) (WizardDraft, error) {
	row := q.db.QueryRowContext(ctx, getWizardDraft, id)
	var i WizardDraft
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.UserID,
		&i.Step,
		&i.CustomerID,
		&i.Payload,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteWizardDraft = `-- name: DeleteWizardDraft :exec
DELETE FROM wizard_drafts WHERE id = $1
`

func (q *Queries) DeleteWizardDraft(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteWizardDraft, id)
	return err
}

const deleteWizardDraftsBefore = `-- name: DeleteWizardDraftsBefore :execrows
DELETE FROM wizard_drafts WHERE updated_at < $1
`

func (q *Queries) DeleteWizardDraftsBefore(ctx context.Context, updatedAt time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteWizardDraftsBefore, updatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
