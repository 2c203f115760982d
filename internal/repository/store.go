package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/taqa/internal/domain"
)

// WizardStore persists onboarding wizard drafts between requests.
type WizardStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Wizard, error)
	Save(ctx context.Context, w *domain.Wizard) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

var (
	_ WizardStore = (*PostgresWizardStore)(nil)
	_ WizardStore = (*MemoryWizardStore)(nil)
)

// =============================================================================
// Postgres
// =============================================================================

// PostgresWizardStore keeps drafts in the wizard_drafts table as JSONB.
type PostgresWizardStore struct {
	queries *Queries
}

// NewPostgresWizardStore creates a store over an open database.
func NewPostgresWizardStore(db DBTX) *PostgresWizardStore {
	return &PostgresWizardStore{queries: New(db)}
}

func (s *PostgresWizardStore) Get(ctx context.Context, id uuid.UUID) (*domain.Wizard, error) {
	const op = "wizard_store.get"

	row, err := s.queries.GetWizardDraft(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "wizard", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load wizard")
	}

	var w domain.Wizard
	if err := json.Unmarshal(row.Payload, &w); err != nil {
		return nil, domain.Internal(err, op, "failed to decode wizard")
	}
	w.ID = row.ID
	w.CreatedAt = row.CreatedAt
	w.UpdatedAt = row.UpdatedAt
	return &w, nil
}

func (s *PostgresWizardStore) Save(ctx context.Context, w *domain.Wizard) error {
	const op = "wizard_store.save"

	payload, err := json.Marshal(w)
	if err != nil {
		return domain.Internal(err, op, "failed to encode wizard")
	}

	err = s.queries.UpsertWizardDraft(ctx, UpsertWizardDraftParams{
		ID:         w.ID,
		TenantID:   w.TenantID,
		UserID:     w.UserID,
		Step:       int16(w.Step),
		CustomerID: w.CustomerID,
		Payload:    payload,
		CreatedAt:  w.CreatedAt,
		UpdatedAt:  w.UpdatedAt,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to save wizard")
	}
	return nil
}

func (s *PostgresWizardStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.queries.DeleteWizardDraft(ctx, id); err != nil {
		return domain.Internal(err, "wizard_store.delete", "failed to delete wizard")
	}
	return nil
}

func (s *PostgresWizardStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.queries.DeleteWizardDraftsBefore(ctx, before)
	if err != nil {
		return 0, domain.Internal(err, "wizard_store.delete_expired", "failed to purge wizards")
	}
	return n, nil
}

// =============================================================================
// Memory
// =============================================================================

// MemoryWizardStore keeps drafts in process memory. Drafts are lost on
// restart and are not shared between instances.
type MemoryWizardStore struct {
	mu      sync.Mutex
	drafts  map[uuid.UUID][]byte
	updated map[uuid.UUID]time.Time
}

// NewMemoryWizardStore creates an empty store.
func NewMemoryWizardStore() *MemoryWizardStore {
	return &MemoryWizardStore{
		drafts:  make(map[uuid.UUID][]byte),
		updated: make(map[uuid.UUID]time.Time),
	}
}

// Get returns a copy of the stored wizard. Drafts are stored encoded so
// callers never share state with the store.
func (s *MemoryWizardStore) Get(_ context.Context, id uuid.UUID) (*domain.Wizard, error) {
	const op = "wizard_store.get"

	s.mu.Lock()
	raw, ok := s.drafts[id]
	s.mu.Unlock()

	if !ok {
		return nil, domain.NotFound(op, "wizard", id.String())
	}

	var w domain.Wizard
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, domain.Internal(err, op, "failed to decode wizard")
	}
	return &w, nil
}

func (s *MemoryWizardStore) Save(_ context.Context, w *domain.Wizard) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return domain.Internal(err, "wizard_store.save", "failed to encode wizard")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[w.ID] = raw
	s.updated[w.ID] = w.UpdatedAt
	return nil
}

func (s *MemoryWizardStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, id)
	delete(s.updated, id)
	return nil
}

func (s *MemoryWizardStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, at := range s.updated {
		if at.Before(before) {
			delete(s.drafts, id)
			delete(s.updated, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored drafts.
func (s *MemoryWizardStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

// NewWizardStore picks the store for the configured backend.
func NewWizardStore(kind string, db *sql.DB) (WizardStore, error) {
	switch kind {
	case "", "memory":
		return NewMemoryWizardStore(), nil
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres wizard store requires a database")
		}
		return NewPostgresWizardStore(db), nil
	default:
		return nil, fmt.Errorf("unknown wizard store %q", kind)
	}
}
