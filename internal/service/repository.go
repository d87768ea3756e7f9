// internal/service/repository.go
package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"reel-editor/internal/models"
)

// Repository is the row store under ProjectService. Implementations return
// ErrProjectNotFound for unknown ids and never hand out memory they keep.
type Repository interface {
	Insert(ctx context.Context, doc *models.ProjectDocument) error
	Get(ctx context.Context, id uuid.UUID) (*models.ProjectDocument, error)
	// Save replaces project_json, bumps the version and, when status is
	// non-nil, sets the status in the same write.
	Save(ctx context.Context, id uuid.UUID, pj models.ProjectJSON, status *models.Status, at time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns the user's projects in the given status, most recently
	// updated first.
	List(ctx context.Context, userID uuid.UUID, status models.Status) ([]models.ProjectDocument, error)
	Ping(ctx context.Context) error
	Close() error
}

// MemoryRepository keeps projects in process. Used by tests and the
// memory store backend.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]memoryRow
}

// memoryRow holds project_json encoded so stored rows share nothing with
// callers.
type memoryRow struct {
	meta models.ProjectDocument
	pj   []byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[uuid.UUID]memoryRow)}
}

func (r *MemoryRepository) Insert(_ context.Context, doc *models.ProjectDocument) error {
	raw, err := json.Marshal(doc.ProjectJSON)
	if err != nil {
		return err
	}
	meta := *doc
	meta.ProjectJSON = models.ProjectJSON{}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[doc.ID] = memoryRow{meta: meta, pj: raw}
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*models.ProjectDocument, error) {
	r.mu.RLock()
	row, ok := r.rows[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrProjectNotFound
	}
	return row.decode()
}

func (r *MemoryRepository) Save(_ context.Context, id uuid.UUID, pj models.ProjectJSON, status *models.Status, at time.Time) error {
	raw, err := json.Marshal(pj)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return ErrProjectNotFound
	}
	row.pj = raw
	row.meta.Version++
	row.meta.UpdatedAt = at
	if status != nil {
		row.meta.Status = *status
	}
	r.rows[id] = row
	return nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, status models.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return ErrProjectNotFound
	}
	row.meta.Status = status
	row.meta.UpdatedAt = at
	r.rows[id] = row
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrProjectNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, userID uuid.UUID, status models.Status) ([]models.ProjectDocument, error) {
	r.mu.RLock()
	var out []models.ProjectDocument
	for _, row := range r.rows {
		if row.meta.UserID != userID || row.meta.Status != status {
			continue
		}
		doc, err := row.decode()
		if err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		out = append(out, *doc)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }
func (r *MemoryRepository) Close() error             { return nil }

func (row memoryRow) decode() (*models.ProjectDocument, error) {
	doc := row.meta
	if err := json.Unmarshal(row.pj, &doc.ProjectJSON); err != nil {
		return nil, err
	}
	return &doc, nil
}
