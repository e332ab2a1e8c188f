package draft

import (
	"context"
	"errors"
	"sync"

	"github.com/sitewise/procure/internal/domain/entity"
)

// ErrNoDraft is returned when no draft is stored for a PR.
var ErrNoDraft = errors.New("no draft for this PR")

// Repository is the persistence the manager runs against: a plain
// get/set/delete-by-key store holding one draft per PR id. Any
// JSON-capable key-value backend satisfies it; the engine itself holds
// no global state.
type Repository interface {
	Get(ctx context.Context, prID string) (*entity.Draft, error)
	Put(ctx context.Context, d *entity.Draft) error
	Delete(ctx context.Context, prID string) error
}

// MemoryRepository is an in-memory Repository for tests and
// single-process embedding.
type MemoryRepository struct {
	mu     sync.Mutex
	drafts map[string]entity.Draft
}

// NewMemoryRepository creates an empty in-memory draft repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{drafts: make(map[string]entity.Draft)}
}

// Get returns the stored draft for a PR.
func (r *MemoryRepository) Get(_ context.Context, prID string) (*entity.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[prID]
	if !ok {
		return nil, ErrNoDraft
	}
	return &d, nil
}

// Put stores a draft keyed by its PR id.
func (r *MemoryRepository) Put(_ context.Context, d *entity.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[d.PRID] = *d
	return nil
}

// Delete removes the draft for a PR. Deleting an absent draft is fine.
func (r *MemoryRepository) Delete(_ context.Context, prID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, prID)
	return nil
}

// Verify interface compliance
var _ Repository = (*MemoryRepository)(nil)
