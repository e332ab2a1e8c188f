// Package repository layers typed access over the generic document
// store. Every document is deserialized and validated at this
// boundary; untyped bodies never travel further into the engine.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitewise/procure/internal/domain/entity"
	"github.com/sitewise/procure/internal/store"
)

// PRRepository reads and writes ProcurementRequest documents.
type PRRepository struct {
	store  store.Store
	logger *zap.Logger
}

// NewPRRepository creates a new procurement request repository
func NewPRRepository(s store.Store, logger *zap.Logger) *PRRepository {
	return &PRRepository{store: s, logger: logger}
}

// Get loads and validates one PR.
func (r *PRRepository) Get(ctx context.Context, id string) (*entity.ProcurementRequest, error) {
	doc, err := r.store.Get(ctx, store.TypeProcurementRequest, id)
	if err != nil {
		return nil, err
	}
	return decodePR(doc)
}

// Create validates and inserts a new PR.
func (r *PRRepository) Create(ctx context.Context, pr *entity.ProcurementRequest) error {
	if err := pr.Validate(); err != nil {
		return err
	}
	doc, err := encodePR(pr)
	if err != nil {
		return err
	}
	created, err := r.store.Create(ctx, doc)
	if err != nil {
		r.logger.Error("Failed to create PR", zap.String("id", pr.ID), zap.Error(err))
		return err
	}
	pr.Modified = created.Modified
	return nil
}

// Update writes the PR back under optimistic concurrency against
// expectedModified. On success pr.Modified carries the new stamp.
func (r *PRRepository) Update(ctx context.Context, pr *entity.ProcurementRequest, expectedModified time.Time) error {
	if err := pr.Validate(); err != nil {
		return err
	}
	doc, err := encodePR(pr)
	if err != nil {
		return err
	}
	updated, err := r.store.Update(ctx, doc, expectedModified)
	if err != nil {
		return err
	}
	pr.Modified = updated.Modified
	return nil
}

// ListByProject returns all PRs for a project.
func (r *PRRepository) ListByProject(ctx context.Context, project string) ([]*entity.ProcurementRequest, error) {
	docs, err := r.store.List(ctx, store.TypeProcurementRequest, store.Filters{Project: project})
	if err != nil {
		return nil, err
	}
	prs := make([]*entity.ProcurementRequest, 0, len(docs))
	for _, doc := range docs {
		pr, err := decodePR(doc)
		if err != nil {
			return nil, err
		}
		prs = append(prs, pr)
	}
	return prs, nil
}

func encodePR(pr *entity.ProcurementRequest) (*store.Document, error) {
	body, err := json.Marshal(pr)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PR %s: %w", pr.ID, err)
	}
	return &store.Document{
		Type:    store.TypeProcurementRequest,
		ID:      pr.ID,
		Project: pr.Project,
		Body:    body,
	}, nil
}

func decodePR(doc *store.Document) (*entity.ProcurementRequest, error) {
	var pr entity.ProcurementRequest
	if err := json.Unmarshal(doc.Body, &pr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal PR %s: %w", doc.ID, err)
	}
	if err := pr.Validate(); err != nil {
		return nil, fmt.Errorf("stored PR %s is invalid: %w", doc.ID, err)
	}
	pr.Modified = doc.Modified
	return &pr, nil
}
