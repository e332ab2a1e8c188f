package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitewise/procure/internal/domain/entity"
	"github.com/sitewise/procure/internal/store"
)

// SentBackRepository reads and writes SentBackCategory documents. The
// (parent PR, type) pair is the idempotency key mirrored in the
// store's sub_type index.
type SentBackRepository struct {
	store  store.Store
	logger *zap.Logger
}

// NewSentBackRepository creates a new sent-back category repository
func NewSentBackRepository(s store.Store, logger *zap.Logger) *SentBackRepository {
	return &SentBackRepository{store: s, logger: logger}
}

// Get loads and validates one sent-back category.
func (r *SentBackRepository) Get(ctx context.Context, id string) (*entity.SentBackCategory, error) {
	doc, err := r.store.Get(ctx, store.TypeSentBackCategory, id)
	if err != nil {
		return nil, err
	}
	return decodeSentBack(doc)
}

// Create validates and inserts a new sent-back category.
func (r *SentBackRepository) Create(ctx context.Context, sb *entity.SentBackCategory) error {
	if sb.ID == "" {
		sb.ID = "SB-" + uuid.NewString()
	}
	if sb.WorkflowState == "" {
		sb.WorkflowState = entity.WorkflowStatePending
	}
	if err := sb.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(sb)
	if err != nil {
		return fmt.Errorf("failed to marshal sent-back %s: %w", sb.ID, err)
	}
	created, err := r.store.Create(ctx, &store.Document{
		Type:    store.TypeSentBackCategory,
		ID:      sb.ID,
		Project: sb.Project,
		Parent:  sb.ParentPR,
		SubType: sb.Type,
		Body:    body,
	})
	if err != nil {
		r.logger.Error("Failed to create sent-back category",
			zap.String("id", sb.ID), zap.String("parent", sb.ParentPR), zap.String("type", sb.Type), zap.Error(err))
		return err
	}
	sb.Modified = created.Modified
	return nil
}

// FindByParentAndType returns the sent-back category for the
// idempotency key (parent PR, type), or nil when none exists yet.
func (r *SentBackRepository) FindByParentAndType(ctx context.Context, parentPR, sbType string) (*entity.SentBackCategory, error) {
	docs, err := r.store.List(ctx, store.TypeSentBackCategory, store.Filters{Parent: parentPR, SubType: sbType})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeSentBack(docs[0])
}

// ListByParent returns all sent-back categories forked from a PR.
func (r *SentBackRepository) ListByParent(ctx context.Context, parentPR string) ([]*entity.SentBackCategory, error) {
	docs, err := r.store.List(ctx, store.TypeSentBackCategory, store.Filters{Parent: parentPR})
	if err != nil {
		return nil, err
	}
	sbs := make([]*entity.SentBackCategory, 0, len(docs))
	for _, doc := range docs {
		sb, err := decodeSentBack(doc)
		if err != nil {
			return nil, err
		}
		sbs = append(sbs, sb)
	}
	return sbs, nil
}

func decodeSentBack(doc *store.Document) (*entity.SentBackCategory, error) {
	var sb entity.SentBackCategory
	if err := json.Unmarshal(doc.Body, &sb); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sent-back %s: %w", doc.ID, err)
	}
	if err := sb.Validate(); err != nil {
		return nil, fmt.Errorf("stored sent-back %s is invalid: %w", doc.ID, err)
	}
	sb.Modified = doc.Modified
	return &sb, nil
}
