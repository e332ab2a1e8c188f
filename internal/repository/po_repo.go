package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitewise/procure/internal/domain/entity"
	"github.com/sitewise/procure/internal/store"
)

// PORepository reads and writes ProcurementOrder documents. The
// (source, vendor) pair doubles as the idempotency key: FindMergeable
// is the probe the commit service runs before ever creating a PO, so
// retried commits converge on the same document.
type PORepository struct {
	store  store.Store
	logger *zap.Logger
}

// NewPORepository creates a new purchase order repository
func NewPORepository(s store.Store, logger *zap.Logger) *PORepository {
	return &PORepository{store: s, logger: logger}
}

// Get loads and validates one PO.
func (r *PORepository) Get(ctx context.Context, id string) (*entity.ProcurementOrder, error) {
	doc, err := r.store.Get(ctx, store.TypeProcurementOrder, id)
	if err != nil {
		return nil, err
	}
	return decodePO(doc)
}

// Create validates and inserts a new PO, minting an id when absent.
func (r *PORepository) Create(ctx context.Context, po *entity.ProcurementOrder) error {
	if po.ID == "" {
		po.ID = "PO-" + uuid.NewString()
	}
	if po.Status == "" {
		po.Status = entity.POStatusPending
	}
	if err := po.Validate(); err != nil {
		return err
	}
	doc, err := encodePO(po)
	if err != nil {
		return err
	}
	created, err := r.store.Create(ctx, doc)
	if err != nil {
		r.logger.Error("Failed to create PO", zap.String("id", po.ID), zap.String("vendor", po.Vendor.ID), zap.Error(err))
		return err
	}
	po.Modified = created.Modified
	return nil
}

// Update writes the PO back under optimistic concurrency.
func (r *PORepository) Update(ctx context.Context, po *entity.ProcurementOrder, expectedModified time.Time) error {
	if err := po.Validate(); err != nil {
		return err
	}
	doc, err := encodePO(po)
	if err != nil {
		return err
	}
	updated, err := r.store.Update(ctx, doc, expectedModified)
	if err != nil {
		return err
	}
	po.Modified = updated.Modified
	return nil
}

// ListBySource returns all POs synthesized from one source document.
func (r *PORepository) ListBySource(ctx context.Context, sourceID string) ([]*entity.ProcurementOrder, error) {
	docs, err := r.store.List(ctx, store.TypeProcurementOrder, store.Filters{Parent: sourceID})
	if err != nil {
		return nil, err
	}
	return decodePOs(docs)
}

// FindMergeable returns the still-mergeable PO for (source, vendor),
// or nil when none exists. At most one PO per pair is ever active.
func (r *PORepository) FindMergeable(ctx context.Context, sourceID, vendorID string) (*entity.ProcurementOrder, error) {
	docs, err := r.store.List(ctx, store.TypeProcurementOrder, store.Filters{Parent: sourceID, Vendor: vendorID})
	if err != nil {
		return nil, err
	}
	pos, err := decodePOs(docs)
	if err != nil {
		return nil, err
	}
	for _, po := range pos {
		if entity.POAcceptsMerge(po.Status) {
			return po, nil
		}
	}
	return nil, nil
}

func decodePOs(docs []*store.Document) ([]*entity.ProcurementOrder, error) {
	pos := make([]*entity.ProcurementOrder, 0, len(docs))
	for _, doc := range docs {
		po, err := decodePO(doc)
		if err != nil {
			return nil, err
		}
		pos = append(pos, po)
	}
	return pos, nil
}

func encodePO(po *entity.ProcurementOrder) (*store.Document, error) {
	body, err := json.Marshal(po)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PO %s: %w", po.ID, err)
	}
	return &store.Document{
		Type:    store.TypeProcurementOrder,
		ID:      po.ID,
		Project: po.Project,
		Parent:  po.SourceKey(),
		Vendor:  po.Vendor.ID,
		Body:    body,
	}, nil
}

func decodePO(doc *store.Document) (*entity.ProcurementOrder, error) {
	var po entity.ProcurementOrder
	if err := json.Unmarshal(doc.Body, &po); err != nil {
		return nil, fmt.Errorf("failed to unmarshal PO %s: %w", doc.ID, err)
	}
	if err := po.Validate(); err != nil {
		return nil, fmt.Errorf("stored PO %s is invalid: %w", doc.ID, err)
	}
	po.Modified = doc.Modified
	return &po, nil
}
