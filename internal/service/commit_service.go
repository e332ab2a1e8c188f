// Package service holds the reconciliation/commit service: it applies
// a finished approval draft back to the document store as one logical
// operation.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitewise/procure/internal/domain/entity"
	"github.com/sitewise/procure/internal/domain/workflow"
	"github.com/sitewise/procure/internal/draft"
	"github.com/sitewise/procure/internal/selection"
	"github.com/sitewise/procure/internal/sentback"
	"github.com/sitewise/procure/internal/store"
)

// PRRepository is the slice of the PR repository the service needs.
type PRRepository interface {
	Get(ctx context.Context, id string) (*entity.ProcurementRequest, error)
	Update(ctx context.Context, pr *entity.ProcurementRequest, expectedModified time.Time) error
}

// PORepository is the slice of the PO repository the service needs.
type PORepository interface {
	FindMergeable(ctx context.Context, sourceID, vendorID string) (*entity.ProcurementOrder, error)
	Create(ctx context.Context, po *entity.ProcurementOrder) error
	Update(ctx context.Context, po *entity.ProcurementOrder, expectedModified time.Time) error
}

// SentBackRepository is the slice of the sent-back repository the
// service needs.
type SentBackRepository interface {
	FindByParentAndType(ctx context.Context, parentPR, sbType string) (*entity.SentBackCategory, error)
	Create(ctx context.Context, sb *entity.SentBackCategory) error
}

// CommitService reconciles a draft against the store: validate, group
// approved items into POs, synthesize sent-back categories, then write
// the PR with its recomputed workflow state. The store gives no
// multi-document transaction, so every step is idempotent on its
// (source, vendor) or (source, type) key and a retried commit rolls
// forward to the same end state instead of duplicating documents.
type CommitService struct {
	prs       PRRepository
	pos       PORepository
	sentbacks SentBackRepository
	logger    *zap.Logger
}

// NewCommitService creates a new commit service.
func NewCommitService(prs PRRepository, pos PORepository, sentbacks SentBackRepository, logger *zap.Logger) *CommitService {
	return &CommitService{prs: prs, pos: pos, sentbacks: sentbacks, logger: logger}
}

// Commit applies the draft. The draft's ServerModifiedAt is the
// optimistic-concurrency baseline: if the PR moved underneath the
// session, the final write fails with a ConflictError and nothing the
// caller holds is destroyed.
func (s *CommitService) Commit(ctx context.Context, d *entity.Draft) (*draft.Result, error) {
	pr, err := s.prs.Get(ctx, d.PRID)
	if err != nil {
		return nil, err
	}
	if !pr.Modified.Equal(d.ServerModifiedAt) {
		return nil, &store.ConflictError{
			Type:     store.TypeProcurementRequest,
			ID:       pr.ID,
			Expected: d.ServerModifiedAt,
			Actual:   pr.Modified,
		}
	}

	applyDraft(pr, d)

	// Step 1: every approved item must resolve to vendor+quote+make.
	groups, err := selection.Collect(pr.Items, &pr.RFQ)
	if err != nil {
		return nil, err
	}

	// Step 2: create or merge one PO per winning vendor.
	result := &draft.Result{}
	ordered := make(map[string]bool)
	for _, group := range groups {
		po, err := s.placeOrder(ctx, pr, group)
		if err != nil {
			return nil, err
		}
		result.Orders = append(result.Orders, po)
		for _, line := range group.Lines {
			ordered[line.ItemID] = true
		}
	}
	for i := range pr.Items {
		if !ordered[pr.Items[i].ID] {
			continue
		}
		next, err := workflow.Step(workflow.State(pr.Items[i].Status), workflow.TriggerOrder)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", pr.Items[i].ID, err)
		}
		pr.Items[i].Status = string(next)
	}

	// Step 3: fork rejected/deferred items, one document per type.
	for _, sb := range sentback.Synthesize(pr) {
		existing, err := s.sentbacks.FindByParentAndType(ctx, pr.ID, sb.Type)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			// A previous partially-failed commit already forked this
			// batch; converge on it.
			result.SentBacks = append(result.SentBacks, existing)
			continue
		}
		if err := s.sentbacks.Create(ctx, sb); err != nil {
			return nil, err
		}
		s.logger.Info("Sent-back category created",
			zap.String("id", sb.ID),
			zap.String("parent", pr.ID),
			zap.String("type", sb.Type),
			zap.Int("items", len(sb.Items)))
		result.SentBacks = append(result.SentBacks, sb)
	}

	// Step 4: write the PR with its recomputed workflow state.
	pr.WorkflowState = workflow.DeriveWorkflowState(pr.Items, &pr.RFQ)
	if err := s.prs.Update(ctx, pr, d.ServerModifiedAt); err != nil {
		return nil, err
	}

	result.WorkflowState = pr.WorkflowState
	s.logger.Info("Commit applied",
		zap.String("pr", pr.ID),
		zap.String("workflow_state", pr.WorkflowState),
		zap.Int("orders", len(result.Orders)),
		zap.Int("sent_backs", len(result.SentBacks)))
	return result, nil
}

// placeOrder merges a vendor group into the open PO for (source,
// vendor) or creates a new one. Vendors from an earlier round whose PO
// has been dispatched get a fresh PO, never a merge.
func (s *CommitService) placeOrder(ctx context.Context, pr *entity.ProcurementRequest, group selection.VendorGroup) (*entity.ProcurementOrder, error) {
	existing, err := s.pos.FindMergeable(ctx, pr.ID, group.Vendor.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		selection.Merge(existing, group.Lines)
		if err := s.pos.Update(ctx, existing, existing.Modified); err != nil {
			return nil, err
		}
		s.logger.Info("PO merged",
			zap.String("po", existing.ID),
			zap.String("vendor", group.Vendor.ID),
			zap.Int("lines", len(group.Lines)))
		return existing, nil
	}

	po := selection.NewOrder(group, pr.Project, pr.ID, "")
	if err := s.pos.Create(ctx, po); err != nil {
		return nil, err
	}
	s.logger.Info("PO created",
		zap.String("po", po.ID),
		zap.String("vendor", group.Vendor.ID),
		zap.Int("lines", len(po.Items)))
	return po, nil
}

// applyDraft folds the draft's working copies into the loaded PR. The
// latest in-draft value is authoritative for every field it touched.
func applyDraft(pr *entity.ProcurementRequest, d *entity.Draft) {
	items := make([]entity.ProcurementItem, 0, len(d.OrderList))
	live := make(map[string]bool, len(d.OrderList))
	for _, di := range d.OrderList {
		if di.IsDeleted {
			continue
		}
		items = append(items, di.ProcurementItem)
		live[di.ID] = true
	}
	pr.Items = items

	if len(d.CategoryList) > 0 {
		pr.Categories = d.CategoryList
	}
	pr.RFQ = d.RFQ
	// Quote details for lines removed in this session go with them,
	// otherwise the written PR would reference items it no longer has.
	for itemID := range pr.RFQ.Details {
		if !live[itemID] {
			delete(pr.RFQ.Details, itemID)
		}
	}
	if d.UniversalComment != "" {
		pr.Comment = d.UniversalComment
	}
}
