// Package draft manages the persisted, undoable working copy of one
// in-progress approval session. All mutation is synchronous and local;
// only Open and Commit touch the document store.
package draft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sitewise/procure/internal/domain/entity"
	"github.com/sitewise/procure/internal/domain/workflow"
	"github.com/sitewise/procure/internal/store"
)

var (
	// ErrCommitInFlight is returned when a second commit is attempted
	// for a PR whose previous commit has not resolved yet. Concurrent
	// commits are rejected, never interleaved.
	ErrCommitInFlight = errors.New("a commit for this PR is already in flight")

	// ErrUnknownItem is returned for edits addressing an item that is
	// not on the draft.
	ErrUnknownItem = errors.New("item not in draft")
)

// PRReader loads the live server copy of a PR.
type PRReader interface {
	Get(ctx context.Context, id string) (*entity.ProcurementRequest, error)
}

// Result reports what one committed draft produced.
type Result struct {
	Orders        []*entity.ProcurementOrder
	SentBacks     []*entity.SentBackCategory
	WorkflowState string
}

// Committer applies a finished draft to the document store.
type Committer interface {
	Commit(ctx context.Context, d *entity.Draft) (*Result, error)
}

// Patch is one item edit. Nil fields are left untouched; Status moves
// through the item state machine, everything else is a plain field
// write. The latest in-draft value is always authoritative.
type Patch struct {
	Quantity     *float64
	Comment      *string
	Make         *string
	Tax          *float64
	Status       *string
	SentBackType *string
}

// OpenResult is what Open hands back: the draft plus whether the
// server document moved since the draft's baseline. On conflict the
// approver chooses discard or force-apply; the engine never merges
// silently.
type OpenResult struct {
	Draft          *entity.Draft
	Resumed        bool
	Conflict       bool
	ServerModified time.Time
}

// Manager owns the draft lifecycle for approval sessions.
type Manager struct {
	repo      Repository
	prs       PRReader
	committer Committer
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewManager creates a draft manager.
func NewManager(repo Repository, prs PRReader, committer Committer, logger *zap.Logger) *Manager {
	return &Manager{
		repo:      repo,
		prs:       prs,
		committer: committer,
		logger:    logger,
		now:       time.Now,
		inFlight:  make(map[string]bool),
	}
}

// SetClock overrides the manager clock. Test hook.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Open loads the draft for a PR, creating a fresh one from the live
// document when none (or only an expired one) exists. A draft whose
// baseline no longer matches the server's modified timestamp is
// returned with Conflict set rather than silently loaded.
func (m *Manager) Open(ctx context.Context, prID string) (*OpenResult, error) {
	pr, err := m.prs.Get(ctx, prID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The PR vanished server-side; its draft is worthless.
			_ = m.repo.Delete(ctx, prID)
		}
		return nil, err
	}

	existing, err := m.repo.Get(ctx, prID)
	switch {
	case errors.Is(err, ErrNoDraft):
		existing = nil
	case err != nil:
		return nil, err
	case existing.IsExpired(m.now()):
		m.logger.Info("Purging expired draft", zap.String("pr_id", prID))
		if err := m.repo.Delete(ctx, prID); err != nil {
			return nil, err
		}
		existing = nil
	}

	if existing == nil {
		fresh := m.fork(pr)
		if err := m.repo.Put(ctx, fresh); err != nil {
			return nil, err
		}
		return &OpenResult{Draft: fresh, ServerModified: pr.Modified}, nil
	}

	result := &OpenResult{
		Draft:          existing,
		Resumed:        true,
		ServerModified: pr.Modified,
	}
	if !existing.ServerModifiedAt.Equal(pr.Modified) {
		result.Conflict = true
		m.logger.Warn("Draft baseline diverged from server",
			zap.String("pr_id", prID),
			zap.Time("draft_baseline", existing.ServerModifiedAt),
			zap.Time("server_modified", pr.Modified))
	}
	return result, nil
}

// fork builds a fresh draft from the live PR.
func (m *Manager) fork(pr *entity.ProcurementRequest) *entity.Draft {
	now := m.now()
	d := &entity.Draft{
		PRID:             pr.ID,
		ProjectID:        pr.Project,
		WorkPackage:      pr.WorkPackage,
		CategoryList:     append([]entity.Category(nil), pr.Categories...),
		RFQ:              pr.RFQ.Clone(),
		CreatedAt:        now,
		ServerModifiedAt: pr.Modified,
		LastSavedAt:      now,
	}
	for _, item := range pr.Items {
		d.OrderList = append(d.OrderList, entity.DraftItem{ProcurementItem: item})
	}
	return d
}

// Edit applies a patch to one item: the pre-edit snapshot goes onto
// the undo stack first, then the patch lands and the item is flagged
// modified. Validation failures leave the draft untouched.
func (m *Manager) Edit(ctx context.Context, d *entity.Draft, itemID string, patch Patch) error {
	idx := d.ItemIndex(itemID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	item := d.OrderList[idx]

	if patch.Quantity != nil && *patch.Quantity <= 0 {
		return &entity.ValidationError{Field: "quantity", Reason: "must be > 0"}
	}
	if patch.SentBackType != nil && *patch.SentBackType != "" && !entity.ValidSentBackTypes[*patch.SentBackType] {
		return &entity.ValidationError{Field: "sent_back_type", Reason: fmt.Sprintf("unknown type %q", *patch.SentBackType)}
	}
	if patch.Status != nil {
		if _, err := statusTrigger(item.Status, *patch.Status); err != nil {
			return err
		}
	}

	m.pushSnapshot(d, itemID, idx, &item)

	target := &d.OrderList[idx]
	if patch.Quantity != nil {
		target.Quantity = *patch.Quantity
	}
	if patch.Comment != nil {
		target.Comment = *patch.Comment
	}
	if patch.Make != nil {
		target.Make = *patch.Make
	}
	if patch.Tax != nil {
		target.Tax = *patch.Tax
	}
	if patch.SentBackType != nil {
		target.SentBackType = *patch.SentBackType
	}
	if patch.Status != nil {
		next, _ := statusTrigger(target.Status, *patch.Status)
		target.Status = string(next)
	}
	if !target.IsNew {
		target.IsModified = true
	}
	return m.save(ctx, d)
}

// AddItem appends a new line to the draft.
func (m *Manager) AddItem(ctx context.Context, d *entity.Draft, item entity.ProcurementItem) error {
	if item.ID == "" {
		return &entity.ValidationError{Field: "id", Reason: "required"}
	}
	if d.Item(item.ID) != nil {
		return &entity.ValidationError{Field: "id", Reason: fmt.Sprintf("item %s already on draft", item.ID)}
	}
	if item.Quantity <= 0 {
		return &entity.ValidationError{Field: "quantity", Reason: "must be > 0"}
	}
	if !hasCategory(d.CategoryList, item.Category) {
		return &entity.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", item.Category)}
	}
	if item.Status == "" {
		item.Status = entity.ItemStatusPending
	}

	m.pushSnapshot(d, item.ID, len(d.OrderList), nil)
	d.OrderList = append(d.OrderList, entity.DraftItem{ProcurementItem: item, IsNew: true})
	return m.save(ctx, d)
}

// RemoveItem flags an existing line deleted, or drops it outright if
// it was added in this session and never committed.
func (m *Manager) RemoveItem(ctx context.Context, d *entity.Draft, itemID string) error {
	idx := d.ItemIndex(itemID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	item := d.OrderList[idx]
	m.pushSnapshot(d, itemID, idx, &item)

	if item.IsNew {
		d.OrderList = append(d.OrderList[:idx], d.OrderList[idx+1:]...)
	} else {
		d.OrderList[idx].IsDeleted = true
	}
	return m.save(ctx, d)
}

// SelectVendor records the approver's vendor choice for an item and
// moves it to Approved. The vendor must have quoted the item in this
// draft's RFQ copy.
func (m *Manager) SelectVendor(ctx context.Context, d *entity.Draft, itemID, vendorID string) error {
	idx := d.ItemIndex(itemID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	item := d.OrderList[idx]

	detail := d.RFQ.Detail(itemID)
	q, ok := detail.VendorQuotes[vendorID]
	if !ok || q.Quote == nil {
		return &entity.ValidationError{Field: "vendor", Reason: fmt.Sprintf("vendor %s has not quoted item %s", vendorID, itemID)}
	}
	// Re-pointing an already approved item to another quoting vendor
	// is a plain selection change, not a state transition.
	next := workflow.State(item.Status)
	if next != workflow.StateApproved {
		var err error
		next, err = workflow.Step(next, workflow.TriggerApprove)
		if err != nil {
			return err
		}
	}

	m.pushSnapshot(d, itemID, idx, &item)
	last := &d.UndoStack[len(d.UndoStack)-1]
	pre := *detail
	last.Detail = &pre

	detail.SelectedVendor = vendorID
	d.RFQ.SetDetail(itemID, *detail)
	d.OrderList[idx].Status = string(next)
	d.OrderList[idx].IsModified = true
	return m.save(ctx, d)
}

// SetComment records the request-wide comment carried with the draft.
// Comment edits are not undoable; the latest value simply wins.
func (m *Manager) SetComment(ctx context.Context, d *entity.Draft, comment string) error {
	d.UniversalComment = comment
	return m.save(ctx, d)
}

// Undo pops the last snapshot and restores it. With an empty stack it
// is a no-op without error.
func (m *Manager) Undo(ctx context.Context, d *entity.Draft) error {
	if len(d.UndoStack) == 0 {
		return nil
	}
	snap := d.UndoStack[len(d.UndoStack)-1]
	d.UndoStack = d.UndoStack[:len(d.UndoStack)-1]

	idx := d.ItemIndex(snap.ItemID)
	switch {
	case snap.Before == nil:
		// The edit created the item; undo removes it again.
		if idx >= 0 {
			d.OrderList = append(d.OrderList[:idx], d.OrderList[idx+1:]...)
		}
	case idx >= 0:
		d.OrderList[idx] = *snap.Before
	default:
		// The edit removed a session-new item; put it back.
		pos := snap.Index
		if pos > len(d.OrderList) {
			pos = len(d.OrderList)
		}
		d.OrderList = append(d.OrderList[:pos], append([]entity.DraftItem{*snap.Before}, d.OrderList[pos:]...)...)
	}
	if snap.Detail != nil {
		d.RFQ.SetDetail(snap.ItemID, *snap.Detail)
	}
	return m.save(ctx, d)
}

// Commit hands the draft to the reconciliation service. Only one
// commit per PR may be in flight; concurrent attempts are rejected.
// Success destroys the draft; any failure retains it unchanged, except
// a vanished PR, which invalidates the draft outright.
func (m *Manager) Commit(ctx context.Context, d *entity.Draft) (*Result, error) {
	m.mu.Lock()
	if m.inFlight[d.PRID] {
		m.mu.Unlock()
		return nil, ErrCommitInFlight
	}
	m.inFlight[d.PRID] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inFlight, d.PRID)
		m.mu.Unlock()
	}()

	result, err := m.committer.Commit(ctx, d)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("PR vanished during commit, invalidating draft", zap.String("pr_id", d.PRID))
			_ = m.repo.Delete(ctx, d.PRID)
		}
		return nil, err
	}

	if err := m.repo.Delete(ctx, d.PRID); err != nil {
		// The commit landed; a failed cleanup must not look like a
		// failed commit. The stale draft dies on next Open via the
		// baseline check.
		m.logger.Error("Failed to clear committed draft", zap.String("pr_id", d.PRID), zap.Error(err))
	}
	m.logger.Info("Draft committed", zap.String("pr_id", d.PRID), zap.String("workflow_state", result.WorkflowState))
	return result, nil
}

// Discard drops the draft without committing.
func (m *Manager) Discard(ctx context.Context, prID string) error {
	return m.repo.Delete(ctx, prID)
}

// ForceApply re-baselines a conflicted draft onto the current server
// revision: the approver has chosen to overwrite the concurrent
// change. The draft's content is untouched.
func (m *Manager) ForceApply(ctx context.Context, d *entity.Draft) error {
	pr, err := m.prs.Get(ctx, d.PRID)
	if err != nil {
		return err
	}
	d.ServerModifiedAt = pr.Modified
	return m.save(ctx, d)
}

func hasCategory(categories []entity.Category, name string) bool {
	for _, c := range categories {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (m *Manager) pushSnapshot(d *entity.Draft, itemID string, idx int, before *entity.DraftItem) {
	snap := entity.ItemSnapshot{ItemID: itemID, Index: idx, TakenAt: m.now()}
	if before != nil {
		b := *before
		snap.Before = &b
	}
	d.UndoStack = append(d.UndoStack, snap)
}

func (m *Manager) save(ctx context.Context, d *entity.Draft) error {
	d.LastSavedAt = m.now()
	return m.repo.Put(ctx, d)
}

// statusTrigger maps a target status onto the state machine trigger
// that reaches it, validating the move from the current status.
func statusTrigger(current, target string) (workflow.State, error) {
	var trigger workflow.Trigger
	switch target {
	case entity.ItemStatusQuoted:
		trigger = workflow.TriggerQuoteReceived
	case entity.ItemStatusApproved:
		trigger = workflow.TriggerApprove
	case entity.ItemStatusRejected:
		trigger = workflow.TriggerReject
	case entity.ItemStatusDeferred:
		trigger = workflow.TriggerDefer
	case entity.ItemStatusOrdered:
		// Ordering happens on commit, after vendor and quote are
		// validated. An edit may not place an item there directly.
		return "", &entity.ValidationError{Field: "status", Reason: "items reach ORDERED only through commit"}
	default:
		return "", &entity.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", target)}
	}
	return workflow.Step(workflow.State(current), trigger)
}
