package draft

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitewise/procure/internal/domain/entity"
	"github.com/sitewise/procure/internal/store"
)

type fakePRs struct {
	mu  sync.Mutex
	pr  *entity.ProcurementRequest
	err error
}

func (f *fakePRs) Get(_ context.Context, id string) (*entity.ProcurementRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.pr == nil || f.pr.ID != id {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	copied := *f.pr
	return &copied, nil
}

type fakeCommitter struct {
	mu      sync.Mutex
	calls   int
	result  *Result
	err     error
	release chan struct{}
}

func (f *fakeCommitter) Commit(_ context.Context, _ *entity.Draft) (*Result, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func draftPR() *entity.ProcurementRequest {
	quote := 350.0
	counter := 340.0
	return &entity.ProcurementRequest{
		ID:            "PR-1",
		Project:       "proj-1",
		WorkPackage:   "foundation",
		WorkflowState: entity.WorkflowStatePending,
		Categories:    []entity.Category{{Name: "Cement", Makes: []string{"ACC"}}},
		Items: []entity.ProcurementItem{
			{ID: "item-1", Quantity: 100, Category: "Cement", Status: entity.ItemStatusQuoted},
			{ID: "item-2", Quantity: 5, Category: "Cement", Status: entity.ItemStatusPending},
		},
		RFQ: entity.RFQData{
			SelectedVendors: []entity.VendorRef{{ID: "v1", Name: "Acme"}, {ID: "v2", Name: "BuildCo"}},
			Details: map[string]entity.ItemQuoteDetail{
				"item-1": {VendorQuotes: map[string]entity.VendorQuote{
					"v1": {Quote: &quote, Make: "ACC"},
					"v2": {Quote: &counter, Make: "ACC"},
				}},
			},
		},
		Modified: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func newTestManager(t *testing.T) (*Manager, *fakePRs, *fakeCommitter) {
	t.Helper()
	prs := &fakePRs{pr: draftPR()}
	committer := &fakeCommitter{result: &Result{WorkflowState: entity.WorkflowStateApproved}}
	m := NewManager(NewMemoryRepository(), prs, committer, zap.NewNop())
	return m, prs, committer
}

func TestManager_OpenCreatesFreshDraft(t *testing.T) {
	m, prs, _ := newTestManager(t)

	result, err := m.Open(context.Background(), "PR-1")
	require.NoError(t, err)

	assert.False(t, result.Resumed)
	assert.False(t, result.Conflict)
	assert.Equal(t, prs.pr.Modified, result.Draft.ServerModifiedAt)
	require.Len(t, result.Draft.OrderList, 2)
	assert.Equal(t, "item-1", result.Draft.OrderList[0].ID)
	assert.Empty(t, result.Draft.UndoStack)
}

func TestManager_OpenResumesExistingDraft(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)

	qty := 120.0
	require.NoError(t, m.Edit(ctx, first.Draft, "item-1", Patch{Quantity: &qty}))

	second, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.False(t, second.Conflict)
	assert.Equal(t, 120.0, second.Draft.Item("item-1").Quantity)
}

func TestManager_OpenDetectsConflict(t *testing.T) {
	m, prs, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)

	// Someone else saved the PR while the draft sat idle
	prs.pr.Modified = prs.pr.Modified.Add(time.Minute)

	second, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.True(t, second.Conflict)
	assert.Equal(t, first.Draft.ServerModifiedAt, second.Draft.ServerModifiedAt)
	assert.Equal(t, prs.pr.Modified, second.ServerModified)
}

func TestManager_OpenPurgesExpiredDraft(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return base })

	first, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	qty := 120.0
	require.NoError(t, m.Edit(ctx, first.Draft, "item-1", Patch{Quantity: &qty}))

	// One minute short of the TTL the draft still resumes
	m.SetClock(func() time.Time { return base.Add(entity.DraftTTL - time.Minute) })
	kept, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	assert.True(t, kept.Resumed)

	// Past the TTL it is purged and a fresh draft forked
	m.SetClock(func() time.Time { return base.Add(entity.DraftTTL + time.Minute) })
	fresh, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	assert.False(t, fresh.Resumed)
	assert.Equal(t, 100.0, fresh.Draft.Item("item-1").Quantity)
}

func TestManager_EditAndUndo(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	d := result.Draft

	qty := 120.0
	comment := "revised after site visit"
	require.NoError(t, m.Edit(ctx, d, "item-1", Patch{Quantity: &qty, Comment: &comment}))

	item := d.Item("item-1")
	assert.Equal(t, 120.0, item.Quantity)
	assert.Equal(t, comment, item.Comment)
	assert.True(t, item.IsModified)
	require.Len(t, d.UndoStack, 1)

	require.NoError(t, m.Undo(ctx, d))
	item = d.Item("item-1")
	assert.Equal(t, 100.0, item.Quantity)
	assert.Empty(t, item.Comment)
	assert.False(t, item.IsModified)
	assert.Empty(t, d.UndoStack)
}

func TestManager_EditValidation(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	d := result.Draft

	bad := -5.0
	err = m.Edit(ctx, d, "item-1", Patch{Quantity: &bad})
	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)

	unknown := "SENT_TO_MARS"
	err = m.Edit(ctx, d, "item-1", Patch{SentBackType: &unknown})
	require.ErrorAs(t, err, &verr)

	// item-2 is still Pending; approval requires a quote first
	status := entity.ItemStatusApproved
	err = m.Edit(ctx, d, "item-2", Patch{Status: &status})
	require.Error(t, err)

	err = m.Edit(ctx, d, "missing", Patch{})
	assert.ErrorIs(t, err, ErrUnknownItem)

	// Failed edits never leave snapshots behind
	assert.Empty(t, d.UndoStack)
	assert.Equal(t, 100.0, d.Item("item-1").Quantity)
}

func TestManager_EditStatusThroughMachine(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	d := result.Draft

	status := entity.ItemStatusRejected
	sbType := entity.SentBackTypeDelayed
	require.NoError(t, m.Edit(ctx, d, "item-1", Patch{Status: &status, SentBackType: &sbType}))

	item := d.Item("item-1")
	assert.Equal(t, entity.ItemStatusRejected, item.Status)
	assert.Equal(t, entity.SentBackTypeDelayed, item.SentBackType)
}

func TestManager_EditCannotOrder(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	d := result.Draft

	require.NoError(t, m.SelectVendor(ctx, d, "item-1", "v1"))
	require.Equal(t, entity.ItemStatusApproved, d.Item("item-1").Status)

	// Ordering is the commit's job; an edit cannot jump an item there,
	// not even from Approved.
	status := entity.ItemStatusOrdered
	err = m.Edit(ctx, d, "item-1", Patch{Status: &status})
	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, entity.ItemStatusApproved, d.Item("item-1").Status)
}

func TestManager_AddAndRemoveItem(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	d := result.Draft

	err = m.AddItem(ctx, d, entity.ProcurementItem{ID: "item-1", Quantity: 1, Category: "Cement"})
	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)

	// The category must already be on the draft's category list
	err = m.AddItem(ctx, d, entity.ProcurementItem{ID: "item-3", Quantity: 10, Category: "Paint"})
	require.ErrorAs(t, err, &verr)
	assert.Nil(t, d.Item("item-3"))
	assert.Empty(t, d.UndoStack)

	require.NoError(t, m.AddItem(ctx, d, entity.ProcurementItem{ID: "item-3", Quantity: 10, Category: "Cement"}))
	added := d.Item("item-3")
	require.NotNil(t, added)
	assert.True(t, added.IsNew)
	assert.Equal(t, entity.ItemStatusPending, added.Status)

	// Session-new items vanish outright on removal
	require.NoError(t, m.RemoveItem(ctx, d, "item-3"))
	assert.Nil(t, d.Item("item-3"))

	// Pre-existing items are only flagged
	require.NoError(t, m.RemoveItem(ctx, d, "item-2"))
	assert.True(t, d.Item("item-2").IsDeleted)
}

func TestManager_UndoCreation(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	d := result.Draft

	require.NoError(t, m.AddItem(ctx, d, entity.ProcurementItem{ID: "item-3", Quantity: 10, Category: "Cement"}))
	require.NoError(t, m.Undo(ctx, d))
	assert.Nil(t, d.Item("item-3"))
	assert.Len(t, d.OrderList, 2)
}

func TestManager_UndoRemoval(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	d := result.Draft

	require.NoError(t, m.RemoveItem(ctx, d, "item-2"))
	require.NoError(t, m.Undo(ctx, d))
	item := d.Item("item-2")
	require.NotNil(t, item)
	assert.False(t, item.IsDeleted)
}

func TestManager_UndoEmptyStackIsNoOp(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)

	require.NoError(t, m.Undo(ctx, result.Draft))
	assert.Len(t, result.Draft.OrderList, 2)
}

func TestManager_SelectVendor(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	d := result.Draft

	// item-2 has no quote from v1
	err = m.SelectVendor(ctx, d, "item-2", "v1")
	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)

	require.NoError(t, m.SelectVendor(ctx, d, "item-1", "v1"))
	assert.Equal(t, entity.ItemStatusApproved, d.Item("item-1").Status)
	assert.Equal(t, "v1", d.RFQ.Details["item-1"].SelectedVendor)

	// Undo reverses both the status move and the selection
	require.NoError(t, m.Undo(ctx, d))
	assert.Equal(t, entity.ItemStatusQuoted, d.Item("item-1").Status)
	assert.Empty(t, d.RFQ.Details["item-1"].SelectedVendor)
}

func TestManager_ReselectVendor(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	d := result.Draft

	require.NoError(t, m.SelectVendor(ctx, d, "item-1", "v1"))
	require.Equal(t, entity.ItemStatusApproved, d.Item("item-1").Status)

	// Changing one's mind re-points the selection without needing a
	// detour through another status first
	require.NoError(t, m.SelectVendor(ctx, d, "item-1", "v2"))
	assert.Equal(t, entity.ItemStatusApproved, d.Item("item-1").Status)
	assert.Equal(t, "v2", d.RFQ.Details["item-1"].SelectedVendor)

	// Undo steps back to the first choice, then to none
	require.NoError(t, m.Undo(ctx, d))
	assert.Equal(t, "v1", d.RFQ.Details["item-1"].SelectedVendor)
	assert.Equal(t, entity.ItemStatusApproved, d.Item("item-1").Status)

	require.NoError(t, m.Undo(ctx, d))
	assert.Empty(t, d.RFQ.Details["item-1"].SelectedVendor)
	assert.Equal(t, entity.ItemStatusQuoted, d.Item("item-1").Status)
}

func TestManager_UndoIsExactInverse(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	d := result.Draft

	before := make([]entity.DraftItem, len(d.OrderList))
	copy(before, d.OrderList)

	qty := 75.0
	status := entity.ItemStatusDeferred
	require.NoError(t, m.Edit(ctx, d, "item-1", Patch{Quantity: &qty}))
	require.NoError(t, m.Edit(ctx, d, "item-2", Patch{Status: &status}))
	require.NoError(t, m.AddItem(ctx, d, entity.ProcurementItem{ID: "item-9", Quantity: 1, Category: "Cement"}))

	require.NoError(t, m.Undo(ctx, d))
	require.NoError(t, m.Undo(ctx, d))
	require.NoError(t, m.Undo(ctx, d))

	assert.Equal(t, before, d.OrderList)
	assert.Empty(t, d.UndoStack)
}

func TestManager_SetComment(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)

	require.NoError(t, m.SetComment(ctx, result.Draft, "hold steel until rate check"))
	assert.Empty(t, result.Draft.UndoStack)

	reopened, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	assert.Equal(t, "hold steel until rate check", reopened.Draft.UniversalComment)
}

func TestManager_CommitDestroysDraft(t *testing.T) {
	m, _, committer := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)

	commit, err := m.Commit(ctx, result.Draft)
	require.NoError(t, err)
	assert.Equal(t, entity.WorkflowStateApproved, commit.WorkflowState)
	assert.Equal(t, 1, committer.calls)

	// The draft is gone; the next open forks a fresh one
	reopened, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	assert.False(t, reopened.Resumed)
}

func TestManager_CommitFailureRetainsDraft(t *testing.T) {
	m, _, committer := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)

	committer.err = &store.ConflictError{Type: store.TypeProcurementRequest, ID: "PR-1"}
	_, err = m.Commit(ctx, result.Draft)
	require.Error(t, err)
	assert.True(t, store.IsConflict(err))

	reopened, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	assert.True(t, reopened.Resumed)
}

func TestManager_CommitVanishedPRInvalidatesDraft(t *testing.T) {
	m, _, committer := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)

	committer.err = fmt.Errorf("%w: PR-1", store.ErrNotFound)
	_, err = m.Commit(ctx, result.Draft)
	require.ErrorIs(t, err, store.ErrNotFound)

	reopened, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	assert.False(t, reopened.Resumed)
}

func TestManager_CommitSingleFlight(t *testing.T) {
	m, _, committer := newTestManager(t)
	ctx := context.Background()

	result, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)

	committer.release = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := m.Commit(ctx, result.Draft)
		done <- err
	}()

	// Wait for the first commit to enter the committer
	require.Eventually(t, func() bool {
		committer.mu.Lock()
		defer committer.mu.Unlock()
		return committer.calls == 1
	}, time.Second, time.Millisecond)

	_, err = m.Commit(ctx, result.Draft)
	assert.ErrorIs(t, err, ErrCommitInFlight)

	close(committer.release)
	require.NoError(t, <-done)
}

func TestManager_Discard(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	qty := 1.0
	require.NoError(t, m.Edit(ctx, first.Draft, "item-1", Patch{Quantity: &qty}))

	require.NoError(t, m.Discard(ctx, "PR-1"))

	fresh, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	assert.False(t, fresh.Resumed)
	assert.Equal(t, 100.0, fresh.Draft.Item("item-1").Quantity)
}

func TestManager_ForceApplyRebaselines(t *testing.T) {
	m, prs, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)

	prs.pr.Modified = prs.pr.Modified.Add(time.Minute)
	conflicted, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	require.True(t, conflicted.Conflict)

	require.NoError(t, m.ForceApply(ctx, conflicted.Draft))
	assert.Equal(t, prs.pr.Modified, conflicted.Draft.ServerModifiedAt)
	assert.NotEqual(t, first.Draft.ServerModifiedAt, conflicted.Draft.ServerModifiedAt)

	resolved, err := m.Open(ctx, "PR-1")
	require.NoError(t, err)
	assert.False(t, resolved.Conflict)
}
