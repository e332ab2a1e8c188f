package sentback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewise/procure/internal/domain/entity"
)

func sentBackPR() *entity.ProcurementRequest {
	q1, q2 := 350.0, 60000.0
	return &entity.ProcurementRequest{
		ID:          "PR-1",
		Project:     "proj-1",
		WorkPackage: "foundation",
		Categories: []entity.Category{
			{Name: "Cement", Makes: []string{"ACC", "Ultratech"}},
			{Name: "Steel", Makes: []string{"Tata"}},
		},
		Items: []entity.ProcurementItem{
			{ID: "item-1", Quantity: 100, Category: "Cement", Status: entity.ItemStatusOrdered},
			{ID: "item-2", Quantity: 5, Category: "Steel", Status: entity.ItemStatusRejected, SentBackType: entity.SentBackTypeRejected},
			{ID: "item-3", Quantity: 50, Category: "Steel", Status: entity.ItemStatusRejected, SentBackType: entity.SentBackTypeRejected},
			{ID: "item-4", Quantity: 20, Category: "Cement", Status: entity.ItemStatusDeferred, SentBackType: entity.SentBackTypeDeferred},
		},
		RFQ: entity.RFQData{
			SelectedVendors: []entity.VendorRef{{ID: "v1"}, {ID: "v2"}},
			Details: map[string]entity.ItemQuoteDetail{
				"item-1": {VendorQuotes: map[string]entity.VendorQuote{"v1": {Quote: &q1}}},
				"item-2": {SelectedVendor: "v2", VendorQuotes: map[string]entity.VendorQuote{"v2": {Quote: &q2}}},
			},
		},
	}
}

func TestSynthesize_BatchesByType(t *testing.T) {
	pr := sentBackPR()

	result := Synthesize(pr)
	require.Len(t, result, 2)

	rejected, deferred := result[0], result[1]
	assert.Equal(t, entity.SentBackTypeRejected, rejected.Type)
	assert.Equal(t, entity.SentBackTypeDeferred, deferred.Type)

	// One document per type present, not one per item
	require.Len(t, rejected.Items, 2)
	assert.Equal(t, "item-2", rejected.Items[0].ID)
	assert.Equal(t, "item-3", rejected.Items[1].ID)
	require.Len(t, deferred.Items, 1)
	assert.Equal(t, "item-4", deferred.Items[0].ID)
}

func TestSynthesize_ForkedItemsRestartPending(t *testing.T) {
	pr := sentBackPR()

	result := Synthesize(pr)
	require.Len(t, result, 2)

	for _, sb := range result {
		assert.Equal(t, "PR-1", sb.ParentPR)
		assert.Equal(t, "proj-1", sb.Project)
		assert.Equal(t, entity.WorkflowStatePending, sb.WorkflowState)
		for _, item := range sb.Items {
			assert.Equal(t, entity.ItemStatusPending, item.Status)
			assert.Empty(t, item.SentBackType)
		}
	}

	// Source rows on the PR are untouched
	assert.Equal(t, entity.ItemStatusRejected, pr.Items[1].Status)
	assert.Equal(t, entity.ItemStatusDeferred, pr.Items[3].Status)
}

func TestSynthesize_CarriesRelevantRFQOnly(t *testing.T) {
	pr := sentBackPR()

	result := Synthesize(pr)
	require.Len(t, result, 2)
	rejected, deferred := result[0], result[1]

	// item-2's quotes travel with the rejected batch, selection dropped
	require.Contains(t, rejected.RFQ.Details, "item-2")
	assert.Empty(t, rejected.RFQ.Details["item-2"].SelectedVendor)
	assert.NotContains(t, rejected.RFQ.Details, "item-1")
	require.Len(t, rejected.RFQ.SelectedVendors, 1)
	assert.Equal(t, "v2", rejected.RFQ.SelectedVendors[0].ID)

	// item-4 had no quotes, so the deferred batch carries none
	assert.Empty(t, deferred.RFQ.Details)
	assert.Empty(t, deferred.RFQ.SelectedVendors)
}

func TestSynthesize_CategoryUnion(t *testing.T) {
	pr := sentBackPR()

	result := Synthesize(pr)
	require.Len(t, result, 2)

	rejected := result[0]
	require.Len(t, rejected.Categories, 1)
	assert.Equal(t, "Steel", rejected.Categories[0].Name)
	assert.Equal(t, []string{"Tata"}, rejected.Categories[0].Makes)

	deferred := result[1]
	require.Len(t, deferred.Categories, 1)
	assert.Equal(t, "Cement", deferred.Categories[0].Name)
}

func TestSynthesize_FallsBackToStatus(t *testing.T) {
	pr := sentBackPR()
	// Approver supplied no explicit selector
	pr.Items[1].SentBackType = ""
	pr.Items[3].SentBackType = ""

	result := Synthesize(pr)
	require.Len(t, result, 2)
	assert.Equal(t, entity.SentBackTypeRejected, result[0].Type)
	assert.Equal(t, entity.SentBackTypeDeferred, result[1].Type)
}

func TestSynthesize_ExplicitSelectorWins(t *testing.T) {
	pr := sentBackPR()
	pr.Items[2].SentBackType = entity.SentBackTypeCancelled

	result := Synthesize(pr)
	require.Len(t, result, 3)
	assert.Equal(t, entity.SentBackTypeRejected, result[0].Type)
	assert.Equal(t, entity.SentBackTypeDeferred, result[1].Type)
	assert.Equal(t, entity.SentBackTypeCancelled, result[2].Type)
	require.Len(t, result[2].Items, 1)
	assert.Equal(t, "item-3", result[2].Items[0].ID)
}

func TestSynthesize_NothingToFork(t *testing.T) {
	pr := sentBackPR()
	for i := range pr.Items {
		pr.Items[i].Status = entity.ItemStatusOrdered
		pr.Items[i].SentBackType = ""
	}

	assert.Empty(t, Synthesize(pr))
}
