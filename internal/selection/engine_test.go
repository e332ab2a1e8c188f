package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewise/procure/internal/domain/entity"
)

func approvedItems() ([]entity.ProcurementItem, *entity.RFQData) {
	q1, q2, q3 := 350.0, 60000.0, 55.0
	items := []entity.ProcurementItem{
		{ID: "item-1", ItemRef: "OPC 53 Grade", Unit: "bag", Quantity: 100, Category: "Cement", Status: entity.ItemStatusApproved},
		{ID: "item-2", ItemRef: "TMT 12mm", Unit: "ton", Quantity: 5, Category: "Steel", Status: entity.ItemStatusApproved},
		{ID: "item-3", ItemRef: "Binding Wire", Unit: "kg", Quantity: 50, Category: "Steel", Status: entity.ItemStatusApproved},
	}
	rfqData := &entity.RFQData{
		SelectedVendors: []entity.VendorRef{{ID: "v1", Name: "Acme"}, {ID: "v2", Name: "BuildMart"}},
		Details: map[string]entity.ItemQuoteDetail{
			"item-1": {
				SelectedVendor: "v1",
				VendorQuotes:   map[string]entity.VendorQuote{"v1": {Quote: &q1, Make: "ACC"}},
			},
			"item-2": {
				SelectedVendor: "v2",
				VendorQuotes:   map[string]entity.VendorQuote{"v2": {Quote: &q2, Make: "Tata"}},
			},
			"item-3": {
				SelectedVendor: "v1",
				VendorQuotes:   map[string]entity.VendorQuote{"v1": {Quote: &q3, Make: "Tata"}},
			},
		},
	}
	return items, rfqData
}

func TestCollect(t *testing.T) {
	items, rfqData := approvedItems()

	groups, err := Collect(items, rfqData)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	// Groups appear in the order their vendor first wins an item
	assert.Equal(t, "v1", groups[0].Vendor.ID)
	require.Len(t, groups[0].Lines, 2)
	assert.Equal(t, "item-1", groups[0].Lines[0].ItemID)
	assert.Equal(t, "item-3", groups[0].Lines[1].ItemID)
	assert.Equal(t, 350.0, groups[0].Lines[0].Quote)
	assert.Equal(t, "ACC", groups[0].Lines[0].Make)

	assert.Equal(t, "v2", groups[1].Vendor.ID)
	require.Len(t, groups[1].Lines, 1)
	assert.Equal(t, "item-2", groups[1].Lines[0].ItemID)
}

func TestCollect_SkipsUnapprovedItems(t *testing.T) {
	items, rfqData := approvedItems()
	items[1].Status = entity.ItemStatusRejected

	groups, err := Collect(items, rfqData)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "v1", groups[0].Vendor.ID)
}

func TestCollect_IncompleteApproval(t *testing.T) {
	items, rfqData := approvedItems()
	delete(rfqData.Details, "item-2")
	detail := rfqData.Details["item-3"]
	detail.SelectedVendor = ""
	rfqData.Details["item-3"] = detail

	groups, err := Collect(items, rfqData)
	assert.Nil(t, groups)

	var incomplete *entity.IncompleteApprovalError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"item-2", "item-3"}, incomplete.ItemIDs)
}

func TestMerge(t *testing.T) {
	po := &entity.ProcurementOrder{
		Items: []entity.POLine{
			{ItemID: "item-1", Make: "ACC", Quantity: 100, Quote: 350},
			{ItemID: "item-2", Make: "Tata", Quantity: 5, Quote: 60000},
		},
	}

	Merge(po, []entity.POLine{
		{ItemID: "item-1", Make: "ACC", Quantity: 120, Quote: 340}, // same key: replaced
		{ItemID: "item-1", Make: "Ultratech", Quantity: 10, Quote: 360}, // new make: appended
		{ItemID: "item-3", Make: "Tata", Quantity: 50, Quote: 55},
	})

	require.Len(t, po.Items, 4)
	assert.Equal(t, 120.0, po.Items[0].Quantity)
	assert.Equal(t, 340.0, po.Items[0].Quote)
	assert.Equal(t, 5.0, po.Items[1].Quantity)
	assert.Equal(t, "Ultratech", po.Items[2].Make)
	assert.Equal(t, "item-3", po.Items[3].ItemID)
}

func TestMerge_Converges(t *testing.T) {
	po := &entity.ProcurementOrder{}
	lines := []entity.POLine{
		{ItemID: "item-1", Make: "ACC", Quantity: 100, Quote: 350},
		{ItemID: "item-2", Make: "Tata", Quantity: 5, Quote: 60000},
	}

	Merge(po, lines)
	Merge(po, lines)

	require.Len(t, po.Items, 2)
	assert.Equal(t, 100.0, po.Items[0].Quantity)
}

func TestNewOrder(t *testing.T) {
	group := VendorGroup{
		Vendor: entity.VendorRef{ID: "v1", Name: "Acme"},
		Lines: []entity.POLine{
			{ItemID: "item-1", Make: "ACC", Quantity: 100, Quote: 350, Tax: 18},
		},
	}

	po := NewOrder(group, "proj-1", "PR-1", "")
	assert.Equal(t, "v1", po.Vendor.ID)
	assert.Equal(t, "proj-1", po.Project)
	assert.Equal(t, "PR-1", po.SourcePR)
	assert.Equal(t, entity.POStatusPending, po.Status)
	require.Len(t, po.Items, 1)
}
