package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *ProcurementRequest {
	quote := 350.0
	return &ProcurementRequest{
		ID:         "PR-1",
		Project:    "proj-1",
		Categories: []Category{{Name: "Cement", Makes: []string{"ACC"}}},
		Items: []ProcurementItem{
			{ID: "item-1", Quantity: 100, Category: "Cement", Status: ItemStatusQuoted},
		},
		RFQ: RFQData{
			SelectedVendors: []VendorRef{{ID: "v1"}},
			Details: map[string]ItemQuoteDetail{
				"item-1": {VendorQuotes: map[string]VendorQuote{"v1": {Quote: &quote}}},
			},
		},
	}
}

func TestProcurementRequestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ProcurementRequest)
		field  string
	}{
		{"valid", func(pr *ProcurementRequest) {}, ""},
		{"missing id", func(pr *ProcurementRequest) { pr.ID = "" }, "id"},
		{"missing project", func(pr *ProcurementRequest) { pr.Project = "" }, "project"},
		{"zero quantity", func(pr *ProcurementRequest) { pr.Items[0].Quantity = 0 }, "item_list.quantity"},
		{"unknown category", func(pr *ProcurementRequest) { pr.Items[0].Category = "Paint" }, "item_list.category"},
		{"duplicate item", func(pr *ProcurementRequest) {
			pr.Items = append(pr.Items, pr.Items[0])
		}, "item_list.id"},
		{"bad sent-back type", func(pr *ProcurementRequest) { pr.Items[0].SentBackType = "LOST" }, "item_list.sent_back_type"},
		{"quote for unknown item", func(pr *ProcurementRequest) {
			pr.RFQ.Details["ghost"] = ItemQuoteDetail{}
		}, "rfq_data.details"},
		{"quote from unselected vendor", func(pr *ProcurementRequest) {
			quote := 10.0
			d := pr.RFQ.Details["item-1"]
			d.VendorQuotes["v9"] = VendorQuote{Quote: &quote}
			pr.RFQ.Details["item-1"] = d
		}, "rfq_data.details"},
		{"negative quote", func(pr *ProcurementRequest) {
			bad := -1.0
			d := pr.RFQ.Details["item-1"]
			d.VendorQuotes["v1"] = VendorQuote{Quote: &bad}
			pr.RFQ.Details["item-1"] = d
		}, "rfq_data.details"},
		{"duplicate vendor", func(pr *ProcurementRequest) {
			pr.RFQ.SelectedVendors = append(pr.RFQ.SelectedVendors, VendorRef{ID: "v1"})
		}, "rfq_data.selected_vendors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := validRequest()
			tt.mutate(pr)
			err := pr.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestRFQDataClone(t *testing.T) {
	pr := validRequest()
	clone := pr.RFQ.Clone()

	// Mutating the clone leaves the source untouched
	d := clone.Details["item-1"]
	*d.VendorQuotes["v1"].Quote = 999
	d.SelectedVendor = "v1"
	clone.Details["item-1"] = d
	clone.SelectedVendors[0].Name = "renamed"

	assert.Equal(t, 350.0, *pr.RFQ.Details["item-1"].VendorQuotes["v1"].Quote)
	assert.Empty(t, pr.RFQ.Details["item-1"].SelectedVendor)
	assert.Empty(t, pr.RFQ.SelectedVendors[0].Name)
}

func TestPOAcceptsMerge(t *testing.T) {
	assert.True(t, POAcceptsMerge(""))
	assert.True(t, POAcceptsMerge(POStatusPending))
	assert.True(t, POAcceptsMerge(POStatusAmendment))
	assert.False(t, POAcceptsMerge(POStatusDispatched))
	assert.False(t, POAcceptsMerge(POStatusDelivered))
	assert.False(t, POAcceptsMerge(POStatusMerged))
}

func TestPOTotals(t *testing.T) {
	po := ProcurementOrder{
		Items: []POLine{
			{Quantity: 100, Quote: 350},
			{Quantity: 5, Quote: 60000},
		},
	}
	assert.Equal(t, 35000.0, po.Items[0].Total())
	assert.Equal(t, 335000.0, po.Total())
}
