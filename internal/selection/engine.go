// Package selection groups a PR's approved items into per-vendor PO
// buckets and merges them into existing orders where a pre-dispatch PO
// for the same (source, vendor) pair is still open.
package selection

import (
	"github.com/sitewise/procure/internal/domain/entity"
	"github.com/sitewise/procure/internal/rfq"
)

// VendorGroup is one vendor's bucket of approved lines, in PR item
// order.
type VendorGroup struct {
	Vendor entity.VendorRef
	Lines  []entity.POLine
}

// Collect walks the items in order and resolves each Approved item's
// (vendor, quote, make) selection. Items whose selection is incomplete
// are reported through IncompleteApprovalError; nothing is grouped
// until every approved item resolves.
func Collect(items []entity.ProcurementItem, rfqData *entity.RFQData) ([]VendorGroup, error) {
	var incomplete []string
	var groups []VendorGroup
	index := make(map[string]int)

	for _, item := range items {
		if item.Status != entity.ItemStatusApproved {
			continue
		}
		sel, ok := rfq.ResolveSelection(rfqData, item.ID)
		if !ok {
			incomplete = append(incomplete, item.ID)
			continue
		}
		line := entity.POLine{
			ItemID:   item.ID,
			ItemRef:  item.ItemRef,
			Unit:     item.Unit,
			Make:     sel.Make,
			Quantity: item.Quantity,
			Quote:    sel.Quote,
			Tax:      item.Tax,
		}
		i, seen := index[sel.Vendor.ID]
		if !seen {
			index[sel.Vendor.ID] = len(groups)
			groups = append(groups, VendorGroup{Vendor: sel.Vendor})
			i = len(groups) - 1
		}
		groups[i].Lines = append(groups[i].Lines, line)
	}

	if len(incomplete) > 0 {
		return nil, &entity.IncompleteApprovalError{ItemIDs: incomplete}
	}
	return groups, nil
}

// Merge folds a vendor group's lines into an existing PO. Lines are
// keyed by (item, make): a line for the same key replaces the stored
// one, so a retried commit converges on identical content instead of
// doubling quantities. Unseen keys are appended in order.
func Merge(po *entity.ProcurementOrder, lines []entity.POLine) {
	for _, line := range lines {
		merged := false
		for i := range po.Items {
			if po.Items[i].ItemID == line.ItemID && po.Items[i].Make == line.Make {
				po.Items[i] = line
				merged = true
				break
			}
		}
		if !merged {
			po.Items = append(po.Items, line)
		}
	}
}

// NewOrder builds a fresh PO for a vendor group. The id is minted by
// the repository on create.
func NewOrder(group VendorGroup, project, sourcePR, sourceSentBack string) *entity.ProcurementOrder {
	return &entity.ProcurementOrder{
		Vendor:         group.Vendor,
		Project:        project,
		SourcePR:       sourcePR,
		SourceSentBack: sourceSentBack,
		Status:         entity.POStatusPending,
		Items:          append([]entity.POLine(nil), group.Lines...),
	}
}
