// Package sentback forks a PR's unresolved items into sent-back
// category documents for renegotiation.
package sentback

import (
	"github.com/sitewise/procure/internal/domain/entity"
	"github.com/sitewise/procure/internal/rfq"
)

// typeOrder fixes the synthesis order so output is deterministic.
var typeOrder = []string{
	entity.SentBackTypeRejected,
	entity.SentBackTypeDeferred,
	entity.SentBackTypeDelayed,
	entity.SentBackTypeCancelled,
}

// Synthesize batches the PR's rejected and deferred items by their
// approver-selected sent-back type and builds one SentBackCategory per
// distinct type present, never one per item. Item copies restart at
// Pending; RFQ data is carried only where still relevant; the source
// rows in the PR are left untouched (terminal) so audit history stays
// intact.
func Synthesize(pr *entity.ProcurementRequest) []*entity.SentBackCategory {
	batches := make(map[string][]entity.ProcurementItem)
	for _, item := range pr.Items {
		if item.Status != entity.ItemStatusRejected && item.Status != entity.ItemStatusDeferred {
			continue
		}
		batches[batchType(item)] = append(batches[batchType(item)], item)
	}

	var result []*entity.SentBackCategory
	for _, sbType := range typeOrder {
		items, ok := batches[sbType]
		if !ok {
			continue
		}
		result = append(result, build(pr, sbType, items))
	}
	return result
}

// batchType prefers the approver's explicit selector and falls back to
// the status for items where none was supplied.
func batchType(item entity.ProcurementItem) string {
	if item.SentBackType != "" {
		return item.SentBackType
	}
	if item.Status == entity.ItemStatusDeferred {
		return entity.SentBackTypeDeferred
	}
	return entity.SentBackTypeRejected
}

func build(pr *entity.ProcurementRequest, sbType string, items []entity.ProcurementItem) *entity.SentBackCategory {
	itemIDs := make(map[string]bool, len(items))
	categoryNames := make(map[string]bool)

	forked := make([]entity.ProcurementItem, 0, len(items))
	for _, item := range items {
		itemIDs[item.ID] = true
		categoryNames[item.Category] = true

		fork := item
		fork.Status = entity.ItemStatusPending
		fork.SentBackType = ""
		forked = append(forked, fork)
	}

	// Category list is the union of categories the batched items
	// reference, carried with their make lists from the parent.
	var categories []entity.Category
	for _, cat := range pr.Categories {
		if categoryNames[cat.Name] {
			categories = append(categories, entity.Category{
				Name:  cat.Name,
				Makes: append([]string(nil), cat.Makes...),
			})
		}
	}

	return &entity.SentBackCategory{
		ParentPR:      pr.ID,
		Project:       pr.Project,
		WorkPackage:   pr.WorkPackage,
		Type:          sbType,
		WorkflowState: entity.WorkflowStatePending,
		Categories:    categories,
		Items:         forked,
		RFQ:           rfq.CarrySubset(&pr.RFQ, itemIDs),
	}
}
