package entity

import (
	"fmt"
	"time"
)

// ProcurementRequest is the root aggregate for one work-package request
// on one project. Items are kept in insertion order; that order defines
// both display order and PO line order downstream.
type ProcurementRequest struct {
	ID            string            `json:"id"`
	Project       string            `json:"project"`
	WorkPackage   string            `json:"work_package"`
	WorkflowState string            `json:"workflow_state"`
	Items         []ProcurementItem `json:"item_list"`
	Categories    []Category        `json:"category_list"`
	RFQ           RFQData           `json:"rfq_data"`
	Comment       string            `json:"universal_comment,omitempty"`
	Modified      time.Time         `json:"modified"`
}

// ProcurementItem is one requested line on a PR.
type ProcurementItem struct {
	ID       string  `json:"id"`
	ItemRef  string  `json:"item_ref"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
	Category string  `json:"category"`
	Make     string  `json:"make,omitempty"`
	Tax      float64 `json:"tax,omitempty"`
	Comment  string  `json:"comment,omitempty"`
	Status   string  `json:"status"`

	// SentBackType is the approver-selected disposition for items that
	// end the round as Rejected or Deferred. Empty otherwise.
	SentBackType string `json:"sent_back_type,omitempty"`
}

// Category pairs a category name with the makes allowed for it.
type Category struct {
	Name  string   `json:"name"`
	Makes []string `json:"makes,omitempty"`
}

// Item returns the item with the given id, or nil.
func (pr *ProcurementRequest) Item(itemID string) *ProcurementItem {
	for i := range pr.Items {
		if pr.Items[i].ID == itemID {
			return &pr.Items[i]
		}
	}
	return nil
}

// Category returns the category with the given name, or nil.
func (pr *ProcurementRequest) Category(name string) *Category {
	for i := range pr.Categories {
		if pr.Categories[i].Name == name {
			return &pr.Categories[i]
		}
	}
	return nil
}

// Validate enforces the PR aggregate invariants. It is called at the
// store boundary: a document that fails here never enters the engine.
func (pr *ProcurementRequest) Validate() error {
	if pr.ID == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if pr.Project == "" {
		return &ValidationError{Field: "project", Reason: "required"}
	}

	categories := make(map[string]bool, len(pr.Categories))
	for _, c := range pr.Categories {
		categories[c.Name] = true
	}

	itemIDs := make(map[string]bool, len(pr.Items))
	for _, item := range pr.Items {
		if item.ID == "" {
			return &ValidationError{Field: "item_list.id", Reason: "required"}
		}
		if itemIDs[item.ID] {
			return &ValidationError{Field: "item_list.id", Reason: fmt.Sprintf("duplicate item %s", item.ID)}
		}
		itemIDs[item.ID] = true
		if item.Quantity <= 0 {
			return &ValidationError{Field: "item_list.quantity", Reason: fmt.Sprintf("item %s: quantity must be > 0", item.ID)}
		}
		if !categories[item.Category] {
			return &ValidationError{Field: "item_list.category", Reason: fmt.Sprintf("item %s: unknown category %q", item.ID, item.Category)}
		}
		if item.SentBackType != "" && !ValidSentBackTypes[item.SentBackType] {
			return &ValidationError{Field: "item_list.sent_back_type", Reason: fmt.Sprintf("item %s: unknown type %q", item.ID, item.SentBackType)}
		}
	}

	for itemID := range pr.RFQ.Details {
		if !itemIDs[itemID] {
			return &ValidationError{Field: "rfq_data.details", Reason: fmt.Sprintf("quote detail references unknown item %s", itemID)}
		}
	}
	return pr.RFQ.Validate()
}
