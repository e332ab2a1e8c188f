package entity

import "time"

// SentBackCategory is a forked child request carrying the items that
// were neither approved nor ordered in an approval round. It becomes a
// root document with its own approval cycle, running the same item
// state machine recursively.
type SentBackCategory struct {
	ID            string            `json:"id"`
	ParentPR      string            `json:"parent_pr"`
	Project       string            `json:"project"`
	WorkPackage   string            `json:"work_package"`
	Type          string            `json:"type"`
	WorkflowState string            `json:"workflow_state"`
	Categories    []Category        `json:"category_list"`
	Items         []ProcurementItem `json:"item_list"`
	RFQ           RFQData           `json:"rfq_data"`
	Modified      time.Time         `json:"modified"`
}

// Validate enforces sent-back invariants at the store boundary.
func (sb *SentBackCategory) Validate() error {
	if sb.ID == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if sb.ParentPR == "" {
		return &ValidationError{Field: "parent_pr", Reason: "required"}
	}
	if !ValidSentBackTypes[sb.Type] {
		return &ValidationError{Field: "type", Reason: "unknown sent-back type"}
	}
	categories := make(map[string]bool, len(sb.Categories))
	for _, c := range sb.Categories {
		categories[c.Name] = true
	}
	for _, item := range sb.Items {
		if item.Quantity <= 0 {
			return &ValidationError{Field: "item_list.quantity", Reason: "quantity must be > 0"}
		}
		if !categories[item.Category] {
			return &ValidationError{Field: "item_list.category", Reason: "item category missing from category list"}
		}
	}
	return sb.RFQ.Validate()
}
