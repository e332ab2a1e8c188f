package entity

import "time"

// ProcurementOrder is one vendor's committed order, synthesized from
// the approved items of a PR (or of a sent-back round). The item list
// is immutable after dispatch; only delivery bookkeeping touches the
// document afterwards, and that is outside this engine.
type ProcurementOrder struct {
	ID             string    `json:"id"`
	Vendor         VendorRef `json:"vendor"`
	Project        string    `json:"project"`
	SourcePR       string    `json:"source_pr,omitempty"`
	SourceSentBack string    `json:"source_sent_back,omitempty"`
	Status         string    `json:"status"`
	Items          []POLine  `json:"order_list"`
	Modified       time.Time `json:"modified"`
}

// POLine is one line of a purchase order.
type POLine struct {
	ItemID   string  `json:"item_id"`
	ItemRef  string  `json:"item_ref"`
	Unit     string  `json:"unit"`
	Make     string  `json:"make,omitempty"`
	Quantity float64 `json:"quantity"`
	Quote    float64 `json:"quote"`
	Tax      float64 `json:"tax,omitempty"`
}

// Total returns quote x quantity for the line.
func (l POLine) Total() float64 {
	return l.Quote * l.Quantity
}

// SourceKey returns the document id this PO was synthesized from.
func (po *ProcurementOrder) SourceKey() string {
	if po.SourcePR != "" {
		return po.SourcePR
	}
	return po.SourceSentBack
}

// Total returns the order total across all lines.
func (po *ProcurementOrder) Total() float64 {
	var sum float64
	for _, l := range po.Items {
		sum += l.Total()
	}
	return sum
}

// Validate enforces PO invariants at the store boundary.
func (po *ProcurementOrder) Validate() error {
	if po.ID == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if po.Vendor.ID == "" {
		return &ValidationError{Field: "vendor", Reason: "required"}
	}
	if po.SourcePR == "" && po.SourceSentBack == "" {
		return &ValidationError{Field: "source_pr", Reason: "a PO must reference its source document"}
	}
	for _, l := range po.Items {
		if l.Quantity <= 0 {
			return &ValidationError{Field: "order_list.quantity", Reason: "quantity must be > 0"}
		}
		if l.Quote < 0 {
			return &ValidationError{Field: "order_list.quote", Reason: "quote must be >= 0"}
		}
	}
	return nil
}
