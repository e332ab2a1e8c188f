package entity

import "fmt"

// RFQData is the quote-collection matrix for a PR: N selected vendors
// against M requested items. SelectedVendors keeps insertion order;
// that order is the deterministic tie-break for cheapest-vendor
// suggestions.
type RFQData struct {
	SelectedVendors []VendorRef                `json:"selected_vendors"`
	Details         map[string]ItemQuoteDetail `json:"details,omitempty"`
}

// VendorRef identifies a vendor invited to quote.
type VendorRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ItemQuoteDetail holds the per-item slice of the matrix.
type ItemQuoteDetail struct {
	InitialMake  string                 `json:"initial_make,omitempty"`
	Makes        []string               `json:"makes,omitempty"`
	VendorQuotes map[string]VendorQuote `json:"vendor_quotes,omitempty"`

	// SelectedVendor is the approver's assignment for the item: at
	// most one (vendor, make) pair per item per round.
	SelectedVendor string `json:"selected_vendor,omitempty"`
}

// VendorQuote is one vendor's offer for one item. Quote is a pointer so
// "no quote yet" and "quoted at zero" stay distinguishable.
type VendorQuote struct {
	Quote *float64 `json:"quote,omitempty"`
	Make  string   `json:"make,omitempty"`
}

// HasVendor reports whether the vendor is in the selected set.
func (r *RFQData) HasVendor(vendorID string) bool {
	for _, v := range r.SelectedVendors {
		if v.ID == vendorID {
			return true
		}
	}
	return false
}

// VendorOrder returns the insertion position of the vendor, or -1.
func (r *RFQData) VendorOrder(vendorID string) int {
	for i, v := range r.SelectedVendors {
		if v.ID == vendorID {
			return i
		}
	}
	return -1
}

// Detail returns the quote detail for an item, creating it on first use.
func (r *RFQData) Detail(itemID string) *ItemQuoteDetail {
	if r.Details == nil {
		r.Details = make(map[string]ItemQuoteDetail)
	}
	d, ok := r.Details[itemID]
	if !ok {
		d = ItemQuoteDetail{VendorQuotes: make(map[string]VendorQuote)}
		r.Details[itemID] = d
	}
	return &d
}

// SetDetail writes back a detail record for an item.
func (r *RFQData) SetDetail(itemID string, d ItemQuoteDetail) {
	if r.Details == nil {
		r.Details = make(map[string]ItemQuoteDetail)
	}
	r.Details[itemID] = d
}

// Clone returns a deep copy of the RFQ data. Draft sessions work on a
// clone so server state is never mutated in place.
func (r *RFQData) Clone() RFQData {
	c := RFQData{
		SelectedVendors: append([]VendorRef(nil), r.SelectedVendors...),
	}
	if r.Details != nil {
		c.Details = make(map[string]ItemQuoteDetail, len(r.Details))
		for itemID, d := range r.Details {
			copied := ItemQuoteDetail{
				InitialMake:    d.InitialMake,
				Makes:          append([]string(nil), d.Makes...),
				SelectedVendor: d.SelectedVendor,
			}
			if d.VendorQuotes != nil {
				copied.VendorQuotes = make(map[string]VendorQuote, len(d.VendorQuotes))
				for vendorID, q := range d.VendorQuotes {
					if q.Quote != nil {
						amount := *q.Quote
						q.Quote = &amount
					}
					copied.VendorQuotes[vendorID] = q
				}
			}
			c.Details[itemID] = copied
		}
	}
	return c
}

// Validate enforces the RFQ invariants: only selected vendors may quote
// and quotes are non-negative when present.
func (r *RFQData) Validate() error {
	seen := make(map[string]bool, len(r.SelectedVendors))
	for _, v := range r.SelectedVendors {
		if v.ID == "" {
			return &ValidationError{Field: "rfq_data.selected_vendors", Reason: "vendor id required"}
		}
		if seen[v.ID] {
			return &ValidationError{Field: "rfq_data.selected_vendors", Reason: fmt.Sprintf("duplicate vendor %s", v.ID)}
		}
		seen[v.ID] = true
	}

	for itemID, detail := range r.Details {
		for vendorID, q := range detail.VendorQuotes {
			if !seen[vendorID] {
				return &ValidationError{
					Field:  "rfq_data.details",
					Reason: fmt.Sprintf("item %s: quote from unselected vendor %s", itemID, vendorID),
				}
			}
			if q.Quote != nil && *q.Quote < 0 {
				return &ValidationError{
					Field:  "rfq_data.details",
					Reason: fmt.Sprintf("item %s: negative quote from vendor %s", itemID, vendorID),
				}
			}
		}
		if detail.SelectedVendor != "" && !seen[detail.SelectedVendor] {
			return &ValidationError{
				Field:  "rfq_data.details",
				Reason: fmt.Sprintf("item %s: selected vendor %s not in vendor list", itemID, detail.SelectedVendor),
			}
		}
	}
	return nil
}
