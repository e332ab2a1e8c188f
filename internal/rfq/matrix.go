// Package rfq implements the vendor x item quote matrix an approver
// works against: quote entry, make assignment, vendor selection and
// the deterministic cheapest-vendor suggestion.
package rfq

import (
	"context"
	"errors"
	"fmt"

	"github.com/sitewise/procure/internal/domain/entity"
	"github.com/sitewise/procure/internal/domain/workflow"
)

var (
	// ErrInvalidQuote is returned for a negative amount or a quote
	// from a vendor that was never added to the RFQ.
	ErrInvalidQuote = errors.New("invalid quote")

	// ErrUnknownMake is returned when a make is neither on the item
	// nor on its category's make list. New makes go through
	// AddCategoryMake first; silently orphaned make strings are not
	// accepted.
	ErrUnknownMake = errors.New("unknown make")

	// ErrUnknownItem is returned when the item is not on the PR.
	ErrUnknownItem = errors.New("unknown item")
)

// Selection is an item's resolved (vendor, quote, make) triple.
type Selection struct {
	Vendor entity.VendorRef
	Quote  float64
	Make   string
}

// Matrix wraps one PR's RFQ data with the operations of the quote
// round. All mutation is in-memory; persistence happens when the
// enclosing draft commits.
type Matrix struct {
	pr *entity.ProcurementRequest
}

// NewMatrix creates a matrix over the given PR.
func NewMatrix(pr *entity.ProcurementRequest) *Matrix {
	return &Matrix{pr: pr}
}

// AddVendor appends a vendor to the selected set. Adding a vendor that
// is already selected is a no-op, preserving insertion order.
func (m *Matrix) AddVendor(vendor entity.VendorRef) {
	if m.pr.RFQ.HasVendor(vendor.ID) {
		return
	}
	m.pr.RFQ.SelectedVendors = append(m.pr.RFQ.SelectedVendors, vendor)
}

// SetQuote records a vendor's quote for an item and moves the item to
// Quoted on its first quote.
func (m *Matrix) SetQuote(itemID, vendorID string, amount float64) error {
	item := m.pr.Item(itemID)
	if item == nil {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if !m.pr.RFQ.HasVendor(vendorID) {
		return fmt.Errorf("%w: vendor %s is not part of this RFQ", ErrInvalidQuote, vendorID)
	}
	if amount < 0 {
		return fmt.Errorf("%w: amount must be >= 0", ErrInvalidQuote)
	}

	detail := m.pr.RFQ.Detail(itemID)
	q := detail.VendorQuotes[vendorID]
	q.Quote = &amount
	if detail.VendorQuotes == nil {
		detail.VendorQuotes = make(map[string]entity.VendorQuote)
	}
	detail.VendorQuotes[vendorID] = q
	m.pr.RFQ.SetDetail(itemID, *detail)

	if next, err := workflow.Step(workflow.State(item.Status), workflow.TriggerQuoteReceived); err == nil {
		item.Status = string(next)
	}
	return nil
}

// SetMake assigns the make a vendor is quoting for an item. The make
// must already exist on the item or on the item's category.
func (m *Matrix) SetMake(itemID, vendorID, makeName string) error {
	item := m.pr.Item(itemID)
	if item == nil {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if !m.pr.RFQ.HasVendor(vendorID) {
		return fmt.Errorf("%w: vendor %s is not part of this RFQ", ErrInvalidQuote, vendorID)
	}
	if !m.allowedMake(item, makeName) {
		return fmt.Errorf("%w: %q for item %s", ErrUnknownMake, makeName, itemID)
	}

	detail := m.pr.RFQ.Detail(itemID)
	q := detail.VendorQuotes[vendorID]
	q.Make = makeName
	if detail.VendorQuotes == nil {
		detail.VendorQuotes = make(map[string]entity.VendorQuote)
	}
	detail.VendorQuotes[vendorID] = q
	m.pr.RFQ.SetDetail(itemID, *detail)
	return nil
}

// AddCategoryMake is the explicit side-channel for introducing a new
// make: it appends to the category's make list, after which SetMake
// will accept it.
func (m *Matrix) AddCategoryMake(category, makeName string) error {
	cat := m.pr.Category(category)
	if cat == nil {
		return &entity.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", category)}
	}
	if makeName == "" {
		return &entity.ValidationError{Field: "make", Reason: "make name required"}
	}
	for _, existing := range cat.Makes {
		if existing == makeName {
			return nil
		}
	}
	cat.Makes = append(cat.Makes, makeName)
	return nil
}

// SelectVendor records the approver's vendor assignment for an item
// and moves the item to Approved. The vendor must have quoted.
func (m *Matrix) SelectVendor(ctx context.Context, itemID, vendorID string) error {
	item := m.pr.Item(itemID)
	if item == nil {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	detail := m.pr.RFQ.Detail(itemID)
	q, ok := detail.VendorQuotes[vendorID]
	if !ok || q.Quote == nil {
		return fmt.Errorf("%w: vendor %s has not quoted item %s", ErrInvalidQuote, vendorID, itemID)
	}

	machine := workflow.NewItemMachine(workflow.State(item.Status))
	if err := machine.Fire(ctx, workflow.TriggerApprove); err != nil {
		return err
	}
	item.Status = string(machine.State())
	detail.SelectedVendor = vendorID
	m.pr.RFQ.SetDetail(itemID, *detail)
	return nil
}

// CheapestVendor suggests the lowest-quoting vendor for an item. On an
// exact tie the vendor with the earliest insertion order wins, so the
// suggestion is reproducible. It is a default, never forced.
func (m *Matrix) CheapestVendor(itemID string) (entity.VendorRef, float64, bool) {
	detail, ok := m.pr.RFQ.Details[itemID]
	if !ok {
		return entity.VendorRef{}, 0, false
	}

	bestOrder := -1
	var bestQuote float64
	for vendorID, q := range detail.VendorQuotes {
		if q.Quote == nil {
			continue
		}
		order := m.pr.RFQ.VendorOrder(vendorID)
		if order < 0 {
			continue
		}
		if bestOrder < 0 || *q.Quote < bestQuote || (*q.Quote == bestQuote && order < bestOrder) {
			bestOrder = order
			bestQuote = *q.Quote
		}
	}
	if bestOrder < 0 {
		return entity.VendorRef{}, 0, false
	}
	return m.pr.RFQ.SelectedVendors[bestOrder], bestQuote, true
}

// ResolveSelection returns the item's committed (vendor, quote, make).
// Items without a complete resolution report ok=false; the commit
// service folds those ids into an IncompleteApprovalError.
func (m *Matrix) ResolveSelection(itemID string) (Selection, bool) {
	return ResolveSelection(&m.pr.RFQ, itemID)
}

// ResolveSelection resolves an item's selection against any RFQ data.
func ResolveSelection(rfq *entity.RFQData, itemID string) (Selection, bool) {
	detail, ok := rfq.Details[itemID]
	if !ok || detail.SelectedVendor == "" {
		return Selection{}, false
	}
	q, ok := detail.VendorQuotes[detail.SelectedVendor]
	if !ok || q.Quote == nil {
		return Selection{}, false
	}
	order := rfq.VendorOrder(detail.SelectedVendor)
	if order < 0 {
		return Selection{}, false
	}
	makeName := q.Make
	if makeName == "" {
		makeName = detail.InitialMake
	}
	if makeName == "" {
		return Selection{}, false
	}
	return Selection{Vendor: rfq.SelectedVendors[order], Quote: *q.Quote, Make: makeName}, true
}

// allowedMake checks the item's own make list plus its category's.
func (m *Matrix) allowedMake(item *entity.ProcurementItem, makeName string) bool {
	if detail, ok := m.pr.RFQ.Details[item.ID]; ok {
		for _, candidate := range detail.Makes {
			if candidate == makeName {
				return true
			}
		}
	}
	if cat := m.pr.Category(item.Category); cat != nil {
		for _, candidate := range cat.Makes {
			if candidate == makeName {
				return true
			}
		}
	}
	return false
}

// CarrySubset returns a copy of the RFQ restricted to the given items:
// only quotes for items actually in the subset survive, and vendors
// that quoted none of them are dropped. Used when forking sent-back
// categories.
func CarrySubset(rfq *entity.RFQData, itemIDs map[string]bool) entity.RFQData {
	carried := entity.RFQData{}
	relevantVendors := make(map[string]bool)

	for itemID, detail := range rfq.Details {
		if !itemIDs[itemID] {
			continue
		}
		copied := entity.ItemQuoteDetail{
			InitialMake:  detail.InitialMake,
			Makes:        append([]string(nil), detail.Makes...),
			VendorQuotes: make(map[string]entity.VendorQuote, len(detail.VendorQuotes)),
		}
		// The selection is deliberately not carried: the forked round
		// renegotiates from scratch.
		for vendorID, q := range detail.VendorQuotes {
			copied.VendorQuotes[vendorID] = q
			relevantVendors[vendorID] = true
		}
		carried.SetDetail(itemID, copied)
	}

	for _, v := range rfq.SelectedVendors {
		if relevantVendors[v.ID] {
			carried.SelectedVendors = append(carried.SelectedVendors, v)
		}
	}
	return carried
}
