package entity

// Item status constants for ProcurementItem
const (
	ItemStatusPending  = "PENDING"
	ItemStatusQuoted   = "QUOTED"
	ItemStatusApproved = "APPROVED"
	ItemStatusRejected = "REJECTED"
	ItemStatusDeferred = "DEFERRED"
	ItemStatusOrdered  = "ORDERED"
)

// Workflow state constants for ProcurementRequest and SentBackCategory
const (
	WorkflowStatePending           = "PENDING"
	WorkflowStatePartiallyApproved = "PARTIALLY_APPROVED"
	WorkflowStateVendorSelected    = "VENDOR_SELECTED"
	WorkflowStateApproved          = "APPROVED"
	WorkflowStateRejected          = "REJECTED"
	WorkflowStateAmended           = "AMENDED"
)

// Sent-back type constants. The type is selector metadata supplied by
// the approver per item, never inferred from the status alone.
const (
	SentBackTypeRejected  = "REJECTED"
	SentBackTypeDeferred  = "DEFERRED"
	SentBackTypeDelayed   = "DELAYED"
	SentBackTypeCancelled = "CANCELLED"
)

// PO status constants for ProcurementOrder
const (
	POStatusPending            = "PENDING"
	POStatusDispatched         = "DISPATCHED"
	POStatusPartiallyDelivered = "PARTIALLY_DELIVERED"
	POStatusDelivered          = "DELIVERED"
	POStatusAmendment          = "PO_AMENDMENT"
	POStatusMerged             = "MERGED"
)

// ValidSentBackTypes lists the accepted sent-back selector values.
var ValidSentBackTypes = map[string]bool{
	SentBackTypeRejected:  true,
	SentBackTypeDeferred:  true,
	SentBackTypeDelayed:   true,
	SentBackTypeCancelled: true,
}

// POAcceptsMerge reports whether a PO in the given status may still
// receive line items merged in from a later approval round. Once a PO
// has been dispatched it is frozen; later rounds open a fresh PO.
func POAcceptsMerge(status string) bool {
	return status == "" || status == POStatusPending || status == POStatusAmendment
}
