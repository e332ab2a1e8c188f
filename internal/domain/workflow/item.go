package workflow

import (
	"context"

	"github.com/sitewise/procure/internal/domain/entity"
)

// itemBuilder holds the canonical item lifecycle:
//
//	Pending  --quote received--> Quoted
//	Quoted   --approve-->        Approved
//	Pending|Quoted --reject-->   Rejected
//	Pending|Quoted --defer-->    Deferred
//	Approved --order-->          Ordered (terminal)
//
// Rejected and Deferred rows are terminal here; the sent-back fork
// restarts their copies at Pending in a new document.
var itemBuilder = func() *Builder {
	b := NewBuilder()
	b.Configure(StatePending).
		Permit(TriggerQuoteReceived, StateQuoted).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerDefer, StateDeferred)
	b.Configure(StateQuoted).
		Permit(TriggerQuoteReceived, StateQuoted).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerDefer, StateDeferred)
	b.Configure(StateApproved).
		Permit(TriggerOrder, StateOrdered)
	return b
}()

// NewItemMachine creates an item lifecycle machine at the given state.
func NewItemMachine(initial State) *Machine {
	return itemBuilder.Build(initial)
}

// Step validates a single transition without holding a machine: it
// answers "may an item in `from` take `trigger`, and where does it
// land". Services use this when walking a whole order list.
func Step(from State, trigger Trigger) (State, error) {
	m := itemBuilder.Build(from)
	if err := m.Fire(context.Background(), trigger); err != nil {
		return from, err
	}
	return m.State(), nil
}

// DeriveWorkflowState recomputes a document's workflow state from its
// item statuses after a commit round:
//
//   - Approved only when every item reached Ordered.
//   - Rejected when every item was rejected.
//   - Partially Approved once any item is terminal but not all ordered.
//   - Vendor Selected when every live item has a vendor assignment.
//   - Pending otherwise.
func DeriveWorkflowState(items []entity.ProcurementItem, rfq *entity.RFQData) string {
	if len(items) == 0 {
		return entity.WorkflowStatePending
	}

	allOrdered, allRejected, anyTerminal := true, true, false
	for _, item := range items {
		s := State(item.Status)
		if s != StateOrdered {
			allOrdered = false
		}
		if s != StateRejected {
			allRejected = false
		}
		if s.IsTerminal() {
			anyTerminal = true
		}
	}
	switch {
	case allOrdered:
		return entity.WorkflowStateApproved
	case allRejected:
		return entity.WorkflowStateRejected
	case anyTerminal:
		return entity.WorkflowStatePartiallyApproved
	}

	if rfq != nil {
		allSelected := true
		for _, item := range items {
			d, ok := rfq.Details[item.ID]
			if !ok || d.SelectedVendor == "" {
				allSelected = false
				break
			}
		}
		if allSelected {
			return entity.WorkflowStateVendorSelected
		}
	}
	return entity.WorkflowStatePending
}
