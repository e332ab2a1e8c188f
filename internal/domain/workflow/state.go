package workflow

// State is the finite status a requested line item can occupy.
type State string

const (
	StatePending  State = "PENDING"
	StateQuoted   State = "QUOTED"
	StateApproved State = "APPROVED"
	StateRejected State = "REJECTED"
	StateDeferred State = "DEFERRED"
	StateOrdered  State = "ORDERED"
)

var validStates = map[State]bool{
	StatePending:  true,
	StateQuoted:   true,
	StateApproved: true,
	StateRejected: true,
	StateDeferred: true,
	StateOrdered:  true,
}

// Terminal states for the document the item lives in. Rejected and
// Deferred items are forked into a sent-back category where the copy
// restarts at Pending; the source row never moves again.
var terminalStates = map[State]bool{
	StateOrdered:  true,
	StateRejected: true,
	StateDeferred: true,
}

// IsValid returns true if the state is a known item status.
func (s State) IsValid() bool {
	return validStates[s]
}

// IsTerminal returns true if the item can make no further transition
// within its source document.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
