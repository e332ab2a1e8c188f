package workflow

// Trigger is an event that can move an item between statuses.
type Trigger string

const (
	TriggerQuoteReceived Trigger = "QUOTE_RECEIVED"
	TriggerApprove       Trigger = "APPROVE"
	TriggerReject        Trigger = "REJECT"
	TriggerDefer         Trigger = "DEFER"
	TriggerOrder         Trigger = "ORDER"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
