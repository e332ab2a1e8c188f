package entity

import (
	"fmt"
	"strings"
)

// ValidationError reports a recoverable field-level problem. It is
// surfaced inline and never touches persisted state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// IncompleteApprovalError is returned at commit time when one or more
// approved items are missing a resolved vendor, quote or make.
type IncompleteApprovalError struct {
	ItemIDs []string
}

func (e *IncompleteApprovalError) Error() string {
	return fmt.Sprintf("approved items missing vendor/quote/make: %s", strings.Join(e.ItemIDs, ", "))
}
