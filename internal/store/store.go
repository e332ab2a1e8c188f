// Package store defines the generic document store the engine runs
// against. Documents are opaque JSON bodies plus a handful of indexed
// fields; each carries a modified timestamp used for optimistic
// concurrency. Typed validation lives in the repositories above.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DocType discriminates the document collections.
type DocType string

const (
	TypeProcurementRequest DocType = "procurement_request"
	TypeProcurementOrder   DocType = "procurement_order"
	TypeSentBackCategory   DocType = "sent_back_category"
)

// Document is one stored record.
type Document struct {
	Type     DocType
	ID       string
	Modified time.Time
	Body     json.RawMessage

	// Indexed fields for list filters. Parent is the source PR (or
	// sent-back) id, Vendor and SubType carry the idempotency keys for
	// POs and sent-back categories respectively.
	Project string
	Parent  string
	Vendor  string
	SubType string
}

// Filters narrows List results. Zero-valued fields are ignored.
type Filters struct {
	Project string
	Parent  string
	Vendor  string
	SubType string
}

// Store is the CRUD + list-query surface the engine consumes.
type Store interface {
	// Get fetches one document; ErrNotFound if absent.
	Get(ctx context.Context, typ DocType, id string) (*Document, error)

	// Create inserts a new document and stamps Modified.
	Create(ctx context.Context, doc *Document) (*Document, error)

	// Update replaces a document's body and indexed fields if the
	// stored modified timestamp equals expectedModified, otherwise it
	// fails with a ConflictError.
	Update(ctx context.Context, doc *Document, expectedModified time.Time) (*Document, error)

	// List returns documents of a type matching the filters.
	List(ctx context.Context, typ DocType, filters Filters) ([]*Document, error)
}

// ErrNotFound is returned when a referenced document does not exist.
var ErrNotFound = errors.New("document not found")

// ConflictError reports an optimistic-concurrency failure: the stored
// modified timestamp no longer matches the caller's baseline.
type ConflictError struct {
	Type     DocType
	ID       string
	Expected time.Time
	Actual   time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s/%s: expected modified %s, found %s",
		e.Type, e.ID, e.Expected.Format(time.RFC3339Nano), e.Actual.Format(time.RFC3339Nano))
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
