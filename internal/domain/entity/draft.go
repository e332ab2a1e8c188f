package entity

import "time"

// DraftTTL is how long an approval draft survives after creation.
// Anything older is treated as absent and purged on next access.
const DraftTTL = 30 * 24 * time.Hour

// Draft is the locally persisted, undoable working copy of one
// in-progress approval session, keyed by PR id. It is never a source
// of truth: ServerModifiedAt pins the PR revision it was forked from,
// and any divergence is surfaced as a conflict, never merged silently.
type Draft struct {
	PRID             string         `json:"pr_id"`
	ProjectID        string         `json:"project_id"`
	WorkPackage      string         `json:"work_package"`
	OrderList        []DraftItem    `json:"order_list"`
	CategoryList     []Category     `json:"category_list"`
	RFQ              RFQData        `json:"rfq_data"`
	UniversalComment string         `json:"universal_comment,omitempty"`
	UndoStack        []ItemSnapshot `json:"undo_stack,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	ServerModifiedAt time.Time      `json:"server_modified_at"`
	LastSavedAt      time.Time      `json:"last_saved_at"`
}

// DraftItem is a working copy of a PR item plus its edit flags.
type DraftItem struct {
	ProcurementItem
	IsNew      bool `json:"_isNew,omitempty"`
	IsDeleted  bool `json:"_isDeleted,omitempty"`
	IsModified bool `json:"_isModified,omitempty"`
}

// ItemSnapshot is the immutable pre-image pushed onto the undo stack
// before each edit. A nil Before records that the edit created the
// item, so undo removes it again.
type ItemSnapshot struct {
	ItemID  string     `json:"item_id"`
	Index   int        `json:"index"`
	Before  *DraftItem `json:"before,omitempty"`
	TakenAt time.Time  `json:"taken_at"`

	// Detail is the pre-edit RFQ detail when the edit touched the
	// item's vendor selection alongside the item itself.
	Detail *ItemQuoteDetail `json:"detail,omitempty"`
}

// IsExpired reports whether the draft has outlived DraftTTL.
func (d *Draft) IsExpired(now time.Time) bool {
	return now.Sub(d.CreatedAt) > DraftTTL
}

// Item returns the draft item with the given id, or nil.
func (d *Draft) Item(itemID string) *DraftItem {
	for i := range d.OrderList {
		if d.OrderList[i].ID == itemID {
			return &d.OrderList[i]
		}
	}
	return nil
}

// ItemIndex returns the position of the item in the order list, or -1.
func (d *Draft) ItemIndex(itemID string) int {
	for i := range d.OrderList {
		if d.OrderList[i].ID == itemID {
			return i
		}
	}
	return -1
}
