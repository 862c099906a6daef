package models

import "time"

// QueueEntry is a product waiting for a slot when the pool is at capacity.
// The auto-increment ID doubles as the FIFO position; PromotedAt stays null
// until the product is placed, so the pending queue is the set of rows with
// promoted_at IS NULL ordered by id.
//
// There is no uniqueness constraint on pending product_id: MySQL unique
// indexes treat NULLs as distinct, so (product_id, promoted_at) cannot
// enforce one. Concurrent enqueues of the same product can therefore leave
// duplicate pending rows; promotion collapses them, since an entry whose
// product already holds a slot is dropped instead of placed.
type QueueEntry struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ProductID  string     `gorm:"size:36;index;not null" json:"product_id"`
	EnqueuedAt time.Time  `gorm:"not null" json:"enqueued_at"`
	PromotedAt *time.Time `json:"promoted_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName matches the storefront schema.
func (QueueEntry) TableName() string {
	return "link_wait_queue"
}
