package models

import "time"

// LinkAssignment is the audit record of one occupancy episode: which product
// held which slot, for how long, and with what lifetime totals. A row is
// opened when a slot is claimed and finalized when the slot is reclaimed;
// ExpiredAt is null while the assignment is live.
type LinkAssignment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	LinkID      uint       `gorm:"index;not null" json:"link_id"`
	SlotNumber  int        `gorm:"index;not null" json:"slot_number"`
	ProductID   string     `gorm:"size:36;index;not null" json:"product_id"`
	AssignedAt  time.Time  `gorm:"not null" json:"assigned_at"`
	ExpiredAt   *time.Time `gorm:"index" json:"expired_at"`
	TotalViews  int64      `gorm:"not null;default:0" json:"total_views"`
	TotalClicks int64      `gorm:"not null;default:0" json:"total_clicks"`
	TotalShares int64      `gorm:"not null;default:0" json:"total_shares"`
	FinalScore  float64    `gorm:"not null;default:0" json:"final_score"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName matches the storefront schema.
func (LinkAssignment) TableName() string {
	return "link_assignments"
}
