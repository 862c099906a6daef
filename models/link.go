package models

import (
	"fmt"
	"time"
)

// Link statuses. A slot is reusable infrastructure: it is either free or
// occupied. Pending/expired describe a particular occupancy episode and live
// on the LinkAssignment record instead.
const (
	LinkStatusAvailable = "available"
	LinkStatusActive    = "active"
)

// PermanentLink is one of the fixed pool of storefront slots. Rows are seeded
// once at bootstrap and never deleted; only status, occupant, and the
// per-assignment counters mutate.
type PermanentLink struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	SlotNumber       int        `gorm:"uniqueIndex;not null" json:"slot_number"`
	Path             string     `gorm:"size:16;uniqueIndex;not null" json:"path"`
	Status           string     `gorm:"size:16;index;not null;default:'available'" json:"status"`
	ProductID        *string    `gorm:"size:36;index" json:"product_id"`
	PerformanceScore float64    `gorm:"not null;default:0" json:"performance_score"`
	ViewsCount       int64      `gorm:"not null;default:0" json:"views_count"`
	WhatsappClicks   int64      `gorm:"not null;default:0" json:"whatsapp_clicks"`
	FacebookShares   int64      `gorm:"not null;default:0" json:"facebook_shares"`
	RotationCount    int64      `gorm:"not null;default:0" json:"rotation_count"`
	MetaTitle        string     `gorm:"size:255" json:"meta_title"`
	MetaDescription  string     `gorm:"size:512" json:"meta_description"`
	LastAssigned     *time.Time `json:"last_assigned"`
	ExpiresAt        *time.Time `gorm:"index" json:"expires_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Product          *Product   `gorm:"foreignKey:ProductID;references:ID" json:"product,omitempty"`
}

// TableName keeps the table name aligned with the storefront schema.
func (PermanentLink) TableName() string {
	return "permanent_links"
}

// SlotPath renders the public path for a slot number, e.g. /p37.
func SlotPath(slotNumber int) string {
	return fmt.Sprintf("/p%d", slotNumber)
}
