package models

import "time"

// Product statuses as exposed by the catalog service.
const (
	ProductStatusPending  = "pending"
	ProductStatusApproved = "approved"
	ProductStatusActive   = "active"
	ProductStatusExpired  = "expired"
	ProductStatusRejected = "rejected"
)

// Product mirrors the catalog service's listing rows. This service only reads
// approved products and writes back the active/expired transitions that follow
// slot assignment and reclaim; the catalog owns the rest of the lifecycle.
type Product struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Title          string    `gorm:"size:255;not null" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	Price          int64     `gorm:"not null" json:"price"`
	Currency       string    `gorm:"size:8;not null;default:'XAF'" json:"currency"`
	Status         string    `gorm:"size:16;index;not null" json:"status"`
	SellerID       string    `gorm:"size:36;index;not null" json:"seller_id"`
	WhatsappNumber string    `gorm:"size:20" json:"whatsapp_number"`
	Images         string    `gorm:"type:text" json:"images"` // JSON array of image URLs
	DurationHours  int       `gorm:"not null" json:"duration_hours"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
