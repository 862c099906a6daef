package models

import "time"

// Analytics event types accepted by the ingestion endpoint.
const (
	EventTypeView          = "view"
	EventTypeWhatsappClick = "whatsapp_click"
	EventTypeFacebookShare = "facebook_share"
)

// LinkAnalyticsEvent is an immutable interaction record. Events are the source
// of truth for score computation; counters on the link row are a denormalized
// convenience and may lag behind.
type LinkAnalyticsEvent struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	LinkID    uint      `gorm:"index:idx_events_link_created;not null" json:"link_id"`
	EventType string    `gorm:"size:24;not null" json:"event_type"`
	Metadata  string    `gorm:"type:text" json:"metadata"` // JSON: dwell_ms, bounced, referrer
	CreatedAt time.Time `gorm:"index:idx_events_link_created" json:"created_at"`
}

// TableName matches the storefront schema.
func (LinkAnalyticsEvent) TableName() string {
	return "link_analytics_events"
}

// ValidEventType reports whether t is one of the accepted event types.
func ValidEventType(t string) bool {
	switch t {
	case EventTypeView, EventTypeWhatsappClick, EventTypeFacebookShare:
		return true
	}
	return false
}
