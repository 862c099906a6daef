package models

import "time"

// PerformanceSnapshot stores one daily score sample per link for trend charts.
// The log is append-only; a (link_id, day) pair is written at most once and
// never corrected in place.
type PerformanceSnapshot struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LinkID    uint      `gorm:"index:idx_history_link_day,unique;not null" json:"link_id"`
	Day       time.Time `gorm:"index:idx_history_link_day,unique;type:date;not null" json:"day"`
	Score     float64   `gorm:"not null;default:0" json:"score"`
	Views     int64     `gorm:"not null;default:0" json:"views"`
	Clicks    int64     `gorm:"not null;default:0" json:"clicks"`
	Shares    int64     `gorm:"not null;default:0" json:"shares"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName matches the storefront schema.
func (PerformanceSnapshot) TableName() string {
	return "link_performance_history"
}
