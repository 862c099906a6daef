package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cmarket/permalink/models"
)

// GormStore implements Store on top of GORM/MySQL. All slot mutations are
// single-row conditional updates checked through RowsAffected, so no
// cross-row transaction is needed anywhere in the engines.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm DB handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// SeedSlots inserts any missing slot rows 1..poolSize. Existing rows are left
// untouched, so bootstrap is safe to run on every start.
func (s *GormStore) SeedSlots(ctx context.Context, poolSize int) error {
	for n := 1; n <= poolSize; n++ {
		link := models.PermanentLink{
			SlotNumber: n,
			Path:       models.SlotPath(n),
			Status:     models.LinkStatusAvailable,
		}
		if err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&link).Error; err != nil {
			return fmt.Errorf("seed slot %d: %w", n, err)
		}
	}
	return nil
}

func (s *GormStore) FreeSlots(ctx context.Context) ([]models.PermanentLink, error) {
	var links []models.PermanentLink
	err := s.db.WithContext(ctx).
		Where("status = ?", models.LinkStatusAvailable).
		Order("slot_number ASC").
		Find(&links).Error
	return links, err
}

func (s *GormStore) ActiveSlots(ctx context.Context) ([]models.PermanentLink, error) {
	var links []models.PermanentLink
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("status = ?", models.LinkStatusActive).
		Order("performance_score DESC").
		Find(&links).Error
	return links, err
}

func (s *GormStore) ExpiredSlots(ctx context.Context, now time.Time) ([]models.PermanentLink, error) {
	var links []models.PermanentLink
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.LinkStatusActive, now).
		Order("slot_number ASC").
		Find(&links).Error
	return links, err
}

func (s *GormStore) SlotByNumber(ctx context.Context, slotNumber int) (*models.PermanentLink, error) {
	var link models.PermanentLink
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("slot_number = ?", slotNumber).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *GormStore) ActiveSlotForProduct(ctx context.Context, productID string) (*models.PermanentLink, error) {
	var link models.PermanentLink
	err := s.db.WithContext(ctx).
		Where("status = ? AND product_id = ?", models.LinkStatusActive, productID).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// ClaimSlot is the assignment compare-and-swap: the update only lands while
// the row is still available. Per-assignment counters start from zero.
func (s *GormStore) ClaimSlot(ctx context.Context, slotNumber int, productID string, now, expiresAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.PermanentLink{}).
		Where("slot_number = ? AND status = ?", slotNumber, models.LinkStatusAvailable).
		Updates(map[string]interface{}{
			"status":            models.LinkStatusActive,
			"product_id":        productID,
			"last_assigned":     now,
			"expires_at":        expiresAt,
			"views_count":       0,
			"whatsapp_clicks":   0,
			"facebook_shares":   0,
			"performance_score": 0,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseSlot is the reclaim compare-and-swap: it only lands while the slot is
// still active and still owned by the product the sweep read.
func (s *GormStore) ReleaseSlot(ctx context.Context, slotNumber int, productID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.PermanentLink{}).
		Where("slot_number = ? AND status = ? AND product_id = ?", slotNumber, models.LinkStatusActive, productID).
		Updates(map[string]interface{}{
			"status":         models.LinkStatusAvailable,
			"product_id":     nil,
			"expires_at":     nil,
			"rotation_count": gorm.Expr("rotation_count + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) SetSlotScore(ctx context.Context, slotNumber int, score float64) error {
	return s.db.WithContext(ctx).
		Model(&models.PermanentLink{}).
		Where("slot_number = ?", slotNumber).
		Update("performance_score", score).Error
}

func (s *GormStore) SetSlotMeta(ctx context.Context, slotNumber int, title, description string) error {
	res := s.db.WithContext(ctx).
		Model(&models.PermanentLink{}).
		Where("slot_number = ?", slotNumber).
		Updates(map[string]interface{}{
			"meta_title":       title,
			"meta_description": description,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (s *GormStore) BumpSlotCounter(ctx context.Context, linkID uint, eventType string) error {
	var column string
	switch eventType {
	case models.EventTypeView:
		column = "views_count"
	case models.EventTypeWhatsappClick:
		column = "whatsapp_clicks"
	case models.EventTypeFacebookShare:
		column = "facebook_shares"
	default:
		return fmt.Errorf("unknown event type %q", eventType)
	}
	return s.db.WithContext(ctx).
		Model(&models.PermanentLink{}).
		Where("id = ?", linkID).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}

func (s *GormStore) OpenAssignment(ctx context.Context, a *models.LinkAssignment) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *GormStore) OpenAssignmentForLink(ctx context.Context, linkID uint) (*models.LinkAssignment, error) {
	var a models.LinkAssignment
	err := s.db.WithContext(ctx).
		Where("link_id = ? AND expired_at IS NULL", linkID).
		Order("id DESC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GormStore) FinalizeAssignment(ctx context.Context, id uint, expiredAt time.Time, totals CounterTotals, finalScore float64) error {
	return s.db.WithContext(ctx).
		Model(&models.LinkAssignment{}).
		Where("id = ? AND expired_at IS NULL", id).
		Updates(map[string]interface{}{
			"expired_at":   expiredAt,
			"total_views":  totals.Views,
			"total_clicks": totals.Clicks,
			"total_shares": totals.Shares,
			"final_score":  finalScore,
		}).Error
}

func (s *GormStore) AssignmentsForSlot(ctx context.Context, slotNumber int, limit int) ([]models.LinkAssignment, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []models.LinkAssignment
	err := s.db.WithContext(ctx).
		Where("slot_number = ?", slotNumber).
		Order("assigned_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (s *GormStore) Enqueue(ctx context.Context, productID string, now time.Time) (*models.QueueEntry, error) {
	entry := models.QueueEntry{ProductID: productID, EnqueuedAt: now}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *GormStore) PendingEntry(ctx context.Context, productID string) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND promoted_at IS NULL", productID).
		Order("id ASC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *GormStore) PendingQueue(ctx context.Context) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := s.db.WithContext(ctx).
		Where("promoted_at IS NULL").
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func (s *GormStore) QueueHead(ctx context.Context) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.db.WithContext(ctx).
		Where("promoted_at IS NULL").
		Order("id ASC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *GormStore) MarkPromoted(ctx context.Context, entryID uint, now time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.QueueEntry{}).
		Where("id = ? AND promoted_at IS NULL", entryID).
		Update("promoted_at", now).Error
}

func (s *GormStore) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) SetProductStatus(ctx context.Context, id, status string) error {
	return s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (s *GormStore) InsertEvent(ctx context.Context, e *models.LinkAnalyticsEvent) error {
	return s.db.WithContext(ctx).Create(e).Error
}

// AggregateSignals folds the event window into score inputs. Dwell time and
// bounce flags ride in the view event metadata JSON.
func (s *GormStore) AggregateSignals(ctx context.Context, linkID uint, since time.Time) (ScoreSignals, error) {
	var row struct {
		Views       int64   `gorm:"column:views"`
		Clicks      int64   `gorm:"column:clicks"`
		Shares      int64   `gorm:"column:shares"`
		AvgDwellSec float64 `gorm:"column:avg_dwell_sec"`
		BounceRate  float64 `gorm:"column:bounce_rate"`
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(event_type = 'view'), 0) AS views,
			COALESCE(SUM(event_type = 'whatsapp_click'), 0) AS clicks,
			COALESCE(SUM(event_type = 'facebook_share'), 0) AS shares,
			COALESCE(AVG(CASE WHEN event_type = 'view' AND JSON_VALID(metadata)
				THEN CAST(JSON_EXTRACT(metadata, '$.dwell_ms') AS DECIMAL(12,2)) / 1000 END), 0) AS avg_dwell_sec,
			COALESCE(AVG(CASE WHEN event_type = 'view' AND JSON_VALID(metadata)
				THEN JSON_UNQUOTE(JSON_EXTRACT(metadata, '$.bounced')) = 'true' END), 0) AS bounce_rate
		FROM link_analytics_events
		WHERE link_id = ? AND created_at >= ?`, linkID, since).
		Scan(&row).Error
	if err != nil {
		return ScoreSignals{}, err
	}
	return ScoreSignals{
		Views:          row.Views,
		WhatsappClicks: row.Clicks,
		FacebookShares: row.Shares,
		AvgDwellSec:    row.AvgDwellSec,
		BounceRate:     row.BounceRate,
	}, nil
}

func (s *GormStore) InsertSnapshot(ctx context.Context, snap *models.PerformanceSnapshot) error {
	// (link_id, day) is unique; replays of the daily job are no-ops
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(snap).Error
}

func (s *GormStore) SnapshotsForSlot(ctx context.Context, slotNumber int, days int) ([]models.PerformanceSnapshot, error) {
	if days <= 0 {
		days = 30
	}
	var snaps []models.PerformanceSnapshot
	err := s.db.WithContext(ctx).
		Joins("JOIN permanent_links ON permanent_links.id = link_performance_history.link_id").
		Where("permanent_links.slot_number = ?", slotNumber).
		Order("day DESC").
		Limit(days).
		Find(&snaps).Error
	return snaps, err
}
