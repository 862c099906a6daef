package services

import (
	"context"
	"time"

	"github.com/cmarket/permalink/models"
)

// ScoreSignals are the aggregated inputs for one slot's current assignment
// window. AvgDwellSec and BounceRate come from view event metadata.
type ScoreSignals struct {
	Views          int64
	WhatsappClicks int64
	FacebookShares int64
	AvgDwellSec    float64
	BounceRate     float64
}

// CounterTotals carries the per-assignment counters rolled into the history
// record when a slot is reclaimed.
type CounterTotals struct {
	Views  int64
	Clicks int64
	Shares int64
}

// SlotStore is the persistence contract for the fixed slot pool. ClaimSlot and
// ReleaseSlot must be conditional single-row updates (claim only while
// available, release only while active and owned by the given product) so the
// pool stays consistent across concurrent assigners and the sweep, including
// across multiple service instances.
type SlotStore interface {
	SeedSlots(ctx context.Context, poolSize int) error
	FreeSlots(ctx context.Context) ([]models.PermanentLink, error)
	ActiveSlots(ctx context.Context) ([]models.PermanentLink, error)
	ExpiredSlots(ctx context.Context, now time.Time) ([]models.PermanentLink, error)
	SlotByNumber(ctx context.Context, slotNumber int) (*models.PermanentLink, error)
	ActiveSlotForProduct(ctx context.Context, productID string) (*models.PermanentLink, error)
	// ClaimSlot binds a product to an available slot and resets the
	// per-assignment counters. Returns false when the slot was not available.
	ClaimSlot(ctx context.Context, slotNumber int, productID string, now, expiresAt time.Time) (bool, error)
	// ReleaseSlot frees an active slot owned by productID and bumps its
	// rotation count. Returns false when the slot was not in that state.
	ReleaseSlot(ctx context.Context, slotNumber int, productID string) (bool, error)
	SetSlotScore(ctx context.Context, slotNumber int, score float64) error
	SetSlotMeta(ctx context.Context, slotNumber int, title, description string) error
	// BumpSlotCounter increments the denormalized counter matching eventType.
	BumpSlotCounter(ctx context.Context, linkID uint, eventType string) error
}

// AssignmentStore persists occupancy episodes. A slot must never be released
// without its episode finalized first.
type AssignmentStore interface {
	OpenAssignment(ctx context.Context, a *models.LinkAssignment) error
	OpenAssignmentForLink(ctx context.Context, linkID uint) (*models.LinkAssignment, error)
	FinalizeAssignment(ctx context.Context, id uint, expiredAt time.Time, totals CounterTotals, finalScore float64) error
	AssignmentsForSlot(ctx context.Context, slotNumber int, limit int) ([]models.LinkAssignment, error)
}

// QueueStore is the durable FIFO of approved products waiting for capacity.
type QueueStore interface {
	Enqueue(ctx context.Context, productID string, now time.Time) (*models.QueueEntry, error)
	PendingEntry(ctx context.Context, productID string) (*models.QueueEntry, error)
	PendingQueue(ctx context.Context) ([]models.QueueEntry, error)
	QueueHead(ctx context.Context) (*models.QueueEntry, error)
	MarkPromoted(ctx context.Context, entryID uint, now time.Time) error
}

// ProductStore reads catalog products and writes back the status transitions
// that follow assignment and reclaim. The catalog owns the rest of the product
// lifecycle.
type ProductStore interface {
	ProductByID(ctx context.Context, id string) (*models.Product, error)
	SetProductStatus(ctx context.Context, id, status string) error
}

// EventStore appends analytics events and folds them into score signals.
// Ingestion is best-effort; aggregation is the scoring source of truth.
type EventStore interface {
	InsertEvent(ctx context.Context, e *models.LinkAnalyticsEvent) error
	AggregateSignals(ctx context.Context, linkID uint, since time.Time) (ScoreSignals, error)
}

// SnapshotStore appends daily performance samples. InsertSnapshot must be
// idempotent per (link, day).
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, s *models.PerformanceSnapshot) error
	SnapshotsForSlot(ctx context.Context, slotNumber int, days int) ([]models.PerformanceSnapshot, error)
}

// Store is the full persistence surface the engines run against.
type Store interface {
	SlotStore
	AssignmentStore
	QueueStore
	ProductStore
	EventStore
	SnapshotStore
}
