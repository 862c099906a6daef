package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmarket/permalink/models"
	"github.com/cmarket/permalink/utils"
)

// AssignResult is the synchronous outcome of an assignment request. Capacity
// exhaustion is not an error: the product is queued and Queued is set.
type AssignResult struct {
	Queued        bool       `json:"queued"`
	QueuePosition int        `json:"queue_position,omitempty"`
	SlotNumber    int        `json:"slot_number,omitempty"`
	Path          string     `json:"path,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// AssignmentEngine binds approved products to slots. The lowest-numbered free
// slot always wins, which keeps placement deterministic and feeds the
// storefront's featured band (slots 1..FeaturedCount).
type AssignmentEngine struct {
	store    Store
	notifier CatalogNotifier
	now      func() time.Time
	// invalidate drops the cached storefront listing after a mutation; nil in tests
	invalidate func()
}

// NewAssignmentEngine wires the engine. notifier and invalidate may be nil.
func NewAssignmentEngine(store Store, notifier CatalogNotifier, invalidate func()) *AssignmentEngine {
	return &AssignmentEngine{
		store:      store,
		notifier:   notifier,
		now:        time.Now,
		invalidate: invalidate,
	}
}

// Assign places a product on the lowest free slot, or queues it when the pool
// is at capacity. Returns ErrInvalidProductState for non-approved products and
// ErrDuplicateAssignment when the product already holds a slot.
func (e *AssignmentEngine) Assign(ctx context.Context, productID string) (*AssignResult, error) {
	product, err := e.store.ProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Status != models.ProductStatusApproved {
		return nil, fmt.Errorf("%w: product %s is %s", ErrInvalidProductState, productID, product.Status)
	}
	if product.DurationHours <= 0 {
		return nil, fmt.Errorf("%w: product %s has no paid duration", ErrInvalidProductState, productID)
	}

	if active, err := e.store.ActiveSlotForProduct(ctx, productID); err != nil {
		return nil, err
	} else if active != nil {
		return nil, fmt.Errorf("%w: product %s holds slot %d", ErrDuplicateAssignment, productID, active.SlotNumber)
	}

	result, err := e.place(ctx, product)
	if errors.Is(err, ErrSlotConflict) {
		// Lost the retry too; treat contention like a full pool and queue
		return e.enqueue(ctx, productID)
	}
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}
	return e.enqueue(ctx, productID)
}

// place tries to claim the lowest free slot, retrying once after a lost race.
// Returns (nil, nil) when the pool is full.
func (e *AssignmentEngine) place(ctx context.Context, product *models.Product) (*AssignResult, error) {
	for attempt := 0; attempt < 2; attempt++ {
		free, err := e.store.FreeSlots(ctx)
		if err != nil {
			return nil, err
		}
		if len(free) == 0 {
			return nil, nil
		}

		slot := free[0]
		now := e.now()
		expiresAt := now.Add(time.Duration(product.DurationHours) * time.Hour)

		claimed, err := e.store.ClaimSlot(ctx, slot.SlotNumber, product.ID, now, expiresAt)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Lost the compare-and-swap; re-read the registry and try once more
			continue
		}

		if err := e.store.OpenAssignment(ctx, &models.LinkAssignment{
			LinkID:     slot.ID,
			SlotNumber: slot.SlotNumber,
			ProductID:  product.ID,
			AssignedAt: now,
		}); err != nil {
			// A slot without an open audit record must not stay claimed
			if _, relErr := e.store.ReleaseSlot(ctx, slot.SlotNumber, product.ID); relErr != nil && utils.Sugar != nil {
				utils.Sugar.Errorf("rollback of slot %d after audit failure also failed: %v", slot.SlotNumber, relErr)
			}
			return nil, err
		}

		if err := e.store.SetProductStatus(ctx, product.ID, models.ProductStatusActive); err != nil && utils.Sugar != nil {
			utils.Sugar.Warnf("product %s status writeback failed: %v", product.ID, err)
		}
		if e.notifier != nil {
			e.notifier.ProductAssigned(ctx, product.ID, slot.SlotNumber)
		}
		if e.invalidate != nil {
			e.invalidate()
		}
		if utils.Sugar != nil {
			utils.Sugar.Infof("assigned product %s to slot %d until %s", product.ID, slot.SlotNumber, expiresAt.Format(time.RFC3339))
		}

		return &AssignResult{
			SlotNumber: slot.SlotNumber,
			Path:       slot.Path,
			ExpiresAt:  &expiresAt,
		}, nil
	}
	return nil, ErrSlotConflict
}

func (e *AssignmentEngine) enqueue(ctx context.Context, productID string) (*AssignResult, error) {
	// Re-enqueueing an already waiting product keeps its original position.
	// The check-then-insert leaves a window where two instances enqueue the
	// same product; PromoteQueued drops the duplicate when it surfaces.
	if existing, err := e.store.PendingEntry(ctx, productID); err != nil {
		return nil, err
	} else if existing != nil {
		pos, err := e.queuePosition(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		return &AssignResult{Queued: true, QueuePosition: pos}, nil
	}

	entry, err := e.store.Enqueue(ctx, productID, e.now())
	if err != nil {
		return nil, err
	}
	pos, err := e.queuePosition(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	if utils.Sugar != nil {
		utils.Sugar.Infof("pool at capacity, queued product %s at position %d", productID, pos)
	}
	return &AssignResult{Queued: true, QueuePosition: pos}, nil
}

func (e *AssignmentEngine) queuePosition(ctx context.Context, entryID uint) (int, error) {
	pending, err := e.store.PendingQueue(ctx)
	if err != nil {
		return 0, err
	}
	for i, entry := range pending {
		if entry.ID == entryID {
			return i + 1, nil
		}
	}
	return len(pending), nil
}

// PromoteQueued places waiting products onto free slots in FIFO order until
// either the queue or the free list is exhausted. Entries whose product is no
// longer eligible are dropped from the queue rather than blocking it.
func (e *AssignmentEngine) PromoteQueued(ctx context.Context) (int, error) {
	promoted := 0
	for {
		head, err := e.store.QueueHead(ctx)
		if err != nil {
			return promoted, err
		}
		if head == nil {
			return promoted, nil
		}

		product, err := e.store.ProductByID(ctx, head.ProductID)
		if errors.Is(err, ErrProductNotFound) {
			if err := e.store.MarkPromoted(ctx, head.ID, e.now()); err != nil {
				return promoted, err
			}
			continue
		}
		if err != nil {
			return promoted, err
		}
		if product.Status != models.ProductStatusApproved || product.DurationHours <= 0 {
			// Rejected or withdrawn while waiting; drop and move on
			if utils.Sugar != nil {
				utils.Sugar.Infof("dropping stale queue entry for product %s (status %s)", product.ID, product.Status)
			}
			if err := e.store.MarkPromoted(ctx, head.ID, e.now()); err != nil {
				return promoted, err
			}
			continue
		}

		if active, err := e.store.ActiveSlotForProduct(ctx, product.ID); err != nil {
			return promoted, err
		} else if active != nil {
			// Already placed through another path; drop the stale entry
			if err := e.store.MarkPromoted(ctx, head.ID, e.now()); err != nil {
				return promoted, err
			}
			continue
		}

		result, err := e.place(ctx, product)
		if errors.Is(err, ErrSlotConflict) {
			// Another instance is placing too; let its pass finish the queue
			return promoted, nil
		}
		if err != nil {
			return promoted, err
		}
		if result == nil {
			// No capacity yet
			return promoted, nil
		}
		if err := e.store.MarkPromoted(ctx, head.ID, e.now()); err != nil {
			return promoted, err
		}
		promoted++
	}
}
