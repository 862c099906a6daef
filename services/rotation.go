package services

import (
	"context"
	"time"

	"github.com/cmarket/permalink/models"
	"github.com/cmarket/permalink/utils"
)

// RotationSweeper reclaims slots whose assignment has run out and promotes
// queued products into the freed capacity.
type RotationSweeper struct {
	store    Store
	engine   *AssignmentEngine
	notifier CatalogNotifier
	now      func() time.Time
	// invalidate drops the cached storefront listing after a reclaim; nil in tests
	invalidate func()
	stop       chan struct{}
}

// NewRotationSweeper wires the sweeper. notifier and invalidate may be nil.
func NewRotationSweeper(store Store, engine *AssignmentEngine, notifier CatalogNotifier, invalidate func()) *RotationSweeper {
	return &RotationSweeper{
		store:      store,
		engine:     engine,
		notifier:   notifier,
		now:        time.Now,
		invalidate: invalidate,
		stop:       make(chan struct{}),
	}
}

// Sweep reclaims every expired slot and runs one queue-promotion pass, so a
// waiting product lands on a freed slot within the same cycle. Returns the
// reclaimed slot numbers.
//
// Reclaim order is finalize-then-free: the history record is closed before
// the slot is released. If the finalize write fails the slot stays active and
// the next tick retries; a freed slot without a retained history record is
// the one state this subsystem never allows.
func (s *RotationSweeper) Sweep(ctx context.Context) ([]int, error) {
	expired, err := s.store.ExpiredSlots(ctx, s.now())
	if err != nil {
		return nil, err
	}

	var reclaimed []int
	for _, slot := range expired {
		if s.reclaim(ctx, slot) {
			reclaimed = append(reclaimed, slot.SlotNumber)
		}
	}

	if len(reclaimed) > 0 && s.invalidate != nil {
		s.invalidate()
	}

	if promoted, err := s.engine.PromoteQueued(ctx); err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Warnf("queue promotion after sweep failed: %v", err)
		}
	} else if promoted > 0 && utils.Sugar != nil {
		utils.Sugar.Infof("sweep promoted %d queued products", promoted)
	}

	return reclaimed, nil
}

func (s *RotationSweeper) reclaim(ctx context.Context, slot models.PermanentLink) bool {
	if slot.ProductID == nil {
		// Active without an owner should not happen; leave it for inspection
		if utils.Sugar != nil {
			utils.Sugar.Errorf("slot %d is active with no product, skipping", slot.SlotNumber)
		}
		return false
	}
	productID := *slot.ProductID
	now := s.now()

	record, err := s.store.OpenAssignmentForLink(ctx, slot.ID)
	if err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Warnf("slot %d: reading open assignment failed, retrying next tick: %v", slot.SlotNumber, err)
		}
		return false
	}
	if record == nil {
		// The audit row went missing; reconstruct it from the slot before
		// freeing, so the history survives
		record = &models.LinkAssignment{
			LinkID:     slot.ID,
			SlotNumber: slot.SlotNumber,
			ProductID:  productID,
			AssignedAt: derefTime(slot.LastAssigned, now),
		}
		if err := s.store.OpenAssignment(ctx, record); err != nil {
			if utils.Sugar != nil {
				utils.Sugar.Warnf("slot %d: rebuilding assignment record failed, retrying next tick: %v", slot.SlotNumber, err)
			}
			return false
		}
	}

	totals := CounterTotals{
		Views:  slot.ViewsCount,
		Clicks: slot.WhatsappClicks,
		Shares: slot.FacebookShares,
	}
	if err := s.store.FinalizeAssignment(ctx, record.ID, now, totals, slot.PerformanceScore); err != nil {
		// Slot stays active; the next tick retries finalize-then-free as a unit
		if utils.Sugar != nil {
			utils.Sugar.Warnf("slot %d: finalize failed, slot left active: %v", slot.SlotNumber, err)
		}
		return false
	}

	released, err := s.store.ReleaseSlot(ctx, slot.SlotNumber, productID)
	if err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Warnf("slot %d: release failed after finalize, retrying next tick: %v", slot.SlotNumber, err)
		}
		return false
	}
	if !released {
		// Lost the compare-and-swap to a concurrent assign/reclaim
		return false
	}

	if err := s.store.SetProductStatus(ctx, productID, models.ProductStatusExpired); err != nil && utils.Sugar != nil {
		utils.Sugar.Warnf("product %s status writeback failed: %v", productID, err)
	}
	if s.notifier != nil {
		s.notifier.ProductReclaimed(ctx, productID)
	}
	if utils.Sugar != nil {
		utils.Sugar.Infof("reclaimed slot %d from product %s", slot.SlotNumber, productID)
	}
	return true
}

// Run sweeps on a fixed cadence until Stop is called.
func (s *RotationSweeper) Run(interval time.Duration) {
	if interval <= 0 {
		interval = 3 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := s.Sweep(ctx); err != nil && utils.Sugar != nil {
				utils.Sugar.Errorf("rotation sweep failed: %v", err)
			}
			cancel()
		}
	}
}

// Stop ends the Run loop.
func (s *RotationSweeper) Stop() {
	close(s.stop)
}

func derefTime(t *time.Time, fallback time.Time) time.Time {
	if t != nil {
		return *t
	}
	return fallback
}
