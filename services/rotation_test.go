package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cmarket/permalink/models"
)

// fakeClock lets the engine and the sweeper share a controllable now.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newSweepFixture(poolSize int) (*memStore, *AssignmentEngine, *RotationSweeper, *fakeClock) {
	store := newMemStore(poolSize)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := NewAssignmentEngine(store, nil, nil)
	engine.now = clock.Now
	sweeper := NewRotationSweeper(store, engine, nil, nil)
	sweeper.now = clock.Now
	return store, engine, sweeper, clock
}

func TestSweepReclaimsExpiredSlot(t *testing.T) {
	store, engine, sweeper, clock := newSweepFixture(5)
	ctx := context.Background()

	store.addProduct("prod-a", models.ProductStatusApproved, 24)
	_, err := engine.Assign(ctx, "prod-a")
	require.NoError(t, err)

	require.NoError(t, store.BumpSlotCounter(ctx, 1, models.EventTypeView))
	require.NoError(t, store.BumpSlotCounter(ctx, 1, models.EventTypeWhatsappClick))
	require.NoError(t, store.SetSlotScore(ctx, 1, 42.5))

	clock.Advance(25 * time.Hour)
	reclaimed, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{1}, reclaimed)

	slot, err := store.SlotByNumber(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, models.LinkStatusAvailable, slot.Status)
	require.Nil(t, slot.ProductID)
	require.Nil(t, slot.ExpiresAt)
	require.Equal(t, int64(1), slot.RotationCount)

	// Lifetime totals survive in the closed history record
	history, err := store.AssignmentsForSlot(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].ExpiredAt)
	require.Equal(t, int64(1), history[0].TotalViews)
	require.Equal(t, int64(1), history[0].TotalClicks)
	require.Equal(t, 42.5, history[0].FinalScore)

	p, err := store.ProductByID(ctx, "prod-a")
	require.NoError(t, err)
	require.Equal(t, models.ProductStatusExpired, p.Status)
}

func TestSweepIgnoresUnexpiredSlots(t *testing.T) {
	store, engine, sweeper, clock := newSweepFixture(5)
	ctx := context.Background()

	store.addProduct("prod-a", models.ProductStatusApproved, 24)
	store.addProduct("prod-b", models.ProductStatusApproved, 72)
	_, err := engine.Assign(ctx, "prod-a")
	require.NoError(t, err)
	_, err = engine.Assign(ctx, "prod-b")
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)
	reclaimed, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{1}, reclaimed)

	slot, err := store.SlotByNumber(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, models.LinkStatusActive, slot.Status)
}

func TestSweepPromotesQueueHeadSameCycle(t *testing.T) {
	store, engine, sweeper, clock := newSweepFixture(1)
	ctx := context.Background()

	store.addProduct("prod-a", models.ProductStatusApproved, 24)
	store.addProduct("prod-b", models.ProductStatusApproved, 24)
	store.addProduct("prod-c", models.ProductStatusApproved, 24)

	_, err := engine.Assign(ctx, "prod-a")
	require.NoError(t, err)
	_, err = engine.Assign(ctx, "prod-b")
	require.NoError(t, err)
	_, err = engine.Assign(ctx, "prod-c")
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)
	reclaimed, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{1}, reclaimed)

	// The freed slot belongs to B, the queue head, within the same sweep
	slot, err := store.SlotByNumber(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, models.LinkStatusActive, slot.Status)
	require.Equal(t, "prod-b", *slot.ProductID)

	pending, err := store.PendingQueue(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "prod-c", pending[0].ProductID)
}

func TestSweepIsIdempotent(t *testing.T) {
	store, engine, sweeper, clock := newSweepFixture(5)
	ctx := context.Background()

	store.addProduct("prod-a", models.ProductStatusApproved, 24)
	_, err := engine.Assign(ctx, "prod-a")
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)
	reclaimed, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)

	reclaimed, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Empty(t, reclaimed)

	history, err := store.AssignmentsForSlot(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestFinalizeFailureLeavesSlotActive(t *testing.T) {
	store, engine, sweeper, clock := newSweepFixture(5)
	ctx := context.Background()

	store.addProduct("prod-a", models.ProductStatusApproved, 24)
	_, err := engine.Assign(ctx, "prod-a")
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)
	store.failFinalize = true

	reclaimed, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Empty(t, reclaimed)

	// Slot stays owned until the history write lands
	slot, err := store.SlotByNumber(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, models.LinkStatusActive, slot.Status)
	require.Equal(t, "prod-a", *slot.ProductID)

	record, err := store.OpenAssignmentForLink(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Nil(t, record.ExpiredAt)

	// Next tick succeeds and completes the reclaim
	store.failFinalize = false
	reclaimed, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{1}, reclaimed)
}

func TestSweepRebuildsMissingAssignmentRecord(t *testing.T) {
	store, engine, sweeper, clock := newSweepFixture(5)
	ctx := context.Background()

	store.addProduct("prod-a", models.ProductStatusApproved, 24)
	_, err := engine.Assign(ctx, "prod-a")
	require.NoError(t, err)

	// Simulate a lost audit row
	store.mu.Lock()
	store.assignments = nil
	store.mu.Unlock()

	clock.Advance(25 * time.Hour)
	reclaimed, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{1}, reclaimed)

	history, err := store.AssignmentsForSlot(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "prod-a", history[0].ProductID)
	require.NotNil(t, history[0].ExpiredAt)
}

func TestRotationCountAccumulates(t *testing.T) {
	store, engine, sweeper, clock := newSweepFixture(1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := "prod-" + string(rune('a'+i))
		store.addProduct(id, models.ProductStatusApproved, 24)
		_, err := engine.Assign(ctx, id)
		require.NoError(t, err)

		clock.Advance(25 * time.Hour)
		_, err = sweeper.Sweep(ctx)
		require.NoError(t, err)
	}

	slot, err := store.SlotByNumber(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), slot.RotationCount)

	history, err := store.AssignmentsForSlot(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
}
