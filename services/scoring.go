package services

import (
	"context"
	"time"

	"github.com/cmarket/permalink/config"
	"github.com/cmarket/permalink/models"
	"github.com/cmarket/permalink/utils"
)

// ScoreStrategy turns one slot's signals into a comparable score. Kept behind
// an interface so the weighting can be tuned without touching the engine.
type ScoreStrategy interface {
	Score(s ScoreSignals) float64
}

// EngagementStrategy is the default scoring formula. It yields 0..100 and is
// weighted so that buyer contact (whatsapp click-through) outranks raw
// traffic: the business goal is contact, not vanity views.
type EngagementStrategy struct {
	EngagementWeight float64 // contact/share rate share of the score
	AttentionWeight  float64 // dwell/non-bounce share of the score
	ClickWeight      float64 // clicks vs shares inside engagement
	DwellCapSec      float64 // dwell seconds counted as full attention
}

// NewEngagementStrategy builds the strategy from configuration.
func NewEngagementStrategy(cfg config.AppConfig) *EngagementStrategy {
	return &EngagementStrategy{
		EngagementWeight: cfg.ScoreEngagementWeight,
		AttentionWeight:  cfg.ScoreAttentionWeight,
		ClickWeight:      cfg.ScoreClickWeight,
		DwellCapSec:      float64(cfg.ScoreDwellCapSec),
	}
}

// Score computes the slot score. A slot with no views scores zero; there is
// nothing to weigh and no rate to divide.
func (st *EngagementStrategy) Score(s ScoreSignals) float64 {
	if s.Views <= 0 {
		return 0
	}

	views := float64(s.Views)
	engagement := (st.ClickWeight*float64(s.WhatsappClicks) + (1-st.ClickWeight)*float64(s.FacebookShares)) / views
	engagement = clamp01(engagement)

	dwell := 0.0
	if st.DwellCapSec > 0 {
		dwell = clamp01(s.AvgDwellSec / st.DwellCapSec)
	}
	attention := 0.5*dwell + 0.5*(1-clamp01(s.BounceRate))

	return 100 * clamp01(st.EngagementWeight*engagement+st.AttentionWeight*attention)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ScoringEngine recomputes slot scores from the analytics event log and keeps
// the daily history. Recomputation is a pure fold over the current assignment
// window, so replays always land on the same value.
type ScoringEngine struct {
	store    Store
	strategy ScoreStrategy
	now      func() time.Time
}

// NewScoringEngine wires the engine with the given strategy.
func NewScoringEngine(store Store, strategy ScoreStrategy) *ScoringEngine {
	return &ScoringEngine{store: store, strategy: strategy, now: time.Now}
}

// RecomputeSlot recomputes and persists one active slot's score.
func (e *ScoringEngine) RecomputeSlot(ctx context.Context, slotNumber int) (float64, error) {
	slot, err := e.store.SlotByNumber(ctx, slotNumber)
	if err != nil {
		return 0, err
	}
	if slot.Status != models.LinkStatusActive || slot.LastAssigned == nil {
		return 0, ErrSlotNotActive
	}

	signals, err := e.store.AggregateSignals(ctx, slot.ID, *slot.LastAssigned)
	if err != nil {
		return 0, err
	}

	score := e.strategy.Score(signals)
	if err := e.store.SetSlotScore(ctx, slotNumber, score); err != nil {
		return 0, err
	}
	return score, nil
}

// RecomputeAll refreshes every active slot. Failures on individual slots are
// logged and skipped so one bad row cannot stall the batch.
func (e *ScoringEngine) RecomputeAll(ctx context.Context) error {
	active, err := e.store.ActiveSlots(ctx)
	if err != nil {
		return err
	}
	for _, slot := range active {
		if _, err := e.RecomputeSlot(ctx, slot.SlotNumber); err != nil {
			if utils.Sugar != nil {
				utils.Sugar.Warnf("score recompute failed for slot %d: %v", slot.SlotNumber, err)
			}
		}
	}
	return nil
}

// SnapshotDaily appends today's score sample for every active slot. The
// (link, day) uniqueness makes repeated runs within a day harmless.
func (e *ScoringEngine) SnapshotDaily(ctx context.Context) error {
	active, err := e.store.ActiveSlots(ctx)
	if err != nil {
		return err
	}
	now := e.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, slot := range active {
		snap := models.PerformanceSnapshot{
			LinkID: slot.ID,
			Day:    day,
			Score:  slot.PerformanceScore,
			Views:  slot.ViewsCount,
			Clicks: slot.WhatsappClicks,
			Shares: slot.FacebookShares,
		}
		if err := e.store.InsertSnapshot(ctx, &snap); err != nil && utils.Sugar != nil {
			utils.Sugar.Warnf("snapshot write failed for slot %d: %v", slot.SlotNumber, err)
		}
	}
	return nil
}

// Run recomputes scores on a fixed cadence until stop is closed. Each pass
// also writes the daily snapshot, which deduplicates itself per day.
func (e *ScoringEngine) Run(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if err := e.RecomputeAll(ctx); err != nil && utils.Sugar != nil {
				utils.Sugar.Errorf("score batch failed: %v", err)
			}
			if err := e.SnapshotDaily(ctx); err != nil && utils.Sugar != nil {
				utils.Sugar.Errorf("snapshot batch failed: %v", err)
			}
			cancel()
		}
	}
}
