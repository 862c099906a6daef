package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cmarket/permalink/models"
	"github.com/cmarket/permalink/services"
	"github.com/cmarket/permalink/utils"
)

// AnalyticsController ingests engagement events from the storefront. The
// ingest path is best-effort: an incorrect slot binding matters, a dropped
// counter increment does not.
type AnalyticsController struct {
	store services.Store
}

// NewAnalyticsController creates a new AnalyticsController instance.
func NewAnalyticsController(store services.Store) *AnalyticsController {
	return &AnalyticsController{store: store}
}

// Track records one interaction event for a slot.
func (a *AnalyticsController) Track(ctx *gin.Context) {
	var req struct {
		SlotNumber int             `json:"slot_number" binding:"required,min=1"`
		EventType  string          `json:"event_type" binding:"required"`
		Metadata   json.RawMessage `json:"metadata"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	if !models.ValidEventType(req.EventType) {
		utils.Error(ctx, http.StatusBadRequest, 40041, "unknown event type")
		return
	}

	slot, err := a.store.SlotByNumber(ctx.Request.Context(), req.SlotNumber)
	if err == services.ErrSlotNotFound {
		utils.Error(ctx, http.StatusNotFound, 40410, "no such link")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to record event")
		return
	}
	if slot.Status != models.LinkStatusActive {
		// Nothing to measure on a free slot
		utils.Error(ctx, http.StatusConflict, 40940, "link has no active listing")
		return
	}

	RecordEvent(a.store, slot.ID, req.EventType, string(req.Metadata))
	utils.Success(ctx, gin.H{"recorded": true})
}

// RecordEvent appends an analytics event and bumps the matching denormalized
// counter off the request path. Failures are logged, never surfaced; scoring
// tolerates gaps in the event log.
func RecordEvent(store services.Store, linkID uint, eventType, metadata string) {
	event := models.LinkAnalyticsEvent{
		ID:        uuid.NewString(),
		LinkID:    linkID,
		EventType: eventType,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := store.InsertEvent(bg, &event); err != nil {
			if utils.Sugar != nil {
				utils.Sugar.Debugf("dropped %s event for link %d: %v", eventType, linkID, err)
			}
			return
		}
		if err := store.BumpSlotCounter(bg, linkID, eventType); err != nil && utils.Sugar != nil {
			utils.Sugar.Debugf("counter bump failed for link %d: %v", linkID, err)
		}
		if eventType == models.EventTypeView {
			utils.IncrDailyViews()
		}
	}()
}
