package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cmarket/permalink/services"
	"github.com/cmarket/permalink/utils"
)

// AssignmentController exposes slot assignment, the manual sweep trigger, and
// the wait queue to admin tooling.
type AssignmentController struct {
	store   services.Store
	engine  *services.AssignmentEngine
	sweeper *services.RotationSweeper
}

// NewAssignmentController creates a new AssignmentController instance.
func NewAssignmentController(store services.Store, engine *services.AssignmentEngine, sweeper *services.RotationSweeper) *AssignmentController {
	return &AssignmentController{store: store, engine: engine, sweeper: sweeper}
}

// Assign binds an approved product to the lowest free slot, or queues it when
// all slots are taken. Queueing is an informational outcome, not an error.
func (a *AssignmentController) Assign(ctx *gin.Context) {
	var req struct {
		ProductID string `json:"product_id" binding:"required,max=36"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}

	result, err := a.engine.Assign(ctx.Request.Context(), req.ProductID)
	switch {
	case err == nil:
		if result.Queued {
			utils.Success(ctx, gin.H{
				"queued":         true,
				"queue_position": result.QueuePosition,
				"message":        "all spots assigned, new listings queued",
			})
			return
		}
		utils.Success(ctx, result)
	case errors.Is(err, services.ErrProductNotFound):
		utils.Error(ctx, http.StatusNotFound, 40450, "product not found")
	case errors.Is(err, services.ErrInvalidProductState):
		utils.Error(ctx, http.StatusUnprocessableEntity, 42250, "product not eligible for assignment")
	case errors.Is(err, services.ErrDuplicateAssignment):
		utils.Error(ctx, http.StatusConflict, 40950, "product already assigned")
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50050, "assignment failed")
	}
}

// Sweep runs one reclaim pass immediately and reports the freed slots. The
// scheduler runs the same pass on its own cadence.
func (a *AssignmentController) Sweep(ctx *gin.Context) {
	reclaimed, err := a.sweeper.Sweep(ctx.Request.Context())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "sweep failed")
		return
	}
	if reclaimed == nil {
		reclaimed = []int{}
	}
	utils.Success(ctx, gin.H{"reclaimed_slots": reclaimed})
}

// Queue lists products waiting for capacity in promotion order.
func (a *AssignmentController) Queue(ctx *gin.Context) {
	pending, err := a.store.PendingQueue(ctx.Request.Context())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to load queue")
		return
	}
	utils.Success(ctx, gin.H{"queue": pending, "length": len(pending)})
}
