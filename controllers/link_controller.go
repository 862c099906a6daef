package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cmarket/permalink/config"
	"github.com/cmarket/permalink/models"
	"github.com/cmarket/permalink/services"
	"github.com/cmarket/permalink/utils"
)

// LinkController serves the storefront read path and the admin slot screens.
type LinkController struct {
	db      *gorm.DB
	store   services.Store
	query   *services.QueryService
	scoring *services.ScoringEngine
}

// NewLinkController creates a new LinkController instance.
func NewLinkController(db *gorm.DB, store services.Store, query *services.QueryService, scoring *services.ScoringEngine) *LinkController {
	return &LinkController{db: db, store: store, query: query, scoring: scoring}
}

const activeListingCacheKey = "cache:links:active"

// ListActive returns active slots ordered by performance score, the default
// storefront order. The payload is cached; assignment and reclaim invalidate it.
func (l *LinkController) ListActive(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(activeListingCacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	links, err := l.store.ActiveSlots(ctx.Request.Context())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load active links")
		return
	}

	cfg := config.Get()
	payload := gin.H{
		"links":          links,
		"featured_count": cfg.FeaturedCount,
		"pool_size":      cfg.PoolSize,
	}
	// Wrap in standard response and cache
	wrapper := struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(activeListingCacheKey, wrapper, time.Duration(cfg.ListingCacheTTLSec)*time.Second)
	utils.Success(ctx, payload)
}

// Resolve serves a public permanent link path such as /p45: the slot's active
// product, or a capacity placeholder when the slot is free. A successful
// resolve records a view event best-effort.
func (l *LinkController) Resolve(ctx *gin.Context, slotNumber int) {
	slot, err := l.store.SlotByNumber(ctx.Request.Context(), slotNumber)
	if err == services.ErrSlotNotFound {
		utils.Error(ctx, http.StatusNotFound, 40410, "no such link")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to resolve link")
		return
	}

	if slot.Status != models.LinkStatusActive || slot.Product == nil {
		utils.Success(ctx, gin.H{
			"slot_number": slot.SlotNumber,
			"path":        slot.Path,
			"status":      slot.Status,
		})
		return
	}

	// View counting is fire-and-forget; a lost increment is acceptable
	RecordEvent(l.store, slot.ID, models.EventTypeView, "")

	utils.Success(ctx, gin.H{
		"slot_number":      slot.SlotNumber,
		"path":             slot.Path,
		"status":           slot.Status,
		"meta_title":       slot.MetaTitle,
		"meta_description": slot.MetaDescription,
		"product":          slot.Product,
	})
}

// ListLinks is the admin listing with status/search/sort/date filters.
func (l *LinkController) ListLinks(ctx *gin.Context) {
	q := services.LinkQuery{
		Status:  ctx.Query("status"),
		Search:  strings.TrimSpace(ctx.Query("search")),
		SortBy:  ctx.Query("sort_by"),
		SortDir: ctx.Query("sort_dir"),
	}
	q.Page, q.PerPage = parsePagination(ctx.Query("page"), ctx.Query("per_page"))
	if from, ok := parseDate(ctx.Query("assigned_from")); ok {
		q.AssignedFrom = &from
	}
	if to, ok := parseDate(ctx.Query("assigned_to")); ok {
		q.AssignedTo = &to
	}

	page, err := l.query.ListLinks(ctx.Request.Context(), q)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to list links")
		return
	}
	utils.Success(ctx, page)
}

// GetLink returns one slot with its recent assignment history.
func (l *LinkController) GetLink(ctx *gin.Context) {
	slotNumber, ok := parseSlotNumber(ctx)
	if !ok {
		return
	}

	slot, err := l.store.SlotByNumber(ctx.Request.Context(), slotNumber)
	if err == services.ErrSlotNotFound {
		utils.Error(ctx, http.StatusNotFound, 40411, "no such slot")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to load slot")
		return
	}

	history, err := l.store.AssignmentsForSlot(ctx.Request.Context(), slotNumber, 20)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to load slot history")
		return
	}

	utils.Success(ctx, gin.H{"link": slot, "assignments": history})
}

// GetHistory returns the daily performance snapshots for trend charts.
func (l *LinkController) GetHistory(ctx *gin.Context) {
	slotNumber, ok := parseSlotNumber(ctx)
	if !ok {
		return
	}
	days := 30
	if v, err := strconv.Atoi(ctx.Query("days")); err == nil && v > 0 && v <= 365 {
		days = v
	}

	snaps, err := l.store.SnapshotsForSlot(ctx.Request.Context(), slotNumber, days)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50014, "failed to load history")
		return
	}
	utils.Success(ctx, gin.H{"history": snaps})
}

// UpdateMeta sets a slot's SEO meta fields. Input is stripped of any HTML.
func (l *LinkController) UpdateMeta(ctx *gin.Context) {
	slotNumber, ok := parseSlotNumber(ctx)
	if !ok {
		return
	}

	var req struct {
		MetaTitle       string `json:"meta_title" binding:"max=255"`
		MetaDescription string `json:"meta_description" binding:"max=512"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	title := utils.SanitizeMeta(strings.TrimSpace(req.MetaTitle))
	description := utils.SanitizeMeta(strings.TrimSpace(req.MetaDescription))

	if err := l.store.SetSlotMeta(ctx.Request.Context(), slotNumber, title, description); err != nil {
		if err == services.ErrSlotNotFound {
			utils.Error(ctx, http.StatusNotFound, 40411, "no such slot")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50015, "failed to update meta")
		return
	}
	utils.Success(ctx, gin.H{"slot_number": slotNumber, "meta_title": title, "meta_description": description})
}

// RecomputeScore recomputes one slot's performance score on demand.
func (l *LinkController) RecomputeScore(ctx *gin.Context) {
	slotNumber, ok := parseSlotNumber(ctx)
	if !ok {
		return
	}

	score, err := l.scoring.RecomputeSlot(ctx.Request.Context(), slotNumber)
	switch err {
	case nil:
		utils.Success(ctx, gin.H{"slot_number": slotNumber, "score": score})
	case services.ErrSlotNotFound:
		utils.Error(ctx, http.StatusNotFound, 40411, "no such slot")
	case services.ErrSlotNotActive:
		utils.Error(ctx, http.StatusConflict, 40910, "slot has no active assignment")
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50016, "failed to recompute score")
	}
}

func parseSlotNumber(ctx *gin.Context) (int, bool) {
	n, err := strconv.Atoi(ctx.Param("n"))
	if err != nil || n < 1 {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid slot number")
		return 0, false
	}
	return n, true
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page, _ := strconv.Atoi(pageStr)
	size, _ := strconv.Atoi(sizeStr)
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
