package controllers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cmarket/permalink/models"
	"github.com/cmarket/permalink/utils"
)

// StatsController provides the links-overview metrics shown at the top of the
// admin screens.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetOverview returns pool occupancy, average performance, and today's view
// volume with day-over-day trends.
func (s *StatsController) GetOverview(ctx *gin.Context) {
	var activeLinks int64
	var availableLinks int64
	var avgPerformance float64

	if err := s.db.Model(&models.PermanentLink{}).
		Where("status = ?", models.LinkStatusActive).
		Count(&activeLinks).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		activeLinks = 0
	}

	if err := s.db.Model(&models.PermanentLink{}).
		Where("status = ?", models.LinkStatusAvailable).
		Count(&availableLinks).Error; err != nil {
		availableLinks = 0
	}

	if err := s.db.Model(&models.PermanentLink{}).
		Where("status = ?", models.LinkStatusActive).
		Select("COALESCE(AVG(performance_score),0)").
		Scan(&avgPerformance).Error; err != nil {
		avgPerformance = 0
	}

	todayViews := utils.GetDailyViews(0)
	yesterdayViews := utils.GetDailyViews(-1)

	// Average score one day ago, from the snapshot log
	var yesterdayAvg float64
	if err := s.db.Model(&models.PerformanceSnapshot{}).
		Where("day = CURDATE() - INTERVAL 1 DAY").
		Select("COALESCE(AVG(score),0)").
		Scan(&yesterdayAvg).Error; err != nil {
		yesterdayAvg = 0
	}

	utils.Success(ctx, gin.H{
		"active_links":        activeLinks,
		"available_links":     availableLinks,
		"average_performance": avgPerformance,
		"today_views":         todayViews,
		"views_trend":         trend(float64(todayViews), float64(yesterdayViews)),
		"performance_trend":   trend(avgPerformance, yesterdayAvg),
	})
}

// trend is the relative day-over-day change; 0 when there is no baseline.
func trend(today, yesterday float64) float64 {
	if yesterday == 0 {
		return 0
	}
	return (today - yesterday) / yesterday
}
