package main

import (
	"context"
	"time"

	"github.com/cmarket/permalink/config"
	"github.com/cmarket/permalink/models"
	"github.com/cmarket/permalink/routes"
	"github.com/cmarket/permalink/services"
	"github.com/cmarket/permalink/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.PermanentLink{},
		&models.Product{},
		&models.LinkAnalyticsEvent{},
		&models.LinkAssignment{},
		&models.QueueEntry{},
		&models.PerformanceSnapshot{},
	)

	store := services.NewGormStore(db)

	// The slot pool is fixed; seeding fills in whatever is missing
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if err := store.SeedSlots(ctx, cfg.PoolSize); err != nil {
		utils.Sugar.Fatalf("slot pool bootstrap failed: %v", err)
	}
	cancel()

	invalidateListing := func() {
		utils.InvalidateByPrefix("cache:links:active")
	}
	notifier := services.NewWebhookNotifier(cfg.CatalogWebhookURL, time.Duration(cfg.CatalogTimeoutSec)*time.Second)

	engine := services.NewAssignmentEngine(store, notifier, invalidateListing)
	sweeper := services.NewRotationSweeper(store, engine, notifier, invalidateListing)
	scoring := services.NewScoringEngine(store, services.NewEngagementStrategy(cfg))
	query := services.NewQueryService(db)

	go sweeper.Run(time.Duration(cfg.SweepIntervalSec) * time.Second)
	defer sweeper.Stop()

	scoringStop := make(chan struct{})
	go scoring.Run(time.Duration(cfg.ScoreIntervalSec)*time.Second, scoringStop)
	defer close(scoringStop)

	r := routes.SetupRouter(db, routes.Deps{
		Store:   store,
		Engine:  engine,
		Sweeper: sweeper,
		Scoring: scoring,
		Query:   query,
	})

	utils.Sugar.Infof("Starting server on port %s (graceful), pool size %d", cfg.AppPort, cfg.PoolSize)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
