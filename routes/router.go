package routes

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cmarket/permalink/config"
	"github.com/cmarket/permalink/controllers"
	"github.com/cmarket/permalink/middleware"
	"github.com/cmarket/permalink/services"
	"github.com/cmarket/permalink/utils"
)

// Deps bundles the engines built in main so routing stays wiring-only.
type Deps struct {
	Store   services.Store
	Engine  *services.AssignmentEngine
	Sweeper *services.RotationSweeper
	Scoring *services.ScoringEngine
	Query   *services.QueryService
}

var slotPathPattern = regexp.MustCompile(`^/p([1-9][0-9]*)$`)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, deps Deps) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	ginLogPath := cfg.GinPath
	gl, err := utils.NewRollingFileLogger(ginLogPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	linkController := controllers.NewLinkController(db, deps.Store, deps.Query, deps.Scoring)
	assignmentController := controllers.NewAssignmentController(deps.Store, deps.Engine, deps.Sweeper)
	analyticsController := controllers.NewAnalyticsController(deps.Store)
	statsController := controllers.NewStatsController(db)

	api := r.Group("/api/v1")

	// Public storefront surface
	api.GET("/links/active", linkController.ListActive)

	trackGroup := api.Group("/track")
	trackGroup.Use(middleware.RateLimitMiddleware())
	trackGroup.POST("", analyticsController.Track)

	// Admin surface
	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired(), middleware.RateLimitMiddleware())
	admin.POST("/assignments", assignmentController.Assign)
	admin.POST("/sweep", assignmentController.Sweep)
	admin.GET("/queue", assignmentController.Queue)
	admin.GET("/links", linkController.ListLinks)
	admin.GET("/overview", statsController.GetOverview)
	admin.GET("/links/:n", linkController.GetLink)
	admin.GET("/links/:n/history", linkController.GetHistory)
	admin.PATCH("/links/:n/meta", linkController.UpdateMeta)
	admin.POST("/links/:n/recompute", linkController.RecomputeScore)

	// Permanent link paths are /p1../p120 with no separator, so they are
	// resolved from the fallback handler rather than a param route
	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if m := slotPathPattern.FindStringSubmatch(path); m != nil && ctx.Request.Method == http.MethodGet {
			n, _ := strconv.Atoi(m[1])
			linkController.Resolve(ctx, n)
			return
		}
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r
}
