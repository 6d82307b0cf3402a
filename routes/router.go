package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visionboard/backend/config"
	"github.com/visionboard/backend/controllers"
	"github.com/visionboard/backend/livesync"
	"github.com/visionboard/backend/middleware"
	"github.com/visionboard/backend/models"
	"github.com/visionboard/backend/storage"
	"github.com/visionboard/backend/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, notifier livesync.Notifier, uploader *storage.Uploader) *gin.Engine {
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
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
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

	authController := controllers.NewAuthController(db)
	habitController := controllers.NewHabitController(db, notifier, uploader)
	todoController := controllers.NewTodoController(db, notifier)
	affirmationController := controllers.NewNoteController(db, notifier, "affirmations", models.AffirmationsTable)
	aspirationController := controllers.NewNoteController(db, notifier, "aspirations", models.AspirationsTable)
	galleryController := controllers.NewGalleryController(db, notifier, uploader)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/session", authController.Session)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.GET("/habits", habitController.List)
	protected.GET("/habits/stream", habitController.Stream)
	protected.POST("/habits", habitController.Create)
	protected.PATCH("/habits/:id", habitController.Update)
	protected.DELETE("/habits/:id", habitController.Delete)
	protected.GET("/habits/:id/done-today", habitController.DoneToday)
	protected.GET("/habits/:id/done-today/stream", habitController.DoneTodayStream)
	protected.POST("/habits/:id/done", habitController.MarkDone)
	protected.DELETE("/habits/:id/done", habitController.UnmarkDone)
	protected.GET("/progress/today", habitController.ProgressToday)

	protected.GET("/todos", todoController.List)
	protected.GET("/todos/stream", todoController.Stream)
	protected.POST("/todos", todoController.Create)
	protected.PATCH("/todos/:id", todoController.Update)
	protected.POST("/todos/:id/toggle", todoController.Toggle)
	protected.DELETE("/todos/:id", todoController.Delete)

	protected.GET("/affirmations", affirmationController.List)
	protected.GET("/affirmations/stream", affirmationController.Stream)
	protected.POST("/affirmations", affirmationController.Create)
	protected.PUT("/affirmations/:id", affirmationController.Update)
	protected.DELETE("/affirmations/:id", affirmationController.Delete)

	protected.GET("/aspirations", aspirationController.List)
	protected.GET("/aspirations/stream", aspirationController.Stream)
	protected.POST("/aspirations", aspirationController.Create)
	protected.PUT("/aspirations/:id", aspirationController.Update)
	protected.DELETE("/aspirations/:id", aspirationController.Delete)

	protected.POST("/images", galleryController.Upload)
	protected.GET("/images", galleryController.List)
	protected.GET("/images/stream", galleryController.Stream)
	protected.DELETE("/images/:id", galleryController.Delete)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r
}
