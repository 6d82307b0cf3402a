package main

import (
	"context"
	"time"

	"github.com/visionboard/backend/config"
	"github.com/visionboard/backend/livesync"
	"github.com/visionboard/backend/models"
	"github.com/visionboard/backend/routes"
	"github.com/visionboard/backend/storage"
	"github.com/visionboard/backend/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.Habit{},
		&models.Completion{},
		&models.DailyProgress{},
		&models.Todo{},
		&models.UploadedImage{},
	)
	// Affirmations and aspirations share the Note shape but live in
	// separate tables.
	if err := db.Table(models.AffirmationsTable).AutoMigrate(&models.Note{}); err != nil {
		utils.Sugar.Fatalf("affirmations migration failed: %v", err)
	}
	if err := db.Table(models.AspirationsTable).AutoMigrate(&models.Note{}); err != nil {
		utils.Sugar.Fatalf("aspirations migration failed: %v", err)
	}

	var notifier livesync.Notifier
	rdb := utils.GetRedis()
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	err := rdb.Ping(pingCtx).Err()
	cancel()
	if err == nil {
		notifier = livesync.NewRedisNotifier(rdb)
	} else {
		utils.Sugar.Warnw("redis unavailable, falling back to in-process notifications (single instance only)", "error", err)
		notifier = livesync.NewMemoryNotifier()
	}

	var store storage.ObjectStore
	if cfg.StorageBucket != "" {
		s3Store, err := storage.NewS3Store(cfg)
		if err != nil {
			utils.Sugar.Fatalf("object storage init failed: %v", err)
		}
		store = s3Store
	} else {
		utils.Sugar.Warn("object storage not configured, uploads held in memory and lost on restart")
		store = storage.NewMemoryStore()
	}
	uploader := storage.NewUploader(store)

	r := routes.SetupRouter(db, notifier, uploader)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
