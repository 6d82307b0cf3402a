package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/visionboard/backend/config"
	"github.com/visionboard/backend/livesync"
	"github.com/visionboard/backend/models"
	"github.com/visionboard/backend/storage"
	"github.com/visionboard/backend/utils"
)

const completionsKind = "completions"

// HabitController serves the habit list, the per-day completion
// records and the daily progress rollup.
type HabitController struct {
	db       *gorm.DB
	habits   *livesync.Collection[*models.Habit]
	notifier livesync.Notifier
	uploader *storage.Uploader
}

func NewHabitController(db *gorm.DB, notifier livesync.Notifier, uploader *storage.Uploader) *HabitController {
	habits := livesync.NewCollection(db, notifier, utils.Log(), livesync.Config{
		Kind:       "habits",
		Table:      "habits",
		SortColumn: "created_at",
		SortDesc:   true,
	}, func() *models.Habit { return &models.Habit{} })

	return &HabitController{db: db, habits: habits, notifier: notifier, uploader: uploader}
}

// List returns the owner's habits, newest first.
func (h *HabitController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	items, err := h.habits.List(ctx.Request.Context(), userID)
	if err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"habits": items})
}

type habitRequest struct {
	Name     string  `json:"name"`
	PhotoURL *string `json:"photo_url"`
}

// Create adds a habit.
func (h *HabitController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req habitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	habit := &models.Habit{Name: req.Name, PhotoURL: req.PhotoURL}
	if err := h.habits.Add(ctx.Request.Context(), userID, habit); err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"habit": habit})
}

// Update merges the provided fields into the habit. A null photo_url in
// the payload clears the stored value.
func (h *HabitController) Update(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var raw map[string]any
	if err := ctx.ShouldBindJSON(&raw); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	fields := map[string]any{}
	if name, ok := raw["name"]; ok {
		s, ok := name.(string)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40001, "name must be a string")
			return
		}
		probe := models.Habit{Name: s}
		if err := probe.Normalize(); err != nil {
			utils.FailErr(ctx, err)
			return
		}
		fields["name"] = probe.Name
	}
	if photo, ok := raw["photo_url"]; ok {
		// Explicit null clears the attribute.
		if photo != nil {
			if _, ok := photo.(string); !ok {
				utils.Error(ctx, http.StatusBadRequest, 40001, "photo_url must be a string or null")
				return
			}
		}
		fields["photo_url"] = photo
	}

	if err := h.habits.Update(ctx.Request.Context(), userID, ctx.Param("id"), fields); err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "updated"})
}

// Delete removes a habit together with its completion history.
func (h *HabitController) Delete(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	// The habit and its completion history go together or not at all.
	habitID := ctx.Param("id")
	err := h.db.WithContext(ctx.Request.Context()).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND owner_id = ?", habitID, userID).Delete(&models.Habit{})
		if res.Error != nil {
			return fmt.Errorf("%w: %v", utils.ErrStoreWrite, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: habits %s", utils.ErrNotFound, habitID)
		}
		if err := tx.Where("habit_id = ? AND owner_id = ?", habitID, userID).
			Delete(&models.Completion{}).Error; err != nil {
			return fmt.Errorf("%w: %v", utils.ErrStoreWrite, err)
		}
		return nil
	})
	if err != nil {
		utils.FailErr(ctx, err)
		return
	}

	if err := h.notifier.Publish(ctx.Request.Context(), livesync.Channel(h.habits.Kind(), userID)); err != nil {
		utils.Log().Warnw("change notification publish failed", "kind", h.habits.Kind(), "owner", userID, "err", err)
	}
	h.publishCompletions(ctx, userID)

	utils.Success(ctx, gin.H{"message": "deleted"})
}

// Stream pushes the owner's full habit list on every change.
func (h *HabitController) Stream(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	streamList(ctx, h.habits, userID)
}

// DoneToday reports whether the habit has a completion record for the
// current calendar date in the configured time zone.
func (h *HabitController) DoneToday(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	habitID := ctx.Param("id")
	if _, err := h.habits.Get(ctx.Request.Context(), userID, habitID); err != nil {
		utils.FailErr(ctx, err)
		return
	}

	completion, err := h.todayCompletion(ctx, userID, habitID)
	if err != nil {
		utils.FailErr(ctx, err)
		return
	}

	utils.Success(ctx, doneView(completion))
}

// DoneTodayStream pushes the habit's done-today state on every
// completion change. The date key is re-evaluated at each delivery, so
// a subscription that crosses midnight flips back to not-done without
// any write.
func (h *HabitController) DoneTodayStream(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	habitID := ctx.Param("id")
	if _, err := h.habits.Get(ctx.Request.Context(), userID, habitID); err != nil {
		utils.FailErr(ctx, err)
		return
	}

	signal, stop, err := h.notifier.Subscribe(ctx.Request.Context(), livesync.Channel(completionsKind, userID))
	if err != nil {
		utils.FailErr(ctx, fmt.Errorf("%w: %v", utils.ErrStoreRead, err))
		return
	}
	defer stop()

	sseHeaders(ctx)

	deliver := func() (gin.H, error) {
		completion, err := h.todayCompletion(ctx, userID, habitID)
		if err != nil {
			return nil, err
		}
		return doneView(completion), nil
	}

	first := true
	ctx.Stream(func(w io.Writer) bool {
		if !first {
			select {
			case _, ok := <-signal:
				if !ok {
					return false
				}
			case <-ctx.Request.Context().Done():
				return false
			}
		}
		first = false

		view, err := deliver()
		if err != nil {
			ctx.SSEvent("error", gin.H{"message": err.Error()})
			return false
		}
		ctx.SSEvent("done", view)
		return true
	})
}

// MarkDone records today's completion for the habit. When a proof photo
// accompanies the request the upload must fully succeed before the
// record is written; an upload failure leaves the habit not done.
// Marking an already-done habit again is a no-op.
func (h *HabitController) MarkDone(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	habitID := ctx.Param("id")
	if _, err := h.habits.Get(ctx.Request.Context(), userID, habitID); err != nil {
		utils.FailErr(ctx, err)
		return
	}

	// Already done today: echo the stored record and skip the upload
	// entirely, so a repeat mark never pushes bytes a discarded row
	// would reference.
	existing, err := h.todayCompletion(ctx, userID, habitID)
	if err != nil {
		utils.FailErr(ctx, err)
		return
	}
	if existing != nil {
		utils.Success(ctx, gin.H{"done": true, "date": existing.Date, "photo_url": existing.PhotoURL})
		return
	}

	var photoURL *string
	if file, err := ctx.FormFile("photo"); err == nil && file != nil {
		data, contentType, err := readUpload(ctx, file)
		if err != nil {
			utils.FailErr(ctx, err)
			return
		}
		url, err := h.uploader.Upload(ctx.Request.Context(), data, contentType, "proof")
		if err != nil {
			utils.FailErr(ctx, err)
			return
		}
		photoURL = &url
	}

	now := time.Now().In(config.Location())
	completion := models.Completion{
		HabitID:  habitID,
		OwnerID:  userID,
		Date:     models.DayKey(now),
		DoneAt:   now,
		PhotoURL: photoURL,
	}

	// The unique (habit_id, date) index makes double marks a no-op
	// instead of a second record.
	err = h.db.WithContext(ctx.Request.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "habit_id"}, {Name: "date"}},
			DoNothing: true,
		}).
		Create(&completion).Error
	if err != nil {
		utils.FailErr(ctx, fmt.Errorf("%w: %v", utils.ErrStoreWrite, err))
		return
	}

	h.publishCompletions(ctx, userID)
	utils.Success(ctx, gin.H{"done": true, "date": completion.Date, "photo_url": photoURL})
}

// UnmarkDone deletes today's completion record. The attached proof
// photo stays in storage. Unmarking a habit that is not done succeeds
// without touching anything.
func (h *HabitController) UnmarkDone(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	habitID := ctx.Param("id")
	if _, err := h.habits.Get(ctx.Request.Context(), userID, habitID); err != nil {
		utils.FailErr(ctx, err)
		return
	}

	today := models.DayKey(time.Now().In(config.Location()))
	res := h.db.WithContext(ctx.Request.Context()).
		Where("habit_id = ? AND owner_id = ? AND date = ?", habitID, userID, today).
		Delete(&models.Completion{})
	if res.Error != nil {
		utils.FailErr(ctx, fmt.Errorf("%w: %v", utils.ErrStoreWrite, res.Error))
		return
	}

	if res.RowsAffected > 0 {
		h.publishCompletions(ctx, userID)
	}
	utils.Success(ctx, gin.H{"done": false, "date": today})
}

// ProgressToday recomputes the owner's rollup for the current date,
// overwrites the per-day slot and returns it. The row is a derived
// cache; recomputing it is always safe.
func (h *HabitController) ProgressToday(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	now := time.Now().In(config.Location())
	today := models.DayKey(now)

	cacheKey := fmt.Sprintf("cache:progress:%s:%s", userID, today)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(200, "application/json", b)
		return
	}

	var total int64
	if err := h.db.WithContext(ctx.Request.Context()).
		Model(&models.Habit{}).
		Where("owner_id = ?", userID).
		Count(&total).Error; err != nil {
		utils.FailErr(ctx, fmt.Errorf("%w: %v", utils.ErrStoreRead, err))
		return
	}

	var completed int64
	if err := h.db.WithContext(ctx.Request.Context()).
		Model(&models.Completion{}).
		Where("owner_id = ? AND date = ?", userID, today).
		Count(&completed).Error; err != nil {
		utils.FailErr(ctx, fmt.Errorf("%w: %v", utils.ErrStoreRead, err))
		return
	}

	progress := models.DailyProgress{
		OwnerID:   userID,
		Date:      today,
		Completed: int(completed),
		Total:     int(total),
		UpdatedAt: now,
	}
	err := h.db.WithContext(ctx.Request.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"completed", "total", "updated_at"}),
		}).
		Create(&progress).Error
	if err != nil {
		utils.FailErr(ctx, fmt.Errorf("%w: %v", utils.ErrStoreWrite, err))
		return
	}

	payload := gin.H{"date": today, "completed": progress.Completed, "total": progress.Total}
	wrapper := struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}{Code: 0, Message: "success", Data: payload}
	utils.CacheSetJSON(cacheKey, wrapper, time.Minute)

	utils.Success(ctx, payload)
}

func (h *HabitController) todayCompletion(ctx *gin.Context, userID, habitID string) (*models.Completion, error) {
	today := models.DayKey(time.Now().In(config.Location()))
	var completion models.Completion
	err := h.db.WithContext(ctx.Request.Context()).
		Where("habit_id = ? AND owner_id = ? AND date = ?", habitID, userID, today).
		First(&completion).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrStoreRead, err)
	}
	return &completion, nil
}

// publishCompletions signals completion subscribers and drops the
// owner's cached progress rollup, so the next progress read recomputes
// against the new completion set instead of serving the pre-write count.
func (h *HabitController) publishCompletions(ctx *gin.Context, userID string) {
	utils.InvalidateByPrefix("cache:progress:" + userID)
	if err := h.notifier.Publish(ctx.Request.Context(), livesync.Channel(completionsKind, userID)); err != nil {
		utils.Log().Warnw("completion notification publish failed", "owner", userID, "err", err)
	}
}

func doneView(completion *models.Completion) gin.H {
	if completion == nil {
		return gin.H{"done": false}
	}
	return gin.H{"done": true, "date": completion.Date, "photo_url": completion.PhotoURL, "done_at": completion.DoneAt}
}
