package controllers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionboard/backend/config"
	"github.com/visionboard/backend/models"
)

func createHabit(t *testing.T, env *testEnv, name string) models.Habit {
	t.Helper()
	w, resp := env.doJSON(http.MethodPost, "/api/v1/habits", map[string]any{"name": name})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)

	var data struct {
		Habit models.Habit `json:"habit"`
	}
	decodeData(t, resp, &data)
	require.NotEmpty(t, data.Habit.ID)
	return data.Habit
}

func doneToday(t *testing.T, env *testEnv, habitID string) bool {
	t.Helper()
	w, resp := env.doJSON(http.MethodGet, "/api/v1/habits/"+habitID+"/done-today", nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)

	var data struct {
		Done bool `json:"done"`
	}
	decodeData(t, resp, &data)
	return data.Done
}

func TestHabitCreateRejectsEmptyName(t *testing.T) {
	env := newEnv(t)

	w, resp := env.doJSON(http.MethodPost, "/api/v1/habits", map[string]any{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40001, resp.Code)
}

func TestHabitListNewestFirst(t *testing.T) {
	env := newEnv(t)

	first := createHabit(t, env, "read")
	second := createHabit(t, env, "run")

	w, resp := env.doJSON(http.MethodGet, "/api/v1/habits", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Habits []models.Habit `json:"habits"`
	}
	decodeData(t, resp, &data)
	require.Len(t, data.Habits, 2)
	// created_at DESC with id tiebreak; both habits exist exactly once.
	ids := []string{data.Habits[0].ID, data.Habits[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}

func TestMarkDoneIsIdempotentPerDay(t *testing.T) {
	env := newEnv(t)
	habit := createHabit(t, env, "meditate")

	assert.False(t, doneToday(t, env, habit.ID))

	w, _ := env.doJSON(http.MethodPost, "/api/v1/habits/"+habit.ID+"/done", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, doneToday(t, env, habit.ID))

	// Marking again creates no second record.
	w, _ = env.doJSON(http.MethodPost, "/api/v1/habits/"+habit.ID+"/done", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, env.db.Model(&models.Completion{}).
		Where("habit_id = ?", habit.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUnmarkDoneRemovesRecordAndIsIdempotent(t *testing.T) {
	env := newEnv(t)
	habit := createHabit(t, env, "journal")

	env.doJSON(http.MethodPost, "/api/v1/habits/"+habit.ID+"/done", nil)
	require.True(t, doneToday(t, env, habit.ID))

	w, _ := env.doJSON(http.MethodDelete, "/api/v1/habits/"+habit.ID+"/done", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, doneToday(t, env, habit.ID))

	// Unmarking an already-clear day succeeds without effect.
	w, _ = env.doJSON(http.MethodDelete, "/api/v1/habits/"+habit.ID+"/done", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMarkDoneWithPhotoStoresURL(t *testing.T) {
	env := newEnv(t)
	habit := createHabit(t, env, "walk")

	w, resp := env.doMultipart(http.MethodPost, "/api/v1/habits/"+habit.ID+"/done",
		"photo", "proof.jpg", "image/jpeg", []byte("jpeg bytes"), nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)

	var completion models.Completion
	require.NoError(t, env.db.Where("habit_id = ?", habit.ID).First(&completion).Error)
	require.NotNil(t, completion.PhotoURL)
	assert.Contains(t, *completion.PhotoURL, env.store.BaseURL)
}

func TestMarkDoneAbortsWhenUploadFails(t *testing.T) {
	env := newEnv(t)
	habit := createHabit(t, env, "swim")

	// An empty file fails validation before the pipeline runs; the
	// completion record must not exist afterwards.
	w, _ := env.doMultipart(http.MethodPost, "/api/v1/habits/"+habit.ID+"/done",
		"photo", "proof.jpg", "image/jpeg", nil, nil)
	require.NotEqual(t, http.StatusOK, w.Code)

	assert.False(t, doneToday(t, env, habit.ID))
	var count int64
	require.NoError(t, env.db.Model(&models.Completion{}).
		Where("habit_id = ?", habit.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDoneTodayIgnoresOtherDays(t *testing.T) {
	env := newEnv(t)
	habit := createHabit(t, env, "stretch")

	yesterday := models.DayKey(time.Now().In(config.Location()).AddDate(0, 0, -1))
	require.NoError(t, env.db.Create(&models.Completion{
		HabitID: habit.ID,
		OwnerID: env.userID,
		Date:    yesterday,
		DoneAt:  time.Now().AddDate(0, 0, -1),
	}).Error)

	// Yesterday's record never counts as today.
	assert.False(t, doneToday(t, env, habit.ID))
}

func TestDoneEndpointsRejectForeignHabit(t *testing.T) {
	env := newEnv(t)

	other := models.Habit{Name: "not yours"}
	other.SetIdentity("foreign-habit", "someone-else", time.Now())
	require.NoError(t, env.db.Create(&other).Error)

	w, resp := env.doJSON(http.MethodPost, "/api/v1/habits/foreign-habit/done", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40401, resp.Code)
}

func TestHabitDeleteRemovesCompletionHistory(t *testing.T) {
	env := newEnv(t)
	habit := createHabit(t, env, "pushups")
	env.doJSON(http.MethodPost, "/api/v1/habits/"+habit.ID+"/done", nil)

	w, _ := env.doJSON(http.MethodDelete, "/api/v1/habits/"+habit.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, env.db.Model(&models.Completion{}).
		Where("habit_id = ?", habit.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProgressTodayCountsCompletionsOverHabits(t *testing.T) {
	env := newEnv(t)
	done := createHabit(t, env, "done habit")
	createHabit(t, env, "pending habit")
	env.doJSON(http.MethodPost, "/api/v1/habits/"+done.ID+"/done", nil)

	w, resp := env.doJSON(http.MethodGet, "/api/v1/progress/today", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Date      string `json:"date"`
		Completed int    `json:"completed"`
		Total     int    `json:"total"`
	}
	decodeData(t, resp, &data)
	assert.Equal(t, models.DayKey(time.Now().In(config.Location())), data.Date)
	assert.Equal(t, 1, data.Completed)
	assert.Equal(t, 2, data.Total)

	// The rollup slot is overwritten, not accumulated.
	var rows int64
	require.NoError(t, env.db.Model(&models.DailyProgress{}).
		Where("owner_id = ?", env.userID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func progressToday(t *testing.T, env *testEnv) (completed, total int) {
	t.Helper()
	w, resp := env.doJSON(http.MethodGet, "/api/v1/progress/today", nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)

	var data struct {
		Completed int `json:"completed"`
		Total     int `json:"total"`
	}
	decodeData(t, resp, &data)
	return data.Completed, data.Total
}

func TestProgressFollowsCompletionChanges(t *testing.T) {
	env := newEnv(t)
	habit := createHabit(t, env, "cold shower")

	completed, total := progressToday(t, env)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 1, total)

	// Each completion write invalidates the cached rollup, so the next
	// read reflects it instead of the pre-write count.
	w, _ := env.doJSON(http.MethodPost, "/api/v1/habits/"+habit.ID+"/done", nil)
	require.Equal(t, http.StatusOK, w.Code)
	completed, _ = progressToday(t, env)
	assert.Equal(t, 1, completed)

	w, _ = env.doJSON(http.MethodDelete, "/api/v1/habits/"+habit.ID+"/done", nil)
	require.Equal(t, http.StatusOK, w.Code)
	completed, _ = progressToday(t, env)
	assert.Equal(t, 0, completed)
}

func TestRepeatMarkWithPhotoKeepsStoredRecord(t *testing.T) {
	env := newEnv(t)
	habit := createHabit(t, env, "yoga")

	w, _ := env.doJSON(http.MethodPost, "/api/v1/habits/"+habit.ID+"/done", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Zero(t, env.store.Len())

	// A second mark with a photo echoes the stored record; the photo is
	// never uploaded because the record would discard it anyway.
	w, resp := env.doMultipart(http.MethodPost, "/api/v1/habits/"+habit.ID+"/done",
		"photo", "proof.jpg", "image/jpeg", []byte("jpeg bytes"), nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)

	var data struct {
		Done     bool    `json:"done"`
		PhotoURL *string `json:"photo_url"`
	}
	decodeData(t, resp, &data)
	assert.True(t, data.Done)
	assert.Nil(t, data.PhotoURL)
	assert.Zero(t, env.store.Len())

	var count int64
	require.NoError(t, env.db.Model(&models.Completion{}).
		Where("habit_id = ?", habit.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHabitDeleteRollsBackWhenHistoryCleanupFails(t *testing.T) {
	env := newEnv(t)
	habit := createHabit(t, env, "no sugar")
	env.doJSON(http.MethodPost, "/api/v1/habits/"+habit.ID+"/done", nil)

	require.NoError(t, env.db.Exec("DROP TABLE completions").Error)

	w, resp := env.doJSON(http.MethodDelete, "/api/v1/habits/"+habit.ID, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 50020, resp.Code)

	// The habit delete rolled back with the failed history cleanup.
	var count int64
	require.NoError(t, env.db.Model(&models.Habit{}).
		Where("id = ?", habit.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHabitDeleteUnknownHabitNotFound(t *testing.T) {
	env := newEnv(t)

	w, resp := env.doJSON(http.MethodDelete, "/api/v1/habits/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40401, resp.Code)
}

func TestHabitUpdateRejectsNonStringPhotoURL(t *testing.T) {
	env := newEnv(t)
	habit := createHabit(t, env, "sketch")

	w, resp := env.doJSON(http.MethodPatch, "/api/v1/habits/"+habit.ID,
		map[string]any{"photo_url": 123})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40001, resp.Code)
}
