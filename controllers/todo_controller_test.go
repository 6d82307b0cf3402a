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

type todoPayload struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Scope     string  `json:"scope"`
	DoneOn    *string `json:"done_on"`
	DoneToday bool    `json:"done_today"`
}

func createTodo(t *testing.T, env *testEnv, text, scope string) todoPayload {
	t.Helper()
	w, resp := env.doJSON(http.MethodPost, "/api/v1/todos", map[string]any{"text": text, "scope": scope})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)

	var data struct {
		Todo todoPayload `json:"todo"`
	}
	decodeData(t, resp, &data)
	require.NotEmpty(t, data.Todo.ID)
	return data.Todo
}

func listTodos(t *testing.T, env *testEnv, query string) []todoPayload {
	t.Helper()
	w, resp := env.doJSON(http.MethodGet, "/api/v1/todos"+query, nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)

	var data struct {
		Todos []todoPayload `json:"todos"`
	}
	decodeData(t, resp, &data)
	return data.Todos
}

func TestTodoScopeDefaultsToDaily(t *testing.T) {
	env := newEnv(t)

	todo := createTodo(t, env, "water plants", "")
	assert.Equal(t, models.ScopeDaily, todo.Scope)
	assert.False(t, todo.DoneToday)
}

func TestTodoRejectsUnknownScope(t *testing.T) {
	env := newEnv(t)

	w, resp := env.doJSON(http.MethodPost, "/api/v1/todos", map[string]any{"text": "x", "scope": "Yearly"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40001, resp.Code)
}

func TestTodoScopeFiltering(t *testing.T) {
	env := newEnv(t)
	createTodo(t, env, "daily thing", models.ScopeDaily)
	createTodo(t, env, "weekly thing", models.ScopeWeekly)
	createTodo(t, env, "monthly thing", models.ScopeMonthly)

	weekly := listTodos(t, env, "?scope=Weekly")
	require.Len(t, weekly, 1)
	assert.Equal(t, "weekly thing", weekly[0].Text)

	all := listTodos(t, env, "")
	assert.Len(t, all, 3)

	w, _ := env.doJSON(http.MethodGet, "/api/v1/todos?scope=Hourly", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToggleSetsAndClearsDoneOn(t *testing.T) {
	env := newEnv(t)
	todo := createTodo(t, env, "call mom", models.ScopeDaily)

	w, _ := env.doJSON(http.MethodPost, "/api/v1/todos/"+todo.ID+"/toggle", map[string]any{"done": true})
	require.Equal(t, http.StatusOK, w.Code)

	today := models.DayKey(time.Now().In(config.Location()))
	items := listTodos(t, env, "")
	require.Len(t, items, 1)
	assert.True(t, items[0].DoneToday)
	require.NotNil(t, items[0].DoneOn)
	assert.Equal(t, today, *items[0].DoneOn)

	w, _ = env.doJSON(http.MethodPost, "/api/v1/todos/"+todo.ID+"/toggle", map[string]any{"done": false})
	require.Equal(t, http.StatusOK, w.Code)

	items = listTodos(t, env, "")
	require.Len(t, items, 1)
	assert.False(t, items[0].DoneToday)
	assert.Nil(t, items[0].DoneOn)
}

func TestDoneTodayResetsAfterMidnight(t *testing.T) {
	env := newEnv(t)
	todo := createTodo(t, env, "walk dog", models.ScopeDaily)

	// Simulate an item checked off yesterday: the stored done_on stays,
	// but the derived flag reads false today without any write.
	yesterday := models.DayKey(time.Now().In(config.Location()).AddDate(0, 0, -1))
	require.NoError(t, env.db.Model(&models.Todo{}).
		Where("id = ?", todo.ID).Update("done_on", yesterday).Error)

	items := listTodos(t, env, "")
	require.Len(t, items, 1)
	require.NotNil(t, items[0].DoneOn)
	assert.Equal(t, yesterday, *items[0].DoneOn)
	assert.False(t, items[0].DoneToday)
}

func TestTodoUpdateMovesScope(t *testing.T) {
	env := newEnv(t)
	todo := createTodo(t, env, "review budget", models.ScopeDaily)

	w, _ := env.doJSON(http.MethodPatch, "/api/v1/todos/"+todo.ID, map[string]any{"scope": models.ScopeMonthly})
	require.Equal(t, http.StatusOK, w.Code)

	monthly := listTodos(t, env, "?scope=Monthly")
	require.Len(t, monthly, 1)
	assert.Equal(t, todo.ID, monthly[0].ID)
	assert.Empty(t, listTodos(t, env, "?scope=Daily"))
}

func TestTodoDelete(t *testing.T) {
	env := newEnv(t)
	todo := createTodo(t, env, "temp", models.ScopeDaily)

	w, _ := env.doJSON(http.MethodDelete, "/api/v1/todos/"+todo.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, listTodos(t, env, ""))

	w, resp := env.doJSON(http.MethodDelete, "/api/v1/todos/"+todo.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40401, resp.Code)
}
