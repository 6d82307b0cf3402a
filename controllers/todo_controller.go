package controllers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visionboard/backend/config"
	"github.com/visionboard/backend/livesync"
	"github.com/visionboard/backend/models"
	"github.com/visionboard/backend/utils"
)

// TodoController serves the scoped to-do lists. The done flag is never
// stored; it is derived per delivery from the done_on date, which is how
// every item resets to not-done at midnight without a write.
type TodoController struct {
	todos *livesync.Collection[*models.Todo]
}

func NewTodoController(db *gorm.DB, notifier livesync.Notifier) *TodoController {
	todos := livesync.NewCollection(db, notifier, utils.Log(), livesync.Config{
		Kind:       "todos",
		Table:      "todos",
		SortColumn: "created_at",
		SortDesc:   false,
	}, func() *models.Todo { return &models.Todo{} })
	return &TodoController{todos: todos}
}

// todoView decorates a stored to-do with its derived done_today flag.
type todoView struct {
	*models.Todo
	DoneToday bool `json:"done_today"`
}

func todoViews(items []*models.Todo) []todoView {
	today := models.DayKey(time.Now().In(config.Location()))
	views := make([]todoView, 0, len(items))
	for _, t := range items {
		views = append(views, todoView{Todo: t, DoneToday: t.DoneToday(today)})
	}
	return views
}

func scopeFilter(ctx *gin.Context) (livesync.Filter, bool) {
	scope := ctx.Query("scope")
	if scope == "" {
		return nil, true
	}
	if !models.ValidScope(scope) {
		return nil, false
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("scope = ?", scope)
	}, true
}

// List returns the owner's to-dos, oldest first, optionally narrowed to
// one scope.
func (t *TodoController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	filter, ok := scopeFilter(ctx)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid scope")
		return
	}

	var filters []livesync.Filter
	if filter != nil {
		filters = append(filters, filter)
	}

	items, err := t.todos.List(ctx.Request.Context(), userID, filters...)
	if err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"todos": todoViews(items)})
}

type todoRequest struct {
	Text  string `json:"text"`
	Scope string `json:"scope"`
}

// Create adds a to-do to the requested scope.
func (t *TodoController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req todoRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	todo := &models.Todo{Text: req.Text, Scope: req.Scope}
	if err := t.todos.Add(ctx.Request.Context(), userID, todo); err != nil {
		utils.FailErr(ctx, err)
		return
	}

	today := models.DayKey(time.Now().In(config.Location()))
	utils.Success(ctx, gin.H{"todo": todoView{Todo: todo, DoneToday: todo.DoneToday(today)}})
}

// Update merges text and scope edits into the to-do.
func (t *TodoController) Update(ctx *gin.Context) {
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
	if text, ok := raw["text"]; ok {
		s, ok := text.(string)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40001, "text must be a string")
			return
		}
		probe := models.Todo{Text: s, Scope: models.ScopeDaily}
		if err := probe.Normalize(); err != nil {
			utils.FailErr(ctx, err)
			return
		}
		fields["text"] = probe.Text
	}
	if scope, ok := raw["scope"]; ok {
		s, ok := scope.(string)
		if !ok || !models.ValidScope(s) {
			utils.Error(ctx, http.StatusBadRequest, 40002, "invalid scope")
			return
		}
		fields["scope"] = s
	}

	if err := t.todos.Update(ctx.Request.Context(), userID, ctx.Param("id"), fields); err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "updated"})
}

type toggleRequest struct {
	Done bool `json:"done"`
}

// Toggle checks the item off for today or clears it. Checking writes
// today's day key into done_on; clearing writes null. Nothing else
// about the row changes.
func (t *TodoController) Toggle(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req toggleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	var doneOn any
	if req.Done {
		doneOn = models.DayKey(time.Now().In(config.Location()))
	} else {
		doneOn = nil
	}

	if err := t.todos.Update(ctx.Request.Context(), userID, ctx.Param("id"), map[string]any{"done_on": doneOn}); err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"done_today": req.Done})
}

// Delete removes the to-do.
func (t *TodoController) Delete(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if err := t.todos.Remove(ctx.Request.Context(), userID, ctx.Param("id")); err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "deleted"})
}

// Stream pushes the owner's to-do list on every change. Each delivery
// re-derives done_today, so the first push after midnight already shows
// everything unchecked.
func (t *TodoController) Stream(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	filter, ok := scopeFilter(ctx)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid scope")
		return
	}
	var filters []livesync.Filter
	if filter != nil {
		filters = append(filters, filter)
	}

	deliveries, cancel, err := t.todos.Subscribe(ctx.Request.Context(), userID, filters...)
	if err != nil {
		utils.FailErr(ctx, err)
		return
	}
	defer cancel()

	sseHeaders(ctx)
	ctx.Stream(func(w io.Writer) bool {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return false
			}
			if d.Err != nil {
				ctx.SSEvent("error", gin.H{"message": d.Err.Error()})
				return false
			}
			ctx.SSEvent("list", todoViews(d.Items))
			return true
		case <-ctx.Request.Context().Done():
			return false
		}
	})
}
