package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visionboard/backend/livesync"
	"github.com/visionboard/backend/models"
	"github.com/visionboard/backend/utils"
)

// NoteController serves one of the text boards. The affirmations and
// aspirations boards share this controller with different table
// bindings; they never mix rows.
type NoteController struct {
	notes *livesync.Collection[*models.Note]
}

// NewNoteController binds a note board to its table. kind doubles as
// the notification channel name and table is the backing table, e.g.
// models.AffirmationsTable.
func NewNoteController(db *gorm.DB, notifier livesync.Notifier, kind, table string) *NoteController {
	notes := livesync.NewCollection(db, notifier, utils.Log(), livesync.Config{
		Kind:       kind,
		Table:      table,
		SortColumn: "created_at",
		SortDesc:   false,
	}, func() *models.Note { return &models.Note{} })
	return &NoteController{notes: notes}
}

// List returns the board's entries, oldest first.
func (n *NoteController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	items, err := n.notes.List(ctx.Request.Context(), userID)
	if err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

type noteRequest struct {
	Text string `json:"text"`
}

// Create adds an entry to the board.
func (n *NoteController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req noteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	note := &models.Note{Text: req.Text}
	if err := n.notes.Add(ctx.Request.Context(), userID, note); err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"item": note})
}

// Update rewrites the entry's text.
func (n *NoteController) Update(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req noteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	probe := models.Note{Text: req.Text}
	if err := probe.Normalize(); err != nil {
		utils.FailErr(ctx, err)
		return
	}

	if err := n.notes.Update(ctx.Request.Context(), userID, ctx.Param("id"), map[string]any{"text": probe.Text}); err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "updated"})
}

// Delete removes the entry.
func (n *NoteController) Delete(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if err := n.notes.Remove(ctx.Request.Context(), userID, ctx.Param("id")); err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "deleted"})
}

// Stream pushes the board's full entry list on every change.
func (n *NoteController) Stream(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	streamList(ctx, n.notes, userID)
}
