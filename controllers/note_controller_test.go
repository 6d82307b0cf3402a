package controllers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionboard/backend/models"
)

func listNotes(t *testing.T, env *testEnv) []models.Note {
	t.Helper()
	w, resp := env.doJSON(http.MethodGet, "/api/v1/affirmations", nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)

	var data struct {
		Items []models.Note `json:"items"`
	}
	decodeData(t, resp, &data)
	return data.Items
}

func TestAffirmationsCRUD(t *testing.T) {
	env := newEnv(t)

	w, resp := env.doJSON(http.MethodPost, "/api/v1/affirmations", map[string]any{"text": "I am capable"})
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		Item models.Note `json:"item"`
	}
	decodeData(t, resp, &created)
	require.NotEmpty(t, created.Item.ID)

	w, _ = env.doJSON(http.MethodPut, "/api/v1/affirmations/"+created.Item.ID, map[string]any{"text": "I am very capable"})
	require.Equal(t, http.StatusOK, w.Code)

	items := listNotes(t, env)
	require.Len(t, items, 1)
	assert.Equal(t, "I am very capable", items[0].Text)

	w, _ = env.doJSON(http.MethodDelete, "/api/v1/affirmations/"+created.Item.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, listNotes(t, env))
}

func TestAffirmationRejectsEmptyText(t *testing.T) {
	env := newEnv(t)

	w, resp := env.doJSON(http.MethodPost, "/api/v1/affirmations", map[string]any{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40001, resp.Code)
	assert.Empty(t, listNotes(t, env))
}

func TestBoardsKeepSeparateTables(t *testing.T) {
	env := newEnv(t)

	w, _ := env.doJSON(http.MethodPost, "/api/v1/affirmations", map[string]any{"text": "affirmation"})
	require.Equal(t, http.StatusOK, w.Code)

	// The aspirations table stays untouched.
	var aspirations int64
	require.NoError(t, env.db.Table(models.AspirationsTable).Count(&aspirations).Error)
	assert.Zero(t, aspirations)

	var affirmations int64
	require.NoError(t, env.db.Table(models.AffirmationsTable).Count(&affirmations).Error)
	assert.Equal(t, int64(1), affirmations)
}

func TestNoteTextSanitized(t *testing.T) {
	env := newEnv(t)

	w, resp := env.doJSON(http.MethodPost, "/api/v1/affirmations",
		map[string]any{"text": `<script>alert(1)</script>stay grounded`})
	require.Equal(t, http.StatusOK, w.Code)

	var created struct {
		Item models.Note `json:"item"`
	}
	decodeData(t, resp, &created)
	assert.Equal(t, "stay grounded", created.Item.Text)
}
