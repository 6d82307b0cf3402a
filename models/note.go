package models

import (
	"fmt"
	"strings"

	"github.com/visionboard/backend/utils"
)

// Tables backing the two text-board collections. They share the Note
// shape but remain separate collections, matching the original data
// layout.
const (
	AffirmationsTable = "affirmations"
	AspirationsTable  = "aspirations"
)

// Note is a short piece of text on one of the user's boards
// (affirmations or aspirations).
type Note struct {
	Owned
	Text string `gorm:"size:512;not null" json:"text"`
}

// Normalize trims and sanitizes the text; empty submissions are
// rejected, never coerced to a placeholder.
func (n *Note) Normalize() error {
	n.Text = strings.TrimSpace(utils.Sanitize(n.Text))
	if n.Text == "" {
		return fmt.Errorf("%w: text cannot be empty", utils.ErrValidation)
	}
	return nil
}

// Valid reports whether a stored row carries its required fields.
func (n *Note) Valid() bool { return n.Text != "" }
