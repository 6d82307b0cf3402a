package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/visionboard/backend/utils"
)

// Habit is a recurring practice the user tracks day by day.
type Habit struct {
	Owned
	Name     string  `gorm:"size:255;not null" json:"name"`
	PhotoURL *string `gorm:"size:1024" json:"photo_url,omitempty"`
}

// Normalize trims and sanitizes the habit name; an empty name after
// trimming is rejected before anything touches the store.
func (h *Habit) Normalize() error {
	h.Name = strings.TrimSpace(utils.Sanitize(h.Name))
	if h.Name == "" {
		return fmt.Errorf("%w: habit name cannot be empty", utils.ErrValidation)
	}
	return nil
}

// Valid reports whether a stored row carries its required fields.
// Malformed rows are dropped from deliveries rather than failing them.
func (h *Habit) Valid() bool { return h.Name != "" }

// Completion marks a habit done on one calendar date. Its existence is
// the done signal; rows are created and deleted, never updated in place.
type Completion struct {
	ID       uint      `gorm:"primaryKey" json:"-"`
	HabitID  string    `gorm:"size:36;not null;uniqueIndex:idx_completion_day" json:"habit_id"`
	OwnerID  string    `gorm:"size:36;index;not null" json:"-"`
	Date     string    `gorm:"size:10;not null;uniqueIndex:idx_completion_day" json:"date"`
	DoneAt   time.Time `json:"done_at"`
	PhotoURL *string   `gorm:"size:1024" json:"photo_url,omitempty"`
}

// DailyProgress is a cached per-day rollup of completions over habits.
// It is overwritten in place and can always be recomputed from
// Completion rows; it is never a source of truth.
type DailyProgress struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	OwnerID   string    `gorm:"size:36;not null;uniqueIndex:idx_progress_day" json:"-"`
	Date      string    `gorm:"size:10;not null;uniqueIndex:idx_progress_day" json:"date"`
	Completed int       `gorm:"not null;default:0" json:"completed"`
	Total     int       `gorm:"not null;default:0" json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}
