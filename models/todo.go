package models

import (
	"fmt"
	"strings"

	"github.com/visionboard/backend/utils"
)

// To-do scopes. A scope is a query filter, not a schedule.
const (
	ScopeDaily   = "Daily"
	ScopeWeekly  = "Weekly"
	ScopeMonthly = "Monthly"
)

// ValidScope reports whether s is one of the known to-do scopes.
func ValidScope(s string) bool {
	return s == ScopeDaily || s == ScopeWeekly || s == ScopeMonthly
}

// Todo is a single to-do entry. DoneOn holds the calendar date the item
// was last checked off; "done today" is derived by comparing it with the
// current day key, so the flag resets itself at midnight.
type Todo struct {
	Owned
	Text   string  `gorm:"size:512;not null" json:"text"`
	Scope  string  `gorm:"size:16;not null;default:'Daily';index" json:"scope"`
	DoneOn *string `gorm:"size:10" json:"done_on,omitempty"`
}

// Normalize trims and sanitizes the text and defaults the scope.
func (t *Todo) Normalize() error {
	t.Text = strings.TrimSpace(utils.Sanitize(t.Text))
	if t.Text == "" {
		return fmt.Errorf("%w: todo text cannot be empty", utils.ErrValidation)
	}
	if t.Scope == "" {
		t.Scope = ScopeDaily
	}
	if !ValidScope(t.Scope) {
		return fmt.Errorf("%w: invalid scope %q", utils.ErrValidation, t.Scope)
	}
	return nil
}

// Valid reports whether a stored row carries its required fields.
func (t *Todo) Valid() bool { return t.Text != "" }

// DoneToday reports whether the item was checked off on the given day key.
func (t *Todo) DoneToday(today string) bool {
	return t.DoneOn != nil && *t.DoneOn == today
}
