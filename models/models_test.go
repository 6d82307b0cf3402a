package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionboard/backend/utils"
)

func TestDayKeyBucketsByCalendarDate(t *testing.T) {
	lateNight := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	justAfter := time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-01", DayKey(lateNight))
	assert.Equal(t, "2026-03-02", DayKey(justAfter))
	assert.NotEqual(t, DayKey(lateNight), DayKey(justAfter))
}

func TestTodoDoneTodayDerivedFromDayKey(t *testing.T) {
	yesterday := "2026-02-28"
	today := "2026-03-01"

	done := Todo{DoneOn: &yesterday}
	assert.True(t, done.DoneToday(yesterday))
	assert.False(t, done.DoneToday(today), "yesterday's check-off must not count today")

	unchecked := Todo{}
	assert.False(t, unchecked.DoneToday(today))
}

func TestHabitNormalizeRejectsWhitespaceName(t *testing.T) {
	h := Habit{Name: "  \t "}
	require.ErrorIs(t, h.Normalize(), utils.ErrValidation)

	ok := Habit{Name: "  morning run  "}
	require.NoError(t, ok.Normalize())
	assert.Equal(t, "morning run", ok.Name)
}

func TestTodoNormalizeDefaultsAndValidatesScope(t *testing.T) {
	todo := Todo{Text: "plan week"}
	require.NoError(t, todo.Normalize())
	assert.Equal(t, ScopeDaily, todo.Scope)

	bad := Todo{Text: "plan year", Scope: "Yearly"}
	require.ErrorIs(t, bad.Normalize(), utils.ErrValidation)
}

func TestImageNormalizeValidatesType(t *testing.T) {
	img := UploadedImage{URL: "https://cdn.example.com/a.png"}
	require.NoError(t, img.Normalize())
	assert.Equal(t, ImageTypeVision, img.Type)

	bad := UploadedImage{URL: "https://cdn.example.com/a.png", Type: "banner"}
	require.ErrorIs(t, bad.Normalize(), utils.ErrValidation)

	missing := UploadedImage{Type: ImageTypeProof}
	require.ErrorIs(t, missing.Normalize(), utils.ErrValidation)
}

func TestOwnedSetIdentityPreservesCreatedAt(t *testing.T) {
	existing := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	o := Owned{CreatedAt: existing}
	o.SetIdentity("id-1", "owner-1", time.Now())
	assert.Equal(t, existing, o.CreatedAt)

	fresh := Owned{}
	at := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	fresh.SetIdentity("id-2", "owner-2", at)
	assert.Equal(t, at, fresh.CreatedAt)
	assert.Equal(t, "id-2", fresh.RecordID())
	assert.Equal(t, "owner-2", fresh.RecordOwner())
}
