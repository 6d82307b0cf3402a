package livesync_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/visionboard/backend/livesync"
	"github.com/visionboard/backend/models"
	"github.com/visionboard/backend/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Table(models.AffirmationsTable).AutoMigrate(&models.Note{}))
	require.NoError(t, db.AutoMigrate(&models.Todo{}))
	return db
}

func newNotes(t *testing.T, db *gorm.DB, notifier livesync.Notifier) *livesync.Collection[*models.Note] {
	t.Helper()
	return livesync.NewCollection(db, notifier, zap.NewNop().Sugar(), livesync.Config{
		Kind:       "affirmations",
		Table:      models.AffirmationsTable,
		SortColumn: "created_at",
		SortDesc:   false,
	}, func() *models.Note { return &models.Note{} })
}

func newTodos(t *testing.T, db *gorm.DB, notifier livesync.Notifier) *livesync.Collection[*models.Todo] {
	t.Helper()
	return livesync.NewCollection(db, notifier, zap.NewNop().Sugar(), livesync.Config{
		Kind:       "todos",
		Table:      "todos",
		SortColumn: "created_at",
		SortDesc:   false,
	}, func() *models.Todo { return &models.Todo{} })
}

func nextDelivery[T livesync.Record](t *testing.T, ch <-chan livesync.Delivery[T]) livesync.Delivery[T] {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "delivery channel closed unexpectedly")
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return livesync.Delivery[T]{}
	}
}

func TestAddAssignsIdentityAndDelivers(t *testing.T) {
	db := newTestDB(t)
	notes := newNotes(t, db, livesync.NewMemoryNotifier())
	ctx := context.Background()

	deliveries, cancel, err := notes.Subscribe(ctx, "owner-1")
	require.NoError(t, err)
	defer cancel()

	initial := nextDelivery(t, deliveries)
	require.NoError(t, initial.Err)
	assert.Empty(t, initial.Items)

	note := &models.Note{Text: "  I am enough  "}
	require.NoError(t, notes.Add(ctx, "owner-1", note))
	assert.NotEmpty(t, note.ID)
	assert.Equal(t, "owner-1", note.OwnerID)
	assert.False(t, note.CreatedAt.IsZero())
	assert.Equal(t, "I am enough", note.Text)

	next := nextDelivery(t, deliveries)
	require.NoError(t, next.Err)
	require.Len(t, next.Items, 1)
	assert.Equal(t, note.ID, next.Items[0].ID)
}

func TestAddRejectsEmptyText(t *testing.T) {
	db := newTestDB(t)
	notes := newNotes(t, db, livesync.NewMemoryNotifier())
	ctx := context.Background()

	err := notes.Add(ctx, "owner-1", &models.Note{Text: "   "})
	require.ErrorIs(t, err, utils.ErrValidation)

	items, err := notes.List(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestIdenticalTextsGetDistinctIDs(t *testing.T) {
	db := newTestDB(t)
	notes := newNotes(t, db, livesync.NewMemoryNotifier())
	ctx := context.Background()

	first := &models.Note{Text: "drink water"}
	second := &models.Note{Text: "drink water"}
	require.NoError(t, notes.Add(ctx, "owner-1", first))
	require.NoError(t, notes.Add(ctx, "owner-1", second))
	assert.NotEqual(t, first.ID, second.ID)

	items, err := notes.List(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestOrderingStableAcrossEqualTimestamps(t *testing.T) {
	db := newTestDB(t)
	notes := newNotes(t, db, livesync.NewMemoryNotifier())
	ctx := context.Background()

	// Rows sharing a created_at must come back in the same order every
	// time; the id tiebreak makes the sort total.
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, db.Table(models.AffirmationsTable).Create(&models.Note{
			Owned: models.Owned{ID: id, OwnerID: "owner-1", CreatedAt: at},
			Text:  "note " + id,
		}).Error)
	}

	firstPass, err := notes.List(ctx, "owner-1")
	require.NoError(t, err)
	secondPass, err := notes.List(ctx, "owner-1")
	require.NoError(t, err)

	require.Len(t, firstPass, 3)
	assert.Equal(t, "a", firstPass[0].ID)
	assert.Equal(t, "b", firstPass[1].ID)
	assert.Equal(t, "c", firstPass[2].ID)
	for i := range firstPass {
		assert.Equal(t, firstPass[i].ID, secondPass[i].ID)
	}
}

func TestRemoveExcludedFromLaterDeliveries(t *testing.T) {
	db := newTestDB(t)
	notes := newNotes(t, db, livesync.NewMemoryNotifier())
	ctx := context.Background()

	keep := &models.Note{Text: "keep"}
	drop := &models.Note{Text: "drop"}
	require.NoError(t, notes.Add(ctx, "owner-1", keep))
	require.NoError(t, notes.Add(ctx, "owner-1", drop))

	deliveries, cancel, err := notes.Subscribe(ctx, "owner-1")
	require.NoError(t, err)
	defer cancel()

	initial := nextDelivery(t, deliveries)
	require.Len(t, initial.Items, 2)

	require.NoError(t, notes.Remove(ctx, "owner-1", drop.ID))

	next := nextDelivery(t, deliveries)
	require.NoError(t, next.Err)
	require.Len(t, next.Items, 1)
	assert.Equal(t, keep.ID, next.Items[0].ID)

	// Deleting again reports not found.
	require.ErrorIs(t, notes.Remove(ctx, "owner-1", drop.ID), utils.ErrNotFound)
}

func TestUpdateMergesAndClearsFields(t *testing.T) {
	db := newTestDB(t)
	todos := newTodos(t, db, livesync.NewMemoryNotifier())
	ctx := context.Background()

	day := "2026-03-01"
	todo := &models.Todo{Text: "stretch", Scope: models.ScopeDaily, DoneOn: &day}
	require.NoError(t, todos.Add(ctx, "owner-1", todo))

	// Renaming leaves done_on untouched.
	require.NoError(t, todos.Update(ctx, "owner-1", todo.ID, map[string]any{"text": "stretch more"}))
	got, err := todos.Get(ctx, "owner-1", todo.ID)
	require.NoError(t, err)
	assert.Equal(t, "stretch more", got.Text)
	require.NotNil(t, got.DoneOn)
	assert.Equal(t, day, *got.DoneOn)

	// A nil value clears the optional attribute.
	require.NoError(t, todos.Update(ctx, "owner-1", todo.ID, map[string]any{"done_on": nil}))
	got, err = todos.Get(ctx, "owner-1", todo.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DoneOn)
}

func TestUpdateUnknownIDReturnsNotFound(t *testing.T) {
	db := newTestDB(t)
	todos := newTodos(t, db, livesync.NewMemoryNotifier())

	err := todos.Update(context.Background(), "owner-1", "missing", map[string]any{"text": "x"})
	require.ErrorIs(t, err, utils.ErrNotFound)
}

func TestGetEnforcesOwnership(t *testing.T) {
	db := newTestDB(t)
	notes := newNotes(t, db, livesync.NewMemoryNotifier())
	ctx := context.Background()

	note := &models.Note{Text: "mine"}
	require.NoError(t, notes.Add(ctx, "owner-1", note))

	_, err := notes.Get(ctx, "owner-2", note.ID)
	require.ErrorIs(t, err, utils.ErrNotFound)

	got, err := notes.Get(ctx, "owner-1", note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.ID, got.ID)
}

func TestListScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	notes := newNotes(t, db, livesync.NewMemoryNotifier())
	ctx := context.Background()

	require.NoError(t, notes.Add(ctx, "owner-1", &models.Note{Text: "mine"}))
	require.NoError(t, notes.Add(ctx, "owner-2", &models.Note{Text: "theirs"}))

	items, err := notes.List(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "mine", items[0].Text)
}

func TestMalformedRowsDroppedFromDeliveries(t *testing.T) {
	db := newTestDB(t)
	notes := newNotes(t, db, livesync.NewMemoryNotifier())
	ctx := context.Background()

	require.NoError(t, notes.Add(ctx, "owner-1", &models.Note{Text: "good"}))
	// A row missing its required text never surfaces.
	require.NoError(t, db.Exec(
		"INSERT INTO affirmations (id, owner_id, created_at, text) VALUES (?, ?, ?, ?)",
		"bad-row", "owner-1", time.Now(), "",
	).Error)

	items, err := notes.List(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "good", items[0].Text)
}

func TestScopeFilterNarrowsListAndStream(t *testing.T) {
	db := newTestDB(t)
	todos := newTodos(t, db, livesync.NewMemoryNotifier())
	ctx := context.Background()

	require.NoError(t, todos.Add(ctx, "owner-1", &models.Todo{Text: "daily", Scope: models.ScopeDaily}))
	require.NoError(t, todos.Add(ctx, "owner-1", &models.Todo{Text: "weekly", Scope: models.ScopeWeekly}))

	weeklyOnly := func(q *gorm.DB) *gorm.DB { return q.Where("scope = ?", models.ScopeWeekly) }

	items, err := todos.List(ctx, "owner-1", weeklyOnly)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "weekly", items[0].Text)

	deliveries, cancel, err := todos.Subscribe(ctx, "owner-1", weeklyOnly)
	require.NoError(t, err)
	defer cancel()

	initial := nextDelivery(t, deliveries)
	require.NoError(t, initial.Err)
	require.Len(t, initial.Items, 1)
	assert.Equal(t, "weekly", initial.Items[0].Text)
}

func TestSubscribeCancelIdempotent(t *testing.T) {
	db := newTestDB(t)
	notes := newNotes(t, db, livesync.NewMemoryNotifier())

	deliveries, cancel, err := notes.Subscribe(context.Background(), "owner-1")
	require.NoError(t, err)

	initial := nextDelivery(t, deliveries)
	require.NoError(t, initial.Err)

	cancel()
	cancel()

	select {
	case _, ok := <-deliveries:
		assert.False(t, ok, "expected channel to close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}

func TestSubscribeEndsWithTerminalErrorOnQueryFailure(t *testing.T) {
	db := newTestDB(t)
	notifier := livesync.NewMemoryNotifier()
	notes := newNotes(t, db, notifier)
	ctx := context.Background()

	deliveries, cancel, err := notes.Subscribe(ctx, "owner-1")
	require.NoError(t, err)
	defer cancel()

	initial := nextDelivery(t, deliveries)
	require.NoError(t, initial.Err)

	// Break the backing table, then poke the subscription. The stream
	// must end with an explanatory error, not stale data.
	require.NoError(t, db.Exec("DROP TABLE affirmations").Error)
	require.NoError(t, notifier.Publish(ctx, livesync.Channel("affirmations", "owner-1")))

	terminal := nextDelivery(t, deliveries)
	require.Error(t, terminal.Err)
	require.ErrorIs(t, terminal.Err, utils.ErrStoreRead)

	select {
	case _, ok := <-deliveries:
		assert.False(t, ok, "expected channel to close after terminal error")
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after terminal error")
	}
}
