package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapdin/planner/internal/domain/errs"
	"github.com/tapdin/planner/internal/domain/model"
)

// setupTestStore opens a store in a temporary directory.
func setupTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "plans.db")
	store, err := Open(context.Background(), path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close(context.Background())) })
	return store
}

func tickingClock(t0 time.Time) func() time.Time {
	next := t0
	return func() time.Time {
		now := next
		next = next.Add(time.Minute)
		return now
	}
}

func TestStore_CreateAndList(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store := setupTestStore(t, WithClock(tickingClock(t0)))
	ctx := context.Background()

	when := time.Date(2024, 6, 5, 22, 0, 0, 0, time.UTC)
	rec := model.EventRecord{
		Title:       "Beach Volleyball",
		Datetime:    &when,
		Location:    model.Location{Name: "Ocean Beach", Address: "1 Great Hwy"},
		Description: "Pickup games",
		Type:        model.TypeSocial,
	}
	id1, err := store.Create(ctx, rec, model.Meta{Source: model.SourceURL, SourceURL: "https://example.com/vb"})
	require.NoError(t, err)
	id2, err := store.Create(ctx, model.NewEventRecord(), model.Meta{Source: model.SourceImage})
	require.NoError(t, err)
	id3, err := store.Create(ctx, model.NewEventRecord(), model.Meta{})
	require.NoError(t, err)

	plans, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, []string{id3, id2, id1}, []string{plans[0].ID, plans[1].ID, plans[2].ID})

	got := plans[2]
	assert.Equal(t, rec.Title, got.Event.Title)
	require.NotNil(t, got.Event.Datetime)
	assert.True(t, when.Equal(*got.Event.Datetime))
	assert.Equal(t, rec.Location, got.Event.Location)
	assert.Equal(t, rec.Description, got.Event.Description)
	assert.Equal(t, model.TypeSocial, got.Event.Type)
	assert.Equal(t, model.SourceURL, got.Meta.Source)
	assert.Equal(t, "https://example.com/vb", got.Meta.SourceURL)
	assert.Equal(t, t0, got.CreatedAt)

	assert.Nil(t, plans[1].Event.Datetime)
	assert.Equal(t, model.DefaultTitle, plans[1].Event.Title)
	assert.Equal(t, model.DefaultLocationName, plans[1].Event.Location.Name)
}

func TestStore_EmptyList(t *testing.T) {
	store := setupTestStore(t)
	plans, err := store.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, plans)
	assert.Empty(t, plans)
}

func TestStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	id, err := store.Create(ctx, model.NewEventRecord(), model.Meta{})
	require.NoError(t, err)

	err = store.Delete(ctx, "12345")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidID))

	err = store.Delete(ctx, "4f1c2a9e-8d7b-4c3a-9e6f-0a1b2c3d4e5f")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	require.NoError(t, store.Delete(ctx, id))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_ReopenKeepsDataAndSkipsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.db")
	ctx := context.Background()

	first, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = first.Create(ctx, model.NewEventRecord(), model.Meta{})
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	second, err := Open(ctx, path)
	require.NoError(t, err)
	defer second.Close(ctx)

	n, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var version int
	require.NoError(t, second.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
	assert.Equal(t, path, second.Path())
}

func TestStore_Ping(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
