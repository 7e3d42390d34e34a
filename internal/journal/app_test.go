// ABOUTME: Tests for the journal core: mutations, undo/redo replay, selection, and transfer.
// ABOUTME: Scenarios run against every storage backend, with a wrapper that injects storage failures.
package journal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/logbook/internal/filter"
	"github.com/2389-research/logbook/internal/models"
	"github.com/2389-research/logbook/internal/storage"
)

var (
	errDiskFull = fmt.Errorf("%w: disk full", storage.ErrData)
	fixedNow    = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	title2Date  = time.Date(2023, 3, 23, 1, 1, 1, 0, time.UTC)
)

// flakyProvider fails every mutation while fail is set and counts mutation calls.
type flakyProvider struct {
	storage.DataProvider
	fail  bool
	calls int
}

func (p *flakyProvider) AddEntry(ctx context.Context, d models.EntryDraft) (models.Entry, error) {
	p.calls++
	if p.fail {
		return models.Entry{}, errDiskFull
	}
	return p.DataProvider.AddEntry(ctx, d)
}

func (p *flakyProvider) RemoveEntry(ctx context.Context, id uint32) error {
	p.calls++
	if p.fail {
		return errDiskFull
	}
	return p.DataProvider.RemoveEntry(ctx, id)
}

func (p *flakyProvider) UpdateEntry(ctx context.Context, e models.Entry) (models.Entry, error) {
	p.calls++
	if p.fail {
		return models.Entry{}, errDiskFull
	}
	return p.DataProvider.UpdateEntry(ctx, e)
}

func (p *flakyProvider) RestoreEntry(ctx context.Context, e models.Entry) (models.Entry, error) {
	p.calls++
	if p.fail {
		return models.Entry{}, errDiskFull
	}
	return p.DataProvider.RestoreEntry(ctx, e)
}

var backendPaths = map[string]string{
	storage.BackendJSON:   "entries.json",
	storage.BackendFiles:  "entries",
	storage.BackendSQLite: "entries.db",
}

// forEachBackend runs fn once per storage backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, backend string)) {
	for backend := range backendPaths {
		t.Run(backend, func(t *testing.T) {
			fn(t, backend)
		})
	}
}

func openStore(t *testing.T, backend, dir string) storage.DataProvider {
	t.Helper()
	store, err := storage.Open(backend, filepath.Join(dir, backendPaths[backend]), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newProvider(t *testing.T, backend string) *flakyProvider {
	t.Helper()
	return &flakyProvider{DataProvider: openStore(t, backend, t.TempDir())}
}

func newApp(t *testing.T, p storage.DataProvider, limit int) *App {
	t.Helper()
	app, err := New(Config{
		Provider:     p,
		HistoryLimit: limit,
		Clock:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	require.NoError(t, app.LoadEntries(context.Background()))
	return app
}

// seededApp holds "Title 1" (id 0) and "Title 2" (id 1).
func seededApp(t *testing.T, backend string) (*App, *flakyProvider) {
	t.Helper()
	ctx := context.Background()
	p := newProvider(t, backend)
	_, err := p.DataProvider.AddEntry(ctx, models.NewEntryDraft(title2Date.Add(-time.Hour), "Title 1", "Content 1", nil, nil))
	require.NoError(t, err)
	_, err = p.DataProvider.AddEntry(ctx, models.NewEntryDraft(title2Date, "Title 2", "Content 2", []string{"tag"}, models.PriorityPtr(2)))
	require.NoError(t, err)
	return newApp(t, p, 10), p
}

func TestNewRequiresProvider(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestAddUndoRedoScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		ctx := context.Background()
		app, _ := seededApp(t, backend)
		require.Equal(t, 2, app.Count())

		id, err := app.AddEntry(ctx, "Added", time.Now(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), id)
		assert.Equal(t, 3, app.Count())

		undone, ok, err := app.Undo(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint32(2), undone)
		assert.Equal(t, 2, app.Count())
		_, exists := app.Entry(2)
		assert.False(t, exists)

		redone, ok, err := app.Redo(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint32(2), redone)
		assert.Equal(t, 3, app.Count())
		added, exists := app.Entry(2)
		require.True(t, exists)
		assert.Equal(t, "Added", added.Title)
	})
}

func TestUndoDeleteRestoresIdenticalEntry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		ctx := context.Background()
		app, _ := seededApp(t, backend)
		before, ok := app.Entry(1)
		require.True(t, ok)

		require.NoError(t, app.DeleteEntry(ctx, 1))
		_, ok = app.Entry(1)
		assert.False(t, ok)

		id, ok, err := app.Undo(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint32(1), id)

		after, ok := app.Entry(1)
		require.True(t, ok)
		assert.Equal(t, before, after)

		// The restored entry survives a reload unchanged.
		require.NoError(t, app.LoadEntries(ctx))
		reloaded, ok := app.Entry(1)
		require.True(t, ok)
		assert.Equal(t, before, reloaded)
	})
}

func TestUndoRedoRoundTripIsExact(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		ctx := context.Background()
		app := newApp(t, newProvider(t, backend), 10)

		s0 := app.Entries()
		_, err := app.AddEntry(ctx, "first", title2Date, []string{"a"}, nil)
		require.NoError(t, err)
		s1 := app.Entries()

		require.NoError(t, app.UpdateCurrentEntryAttributes(ctx, "renamed", title2Date.Add(time.Hour), []string{"b", "c"}, models.PriorityPtr(1)))
		require.NoError(t, app.UpdateCurrentEntryContent(ctx, "some text"))
		s2 := app.Entries()

		var undoStates [][]models.Entry
		for app.CanUndo() {
			_, ok, err := app.Undo(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			undoStates = append(undoStates, app.Entries())
		}
		require.Len(t, undoStates, 3)
		assert.Equal(t, s1, undoStates[1])
		assert.Equal(t, s0, undoStates[2])
		assert.Empty(t, undoStates[2])

		for app.CanRedo() {
			_, ok, err := app.Redo(ctx)
			require.NoError(t, err)
			require.True(t, ok)
		}
		assert.Equal(t, s2, app.Entries())
		undo, redo := app.HistoryLen()
		assert.Equal(t, 3, undo)
		assert.Equal(t, 0, redo)
	})
}

func TestIDsSurviveUndoAndReopen(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		ctx := context.Background()
		dir := t.TempDir()
		store := openStore(t, backend, dir)
		app := newApp(t, store, 10)

		first, err := app.AddEntry(ctx, "first", title2Date, []string{"x"}, nil)
		require.NoError(t, err)
		second, err := app.AddEntry(ctx, "second", title2Date.Add(time.Hour), nil, models.PriorityPtr(1))
		require.NoError(t, err)
		kept, ok := app.Entry(first)
		require.True(t, ok)

		require.NoError(t, app.DeleteEntry(ctx, second))
		restored, ok, err := app.Undo(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, second, restored)
		_, ok, err = app.Redo(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, store.Close())

		reopened := newApp(t, openStore(t, backend, dir), 10)
		assert.Equal(t, 1, reopened.Count())
		again, ok := reopened.Entry(first)
		require.True(t, ok)
		assert.Equal(t, kept, again)

		next, err := reopened.AddEntry(ctx, "third", title2Date, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, second+1, next)
	})
}

func TestNewMutationClearsRedo(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		ctx := context.Background()
		app, _ := seededApp(t, backend)

		_, err := app.AddEntry(ctx, "Added", time.Time{}, nil, nil)
		require.NoError(t, err)
		_, _, err = app.Undo(ctx)
		require.NoError(t, err)
		require.True(t, app.CanRedo())

		require.NoError(t, app.DeleteEntry(ctx, 0))
		assert.False(t, app.CanRedo())
		_, ok, err := app.Redo(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestEmptyStacksAreNoops(t *testing.T) {
	ctx := context.Background()
	app := newApp(t, newProvider(t, storage.BackendJSON), 10)

	_, ok, err := app.Undo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = app.Redo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistoryIsBounded(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		ctx := context.Background()
		app := newApp(t, newProvider(t, backend), 2)
		for i := 0; i < 3; i++ {
			_, err := app.AddEntry(ctx, fmt.Sprintf("entry %d", i), time.Time{}, nil, nil)
			require.NoError(t, err)
		}
		undo, _ := app.HistoryLen()
		assert.Equal(t, 2, undo)

		for app.CanUndo() {
			_, _, err := app.Undo(ctx)
			require.NoError(t, err)
		}
		// The oldest add fell off the stack and stays.
		assert.Equal(t, 1, app.Count())
		_, ok := app.Entry(0)
		assert.True(t, ok)
	})
}

func TestStorageFailureLeavesStateUntouched(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		ctx := context.Background()
		app, p := seededApp(t, backend)
		require.NoError(t, app.SelectEntry(1))
		require.NoError(t, app.UpdateCurrentEntryContent(ctx, "edited"))

		before := app.Entries()
		undoLen, redoLen := app.HistoryLen()
		p.fail = true

		_, err := app.AddEntry(ctx, "nope", time.Time{}, nil, nil)
		assert.ErrorIs(t, err, storage.ErrData)
		assert.ErrorIs(t, app.DeleteEntry(ctx, 0), storage.ErrData)
		assert.ErrorIs(t, app.UpdateCurrentEntryContent(ctx, "again"), storage.ErrData)
		assert.ErrorIs(t, app.UpdateCurrentEntryAttributes(ctx, "t", title2Date, nil, nil), storage.ErrData)
		_, ok, err := app.Undo(ctx)
		assert.ErrorIs(t, err, storage.ErrData)
		assert.False(t, ok)

		assert.Equal(t, before, app.Entries())
		u, r := app.HistoryLen()
		assert.Equal(t, undoLen, u)
		assert.Equal(t, redoLen, r)

		// Once storage recovers the same undo goes through.
		p.fail = false
		id, ok, err := app.Undo(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint32(1), id)
		entry, _ := app.Entry(1)
		assert.Equal(t, "Content 2", entry.Content)
	})
}

func TestValidationNeverReachesStorage(t *testing.T) {
	ctx := context.Background()
	app, p := seededApp(t, storage.BackendJSON)
	calls := p.calls

	_, err := app.AddEntry(ctx, "", time.Time{}, nil, nil)
	assert.ErrorIs(t, err, storage.ErrValidation)
	assert.ErrorIs(t, err, models.ErrEmptyTitle)

	require.NoError(t, app.SelectEntry(0))
	err = app.UpdateCurrentEntryAttributes(ctx, "", title2Date, nil, nil)
	assert.ErrorIs(t, err, storage.ErrValidation)

	assert.Equal(t, calls, p.calls)
	assert.False(t, app.CanUndo())
}

func TestUnchangedEditsRecordNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		ctx := context.Background()
		app, p := seededApp(t, backend)
		require.NoError(t, app.SelectEntry(1))
		current, _ := app.CurrentEntry()
		calls := p.calls

		require.NoError(t, app.UpdateCurrentEntryContent(ctx, current.Content))
		require.NoError(t, app.UpdateCurrentEntryAttributes(ctx, current.Title, current.Date, current.Tags, current.Priority))
		assert.False(t, app.CanUndo())
		assert.Equal(t, calls, p.calls)
	})
}

func TestEditsRequireSelection(t *testing.T) {
	app := newApp(t, newProvider(t, storage.BackendJSON), 10)
	assert.ErrorIs(t, app.UpdateCurrentEntryContent(context.Background(), "x"), ErrNoSelection)
	assert.ErrorIs(t, app.UpdateCurrentEntryAttributes(context.Background(), "x", fixedNow, nil, nil), ErrNoSelection)
}

func TestSelectionFallsBackAfterDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		ctx := context.Background()
		app, _ := seededApp(t, backend)

		// Newest first: Title 2 (id 1) sorts before Title 1 (id 0).
		require.NoError(t, app.SelectEntry(1))
		require.NoError(t, app.DeleteEntry(ctx, 1))
		current, ok := app.CurrentEntry()
		require.True(t, ok)
		assert.Equal(t, uint32(0), current.ID)

		require.NoError(t, app.DeleteEntry(ctx, 0))
		_, ok = app.CurrentEntry()
		assert.False(t, ok)

		_, _, err := app.Undo(ctx)
		require.NoError(t, err)
		current, ok = app.CurrentEntry()
		require.True(t, ok)
		assert.Equal(t, uint32(0), current.ID)

		err = app.SelectEntry(99)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestDeleteUnknownID(t *testing.T) {
	app, _ := seededApp(t, storage.BackendJSON)
	err := app.DeleteEntry(context.Background(), 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.False(t, app.CanUndo())
}

func TestEntriesAreSortedNewestFirstWithStableTies(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		ctx := context.Background()
		app := newApp(t, newProvider(t, backend), 10)
		for _, title := range []string{"a", "b", "c"} {
			_, err := app.AddEntry(ctx, title, title2Date, nil, nil)
			require.NoError(t, err)
		}
		_, err := app.AddEntry(ctx, "newest", title2Date.Add(time.Minute), nil, nil)
		require.NoError(t, err)

		var titles []string
		for _, e := range app.Entries() {
			titles = append(titles, e.Title)
		}
		assert.Equal(t, []string{"newest", "a", "b", "c"}, titles)

		require.NoError(t, app.DeleteEntry(ctx, 1))
		_, _, err = app.Undo(ctx)
		require.NoError(t, err)
		titles = titles[:0]
		for _, e := range app.Entries() {
			titles = append(titles, e.Title)
		}
		assert.Equal(t, []string{"newest", "a", "b", "c"}, titles)
	})
}

func TestDefaultPriority(t *testing.T) {
	ctx := context.Background()
	app, err := New(Config{Provider: newProvider(t, storage.BackendJSON), DefaultPriority: models.PriorityPtr(5)})
	require.NoError(t, err)

	id, err := app.AddEntry(ctx, "defaulted", time.Time{}, nil, nil)
	require.NoError(t, err)
	e, _ := app.Entry(id)
	require.NotNil(t, e.Priority)
	assert.Equal(t, uint32(5), *e.Priority)

	id, err = app.AddEntry(ctx, "explicit", time.Time{}, nil, models.PriorityPtr(1))
	require.NoError(t, err)
	e, _ = app.Entry(id)
	assert.Equal(t, uint32(1), *e.Priority)
}

func TestFilterAndTags(t *testing.T) {
	app, _ := seededApp(t, storage.BackendJSON)
	assert.Len(t, app.ActiveEntries(), 2)

	app.SetFilter(filter.New(filter.RelationAnd, filter.Tag("tag")))
	active := app.ActiveEntries()
	require.Len(t, active, 1)
	assert.Equal(t, "Title 2", active[0].Title)
	assert.Equal(t, 2, app.Count())

	app.SetFilter(nil)
	assert.Nil(t, app.Filter())
	assert.Len(t, app.ActiveEntries(), 2)
	assert.Equal(t, []string{"tag"}, app.AllTags())
}

func TestExportImport(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		ctx := context.Background()
		app, _ := seededApp(t, backend)

		dto, err := app.ExportEntries(ctx, nil)
		require.NoError(t, err)
		require.Len(t, dto.Entries, 2)
		assert.Equal(t, "Title 2", dto.Entries[0].Title)

		only, err := app.ExportEntries(ctx, []uint32{0})
		require.NoError(t, err)
		require.Len(t, only.Entries, 1)

		require.NoError(t, app.ImportEntries(ctx, dto))
		assert.Equal(t, 4, app.Count())
		assert.False(t, app.CanUndo())

		dto.Version = 99
		err = app.ImportEntries(ctx, dto)
		assert.True(t, errors.Is(err, ErrVersionMismatch))
		assert.Equal(t, 4, app.Count())
	})
}
