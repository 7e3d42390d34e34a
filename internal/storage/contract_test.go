// ABOUTME: DataProvider contract tests run against every storage backend.
// ABOUTME: Covers id policy, validation, no-op removal, restore, export ordering, and import.
package storage

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/2389-research/logbook/internal/models"
)

type providerFactory func(t *testing.T, dir string) DataProvider

func backends() map[string]providerFactory {
	return map[string]providerFactory{
		BackendJSON: func(t *testing.T, dir string) DataProvider {
			s, err := NewJSONStore(filepath.Join(dir, "entries.json"), zap.NewNop())
			require.NoError(t, err)
			return s
		},
		BackendFiles: func(t *testing.T, dir string) DataProvider {
			s, err := NewEntryMDStore(filepath.Join(dir, "entries"), zap.NewNop())
			require.NoError(t, err)
			return s
		},
		BackendSQLite: func(t *testing.T, dir string) DataProvider {
			s, err := NewSQLStore(filepath.Join(dir, "entries.db"), zap.NewNop())
			require.NoError(t, err)
			return s
		},
	}
}

// forEachBackend runs fn against a fresh provider of every kind.
func forEachBackend(t *testing.T, fn func(t *testing.T, p DataProvider, reopen func() DataProvider)) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			p := factory(t, dir)
			current := p
			t.Cleanup(func() { _ = current.Close() })
			reopen := func() DataProvider {
				require.NoError(t, current.Close())
				current = factory(t, dir)
				return current
			}
			fn(t, p, reopen)
		})
	}
}

func draft(title string, date time.Time) models.EntryDraft {
	return models.NewEntryDraft(date, title, "content of "+title, []string{"tag"}, nil)
}

var baseDate = time.Date(2023, 3, 23, 1, 1, 1, 0, time.UTC)

func TestContractLoadEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, _ func() DataProvider) {
		entries, err := p.LoadAllEntries(context.Background())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestContractAddAssignsMonotonicIDs(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, _ func() DataProvider) {
		ctx := context.Background()

		first, err := p.AddEntry(ctx, draft("Title 1", baseDate))
		require.NoError(t, err)
		second, err := p.AddEntry(ctx, draft("Title 2", baseDate.Add(time.Hour)))
		require.NoError(t, err)

		assert.Equal(t, uint32(0), first.ID)
		assert.Equal(t, uint32(1), second.ID)

		entries, err := p.LoadAllEntries(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestContractIDsNeverReused(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, reopen func() DataProvider) {
		ctx := context.Background()

		_, err := p.AddEntry(ctx, draft("a", baseDate))
		require.NoError(t, err)
		last, err := p.AddEntry(ctx, draft("b", baseDate))
		require.NoError(t, err)
		require.NoError(t, p.RemoveEntry(ctx, last.ID))

		next, err := p.AddEntry(ctx, draft("c", baseDate))
		require.NoError(t, err)
		assert.Equal(t, last.ID+1, next.ID)

		require.NoError(t, p.RemoveEntry(ctx, next.ID))
		p = reopen()
		after, err := p.AddEntry(ctx, draft("d", baseDate))
		require.NoError(t, err)
		assert.Equal(t, next.ID+1, after.ID)
	})
}

func TestContractAddRejectsEmptyTitle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, _ func() DataProvider) {
		ctx := context.Background()

		_, err := p.AddEntry(ctx, draft("", baseDate))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))
		assert.True(t, errors.Is(err, models.ErrEmptyTitle))

		entries, err := p.LoadAllEntries(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestContractRoundTripPreservesFields(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, reopen func() DataProvider) {
		ctx := context.Background()
		date := time.Date(2024, 1, 2, 3, 4, 5, 123456789, time.FixedZone("CET", 3600))
		d := models.NewEntryDraft(date, "Title: with colon", "line one\n---\nline three\n\n", []string{"b", "a", "b"}, models.PriorityPtr(3))

		added, err := p.AddEntry(ctx, d)
		require.NoError(t, err)

		p = reopen()
		entries, err := p.LoadAllEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, added, entries[0])
		assert.Equal(t, []string{"a", "b"}, entries[0].Tags)
		assert.True(t, entries[0].Date.Equal(date))
		assert.Equal(t, "line one\n---\nline three\n\n", entries[0].Content)
	})
}

func TestContractRoundTripsDatesOutsideUnixNanoRange(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, reopen func() DataProvider) {
		ctx := context.Background()
		dates := []time.Time{
			time.Date(2500, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(1500, 6, 1, 12, 30, 0, 999, time.UTC),
			{},
		}
		added := make([]models.Entry, 0, len(dates))
		for _, date := range dates {
			entry, err := p.AddEntry(ctx, draft(date.Format("2006"), date))
			require.NoError(t, err)
			assert.True(t, entry.Date.Equal(date))
			added = append(added, entry)
		}

		moved := added[0].Clone()
		moved.Date = time.Date(9999, 12, 31, 23, 59, 59, 1, time.UTC)
		updated, err := p.UpdateEntry(ctx, moved)
		require.NoError(t, err)
		added[0] = updated

		p = reopen()
		entries, err := p.LoadAllEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		SortEntries(entries)
		assert.Equal(t, added, entries)
	})
}

func TestContractIDSpaceExhausted(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, _ func() DataProvider) {
		ctx := context.Background()

		last := draft("last", baseDate).WithID(math.MaxUint32 - 1)
		_, err := p.RestoreEntry(ctx, last)
		require.NoError(t, err)

		_, err = p.AddEntry(ctx, draft("overflow", baseDate))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrData))

		err = p.ImportEntries(ctx, models.NewEntriesDTO([]models.EntryDraft{draft("overflow", baseDate)}))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrData))

		_, err = p.RestoreEntry(ctx, draft("max", baseDate).WithID(math.MaxUint32))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrData))

		entries, err := p.LoadAllEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, uint32(math.MaxUint32-1), entries[0].ID)
	})
}

func TestContractRemoveMissingIsNoop(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, _ func() DataProvider) {
		require.NoError(t, p.RemoveEntry(context.Background(), 42))
	})
}

func TestContractUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, reopen func() DataProvider) {
		ctx := context.Background()
		added, err := p.AddEntry(ctx, draft("before", baseDate))
		require.NoError(t, err)

		changed := added.Clone()
		changed.Title = "after"
		changed.Tags = []string{"x", "y"}
		changed.Priority = models.PriorityPtr(1)
		changed.Content = "new body"

		updated, err := p.UpdateEntry(ctx, changed)
		require.NoError(t, err)
		assert.Equal(t, "after", updated.Title)

		p = reopen()
		entries, err := p.LoadAllEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, updated, entries[0])

		changed.Priority = nil
		changed.Tags = nil
		_, err = p.UpdateEntry(ctx, changed)
		require.NoError(t, err)
		entries, err = p.LoadAllEntries(ctx)
		require.NoError(t, err)
		assert.Nil(t, entries[0].Priority)
		assert.Empty(t, entries[0].Tags)
	})
}

func TestContractUpdateValidation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, _ func() DataProvider) {
		ctx := context.Background()
		added, err := p.AddEntry(ctx, draft("keep", baseDate))
		require.NoError(t, err)

		empty := added.Clone()
		empty.Title = ""
		_, err = p.UpdateEntry(ctx, empty)
		assert.True(t, errors.Is(err, ErrValidation))

		missing := added.Clone()
		missing.ID = 99
		_, err = p.UpdateEntry(ctx, missing)
		assert.True(t, errors.Is(err, ErrValidation))
		assert.True(t, errors.Is(err, ErrNotFound))

		entries, err := p.LoadAllEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "keep", entries[0].Title)
	})
}

func TestContractRestoreKeepsID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, _ func() DataProvider) {
		ctx := context.Background()
		_, err := p.AddEntry(ctx, draft("zero", baseDate))
		require.NoError(t, err)
		one, err := p.AddEntry(ctx, draft("one", baseDate))
		require.NoError(t, err)

		require.NoError(t, p.RemoveEntry(ctx, one.ID))
		restored, err := p.RestoreEntry(ctx, one)
		require.NoError(t, err)
		assert.Equal(t, one, restored)

		_, err = p.RestoreEntry(ctx, one)
		assert.True(t, errors.Is(err, ErrConflict))
		assert.True(t, errors.Is(err, ErrData))

		next, err := p.AddEntry(ctx, draft("two", baseDate))
		require.NoError(t, err)
		assert.Equal(t, uint32(2), next.ID)

		far := one.Clone()
		far.ID = 10
		_, err = p.RestoreEntry(ctx, far)
		require.NoError(t, err)
		after, err := p.AddEntry(ctx, draft("eleven", baseDate))
		require.NoError(t, err)
		assert.Equal(t, uint32(11), after.ID)
	})
}

func TestContractExportOrderAndSelection(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, _ func() DataProvider) {
		ctx := context.Background()
		old, err := p.AddEntry(ctx, draft("old", baseDate))
		require.NoError(t, err)
		_, err = p.AddEntry(ctx, draft("skipped", baseDate.Add(time.Hour)))
		require.NoError(t, err)
		recent, err := p.AddEntry(ctx, draft("recent", baseDate.Add(2*time.Hour)))
		require.NoError(t, err)

		dto, err := p.GetExportObject(ctx, []uint32{old.ID, recent.ID, 77})
		require.NoError(t, err)
		assert.Equal(t, models.CurrentDTOVersion, dto.Version)
		require.Len(t, dto.Entries, 2)
		assert.Equal(t, "recent", dto.Entries[0].Title)
		assert.Equal(t, "old", dto.Entries[1].Title)
		assert.Equal(t, recent.Draft(), dto.Entries[0])

		empty, err := p.GetExportObject(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty.Entries)
	})
}

func TestContractImportOnlyAdds(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, _ func() DataProvider) {
		ctx := context.Background()
		existing, err := p.AddEntry(ctx, draft("existing", baseDate))
		require.NoError(t, err)

		dto := models.NewEntriesDTO([]models.EntryDraft{draft("imported a", baseDate), draft("imported b", baseDate)})
		require.NoError(t, p.ImportEntries(ctx, dto))
		require.NoError(t, p.ImportEntries(ctx, dto))

		entries, err := p.LoadAllEntries(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 5)

		seen := map[uint32]bool{}
		for _, e := range entries {
			assert.False(t, seen[e.ID], "duplicate id %d", e.ID)
			seen[e.ID] = true
			if e.ID == existing.ID {
				assert.Equal(t, existing, e)
			}
		}
	})
}

func TestContractImportIsAtomicOnValidationFailure(t *testing.T) {
	forEachBackend(t, func(t *testing.T, p DataProvider, _ func() DataProvider) {
		ctx := context.Background()
		dto := models.NewEntriesDTO([]models.EntryDraft{draft("fine", baseDate), draft("", baseDate)})

		err := p.ImportEntries(ctx, dto)
		assert.True(t, errors.Is(err, ErrValidation))

		entries, err := p.LoadAllEntries(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("postgres", t.TempDir(), nil)
	assert.Error(t, err)
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	p, err := Open(BackendJSON, filepath.Join(dir, "e.json"), nil)
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, p)

	p, err = Open(BackendFiles, filepath.Join(dir, "entries"), nil)
	require.NoError(t, err)
	assert.IsType(t, &EntryMDStore{}, p)

	p, err = Open(BackendSQLite, filepath.Join(dir, "e.db"), nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, p)
	require.NoError(t, p.Close())
}
