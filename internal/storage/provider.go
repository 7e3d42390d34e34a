// ABOUTME: DataProvider contract shared by every journal storage backend.
// ABOUTME: Defines the error taxonomy, id policy helpers, and the backend factory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/2389-research/logbook/internal/models"
)

// Sentinel errors for storage operations.
var (
	// ErrValidation marks a rejected request (empty title, unknown update target).
	ErrValidation = errors.New("validation error")
	// ErrData marks an I/O failure, constraint violation, or malformed stored data.
	ErrData = errors.New("data error")
	// ErrNotFound marks a missing entry id. It is always combined with ErrValidation or ErrData.
	ErrNotFound = errors.New("entry not found")
	// ErrConflict marks a restore onto an id that is already taken.
	ErrConflict = errors.New("entry id already exists")
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendFiles  = "files"
	BackendSQLite = "sqlite"
)

// DataProvider defines durable CRUD over journal entries. Every mutation is persisted
// before it returns and either fully applies or leaves storage untouched.
type DataProvider interface {
	// LoadAllEntries returns every stored entry. Missing storage yields an empty slice.
	LoadAllEntries(ctx context.Context) ([]models.Entry, error)

	// AddEntry validates the draft, assigns a fresh id and persists it.
	AddEntry(ctx context.Context, draft models.EntryDraft) (models.Entry, error)

	// RemoveEntry deletes the entry. Unknown ids are a successful no-op.
	RemoveEntry(ctx context.Context, id uint32) error

	// UpdateEntry overwrites every mutable field of an existing entry.
	UpdateEntry(ctx context.Context, entry models.Entry) (models.Entry, error)

	// RestoreEntry re-inserts an entry under its original id.
	RestoreEntry(ctx context.Context, entry models.Entry) (models.Entry, error)

	// GetExportObject returns the requested entries as drafts, newest first.
	GetExportObject(ctx context.Context, ids []uint32) (models.EntriesDTO, error)

	// ImportEntries adds every draft as a new entry with a fresh id.
	ImportEntries(ctx context.Context, dto models.EntriesDTO) error

	// Close releases any resources held by the store.
	Close() error
}

// Open selects a backend by name. path is the JSON file, the entries directory, or the
// SQLite database file respectively.
func Open(backend, path string, logger *zap.Logger) (DataProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("backend", backend), zap.String("path", path))

	switch backend {
	case BackendJSON:
		return NewJSONStore(path, logger)
	case BackendFiles:
		return NewEntryMDStore(path, logger)
	case BackendSQLite:
		return NewSQLStore(path, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// validationError wraps a model validation failure in ErrValidation.
func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func dataError(action string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrData, action, err)
}

func notFoundError(id uint32) error {
	return fmt.Errorf("%w: %w: id %d", ErrValidation, ErrNotFound, id)
}

func conflictError(id uint32) error {
	return fmt.Errorf("%w: %w: id %d", ErrData, ErrConflict, id)
}

// nextID applies the id policy: ids start at 0 and every new id is greater than any id
// that exists or has been handed out before (the watermark).
func nextID(watermark uint32, entries []models.Entry) (uint32, error) {
	next := watermark
	for _, e := range entries {
		if e.ID >= next {
			following, err := followingID(e.ID)
			if err != nil {
				return 0, err
			}
			next = following
		}
	}
	return next, nil
}

// followingID returns the watermark after id. The largest uint32 has no successor, so
// it is never handed out.
func followingID(id uint32) (uint32, error) {
	if id == math.MaxUint32 {
		return 0, fmt.Errorf("%w: id space exhausted after %d", ErrData, id)
	}
	return id + 1, nil
}

// SortEntries orders entries by date descending, ties broken by id ascending.
func SortEntries(entries []models.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].ID < entries[j].ID
	})
}

// exportObject builds the DTO for the requested ids from a full entry list.
func exportObject(entries []models.Entry, ids []uint32) models.EntriesDTO {
	wanted := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	selected := make([]models.Entry, 0, len(ids))
	for _, e := range entries {
		if _, ok := wanted[e.ID]; ok {
			selected = append(selected, e)
		}
	}
	SortEntries(selected)

	drafts := make([]models.EntryDraft, 0, len(selected))
	for _, e := range selected {
		drafts = append(drafts, e.Draft())
	}
	return models.NewEntriesDTO(drafts)
}

// validateDrafts checks every draft of an import before anything is written.
func validateDrafts(drafts []models.EntryDraft) error {
	for i, d := range drafts {
		if err := models.ValidateDraft(d); err != nil {
			return fmt.Errorf("%w: import entry %d: %w", ErrValidation, i, err)
		}
	}
	return nil
}
