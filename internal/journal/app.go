// ABOUTME: Application core that owns the entry store, selection, filter, and undo history.
// ABOUTME: Every mutation goes to storage first and touches memory only after it succeeds.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/2389-research/logbook/internal/filter"
	"github.com/2389-research/logbook/internal/history"
	"github.com/2389-research/logbook/internal/models"
	"github.com/2389-research/logbook/internal/storage"
)

var (
	// ErrNoSelection is returned by entry-scoped edits when no entry is selected.
	ErrNoSelection = errors.New("no entry selected")
	// ErrVersionMismatch is returned when importing a DTO with an unsupported version.
	ErrVersionMismatch = errors.New("unsupported export version")

	errMissingProvider = errors.New("data provider is required")
	noOpLogger         = zap.NewNop()
)

const (
	opAdd     = "journal.add_entry"
	opDelete  = "journal.delete_entry"
	opAttrs   = "journal.update_attributes"
	opContent = "journal.update_content"
	opUndo    = "journal.undo"
	opRedo    = "journal.redo"
	opLoad    = "journal.load_entries"
	opImport  = "journal.import_entries"
	opExport  = "journal.export_entries"
)

// Config carries everything the core needs. Nothing is read from globals.
type Config struct {
	Provider        storage.DataProvider
	HistoryLimit    int
	DefaultPriority *uint32
	Logger          *zap.Logger
	Clock           func() time.Time
}

// App is the journal core. It is driven by one session and is not safe for concurrent use.
type App struct {
	provider        storage.DataProvider
	logger          *zap.Logger
	clock           func() time.Time
	defaultPriority *uint32

	store   entryStore
	history *history.Manager
	filter  *filter.Filter

	current    uint32
	hasCurrent bool
}

// New creates an App with an empty store. Call LoadEntries to fill it.
func New(cfg Config) (*App, error) {
	if cfg.Provider == nil {
		return nil, errMissingProvider
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	var defaultPriority *uint32
	if cfg.DefaultPriority != nil {
		defaultPriority = models.PriorityPtr(*cfg.DefaultPriority)
	}

	return &App{
		provider:        cfg.Provider,
		logger:          logger,
		clock:           clock,
		defaultPriority: defaultPriority,
		history:         history.New(cfg.HistoryLimit),
	}, nil
}

// LoadEntries replaces the store with everything the provider holds.
func (a *App) LoadEntries(ctx context.Context) error {
	entries, err := a.provider.LoadAllEntries(ctx)
	if err != nil {
		a.logError(opLoad, err)
		return err
	}
	a.store.replace(entries)
	a.fixSelection()
	a.logger.Info("entries loaded", zap.Int("count", a.store.count()))
	return nil
}

// AddEntry creates an entry without content and returns its id. A zero date means now.
func (a *App) AddEntry(ctx context.Context, title string, date time.Time, tags []string, priority *uint32) (uint32, error) {
	entry, err := a.AddDraft(ctx, models.NewEntryDraft(date, title, "", tags, priority))
	if err != nil {
		return 0, err
	}
	return entry.ID, nil
}

// AddDraft creates an entry from a full draft and selects it.
func (a *App) AddDraft(ctx context.Context, draft models.EntryDraft) (models.Entry, error) {
	if draft.Date.IsZero() {
		draft.Date = a.clock()
	}
	if draft.Priority == nil && a.defaultPriority != nil {
		draft.Priority = models.PriorityPtr(*a.defaultPriority)
	}
	draft = draft.Normalize()
	if err := models.ValidateDraft(draft); err != nil {
		return models.Entry{}, validationError(err)
	}

	entry, err := a.provider.AddEntry(ctx, draft)
	if err != nil {
		a.logError(opAdd, err)
		return models.Entry{}, err
	}

	a.store.insert(entry)
	a.setCurrent(entry.ID)
	a.recordDirect(history.AddEntry(entry.ID))
	a.logger.Debug("entry added", zap.Uint32("entry_id", entry.ID))
	return entry.Clone(), nil
}

// DeleteEntry removes the entry. If it was selected, selection moves to the first
// remaining entry.
func (a *App) DeleteEntry(ctx context.Context, id uint32) error {
	snapshot, ok := a.store.get(id)
	if !ok {
		return notFoundError(id)
	}

	if err := a.provider.RemoveEntry(ctx, id); err != nil {
		a.logError(opDelete, err, zap.Uint32("entry_id", id))
		return err
	}

	a.store.remove(id)
	a.fixSelection()
	a.recordDirect(history.RemoveEntry(snapshot))
	a.logger.Debug("entry deleted", zap.Uint32("entry_id", id))
	return nil
}

// UpdateCurrentEntryAttributes overwrites title, date, tags, and priority of the selected
// entry. Content is left alone. Writing identical values records nothing.
func (a *App) UpdateCurrentEntryAttributes(ctx context.Context, title string, date time.Time, tags []string, priority *uint32) error {
	current, err := a.currentOrErr()
	if err != nil {
		return err
	}

	prior := history.AttributesOf(current)
	next := history.Attributes{Title: title, Date: date, Tags: tags, Priority: priority}
	updated := next.ApplyTo(current)
	if err := models.ValidateEntry(updated); err != nil {
		return validationError(err)
	}
	if history.AttributesOf(updated).Equal(prior) {
		return nil
	}

	stored, err := a.provider.UpdateEntry(ctx, updated)
	if err != nil {
		a.logError(opAttrs, err, zap.Uint32("entry_id", current.ID))
		return err
	}

	a.store.update(stored)
	a.recordDirect(history.ChangeAttributes(current.ID, prior))
	a.logger.Debug("entry attributes updated", zap.Uint32("entry_id", current.ID))
	return nil
}

// UpdateCurrentEntryContent replaces the content of the selected entry. Writing the same
// content records nothing.
func (a *App) UpdateCurrentEntryContent(ctx context.Context, content string) error {
	current, err := a.currentOrErr()
	if err != nil {
		return err
	}
	if current.Content == content {
		return nil
	}

	updated := current.Clone()
	updated.Content = content
	stored, err := a.provider.UpdateEntry(ctx, updated)
	if err != nil {
		a.logError(opContent, err, zap.Uint32("entry_id", current.ID))
		return err
	}

	a.store.update(stored)
	a.recordDirect(history.ChangeContent(current.ID, current.Content))
	a.logger.Debug("entry content updated", zap.Uint32("entry_id", current.ID))
	return nil
}

// Undo reverses the most recent change. It returns the affected id, or false when there
// was nothing to undo. On error the history is left as it was.
func (a *App) Undo(ctx context.Context) (uint32, bool, error) {
	return a.replay(ctx, opUndo, history.Undo, history.Redo)
}

// Redo re-applies the most recently undone change.
func (a *App) Redo(ctx context.Context) (uint32, bool, error) {
	return a.replay(ctx, opRedo, history.Redo, history.Undo)
}

// replay pops from source, applies the change, and pushes its inverse onto target.
func (a *App) replay(ctx context.Context, op string, source, target history.Stack) (uint32, bool, error) {
	var (
		change history.Change
		ok     bool
	)
	if source == history.Undo {
		change, ok = a.history.PopUndo()
	} else {
		change, ok = a.history.PopRedo()
	}
	if !ok {
		return 0, false, nil
	}

	inverse, err := a.apply(ctx, change)
	if err != nil {
		// Put it back where it was; popping then pushing cannot evict.
		a.history.Register(source, change)
		a.logError(op, err, zap.Uint32("entry_id", change.EntryID), zap.Stringer("kind", change.Kind))
		return 0, false, err
	}

	a.history.Register(target, inverse)
	if _, exists := a.store.get(change.EntryID); exists {
		a.setCurrent(change.EntryID)
	} else {
		a.fixSelection()
	}
	a.logger.Debug("change replayed",
		zap.String("op", op),
		zap.Uint32("entry_id", change.EntryID),
		zap.Stringer("kind", change.Kind))
	return change.EntryID, true, nil
}

// apply performs the reversal described by change through storage and the store, and
// returns the change that reverses it again.
func (a *App) apply(ctx context.Context, change history.Change) (history.Change, error) {
	switch change.Kind {
	case history.KindAddEntry:
		snapshot, ok := a.store.get(change.EntryID)
		if !ok {
			return history.Change{}, missingTargetError(change.EntryID)
		}
		if err := a.provider.RemoveEntry(ctx, change.EntryID); err != nil {
			return history.Change{}, err
		}
		a.store.remove(change.EntryID)
		return history.RemoveEntry(snapshot), nil

	case history.KindRemoveEntry:
		restored, err := a.provider.RestoreEntry(ctx, change.Entry)
		if err != nil {
			return history.Change{}, err
		}
		a.store.insert(restored)
		return history.AddEntry(restored.ID), nil

	case history.KindChangeAttributes:
		current, ok := a.store.get(change.EntryID)
		if !ok {
			return history.Change{}, missingTargetError(change.EntryID)
		}
		overwritten := history.AttributesOf(current)
		stored, err := a.provider.UpdateEntry(ctx, change.Attributes.ApplyTo(current))
		if err != nil {
			return history.Change{}, err
		}
		a.store.update(stored)
		return history.ChangeAttributes(change.EntryID, overwritten), nil

	case history.KindChangeContent:
		current, ok := a.store.get(change.EntryID)
		if !ok {
			return history.Change{}, missingTargetError(change.EntryID)
		}
		updated := current.Clone()
		updated.Content = change.Content
		stored, err := a.provider.UpdateEntry(ctx, updated)
		if err != nil {
			return history.Change{}, err
		}
		a.store.update(stored)
		return history.ChangeContent(change.EntryID, current.Content), nil

	default:
		return history.Change{}, fmt.Errorf("unknown change kind %v", change.Kind)
	}
}

// ExportEntries builds a DTO of the given ids, or of every entry when ids is empty.
func (a *App) ExportEntries(ctx context.Context, ids []uint32) (models.EntriesDTO, error) {
	if len(ids) == 0 {
		ids = a.store.ids()
	}
	dto, err := a.provider.GetExportObject(ctx, ids)
	if err != nil {
		a.logError(opExport, err)
		return models.EntriesDTO{}, err
	}
	return dto, nil
}

// ImportEntries adds every draft of dto as a new entry and reloads the store. Imports are
// not recorded in the history.
func (a *App) ImportEntries(ctx context.Context, dto models.EntriesDTO) error {
	if dto.Version != models.CurrentDTOVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, dto.Version, models.CurrentDTOVersion)
	}
	if err := a.provider.ImportEntries(ctx, dto); err != nil {
		a.logError(opImport, err)
		return err
	}
	a.logger.Info("entries imported", zap.Int("count", len(dto.Entries)))
	return a.LoadEntries(ctx)
}

// SelectEntry makes id the current entry.
func (a *App) SelectEntry(id uint32) error {
	if _, ok := a.store.get(id); !ok {
		return notFoundError(id)
	}
	a.setCurrent(id)
	return nil
}

// CurrentEntry returns a copy of the selected entry.
func (a *App) CurrentEntry() (models.Entry, bool) {
	if !a.hasCurrent {
		return models.Entry{}, false
	}
	return a.store.get(a.current)
}

// Entries returns a copy of every entry, newest first.
func (a *App) Entries() []models.Entry {
	return a.store.all()
}

// Entry returns a copy of the entry with id.
func (a *App) Entry(id uint32) (models.Entry, bool) {
	return a.store.get(id)
}

// Count returns the number of entries.
func (a *App) Count() int {
	return a.store.count()
}

// ActiveEntries returns the entries that pass the current filter, newest first.
func (a *App) ActiveEntries() []models.Entry {
	return a.filter.Apply(a.store.all())
}

// SetFilter replaces the active filter. nil clears it.
func (a *App) SetFilter(f *filter.Filter) {
	a.filter = f.Clone()
}

// Filter returns a copy of the active filter, or nil.
func (a *App) Filter() *filter.Filter {
	return a.filter.Clone()
}

// AllTags returns every tag in use, sorted.
func (a *App) AllTags() []string {
	return a.store.tags()
}

// CanUndo reports whether Undo would do anything.
func (a *App) CanUndo() bool {
	return a.history.UndoLen() > 0
}

// CanRedo reports whether Redo would do anything.
func (a *App) CanRedo() bool {
	return a.history.RedoLen() > 0
}

// HistoryLen returns the sizes of the undo and redo stacks.
func (a *App) HistoryLen() (undo, redo int) {
	return a.history.UndoLen(), a.history.RedoLen()
}

// recordDirect registers the inverse of a direct user action and drops the redo stack.
func (a *App) recordDirect(change history.Change) {
	a.history.Register(history.Undo, change)
	a.history.ClearRedo()
}

func (a *App) setCurrent(id uint32) {
	a.current = id
	a.hasCurrent = true
}

// fixSelection keeps the current entry if it still exists, else selects the first entry.
func (a *App) fixSelection() {
	if a.hasCurrent {
		if _, ok := a.store.get(a.current); ok {
			return
		}
	}
	first, ok := a.store.first()
	a.current = first.ID
	a.hasCurrent = ok
}

func (a *App) currentOrErr() (models.Entry, error) {
	current, ok := a.CurrentEntry()
	if !ok {
		return models.Entry{}, ErrNoSelection
	}
	return current, nil
}

func (a *App) logError(op string, err error, fields ...zap.Field) {
	fields = append([]zap.Field{zap.String("op", op), zap.Error(err)}, fields...)
	a.logger.Warn("storage call failed", fields...)
}

func validationError(err error) error {
	return fmt.Errorf("%w: %w", storage.ErrValidation, err)
}

func notFoundError(id uint32) error {
	return fmt.Errorf("%w: %w: id %d", storage.ErrValidation, storage.ErrNotFound, id)
}

// missingTargetError reports a history change whose entry vanished out of band.
func missingTargetError(id uint32) error {
	return fmt.Errorf("%w: %w: id %d", storage.ErrData, storage.ErrNotFound, id)
}
