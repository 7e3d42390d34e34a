// ABOUTME: Single-document JSON journal storage.
// ABOUTME: Keeps all entries plus the id watermark in one file, rewritten atomically per mutation.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/2389-research/logbook/internal/models"
)

// jsonDocumentVersion is the layout version of the JSON document on disk.
const jsonDocumentVersion = 1

// jsonDocument is the on-disk layout of the JSON backend.
type jsonDocument struct {
	Version uint32         `json:"version"`
	NextID  uint32         `json:"next_id"`
	Entries []models.Entry `json:"entries"`
}

// JSONStore persists every entry in one JSON document.
type JSONStore struct {
	path   string
	logger *zap.Logger

	mu  sync.Mutex
	doc *jsonDocument // nil until first read
}

// NewJSONStore creates a store backed by the JSON file at path. The file is created on the
// first write.
func NewJSONStore(path string, logger *zap.Logger) (*JSONStore, error) {
	if path == "" {
		return nil, fmt.Errorf("json store path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONStore{path: path, logger: logger}, nil
}

// LoadAllEntries reads the document from disk and returns its entries.
func (s *JSONStore) LoadAllEntries(ctx context.Context) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDocument()
	if err != nil {
		return nil, err
	}
	s.doc = doc
	return cloneEntries(doc.Entries), nil
}

// AddEntry assigns the next id and persists the new entry.
func (s *JSONStore) AddEntry(ctx context.Context, draft models.EntryDraft) (models.Entry, error) {
	if err := models.ValidateDraft(draft); err != nil {
		return models.Entry{}, validationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.document()
	if err != nil {
		return models.Entry{}, err
	}

	next := doc.clone()
	id, err := nextID(next.NextID, next.Entries)
	if err != nil {
		return models.Entry{}, err
	}
	if next.NextID, err = followingID(id); err != nil {
		return models.Entry{}, err
	}
	entry := draft.WithID(id)
	next.Entries = append(next.Entries, entry)

	if err := s.commit(next); err != nil {
		return models.Entry{}, err
	}
	return entry.Clone(), nil
}

// RemoveEntry deletes the entry with id, if present.
func (s *JSONStore) RemoveEntry(ctx context.Context, id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.document()
	if err != nil {
		return err
	}

	idx := indexOf(doc.Entries, id)
	if idx < 0 {
		return nil
	}

	next := doc.clone()
	next.Entries = append(next.Entries[:idx], next.Entries[idx+1:]...)
	return s.commit(next)
}

// UpdateEntry replaces the stored entry that has entry.ID.
func (s *JSONStore) UpdateEntry(ctx context.Context, entry models.Entry) (models.Entry, error) {
	if err := models.ValidateEntry(entry); err != nil {
		return models.Entry{}, validationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.document()
	if err != nil {
		return models.Entry{}, err
	}

	idx := indexOf(doc.Entries, entry.ID)
	if idx < 0 {
		return models.Entry{}, notFoundError(entry.ID)
	}

	next := doc.clone()
	next.Entries[idx] = entry.Normalize()
	if err := s.commit(next); err != nil {
		return models.Entry{}, err
	}
	return next.Entries[idx].Clone(), nil
}

// RestoreEntry inserts the entry under its own id.
func (s *JSONStore) RestoreEntry(ctx context.Context, entry models.Entry) (models.Entry, error) {
	if err := models.ValidateEntry(entry); err != nil {
		return models.Entry{}, validationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.document()
	if err != nil {
		return models.Entry{}, err
	}
	if indexOf(doc.Entries, entry.ID) >= 0 {
		return models.Entry{}, conflictError(entry.ID)
	}

	next := doc.clone()
	restored := entry.Normalize()
	next.Entries = append(next.Entries, restored)
	if restored.ID >= next.NextID {
		if next.NextID, err = followingID(restored.ID); err != nil {
			return models.Entry{}, err
		}
	}
	if err := s.commit(next); err != nil {
		return models.Entry{}, err
	}
	return restored.Clone(), nil
}

// GetExportObject returns the requested entries as drafts.
func (s *JSONStore) GetExportObject(ctx context.Context, ids []uint32) (models.EntriesDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.document()
	if err != nil {
		return models.EntriesDTO{}, err
	}
	return exportObject(doc.Entries, ids), nil
}

// ImportEntries appends every draft with a fresh id in a single write.
func (s *JSONStore) ImportEntries(ctx context.Context, dto models.EntriesDTO) error {
	if err := validateDrafts(dto.Entries); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.document()
	if err != nil {
		return err
	}

	next := doc.clone()
	for _, d := range dto.Entries {
		id, err := nextID(next.NextID, next.Entries)
		if err != nil {
			return err
		}
		if next.NextID, err = followingID(id); err != nil {
			return err
		}
		next.Entries = append(next.Entries, d.WithID(id))
	}
	if err := s.commit(next); err != nil {
		return err
	}
	s.logger.Info("entries imported", zap.Int("count", len(dto.Entries)))
	return nil
}

// Close releases any resources held by the store.
func (s *JSONStore) Close() error {
	return nil
}

// document returns the cached document, reading it on first use.
func (s *JSONStore) document() (*jsonDocument, error) {
	if s.doc != nil {
		return s.doc, nil
	}
	doc, err := s.readDocument()
	if err != nil {
		return nil, err
	}
	s.doc = doc
	return doc, nil
}

func (s *JSONStore) readDocument() (*jsonDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &jsonDocument{Version: jsonDocumentVersion, Entries: []models.Entry{}}, nil
		}
		return nil, dataError("read entries file", err)
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, dataError("parse entries file", err)
	}
	if doc.Version != jsonDocumentVersion {
		return nil, fmt.Errorf("%w: unsupported entries file version %d", ErrData, doc.Version)
	}
	for i := range doc.Entries {
		doc.Entries[i] = doc.Entries[i].Normalize()
	}
	// A hand-edited file may hold the largest id; adding then fails, reading does not.
	if next, err := nextID(doc.NextID, doc.Entries); err == nil {
		doc.NextID = next
	}
	return &doc, nil
}

// commit writes next to disk and only then makes it the cached document.
func (s *JSONStore) commit(next *jsonDocument) error {
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return dataError("encode entries file", err)
	}
	if err := AtomicWrite(s.path, data); err != nil {
		s.logger.Warn("entries file write failed", zap.Error(err))
		return dataError("write entries file", err)
	}
	s.doc = next
	return nil
}

func (d *jsonDocument) clone() *jsonDocument {
	return &jsonDocument{
		Version: d.Version,
		NextID:  d.NextID,
		Entries: cloneEntries(d.Entries),
	}
}

func cloneEntries(entries []models.Entry) []models.Entry {
	out := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Clone())
	}
	return out
}

func indexOf(entries []models.Entry, id uint32) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
