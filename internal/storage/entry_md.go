// ABOUTME: Markdown-based journal storage with one file per entry.
// ABOUTME: Stores entries as <id>.md with YAML frontmatter and keeps the id watermark in _meta.yaml.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/2389-research/logbook/internal/models"
)

const (
	entryFileExt = ".md"
	metaFileName = "_meta.yaml"
)

// EntryMDStore stores each journal entry as a markdown file in a single directory.
type EntryMDStore struct {
	root   string // directory holding <id>.md files
	logger *zap.Logger
	mu     sync.Mutex
}

// entryFrontmatter is the YAML frontmatter for entry files.
type entryFrontmatter struct {
	ID       uint32   `yaml:"id"`
	Date     string   `yaml:"date"`
	Title    string   `yaml:"title"`
	Tags     []string `yaml:"tags,omitempty"`
	Priority *uint32  `yaml:"priority,omitempty"`
}

// metaFile is the YAML structure for _meta.yaml.
type metaFile struct {
	NextID uint32 `yaml:"next_id"`
}

// NewEntryMDStore creates a store rooted at dir. The directory is created on first write.
func NewEntryMDStore(dir string, logger *zap.Logger) (*EntryMDStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("entries directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntryMDStore{root: dir, logger: logger}, nil
}

// LoadAllEntries parses every entry file in the root directory.
func (s *EntryMDStore) LoadAllEntries(ctx context.Context) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// AddEntry writes a new entry file and advances the watermark.
func (s *EntryMDStore) AddEntry(ctx context.Context, draft models.EntryDraft) (models.Entry, error) {
	if err := models.ValidateDraft(draft); err != nil {
		return models.Entry{}, validationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.allocateID()
	if err != nil {
		return models.Entry{}, err
	}
	watermark, err := followingID(id)
	if err != nil {
		return models.Entry{}, err
	}
	entry := draft.WithID(id)
	if err := s.insert([]models.Entry{entry}, watermark); err != nil {
		return models.Entry{}, err
	}
	return entry.Clone(), nil
}

// RemoveEntry deletes the entry file. Missing files are ignored.
func (s *EntryMDStore) RemoveEntry(ctx context.Context, id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.entryPath(id)); err != nil && !os.IsNotExist(err) {
		return dataError("remove entry file", err)
	}
	return nil
}

// UpdateEntry rewrites the file of an existing entry.
func (s *EntryMDStore) UpdateEntry(ctx context.Context, entry models.Entry) (models.Entry, error) {
	if err := models.ValidateEntry(entry); err != nil {
		return models.Entry{}, validationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.exists(entry.ID)
	if err != nil {
		return models.Entry{}, err
	}
	if !exists {
		return models.Entry{}, notFoundError(entry.ID)
	}

	entry = entry.Normalize()
	if err := s.writeEntry(entry); err != nil {
		return models.Entry{}, err
	}
	return entry.Clone(), nil
}

// RestoreEntry writes the entry under its original id.
func (s *EntryMDStore) RestoreEntry(ctx context.Context, entry models.Entry) (models.Entry, error) {
	if err := models.ValidateEntry(entry); err != nil {
		return models.Entry{}, validationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.exists(entry.ID)
	if err != nil {
		return models.Entry{}, err
	}
	if exists {
		return models.Entry{}, conflictError(entry.ID)
	}

	meta, err := s.readMeta()
	if err != nil {
		return models.Entry{}, err
	}
	watermark := meta.NextID
	if entry.ID >= watermark {
		if watermark, err = followingID(entry.ID); err != nil {
			return models.Entry{}, err
		}
	}

	entry = entry.Normalize()
	if err := s.insert([]models.Entry{entry}, watermark); err != nil {
		return models.Entry{}, err
	}
	return entry.Clone(), nil
}

// GetExportObject returns the requested entries as drafts.
func (s *EntryMDStore) GetExportObject(ctx context.Context, ids []uint32) (models.EntriesDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return models.EntriesDTO{}, err
	}
	return exportObject(entries, ids), nil
}

// ImportEntries writes every draft as a new entry file. Written files are removed again if
// any write fails.
func (s *EntryMDStore) ImportEntries(ctx context.Context, dto models.EntriesDTO) error {
	if err := validateDrafts(dto.Entries); err != nil {
		return err
	}
	if len(dto.Entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.allocateID()
	if err != nil {
		return err
	}
	entries := make([]models.Entry, 0, len(dto.Entries))
	for _, d := range dto.Entries {
		entries = append(entries, d.WithID(id))
		if id, err = followingID(id); err != nil {
			return err
		}
	}
	if err := s.insert(entries, id); err != nil {
		return err
	}
	s.logger.Info("entries imported", zap.Int("count", len(entries)))
	return nil
}

// Close releases any resources held by the store.
func (s *EntryMDStore) Close() error {
	return nil
}

// insert writes new entry files, then the watermark. On failure every file written by
// this call is removed.
func (s *EntryMDStore) insert(entries []models.Entry, watermark uint32) error {
	written := make([]uint32, 0, len(entries))
	rollback := func() {
		for _, id := range written {
			_ = os.Remove(s.entryPath(id))
		}
	}

	for _, e := range entries {
		if err := s.writeEntry(e); err != nil {
			rollback()
			return err
		}
		written = append(written, e.ID)
	}

	if err := s.writeMeta(metaFile{NextID: watermark}); err != nil {
		s.logger.Warn("watermark write failed, rolling back entry files", zap.Error(err))
		rollback()
		return err
	}
	return nil
}

// allocateID returns the next free id according to the watermark and existing files.
func (s *EntryMDStore) allocateID() (uint32, error) {
	meta, err := s.readMeta()
	if err != nil {
		return 0, err
	}
	ids, err := s.listIDs()
	if err != nil {
		return 0, err
	}
	next := meta.NextID
	for _, id := range ids {
		if id >= next {
			if next, err = followingID(id); err != nil {
				return 0, err
			}
		}
	}
	return next, nil
}

func (s *EntryMDStore) entryPath(id uint32) string {
	return filepath.Join(s.root, strconv.FormatUint(uint64(id), 10)+entryFileExt)
}

func (s *EntryMDStore) exists(id uint32) (bool, error) {
	_, err := os.Stat(s.entryPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, dataError("stat entry file", err)
}

// listIDs returns the ids encoded in entry file names.
func (s *EntryMDStore) listIDs() ([]uint32, error) {
	files, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, dataError("read entries directory", err)
	}

	var ids []uint32
	for _, file := range files {
		id, ok := parseEntryFileName(file)
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *EntryMDStore) readAll() ([]models.Entry, error) {
	ids, err := s.listIDs()
	if err != nil {
		return nil, err
	}

	entries := make([]models.Entry, 0, len(ids))
	for _, id := range ids {
		path := s.entryPath(id)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, dataError("read entry file", err)
		}
		entry, err := parseEntryFile(path, string(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrData, err)
		}
		if entry.ID != id {
			return nil, fmt.Errorf("%w: %s holds id %d", ErrData, path, entry.ID)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *EntryMDStore) writeEntry(entry models.Entry) error {
	fm := entryFrontmatter{
		ID:       entry.ID,
		Date:     FormatTime(entry.Date),
		Title:    entry.Title,
		Tags:     entry.Tags,
		Priority: entry.Priority,
	}

	content, err := RenderFrontmatter(fm, entry.Content)
	if err != nil {
		return dataError("render frontmatter", err)
	}
	if err := AtomicWrite(s.entryPath(entry.ID), []byte(content)); err != nil {
		return dataError("write entry", err)
	}
	return nil
}

func (s *EntryMDStore) readMeta() (metaFile, error) {
	data, err := os.ReadFile(filepath.Join(s.root, metaFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return metaFile{}, nil
		}
		return metaFile{}, dataError("read meta file", err)
	}
	var meta metaFile
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return metaFile{}, dataError("parse meta file", err)
	}
	return meta, nil
}

func (s *EntryMDStore) writeMeta(meta metaFile) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return dataError("encode meta file", err)
	}
	if err := AtomicWrite(filepath.Join(s.root, metaFileName), data); err != nil {
		return dataError("write meta file", err)
	}
	return nil
}

func parseEntryFileName(file os.DirEntry) (uint32, bool) {
	if file.IsDir() || !strings.HasSuffix(file.Name(), entryFileExt) {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimSuffix(file.Name(), entryFileExt), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

// parseEntryFile parses a markdown file into an Entry.
func parseEntryFile(path string, content string) (models.Entry, error) {
	yamlStr, body := ParseFrontmatter(content)
	if yamlStr == "" {
		return models.Entry{}, fmt.Errorf("no frontmatter found in %s", path)
	}

	var fm entryFrontmatter
	if err := yaml.Unmarshal([]byte(yamlStr), &fm); err != nil {
		return models.Entry{}, fmt.Errorf("failed to parse frontmatter in %s: %w", path, err)
	}
	if fm.Title == "" {
		return models.Entry{}, errors.New("missing title in " + path)
	}

	date, err := ParseTime(fm.Date)
	if err != nil {
		return models.Entry{}, fmt.Errorf("invalid date in %s: %w", path, err)
	}

	entry := models.Entry{
		ID:       fm.ID,
		Date:     date,
		Title:    fm.Title,
		Content:  body,
		Tags:     fm.Tags,
		Priority: fm.Priority,
	}
	return entry.Normalize(), nil
}
