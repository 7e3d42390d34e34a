// ABOUTME: Relational journal storage on SQLite through gorm.
// ABOUTME: Entries, tags, and the id watermark live in three tables; each mutation is one transaction.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/2389-research/logbook/internal/models"
)

const (
	sqlSchemaVersion = 2

	metaSchemaVersion = "schema_version"
	metaNextID        = "next_id"
)

// entryRecord is the row layout of the entries table.
type entryRecord struct {
	ID       uint32  `gorm:"column:id;primaryKey;autoIncrement:false"`
	Title    string  `gorm:"column:title;not null"`
	DateS    int64   `gorm:"column:date_s;not null;index:idx_entries_date,priority:1"`
	DateNano int32   `gorm:"column:date_nanos;not null;index:idx_entries_date,priority:2"`
	Content  string  `gorm:"column:content;type:text;not null;default:''"`
	Priority *uint32 `gorm:"column:priority"`
}

// TableName provides the explicit table binding for GORM.
func (entryRecord) TableName() string {
	return "entries"
}

// tagRecord is one (entry, tag) pair.
type tagRecord struct {
	EntryID uint32 `gorm:"column:entry_id;primaryKey;autoIncrement:false"`
	Tag     string `gorm:"column:tag;primaryKey;size:190"`
}

// TableName provides the explicit table binding for GORM.
func (tagRecord) TableName() string {
	return "entry_tags"
}

type metaRecord struct {
	Name  string `gorm:"column:name;primaryKey;size:64"`
	Value int64  `gorm:"column:value;not null"`
}

// TableName provides the explicit table binding for GORM.
func (metaRecord) TableName() string {
	return "journal_meta"
}

// SQLStore persists entries in a SQLite database.
type SQLStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLStore opens (or creates) the database at path and prepares the schema.
func NewSQLStore(path string, logger *zap.Logger) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(logger),
	})
	if err != nil {
		return nil, dataError("open database", err)
	}
	return newSQLStore(db, logger)
}

func newSQLStore(db *gorm.DB, logger *zap.Logger) (*SQLStore, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, dataError("access database handle", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&metaRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, dataError("migrate schema", err)
	}
	if err := checkSchemaVersion(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := db.AutoMigrate(&entryRecord{}, &tagRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, dataError("migrate schema", err)
	}

	logger.Debug("database initialized")
	return &SQLStore{db: db, logger: logger}, nil
}

// checkSchemaVersion stamps a fresh database and rejects one written by another layout.
func checkSchemaVersion(db *gorm.DB) error {
	record, found, err := readMeta(db, metaSchemaVersion)
	if err != nil {
		return dataError("read schema version", err)
	}
	if !found {
		if err := db.Create(&metaRecord{Name: metaSchemaVersion, Value: sqlSchemaVersion}).Error; err != nil {
			return dataError("write schema version", err)
		}
		return nil
	}
	if record.Value != sqlSchemaVersion {
		return fmt.Errorf("%w: unsupported schema version %d", ErrData, record.Value)
	}
	return nil
}

// LoadAllEntries reads every entry together with its tags.
func (s *SQLStore) LoadAllEntries(ctx context.Context) ([]models.Entry, error) {
	return loadEntries(s.db.WithContext(ctx))
}

// AddEntry inserts the entry row and its tags in one transaction.
func (s *SQLStore) AddEntry(ctx context.Context, draft models.EntryDraft) (models.Entry, error) {
	if err := models.ValidateDraft(draft); err != nil {
		return models.Entry{}, validationError(err)
	}

	var added models.Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := allocateSQLID(tx)
		if err != nil {
			return err
		}
		next, err := followingID(id)
		if err != nil {
			return err
		}
		added = draft.WithID(id)
		if err := insertEntry(tx, added); err != nil {
			return err
		}
		return writeWatermark(tx, next)
	})
	if err != nil {
		s.logger.Warn("add entry failed", zap.Error(err))
		return models.Entry{}, err
	}
	return added, nil
}

// RemoveEntry deletes the entry and its tags. Missing ids are ignored.
func (s *SQLStore) RemoveEntry(ctx context.Context, id uint32) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("entry_id = ?", id).Delete(&tagRecord{}).Error; err != nil {
			return dataError("delete tags", err)
		}
		if err := tx.Where("id = ?", id).Delete(&entryRecord{}).Error; err != nil {
			return dataError("delete entry", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("remove entry failed", zap.Uint32("entry_id", id), zap.Error(err))
	}
	return err
}

// UpdateEntry overwrites the entry row and replaces its tag set in one transaction.
func (s *SQLStore) UpdateEntry(ctx context.Context, entry models.Entry) (models.Entry, error) {
	if err := models.ValidateEntry(entry); err != nil {
		return models.Entry{}, validationError(err)
	}
	entry = entry.Normalize()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := entryExists(tx, entry.ID)
		if err != nil {
			return err
		}
		if !exists {
			return notFoundError(entry.ID)
		}

		dateS, dateNanos := splitDate(entry.Date)
		updates := map[string]any{
			"title":      entry.Title,
			"date_s":     dateS,
			"date_nanos": dateNanos,
			"content":    entry.Content,
			"priority":   priorityArg(entry.Priority),
		}
		if err := tx.Model(&entryRecord{}).Where("id = ?", entry.ID).Updates(updates).Error; err != nil {
			return dataError("update entry", err)
		}
		if err := tx.Where("entry_id = ?", entry.ID).Delete(&tagRecord{}).Error; err != nil {
			return dataError("delete tags", err)
		}
		return insertTags(tx, entry.ID, entry.Tags)
	})
	if err != nil {
		s.logger.Warn("update entry failed", zap.Uint32("entry_id", entry.ID), zap.Error(err))
		return models.Entry{}, err
	}
	return entry.Clone(), nil
}

// RestoreEntry inserts the entry under its original id.
func (s *SQLStore) RestoreEntry(ctx context.Context, entry models.Entry) (models.Entry, error) {
	if err := models.ValidateEntry(entry); err != nil {
		return models.Entry{}, validationError(err)
	}
	entry = entry.Normalize()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := entryExists(tx, entry.ID)
		if err != nil {
			return err
		}
		if exists {
			return conflictError(entry.ID)
		}
		watermark, err := readWatermark(tx)
		if err != nil {
			return err
		}
		if err := insertEntry(tx, entry); err != nil {
			return err
		}
		if entry.ID >= watermark {
			next, err := followingID(entry.ID)
			if err != nil {
				return err
			}
			return writeWatermark(tx, next)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("restore entry failed", zap.Uint32("entry_id", entry.ID), zap.Error(err))
		return models.Entry{}, err
	}
	return entry.Clone(), nil
}

// GetExportObject returns the requested entries as drafts.
func (s *SQLStore) GetExportObject(ctx context.Context, ids []uint32) (models.EntriesDTO, error) {
	if len(ids) == 0 {
		return models.NewEntriesDTO(nil), nil
	}
	entries, err := loadEntries(s.db.WithContext(ctx).Where("id IN ?", ids))
	if err != nil {
		return models.EntriesDTO{}, err
	}
	return exportObject(entries, ids), nil
}

// ImportEntries inserts every draft with a fresh id in one transaction.
func (s *SQLStore) ImportEntries(ctx context.Context, dto models.EntriesDTO) error {
	if err := validateDrafts(dto.Entries); err != nil {
		return err
	}
	if len(dto.Entries) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := allocateSQLID(tx)
		if err != nil {
			return err
		}
		for _, d := range dto.Entries {
			if err := insertEntry(tx, d.WithID(id)); err != nil {
				return err
			}
			if id, err = followingID(id); err != nil {
				return err
			}
		}
		return writeWatermark(tx, id)
	})
	if err != nil {
		s.logger.Warn("import failed", zap.Error(err))
		return err
	}
	s.logger.Info("entries imported", zap.Int("count", len(dto.Entries)))
	return nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// loadEntries runs the entry query in q and attaches tags read under the same context.
func loadEntries(q *gorm.DB) ([]models.Entry, error) {
	var records []entryRecord
	if err := q.Order("date_s DESC").Order("date_nanos DESC").Order("id ASC").Find(&records).Error; err != nil {
		return nil, dataError("query entries", err)
	}
	if len(records) == 0 {
		return []models.Entry{}, nil
	}

	ids := make([]uint32, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	var tags []tagRecord
	if err := q.Session(&gorm.Session{NewDB: true}).Where("entry_id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, dataError("query tags", err)
	}
	byEntry := make(map[uint32][]string, len(records))
	for _, t := range tags {
		byEntry[t.EntryID] = append(byEntry[t.EntryID], t.Tag)
	}

	entries := make([]models.Entry, 0, len(records))
	for _, r := range records {
		tagList := byEntry[r.ID]
		sort.Strings(tagList)
		entry := models.Entry{
			ID:       r.ID,
			Date:     time.Unix(r.DateS, int64(r.DateNano)).UTC(),
			Title:    r.Title,
			Content:  r.Content,
			Tags:     tagList,
			Priority: r.Priority,
		}
		entries = append(entries, entry.Normalize())
	}
	return entries, nil
}

func insertEntry(tx *gorm.DB, e models.Entry) error {
	dateS, dateNanos := splitDate(e.Date)
	err := tx.Exec(
		"INSERT INTO entries (id, title, date_s, date_nanos, content, priority) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, e.Title, dateS, dateNanos, e.Content, priorityArg(e.Priority),
	).Error
	if err != nil {
		return dataError("insert entry", err)
	}
	return insertTags(tx, e.ID, e.Tags)
}

func insertTags(tx *gorm.DB, id uint32, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	records := make([]tagRecord, 0, len(tags))
	for _, tag := range tags {
		records = append(records, tagRecord{EntryID: id, Tag: tag})
	}
	if err := tx.Create(&records).Error; err != nil {
		return dataError("insert tags", err)
	}
	return nil
}

// splitDate stores a date as whole Unix seconds plus nanoseconds, which covers every
// year time.Time can represent. UnixNano only covers 1678 to 2262.
func splitDate(t time.Time) (int64, int32) {
	return t.Unix(), int32(t.Nanosecond())
}

// priorityArg maps an optional priority to a SQL parameter.
func priorityArg(p *uint32) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func entryExists(tx *gorm.DB, id uint32) (bool, error) {
	var count int64
	if err := tx.Model(&entryRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, dataError("query entry", err)
	}
	return count > 0, nil
}

// allocateSQLID applies the id policy inside tx.
func allocateSQLID(tx *gorm.DB) (uint32, error) {
	watermark, err := readWatermark(tx)
	if err != nil {
		return 0, err
	}

	var maxID sql.NullInt64
	if err := tx.Model(&entryRecord{}).Select("MAX(id)").Row().Scan(&maxID); err != nil {
		return 0, dataError("query max id", err)
	}
	if maxID.Valid && uint32(maxID.Int64) >= watermark {
		return followingID(uint32(maxID.Int64))
	}
	return watermark, nil
}

func readWatermark(tx *gorm.DB) (uint32, error) {
	record, found, err := readMeta(tx, metaNextID)
	if err != nil {
		return 0, dataError("read id watermark", err)
	}
	if !found {
		return 0, nil
	}
	return uint32(record.Value), nil
}

func readMeta(tx *gorm.DB, name string) (metaRecord, bool, error) {
	var records []metaRecord
	if err := tx.Where("name = ?", name).Limit(1).Find(&records).Error; err != nil {
		return metaRecord{}, false, err
	}
	if len(records) == 0 {
		return metaRecord{}, false, nil
	}
	return records[0], true, nil
}

func writeWatermark(tx *gorm.DB, next uint32) error {
	record := metaRecord{Name: metaNextID, Value: int64(next)}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&record).Error
	if err != nil {
		return dataError("write id watermark", err)
	}
	return nil
}
