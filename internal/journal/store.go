// ABOUTME: In-memory ordered collection of entries owned by the application core.
// ABOUTME: Keeps entries sorted newest first with ties broken by ascending id.
package journal

import (
	"sort"

	"github.com/2389-research/logbook/internal/models"
	"github.com/2389-research/logbook/internal/storage"
)

// entryStore is the authoritative read model. Entries handed in and out are copies.
type entryStore struct {
	entries []models.Entry
}

func (s *entryStore) replace(entries []models.Entry) {
	s.entries = make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		s.entries = append(s.entries, e.Normalize())
	}
	storage.SortEntries(s.entries)
}

func (s *entryStore) insert(e models.Entry) {
	s.entries = append(s.entries, e.Clone())
	storage.SortEntries(s.entries)
}

// remove drops the entry with id and reports whether it existed.
func (s *entryStore) remove(id uint32) bool {
	idx := s.index(id)
	if idx < 0 {
		return false
	}
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	return true
}

// update replaces the stored entry with the same id.
func (s *entryStore) update(e models.Entry) bool {
	idx := s.index(e.ID)
	if idx < 0 {
		return false
	}
	s.entries[idx] = e.Clone()
	storage.SortEntries(s.entries)
	return true
}

func (s *entryStore) get(id uint32) (models.Entry, bool) {
	idx := s.index(id)
	if idx < 0 {
		return models.Entry{}, false
	}
	return s.entries[idx].Clone(), true
}

func (s *entryStore) index(id uint32) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *entryStore) first() (models.Entry, bool) {
	if len(s.entries) == 0 {
		return models.Entry{}, false
	}
	return s.entries[0].Clone(), true
}

func (s *entryStore) all() []models.Entry {
	out := make([]models.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	return out
}

func (s *entryStore) ids() []uint32 {
	ids := make([]uint32, 0, len(s.entries))
	for _, e := range s.entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func (s *entryStore) count() int {
	return len(s.entries)
}

// tags returns every distinct tag, sorted.
func (s *entryStore) tags() []string {
	seen := make(map[string]struct{})
	for _, e := range s.entries {
		for _, t := range e.Tags {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
