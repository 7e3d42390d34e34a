// ABOUTME: Core data models for journal entries, drafts, and the export transfer object.
// ABOUTME: Provides normalisation, cloning, and conversion helpers shared by every backend.
package models

import (
	"sort"
	"strings"
	"time"
)

// CurrentDTOVersion is the EntriesDTO version written by exports and accepted by imports.
const CurrentDTOVersion uint32 = 1

// Entry is one persisted journal record. ID is assigned by the storage backend and never
// changes afterwards.
type Entry struct {
	ID       uint32    `json:"id"`
	Date     time.Time `json:"date"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Tags     []string  `json:"tags"`
	Priority *uint32   `json:"priority,omitempty"`
}

// EntryDraft is an Entry without an ID, used for creation and import.
type EntryDraft struct {
	Date     time.Time `json:"date"`
	Title    string    `json:"title" validate:"required"`
	Content  string    `json:"content"`
	Tags     []string  `json:"tags"`
	Priority *uint32   `json:"priority,omitempty"`
}

// EntriesDTO is the versioned export/import payload. Drafts carry no ids.
type EntriesDTO struct {
	Version uint32       `json:"version"`
	Entries []EntryDraft `json:"entries"`
}

// NewEntryDraft creates a normalised draft.
func NewEntryDraft(date time.Time, title, content string, tags []string, priority *uint32) EntryDraft {
	d := EntryDraft{
		Date:     date,
		Title:    title,
		Content:  content,
		Tags:     tags,
		Priority: priority,
	}
	return d.Normalize()
}

// NewEntriesDTO wraps drafts in a DTO stamped with the current version.
func NewEntriesDTO(drafts []EntryDraft) EntriesDTO {
	if drafts == nil {
		drafts = []EntryDraft{}
	}
	return EntriesDTO{Version: CurrentDTOVersion, Entries: drafts}
}

// WithID turns the draft into an entry with the given id.
func (d EntryDraft) WithID(id uint32) Entry {
	n := d.Normalize()
	return Entry{
		ID:       id,
		Date:     n.Date,
		Title:    n.Title,
		Content:  n.Content,
		Tags:     n.Tags,
		Priority: n.Priority,
	}
}

// Normalize returns a copy with a UTC date and a sorted, de-duplicated tag set.
func (d EntryDraft) Normalize() EntryDraft {
	d.Date = NormalizeDate(d.Date)
	d.Tags = NormalizeTags(d.Tags)
	d.Priority = clonePriority(d.Priority)
	return d
}

// Draft strips the id.
func (e Entry) Draft() EntryDraft {
	return EntryDraft{
		Date:     e.Date,
		Title:    e.Title,
		Content:  e.Content,
		Tags:     append([]string(nil), e.Tags...),
		Priority: clonePriority(e.Priority),
	}
}

// Normalize returns a copy with a UTC date and a sorted, de-duplicated tag set.
func (e Entry) Normalize() Entry {
	e.Date = NormalizeDate(e.Date)
	e.Tags = NormalizeTags(e.Tags)
	e.Priority = clonePriority(e.Priority)
	return e
}

// Clone returns a deep copy that shares no slices or pointers with e.
func (e Entry) Clone() Entry {
	c := e
	if e.Tags != nil {
		c.Tags = append(make([]string, 0, len(e.Tags)), e.Tags...)
	}
	c.Priority = clonePriority(e.Priority)
	return c
}

// HasTag reports whether the entry carries the exact tag.
func (e Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NormalizeDate converts to UTC and drops the monotonic clock reading so that
// dates compare equal after a storage round trip.
func NormalizeDate(t time.Time) time.Time {
	return t.Round(0).UTC()
}

// NormalizeTags trims, drops empties, de-duplicates and sorts. The result is never nil.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// ParseTags splits a comma-separated tag list.
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	return NormalizeTags(strings.Split(raw, ","))
}

// PriorityPtr is a convenience for literal priorities.
func PriorityPtr(p uint32) *uint32 {
	return &p
}

// EqualPriority compares two optional priorities by value.
func EqualPriority(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func clonePriority(p *uint32) *uint32 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
