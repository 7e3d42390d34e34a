// ABOUTME: Reversible change records kept on the undo and redo stacks.
// ABOUTME: Each change owns copies of the state needed to reverse it.
package history

import (
	"fmt"
	"time"

	"github.com/2389-research/logbook/internal/models"
)

// Kind identifies the mutation a Change reverses.
type Kind int

const (
	// KindAddEntry reverses by removing the entry with EntryID.
	KindAddEntry Kind = iota
	// KindRemoveEntry reverses by re-inserting Entry under its original id.
	KindRemoveEntry
	// KindChangeAttributes reverses by writing Attributes back.
	KindChangeAttributes
	// KindChangeContent reverses by writing Content back.
	KindChangeContent
)

func (k Kind) String() string {
	switch k {
	case KindAddEntry:
		return "add_entry"
	case KindRemoveEntry:
		return "remove_entry"
	case KindChangeAttributes:
		return "change_attributes"
	case KindChangeContent:
		return "change_content"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Attributes are the entry fields covered by an attribute edit. Content is excluded.
type Attributes struct {
	Title    string
	Date     time.Time
	Tags     []string
	Priority *uint32
}

// AttributesOf copies the attribute fields out of e.
func AttributesOf(e models.Entry) Attributes {
	return Attributes{
		Title:    e.Title,
		Date:     e.Date,
		Tags:     append([]string(nil), e.Tags...),
		Priority: clonePriority(e.Priority),
	}.normalize()
}

// ApplyTo returns a copy of e carrying these attribute values.
func (a Attributes) ApplyTo(e models.Entry) models.Entry {
	out := e.Clone()
	out.Title = a.Title
	out.Date = a.Date
	out.Tags = append([]string(nil), a.Tags...)
	out.Priority = clonePriority(a.Priority)
	return out.Normalize()
}

// Equal reports whether both attribute sets hold the same values.
func (a Attributes) Equal(b Attributes) bool {
	if a.Title != b.Title || !a.Date.Equal(b.Date) || !models.EqualPriority(a.Priority, b.Priority) {
		return false
	}
	if len(a.Tags) != len(b.Tags) {
		return false
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return false
		}
	}
	return true
}

func (a Attributes) normalize() Attributes {
	a.Date = models.NormalizeDate(a.Date)
	a.Tags = models.NormalizeTags(a.Tags)
	return a
}

// Change is one reversible mutation. Only the fields relevant to Kind are set.
type Change struct {
	Kind       Kind
	EntryID    uint32
	Entry      models.Entry
	Attributes Attributes
	Content    string
}

// AddEntry records that the entry with id was created.
func AddEntry(id uint32) Change {
	return Change{Kind: KindAddEntry, EntryID: id}
}

// RemoveEntry records a removal together with a full snapshot of the removed entry.
func RemoveEntry(entry models.Entry) Change {
	return Change{Kind: KindRemoveEntry, EntryID: entry.ID, Entry: entry.Clone()}
}

// ChangeAttributes records the attribute values an edit replaced.
func ChangeAttributes(id uint32, prior Attributes) Change {
	prior.Tags = append([]string(nil), prior.Tags...)
	prior.Priority = clonePriority(prior.Priority)
	return Change{Kind: KindChangeAttributes, EntryID: id, Attributes: prior.normalize()}
}

// ChangeContent records the content an edit replaced.
func ChangeContent(id uint32, prior string) Change {
	return Change{Kind: KindChangeContent, EntryID: id, Content: prior}
}

// Clone deep-copies the change.
func (c Change) Clone() Change {
	out := c
	out.Entry = c.Entry.Clone()
	if c.Attributes.Tags != nil {
		out.Attributes.Tags = append(make([]string, 0, len(c.Attributes.Tags)), c.Attributes.Tags...)
	}
	out.Attributes.Priority = clonePriority(c.Attributes.Priority)
	return out
}

func clonePriority(p *uint32) *uint32 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
