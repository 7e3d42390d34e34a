// ABOUTME: Stateless entry filtering by tag, title, content, and priority.
// ABOUTME: Text criteria use smart case; criteria combine with AND or OR.
package filter

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/2389-research/logbook/internal/models"
)

// Relation combines criteria results.
type Relation int

const (
	// RelationAnd requires every criterion to match.
	RelationAnd Relation = iota
	// RelationOr requires at least one criterion to match.
	RelationOr
)

func (r Relation) String() string {
	if r == RelationOr {
		return "or"
	}
	return "and"
}

// CriterionKind identifies what a criterion inspects.
type CriterionKind int

const (
	KindTag CriterionKind = iota
	KindTitle
	KindContent
	KindPriority
)

// Criterion is a single predicate over an entry.
type Criterion struct {
	Kind     CriterionKind
	Query    string
	Priority uint32
}

// Tag matches entries carrying exactly this tag.
func Tag(tag string) Criterion {
	return Criterion{Kind: KindTag, Query: tag}
}

// Title matches entries whose title contains query (smart case).
func Title(query string) Criterion {
	return Criterion{Kind: KindTitle, Query: query}
}

// Content matches entries whose content contains query (smart case).
func Content(query string) Criterion {
	return Criterion{Kind: KindContent, Query: query}
}

// Priority matches entries with exactly this priority.
func Priority(p uint32) Criterion {
	return Criterion{Kind: KindPriority, Priority: p}
}

// Matches reports whether e satisfies the criterion.
func (c Criterion) Matches(e models.Entry) bool {
	switch c.Kind {
	case KindTag:
		return e.HasTag(c.Query)
	case KindTitle:
		return containsSmartCase(e.Title, c.Query)
	case KindContent:
		return containsSmartCase(e.Content, c.Query)
	case KindPriority:
		return e.Priority != nil && *e.Priority == c.Priority
	default:
		return false
	}
}

func (c Criterion) String() string {
	switch c.Kind {
	case KindTag:
		return "tag:" + c.Query
	case KindTitle:
		return "title:" + c.Query
	case KindContent:
		return "content:" + c.Query
	case KindPriority:
		return "prio:" + strconv.FormatUint(uint64(c.Priority), 10)
	default:
		return "unknown"
	}
}

// Filter is a relation over a list of criteria. A nil or empty filter matches everything.
type Filter struct {
	Relation Relation
	Criteria []Criterion
}

// New builds a filter.
func New(relation Relation, criteria ...Criterion) *Filter {
	return &Filter{Relation: relation, Criteria: criteria}
}

// IsEmpty reports whether the filter has no criteria.
func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.Criteria) == 0
}

// CheckEntry evaluates every criterion against e and combines them per the relation.
func (f *Filter) CheckEntry(e models.Entry) bool {
	if f.IsEmpty() {
		return true
	}
	switch f.Relation {
	case RelationOr:
		for _, c := range f.Criteria {
			if c.Matches(e) {
				return true
			}
		}
		return false
	default:
		for _, c := range f.Criteria {
			if !c.Matches(e) {
				return false
			}
		}
		return true
	}
}

// Apply returns the matching entries in their original order.
func (f *Filter) Apply(entries []models.Entry) []models.Entry {
	out := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		if f.CheckEntry(e) {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns an independent copy.
func (f *Filter) Clone() *Filter {
	if f == nil {
		return nil
	}
	return &Filter{Relation: f.Relation, Criteria: append([]Criterion(nil), f.Criteria...)}
}

func (f *Filter) String() string {
	if f.IsEmpty() {
		return "(none)"
	}
	parts := make([]string, 0, len(f.Criteria))
	for _, c := range f.Criteria {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " "+strings.ToUpper(f.Relation.String())+" ")
}

// ParseCriterion parses "tag:x", "title:x", "content:x" or "prio:n".
func ParseCriterion(raw string) (Criterion, error) {
	key, value, ok := strings.Cut(raw, ":")
	if !ok {
		return Criterion{}, fmt.Errorf("invalid filter %q: expected key:value", raw)
	}
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "tag":
		return Tag(strings.TrimSpace(value)), nil
	case "title":
		return Title(value), nil
	case "content":
		return Content(value), nil
	case "prio", "priority":
		p, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
		if err != nil {
			return Criterion{}, fmt.Errorf("invalid priority %q: %w", value, err)
		}
		return Priority(uint32(p)), nil
	default:
		return Criterion{}, fmt.Errorf("unknown filter key %q", key)
	}
}

// Parse builds a filter from raw criteria strings. No criteria yields nil.
func Parse(relation Relation, raw []string) (*Filter, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	criteria := make([]Criterion, 0, len(raw))
	for _, r := range raw {
		c, err := ParseCriterion(r)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, c)
	}
	return New(relation, criteria...), nil
}

// containsSmartCase matches case-insensitively unless query has an uppercase rune.
func containsSmartCase(text, query string) bool {
	if hasUpper(query) {
		return strings.Contains(text, query)
	}
	return strings.Contains(strings.ToLower(text), query)
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
