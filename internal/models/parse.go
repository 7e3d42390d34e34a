// ABOUTME: Parsing of user-typed dates and priorities for the CLI and entry form.
// ABOUTME: Accepts RFC 3339 plus a few short local-time layouts.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// localDateLayouts are tried in order after RFC 3339 and are read in local time.
var localDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate parses s. An empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NormalizeDate(t), nil
	}
	for _, layout := range localDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return NormalizeDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC 3339", s)
}

// ParsePriority parses a non-negative integer. An empty string yields nil.
func ParsePriority(s string) (*uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	p, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid priority %q: must be a non-negative integer", s)
	}
	return PriorityPtr(uint32(p)), nil
}
