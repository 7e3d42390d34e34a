// ABOUTME: Plain-text rendering of entries shared by the CLI commands and the shell.
// ABOUTME: Also parses entry ids typed by the user.
package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/2389-research/logbook/internal/models"
)

const dateLayout = "2006-01-02 15:04"

func writeSummary(w io.Writer, e models.Entry) {
	line := fmt.Sprintf("[%d] %s  %s", e.ID, e.Date.Local().Format(dateLayout), e.Title)
	if len(e.Tags) > 0 {
		line += "  #" + strings.Join(e.Tags, " #")
	}
	if e.Priority != nil {
		line += fmt.Sprintf("  (prio %d)", *e.Priority)
	}
	_, _ = fmt.Fprintln(w, line)
}

func writeEntry(w io.Writer, e models.Entry) {
	_, _ = fmt.Fprintf(w, "ID:       %d\n", e.ID)
	_, _ = fmt.Fprintf(w, "Title:    %s\n", e.Title)
	_, _ = fmt.Fprintf(w, "Date:     %s\n", e.Date.Local().Format("2006-01-02 15:04:05"))
	if len(e.Tags) > 0 {
		_, _ = fmt.Fprintf(w, "Tags:     %s\n", strings.Join(e.Tags, ", "))
	}
	if e.Priority != nil {
		_, _ = fmt.Fprintf(w, "Priority: %d\n", *e.Priority)
	}
	if e.Content != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", strings.TrimRight(e.Content, "\n"))
	}
}

func parseID(s string) (uint32, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid entry id %q", s)
	}
	return uint32(id), nil
}
