// ABOUTME: Interactive shell over one journal session, so undo and redo span commands.
// ABOUTME: A read-eval-print loop that dispatches one line at a time to the journal core.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389-research/logbook/internal/filter"
	"github.com/2389-research/logbook/internal/journal"
	"github.com/2389-research/logbook/internal/models"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell",
	Long: `Start an interactive shell on the journal.

Unlike one-shot commands, the shell keeps a single session open, so every
change made in it can be undone and redone. Type "help" for the commands.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

const shellHelp = `Commands:
  list | l                 list entries passing the filter (* marks the selection)
  filter [or] <criteria>   set the filter (tag:x title:x content:x prio:n); no criteria clears it
  show [id]                show the selected or given entry
  select <id>              select an entry
  add <title>              add an entry and select it
  title <text>             rename the selected entry
  date <date>              change the date of the selected entry
  tags <a, b>              replace the tags of the selected entry
  prio <n|none>            set or clear the priority of the selected entry
  write <text>             replace the content of the selected entry (\n for newlines)
  delete [id]              delete the selected or given entry
  undo | u                 undo the last change
  redo | r                 redo the last undone change
  history                  show undo and redo depth
  alltags                  list every tag in use
  exit | quit              leave the shell`

func runShell(cmd *cobra.Command, args []string) error {
	sh := &shell{app: globalApp, out: cmd.OutOrStdout()}
	sh.run(cmd.Context(), bufio.NewScanner(cmd.InOrStdin()))
	return nil
}

type shell struct {
	app *journal.App
	out io.Writer
}

// run reads lines until EOF or exit. Command errors are printed and the loop carries on.
func (s *shell) run(ctx context.Context, scanner *bufio.Scanner) {
	for {
		s.printf("%s> ", s.prompt())
		if !scanner.Scan() {
			s.printf("\n")
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quit := s.exec(ctx, line); quit {
			return
		}
	}
}

func (s *shell) prompt() string {
	if current, ok := s.app.CurrentEntry(); ok {
		return fmt.Sprintf("logbook [%d]", current.ID)
	}
	return "logbook"
}

func (s *shell) exec(ctx context.Context, line string) bool {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	var err error
	switch name {
	case "help", "?":
		s.printf("%s\n", shellHelp)
	case "l", "list":
		s.list()
	case "filter":
		err = s.setFilter(rest)
	case "show":
		err = s.show(rest)
	case "select":
		err = s.selectEntry(rest)
	case "add":
		err = s.add(ctx, rest)
	case "title", "date", "tags", "prio":
		err = s.setAttribute(ctx, name, rest)
	case "write":
		err = s.app.UpdateCurrentEntryContent(ctx, strings.ReplaceAll(rest, `\n`, "\n"))
	case "delete":
		err = s.delete(ctx, rest)
	case "u", "undo":
		err = s.replay(ctx, "undo", s.app.Undo)
	case "r", "redo":
		err = s.replay(ctx, "redo", s.app.Redo)
	case "history":
		undo, redo := s.app.HistoryLen()
		s.printf("undo: %d, redo: %d\n", undo, redo)
	case "alltags":
		s.printf("%s\n", strings.Join(s.app.AllTags(), ", "))
	case "exit", "quit":
		s.printf("Bye!\n")
		return true
	default:
		s.printf("Unknown command: %s (type help)\n", name)
	}

	if err != nil {
		s.printf("error: %v\n", err)
	}
	return false
}

func (s *shell) list() {
	entries := s.app.ActiveEntries()
	if len(entries) == 0 {
		s.printf("No entries.\n")
		return
	}
	current, hasCurrent := s.app.CurrentEntry()
	for _, e := range entries {
		marker := "  "
		if hasCurrent && e.ID == current.ID {
			marker = "* "
		}
		s.printf("%s", marker)
		writeSummary(s.out, e)
	}
	if f := s.app.Filter(); !f.IsEmpty() {
		s.printf("filter: %s\n", f)
	}
}

func (s *shell) setFilter(rest string) error {
	fields := strings.Fields(rest)
	relation := filter.RelationAnd
	if len(fields) > 0 && fields[0] == "or" {
		relation = filter.RelationOr
		fields = fields[1:]
	}
	f, err := filter.Parse(relation, fields)
	if err != nil {
		return err
	}
	s.app.SetFilter(f)
	s.printf("filter: %s\n", f)
	return nil
}

func (s *shell) show(rest string) error {
	entry, err := s.target(rest)
	if err != nil {
		return err
	}
	writeEntry(s.out, entry)
	return nil
}

func (s *shell) selectEntry(rest string) error {
	id, err := parseID(rest)
	if err != nil {
		return err
	}
	return s.app.SelectEntry(id)
}

func (s *shell) add(ctx context.Context, title string) error {
	entry, err := s.app.AddDraft(ctx, models.NewEntryDraft(time.Time{}, title, "", nil, nil))
	if err != nil {
		return err
	}
	s.printf("Entry %d created.\n", entry.ID)
	return nil
}

func (s *shell) setAttribute(ctx context.Context, name, value string) error {
	current, ok := s.app.CurrentEntry()
	if !ok {
		return journal.ErrNoSelection
	}
	title, date, tags, priority := current.Title, current.Date, current.Tags, current.Priority

	switch name {
	case "title":
		title = value
	case "date":
		parsed, err := models.ParseDate(value)
		if err != nil {
			return err
		}
		if parsed.IsZero() {
			return fmt.Errorf("a date is required")
		}
		date = parsed
	case "tags":
		tags = models.ParseTags(value)
	case "prio":
		if value == "none" {
			priority = nil
			break
		}
		p, err := models.ParsePriority(value)
		if err != nil {
			return err
		}
		priority = p
	}

	return s.app.UpdateCurrentEntryAttributes(ctx, title, date, tags, priority)
}

func (s *shell) delete(ctx context.Context, rest string) error {
	entry, err := s.target(rest)
	if err != nil {
		return err
	}
	if err := s.app.DeleteEntry(ctx, entry.ID); err != nil {
		return err
	}
	s.printf("Entry %d deleted.\n", entry.ID)
	return nil
}

func (s *shell) replay(ctx context.Context, verb string, fn func(context.Context) (uint32, bool, error)) error {
	id, ok, err := fn(ctx)
	if err != nil {
		return err
	}
	if !ok {
		s.printf("Nothing to %s.\n", verb)
		return nil
	}
	s.printf("%s: entry %d\n", verb, id)
	return nil
}

// target resolves an optional id argument, defaulting to the selection.
func (s *shell) target(rest string) (models.Entry, error) {
	if rest == "" {
		current, ok := s.app.CurrentEntry()
		if !ok {
			return models.Entry{}, journal.ErrNoSelection
		}
		return current, nil
	}
	id, err := parseID(rest)
	if err != nil {
		return models.Entry{}, err
	}
	entry, ok := s.app.Entry(id)
	if !ok {
		return models.Entry{}, fmt.Errorf("entry %d not found", id)
	}
	return entry, nil
}

func (s *shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}
