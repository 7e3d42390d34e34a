// ABOUTME: CLI commands for journal entries.
// ABOUTME: Provides list, show, add, edit, write, delete, and tags subcommands.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/2389-research/logbook/internal/filter"
	"github.com/2389-research/logbook/internal/models"
	"github.com/2389-research/logbook/internal/tui"
)

var listCmd = &cobra.Command{
	Use:   "list [criteria...]",
	Short: "List entries",
	Long: `List entries, newest first.

Criteria are tag:<tag>, title:<text>, content:<text>, or prio:<n>. Text matching
is case-insensitive unless the query contains an uppercase letter. All criteria
must match unless --or is given.`,
	RunE: runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add an entry",
	Long:  "Create an entry from flags, or fill in a form with --interactive.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAdd,
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change the title, date, tags, or priority of an entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

var writeCmd = &cobra.Command{
	Use:   "write <id>",
	Short: "Replace the content of an entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runWrite,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List every tag in use",
	Args:  cobra.NoArgs,
	RunE:  runTags,
}

// Flags
var (
	listOr    bool
	listLimit int

	entryTitle         string
	entryDate          string
	entryTags          string
	entryPriority      string
	entryContent       string
	entryClearPriority bool
	entryInteractive   bool
	entryStdin         bool
)

func init() {
	rootCmd.AddCommand(listCmd, showCmd, addCmd, editCmd, writeCmd, deleteCmd, tagsCmd)

	listCmd.Flags().BoolVar(&listOr, "or", false, "Match entries satisfying any criterion")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of entries to show (0 for all)")

	addCmd.Flags().StringVar(&entryDate, "date", "", "Entry date (default now)")
	addCmd.Flags().StringVar(&entryTags, "tags", "", "Comma-separated tags")
	addCmd.Flags().StringVar(&entryPriority, "priority", "", "Entry priority")
	addCmd.Flags().StringVar(&entryContent, "content", "", "Entry content")
	addCmd.Flags().BoolVarP(&entryInteractive, "interactive", "i", false, "Fill in the entry with a form")

	editCmd.Flags().StringVar(&entryTitle, "title", "", "New title")
	editCmd.Flags().StringVar(&entryDate, "date", "", "New date")
	editCmd.Flags().StringVar(&entryTags, "tags", "", "Replacement comma-separated tags")
	editCmd.Flags().StringVar(&entryPriority, "priority", "", "New priority")
	editCmd.Flags().BoolVar(&entryClearPriority, "clear-priority", false, "Remove the priority")
	editCmd.Flags().BoolVarP(&entryInteractive, "interactive", "i", false, "Edit the entry with a form")
	editCmd.MarkFlagsMutuallyExclusive("priority", "clear-priority")

	writeCmd.Flags().StringVar(&entryContent, "content", "", "New content")
	writeCmd.Flags().BoolVar(&entryStdin, "stdin", false, "Read the new content from standard input")
	writeCmd.MarkFlagsOneRequired("content", "stdin")
	writeCmd.MarkFlagsMutuallyExclusive("content", "stdin")
}

func runList(cmd *cobra.Command, args []string) error {
	relation := filter.RelationAnd
	if listOr {
		relation = filter.RelationOr
	}
	f, err := filter.Parse(relation, args)
	if err != nil {
		return err
	}
	globalApp.SetFilter(f)

	entries := globalApp.ActiveEntries()
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No entries found.")
		return nil
	}

	shown := entries
	if listLimit > 0 && len(shown) > listLimit {
		shown = shown[:listLimit]
	}
	for _, e := range shown {
		writeSummary(cmd.OutOrStdout(), e)
	}
	if len(shown) < len(entries) {
		fmt.Fprintf(cmd.OutOrStdout(), "(%d more)\n", len(entries)-len(shown))
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	entry, ok := globalApp.Entry(id)
	if !ok {
		return fmt.Errorf("entry %d not found", id)
	}
	writeEntry(cmd.OutOrStdout(), entry)
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	draft, err := draftFromFlags(args)
	if err != nil {
		return err
	}

	if entryInteractive {
		model := tui.NewEntryFormModel("New entry", draft, globalApp.AddDraft)
		result, err := tea.NewProgram(model).Run()
		if err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		final := result.(tui.EntryFormModel)
		entry, ok := final.Saved()
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Entry discarded.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Entry %d created.\n", entry.ID)
		return nil
	}

	if strings.TrimSpace(draft.Title) == "" {
		return fmt.Errorf("a title is required (or use --interactive)")
	}
	entry, err := globalApp.AddDraft(cmd.Context(), draft)
	if err != nil {
		return fmt.Errorf("failed to add entry: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Entry %d created.\n", entry.ID)
	return nil
}

func draftFromFlags(args []string) (models.EntryDraft, error) {
	var title string
	if len(args) > 0 {
		title = args[0]
	}
	date, err := models.ParseDate(entryDate)
	if err != nil {
		return models.EntryDraft{}, err
	}
	priority, err := models.ParsePriority(entryPriority)
	if err != nil {
		return models.EntryDraft{}, err
	}
	return models.NewEntryDraft(date, title, entryContent, models.ParseTags(entryTags), priority), nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := globalApp.SelectEntry(id); err != nil {
		return err
	}
	current, _ := globalApp.CurrentEntry()

	if entryInteractive {
		return editInteractive(cmd, current)
	}

	flags := cmd.Flags()
	title, date, tags, priority := current.Title, current.Date, current.Tags, current.Priority
	if flags.Changed("title") {
		title = entryTitle
	}
	if flags.Changed("date") {
		if date, err = models.ParseDate(entryDate); err != nil {
			return err
		}
		if date.IsZero() {
			date = current.Date
		}
	}
	if flags.Changed("tags") {
		tags = models.ParseTags(entryTags)
	}
	if flags.Changed("priority") {
		if priority, err = models.ParsePriority(entryPriority); err != nil {
			return err
		}
	}
	if entryClearPriority {
		priority = nil
	}

	if err := globalApp.UpdateCurrentEntryAttributes(cmd.Context(), title, date, tags, priority); err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	updated, _ := globalApp.Entry(id)
	writeSummary(cmd.OutOrStdout(), updated)
	return nil
}

func editInteractive(cmd *cobra.Command, current models.Entry) error {
	model := tui.NewEntryFormModel(fmt.Sprintf("Edit entry %d", current.ID), current.Draft(), nil)
	result, err := tea.NewProgram(model).Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	final := result.(tui.EntryFormModel)
	if !final.ShouldSave() {
		fmt.Fprintln(cmd.OutOrStdout(), "Edit discarded.")
		return nil
	}

	draft, err := final.Result()
	if err != nil {
		return err
	}
	if draft.Date.IsZero() {
		draft.Date = current.Date
	}
	ctx := cmd.Context()
	if err := globalApp.UpdateCurrentEntryAttributes(ctx, draft.Title, draft.Date, draft.Tags, draft.Priority); err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if err := globalApp.UpdateCurrentEntryContent(ctx, draft.Content); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Entry %d updated.\n", current.ID)
	return nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := globalApp.SelectEntry(id); err != nil {
		return err
	}

	content := entryContent
	if entryStdin {
		promptIfTerminal(cmd, "the new content")
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		content = string(data)
	}

	if err := globalApp.UpdateCurrentEntryContent(cmd.Context(), content); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Content of entry %d saved.\n", id)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := globalApp.DeleteEntry(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Entry %d deleted.\n", id)
	return nil
}

func runTags(cmd *cobra.Command, args []string) error {
	tags := globalApp.AllTags()
	if len(tags) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tags.")
		return nil
	}
	for _, tag := range tags {
		fmt.Fprintln(cmd.OutOrStdout(), tag)
	}
	return nil
}

// promptIfTerminal tells an interactive user how to end stdin input.
func promptIfTerminal(cmd *cobra.Command, what string) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s, then press Ctrl+D:\n", what)
	}
}
