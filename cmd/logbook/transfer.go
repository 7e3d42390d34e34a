// ABOUTME: CLI commands for moving entries in and out of the journal.
// ABOUTME: Export writes a versioned JSON document; import adds its entries with fresh ids.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/2389-research/logbook/internal/models"
	"github.com/2389-research/logbook/internal/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export [ids...]",
	Short: "Export entries as JSON",
	Long:  "Export the given entries, or every entry when no ids are given, as a versioned JSON document.",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import entries from an export file",
	Long:  "Add every entry of an export document as a new entry. Use - to read standard input.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var exportOutput string

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to this file instead of standard output")
}

func runExport(cmd *cobra.Command, args []string) error {
	ids := make([]uint32, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		if _, ok := globalApp.Entry(id); !ok {
			return fmt.Errorf("entry %d not found", id)
		}
		ids = append(ids, id)
	}

	dto, err := globalApp.ExportEntries(cmd.Context(), ids)
	if err != nil {
		return fmt.Errorf("failed to export entries: %w", err)
	}
	data, err := json.MarshalIndent(dto, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	data = append(data, '\n')

	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := storage.AtomicWrite(exportOutput, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d entries to %s\n", len(dto.Entries), exportOutput)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		promptIfTerminal(cmd, "the export document")
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read import: %w", err)
	}

	var dto models.EntriesDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return fmt.Errorf("failed to parse import: %w", err)
	}

	before := globalApp.Count()
	if err := globalApp.ImportEntries(cmd.Context(), dto); err != nil {
		return fmt.Errorf("failed to import entries: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries.\n", globalApp.Count()-before)
	return nil
}
