// ABOUTME: MCP tool implementations for journal entry operations.
// ABOUTME: Registers list, read, add, update, write, delete, undo, redo, and export tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/2389-research/logbook/internal/filter"
	"github.com/2389-research/logbook/internal/models"
)

const defaultListLimit = 20

func (s *Server) registerEntryTools() {
	s.mcp.AddTool(&gomcp.Tool{
		Name:        "list_entries",
		Description: "List journal entries, newest first. Optional criteria narrow the list; text matching is case-insensitive unless the query has an uppercase letter.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"tag": {"type": "string", "description": "Only entries carrying this exact tag"},
				"title": {"type": "string", "description": "Only entries whose title contains this text"},
				"content": {"type": "string", "description": "Only entries whose content contains this text"},
				"priority": {"type": "number", "description": "Only entries with this priority"},
				"relation": {"type": "string", "enum": ["and", "or"], "description": "How criteria combine (default: and)"},
				"limit": {"type": "number", "description": "Maximum number of entries to return (default: 20)"}
			}
		}`),
	}, s.handleListEntries)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "read_entry",
		Description: "Read the full content of a journal entry by id.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"id": {"type": "number", "description": "Entry id"}
			},
			"required": ["id"]
		}`),
	}, s.handleReadEntry)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "add_entry",
		Description: "Create a journal entry. The date defaults to now.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"title": {"type": "string", "description": "Entry title"},
				"date": {"type": "string", "description": "RFC 3339 or YYYY-MM-DD[ HH:MM] in local time"},
				"tags": {"type": "array", "items": {"type": "string"}, "description": "Tags for the entry"},
				"priority": {"type": "number", "description": "Non-negative priority"},
				"content": {"type": "string", "description": "Entry body"}
			},
			"required": ["title"]
		}`),
	}, s.handleAddEntry)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "update_entry",
		Description: "Change the title, date, tags, or priority of an entry. Omitted fields keep their value.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"id": {"type": "number", "description": "Entry id"},
				"title": {"type": "string", "description": "New title"},
				"date": {"type": "string", "description": "New date"},
				"tags": {"type": "array", "items": {"type": "string"}, "description": "Replacement tag set"},
				"priority": {"type": "number", "description": "New priority"},
				"clear_priority": {"type": "boolean", "description": "Remove the priority"}
			},
			"required": ["id"]
		}`),
	}, s.handleUpdateEntry)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "write_content",
		Description: "Replace the content of an entry.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"id": {"type": "number", "description": "Entry id"},
				"content": {"type": "string", "description": "New entry body"}
			},
			"required": ["id", "content"]
		}`),
	}, s.handleWriteContent)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "delete_entry",
		Description: "Delete an entry. The deletion can be undone.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"id": {"type": "number", "description": "Entry id"}
			},
			"required": ["id"]
		}`),
	}, s.handleDeleteEntry)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "undo",
		Description: "Undo the most recent change made in this session.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	}, s.handleUndo)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "redo",
		Description: "Redo the most recently undone change.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	}, s.handleRedo)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "export_entries",
		Description: "Export entries as a versioned JSON document. Exports every entry when ids is omitted.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"ids": {"type": "array", "items": {"type": "number"}, "description": "Entry ids to export"}
			}
		}`),
	}, s.handleExportEntries)
}

func (s *Server) handleListEntries(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Tag      string  `json:"tag"`
		Title    string  `json:"title"`
		Content  string  `json:"content"`
		Priority *uint32 `json:"priority"`
		Relation string  `json:"relation"`
		Limit    int     `json:"limit"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	relation := filter.RelationAnd
	switch strings.ToLower(args.Relation) {
	case "", "and":
	case "or":
		relation = filter.RelationOr
	default:
		return toolError("relation must be \"and\" or \"or\""), nil
	}
	if args.Limit <= 0 {
		args.Limit = defaultListLimit
	}

	var criteria []filter.Criterion
	if args.Tag != "" {
		criteria = append(criteria, filter.Tag(args.Tag))
	}
	if args.Title != "" {
		criteria = append(criteria, filter.Title(args.Title))
	}
	if args.Content != "" {
		criteria = append(criteria, filter.Content(args.Content))
	}
	if args.Priority != nil {
		criteria = append(criteria, filter.Priority(*args.Priority))
	}

	s.mu.Lock()
	entries := filter.New(relation, criteria...).Apply(s.app.Entries())
	s.mu.Unlock()

	if len(entries) == 0 {
		return textResult("No matching entries found."), nil
	}

	total := len(entries)
	if len(entries) > args.Limit {
		entries = entries[:args.Limit]
	}

	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(summaryLine(e))
		sb.WriteString("\n")
	}
	if total > len(entries) {
		sb.WriteString(fmt.Sprintf("(%d more)\n", total-len(entries)))
	}
	return textResult(sb.String()), nil
}

func (s *Server) handleReadEntry(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		ID *uint32 `json:"id"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}
	if args.ID == nil {
		return toolError("id is required"), nil
	}

	s.mu.Lock()
	entry, ok := s.app.Entry(*args.ID)
	s.mu.Unlock()
	if !ok {
		return toolError("entry %d not found", *args.ID), nil
	}

	return textResult(fullEntry(entry)), nil
}

func (s *Server) handleAddEntry(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Title    string   `json:"title"`
		Date     string   `json:"date"`
		Tags     []string `json:"tags"`
		Priority *uint32  `json:"priority"`
		Content  string   `json:"content"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}
	if strings.TrimSpace(args.Title) == "" {
		return toolError("title is required"), nil
	}
	date, err := models.ParseDate(args.Date)
	if err != nil {
		return toolError("%v", err), nil
	}

	s.mu.Lock()
	entry, err := s.app.AddDraft(ctx, models.NewEntryDraft(date, args.Title, args.Content, args.Tags, args.Priority))
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("add_entry failed", zap.Error(err))
		return toolError("failed to add entry: %v", err), nil
	}

	return textResult(fmt.Sprintf("Entry created.\nID: %d\n%s", entry.ID, summaryLine(entry))), nil
}

func (s *Server) handleUpdateEntry(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		ID            *uint32   `json:"id"`
		Title         *string   `json:"title"`
		Date          *string   `json:"date"`
		Tags          *[]string `json:"tags"`
		Priority      *uint32   `json:"priority"`
		ClearPriority bool      `json:"clear_priority"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}
	if args.ID == nil {
		return toolError("id is required"), nil
	}
	if args.Priority != nil && args.ClearPriority {
		return toolError("priority and clear_priority are mutually exclusive"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.app.SelectEntry(*args.ID); err != nil {
		return toolError("%v", err), nil
	}
	current, _ := s.app.CurrentEntry()

	title, date, tags, priority := current.Title, current.Date, current.Tags, current.Priority
	if args.Title != nil {
		title = *args.Title
	}
	if args.Date != nil {
		parsed, err := models.ParseDate(*args.Date)
		if err != nil {
			return toolError("%v", err), nil
		}
		if !parsed.IsZero() {
			date = parsed
		}
	}
	if args.Tags != nil {
		tags = *args.Tags
	}
	if args.Priority != nil {
		priority = args.Priority
	}
	if args.ClearPriority {
		priority = nil
	}

	if err := s.app.UpdateCurrentEntryAttributes(ctx, title, date, tags, priority); err != nil {
		s.logger.Warn("update_entry failed", zap.Uint32("entry_id", *args.ID), zap.Error(err))
		return toolError("failed to update entry: %v", err), nil
	}

	updated, _ := s.app.Entry(*args.ID)
	return textResult("Entry updated.\n" + summaryLine(updated)), nil
}

func (s *Server) handleWriteContent(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		ID      *uint32 `json:"id"`
		Content *string `json:"content"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}
	if args.ID == nil || args.Content == nil {
		return toolError("id and content are required"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.app.SelectEntry(*args.ID); err != nil {
		return toolError("%v", err), nil
	}
	if err := s.app.UpdateCurrentEntryContent(ctx, *args.Content); err != nil {
		s.logger.Warn("write_content failed", zap.Uint32("entry_id", *args.ID), zap.Error(err))
		return toolError("failed to write content: %v", err), nil
	}

	return textResult(fmt.Sprintf("Content of entry %d saved.", *args.ID)), nil
}

func (s *Server) handleDeleteEntry(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		ID *uint32 `json:"id"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}
	if args.ID == nil {
		return toolError("id is required"), nil
	}

	s.mu.Lock()
	err := s.app.DeleteEntry(ctx, *args.ID)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("delete_entry failed", zap.Uint32("entry_id", *args.ID), zap.Error(err))
		return toolError("failed to delete entry: %v", err), nil
	}

	return textResult(fmt.Sprintf("Entry %d deleted.", *args.ID)), nil
}

func (s *Server) handleUndo(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	s.mu.Lock()
	id, ok, err := s.app.Undo(ctx)
	s.mu.Unlock()
	if err != nil {
		return toolError("undo failed: %v", err), nil
	}
	if !ok {
		return textResult("Nothing to undo."), nil
	}
	return textResult(fmt.Sprintf("Undid change to entry %d.", id)), nil
}

func (s *Server) handleRedo(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	s.mu.Lock()
	id, ok, err := s.app.Redo(ctx)
	s.mu.Unlock()
	if err != nil {
		return toolError("redo failed: %v", err), nil
	}
	if !ok {
		return textResult("Nothing to redo."), nil
	}
	return textResult(fmt.Sprintf("Redid change to entry %d.", id)), nil
}

func (s *Server) handleExportEntries(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		IDs []uint32 `json:"ids"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	s.mu.Lock()
	dto, err := s.app.ExportEntries(ctx, args.IDs)
	s.mu.Unlock()
	if err != nil {
		return toolError("failed to export entries: %v", err), nil
	}

	data, err := json.MarshalIndent(dto, "", "  ")
	if err != nil {
		return toolError("failed to encode export: %v", err), nil
	}
	return textResult(string(data)), nil
}

// unmarshalArgs decodes tool arguments. Tools without required fields may be called
// with no arguments at all.
func unmarshalArgs(req *gomcp.CallToolRequest, v any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, v)
}

func summaryLine(e models.Entry) string {
	line := fmt.Sprintf("- [%d] %s %s", e.ID, e.Date.Local().Format("2006-01-02 15:04"), e.Title)
	if len(e.Tags) > 0 {
		line += " #" + strings.Join(e.Tags, " #")
	}
	if e.Priority != nil {
		line += fmt.Sprintf(" (prio %d)", *e.Priority)
	}
	return line
}

func fullEntry(e models.Entry) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID: %d\n", e.ID))
	sb.WriteString(fmt.Sprintf("Title: %s\n", e.Title))
	sb.WriteString(fmt.Sprintf("Date: %s\n", e.Date.Local().Format("2006-01-02 15:04:05")))
	if len(e.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("Tags: %s\n", strings.Join(e.Tags, ", ")))
	}
	if e.Priority != nil {
		sb.WriteString(fmt.Sprintf("Priority: %d\n", *e.Priority))
	}
	sb.WriteString("\n")
	sb.WriteString(e.Content)
	return sb.String()
}

func textResult(text string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: text}},
	}
}

// toolError creates an error result for MCP tool responses.
func toolError(format string, args ...interface{}) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
