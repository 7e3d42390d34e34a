// ABOUTME: File helpers for the document and per-entry backends.
// ABOUTME: Atomic writes, YAML frontmatter rendering/parsing, and timestamp formatting.
package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---"

// timeLayout keeps nanoseconds so stored dates round-trip exactly.
const timeLayout = time.RFC3339Nano

// FormatTime renders a timestamp for frontmatter.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses a frontmatter timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// AtomicWrite writes data to a temp file in the target directory and renames it over path.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// RenderFrontmatter marshals fm as YAML between --- delimiters followed by body verbatim.
func RenderFrontmatter(fm any, body string) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(frontmatterDelim + "\n")
	sb.Write(buf.Bytes())
	sb.WriteString(frontmatterDelim + "\n")
	sb.WriteString(body)
	return sb.String(), nil
}

// ParseFrontmatter splits a document into its YAML header and body. The body is returned
// byte-for-byte as written by RenderFrontmatter. A document without a header yields "".
func ParseFrontmatter(content string) (yamlStr, body string) {
	if !strings.HasPrefix(content, frontmatterDelim+"\n") {
		return "", content
	}
	rest := content[len(frontmatterDelim)+1:]

	closing := "\n" + frontmatterDelim + "\n"
	idx := strings.Index(rest, closing)
	if idx < 0 {
		if strings.HasPrefix(rest, frontmatterDelim+"\n") {
			return "", rest[len(frontmatterDelim)+1:]
		}
		return "", content
	}
	return rest[:idx+1], rest[idx+len(closing):]
}
