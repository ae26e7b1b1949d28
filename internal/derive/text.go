package derive

import (
	"fmt"
	"os"
	"strings"
)

const pageSeparator = "==============\nPage %d/%d\n==============\n\n"

// buildTextExtracted concatenates the entries' inline extracted text with
// page banners.
func (b *Builder) buildTextExtracted(outPath string, entries []Entry) error {
	var sb strings.Builder
	total := len(entries)
	for i, entry := range entries {
		fmt.Fprintf(&sb, pageSeparator, i+1, total)
		sb.WriteString(entry.Content)
		sb.WriteString("\n")
	}
	return writeText(outPath, sb.String())
}

// buildTextFiles is the same scheme reading each entry's stored file.
func (b *Builder) buildTextFiles(outPath string, entries []Entry) error {
	var sb strings.Builder
	total := len(entries)
	for i, entry := range entries {
		content, err := os.ReadFile(entry.Filepath)
		if err != nil {
			return fmt.Errorf("read page %d: %w", i+1, err)
		}
		fmt.Fprintf(&sb, pageSeparator, i+1, total)
		sb.Write(content)
		sb.WriteString("\n")
	}
	return writeText(outPath, sb.String())
}

// writeText trims the assembled output and normalizes every line ending
// to CRLF before writing.
func writeText(outPath, output string) error {
	output = strings.TrimSpace(output)
	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.ReplaceAll(output, "\n\r", "\n")
	output = strings.ReplaceAll(output, "\n", "\r\n")
	if output == "" {
		return fmt.Errorf("no text content to write")
	}
	return os.WriteFile(outPath, []byte(output), 0o644)
}
