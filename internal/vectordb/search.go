package vectordb

import (
	"fmt"
	"strings"
)

// Location renders a match's source, with the page when it has one.
func (m Match) Location() string {
	if m.Page > 0 {
		return fmt.Sprintf("%s (page %d)", m.Source, m.Page)
	}
	return m.Source
}

// FormatResults renders matches as human-readable text.
func FormatResults(matches []Match) string {
	if len(matches) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n\n", len(matches)))

	for i, m := range matches {
		sb.WriteString(fmt.Sprintf("--- Result %d (score: %.4f) ---\n", i+1, m.Score))
		if m.Source != "" {
			sb.WriteString(fmt.Sprintf("Source: %s\n", m.Location()))
		}
		if m.Title != "" {
			sb.WriteString(fmt.Sprintf("Title: %s\n", m.Title))
		}
		sb.WriteString("\n")
		sb.WriteString(m.Text)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
