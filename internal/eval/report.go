package eval

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#45475A")).
			Padding(0, 1)
)

// Render formats summaries for the terminal.
func Render(summaries []Summary) string {
	var blocks []string
	for _, s := range summaries {
		blocks = append(blocks, renderSummary(s))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func renderSummary(s Summary) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("=== %s RESULTS (k=%d) ===", strings.ToUpper(string(s.Mode)), s.K)))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%-9s %-9s %-9s %-9s  %s", "precision", "recall", "ctx-prec", "ctx-rec", "question")))
	sb.WriteString("\n")

	for _, r := range s.Results {
		if r.Err != nil {
			sb.WriteString(errorStyle.Render(fmt.Sprintf("%-9s %-9s %-9s %-9s  %s: %v", "-", "-", "-", "-", r.Question, r.Err)))
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(fmt.Sprintf("%-9.3f %-9.3f %-9.3f %-9.3f  %s\n", r.Precision, r.Recall, r.ContextPrecision, r.ContextRecall, r.Question))
		if len(r.Sources) > 0 {
			sb.WriteString(mutedStyle.Render("          sources: " + strings.Join(r.Sources, ", ")))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%-9.3f %-9.3f %-9.3f %-9.3f  mean", s.Mean.Precision, s.Mean.Recall, s.Mean.ContextPrecision, s.Mean.ContextRecall)))
	if s.Failed > 0 {
		sb.WriteString(errorStyle.Render(fmt.Sprintf("  (%d failed)", s.Failed)))
	}
	return boxStyle.Render(sb.String())
}
