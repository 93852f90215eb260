// Package cli renders answers, conversations and history for the kiku CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/hyperjump/kiku/internal/models"
	"github.com/hyperjump/kiku/pkg/utils"
)

// OutputFormat is the format for answer output.
type OutputFormat string

const (
	// OutputText is the answer as plain text (default).
	OutputText OutputFormat = "text"
	// OutputMarkdown renders the answer as styled markdown for a terminal.
	OutputMarkdown OutputFormat = "markdown"
	// OutputJSON is the canonical {text, sources} JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat returns the format named s.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputMarkdown, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, markdown, or json", s)
}

// Writer writes answers in one format. Markdown falls back to plain text
// when the renderer cannot be built or fails.
type Writer struct {
	format      OutputFormat
	showSources bool
	renderer    *glamour.TermRenderer
}

// NewWriter creates a writer. width is the wrap width for markdown; values below 20 use 80.
func NewWriter(format OutputFormat, showSources bool, width int) *Writer {
	w := &Writer{format: format, showSources: showSources}
	if format == OutputMarkdown {
		if width < 20 {
			width = 80
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width-4),
		)
		if err == nil {
			w.renderer = renderer
		}
	}
	return w
}

// WriteAnswer writes result to out.
func (w *Writer) WriteAnswer(out io.Writer, result *models.SearchResult) error {
	if w.format == OutputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	text := result.Text
	if w.renderer != nil {
		if rendered, err := w.renderer.Render(text); err == nil {
			text = rendered
		}
	}
	fmt.Fprintln(out, strings.TrimRight(text, "\n"))
	if w.showSources {
		WriteSources(out, result.Sources)
	}
	return nil
}

// WriteSources lists sources, one per line, numbered from 1.
func WriteSources(out io.Writer, sources []models.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(out, "\nSources:")
	for i, s := range sources {
		line := fmt.Sprintf("  [%d] %s", i+1, sourceLabel(s))
		if s.URL != "" {
			line += " <" + s.URL + ">"
		}
		fmt.Fprintln(out, line)
		if s.Snippet != "" {
			fmt.Fprintf(out, "      %s\n", utils.TruncateRunes(s.Snippet, 120))
		}
	}
}

func sourceLabel(s models.Source) string {
	if s.Title != "" {
		return s.Title
	}
	if s.URL != "" {
		return s.URL
	}
	return "(untitled)"
}

// WriteConversations lists conversations numbered from 1, marking the active one.
func WriteConversations(out io.Writer, convs []models.Conversation, activeID string) {
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations yet.")
		return
	}
	for i, c := range convs {
		marker := " "
		if c.ID == activeID {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %2d. %s (%d messages, %s)\n",
			marker, i+1, c.Title, c.MessageCount, c.Timestamp.Format("2006-01-02 15:04"))
	}
}

// WriteHistory lists saved history entries in the given format.
func WriteHistory(out io.Writer, entries []*models.HistoryEntry, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No saved searches.")
		return nil
	}
	for _, e := range entries {
		writeHistoryEntry(out, e, 0)
	}
	return nil
}

// WriteHistoryResults lists full-text history matches in the given format.
func WriteHistoryResults(out io.Writer, results []*models.HistorySearchResult, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No matching searches.")
		return nil
	}
	for _, r := range results {
		writeHistoryEntry(out, r.Entry, r.Score)
	}
	return nil
}

func writeHistoryEntry(out io.Writer, e *models.HistoryEntry, score float64) {
	fmt.Fprintf(out, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(out, "%s  %s", e.CreatedAt.Format("2006-01-02 15:04"), e.ID)
	if score > 0 {
		fmt.Fprintf(out, "  score %.4f", score)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Q: %s\n", e.Query)
	fmt.Fprintf(out, "A: %s\n", TruncateWords(e.Answer, 40))
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
