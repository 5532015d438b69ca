// Package report renders run outcomes for people and for machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"keyword-crawler/internal/models"
)

const reasonWidth = 80

// WriteJSON writes the outcome as one indented JSON document.
func WriteJSON(w io.Writer, out models.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteNDJSON writes each item as one JSON line.
func WriteNDJSON[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary prints a human readable account of the run followed by a
// table of extraction failures, if any.
func WriteSummary(w io.Writer, out models.Outcome) error {
	var b strings.Builder
	switch out.Kind {
	case models.OutcomeFound:
		fmt.Fprintf(&b, "Keyword %q found at %s\n", out.Keyword, out.FoundURL)
		if out.Snippet != "" {
			fmt.Fprintf(&b, "\n%s\n", out.Snippet)
		}
		if len(out.Topics) > 0 {
			fmt.Fprintf(&b, "\nTopics: %s\n", strings.Join(out.Topics, ", "))
		}
	case models.OutcomeExhausted:
		fmt.Fprintf(&b, "Keyword %q not found after checking %d of %d URLs\n", out.Keyword, out.VisitedCount, out.TotalURLs)
	default:
		fmt.Fprintf(&b, "Run failed: %s\n", out.Error)
	}
	fmt.Fprintf(&b, "\nVisited %d/%d URLs, %d extraction failures\n", out.VisitedCount, out.TotalURLs, len(out.Failures))
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	if len(out.Failures) == 0 {
		return nil
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: reasonWidth},
	})
	t.AppendHeader(table.Row{"#", "URL", "Reason"})
	for i, f := range out.Failures {
		t.AppendRow(table.Row{i + 1, f.URL, f.Reason})
	}
	t.Render()
	return nil
}
