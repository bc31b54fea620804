package surface

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownRenderer renders Explained as a Markdown table, e.g. for pasting
// into an issue or a review thread.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, e *Explained) error {
	_, err := io.WriteString(w, buildMarkdownSummary(e))
	return err
}

func buildMarkdownSummary(e *Explained) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## credscope: %s (score %.0f)\n\n", e.Target, e.Score)
	if e.Simulated {
		sb.WriteString("_Simulated result, not persisted._\n\n")
	}

	sb.WriteString("| Factor | Value | Contribution | Total |\n")
	sb.WriteString("|--------|------:|-------------:|------:|\n")
	fmt.Fprintf(&sb, "| Base score | | | %.0f |\n", e.Breakdown.Base)
	for _, step := range e.Breakdown.Steps {
		f := step.Factor
		if f.Failed {
			fmt.Fprintf(&sb, "| %s | :warning: failed | | %.2f |\n", f.Label, step.Total)
			continue
		}
		fmt.Fprintf(&sb, "| %s | %.2f | %s | %.2f |\n", f.Label, f.Value, signed(step.Delta), step.Total)
	}
	fmt.Fprintf(&sb, "| **Score** | | | **%.0f** |\n\n", e.Breakdown.Total)

	if e.Partial {
		sb.WriteString("### Failed signals\n\n")
		for _, name := range e.Errors {
			reason := ""
			if sr, ok := e.Signals[name]; ok && sr.Error != "" {
				reason = ": " + sr.Error
			}
			fmt.Fprintf(&sb, "- **%s**%s\n", name.Label(), reason)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
