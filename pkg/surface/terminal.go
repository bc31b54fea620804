package surface

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/credscope/credscope/pkg/scoring"
)

// TerminalRenderer renders Explained as colored terminal output.
type TerminalRenderer struct{}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func deltaColor(d float64) string {
	switch {
	case d > 0:
		return colorGreen
	case d < 0:
		return colorRed
	default:
		return colorDim
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func signed(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+%.2f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func (r *TerminalRenderer) Render(w io.Writer, e *Explained) error {
	status := ""
	switch {
	case e.Simulated && e.Partial:
		status = " (simulated, partial)"
	case e.Simulated:
		status = " (simulated)"
	case e.Partial:
		status = " (partial)"
	}
	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("credscope: %s  Score %.0f%s", e.Target, e.Score, status)))

	fmt.Fprintf(w, "  %-24s %10s %13s %10s\n", "Factor", "Value", "Contribution", "Total")
	fmt.Fprintf(w, "  %-24s %10s %13s %10.0f\n", "Base score", "", "", e.Breakdown.Base)

	for _, step := range e.Breakdown.Steps {
		f := step.Factor
		if f.Failed {
			reason := "failed"
			if sr, ok := e.Signals[f.Name]; ok && sr.Error != "" {
				reason = "failed: " + sr.Error
			}
			fmt.Fprintf(w, "  %-24s %s\n", f.Label, colored(reason, colorYellow))
			continue
		}
		contribution := fmt.Sprintf("%13s", signed(step.Delta))
		fmt.Fprintf(w, "  %-24s %10.2f %s %10.2f\n",
			f.Label, f.Value, colored(contribution, deltaColor(step.Delta)), step.Total)
	}
	fmt.Fprintf(w, "  %s\n\n", dim(strings.Repeat("-", 60)))
	fmt.Fprintf(w, "  %-24s %10s %13s %10s\n\n", "Score", "", "", bold(fmt.Sprintf("%.0f", e.Breakdown.Total)))

	if e.Partial {
		names := make([]string, len(e.Errors))
		for i, n := range e.Errors {
			names[i] = n.Label()
		}
		fmt.Fprintf(w, "%s %s\n", colored("Failed signals:", colorRed), strings.Join(names, ", "))
		fmt.Fprintln(w, dim("Failed signals contribute nothing; the score is best-effort."))
		fmt.Fprintln(w)
	}
	if e.Simulated {
		overridden := overriddenLabels(e)
		if len(overridden) > 0 {
			fmt.Fprintf(w, "Overridden: %s\n\n", strings.Join(overridden, ", "))
		}
	}

	return nil
}

func overriddenLabels(e *Explained) []string {
	var out []string
	for _, f := range e.Factors {
		if sr, ok := e.Signals[f.Name]; ok && sr.Override {
			out = append(out, f.Label)
		}
	}
	return out
}

// RenderTree writes the calculation tree, largest possible swing first.
func RenderTree(w io.Writer, tree scoring.Tree) error {
	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("Calculation tree (base %.0f)", tree.BaseScore)))
	fmt.Fprintf(w, "  %-24s %16s  %s\n", "Signal", "Range", "Mapping")

	empty := &scoring.ScoreResult{Signals: map[scoring.SignalName]scoring.SignalResult{}}
	for _, def := range tree.Signals {
		empty.Signals[def.Name] = scoring.SignalResult{Name: def.Name}
	}
	for _, f := range scoring.Factors(tree, empty) {
		def, _ := tree.Definition(f.Name)
		rng := fmt.Sprintf("[%g, %g]", def.Range.Min, def.Range.Max)
		fmt.Fprintf(w, "  %-24s %16s  %s\n", f.Label, rng, mapping(def))
	}
	fmt.Fprintln(w)
	return nil
}

func mapping(def scoring.SignalDefinition) string {
	if len(def.Intervals) == 0 {
		return fmt.Sprintf("raw x %g", def.EffectiveWeight())
	}
	parts := make([]string, len(def.Intervals))
	for i, iv := range def.Intervals {
		if iv.End == 0 {
			parts[i] = fmt.Sprintf("%g+: %g", iv.Start, iv.Score)
			continue
		}
		parts[i] = fmt.Sprintf("%g-%g: %g", iv.Start, iv.End, iv.Score)
	}
	return strings.Join(parts, ", ")
}
