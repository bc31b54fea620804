// Package surface defines output rendering for credscope results.
// Implementations handle different output targets: terminal, Markdown, JSON.
package surface

import (
	"fmt"
	"io"
	"time"

	"github.com/credscope/credscope/pkg/scoring"
)

// Explained is a score result together with its credibility factors and the
// running-total breakdown, the form results are rendered, served and archived in.
type Explained struct {
	ID         string                                      `json:"id,omitempty"`
	Target     string                                      `json:"target"`
	Score      float64                                     `json:"score"`
	Partial    bool                                        `json:"partial"`
	Simulated  bool                                        `json:"simulated"`
	Errors     []scoring.SignalName                        `json:"errors"`
	Signals    map[scoring.SignalName]scoring.SignalResult `json:"signals"`
	Factors    []scoring.CredibilityFactor                 `json:"factors"`
	Breakdown  scoring.Breakdown                           `json:"breakdown"`
	ComputedAt time.Time                                   `json:"computed_at,omitzero"`
}

// Explain builds the explained view of result under tree.
func Explain(tree scoring.Tree, result *scoring.ScoreResult) *Explained {
	factors := scoring.Factors(tree, result)
	errs := result.Errors
	if errs == nil {
		errs = []scoring.SignalName{}
	}
	return &Explained{
		Target:    result.Target.String(),
		Score:     result.Score,
		Partial:   result.Partial(),
		Simulated: result.Simulated,
		Errors:    errs,
		Signals:   result.Signals,
		Factors:   factors,
		Breakdown: scoring.NewBreakdown(tree.BaseScore, factors),
	}
}

// Renderer produces formatted output from an explained result.
type Renderer interface {
	// Render writes the formatted result to the writer.
	Render(w io.Writer, e *Explained) error
}

// ForOutput returns the renderer for an --output value.
func ForOutput(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return &TerminalRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or markdown)", format)
	}
}
