package scoring

import (
	"math"
	"sort"
)

// CredibilityFactor is the display form of one signal's contribution.
type CredibilityFactor struct {
	Name     SignalName `json:"name"`
	Label    string     `json:"label"`
	Value    float64    `json:"value"`
	Weighted float64    `json:"weighted"`
	Range    Range      `json:"range"`
	Failed   bool       `json:"failed,omitempty"`
}

// BreakdownStep is one line of a running-total explanation.
type BreakdownStep struct {
	Factor CredibilityFactor `json:"factor"`
	Delta  float64           `json:"delta"`
	Total  float64           `json:"total"`
}

// Breakdown explains a score as the base followed by each factor's delta.
type Breakdown struct {
	Base  float64         `json:"base"`
	Steps []BreakdownStep `json:"steps"`
	Total float64         `json:"total"`
}

// Factors converts a result into credibility factors, largest possible swing
// first. Signals of result that are not in tree are skipped.
func Factors(tree Tree, result *ScoreResult) []CredibilityFactor {
	factors := make([]CredibilityFactor, 0, len(tree.Signals))
	for _, def := range tree.Signals {
		sr, ok := result.Signals[def.Name]
		if !ok {
			continue
		}
		factors = append(factors, CredibilityFactor{
			Name:     def.Name,
			Label:    def.Name.Label(),
			Value:    sr.Raw,
			Weighted: sr.Weighted,
			Range:    def.Range,
			Failed:   sr.Failed,
		})
	}

	sort.SliceStable(factors, func(i, j int) bool {
		si, sj := factors[i].Range.Span(), factors[j].Range.Span()
		if si != sj {
			return si > sj
		}
		return factors[i].Name < factors[j].Name
	})
	return factors
}

// NewBreakdown builds the running total over factors in the given order.
// Total is rounded the same way CalculateScore rounds.
func NewBreakdown(base float64, factors []CredibilityFactor) Breakdown {
	b := Breakdown{Base: base, Steps: make([]BreakdownStep, 0, len(factors))}
	running := base
	var sum float64
	for _, f := range factors {
		running += f.Weighted
		sum += f.Weighted
		b.Steps = append(b.Steps, BreakdownStep{Factor: f, Delta: f.Weighted, Total: running})
	}
	b.Total = base + math.Round(sum)
	return b
}
