package scoring

import (
	"fmt"
	"math"
)

// Range is the inclusive contribution range of a signal, in score points.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Span is the largest swing a signal can cause.
func (r Range) Span() float64 { return r.Max - r.Min }

// Clamp bounds v to the range.
func (r Range) Clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

// Interval maps raw values in [Start, End) to a fixed score.
// A zero End on the last interval leaves it open-ended.
type Interval struct {
	Start float64 `yaml:"start" json:"start"`
	End   float64 `yaml:"end" json:"end"`
	Score float64 `yaml:"score" json:"score"`
}

// SignalDefinition pairs a signal with how its raw value is weighted.
type SignalDefinition struct {
	Name      SignalName `yaml:"name" json:"name"`
	Range     Range      `yaml:"range" json:"range"`
	Weight    float64    `yaml:"weight" json:"weight"` // 0 means 1
	Intervals []Interval `yaml:"intervals,omitempty" json:"intervals,omitempty"`
}

// EffectiveWeight returns Weight, treating 0 as 1.
func (d SignalDefinition) EffectiveWeight() float64 {
	if d.Weight == 0 {
		return 1
	}
	return d.Weight
}

// Tree is the calculation tree: a base score plus one weighted element per signal.
type Tree struct {
	BaseScore float64            `yaml:"base_score" json:"base_score"`
	Signals   []SignalDefinition `yaml:"signals" json:"signals"`
}

// Definition returns the definition for name, if the tree has one.
func (t Tree) Definition(name SignalName) (SignalDefinition, bool) {
	for _, d := range t.Signals {
		if d.Name == name {
			return d, true
		}
	}
	return SignalDefinition{}, false
}

// Names returns the signal names of the tree in definition order.
func (t Tree) Names() []SignalName {
	names := make([]SignalName, 0, len(t.Signals))
	for _, d := range t.Signals {
		names = append(names, d.Name)
	}
	return names
}

// Validate checks the tree for structural mistakes.
func (t Tree) Validate() error {
	if math.IsNaN(t.BaseScore) || math.IsInf(t.BaseScore, 0) {
		return fmt.Errorf("base score must be finite")
	}
	seen := make(map[SignalName]bool, len(t.Signals))
	for _, d := range t.Signals {
		if !d.Name.Known() {
			return &ConfigurationError{Signal: d.Name, Reason: "unknown signal"}
		}
		if seen[d.Name] {
			return &ConfigurationError{Signal: d.Name, Reason: "defined more than once"}
		}
		seen[d.Name] = true
		if d.Range.Min > d.Range.Max {
			return &ConfigurationError{Signal: d.Name, Reason: fmt.Sprintf("range min %.2f exceeds max %.2f", d.Range.Min, d.Range.Max)}
		}
		if math.IsNaN(d.Weight) || math.IsInf(d.Weight, 0) {
			return &ConfigurationError{Signal: d.Name, Reason: "weight must be finite"}
		}
		for i, iv := range d.Intervals {
			open := i == len(d.Intervals)-1 && iv.End == 0
			if !open && iv.End <= iv.Start {
				return &ConfigurationError{Signal: d.Name, Reason: fmt.Sprintf("interval %d is empty", i)}
			}
		}
	}
	return nil
}

// CalculateElement maps a raw value to its weighted contribution, clamped
// to the definition's range.
func CalculateElement(def SignalDefinition, raw float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	if len(def.Intervals) > 0 {
		return def.Range.Clamp(lookupInterval(def.Intervals, raw))
	}
	return def.Range.Clamp(raw * def.EffectiveWeight())
}

func lookupInterval(intervals []Interval, raw float64) float64 {
	for i, iv := range intervals {
		last := i == len(intervals)-1
		if raw < iv.Start {
			continue
		}
		if raw < iv.End || (last && iv.End == 0) {
			return iv.Score
		}
	}
	return 0
}

// CalculateScore combines raw values into the final score:
// base + round(sum of weighted contributions). Signals absent from raw
// (failed or not evaluated) contribute zero.
func CalculateScore(tree Tree, raw map[SignalName]float64) float64 {
	var sum float64
	for _, def := range tree.Signals {
		v, ok := raw[def.Name]
		if !ok {
			continue
		}
		sum += CalculateElement(def, v)
	}
	return tree.BaseScore + math.Round(sum)
}
