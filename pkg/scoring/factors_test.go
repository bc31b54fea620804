package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credscope/credscope/pkg/scoring"
)

func TestFactorsSortedBySwing(t *testing.T) {
	tree := scoring.DefaultTree()
	result := &scoring.ScoreResult{
		Signals: map[scoring.SignalName]scoring.SignalResult{
			scoring.SignalAddressAge:            {Name: scoring.SignalAddressAge, Raw: 400, Weighted: 50},
			scoring.SignalSocialAge:             {Name: scoring.SignalSocialAge, Raw: 500, Weighted: 50},
			scoring.SignalReviewImpact:          {Name: scoring.SignalReviewImpact, Raw: 15.09, Weighted: 15.09},
			scoring.SignalStakeImpact:           {Name: scoring.SignalStakeImpact, Failed: true},
			scoring.SignalBackerImpact:          {Name: scoring.SignalBackerImpact, Raw: 22, Weighted: 11},
			scoring.SignalInvitationCredibility: {Name: scoring.SignalInvitationCredibility, Raw: 240, Weighted: 240},
		},
	}

	factors := scoring.Factors(tree, result)
	require.Len(t, factors, 6)

	var names []scoring.SignalName
	for i, f := range factors {
		names = append(names, f.Name)
		if i > 0 {
			assert.GreaterOrEqual(t, factors[i-1].Range.Span(), f.Range.Span())
		}
	}
	assert.Equal(t, []scoring.SignalName{
		scoring.SignalReviewImpact,
		scoring.SignalInvitationCredibility,
		scoring.SignalStakeImpact,
		scoring.SignalBackerImpact,
		scoring.SignalAddressAge,
		scoring.SignalSocialAge,
	}, names)

	assert.True(t, factors[2].Failed)
	assert.Equal(t, "Review impact", factors[0].Label)
	assert.Equal(t, 15.09, factors[0].Value)
}

func TestFactorsSkipSignalsOutsideResult(t *testing.T) {
	result := &scoring.ScoreResult{
		Signals: map[scoring.SignalName]scoring.SignalResult{
			scoring.SignalBackerImpact: {Name: scoring.SignalBackerImpact, Raw: 4, Weighted: 2},
		},
	}
	factors := scoring.Factors(scoring.DefaultTree(), result)
	require.Len(t, factors, 1)
	assert.Equal(t, scoring.SignalBackerImpact, factors[0].Name)
}

func TestNewBreakdownRunningTotal(t *testing.T) {
	factors := []scoring.CredibilityFactor{
		{Name: scoring.SignalReviewImpact, Weighted: 15.094},
		{Name: scoring.SignalStakeImpact, Weighted: -0.0},
		{Name: scoring.SignalBackerImpact, Weighted: 10.5},
	}

	b := scoring.NewBreakdown(1000, factors)
	require.Len(t, b.Steps, 3)
	assert.Equal(t, 1000.0, b.Base)
	assert.InDelta(t, 1015.094, b.Steps[0].Total, 1e-9)
	assert.InDelta(t, 1015.094, b.Steps[1].Total, 1e-9)
	assert.InDelta(t, 1025.594, b.Steps[2].Total, 1e-9)
	assert.Equal(t, 1026.0, b.Total)
}

func TestBreakdownMatchesScore(t *testing.T) {
	tree := scoring.DefaultTree()
	raw := map[scoring.SignalName]float64{
		scoring.SignalAddressAge:   800,
		scoring.SignalReviewImpact: -12.7,
		scoring.SignalBackerImpact: 33,
	}
	result := &scoring.ScoreResult{Signals: map[scoring.SignalName]scoring.SignalResult{}}
	for name, v := range raw {
		def, ok := tree.Definition(name)
		require.True(t, ok)
		result.Signals[name] = scoring.SignalResult{Name: name, Raw: v, Weighted: scoring.CalculateElement(def, v)}
	}

	b := scoring.NewBreakdown(tree.BaseScore, scoring.Factors(tree, result))
	assert.Equal(t, scoring.CalculateScore(tree, raw), b.Total)
}
