package scoring

// DefaultBaseScore is the score of an identity with no signals at all.
const DefaultBaseScore = 1000

// ageIntervals maps account age in days to score points.
func ageIntervals() []Interval {
	return []Interval{
		{Start: 0, End: 90, Score: 0},
		{Start: 90, End: 365, Score: 25},
		{Start: 365, End: 730, Score: 50},
		{Start: 730, End: 1461, Score: 75},
		{Start: 1461, Score: 100},
	}
}

// DefaultTree returns the production calculation tree.
func DefaultTree() Tree {
	return Tree{
		BaseScore: DefaultBaseScore,
		Signals: []SignalDefinition{
			{
				Name:      SignalAddressAge,
				Range:     Range{Min: 0, Max: 100},
				Intervals: ageIntervals(),
			},
			{
				Name:      SignalSocialAge,
				Range:     Range{Min: 0, Max: 100},
				Intervals: ageIntervals(),
			},
			{
				Name:   SignalReviewImpact,
				Range:  Range{Min: -400, Max: 400},
				Weight: 1,
			},
			{
				Name:   SignalStakeImpact,
				Range:  Range{Min: 0, Max: 400},
				Weight: 1,
			},
			{
				Name:   SignalBackerImpact,
				Range:  Range{Min: 0, Max: 200},
				Weight: 0.5,
			},
			{
				Name:   SignalInvitationCredibility,
				Range:  Range{Min: 0, Max: 500},
				Weight: 1,
			},
		},
	}
}
