package signals

import (
	"context"
	"fmt"

	"github.com/credscope/credscope/pkg/scoring"
)

// ReviewPace is the sigmoid pace for a review differential. Neutral reviews
// flatten the curve.
func ReviewPace(neutral int) float64 {
	return reviewBasePace + float64(neutral)/neutralPaceRatio
}

// ReviewImpact scores received reviews plus the provisional counts.
func (l *Lookups) ReviewImpact(provisional ReviewCounts) scoring.Evaluator {
	return func(ctx context.Context, t scoring.Target) (float64, error) {
		counts, err := l.Store.ReviewCounts(ctx, t)
		if err != nil {
			return 0, fmt.Errorf("counting reviews: %w", err)
		}
		counts = counts.Add(provisional)
		diff := float64(counts.Positive - counts.Negative)
		return scoring.Sigmoid(diff, reviewScale, ReviewPace(counts.Neutral)), nil
	}
}

// StakeImpact scores the total ETH staked behind the target.
func (l *Lookups) StakeImpact(provisionalEth float64) scoring.Evaluator {
	return func(ctx context.Context, t scoring.Target) (float64, error) {
		staked, err := l.Store.StakedEth(ctx, t)
		if err != nil {
			return 0, fmt.Errorf("summing stake: %w", err)
		}
		return scoring.Sigmoid(staked+provisionalEth, scoring.DefaultScale, stakePace), nil
	}
}

// BackerImpact scores the number of distinct backers.
func (l *Lookups) BackerImpact(provisional int) scoring.Evaluator {
	return func(ctx context.Context, t scoring.Target) (float64, error) {
		n, err := l.Store.BackerCount(ctx, t)
		if err != nil {
			return 0, fmt.Errorf("counting backers: %w", err)
		}
		return scoring.Sigmoid(float64(n+provisional), scoring.DefaultScale, backerPace), nil
	}
}
