package signals

import (
	"context"
	"fmt"

	"github.com/credscope/credscope/pkg/scoring"
)

// InvitationCredibility inherits a share of the inviter's last known score.
// It performs one cached read and never computes the inviter's score, so
// long or cyclic invitation chains cost at most one extra lookup.
func (l *Lookups) InvitationCredibility(ctx context.Context, t scoring.Target) (float64, error) {
	inviter, err := l.Directory.Inviter(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("resolving inviter: %w", err)
	}
	if inviter == nil {
		return 0, nil
	}

	score, found, err := l.Scores.LastKnownScore(ctx, *inviter)
	if err != nil {
		return 0, fmt.Errorf("reading score of inviter %s: %w", inviter, err)
	}
	if !found {
		return 0, nil
	}
	return score * InvitationShare, nil
}
