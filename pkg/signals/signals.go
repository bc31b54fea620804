// Package signals implements the evaluators behind each credibility signal.
// Every evaluator reads external collaborators, never mutates them, and
// returns a definite value for "no data" while reserving errors for
// operational failures.
package signals

import (
	"context"
	"regexp"
	"time"

	"github.com/credscope/credscope/pkg/scoring"
)

const (
	// SocialAgeNeutralDays is returned when a target has no linked account or
	// no cached join date, so that missing data is not penalized.
	SocialAgeNeutralDays = 500

	// InvitationShare is the fraction of the inviter's score that is inherited.
	InvitationShare = 0.2

	reviewScale      = scoring.DefaultScale
	reviewBasePace   = 50.0
	neutralPaceRatio = 10.0
	stakePace        = 25.0
	backerPace       = 50.0

	// DefaultService is the social service used for account age.
	DefaultService = "x.com"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress reports whether s is a hex-encoded 20-byte address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// Directory resolves targets to concrete identities.
type Directory interface {
	// PrimaryAddress returns the target's primary address, or "" if it has none.
	PrimaryAddress(ctx context.Context, t scoring.Target) (string, error)
	// LinkedAccounts returns the account ids the target has linked for service.
	LinkedAccounts(ctx context.Context, t scoring.Target, service string) ([]string, error)
	// AccountID maps a username on service to its stable account id, or "".
	AccountID(ctx context.Context, service, username string) (string, error)
	// Inviter returns who invited the target into the network, or nil.
	Inviter(ctx context.Context, t scoring.Target) (*scoring.Target, error)
}

// ReviewCounts are review totals by sentiment.
type ReviewCounts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// Add returns the element-wise sum.
func (c ReviewCounts) Add(o ReviewCounts) ReviewCounts {
	return ReviewCounts{
		Positive: c.Positive + o.Positive,
		Negative: c.Negative + o.Negative,
		Neutral:  c.Neutral + o.Neutral,
	}
}

// Store provides aggregate activity about a target.
type Store interface {
	ReviewCounts(ctx context.Context, t scoring.Target) (ReviewCounts, error)
	StakedEth(ctx context.Context, t scoring.Target) (float64, error)
	BackerCount(ctx context.Context, t scoring.Target) (int, error)
}

// ChainIndexer looks up on-chain history.
type ChainIndexer interface {
	// FirstSeen returns the timestamp of the address's first transaction.
	// found is false when the indexer has no record of the address.
	FirstSeen(ctx context.Context, address string) (first time.Time, found bool, err error)
}

// SocialProfiles reads cached external profile data.
type SocialProfiles interface {
	JoinDate(ctx context.Context, service, accountID string) (joined time.Time, found bool, err error)
}

// ScoreReader reads a previously computed score. Implementations must not
// compute scores; stale values are acceptable.
type ScoreReader interface {
	LastKnownScore(ctx context.Context, t scoring.Target) (score float64, found bool, err error)
}

// Provisional holds what-if additions applied on top of stored activity,
// e.g. a review that has not been submitted yet.
type Provisional struct {
	Reviews   ReviewCounts `json:"reviews"`
	StakedEth float64      `json:"staked_eth"`
	Backers   int          `json:"backers"`
}

// Lookups wires the collaborators needed by all evaluators.
type Lookups struct {
	Directory Directory
	Store     Store
	Indexer   ChainIndexer
	Social    SocialProfiles
	Scores    ScoreReader

	// Service is the social service used for account age; DefaultService if empty.
	Service string
	// Now returns the current time; time.Now if nil.
	Now func() time.Time
}

func (l *Lookups) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Lookups) service() string {
	if l.Service != "" {
		return l.Service
	}
	return DefaultService
}

// Registry returns an evaluator for every signal, applying p to the
// activity-based signals.
func (l *Lookups) Registry(p Provisional) scoring.Registry {
	return scoring.Registry{
		scoring.SignalAddressAge:            l.AddressAge,
		scoring.SignalSocialAge:             l.SocialAge,
		scoring.SignalReviewImpact:          l.ReviewImpact(p.Reviews),
		scoring.SignalStakeImpact:           l.StakeImpact(p.StakedEth),
		scoring.SignalBackerImpact:          l.BackerImpact(p.Backers),
		scoring.SignalInvitationCredibility: l.InvitationCredibility,
	}
}

func elapsedDays(now, since time.Time) float64 {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return float64(int64(d / (24 * time.Hour)))
}
