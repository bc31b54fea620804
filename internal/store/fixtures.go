package store

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/credscope/credscope/pkg/scoring"
)

// Fixtures is the YAML document accepted by Import.
type Fixtures struct {
	Profiles []FixtureProfile `yaml:"profiles"`
	Accounts []FixtureAccount `yaml:"accounts"`
	Reviews  []FixtureReview  `yaml:"reviews"`
	Stakes   []FixtureStake   `yaml:"stakes"`
}

type FixtureProfile struct {
	ID        int64            `yaml:"id"`
	InvitedBy int64            `yaml:"invited_by"`
	Addresses []FixtureAddress `yaml:"addresses"`
	Accounts  []FixtureAccount `yaml:"accounts"`
}

type FixtureAddress struct {
	Address string `yaml:"address"`
	Primary bool   `yaml:"primary"`
}

type FixtureAccount struct {
	Service  string    `yaml:"service"`
	ID       string    `yaml:"id"`
	Username string    `yaml:"username"`
	Joined   time.Time `yaml:"joined"`
}

type FixtureReview struct {
	Subject   string `yaml:"subject"`
	Author    int64  `yaml:"author"`
	Sentiment string `yaml:"sentiment"`
	Archived  bool   `yaml:"archived"`
}

type FixtureStake struct {
	Subject string  `yaml:"subject"`
	Backer  int64   `yaml:"backer"`
	Eth     float64 `yaml:"eth"`
	Active  *bool   `yaml:"active"`
}

// ImportStats counts what Import wrote.
type ImportStats struct {
	Profiles int
	Accounts int
	Reviews  int
	Stakes   int
}

// Import decodes fixtures from r and writes them to the store. Profiles are
// created before inviter links so invitation order in the file does not matter.
func (s *Store) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	var (
		fx    Fixtures
		stats ImportStats
	)
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil && err != io.EOF {
		return stats, fmt.Errorf("decode fixtures: %w", err)
	}

	for _, p := range fx.Profiles {
		if err := s.CreateProfile(ctx, p.ID, 0); err != nil {
			return stats, err
		}
		stats.Profiles++
		for _, a := range p.Addresses {
			if err := s.AddAddress(ctx, p.ID, a.Address, a.Primary); err != nil {
				return stats, err
			}
		}
		for _, a := range p.Accounts {
			if err := s.importAccount(ctx, a, p.ID); err != nil {
				return stats, err
			}
			stats.Accounts++
		}
	}
	for _, p := range fx.Profiles {
		if p.InvitedBy == 0 {
			continue
		}
		if err := s.SetInviter(ctx, p.ID, p.InvitedBy); err != nil {
			return stats, err
		}
	}
	for _, a := range fx.Accounts {
		if err := s.importAccount(ctx, a, 0); err != nil {
			return stats, err
		}
		stats.Accounts++
	}
	for _, rv := range fx.Reviews {
		subject, err := scoring.ParseTarget(rv.Subject)
		if err != nil {
			return stats, fmt.Errorf("review subject: %w", err)
		}
		if err := s.AddReview(ctx, subject, rv.Author, rv.Sentiment, rv.Archived); err != nil {
			return stats, err
		}
		stats.Reviews++
	}
	for _, st := range fx.Stakes {
		subject, err := scoring.ParseTarget(st.Subject)
		if err != nil {
			return stats, fmt.Errorf("stake subject: %w", err)
		}
		active := st.Active == nil || *st.Active
		if err := s.AddStake(ctx, subject, st.Backer, st.Eth, active); err != nil {
			return stats, err
		}
		stats.Stakes++
	}
	return stats, nil
}

func (s *Store) importAccount(ctx context.Context, a FixtureAccount, profileID int64) error {
	if err := s.AddSocialAccount(ctx, a.Service, a.ID, a.Username, profileID); err != nil {
		return err
	}
	if a.Joined.IsZero() {
		return nil
	}
	return s.SetJoinDate(ctx, a.Service, a.ID, a.Joined)
}
