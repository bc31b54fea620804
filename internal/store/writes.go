package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/credscope/credscope/pkg/scoring"
)

// Review sentiments as stored.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// CreateProfile inserts a profile. invitedBy is 0 for profiles without an inviter.
func (s *Store) CreateProfile(ctx context.Context, id, invitedBy int64) error {
	var inviter any
	if invitedBy > 0 {
		inviter = invitedBy
	}
	if _, err := s.exec(ctx,
		`INSERT INTO profiles (id, invited_by) VALUES (?, ?)`, id, inviter); err != nil {
		return fmt.Errorf("create profile %d: %w", id, err)
	}
	return nil
}

// AddAddress links an address to a profile.
func (s *Store) AddAddress(ctx context.Context, profileID int64, address string, primary bool) error {
	if _, err := s.exec(ctx,
		`INSERT INTO profile_addresses (address, profile_id, is_primary) VALUES (?, ?, ?)`,
		strings.ToLower(address), profileID, primary); err != nil {
		return fmt.Errorf("add address %s to profile %d: %w", address, profileID, err)
	}
	return nil
}

// AddSocialAccount records an external account. profileID is 0 for accounts
// not linked to any profile.
func (s *Store) AddSocialAccount(ctx context.Context, service, accountID, username string, profileID int64) error {
	var pid any
	if profileID > 0 {
		pid = profileID
	}
	if _, err := s.exec(ctx,
		`INSERT INTO social_accounts (service, account_id, username, profile_id) VALUES (?, ?, ?, ?)`,
		service, accountID, username, pid); err != nil {
		return fmt.Errorf("add %s account %s: %w", service, accountID, err)
	}
	return nil
}

// AddReview records a review of subject by author.
func (s *Store) AddReview(ctx context.Context, subject scoring.Target, authorID int64, sentiment string, archived bool) error {
	switch sentiment {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		return fmt.Errorf("invalid review sentiment %q", sentiment)
	}
	if _, err := s.exec(ctx,
		`INSERT INTO reviews (subject, author_id, sentiment, archived) VALUES (?, ?, ?, ?)`,
		subject.String(), authorID, sentiment, archived); err != nil {
		return fmt.Errorf("add review of %s: %w", subject, err)
	}
	return nil
}

// AddStake records backerID vouching amountEth for subject.
func (s *Store) AddStake(ctx context.Context, subject scoring.Target, backerID int64, amountEth float64, active bool) error {
	if amountEth < 0 {
		return fmt.Errorf("negative stake %v", amountEth)
	}
	if _, err := s.exec(ctx,
		`INSERT INTO stakes (subject, backer_id, amount_eth, active) VALUES (?, ?, ?, ?)`,
		subject.String(), backerID, amountEth, active); err != nil {
		return fmt.Errorf("add stake on %s: %w", subject, err)
	}
	return nil
}

// SetInviter records who invited a profile.
func (s *Store) SetInviter(ctx context.Context, id, invitedBy int64) error {
	if _, err := s.exec(ctx,
		`UPDATE profiles SET invited_by = ? WHERE id = ?`, invitedBy, id); err != nil {
		return fmt.Errorf("set inviter of profile %d: %w", id, err)
	}
	return nil
}
