package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/credscope/credscope/pkg/scoring"
)

// AddressAge returns the days since the target's primary address first
// transacted. Targets without a valid address or without on-chain history
// score 0.
func (l *Lookups) AddressAge(ctx context.Context, t scoring.Target) (float64, error) {
	address := t.Address
	if t.Kind != scoring.TargetAddress {
		var err error
		address, err = l.Directory.PrimaryAddress(ctx, t)
		if err != nil {
			return 0, fmt.Errorf("resolving primary address: %w", err)
		}
	}
	if !ValidAddress(address) {
		return 0, nil
	}

	first, found, err := l.Indexer.FirstSeen(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("looking up first transaction of %s: %w", address, err)
	}
	if !found {
		return 0, nil
	}
	return elapsedDays(l.now(), first), nil
}

// SocialAge returns the days since the oldest linked social account joined.
// Without linked accounts or cached join dates it returns SocialAgeNeutralDays.
func (l *Lookups) SocialAge(ctx context.Context, t scoring.Target) (float64, error) {
	service := l.service()

	accounts, err := l.socialAccounts(ctx, t, service)
	if err != nil {
		return 0, err
	}

	var oldest time.Time
	for _, account := range accounts {
		joined, found, err := l.Social.JoinDate(ctx, service, account)
		if err != nil {
			return 0, fmt.Errorf("reading join date of %s account %s: %w", service, account, err)
		}
		if !found {
			continue
		}
		if oldest.IsZero() || joined.Before(oldest) {
			oldest = joined
		}
	}

	if oldest.IsZero() {
		return SocialAgeNeutralDays, nil
	}
	return elapsedDays(l.now(), oldest), nil
}

func (l *Lookups) socialAccounts(ctx context.Context, t scoring.Target, service string) ([]string, error) {
	switch {
	case t.Kind == scoring.TargetServiceAccount && t.Service == service:
		return []string{t.Account}, nil
	case t.Kind == scoring.TargetServiceUsername && t.Service == service:
		id, err := l.Directory.AccountID(ctx, service, t.Username)
		if err != nil {
			return nil, fmt.Errorf("resolving %s username %s: %w", service, t.Username, err)
		}
		if id == "" {
			return nil, nil
		}
		return []string{id}, nil
	}

	accounts, err := l.Directory.LinkedAccounts(ctx, t, service)
	if err != nil {
		return nil, fmt.Errorf("listing linked %s accounts: %w", service, err)
	}
	return accounts, nil
}
