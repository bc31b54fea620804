package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetJoinDate records when an account joined its service.
func (s *Store) SetJoinDate(ctx context.Context, service, accountID string, joined time.Time) error {
	res, err := s.exec(ctx,
		`UPDATE social_accounts SET joined_at = ? WHERE service = ? AND account_id = ?`,
		joined.UTC().Format(timeLayout), service, accountID)
	if err != nil {
		return fmt.Errorf("set join date of %s account %s: %w", service, accountID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set join date: no %s account %s", service, accountID)
	}
	return nil
}

// JoinLoader serves join dates recorded in the store for one service.
// It satisfies socialcache.Loader.
type JoinLoader struct {
	store   *Store
	service string
}

// JoinLoader returns a loader for service.
func (s *Store) JoinLoader(service string) *JoinLoader {
	return &JoinLoader{store: s, service: service}
}

// JoinDate returns the recorded join date of accountID.
func (l *JoinLoader) JoinDate(ctx context.Context, accountID string) (time.Time, bool, error) {
	var joined sql.NullString
	err := l.store.queryRow(ctx,
		`SELECT joined_at FROM social_accounts WHERE service = ? AND account_id = ?`,
		l.service, accountID).Scan(&joined)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read join date of %s account %s: %w", l.service, accountID, err)
	}
	if !joined.Valid {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, joined.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse join date of %s account %s: %w", l.service, accountID, err)
	}
	return t.UTC(), true, nil
}
