// Package store provides the SQL-backed identity directory, activity
// aggregates and score history used by the signal evaluators.
// Queries are written with ? placeholders and rebound for Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/credscope/credscope/internal/platform"
	"github.com/credscope/credscope/pkg/scoring"
	"github.com/credscope/credscope/pkg/signals"
)

// timeLayout is fixed width so that stored timestamps sort lexically in sqlite.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store implements signals.Directory, signals.Store and signals.ScoreReader.
type Store struct {
	db     *sql.DB
	driver string
	maxAge time.Duration
	now    func() time.Time
}

var (
	_ signals.Directory   = (*Store)(nil)
	_ signals.Store       = (*Store)(nil)
	_ signals.ScoreReader = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithMaxScoreAge sets how old a score may be before StaleTargets returns it.
func WithMaxScoreAge(d time.Duration) Option {
	return func(s *Store) { s.maxAge = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New wraps an open database. driver is platform.DriverPostgres or
// platform.DriverSQLite.
func New(db *sql.DB, driver string, opts ...Option) *Store {
	s := &Store{
		db:     db,
		driver: driver,
		maxAge: 24 * time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) rebind(query string) string {
	if s.driver != platform.DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// ResolveProfile returns the profile a target belongs to, if any.
func (s *Store) ResolveProfile(ctx context.Context, t scoring.Target) (int64, bool, error) {
	var (
		id  int64
		err error
	)
	switch t.Kind {
	case scoring.TargetProfile:
		err = s.queryRow(ctx, `SELECT id FROM profiles WHERE id = ?`, t.ProfileID).Scan(&id)
	case scoring.TargetAddress:
		err = s.queryRow(ctx,
			`SELECT profile_id FROM profile_addresses WHERE lower(address) = lower(?)`,
			t.Address).Scan(&id)
	case scoring.TargetServiceAccount:
		var pid sql.NullInt64
		err = s.queryRow(ctx,
			`SELECT profile_id FROM social_accounts WHERE service = ? AND account_id = ?`,
			t.Service, t.Account).Scan(&pid)
		id = pid.Int64
		if err == nil && !pid.Valid {
			err = sql.ErrNoRows
		}
	case scoring.TargetServiceUsername:
		var pid sql.NullInt64
		err = s.queryRow(ctx,
			`SELECT profile_id FROM social_accounts WHERE service = ? AND lower(username) = lower(?)`,
			t.Service, t.Username).Scan(&pid)
		id = pid.Int64
		if err == nil && !pid.Valid {
			err = sql.ErrNoRows
		}
	default:
		return 0, false, fmt.Errorf("resolve profile: unknown target kind %q", t.Kind)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve profile for %s: %w", t, err)
	}
	return id, true, nil
}

// CanonicalKey is the key scores and archived results are stored under: the
// owning profile when the target resolves to one, otherwise the target itself.
func (s *Store) CanonicalKey(ctx context.Context, t scoring.Target) (string, error) {
	id, ok, err := s.ResolveProfile(ctx, t)
	if err != nil {
		return "", err
	}
	if ok {
		return scoring.ProfileTarget(id).String(), nil
	}
	return t.String(), nil
}

// PrimaryAddress implements signals.Directory.
func (s *Store) PrimaryAddress(ctx context.Context, t scoring.Target) (string, error) {
	if t.Kind == scoring.TargetAddress {
		return t.Address, nil
	}
	id, ok, err := s.ResolveProfile(ctx, t)
	if err != nil || !ok {
		return "", err
	}
	var address string
	err = s.queryRow(ctx,
		`SELECT address FROM profile_addresses WHERE profile_id = ?
		 ORDER BY is_primary DESC, address LIMIT 1`, id).Scan(&address)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("primary address for profile %d: %w", id, err)
	}
	return address, nil
}

// LinkedAccounts implements signals.Directory.
func (s *Store) LinkedAccounts(ctx context.Context, t scoring.Target, service string) ([]string, error) {
	id, ok, err := s.ResolveProfile(ctx, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		if t.Kind == scoring.TargetServiceAccount && t.Service == service {
			return []string{t.Account}, nil
		}
		return nil, nil
	}

	rows, err := s.query(ctx,
		`SELECT account_id FROM social_accounts WHERE profile_id = ? AND service = ?
		 ORDER BY account_id`, id, service)
	if err != nil {
		return nil, fmt.Errorf("linked accounts for profile %d: %w", id, err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan linked account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// AccountID implements signals.Directory.
func (s *Store) AccountID(ctx context.Context, service, username string) (string, error) {
	var account string
	err := s.queryRow(ctx,
		`SELECT account_id FROM social_accounts WHERE service = ? AND lower(username) = lower(?)`,
		service, username).Scan(&account)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("account id for %s/%s: %w", service, username, err)
	}
	return account, nil
}

// Inviter implements signals.Directory.
func (s *Store) Inviter(ctx context.Context, t scoring.Target) (*scoring.Target, error) {
	id, ok, err := s.ResolveProfile(ctx, t)
	if err != nil || !ok {
		return nil, err
	}
	var invitedBy sql.NullInt64
	if err := s.queryRow(ctx, `SELECT invited_by FROM profiles WHERE id = ?`, id).Scan(&invitedBy); err != nil {
		return nil, fmt.Errorf("inviter of profile %d: %w", id, err)
	}
	if !invitedBy.Valid {
		return nil, nil
	}
	inviter := scoring.ProfileTarget(invitedBy.Int64)
	return &inviter, nil
}

// subjectKeys lists every userkey activity about t may be recorded under.
func (s *Store) subjectKeys(ctx context.Context, t scoring.Target) ([]any, error) {
	id, ok, err := s.ResolveProfile(ctx, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		if t.Kind == scoring.TargetServiceUsername {
			account, err := s.AccountID(ctx, t.Service, t.Username)
			if err != nil {
				return nil, err
			}
			if account != "" {
				return []any{scoring.ServiceAccountTarget(t.Service, account).String()}, nil
			}
		}
		return []any{t.String()}, nil
	}

	keys := []any{scoring.ProfileTarget(id).String()}

	rows, err := s.query(ctx,
		`SELECT address FROM profile_addresses WHERE profile_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("subject addresses: %w", err)
	}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan address: %w", err)
		}
		keys = append(keys, scoring.AddressTarget(a).String())
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.query(ctx,
		`SELECT service, account_id FROM social_accounts WHERE profile_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("subject accounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var service, account string
		if err := rows.Scan(&service, &account); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		keys = append(keys, scoring.ServiceAccountTarget(service, account).String())
	}
	return keys, rows.Err()
}

// ReviewCounts implements signals.Store. Archived reviews are ignored.
func (s *Store) ReviewCounts(ctx context.Context, t scoring.Target) (signals.ReviewCounts, error) {
	keys, err := s.subjectKeys(ctx, t)
	if err != nil {
		return signals.ReviewCounts{}, err
	}
	args := append([]any{false}, keys...)
	rows, err := s.query(ctx,
		`SELECT sentiment, COUNT(*) FROM reviews
		 WHERE archived = ? AND subject IN (`+placeholders(len(keys))+`)
		 GROUP BY sentiment`, args...)
	if err != nil {
		return signals.ReviewCounts{}, fmt.Errorf("review counts for %s: %w", t, err)
	}
	defer rows.Close()

	var counts signals.ReviewCounts
	for rows.Next() {
		var (
			sentiment string
			n         int
		)
		if err := rows.Scan(&sentiment, &n); err != nil {
			return signals.ReviewCounts{}, fmt.Errorf("scan review count: %w", err)
		}
		switch sentiment {
		case SentimentPositive:
			counts.Positive = n
		case SentimentNegative:
			counts.Negative = n
		case SentimentNeutral:
			counts.Neutral = n
		}
	}
	return counts, rows.Err()
}

// StakedEth implements signals.Store.
func (s *Store) StakedEth(ctx context.Context, t scoring.Target) (float64, error) {
	keys, err := s.subjectKeys(ctx, t)
	if err != nil {
		return 0, err
	}
	var total float64
	err = s.queryRow(ctx,
		`SELECT COALESCE(SUM(amount_eth), 0) FROM stakes
		 WHERE active = ? AND subject IN (`+placeholders(len(keys))+`)`,
		append([]any{true}, keys...)...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("staked eth for %s: %w", t, err)
	}
	return total, nil
}

// BackerCount implements signals.Store.
func (s *Store) BackerCount(ctx context.Context, t scoring.Target) (int, error) {
	keys, err := s.subjectKeys(ctx, t)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.queryRow(ctx,
		`SELECT COUNT(DISTINCT backer_id) FROM stakes
		 WHERE active = ? AND subject IN (`+placeholders(len(keys))+`)`,
		append([]any{true}, keys...)...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("backer count for %s: %w", t, err)
	}
	return n, nil
}
