package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/credscope/credscope/pkg/scoring"
)

// ErrSimulated is returned when asked to persist a simulated result.
var ErrSimulated = errors.New("simulated results are not persisted")

// StoredScore is a persisted score calculation.
type StoredScore struct {
	ID         string                                      `json:"id"`
	Target     string                                      `json:"target"`
	Score      float64                                     `json:"score"`
	Partial    bool                                        `json:"partial"`
	Errors     []scoring.SignalName                        `json:"errors"`
	Signals    map[scoring.SignalName]scoring.SignalResult `json:"signals"`
	ComputedAt time.Time                                   `json:"computed_at"`
}

// SaveScore records a computed result under the target's canonical key.
func (s *Store) SaveScore(ctx context.Context, result *scoring.ScoreResult) (*StoredScore, error) {
	if result.Simulated {
		return nil, ErrSimulated
	}
	key, err := s.CanonicalKey(ctx, result.Target)
	if err != nil {
		return nil, err
	}
	signalsJSON, err := json.Marshal(result.Signals)
	if err != nil {
		return nil, fmt.Errorf("marshal signals: %w", err)
	}

	row := &StoredScore{
		ID:         uuid.New().String(),
		Target:     key,
		Score:      result.Score,
		Partial:    result.Partial(),
		Errors:     result.Errors,
		Signals:    result.Signals,
		ComputedAt: s.now().UTC(),
	}
	_, err = s.exec(ctx,
		`INSERT INTO scores (id, target, score, partial, errors, signals, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Target, row.Score, row.Partial, joinSignals(row.Errors),
		string(signalsJSON), row.ComputedAt.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("save score for %s: %w", key, err)
	}
	return row, nil
}

// LastKnownScore implements signals.ScoreReader. Stale rows are returned as-is.
func (s *Store) LastKnownScore(ctx context.Context, t scoring.Target) (float64, bool, error) {
	latest, err := s.LatestScore(ctx, t)
	if err != nil {
		return 0, false, err
	}
	if latest == nil {
		return 0, false, nil
	}
	return latest.Score, true, nil
}

// LatestScore returns the newest stored score for t, or nil.
func (s *Store) LatestScore(ctx context.Context, t scoring.Target) (*StoredScore, error) {
	history, err := s.History(ctx, t, 1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	return &history[0], nil
}

// History returns up to limit stored scores for t, newest first.
func (s *Store) History(ctx context.Context, t scoring.Target, limit int) ([]StoredScore, error) {
	key, err := s.CanonicalKey(ctx, t)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query(ctx,
		`SELECT id, target, score, partial, errors, signals, computed_at
		 FROM scores WHERE target = ?
		 ORDER BY computed_at DESC LIMIT ?`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("score history for %s: %w", key, err)
	}
	defer rows.Close()

	var out []StoredScore
	for rows.Next() {
		row, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

// IsStale reports whether a stored score is older than the configured max age.
func (s *Store) IsStale(row *StoredScore) bool {
	return s.now().Sub(row.ComputedAt) > s.maxAge
}

// StaleTargets returns up to limit profiles whose newest score is older than
// the max age. Profiles never scored come first.
func (s *Store) StaleTargets(ctx context.Context, limit int) ([]scoring.Target, error) {
	cutoff := s.now().Add(-s.maxAge).UTC().Format(timeLayout)
	rows, err := s.query(ctx,
		`SELECT p.id FROM profiles p
		 LEFT JOIN (SELECT target, MAX(computed_at) AS last FROM scores GROUP BY target) sc
		   ON sc.target = 'profileId:' || p.id
		 WHERE sc.last IS NULL OR sc.last < ?
		 ORDER BY sc.last ASC NULLS FIRST, p.id
		 LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("stale targets: %w", err)
	}
	defer rows.Close()

	var targets []scoring.Target
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale target: %w", err)
		}
		targets = append(targets, scoring.ProfileTarget(id))
	}
	return targets, rows.Err()
}

func scanScore(rows *sql.Rows) (*StoredScore, error) {
	var (
		row         StoredScore
		errs        string
		signalsJSON string
		computedAt  string
	)
	if err := rows.Scan(&row.ID, &row.Target, &row.Score, &row.Partial, &errs, &signalsJSON, &computedAt); err != nil {
		return nil, fmt.Errorf("scan score: %w", err)
	}
	if err := json.Unmarshal([]byte(signalsJSON), &row.Signals); err != nil {
		return nil, fmt.Errorf("decode signals for score %s: %w", row.ID, err)
	}
	at, err := time.Parse(time.RFC3339Nano, computedAt)
	if err != nil {
		return nil, fmt.Errorf("parse computed_at for score %s: %w", row.ID, err)
	}
	row.ComputedAt = at.UTC()
	row.Errors = splitSignals(errs)
	return &row, nil
}

func joinSignals(names []scoring.SignalName) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ",")
}

func splitSignals(s string) []scoring.SignalName {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]scoring.SignalName, len(parts))
	for i, p := range parts {
		out[i] = scoring.SignalName(p)
	}
	return out
}
