// Package pipeline runs a score request end to end: evaluate the signals,
// persist the result, archive its explanation and announce it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/credscope/credscope/internal/archive"
	"github.com/credscope/credscope/internal/events"
	"github.com/credscope/credscope/internal/store"
	"github.com/credscope/credscope/internal/telemetry"
	"github.com/credscope/credscope/pkg/scoring"
	"github.com/credscope/credscope/pkg/signals"
	"github.com/credscope/credscope/pkg/surface"
)

// ScoreStore persists computed results.
type ScoreStore interface {
	SaveScore(ctx context.Context, result *scoring.ScoreResult) (*store.StoredScore, error)
}

// ResultArchive keeps explained results.
type ResultArchive interface {
	Save(ctx context.Context, e *surface.Explained) (string, error)
}

// ScoreRecorder counts completed calculations.
type ScoreRecorder interface {
	RecordScore(ctx context.Context, result *scoring.ScoreResult)
}

// Service wires the engine to persistence and notification.
type Service struct {
	tree       scoring.Tree
	lookups    *signals.Lookups
	engine     *scoring.Engine
	engineOpts []scoring.Option
	scores     ScoreStore
	archive    ResultArchive
	events     events.Publisher
	recorder   ScoreRecorder
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEngineOptions passes options to every engine the service builds.
func WithEngineOptions(opts ...scoring.Option) Option {
	return func(s *Service) { s.engineOpts = append(s.engineOpts, opts...) }
}

// WithArchive archives every persisted result. A nil archive is ignored.
func WithArchive(a *archive.Archive) Option {
	return func(s *Service) {
		if a != nil {
			s.archive = a
		}
	}
}

// WithPublisher announces every persisted result.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithRecorder counts completed calculations.
func WithRecorder(r ScoreRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a service. The tree is validated against the lookups'
// registry up front so configuration mistakes surface at startup.
func NewService(tree scoring.Tree, lookups *signals.Lookups, scores ScoreStore, opts ...Option) (*Service, error) {
	s := &Service{
		tree:    tree,
		lookups: lookups,
		scores:  scores,
		events:  events.NopPublisher{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	engine, err := scoring.NewEngine(tree, lookups.Registry(signals.Provisional{}), s.engineOpts...)
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return s, nil
}

// Tree returns the calculation tree in use.
func (s *Service) Tree() scoring.Tree { return s.tree }

// Score computes, persists, archives and publishes the score of target.
// Archive and publish failures are logged; the result is still returned.
func (s *Service) Score(ctx context.Context, target scoring.Target) (*surface.Explained, error) {
	ctx, span := telemetry.StartSpan(ctx, "credscope.score", attribute.String("target", target.String()))
	defer span.End()

	result, err := s.engine.ComputeScore(ctx, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Float64("score", result.Score), attribute.Bool("partial", result.Partial()))
	s.record(ctx, result)

	stored, err := s.scores.SaveScore(ctx, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("persist score: %w", err)
	}

	e := surface.Explain(s.tree, result)
	e.ID = stored.ID
	e.Target = stored.Target
	e.ComputedAt = stored.ComputedAt

	if s.archive != nil {
		if _, err := s.archive.Save(ctx, e); err != nil {
			s.logger.WarnContext(ctx, "archive result failed", "target", e.Target, "id", e.ID, "error", err)
		}
	}
	ev := events.ScoreEvent{
		ID:         stored.ID,
		Target:     stored.Target,
		Score:      result.Score,
		Partial:    result.Partial(),
		Errors:     e.Errors,
		ComputedAt: stored.ComputedAt,
	}
	if err := s.events.PublishScore(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "publish score event failed", "target", e.Target, "id", e.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "score computed",
		"target", e.Target, "score", e.Score, "partial", e.Partial, "failed", len(e.Errors))
	return e, nil
}

// Simulate computes a what-if score. Overrides replace signal values outright;
// provisional activity is added to stored activity before evaluation. The
// result is never persisted.
func (s *Service) Simulate(ctx context.Context, target scoring.Target, overrides map[scoring.SignalName]float64, prov signals.Provisional) (*surface.Explained, error) {
	ctx, span := telemetry.StartSpan(ctx, "credscope.simulate", attribute.String("target", target.String()))
	defer span.End()

	engine := s.engine
	if prov != (signals.Provisional{}) {
		var err error
		engine, err = scoring.NewEngine(s.tree, s.lookups.Registry(prov), s.engineOpts...)
		if err != nil {
			return nil, err
		}
	}

	result, err := engine.SimulateScore(ctx, target, overrides)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	s.record(ctx, result)

	e := surface.Explain(s.tree, result)
	e.ComputedAt = time.Now().UTC()
	return e, nil
}

func (s *Service) record(ctx context.Context, result *scoring.ScoreResult) {
	if s.recorder != nil {
		s.recorder.RecordScore(ctx, result)
	}
}
