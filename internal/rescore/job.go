// Package rescore refreshes scores that have gone stale.
package rescore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/credscope/credscope/pkg/scoring"
	"github.com/credscope/credscope/pkg/surface"
)

// ErrRunning is returned when a pass is requested while another is in flight.
var ErrRunning = errors.New("rescore already running")

// Source lists targets whose score is missing or older than the freshness window.
type Source interface {
	StaleTargets(ctx context.Context, limit int) ([]scoring.Target, error)
}

// Scorer computes and persists one score.
type Scorer interface {
	Score(ctx context.Context, target scoring.Target) (*surface.Explained, error)
}

// Result summarizes one pass.
type Result struct {
	Rescored int           `json:"rescored"`
	Partial  int           `json:"partial"`
	Errors   int           `json:"errors"`
	Elapsed  time.Duration `json:"-"`
}

// Job runs rescore passes. Only one pass runs at a time.
type Job struct {
	source   Source
	scorer   Scorer
	batch    int
	parallel int
	logger   *slog.Logger
	running  atomic.Bool
}

// Option configures a Job.
type Option func(*Job)

// WithBatch caps how many targets one pass rescores.
func WithBatch(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.batch = n
		}
	}
}

// WithParallelism caps concurrent score computations.
func WithParallelism(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.parallel = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Job) {
		if l != nil {
			j.logger = l
		}
	}
}

// New creates a job with a batch of 500 and parallelism of 4.
func New(source Source, scorer Scorer, opts ...Option) *Job {
	j := &Job{
		source:   source,
		scorer:   scorer,
		batch:    500,
		parallel: 4,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run rescores one batch of stale targets. Individual failures are counted
// and logged; only failing to list targets or cancellation aborts the pass.
func (j *Job) Run(ctx context.Context) (Result, error) {
	if !j.running.CompareAndSwap(false, true) {
		return Result{}, ErrRunning
	}
	defer j.running.Store(false)

	start := time.Now()
	targets, err := j.source.StaleTargets(ctx, j.batch)
	if err != nil {
		return Result{}, err
	}

	var (
		mu  sync.Mutex
		res Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.parallel)
	for _, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e, err := j.scorer.Score(gctx, target)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				j.logger.WarnContext(gctx, "rescore failed", "target", target.String(), "error", err)
				res.Errors++
			case e.Partial:
				res.Rescored++
				res.Partial++
			default:
				res.Rescored++
			}
			return nil
		})
	}
	err = g.Wait()
	res.Elapsed = time.Since(start)

	j.logger.InfoContext(ctx, "rescore pass finished",
		"stale", len(targets), "rescored", res.Rescored, "partial", res.Partial,
		"errors", res.Errors, "elapsed", res.Elapsed)
	return res, err
}

// Running reports whether a pass is in flight.
func (j *Job) Running() bool { return j.running.Load() }
