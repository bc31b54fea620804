package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/credscope/credscope/pkg/scoring"
)

// Signal evaluation outcomes as recorded in the status attribute.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Sink records signal timings as OpenTelemetry metrics.
type Sink struct {
	duration metric.Float64Histogram
	failures metric.Int64Counter
	scores   metric.Int64Counter
}

var _ scoring.MetricsSink = (*Sink)(nil)

// NewSink creates the instruments on mp.
func NewSink(mp metric.MeterProvider) (*Sink, error) {
	meter := mp.Meter(ScopeName)

	duration, err := meter.Float64Histogram("credscope.signal.duration",
		metric.WithDescription("Signal evaluation time"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	failures, err := meter.Int64Counter("credscope.signal.failures",
		metric.WithDescription("Signal evaluations that failed or timed out"))
	if err != nil {
		return nil, fmt.Errorf("create failure counter: %w", err)
	}
	scores, err := meter.Int64Counter("credscope.score.computed",
		metric.WithDescription("Score calculations completed"))
	if err != nil {
		return nil, fmt.Errorf("create score counter: %w", err)
	}
	return &Sink{duration: duration, failures: failures, scores: scores}, nil
}

// RecordSignal implements scoring.MetricsSink.
func (s *Sink) RecordSignal(ctx context.Context, name scoring.SignalName, elapsed time.Duration, err error) {
	status := StatusOK
	switch {
	case errors.Is(err, scoring.ErrSignalTimeout):
		status = StatusTimeout
	case err != nil:
		status = StatusError
	}
	attrs := metric.WithAttributes(
		attribute.String("signal", string(name)),
		attribute.String("status", status),
	)
	s.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	if err != nil {
		s.failures.Add(ctx, 1, attrs)
	}
}

// RecordScore counts a completed calculation.
func (s *Sink) RecordScore(ctx context.Context, result *scoring.ScoreResult) {
	s.scores.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("partial", result.Partial()),
		attribute.Bool("simulated", result.Simulated),
	))
}
