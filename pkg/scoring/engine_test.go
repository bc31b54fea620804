package scoring_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credscope/credscope/pkg/scoring"
)

type recordingSink struct {
	mu      sync.Mutex
	records map[scoring.SignalName]error
	calls   int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{records: map[scoring.SignalName]error{}}
}

func (s *recordingSink) RecordSignal(_ context.Context, name scoring.SignalName, _ time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[name] = err
	s.calls++
}

func constant(v float64, calls *atomic.Int32) scoring.Evaluator {
	return func(context.Context, scoring.Target) (float64, error) {
		if calls != nil {
			calls.Add(1)
		}
		return v, nil
	}
}

func staticRegistry(calls *atomic.Int32) scoring.Registry {
	return scoring.Registry{
		scoring.SignalAddressAge:            constant(400, calls),
		scoring.SignalSocialAge:             constant(500, calls),
		scoring.SignalReviewImpact:          constant(scoring.Sigmoid(2, 400, 50), calls),
		scoring.SignalStakeImpact:           constant(scoring.Sigmoid(1.5, 400, 25), calls),
		scoring.SignalBackerImpact:          constant(scoring.Sigmoid(3, 400, 50), calls),
		scoring.SignalInvitationCredibility: constant(1200*0.2, calls),
	}
}

var target = scoring.ProfileTarget(7)

func TestComputeScoreAllSignals(t *testing.T) {
	sink := newRecordingSink()
	engine, err := scoring.NewEngine(scoring.DefaultTree(), staticRegistry(nil), scoring.WithMetrics(sink))
	require.NoError(t, err)

	result, err := engine.ComputeScore(context.Background(), target)
	require.NoError(t, err)

	assert.Empty(t, result.Errors)
	assert.False(t, result.Partial())
	assert.False(t, result.Simulated)
	assert.Len(t, result.Signals, len(scoring.AllSignals()))
	assert.Equal(t, len(scoring.AllSignals()), sink.calls)

	raw := result.RawValues()
	assert.Equal(t, scoring.CalculateScore(scoring.DefaultTree(), raw), result.Score)
	assert.InDelta(t, 50, result.Signals[scoring.SignalAddressAge].Weighted, 1e-9)
	assert.InDelta(t, 240, result.Signals[scoring.SignalInvitationCredibility].Weighted, 1e-9)
}

func TestComputeScoreReviewOnly(t *testing.T) {
	tree := scoring.Tree{
		BaseScore: scoring.DefaultBaseScore,
		Signals: []scoring.SignalDefinition{
			{Name: scoring.SignalReviewImpact, Range: scoring.Range{Min: -400, Max: 400}, Weight: 1},
		},
	}
	registry := scoring.Registry{
		scoring.SignalReviewImpact: func(context.Context, scoring.Target) (float64, error) {
			positive, negative := 3.0, 1.0
			return scoring.Sigmoid(positive-negative, 400, 50), nil
		},
	}
	engine, err := scoring.NewEngine(tree, registry)
	require.NoError(t, err)

	result, err := engine.ComputeScore(context.Background(), target)
	require.NoError(t, err)

	review := result.Signals[scoring.SignalReviewImpact]
	assert.InDelta(t, 15.09, review.Raw, 0.01)
	assert.Equal(t, 1015.0, result.Score)
}

func TestComputeScoreIsolatesFailure(t *testing.T) {
	healthy, err := scoring.NewEngine(scoring.DefaultTree(), staticRegistry(nil))
	require.NoError(t, err)
	baseline, err := healthy.ComputeScore(context.Background(), target)
	require.NoError(t, err)

	failures := map[string]scoring.Evaluator{
		"returned error": func(context.Context, scoring.Target) (float64, error) {
			return 0, errors.New("indexer unreachable")
		},
		"panic": func(context.Context, scoring.Target) (float64, error) {
			panic("malformed response")
		},
		"non-finite value": func(context.Context, scoring.Target) (float64, error) {
			var zero float64
			return 1 / zero, nil
		},
		"timeout honouring context": func(ctx context.Context, _ scoring.Target) (float64, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
		"timeout ignoring context": func(context.Context, scoring.Target) (float64, error) {
			time.Sleep(500 * time.Millisecond)
			return 99, nil
		},
	}

	for name, failing := range failures {
		t.Run(name, func(t *testing.T) {
			registry := staticRegistry(nil)
			registry[scoring.SignalStakeImpact] = failing
			sink := newRecordingSink()

			engine, err := scoring.NewEngine(scoring.DefaultTree(), registry,
				scoring.WithTimeout(50*time.Millisecond),
				scoring.WithMetrics(sink))
			require.NoError(t, err)

			result, err := engine.ComputeScore(context.Background(), target)
			require.NoError(t, err)

			assert.Equal(t, []scoring.SignalName{scoring.SignalStakeImpact}, result.Errors)
			assert.True(t, result.Partial())

			stake := result.Signals[scoring.SignalStakeImpact]
			assert.True(t, stake.Failed)
			assert.NotEmpty(t, stake.Error)
			assert.Zero(t, stake.Raw)
			assert.Zero(t, stake.Weighted)
			assert.NotContains(t, result.RawValues(), scoring.SignalStakeImpact)

			for _, other := range scoring.AllSignals() {
				if other == scoring.SignalStakeImpact {
					continue
				}
				assert.Equal(t, baseline.Signals[other].Raw, result.Signals[other].Raw, other)
				assert.Equal(t, baseline.Signals[other].Weighted, result.Signals[other].Weighted, other)
			}

			want := baseline.Score - baseline.Signals[scoring.SignalStakeImpact].Weighted
			assert.InDelta(t, want, result.Score, 1)

			sink.mu.Lock()
			defer sink.mu.Unlock()
			assert.Equal(t, len(scoring.AllSignals()), sink.calls)
			assert.Error(t, sink.records[scoring.SignalStakeImpact])
		})
	}
}

func TestComputeScoreTimeoutIsTimeoutError(t *testing.T) {
	registry := staticRegistry(nil)
	registry[scoring.SignalAddressAge] = func(ctx context.Context, _ scoring.Target) (float64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	sink := newRecordingSink()
	engine, err := scoring.NewEngine(scoring.DefaultTree(), registry,
		scoring.WithTimeout(20*time.Millisecond), scoring.WithMetrics(sink))
	require.NoError(t, err)

	result, err := engine.ComputeScore(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, []scoring.SignalName{scoring.SignalAddressAge}, result.Errors)
	assert.Contains(t, result.Signals[scoring.SignalAddressAge].Error, scoring.ErrSignalTimeout.Error())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.ErrorIs(t, sink.records[scoring.SignalAddressAge], scoring.ErrSignalTimeout)
}

func TestComputeScoreRunsSignalsConcurrently(t *testing.T) {
	tree := scoring.DefaultTree()
	n := len(tree.Signals)
	var arrived sync.WaitGroup
	arrived.Add(n)
	allHere := make(chan struct{})
	go func() {
		arrived.Wait()
		close(allHere)
	}()

	barrier := func(ctx context.Context, _ scoring.Target) (float64, error) {
		arrived.Done()
		select {
		case <-allHere:
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	registry := scoring.Registry{}
	for _, name := range tree.Names() {
		registry[name] = barrier
	}

	engine, err := scoring.NewEngine(tree, registry, scoring.WithTimeout(2*time.Second))
	require.NoError(t, err)

	result, err := engine.ComputeScore(context.Background(), target)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
}

func TestNewEngineUnregisteredSignal(t *testing.T) {
	var calls atomic.Int32
	registry := staticRegistry(&calls)
	delete(registry, scoring.SignalBackerImpact)

	engine, err := scoring.NewEngine(scoring.DefaultTree(), registry)
	require.Error(t, err)
	assert.Nil(t, engine)

	var cfgErr *scoring.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, scoring.SignalBackerImpact, cfgErr.Signal)
	assert.Zero(t, calls.Load())
}

func TestComputeScoreInvalidTarget(t *testing.T) {
	engine, err := scoring.NewEngine(scoring.DefaultTree(), staticRegistry(nil))
	require.NoError(t, err)

	_, err = engine.ComputeScore(context.Background(), scoring.Target{Kind: scoring.TargetAddress})
	var cfgErr *scoring.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Empty(t, cfgErr.Signal)
	assert.Contains(t, err.Error(), "invalid target")
}

func TestSimulateScoreFullOverridesSkipLookups(t *testing.T) {
	var calls atomic.Int32
	sink := newRecordingSink()
	engine, err := scoring.NewEngine(scoring.DefaultTree(), staticRegistry(&calls), scoring.WithMetrics(sink))
	require.NoError(t, err)

	overrides := map[scoring.SignalName]float64{
		scoring.SignalAddressAge:            800,
		scoring.SignalSocialAge:             20,
		scoring.SignalReviewImpact:          -35,
		scoring.SignalStakeImpact:           120,
		scoring.SignalBackerImpact:          60,
		scoring.SignalInvitationCredibility: 0,
	}
	result, err := engine.SimulateScore(context.Background(), target, overrides)
	require.NoError(t, err)

	assert.Zero(t, calls.Load())
	assert.Zero(t, sink.calls)
	assert.True(t, result.Simulated)
	assert.Empty(t, result.Errors)
	assert.Equal(t, scoring.CalculateScore(scoring.DefaultTree(), overrides), result.Score)
	for name, v := range overrides {
		assert.True(t, result.Signals[name].Override)
		assert.Equal(t, v, result.Signals[name].Raw)
	}
}

func TestSimulateScorePartialOverrides(t *testing.T) {
	var calls atomic.Int32
	registry := staticRegistry(&calls)
	registry[scoring.SignalSocialAge] = func(context.Context, scoring.Target) (float64, error) {
		return 0, errors.New("cache down")
	}
	engine, err := scoring.NewEngine(scoring.DefaultTree(), registry)
	require.NoError(t, err)

	result, err := engine.SimulateScore(context.Background(), target, map[scoring.SignalName]float64{
		scoring.SignalReviewImpact: 300,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []scoring.SignalName{scoring.SignalSocialAge}, result.Errors)
	assert.Equal(t, 300.0, result.Signals[scoring.SignalReviewImpact].Raw)
}

func TestSimulateScoreUnknownOverride(t *testing.T) {
	tree := scoring.Tree{
		BaseScore: 1000,
		Signals: []scoring.SignalDefinition{
			{Name: scoring.SignalReviewImpact, Range: scoring.Range{Min: -400, Max: 400}},
		},
	}
	var calls atomic.Int32
	engine, err := scoring.NewEngine(tree, staticRegistry(&calls))
	require.NoError(t, err)

	_, err = engine.SimulateScore(context.Background(), target, map[scoring.SignalName]float64{
		scoring.SignalStakeImpact: 10,
	})
	var cfgErr *scoring.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Zero(t, calls.Load())
}

func TestSimulateScoreRejectsNonFiniteOverride(t *testing.T) {
	var calls atomic.Int32
	engine, err := scoring.NewEngine(scoring.DefaultTree(), staticRegistry(&calls))
	require.NoError(t, err)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := engine.SimulateScore(context.Background(), target, map[scoring.SignalName]float64{
			scoring.SignalStakeImpact: v,
		})
		var cfgErr *scoring.ConfigurationError
		require.True(t, errors.As(err, &cfgErr), "override %v: got %v", v, err)
		assert.Equal(t, scoring.SignalStakeImpact, cfgErr.Signal)
	}
	assert.Zero(t, calls.Load())
}
