package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// DefaultTimeout bounds one ComputeScore or SimulateScore call.
const DefaultTimeout = 5 * time.Second

// Evaluator produces the raw value of one signal for a target. It returns a
// definite number for "no data" and an error only for operational failures.
type Evaluator func(ctx context.Context, target Target) (float64, error)

// Registry maps signal names to their evaluators.
type Registry map[SignalName]Evaluator

// MetricsSink receives the duration of every evaluator invocation,
// successful or not.
type MetricsSink interface {
	RecordSignal(ctx context.Context, name SignalName, elapsed time.Duration, err error)
}

type nopSink struct{}

func (nopSink) RecordSignal(context.Context, SignalName, time.Duration, error) {}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the request-scoped deadline. Signals still pending when
// it expires are recorded as failed.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMetrics sets the sink that receives per-signal timings.
func WithMetrics(sink MetricsSink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine evaluates every signal of a calculation tree for a target and
// combines the results into a score.
type Engine struct {
	tree     Tree
	registry Registry
	timeout  time.Duration
	sink     MetricsSink
	logger   *slog.Logger
}

// NewEngine creates an engine for tree. Every signal of the tree must have an
// evaluator in registry; otherwise a *ConfigurationError is returned and
// nothing is evaluated.
func NewEngine(tree Tree, registry Registry, opts ...Option) (*Engine, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	if err := checkRegistry(tree, registry); err != nil {
		return nil, err
	}

	e := &Engine{
		tree:     tree,
		registry: registry,
		timeout:  DefaultTimeout,
		sink:     nopSink{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func checkRegistry(tree Tree, registry Registry) error {
	for _, def := range tree.Signals {
		if registry[def.Name] == nil {
			return &ConfigurationError{Signal: def.Name, Reason: "no evaluator registered"}
		}
	}
	return nil
}

// Tree returns the calculation tree the engine evaluates.
func (e *Engine) Tree() Tree { return e.tree }

// ComputeScore evaluates all signals for target concurrently and waits for
// every one of them to settle. Failed signals are listed in the result's
// Errors and contribute zero; only configuration errors are returned.
func (e *Engine) ComputeScore(ctx context.Context, target Target) (*ScoreResult, error) {
	return e.run(ctx, target, nil)
}

// SimulateScore is ComputeScore with overrides: a signal present in overrides
// is taken verbatim, its evaluator is not invoked and no timing is recorded.
func (e *Engine) SimulateScore(ctx context.Context, target Target, overrides map[SignalName]float64) (*ScoreResult, error) {
	for name, v := range overrides {
		if _, ok := e.tree.Definition(name); !ok {
			return nil, &ConfigurationError{Signal: name, Reason: "override for a signal outside the calculation tree"}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ConfigurationError{Signal: name, Reason: fmt.Sprintf("override value %v is not finite", v)}
		}
	}
	result, err := e.run(ctx, target, overrides)
	if err != nil {
		return nil, err
	}
	result.Simulated = true
	return result, nil
}

type outcome struct {
	raw      float64
	err      error
	elapsed  time.Duration
	override bool
}

func (e *Engine) run(ctx context.Context, target Target, overrides map[SignalName]float64) (*ScoreResult, error) {
	if err := checkRegistry(e.tree, e.registry); err != nil {
		return nil, err
	}
	if err := target.Validate(); err != nil {
		return nil, &ConfigurationError{Reason: "invalid target: " + err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// One slot per signal; each goroutine writes only its own.
	outcomes := make([]outcome, len(e.tree.Signals))

	var wg sync.WaitGroup
	for i, def := range e.tree.Signals {
		if v, ok := overrides[def.Name]; ok {
			outcomes[i] = outcome{raw: v, override: true}
			continue
		}
		wg.Add(1)
		go func(i int, name SignalName, eval Evaluator) {
			defer wg.Done()
			outcomes[i] = e.evaluate(ctx, name, eval, target)
		}(i, def.Name, e.registry[def.Name])
	}
	wg.Wait()

	result := &ScoreResult{
		Target:  target,
		Signals: make(map[SignalName]SignalResult, len(e.tree.Signals)),
		Errors:  []SignalName{},
	}
	raw := make(map[SignalName]float64, len(e.tree.Signals))

	for i, def := range e.tree.Signals {
		o := outcomes[i]
		sr := SignalResult{
			Name:     def.Name,
			Duration: o.elapsed,
			Override: o.override,
		}
		if o.err != nil {
			sr.Failed = true
			sr.Error = o.err.Error()
			result.Errors = append(result.Errors, def.Name)
		} else {
			sr.Raw = o.raw
			sr.Weighted = CalculateElement(def, o.raw)
			raw[def.Name] = o.raw
		}
		result.Signals[def.Name] = sr
	}

	result.Score = CalculateScore(e.tree, raw)

	e.logger.Debug("score computed",
		"target", target.String(),
		"score", result.Score,
		"failed", len(result.Errors),
		"overrides", len(overrides))

	return result, nil
}

// evaluate runs one evaluator under the request deadline. An evaluator that
// outlives the deadline is abandoned; its goroutine exits when it returns.
func (e *Engine) evaluate(ctx context.Context, name SignalName, eval Evaluator, target Target) outcome {
	start := time.Now()
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("evaluator panicked: %v", r)}
			}
		}()
		v, err := eval(ctx, target)
		done <- outcome{raw: v, err: err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-ctx.Done():
		o = outcome{err: ctx.Err()}
	}
	o.elapsed = time.Since(start)

	switch {
	case o.err != nil && errors.Is(o.err, context.DeadlineExceeded):
		o.err = fmt.Errorf("%w after %s", ErrSignalTimeout, o.elapsed.Round(time.Millisecond))
	case o.err == nil && (math.IsNaN(o.raw) || math.IsInf(o.raw, 0)):
		o.err = fmt.Errorf("non-finite value %v", o.raw)
	}

	e.sink.RecordSignal(context.WithoutCancel(ctx), name, o.elapsed, o.err)

	if o.err != nil {
		o.err = &EvaluationError{Signal: name, Err: o.err}
		e.logger.Warn("signal evaluation failed",
			"signal", string(name),
			"target", target.String(),
			"elapsed_ms", o.elapsed.Milliseconds(),
			"error", o.err)
		o.raw = 0
		return o
	}

	e.logger.Debug("signal evaluated",
		"signal", string(name),
		"raw", o.raw,
		"elapsed_ms", o.elapsed.Milliseconds())
	return o
}
