package scoring

import (
	"errors"
	"fmt"
)

// ErrSignalTimeout marks a signal that was still pending when the request
// deadline expired.
var ErrSignalTimeout = errors.New("signal evaluation timed out")

// ConfigurationError reports a request the engine cannot evaluate: a signal
// with no registered evaluator, a bad override or a malformed target. Signal
// is empty when the error is not about one signal. It is never transient.
type ConfigurationError struct {
	Signal SignalName
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Signal == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: signal %q: %s", e.Signal, e.Reason)
}

// EvaluationError wraps the failure of a single evaluator. It is recorded in
// ScoreResult.Errors and never returned from ComputeScore or SimulateScore.
type EvaluationError struct {
	Signal SignalName
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating %s: %v", e.Signal, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
