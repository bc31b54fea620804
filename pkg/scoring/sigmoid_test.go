package scoring_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/credscope/credscope/pkg/scoring"
)

func TestSigmoidKnownValue(t *testing.T) {
	assert.InDelta(t, 15.094, scoring.Sigmoid(2, 400, 50), 0.001)
	assert.InDelta(t, 2.0/53.0*400, scoring.Sigmoid(2, scoring.DefaultScale, scoring.DefaultPace), 1e-9)
}

func TestSigmoidZero(t *testing.T) {
	for _, tc := range []struct{ scale, pace float64 }{{400, 50}, {1, 1}, {10, 0.5}, {400, 25}} {
		assert.Zero(t, scoring.Sigmoid(0, tc.scale, tc.pace))
	}
}

func TestSigmoidBounded(t *testing.T) {
	inputs := []float64{-1e12, -5000, -3, -0.5, 0.5, 3, 5000, 1e12, math.MaxFloat64 / 2}
	for _, scale := range []float64{1, 400} {
		for _, pace := range []float64{0.1, 5, 50} {
			for _, x := range inputs {
				got := scoring.Sigmoid(x, scale, pace)
				assert.Less(t, math.Abs(got), scale, "sigmoid(%g, %g, %g)", x, scale, pace)
			}
		}
	}
}

func TestSigmoidStrictlyIncreasing(t *testing.T) {
	prev := scoring.Sigmoid(-1000, 400, 50)
	for x := -999.5; x <= 1000; x += 0.5 {
		cur := scoring.Sigmoid(x, 400, 50)
		if !assert.Greater(t, cur, prev, "x=%g", x) {
			return
		}
		prev = cur
	}
}

func TestSigmoidPaceFlattens(t *testing.T) {
	for _, x := range []float64{1, 10, 100} {
		assert.Greater(t, scoring.Sigmoid(x, 400, 5), scoring.Sigmoid(x, 400, 50))
		assert.Greater(t, scoring.Sigmoid(x, 400, 50), scoring.Sigmoid(x, 400, 500))
	}
}

func TestSigmoidSaturatesBelowScale(t *testing.T) {
	for _, x := range []float64{math.MaxFloat64, -math.MaxFloat64, 1e300, -1e300} {
		got := scoring.Sigmoid(x, 400, 50)
		assert.Less(t, math.Abs(got), 400.0, "x=%g", x)
		assert.Equal(t, math.Signbit(x), math.Signbit(got), "x=%g", x)
		assert.InDelta(t, 400, math.Abs(got), 1e-9, "x=%g", x)
	}
}
