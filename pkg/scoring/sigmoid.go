package scoring

import "math"

const (
	// DefaultScale is the asymptotic bound of Sigmoid.
	DefaultScale = 400.0
	// DefaultPace controls how quickly Sigmoid approaches its bound.
	DefaultPace = 50.0
)

// Sigmoid bounds an unbounded metric into (-scale, scale):
//
//	sigmoid(x) = x / (1 + |x| + pace) * scale
//
// It is zero at zero, strictly increasing in x for positive scale and pace,
// and never reaches scale. A larger pace flattens the curve.
func Sigmoid(x, scale, pace float64) float64 {
	r := (x / (1 + math.Abs(x) + pace)) * scale
	// for huge |x| the ratio rounds to exactly 1
	if bound := math.Abs(scale); math.Abs(r) >= bound {
		return math.Copysign(math.Nextafter(bound, 0), r)
	}
	return r
}
