package engine

import (
	"fmt"
	"math"
)

// Curve shapes the gain trajectory of a crossfade. Apply maps transition
// progress to a gain pair for the outgoing and incoming streams.
type Curve int

const (
	// Linear ramps both gains in a straight line. The summed power dips
	// mid-transition, which is audible on correlated material.
	Linear Curve = iota
	// EqualPower keeps the combined power constant across the transition.
	EqualPower
	// Logarithmic drops the outgoing stream fast while the incoming one
	// rises on an equal-power slope.
	Logarithmic
	// SCurve eases in and out with a smoothstep ramp.
	SCurve
)

var curveNames = map[Curve]string{
	Linear:      "linear",
	EqualPower:  "equal-power",
	Logarithmic: "logarithmic",
	SCurve:      "s-curve",
}

func (c Curve) String() string {
	if name, ok := curveNames[c]; ok {
		return name
	}
	return fmt.Sprintf("curve(%d)", int(c))
}

// ParseCurve maps a configuration name to its Curve.
func ParseCurve(name string) (Curve, error) {
	for c, n := range curveNames {
		if n == name {
			return c, nil
		}
	}
	return Linear, fmt.Errorf("unknown crossfade curve %q", name)
}

// Apply returns the outgoing and incoming gain for progress p in [0, 1].
// Out-of-range progress is clamped.
func (c Curve) Apply(p float64) (fadeOut, fadeIn float64) {
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	switch c {
	case EqualPower:
		return math.Sqrt(1 - p), math.Sqrt(p)
	case Logarithmic:
		return (1 - p) * (1 - p), math.Sqrt(p)
	case SCurve:
		s := p * p * (3 - 2*p)
		return 1 - s, s
	default:
		return 1 - p, p
	}
}
