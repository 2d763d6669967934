// Package surface implements the measurement surfaces of the cradle and
// the root finders that locate where a trajectory crosses them.
package surface

import (
	"math"

	"github.com/banshee-data/kaltrack/internal/track"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultMaxIterations bounds the Newton search when a surface does not set
// its own limit.
const DefaultMaxIterations = 100

// Crossing search modes.
const (
	ModeNearest  = 0
	ModeForward  = 1
	ModeBackward = -1
)

// Surface is a measurement boundary. CalcS is an implicit function that
// vanishes on the (unbounded) surface; IsOnSurface applies the bounds.
type Surface interface {
	CalcS(x r3.Vec) float64
	CalcDSDx(x r3.Vec) r3.Vec
	IsOnSurface(x r3.Vec) bool
	OutwardNormal(x r3.Vec) r3.Vec
	// SortingPolicy orders layers in the cradle, innermost first.
	SortingPolicy() float64
	// CalcCrossing finds where p crosses the surface, starting the search at
	// parameter guess. mode 0 accepts the nearest crossing, +1 (-1) only a
	// crossing ahead of (behind) the current position along the momentum.
	CalcCrossing(p track.Path, guess float64, mode int, eps float64) (r3.Vec, float64, bool)
}

// NewtonCrossing solves CalcS(p(s)) = 0 by damped Newton iteration from
// guess. It stops once the update falls below eps and fails on NaN, on a
// flat derivative, after maxIter iterations, off the surface bounds, or when
// the root lies in the wrong direction for mode.
func NewtonCrossing(srf Surface, p track.Path, guess float64, mode int, eps float64, maxIter int) (r3.Vec, float64, bool) {
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	s := guess
	x := p.PointAt(s)
	f := srf.CalcS(x)

	converged := false
	for i := 0; i < maxIter; i++ {
		if math.IsNaN(f) {
			return x, s, false
		}
		d := r3.Dot(srf.CalcDSDx(x), p.DerivAt(s))
		if d == 0 || math.IsNaN(d) {
			return x, s, false
		}
		ds := -f / d

		// halve the update until the residual stops growing
		sn, xn, fn := s+ds, p.PointAt(s+ds), srf.CalcS(p.PointAt(s+ds))
		for k := 0; k < 10 && (math.IsNaN(fn) || math.Abs(fn) > math.Abs(f)); k++ {
			ds /= 2
			sn = s + ds
			xn = p.PointAt(sn)
			fn = srf.CalcS(xn)
		}
		s, x, f = sn, xn, fn
		if math.Abs(ds) < eps {
			converged = true
			break
		}
	}
	if !converged || math.IsNaN(f) {
		return x, s, false
	}
	if !directionOK(s-guess, p.ForwardSign(), mode) || !srf.IsOnSurface(x) {
		return x, s, false
	}
	return x, s, true
}

// directionOK reports whether a parameter increment ds is consistent with
// the search mode.
func directionOK(ds, forwardSign float64, mode int) bool {
	if mode == ModeNearest {
		return true
	}
	return ds*forwardSign*float64(mode) >= 0
}

// pickNearest returns the candidate with the smallest |s| that passes
// accept, after folding helical angles into the requested direction.
func pickNearest(cands []float64, forwardSign float64, mode int, accept func(s float64) bool) (float64, bool) {
	best, found := 0.0, false
	for _, s := range cands {
		if !directionOK(s, forwardSign, mode) || !accept(s) {
			continue
		}
		if !found || math.Abs(s) < math.Abs(best) {
			best, found = s, true
		}
	}
	return best, found
}

func maxIter(n int) int {
	if n <= 0 {
		return DefaultMaxIterations
	}
	return n
}
