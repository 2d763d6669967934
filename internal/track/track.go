// Package track implements the trajectory models used by the cradle: a
// closed-form helix for locally uniform fields, a straight line for
// field-free regions and a numerically integrated track for arbitrary
// fields.
//
// All models share the helical state-vector layout
//
//	(dρ, φ0, κ, dz, tanλ [, t0])
//
// defined about a pivot point, so the Kalman filter sees a single
// parameterisation whichever model moved the state. Units are mm, Tesla,
// GeV and ns.
package track

import (
	"errors"
	"math"

	"github.com/banshee-data/kaltrack/internal/geom"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// State vector indices.
const (
	IdxDrho  = 0
	IdxPhi0  = 1
	IdxKappa = 2
	IdxDz    = 3
	IdxTanL  = 4
	IdxT0    = 5
)

// Supported state vector sizes.
const (
	DimSpatial  = 5
	DimWithTime = 6
)

// CurvatureConstant converts field and momentum into a radius:
// R[mm] = pT[GeV] / (CurvatureConstant · B[T]).
const CurvatureConstant = 0.299792458e-3

// PionMass is the default mass hypothesis in GeV.
const PionMass = 0.13957018

var (
	// ErrNoConvergence is returned when an iterative computation gives up.
	ErrNoConvergence = errors.New("track: no convergence")
	// ErrStepTooSmall is returned when adaptive step control collapses.
	ErrStepTooSmall = errors.New("track: adaptive step below minimum")
	// ErrDegenerate is returned for geometrically undefined moves.
	ErrDegenerate = errors.New("track: degenerate geometry")
)

// Path is the geometric view of a trajectory needed by surface root
// finders. The parameter s is a deflection angle for helices and a path
// length for lines and integrated tracks.
type Path interface {
	// PointAt returns the global position at parameter s.
	PointAt(s float64) r3.Vec
	// DerivAt returns dx/ds in global coordinates.
	DerivAt(s float64) r3.Vec
	// ForwardSign is +1 if increasing s moves along the momentum, -1 otherwise.
	ForwardSign() float64
}

// Trajectory is a Path that can be re-pivoted and exchanged with a state
// vector.
type Trajectory interface {
	Path

	// Pivot returns the pivot in the trajectory's local frame.
	Pivot() r3.Vec
	// GlobalPivot returns the pivot in global coordinates.
	GlobalPivot() r3.Vec
	Frame() geom.Frame
	// Field returns the local field magnitude the parameters refer to, 0 if none.
	Field() float64
	Dim() int

	// MoveTo moves the pivot to the global point to, reached at parameter s,
	// and returns the parameter actually used together with the Jacobian of
	// the new parameters with respect to the old ones.
	MoveTo(to r3.Vec, s float64) (float64, *mat.Dense, error)
	// PutInto writes the parameters into sv.
	PutInto(sv *mat.VecDense)
	// SetTo replaces the parameters and local pivot.
	SetTo(sv *mat.VecDense, pivot r3.Vec)

	Kappa() float64
	TanLambda() float64
	Mass() float64
	// PathLength converts a parameter increment into an arc length.
	PathLength(ds float64) float64
}

// Alpha returns the helix scale 1/(c·B) for a field of bz Tesla.
func Alpha(bz float64) float64 {
	return 1 / (CurvatureConstant * bz)
}

// EquivalentDeflection returns the helical deflection angle that covers the
// arc length s along t, signed so that forward motion keeps the helix
// convention (κ·φ < 0 for a positive field).
func EquivalentDeflection(t Trajectory, s float64) float64 {
	unit := t.PathLength(1)
	if unit == 0 {
		return 0
	}
	return t.ForwardSign() * s / unit
}

func checkDim(n int) int {
	if n != DimSpatial && n != DimWithTime {
		panic("track: state vector must have 5 or 6 rows")
	}
	return n
}

func identity(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

func secLambda(tanl float64) float64 {
	return math.Sqrt(1 + tanl*tanl)
}
