package track

import (
	"math"

	"github.com/banshee-data/kaltrack/internal/geom"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Line is a straight track for field-free regions. It keeps the helical
// parameter layout; κ only carries the momentum for material effects. In
// frame coordinates a point at transverse path length t is
//
//	x = x0 + dρ cos φ0 − t sin φ0
//	y = y0 + dρ sin φ0 + t cos φ0
//	z = z0 + dz + t tanλ
type Line struct {
	a     [DimWithTime]float64
	dim   int
	pivot r3.Vec // in frame coordinates
	frame geom.Frame
	mass  float64
}

// NewLine builds a line from a state vector about a pivot given in frame
// coordinates. φ0 and tanλ are read in the same frame.
func NewLine(sv *mat.VecDense, pivot r3.Vec, frame geom.Frame, mass float64) *Line {
	l := &Line{dim: checkDim(sv.Len()), pivot: pivot, frame: frame, mass: mass}
	for i := 0; i < l.dim; i++ {
		l.a[i] = sv.AtVec(i)
	}
	return l
}

func (l *Line) Dim() int             { return l.dim }
func (l *Line) Pivot() r3.Vec        { return l.pivot }
func (l *Line) GlobalPivot() r3.Vec  { return l.frame.ToGlobal(l.pivot) }
func (l *Line) Frame() geom.Frame    { return l.frame }
func (l *Line) Field() float64       { return 0 }
func (l *Line) Kappa() float64       { return l.a[IdxKappa] }
func (l *Line) TanLambda() float64   { return l.a[IdxTanL] }
func (l *Line) Mass() float64        { return l.mass }
func (l *Line) ForwardSign() float64 { return 1 }

// PathLength returns the arc length for a transverse length dt.
func (l *Line) PathLength(dt float64) float64 {
	return math.Abs(dt) * secLambda(l.a[IdxTanL])
}

// LocalPointAt returns the point at transverse path length t in frame
// coordinates.
func (l *Line) LocalPointAt(t float64) r3.Vec {
	dr, phi0, dz, tanl := l.a[IdxDrho], l.a[IdxPhi0], l.a[IdxDz], l.a[IdxTanL]
	csf0, snf0 := math.Cos(phi0), math.Sin(phi0)
	return r3.Vec{
		X: l.pivot.X + dr*csf0 - t*snf0,
		Y: l.pivot.Y + dr*snf0 + t*csf0,
		Z: l.pivot.Z + dz + t*tanl,
	}
}

// PointAt returns the global point at transverse path length t.
func (l *Line) PointAt(t float64) r3.Vec { return l.frame.ToGlobal(l.LocalPointAt(t)) }

// DerivAt returns the global dx/dt, which is constant.
func (l *Line) DerivAt(float64) r3.Vec {
	phi0 := l.a[IdxPhi0]
	return l.frame.DirToGlobal(r3.Vec{X: -math.Sin(phi0), Y: math.Cos(phi0), Z: l.a[IdxTanL]})
}

func (l *Line) PutInto(sv *mat.VecDense) {
	for i := 0; i < l.dim; i++ {
		sv.SetVec(i, l.a[i])
	}
}

// SetTo replaces the parameters and the local pivot.
func (l *Line) SetTo(sv *mat.VecDense, pivot r3.Vec) {
	l.dim = checkDim(sv.Len())
	for i := 0; i < l.dim; i++ {
		l.a[i] = sv.AtVec(i)
	}
	l.pivot = pivot
}

// MoveTo moves the pivot to the global point to, keeping the frame. The
// returned parameter is the transverse path length from the old point of
// closest approach to the new one; the input t is ignored because a line
// has a single candidate.
func (l *Line) MoveTo(to r3.Vec, _ float64) (float64, *mat.Dense, error) {
	x1 := l.frame.ToLocal(to)
	dr, phi0, dz, tanl := l.a[IdxDrho], l.a[IdxPhi0], l.a[IdxDz], l.a[IdxTanL]
	csf0, snf0 := math.Cos(phi0), math.Sin(phi0)

	dx := x1.X - l.pivot.X
	dy := x1.Y - l.pivot.Y
	t := -dx*snf0 + dy*csf0 // (x1-x0)·w
	u := dx*csf0 + dy*snf0  // (x1-x0)·u

	F := identity(l.dim)
	F.Set(0, 1, -t)
	F.Set(3, 1, -tanl*u)
	F.Set(3, 4, t)

	l.a[IdxDrho] = dr - u
	l.a[IdxDz] = l.pivot.Z + dz + t*tanl - x1.Z
	l.pivot = x1

	return t, F, nil
}
