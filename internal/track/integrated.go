package track

import (
	"fmt"
	"math"

	"github.com/banshee-data/kaltrack/internal/bfield"
	"github.com/banshee-data/kaltrack/internal/geom"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Integrated is a track propagated by numerical integration of the
// equations of motion through an arbitrary field. Its path parameter is the
// signed arc length from the current position. The state-vector view is
// the helix tangent to the track at the current position, expressed in a
// local frame whose z axis follows the field sampled there.
type Integrated struct {
	x     r3.Vec // global position
	dir   r3.Vec // global unit direction
	qop   float64
	t0    float64
	dim   int
	mass  float64
	frame geom.Frame
	bz    float64
	field bfield.Field
	cfg   IntegratorSettings

	memoValid bool
	memoS     float64
	memoY     phaseState
}

// NewIntegrated seeds an integrated track from the point of closest
// approach of h. The local frame and field of h are kept until the first
// move.
func NewIntegrated(h *Helix, field bfield.Field, cfg IntegratorSettings) *Integrated {
	p := h.Momentum()
	return &Integrated{
		x:     h.PointAt(0),
		dir:   r3.Unit(p),
		qop:   h.Charge() / r3.Norm(p),
		t0:    h.a[IdxT0],
		dim:   h.dim,
		mass:  h.mass,
		frame: h.frame,
		bz:    h.bz,
		field: field,
		cfg:   cfg.withDefaults(),
	}
}

// Helix returns the helix tangent to the track at its current position.
func (it *Integrated) Helix() *Helix {
	p := r3.Scale(1/math.Abs(it.qop), it.dir)
	return HelixFromState(it.x, p, sign(it.qop), it.frame, it.bz, it.dim, it.t0, it.mass)
}

func (it *Integrated) eval(s float64) (phaseState, error) {
	if it.memoValid && it.memoS == s {
		return it.memoY, nil
	}
	eq := lorentz{field: it.field, qop: it.qop}
	y, _, err := eq.integrate(newPhaseState(it.x, it.dir), s, it.cfg)
	if err != nil {
		return y, err
	}
	it.memoValid, it.memoS, it.memoY = true, s, y
	return y, nil
}

func nanVec() r3.Vec {
	return r3.Vec{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
}

// PointAt integrates to arc length s. A failed integration yields NaN
// coordinates, which root finders treat as no crossing.
func (it *Integrated) PointAt(s float64) r3.Vec {
	y, err := it.eval(s)
	if err != nil {
		return nanVec()
	}
	return y.pos()
}

// DerivAt returns the unit direction at arc length s.
func (it *Integrated) DerivAt(s float64) r3.Vec {
	y, err := it.eval(s)
	if err != nil {
		return nanVec()
	}
	return y.dir()
}

func (it *Integrated) ForwardSign() float64 { return 1 }
func (it *Integrated) Pivot() r3.Vec        { return it.frame.ToLocal(it.x) }
func (it *Integrated) GlobalPivot() r3.Vec  { return it.x }
func (it *Integrated) Frame() geom.Frame    { return it.frame }
func (it *Integrated) Field() float64       { return it.bz }
func (it *Integrated) Dim() int             { return it.dim }
func (it *Integrated) Kappa() float64       { return it.Helix().Kappa() }
func (it *Integrated) TanLambda() float64   { return it.Helix().TanLambda() }
func (it *Integrated) Mass() float64        { return it.mass }

// PathLength is the identity: the parameter already is an arc length.
func (it *Integrated) PathLength(ds float64) float64 { return math.Abs(ds) }

func (it *Integrated) PutInto(sv *mat.VecDense) { it.Helix().PutInto(sv) }

// SetTo reseeds the track from helix parameters about a local pivot.
func (it *Integrated) SetTo(sv *mat.VecDense, pivot r3.Vec) {
	h := NewHelix(sv, pivot, it.frame, it.bz, it.mass)
	p := h.Momentum()
	it.x = h.PointAt(0)
	it.dir = r3.Unit(p)
	it.qop = h.Charge() / r3.Norm(p)
	it.t0 = h.a[IdxT0]
	it.dim = h.dim
	it.memoValid = false
}

// MoveTo integrates the arc length s to the global point to, rebuilds the
// local frame along the field sampled there (a uniform field keeps the
// current frame) and returns the Jacobian of the new helix parameters with
// respect to the old ones.
func (it *Integrated) MoveTo(to r3.Vec, s float64) (float64, *mat.Dense, error) {
	eq := lorentz{field: it.field, qop: it.qop}
	end, steps, err := eq.integrate(newPhaseState(it.x, it.dir), s, it.cfg)
	if err != nil {
		return s, nil, fmt.Errorf("integrated move: %w", err)
	}

	frame, bz := it.frame, it.bz
	if !bfield.IsUniform(it.field) {
		b := it.field.At(to)
		frame, bz = geom.NewFrame(to, b), r3.Norm(b)
	}
	if bz == 0 {
		return s, nil, fmt.Errorf("integrated move into zero field: %w", ErrDegenerate)
	}

	start := it.Helix()
	nominal := endParams(start, steps, it.field, frame, bz, to, start.a[:it.dim])

	f := func(y, a []float64) {
		out := endParams(start, steps, it.field, frame, bz, to, a)
		for i := range y {
			y[i] = out[i]
		}
		// keep φ0 on the nominal branch so differences do not wrap
		y[IdxPhi0] = nominal[IdxPhi0] + geom.NormalizeAngle(y[IdxPhi0]-nominal[IdxPhi0])
	}
	x0 := make([]float64, it.dim)
	copy(x0, start.a[:it.dim])
	DF := mat.NewDense(it.dim, it.dim, nil)
	fd.Jacobian(DF, f, x0, &fd.JacobianSettings{
		Formula: fd.Central,
		Step:    it.cfg.JacobianStep,
	})

	it.x = to
	it.dir = end.dir()
	it.frame, it.bz = frame, bz
	it.memoValid = false
	return s, DF, nil
}

// endParams maps helix parameters a (about the pivot of ref) through the
// recorded step sequence and returns the parameters of the resulting helix
// about the fixed pivot to in the target frame.
func endParams(ref *Helix, steps []float64, field bfield.Field, frame geom.Frame, bz float64, to r3.Vec, a []float64) []float64 {
	h := ref.Clone()
	copy(h.a[:h.dim], a)
	p := h.Momentum()
	pm := r3.Norm(p)

	eq := lorentz{field: field, qop: h.Charge() / pm}
	y := eq.replay(newPhaseState(h.PointAt(0), p), steps)

	end := HelixFromState(y.pos(), r3.Scale(pm, y.dir()), h.Charge(), frame, bz, h.dim, h.a[IdxT0], h.mass)
	if _, _, err := end.MoveTo(to, 0); err != nil {
		return nanParams(h.dim)
	}

	out := make([]float64, h.dim)
	copy(out, end.a[:h.dim])
	return out
}

func nanParams(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
