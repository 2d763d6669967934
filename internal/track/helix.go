package track

import (
	"fmt"
	"math"

	"github.com/banshee-data/kaltrack/internal/geom"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Helix is a charged track in a locally uniform field pointing along the
// local z axis of its frame. A point at deflection angle φ is
//
//	x = x0 + dρ cos φ0 + ρ (cos φ0 − cos(φ0+φ))
//	y = y0 + dρ sin φ0 + ρ (sin φ0 − sin(φ0+φ))
//	z = z0 + dz − ρ tanλ φ
//
// with ρ = α/κ and (x0, y0, z0) the local pivot.
type Helix struct {
	a     [DimWithTime]float64
	dim   int
	pivot r3.Vec
	frame geom.Frame
	bz    float64
	alpha float64
	mass  float64
}

// NewHelix builds a helix from a state vector about a local pivot. bz must
// be non-zero; use Line for field-free regions.
func NewHelix(sv *mat.VecDense, pivot r3.Vec, frame geom.Frame, bz, mass float64) *Helix {
	h := &Helix{
		dim:   checkDim(sv.Len()),
		pivot: pivot,
		frame: frame,
		bz:    bz,
		alpha: Alpha(bz),
		mass:  mass,
	}
	for i := 0; i < h.dim; i++ {
		h.a[i] = sv.AtVec(i)
	}
	return h
}

// HelixFromState builds the helix through the global point x with global
// momentum p (GeV) and the given charge sign. The pivot is x, so dρ = dz = 0.
func HelixFromState(x, p r3.Vec, charge float64, frame geom.Frame, bz float64, dim int, t0, mass float64) *Helix {
	lp := frame.DirToLocal(p)
	pt := math.Hypot(lp.X, lp.Y)
	h := &Helix{
		dim:   checkDim(dim),
		pivot: frame.ToLocal(x),
		frame: frame,
		bz:    bz,
		alpha: Alpha(bz),
		mass:  mass,
	}
	h.a[IdxPhi0] = math.Atan2(-lp.X, lp.Y)
	h.a[IdxKappa] = sign(charge) / pt
	h.a[IdxTanL] = lp.Z / pt
	h.a[IdxT0] = t0
	return h
}

func (h *Helix) Dim() int             { return h.dim }
func (h *Helix) Pivot() r3.Vec        { return h.pivot }
func (h *Helix) GlobalPivot() r3.Vec  { return h.frame.ToGlobal(h.pivot) }
func (h *Helix) Frame() geom.Frame    { return h.frame }
func (h *Helix) Field() float64       { return h.bz }
func (h *Helix) Kappa() float64       { return h.a[IdxKappa] }
func (h *Helix) TanLambda() float64   { return h.a[IdxTanL] }
func (h *Helix) Mass() float64        { return h.mass }
func (h *Helix) Rho() float64         { return h.alpha / h.a[IdxKappa] }
func (h *Helix) Charge() float64      { return sign(h.a[IdxKappa]) }
func (h *Helix) ForwardSign() float64 { return -sign(h.Rho()) }

// PathLength returns the arc length swept by a deflection of dphi.
func (h *Helix) PathLength(dphi float64) float64 {
	return math.Abs(h.Rho()*dphi) * secLambda(h.a[IdxTanL])
}

// LocalPointAt returns the point at deflection phi in the local frame.
func (h *Helix) LocalPointAt(phi float64) r3.Vec {
	dr, phi0, tanl, dz := h.a[IdxDrho], h.a[IdxPhi0], h.a[IdxTanL], h.a[IdxDz]
	rho := h.Rho()
	csf0, snf0 := math.Cos(phi0), math.Sin(phi0)
	csf, snf := math.Cos(phi0+phi), math.Sin(phi0+phi)
	return r3.Vec{
		X: h.pivot.X + dr*csf0 + rho*(csf0-csf),
		Y: h.pivot.Y + dr*snf0 + rho*(snf0-snf),
		Z: h.pivot.Z + dz - rho*tanl*phi,
	}
}

// PointAt returns the global point at deflection phi.
func (h *Helix) PointAt(phi float64) r3.Vec {
	return h.frame.ToGlobal(h.LocalPointAt(phi))
}

// DerivAt returns dx/dφ in global coordinates.
func (h *Helix) DerivAt(phi float64) r3.Vec {
	rho := h.Rho()
	fi := h.a[IdxPhi0] + phi
	return h.frame.DirToGlobal(r3.Vec{
		X: rho * math.Sin(fi),
		Y: -rho * math.Cos(fi),
		Z: -rho * h.a[IdxTanL],
	})
}

// Momentum returns the global momentum at the point of closest approach to
// the pivot.
func (h *Helix) Momentum() r3.Vec {
	pt := 1 / math.Abs(h.a[IdxKappa])
	phi0 := h.a[IdxPhi0]
	return h.frame.DirToGlobal(r3.Vec{
		X: -pt * math.Sin(phi0),
		Y: pt * math.Cos(phi0),
		Z: pt * h.a[IdxTanL],
	})
}

// PutInto writes the helix parameters into sv.
func (h *Helix) PutInto(sv *mat.VecDense) {
	for i := 0; i < h.dim; i++ {
		sv.SetVec(i, h.a[i])
	}
}

// SetTo replaces the parameters and the local pivot.
func (h *Helix) SetTo(sv *mat.VecDense, pivot r3.Vec) {
	h.dim = checkDim(sv.Len())
	for i := 0; i < h.dim; i++ {
		h.a[i] = sv.AtVec(i)
	}
	h.pivot = pivot
}

// State returns a copy of the active parameters.
func (h *Helix) State() []float64 {
	out := make([]float64, h.dim)
	copy(out, h.a[:h.dim])
	return out
}

// Clone returns an independent copy.
func (h *Helix) Clone() *Helix {
	c := *h
	return &c
}

// MoveTo moves the pivot to the global point to. fid is the deflection
// angle at which the helix reaches to; only its number of full turns is
// used, the angle itself is recomputed. The returned Jacobian is
// ∂a'/∂a for a fixed new pivot.
func (h *Helix) MoveTo(to r3.Vec, fid float64) (float64, *mat.Dense, error) {
	x1 := h.frame.ToLocal(to)

	drp := h.a[IdxDrho]
	phi0p := h.a[IdxPhi0]
	kappap := h.a[IdxKappa]
	dzp := h.a[IdxDz]
	tanlp := h.a[IdxTanL]

	rho := h.alpha / kappap
	rdr := drp + rho
	csf0p, snf0p := math.Cos(phi0p), math.Sin(phi0p)
	xc := h.pivot.X + rdr*csf0p
	yc := h.pivot.Y + rdr*snf0p

	var phi0 float64
	if rho > 0 {
		phi0 = math.Atan2(yc-x1.Y, xc-x1.X)
	} else {
		phi0 = math.Atan2(x1.Y-yc, x1.X-xc)
	}
	csf, snf := math.Cos(phi0), math.Sin(phi0)
	dr := (xc-x1.X)*csf + (yc-x1.Y)*snf - rho
	if dr+rho == 0 {
		return fid, nil, fmt.Errorf("helix move to centre of curvature: %w", ErrDegenerate)
	}

	dphi := geom.NormalizeAngle(phi0 - phi0p)
	fid += geom.NormalizeAngle(dphi - fid)
	dz := h.pivot.Z + dzp - x1.Z - rho*tanlp*fid

	csfd := csf*csf0p + snf*snf0p
	snfd := snf*csf0p - csf*snf0p
	rdrpr := 1 / (rho + dr)
	rcpar := rho / kappap

	F := identity(h.dim)
	F.Set(0, 0, csfd)
	F.Set(0, 1, rdr*snfd)
	F.Set(0, 2, rcpar*(1-csfd))

	F.Set(1, 0, -rdrpr*snfd)
	F.Set(1, 1, rdr*rdrpr*csfd)
	F.Set(1, 2, rcpar*rdrpr*snfd)

	F.Set(3, 0, rho*rdrpr*tanlp*snfd)
	F.Set(3, 1, rho*tanlp*(1-rdr*rdrpr*csfd))
	F.Set(3, 2, rcpar*tanlp*(fid-rho*rdrpr*snfd))
	F.Set(3, 4, -rho*fid)

	h.a[IdxDrho] = dr
	h.a[IdxPhi0] = phi0
	h.a[IdxDz] = dz
	h.pivot = x1

	return fid, F, nil
}
