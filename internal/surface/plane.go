package surface

import (
	"math"

	"github.com/banshee-data/kaltrack/internal/track"
	"gonum.org/v1/gonum/spatial/r3"
)

// Plane is a bounded rectangular surface. U and V = Normal×U span the
// plane; a non-positive half width leaves that direction unbounded.
type Plane struct {
	Center  r3.Vec
	Normal  r3.Vec
	U       r3.Vec
	HalfU   float64
	HalfV   float64
	Sort    float64 // overrides the sorting policy when non-zero
	MaxIter int
}

// NewPlane normalises normal, projects u into the plane and returns the
// resulting plane. A zero or parallel u is replaced by an arbitrary in-plane
// direction.
func NewPlane(center, normal, u r3.Vec, halfU, halfV float64) *Plane {
	n := r3.Unit(normal)
	u = r3.Sub(u, r3.Scale(r3.Dot(u, n), n))
	if r3.Norm(u) < 1e-12 {
		ref := r3.Vec{Z: 1}
		if math.Abs(n.Z) > 0.9 {
			ref = r3.Vec{X: 1}
		}
		u = r3.Cross(ref, n)
	}
	return &Plane{Center: center, Normal: n, U: r3.Unit(u), HalfU: halfU, HalfV: halfV}
}

func (p *Plane) V() r3.Vec { return r3.Cross(p.Normal, p.U) }

func (p *Plane) CalcS(x r3.Vec) float64 {
	return r3.Dot(r3.Sub(x, p.Center), p.Normal)
}

func (p *Plane) CalcDSDx(r3.Vec) r3.Vec { return p.Normal }

func (p *Plane) IsOnSurface(x r3.Vec) bool {
	d := r3.Sub(x, p.Center)
	if math.Abs(r3.Dot(d, p.Normal)) > onSurfaceTol {
		return false
	}
	if p.HalfU > 0 && math.Abs(r3.Dot(d, p.U)) > p.HalfU {
		return false
	}
	if p.HalfV > 0 && math.Abs(r3.Dot(d, p.V())) > p.HalfV {
		return false
	}
	return true
}

// OutwardNormal points away from the global origin.
func (p *Plane) OutwardNormal(r3.Vec) r3.Vec {
	if r3.Dot(p.Center, p.Normal) < 0 {
		return r3.Scale(-1, p.Normal)
	}
	return p.Normal
}

// SortingPolicy is the transverse distance of the centre from the z axis
// unless Sort is set.
func (p *Plane) SortingPolicy() float64 {
	if p.Sort != 0 {
		return p.Sort
	}
	return math.Hypot(p.Center.X, p.Center.Y)
}

func (p *Plane) CalcCrossing(path track.Path, guess float64, mode int, eps float64) (r3.Vec, float64, bool) {
	if l, ok := path.(*track.Line); ok {
		d := r3.Dot(l.DerivAt(0), p.Normal)
		if d == 0 {
			return r3.Vec{}, 0, false
		}
		t := -p.CalcS(l.PointAt(0)) / d
		x := l.PointAt(t)
		if !directionOK(t, l.ForwardSign(), mode) || !p.IsOnSurface(x) {
			return x, t, false
		}
		return x, t, true
	}
	return NewtonCrossing(p, path, guess, mode, eps, p.MaxIter)
}
