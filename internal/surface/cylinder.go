package surface

import (
	"math"

	"github.com/banshee-data/kaltrack/internal/geom"
	"github.com/banshee-data/kaltrack/internal/track"
	"gonum.org/v1/gonum/spatial/r3"
)

// onSurfaceTol is the radial slack accepted when checking a crossing (mm).
const onSurfaceTol = 1e-4

// Cylinder is a barrel surface with its axis along global z.
type Cylinder struct {
	Radius     float64
	HalfLength float64 // <= 0 means unbounded in z
	Center     r3.Vec
	MaxIter    int
}

// NewCylinder returns a cylinder of radius r and half length hl centred on
// the z axis.
func NewCylinder(r, hl float64) *Cylinder {
	return &Cylinder{Radius: r, HalfLength: hl}
}

func (c *Cylinder) CalcS(x r3.Vec) float64 {
	dx, dy := x.X-c.Center.X, x.Y-c.Center.Y
	return dx*dx + dy*dy - c.Radius*c.Radius
}

func (c *Cylinder) CalcDSDx(x r3.Vec) r3.Vec {
	return r3.Vec{X: 2 * (x.X - c.Center.X), Y: 2 * (x.Y - c.Center.Y)}
}

func (c *Cylinder) IsOnSurface(x r3.Vec) bool {
	r := math.Hypot(x.X-c.Center.X, x.Y-c.Center.Y)
	if math.Abs(r-c.Radius) > onSurfaceTol {
		return false
	}
	return c.HalfLength <= 0 || math.Abs(x.Z-c.Center.Z) <= c.HalfLength
}

func (c *Cylinder) OutwardNormal(x r3.Vec) r3.Vec {
	return r3.Unit(r3.Vec{X: x.X - c.Center.X, Y: x.Y - c.Center.Y})
}

func (c *Cylinder) SortingPolicy() float64 { return c.Radius }

// CalcCrossing intersects analytically where possible (helix in an
// unrotated frame, straight line) and falls back to Newton iteration.
// Integrated tracks are seeded from the crossing of their tangent helix.
func (c *Cylinder) CalcCrossing(p track.Path, guess float64, mode int, eps float64) (r3.Vec, float64, bool) {
	switch t := p.(type) {
	case *track.Helix:
		if t.Frame().IsIdentityRotation() {
			return c.crossHelix(t, mode)
		}
	case *track.Line:
		return c.crossLine(t, mode)
	case *track.Integrated:
		h := t.Helix()
		if h.Frame().IsIdentityRotation() {
			if _, phi, ok := c.crossHelix(h, mode); ok {
				s := h.ForwardSign() * phi * h.PathLength(1)
				if x, s, ok := NewtonCrossing(c, t, s, ModeNearest, eps, c.MaxIter); ok && directionOK(s, 1, mode) {
					return x, s, true
				}
			}
		}
	}
	return NewtonCrossing(c, p, guess, mode, eps, c.MaxIter)
}

// crossHelix intersects the projected helix circle with the cylinder circle
// and returns the crossing with the smallest deflection in the requested
// direction.
func (c *Cylinder) crossHelix(h *track.Helix, mode int) (r3.Vec, float64, bool) {
	f := h.Frame()
	cc := f.ToLocal(c.Center)
	sv := h.State()
	rho := h.Rho()
	pv := h.Pivot()

	dr, phi0 := sv[track.IdxDrho], sv[track.IdxPhi0]
	xc := pv.X + (dr+rho)*math.Cos(phi0)
	yc := pv.Y + (dr+rho)*math.Sin(phi0)

	pts, ok := circleIntersections(xc, yc, math.Abs(rho), cc.X, cc.Y, c.Radius)
	if !ok {
		return r3.Vec{}, 0, false
	}

	fs := h.ForwardSign()
	var cands []float64
	for _, q := range pts {
		phi := geom.NormalizeAngle(math.Atan2((yc-q[1])/rho, (xc-q[0])/rho) - phi0)
		if mode != ModeNearest && phi*fs*float64(mode) < 0 {
			phi -= math.Copysign(2*math.Pi, phi)
		}
		cands = append(cands, phi)
	}
	phi, ok := pickNearest(cands, fs, mode, func(phi float64) bool {
		return c.IsOnSurface(h.PointAt(phi))
	})
	if !ok {
		return r3.Vec{}, 0, false
	}
	return h.PointAt(phi), phi, true
}

// crossLine solves |a + t·w − c|² = R² in the transverse plane.
func (c *Cylinder) crossLine(l *track.Line, mode int) (r3.Vec, float64, bool) {
	a := l.PointAt(0)
	w := l.DerivAt(0)
	ax, ay := a.X-c.Center.X, a.Y-c.Center.Y

	qa := w.X*w.X + w.Y*w.Y
	qb := 2 * (ax*w.X + ay*w.Y)
	qc := ax*ax + ay*ay - c.Radius*c.Radius
	disc := qb*qb - 4*qa*qc
	if qa == 0 || disc < 0 {
		return r3.Vec{}, 0, false
	}
	sq := math.Sqrt(disc)
	cands := []float64{(-qb - sq) / (2 * qa), (-qb + sq) / (2 * qa)}
	t, ok := pickNearest(cands, l.ForwardSign(), mode, func(t float64) bool {
		return c.IsOnSurface(l.PointAt(t))
	})
	if !ok {
		return r3.Vec{}, 0, false
	}
	return l.PointAt(t), t, true
}

// circleIntersections returns the intersection points of two circles.
// Tangent circles yield the touching point twice.
func circleIntersections(x1, y1, r1, x2, y2, r2 float64) ([][2]float64, bool) {
	dx, dy := x2-x1, y2-y1
	d := math.Hypot(dx, dy)
	if d == 0 || d > r1+r2 || d < math.Abs(r1-r2) {
		return nil, false
	}
	a := (r1*r1 - r2*r2 + d*d) / (2 * d)
	h2 := r1*r1 - a*a
	if h2 < 0 {
		h2 = 0
	}
	h := math.Sqrt(h2)
	mx, my := x1+a*dx/d, y1+a*dy/d
	return [][2]float64{
		{mx + h*dy/d, my - h*dx/d},
		{mx - h*dy/d, my + h*dx/d},
	}, true
}
