package cradle

import (
	"github.com/banshee-data/kaltrack/internal/bfield"
	"github.com/banshee-data/kaltrack/internal/geom"
	"github.com/banshee-data/kaltrack/internal/surface"
	"github.com/banshee-data/kaltrack/internal/track"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Skip reasons recorded on steps.
const (
	ReasonNoCrossing = "no crossing"
	ReasonFarSide    = "far-side crossing"
	ReasonMoveFailed = "move failed"
)

// Step records what happened at one visited layer.
type Step struct {
	Layer      *Layer
	Crossing   r3.Vec  // global crossing point
	Deflection float64 // helical deflection from the previous accepted layer
	Skipped    bool
	Reason     string
	Err        error // numerical failure behind a skip, if any

	Segment    *mat.Dense // per-step Jacobian DF
	Scattering *mat.Dense // multiple-scattering noise added before the move
	EnergyLoss float64    // κ correction applied after the move
	NoiseTrace float64    // trace of the accumulated noise after the step
}

// Result is the outcome of a transport. State holds the helical parameters
// about Pivot, which is expressed in Frame.
type Result struct {
	Pivot    r3.Vec
	State    *mat.VecDense
	Jacobian *mat.Dense
	Noise    *mat.Dense
	Frame    geom.Frame
	Field    float64

	// Reached reports whether the destination layer itself was crossed.
	Reached bool
	// Crossed counts accepted crossings, the source layer included.
	Crossed int
	Steps   []Step
	// Outgoing is the direction flag used for material lookups.
	Outgoing bool

	trk track.Trajectory
}

// GlobalPivot returns the pivot in global coordinates.
func (r Result) GlobalPivot() r3.Vec { return r.Frame.ToGlobal(r.Pivot) }

// Transport moves the state of from to its crossing with the layer to,
// stepping through every layer in between. Layers that are not crossed are
// skipped; Result.Reached tells whether to itself was crossed.
func (c *Cradle) Transport(from *Site, to *Layer) Result {
	c.ensureSorted()
	c.checkOwned(from.Hit.Layer)
	c.checkOwned(to)
	return c.transport(from, to)
}

// TransportToSite transports to the layer of to and then moves the pivot
// from the expected crossing onto the hit. The pivot, frame and field of to
// are updated for a non-uniform field (and the pivot of 1-D hits always).
func (c *Cradle) TransportToSite(from, to *Site) Result {
	c.ensureSorted()
	c.checkOwned(from.Hit.Layer)
	c.checkOwned(to.Hit.Layer)
	res := c.transport(from, to.Hit.Layer)

	if to.Hit.Dimension > 1 {
		if to.Hit.Field != 0 {
			_, DF, err := res.trk.MoveTo(to.GlobalPivot(), 0)
			if err != nil {
				c.debugf("final move to hit on %q: %v", to.Hit.Layer.Name, err)
			} else {
				res.Jacobian.Mul(DF, res.Jacobian)
				res.trk.PutInto(res.State)
				res.Pivot = res.trk.Pivot()
			}
		} else {
			line := track.NewLine(res.State, res.Pivot, res.Frame, from.Mass)
			_, DF, _ := line.MoveTo(to.GlobalPivot(), 0)
			res.Jacobian.Mul(DF, res.Jacobian)
			line.PutInto(res.State)
			res.trk = line
			res.Pivot = line.Pivot()
			res.Frame = line.Frame()
			res.Field = 0
		}
	} else {
		to.Pivot = to.Frame.ToLocal(res.GlobalPivot())
	}

	if !bfield.IsUniform(c.opts.Field) {
		to.Frame = res.Frame
		to.Field = res.Field
		to.Pivot = res.Pivot
	}
	return res
}

func (c *Cradle) stepperFor(from *Site, trk track.Trajectory) (stepper, float64) {
	eps := c.opts.CrossingTolUniform
	if !bfield.IsUniform(c.opts.Field) {
		eps = c.opts.CrossingTolNonUniform
	}
	hel, isHelix := trk.(*track.Helix)
	if c.opts.Model != ModelIntegrated || !isHelix {
		return &helicalStepper{trk: trk, eps: eps}, eps
	}
	field := c.opts.Field
	if field == nil {
		field = bfield.Uniform{B: from.Frame.DirToGlobal(r3.Vec{Z: from.Field})}
	}
	return &integratedStepper{
		hel:      hel,
		field:    field,
		cfg:      c.opts.Integrator,
		epsHelix: c.opts.CrossingTolUniform,
		eps:      c.opts.CrossingTolNonUniform,
	}, eps
}

func (c *Cradle) transport(from *Site, to *Layer) Result {
	fridx := from.Hit.Layer.Index()
	toidx := to.Index()
	di := 1
	if fridx > toidx {
		di = -1
	}

	trk := from.Track()
	sdim := from.State.Len()
	st, eps := c.stepperFor(from, trk)
	_, integrated := st.(*integratedStepper)

	F := identity(sdim)
	Q := mat.NewDense(sdim, sdim, nil)
	sv := mat.VecDenseCopyOf(from.State)

	// Locate the destination once: it fixes the outgoing flag and the
	// reference distance for far-side rejection. Without a destination
	// crossing the walk still runs, isout follows the index direction and
	// far-side rejection is off.
	xfrom := from.GlobalPivot()
	xto, fito, toFound := to.Surface.CalcCrossing(trk, 0, surface.ModeNearest, eps)
	if !toFound {
		c.debugf("destination %q not crossed from %q", to.Name, from.Hit.Layer.Name)
	}
	isout := di > 0
	if !integrated && toFound {
		isout = fito*r3.Dot(trk.DerivAt(fito), to.Surface.OutwardNormal(xto)) > 0
	}
	maxDist := r3.Norm(r3.Sub(xto, xfrom)) + c.opts.FarSideMargin

	res := Result{Outgoing: isout}
	fid := 0.0
	ifr := fridx

	for ito := fridx; (di > 0 && ito <= toidx) || (di < 0 && ito >= toidx); ito += di {
		layer := c.layers[ito]
		first := ito == fridx
		mode := di
		if first {
			mode = surface.ModeNearest
		}
		fidSaved := fid

		x, s, ok := st.cross(layer, fid, mode, first)
		if !ok {
			fid = fidSaved
			c.debugf("no crossing with %q (index %d)", layer.Name, ito)
			res.Steps = append(res.Steps, Step{Layer: layer, Skipped: true, Reason: ReasonNoCrossing})
			continue
		}
		if toFound && r3.Norm(r3.Sub(x, xfrom)) > maxDist {
			fid = fidSaved
			c.debugf("rejecting far-side crossing with %q at %v", layer.Name, x)
			res.Steps = append(res.Steps, Step{Layer: layer, Crossing: x, Deflection: s, Skipped: true, Reason: ReasonFarSide})
			continue
		}

		prev := c.layers[ifr]
		df := st.deflection(s, first)
		Qms := mat.NewDense(sdim, sdim, nil)
		if c.opts.MultipleScattering && !first {
			Qms = prev.Material.ScatteringNoise(isout, st.view(), df)
		}

		DF, err := st.move(x, s, first)
		if err != nil {
			fid = fidSaved
			c.debugf("moving to %q: %v", layer.Name, err)
			res.Steps = append(res.Steps, Step{Layer: layer, Crossing: x, Deflection: df, Skipped: true, Reason: ReasonMoveFailed, Err: err})
			continue
		}
		if sdim == track.DimWithTime {
			DF.Set(track.IdxT0, track.IdxT0, 1)
		}

		F.Mul(DF, F)
		Q.Add(Q, Qms)
		var next mat.Dense
		next.Product(DF, Q, DF.T())
		Q = &next

		var dk float64
		if c.opts.EnergyLoss && !first {
			v := st.view()
			v.PutInto(sv)
			dk = prev.Material.EnergyLossDelta(isout, v, df)
			sv.SetVec(track.IdxKappa, sv.AtVec(track.IdxKappa)+dk)
			v.SetTo(sv, v.Pivot())
		}

		res.Steps = append(res.Steps, Step{
			Layer:      layer,
			Crossing:   x,
			Deflection: df,
			Segment:    DF,
			Scattering: Qms,
			EnergyLoss: dk,
			NoiseTrace: mat.Trace(Q),
		})
		res.Crossed++
		if ito == toidx {
			res.Reached = true
		}

		ifr = ito
		fid = 0
	}

	v := st.view()
	v.PutInto(sv)
	res.Pivot = v.Pivot()
	res.State = sv
	res.Jacobian = F
	res.Noise = Q
	res.Frame = v.Frame()
	res.Field = v.Field()
	res.trk = v
	return res
}

func identity(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}
