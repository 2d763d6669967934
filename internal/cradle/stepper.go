package cradle

import (
	"github.com/banshee-data/kaltrack/internal/bfield"
	"github.com/banshee-data/kaltrack/internal/track"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// stepper is one trajectory model as seen by the transport loop. first is
// true for the step onto the source layer itself.
type stepper interface {
	// view is the trajectory in helical parameters; material models and the
	// state vector read and write it.
	view() track.Trajectory
	cross(l *Layer, guess float64, mode int, first bool) (r3.Vec, float64, bool)
	// deflection converts a crossing parameter into the helical deflection
	// handed to material models.
	deflection(s float64, first bool) float64
	move(x r3.Vec, s float64, first bool) (*mat.Dense, error)
}

// helicalStepper moves a helix, or a line outside the field, analytically.
type helicalStepper struct {
	trk track.Trajectory
	eps float64
}

func (h *helicalStepper) view() track.Trajectory { return h.trk }

func (h *helicalStepper) cross(l *Layer, guess float64, mode int, _ bool) (r3.Vec, float64, bool) {
	return l.Surface.CalcCrossing(h.trk, guess, mode, h.eps)
}

func (h *helicalStepper) deflection(s float64, _ bool) float64 { return s }

func (h *helicalStepper) move(x r3.Vec, s float64, _ bool) (*mat.Dense, error) {
	_, DF, err := h.trk.MoveTo(x, s)
	return DF, err
}

// integratedStepper takes the first, infinitesimal step on the helix and
// integrates every later one through the field. The helix is re-derived
// from the integrator state after each integrated move.
type integratedStepper struct {
	hel      *track.Helix
	field    bfield.Field
	cfg      track.IntegratorSettings
	epsHelix float64
	eps      float64

	rk *track.Integrated
}

func (it *integratedStepper) view() track.Trajectory { return it.hel }

func (it *integratedStepper) cross(l *Layer, guess float64, mode int, first bool) (r3.Vec, float64, bool) {
	if first {
		return l.Surface.CalcCrossing(it.hel, guess, mode, it.epsHelix)
	}
	it.rk = track.NewIntegrated(it.hel, it.field, it.cfg)
	return l.Surface.CalcCrossing(it.rk, 0, mode, it.eps)
}

func (it *integratedStepper) deflection(s float64, first bool) float64 {
	if first {
		return s
	}
	return track.EquivalentDeflection(it.hel, s)
}

func (it *integratedStepper) move(x r3.Vec, s float64, first bool) (*mat.Dense, error) {
	if first {
		_, DF, err := it.hel.MoveTo(x, s)
		return DF, err
	}
	_, DF, err := it.rk.MoveTo(x, s)
	if err != nil {
		return nil, err
	}
	it.hel = it.rk.Helix()
	return DF, nil
}
