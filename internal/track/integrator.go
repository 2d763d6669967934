package track

import (
	"fmt"
	"math"

	"github.com/banshee-data/kaltrack/internal/bfield"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// IntegratorSettings controls the adaptive Runge-Kutta stepper.
type IntegratorSettings struct {
	InitialStep  float64 // first trial step (mm)
	Tolerance    float64 // local position error allowed per step (mm)
	MinStep      float64 // smallest step before giving up (mm)
	MaxSteps     int     // accepted + rejected steps before giving up
	JacobianStep float64 // finite-difference step on the helix parameters
}

// DefaultIntegratorSettings returns settings suitable for mm-scale
// detectors in fields of a few Tesla.
func DefaultIntegratorSettings() IntegratorSettings {
	return IntegratorSettings{
		InitialStep:  0.01,
		Tolerance:    1e-7,
		MinStep:      1e-9,
		MaxSteps:     100000,
		JacobianStep: 1e-6,
	}
}

func (s IntegratorSettings) withDefaults() IntegratorSettings {
	d := DefaultIntegratorSettings()
	if s.InitialStep <= 0 {
		s.InitialStep = d.InitialStep
	}
	if s.Tolerance <= 0 {
		s.Tolerance = d.Tolerance
	}
	if s.MinStep <= 0 {
		s.MinStep = d.MinStep
	}
	if s.MaxSteps <= 0 {
		s.MaxSteps = d.MaxSteps
	}
	if s.JacobianStep <= 0 {
		s.JacobianStep = d.JacobianStep
	}
	return s
}

// phaseState is (x, y, z, tx, ty, tz) with t the unit direction.
type phaseState [6]float64

func newPhaseState(x, dir r3.Vec) phaseState {
	d := r3.Unit(dir)
	return phaseState{x.X, x.Y, x.Z, d.X, d.Y, d.Z}
}

func (y phaseState) pos() r3.Vec { return r3.Vec{X: y[0], Y: y[1], Z: y[2]} }
func (y phaseState) dir() r3.Vec { return r3.Vec{X: y[3], Y: y[4], Z: y[5]} }

func (y *phaseState) normalize() {
	n := math.Sqrt(y[3]*y[3] + y[4]*y[4] + y[5]*y[5])
	y[3] /= n
	y[4] /= n
	y[5] /= n
}

// lorentz integrates dx/ds = t, dt/ds = c·(q/p)·t×B along the arc length s.
type lorentz struct {
	field bfield.Field
	qop   float64
}

func (l lorentz) deriv(y phaseState) phaseState {
	b := l.field.At(y.pos())
	t := y.dir()
	k := CurvatureConstant * l.qop
	f := r3.Scale(k, r3.Cross(t, b))
	return phaseState{t.X, t.Y, t.Z, f.X, f.Y, f.Z}
}

func (l lorentz) rk4(y phaseState, h float64) phaseState {
	add := func(a phaseState, f float64, b phaseState) phaseState {
		var r phaseState
		for i := range a {
			r[i] = a[i] + f*b[i]
		}
		return r
	}
	k1 := l.deriv(y)
	k2 := l.deriv(add(y, h/2, k1))
	k3 := l.deriv(add(y, h/2, k2))
	k4 := l.deriv(add(y, h, k3))
	var r phaseState
	for i := range y {
		r[i] = y[i] + h/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return r
}

// doubleStep is the unit of work both integrate and replay perform: two
// half steps followed by renormalisation of the direction.
func (l lorentz) doubleStep(y phaseState, h float64) phaseState {
	r := l.rk4(l.rk4(y, h/2), h/2)
	r.normalize()
	return r
}

// integrate advances y by the signed arc length s using step doubling for
// error control. It returns the accepted step sequence so the same map can
// be replayed for perturbed starting points.
func (l lorentz) integrate(y phaseState, s float64, cfg IntegratorSettings) (phaseState, []float64, error) {
	if s == 0 {
		return y, nil, nil
	}
	dir := sign(s)
	remaining := s
	h := dir * math.Min(cfg.InitialStep, math.Abs(s))
	var steps []float64

	for n := 0; ; n++ {
		if n >= cfg.MaxSteps {
			return y, steps, fmt.Errorf("integrating %.6g mm after %d steps: %w", s, n, ErrNoConvergence)
		}
		last := math.Abs(h) >= math.Abs(remaining)
		if last {
			h = remaining
		}

		fine := l.doubleStep(y, h)
		coarse := l.rk4(y, h)
		coarse.normalize()
		err := floats.Distance(fine[:3], coarse[:3], math.Inf(1))
		if math.IsNaN(err) {
			return y, steps, fmt.Errorf("integrating %.6g mm: %w", s, ErrNoConvergence)
		}

		if err > cfg.Tolerance && math.Abs(h) > cfg.MinStep {
			h *= math.Max(0.2, 0.9*math.Pow(cfg.Tolerance/err, 0.25))
			if math.Abs(h) < cfg.MinStep {
				h = dir * cfg.MinStep
			}
			continue
		}
		if err > cfg.Tolerance {
			return y, steps, fmt.Errorf("integrating %.6g mm: %w", s, ErrStepTooSmall)
		}

		y = fine
		steps = append(steps, h)
		if last {
			return y, steps, nil
		}
		remaining -= h

		grow := 4.0
		if err > 0 {
			grow = math.Min(4, math.Max(1, 0.9*math.Pow(cfg.Tolerance/err, 0.2)))
		}
		h *= grow
	}
}

// replay applies a previously accepted step sequence without error control.
func (l lorentz) replay(y phaseState, steps []float64) phaseState {
	for _, h := range steps {
		y = l.doubleStep(y, h)
	}
	return y
}
