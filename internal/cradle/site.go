package cradle

import (
	"github.com/banshee-data/kaltrack/internal/bfield"
	"github.com/banshee-data/kaltrack/internal/geom"
	"github.com/banshee-data/kaltrack/internal/track"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Hit is a measurement (actual or expected) on a layer.
type Hit struct {
	Layer     *Layer
	Dimension int     // number of measured coordinates
	Position  r3.Vec  // global position
	Field     float64 // field magnitude at the hit in Tesla, 0 outside the field
}

// Site couples a hit with a fit state. State holds the helical parameters
// about Pivot, which is expressed in Frame; Field is the field magnitude
// along the local z axis of Frame.
type Site struct {
	Hit   Hit
	State *mat.VecDense
	Pivot r3.Vec
	Frame geom.Frame
	Field float64
	Mass  float64
}

// NewSite returns a site pivoted at the hit position in the global frame.
func NewSite(hit Hit, state *mat.VecDense) *Site {
	return &Site{
		Hit:   hit,
		State: state,
		Pivot: hit.Position,
		Frame: geom.Identity(),
		Field: hit.Field,
		Mass:  track.PionMass,
	}
}

// AlignToField rebuilds the site frame at the hit with its z axis along f
// and records the local field magnitude. The state is not transformed.
func (s *Site) AlignToField(f bfield.Field) {
	b := f.At(s.Hit.Position)
	s.Frame = geom.NewFrame(s.Hit.Position, b)
	s.Field = r3.Norm(b)
	s.Hit.Field = s.Field
	s.Pivot = s.Frame.ToLocal(s.Hit.Position)
}

// GlobalPivot returns the pivot in global coordinates.
func (s *Site) GlobalPivot() r3.Vec { return s.Frame.ToGlobal(s.Pivot) }

// Track builds an independent trajectory from the site state: a helix when
// the site sits in a field, a straight line otherwise.
func (s *Site) Track() track.Trajectory {
	sv := mat.VecDenseCopyOf(s.State)
	if s.Field == 0 {
		return track.NewLine(sv, s.Pivot, s.Frame, s.Mass)
	}
	return track.NewHelix(sv, s.Pivot, s.Frame, s.Field, s.Mass)
}
