package material

import (
	"math"

	"github.com/banshee-data/kaltrack/internal/track"
	"gonum.org/v1/gonum/mat"
)

// Model is the per-layer material effect contract used during transport.
// df is the parameter increment of seg since the previous layer; isOutgoing
// selects which side of the layer the segment ran through.
type Model interface {
	ScatteringNoise(isOutgoing bool, seg track.Trajectory, df float64) *mat.Dense
	EnergyLossDelta(isOutgoing bool, seg track.Trajectory, df float64) float64
}

// Slab is a thin layer with possibly different materials on either side.
type Slab struct {
	Inside  Material
	Outside Material
}

// Uniform returns a slab with the same material on both sides.
func Uniform(m Material) Slab {
	return Slab{Inside: m, Outside: m}
}

func (s Slab) side(isOutgoing bool) Material {
	if isOutgoing {
		return s.Outside
	}
	return s.Inside
}

// ScatteringNoise returns the multiple-scattering covariance, from the
// Highland formula, of the track segment in the helical parameterisation.
// Only the φ0, κ and tanλ entries are populated.
func (s Slab) ScatteringNoise(isOutgoing bool, seg track.Trajectory, df float64) *mat.Dense {
	n := seg.Dim()
	q := mat.NewDense(n, n, nil)

	m := s.side(isOutgoing)
	path := seg.PathLength(df)
	if !m.Scatters() || path == 0 {
		return q
	}

	cpa := seg.Kappa()
	tnl := seg.TanLambda()
	tnl21 := 1 + tnl*tnl
	mom := math.Sqrt(tnl21) / math.Abs(cpa)
	mass := seg.Mass()
	beta := mom / math.Sqrt(mom*mom+mass*mass)

	xl := path / m.RadLength
	tmp := (1 + 0.038*math.Log(xl)) / (mom * beta)
	sgms2 := 0.0136 * 0.0136 * xl * tmp * tmp

	q.Set(track.IdxPhi0, track.IdxPhi0, sgms2*tnl21)
	q.Set(track.IdxKappa, track.IdxKappa, sgms2*cpa*cpa*tnl*tnl)
	q.Set(track.IdxKappa, track.IdxTanL, sgms2*cpa*tnl*tnl21)
	q.Set(track.IdxTanL, track.IdxKappa, sgms2*cpa*tnl*tnl21)
	q.Set(track.IdxTanL, track.IdxTanL, sgms2*tnl21*tnl21)
	return q
}

// EnergyLossDelta returns the curvature correction for the mean energy lost
// along the segment. The magnitude of κ grows when moving along the momentum
// and shrinks when moving against it.
func (s Slab) EnergyLossDelta(isOutgoing bool, seg track.Trajectory, df float64) float64 {
	m := s.side(isOutgoing)
	path := seg.PathLength(df)
	if m.Density <= 0 || path == 0 {
		return 0
	}

	cpa := seg.Kappa()
	tnl21 := 1 + seg.TanLambda()*seg.TanLambda()
	mom2 := tnl21 / (cpa * cpa)
	mass := seg.Mass()

	edep := m.DEDX(math.Sqrt(mom2), mass) * path
	cpaa := math.Sqrt(tnl21 / (mom2 + edep*(edep+2*math.Sqrt(mom2+mass*mass))))
	dcpa := math.Abs(cpa) - cpaa

	isfwd := df*seg.ForwardSign() > 0
	if !isfwd {
		dcpa = -dcpa
	}
	if cpa > 0 {
		return dcpa
	}
	return -dcpa
}

// None is a massless layer.
type None struct{}

func (None) ScatteringNoise(_ bool, seg track.Trajectory, _ float64) *mat.Dense {
	return mat.NewDense(seg.Dim(), seg.Dim(), nil)
}

func (None) EnergyLossDelta(bool, track.Trajectory, float64) float64 { return 0 }
