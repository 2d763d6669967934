// Package material describes detector materials and the two effects they
// have on a traversing track: multiple Coulomb scattering, added to the
// process noise, and mean ionisation energy loss, applied as a curvature
// correction.
//
// Lengths are in mm, densities in g/cm³ and energies in GeV.
package material

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Material is a homogeneous medium.
type Material struct {
	Name      string
	A         float64 // mass number (g/mol)
	Z         float64 // atomic number
	Density   float64 // g/cm³
	RadLength float64 // radiation length in mm; +Inf for vacuum
}

// Built-in materials.
var (
	Vacuum    = Material{Name: "vacuum", A: 1, Z: 1, Density: 0, RadLength: math.Inf(1)}
	Air       = Material{Name: "air", A: 14.61, Z: 7.3, Density: 1.205e-3, RadLength: 303900}
	Silicon   = Material{Name: "silicon", A: 28.0855, Z: 14, Density: 2.33, RadLength: 93.7}
	Beryllium = Material{Name: "beryllium", A: 9.012182, Z: 4, Density: 1.848, RadLength: 352.8}
	Carbon    = Material{Name: "carbon", A: 12.0107, Z: 6, Density: 2.0, RadLength: 213.5}
)

var builtins = map[string]Material{}

func init() {
	for _, m := range []Material{Vacuum, Air, Silicon, Beryllium, Carbon} {
		builtins[m.Name] = m
	}
}

// Lookup returns the built-in material with the given name. Names are
// case-insensitive.
func Lookup(name string) (Material, error) {
	m, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Material{}, fmt.Errorf("unknown material %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return m, nil
}

// Names lists the built-in materials in alphabetical order.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for n := range builtins {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Scatters reports whether the material has a finite radiation length.
func (m Material) Scatters() bool {
	return m.RadLength > 0 && !math.IsInf(m.RadLength, 1)
}

// MeanExcitation returns the mean excitation energy I in GeV.
func (m Material) MeanExcitation() float64 {
	return (9.76*m.Z + 58.8*math.Pow(m.Z, -0.19)) * 1e-9
}

// DEDX returns the mean ionisation loss in GeV/mm for a particle of total
// momentum p and the given mass, from the Bethe-Bloch formula with an
// approximate density-effect correction.
func (m Material) DEDX(p, mass float64) float64 {
	if m.Density <= 0 || p <= 0 || mass <= 0 {
		return 0
	}
	const (
		k          = 0.307075e-3 // 4πN_A r_e² m_e c² in GeV cm²/g
		twoMe      = 1.02199815e-3
		electronGe = 0.510998902e-3
	)
	I := m.MeanExcitation()
	hbarwp := 28.816 * math.Sqrt(m.Density*m.Z/m.A) * 1e-9

	bg2 := p * p / (mass * mass)
	gm2 := 1 + bg2
	meM := electronGe / mass
	x := math.Log10(math.Sqrt(bg2))
	c0 := -(2*math.Log(I/hbarwp) + 1)
	a := -c0 / 27

	var delta float64
	switch {
	case x >= 3:
		delta = 4.606*x + c0
	case x >= 0:
		delta = 4.606*x + c0 + a*math.Pow(3-x, 3)
	}

	tmax := twoMe * bg2 / (1 + 2*math.Sqrt(gm2)*meM + meM*meM)
	dedx := k * m.Density * m.Z / m.A * gm2 / bg2 *
		(0.5*math.Log(twoMe*bg2*tmax/(I*I)) - bg2/gm2 - delta/2)
	// GeV/cm to GeV/mm
	return 0.1 * dedx
}
