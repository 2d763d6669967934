package cradle

import (
	"github.com/banshee-data/kaltrack/internal/material"
	"github.com/banshee-data/kaltrack/internal/surface"
)

// Layer is a measurement surface with its material. Its index is assigned
// by the owning cradle when the layers are sorted and is -1 until then.
type Layer struct {
	Name     string
	Surface  surface.Surface
	Material material.Model

	index  int
	group  *DetectorGroup
	cradle *Cradle
}

// NewLayer returns an unindexed layer. A nil material model means no
// material.
func NewLayer(name string, srf surface.Surface, m material.Model) *Layer {
	if m == nil {
		m = material.None{}
	}
	return &Layer{Name: name, Surface: srf, Material: m, index: -1}
}

// Index returns the position of the layer in its cradle's sorted order.
func (l *Layer) Index() int { return l.index }

// Group returns the detector group the layer was installed with.
func (l *Layer) Group() *DetectorGroup { return l.group }

// DetectorGroup is a sub-detector: a named set of layers installed into a
// cradle together.
type DetectorGroup struct {
	Name string

	layers []*Layer
	cradle *Cradle
}

// NewDetectorGroup returns an empty group.
func NewDetectorGroup(name string, layers ...*Layer) *DetectorGroup {
	g := &DetectorGroup{Name: name}
	g.Add(layers...)
	return g
}

// Add appends layers to the group.
func (g *DetectorGroup) Add(layers ...*Layer) {
	for _, l := range layers {
		l.group = g
		g.layers = append(g.layers, l)
	}
}

// Layers returns the layers of the group in the order they were added.
func (g *DetectorGroup) Layers() []*Layer {
	out := make([]*Layer, len(g.layers))
	copy(out, g.layers)
	return out
}

// Cradle returns the cradle the group is installed in, or nil.
func (g *DetectorGroup) Cradle() *Cradle { return g.cradle }
