package cradle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/banshee-data/kaltrack/internal/config"
	"github.com/banshee-data/kaltrack/internal/geom"
	"github.com/banshee-data/kaltrack/internal/material"
	"github.com/banshee-data/kaltrack/internal/monitoring"
	"github.com/banshee-data/kaltrack/internal/surface"
	"github.com/banshee-data/kaltrack/internal/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const testBz = 2.0

// quietOptions returns default options with both material effects off.
func quietOptions() Options {
	opts := DefaultOptions()
	opts.MultipleScattering = false
	opts.EnergyLoss = false
	return opts
}

func newBarrel(opts Options, m material.Model, radii ...float64) (*Cradle, []*Layer) {
	c := New(opts)
	g := NewDetectorGroup("barrel")
	for i, r := range radii {
		g.Add(NewLayer(fmt.Sprintf("L%d", i), surface.NewCylinder(r, 0), m))
	}
	c.Install(g)
	return c, c.Layers()
}

// startSite places a 1.08 GeV track on the +x side of a barrel layer.
func startSite(l *Layer, dim int, charge float64) *Site {
	x := r3.Vec{X: l.Surface.(*surface.Cylinder).Radius}
	h := track.HelixFromState(x, r3.Vec{X: 1, Y: 0.4, Z: 0.3}, charge,
		geom.Identity(), testBz, dim, 1.5, track.PionMass)
	sv := mat.NewVecDense(dim, nil)
	h.PutInto(sv)
	return NewSite(Hit{Layer: l, Dimension: 2, Position: x, Field: testBz}, sv)
}

// siteFrom turns a transport result into a site on layer l.
func siteFrom(res Result, l *Layer) *Site {
	return &Site{
		Hit:   Hit{Layer: l, Dimension: 2, Position: res.GlobalPivot(), Field: res.Field},
		State: mat.VecDenseCopyOf(res.State),
		Pivot: res.Pivot,
		Frame: res.Frame,
		Field: res.Field,
		Mass:  track.PionMass,
	}
}

// --------------------------------------------------------------------------
// Installation and ordering
// --------------------------------------------------------------------------

func TestUpdateAssignsContiguousIndices(t *testing.T) {
	t.Parallel()

	c := New(DefaultOptions())
	outer := NewDetectorGroup("outer",
		NewLayer("o2", surface.NewCylinder(300, 0), nil),
		NewLayer("o1", surface.NewCylinder(200, 0), nil),
	)
	inner := NewDetectorGroup("inner",
		NewLayer("i1", surface.NewCylinder(10, 0), nil),
		NewLayer("disk", surface.NewPlane(r3.Vec{Z: 50}, r3.Vec{Z: 1}, r3.Vec{X: 1}, 0, 0), nil),
		NewLayer("i2", surface.NewCylinder(20, 0), nil),
	)
	c.Install(outer)
	c.Install(inner)
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, -1, outer.Layers()[0].Index(), "no index before Update")

	c.Update()
	layers := c.Layers()
	names := make([]string, len(layers))
	for i, l := range layers {
		assert.Equal(t, i, l.Index())
		names[i] = l.Name
	}
	// the disk sorts at transverse distance 0
	assert.Equal(t, []string{"disk", "i1", "i2", "o1", "o2"}, names)

	c.Update()
	for i, l := range c.Layers() {
		assert.Equal(t, i, l.Index(), "second Update must not move %s", l.Name)
		assert.Same(t, layers[i], l)
	}

	assert.Same(t, c, outer.Cradle())
	assert.Same(t, inner, layers[0].Group())
}

func TestUpdateKeepsInstallOrderForTies(t *testing.T) {
	t.Parallel()

	c := New(DefaultOptions())
	a := NewLayer("a", surface.NewCylinder(10, 0), nil)
	b := NewLayer("b", surface.NewCylinder(10, 0), nil)
	c.Install(NewDetectorGroup("g", a, b))
	c.Update()
	c.Update()
	assert.Equal(t, 0, a.Index())
	assert.Equal(t, 1, b.Index())
}

func TestInstallMarksDirty(t *testing.T) {
	t.Parallel()

	c, layers := newBarrel(DefaultOptions(), nil, 10, 30)
	require.Len(t, layers, 2)
	c.Install(NewDetectorGroup("mid", NewLayer("mid", surface.NewCylinder(20, 0), nil)))

	// the next query re-sorts lazily
	layers = c.Layers()
	assert.Equal(t, "mid", layers[1].Name)
	assert.Equal(t, 2, layers[2].Index())
}

func TestInstallAfterClosePanics(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	var logged string
	monitoring.SetLogger(func(format string, v ...interface{}) { logged = fmt.Sprintf(format, v...) })

	c := New(DefaultOptions())
	c.Install(NewDetectorGroup("first", NewLayer("a", surface.NewCylinder(1, 0), nil)))
	c.Close()
	assert.True(t, c.IsClosed())

	defer func() {
		r := recover()
		require.NotNil(t, r, "install after close must panic")
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrClosed))
		assert.Contains(t, logged, "late")
		assert.Equal(t, 1, c.Len())
	}()
	c.Install(NewDetectorGroup("late", NewLayer("b", surface.NewCylinder(2, 0), nil)))
}

func TestTransportForeignLayerPanics(t *testing.T) {
	t.Parallel()

	_, layers := newBarrel(quietOptions(), nil, 10, 20)
	other, _ := newBarrel(quietOptions(), nil, 10, 20)

	assert.Panics(t, func() {
		other.Transport(startSite(layers[0], 5, 1), layers[1])
	})
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

func TestToggles(t *testing.T) {
	t.Parallel()

	c := New(DefaultOptions())
	assert.True(t, c.IsMSOn())
	assert.True(t, c.IsDEDXOn())
	assert.Equal(t, ModelHelical, c.Model())

	c.SetMultipleScattering(false)
	c.SetEnergyLoss(false)
	c.SetModel(ModelIntegrated)
	assert.False(t, c.IsMSOn())
	assert.False(t, c.IsDEDXOn())
	assert.Equal(t, ModelIntegrated, c.Model())
	assert.Equal(t, "integrated", c.Model().String())
}

func TestOptionsFromTuning(t *testing.T) {
	t.Parallel()

	cfg := config.MustLoadDefaultConfig()
	opts := OptionsFromTuning(cfg)
	assert.Equal(t, DefaultOptions(), opts)
	assert.Equal(t, 1.0, opts.FarSideMargin)
	assert.Equal(t, 1e-8, opts.CrossingTolUniform)
	assert.Equal(t, 1e-5, opts.CrossingTolNonUniform)
	assert.Equal(t, track.DefaultIntegratorSettings(), opts.Integrator)

	model, err := ParseModel("integrated")
	require.NoError(t, err)
	assert.Equal(t, ModelIntegrated, model)
	_, err = ParseModel("spline")
	assert.Error(t, err)
}
