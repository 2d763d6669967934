// Package cradle holds the ordered stack of detector layers and transports
// track states through it, accumulating the propagator matrix and the
// process noise from multiple scattering and energy loss layer by layer.
//
// A cradle is configured once (Install, optionally Close) and may then be
// used for concurrent transports of independent states. Installing while
// transports run is not supported.
package cradle

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/kaltrack/internal/monitoring"
)

var (
	// ErrClosed is the panic value, wrapped, for installing into a closed cradle.
	ErrClosed = errors.New("cradle: closed to further installation")
	// ErrForeignLayer is the panic value, wrapped, for transporting to or from
	// a layer that is not installed in the cradle.
	ErrForeignLayer = errors.New("cradle: layer not installed in this cradle")
)

// Cradle is an ordered collection of layers.
type Cradle struct {
	mu     sync.Mutex
	opts   Options
	layers []*Layer
	dirty  bool
	closed bool
}

// New returns an empty cradle.
func New(opts Options) *Cradle {
	return &Cradle{opts: opts}
}

// Install appends the layers of g and marks the cradle for re-sorting.
// Installing into a closed cradle is a setup error and panics.
func (c *Cradle) Install(g *DetectorGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		err := fmt.Errorf("install %q: %w", g.Name, ErrClosed)
		monitoring.Logf("cradle: %v", err)
		panic(err)
	}
	for _, l := range g.layers {
		l.cradle = c
		l.index = -1
		c.layers = append(c.layers, l)
	}
	g.cradle = c
	c.dirty = true
}

// Close forbids further installation.
func (c *Cradle) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// IsClosed reports whether Close has been called.
func (c *Cradle) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Update sorts the layers by their surface sorting policy, innermost first,
// and numbers them 0..N-1. Layers with equal policy keep their install
// order, so repeated updates never change an index.
func (c *Cradle) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.update()
}

func (c *Cradle) update() {
	sort.SliceStable(c.layers, func(i, j int) bool {
		return c.layers[i].Surface.SortingPolicy() < c.layers[j].Surface.SortingPolicy()
	})
	for i, l := range c.layers {
		l.index = i
	}
	c.dirty = false
}

// ensureSorted runs Update if layers were installed since the last one.
func (c *Cradle) ensureSorted() {
	c.mu.Lock()
	if c.dirty {
		c.update()
	}
	c.mu.Unlock()
}

// Layers returns the layers in index order.
func (c *Cradle) Layers() []*Layer {
	c.ensureSorted()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Layer, len(c.layers))
	copy(out, c.layers)
	return out
}

// Len returns the number of installed layers.
func (c *Cradle) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.layers)
}

// Options returns the current configuration.
func (c *Cradle) Options() Options { return c.opts }

func (c *Cradle) SetMultipleScattering(on bool) { c.opts.MultipleScattering = on }
func (c *Cradle) SetEnergyLoss(on bool)         { c.opts.EnergyLoss = on }
func (c *Cradle) SetModel(m Model)              { c.opts.Model = m }

func (c *Cradle) IsMSOn() bool   { return c.opts.MultipleScattering }
func (c *Cradle) IsDEDXOn() bool { return c.opts.EnergyLoss }
func (c *Cradle) Model() Model   { return c.opts.Model }

func (c *Cradle) debugf(format string, v ...interface{}) {
	if c.opts.Debug || monitoring.DebugEnabled() {
		monitoring.Logf("cradle: "+format, v...)
	}
}

func (c *Cradle) checkOwned(l *Layer) {
	if l == nil || l.cradle != c {
		name := "<nil>"
		if l != nil {
			name = l.Name
		}
		err := fmt.Errorf("layer %q: %w", name, ErrForeignLayer)
		monitoring.Logf("cradle: %v", err)
		panic(err)
	}
}
