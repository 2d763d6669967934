// Package detector reads declarative detector geometry from YAML and builds
// the layer groups and field map a cradle is assembled from.
//
// A description looks like:
//
//	field:
//	  bz: 2.0            # or solenoid: {b0: 2.0, length_mm: 1500}
//	groups:
//	  - name: vertex
//	    layers:
//	      - name: vtx1
//	        cylinder: {radius: 16, half_length: 100}
//	        inside: vacuum
//	        outside: silicon
//	      - name: disk1
//	        plane: {center: [0, 0, 150], normal: [0, 0, 1], half_u: 60, half_v: 60}
//	        outside: silicon
package detector

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/kaltrack/internal/bfield"
	"github.com/banshee-data/kaltrack/internal/config"
	"github.com/banshee-data/kaltrack/internal/cradle"
	"github.com/banshee-data/kaltrack/internal/material"
	"github.com/banshee-data/kaltrack/internal/surface"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Vec is a point or direction written as a three element list.
type Vec [3]float64

// R3 converts v to an r3 vector.
func (v Vec) R3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// Description is the root of a geometry file.
type Description struct {
	Field  FieldSpec   `yaml:"field"`
	Groups []GroupSpec `yaml:"groups"`
}

// FieldSpec selects at most one field map. An empty spec means no field.
type FieldSpec struct {
	Bz       *float64      `yaml:"bz,omitempty"`
	Solenoid *SolenoidSpec `yaml:"solenoid,omitempty"`
}

// SolenoidSpec configures bfield.Solenoid.
type SolenoidSpec struct {
	B0       float64 `yaml:"b0"`
	LengthMM float64 `yaml:"length_mm"`
}

// GroupSpec is one sub-detector.
type GroupSpec struct {
	Name   string      `yaml:"name"`
	Layers []LayerSpec `yaml:"layers"`
}

// LayerSpec is one layer; exactly one of Cylinder and Plane is set.
// Material names are resolved with material.Lookup; empty means vacuum.
type LayerSpec struct {
	Name     string        `yaml:"name"`
	Cylinder *CylinderSpec `yaml:"cylinder,omitempty"`
	Plane    *PlaneSpec    `yaml:"plane,omitempty"`
	Inside   string        `yaml:"inside,omitempty"`
	Outside  string        `yaml:"outside,omitempty"`
}

// CylinderSpec configures a z-aligned cylinder. HalfLength 0 is unbounded.
type CylinderSpec struct {
	Radius     float64 `yaml:"radius"`
	HalfLength float64 `yaml:"half_length,omitempty"`
	Center     Vec     `yaml:"center,omitempty"`
}

// PlaneSpec configures a plane. U defaults to a direction orthogonal to
// Normal; zero half widths are unbounded.
type PlaneSpec struct {
	Center Vec     `yaml:"center"`
	Normal Vec     `yaml:"normal"`
	U      Vec     `yaml:"u,omitempty"`
	HalfU  float64 `yaml:"half_u,omitempty"`
	HalfV  float64 `yaml:"half_v,omitempty"`
	Sort   float64 `yaml:"sort,omitempty"`
}

// Load reads and validates a geometry file.
func Load(path string) (*Description, error) {
	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat geometry file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("geometry file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read geometry file: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cleanPath, err)
	}
	return d, nil
}

// Parse decodes and validates a geometry document. Unknown keys are errors.
func Parse(data []byte) (*Description, error) {
	var d Description
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to parse geometry YAML: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}
	return &d, nil
}

// Validate checks shapes, names and materials.
func (d *Description) Validate() error {
	if d.Field.Bz != nil && d.Field.Solenoid != nil {
		return errors.New("field: bz and solenoid are mutually exclusive")
	}
	if s := d.Field.Solenoid; s != nil && s.LengthMM < 0 {
		return fmt.Errorf("field: solenoid length_mm must be non-negative, got %g", s.LengthMM)
	}
	if len(d.Groups) == 0 {
		return errors.New("no groups")
	}

	seen := make(map[string]bool)
	for gi, g := range d.Groups {
		if g.Name == "" {
			return fmt.Errorf("group %d: missing name", gi)
		}
		if len(g.Layers) == 0 {
			return fmt.Errorf("group %q: no layers", g.Name)
		}
		for li, l := range g.Layers {
			if l.Name == "" {
				return fmt.Errorf("group %q layer %d: missing name", g.Name, li)
			}
			if seen[l.Name] {
				return fmt.Errorf("layer %q: duplicate name", l.Name)
			}
			seen[l.Name] = true
			if err := l.validate(); err != nil {
				return fmt.Errorf("layer %q: %w", l.Name, err)
			}
		}
	}
	return nil
}

func (l LayerSpec) validate() error {
	switch {
	case l.Cylinder == nil && l.Plane == nil:
		return errors.New("one of cylinder or plane is required")
	case l.Cylinder != nil && l.Plane != nil:
		return errors.New("cylinder and plane are mutually exclusive")
	case l.Cylinder != nil:
		if l.Cylinder.Radius <= 0 {
			return fmt.Errorf("cylinder radius must be positive, got %g", l.Cylinder.Radius)
		}
		if l.Cylinder.HalfLength < 0 {
			return fmt.Errorf("cylinder half_length must be non-negative, got %g", l.Cylinder.HalfLength)
		}
	default:
		if r3.Norm(l.Plane.Normal.R3()) == 0 {
			return errors.New("plane normal must be non-zero")
		}
		if l.Plane.HalfU < 0 || l.Plane.HalfV < 0 {
			return errors.New("plane half widths must be non-negative")
		}
	}
	if _, err := lookupMaterial(l.Inside); err != nil {
		return fmt.Errorf("inside: %w", err)
	}
	if _, err := lookupMaterial(l.Outside); err != nil {
		return fmt.Errorf("outside: %w", err)
	}
	return nil
}

func lookupMaterial(name string) (material.Material, error) {
	if name == "" {
		return material.Vacuum, nil
	}
	return material.Lookup(name)
}

// FieldMap returns the configured field, or nil outside any field.
func (d *Description) FieldMap() bfield.Field {
	switch {
	case d.Field.Solenoid != nil:
		return bfield.Solenoid{B0: d.Field.Solenoid.B0, Length: d.Field.Solenoid.LengthMM}
	case d.Field.Bz != nil:
		return bfield.NewUniformZ(*d.Field.Bz)
	}
	return nil
}

// Build creates one detector group per group spec, in file order. The
// crossing iteration cap of cfg is applied to every surface.
func (d *Description) Build(cfg *config.TuningConfig) ([]*cradle.DetectorGroup, bfield.Field, error) {
	maxIter := cfg.GetCrossingMaxIterations()
	groups := make([]*cradle.DetectorGroup, 0, len(d.Groups))
	for _, gs := range d.Groups {
		g := cradle.NewDetectorGroup(gs.Name)
		for _, ls := range gs.Layers {
			l, err := ls.build(maxIter)
			if err != nil {
				return nil, nil, fmt.Errorf("layer %q: %w", ls.Name, err)
			}
			g.Add(l)
		}
		groups = append(groups, g)
	}
	return groups, d.FieldMap(), nil
}

func (l LayerSpec) build(maxIter int) (*cradle.Layer, error) {
	in, err := lookupMaterial(l.Inside)
	if err != nil {
		return nil, err
	}
	out, err := lookupMaterial(l.Outside)
	if err != nil {
		return nil, err
	}

	var srf surface.Surface
	if c := l.Cylinder; c != nil {
		cyl := surface.NewCylinder(c.Radius, c.HalfLength)
		cyl.Center = c.Center.R3()
		cyl.MaxIter = maxIter
		srf = cyl
	} else {
		p := l.Plane
		pl := surface.NewPlane(p.Center.R3(), p.Normal.R3(), p.U.R3(), p.HalfU, p.HalfV)
		pl.Sort = p.Sort
		pl.MaxIter = maxIter
		srf = pl
	}

	var m material.Model = material.Slab{Inside: in, Outside: out}
	if !in.Scatters() && !out.Scatters() {
		m = material.None{}
	}
	return cradle.NewLayer(l.Name, srf, m), nil
}

// LayerNamed returns the layer called name among groups.
func LayerNamed(groups []*cradle.DetectorGroup, name string) (*cradle.Layer, bool) {
	for _, g := range groups {
		for _, l := range g.Layers() {
			if l.Name == name {
				return l, true
			}
		}
	}
	return nil, false
}
