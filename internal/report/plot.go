// Package report renders transport results for inspection: a transverse
// view of the layers and crossings (PNG, gonum/plot) and a per-layer noise
// growth chart (HTML, go-echarts).
package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/banshee-data/kaltrack/internal/cradle"
	"github.com/banshee-data/kaltrack/internal/surface"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// circleSegments is the number of chords used to draw a cylinder.
const circleSegments = 180

// PlotTrajectory draws the layers in the transverse (x, y) plane, coloured
// by detector group, together with the accepted crossings of res joined in
// visiting order, and saves the plot to path. The image format follows the
// file extension.
func PlotTrajectory(res cradle.Result, layers []*cradle.Layer, path string) error {
	if path == "" {
		return errors.New("empty output path")
	}

	p := plot.New()
	p.Title.Text = "Transport (transverse view)"
	p.X.Label.Text = "x (mm)"
	p.Y.Label.Text = "y (mm)"

	extent := 0.0
	for _, l := range layers {
		extent = math.Max(extent, l.Surface.SortingPolicy())
	}
	if extent == 0 {
		extent = 1
	}

	colors := groupColors(layers)
	legendDone := make(map[string]bool)
	for _, l := range layers {
		pts := layerOutline(l.Surface, extent)
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("layer %q: %w", l.Name, err)
		}
		name := groupName(l)
		line.Color = colors[name]
		line.Width = vg.Points(1)
		p.Add(line)
		if !legendDone[name] {
			p.Legend.Add(name, line)
			legendDone[name] = true
		}
	}

	var hits plotter.XYs
	for _, st := range res.Steps {
		if st.Skipped {
			continue
		}
		hits = append(hits, plotter.XY{X: st.Crossing.X, Y: st.Crossing.Y})
	}
	if len(hits) > 0 {
		trk, err := plotter.NewLine(hits)
		if err != nil {
			return fmt.Errorf("track: %w", err)
		}
		trk.Color = color.Black
		trk.Width = vg.Points(1.5)

		marks, err := plotter.NewScatter(hits)
		if err != nil {
			return fmt.Errorf("crossings: %w", err)
		}
		marks.Shape = draw.CircleGlyph{}
		marks.Color = color.RGBA{R: 200, A: 255}
		marks.Radius = vg.Points(2.5)

		p.Add(trk, marks)
		p.Legend.Add("crossings", marks)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	pad := 1.1 * extent
	p.X.Min, p.X.Max = -pad, pad
	p.Y.Min, p.Y.Max = -pad, pad

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save trajectory plot: %w", err)
	}
	return nil
}

// layerOutline returns the transverse trace of a surface. Planes facing
// along z have no useful transverse trace and yield nil.
func layerOutline(srf surface.Surface, extent float64) plotter.XYs {
	switch s := srf.(type) {
	case *surface.Cylinder:
		pts := make(plotter.XYs, circleSegments+1)
		for i := range pts {
			a := 2 * math.Pi * float64(i) / circleSegments
			pts[i] = plotter.XY{
				X: s.Center.X + s.Radius*math.Cos(a),
				Y: s.Center.Y + s.Radius*math.Sin(a),
			}
		}
		return pts
	case *surface.Plane:
		if math.Abs(s.Normal.Z) > 0.99 {
			return nil
		}
		// in-plane transverse direction
		dir := r3.Unit(r3.Cross(s.Normal, r3.Vec{Z: 1}))
		half := extent
		if s.HalfU > 0 && math.Abs(r3.Dot(dir, s.U)) > 0.5 {
			half = s.HalfU
		} else if s.HalfV > 0 && math.Abs(r3.Dot(dir, s.V())) > 0.5 {
			half = s.HalfV
		}
		a := r3.Add(s.Center, r3.Scale(-half, dir))
		b := r3.Add(s.Center, r3.Scale(half, dir))
		return plotter.XYs{{X: a.X, Y: a.Y}, {X: b.X, Y: b.Y}}
	}
	return nil
}

func groupName(l *cradle.Layer) string {
	if g := l.Group(); g != nil && g.Name != "" {
		return g.Name
	}
	return "ungrouped"
}

// groupColors assigns one colour per detector group, in first-seen order.
func groupColors(layers []*cradle.Layer) map[string]color.Color {
	var names []string
	seen := make(map[string]bool)
	for _, l := range layers {
		n := groupName(l)
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	palette := generateColors(len(names))
	out := make(map[string]color.Color, len(names))
	for i, n := range names {
		out[n] = palette[i]
	}
	return out
}

// generateColors creates a palette of n distinct hues.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
