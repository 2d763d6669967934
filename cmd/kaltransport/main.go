// Command kaltransport transports a track state between two layers of a
// detector described in YAML and prints the transported state, propagator
// and process noise as JSON.
//
// Example:
//
//	kaltransport -geometry config/detector.example.yaml \
//	    -from vtx1 -to trk2 -pivot 16,0,0 -state 0,-1.19,1,0,0.3
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/kaltrack/internal/bfield"
	"github.com/banshee-data/kaltrack/internal/config"
	"github.com/banshee-data/kaltrack/internal/cradle"
	"github.com/banshee-data/kaltrack/internal/detector"
	"github.com/banshee-data/kaltrack/internal/monitoring"
	"github.com/banshee-data/kaltrack/internal/report"
	"github.com/banshee-data/kaltrack/internal/version"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("kaltransport: %v", err)
	}
}

type options struct {
	configPath   string
	geometryPath string
	from, to     string
	state        string
	pivot        string
	mass         float64
	plotPath     string
	chartPath    string
	showVersion  bool
	debug        bool
}

func parseFlags(args []string) (*options, error) {
	var o options
	fs := flag.NewFlagSet("kaltransport", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "tuning config JSON (default: "+config.DefaultConfigPath+" if present)")
	fs.StringVar(&o.geometryPath, "geometry", "", "detector geometry YAML")
	fs.StringVar(&o.from, "from", "", "name of the layer the state sits on")
	fs.StringVar(&o.to, "to", "", "name of the destination layer")
	fs.StringVar(&o.state, "state", "", "comma separated dρ,φ0,κ,dz,tanλ[,t0]")
	fs.StringVar(&o.pivot, "pivot", "", "comma separated global pivot x,y,z in mm")
	fs.Float64Var(&o.mass, "mass", 0, "particle mass in GeV (default from config)")
	fs.StringVar(&o.plotPath, "plot", "", "write a transverse view PNG to this path")
	fs.StringVar(&o.chartPath, "chart", "", "write a noise growth HTML chart to this path")
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")
	fs.BoolVar(&o.debug, "debug", false, "log skipped layers")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &o, nil
}

func run(args []string, stdout io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	if o.showVersion {
		fmt.Fprintln(stdout, version.String("kaltransport"))
		return nil
	}
	if o.geometryPath == "" || o.from == "" || o.to == "" || o.state == "" || o.pivot == "" {
		return errors.New("-geometry, -from, -to, -state and -pivot are required")
	}

	cfg, err := loadTuning(o.configPath)
	if err != nil {
		return err
	}
	monitoring.SetDebug(o.debug || cfg.GetDebug())

	desc, err := detector.Load(o.geometryPath)
	if err != nil {
		return err
	}
	groups, field, err := desc.Build(cfg)
	if err != nil {
		return err
	}

	opts := cradle.OptionsFromTuning(cfg)
	opts.Field = field
	c := cradle.New(opts)
	for _, g := range groups {
		c.Install(g)
	}
	c.Close()
	monitoring.Debugf("installed %d layers in %d groups, model %s", c.Len(), len(groups), c.Model())

	from, ok := detector.LayerNamed(groups, o.from)
	if !ok {
		return fmt.Errorf("unknown layer %q", o.from)
	}
	to, ok := detector.LayerNamed(groups, o.to)
	if !ok {
		return fmt.Errorf("unknown layer %q", o.to)
	}

	sv, err := parseFloats(o.state)
	if err != nil {
		return fmt.Errorf("-state: %w", err)
	}
	if len(sv) != 5 && len(sv) != 6 {
		return fmt.Errorf("-state: want 5 or 6 values, got %d", len(sv))
	}
	pv, err := parseFloats(o.pivot)
	if err != nil {
		return fmt.Errorf("-pivot: %w", err)
	}
	if len(pv) != 3 {
		return fmt.Errorf("-pivot: want 3 values, got %d", len(pv))
	}
	pivot := r3.Vec{X: pv[0], Y: pv[1], Z: pv[2]}

	site := newSite(from, pivot, mat.NewVecDense(len(sv), sv), field)
	site.Mass = cfg.GetParticleMassGeV()
	if o.mass > 0 {
		site.Mass = o.mass
	}

	res := c.Transport(site, to)
	if !res.Reached {
		monitoring.Logf("kaltransport: layer %q was not reached", to.Name)
	}

	if o.plotPath != "" {
		if err := report.PlotTrajectory(res, c.Layers(), o.plotPath); err != nil {
			return err
		}
	}
	if o.chartPath != "" {
		if err := writeChart(res, o.chartPath); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(newOutput(o.from, o.to, res))
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path != "" {
		return config.LoadTuningConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadTuningConfig(config.DefaultConfigPath)
	}
	return config.EmptyTuningConfig(), nil
}

// newSite places the state on layer l. Outside a field the site carries no
// field; in a non-uniform field its frame is aligned with the local field.
func newSite(l *cradle.Layer, pivot r3.Vec, sv *mat.VecDense, field bfield.Field) *cradle.Site {
	hit := cradle.Hit{Layer: l, Dimension: 2, Position: pivot, Field: bfield.Bz(field, pivot)}
	site := cradle.NewSite(hit, sv)
	if field != nil && !bfield.IsUniform(field) {
		site.AlignToField(field)
	}
	return site
}

func writeChart(res cradle.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if err := report.WriteNoiseChart(res, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type stepOutput struct {
	Layer      string     `json:"layer"`
	Crossing   [3]float64 `json:"crossing"`
	Deflection float64    `json:"deflection"`
	Skipped    bool       `json:"skipped,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	EnergyLoss float64    `json:"energy_loss"`
	NoiseTrace float64    `json:"noise_trace"`
}

type output struct {
	RunID    string       `json:"run_id"`
	From     string       `json:"from"`
	To       string       `json:"to"`
	Reached  bool         `json:"reached"`
	Crossed  int          `json:"crossed"`
	Outgoing bool         `json:"outgoing"`
	Pivot    [3]float64   `json:"pivot"`
	Field    float64      `json:"field"`
	State    []float64    `json:"state"`
	Jacobian [][]float64  `json:"jacobian"`
	Noise    [][]float64  `json:"noise"`
	Steps    []stepOutput `json:"steps"`
}

func newOutput(from, to string, res cradle.Result) output {
	p := res.GlobalPivot()
	out := output{
		RunID:    uuid.NewString(),
		From:     from,
		To:       to,
		Reached:  res.Reached,
		Crossed:  res.Crossed,
		Outgoing: res.Outgoing,
		Pivot:    [3]float64{p.X, p.Y, p.Z},
		Field:    res.Field,
		State:    mat.Col(nil, 0, res.State),
		Jacobian: rows(res.Jacobian),
		Noise:    rows(res.Noise),
	}
	for _, st := range res.Steps {
		out.Steps = append(out.Steps, stepOutput{
			Layer:      st.Layer.Name,
			Crossing:   [3]float64{st.Crossing.X, st.Crossing.Y, st.Crossing.Z},
			Deflection: st.Deflection,
			Skipped:    st.Skipped,
			Reason:     st.Reason,
			EnergyLoss: st.EnergyLoss,
			NoiseTrace: st.NoiseTrace,
		})
	}
	return out
}

func rows(m mat.Matrix) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
