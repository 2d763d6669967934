package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/kaltrack/internal/bfield"
	"github.com/banshee-data/kaltrack/internal/cradle"
	"github.com/banshee-data/kaltrack/internal/surface"
	"github.com/banshee-data/kaltrack/internal/version"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	exampleGeometry = filepath.Join("..", "..", "config", "detector.example.yaml")
	defaultTuning   = filepath.Join("..", "..", "config", "tuning.defaults.json")
)

func baseArgs() []string {
	return []string{
		"-config", defaultTuning,
		"-geometry", exampleGeometry,
		"-from", "vtx1",
		"-to", "trk2",
		"-pivot", "16,0,0",
		"-state", "0,-1.1903,1,0,0.3",
	}
}

func TestRunTransportsExample(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run(baseArgs(), &stdout))

	var out output
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	_, err := uuid.Parse(out.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "vtx1", out.From)
	assert.Equal(t, "trk2", out.To)
	assert.True(t, out.Reached)
	assert.True(t, out.Outgoing)
	assert.Equal(t, 5, out.Crossed)
	require.Len(t, out.State, 5)
	require.Len(t, out.Jacobian, 5)
	require.Len(t, out.Noise, 5)
	assert.Greater(t, out.Noise[1][1], 0.0)
	assert.InDelta(t, 120, r3.Norm(r3.Vec{X: out.Pivot[0], Y: out.Pivot[1]}), 1e-3)

	var skipped []string
	for _, st := range out.Steps {
		if st.Skipped {
			skipped = append(skipped, st.Layer)
		}
	}
	assert.Equal(t, []string{"disk1"}, skipped)
}

func TestRunWritesPlotAndChart(t *testing.T) {
	dir := t.TempDir()
	plotPath := filepath.Join(dir, "view.png")
	chartPath := filepath.Join(dir, "noise.html")

	var stdout bytes.Buffer
	args := append(baseArgs(), "-plot", plotPath, "-chart", chartPath)
	require.NoError(t, run(args, &stdout))

	info, err := os.Stat(plotPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	html, err := os.ReadFile(chartPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "trk1")
}

func TestRunVersion(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run([]string{"-version"}, &stdout))
	assert.True(t, strings.HasPrefix(stdout.String(), "kaltransport "+version.Version))
}

func TestRunErrors(t *testing.T) {
	replace := func(flagName, value string) []string {
		args := baseArgs()
		for i := 0; i < len(args); i += 2 {
			if args[i] == flagName {
				args[i+1] = value
			}
		}
		return args
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing flags", args: []string{"-geometry", exampleGeometry}, want: "required"},
		{name: "unknown from", args: replace("-from", "nope"), want: `unknown layer "nope"`},
		{name: "unknown to", args: replace("-to", "nope"), want: `unknown layer "nope"`},
		{name: "bad state", args: replace("-state", "0,x,1,0,0"), want: "-state"},
		{name: "short state", args: replace("-state", "0,1,1"), want: "want 5 or 6 values"},
		{name: "bad pivot", args: replace("-pivot", "1,2"), want: "want 3 values"},
		{name: "missing geometry", args: replace("-geometry", "missing.yaml"), want: "failed to stat"},
		{name: "bad config extension", args: replace("-config", "tuning.yaml"), want: ".json extension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewSite(t *testing.T) {
	l := cradle.NewLayer("l", surface.NewCylinder(10, 0), nil)
	sv := mat.NewVecDense(5, []float64{0, 0, 1, 0, 0})
	x := r3.Vec{X: 10, Z: 40}

	free := newSite(l, x, sv, nil)
	assert.Zero(t, free.Field)

	uni := newSite(l, x, sv, bfield.NewUniformZ(-1.5))
	assert.Equal(t, -1.5, uni.Field)
	assert.True(t, uni.Frame.IsIdentityRotation())
	assert.Equal(t, x, uni.Pivot)

	sol := bfield.Solenoid{B0: 2, Length: 100}
	aligned := newSite(l, x, sv, sol)
	assert.InDelta(t, bfield.Magnitude(sol, x), aligned.Field, 1e-12)
	assert.False(t, aligned.Frame.IsIdentityRotation())
	assert.InDelta(t, 0, r3.Norm(r3.Sub(x, aligned.GlobalPivot())), 1e-12)
}

func TestParseFloats(t *testing.T) {
	got, err := parseFloats(" 1, -2.5 ,3e-2")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2.5, 0.03}, got)

	_, err = parseFloats("1,,2")
	assert.Error(t, err)
}
