package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/kaltrack/internal/cradle"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ErrNoSteps is returned when a result has no accepted step to chart.
var ErrNoSteps = errors.New("report: result has no accepted steps")

// WriteNoiseChart renders, for every accepted step of res, the trace of the
// accumulated process noise and the curvature correction from energy loss
// as an HTML line chart.
func WriteNoiseChart(res cradle.Result, w io.Writer) error {
	var (
		names []string
		trace []opts.LineData
		dedx  []opts.LineData
	)
	for _, st := range res.Steps {
		if st.Skipped {
			continue
		}
		names = append(names, st.Layer.Name)
		trace = append(trace, opts.LineData{Value: st.NoiseTrace, Name: st.Layer.Name})
		dedx = append(dedx, opts.LineData{Value: st.EnergyLoss, Name: st.Layer.Name})
	}
	if len(names) == 0 {
		return ErrNoSteps
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Transport noise", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Process noise growth",
			Subtitle: fmt.Sprintf("crossed=%d reached=%t outgoing=%t", res.Crossed, res.Reached, res.Outgoing),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "layer", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "value", Type: "value"}),
	)
	line.SetXAxis(names).
		AddSeries("trace(Q)", trace).
		AddSeries("Δκ (energy loss)", dedx)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render noise chart: %w", err)
	}
	return nil
}
