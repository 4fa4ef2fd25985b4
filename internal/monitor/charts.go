package monitor

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/stabilize/internal/motion"
)

// RenderMotionChart writes an HTML line chart of gyro and linear-motion
// magnitudes for the given samples (oldest first). Used by the live /debug
// endpoint and the offline replay report.
func RenderMotionChart(w io.Writer, samples []motion.MotionSample, title string) error {
	xAxis := make([]string, len(samples))
	gyroMag := make([]opts.LineData, len(samples))
	accelMag := make([]opts.LineData, len(samples))

	var t0 int64
	if len(samples) > 0 {
		t0 = samples[0].TimestampNanos
	}
	for i, s := range samples {
		xAxis[i] = fmt.Sprintf("%.2f", float64(s.TimestampNanos-t0)/1e9)
		gyroMag[i] = opts.LineData{Value: s.Gyro.Norm()}
		accelMag[i] = opts.LineData{Value: s.Accel.Norm()}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("samples=%d", len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "magnitude"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis).
		AddSeries("gyro |ω| (rad/s)", gyroMag).
		AddSeries("accel |a| (m/s²)", accelMag)

	return line.Render(w)
}
