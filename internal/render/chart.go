package render

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/zones"
)

// AssetsHost is where the rendered page loads the ECharts scripts from. An
// empty value keeps the go-echarts default CDN.
var AssetsHost = ""

var kindColors = map[zones.Kind]string{
	zones.Regular:   "#4caf50",
	zones.Exclusion: "#f44336",
	zones.Entry:     "#2196f3",
}

const (
	shellColor  = "#9e9e9e"
	targetColor = "#ffeb3b"
	deviceColor = "#ffffff"
)

func lineData(pts []geometry.Point) []opts.LineData {
	out := make([]opts.LineData, len(pts))
	for i, p := range pts {
		out[i] = opts.LineData{Value: []interface{}{math.Round(p.X), math.Round(p.Y)}}
	}
	return out
}

// Chart builds the interactive room view. The y axis is inverted so the
// page matches the editor, which draws room y downwards.
func Chart(scene Scene, width, height int) *charts.Scatter {
	b := scene.Bounds()

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  scene.Title,
			Theme:      "dark",
			Width:      fmt.Sprintf("%dpx", width),
			Height:     fmt.Sprintf("%dpx", height),
			AssetsHost: AssetsHost,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    scene.Title,
			Subtitle: fmt.Sprintf("%d targets, %d zones", len(scene.Targets), len(scene.Outlines())),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:         "value",
			Name:         "X (mm)",
			NameLocation: "middle",
			NameGap:      25,
			Min:          math.Floor(b.Min[0]),
			Max:          math.Ceil(b.Max[0]),
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:         "value",
			Name:         "Y (mm)",
			NameLocation: "middle",
			NameGap:      45,
			Min:          math.Floor(b.Min[1]),
			Max:          math.Ceil(b.Max[1]),
			Inverse:      opts.Bool(true),
		}),
	)

	device := scene.Placement.Origin()
	scatter.AddSeries("device", []opts.ScatterData{{
		Name:  fmt.Sprintf("device %.0f°", scene.Placement.RotationDeg),
		Value: []interface{}{device.X, device.Y},
	}},
		charts.WithScatterChartOpts(opts.ScatterChart{Symbol: "diamond", SymbolSize: 14}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: deviceColor}),
	)

	targets := make([]opts.ScatterData, 0, len(scene.Targets))
	for _, t := range scene.Targets {
		targets = append(targets, opts.ScatterData{
			Name:  fmt.Sprintf("target %d", t.ID),
			Value: []interface{}{math.Round(t.Position.X), math.Round(t.Position.Y)},
		})
	}
	scatter.AddSeries("targets", targets,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: targetColor}),
	)

	outlines := charts.NewLine()
	if shell := scene.ShellOutline(); len(shell) > 1 {
		outlines.AddSeries("room", lineData(shell),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: shellColor, Width: 2, Type: "dashed"}),
		)
	}
	for _, o := range scene.Outlines() {
		c := kindColors[o.Kind]
		outlines.AddSeries(o.Name, lineData(o.Points),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: c, Width: 2}),
			charts.WithAreaStyleOpts(opts.AreaStyle{Color: c, Opacity: opts.Float(0.15)}),
		)
	}
	scatter.Overlap(outlines)
	return scatter
}

// ChartHTML renders the room view as a standalone HTML page.
func ChartHTML(w io.Writer, scene Scene, width, height int) error {
	if err := Chart(scene, width, height).Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
