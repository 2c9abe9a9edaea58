package render

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/zones"
)

func xys(pts []geometry.Point) plotter.XYs {
	out := make(plotter.XYs, len(pts))
	for i, p := range pts {
		out[i].X, out[i].Y = p.X, p.Y
	}
	return out
}

// kindHue spreads the zone kinds around the colour wheel.
var kindHue = map[zones.Kind]float64{
	zones.Regular:   1.0 / 3.0,
	zones.Exclusion: 0,
	zones.Entry:     0.6,
}

// Plot builds a static plot of the scene.
func Plot(scene Scene) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = scene.Title
	p.X.Label.Text = "X (mm)"
	p.Y.Label.Text = "Y (mm)"
	p.Add(plotter.NewGrid())

	b := scene.Bounds()
	p.X.Min, p.X.Max = b.Min[0], b.Max[0]
	p.Y.Min, p.Y.Max = b.Min[1], b.Max[1]
	// Room y grows downwards on screen.
	p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}

	if shell := scene.ShellOutline(); len(shell) > 1 {
		l, err := plotter.NewLine(xys(shell))
		if err != nil {
			return nil, fmt.Errorf("room outline: %w", err)
		}
		l.Color = color.Gray{Y: 128}
		l.Width = vg.Points(1.5)
		l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(l)
		p.Legend.Add("room", l)
	}

	for _, o := range scene.Outlines() {
		r, g, bl := hslToRGB(kindHue[o.Kind], 0.7, 0.5)
		poly, err := plotter.NewPolygon(xys(o.Points))
		if err != nil {
			return nil, fmt.Errorf("zone %s: %w", o.Name, err)
		}
		poly.Color = color.NRGBA{R: r, G: g, B: bl, A: 48}
		poly.LineStyle.Color = color.RGBA{R: r, G: g, B: bl, A: 255}
		poly.LineStyle.Width = vg.Points(1)
		p.Add(poly)
		p.Legend.Add(o.Name, poly)
	}

	device, err := plotter.NewScatter(xys([]geometry.Point{scene.Placement.Origin()}))
	if err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	device.GlyphStyle = draw.GlyphStyle{Color: color.Black, Radius: vg.Points(4), Shape: draw.SquareGlyph{}}
	p.Add(device)
	p.Legend.Add("device", device)

	if len(scene.Targets) > 0 {
		pts := make([]geometry.Point, len(scene.Targets))
		for i, t := range scene.Targets {
			pts[i] = t.Position
		}
		colors := generateColors(len(pts))
		targets, err := plotter.NewScatter(xys(pts))
		if err != nil {
			return nil, fmt.Errorf("targets: %w", err)
		}
		targets.GlyphStyle = draw.GlyphStyle{Radius: vg.Points(3), Shape: draw.CircleGlyph{}, Color: colors[0]}
		targets.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			return draw.GlyphStyle{Radius: vg.Points(3), Shape: draw.CircleGlyph{}, Color: colors[i]}
		}
		p.Add(targets)
		p.Legend.Add("targets", targets)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// PlotPNG renders the scene as a PNG of the given size in inches.
func PlotPNG(w io.Writer, scene Scene, width, height vg.Length) error {
	p, err := Plot(scene)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("png canvas: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// SavePlot writes the scene to file; the format follows the extension.
func SavePlot(file string, scene Scene, width, height vg.Length) error {
	p, err := Plot(scene)
	if err != nil {
		return err
	}
	return p.Save(width, height, file)
}

// generateColors returns n evenly spaced hues.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255), uint8(hueToRGB(p, q, h) * 255), uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
