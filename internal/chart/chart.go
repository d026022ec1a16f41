// Package chart draws the cost, revenue and profit curves of a solved model
// with the optimum marked.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"PriceOptimizer/internal/calculator"
	"PriceOptimizer/internal/model"
	"PriceOptimizer/internal/symbolic"
)

// ErrRender is returned when a curve cannot be sampled or drawn.
var ErrRender = errors.New("render error")

const (
	// Samples is the number of evenly spaced prices per curve.
	Samples = 1000
	width   = 12 * vg.Inch
	height  = 8 * vg.Inch
	dpi     = 150
)

var (
	costColor    = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	revenueColor = color.RGBA{R: 20, G: 160, B: 20, A: 255}
	profitColor  = color.RGBA{R: 20, G: 60, B: 220, A: 255}
	markerColor  = color.RGBA{R: 255, G: 215, A: 255}
	guideColor   = color.Gray{Y: 128}
)

// Series is one sampled curve.
type Series struct {
	Name  string
	Color color.Color
	XYs   plotter.XYs
}

// Sample evaluates cost, revenue and profit at Samples prices spanning
// [0, 2*optimal price]. A curve undefined at price zero starts at the next
// sample; any other non-finite value fails.
func Sample(m *calculator.ProfitModel, res model.Result) ([]Series, error) {
	curves := []struct {
		name  string
		expr  symbolic.Expr
		color color.Color
	}{
		{"Cost", m.Cost, costColor},
		{"Revenue", m.Revenue, revenueColor},
		{"Profit", m.Profit, profitColor},
	}
	hi := 2 * res.OptimalPrice
	out := make([]Series, 0, len(curves))
	for _, c := range curves {
		f, err := symbolic.Lambdify(c.expr, m.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRender, c.name, err)
		}
		xys := make(plotter.XYs, 0, Samples)
		for i := 0; i < Samples; i++ {
			x := hi * float64(i) / float64(Samples-1)
			y, err := f.Eval(x)
			if err != nil {
				return nil, fmt.Errorf("%w: %s at %g: %v", ErrRender, c.name, x, err)
			}
			if math.IsNaN(y) || math.IsInf(y, 0) {
				// Price zero lies outside the domain; curves such as
				// p**-1.5 are undefined there.
				if i == 0 {
					continue
				}
				return nil, fmt.Errorf("%w: %s is not finite at %g", ErrRender, c.name, x)
			}
			xys = append(xys, plotter.XY{X: x, Y: y})
		}
		out = append(out, Series{Name: c.name, Color: c.color, XYs: xys})
	}
	return out, nil
}

// Render returns the chart as PNG bytes. Each call builds its own plot and
// canvas.
func Render(m *calculator.ProfitModel, res model.Result) ([]byte, error) {
	series, err := Sample(m, res)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = "Cost, Revenue and Profit"
	p.X.Label.Text = "Price"
	p.Y.Label.Text = "Value"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for _, s := range series {
		l, err := plotter.NewLine(s.XYs)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line: %v", ErrRender, s.Name, err)
		}
		l.LineStyle.Width = vg.Points(2)
		l.LineStyle.Color = s.Color
		p.Add(l)
		p.Legend.Add(s.Name, l)
	}

	if err := addOptimum(p, res); err != nil {
		return nil, err
	}

	c := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(dpi))
	p.Draw(draw.New(c))
	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: encode png: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

func addOptimum(p *plot.Plot, res model.Result) error {
	x, y := res.OptimalPrice, res.MaxProfit
	guides := []plotter.XYs{
		{{X: x, Y: 0}, {X: x, Y: y}},
		{{X: 0, Y: y}, {X: x, Y: y}},
	}
	for _, g := range guides {
		l, err := plotter.NewLine(g)
		if err != nil {
			return fmt.Errorf("%w: guide line: %v", ErrRender, err)
		}
		l.LineStyle.Color = guideColor
		l.LineStyle.Width = vg.Points(1)
		l.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		p.Add(l)
	}

	pt := plotter.XYs{{X: x, Y: y}}
	fill, err := plotter.NewScatter(pt)
	if err != nil {
		return fmt.Errorf("%w: marker: %v", ErrRender, err)
	}
	fill.GlyphStyle.Shape = draw.CircleGlyph{}
	fill.GlyphStyle.Color = markerColor
	fill.GlyphStyle.Radius = vg.Points(6)
	edge, err := plotter.NewScatter(pt)
	if err != nil {
		return fmt.Errorf("%w: marker: %v", ErrRender, err)
	}
	edge.GlyphStyle.Shape = draw.RingGlyph{}
	edge.GlyphStyle.Color = color.Black
	edge.GlyphStyle.Radius = vg.Points(6)
	p.Add(fill, edge)
	p.Legend.Add(OptimumLabel(res), fill, edge)
	return nil
}

// OptimumLabel is the legend text of the optimum marker.
func OptimumLabel(res model.Result) string {
	return fmt.Sprintf("Optimum (%s, %s)",
		decimal.NewFromFloat(res.OptimalPrice).StringFixed(2),
		decimal.NewFromFloat(res.MaxProfit).StringFixed(2))
}
