// Package render draws paired column values as a PNG scatter plot.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var ErrInvalidSize = errors.New("render: invalid image size")

// XY is one plotted point.
type XY struct {
	X float64
	Y float64
}

// Renderer turns points into an encoded image.
type Renderer interface {
	RenderScatter(ctx context.Context, points []XY, xLabel, yLabel string) ([]byte, error)
}

// Scatter renders a PNG with gonum/plot. Width and Height are in points
// (1/72 inch).
type Scatter struct {
	Width  vg.Length
	Height vg.Length
}

var _ Renderer = Scatter{}

func DefaultScatter() Scatter {
	return Scatter{Width: 6 * vg.Inch, Height: 4 * vg.Inch}
}

func (r Scatter) RenderScatter(ctx context.Context, points []XY, xLabel, yLabel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("%w: %vx%v", ErrInvalidSize, r.Width, r.Height)
	}

	p := plot.New()
	p.Title.Text = xLabel + " vs " + yLabel
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	if len(points) > 0 {
		xys := make(plotter.XYs, len(points))
		for i, pt := range points {
			xys[i].X = pt.X
			xys[i].Y = pt.Y
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("render: scatter: %w", err)
		}
		s.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		s.GlyphStyle.Radius = vg.Points(3)
		p.Add(s)
	}

	wt, err := p.WriterTo(r.Width, r.Height, "png")
	if err != nil {
		return nil, fmt.Errorf("render: png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
