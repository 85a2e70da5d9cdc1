// Package plot draws the episode ratings of a show as a line chart.
package plot

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"strconv"

	"imrs-backend/internal/ratings"

	xdraw "golang.org/x/image/draw"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var ErrInvalidSize = errors.New("invalid canvas size")

const (
	MinWidth  = 200
	MinHeight = 150
	MaxWidth  = 4096
	MaxHeight = 4096
)

const (
	yMin = ratings.Placeholder
	yMax = 10.0

	titleSize    = 20
	lineWidth    = 2
	markerRadius = 2.5
)

// canvases are sized in points, at 72 dpi one point is one pixel.
const dpi = 72

// episodeTicks keeps only the whole episode numbers of the default ticks.
type episodeTicks struct{}

func (episodeTicks) Ticks(min, max float64) []gplot.Tick {
	var out []gplot.Tick
	for _, tick := range (gplot.DefaultTicks{}).Ticks(min, max) {
		if tick.Value < 1 || tick.Value != math.Trunc(tick.Value) {
			continue
		}
		if tick.Label != "" {
			tick.Label = strconv.Itoa(int(tick.Value))
		}
		out = append(out, tick)
	}
	return out
}

func ratingTicks() gplot.ConstantTicks {
	var ticks []gplot.Tick
	for r := int(yMin); r <= int(yMax); r++ {
		ticks = append(ticks, gplot.Tick{Value: float64(r), Label: strconv.Itoa(r)})
	}
	return ticks
}

func seasonName(label string) string {
	if _, err := strconv.Atoi(label); err == nil {
		return "Season " + label
	}
	return label
}

func seasonXYs(s Series) plotter.XYs {
	xys := make(plotter.XYs, len(s.Points))
	for i, p := range s.Points {
		xys[i].X = float64(p.Episode)
		xys[i].Y = p.Rating
	}
	return xys
}

// newChart lays out one line with markers per season over a fixed rating
// axis. Ratings that are not finite are rejected.
func newChart(title string, series []Series) (*gplot.Plot, error) {
	err := registerFonts()
	if err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}

	p := gplot.New()
	p.BackgroundColor = background
	p.Title.Text = fmt.Sprintf("Ratings for %s", title)
	p.Title.TextStyle.Font.Size = vg.Points(titleSize)
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = "Rating"
	p.X.Tick.Marker = episodeTicks{}
	p.Y.Tick.Marker = ratingTicks()

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridMinor
	grid.Horizontal.Color = gridMajor
	p.Add(grid)

	for _, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		line, points, err := plotter.NewLinePoints(seasonXYs(s))
		if err != nil {
			return nil, fmt.Errorf("season %s: %w", s.Season, err)
		}
		col := SeasonColor(s.Index)
		line.Color = col
		line.Width = vg.Points(lineWidth)
		points.Color = col
		points.Shape = draw.CircleGlyph{}
		points.Radius = vg.Points(markerRadius)

		p.Add(line, points)
		p.Legend.Add(seasonName(s.Season), line, points)
	}

	// Add widens the axes to the data, so the fixed ranges go last.
	p.X.Min = 0
	p.X.Max = float64(episodeCount(series) + 1)
	p.Y.Min = yMin
	p.Y.Max = yMax

	return p, nil
}

func newCanvas(width, height int) *vgimg.Canvas {
	return vgimg.NewWith(
		vgimg.UseWH(vg.Points(float64(width)), vg.Points(float64(height))),
		vgimg.UseDPI(dpi),
		vgimg.UseBackgroundColor(background),
	)
}

// Render draws every season of data as one continuous series into a
// width x height pixel buffer.
func Render(title string, data map[string]ratings.SeasonRatings, width, height int) (*image.RGBA, error) {
	if width < MinWidth || height < MinHeight || width > MaxWidth || height > MaxHeight {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	chart, err := newChart(title, BuildSeries(data))
	if err != nil {
		return nil, err
	}

	c := newCanvas(width, height)
	chart.Draw(draw.New(c))

	if img, ok := c.Image().(*image.RGBA); ok {
		return img, nil
	}
	img := image.NewRGBA(c.Image().Bounds())
	xdraw.Copy(img, image.Point{}, c.Image(), c.Image().Bounds(), xdraw.Src, nil)
	return img, nil
}

// EncodePNG writes img as a PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	return encoder.Encode(w, img)
}
