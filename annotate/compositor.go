package annotate

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

// referenceWidth is the render width at which stroke widths, font
// sizes and the point-spacing threshold are expressed. Wider renders
// scale everything up proportionally so annotations stay legible.
const referenceWidth = 400.0

// minPointSpacing is the minimum distance, in reference units, between
// consecutive stroke points. Closer points are skipped, which smooths
// out jittery touch input.
const minPointSpacing = 8.0

// Compositor draws annotation pages onto rendered bitmaps. It holds a
// parsed font source, so one Compositor should be shared rather than
// recreated per render.
type Compositor struct {
	font *text.FontSource
}

// NewCompositor creates a compositor with the bundled Go Regular face.
func NewCompositor() (*Compositor, error) {
	source, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("unable to parse annotation font: %w", err)
	}
	return &Compositor{font: source}, nil
}

// Composite draws page onto img and returns the composited bitmap.
// img itself is not modified. An empty or nil page returns img
// unchanged. Strokes with fewer than two points are skipped.
func (c *Compositor) Composite(img *image.RGBA, page *Page) (*image.RGBA, error) {
	if page.Empty() {
		return img, nil
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	scale := float64(width) / referenceWidth

	dc := gg.NewContext(width, height)
	defer dc.Close()
	dc.DrawImage(gg.ImageBufFromImage(img), 0, 0)

	for _, stroke := range page.Strokes {
		if err := c.drawStroke(dc, stroke, width, height, scale); err != nil {
			return nil, err
		}
	}
	for _, item := range page.Texts {
		c.drawText(dc, item, width, height, scale)
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), dc.Image(), image.Point{}, draw.Src)
	return out, nil
}

func (c *Compositor) drawStroke(dc *gg.Context, stroke Stroke, width, height int, scale float64) error {
	points := thinPoints(stroke.Points, minPointSpacing*scale, float64(width), float64(height))
	if len(points) < 2 {
		return nil
	}

	dc.SetColor(stroke.Color)
	dc.SetLineWidth(stroke.Width * scale)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	// Quadratic midpoint smoothing: each sampled point acts as the
	// control point of a curve ending at the midpoint to its successor.
	dc.MoveTo(points[0].X, points[0].Y)
	for i := 1; i < len(points)-1; i++ {
		midX := (points[i].X + points[i+1].X) / 2
		midY := (points[i].Y + points[i+1].Y) / 2
		dc.QuadraticTo(points[i].X, points[i].Y, midX, midY)
	}
	last := points[len(points)-1]
	dc.LineTo(last.X, last.Y)

	if err := dc.Stroke(); err != nil {
		return fmt.Errorf("unable to stroke annotation path: %w", err)
	}
	return nil
}

func (c *Compositor) drawText(dc *gg.Context, item TextItem, width, height int, scale float64) {
	if item.Text == "" {
		return
	}
	size := item.FontSize * scale
	if size <= 0 {
		return
	}
	dc.SetFont(c.font.Face(size))
	dc.SetColor(item.Color)
	// DrawString takes a baseline position; the stored point is the
	// text's top-left corner.
	dc.DrawString(item.Text, item.At.X*float64(width), item.At.Y*float64(height)+size)
}

type pixelPoint struct {
	X, Y float64
}

// thinPoints scales normalized points into pixel space and drops
// points closer than minDist to the previously kept one. The final
// point is always kept so the stroke reaches its endpoint.
func thinPoints(points []Point, minDist, width, height float64) []pixelPoint {
	if len(points) == 0 {
		return nil
	}
	kept := make([]pixelPoint, 0, len(points))
	kept = append(kept, pixelPoint{points[0].X * width, points[0].Y * height})
	for i := 1; i < len(points); i++ {
		p := pixelPoint{points[i].X * width, points[i].Y * height}
		lastKept := kept[len(kept)-1]
		if math.Hypot(p.X-lastKept.X, p.Y-lastKept.Y) >= minDist || i == len(points)-1 {
			kept = append(kept, p)
		}
	}
	return kept
}
