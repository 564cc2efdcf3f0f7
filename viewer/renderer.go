package viewer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"

	"github.com/jmallory/pdfview/annotate"
	"github.com/jmallory/pdfview/pdfbackend"
)

// ResizeMode selects how page content is scaled into the target box.
type ResizeMode int

const (
	// FitWidth scales the page to exactly the target width and derives
	// the output height from the page aspect ratio; the target height
	// argument is ignored.
	FitWidth ResizeMode = iota

	// Contain letterboxes the page, centered on white, inside the
	// fixed target width x height box.
	Contain
)

// ParseResizeMode parses the config-level mode name.
func ParseResizeMode(name string) (ResizeMode, error) {
	switch name {
	case "fitwidth":
		return FitWidth, nil
	case "contain":
		return Contain, nil
	default:
		return FitWidth, fmt.Errorf("unknown resize mode %q", name)
	}
}

// maxRenderPixels caps the output bitmap at 64 megapixels (256 MiB of
// RGBA). Requests above it fail with ErrOutOfMemory instead of letting
// a runaway zoom level exhaust the process.
const maxRenderPixels = 64 << 20

// Renderer turns a (session, page, target size) request into a bitmap,
// optionally baking an annotation page on top. Renderers are stateless
// apart from the shared annotation compositor and may be used from
// multiple goroutines; the per-document serialization lives in the
// session's render mutex.
type Renderer struct {
	compositor *annotate.Compositor
	logger     *slog.Logger
}

// NewRenderer creates a renderer with its own annotation compositor.
// A nil logger falls back to slog.Default.
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compositor, err := annotate.NewCompositor()
	if err != nil {
		return nil, err
	}
	return &Renderer{compositor: compositor, logger: logger}, nil
}

// RenderPage rasterizes the page into a width x height bitmap per
// mode. Preconditions are checked before any document access:
// 0 <= page < pageCount, width > 0, and height > 0 for Contain.
// Violations fail with ErrInvalidArgument. Rasterization happens under
// the session's render mutex; scaling and annotation compositing work
// on the private output buffer after the mutex is released.
func (r *Renderer) RenderPage(session *Session, page, width, height int, mode ResizeMode, ann *annotate.Page) (*image.RGBA, error) {
	if page < 0 || page >= session.PageCount() {
		return nil, fmt.Errorf("%w: page %d out of range [0,%d)", ErrInvalidArgument, page, session.PageCount())
	}
	if width <= 0 {
		return nil, fmt.Errorf("%w: non-positive target width %d", ErrInvalidArgument, width)
	}
	if mode == Contain && height <= 0 {
		return nil, fmt.Errorf("%w: non-positive target height %d", ErrInvalidArgument, height)
	}

	var raw *image.RGBA
	var outWidth, outHeight int
	err := session.RenderLocked(func(doc pdfbackend.Document) error {
		pageWidth, pageHeight, err := doc.PageSize(page)
		if err != nil {
			return fmt.Errorf("%w: page %d size: %v", ErrRender, page, err)
		}
		if pageWidth <= 0 || pageHeight <= 0 {
			return fmt.Errorf("%w: page %d has degenerate box %gx%g", ErrRender, page, pageWidth, pageHeight)
		}

		outWidth = width
		if mode == FitWidth {
			outHeight = int(math.Round(float64(width) * pageHeight / pageWidth))
			if outHeight < 1 {
				outHeight = 1
			}
		} else {
			outHeight = height
		}
		if int64(outWidth)*int64(outHeight) > maxRenderPixels {
			return fmt.Errorf("%w: %dx%d exceeds render budget", ErrOutOfMemory, outWidth, outHeight)
		}

		raw, err = doc.RenderPage(page, rasterWidth(pageWidth, pageHeight, outWidth, outHeight, mode))
		if err != nil {
			return fmt.Errorf("%w: page %d: %v", ErrRender, page, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := r.scaleToTarget(raw, outWidth, outHeight, mode)

	if !ann.Empty() {
		composited, err := r.compositor.Composite(out, ann)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d annotations: %v", ErrRender, page, err)
		}
		out = composited
	}

	r.logger.Debug("Rendered page", "page", page,
		"width", out.Bounds().Dx(), "height", out.Bounds().Dy(),
		"annotated", !ann.Empty())
	return out, nil
}

// rasterWidth picks the pixel width to ask the backend for. FitWidth
// rasterizes at the target width directly. Contain rasterizes at the
// width the page will occupy inside the box, so the Lanczos pass only
// ever downscales by a pixel or two of DPI rounding.
func rasterWidth(pageWidth, pageHeight float64, boxWidth, boxHeight int, mode ResizeMode) int {
	if mode == FitWidth {
		return boxWidth
	}
	scale := math.Min(float64(boxWidth)/pageWidth, float64(boxHeight)/pageHeight)
	w := int(math.Round(pageWidth * scale))
	if w < 1 {
		w = 1
	}
	return w
}

func (r *Renderer) scaleToTarget(raw *image.RGBA, width, height int, mode ResizeMode) *image.RGBA {
	var scaled image.Image
	if mode == FitWidth {
		scaled = imaging.Resize(raw, width, height, imaging.Lanczos)
	} else {
		fitted := imaging.Fit(raw, width, height, imaging.Lanczos)
		canvas := imaging.New(width, height, color.White)
		scaled = imaging.PasteCenter(canvas, fitted)
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
	return out
}
