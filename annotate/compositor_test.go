package annotate

import (
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func whitePage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func TestComposite_EmptyPageIsPassthrough(t *testing.T) {
	c, err := NewCompositor()
	if err != nil {
		t.Fatalf("NewCompositor failed: %v", err)
	}
	base := whitePage(200, 260)

	for _, page := range []*Page{nil, {}} {
		got, err := c.Composite(base, page)
		if err != nil {
			t.Fatalf("Composite failed: %v", err)
		}
		if diff := cmp.Diff(base.Pix, got.Pix); diff != "" {
			t.Errorf("Empty page changed pixels (-want +got):\n%s", diff)
		}
	}
}

func TestComposite_StrokeDrawsPixels(t *testing.T) {
	c, err := NewCompositor()
	if err != nil {
		t.Fatalf("NewCompositor failed: %v", err)
	}
	base := whitePage(400, 400)
	page := &Page{
		Strokes: []Stroke{{
			Color: color.RGBA{R: 255, A: 255},
			Width: 4,
			Points: []Point{
				{X: 0.1, Y: 0.5},
				{X: 0.5, Y: 0.2},
				{X: 0.9, Y: 0.5},
			},
		}},
	}

	got, err := c.Composite(base, page)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	if cmp.Equal(base.Pix, got.Pix) {
		t.Error("Expected stroke to change pixels")
	}
	if got.Bounds() != base.Bounds() {
		t.Errorf("Expected unchanged dimensions, got %v", got.Bounds())
	}
}

func TestComposite_SinglePointStrokeSkipped(t *testing.T) {
	c, err := NewCompositor()
	if err != nil {
		t.Fatalf("NewCompositor failed: %v", err)
	}
	base := whitePage(200, 200)
	page := &Page{
		Strokes: []Stroke{{
			Color:  color.RGBA{B: 255, A: 255},
			Width:  10,
			Points: []Point{{X: 0.5, Y: 0.5}},
		}},
	}

	got, err := c.Composite(base, page)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	if diff := cmp.Diff(base.Pix, got.Pix); diff != "" {
		t.Errorf("Sub-2-point stroke should draw nothing (-want +got):\n%s", diff)
	}
}

func TestComposite_TextDrawsPixels(t *testing.T) {
	c, err := NewCompositor()
	if err != nil {
		t.Fatalf("NewCompositor failed: %v", err)
	}
	base := whitePage(400, 400)
	page := &Page{
		Texts: []TextItem{{
			Color:    color.RGBA{A: 255},
			FontSize: 16,
			At:       Point{X: 0.1, Y: 0.1},
			Text:     "reviewed",
		}},
	}

	got, err := c.Composite(base, page)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	if cmp.Equal(base.Pix, got.Pix) {
		t.Error("Expected text to change pixels")
	}
}

func TestComposite_DoesNotModifyInput(t *testing.T) {
	c, err := NewCompositor()
	if err != nil {
		t.Fatalf("NewCompositor failed: %v", err)
	}
	base := whitePage(400, 400)
	before := make([]byte, len(base.Pix))
	copy(before, base.Pix)

	_, err = c.Composite(base, &Page{
		Strokes: []Stroke{{
			Color:  color.RGBA{G: 200, A: 255},
			Width:  3,
			Points: []Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
		}},
	})
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	if diff := cmp.Diff(before, base.Pix); diff != "" {
		t.Errorf("Input bitmap was modified (-want +got):\n%s", diff)
	}
}

func TestThinPoints_DropsNearDuplicates(t *testing.T) {
	points := []Point{
		{X: 0.0, Y: 0.0},
		{X: 0.001, Y: 0.001}, // sub-threshold jitter
		{X: 0.002, Y: 0.0},
		{X: 0.5, Y: 0.5},
		{X: 1.0, Y: 1.0},
	}
	kept := thinPoints(points, 8, 400, 400)
	if len(kept) != 3 {
		t.Fatalf("Expected 3 kept points, got %d: %v", len(kept), kept)
	}
	last := kept[len(kept)-1]
	if last.X != 400 || last.Y != 400 {
		t.Errorf("Expected final point kept, got %v", last)
	}
}

func TestThinPoints_AlwaysKeepsEndpoint(t *testing.T) {
	points := []Point{
		{X: 0.5, Y: 0.5},
		{X: 0.5005, Y: 0.5}, // all within threshold of the first
		{X: 0.501, Y: 0.5},
	}
	kept := thinPoints(points, 8, 400, 400)
	if len(kept) != 2 {
		t.Fatalf("Expected first and last point kept, got %d", len(kept))
	}
}
