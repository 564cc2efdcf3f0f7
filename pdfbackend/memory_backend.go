package pdfbackend

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// MemoryBackend serves pre-rendered page images from memory. It backs
// tests and fixtures where a real PDF library (and its CGo or wasm
// runtime) would be dead weight. Page image dimensions are treated as
// the page size in points.
type MemoryBackend struct {
	docs map[string][]image.Image
}

// NewMemoryBackend creates a backend serving the given documents,
// keyed by the path passed to Open.
func NewMemoryBackend(docs map[string][]image.Image) *MemoryBackend {
	return &MemoryBackend{docs: docs}
}

// Open returns the in-memory document registered under path.
func (b *MemoryBackend) Open(path string) (Document, error) {
	pages, ok := b.docs[path]
	if !ok {
		return nil, fmt.Errorf("no document registered at %q", path)
	}
	return &memoryDocument{pages: pages}, nil
}

type memoryDocument struct {
	pages  []image.Image
	closed bool
}

func (d *memoryDocument) PageCount() int {
	if d.closed {
		return 0
	}
	return len(d.pages)
}

func (d *memoryDocument) PageSize(index int) (float64, float64, error) {
	if d.closed {
		return 0, 0, fmt.Errorf("document is closed")
	}
	if index < 0 || index >= len(d.pages) {
		return 0, 0, fmt.Errorf("page %d out of range [0,%d)", index, len(d.pages))
	}
	bounds := d.pages[index].Bounds()
	return float64(bounds.Dx()), float64(bounds.Dy()), nil
}

func (d *memoryDocument) RenderPage(index int, targetWidth int) (*image.RGBA, error) {
	if d.closed {
		return nil, fmt.Errorf("document is closed")
	}
	if index < 0 || index >= len(d.pages) {
		return nil, fmt.Errorf("page %d out of range [0,%d)", index, len(d.pages))
	}
	if targetWidth <= 0 {
		return nil, fmt.Errorf("non-positive target width %d", targetWidth)
	}
	scaled := imaging.Resize(d.pages[index], targetWidth, 0, imaging.Lanczos)
	out := image.NewRGBA(scaled.Bounds())
	draw.Draw(out, out.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
	return out, nil
}

func (d *memoryDocument) Close() error {
	d.closed = true
	return nil
}
