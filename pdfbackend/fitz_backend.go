package pdfbackend

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzBackend implements PDF rendering using go-fitz (requires CGo and MuPDF)
type FitzBackend struct {
}

// NewFitzBackend creates a new Fitz-based PDF backend
func NewFitzBackend() *FitzBackend {
	return &FitzBackend{}
}

// Open opens the document at path using go-fitz
func (b *FitzBackend) Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) PageCount() int {
	if d.doc == nil {
		return 0
	}
	return d.doc.NumPage()
}

func (d *fitzDocument) PageSize(index int) (float64, float64, error) {
	if d.doc == nil {
		return 0, 0, fmt.Errorf("document is closed")
	}
	// Bound reports the page box in points at 72 DPI.
	bounds, err := d.doc.Bound(index)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to read page %d bounds: %w", index, err)
	}
	return float64(bounds.Dx()), float64(bounds.Dy()), nil
}

func (d *fitzDocument) RenderPage(index int, targetWidth int) (*image.RGBA, error) {
	if d.doc == nil {
		return nil, fmt.Errorf("document is closed")
	}
	pageWidth, _, err := d.PageSize(index)
	if err != nil {
		return nil, err
	}
	if pageWidth <= 0 {
		return nil, fmt.Errorf("page %d has non-positive width", index)
	}
	dpi := 72.0 * float64(targetWidth) / pageWidth
	img, err := d.doc.ImageDPI(index, dpi)
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", index, err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	if err != nil {
		return fmt.Errorf("unable to close PDF document: %w", err)
	}
	return nil
}
