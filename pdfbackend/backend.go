// Package pdfbackend abstracts the PDF rasterization primitive behind a
// small interface so the render pipeline above it never touches a
// library-specific document handle directly.
package pdfbackend

import (
	"fmt"
	"image"
)

// Document is an open PDF document. Implementations are NOT safe for
// concurrent use; callers serialize access (the viewer layer holds a
// render mutex around every call).
type Document interface {
	// PageCount returns the number of pages in the document.
	PageCount() int

	// PageSize returns the page box of the given zero-based page in
	// PDF points (1/72 inch).
	PageSize(index int) (width, height float64, err error)

	// RenderPage rasterizes the given zero-based page scaled so the
	// page content is approximately targetWidth pixels wide. The exact
	// output width may differ by a pixel or two depending on the
	// backend's DPI rounding; callers needing exact dimensions resize
	// the result.
	RenderPage(index int, targetWidth int) (*image.RGBA, error)

	// Close releases the document handle. Implementations must be
	// idempotent.
	Close() error
}

// Backend opens documents. One Backend may be shared across sessions.
type Backend interface {
	Open(path string) (Document, error)
}

// New creates the named rasterization backend.
// "fitz" uses MuPDF via CGo; "pdfium" uses PDFium compiled to
// WebAssembly (pure Go, no CGo).
func New(name string) (Backend, error) {
	switch name {
	case "fitz":
		return NewFitzBackend(), nil
	case "pdfium":
		return NewPDFiumBackend()
	default:
		return nil, fmt.Errorf("unknown render backend %q", name)
	}
}
