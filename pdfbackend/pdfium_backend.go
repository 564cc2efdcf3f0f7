package pdfbackend

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// PDFiumBackend implements PDF rendering using go-pdfium with WebAssembly (pure Go, no CGo)
type PDFiumBackend struct {
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

// NewPDFiumBackend creates a new PDFium-based backend using WebAssembly
func NewPDFiumBackend() (*PDFiumBackend, error) {
	// Single worker: the render mutex above this layer serializes all
	// calls anyway, so a larger pool would sit idle.
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &PDFiumBackend{
		pool:     pool,
		instance: instance,
	}, nil
}

// Open opens the document at path
func (b *PDFiumBackend) Open(path string) (Document, error) {
	pdfBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read PDF file: %w", err)
	}

	doc, err := b.instance.OpenDocument(&requests.OpenDocument{
		File: &pdfBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}

	pageCountResp, err := b.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		b.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		return nil, fmt.Errorf("unable to get page count: %w", err)
	}

	return &pdfiumDocument{
		backend:   b,
		document:  doc.Document,
		pageCount: pageCountResp.PageCount,
	}, nil
}

// Close shuts down the WebAssembly pool. Documents opened from this
// backend must be closed first.
func (b *PDFiumBackend) Close() error {
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
	}
	b.instance = nil
	return nil
}

type pdfiumDocument struct {
	backend   *PDFiumBackend
	document  references.FPDF_DOCUMENT
	pageCount int
	closed    bool
}

func (d *pdfiumDocument) PageCount() int {
	return d.pageCount
}

func (d *pdfiumDocument) PageSize(index int) (float64, float64, error) {
	if d.closed {
		return 0, 0, fmt.Errorf("document is closed")
	}
	sizeResp, err := d.backend.instance.GetPageSize(&requests.GetPageSize{
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.document,
				Index:    index,
			},
		},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("unable to read page %d size: %w", index, err)
	}
	return sizeResp.Width, sizeResp.Height, nil
}

func (d *pdfiumDocument) RenderPage(index int, targetWidth int) (*image.RGBA, error) {
	if d.closed {
		return nil, fmt.Errorf("document is closed")
	}
	pageWidth, _, err := d.PageSize(index)
	if err != nil {
		return nil, err
	}
	if pageWidth <= 0 {
		return nil, fmt.Errorf("page %d has non-positive width", index)
	}

	pageRender, err := d.backend.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: int(72.0*float64(targetWidth)/pageWidth + 0.5),
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.document,
				Index:    index,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", index, err)
	}
	// The result buffer is owned by the WebAssembly worker and freed by
	// Cleanup, so copy the pixels out first.
	src := pageRender.Result.Image
	out := image.NewRGBA(src.Bounds())
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)
	pageRender.Cleanup()

	return out, nil
}

func (d *pdfiumDocument) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	_, err := d.backend.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.document,
	})
	if err != nil {
		return fmt.Errorf("unable to close PDF document: %w", err)
	}
	return nil
}
