package viewer

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/jmallory/pdfview/pdfbackend"
)

// fakeDocument is a scriptable pdfbackend.Document for exercising the
// coordinator's concurrency behavior: renders can be gated on a
// channel and invocations are counted per page.
type fakeDocument struct {
	pages      int
	pageWidth  float64
	pageHeight float64

	// gate, when non-nil, blocks every RenderPage until it is closed
	// or receives a value.
	gate chan struct{}
	// started receives one value per RenderPage entry when non-nil.
	started chan struct{}

	mu          sync.Mutex
	renderCalls map[int]int
	closed      bool
	closeCalls  int
	renderErr   error
}

func newFakeDocument(pages int, pageWidth, pageHeight float64) *fakeDocument {
	return &fakeDocument{
		pages:       pages,
		pageWidth:   pageWidth,
		pageHeight:  pageHeight,
		renderCalls: make(map[int]int),
	}
}

func (d *fakeDocument) PageCount() int {
	return d.pages
}

func (d *fakeDocument) PageSize(index int) (float64, float64, error) {
	if index < 0 || index >= d.pages {
		return 0, 0, fmt.Errorf("page %d out of range", index)
	}
	return d.pageWidth, d.pageHeight, nil
}

func (d *fakeDocument) RenderPage(index int, targetWidth int) (*image.RGBA, error) {
	d.mu.Lock()
	d.renderCalls[index]++
	err := d.renderErr
	d.mu.Unlock()

	if d.started != nil {
		d.started <- struct{}{}
	}
	if d.gate != nil {
		<-d.gate
	}
	if err != nil {
		return nil, err
	}

	height := int(math.Round(float64(targetWidth) * d.pageHeight / d.pageWidth))
	return image.NewRGBA(image.Rect(0, 0, targetWidth, height)), nil
}

func (d *fakeDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeCalls++
	if d.closed {
		return errors.New("double close")
	}
	d.closed = true
	return nil
}

func (d *fakeDocument) calls(page int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.renderCalls[page]
}

// fakeBackend hands out one fakeDocument per registered path.
type fakeBackend struct {
	docs map[string]*fakeDocument
}

func (b *fakeBackend) Open(path string) (pdfbackend.Document, error) {
	d, ok := b.docs[path]
	if !ok {
		return nil, fmt.Errorf("no such document %q", path)
	}
	return d, nil
}
