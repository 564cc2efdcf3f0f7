package viewer

import (
	"fmt"
	"sync"

	"github.com/jmallory/pdfview/pdfbackend"
)

// Session owns an open document handle for the lifetime of a displayed
// source. The handle is never touched except under the session's render
// mutex: most PDF libraries are not safe for concurrent page opens or
// renders on one document handle, so every render, every size probe and
// the close itself serialize through one lock. Close consequently
// blocks until any in-flight render has released the mutex, which is
// the one place hard synchronization (not generation-based discard) is
// required.
type Session struct {
	renderMu sync.Mutex

	path            string
	doc             pdfbackend.Document
	pageCount       int
	firstPageWidth  float64
	firstPageHeight float64
}

// OpenSession opens the document at path and probes page 0 for its box
// dimensions. Page count and first-page size are populated before the
// session is returned, so they are never observed half-initialized.
func OpenSession(backend pdfbackend.Backend, path string) (*Session, error) {
	doc, err := backend.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrDocumentOpen, path, err)
	}

	s := &Session{
		path:      path,
		doc:       doc,
		pageCount: doc.PageCount(),
	}
	if s.pageCount > 0 {
		width, height, err := doc.PageSize(0)
		if err != nil {
			doc.Close()
			return nil, fmt.Errorf("%w: %q: reading first page box: %v", ErrDocumentOpen, path, err)
		}
		s.firstPageWidth = width
		s.firstPageHeight = height
	}
	return s, nil
}

// Path returns the source path this session was opened from.
func (s *Session) Path() string {
	return s.path
}

// PageCount returns the number of pages in the document.
func (s *Session) PageCount() int {
	return s.pageCount
}

// FirstPageSize returns the first page's box in PDF points.
func (s *Session) FirstPageSize() (width, height float64) {
	return s.firstPageWidth, s.firstPageHeight
}

// RenderLocked runs fn with the document handle while holding the
// render mutex. Returns ErrDocumentOpen if the session has been closed.
func (s *Session) RenderLocked(fn func(doc pdfbackend.Document) error) error {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	if s.doc == nil {
		return fmt.Errorf("%w: session closed", ErrDocumentOpen)
	}
	return fn(s.doc)
}

// Close releases the document handle. Idempotent. Blocks until any
// in-flight render holding the mutex completes, so the handle is never
// freed under a renderer.
func (s *Session) Close() error {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	if err != nil {
		return fmt.Errorf("closing document %q: %w", s.path, err)
	}
	return nil
}
