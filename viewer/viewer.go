// Package viewer is the page-image render-and-cache core behind a PDF
// viewing UI: it owns the document session, rasterizes pages at a
// target resolution with optional baked annotations, caches the
// results, and guarantees that a page is never rendered twice
// concurrently and that superseded in-flight renders are discarded.
package viewer

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/jmallory/pdfview/annotate"
	"github.com/jmallory/pdfview/pagecache"
	"github.com/jmallory/pdfview/pdfbackend"
)

// Events carries results back to the display component. Callbacks are
// invoked from render goroutines (or synchronously on cache hits);
// consumers needing a particular thread marshal there themselves. Nil
// callbacks are skipped.
type Events struct {
	// OnLoadComplete fires after SetSource opens a document, with the
	// page count and the first page's box in PDF points.
	OnLoadComplete func(pageCount int, firstPageWidth, firstPageHeight float64)

	// OnPageReady fires with the rendered bitmap for a requested page.
	OnPageReady func(page int, bitmap *image.RGBA)

	// OnPageError fires when a request fails; err wraps one of the
	// package's sentinel errors. Page is -1 for source-level failures.
	OnPageError func(page int, err error)
}

// Options configures a Viewer.
type Options struct {
	// CacheBytes bounds the page bitmap cache. Zero selects the
	// 64 MiB default.
	CacheBytes int64

	// Mode is the page scaling policy for every render.
	Mode ResizeMode

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Viewer is the inbound surface for one displayed document slot. It is
// safe for concurrent use. A Viewer with no source set fails requests
// with ErrDocumentOpen.
type Viewer struct {
	backend  pdfbackend.Backend
	renderer *Renderer
	cache    *pagecache.Cache
	mode     ResizeMode
	events   Events
	logger   *slog.Logger

	mu          sync.Mutex
	session     *Session
	coord       *Coordinator
	annotations map[int]*annotate.Page
	lastPage    int
	lastWidth   int
	lastHeight  int
	hasLast     bool
	torndown    bool
}

// New creates a Viewer rendering through backend.
func New(backend pdfbackend.Backend, opts Options, events Events) (*Viewer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer, err := NewRenderer(logger)
	if err != nil {
		return nil, err
	}
	cacheBytes := opts.CacheBytes
	if cacheBytes <= 0 {
		cacheBytes = 64 << 20
	}
	return &Viewer{
		backend:     backend,
		renderer:    renderer,
		cache:       pagecache.New(cacheBytes),
		mode:        opts.Mode,
		events:      events,
		logger:      logger,
		annotations: make(map[int]*annotate.Page),
	}, nil
}

// SetSource replaces the displayed document. Any previous session is
// invalidated and closed — close waits out an in-flight render on the
// old handle — and the page cache is cleared before the new document
// opens. Emits OnLoadComplete on success, OnPageError(-1, err) on
// failure.
func (v *Viewer) SetSource(path string) error {
	v.mu.Lock()
	if v.torndown {
		v.mu.Unlock()
		return fmt.Errorf("%w: viewer is torn down", ErrDocumentOpen)
	}
	oldSession := v.session
	oldCoord := v.coord
	v.session = nil
	v.coord = nil
	v.hasLast = false
	if oldCoord != nil {
		oldCoord.Bump()
	}
	v.cache.EvictAll()
	v.mu.Unlock()

	if oldSession != nil {
		if err := oldSession.Close(); err != nil {
			v.logger.Warn("Closing previous session failed", "path", oldSession.Path(), "error", err)
		}
	}

	session, err := OpenSession(v.backend, path)
	if err != nil {
		v.logger.Error("Unable to open document", "path", path, "error", err)
		v.emitPageError(-1, err)
		return err
	}

	coord := NewCoordinator(session, v.renderer, v.cache, v.mode, v.annotationFor, v.logger)

	v.mu.Lock()
	v.session = session
	v.coord = coord
	v.mu.Unlock()

	width, height := session.FirstPageSize()
	v.logger.Info("Document opened", "path", path,
		"pages", session.PageCount(), "firstPageWidth", width, "firstPageHeight", height)
	if v.events.OnLoadComplete != nil {
		v.events.OnLoadComplete(session.PageCount(), width, height)
	}
	return nil
}

// RequestPage resolves a page at the target size, from cache when
// possible, and reports through OnPageReady or OnPageError. Changing
// page bumps the render generation so an in-flight render of the
// previous page is discarded; changing the target size additionally
// clears the cache, since cached bitmaps for the old resolution are
// useless.
func (v *Viewer) RequestPage(page, width, height int) {
	v.mu.Lock()
	coord := v.coord
	if coord == nil {
		v.mu.Unlock()
		v.emitPageError(page, fmt.Errorf("%w: no source set", ErrDocumentOpen))
		return
	}
	if v.hasLast {
		if width != v.lastWidth || height != v.lastHeight {
			coord.Bump()
			v.cache.EvictAll()
		} else if page != v.lastPage {
			coord.Bump()
		}
	}
	v.lastPage, v.lastWidth, v.lastHeight = page, width, height
	v.hasLast = true
	v.mu.Unlock()

	coord.Request(page, width, height, func(res Result) {
		if res.Err != nil {
			v.emitPageError(res.Page, res.Err)
			return
		}
		if v.events.OnPageReady != nil {
			v.events.OnPageReady(res.Page, res.Bitmap)
		}
	})
}

// Invalidate discards all cached bitmaps and supersedes in-flight
// renders. Called on resize or rotation, when the target resolution is
// about to change.
func (v *Viewer) Invalidate() {
	v.mu.Lock()
	coord := v.coord
	v.hasLast = false
	v.mu.Unlock()
	if coord != nil {
		coord.Bump()
	}
	v.cache.EvictAll()
}

// SetAnnotations installs the annotation page baked into future
// renders of page; nil clears it. The page's cache entry is evicted so
// the next request re-renders with the new annotations.
func (v *Viewer) SetAnnotations(page int, ann *annotate.Page) {
	v.mu.Lock()
	if ann == nil {
		delete(v.annotations, page)
	} else {
		v.annotations[page] = ann
	}
	v.mu.Unlock()
	v.cache.Evict(page)
}

// Teardown invalidates outstanding work, drains render goroutines,
// clears the cache and closes the session. The viewer accepts no
// further sources afterwards. Idempotent.
func (v *Viewer) Teardown() {
	v.mu.Lock()
	if v.torndown {
		v.mu.Unlock()
		return
	}
	v.torndown = true
	session := v.session
	coord := v.coord
	v.session = nil
	v.coord = nil
	v.mu.Unlock()

	if coord != nil {
		coord.Bump()
		coord.Wait()
	}
	v.cache.EvictAll()
	if session != nil {
		if err := session.Close(); err != nil {
			v.logger.Warn("Closing session during teardown failed", "path", session.Path(), "error", err)
		}
	}
}

// Session returns the current session, or nil when no source is set.
func (v *Viewer) Session() *Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session
}

func (v *Viewer) annotationFor(page int) *annotate.Page {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.annotations[page]
}

func (v *Viewer) emitPageError(page int, err error) {
	if v.events.OnPageError != nil {
		v.events.OnPageError(page, err)
	}
}
