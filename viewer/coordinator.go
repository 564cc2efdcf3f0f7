package viewer

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/jmallory/pdfview/annotate"
	"github.com/jmallory/pdfview/pagecache"
)

// Result is one completed page request.
type Result struct {
	Page   int
	Bitmap *image.RGBA
	Err    error
}

// Coordinator is the concurrency-correctness core around one session:
// it serves cache hits synchronously, de-duplicates concurrent renders
// of the same (page, width, height), and discards completions that a
// generation bump has superseded.
//
// The generation counter increases whenever prior in-flight work
// becomes irrelevant (page change, resize, source change, teardown). A
// render captures the generation at schedule time; its completion is
// delivered and cached only if the counter is unchanged. Superseded
// work runs to completion and is dropped silently: the underlying
// rasterizer offers no true cancellation, and after an invalidation
// the cache may be scoped to a new resolution, so stale bitmaps are
// not written back either.
type Coordinator struct {
	session  *Session
	renderer *Renderer
	cache    *pagecache.Cache
	mode     ResizeMode
	logger   *slog.Logger

	// annotations supplies the annotation page to bake for a page
	// index; nil means no annotations.
	annotations func(page int) *annotate.Page

	group      singleflight.Group
	generation atomic.Uint64
	inflight   sync.WaitGroup
}

// NewCoordinator wires a coordinator around an open session. The
// cache must be empty or scoped to this session; coordinators never
// share caches across sessions.
func NewCoordinator(session *Session, renderer *Renderer, cache *pagecache.Cache, mode ResizeMode, annotations func(page int) *annotate.Page, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		session:     session,
		renderer:    renderer,
		cache:       cache,
		mode:        mode,
		annotations: annotations,
		logger:      logger,
	}
}

// Generation returns the current render generation.
func (c *Coordinator) Generation() uint64 {
	return c.generation.Load()
}

// Bump invalidates all in-flight renders. Their results will be
// discarded on completion.
func (c *Coordinator) Bump() uint64 {
	return c.generation.Add(1)
}

// Request resolves a page asynchronously at the coordinator's default
// resize mode. Cache hits invoke deliver before Request returns;
// argument errors are delivered synchronously too, without scheduling a
// render. Misses render on a background goroutine, and deliver runs on
// that goroutine — at most once per Request, and not at all if the
// request is superseded.
func (c *Coordinator) Request(page, width, height int, deliver func(Result)) {
	c.RequestMode(page, width, height, c.mode, deliver)
}

// RequestMode is Request with an explicit resize mode, for callers that
// let each request pick its own scaling. The mode is part of the
// de-duplication key, so concurrent requests only join an in-flight
// render that matches their mode as well as their size.
func (c *Coordinator) RequestMode(page, width, height int, mode ResizeMode, deliver func(Result)) {
	generation := c.generation.Load()

	if bitmap, ok := c.cache.Get(page); ok {
		deliver(Result{Page: page, Bitmap: bitmap})
		return
	}

	if page < 0 || page >= c.session.PageCount() {
		deliver(Result{Page: page, Err: fmt.Errorf("%w: page %d out of range [0,%d)",
			ErrInvalidArgument, page, c.session.PageCount())})
		return
	}
	if width <= 0 || (mode == Contain && height <= 0) {
		deliver(Result{Page: page, Err: fmt.Errorf("%w: non-positive target size %dx%d",
			ErrInvalidArgument, width, height)})
		return
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		// Concurrent requests for the same page and size join the one
		// in-flight render instead of queueing a duplicate behind the
		// render mutex.
		key := fmt.Sprintf("%d:%dx%d:%d", page, width, height, mode)
		value, err, shared := c.group.Do(key, func() (interface{}, error) {
			var ann *annotate.Page
			if c.annotations != nil {
				ann = c.annotations(page)
			}
			return c.renderer.RenderPage(c.session, page, width, height, mode, ann)
		})
		if shared {
			c.logger.Debug("Joined in-flight render", "page", page, "key", key)
		}

		if c.generation.Load() != generation {
			c.logger.Debug("Discarding superseded render", "page", page,
				"scheduledGeneration", generation, "currentGeneration", c.generation.Load())
			return
		}

		if err != nil {
			deliver(Result{Page: page, Err: err})
			return
		}
		bitmap := value.(*image.RGBA)
		c.cache.Put(page, bitmap)
		deliver(Result{Page: page, Bitmap: bitmap})
	}()
}

// Wait blocks until every scheduled render goroutine has finished.
// Used during teardown and by tests; new requests issued concurrently
// with Wait are the caller's responsibility to avoid.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}
