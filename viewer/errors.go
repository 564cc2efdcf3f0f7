package viewer

import "errors"

// Error taxonomy for the render pipeline. Callers match with
// errors.Is; every failure crossing the render boundary wraps exactly
// one of these.
var (
	// ErrDocumentOpen means the source path is missing, unreadable or
	// not a valid document, or the session has been closed. Fatal for
	// the session until a new SetSource.
	ErrDocumentOpen = errors.New("document open failed")

	// ErrInvalidArgument means an out-of-range page index or a
	// non-positive target size. A caller bug; never retried.
	ErrInvalidArgument = errors.New("invalid render argument")

	// ErrRender means the underlying rasterization failed. Recoverable
	// by retrying at a smaller resolution or skipping the page.
	ErrRender = errors.New("page render failed")

	// ErrOutOfMemory means the output bitmap at the requested pixel
	// dimensions would exceed the allocation budget. Distinct from
	// ErrRender so callers can react by reducing resolution.
	ErrOutOfMemory = errors.New("bitmap allocation over budget")
)
