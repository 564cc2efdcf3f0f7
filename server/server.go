// Package server exposes the render core over HTTP for previewing:
// open a document, fetch pages as PNG, close it again. Each open
// document gets a ULID-keyed session with its own page cache; idle
// sessions are reaped on a schedule.
package server

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/jmallory/pdfview/config"
	"github.com/jmallory/pdfview/pagecache"
	"github.com/jmallory/pdfview/pdfbackend"
	"github.com/jmallory/pdfview/viewer"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// renderTimeout bounds how long one page request may sit behind the
// render mutex before the HTTP caller gets an error.
const renderTimeout = 30 * time.Second

type documentSession struct {
	id      string
	path    string
	session *viewer.Session
	coord   *viewer.Coordinator
	cache   *pagecache.Cache

	mu         sync.Mutex
	lastUsed   time.Time
	lastWidth  int
	lastHeight int
	lastMode   viewer.ResizeMode
	hasTarget  bool
}

func (d *documentSession) touch() {
	d.mu.Lock()
	d.lastUsed = time.Now()
	d.mu.Unlock()
}

// noteTarget records the size and mode of the latest page request. The
// cache is keyed by page index alone, so when the target changes every
// cached bitmap is for the wrong output: bump the generation and clear
// the cache, the same invalidation the viewer facade does on resize.
func (d *documentSession) noteTarget(width, height int, mode viewer.ResizeMode) {
	d.mu.Lock()
	changed := d.hasTarget && (width != d.lastWidth || height != d.lastHeight || mode != d.lastMode)
	d.lastWidth, d.lastHeight, d.lastMode = width, height, mode
	d.hasTarget = true
	d.mu.Unlock()

	if changed {
		d.coord.Bump()
		d.cache.EvictAll()
	}
}

func (d *documentSession) idleSince() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastUsed
}

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Backend      pdfbackend.Backend
	Renderer     *viewer.Renderer
	Mode         viewer.ResizeMode

	mu       sync.Mutex
	sessions map[string]*documentSession
}

// NewServerHandler builds the handler and its render pipeline.
func NewServerHandler(e *echo.Echo, serverConfig config.ServerConfig, backend pdfbackend.Backend) (*ServerHandler, error) {
	if Logger == nil {
		Logger = slog.Default()
	}
	renderer, err := viewer.NewRenderer(Logger)
	if err != nil {
		return nil, fmt.Errorf("unable to create renderer: %w", err)
	}
	mode, err := viewer.ParseResizeMode(serverConfig.ResizeMode)
	if err != nil {
		Logger.Warn("Unknown resize mode, using fitwidth", "mode", serverConfig.ResizeMode)
		mode = viewer.FitWidth
	}
	return &ServerHandler{
		Echo:         e,
		ServerConfig: serverConfig,
		Backend:      backend,
		Renderer:     renderer,
		Mode:         mode,
		sessions:     make(map[string]*documentSession),
	}, nil
}

// SetupRoutes registers all preview routes on the echo instance.
func (serverHandler *ServerHandler) SetupRoutes() {
	serverHandler.Echo.GET("/health", serverHandler.Health)
	serverHandler.Echo.POST("/documents", serverHandler.OpenDocument)
	serverHandler.Echo.GET("/documents/:id/pages/:page", serverHandler.RenderPage)
	serverHandler.Echo.DELETE("/documents/:id", serverHandler.CloseDocument)
}

type openDocumentResponse struct {
	ID              string  `json:"id"`
	PageCount       int     `json:"pageCount"`
	FirstPageWidth  float64 `json:"firstPageWidth"`
	FirstPageHeight float64 `json:"firstPageHeight"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Health reports service liveness
func (serverHandler *ServerHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// OpenDocument opens a PDF under the document root and returns a
// session id plus the document's page count and first-page box.
func (serverHandler *ServerHandler) OpenDocument(c echo.Context) error {
	relPath := c.QueryParam("path")
	if relPath == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "missing path parameter"})
	}

	fullPath, err := serverHandler.resolvePath(relPath)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	session, err := viewer.OpenSession(serverHandler.Backend, fullPath)
	if err != nil {
		Logger.Error("Unable to open document", "path", fullPath, "error", err)
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	}

	cache := pagecache.New(serverHandler.ServerConfig.CacheBytes)
	doc := &documentSession{
		id:       ulid.Make().String(),
		path:     fullPath,
		session:  session,
		coord:    viewer.NewCoordinator(session, serverHandler.Renderer, cache, serverHandler.Mode, nil, Logger),
		cache:    cache,
		lastUsed: time.Now(),
	}

	serverHandler.mu.Lock()
	serverHandler.sessions[doc.id] = doc
	serverHandler.mu.Unlock()

	width, height := session.FirstPageSize()
	Logger.Info("Document session opened", "id", doc.id, "path", fullPath, "pages", session.PageCount())
	return c.JSON(http.StatusCreated, openDocumentResponse{
		ID:              doc.id,
		PageCount:       session.PageCount(),
		FirstPageWidth:  width,
		FirstPageHeight: height,
	})
}

// RenderPage renders one page of an open session and responds with PNG
func (serverHandler *ServerHandler) RenderPage(c echo.Context) error {
	doc := serverHandler.lookup(c.Param("id"))
	if doc == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "unknown document session"})
	}
	doc.touch()

	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "page must be an integer"})
	}
	width, err := strconv.Atoi(c.QueryParam("width"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "width must be an integer"})
	}
	height := 0
	if raw := c.QueryParam("height"); raw != "" {
		height, err = strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "height must be an integer"})
		}
	}
	mode := serverHandler.Mode
	if raw := c.QueryParam("mode"); raw != "" {
		mode, err = viewer.ParseResizeMode(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
	}

	// Invalid sizes are rejected below without touching the cache.
	if width > 0 && (mode == viewer.FitWidth || height > 0) {
		doc.noteTarget(width, height, mode)
	}

	results := make(chan viewer.Result, 1)
	doc.coord.RequestMode(page, width, height, mode, func(r viewer.Result) { results <- r })

	var result viewer.Result
	select {
	case result = <-results:
	case <-time.After(renderTimeout):
		Logger.Error("Render timed out", "id", doc.id, "page", page)
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: "render timed out"})
	}

	if result.Err != nil {
		return serverHandler.renderError(c, doc.id, page, result.Err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result.Bitmap); err != nil {
		Logger.Error("Unable to encode PNG", "id", doc.id, "page", page, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "png encoding failed"})
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

// CloseDocument tears down an open session
func (serverHandler *ServerHandler) CloseDocument(c echo.Context) error {
	id := c.Param("id")
	serverHandler.mu.Lock()
	doc, ok := serverHandler.sessions[id]
	delete(serverHandler.sessions, id)
	serverHandler.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "unknown document session"})
	}

	serverHandler.closeSession(doc)
	return c.NoContent(http.StatusNoContent)
}

// CloseAll closes every open session. Used on shutdown.
func (serverHandler *ServerHandler) CloseAll() {
	serverHandler.mu.Lock()
	docs := make([]*documentSession, 0, len(serverHandler.sessions))
	for _, doc := range serverHandler.sessions {
		docs = append(docs, doc)
	}
	serverHandler.sessions = make(map[string]*documentSession)
	serverHandler.mu.Unlock()

	for _, doc := range docs {
		serverHandler.closeSession(doc)
	}
}

func (serverHandler *ServerHandler) closeSession(doc *documentSession) {
	doc.coord.Bump()
	doc.coord.Wait()
	doc.cache.EvictAll()
	if err := doc.session.Close(); err != nil {
		Logger.Warn("Closing document session failed", "id", doc.id, "error", err)
	}
	Logger.Info("Document session closed", "id", doc.id, "path", doc.path)
}

func (serverHandler *ServerHandler) lookup(id string) *documentSession {
	serverHandler.mu.Lock()
	defer serverHandler.mu.Unlock()
	return serverHandler.sessions[id]
}

// resolvePath confines requested paths to the configured document root.
func (serverHandler *ServerHandler) resolvePath(relPath string) (string, error) {
	root := serverHandler.ServerConfig.DocumentRoot
	fullPath := filepath.Join(root, filepath.FromSlash(relPath))
	rel, err := filepath.Rel(root, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the document root", relPath)
	}
	return fullPath, nil
}

func (serverHandler *ServerHandler) renderError(c echo.Context, id string, page int, err error) error {
	switch {
	case errors.Is(err, viewer.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, viewer.ErrDocumentOpen):
		return c.JSON(http.StatusGone, errorResponse{Error: err.Error()})
	case errors.Is(err, viewer.ErrOutOfMemory):
		Logger.Warn("Render over memory budget", "id", id, "page", page, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		Logger.Error("Render failed", "id", id, "page", page, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
