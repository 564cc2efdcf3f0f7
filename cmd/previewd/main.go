// Command previewd serves rendered PDF pages over HTTP. It is a thin
// shell around the render core: open a document session, fetch pages
// as PNG at a requested resolution, and let the idle-session reaper
// clean up after inactive clients.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jmallory/pdfview/config"
	"github.com/jmallory/pdfview/pdfbackend"
	"github.com/jmallory/pdfview/server"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	config.Logger = logger
	server.Logger = logger
}

func main() {
	serverConfig, logger := config.SetupServer()
	injectGlobals(logger)

	backend, err := pdfbackend.New(serverConfig.RenderBackend)
	if err != nil {
		Logger.Error("Unable to create render backend", "backend", serverConfig.RenderBackend, "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))

	serverHandler, err := server.NewServerHandler(e, serverConfig, backend)
	if err != nil {
		Logger.Error("Unable to create server handler", "error", err)
		os.Exit(1)
	}
	serverHandler.SetupRoutes()

	scheduler := serverHandler.InitializeSchedules()
	defer scheduler.Stop()
	defer serverHandler.CloseAll()

	addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
	Logger.Info("Starting preview server", "address", addr)
	if err := e.Start(addr); err != nil {
		Logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
