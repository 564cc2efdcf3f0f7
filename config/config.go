package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// DefaultCacheCapacityBytes bounds the page bitmap cache when
// PAGE_CACHE_BYTES is not set. 64 MiB holds roughly 20 letter-size
// pages rendered at 1024px width.
const DefaultCacheCapacityBytes = 64 << 20

// ServerConfig contains all of the preview service settings
type ServerConfig struct {
	ListenAddrIP   string
	ListenAddrPort string
	RenderBackend  string // "fitz" or "pdfium"
	ResizeMode     string // "fitwidth" or "contain"
	CacheBytes     int64
	SessionTTL     int // minutes a session may sit idle before the reaper closes it
	ReaperInterval int // minutes between reaper runs
	DocumentRoot   string
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvInt64 gets a 64-bit integer environment variable with a default value
func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	serverConfigLive := ServerConfig{}

	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8003")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Render configuration
	serverConfigLive.RenderBackend = getEnv("RENDER_BACKEND", "fitz")
	serverConfigLive.ResizeMode = getEnv("RESIZE_MODE", "fitwidth")
	serverConfigLive.CacheBytes = getEnvInt64("PAGE_CACHE_BYTES", DefaultCacheCapacityBytes)
	if serverConfigLive.CacheBytes <= 0 {
		logger.Warn("Ignoring non-positive PAGE_CACHE_BYTES, using default",
			"requested", serverConfigLive.CacheBytes, "default", int64(DefaultCacheCapacityBytes))
		serverConfigLive.CacheBytes = DefaultCacheCapacityBytes
	}

	// Session lifecycle configuration
	serverConfigLive.SessionTTL = getEnvInt("SESSION_TTL_MINUTES", 15)
	serverConfigLive.ReaperInterval = getEnvInt("REAPER_INTERVAL_MINUTES", 1)

	// Document root restricts which paths the service will open
	documentRoot := filepath.ToSlash(getEnv("DOCUMENT_ROOT", "documents"))
	documentRootAbs, err := filepath.Abs(documentRoot)
	if err != nil {
		logger.Error("Failed creating absolute path for document root", "path", documentRoot, "error", err)
	}
	serverConfigLive.DocumentRoot = documentRootAbs

	logger.Info("Render configuration loaded",
		"backend", serverConfigLive.RenderBackend,
		"resizeMode", serverConfigLive.ResizeMode,
		"cacheBytes", serverConfigLive.CacheBytes)

	return serverConfigLive, logger
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "debug")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	logOutput := getEnv("LOG_OUTPUT", "stdout")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "pdfview.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}
