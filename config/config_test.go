package config

import (
	"testing"
)

func TestGetEnvInt64_Default(t *testing.T) {
	got := getEnvInt64("PDFVIEW_TEST_UNSET", 1234)
	if got != 1234 {
		t.Errorf("Expected default 1234, got %d", got)
	}
}

func TestGetEnvInt64_Set(t *testing.T) {
	t.Setenv("PDFVIEW_TEST_BYTES", "67108864")
	got := getEnvInt64("PDFVIEW_TEST_BYTES", 1)
	if got != 67108864 {
		t.Errorf("Expected 67108864, got %d", got)
	}
}

func TestGetEnvInt64_Invalid(t *testing.T) {
	t.Setenv("PDFVIEW_TEST_BYTES", "lots")
	got := getEnvInt64("PDFVIEW_TEST_BYTES", 42)
	if got != 42 {
		t.Errorf("Expected fallback 42 on unparsable value, got %d", got)
	}
}

func TestSetupServer_CacheBytesGuard(t *testing.T) {
	t.Setenv("PAGE_CACHE_BYTES", "-1")
	t.Setenv("LOG_OUTPUT", "stdout")
	cfg, logger := SetupServer()
	if logger == nil {
		t.Fatal("Expected a logger")
	}
	if cfg.CacheBytes != DefaultCacheCapacityBytes {
		t.Errorf("Expected default capacity for negative PAGE_CACHE_BYTES, got %d", cfg.CacheBytes)
	}
}

func TestSetupServer_Defaults(t *testing.T) {
	t.Setenv("LOG_OUTPUT", "stdout")
	cfg, _ := SetupServer()
	if cfg.RenderBackend != "fitz" {
		t.Errorf("Expected default backend fitz, got %q", cfg.RenderBackend)
	}
	if cfg.ResizeMode != "fitwidth" {
		t.Errorf("Expected default resize mode fitwidth, got %q", cfg.ResizeMode)
	}
	if cfg.ListenAddrPort != "8003" {
		t.Errorf("Expected default port 8003, got %q", cfg.ListenAddrPort)
	}
}
