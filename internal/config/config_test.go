package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsWhenEnvUnset(t *testing.T) {
	t.Setenv("HISSYNC_CACHE_BACKEND", "")
	t.Setenv("HISSYNC_DEFAULT_PAGE_SIZE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CacheBackend != CacheMemory {
		t.Fatalf("expected default cache backend memory, got %q", cfg.CacheBackend)
	}
	if cfg.DefaultPageSize != 50 {
		t.Fatalf("expected default page size 50, got %d", cfg.DefaultPageSize)
	}
}

func TestLoadRejectsUnknownCacheBackend(t *testing.T) {
	t.Setenv("HISSYNC_CACHE_BACKEND", "memcached")

	if _, err := Load(); err == nil {
		t.Fatalf("expected an error for an unknown cache backend")
	}
}

func TestLoadFileOverlaysEnvDefaults(t *testing.T) {
	t.Setenv("HISSYNC_CACHE_BACKEND", "")
	t.Setenv("HISSYNC_LISTEN_ADDR", "")

	path := filepath.Join(t.TempDir(), "hissync.yaml")
	contents := "listen_addr: \":9000\"\ncache_backend: \"memory\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Fatalf("expected listen addr :9000 from file, got %q", cfg.ListenAddr)
	}
}

func TestLoadFileRejectsMissingPath(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
