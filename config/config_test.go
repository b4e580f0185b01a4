package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FeedPageSize != 10 {
		t.Fatalf("expected page size 10, got %d", cfg.FeedPageSize)
	}
	if cfg.CacheBackend != "memory" {
		t.Fatalf("expected memory backend, got %q", cfg.CacheBackend)
	}
	if cfg.APITimeout != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %s", cfg.APITimeout)
	}
	if cfg.CacheSingleFlight {
		t.Fatalf("single flight should be off by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FEED_PAGE_SIZE", "25")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("CACHE_SINGLE_FLIGHT", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FeedPageSize != 25 {
		t.Fatalf("expected page size 25, got %d", cfg.FeedPageSize)
	}
	if cfg.CacheBackend != "redis" {
		t.Fatalf("expected redis backend, got %q", cfg.CacheBackend)
	}
	if !cfg.CacheSingleFlight {
		t.Fatalf("expected single flight enabled")
	}
}

func TestNormalize_BackfillsZeroValues(t *testing.T) {
	cfg := Config{}
	cfg.normalize()
	if cfg.FeedPageSize != 10 || cfg.ResolveConcurrency != 4 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.JWTIssuer == "" || cfg.JWTSecretKey == "" {
		t.Fatalf("jwt defaults missing")
	}
}

func TestNormalize_ClampsPageSizeToServerMax(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FEED_PAGE_SIZE", "200")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FeedPageSize != MaxFeedPageSize {
		t.Fatalf("expected page size %d, got %d", MaxFeedPageSize, cfg.FeedPageSize)
	}
}
