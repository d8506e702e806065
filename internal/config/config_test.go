package config_test

// Notes:
// - Environment-driven tests use t.Setenv, so no t.Parallel() at the top
//   level of those subtests (Setenv forbids it).

import (
	"testing"
	"time"

	"github.com/alnah/go-dub/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.WindowSeconds != config.DefaultWindowSeconds {
		t.Errorf("WindowSeconds = %d, want %d", cfg.WindowSeconds, config.DefaultWindowSeconds)
	}
	if cfg.StretchCap != config.DefaultStretchCap {
		t.Errorf("StretchCap = %g, want %g", cfg.StretchCap, config.DefaultStretchCap)
	}
	if cfg.CharsPerSecond != config.DefaultCharsPerSecond {
		t.Errorf("CharsPerSecond = %g, want %g", cfg.CharsPerSecond, config.DefaultCharsPerSecond)
	}
	if cfg.MaxParallelChunks != config.DefaultMaxParallelChunks {
		t.Errorf("MaxParallelChunks = %d, want %d", cfg.MaxParallelChunks, config.DefaultMaxParallelChunks)
	}
	if cfg.FFmpegPath != "ffmpeg" {
		t.Errorf("FFmpegPath = %q, want %q", cfg.FFmpegPath, "ffmpeg")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DUB_WINDOW_SECONDS", "120")
	t.Setenv("DUB_CHARS_PER_SECOND", "15.5")
	t.Setenv("DUB_ADAPTER_TIMEOUT", "90s")
	t.Setenv("DUB_MAX_PARALLEL_CHUNKS", "4")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.WindowSeconds != 120 {
		t.Errorf("WindowSeconds = %d, want 120", cfg.WindowSeconds)
	}
	if cfg.CharsPerSecond != 15.5 {
		t.Errorf("CharsPerSecond = %g, want 15.5", cfg.CharsPerSecond)
	}
	if cfg.AdapterTimeout != 90*time.Second {
		t.Errorf("AdapterTimeout = %v, want 90s", cfg.AdapterTimeout)
	}
	if cfg.MaxParallelChunks != 4 {
		t.Errorf("MaxParallelChunks = %d, want 4", cfg.MaxParallelChunks)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero window", "DUB_WINDOW_SECONDS", "0"},
		{"negative window", "DUB_WINDOW_SECONDS", "-5"},
		{"stretch cap at 1.0", "DUB_STRETCH_CAP", "1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := config.Load(); err == nil {
				t.Errorf("Load() with %s=%s expected error, got nil", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_MalformedNumbersFallBack(t *testing.T) {
	t.Setenv("DUB_WINDOW_SECONDS", "not-a-number")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.WindowSeconds != config.DefaultWindowSeconds {
		t.Errorf("WindowSeconds = %d, want default %d", cfg.WindowSeconds, config.DefaultWindowSeconds)
	}
}
