// Package config loads service configuration from environment variables.
// A .env file, if present, is loaded by the entrypoint (godotenv) before
// this package reads the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Pipeline tuning defaults. These mirror the values the dubbing heuristics
// were calibrated with; all of them can be overridden via environment.
const (
	// DefaultWindowSeconds is the chunk window: long enough to amortize
	// per-chunk overhead, short enough to bound memory and let a crashed
	// job resume without losing much work.
	DefaultWindowSeconds = 300

	// DefaultCharsPerSecond estimates spoken duration from translated-text
	// length before synthesis. Calibrated empirically; the measured clip
	// duration always wins over this estimate.
	DefaultCharsPerSecond = 13.0

	// DefaultStretchCap bounds pitch-preserving time compression. Beyond
	// 1.25x speech stops being intelligible, so larger overruns freeze the
	// picture instead.
	DefaultStretchCap = 1.25

	// DefaultIntroGuardSeconds protects leading intro/music from dubbing.
	// Zero disables the guard.
	DefaultIntroGuardSeconds = 5

	// DefaultMaxParallelChunks processes chunks sequentially: providers are
	// rate-limited and one job should not burst-call them.
	DefaultMaxParallelChunks = 1

	// DefaultAdapterTimeout bounds a single provider call.
	DefaultAdapterTimeout = 5 * time.Minute

	// DefaultSubprocessTimeout bounds a single ffmpeg/ffprobe invocation.
	DefaultSubprocessTimeout = 10 * time.Minute

	// DefaultMaxUploadBytes caps the upload body (500MB).
	DefaultMaxUploadBytes = 500 << 20
)

// Config holds everything the service needs, resolved once at startup.
type Config struct {
	// HTTP
	ListenAddr     string
	MaxUploadBytes int64

	// Scratch and output locations.
	ScratchDir string
	OutputDir  string
	LogFile    string

	// Pipeline tuning.
	WindowSeconds     int
	CharsPerSecond    float64
	StretchCap        float64
	IntroGuardSeconds float64
	MaxParallelChunks int
	AdapterTimeout    time.Duration
	SubprocessTimeout time.Duration

	// Provider credentials. Empty keys disable the corresponding provider;
	// the fallback chain is built from whatever is configured.
	GroqAPIKey     string
	OpenAIAPIKey   string
	GeminiAPIKey   string
	AzureSpeechKey string
	AzureRegion    string

	// Object storage (S3-compatible). Empty endpoint+bucket falls back to
	// serving results from OutputDir.
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	// Job persistence. Empty path uses the in-memory store.
	SQLitePath string

	// FFmpeg binaries.
	FFmpegPath  string
	FFprobePath string
}

// Load reads configuration from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:     envOr("DUB_LISTEN_ADDR", ":8080"),
		MaxUploadBytes: envInt64("DUB_MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),

		ScratchDir: envOr("DUB_SCRATCH_DIR", os.TempDir()),
		OutputDir:  envOr("DUB_OUTPUT_DIR", "output"),
		LogFile:    os.Getenv("DUB_LOG_FILE"),

		WindowSeconds:     envInt("DUB_WINDOW_SECONDS", DefaultWindowSeconds),
		CharsPerSecond:    envFloat("DUB_CHARS_PER_SECOND", DefaultCharsPerSecond),
		StretchCap:        envFloat("DUB_STRETCH_CAP", DefaultStretchCap),
		IntroGuardSeconds: envFloat("DUB_INTRO_GUARD_SECONDS", DefaultIntroGuardSeconds),
		MaxParallelChunks: envInt("DUB_MAX_PARALLEL_CHUNKS", DefaultMaxParallelChunks),
		AdapterTimeout:    envDuration("DUB_ADAPTER_TIMEOUT", DefaultAdapterTimeout),
		SubprocessTimeout: envDuration("DUB_SUBPROCESS_TIMEOUT", DefaultSubprocessTimeout),

		GroqAPIKey:     os.Getenv("GROQ_API_KEY"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:   firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
		AzureSpeechKey: firstNonEmpty(os.Getenv("AZURE_SPEECH_KEY"), os.Getenv("SPEECH_KEY")),
		AzureRegion:    firstNonEmpty(os.Getenv("AZURE_SPEECH_REGION"), os.Getenv("SPEECH_REGION")),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    envOr("S3_REGION", "us-east-1"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3AccessKey: firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_ACCESS_KEY_ID")),
		S3SecretKey: firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("S3_SECRET_KEY")),

		SQLitePath: os.Getenv("DUB_SQLITE_PATH"),

		FFmpegPath:  envOr("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: envOr("FFPROBE_PATH", "ffprobe"),
	}

	if cfg.WindowSeconds <= 0 {
		return Config{}, fmt.Errorf("DUB_WINDOW_SECONDS must be positive, got %d", cfg.WindowSeconds)
	}
	if cfg.StretchCap <= 1.0 {
		return Config{}, fmt.Errorf("DUB_STRETCH_CAP must exceed 1.0, got %g", cfg.StretchCap)
	}
	if cfg.CharsPerSecond <= 0 {
		return Config{}, fmt.Errorf("DUB_CHARS_PER_SECOND must be positive, got %g", cfg.CharsPerSecond)
	}
	if cfg.MaxParallelChunks < 1 {
		cfg.MaxParallelChunks = 1
	}
	if cfg.IntroGuardSeconds < 0 {
		cfg.IntroGuardSeconds = 0
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
