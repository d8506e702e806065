package cli

import (
	"context"
	"io"
	"os"

	"github.com/alnah/go-dub/internal/config"
	"github.com/alnah/go-dub/internal/logging"
)

// Env holds injectable dependencies for CLI commands, letting tests swap
// the config loader and app wiring without touching the environment.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer

	LoadConfig func() (config.Config, error)
	NewApp     func(ctx context.Context, cfg config.Config, log *logging.Logger) (*App, error)
}

// DefaultEnv creates an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		LoadConfig: config.Load,
		NewApp:     NewApp,
	}
}

// openLogger opens the error log from configuration; an empty path keeps
// errors on the job records only.
func openLogger(cfg config.Config) (*logging.Logger, error) {
	if cfg.LogFile == "" {
		return logging.Discard(), nil
	}
	return logging.New(cfg.LogFile)
}
