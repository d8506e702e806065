package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alnah/go-dub/internal/apierr"
	"github.com/alnah/go-dub/internal/cli"
	"github.com/alnah/go-dub/internal/ffmpeg"
	"github.com/alnah/go-dub/internal/lang"
	"github.com/alnah/go-dub/internal/media"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitSetup      = 3
	ExitValidation = 4
	ExitProviders  = 5
	ExitInterrupt  = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env := cli.DefaultEnv()

	rootCmd := &cobra.Command{
		Use:     "dubber",
		Short:   "Dub videos into other languages with synchronized speech",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(cli.ServeCmd(env))
	rootCmd.AddCommand(cli.DubCmd(env))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Cobra doesn't expose typed errors for flag/arg parsing, so usage
	// errors are matched by message.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	if errors.Is(err, ffmpeg.ErrNotFound) || errors.Is(err, ffmpeg.ErrUnsupportedPlatform) ||
		errors.Is(err, cli.ErrNoTranscriber) || errors.Is(err, cli.ErrNoEnricher) ||
		errors.Is(err, cli.ErrNoSynthesizer) {
		return ExitSetup
	}

	if errors.Is(err, cli.ErrFileNotFound) || errors.Is(err, cli.ErrUnsupportedFormat) ||
		errors.Is(err, lang.ErrInvalid) || errors.Is(err, media.ErrUnreadable) {
		return ExitValidation
	}

	if errors.Is(err, apierr.ErrAllProvidersFailed) || errors.Is(err, apierr.ErrRateLimit) ||
		errors.Is(err, apierr.ErrQuotaExceeded) || errors.Is(err, apierr.ErrAuthFailed) ||
		errors.Is(err, apierr.ErrTimeout) {
		return ExitProviders
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns are message substrings of Cobra parsing errors,
// stable across Cobra versions.
var cobraUsageErrorPatterns = []string{
	"required flag",
	"unknown flag",
	"unknown shorthand",
	"flag needs an argument",
	"invalid argument",
	"accepts ",
	"requires at least",
	"requires at most",
}

func isCobraUsageError(err error) bool {
	msg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
