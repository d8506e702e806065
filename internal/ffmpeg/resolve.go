// Package ffmpeg locates the ffmpeg and ffprobe binaries the media layer
// shells out to, auto-downloading a static ffmpeg build when nothing is
// installed.
package ffmpeg

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

// Static builds from github.com/eugeneware/ffmpeg-static release b6.1.1.
const (
	ffmpegVersion   = "6.1.1"
	binaryName      = "ffmpeg"
	downloadBaseURL = "https://github.com/eugeneware/ffmpeg-static/releases/download/b6.1.1"

	// versionFileName stores the installed version for upgrade detection.
	versionFileName = ".version"

	// downloadTimeout allows for the ~30MB compressed binary on slow links.
	downloadTimeout = 10 * time.Minute

	installDirPerm = 0o750
)

// Environment overrides checked before any lookup.
const (
	envFFmpegPath  = "FFMPEG_PATH"
	envFFprobePath = "FFPROBE_PATH"
)

var defaultHTTPClient = &http.Client{
	Timeout: downloadTimeout,
	Transport: &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	},
}

// binaryInfo is the download metadata for one platform's static build.
type binaryInfo struct {
	URL    string
	SHA256 string // checksum of the gzipped file
}

func platformInfoFor(goos, goarch string) (binaryInfo, bool) {
	platforms := map[string]binaryInfo{
		"darwin-arm64": {
			URL:    downloadBaseURL + "/ffmpeg-darwin-arm64.gz",
			SHA256: "8923876afa8db5585022d7860ec7e589af192f441c56793971276d450ed3bbfa",
		},
		"darwin-amd64": {
			URL:    downloadBaseURL + "/ffmpeg-darwin-x64.gz",
			SHA256: "5d8fb6f280c428d0e82cd5ee68215f0734d64f88e37dcc9e082f818c9e5025f0",
		},
		"linux-amd64": {
			URL:    downloadBaseURL + "/ffmpeg-linux-x64.gz",
			SHA256: "bfe8a8fc511530457b528c48d77b5737527b504a3797a9bc4866aeca69c2dffa",
		},
		"windows-amd64": {
			URL:    downloadBaseURL + "/ffmpeg-win32-x64.gz",
			SHA256: "8883a3dffbd0a16cf4ef95206ea05283f78908dbfb118f73c83f4951dcc06d77",
		},
	}
	info, ok := platforms[goos+"-"+goarch]
	return info, ok
}

// httpDoer abstracts the HTTP client for download tests.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// envProvider abstracts environment and path lookup.
type envProvider interface {
	Getenv(key string) string
	UserHomeDir() (string, error)
	LookPath(file string) (string, error)
}

type osEnvProvider struct{}

func (osEnvProvider) Getenv(key string) string { return os.Getenv(key) }

func (osEnvProvider) UserHomeDir() (string, error) { return os.UserHomeDir() }

func (osEnvProvider) LookPath(file string) (string, error) { return exec.LookPath(file) }

// Resolver finds ffmpeg and ffprobe, downloading ffmpeg if needed.
type Resolver struct {
	http         httpDoer
	env          envProvider
	stderr       io.Writer
	goos         string
	goarch       string
	platformInfo *binaryInfo // test override; nil uses platformInfoFor
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(c httpDoer) ResolverOption {
	return func(r *Resolver) { r.http = c }
}

// WithEnvProvider sets the environment provider.
func WithEnvProvider(e envProvider) ResolverOption {
	return func(r *Resolver) { r.env = e }
}

// WithStderr sets the writer for download status messages.
func WithStderr(w io.Writer) ResolverOption {
	return func(r *Resolver) { r.stderr = w }
}

// WithPlatform sets the target platform (for testing).
func WithPlatform(goos, goarch string) ResolverOption {
	return func(r *Resolver) {
		r.goos = goos
		r.goarch = goarch
	}
}

// WithPlatformInfo overrides the download metadata (for testing).
func WithPlatformInfo(info binaryInfo) ResolverOption {
	return func(r *Resolver) { r.platformInfo = &info }
}

// NewResolver creates a Resolver with production defaults.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		http:   defaultHTTPClient,
		env:    osEnvProvider{},
		stderr: os.Stderr,
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds ffmpeg using the following precedence:
//  1. FFMPEG_PATH environment variable (error if set but invalid)
//  2. ~/.go-dub/bin/ffmpeg (installed by us)
//  3. System PATH
//  4. Auto-download
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if envPath := r.env.Getenv(envFFmpegPath); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("%w: %s is set to %q but binary not found (unset to enable auto-download)",
				ErrNotFound, envFFmpegPath, envPath)
		}
		return envPath, nil
	}

	if path, ok := r.installedPath(); ok {
		return path, nil
	}

	if path, err := r.env.LookPath("ffmpeg"); err == nil {
		return path, nil
	}

	fmt.Fprintln(r.stderr, "ffmpeg not found, downloading...")
	if err := r.downloadAndInstall(ctx); err != nil {
		return "", fmt.Errorf("%w: auto-download failed: %v\n\n%s",
			ErrNotFound, err, manualInstallInstructions(r.goos))
	}

	path, err := r.binaryPath()
	if err != nil {
		return "", err
	}
	return path, nil
}

// ResolveProbe finds ffprobe: FFPROBE_PATH, next to the given ffmpeg
// binary, then system PATH. There is no static build to download; when
// nothing is found the bare name is returned and the prober falls back
// to parsing ffmpeg output.
func (r *Resolver) ResolveProbe(ffmpegPath string) string {
	if envPath := r.env.Getenv(envFFprobePath); envPath != "" {
		return envPath
	}

	name := "ffprobe"
	if r.goos == "windows" {
		name += ".exe"
	}
	if ffmpegPath != "" {
		sibling := filepath.Join(filepath.Dir(ffmpegPath), name)
		if _, err := os.Stat(sibling); err == nil {
			return sibling
		}
	}
	if path, err := r.env.LookPath("ffprobe"); err == nil {
		return path
	}
	return "ffprobe"
}

func (r *Resolver) installDir() (string, error) {
	home, err := r.env.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".go-dub", "bin"), nil
}

func (r *Resolver) binaryPath() (string, error) {
	dir, err := r.installDir()
	if err != nil {
		return "", err
	}
	name := binaryName
	if r.goos == "windows" {
		name += ".exe"
	}
	return filepath.Join(dir, name), nil
}

// installedPath reports whether a current-version install exists.
func (r *Resolver) installedPath() (string, bool) {
	path, err := r.binaryPath()
	if err != nil {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(path), versionFileName))
	if err != nil || string(data) != ffmpegVersion {
		return "", false // missing or stale install, re-download
	}
	return path, true
}

func (r *Resolver) downloadAndInstall(ctx context.Context) error {
	var info binaryInfo
	if r.platformInfo != nil {
		info = *r.platformInfo
	} else {
		var ok bool
		info, ok = platformInfoFor(r.goos, r.goarch)
		if !ok {
			return fmt.Errorf("%w: %s-%s (supported: darwin-arm64, darwin-amd64, linux-amd64, windows-amd64)",
				ErrUnsupportedPlatform, r.goos, r.goarch)
		}
	}

	dir, err := r.installDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, installDirPerm); err != nil {
		return fmt.Errorf("cannot create install directory %s: %w", dir, err)
	}

	destPath, err := r.binaryPath()
	if err != nil {
		return err
	}
	if err := r.downloadBinary(ctx, info, destPath); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("download ffmpeg: %w", err)
	}

	versionPath := filepath.Join(dir, versionFileName)
	if err := os.WriteFile(versionPath, []byte(ffmpegVersion), 0o644); err != nil {
		return fmt.Errorf("write version file: %w", err)
	}
	return nil
}

// downloadBinary downloads the gzipped build to a temp file, verifies its
// checksum, and decompresses it into place.
func (r *Resolver) downloadBinary(ctx context.Context, info binaryInfo, destPath string) error {
	tempFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return fmt.Errorf("cannot create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	closed := false
	defer func() {
		if !closed {
			tempFile.Close()
		}
		os.Remove(tempPath)
	}()

	if err := r.downloadToFile(ctx, info.URL, tempFile); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	closed = true

	if err := verifyChecksum(tempPath, info.SHA256); err != nil {
		return err
	}
	if err := decompressGzip(tempPath, destPath); err != nil {
		return err
	}
	if r.goos != "windows" {
		if err := os.Chmod(destPath, 0o755); err != nil {
			return fmt.Errorf("make binary executable: %w", err)
		}
	}
	return nil
}

func (r *Resolver) downloadToFile(ctx context.Context, url string, dest *os.File) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %v", ErrDownloadFailed, err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d from %s", ErrDownloadFailed, resp.StatusCode, url)
	}
	if _, err := io.Copy(dest, resp.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return nil
}

func manualInstallInstructions(goos string) string {
	switch goos {
	case "darwin":
		return "To install FFmpeg manually: brew install ffmpeg\nOr set FFMPEG_PATH to your ffmpeg binary."
	case "linux":
		return "To install FFmpeg manually: apt install ffmpeg / dnf install ffmpeg / pacman -S ffmpeg\nOr set FFMPEG_PATH to your ffmpeg binary."
	case "windows":
		return "To install FFmpeg manually: winget install ffmpeg\nOr set FFMPEG_PATH to your ffmpeg.exe."
	default:
		return "Download FFmpeg from https://ffmpeg.org/download.html or set FFMPEG_PATH."
	}
}

// verifyChecksum compares a file's SHA256 against the expected value.
func verifyChecksum(filePath, expectedSHA256 string) error {
	f, err := os.Open(filePath) // #nosec G304 -- internal temp file
	if err != nil {
		return fmt.Errorf("cannot open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("cannot hash file: %w", err)
	}
	actual := hex.EncodeToString(h.Sum(nil))
	if actual != expectedSHA256 {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expectedSHA256, actual)
	}
	return nil
}

// decompressGzip extracts a gzipped file to dest.
func decompressGzip(srcPath, destPath string) error {
	src, err := os.Open(srcPath) // #nosec G304 -- internal temp file
	if err != nil {
		return fmt.Errorf("cannot open compressed file: %w", err)
	}
	defer src.Close()

	gz, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("invalid gzip data: %w", err)
	}
	defer gz.Close()

	dest, err := os.Create(destPath) // #nosec G304 -- internal install path
	if err != nil {
		return fmt.Errorf("cannot create destination: %w", err)
	}

	// Decompressed binary is ~80MB; the limit guards against a tampered
	// archive expanding without bound.
	const maxBinarySize = 500 << 20
	if _, err := io.Copy(dest, io.LimitReader(gz, maxBinarySize)); err != nil {
		dest.Close()
		os.Remove(destPath)
		return fmt.Errorf("decompress: %w", err)
	}
	if err := dest.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}
