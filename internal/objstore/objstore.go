// Package objstore publishes finished artifacts (dubbed videos, subtitle
// files) and hands back a URL the API can return to clients.
package objstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store publishes local files under a key and returns a retrievable URL.
type Store interface {
	Upload(ctx context.Context, localPath, key, contentType string) (string, error)
}

// Local copies artifacts into a directory served by the HTTP layer. The
// default when no S3 bucket is configured.
type Local struct {
	dir     string
	baseURL string
}

// Compile-time interface implementation check.
var _ Store = (*Local)(nil)

// NewLocal creates a Local store rooted at dir. baseURL prefixes returned
// URLs, e.g. "/files".
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Local{dir: dir, baseURL: baseURL}, nil
}

// Dir returns the directory artifacts are copied into.
func (l *Local) Dir() string { return l.dir }

func (l *Local) Upload(_ context.Context, localPath, key, _ string) (string, error) {
	dst := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("creating artifact directory: %w", err)
	}

	src, err := os.Open(localPath) // #nosec G304 -- pipeline-produced path
	if err != nil {
		return "", fmt.Errorf("opening artifact: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst) // #nosec G304 -- key is pipeline-generated
	if err != nil {
		return "", fmt.Errorf("creating artifact copy: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("copying artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	return l.baseURL + "/" + key, nil
}
