package media

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/alnah/go-dub/internal/format"
)

// Chunk is one extracted window of the source video.
type Chunk struct {
	Path      string
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
}

// Duration returns the chunk's length.
func (c Chunk) Duration() time.Duration {
	return c.EndTime - c.StartTime
}

// Splitter cuts a source video into fixed-size windows by stream copy.
type Splitter struct {
	ffmpegPath string
	prober     Prober
	cmd        commandRunner
	tempDir    tempDirCreator
	remover    fileRemover
	timeout    time.Duration
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithSplitterCommandRunner sets the command runner (for testing).
func WithSplitterCommandRunner(r commandRunner) SplitterOption {
	return func(s *Splitter) {
		s.cmd = r
	}
}

// WithSplitterTempDirCreator sets the temp directory creator (for testing).
func WithSplitterTempDirCreator(t tempDirCreator) SplitterOption {
	return func(s *Splitter) {
		s.tempDir = t
	}
}

// WithSplitterFileRemover sets the file remover (for testing).
func WithSplitterFileRemover(r fileRemover) SplitterOption {
	return func(s *Splitter) {
		s.remover = r
	}
}

// WithSplitterTimeout sets the per-extraction subprocess timeout.
func WithSplitterTimeout(d time.Duration) SplitterOption {
	return func(s *Splitter) {
		s.timeout = d
	}
}

// NewSplitter creates a splitter using the given ffmpeg binary and prober.
func NewSplitter(ffmpegPath string, prober Prober, opts ...SplitterOption) *Splitter {
	s := &Splitter{
		ffmpegPath: ffmpegPath,
		prober:     prober,
		cmd:        osCommandRunner{},
		tempDir:    osTempDirCreator{},
		remover:    osFileRemover{},
		timeout:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split probes the source and extracts ceil(duration/window) chunks into a
// fresh scratch directory. Windows are contiguous and cover the whole file;
// the last chunk may be shorter. On any failure the scratch directory is
// removed and the error returned.
func (s *Splitter) Split(ctx context.Context, sourcePath string, window time.Duration) ([]Chunk, string, error) {
	if window <= 0 {
		return nil, "", fmt.Errorf("chunk window must be positive, got %v", window)
	}

	info, err := s.prober.Probe(ctx, sourcePath)
	if err != nil {
		return nil, "", err
	}
	if info.Duration <= 0 {
		return nil, "", fmt.Errorf("%w: zero duration", ErrUnreadable)
	}

	count := int(math.Ceil(info.Duration.Seconds() / window.Seconds()))
	if count < 1 {
		count = 1
	}

	scratch, err := s.tempDir.MkdirTemp("", "go-dub-chunks-*")
	if err != nil {
		return nil, "", fmt.Errorf("creating scratch directory: %w", err)
	}

	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := time.Duration(i) * window
		end := start + window
		if end > info.Duration {
			end = info.Duration
		}

		chunkPath := filepath.Join(scratch, fmt.Sprintf("chunk_%03d.mp4", i))
		if err := s.extract(ctx, sourcePath, chunkPath, start, end); err != nil {
			s.remover.RemoveAll(scratch)
			return nil, "", fmt.Errorf("%w: chunk %d: %v", ErrSplitFailed, i, err)
		}

		chunks = append(chunks, Chunk{
			Path:      chunkPath,
			Index:     i,
			StartTime: start,
			EndTime:   end,
		})
	}

	return chunks, scratch, nil
}

// extract stream-copies [start, end) of the source into outputPath.
func (s *Splitter) extract(ctx context.Context, sourcePath, outputPath string, start, end time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := []string{
		"-y",
		"-ss", format.FFmpegTime(start),
		"-to", format.FFmpegTime(end),
		"-i", sourcePath,
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		outputPath,
	}
	output, err := s.cmd.CombinedOutput(ctx, s.ffmpegPath, args)
	if err != nil {
		return fmt.Errorf("ffmpeg: %v: %s", err, truncateOutput(output))
	}
	return nil
}

// truncateOutput keeps error messages readable when ffmpeg is chatty.
func truncateOutput(output []byte) string {
	const maxLen = 500
	s := string(output)
	if len(s) > maxLen {
		return "..." + s[len(s)-maxLen:]
	}
	return s
}
