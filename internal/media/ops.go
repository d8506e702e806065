package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-dub/internal/format"
)

// Canonical audio parameters. Every intermediate clip is normalized to this
// format so durations measure and concatenate deterministically.
const (
	SampleRate = 44100
	Channels   = 1
)

// Ops runs the ffmpeg operations the dubbing pipeline needs. All methods
// overwrite their output path and honor the configured subprocess timeout.
type Ops struct {
	ffmpegPath string
	cmd        commandRunner
	timeout    time.Duration
}

// OpsOption configures Ops.
type OpsOption func(*Ops)

// WithOpsCommandRunner sets the command runner (for testing).
func WithOpsCommandRunner(r commandRunner) OpsOption {
	return func(o *Ops) {
		o.cmd = r
	}
}

// WithOpsTimeout sets the per-operation subprocess timeout.
func WithOpsTimeout(d time.Duration) OpsOption {
	return func(o *Ops) {
		o.timeout = d
	}
}

// NewOps creates an Ops using the given ffmpeg binary.
func NewOps(ffmpegPath string, opts ...OpsOption) *Ops {
	o := &Ops{
		ffmpegPath: ffmpegPath,
		cmd:        osCommandRunner{},
		timeout:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExtractAudio pulls the audio track of a video into an mp3.
func (o *Ops) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	return o.run(ctx, "extract audio",
		"-y",
		"-i", videoPath,
		"-vn",
		"-ar", fmt.Sprint(SampleRate),
		"-ac", fmt.Sprint(Channels),
		"-b:a", "128k",
		audioPath,
	)
}

// SliceAudio cuts [start, end) out of an audio file.
func (o *Ops) SliceAudio(ctx context.Context, inputPath, outputPath string, start, end time.Duration) error {
	return o.run(ctx, "slice audio",
		"-y",
		"-ss", format.FFmpegTime(start),
		"-to", format.FFmpegTime(end),
		"-i", inputPath,
		"-c", "copy",
		outputPath,
	)
}

// Normalize resamples any audio clip to canonical mono 16-bit PCM WAV.
// async resampling absorbs timestamp drift from synthesized clips.
func (o *Ops) Normalize(ctx context.Context, inputPath, outputPath string) error {
	return o.run(ctx, "normalize audio",
		"-y",
		"-i", inputPath,
		"-af", "aresample=async=1:first_pts=0",
		"-ar", fmt.Sprint(SampleRate),
		"-ac", fmt.Sprint(Channels),
		"-c:a", "pcm_s16le",
		outputPath,
	)
}

// AdjustSpeed retimes audio by the given factor (>1 is faster). The atempo
// filter only accepts 0.5..2.0 per instance, so larger factors chain.
func (o *Ops) AdjustSpeed(ctx context.Context, inputPath, outputPath string, factor float64) error {
	if factor <= 0 {
		return fmt.Errorf("%w: speed factor must be positive, got %v", ErrOpFailed, factor)
	}
	return o.run(ctx, "adjust speed",
		"-y",
		"-i", inputPath,
		"-filter:a", atempoChain(factor),
		"-ar", fmt.Sprint(SampleRate),
		"-ac", fmt.Sprint(Channels),
		"-c:a", "pcm_s16le",
		outputPath,
	)
}

// atempoChain builds an atempo filter expression, chaining instances to
// stay inside the filter's 0.5..2.0 range.
func atempoChain(factor float64) string {
	var parts []string
	for factor > 2.0 {
		parts = append(parts, "atempo=2.0")
		factor /= 2.0
	}
	for factor < 0.5 {
		parts = append(parts, "atempo=0.5")
		factor /= 0.5
	}
	parts = append(parts, fmt.Sprintf("atempo=%.6f", factor))
	return strings.Join(parts, ",")
}

// ConcatAudio joins clips in order into one WAV using the concat demuxer.
// The list file lives next to the output and is removed afterwards.
func (o *Ops) ConcatAudio(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("%w: no clips to concatenate", ErrOpFailed)
	}

	listPath := outputPath + ".txt"
	var sb strings.Builder
	for _, p := range clipPaths {
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(p, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing concat list: %w", err)
	}
	defer os.Remove(listPath)

	return o.run(ctx, "concat audio",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-ar", fmt.Sprint(SampleRate),
		"-ac", fmt.Sprint(Channels),
		"-c:a", "pcm_s16le",
		outputPath,
	)
}

// ConcatVideo joins video segments in order by stream copy.
func (o *Ops) ConcatVideo(ctx context.Context, segmentPaths []string, outputPath string) error {
	if len(segmentPaths) == 0 {
		return fmt.Errorf("%w: no segments to concatenate", ErrOpFailed)
	}

	listPath := outputPath + ".txt"
	var sb strings.Builder
	for _, p := range segmentPaths {
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(p, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing concat list: %w", err)
	}
	defer os.Remove(listPath)

	return o.run(ctx, "concat video",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	)
}

// StretchVideo retimes a video track to the given factor (>1 is slower)
// without its audio. Re-encodes at a fixed frame rate so downstream
// concatenation sees uniform streams.
func (o *Ops) StretchVideo(ctx context.Context, inputPath, outputPath string, factor float64) error {
	if factor <= 0 {
		return fmt.Errorf("%w: stretch factor must be positive, got %v", ErrOpFailed, factor)
	}
	return o.run(ctx, "stretch video",
		"-y",
		"-i", inputPath,
		"-filter:v", fmt.Sprintf("setpts=%.6f*PTS", factor),
		"-r", "24",
		"-an",
		outputPath,
	)
}

// FreezeFrame extends a video by holding its last frame for extra time.
func (o *Ops) FreezeFrame(ctx context.Context, inputPath, outputPath string, extra time.Duration) error {
	if extra <= 0 {
		return fmt.Errorf("%w: freeze extension must be positive, got %v", ErrOpFailed, extra)
	}
	return o.run(ctx, "freeze frame",
		"-y",
		"-i", inputPath,
		"-filter:v", fmt.Sprintf("tpad=stop_mode=clone:stop_duration=%.3f", extra.Seconds()),
		"-an",
		outputPath,
	)
}

// Remux pairs a video track with a replacement audio track. Video is stream
// copied; audio re-encodes to AAC. -shortest trims to the shorter input.
func (o *Ops) Remux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	return o.run(ctx, "remux",
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outputPath,
	)
}

func (o *Ops) run(ctx context.Context, op string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	output, err := o.cmd.CombinedOutput(ctx, o.ffmpegPath, args)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v: %s",
			ErrOpFailed, op, filepath.Base(lastArg(args)), err, truncateOutput(output))
	}
	return nil
}

func lastArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}
