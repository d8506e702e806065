package media

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Info describes a probed container.
type Info struct {
	Duration time.Duration
	HasVideo bool
	HasAudio bool
}

// Prober reads container duration and stream layout from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// Compile-time interface implementation check.
var _ Prober = (*FFProber)(nil)

// FFProber probes files with ffprobe, falling back to parsing ffmpeg's
// stderr banner when ffprobe is unavailable.
type FFProber struct {
	ffprobePath string
	ffmpegPath  string
	cmd         commandRunner
}

// FFProberOption configures an FFProber.
type FFProberOption func(*FFProber)

// WithProberCommandRunner sets the command runner (for testing).
func WithProberCommandRunner(r commandRunner) FFProberOption {
	return func(p *FFProber) {
		p.cmd = r
	}
}

// NewFFProber creates a prober using the given ffprobe and ffmpeg binaries.
func NewFFProber(ffprobePath, ffmpegPath string, opts ...FFProberOption) *FFProber {
	p := &FFProber{
		ffprobePath: ffprobePath,
		ffmpegPath:  ffmpegPath,
		cmd:         osCommandRunner{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe returns the container duration and which stream kinds are present.
func (p *FFProber) Probe(ctx context.Context, path string) (Info, error) {
	info, err := p.probeWithFFprobe(ctx, path)
	if err == nil {
		return info, nil
	}

	// ffprobe missing or confused; ffmpeg prints the same metadata on stderr.
	d, ferr := p.probeDurationWithFFmpeg(ctx, path)
	if ferr != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return Info{Duration: d, HasVideo: true, HasAudio: true}, nil
}

func (p *FFProber) probeWithFFprobe(ctx context.Context, path string) (Info, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-show_entries", "stream=codec_type",
		"-of", "default=noprint_wrappers=1",
		path,
	}
	output, err := p.cmd.CombinedOutput(ctx, p.ffprobePath, args)
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseFFprobeOutput(string(output))
}

// parseFFprobeOutput reads key=value lines like:
//
//	codec_type=video
//	codec_type=audio
//	duration=723.456000
func parseFFprobeOutput(output string) (Info, error) {
	var info Info
	var haveDuration bool

	for line := range strings.SplitSeq(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "duration="):
			secs, err := strconv.ParseFloat(strings.TrimPrefix(line, "duration="), 64)
			if err != nil || secs <= 0 {
				continue
			}
			info.Duration = time.Duration(secs * float64(time.Second))
			haveDuration = true
		case line == "codec_type=video":
			info.HasVideo = true
		case line == "codec_type=audio":
			info.HasAudio = true
		}
	}

	if !haveDuration {
		return Info{}, fmt.Errorf("no duration in ffprobe output")
	}
	return info, nil
}

func (p *FFProber) probeDurationWithFFmpeg(ctx context.Context, path string) (time.Duration, error) {
	args := []string{"-i", path, "-f", "null", "-"}
	output, err := p.cmd.CombinedOutput(ctx, p.ffmpegPath, args)
	if err != nil && len(output) == 0 {
		// FFmpeg returns non-zero even when it successfully reads file info,
		// so only give up when there is nothing to parse.
		return 0, err
	}
	return parseDurationFromFFmpegOutput(string(output))
}

// parseDurationFromFFmpegOutput extracts duration from FFmpeg stderr.
// Looks for: "Duration: HH:MM:SS.ms" or "time=HH:MM:SS.ms"
func parseDurationFromFFmpegOutput(output string) (time.Duration, error) {
	durationRe := regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	if matches := durationRe.FindStringSubmatch(output); matches != nil {
		return parseTimeComponents(matches[1], matches[2], matches[3], matches[4])
	}

	// Fallback: the last time= progress value is the final timestamp.
	timeRe := regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)
	allMatches := timeRe.FindAllStringSubmatch(output, -1)
	if len(allMatches) > 0 {
		matches := allMatches[len(allMatches)-1]
		return parseTimeComponents(matches[1], matches[2], matches[3], matches[4])
	}

	return 0, fmt.Errorf("could not parse duration from ffmpeg output")
}

// parseTimeComponents converts HH:MM:SS.ms strings to Duration.
func parseTimeComponents(hours, minutes, seconds, fractional string) (time.Duration, error) {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)

	// Normalize fractional part to milliseconds.
	// Input may be 1-6+ digits (e.g., ".4", ".45", ".456", ".456789").
	frac, _ := strconv.Atoi(fractional)
	ms := frac
	switch n := len(fractional); {
	case n == 1:
		ms = frac * 100
	case n == 2:
		ms = frac * 10
	case n == 3:
		// Already milliseconds.
	case n > 3:
		for i := n; i > 3; i-- {
			ms /= 10
		}
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}
