// Package mux joins a chunk's reconciled audio clips into one track and
// marries it to the chunk video, stretching the video elastically when the
// dubbed track ran long.
package mux

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/alnah/go-dub/internal/logging"
	"github.com/alnah/go-dub/internal/media"
)

// ErrMuxFailed indicates the dubbed track could not be married to the
// video. The chunk then ships with its original soundtrack.
var ErrMuxFailed = errors.New("mux failed")

// Tolerance is the audio/video length mismatch below which the video is
// left untouched. Small drift is invisible; re-encoding is not free.
const Tolerance = 200 * time.Millisecond

// VideoOps is the subset of ffmpeg operations the muxer needs.
type VideoOps interface {
	ConcatAudio(ctx context.Context, clipPaths []string, outputPath string) error
	FreezeFrame(ctx context.Context, inputPath, outputPath string, extra time.Duration) error
	StretchVideo(ctx context.Context, inputPath, outputPath string, factor float64) error
	Remux(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// Result describes one muxed chunk.
type Result struct {
	Path          string
	Frozen        time.Duration // last-frame extension applied
	Stretched     bool
	StretchFactor float64
	UsedFallback  bool // original chunk shipped unmodified
}

// Muxer muxes one chunk at a time. Safe for concurrent use across chunks
// with distinct work directories.
type Muxer struct {
	ops     VideoOps
	prober  media.Prober
	log     *logging.Logger
	measure func(string) (time.Duration, error)
}

// Option configures a Muxer.
type Option func(*Muxer)

// WithMeasurer overrides audio duration measurement (for testing).
func WithMeasurer(fn func(string) (time.Duration, error)) Option {
	return func(m *Muxer) { m.measure = fn }
}

// New creates a Muxer.
func New(ops VideoOps, prober media.Prober, log *logging.Logger, opts ...Option) *Muxer {
	m := &Muxer{
		ops:     ops,
		prober:  prober,
		log:     log,
		measure: media.ClipDuration,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mux concatenates the clips into the chunk's dubbed track and remuxes it
// onto the chunk video. A freeze budget from the sync engine extends the
// video's last frame first; any residual mismatch beyond Tolerance is
// then absorbed by retiming the video. A mux failure is downgraded to
// shipping the original chunk untouched so one bad chunk cannot sink the
// job.
func (m *Muxer) Mux(ctx context.Context, workDir, chunkVideo string, clipPaths []string, freeze time.Duration) (*Result, error) {
	res, err := m.mux(ctx, workDir, chunkVideo, clipPaths, freeze)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	m.log.Errorf("chunk %s: %v, shipping original audio", filepath.Base(chunkVideo), err)
	return &Result{Path: chunkVideo, UsedFallback: true}, nil
}

func (m *Muxer) mux(ctx context.Context, workDir, chunkVideo string, clipPaths []string, freeze time.Duration) (*Result, error) {
	if len(clipPaths) == 0 {
		return nil, fmt.Errorf("%w: no audio clips", ErrMuxFailed)
	}

	dubbedAudio := filepath.Join(workDir, "dubbed.wav")
	if err := m.ops.ConcatAudio(ctx, clipPaths, dubbedAudio); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMuxFailed, err)
	}

	audioLen, err := m.measure(dubbedAudio)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMuxFailed, err)
	}

	info, err := m.prober.Probe(ctx, chunkVideo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMuxFailed, err)
	}

	videoSource := chunkVideo
	videoLen := info.Duration
	res := &Result{}

	if freeze > Tolerance {
		frozen := filepath.Join(workDir, "frozen.mp4")
		if err := m.ops.FreezeFrame(ctx, chunkVideo, frozen, freeze); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMuxFailed, err)
		}
		videoSource = frozen
		videoLen += freeze
		res.Frozen = freeze
	}

	// Only audio running long retimes the picture. A shorter track means
	// the sync engine already carried original audio to the chunk end;
	// whatever sliver remains is cut by the remux, never by compressing
	// the video.
	if diff := audioLen - videoLen; diff > Tolerance {
		factor := float64(audioLen) / float64(videoLen)
		stretched := filepath.Join(workDir, "stretched.mp4")
		if err := m.ops.StretchVideo(ctx, videoSource, stretched, factor); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMuxFailed, err)
		}
		videoSource = stretched
		res.Stretched = true
		res.StretchFactor = factor
	}

	muxed := filepath.Join(workDir, "muxed.mp4")
	if err := m.ops.Remux(ctx, videoSource, dubbedAudio, muxed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMuxFailed, err)
	}

	res.Path = muxed
	return res, nil
}
