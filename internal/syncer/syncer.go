// Package syncer reconciles synthesized speech with the original video
// timeline. Each segment's dubbed clip must occupy the same span its source
// speech did; the engine pads short clips, speeds up long ones within a cap,
// and records how much video freeze a too-long clip still needs.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/alnah/go-dub/internal/adapter"
	"github.com/alnah/go-dub/internal/apierr"
	"github.com/alnah/go-dub/internal/logging"
	"github.com/alnah/go-dub/internal/media"
	"github.com/alnah/go-dub/internal/segment"
	"github.com/alnah/go-dub/internal/voice"
)

// AudioOps is the subset of ffmpeg operations the engine needs.
type AudioOps interface {
	SliceAudio(ctx context.Context, inputPath, outputPath string, start, end time.Duration) error
	Normalize(ctx context.Context, inputPath, outputPath string) error
	AdjustSpeed(ctx context.Context, inputPath, outputPath string, factor float64) error
}

// Config holds the reconciliation knobs.
type Config struct {
	// StretchCap bounds audio speed-up. Past it the clip keeps the capped
	// speed and the video freezes to absorb the overrun.
	StretchCap float64
	// CharsPerSecond estimates speech duration from text length before
	// synthesis, so oversized translations condense instead of synthesizing
	// twice.
	CharsPerSecond float64
	// CondenseTrigger scales the target before the length guard fires.
	CondenseTrigger float64
	// SkipNoSpeechProb marks segments as non-speech above this probability.
	SkipNoSpeechProb float64
	// MinTextChars drops segments whose text is shorter than this.
	MinTextChars int
	// GapThreshold is the smallest inter-segment silence worth filling.
	GapThreshold time.Duration
	// IntroGuard keeps the original audio for segments starting this early,
	// where openings are usually music or jingles.
	IntroGuard time.Duration
}

// DefaultConfig mirrors the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		StretchCap:       1.25,
		CharsPerSecond:   13,
		CondenseTrigger:  1.3,
		SkipNoSpeechProb: 0.4,
		MinTextChars:     2,
		GapThreshold:     100 * time.Millisecond,
		IntroGuard:       5 * time.Second,
	}
}

// Result is the reconciled audio timeline for one chunk.
type Result struct {
	// ClipPaths in playback order: silence fillers, dubbed clips, and
	// original-audio spans, all canonical WAV.
	ClipPaths []string
	// Artifacts, one per input segment, in order.
	Artifacts []segment.Artifact
	// FreezeTotal is the accumulated video extension the chunk needs.
	FreezeTotal time.Duration
}

// Engine reconciles one chunk at a time. Safe for concurrent use across
// chunks as long as each call gets its own work directory.
type Engine struct {
	ops     AudioOps
	synth   *adapter.Chain[adapter.Synthesizer]
	cond    *adapter.Chain[adapter.Condenser]
	voices  *voice.Assigner
	log     *logging.Logger
	cfg     Config
	measure func(string) (time.Duration, error)
	silence func(string, time.Duration) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithMeasurer overrides clip duration measurement (for testing).
func WithMeasurer(fn func(string) (time.Duration, error)) Option {
	return func(e *Engine) { e.measure = fn }
}

// WithSilenceWriter overrides silence generation (for testing).
func WithSilenceWriter(fn func(string, time.Duration) error) Option {
	return func(e *Engine) { e.silence = fn }
}

// New creates an Engine.
func New(
	ops AudioOps,
	synth *adapter.Chain[adapter.Synthesizer],
	cond *adapter.Chain[adapter.Condenser],
	voices *voice.Assigner,
	log *logging.Logger,
	cfg Config,
	opts ...Option,
) *Engine {
	e := &Engine{
		ops:     ops,
		synth:   synth,
		cond:    cond,
		voices:  voices,
		log:     log,
		cfg:     cfg,
		measure: media.ClipDuration,
		silence: media.WriteSilence,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncChunk builds the dubbed audio timeline for one chunk.
//
// originalAudio is the chunk's own soundtrack as canonical WAV; segment
// times are relative to the chunk start. targetLanguage drives condensing.
// The cursor walks the chunk timeline in order: silence fills gaps above
// the threshold, skipped and guarded segments copy the original audio, and
// every synthesized clip is reconciled to its segment's span.
func (e *Engine) SyncChunk(
	ctx context.Context,
	workDir string,
	originalAudio string,
	segments []segment.Segment,
	targetLanguage string,
) (*Result, error) {
	res := &Result{}
	var cursor time.Duration

	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		segStart := time.Duration(seg.Start * float64(time.Second))

		// Fill audible gaps so downstream concatenation preserves timing.
		if gap := segStart - cursor; gap > e.cfg.GapThreshold {
			gapPath := filepath.Join(workDir, fmt.Sprintf("gap_%03d.wav", seg.Index))
			if err := e.silence(gapPath, gap); err != nil {
				return nil, fmt.Errorf("segment %d: gap fill: %w", seg.Index, err)
			}
			res.ClipPaths = append(res.ClipPaths, gapPath)
			cursor += gap
		}

		art, clipLen, err := e.syncSegment(ctx, workDir, originalAudio, seg, targetLanguage)
		if err != nil {
			return nil, err
		}

		res.ClipPaths = append(res.ClipPaths, art.ClipPath)
		if art.PadPath != "" {
			res.ClipPaths = append(res.ClipPaths, art.PadPath)
		}
		res.Artifacts = append(res.Artifacts, art)
		res.FreezeTotal += art.FreezeExtend
		cursor += clipLen
	}

	// Carry the original soundtrack through to the chunk end so the dubbed
	// track is never shorter than the picture.
	chunkLen, err := e.measure(originalAudio)
	if err != nil {
		return nil, fmt.Errorf("measuring chunk audio: %w", err)
	}
	if tail := chunkLen - cursor; tail > e.cfg.GapThreshold {
		tailPath := filepath.Join(workDir, "tail.wav")
		if err := e.ops.SliceAudio(ctx, originalAudio, tailPath, cursor, chunkLen); err != nil {
			return nil, fmt.Errorf("tail fill: %w", err)
		}
		res.ClipPaths = append(res.ClipPaths, tailPath)
	}

	return res, nil
}

// syncSegment produces one reconciled clip and reports how much timeline it
// occupies (target duration normally, longer when the video must freeze).
func (e *Engine) syncSegment(
	ctx context.Context,
	workDir string,
	originalAudio string,
	seg segment.Segment,
	targetLanguage string,
) (segment.Artifact, time.Duration, error) {
	target := seg.TargetDuration()
	segStart := time.Duration(seg.Start * float64(time.Second))

	// Early segments and non-speech keep the source soundtrack.
	if segStart < e.cfg.IntroGuard || e.shouldSkip(seg) {
		art, err := e.copyOriginal(ctx, workDir, originalAudio, seg)
		return art, target, err
	}

	text := seg.Translated
	if text == "" {
		text = seg.Text
	}

	text, err := e.guardLength(ctx, text, target, targetLanguage, seg.Index)
	if err != nil {
		return segment.Artifact{}, 0, err
	}

	v, err := e.voices.Assign(seg.Speaker, seg.Gender)
	if err != nil {
		return segment.Artifact{}, 0, fmt.Errorf("segment %d: %w", seg.Index, err)
	}

	rawPath := filepath.Join(workDir, fmt.Sprintf("synth_%03d_raw", seg.Index))
	_, provider, err := adapter.Do(ctx, e.synth, "synthesize",
		func(ctx context.Context, s adapter.Synthesizer) (struct{}, error) {
			return struct{}{}, s.Synthesize(ctx, text, v.ID, seg.Emotion, rawPath)
		})
	if err != nil {
		if ctx.Err() != nil {
			return segment.Artifact{}, 0, err
		}
		// Synthesis is not worth failing the job over; the listener gets the
		// original audio for this span instead.
		if errors.Is(err, apierr.ErrAllProvidersFailed) {
			e.log.Errorf("segment %d: synthesis unavailable, keeping original audio: %v", seg.Index, err)
			art, cerr := e.copyOriginal(ctx, workDir, originalAudio, seg)
			return art, target, cerr
		}
		return segment.Artifact{}, 0, err
	}

	normPath := filepath.Join(workDir, fmt.Sprintf("synth_%03d.wav", seg.Index))
	if err := e.ops.Normalize(ctx, rawPath, normPath); err != nil {
		return segment.Artifact{}, 0, fmt.Errorf("segment %d: %w", seg.Index, err)
	}

	measured, err := e.measure(normPath)
	if err != nil {
		return segment.Artifact{}, 0, fmt.Errorf("segment %d: %w", seg.Index, err)
	}

	return e.reconcile(ctx, workDir, seg, normPath, measured, target, provider)
}

// reconcile applies the duration policy to a measured clip.
func (e *Engine) reconcile(
	ctx context.Context,
	workDir string,
	seg segment.Segment,
	clipPath string,
	measured, target time.Duration,
	provider string,
) (segment.Artifact, time.Duration, error) {
	art := segment.Artifact{
		Segment:      seg,
		ClipPath:     clipPath,
		ClipDuration: measured,
		SpeedFactor:  1.0,
		Provider:     provider,
	}

	if target <= 0 {
		return art, measured, nil
	}

	ratio := float64(measured) / float64(target)
	switch {
	case ratio <= 1.0:
		// Short clip: trailing silence brings it to exactly the target span.
		// Even tiny deficits get padded, otherwise they accumulate across
		// segments and drift the whole track.
		if pad := target - measured; pad > 0 {
			padPath := filepath.Join(workDir, fmt.Sprintf("pad_%03d.wav", seg.Index))
			if err := e.silence(padPath, pad); err != nil {
				return art, 0, fmt.Errorf("segment %d: pad: %w", seg.Index, err)
			}
			art.PadPath = padPath
		}
		art.ClipDuration = measured
		return art, target, nil

	case ratio <= e.cfg.StretchCap:
		fastPath := filepath.Join(workDir, fmt.Sprintf("fast_%03d.wav", seg.Index))
		if err := e.ops.AdjustSpeed(ctx, clipPath, fastPath, ratio); err != nil {
			return art, 0, fmt.Errorf("segment %d: %w", seg.Index, err)
		}
		art.ClipPath = fastPath
		art.ClipDuration = target
		art.SpeedFactor = ratio
		return art, target, nil

	default:
		// Cap the speed-up and let the video freeze absorb the rest.
		fastPath := filepath.Join(workDir, fmt.Sprintf("fast_%03d.wav", seg.Index))
		if err := e.ops.AdjustSpeed(ctx, clipPath, fastPath, e.cfg.StretchCap); err != nil {
			return art, 0, fmt.Errorf("segment %d: %w", seg.Index, err)
		}
		adjusted := time.Duration(float64(measured) / e.cfg.StretchCap)
		art.ClipPath = fastPath
		art.ClipDuration = adjusted
		art.SpeedFactor = e.cfg.StretchCap
		art.FreezeExtend = adjusted - target
		return art, adjusted, nil
	}
}

// guardLength condenses text the estimator says cannot fit even at the cap.
func (e *Engine) guardLength(ctx context.Context, text string, target time.Duration, targetLanguage string, index int) (string, error) {
	if e.cond == nil || target <= 0 {
		return text, nil
	}

	estimated := float64(len(text)) / e.cfg.CharsPerSecond
	if estimated <= target.Seconds()*e.cfg.CondenseTrigger {
		return text, nil
	}

	maxChars := int(target.Seconds() * e.cfg.CharsPerSecond)
	condensed, _, err := adapter.Do(ctx, e.cond, "condense",
		func(ctx context.Context, c adapter.Condenser) (string, error) {
			return c.Condense(ctx, text, targetLanguage, maxChars)
		})
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		// A long clip is recoverable later by speed-up and freeze.
		e.log.Errorf("segment %d: condense unavailable, keeping full text: %v", index, err)
		return text, nil
	}
	return condensed, nil
}

func (e *Engine) shouldSkip(seg segment.Segment) bool {
	return seg.NoSpeechProb > e.cfg.SkipNoSpeechProb || len(seg.Text) < e.cfg.MinTextChars
}

// copyOriginal slices the segment's span out of the chunk soundtrack.
func (e *Engine) copyOriginal(ctx context.Context, workDir, originalAudio string, seg segment.Segment) (segment.Artifact, error) {
	start := time.Duration(seg.Start * float64(time.Second))
	end := time.Duration(seg.End * float64(time.Second))

	outPath := filepath.Join(workDir, fmt.Sprintf("orig_%03d.wav", seg.Index))
	if err := e.ops.SliceAudio(ctx, originalAudio, outPath, start, end); err != nil {
		return segment.Artifact{}, fmt.Errorf("segment %d: copy original: %w", seg.Index, err)
	}

	return segment.Artifact{
		Segment:      seg,
		ClipPath:     outPath,
		ClipDuration: end - start,
		SpeedFactor:  1.0,
		UsedOriginal: true,
	}, nil
}
