// Package pipeline drives a dubbing job end to end: split the source into
// chunks, then transcribe, translate, synthesize, reconcile, and mux each
// chunk, and finally assemble and publish the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-dub/internal/adapter"
	"github.com/alnah/go-dub/internal/apierr"
	"github.com/alnah/go-dub/internal/assemble"
	"github.com/alnah/go-dub/internal/job"
	"github.com/alnah/go-dub/internal/logging"
	"github.com/alnah/go-dub/internal/media"
	"github.com/alnah/go-dub/internal/mux"
	"github.com/alnah/go-dub/internal/objstore"
	"github.com/alnah/go-dub/internal/segment"
	"github.com/alnah/go-dub/internal/subtitle"
	"github.com/alnah/go-dub/internal/syncer"
)

// Splitter cuts the source into chunk windows.
type Splitter interface {
	Split(ctx context.Context, sourcePath string, window time.Duration) ([]media.Chunk, string, error)
}

// AudioOps is the subset of ffmpeg operations the driver itself needs.
type AudioOps interface {
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
	Normalize(ctx context.Context, inputPath, outputPath string) error
}

// Syncer reconciles one chunk's dubbed audio against its timeline.
type Syncer interface {
	SyncChunk(ctx context.Context, workDir, originalAudio string, segments []segment.Segment, targetLanguage string) (*syncer.Result, error)
}

// Muxer marries a chunk's dubbed track to its video.
type Muxer interface {
	Mux(ctx context.Context, workDir, chunkVideo string, clipPaths []string, freeze time.Duration) (*mux.Result, error)
}

// Assembler joins finished chunks into the final video.
type Assembler interface {
	Assemble(ctx context.Context, chunks []assemble.ChunkResult, outputPath string) error
}

// Options tunes the driver.
type Options struct {
	Window      time.Duration
	MaxParallel int
}

// Pipeline executes jobs. One Pipeline serves many jobs; per-job state
// lives on the stack of Run.
type Pipeline struct {
	opts        Options
	jobMu       sync.Mutex // guards job mutation across parallel chunks
	log         *logging.Logger
	store       job.Store
	hub         *job.Hub
	splitter    Splitter
	ops         AudioOps
	transcriber *adapter.Chain[adapter.Transcriber]
	enricher    *adapter.Chain[adapter.Enricher]
	engine      Syncer
	muxer       Muxer
	assembler   Assembler
	publisher   objstore.Store
}

// New creates a Pipeline.
func New(
	opts Options,
	log *logging.Logger,
	store job.Store,
	hub *job.Hub,
	splitter Splitter,
	ops AudioOps,
	transcriber *adapter.Chain[adapter.Transcriber],
	enricher *adapter.Chain[adapter.Enricher],
	engine Syncer,
	muxer Muxer,
	assembler Assembler,
	publisher objstore.Store,
) *Pipeline {
	if opts.Window <= 0 {
		opts.Window = 5 * time.Minute
	}
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}
	return &Pipeline{
		opts:        opts,
		log:         log,
		store:       store,
		hub:         hub,
		splitter:    splitter,
		ops:         ops,
		transcriber: transcriber,
		enricher:    enricher,
		engine:      engine,
		muxer:       muxer,
		assembler:   assembler,
		publisher:   publisher,
	}
}

// chunkOutcome carries one chunk's results back to the driver.
type chunkOutcome struct {
	result assemble.ChunkResult
	cues   []subtitle.Cue
}

// Run executes one job to a terminal state. The returned error is also
// recorded on the job, so callers only need it for logging. Cancellation
// is honored between chunks and inside every provider call; a cancelled
// job ends FAILED with the CANCELLED reason.
func (p *Pipeline) Run(ctx context.Context, j *job.Job) error {
	err := p.run(ctx, j)
	if err == nil {
		return nil
	}

	j.Status = job.StatusFailed
	if errors.Is(err, context.Canceled) {
		j.FailReason = job.ReasonCancelled
	} else {
		j.FailReason = classifyFailure(err)
	}
	j.Error = err.Error()
	p.persist(j, err.Error())
	return err
}

func (p *Pipeline) run(ctx context.Context, j *job.Job) error {
	p.setStage(j, job.StatusExtracting, "splitting source into chunks")

	chunks, scratch, err := p.splitter.Split(ctx, j.SourcePath, p.opts.Window)
	if err != nil {
		return fmt.Errorf("splitting %s: %w", j.Filename, err)
	}
	defer os.RemoveAll(scratch)

	j.ChunksTotal = len(chunks)
	p.persist(j, "")
	for _, c := range chunks {
		rec := &job.Chunk{
			JobID:     j.ID,
			Index:     c.Index,
			Start:     c.StartTime,
			End:       c.EndTime,
			LocalPath: c.Path,
			Status:    job.ChunkPending,
		}
		if err := p.store.CreateChunk(context.Background(), rec); err != nil {
			p.log.Errorf("job %s: recording chunk %d: %v", j.ID, c.Index, err)
		}
	}

	outcomes := make([]chunkOutcome, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxParallel)

	for _, c := range chunks {
		c := c
		g.Go(func() error {
			// Chunk boundaries are the cancellation points.
			if err := gctx.Err(); err != nil {
				return err
			}
			p.setChunkStatus(j.ID, c.Index, job.ChunkProcessing)
			out, err := p.processChunk(gctx, j, scratch, c)
			switch {
			case err == nil:
				status := job.ChunkReady
				if out.result.UsedFallback {
					status = job.ChunkFallback
				}
				p.setChunkStatus(j.ID, c.Index, status)
			case gctx.Err() == nil && errors.Is(err, media.ErrOpFailed):
				// Media tooling choked on this chunk only; ship it with the
				// original soundtrack so the rest of the job survives.
				p.log.Errorf("job %s: chunk %d: %v, keeping original chunk", j.ID, c.Index, err)
				p.setChunkStatus(j.ID, c.Index, job.ChunkFailed)
				out = chunkOutcome{result: assemble.ChunkResult{Index: c.Index, Path: c.Path, UsedFallback: true}}
				p.chunkDone(j)
			default:
				p.setChunkStatus(j.ID, c.Index, job.ChunkFailed)
				return fmt.Errorf("chunk %d: %w", c.Index, err)
			}
			outcomes[c.Index] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	results := make([]assemble.ChunkResult, 0, len(outcomes))
	var cues []subtitle.Cue
	var fallbacks []int
	for _, out := range outcomes {
		results = append(results, out.result)
		cues = append(cues, out.cues...)
		if out.result.UsedFallback {
			fallbacks = append(fallbacks, out.result.Index)
		}
	}

	subtitlePath := filepath.Join(scratch, "subtitles.srt")
	if err := subtitle.WriteFile(subtitlePath, cues); err != nil {
		return err
	}

	finalPath := ""
	if j.Mode != job.ModeSubtitle {
		p.setStage(j, job.StatusMerging, "assembling final video")
		finalPath = filepath.Join(scratch, "final.mp4")
		if err := p.assembler.Assemble(ctx, results, finalPath); err != nil {
			return err
		}
	}

	p.setStage(j, job.StatusUploading, "publishing artifacts")
	if err := p.publish(ctx, j, finalPath, subtitlePath); err != nil {
		return err
	}

	j.Status = job.StatusCompleted
	j.Progress = 100
	msg := "done"
	if len(fallbacks) > 0 {
		msg = fmt.Sprintf("done, original audio kept for chunks %v", fallbacks)
	}
	p.persist(j, msg)
	return nil
}

func (p *Pipeline) processChunk(ctx context.Context, j *job.Job, scratch string, c media.Chunk) (chunkOutcome, error) {
	workDir := filepath.Join(scratch, fmt.Sprintf("work_%03d", c.Index))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return chunkOutcome{}, err
	}

	// Chunk soundtrack, compressed for the transcription API and canonical
	// WAV for slicing.
	chunkMP3 := filepath.Join(workDir, "audio.mp3")
	if err := p.ops.ExtractAudio(ctx, c.Path, chunkMP3); err != nil {
		return chunkOutcome{}, err
	}
	chunkWAV := filepath.Join(workDir, "audio.wav")
	if err := p.ops.Normalize(ctx, chunkMP3, chunkWAV); err != nil {
		return chunkOutcome{}, err
	}

	p.setStage(j, job.StatusTranscribing, fmt.Sprintf("transcribing chunk %d", c.Index))
	raws, _, err := adapter.Do(ctx, p.transcriber, "transcribe",
		func(ctx context.Context, t adapter.Transcriber) ([]segment.Raw, error) {
			return t.Transcribe(ctx, chunkMP3)
		})
	if err != nil {
		return chunkOutcome{}, err
	}
	segments := segment.Batch(raws)

	if len(segments) > 0 {
		p.setStage(j, job.StatusTranslating, fmt.Sprintf("translating chunk %d", c.Index))
		enrichments, _, err := adapter.Do(ctx, p.enricher, "translate",
			func(ctx context.Context, e adapter.Enricher) ([]segment.Enrichment, error) {
				return e.Enrich(ctx, segments, j.TargetLanguage)
			})
		if err != nil {
			return chunkOutcome{}, err
		}
		segment.ApplyEnrichments(segments, enrichments)
	}

	cues := subtitle.FromSegments(segments, c.StartTime)

	if j.Mode == job.ModeSubtitle {
		p.chunkDone(j)
		return chunkOutcome{
			result: assemble.ChunkResult{Index: c.Index, Path: c.Path},
			cues:   cues,
		}, nil
	}

	p.setStage(j, job.StatusGeneratingAudio, fmt.Sprintf("synthesizing chunk %d", c.Index))
	synced, err := p.engine.SyncChunk(ctx, workDir, chunkWAV, segments, j.TargetLanguage)
	if err != nil {
		return chunkOutcome{}, err
	}

	p.setStage(j, job.StatusMerging, fmt.Sprintf("muxing chunk %d", c.Index))
	muxed, err := p.muxer.Mux(ctx, workDir, c.Path, synced.ClipPaths, synced.FreezeTotal)
	if err != nil {
		return chunkOutcome{}, err
	}

	p.chunkDone(j)
	return chunkOutcome{
		result: assemble.ChunkResult{
			Index:        c.Index,
			Path:         muxed.Path,
			UsedFallback: muxed.UsedFallback,
		},
		cues: cues,
	}, nil
}

func (p *Pipeline) publish(ctx context.Context, j *job.Job, finalPath, subtitlePath string) error {
	srtKey := j.ID + "/subtitles.srt"
	srtURL, err := p.publisher.Upload(ctx, subtitlePath, srtKey, "application/x-subrip")
	if err != nil {
		return fmt.Errorf("publishing subtitles: %w", err)
	}
	j.SubtitlePath = srtURL

	if finalPath != "" {
		key := j.ID + "/" + dubbedName(j.Filename, j.TargetLanguage)
		url, err := p.publisher.Upload(ctx, finalPath, key, "video/mp4")
		if err != nil {
			return fmt.Errorf("publishing video: %w", err)
		}
		j.ResultPath = key
		j.ResultURL = url
	}
	return nil
}

// setStage moves the job forward and notifies watchers. Stage regressions
// from parallel chunks are harmless; progress stays monotonic because it
// counts finished chunks.
func (p *Pipeline) setStage(j *job.Job, status job.Status, msg string) {
	p.jobMu.Lock()
	defer p.jobMu.Unlock()
	j.Status = status
	j.Progress = job.Progress(status, j.ChunksDone, j.ChunksTotal)
	p.persist(j, msg)
}

func (p *Pipeline) chunkDone(j *job.Job) {
	p.jobMu.Lock()
	defer p.jobMu.Unlock()
	j.ChunksDone++
	j.Progress = job.Progress(j.Status, j.ChunksDone, j.ChunksTotal)
	p.persist(j, fmt.Sprintf("chunk complete (%d/%d)", j.ChunksDone, j.ChunksTotal))
}

func (p *Pipeline) setChunkStatus(jobID string, index int, status job.ChunkStatus) {
	if err := p.store.UpdateChunkStatus(context.Background(), jobID, index, status); err != nil {
		p.log.Errorf("job %s: chunk %d: recording status %s: %v", jobID, index, status, err)
	}
}

func (p *Pipeline) persist(j *job.Job, msg string) {
	if err := p.store.Update(context.Background(), j); err != nil {
		p.log.Errorf("job %s: persisting state: %v", j.ID, err)
	}
	p.hub.Publish(job.Event{
		JobID:    j.ID,
		Status:   j.Status,
		Progress: j.Progress,
		Message:  msg,
	})
}

func classifyFailure(err error) job.FailReason {
	switch {
	case errors.Is(err, media.ErrUnreadable):
		return job.ReasonMediaUnreadable
	case errors.Is(err, apierr.ErrAllProvidersFailed):
		return job.ReasonProvidersDown
	default:
		return job.ReasonInternal
	}
}

func dubbedName(filename, targetLanguage string) string {
	ext := filepath.Ext(filename)
	base := filename[:len(filename)-len(ext)]
	return fmt.Sprintf("%s_%s.mp4", base, targetLanguage)
}
