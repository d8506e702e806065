// Package job holds the dubbing job model, its lifecycle states, and the
// persistence and event plumbing around it.
package job

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores for unknown job IDs.
var ErrNotFound = errors.New("job not found")

// ErrTerminal is returned by stores when an update targets a job that
// already reached a terminal status. Terminal jobs are immutable.
var ErrTerminal = errors.New("job already terminal")

// Status is the job lifecycle state.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusExtracting      Status = "EXTRACTING"
	StatusTranscribing    Status = "TRANSCRIBING"
	StatusTranslating     Status = "TRANSLATING"
	StatusGeneratingAudio Status = "GENERATING_AUDIO"
	StatusMerging         Status = "MERGING"
	StatusUploading       Status = "UPLOADING"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
)

// Terminal reports whether the job has finished, one way or another.
// Cancelled jobs end FAILED with ReasonCancelled; there is no separate
// terminal state for them.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Mode selects what the pipeline produces.
type Mode string

const (
	// ModeDub produces a dubbed video plus subtitles.
	ModeDub Mode = "dub"
	// ModeSubtitle produces subtitles only, skipping synthesis and muxing.
	ModeSubtitle Mode = "subtitle"
	// ModeBoth produces the dubbed video and subtitles. Dubbing already
	// emits subtitles as a side product, so the pipeline treats this like
	// ModeDub; the mode survives round-trips for API clients that set it.
	ModeBoth Mode = "both"
)

// FailReason classifies terminal failures for the API surface.
type FailReason string

const (
	ReasonMediaUnreadable FailReason = "MEDIA_UNREADABLE"
	ReasonProvidersDown   FailReason = "PROVIDERS_UNAVAILABLE"
	ReasonCancelled       FailReason = "CANCELLED"
	ReasonInternal        FailReason = "INTERNAL"
)

// Job is one dubbing request moving through the pipeline.
type Job struct {
	ID             string
	Filename       string
	SourcePath     string
	TargetLanguage string
	Mode           Mode

	Status     Status
	FailReason FailReason
	Error      string
	Progress   float64 // 0..100

	ChunksTotal int
	ChunksDone  int

	ResultPath   string
	ResultURL    string
	SubtitlePath string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a pending job.
func New(filename, sourcePath, targetLanguage string, mode Mode) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:             uuid.NewString(),
		Filename:       filename,
		SourcePath:     sourcePath,
		TargetLanguage: targetLanguage,
		Mode:           mode,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
