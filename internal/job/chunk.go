package job

import "time"

// ChunkStatus is the per-chunk lifecycle state.
type ChunkStatus string

const (
	ChunkPending    ChunkStatus = "pending"
	ChunkProcessing ChunkStatus = "processing"
	// ChunkReady means the chunk holds dubbed audio.
	ChunkReady ChunkStatus = "ready"
	// ChunkFallback means the chunk ships with its original soundtrack.
	ChunkFallback ChunkStatus = "fallback"
	ChunkFailed   ChunkStatus = "failed"
)

// Terminal reports whether the chunk has finished processing.
func (s ChunkStatus) Terminal() bool {
	return s == ChunkReady || s == ChunkFallback || s == ChunkFailed
}

// Chunk records one window of a job's source video as it moves through
// the pipeline. Assembly requires every chunk terminal.
type Chunk struct {
	JobID     string
	Index     int
	Start     time.Duration // offset into the source
	End       time.Duration
	LocalPath string
	Status    ChunkStatus
}
