package job

// Stage weight bands. Extraction and upload are quick; the per-chunk
// transcribe/translate/synthesize/merge work dominates wall time.
const (
	extractDone = 10.0
	chunkBand   = 80.0 // 10..90 spread across chunks
	uploadStart = 90.0
)

// Per-chunk stage completion fractions, in pipeline order.
var stageFraction = map[Status]float64{
	StatusTranscribing:    0.0,
	StatusTranslating:     0.3,
	StatusGeneratingAudio: 0.5,
	StatusMerging:         0.9,
}

// Progress maps a job's state to a 0..100 percentage. Chunk work spans the
// wide middle band, weighted by completed chunks plus the in-flight chunk's
// current stage. Terminal failure states keep whatever progress was last
// reported, so callers should not overwrite on failure.
func Progress(status Status, chunksDone, chunksTotal int) float64 {
	switch status {
	case StatusPending:
		return 0
	case StatusExtracting:
		return extractDone / 2
	case StatusUploading:
		return uploadStart
	case StatusCompleted:
		return 100
	}

	frac, ok := stageFraction[status]
	if !ok {
		return 0
	}
	if chunksTotal < 1 {
		chunksTotal = 1
	}
	if chunksDone > chunksTotal {
		chunksDone = chunksTotal
	}

	done := (float64(chunksDone) + frac) / float64(chunksTotal)
	if done > 1 {
		done = 1
	}
	return extractDone + chunkBand*done
}
