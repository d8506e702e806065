// Package segment defines the transcript units that flow through the
// dubbing pipeline and the batcher that merges raw recognizer output
// into synthesis-sized segments.
package segment

import (
	"strings"
	"time"
)

// Raw is one segment as the speech recognizer emitted it.
type Raw struct {
	Start        float64 // seconds from chunk start
	End          float64
	Text         string
	Speaker      string // empty when diarization is unavailable
	NoSpeechProb float64
}

// Segment is a batched unit ready for translation and synthesis.
type Segment struct {
	Index        int
	Start        float64 // seconds from chunk start
	End          float64
	Text         string // source-language text
	Translated   string // filled by the enricher
	Speaker      string
	Gender       string // "male", "female", or empty when unknown
	Emotion      string // delivery hint from the enricher, empty for neutral
	NoSpeechProb float64
}

// Enrichment is the per-segment reply from the translation model: the
// translated line plus the speaker, gender, and emotion it inferred from
// dialogue context.
type Enrichment struct {
	Translated string `json:"translated_text"`
	Speaker    string `json:"speaker_id"`
	Gender     string `json:"gender"`
	Emotion    string `json:"emotion"`
}

// ApplyEnrichments copies model output onto the batch. Speaker labels from
// the recognizer win over model guesses; the model only fills the blanks.
func ApplyEnrichments(segments []Segment, enrichments []Enrichment) {
	for i := range segments {
		if i >= len(enrichments) {
			return
		}
		e := enrichments[i]
		segments[i].Translated = e.Translated
		if segments[i].Speaker == "" {
			segments[i].Speaker = e.Speaker
		}
		segments[i].Gender = e.Gender
		segments[i].Emotion = e.Emotion
	}
}

// TargetDuration is the original on-screen time this segment must fill.
func (s Segment) TargetDuration() time.Duration {
	return time.Duration((s.End - s.Start) * float64(time.Second))
}

// Artifact records the outcome of synthesizing and reconciling one segment.
type Artifact struct {
	Segment      Segment
	ClipPath     string
	PadPath      string // trailing silence clip, empty when none needed
	ClipDuration time.Duration
	SpeedFactor  float64       // 1.0 when no time adjustment applied
	FreezeExtend time.Duration // video extension needed beyond the cap
	Provider     string        // synthesizer that served this clip
	UsedOriginal bool          // original audio copied instead of synthesis
}

// Batching thresholds. Raw recognizer segments split mid-sentence; merging
// nearby same-speaker segments gives the synthesizer natural phrasing
// without letting any one request grow unbounded.
const (
	MaxBatchGapSeconds = 0.75
	MaxBatchChars      = 280
)

// Batch merges adjacent raw segments into synthesis units. Two raw
// segments merge when the silence between them is under MaxBatchGapSeconds,
// they share a speaker, and the combined text stays under MaxBatchChars.
// Output indices are sequential from zero.
func Batch(raws []Raw) []Segment {
	var out []Segment

	for _, r := range raws {
		text := strings.TrimSpace(r.Text)
		if len(out) > 0 && mergeable(&out[len(out)-1], r, text) {
			last := &out[len(out)-1]
			last.End = r.End
			last.Text = last.Text + " " + text
			if r.NoSpeechProb < last.NoSpeechProb {
				last.NoSpeechProb = r.NoSpeechProb
			}
			continue
		}
		out = append(out, Segment{
			Index:        len(out),
			Start:        r.Start,
			End:          r.End,
			Text:         text,
			Speaker:      r.Speaker,
			NoSpeechProb: r.NoSpeechProb,
		})
	}

	return out
}

func mergeable(prev *Segment, r Raw, text string) bool {
	if r.Start-prev.End >= MaxBatchGapSeconds {
		return false
	}
	if r.Speaker != prev.Speaker {
		return false
	}
	return len(prev.Text)+1+len(text) <= MaxBatchChars
}
