// Package subtitle renders translated segments as SubRip (.srt) files.
package subtitle

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alnah/go-dub/internal/format"
	"github.com/alnah/go-dub/internal/segment"
)

// Cue is one subtitle line with absolute timing.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// FromSegments converts chunk-relative segments to absolute cues by adding
// the chunk's offset in the source video. Segments without a translation
// fall back to their source text; empty ones are dropped.
func FromSegments(segments []segment.Segment, chunkOffset time.Duration) []Cue {
	cues := make([]Cue, 0, len(segments))
	for _, s := range segments {
		text := strings.TrimSpace(s.Translated)
		if text == "" {
			text = strings.TrimSpace(s.Text)
		}
		if text == "" {
			continue
		}
		cues = append(cues, Cue{
			Start: chunkOffset + time.Duration(s.Start*float64(time.Second)),
			End:   chunkOffset + time.Duration(s.End*float64(time.Second)),
			Text:  text,
		})
	}
	return cues
}

// Write renders cues as SRT. Cue numbering starts at 1.
func Write(w io.Writer, cues []Cue) error {
	for i, c := range cues {
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			i+1, format.SRTTimestamp(c.Start), format.SRTTimestamp(c.End), c.Text); err != nil {
			return fmt.Errorf("writing cue %d: %w", i+1, err)
		}
	}
	return nil
}

// WriteFile renders cues to an .srt file.
func WriteFile(path string, cues []Cue) error {
	f, err := os.Create(path) // #nosec G304 -- path is under the job output dir
	if err != nil {
		return fmt.Errorf("creating subtitle file: %w", err)
	}
	if err := Write(f, cues); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
