package media

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteSilence writes a canonical-format WAV of silence. Used to fill gaps
// between dialogue segments and to pad short synthesized clips.
func WriteSilence(path string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: silence duration must be positive, got %v", ErrOpFailed, d)
	}

	f, err := os.Create(path) // #nosec G304 -- path is under the job scratch dir
	if err != nil {
		return fmt.Errorf("creating silence file: %w", err)
	}
	defer f.Close()

	samples := int(d.Seconds()*float64(SampleRate)) * Channels
	buf := &audio.IntBuffer{
		Data:           make([]int, samples),
		Format:         &audio.Format{SampleRate: SampleRate, NumChannels: Channels},
		SourceBitDepth: 16,
	}

	enc := wav.NewEncoder(f, SampleRate, 16, Channels, 1)
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("writing silence samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing silence file: %w", err)
	}
	return nil
}

// ClipDuration reads the duration of a WAV clip from its header. Measured
// duration, not the synthesizer's estimate, is the authority everywhere
// downstream.
func ClipDuration(path string) (time.Duration, error) {
	f, err := os.Open(path) // #nosec G304 -- path is under the job scratch dir
	if err != nil {
		return 0, fmt.Errorf("opening clip: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("%w: reading wav header of %s: %v", ErrUnreadable, path, err)
	}
	return d, nil
}
