// Package adapter defines the external AI provider contracts and the
// fallback chain that tries providers in order with retries.
package adapter

import (
	"context"

	"github.com/alnah/go-dub/internal/segment"
)

// Provider is anything with a stable name for logging and artifacts.
type Provider interface {
	Name() string
}

// Transcriber converts an audio file into raw timed segments.
type Transcriber interface {
	Provider
	Transcribe(ctx context.Context, audioPath string) ([]segment.Raw, error)
}

// Enricher translates batched segments into the target language,
// returning one enrichment per input segment in the same order: the
// translated text plus inferred speaker, gender, and emotion.
type Enricher interface {
	Provider
	Enrich(ctx context.Context, segments []segment.Segment, targetLanguage string) ([]segment.Enrichment, error)
}

// Condenser shortens a translation while preserving its meaning so it
// fits the segment's on-screen time.
type Condenser interface {
	Provider
	Condense(ctx context.Context, text string, targetLanguage string, maxChars int) (string, error)
}

// Synthesizer speaks text into an audio file at outputPath. emotion is a
// delivery hint; providers without expressive control ignore it.
type Synthesizer interface {
	Provider
	Synthesize(ctx context.Context, text, voice, emotion, outputPath string) error
}
