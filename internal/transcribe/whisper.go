// Package transcribe converts chunk audio into timed segments using
// Whisper-compatible transcription APIs. Groq serves the same wire format
// as OpenAI, so both run through one client with different base URLs.
package transcribe

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-dub/internal/segment"
)

// Whisper model identifiers.
const (
	// ModelWhisperGroq is Groq's hosted large-v3 deployment.
	ModelWhisperGroq = "whisper-large-v3"
	// ModelWhisperOpenAI is OpenAI's hosted Whisper.
	ModelWhisperOpenAI = "whisper-1"

	// GroqBaseURL is Groq's OpenAI-compatible endpoint.
	GroqBaseURL = "https://api.groq.com/openai/v1"
)

// audioAPI is the slice of the OpenAI client the transcriber calls.
// *openai.Client implements it.
type audioAPI interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface implementation check.
var _ audioAPI = (*openai.Client)(nil)

// Whisper transcribes audio via a Whisper-compatible API, returning
// per-segment timings and no-speech probabilities.
type Whisper struct {
	name    string
	model   string
	client  audioAPI
	timeout time.Duration
}

// WhisperOption configures a Whisper transcriber.
type WhisperOption func(*Whisper)

// WithClient overrides the API client (for testing).
func WithClient(c audioAPI) WhisperOption {
	return func(w *Whisper) { w.client = c }
}

// WithTimeout bounds a single transcription call.
func WithTimeout(d time.Duration) WhisperOption {
	return func(w *Whisper) { w.timeout = d }
}

// NewGroq creates the Groq-hosted transcriber.
func NewGroq(apiKey string, opts ...WhisperOption) *Whisper {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = GroqBaseURL
	return newWhisper("groq-whisper", ModelWhisperGroq, openai.NewClientWithConfig(cfg), opts...)
}

// NewOpenAI creates the OpenAI-hosted transcriber.
func NewOpenAI(apiKey string, opts ...WhisperOption) *Whisper {
	return newWhisper("openai-whisper", ModelWhisperOpenAI, openai.NewClient(apiKey), opts...)
}

func newWhisper(name, model string, client audioAPI, opts ...WhisperOption) *Whisper {
	w := &Whisper{
		name:    name,
		model:   model,
		client:  client,
		timeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name identifies this provider in logs and artifacts.
func (w *Whisper) Name() string { return w.name }

// Transcribe runs the audio through the API in verbose mode and converts
// the response to raw segments. Segment times are seconds from the start
// of the given file.
func (w *Whisper) Transcribe(ctx context.Context, audioPath string) ([]segment.Raw, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", w.name, ClassifyError(err))
	}

	raws := make([]segment.Raw, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		raws = append(raws, segment.Raw{
			Start:        s.Start,
			End:          s.End,
			Text:         s.Text,
			NoSpeechProb: s.NoSpeechProb,
		})
	}
	return raws, nil
}
