// Package synth turns translated text into speech clips.
package synth

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-dub/internal/transcribe"
)

// speechAPI is the slice of the OpenAI client the synthesizer calls.
type speechAPI interface {
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// Compile-time interface implementation check.
var _ speechAPI = (*openai.Client)(nil)

// OpenAI synthesizes speech with the OpenAI TTS endpoint. Output is WAV so
// the clip feeds straight into normalization and measurement.
type OpenAI struct {
	api     speechAPI
	model   openai.SpeechModel
	timeout time.Duration
}

// OpenAIOption configures an OpenAI synthesizer.
type OpenAIOption func(*OpenAI)

// WithSpeechAPI overrides the API client (for testing).
func WithSpeechAPI(api speechAPI) OpenAIOption {
	return func(o *OpenAI) { o.api = api }
}

// WithSpeechModel overrides the TTS model.
func WithSpeechModel(model openai.SpeechModel) OpenAIOption {
	return func(o *OpenAI) { o.model = model }
}

// WithSpeechTimeout bounds one synthesis call.
func WithSpeechTimeout(d time.Duration) OpenAIOption {
	return func(o *OpenAI) { o.timeout = d }
}

// NewOpenAI creates the OpenAI synthesizer.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	o := &OpenAI{model: openai.TTSModel1, timeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(o)
	}
	if o.api == nil {
		o.api = openai.NewClient(apiKey)
	}
	return o
}

// Name identifies this provider in logs and artifacts.
func (o *OpenAI) Name() string { return "openai-tts" }

// Synthesize speaks text with the given voice into outputPath. The TTS
// endpoint has no delivery-style control, so the emotion hint is ignored.
func (o *OpenAI) Synthesize(ctx context.Context, text, voice, _, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return fmt.Errorf("openai-tts: %w", transcribe.ClassifyError(err))
	}
	defer resp.Close()

	out, err := os.Create(outputPath) // #nosec G304 -- path is under the job scratch dir
	if err != nil {
		return fmt.Errorf("creating speech file: %w", err)
	}
	if _, err := io.Copy(out, resp); err != nil {
		out.Close()
		return fmt.Errorf("writing speech file: %w", err)
	}
	return out.Close()
}
