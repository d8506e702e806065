package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-dub/internal/apierr"
	"github.com/alnah/go-dub/internal/segment"
	"github.com/alnah/go-dub/internal/transcribe"
)

// ChatModel is the translation fallback model.
const ChatModel = "gpt-4o-mini"

// chatAPI is the slice of the OpenAI client the enricher calls.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Compile-time interface implementation check.
var _ chatAPI = (*openai.Client)(nil)

// OpenAI is the chat-completion translator, second in the enrichment chain
// behind Gemini.
type OpenAI struct {
	api     chatAPI
	model   string
	timeout time.Duration
}

// OpenAIOption configures an OpenAI enricher.
type OpenAIOption func(*OpenAI)

// WithChatAPI overrides the API client (for testing).
func WithChatAPI(api chatAPI) OpenAIOption {
	return func(o *OpenAI) { o.api = api }
}

// WithChatModel overrides the model.
func WithChatModel(model string) OpenAIOption {
	return func(o *OpenAI) { o.model = model }
}

// WithChatTimeout bounds one translation call.
func WithChatTimeout(d time.Duration) OpenAIOption {
	return func(o *OpenAI) { o.timeout = d }
}

// NewOpenAI creates the chat translator.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	o := &OpenAI{model: ChatModel, timeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(o)
	}
	if o.api == nil {
		o.api = openai.NewClient(apiKey)
	}
	return o
}

// Name identifies this provider in logs and artifacts.
func (o *OpenAI) Name() string { return "openai-chat" }

// Enrich translates the batch through one chat completion.
func (o *OpenAI) Enrich(ctx context.Context, segments []segment.Segment, targetLanguage string) ([]segment.Enrichment, error) {
	if len(segments) == 0 {
		return nil, nil
	}

	reply, err := o.complete(ctx, enrichmentPrompt(segments, targetLanguage))
	if err != nil {
		return nil, err
	}
	return ParseEnrichments(reply, len(segments))
}

// Condense asks for a shorter rendering of one translated line.
func (o *OpenAI) Condense(ctx context.Context, text, targetLanguage string, maxChars int) (string, error) {
	reply, err := o.complete(ctx, condensePrompt(text, targetLanguage, maxChars))
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(reply)
	if out == "" {
		return "", fmt.Errorf("openai: empty condense reply: %w", apierr.ErrMalformedOutput)
	}
	return out, nil
}

func (o *OpenAI) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", transcribe.ClassifyError(err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in reply: %w", apierr.ErrMalformedOutput)
	}
	return resp.Choices[0].Message.Content, nil
}
