package enrich_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-dub/internal/apierr"
	"github.com/alnah/go-dub/internal/enrich"
	"github.com/alnah/go-dub/internal/segment"
)

func TestParseEnrichments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reply   string
		want    int
		wantErr bool
	}{
		{
			name: "plain json array",
			reply: `[{"translated_text": "hola", "speaker_id": "speaker_1", "gender": "male", "emotion": "cheerful"},
				{"translated_text": "adios", "speaker_id": "speaker_2", "gender": "female", "emotion": "sad"}]`,
			want: 2,
		},
		{
			name:  "fenced json",
			reply: "```json\n[{\"translated_text\": \"hola\"}, {\"translated_text\": \"adios\"}]\n```",
			want:  2,
		},
		{
			name:    "length mismatch",
			reply:   `[{"translated_text": "hola"}]`,
			want:    2,
			wantErr: true,
		},
		{
			name:    "missing translation",
			reply:   `[{"translated_text": "hola"}, {"speaker_id": "speaker_1"}]`,
			want:    2,
			wantErr: true,
		},
		{
			name:    "prose instead of json",
			reply:   "Here are your translations: hola, adios",
			want:    2,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := enrich.ParseEnrichments(tt.reply, tt.want)
			if tt.wantErr {
				if !errors.Is(err, apierr.ErrMalformedOutput) {
					t.Errorf("error = %v, want ErrMalformedOutput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d enrichments, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParseEnrichmentsNormalizesNeutral(t *testing.T) {
	t.Parallel()

	got, err := enrich.ParseEnrichments(`[{"translated_text": "hola", "emotion": "neutral"}]`, 1)
	if err != nil {
		t.Fatalf("ParseEnrichments() error = %v", err)
	}
	if got[0].Emotion != "" {
		t.Errorf("Emotion = %q, want empty for neutral", got[0].Emotion)
	}
}

type fakeChatAPI struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeChatAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.prompts = append(f.prompts, req.Messages[len(req.Messages)-1].Content)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: reply}},
		},
	}, nil
}

func TestOpenAIEnrichOrdersEnrichments(t *testing.T) {
	t.Parallel()

	api := &fakeChatAPI{replies: []string{
		`[{"translated_text": "hola mundo", "speaker_id": "speaker_1", "gender": "male", "emotion": "cheerful"},
		  {"translated_text": "hasta luego", "speaker_id": "speaker_2", "gender": "female", "emotion": "sad"}]`,
	}}
	e := enrich.NewOpenAI("key", enrich.WithChatAPI(api))

	segs := []segment.Segment{
		{Index: 0, Text: "hello world"},
		{Index: 1, Text: "see you later"},
	}
	got, err := e.Enrich(context.Background(), segs, "es")
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if len(got) != 2 || got[0].Translated != "hola mundo" || got[1].Translated != "hasta luego" {
		t.Errorf("Enrich() = %v", got)
	}
	if got[0].Speaker != "speaker_1" || got[0].Gender != "male" || got[0].Emotion != "cheerful" {
		t.Errorf("first enrichment = %+v", got[0])
	}

	prompt := api.prompts[0]
	if !strings.Contains(prompt, "Spanish") {
		t.Errorf("prompt missing language name: %q", prompt)
	}
	if !strings.Contains(prompt, "1. hello world") || !strings.Contains(prompt, "2. see you later") {
		t.Errorf("prompt missing numbered lines: %q", prompt)
	}
	if !strings.Contains(prompt, "speaker_id") || !strings.Contains(prompt, "emotion") {
		t.Errorf("prompt missing enrichment keys: %q", prompt)
	}
}

func TestOpenAIEnrichKeepsRecognizerSpeakerLabels(t *testing.T) {
	t.Parallel()

	api := &fakeChatAPI{replies: []string{`[{"translated_text": "hola"}]`}}
	e := enrich.NewOpenAI("key", enrich.WithChatAPI(api))

	segs := []segment.Segment{{Index: 0, Text: "hello", Speaker: "SPEAKER_00"}}
	if _, err := e.Enrich(context.Background(), segs, "es"); err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if !strings.Contains(api.prompts[0], "[SPEAKER_00]") {
		t.Errorf("prompt missing known speaker label: %q", api.prompts[0])
	}
}

func TestOpenAIEnrichEmptyBatch(t *testing.T) {
	t.Parallel()

	api := &fakeChatAPI{}
	e := enrich.NewOpenAI("key", enrich.WithChatAPI(api))

	got, err := e.Enrich(context.Background(), nil, "es")
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if got != nil {
		t.Errorf("Enrich(nil) = %v", got)
	}
	if len(api.prompts) != 0 {
		t.Error("API called for empty batch")
	}
}

func TestOpenAICondense(t *testing.T) {
	t.Parallel()

	api := &fakeChatAPI{replies: []string{"  corto  "}}
	e := enrich.NewOpenAI("key", enrich.WithChatAPI(api))

	got, err := e.Condense(context.Background(), "una frase muy muy larga", "es", 10)
	if err != nil {
		t.Fatalf("Condense() error = %v", err)
	}
	if got != "corto" {
		t.Errorf("Condense() = %q", got)
	}
	if !strings.Contains(api.prompts[0], "10 characters") {
		t.Errorf("prompt missing budget: %q", api.prompts[0])
	}
}

func TestOpenAIEnrichMalformedReply(t *testing.T) {
	t.Parallel()

	api := &fakeChatAPI{replies: []string{"I cannot translate that."}}
	e := enrich.NewOpenAI("key", enrich.WithChatAPI(api))

	_, err := e.Enrich(context.Background(), []segment.Segment{{Text: "hi"}}, "es")
	if !errors.Is(err, apierr.ErrMalformedOutput) {
		t.Errorf("Enrich() error = %v, want ErrMalformedOutput", err)
	}
}
