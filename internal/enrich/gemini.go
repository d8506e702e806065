// Package enrich translates batched segments into the target language and
// condenses translations that cannot fit their on-screen time.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/alnah/go-dub/internal/apierr"
	"github.com/alnah/go-dub/internal/lang"
	"github.com/alnah/go-dub/internal/segment"
)

// GeminiModel is the default translation model.
const GeminiModel = "gemini-2.0-flash"

// geminiAPI is the slice of the genai client the enricher calls.
type geminiAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini translates segments with the Gemini API. One request carries the
// whole batch so the model sees dialogue context, not isolated lines.
type Gemini struct {
	api     geminiAPI
	model   string
	timeout time.Duration
}

// GeminiOption configures a Gemini enricher.
type GeminiOption func(*Gemini)

// WithGeminiAPI overrides the API client (for testing).
func WithGeminiAPI(api geminiAPI) GeminiOption {
	return func(g *Gemini) { g.api = api }
}

// WithGeminiModel overrides the model.
func WithGeminiModel(model string) GeminiOption {
	return func(g *Gemini) { g.model = model }
}

// WithGeminiTimeout bounds one translation call.
func WithGeminiTimeout(d time.Duration) GeminiOption {
	return func(g *Gemini) { g.timeout = d }
}

// NewGemini connects to the Gemini API.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*Gemini, error) {
	g := &Gemini{model: GeminiModel, timeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(g)
	}
	if g.api == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("genai client: %w", err)
		}
		g.api = client.Models
	}
	return g, nil
}

// Name identifies this provider in logs and artifacts.
func (g *Gemini) Name() string { return "gemini" }

// Enrich translates the batch, returning one enrichment per segment in
// input order. The model answers with a JSON array of objects; anything
// else is ErrMalformedOutput so the caller can fall back.
func (g *Gemini) Enrich(ctx context.Context, segments []segment.Segment, targetLanguage string) ([]segment.Enrichment, error) {
	if len(segments) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.api.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromText(enrichmentPrompt(segments, targetLanguage), genai.RoleUser),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	return ParseEnrichments(resp.Text(), len(segments))
}

// Condense asks for a shorter rendering of one translated line.
func (g *Gemini) Condense(ctx context.Context, text, targetLanguage string, maxChars int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.api.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromText(condensePrompt(text, targetLanguage, maxChars), genai.RoleUser),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", fmt.Errorf("gemini: empty condense reply: %w", apierr.ErrMalformedOutput)
	}
	return out, nil
}

func enrichmentPrompt(segments []segment.Segment, targetLanguage string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are dubbing a video into %s. "+
		"Translate each numbered line naturally, keeping roughly the same spoken length. "+
		"From the dialogue context also identify who is speaking, their likely gender, "+
		"and the emotional delivery of the line.\n"+
		"Reply with ONLY a JSON array of objects, one per line, same order, no commentary. "+
		"Each object has exactly these keys:\n"+
		`  "translated_text": the translation`+"\n"+
		`  "speaker_id": a stable label like "speaker_1", same label for the same voice`+"\n"+
		`  "gender": "male" or "female", or "" when unclear`+"\n"+
		`  "emotion": one of "neutral", "cheerful", "sad", "angry", "excited", "calm", "whispering"`+"\n\n",
		lang.DisplayName(targetLanguage))
	for i, s := range segments {
		if s.Speaker != "" {
			fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, s.Speaker, s.Text)
			continue
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s.Text)
	}
	return sb.String()
}

func condensePrompt(text, targetLanguage string, maxChars int) string {
	return fmt.Sprintf("Shorten this %s dubbing line to at most %d characters while keeping its meaning. "+
		"Reply with only the shortened line.\n\n%s",
		lang.DisplayName(targetLanguage), maxChars, text)
}

// ParseEnrichments extracts the JSON object array from a model reply,
// tolerating markdown fences. The array length must match the batch and
// every object must carry a translation.
func ParseEnrichments(reply string, want int) ([]segment.Enrichment, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var out []segment.Enrichment
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("parsing enrichment reply: %v: %w", err, apierr.ErrMalformedOutput)
	}
	if len(out) != want {
		return nil, fmt.Errorf("got %d enrichments for %d segments: %w", len(out), want, apierr.ErrMalformedOutput)
	}
	for i := range out {
		if strings.TrimSpace(out[i].Translated) == "" {
			return nil, fmt.Errorf("enrichment %d has no translation: %w", i, apierr.ErrMalformedOutput)
		}
		if out[i].Emotion == "neutral" {
			out[i].Emotion = ""
		}
	}
	return out, nil
}
