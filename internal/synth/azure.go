package synth

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alnah/go-dub/internal/apierr"
	"github.com/alnah/go-dub/internal/lang"
)

// Azure output format: canonical PCM so downstream normalization is cheap.
const azureOutputFormat = "riff-44100hz-16bit-mono-pcm"

// azureVoices maps base language codes to Azure neural voices by gender.
var azureVoices = map[string]struct{ male, female string }{
	"ar": {male: "ar-EG-ShakirNeural", female: "ar-EG-SalmaNeural"},
	"de": {male: "de-DE-ConradNeural", female: "de-DE-KatjaNeural"},
	"en": {male: "en-US-GuyNeural", female: "en-US-JennyNeural"},
	"es": {male: "es-ES-AlvaroNeural", female: "es-ES-ElviraNeural"},
	"fr": {male: "fr-FR-HenriNeural", female: "fr-FR-DeniseNeural"},
	"hi": {male: "hi-IN-MadhurNeural", female: "hi-IN-SwaraNeural"},
	"id": {male: "id-ID-ArdiNeural", female: "id-ID-GadisNeural"},
	"it": {male: "it-IT-DiegoNeural", female: "it-IT-ElsaNeural"},
	"ja": {male: "ja-JP-KeitaNeural", female: "ja-JP-NanamiNeural"},
	"ko": {male: "ko-KR-InJoonNeural", female: "ko-KR-SunHiNeural"},
	"nl": {male: "nl-NL-MaartenNeural", female: "nl-NL-FennaNeural"},
	"pl": {male: "pl-PL-MarekNeural", female: "pl-PL-ZofiaNeural"},
	"pt": {male: "pt-BR-AntonioNeural", female: "pt-BR-FranciscaNeural"},
	"ru": {male: "ru-RU-DmitryNeural", female: "ru-RU-SvetlanaNeural"},
	"tr": {male: "tr-TR-AhmetNeural", female: "tr-TR-EmelNeural"},
	"zh": {male: "zh-CN-YunxiNeural", female: "zh-CN-XiaoxiaoNeural"},
}

// azureStyles maps enricher emotion tags to express-as styles the neural
// voices support. Unknown tags synthesize without a style.
var azureStyles = map[string]string{
	"cheerful":   "cheerful",
	"sad":        "sad",
	"angry":      "angry",
	"excited":    "excited",
	"calm":       "calm",
	"whispering": "whispering",
}

// femaleOpenAIVoices recognizes pool voice IDs that map to female Azure
// voices. The assigner hands out pool IDs; Azure resolves them per language.
var femaleOpenAIVoices = map[string]bool{
	"nova": true, "shimmer": true, "fable": true,
}

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Azure synthesizes speech through the Azure Cognitive Services TTS REST
// endpoint. One instance serves one target language.
type Azure struct {
	key      string
	region   string
	language string
	client   httpDoer
	timeout  time.Duration
}

// AzureOption configures an Azure synthesizer.
type AzureOption func(*Azure)

// WithAzureHTTPClient overrides the HTTP client (for testing).
func WithAzureHTTPClient(c httpDoer) AzureOption {
	return func(a *Azure) { a.client = c }
}

// WithAzureTimeout bounds one synthesis call.
func WithAzureTimeout(d time.Duration) AzureOption {
	return func(a *Azure) { a.timeout = d }
}

// NewAzure creates the Azure synthesizer for one target language.
func NewAzure(key, region, targetLanguage string, opts ...AzureOption) *Azure {
	a := &Azure{
		key:      key,
		region:   region,
		language: targetLanguage,
		client:   &http.Client{Timeout: 5 * time.Minute},
		timeout:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name identifies this provider in logs and artifacts.
func (a *Azure) Name() string { return "azure-tts" }

// Synthesize speaks text into outputPath. voice is a pool voice ID; only
// its gender carries over to the Azure voice for the target language. A
// recognized emotion becomes an express-as delivery style. Input that
// Azure rejects as malformed SSML retries once as sanitized plain text
// without the style, which is the usual rejection cause.
func (a *Azure) Synthesize(ctx context.Context, text, voice, emotion, outputPath string) error {
	azureVoice, err := a.resolveVoice(voice)
	if err != nil {
		return err
	}

	err = a.synthesize(ctx, text, azureVoice, azureStyles[emotion], outputPath)
	if err != nil && errors.Is(err, apierr.ErrBadRequest) {
		return a.synthesize(ctx, sanitize(text), azureVoice, "", outputPath)
	}
	return err
}

func (a *Azure) synthesize(ctx context.Context, text, azureVoice, style, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	url := fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", a.region)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(a.ssml(text, azureVoice, style)))
	if err != nil {
		return fmt.Errorf("azure-tts: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", azureOutputFormat)
	req.Header.Set("User-Agent", "go-dub")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("azure-tts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("azure-tts: status %d: %s: %w", resp.StatusCode, body, classifyStatus(resp.StatusCode))
	}

	out, err := os.Create(outputPath) // #nosec G304 -- path is under the job scratch dir
	if err != nil {
		return fmt.Errorf("creating speech file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("writing speech file: %w", err)
	}
	return out.Close()
}

func (a *Azure) resolveVoice(poolVoice string) (string, error) {
	voices, ok := azureVoices[lang.BaseCode(a.language)]
	if !ok {
		return "", fmt.Errorf("azure-tts: no voices for language %q: %w", a.language, apierr.ErrBadRequest)
	}
	if femaleOpenAIVoices[poolVoice] {
		return voices.female, nil
	}
	return voices.male, nil
}

func (a *Azure) ssml(text, azureVoice, style string) string {
	var escaped strings.Builder
	xml.EscapeText(&escaped, []byte(text)) //nolint:errcheck // strings.Builder never fails

	body := escaped.String()
	if style != "" {
		body = fmt.Sprintf(`<mstts:express-as style='%s'>%s</mstts:express-as>`, style, body)
	}
	return fmt.Sprintf(
		`<speak version='1.0' xmlns:mstts='https://www.w3.org/2001/mstts' xml:lang='%s'><voice name='%s'>%s</voice></speak>`,
		lang.BaseCode(a.language), azureVoice, body)
}

// sanitize strips markup-significant characters for the plain-text retry.
func sanitize(text string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '&', '\'', '"':
			return ' '
		}
		return r
	}, text)
}

func classifyStatus(code int) error {
	switch code {
	case http.StatusTooManyRequests:
		return apierr.ErrRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		return apierr.ErrAuthFailed
	case http.StatusRequestTimeout, http.StatusGatewayTimeout,
		http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return apierr.ErrTimeout
	default:
		return apierr.ErrBadRequest
	}
}
