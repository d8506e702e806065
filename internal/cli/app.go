package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/alnah/go-dub/internal/adapter"
	"github.com/alnah/go-dub/internal/apierr"
	"github.com/alnah/go-dub/internal/assemble"
	"github.com/alnah/go-dub/internal/config"
	"github.com/alnah/go-dub/internal/enrich"
	"github.com/alnah/go-dub/internal/ffmpeg"
	"github.com/alnah/go-dub/internal/job"
	"github.com/alnah/go-dub/internal/logging"
	"github.com/alnah/go-dub/internal/media"
	"github.com/alnah/go-dub/internal/mux"
	"github.com/alnah/go-dub/internal/objstore"
	"github.com/alnah/go-dub/internal/pipeline"
	"github.com/alnah/go-dub/internal/syncer"
	"github.com/alnah/go-dub/internal/synth"
	"github.com/alnah/go-dub/internal/transcribe"
	"github.com/alnah/go-dub/internal/voice"
)

// defaultRetry bounds provider retries; the fallback chain handles what
// retries cannot.
var defaultRetry = apierr.RetryConfig{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   30 * time.Second,
}

// App holds the wired service components shared by every job. The speech
// synthesizer chain is built per job because its voices depend on the
// job's target language.
type App struct {
	Config config.Config
	Log    *logging.Logger
	Store  job.Store
	Hub    *job.Hub

	// FilesDir is the local artifact directory served at /files, empty
	// when results go to object storage.
	FilesDir string

	publisher    objstore.Store
	splitter     *media.Splitter
	ops          *media.Ops
	prober       *media.FFProber
	transcribers *adapter.Chain[adapter.Transcriber]
	enrichers    *adapter.Chain[adapter.Enricher]
	condensers   *adapter.Chain[adapter.Condenser]
	muxer        *mux.Muxer
	assembler    *assemble.Assembler
}

// NewApp wires the service from configuration. It resolves ffmpeg
// (downloading it if necessary), opens the job store, and validates that
// at least one provider is configured for every pipeline stage.
func NewApp(ctx context.Context, cfg config.Config, log *logging.Logger) (*App, error) {
	resolver := ffmpeg.NewResolver()
	ffmpegPath, err := resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	ffprobePath := resolver.ResolveProbe(ffmpegPath)

	transcribers, err := newTranscriberChain(cfg, log)
	if err != nil {
		return nil, err
	}
	enrichers, condensers, err := newEnricherChains(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.OpenAIAPIKey == "" && (cfg.AzureSpeechKey == "" || cfg.AzureRegion == "") {
		return nil, ErrNoSynthesizer
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	publisher, filesDir, err := openPublisher(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	prober := media.NewFFProber(ffprobePath, ffmpegPath)
	ops := media.NewOps(ffmpegPath, media.WithOpsTimeout(cfg.SubprocessTimeout))
	splitter := media.NewSplitter(ffmpegPath, prober, media.WithSplitterTimeout(cfg.SubprocessTimeout))

	return &App{
		Config:       cfg,
		Log:          log,
		Store:        store,
		Hub:          job.NewHub(),
		FilesDir:     filesDir,
		publisher:    publisher,
		splitter:     splitter,
		ops:          ops,
		prober:       prober,
		transcribers: transcribers,
		enrichers:    enrichers,
		condensers:   condensers,
		muxer:        mux.New(ops, prober, log),
		assembler:    assemble.New(ops, log),
	}, nil
}

// Close releases the job store.
func (a *App) Close() error {
	return a.Store.Close()
}

// Run executes one job to a terminal state. It implements httpapi.Runner.
func (a *App) Run(ctx context.Context, j *job.Job) error {
	synths := a.synthesizers(j.TargetLanguage)
	synthChain := adapter.NewChain(a.Log, defaultRetry, synths...)

	engineCfg := syncer.DefaultConfig()
	engineCfg.StretchCap = a.Config.StretchCap
	engineCfg.CharsPerSecond = a.Config.CharsPerSecond
	engineCfg.IntroGuard = time.Duration(a.Config.IntroGuardSeconds * float64(time.Second))

	engine := syncer.New(a.ops, synthChain, a.condensers, voice.NewAssigner(nil), a.Log, engineCfg)

	p := pipeline.New(
		pipeline.Options{
			Window:      time.Duration(a.Config.WindowSeconds) * time.Second,
			MaxParallel: a.Config.MaxParallelChunks,
		},
		a.Log, a.Store, a.Hub,
		a.splitter, a.ops, a.transcribers, a.enrichers,
		engine, a.muxer, a.assembler, a.publisher,
	)
	return p.Run(ctx, j)
}

// synthesizers builds the per-language speech providers in fallback order.
func (a *App) synthesizers(targetLanguage string) []adapter.Synthesizer {
	var synths []adapter.Synthesizer
	if a.Config.OpenAIAPIKey != "" {
		synths = append(synths, synth.NewOpenAI(a.Config.OpenAIAPIKey,
			synth.WithSpeechTimeout(a.Config.AdapterTimeout)))
	}
	if a.Config.AzureSpeechKey != "" && a.Config.AzureRegion != "" {
		synths = append(synths, synth.NewAzure(a.Config.AzureSpeechKey, a.Config.AzureRegion,
			targetLanguage, synth.WithAzureTimeout(a.Config.AdapterTimeout)))
	}
	return synths
}

// newTranscriberChain prefers Groq's hosted whisper-large-v3 and falls
// back to OpenAI's whisper-1.
func newTranscriberChain(cfg config.Config, log *logging.Logger) (*adapter.Chain[adapter.Transcriber], error) {
	var providers []adapter.Transcriber
	if cfg.GroqAPIKey != "" {
		providers = append(providers, transcribe.NewGroq(cfg.GroqAPIKey,
			transcribe.WithTimeout(cfg.AdapterTimeout)))
	}
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, transcribe.NewOpenAI(cfg.OpenAIAPIKey,
			transcribe.WithTimeout(cfg.AdapterTimeout)))
	}
	if len(providers) == 0 {
		return nil, ErrNoTranscriber
	}
	return adapter.NewChain(log, defaultRetry, providers...), nil
}

// newEnricherChains prefers Gemini for translation and condensing, with
// OpenAI chat as fallback. Both stages share the same provider order.
func newEnricherChains(ctx context.Context, cfg config.Config, log *logging.Logger) (*adapter.Chain[adapter.Enricher], *adapter.Chain[adapter.Condenser], error) {
	var enrichers []adapter.Enricher
	var condensers []adapter.Condenser
	if cfg.GeminiAPIKey != "" {
		gemini, err := enrich.NewGemini(ctx, cfg.GeminiAPIKey,
			enrich.WithGeminiTimeout(cfg.AdapterTimeout))
		if err != nil {
			return nil, nil, fmt.Errorf("gemini setup: %w", err)
		}
		enrichers = append(enrichers, gemini)
		condensers = append(condensers, gemini)
	}
	if cfg.OpenAIAPIKey != "" {
		chat := enrich.NewOpenAI(cfg.OpenAIAPIKey, enrich.WithChatTimeout(cfg.AdapterTimeout))
		enrichers = append(enrichers, chat)
		condensers = append(condensers, chat)
	}
	if len(enrichers) == 0 {
		return nil, nil, ErrNoEnricher
	}
	return adapter.NewChain(log, defaultRetry, enrichers...),
		adapter.NewChain(log, defaultRetry, condensers...), nil
}

func openStore(cfg config.Config) (job.Store, error) {
	if cfg.SQLitePath != "" {
		return job.OpenSQLite(cfg.SQLitePath)
	}
	return job.NewMemoryStore(), nil
}

// openPublisher picks S3-compatible storage when a bucket is configured,
// otherwise local disk served by the HTTP API.
func openPublisher(ctx context.Context, cfg config.Config) (objstore.Store, string, error) {
	if cfg.S3Bucket != "" {
		s3, err := objstore.NewS3(ctx, objstore.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, "", fmt.Errorf("s3 setup: %w", err)
		}
		return s3, "", nil
	}

	local, err := objstore.NewLocal(cfg.OutputDir, "/files")
	if err != nil {
		return nil, "", fmt.Errorf("output dir setup: %w", err)
	}
	return local, local.Dir(), nil
}
