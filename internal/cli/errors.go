package cli

import "errors"

// Setup errors: the environment is missing something the pipeline needs.
var (
	// ErrNoTranscriber indicates no speech-to-text provider is configured.
	ErrNoTranscriber = errors.New("no transcription provider configured (set GROQ_API_KEY or OPENAI_API_KEY)")

	// ErrNoEnricher indicates no translation provider is configured.
	ErrNoEnricher = errors.New("no translation provider configured (set GEMINI_API_KEY or OPENAI_API_KEY)")

	// ErrNoSynthesizer indicates no speech synthesis provider is configured.
	ErrNoSynthesizer = errors.New("no speech provider configured (set OPENAI_API_KEY or AZURE_SPEECH_KEY)")
)

// Validation errors: the user's input cannot be processed.
var (
	// ErrFileNotFound indicates the input video does not exist.
	ErrFileNotFound = errors.New("input file not found")

	// ErrUnsupportedFormat indicates the input container is not accepted.
	ErrUnsupportedFormat = errors.New("unsupported input format")
)
