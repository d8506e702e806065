// Package lang validates and normalizes dubbing target languages.
package lang

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid indicates an invalid language code was specified.
var ErrInvalid = errors.New("invalid language code")

// validLanguages contains the ISO 639-1 codes the synthesis voice pools
// cover. Not exhaustive; codes can be added together with their voices.
var validLanguages = map[string]bool{
	"ar": true, // Arabic
	"de": true, // German
	"en": true, // English
	"es": true, // Spanish
	"fr": true, // French
	"hi": true, // Hindi
	"id": true, // Indonesian
	"it": true, // Italian
	"ja": true, // Japanese
	"ko": true, // Korean
	"nl": true, // Dutch
	"pl": true, // Polish
	"pt": true, // Portuguese
	"ru": true, // Russian
	"tr": true, // Turkish
	"zh": true, // Chinese
}

// Normalize normalizes a language code to lowercase with hyphen separator.
// Accepts: "pt-BR", "pt_BR", "PT-BR", "pt-br" -> "pt-br"
func Normalize(code string) string {
	return strings.ToLower(strings.ReplaceAll(code, "_", "-"))
}

// Validate checks if the language code names a dubbable target language.
// Accepts ISO 639-1 codes (e.g., "ar", "fr") and locales (e.g., "ar-EG").
// Returns ErrInvalid if the base language has no voice pool.
func Validate(code string) error {
	if code == "" {
		return fmt.Errorf("target language is required: %w", ErrInvalid)
	}

	if !validLanguages[BaseCode(code)] {
		return fmt.Errorf("unsupported target language %q (use ISO 639-1 codes like 'ar', 'fr', 'pt-BR'): %w",
			code, ErrInvalid)
	}

	return nil
}

// BaseCode extracts the ISO 639-1 base language code from a locale.
// Examples: "pt-BR" -> "pt", "ar-EG" -> "ar", "en" -> "en"
func BaseCode(code string) string {
	normalized := Normalize(code)
	if idx := strings.Index(normalized, "-"); idx != -1 {
		return normalized[:idx]
	}
	return normalized
}

// DisplayName returns a human-readable name for common locales, used in
// translation prompts. Falls back to the code itself for unknown locales.
func DisplayName(code string) string {
	displayNames := map[string]string{
		"ar":    "Arabic",
		"ar-eg": "Egyptian Arabic",
		"ar-sa": "Saudi Arabic",
		"de":    "German",
		"en":    "English",
		"es":    "Spanish",
		"fr":    "French",
		"hi":    "Hindi",
		"id":    "Indonesian",
		"it":    "Italian",
		"ja":    "Japanese",
		"ko":    "Korean",
		"nl":    "Dutch",
		"pl":    "Polish",
		"pt":    "Portuguese",
		"pt-br": "Brazilian Portuguese",
		"ru":    "Russian",
		"tr":    "Turkish",
		"zh":    "Chinese",
	}

	normalized := Normalize(code)
	if name, ok := displayNames[normalized]; ok {
		return name
	}
	if name, ok := displayNames[BaseCode(code)]; ok {
		return name
	}
	return code
}
