// Package tts produces speech for persona replies. Vendor synthesizers sit
// behind one interface and are tried in order by a Chain of tiers: a cloned
// voice first, then a free neural voice. Every failure is logged and turned
// into "this tier produced nothing".
package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/apresai/summit/internal/audio"
)

// Voice holds a provider-specific voice identifier.
type Voice struct {
	ID   string // Provider-specific voice identifier
	Name string // Human-readable label
}

// Synthesizer is one speech vendor.
type Synthesizer interface {
	Name() string
	// Available reports whether credentials are present. It never makes a
	// network call.
	Available() bool
	// MaxChars is the longest text the vendor accepts; longer text is cut.
	MaxChars() int
	// FallbackVoices are known-good voices to try after the declared one.
	FallbackVoices() []string
	Synthesize(ctx context.Context, text string, voiceID string) (audio.Clip, error)
}

var (
	// ErrUnavailable means the tier or vendor is not configured.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrNoVoice means the persona declares nothing this tier can use.
	ErrNoVoice = errors.New("no usable voice for persona")
)

// ProviderError is a failed vendor call.
type ProviderError struct {
	Provider   string
	StatusCode int // 0 for network failures
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports a rate limit, server error, or network failure. The chain
// treats these like any other failure; the flag only feeds logging.
func (e *ProviderError) Transient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// Truncate cuts text to at most max characters on a rune boundary,
// preferring the last sentence or word break in the final fifth.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:max])
	floor := len(cut) * 4 / 5
	if i := strings.LastIndexAny(cut, ".!?"); i >= floor {
		return cut[:i+1]
	}
	if i := strings.LastIndexByte(cut, ' '); i >= floor {
		return cut[:i]
	}
	return cut
}

// VoiceInfo describes an available voice for the voices command.
type VoiceInfo struct {
	ID          string
	Name        string
	Gender      string // "male" or "female"
	Description string
	Fallback    bool // part of the provider's fallback list
}

// Providers is the display order for the voices command.
var Providers = []string{"elevenlabs", "google", "polly", "gemini", "vertex"}

// AvailableVoices returns the voice catalog for the named provider.
func AvailableVoices(providerName string) ([]VoiceInfo, error) {
	var voices []VoiceInfo
	var fallbacks []string
	switch providerName {
	case "elevenlabs":
		voices = elevenLabsAvailableVoices()
	case "google":
		voices, fallbacks = googleAvailableVoices(), googleFallbackVoices
	case "polly":
		voices, fallbacks = pollyAvailableVoices(), pollyFallbackVoices
	case "gemini", "vertex":
		voices, fallbacks = geminiAvailableVoices(), geminiFallbackVoices
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", providerName)
	}
	for i := range voices {
		for _, f := range fallbacks {
			if voices[i].ID == f {
				voices[i].Fallback = true
			}
		}
	}
	return voices, nil
}
