package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/apresai/summit/internal/audio"
	"github.com/apresai/summit/internal/persona"
)

// Tier is one step of the fallback chain.
type Tier interface {
	Name() string
	Attempt(ctx context.Context, p *persona.Persona, text string) (audio.Clip, error)
}

// Cloner creates a cloned voice from a sample file.
type Cloner interface {
	CloneVoice(ctx context.Context, name, description, samplePath string) (string, error)
}

// ClonedVoiceTier speaks with the persona's own cloned voice. The voice id
// comes from the persona file, then the cache, then a fresh clone of the
// persona's voice sample.
type ClonedVoiceTier struct {
	synth  Synthesizer
	cloner Cloner
	cache  *VoiceCache
	logger *slog.Logger
}

// NewClonedVoiceTier wires a synthesizer that can also clone. cache may be nil.
func NewClonedVoiceTier(el *ElevenLabs, cache *VoiceCache, logger *slog.Logger) *ClonedVoiceTier {
	return newClonedVoiceTier(el, el, cache, logger)
}

func newClonedVoiceTier(synth Synthesizer, cloner Cloner, cache *VoiceCache, logger *slog.Logger) *ClonedVoiceTier {
	if cache == nil {
		cache = &VoiceCache{ids: map[string]string{}}
	}
	return &ClonedVoiceTier{synth: synth, cloner: cloner, cache: cache, logger: logger}
}

func (t *ClonedVoiceTier) Name() string { return "cloned" }

func (t *ClonedVoiceTier) Attempt(ctx context.Context, p *persona.Persona, text string) (audio.Clip, error) {
	if !t.synth.Available() {
		return audio.Clip{}, ErrUnavailable
	}
	voiceID, err := t.resolveVoice(ctx, p)
	if err != nil {
		return audio.Clip{}, err
	}
	return t.synth.Synthesize(ctx, Truncate(text, t.synth.MaxChars()), voiceID)
}

func (t *ClonedVoiceTier) resolveVoice(ctx context.Context, p *persona.Persona) (string, error) {
	if p.ElevenVoiceID != "" {
		return p.ElevenVoiceID, nil
	}
	if id, ok := t.cache.Get(p.ID); ok {
		return id, nil
	}
	if p.VoiceSample == "" || t.cloner == nil {
		return "", ErrNoVoice
	}

	id, err := t.cloner.CloneVoice(ctx, p.Name,
		fmt.Sprintf("Cloned voice of %s, %s", p.Name, p.Role), p.VoiceSample)
	if err != nil {
		return "", fmt.Errorf("clone voice for %s: %w", p.ID, err)
	}
	if err := t.cache.Put(p.ID, id); err != nil {
		t.logger.Warn("voice cache write failed", "persona", p.ID, "error", err)
	}
	t.logger.Info("voice cloned", "persona", p.ID, "voice_id", id)
	return id, nil
}

// FreeVoiceTier speaks with a stock neural voice: the persona's declared
// voice, then the provider's fallback voices in order.
type FreeVoiceTier struct {
	synth  Synthesizer
	logger *slog.Logger
}

func NewFreeVoiceTier(synth Synthesizer, logger *slog.Logger) *FreeVoiceTier {
	return &FreeVoiceTier{synth: synth, logger: logger}
}

func (t *FreeVoiceTier) Name() string { return "free:" + t.synth.Name() }

func (t *FreeVoiceTier) Attempt(ctx context.Context, p *persona.Persona, text string) (audio.Clip, error) {
	if !t.synth.Available() {
		return audio.Clip{}, ErrUnavailable
	}
	if strings.TrimSpace(p.VoiceID) == "" {
		return audio.Clip{}, ErrNoVoice
	}

	text = Truncate(text, t.synth.MaxChars())
	var lastErr error
	for _, voice := range t.voices(p.VoiceID) {
		if ctx.Err() != nil {
			return audio.Clip{}, ctx.Err()
		}
		clip, err := t.synth.Synthesize(ctx, text, voice)
		if err == nil && len(clip.Data) > 0 {
			return clip, nil
		}
		if err == nil {
			err = fmt.Errorf("%s returned no audio for voice %s", t.synth.Name(), voice)
		}
		t.logger.Debug("free voice failed", "provider", t.synth.Name(), "voice", voice, "error", err)
		lastErr = err
	}
	return audio.Clip{}, lastErr
}

// voices is the declared voice followed by unique fallbacks.
func (t *FreeVoiceTier) voices(declared string) []string {
	out := []string{declared}
	for _, v := range t.synth.FallbackVoices() {
		if v != declared {
			out = append(out, v)
		}
	}
	return out
}

var (
	_ Tier = (*ClonedVoiceTier)(nil)
	_ Tier = (*FreeVoiceTier)(nil)
)
