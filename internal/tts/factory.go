package tts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apresai/summit/internal/config"
)

// NewFreeSynthesizer builds the configured free-tier vendor.
func NewFreeSynthesizer(ctx context.Context, cfg *config.Config) (Synthesizer, error) {
	switch cfg.FreeTTS {
	case config.TTSGoogle:
		return NewGoogle(ctx)
	case config.TTSPolly:
		awsCfg, err := config.AWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return NewPolly(awsCfg), nil
	case config.TTSGemini:
		return NewGemini(cfg.GeminiKey()), nil
	case config.TTSVertex:
		return NewVertex(ctx, cfg.GCPProject, cfg.GCPRegion)
	default:
		return nil, fmt.Errorf("unknown free TTS provider %q", cfg.FreeTTS)
	}
}

// NewChainFromConfig wires cloned voice then free voice. A free provider that
// cannot be constructed is logged and left out; the chain then has only the
// cloned tier and may return nil for every request.
func NewChainFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Chain, *ElevenLabs, error) {
	cache, err := LoadVoiceCache(cfg.VoiceCache)
	if err != nil {
		return nil, nil, err
	}
	el := NewElevenLabs(cfg.ElevenLabsAPIKey)
	tiers := []Tier{NewClonedVoiceTier(el, cache, logger)}

	free, err := NewFreeSynthesizer(ctx, cfg)
	if err != nil {
		logger.Warn("free voice provider unavailable", "provider", cfg.FreeTTS, "error", err)
	} else {
		tiers = append(tiers, NewFreeVoiceTier(free, logger))
	}
	logger.Info("voice chain ready",
		"cloned", el.Available(),
		"free", cfg.FreeTTS,
		"cached_voices", cache.Len(),
	)
	return NewChain(logger, tiers...), el, nil
}
