package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/summit/internal/audio"
	"github.com/apresai/summit/internal/observability"
	"github.com/apresai/summit/internal/persona"
)

// Speech is audio ready to hand to a player.
type Speech struct {
	Data []byte
	MIME string
	Tier string
}

// Chain tries tiers in order and returns the first non-empty audio.
type Chain struct {
	tiers  []Tier
	logger *slog.Logger
}

func NewChain(logger *slog.Logger, tiers ...Tier) *Chain {
	return &Chain{tiers: tiers, logger: logger}
}

// Tiers returns the tier names in order.
func (c *Chain) Tiers() []string {
	names := make([]string, len(c.tiers))
	for i, t := range c.tiers {
		names[i] = t.Name()
	}
	return names
}

// SynthesizeFor returns speech for text in the persona's voice, or nil when
// every tier produced nothing. It never returns an error: each tier failure
// is logged and the next tier is tried.
func (c *Chain) SynthesizeFor(ctx context.Context, p *persona.Persona, text string) *Speech {
	if p == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	ctx, span := observability.Tracer().Start(ctx, "tts.SynthesizeFor")
	defer span.End()
	span.SetAttributes(
		attribute.String("persona.id", p.ID),
		attribute.Int("text.chars", len(text)),
	)

	for _, tier := range c.tiers {
		if ctx.Err() != nil {
			c.logger.Warn("voice synthesis abandoned", "persona", p.ID, "error", ctx.Err())
			break
		}
		start := time.Now()
		clip, err := c.attempt(ctx, tier, p, text)
		elapsed := time.Since(start).Round(time.Millisecond)
		if err == nil && len(clip.Data) == 0 {
			err = fmt.Errorf("tier returned no audio")
		}
		if err != nil {
			c.logFailure(tier, p, err, elapsed)
			continue
		}

		data, mime := audio.Normalize(ctx, clip)
		c.logger.Info("speech synthesized",
			"persona", p.ID,
			"tier", tier.Name(),
			"bytes", len(data),
			"mime", mime,
			"elapsed", elapsed,
		)
		span.SetAttributes(attribute.String("tts.tier", tier.Name()))
		return &Speech{Data: data, MIME: mime, Tier: tier.Name()}
	}

	span.SetStatus(codes.Error, "no tier produced audio")
	return nil
}

// attempt shields the chain from a panicking vendor client.
func (c *Chain) attempt(ctx context.Context, tier Tier, p *persona.Persona, text string) (clip audio.Clip, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tier %s panicked: %v", tier.Name(), r)
		}
	}()
	return tier.Attempt(ctx, p, text)
}

func (c *Chain) logFailure(tier Tier, p *persona.Persona, err error, elapsed time.Duration) {
	attrs := []any{"persona", p.ID, "tier", tier.Name(), "elapsed", elapsed, "error", err}
	switch {
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrNoVoice):
		c.logger.Debug("voice tier skipped", attrs...)
		return
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		attrs = append(attrs, "status", pe.StatusCode, "transient", pe.Transient())
	}
	c.logger.Warn("voice tier failed", attrs...)
}
