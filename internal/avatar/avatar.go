// Package avatar turns a visitor photo into a stylised portrait: an image
// model first, then a local filter that always succeeds on a decodable image.
package avatar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/apresai/summit/internal/observability"
)

// Method records which path produced an avatar.
type Method string

const (
	MethodModel    Method = "gemini"
	MethodStylised Method = "stylised"
)

// ImageModel edits a photo according to a prompt.
type ImageModel interface {
	EditImage(ctx context.Context, prompt string, photo []byte, mimeType string) ([]byte, error)
}

// Generator produces avatars. A nil model means only the local filter runs.
type Generator struct {
	model   ImageModel
	timeout time.Duration
	logger  *slog.Logger
}

func NewGenerator(model ImageModel, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Generator{model: model, timeout: 60 * time.Second, logger: logger}
}

// Generate returns PNG or model-native image bytes and how they were made.
// It only fails when photo is not a decodable image.
func (g *Generator) Generate(ctx context.Context, photo []byte) ([]byte, Method, error) {
	ctx, span := observability.Tracer().Start(ctx, "avatar.Generate")
	defer span.End()

	if g.model != nil {
		mctx, cancel := context.WithTimeout(ctx, g.timeout)
		img, err := g.model.EditImage(mctx, Prompt, photo, http.DetectContentType(photo))
		cancel()
		switch {
		case err != nil:
			g.logger.Warn("avatar model failed, using local filter", "error", err)
		case len(img) == 0:
			g.logger.Warn("avatar model returned no image, using local filter")
		default:
			span.SetAttributes(attribute.String("avatar.method", string(MethodModel)))
			g.logger.Info("avatar generated", "method", MethodModel, "bytes", len(img))
			return img, MethodModel, nil
		}
	}

	out, err := Stylize(photo)
	if err != nil {
		return nil, "", fmt.Errorf("stylize photo: %w", err)
	}
	span.SetAttributes(attribute.String("avatar.method", string(MethodStylised)))
	g.logger.Info("avatar generated", "method", MethodStylised, "bytes", len(out))
	return out, MethodStylised, nil
}

// Prompt asks the model for an identity-preserving stylised portrait.
const Prompt = `Transform the provided input photo into a high-quality stylized digital avatar while preserving the person's core facial identity.

Identity Preservation Rules:
- Maintain accurate facial structure, eye spacing, nose shape, and mouth shape
- Keep hairstyle and hairline recognizable
- Preserve skin tone naturally (do NOT lighten or darken unnaturally)
- Do NOT change gender, age group, or ethnicity
- Remove temporary blemishes only, but keep natural skin texture

Style Requirements:
- Style: modern premium 3D semi-realistic avatar
- Vibe: friendly, confident, professional
- Lighting: soft cinematic studio lighting
- Background: clean gradient or subtle tech background
- Expression: slight natural smile, approachable
- Framing: centered head and shoulders portrait

Strict Safety Rules:
- no exaggeration or caricature
- no race or skin tone alteration
- no distorted anatomy
- no text, watermark, or logo

Output a single polished avatar image suitable for an interactive AI booth.`
