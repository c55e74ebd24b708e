package avatar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const imageModel = "gemini-2.5-flash-image"

// Gemini edits photos with the Gemini image model.
type Gemini struct {
	client *genai.Client
}

// NewGemini returns nil when apiKey is empty.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) EditImage(ctx context.Context, prompt string, photo []byte, mimeType string) ([]byte, error) {
	if g == nil {
		return nil, errors.New("image model not configured")
	}
	resp, err := g.client.Models.GenerateContent(ctx, imageModel, []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{Data: photo, MIMEType: mimeType}},
		},
	}}, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("generate avatar: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("image model returned no candidates")
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "image/") && len(p.InlineData.Data) > 0 {
			return p.InlineData.Data, nil
		}
	}
	return nil, errors.New("image model response had no image parts")
}

var _ ImageModel = (*Gemini)(nil)
