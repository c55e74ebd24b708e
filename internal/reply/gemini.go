package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-2.5-flash"

// Gemini generates replies with the Gemini API via the genai SDK.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// NewGemini returns a Gemini backend. Without an API key the backend is
// still returned but every call fails with ErrNotConfigured.
func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	g := &Gemini{
		model:       opts.Model,
		temperature: float32(opts.Temperature),
		maxTokens:   int32(opts.MaxTokens),
	}
	if g.model == "" {
		g.model = geminiDefaultModel
	}
	if opts.APIKey == "" {
		return g, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) config(system string) *genai.GenerateContentConfig {
	temp := g.temperature
	return &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: g.maxTokens,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
	}
}

// geminiContents maps assistant turns to the "model" role.
func geminiContents(msgs []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return contents
}

func (g *Gemini) Generate(ctx context.Context, system string, msgs []Message) (string, error) {
	if g.client == nil {
		return "", ErrNotConfigured
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, geminiContents(msgs), g.config(system))
	if err != nil {
		return "", &GenerationError{Provider: g.Name(), StatusCode: geminiStatus(err), Err: err}
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &GenerationError{Provider: g.Name(), Err: ErrEmptyResponse}
	}
	return text, nil
}

func (g *Gemini) GenerateStream(ctx context.Context, system string, msgs []Message, onChunk func(string)) (string, error) {
	if g.client == nil {
		return "", ErrNotConfigured
	}
	var b strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, geminiContents(msgs), g.config(system)) {
		if err != nil {
			return "", &GenerationError{Provider: g.Name(), StatusCode: geminiStatus(err), Err: err}
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		b.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &GenerationError{Provider: g.Name(), Err: ErrEmptyResponse}
	}
	return text, nil
}

// geminiStatus reads the HTTP code off genai's APIError, which carries it in
// a field rather than a method.
func geminiStatus(err error) int {
	var ae genai.APIError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return statusOf(err)
}

var _ StreamGenerator = (*Gemini)(nil)
