package reply

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const openAIDefaultModel = openai.GPT4oMini

// OpenAI generates replies with the Chat Completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAI(opts Options) *OpenAI {
	g := &OpenAI{
		model:       opts.Model,
		temperature: float32(opts.Temperature),
		maxTokens:   opts.MaxTokens,
	}
	if g.model == "" {
		g.model = openAIDefaultModel
	}
	if opts.APIKey == "" {
		return g
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	g.client = openai.NewClientWithConfig(cfg)
	return g
}

func (g *OpenAI) Name() string { return "openai" }

func (g *OpenAI) Generate(ctx context.Context, system string, msgs []Message) (string, error) {
	if g.client == nil {
		return "", ErrNotConfigured
	}

	chat := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	chat = append(chat, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		chat = append(chat, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    chat,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		status := statusOf(err)
		var apiErr *openai.APIError
		var reqErr *openai.RequestError
		switch {
		case errors.As(err, &apiErr):
			status = apiErr.HTTPStatusCode
		case errors.As(err, &reqErr):
			status = reqErr.HTTPStatusCode
		}
		return "", &GenerationError{Provider: g.Name(), StatusCode: status, Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &GenerationError{Provider: g.Name(), Err: ErrEmptyResponse}
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &GenerationError{Provider: g.Name(), Err: ErrEmptyResponse}
	}
	return text, nil
}

var _ Generator = (*OpenAI)(nil)
