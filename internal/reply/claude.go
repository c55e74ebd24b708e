package reply

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const claudeDefaultModel = "claude-haiku-4-5-20251001"

// Claude generates replies with the Anthropic Messages API.
type Claude struct {
	client      *anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewClaude returns a Claude backend. SDK retries are disabled: a failed
// reply degrades immediately.
func NewClaude(opts Options) *Claude {
	c := &Claude{
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   int64(opts.MaxTokens),
	}
	if c.model == "" {
		c.model = claudeDefaultModel
	}
	if opts.APIKey == "" {
		return c
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(reqOpts...)
	c.client = &client
	return c
}

func (c *Claude) Name() string { return "claude" }

func (c *Claude) Generate(ctx context.Context, system string, msgs []Message) (string, error) {
	if c.client == nil {
		return "", ErrNotConfigured
	}

	params := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params = append(params, anthropic.NewAssistantMessage(block))
		} else {
			params = append(params, anthropic.NewUserMessage(block))
		}
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: params,
	})
	if err != nil {
		status := statusOf(err)
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return "", &GenerationError{Provider: c.Name(), StatusCode: status, Err: err}
	}

	var parts []string
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", &GenerationError{Provider: c.Name(), Err: ErrEmptyResponse}
	}
	return text, nil
}

var _ Generator = (*Claude)(nil)
