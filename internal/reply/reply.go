// Package reply turns a persona prompt plus conversation history into the
// persona's next message. Generation failures never escape as errors to the
// transcript: the Orchestrator converts them into a neutral degraded notice.
package reply

import (
	"context"
	"errors"
	"fmt"

	"github.com/apresai/summit/internal/config"
)

// Role of a message in the generation request.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior turn, in provider-neutral vocabulary.
type Message struct {
	Role    Role
	Content string
}

// Generator is one text-generation backend.
type Generator interface {
	Name() string
	Generate(ctx context.Context, system string, msgs []Message) (string, error)
}

// StreamGenerator can deliver the reply incrementally. onChunk receives each
// text fragment in order; the return value is the full reply.
type StreamGenerator interface {
	Generator
	GenerateStream(ctx context.Context, system string, msgs []Message, onChunk func(string)) (string, error)
}

var (
	// ErrNotConfigured means the backend has no credentials. It is returned
	// before any network call is made.
	ErrNotConfigured = errors.New("text generation provider not configured")
	// ErrEmptyResponse means the provider answered without any text.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// GenerationError is a provider failure with the HTTP status when known.
type GenerationError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s generate (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s generate: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Options configures a backend.
type Options struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	AWSRegion   string
	// BaseURL overrides the provider endpoint. Tests point it at httptest.
	BaseURL string
}

// OptionsFromConfig picks the credentials matching cfg.ChatModel.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Provider:    cfg.ChatModel,
		Model:       cfg.ChatModelID,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		AWSRegion:   cfg.AWSRegion,
	}
	switch cfg.ChatModel {
	case config.ChatGemini:
		opts.APIKey = cfg.GeminiKey()
	case config.ChatClaude:
		opts.APIKey = cfg.AnthropicAPIKey
	case config.ChatOpenAI:
		opts.APIKey = cfg.OpenAIAPIKey
	}
	return opts
}

// New creates the backend named by opts.Provider.
func New(ctx context.Context, opts Options) (Generator, error) {
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	switch opts.Provider {
	case config.ChatGemini, "":
		return NewGemini(ctx, opts)
	case config.ChatClaude:
		return NewClaude(opts), nil
	case config.ChatNova:
		return NewNova(ctx, opts)
	case config.ChatOpenAI:
		return NewOpenAI(opts), nil
	default:
		return nil, fmt.Errorf("unknown chat model %q: choose gemini, claude, nova, or openai", opts.Provider)
	}
}

const (
	defaultTemperature = 0.8
	defaultMaxTokens   = 4096
)

func withUser(history []Message, user string) []Message {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	return append(msgs, Message{Role: RoleUser, Content: user})
}
