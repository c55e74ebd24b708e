// Package config declares every runtime setting once, with defaults, and
// loads it from the environment (and an optional .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Chat model backends.
const (
	ChatGemini = "gemini"
	ChatClaude = "claude"
	ChatNova   = "nova"
	ChatOpenAI = "openai"
)

// Free-tier TTS backends.
const (
	TTSGoogle = "google"
	TTSPolly  = "polly"
	TTSGemini = "gemini"
	TTSVertex = "vertex"
)

// ChatModels lists the accepted SUMMIT_CHAT_MODEL values.
var ChatModels = []string{ChatGemini, ChatClaude, ChatNova, ChatOpenAI}

// FreeTTSProviders lists the accepted SUMMIT_FREE_TTS values.
var FreeTTSProviders = []string{TTSGoogle, TTSPolly, TTSGemini, TTSVertex}

// Config is the complete runtime configuration.
type Config struct {
	// Credentials. Any of these may be empty; the matching provider then
	// reports itself unavailable and its tier is skipped.
	GoogleAPIKey     string `env:"GOOGLE_API_KEY"`
	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`
	DIDAPIKey        string `env:"DID_API_KEY"`

	LeadersDir   string `env:"SUMMIT_LEADERS_DIR" envDefault:"config/leaders"`
	VoiceCache   string `env:"SUMMIT_VOICE_CACHE" envDefault:"config/voice_ids.json"`
	Organization string `env:"SUMMIT_ORG" envDefault:"EXL Service"`
	Event        string `env:"SUMMIT_EVENT" envDefault:"EXL AI Summit"`

	ChatModel   string  `env:"SUMMIT_CHAT_MODEL" envDefault:"gemini"`
	ChatModelID string  `env:"SUMMIT_CHAT_MODEL_ID"`
	Temperature float64 `env:"SUMMIT_TEMPERATURE" envDefault:"0.8"`
	MaxTokens   int     `env:"SUMMIT_MAX_TOKENS" envDefault:"4096"`

	FreeTTS       string `env:"SUMMIT_FREE_TTS" envDefault:"google"`
	XPPerQuestion int    `env:"SUMMIT_XP_PER_QUESTION" envDefault:"50"`
	Lipsync       bool   `env:"SUMMIT_LIPSYNC" envDefault:"false"`

	LiveVoice   string        `env:"SUMMIT_LIVE_VOICE" envDefault:"Puck"`
	LiveTimeout time.Duration `env:"SUMMIT_LIVE_TIMEOUT" envDefault:"20s"`

	HTTPAddr   string        `env:"SUMMIT_HTTP_ADDR" envDefault:":8080"`
	MCPPort    int           `env:"SUMMIT_MCP_PORT" envDefault:"8000"`
	MCPToken   string        `env:"SUMMIT_MCP_TOKEN"`
	SessionTTL time.Duration `env:"SUMMIT_SESSION_TTL" envDefault:"2h"`
	AskRate    float64       `env:"SUMMIT_ASK_RATE" envDefault:"6"`

	ArchiveTable string `env:"SUMMIT_ARCHIVE_TABLE"`
	MediaBucket  string `env:"SUMMIT_MEDIA_BUCKET"`
	MediaBaseURL string `env:"SUMMIT_MEDIA_BASE_URL"`
	MediaDir     string `env:"SUMMIT_MEDIA_DIR" envDefault:"assets/visitors"`

	AWSRegion    string `env:"AWS_REGION" envDefault:"us-east-1"`
	GCPProject   string `env:"GCP_PROJECT"`
	GCPRegion    string `env:"GCP_REGION" envDefault:"us-central1"`
	SecretPrefix string `env:"SECRET_PREFIX"`

	LogLevel    string `env:"SUMMIT_LOG_LEVEL" envDefault:"info"`
	Environment string `env:"SUMMIT_ENV" envDefault:"kiosk"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses the process environment without touching .env.
func FromEnv() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// GeminiKey prefers GOOGLE_API_KEY and falls back to GEMINI_API_KEY.
func (c *Config) GeminiKey() string {
	if c.GoogleAPIKey != "" {
		return c.GoogleAPIKey
	}
	return c.GeminiAPIKey
}

// Validate rejects settings the kiosk cannot run with. Missing API keys are
// not errors here; see MissingKeys.
func (c *Config) Validate() error {
	if !contains(ChatModels, c.ChatModel) {
		return NewConfigError("SUMMIT_CHAT_MODEL", fmt.Sprintf("%q is not one of %v", c.ChatModel, ChatModels))
	}
	if !contains(FreeTTSProviders, c.FreeTTS) {
		return NewConfigError("SUMMIT_FREE_TTS", fmt.Sprintf("%q is not one of %v", c.FreeTTS, FreeTTSProviders))
	}
	if c.XPPerQuestion <= 0 {
		return NewConfigError("SUMMIT_XP_PER_QUESTION", "must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return NewConfigError("SUMMIT_TEMPERATURE", "must be between 0 and 2")
	}
	if c.MaxTokens <= 0 {
		return NewConfigError("SUMMIT_MAX_TOKENS", "must be positive")
	}
	if c.LiveTimeout <= 0 {
		return NewConfigError("SUMMIT_LIVE_TIMEOUT", "must be positive")
	}
	if c.HTTPAddr == "" {
		return NewConfigError("SUMMIT_HTTP_ADDR", "cannot be empty")
	}
	if c.MCPPort <= 0 || c.MCPPort > 65535 {
		return NewConfigError("SUMMIT_MCP_PORT", "must be a valid TCP port")
	}
	if c.SessionTTL < 0 {
		return NewConfigError("SUMMIT_SESSION_TTL", "cannot be negative")
	}
	if c.AskRate < 0 {
		return NewConfigError("SUMMIT_ASK_RATE", "cannot be negative")
	}
	if c.LeadersDir == "" {
		return NewConfigError("SUMMIT_LEADERS_DIR", "cannot be empty")
	}
	if c.FreeTTS == TTSVertex && c.GCPProject == "" {
		return NewConfigError("GCP_PROJECT", "is required for the vertex free TTS provider")
	}
	return nil
}

// MissingKeys lists the credentials the selected providers would need but do
// not have. The kiosk still runs; those tiers are skipped.
func (c *Config) MissingKeys() []string {
	missing := map[string]bool{}

	switch c.ChatModel {
	case ChatGemini:
		if c.GeminiKey() == "" {
			missing["GOOGLE_API_KEY"] = true
		}
	case ChatClaude:
		if c.AnthropicAPIKey == "" {
			missing["ANTHROPIC_API_KEY"] = true
		}
	case ChatOpenAI:
		if c.OpenAIAPIKey == "" {
			missing["OPENAI_API_KEY"] = true
		}
	case ChatNova:
		// AWS default credential chain
	}

	if c.FreeTTS == TTSGemini && c.GeminiKey() == "" {
		missing["GOOGLE_API_KEY"] = true
	}
	if c.ElevenLabsAPIKey == "" {
		missing["ELEVENLABS_API_KEY"] = true
	}
	if c.Lipsync && c.DIDAPIKey == "" {
		missing["DID_API_KEY"] = true
	}

	out := make([]string, 0, len(missing))
	for k := range missing {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
