package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apresai/summit/internal/audio"
)

const (
	geminiBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	geminiTTSModel = "gemini-2.5-flash-preview-tts"
	geminiMaxChars = 3000
)

var geminiFallbackVoices = []string{"Kore", "Charon", "Puck"}

// geminiRequest is the generateContent body shared by AI Studio and Vertex.
type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenConfig struct {
	ResponseModalities []string           `json:"responseModalities"`
	SpeechConfig       geminiSpeechConfig `json:"speechConfig"`
}

type geminiSpeechConfig struct {
	VoiceConfig geminiVoiceConfig `json:"voiceConfig"`
}

type geminiVoiceConfig struct {
	PrebuiltVoiceConfig geminiPrebuiltVoice `json:"prebuiltVoiceConfig"`
}

type geminiPrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"` // base64-encoded PCM
				} `json:"inlineData,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func newGeminiSpeechRequest(text, voiceID string) geminiRequest {
	return geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: text}}},
		},
		GenerationConfig: geminiGenConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: geminiSpeechConfig{
				VoiceConfig: geminiVoiceConfig{
					PrebuiltVoiceConfig: geminiPrebuiltVoice{VoiceName: voiceID},
				},
			},
		},
	}
}

// decodeGeminiAudio pulls the first inline audio part out of a response body.
func decodeGeminiAudio(provider string, body []byte) ([]byte, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", provider, err)
	}
	for _, c := range resp.Candidates {
		for _, part := range c.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode %s audio base64: %w", provider, err)
			}
			return pcm, nil
		}
	}
	return nil, &ProviderError{Provider: provider, Err: fmt.Errorf("response contained no audio data")}
}

// postGemini sends a generateContent request and returns the decoded PCM.
func postGemini(ctx context.Context, client *http.Client, provider, url string, header http.Header, body geminiRequest) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Err: fmt.Errorf("send request: %w", err)}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return nil, &ProviderError{Provider: provider, StatusCode: res.StatusCode, Body: string(errBody)}
	}

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", provider, err)
	}
	return decodeGeminiAudio(provider, respBody)
}

// Gemini synthesizes with the AI Studio TTS model using an API key.
type Gemini struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewGemini(apiKey string) *Gemini {
	return &Gemini{
		apiKey:     apiKey,
		baseURL:    geminiBaseURL,
		model:      geminiTTSModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// WithBaseURL points the client at another endpoint.
func (p *Gemini) WithBaseURL(u string) *Gemini {
	p.baseURL = u
	return p
}

func (p *Gemini) Name() string             { return "gemini" }
func (p *Gemini) Available() bool          { return p.apiKey != "" }
func (p *Gemini) MaxChars() int            { return geminiMaxChars }
func (p *Gemini) FallbackVoices() []string { return geminiFallbackVoices }

func (p *Gemini) Synthesize(ctx context.Context, text string, voiceID string) (audio.Clip, error) {
	if !p.Available() {
		return audio.Clip{}, ErrUnavailable
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)
	header := http.Header{}
	header.Set("x-goog-api-key", p.apiKey)

	pcm, err := postGemini(ctx, p.httpClient, p.Name(), url, header, newGeminiSpeechRequest(text, voiceID))
	if err != nil {
		return audio.Clip{}, err
	}
	return audio.Clip{Data: pcm, Format: audio.FormatPCM, SampleRate: audio.DefaultPCMRate}, nil
}

func geminiAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "Kore", Name: "Kore", Gender: "female", Description: "Firm, confident female voice"},
		{ID: "Charon", Name: "Charon", Gender: "male", Description: "Informative, clear male narrator"},
		{ID: "Puck", Name: "Puck", Gender: "male", Description: "Upbeat, energetic male voice"},
		{ID: "Leda", Name: "Leda", Gender: "female", Description: "Youthful, bright female voice"},
		{ID: "Fenrir", Name: "Fenrir", Gender: "male", Description: "Excitable, deep male voice"},
		{ID: "Aoede", Name: "Aoede", Gender: "female", Description: "Bright, expressive female voice"},
		{ID: "Orus", Name: "Orus", Gender: "male", Description: "Firm, authoritative male narrator"},
		{ID: "Zephyr", Name: "Zephyr", Gender: "female", Description: "Breezy, relaxed female voice"},
	}
}

var _ Synthesizer = (*Gemini)(nil)
