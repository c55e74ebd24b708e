package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/apresai/summit/internal/audio"
)

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io/v1"
	elevenLabsModelID      = "eleven_flash_v2_5"
	elevenLabsOutputFormat = "mp3_44100_128"
	elevenLabsMaxChars     = 2500
)

type elevenLabsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	VoiceSettings *elevenLabsVoiceParams `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceParams struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type elevenLabsAddVoiceResponse struct {
	VoiceID string `json:"voice_id"`
}

// ElevenLabs synthesizes with cloned voices and creates clones from samples.
type ElevenLabs struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	cloneClient *http.Client
}

// NewElevenLabs creates the client. An empty apiKey makes it unavailable.
func NewElevenLabs(apiKey string) *ElevenLabs {
	return &ElevenLabs{
		apiKey:      apiKey,
		baseURL:     elevenLabsBaseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		cloneClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// WithBaseURL points the client at another endpoint.
func (p *ElevenLabs) WithBaseURL(u string) *ElevenLabs {
	p.baseURL = u
	return p
}

func (p *ElevenLabs) Name() string             { return "elevenlabs" }
func (p *ElevenLabs) Available() bool          { return p.apiKey != "" }
func (p *ElevenLabs) MaxChars() int            { return elevenLabsMaxChars }
func (p *ElevenLabs) FallbackVoices() []string { return nil }

func (p *ElevenLabs) Synthesize(ctx context.Context, text string, voiceID string) (audio.Clip, error) {
	if !p.Available() {
		return audio.Clip{}, ErrUnavailable
	}
	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: elevenLabsModelID,
		VoiceSettings: &elevenLabsVoiceParams{
			Stability:       0.55,
			SimilarityBoost: 0.80,
			Style:           0.3,
			UseSpeakerBoost: true,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", p.baseURL, voiceID, elevenLabsOutputFormat)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return audio.Clip{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	data, err := p.do(p.httpClient, req)
	if err != nil {
		return audio.Clip{}, err
	}
	return audio.Clip{Data: data, Format: audio.FormatMP3}, nil
}

// CloneVoice uploads a voice sample and returns the new voice id.
func (p *ElevenLabs) CloneVoice(ctx context.Context, name, description, samplePath string) (string, error) {
	if !p.Available() {
		return "", ErrUnavailable
	}
	sample, err := os.ReadFile(samplePath)
	if err != nil {
		return "", fmt.Errorf("read voice sample: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("name", name); err != nil {
		return "", fmt.Errorf("write name field: %w", err)
	}
	if err := mw.WriteField("description", description); err != nil {
		return "", fmt.Errorf("write description field: %w", err)
	}
	fw, err := mw.CreateFormFile("files", filepath.Base(samplePath))
	if err != nil {
		return "", fmt.Errorf("create sample part: %w", err)
	}
	if _, err := fw.Write(sample); err != nil {
		return "", fmt.Errorf("write sample part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/voices/add", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	data, err := p.do(p.cloneClient, req)
	if err != nil {
		return "", err
	}

	var resp elevenLabsAddVoiceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parse clone response: %w", err)
	}
	if resp.VoiceID == "" {
		return "", fmt.Errorf("clone response contained no voice_id")
	}
	return resp.VoiceID, nil
}

func (p *ElevenLabs) do(client *http.Client, req *http.Request) ([]byte, error) {
	res, err := client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("send request: %w", err)}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return nil, &ProviderError{Provider: p.Name(), StatusCode: res.StatusCode, Body: string(errBody)}
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func elevenLabsAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "JBFqnCBsd6RMkjVDRZzb", Name: "George", Gender: "male", Description: "Warm British male, clear and authoritative"},
		{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Sarah", Gender: "female", Description: "Soft American female, friendly and engaging"},
		{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Gender: "male", Description: "Deep American male, confident narrator"},
		{ID: "onwK4e9ZLuTAKqWW03F9", Name: "Daniel", Gender: "male", Description: "British male, authoritative news anchor"},
		{ID: "XB0fDUnXU5powFXDhCwa", Name: "Charlotte", Gender: "female", Description: "Swedish-English female, warm and natural"},
		{ID: "pFZP5JQG7iQjIQuC4Bku", Name: "Lily", Gender: "female", Description: "British female, warm storyteller"},
	}
}

var _ Synthesizer = (*ElevenLabs)(nil)
