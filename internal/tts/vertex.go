package tts

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/apresai/summit/internal/audio"
)

const (
	vertexDefaultModel  = "gemini-2.5-flash-tts"
	vertexDefaultRegion = "us-central1"
	vertexScope         = "https://www.googleapis.com/auth/cloud-platform"
)

// Vertex synthesizes with Gemini TTS on Vertex AI. Same voices and request
// shape as AI Studio, authenticated with an OAuth2 bearer token.
type Vertex struct {
	project    string
	region     string
	model      string
	endpoint   string
	tokens     oauth2.TokenSource
	httpClient *http.Client
}

// NewVertex resolves Application Default Credentials for the project.
func NewVertex(ctx context.Context, project, region string) (*Vertex, error) {
	if project == "" {
		return nil, fmt.Errorf("GCP project is required for the vertex TTS provider")
	}
	ts, err := google.DefaultTokenSource(ctx, vertexScope)
	if err != nil {
		return nil, fmt.Errorf("get default token source: %w (hint: run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS)", err)
	}
	return NewVertexWithTokenSource(project, region, ts), nil
}

func NewVertexWithTokenSource(project, region string, ts oauth2.TokenSource) *Vertex {
	if region == "" {
		region = vertexDefaultRegion
	}
	return &Vertex{
		project: project,
		region:  region,
		model:   vertexDefaultModel,
		tokens:  oauth2.ReuseTokenSource(nil, ts),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 45 * time.Second,
				IdleConnTimeout:       30 * time.Second,
			},
		},
	}
}

// WithEndpoint overrides the generateContent URL.
func (p *Vertex) WithEndpoint(u string) *Vertex {
	p.endpoint = u
	return p
}

func (p *Vertex) Name() string             { return "vertex" }
func (p *Vertex) Available() bool          { return p.tokens != nil && p.project != "" }
func (p *Vertex) MaxChars() int            { return geminiMaxChars }
func (p *Vertex) FallbackVoices() []string { return geminiFallbackVoices }

func (p *Vertex) url() string {
	if p.endpoint != "" {
		return p.endpoint
	}
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		p.region, p.project, p.region, p.model)
}

func (p *Vertex) Synthesize(ctx context.Context, text string, voiceID string) (audio.Clip, error) {
	if !p.Available() {
		return audio.Clip{}, ErrUnavailable
	}
	token, err := p.tokens.Token()
	if err != nil {
		return audio.Clip{}, &ProviderError{Provider: p.Name(), StatusCode: http.StatusUnauthorized, Err: fmt.Errorf("get access token: %w", err)}
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token.AccessToken)

	pcm, err := postGemini(ctx, p.httpClient, p.Name(), p.url(), header, newGeminiSpeechRequest(text, voiceID))
	if err != nil {
		return audio.Clip{}, err
	}
	return audio.Clip{Data: pcm, Format: audio.FormatPCM, SampleRate: audio.DefaultPCMRate}, nil
}

var _ Synthesizer = (*Vertex)(nil)
