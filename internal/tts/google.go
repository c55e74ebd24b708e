package tts

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/status"

	"github.com/apresai/summit/internal/audio"
)

const googleMaxChars = 3000

var googleFallbackVoices = []string{
	"en-US-Chirp3-HD-Charon",
	"en-US-Chirp3-HD-Kore",
	"en-US-Chirp3-HD-Puck",
}

// googleSpeechClient is the slice of the Cloud TTS client Google uses.
type googleSpeechClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// Google synthesizes with Google Cloud TTS (Chirp 3 HD) using ADC.
type Google struct {
	client googleSpeechClient
}

func NewGoogle(ctx context.Context) (*Google, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create Google TTS client: %w", err)
	}
	return &Google{client: client}, nil
}

func (p *Google) Name() string             { return "google" }
func (p *Google) Available() bool          { return p.client != nil }
func (p *Google) MaxChars() int            { return googleMaxChars }
func (p *Google) FallbackVoices() []string { return googleFallbackVoices }

func (p *Google) Synthesize(ctx context.Context, text string, voiceID string) (audio.Clip, error) {
	if !p.Available() {
		return audio.Clip{}, ErrUnavailable
	}
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: languageFromVoice(voiceID),
			Name:         voiceID,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}

	resp, err := p.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return audio.Clip{}, &ProviderError{
			Provider:   p.Name(),
			StatusCode: runtime.HTTPStatusFromCode(status.Code(err)),
			Err:        fmt.Errorf("synthesize: %w", err),
		}
	}
	if len(resp.AudioContent) == 0 {
		return audio.Clip{}, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("empty audio content")}
	}
	return audio.Clip{Data: resp.AudioContent, Format: audio.FormatMP3}, nil
}

func (p *Google) Close() error { return p.client.Close() }

// languageFromVoice extracts "en-US" from "en-US-Chirp3-HD-Kore".
func languageFromVoice(voiceID string) string {
	if len(voiceID) >= 5 && voiceID[2] == '-' {
		return voiceID[:5]
	}
	return "en-US"
}

func googleAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "en-US-Chirp3-HD-Charon", Name: "Charon", Gender: "male", Description: "Informative, clear male narrator"},
		{ID: "en-US-Chirp3-HD-Kore", Name: "Kore", Gender: "female", Description: "Firm, confident female voice"},
		{ID: "en-US-Chirp3-HD-Puck", Name: "Puck", Gender: "male", Description: "Upbeat, energetic male voice"},
		{ID: "en-US-Chirp3-HD-Leda", Name: "Leda", Gender: "female", Description: "Youthful, bright female voice"},
		{ID: "en-US-Chirp3-HD-Fenrir", Name: "Fenrir", Gender: "male", Description: "Deep, resonant male voice"},
		{ID: "en-US-Chirp3-HD-Aoede", Name: "Aoede", Gender: "female", Description: "Bright, expressive female voice"},
		{ID: "en-US-Chirp3-HD-Orus", Name: "Orus", Gender: "male", Description: "Warm, steady male narrator"},
		{ID: "en-GB-Chirp3-HD-Zephyr", Name: "Zephyr", Gender: "female", Description: "Breezy, relaxed British female voice"},
	}
}

var _ Synthesizer = (*Google)(nil)
