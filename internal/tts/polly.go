package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/apresai/summit/internal/audio"
)

const pollyMaxChars = 3000

var pollyFallbackVoices = []string{"Matthew", "Ruth", "Stephen"}

// pollyVoiceLang maps voice IDs to their language codes.
var pollyVoiceLang = map[string]types.LanguageCode{
	"Matthew":  types.LanguageCodeEnUs,
	"Ruth":     types.LanguageCodeEnUs,
	"Stephen":  types.LanguageCodeEnUs,
	"Danielle": types.LanguageCodeEnUs,
	"Amy":      types.LanguageCodeEnGb,
	"Olivia":   types.LanguageCodeEnAu,
	"Kajal":    types.LanguageCodeEnIn,
}

// PollyAPI is the Polly operation the synthesizer calls.
type PollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Polly synthesizes with the AWS Polly generative engine.
type Polly struct {
	client PollyAPI
}

// NewPolly builds a synthesizer from a loaded AWS config.
func NewPolly(awsCfg aws.Config) *Polly {
	return &Polly{client: polly.NewFromConfig(awsCfg)}
}

func NewPollyWithClient(client PollyAPI) *Polly {
	return &Polly{client: client}
}

func (p *Polly) Name() string             { return "polly" }
func (p *Polly) Available() bool          { return p.client != nil }
func (p *Polly) MaxChars() int            { return pollyMaxChars }
func (p *Polly) FallbackVoices() []string { return pollyFallbackVoices }

func (p *Polly) Synthesize(ctx context.Context, text string, voiceID string) (audio.Clip, error) {
	if !p.Available() {
		return audio.Clip{}, ErrUnavailable
	}
	lang, ok := pollyVoiceLang[voiceID]
	if !ok {
		lang = types.LanguageCodeEnUs
	}

	resp, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       types.EngineGenerative,
		OutputFormat: types.OutputFormatMp3,
		SampleRate:   aws.String("24000"),
		Text:         aws.String(text),
		TextType:     types.TextTypeText,
		VoiceId:      types.VoiceId(voiceID),
		LanguageCode: lang,
	})
	if err != nil {
		return audio.Clip{}, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("synthesize: %w", err)}
	}
	defer resp.AudioStream.Close()

	data, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("Polly read audio: %w", err)
	}
	if len(data) == 0 {
		return audio.Clip{}, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("empty audio stream")}
	}
	return audio.Clip{Data: data, Format: audio.FormatMP3}, nil
}

func pollyAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "Matthew", Name: "Matthew", Gender: "male", Description: "en-US, Generative"},
		{ID: "Ruth", Name: "Ruth", Gender: "female", Description: "en-US, Generative"},
		{ID: "Stephen", Name: "Stephen", Gender: "male", Description: "en-US, Generative"},
		{ID: "Danielle", Name: "Danielle", Gender: "female", Description: "en-US, Generative"},
		{ID: "Amy", Name: "Amy", Gender: "female", Description: "en-GB, Generative"},
		{ID: "Olivia", Name: "Olivia", Gender: "female", Description: "en-AU, Generative"},
		{ID: "Kajal", Name: "Kajal", Gender: "female", Description: "en-IN, Generative"},
	}
}

var _ Synthesizer = (*Polly)(nil)
