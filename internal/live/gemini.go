package live

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/apresai/summit/internal/reply"
)

const (
	liveModel        = "models/gemini-2.5-flash-native-audio-preview-12-2025"
	transcribeModel  = "gemini-2.5-flash"
	transcribePrompt = "Transcribe this audio exactly. Return only the transcription, nothing else."
)

// Gemini opens Live sessions and transcribes recorded questions.
type Gemini struct {
	client *genai.Client
}

// NewGemini returns nil when apiKey is empty.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1beta"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func liveTurns(history []reply.Message, message string) []*genai.Content {
	turns := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := genai.RoleUser
		if m.Role == reply.RoleAssistant {
			role = genai.RoleModel
		}
		turns = append(turns, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	return append(turns, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: message}}})
}

// Exchange sends the conversation as one client turn and collects audio until
// the model completes its turn.
func (g *Gemini) Exchange(ctx context.Context, req Request) (Exchange, error) {
	if g == nil {
		return Exchange{}, errors.New("live voice not configured")
	}
	session, err := g.client.Live.Connect(ctx, liveModel, &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: req.Voice},
			},
		},
		SystemInstruction:        &genai.Content{Parts: []*genai.Part{{Text: req.System}}},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	})
	if err != nil {
		return Exchange{}, fmt.Errorf("connect live session: %w", err)
	}

	// Receive does not take a context; closing the session unblocks it.
	stop := context.AfterFunc(ctx, func() { session.Close() })
	defer func() {
		if stop() {
			session.Close()
		}
	}()

	if err := session.SendClientContent(genai.LiveClientContentInput{
		Turns:        liveTurns(req.History, req.Message),
		TurnComplete: genai.Ptr(true),
	}); err != nil {
		return Exchange{}, fmt.Errorf("send live turn: %w", err)
	}

	var pcm []byte
	var text strings.Builder
	for {
		msg, err := session.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return Exchange{}, ctx.Err()
			}
			return Exchange{}, fmt.Errorf("receive live message: %w", err)
		}
		sc := msg.ServerContent
		if sc == nil {
			continue
		}
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData != nil {
					pcm = append(pcm, p.InlineData.Data...)
				}
				if p.Text != "" {
					text.WriteString(p.Text)
				}
			}
		}
		if sc.OutputTranscription != nil {
			text.WriteString(sc.OutputTranscription.Text)
		}
		if sc.TurnComplete {
			break
		}
	}
	if len(pcm) == 0 && text.Len() == 0 {
		return Exchange{}, errors.New("live session returned nothing")
	}
	return Exchange{Text: text.String(), PCM: pcm}, nil
}

// Transcribe turns a recorded question into text. It returns "" on any
// failure.
func (g *Gemini) Transcribe(ctx context.Context, data []byte, mimeType string) string {
	if g == nil || len(data) == 0 {
		return ""
	}
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	resp, err := g.client.Models.GenerateContent(ctx, transcribeModel, []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
			{Text: transcribePrompt},
		},
	}}, nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(resp.Text())
}

var _ Dialer = (*Gemini)(nil)
