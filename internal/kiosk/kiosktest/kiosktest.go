// Package kiosktest builds kiosk services over in-memory fakes for tests of
// the outer surfaces.
package kiosktest

import (
	"context"
	"sync"
	"testing"

	"github.com/apresai/summit/internal/kiosk"
	"github.com/apresai/summit/internal/observability"
	"github.com/apresai/summit/internal/persona"
	"github.com/apresai/summit/internal/reply"
	"github.com/apresai/summit/internal/session"
	"github.com/apresai/summit/internal/tts"
)

// Persona returns a valid persona with the given id.
func Persona(id, name string) persona.Persona {
	return persona.Persona{
		ID:   id,
		Name: name,
		Role: "Chief " + id,
		Personality: persona.Personality{
			ThinkingStyle:        "systems",
			EmotionalBaseline:    "calm",
			CommunicationStyle:   "direct",
			RiskAppetite:         "measured",
			LeadershipPhilosophy: "serve the team",
			DecisionFramework:    "reversible vs irreversible",
			ConflictHandling:     "name it early",
			CoreValues:           []string{"candour"},
			MotivationalDrivers:  []string{"growth"},
		},
		VoiceID: "Kore",
	}
}

// Registry returns a registry with two personas: "ceo" and "cto".
func Registry(t testing.TB) *persona.Registry {
	t.Helper()
	reg, err := persona.NewRegistry(Persona("ceo", "Aria Chen"), Persona("cto", "Marcus Reid"))
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

// Generator answers with Text, or fails with Err.
type Generator struct {
	mu    sync.Mutex
	Text  string
	Err   error
	Calls int
}

func (g *Generator) Name() string { return "fake" }

func (g *Generator) Generate(context.Context, string, []reply.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls++
	return g.Text, g.Err
}

// Set changes the next answer.
func (g *Generator) Set(text string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Text, g.Err = text, err
}

// Voice records synthesis requests and returns fixed audio.
type Voice struct {
	mu    sync.Mutex
	Calls int
	Texts []string
}

func (v *Voice) SynthesizeFor(_ context.Context, _ *persona.Persona, text string) *tts.Speech {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Calls++
	v.Texts = append(v.Texts, text)
	return &tts.Speech{Data: []byte("ID3audio"), MIME: "audio/mpeg", Tier: "fake"}
}

// Service wires a kiosk over the fakes.
func Service(t testing.TB, gen *Generator, voice *Voice) *kiosk.Service {
	t.Helper()
	d := kiosk.Deps{
		Registry: Registry(t),
		Sessions: session.NewManager(0),
		Replies:  reply.NewOrchestrator(gen, observability.Discard()),
		Logger:   observability.Discard(),
	}
	if voice != nil {
		d.Voice = voice
	}
	return kiosk.New(d)
}
