package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	calls   int
	gotSys  string
	gotMsgs []Message
	text    string
	err     error
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(_ context.Context, system string, msgs []Message) (string, error) {
	f.calls++
	f.gotSys = system
	f.gotMsgs = msgs
	return f.text, f.err
}

type fakeStreamer struct {
	fakeGenerator
	chunks []string
}

func (f *fakeStreamer) GenerateStream(_ context.Context, _ string, _ []Message, onChunk func(string)) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	for _, c := range f.chunks {
		onChunk(c)
	}
	return strings.Join(f.chunks, ""), nil
}

func TestGetReplySuccess(t *testing.T) {
	gen := &fakeGenerator{text: "Lead with curiosity."}
	o := NewOrchestrator(gen, nil)

	history := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	}
	r := o.GetReply(context.Background(), "SYSTEM", history, "how do I lead?")

	assert.False(t, r.Degraded)
	assert.NoError(t, r.Err)
	assert.Equal(t, "Lead with curiosity.", r.Text)
	assert.Equal(t, "SYSTEM", gen.gotSys)
	require.Len(t, gen.gotMsgs, 3)
	assert.Equal(t, Message{Role: RoleUser, Content: "how do I lead?"}, gen.gotMsgs[2])
	assert.Len(t, history, 2, "caller history must not be mutated")
}

func TestGetReplyFailsClosedWithoutRetry(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{"timeout", fmt.Errorf("send: %w", context.DeadlineExceeded), "request timed out"},
		{"not configured", ErrNotConfigured, "provider not configured"},
		{"auth", &GenerationError{Provider: "fake", StatusCode: 401, Err: errors.New("invalid x-api-key sk-secret")}, "authentication failed"},
		{"quota", &GenerationError{Provider: "fake", StatusCode: 429, Err: errors.New("quota")}, "rate limited"},
		{"server", &GenerationError{Provider: "fake", StatusCode: 503, Err: errors.New("overloaded")}, "provider unavailable"},
		{"bad request", &GenerationError{Provider: "fake", StatusCode: 400, Err: errors.New("bad")}, "request rejected (400)"},
		{"empty", &GenerationError{Provider: "fake", Err: ErrEmptyResponse}, "empty response"},
		{"other", errors.New("boom"), "provider error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{err: tt.err}
			r := NewOrchestrator(gen, nil).GetReply(context.Background(), "s", nil, "q")

			assert.Equal(t, 1, gen.calls)
			assert.True(t, r.Degraded)
			assert.ErrorIs(t, r.Err, tt.err)
			assert.Contains(t, r.Text, tt.reason)
			assert.True(t, strings.HasPrefix(r.Text, "*Connection issue"))
			assert.NotContains(t, r.Text, "sk-secret")
		})
	}
}

func TestStreamUsesStreamer(t *testing.T) {
	gen := &fakeStreamer{chunks: []string{"Lead ", "boldly."}}
	var got []string
	r := NewOrchestrator(gen, nil).Stream(context.Background(), "s", nil, "q", func(c string) {
		got = append(got, c)
	})
	assert.False(t, r.Degraded)
	assert.Equal(t, "Lead boldly.", r.Text)
	assert.Equal(t, []string{"Lead ", "boldly."}, got)
}

func TestStreamFallsBackToSingleChunk(t *testing.T) {
	gen := &fakeGenerator{text: "whole"}
	var got []string
	r := NewOrchestrator(gen, nil).Stream(context.Background(), "s", nil, "q", func(c string) {
		got = append(got, c)
	})
	assert.Equal(t, "whole", r.Text)
	assert.Equal(t, []string{"whole"}, got)
}

func TestStreamDegradedSendsNoChunks(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("boom")}
	called := false
	r := NewOrchestrator(gen, nil).Stream(context.Background(), "s", nil, "q", func(string) { called = true })
	assert.True(t, r.Degraded)
	assert.False(t, called)
}

func TestUnconfiguredBackendsFailFast(t *testing.T) {
	ctx := context.Background()
	gem, err := NewGemini(ctx, Options{})
	require.NoError(t, err)

	for _, g := range []Generator{gem, NewClaude(Options{}), NewOpenAI(Options{})} {
		t.Run(g.Name(), func(t *testing.T) {
			_, err := g.Generate(ctx, "s", []Message{{Role: RoleUser, Content: "q"}})
			assert.ErrorIs(t, err, ErrNotConfigured)
		})
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Options{Provider: "llama"})
	assert.Error(t, err)
}
