package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/apresai/summit/internal/audio"
	"github.com/apresai/summit/internal/observability"
	"github.com/apresai/summit/internal/persona"
)

// fakeSynth records calls and fails for voices listed in failVoices.
type fakeSynth struct {
	name       string
	available  bool
	maxChars   int
	fallbacks  []string
	failVoices map[string]bool
	panics     bool

	mu     sync.Mutex
	calls  int
	voices []string
	texts  []string
}

func (f *fakeSynth) Name() string             { return f.name }
func (f *fakeSynth) Available() bool          { return f.available }
func (f *fakeSynth) MaxChars() int            { return f.maxChars }
func (f *fakeSynth) FallbackVoices() []string { return f.fallbacks }

func (f *fakeSynth) Synthesize(_ context.Context, text, voiceID string) (audio.Clip, error) {
	f.mu.Lock()
	f.calls++
	f.voices = append(f.voices, voiceID)
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.panics {
		panic("vendor client exploded")
	}
	if f.failVoices[voiceID] {
		return audio.Clip{}, &ProviderError{Provider: f.name, StatusCode: http.StatusInternalServerError, Body: "boom"}
	}
	return audio.Clip{Data: []byte("ID3" + f.name + ":" + voiceID), Format: audio.FormatMP3}, nil
}

type fakeCloner struct {
	id    string
	err   error
	calls int
}

func (f *fakeCloner) CloneVoice(_ context.Context, _, _, _ string) (string, error) {
	f.calls++
	return f.id, f.err
}

func testPersona() *persona.Persona {
	return &persona.Persona{ID: "ceo", Name: "Aria Chen", Role: "CEO", VoiceID: "en-US-Chirp3-HD-Kore"}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"short text untouched", "hello", 10, "hello"},
		{"zero max untouched", "hello", 0, "hello"},
		{"sentence break", "Hello there friend. And more", 20, "Hello there friend."},
		{"word break", "aaaa bbbb cccc dddd eeee", 22, "aaaa bbbb cccc dddd"},
		{"hard cut", "abcdefghijklmnop", 5, "abcde"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.text, tt.max))
		})
	}
}

func TestTruncateRuneSafe(t *testing.T) {
	got := Truncate(strings.Repeat("é", 50), 10)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 10, utf8.RuneCountInString(got))
}

func TestChainEmptyTextMakesNoCalls(t *testing.T) {
	synth := &fakeSynth{name: "google", available: true}
	chain := NewChain(observability.Discard(), NewFreeVoiceTier(synth, observability.Discard()))

	for _, text := range []string{"", "   ", "\n\t"} {
		assert.Nil(t, chain.SynthesizeFor(context.Background(), testPersona(), text))
	}
	assert.Zero(t, synth.calls)
}

func TestChainSkipsClonedTierWithoutCredential(t *testing.T) {
	logger := observability.Discard()
	cloned := &fakeSynth{name: "elevenlabs", available: false}
	cloner := &fakeCloner{id: "never"}
	free := &fakeSynth{name: "google", available: true}

	chain := NewChain(logger,
		newClonedVoiceTier(cloned, cloner, nil, logger),
		NewFreeVoiceTier(free, logger),
	)

	speech := chain.SynthesizeFor(context.Background(), testPersona(), "hello")
	require.NotNil(t, speech)
	assert.Equal(t, "free:google", speech.Tier)
	assert.Equal(t, "audio/mpeg", speech.MIME)
	assert.Zero(t, cloned.calls)
	assert.Zero(t, cloner.calls)
	assert.Equal(t, 1, free.calls)
}

func TestChainPrefersClonedVoice(t *testing.T) {
	logger := observability.Discard()
	cloned := &fakeSynth{name: "elevenlabs", available: true}
	free := &fakeSynth{name: "google", available: true}
	p := testPersona()
	p.ElevenVoiceID = "preset-voice"

	chain := NewChain(logger, newClonedVoiceTier(cloned, nil, nil, logger), NewFreeVoiceTier(free, logger))
	speech := chain.SynthesizeFor(context.Background(), p, "hello")

	require.NotNil(t, speech)
	assert.Equal(t, "cloned", speech.Tier)
	assert.Equal(t, []string{"preset-voice"}, cloned.voices)
	assert.Zero(t, free.calls)
}

func TestChainFallsThroughOnFailureAndPanic(t *testing.T) {
	logger := observability.Discard()
	cloned := &fakeSynth{name: "elevenlabs", available: true, panics: true}
	free := &fakeSynth{name: "google", available: true}
	p := testPersona()
	p.ElevenVoiceID = "preset-voice"

	chain := NewChain(logger, newClonedVoiceTier(cloned, nil, nil, logger), NewFreeVoiceTier(free, logger))
	speech := chain.SynthesizeFor(context.Background(), p, "hello")

	require.NotNil(t, speech)
	assert.Equal(t, "free:google", speech.Tier)
	assert.Equal(t, 1, cloned.calls)
}

func TestChainReturnsNilWhenEverythingFails(t *testing.T) {
	logger := observability.Discard()
	free := &fakeSynth{
		name:       "google",
		available:  true,
		fallbacks:  []string{"a", "b"},
		failVoices: map[string]bool{"en-US-Chirp3-HD-Kore": true, "a": true, "b": true},
	}
	chain := NewChain(logger, NewFreeVoiceTier(free, logger))

	assert.Nil(t, chain.SynthesizeFor(context.Background(), testPersona(), "hello"))
	assert.Equal(t, []string{"en-US-Chirp3-HD-Kore", "a", "b"}, free.voices)
}

func TestFreeVoiceTierFallbackOrder(t *testing.T) {
	logger := observability.Discard()
	free := &fakeSynth{
		name:       "google",
		available:  true,
		fallbacks:  []string{"en-US-Chirp3-HD-Kore", "backup-1", "backup-2"},
		failVoices: map[string]bool{"en-US-Chirp3-HD-Kore": true, "backup-1": true},
	}
	clip, err := NewFreeVoiceTier(free, logger).Attempt(context.Background(), testPersona(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "ID3google:backup-2", string(clip.Data))
	// declared voice is not retried when it also appears in the fallback list
	assert.Equal(t, []string{"en-US-Chirp3-HD-Kore", "backup-1", "backup-2"}, free.voices)
}

func TestFreeVoiceTierWithoutDeclaredVoice(t *testing.T) {
	free := &fakeSynth{name: "google", available: true, fallbacks: []string{"x"}}
	p := testPersona()
	p.VoiceID = ""

	_, err := NewFreeVoiceTier(free, observability.Discard()).Attempt(context.Background(), p, "hello")
	assert.ErrorIs(t, err, ErrNoVoice)
	assert.Zero(t, free.calls)
}

func TestFreeVoiceTierTruncates(t *testing.T) {
	free := &fakeSynth{name: "google", available: true, maxChars: 10}
	_, err := NewFreeVoiceTier(free, observability.Discard()).Attempt(context.Background(), testPersona(), strings.Repeat("x", 40))
	require.NoError(t, err)
	assert.Len(t, free.texts[0], 10)
}

func TestClonedVoiceTierResolution(t *testing.T) {
	logger := observability.Discard()
	cachePath := filepath.Join(t.TempDir(), "voice_ids.json")
	cache, err := LoadVoiceCache(cachePath)
	require.NoError(t, err)

	synth := &fakeSynth{name: "elevenlabs", available: true}
	cloner := &fakeCloner{id: "cloned-123"}
	tier := newClonedVoiceTier(synth, cloner, cache, logger)

	p := testPersona()
	p.VoiceSample = "samples/ceo.mp3"

	_, err = tier.Attempt(context.Background(), p, "first")
	require.NoError(t, err)
	_, err = tier.Attempt(context.Background(), p, "second")
	require.NoError(t, err)

	assert.Equal(t, 1, cloner.calls, "second request uses the cached clone")
	assert.Equal(t, []string{"cloned-123", "cloned-123"}, synth.voices)

	reloaded, err := LoadVoiceCache(cachePath)
	require.NoError(t, err)
	id, ok := reloaded.Get("ceo")
	assert.True(t, ok)
	assert.Equal(t, "cloned-123", id)
}

func TestClonedVoiceTierNoVoiceSource(t *testing.T) {
	synth := &fakeSynth{name: "elevenlabs", available: true}
	cloner := &fakeCloner{id: "x"}
	_, err := newClonedVoiceTier(synth, cloner, nil, observability.Discard()).
		Attempt(context.Background(), testPersona(), "hello")

	assert.ErrorIs(t, err, ErrNoVoice)
	assert.Zero(t, cloner.calls)
	assert.Zero(t, synth.calls)
}

func TestClonedVoiceTierCloneFailure(t *testing.T) {
	synth := &fakeSynth{name: "elevenlabs", available: true}
	cloner := &fakeCloner{err: errors.New("quota exceeded")}
	p := testPersona()
	p.VoiceSample = "samples/ceo.mp3"

	_, err := newClonedVoiceTier(synth, cloner, nil, observability.Discard()).Attempt(context.Background(), p, "hello")
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Zero(t, synth.calls)
}

func TestVoiceCache(t *testing.T) {
	t.Run("missing file is empty", func(t *testing.T) {
		c, err := LoadVoiceCache(filepath.Join(t.TempDir(), "nope.json"))
		require.NoError(t, err)
		assert.Zero(t, c.Len())
	})

	t.Run("corrupt file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "voice_ids.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := LoadVoiceCache(path)
		assert.Error(t, err)
	})

	t.Run("put rewrites whole file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "voice_ids.json")
		c, err := LoadVoiceCache(path)
		require.NoError(t, err)
		require.NoError(t, c.Put("ceo", "v1"))
		require.NoError(t, c.Put("cto", "v2"))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var got map[string]string
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, map[string]string{"ceo": "v1", "cto": "v2"}, got)

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no temp files left behind")
	})

	t.Run("concurrent puts", func(t *testing.T) {
		c, err := LoadVoiceCache(filepath.Join(t.TempDir(), "voice_ids.json"))
		require.NoError(t, err)
		var wg sync.WaitGroup
		for _, id := range []string{"a", "b", "c", "d"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				assert.NoError(t, c.Put(id, "voice-"+id))
			}(id)
		}
		wg.Wait()
		assert.Equal(t, 4, c.Len())
	})
}

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/voice-1", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("xi-api-key"))
		var body elevenLabsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, elevenLabsModelID, body.ModelID)
		assert.Equal(t, "hello", body.Text)
		w.Write([]byte("ID3-mp3-bytes"))
	}))
	defer srv.Close()

	clip, err := NewElevenLabs("key").WithBaseURL(srv.URL).Synthesize(context.Background(), "hello", "voice-1")
	require.NoError(t, err)
	assert.Equal(t, audio.FormatMP3, clip.Format)
	assert.Equal(t, "ID3-mp3-bytes", string(clip.Data))
}

func TestElevenLabsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewElevenLabs("key").WithBaseURL(srv.URL).Synthesize(context.Background(), "hello", "v")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
	assert.True(t, pe.Transient())
}

func TestElevenLabsCloneVoice(t *testing.T) {
	sample := filepath.Join(t.TempDir(), "ceo.mp3")
	require.NoError(t, os.WriteFile(sample, []byte("sample-audio"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/voices/add", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Aria Chen", r.FormValue("name"))
		f, hdr, err := r.FormFile("files")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			assert.Equal(t, "sample-audio", string(data))
			assert.Equal(t, "ceo.mp3", hdr.Filename)
		}
		w.Write([]byte(`{"voice_id":"new-voice"}`))
	}))
	defer srv.Close()

	id, err := NewElevenLabs("key").WithBaseURL(srv.URL).CloneVoice(context.Background(), "Aria Chen", "desc", sample)
	require.NoError(t, err)
	assert.Equal(t, "new-voice", id)
}

func TestElevenLabsCloneMissingSampleMakesNoCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := NewElevenLabs("key").WithBaseURL(srv.URL).CloneVoice(context.Background(), "x", "", "/does/not/exist.mp3")
	assert.Error(t, err)
	assert.False(t, called)
}

func TestElevenLabsUnavailableWithoutKey(t *testing.T) {
	el := NewElevenLabs("")
	assert.False(t, el.Available())
	_, err := el.Synthesize(context.Background(), "hello", "v")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func geminiAudioHandler(t *testing.T, check func(r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		check(r)
		var req geminiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Kore", req.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
		pcm := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;rate=24000","data":"` + pcm + `"}}]}}]}`))
	}
}

func TestGeminiSynthesize(t *testing.T) {
	srv := httptest.NewServer(geminiAudioHandler(t, func(r *http.Request) {
		assert.Equal(t, "/models/"+geminiTTSModel+":generateContent", r.URL.Path)
		assert.Equal(t, "gkey", r.Header.Get("x-goog-api-key"))
	}))
	defer srv.Close()

	clip, err := NewGemini("gkey").WithBaseURL(srv.URL).Synthesize(context.Background(), "hello", "Kore")
	require.NoError(t, err)
	assert.Equal(t, audio.FormatPCM, clip.Format)
	assert.Equal(t, audio.DefaultPCMRate, clip.SampleRate)
	assert.Equal(t, []byte{1, 2, 3, 4}, clip.Data)
}

func TestGeminiNoAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := NewGemini("gkey").WithBaseURL(srv.URL).Synthesize(context.Background(), "hello", "Kore")
	assert.ErrorContains(t, err, "no audio")
}

func TestVertexSynthesize(t *testing.T) {
	srv := httptest.NewServer(geminiAudioHandler(t, func(r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"})
	v := NewVertexWithTokenSource("proj", "", ts).WithEndpoint(srv.URL)
	clip, err := v.Synthesize(context.Background(), "hello", "Kore")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, clip.Data)
}

func TestAvailableVoices(t *testing.T) {
	for _, name := range Providers {
		voices, err := AvailableVoices(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, voices, name)
	}

	voices, err := AvailableVoices("polly")
	require.NoError(t, err)
	var fallbacks []string
	for _, v := range voices {
		if v.Fallback {
			fallbacks = append(fallbacks, v.ID)
		}
	}
	assert.Equal(t, pollyFallbackVoices, fallbacks)

	_, err = AvailableVoices("nope")
	assert.Error(t, err)
}

type fakeSpeechClient struct {
	req  *texttospeechpb.SynthesizeSpeechRequest
	resp *texttospeechpb.SynthesizeSpeechResponse
	err  error
}

func (f *fakeSpeechClient) SynthesizeSpeech(_ context.Context, req *texttospeechpb.SynthesizeSpeechRequest, _ ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeSpeechClient) Close() error { return nil }

func TestLanguageFromVoice(t *testing.T) {
	tests := map[string]string{
		"en-US-Chirp3-HD-Kore":   "en-US",
		"en-GB-Chirp3-HD-Zephyr": "en-GB",
		"Kore":                   "en-US",
		"":                       "en-US",
	}
	for voice, want := range tests {
		assert.Equal(t, want, languageFromVoice(voice), voice)
	}
}

func TestGoogleSynthesize(t *testing.T) {
	fake := &fakeSpeechClient{resp: &texttospeechpb.SynthesizeSpeechResponse{AudioContent: []byte("ID3")}}
	g := &Google{client: fake}

	clip, err := g.Synthesize(context.Background(), "Hello there.", "en-GB-Chirp3-HD-Zephyr")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3"), clip.Data)
	assert.Equal(t, audio.FormatMP3, clip.Format)

	require.NotNil(t, fake.req)
	assert.Equal(t, "Hello there.", fake.req.GetInput().GetText())
	assert.Equal(t, "en-GB", fake.req.GetVoice().GetLanguageCode())
	assert.Equal(t, "en-GB-Chirp3-HD-Zephyr", fake.req.GetVoice().GetName())
	assert.Equal(t, texttospeechpb.AudioEncoding_MP3, fake.req.GetAudioConfig().GetAudioEncoding())
}

func TestGoogleEmptyAudio(t *testing.T) {
	g := &Google{client: &fakeSpeechClient{resp: &texttospeechpb.SynthesizeSpeechResponse{}}}
	_, err := g.Synthesize(context.Background(), "Hello.", "en-US-Chirp3-HD-Kore")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "empty audio content")
}

func TestGoogleErrorStatus(t *testing.T) {
	tests := []struct {
		code      codes.Code
		status    int
		transient bool
	}{
		{codes.PermissionDenied, http.StatusForbidden, false},
		{codes.Unauthenticated, http.StatusUnauthorized, false},
		{codes.InvalidArgument, http.StatusBadRequest, false},
		{codes.ResourceExhausted, http.StatusTooManyRequests, true},
		{codes.Unavailable, http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			g := &Google{client: &fakeSpeechClient{err: status.Error(tt.code, "nope")}}
			_, err := g.Synthesize(context.Background(), "Hello.", "en-US-Chirp3-HD-Kore")
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, tt.transient, pe.Transient())
		})
	}
}

type fakePolly struct {
	in   *polly.SynthesizeSpeechInput
	data []byte
	err  error
}

func (f *fakePolly) SynthesizeSpeech(_ context.Context, in *polly.SynthesizeSpeechInput, _ ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &polly.SynthesizeSpeechOutput{AudioStream: io.NopCloser(strings.NewReader(string(f.data)))}, nil
}

func TestPollySynthesize(t *testing.T) {
	fake := &fakePolly{data: []byte("ID3")}
	p := NewPollyWithClient(fake)

	clip, err := p.Synthesize(context.Background(), "Hello.", "Amy")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3"), clip.Data)
	assert.Equal(t, audio.FormatMP3, clip.Format)

	require.NotNil(t, fake.in)
	assert.Equal(t, pollytypes.EngineGenerative, fake.in.Engine)
	assert.Equal(t, pollytypes.VoiceId("Amy"), fake.in.VoiceId)
	assert.Equal(t, pollytypes.LanguageCodeEnGb, fake.in.LanguageCode)
	assert.Equal(t, "Hello.", *fake.in.Text)

	_, err = p.Synthesize(context.Background(), "Hello.", "Unknown")
	require.NoError(t, err)
	assert.Equal(t, pollytypes.LanguageCodeEnUs, fake.in.LanguageCode)
}

func TestPollyFailures(t *testing.T) {
	_, err := NewPollyWithClient(&fakePolly{}).Synthesize(context.Background(), "Hello.", "Ruth")
	assert.ErrorContains(t, err, "empty audio stream")

	_, err = NewPollyWithClient(&fakePolly{err: errors.New("throttled")}).Synthesize(context.Background(), "Hello.", "Ruth")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "polly", pe.Provider)
}
