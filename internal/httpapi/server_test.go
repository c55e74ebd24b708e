package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/summit/internal/archive"
	"github.com/apresai/summit/internal/avatar"
	"github.com/apresai/summit/internal/kiosk"
	"github.com/apresai/summit/internal/kiosk/kiosktest"
	"github.com/apresai/summit/internal/reply"
	"github.com/apresai/summit/internal/session"
)

func newTestServer(t *testing.T, gen *kiosktest.Generator, opts Options) *httptest.Server {
	t.Helper()
	svc := kiosk.New(kiosk.Deps{
		Registry:    kiosktest.Registry(t),
		Sessions:    session.NewManager(0),
		Replies:     reply.NewOrchestrator(gen, nil),
		Voice:       &kiosktest.Voice{},
		Avatars:     avatar.NewGenerator(nil, nil),
		AvatarStore: avatar.NewLocalStore(t.TempDir()),
	})
	ts := httptest.NewServer(New(svc, opts).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func startSession(t *testing.T, base string) string {
	t.Helper()
	var snap session.Snapshot
	code := doJSON(t, http.MethodPost, base+"/api/sessions", startRequest{VisitorName: "Jane"}, &snap)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, snap.ID)
	return snap.ID
}

func TestHealthAndLeaders(t *testing.T) {
	ts := newTestServer(t, &kiosktest.Generator{Text: "hi"}, Options{Provider: "fake", Version: "test"})

	var health map[string]any
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "fake", health["provider"])

	var leaders struct {
		Leaders []leaderView `json:"leaders"`
	}
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/leaders", nil, &leaders))
	require.Len(t, leaders.Leaders, 2)
	assert.Equal(t, "ceo", leaders.Leaders[0].ID)
}

func TestAskFlow(t *testing.T) {
	ts := newTestServer(t, &kiosktest.Generator{Text: "Lead by example."}, Options{})
	sid := startSession(t, ts.URL)

	var errBody errorBody
	code := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+sid+"/ask", askRequest{Message: "hi"}, &errBody)
	assert.Equal(t, http.StatusConflict, code)

	code = doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+sid+"/leader", selectRequest{LeaderID: "cfo"}, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code = doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+sid+"/leader", selectRequest{LeaderID: "ceo"}, nil)
	require.Equal(t, http.StatusOK, code)

	var out askResponse
	code = doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+sid+"/ask", askRequest{Message: "How do I lead?"}, &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Lead by example.", out.Reply)
	assert.Equal(t, "How do I lead?", out.Question)
	assert.Equal(t, 50, out.XPAwarded)
	assert.Equal(t, "audio/mpeg", out.AudioMIME)
	audio, err := base64.StdEncoding.DecodeString(out.Audio)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3audio"), audio)

	var prog struct {
		Progress kiosk.ProgressView `json:"progress"`
	}
	code = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+sid+"/progress", nil, &prog)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 50, prog.Progress.XP)
	assert.Equal(t, 1, prog.Progress.QuestionsAsked)

	var final session.Snapshot
	code = doJSON(t, http.MethodDelete, ts.URL+"/api/sessions/"+sid, nil, &final)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 50, final.XP)

	code = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+sid, nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAskDegradedHasNoAudio(t *testing.T) {
	ts := newTestServer(t, &kiosktest.Generator{Err: errors.New("boom")}, Options{})
	sid := startSession(t, ts.URL)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+sid+"/leader", selectRequest{LeaderID: "ceo"}, nil))

	var out askResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+sid+"/ask", askRequest{Message: "hi"}, &out))
	assert.True(t, out.Degraded)
	assert.Empty(t, out.Audio)
	assert.Zero(t, out.Progress.XP)
}

func TestAskEmptyMessage(t *testing.T) {
	ts := newTestServer(t, &kiosktest.Generator{Text: "x"}, Options{})
	sid := startSession(t, ts.URL)
	code := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+sid+"/ask", askRequest{Message: "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAskRateLimited(t *testing.T) {
	ts := newTestServer(t, &kiosktest.Generator{Text: "x"}, Options{AskRate: 1})
	sid := startSession(t, ts.URL)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+sid+"/leader", selectRequest{LeaderID: "ceo"}, nil))

	var codes []int
	for i := 0; i < askBurst+1; i++ {
		codes = append(codes, doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+sid+"/ask", askRequest{Message: "q"}, nil))
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	other := startSession(t, ts.URL)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+other+"/leader", selectRequest{LeaderID: "ceo"}, nil))
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+other+"/ask", askRequest{Message: "q"}, nil))
}

func TestLimitersFollowSessionLifetime(t *testing.T) {
	svc := kiosk.New(kiosk.Deps{
		Registry: kiosktest.Registry(t),
		Sessions: session.NewManager(time.Minute),
		Replies:  reply.NewOrchestrator(&kiosktest.Generator{Text: "x"}, nil),
		Voice:    &kiosktest.Voice{},
	})
	srv := New(svc, Options{AskRate: 60})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, ts.URL+"/api/sessions/nope/ask", askRequest{Message: "q"}, nil))
	assert.Equal(t, 0, srv.limits.len(), "unknown sessions get no bucket")

	sid := startSession(t, ts.URL)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+sid+"/leader", selectRequest{LeaderID: "ceo"}, nil))
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+sid+"/ask", askRequest{Message: "q"}, nil))
	assert.Equal(t, 1, srv.limits.len())
	assert.Equal(t, 0, srv.dropStaleLimiters())

	require.Equal(t, 1, svc.Sweep(context.Background(), time.Now().Add(time.Hour)))
	assert.Equal(t, 1, srv.dropStaleLimiters())
	assert.Equal(t, 0, srv.limits.len())
}

type fakeBoard struct{ items []archive.VisitItem }

func (f fakeBoard) Leaderboard(_ context.Context, limit int) ([]archive.VisitItem, error) {
	if limit < len(f.items) {
		return f.items[:limit], nil
	}
	return f.items, nil
}

func TestLeaderboard(t *testing.T) {
	ts := newTestServer(t, &kiosktest.Generator{Text: "x"}, Options{})
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, ts.URL+"/api/leaderboard", nil, nil))

	board := fakeBoard{items: []archive.VisitItem{
		{VisitorName: "Ana", XP: 400, LevelTitle: "Rising Leader"},
		{VisitorName: "Ben", XP: 150, LevelTitle: "Curious Mind"},
	}}
	ts = newTestServer(t, &kiosktest.Generator{Text: "x"}, Options{Leaderboard: board})
	var out struct {
		Entries []leaderboardEntry `json:"entries"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/leaderboard?limit=1", nil, &out))
	require.Len(t, out.Entries, 1)
	assert.Equal(t, leaderboardEntry{Rank: 1, VisitorName: "Ana", XP: 400, LevelTitle: "Rising Leader"}, out.Entries[0])

	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, ts.URL+"/api/leaderboard?limit=x", nil, nil))
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t, &kiosktest.Generator{Text: "x"}, Options{})
	var q struct {
		Categories []string `json:"categories"`
		Questions  []string `json:"questions"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/questions?category=strategy", nil, &q))
	assert.Contains(t, q.Categories, "general")
	assert.NotEmpty(t, q.Questions)

	var sc map[string]json.RawMessage
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/scenarios", nil, &sc))
	assert.Contains(t, sc, "scenarios")
}

func TestAvatarUpload(t *testing.T) {
	ts := newTestServer(t, &kiosktest.Generator{Text: "x"}, Options{})
	sid := startSession(t, ts.URL)

	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 4), G: 120, B: uint8(y * 5), A: 255})
		}
	}
	var photo bytes.Buffer
	require.NoError(t, png.Encode(&photo, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("session_id", sid))
	fw, err := mw.CreateFormFile("photo", "me.png")
	require.NoError(t, err)
	_, err = fw.Write(photo.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/avatar", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Avatar string `json:"avatar"`
		Method string `json:"method"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, string(avatar.MethodStylised), out.Method)
	assert.True(t, strings.HasSuffix(out.Avatar, "jane_avatar.png"))
	_, err = os.Stat(out.Avatar)
	assert.NoError(t, err)

	var snap session.Snapshot
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+sid, nil, &snap))
	assert.Equal(t, out.Avatar, snap.AvatarPath)
}
