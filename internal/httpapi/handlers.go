package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/apresai/summit/internal/catalog"
	"github.com/apresai/summit/internal/kiosk"
	"github.com/apresai/summit/internal/persona"
	"github.com/apresai/summit/internal/session"
)

const (
	maxJSONBody      = 64 << 10
	maxRecordingBody = 10 << 20
	maxPhotoBody     = 15 << 20
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeKioskError maps service errors onto status codes.
func (s *Server) writeKioskError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, kiosk.ErrUnknownLeader):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, kiosk.ErrNoLeaderSelected):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, kiosk.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"leaders":  s.svc.Registry.Len(),
		"provider": s.opts.Provider,
		"version":  s.opts.Version,
	})
}

type leaderView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Summary     string `json:"summary"`
	AvatarImage string `json:"avatar_image,omitempty"`
	AccentColor string `json:"accent_color"`
	Emoji       string `json:"emoji"`
}

func toLeaderView(p *persona.Persona) leaderView {
	return leaderView{
		ID:          p.ID,
		Name:        p.Name,
		Role:        p.Role,
		Summary:     persona.Summary(p),
		AvatarImage: p.AvatarImage,
		AccentColor: p.AccentColor,
		Emoji:       p.Emoji,
	}
}

func (s *Server) handleLeaders(w http.ResponseWriter, _ *http.Request) {
	leaders := s.svc.Leaders()
	out := make([]leaderView, 0, len(leaders))
	for _, p := range leaders {
		out = append(out, toLeaderView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaders": out})
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	cat := r.URL.Query().Get("category")
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": catalog.Categories(),
		"questions":  catalog.Suggested(cat),
	})
}

func (s *Server) handleScenarios(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": catalog.Scenarios()})
}

type leaderboardEntry struct {
	Rank           int      `json:"rank"`
	VisitorName    string   `json:"visitor_name"`
	XP             int      `json:"xp"`
	LevelTitle     string   `json:"level_title"`
	QuestionsAsked int      `json:"questions_asked"`
	Badges         []string `json:"badges"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.opts.Leaderboard == nil {
		writeError(w, http.StatusNotFound, "leaderboard not configured")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 100)
	}
	items, err := s.opts.Leaderboard.Leaderboard(r.Context(), limit)
	if err != nil {
		s.writeKioskError(w, r, err)
		return
	}
	out := make([]leaderboardEntry, 0, len(items))
	for i, it := range items {
		out = append(out, leaderboardEntry{
			Rank:           i + 1,
			VisitorName:    it.VisitorName,
			XP:             it.XP,
			LevelTitle:     it.LevelTitle,
			QuestionsAsked: it.QuestionsAsked,
			Badges:         it.Badges,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

type startRequest struct {
	VisitorName string `json:"visitor_name"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	name := strings.TrimSpace(req.VisitorName)
	if name == "" {
		name = "Guest"
	}
	writeJSON(w, http.StatusCreated, s.svc.Start(name))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(r.PathValue("id"))
	if err != nil {
		s.writeKioskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("id")
	snap, err := s.svc.End(r.Context(), sid)
	if err != nil {
		s.writeKioskError(w, r, err)
		return
	}
	s.limits.forget(sid)
	writeJSON(w, http.StatusOK, snap)
}

type selectRequest struct {
	LeaderID string `json:"leader_id"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	snap, err := s.svc.SelectLeader(r.PathValue("id"), req.LeaderID)
	if err != nil {
		s.writeKioskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Back(r.PathValue("id"))
	if err != nil {
		s.writeKioskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type askRequest struct {
	Message string `json:"message"`
	Video   bool   `json:"video"`
	Live    bool   `json:"live"`
}

type askResponse struct {
	kiosk.TurnResult
	Question  string `json:"question"`
	Audio     string `json:"audio,omitempty"` // base64
	AudioMIME string `json:"audio_mime,omitempty"`
	AudioTier string `json:"audio_tier,omitempty"`
}

// handleAsk takes either a JSON question or a raw audio recording. For a
// recording, the video and live flags come from the query string.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("id")
	if _, err := s.svc.Snapshot(sid); err != nil {
		s.writeKioskError(w, r, err)
		return
	}
	if !s.limits.allow(sid) {
		w.Header().Set("Retry-After", "10")
		writeError(w, http.StatusTooManyRequests, "slow down: too many questions")
		return
	}

	var (
		question string
		res      kiosk.TurnResult
		err      error
	)
	if ct := r.Header.Get("Content-Type"); strings.HasPrefix(ct, "audio/") {
		data, rerr := io.ReadAll(io.LimitReader(r.Body, maxRecordingBody))
		if rerr != nil {
			writeError(w, http.StatusBadRequest, "could not read recording")
			return
		}
		q := r.URL.Query()
		opts := kiosk.AskOptions{Video: q.Get("video") == "true", Live: q.Get("live") == "true"}
		question, res, err = s.svc.AskRecording(r.Context(), sid, data, ct, opts)
	} else {
		var req askRequest
		if derr := decodeJSON(r, &req); derr != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		question = strings.TrimSpace(req.Message)
		res, err = s.svc.Ask(r.Context(), sid, req.Message, kiosk.AskOptions{Video: req.Video, Live: req.Live})
	}
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.limits.forget(sid)
		}
		s.writeKioskError(w, r, err)
		return
	}

	out := askResponse{TurnResult: res, Question: question}
	if res.Speech != nil {
		out.Audio = base64.StdEncoding.EncodeToString(res.Speech.Data)
		out.AudioMIME = res.Speech.MIME
		out.AudioTier = res.Speech.Tier
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("id")
	view, err := s.svc.Progress(sid)
	if err != nil {
		s.writeKioskError(w, r, err)
		return
	}
	insight, _ := s.svc.Insight(sid)
	writeJSON(w, http.StatusOK, map[string]any{"progress": view, "insight": insight})
}

// handleAvatar expects a multipart form with session_id and a photo file.
func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBody)
	if err := r.ParseMultipartForm(maxPhotoBody); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form with a photo")
		return
	}
	sid := r.FormValue("session_id")
	f, _, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo is required")
		return
	}
	defer f.Close()
	photo, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read photo")
		return
	}

	ref, method, err := s.svc.SetAvatar(r.Context(), sid, photo)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.writeKioskError(w, r, err)
			return
		}
		s.log.WarnContext(r.Context(), "Avatar generation failed", "session", sid, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "could not create avatar from this photo")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"avatar": ref, "method": method})
}
