// Package kiosk is the visitor-facing application layer. It owns the turn
// sequence for a session: record the question, ask the persona, then credit
// progress and voice the answer only when the answer is genuine.
package kiosk

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/apresai/summit/internal/avatar"
	"github.com/apresai/summit/internal/live"
	"github.com/apresai/summit/internal/observability"
	"github.com/apresai/summit/internal/persona"
	"github.com/apresai/summit/internal/progression"
	"github.com/apresai/summit/internal/reply"
	"github.com/apresai/summit/internal/session"
	"github.com/apresai/summit/internal/tts"
)

var (
	ErrNoLeaderSelected = errors.New("no leader selected")
	ErrUnknownLeader    = errors.New("unknown leader")
	ErrEmptyMessage     = errors.New("message is empty")
)

// DefaultXPPerQuestion is awarded for each genuine reply.
const DefaultXPPerQuestion = 50

// Voice produces speech for a persona reply; nil means silence.
type Voice interface {
	SynthesizeFor(ctx context.Context, p *persona.Persona, text string) *tts.Speech
}

// Lipsync animates a portrait with speech, or with the vendor's own voice
// reading text when no speech was produced.
type Lipsync interface {
	Available() bool
	Generate(ctx context.Context, imagePath string, speech []byte, filename string) (string, bool)
	GenerateFromText(ctx context.Context, imagePath, text, voiceID string) (string, bool)
}

// Archive records finished visits.
type Archive interface {
	RecordVisit(ctx context.Context, snap session.Snapshot, level progression.Level, badges []string) error
}

// Transcriber converts a recorded question to text; "" on failure.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) string
}

// Deps are the collaborators of a Service. Registry, Sessions, and Replies
// are required; everything else is optional.
type Deps struct {
	Registry *persona.Registry
	Sessions *session.Manager
	Replies  *reply.Orchestrator

	Voice       Voice
	Lipsync     Lipsync
	Live        *live.Responder
	Transcriber Transcriber
	Archive     Archive
	Avatars     *avatar.Generator
	AvatarStore avatar.Store

	Venue         persona.Venue
	XPPerQuestion int
	Logger        *slog.Logger
}

// Service runs kiosk sessions.
type Service struct {
	Deps
}

func New(d Deps) *Service {
	if d.XPPerQuestion <= 0 {
		d.XPPerQuestion = DefaultXPPerQuestion
	}
	if d.Logger == nil {
		d.Logger = observability.Discard()
	}
	if d.Venue == (persona.Venue{}) {
		d.Venue = persona.DefaultVenue
	}
	return &Service{Deps: d}
}

// Leaders lists the loaded personas in display order.
func (s *Service) Leaders() []*persona.Persona { return s.Registry.All() }

// Start opens a session for a visitor.
func (s *Service) Start(visitor string) session.Snapshot {
	snap := s.Sessions.Create(visitor)
	s.Logger.Info("session started", "session", snap.ID)
	return snap
}

// SelectLeader switches the session to a persona. The conversation resets;
// progress is kept.
func (s *Service) SelectLeader(sid, leaderID string) (session.Snapshot, error) {
	if !s.Registry.Has(leaderID) {
		return session.Snapshot{}, ErrUnknownLeader
	}
	var snap session.Snapshot
	err := s.Sessions.With(sid, func(sess *session.Session) error {
		sess.SelectLeader(leaderID)
		snap = sess.Snapshot()
		return nil
	})
	if err == nil {
		s.Logger.Info("leader selected", "session", sid, "leader", leaderID)
	}
	return snap, err
}

// Back leaves the current persona. Progress is kept.
func (s *Service) Back(sid string) (session.Snapshot, error) {
	var snap session.Snapshot
	err := s.Sessions.With(sid, func(sess *session.Session) error {
		sess.ClearLeader()
		snap = sess.Snapshot()
		return nil
	})
	return snap, err
}

// Snapshot returns the session state.
func (s *Service) Snapshot(sid string) (session.Snapshot, error) { return s.Sessions.Get(sid) }

// SetAvatar generates and stores a portrait for the visitor. The returned
// method tells whether the image model or the local filter produced it.
func (s *Service) SetAvatar(ctx context.Context, sid string, photo []byte) (string, avatar.Method, error) {
	if s.Avatars == nil || s.AvatarStore == nil {
		return "", "", errors.New("avatar generation not configured")
	}
	snap, err := s.Sessions.Get(sid)
	if err != nil {
		return "", "", err
	}
	img, method, err := s.Avatars.Generate(ctx, photo)
	if err != nil {
		return "", "", err
	}
	ref, err := s.AvatarStore.Save(ctx, snap.VisitorName, img)
	if err != nil {
		return "", "", err
	}
	err = s.Sessions.With(sid, func(sess *session.Session) error {
		sess.AvatarPath = ref
		return nil
	})
	return ref, method, err
}

// End closes the session and archives it. Archive failures are logged; the
// final snapshot is still returned.
func (s *Service) End(ctx context.Context, sid string) (session.Snapshot, error) {
	snap, err := s.Sessions.End(sid)
	if err != nil {
		return snap, err
	}
	s.archive(ctx, snap)
	s.Logger.Info("session ended", "session", sid, "xp", snap.XP, "questions", snap.QuestionsAsked)
	return snap, nil
}

// Sweep ends idle sessions and archives them.
func (s *Service) Sweep(ctx context.Context, now time.Time) int {
	stale := s.Sessions.Sweep(now)
	for _, snap := range stale {
		s.archive(ctx, snap)
	}
	if len(stale) > 0 {
		s.Logger.Info("idle sessions evicted", "count", len(stale))
	}
	return len(stale)
}

func (s *Service) archive(ctx context.Context, snap session.Snapshot) {
	if s.Archive == nil || snap.QuestionsAsked == 0 {
		return
	}
	badges := progression.BadgeIDs(progression.EarnedBadges(snap.QuestionsAsked, len(snap.LeadersChatted), s.Registry.Len()))
	if err := s.Archive.RecordVisit(ctx, snap, progression.LevelFor(snap.XP), badges); err != nil {
		s.Logger.Warn("visit archive failed", "session", snap.ID, "error", err)
	}
}

// RunSweeper evicts idle sessions every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(context.WithoutCancel(ctx), now)
		}
	}
}
