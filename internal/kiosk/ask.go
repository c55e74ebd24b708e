package kiosk

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/apresai/summit/internal/live"
	"github.com/apresai/summit/internal/observability"
	"github.com/apresai/summit/internal/persona"
	"github.com/apresai/summit/internal/progression"
	"github.com/apresai/summit/internal/reply"
	"github.com/apresai/summit/internal/session"
	"github.com/apresai/summit/internal/tts"
)

// AskOptions select optional media for a turn.
type AskOptions struct {
	// Video requests a lip-synced clip when a lip-sync client is configured.
	Video bool
	// Live answers through the realtime voice model, whose transcription is
	// the reply. The text model and synthesis chain answer when it fails,
	// times out, or returns no transcription.
	Live bool
	// OnChunk receives reply text as it streams. Chunks from a failed
	// generation must be discarded by the receiver.
	OnChunk func(string)
}

// TurnResult is everything the presentation layer needs after a turn.
type TurnResult struct {
	Reply     string              `json:"reply"`
	Degraded  bool                `json:"degraded"`
	XPAwarded int                 `json:"xp_awarded"`
	NewBadges []progression.Badge `json:"new_badges,omitempty"`
	Speech    *tts.Speech         `json:"-"`
	VideoURL  string              `json:"video_url,omitempty"`
	Insight   string              `json:"insight,omitempty"`
	Progress  ProgressView        `json:"progress"`
	Speaking  session.Speaker     `json:"who_speaking"`
	LiveVoice string              `json:"live_voice,omitempty"` // live task outcome when requested
}

// Ask runs one visitor turn. Degraded replies are recorded as notices and
// earn nothing; only a genuine reply awards XP and is voiced.
func (s *Service) Ask(ctx context.Context, sid, message string, opts AskOptions) (TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return TurnResult{}, ErrEmptyMessage
	}

	ctx, span := observability.Tracer().Start(ctx, "kiosk.Ask")
	defer span.End()

	var res TurnResult
	err := s.Sessions.With(sid, func(sess *session.Session) error {
		if sess.LeaderID == "" {
			return ErrNoLeaderSelected
		}
		p, ok := s.Registry.Get(sess.LeaderID)
		if !ok {
			return ErrUnknownLeader
		}
		span.SetAttributes(attribute.String("persona.id", p.ID))

		history := toMessages(sess.History())
		sess.AppendTurn(session.Turn{Role: session.RoleUser, Content: message})
		sess.Speaking = session.SpeakerUser

		system := persona.BuildSystemPrompt(p, s.Venue)

		var (
			r      reply.Reply
			spoken *tts.Speech
		)
		if opts.Live && s.Live.Available() {
			r, spoken, res.LiveVoice = s.liveReply(ctx, live.Request{System: system, History: history, Message: message}, opts.OnChunk)
		}
		if spoken == nil {
			if opts.OnChunk != nil {
				r = s.Replies.Stream(ctx, system, history, message, opts.OnChunk)
			} else {
				r = s.Replies.GetReply(ctx, system, history, message)
			}
		}

		if r.Degraded {
			sess.AppendTurn(session.Turn{Role: session.RoleAssistant, Content: r.Text, Notice: true})
			sess.Speaking = session.SpeakerNone
			res.Reply, res.Degraded = r.Text, true
			res.Speaking = sess.Speaking
			res.Progress = s.progressOf(sess)
			span.SetAttributes(attribute.Bool("reply.degraded", true))
			return nil
		}

		before := progression.EarnedBadges(sess.QuestionsAsked, sess.LeadersChattedCount(), s.Registry.Len())
		sess.AppendTurn(session.Turn{Role: session.RoleAssistant, Content: r.Text})
		sess.Award(s.XPPerQuestion)
		after := progression.EarnedBadges(sess.QuestionsAsked, sess.LeadersChattedCount(), s.Registry.Len())
		sess.Speaking = session.SpeakerAssistant

		res.Reply = r.Text
		res.XPAwarded = s.XPPerQuestion
		res.NewBadges = newlyEarned(before, after)
		res.Insight = insightFor(sess.RepliesThisLeader, r.Text)
		res.Speaking = sess.Speaking
		res.Progress = s.progressOf(sess)

		res.Speech = spoken
		if res.Speech == nil && s.Voice != nil {
			res.Speech = s.Voice.SynthesizeFor(ctx, p, r.Text)
		}
		if opts.Video {
			res.VideoURL = s.video(ctx, p, res.Speech, r.Text)
		}
		return nil
	})
	return res, err
}

// AskRecording transcribes a recorded question and asks it.
func (s *Service) AskRecording(ctx context.Context, sid string, data []byte, mimeType string, opts AskOptions) (string, TurnResult, error) {
	if s.Transcriber == nil {
		return "", TurnResult{}, ErrEmptyMessage
	}
	text := s.Transcriber.Transcribe(ctx, data, mimeType)
	if strings.TrimSpace(text) == "" {
		return "", TurnResult{}, ErrEmptyMessage
	}
	res, err := s.Ask(ctx, sid, text, opts)
	return text, res, err
}

// liveReply asks the realtime voice model for the whole turn. Its spoken
// answer and transcription become the reply; speech is nil when the task did
// not succeed with both, and the text model answers instead.
func (s *Service) liveReply(ctx context.Context, req live.Request, onChunk func(string)) (reply.Reply, *tts.Speech, string) {
	task := s.Live.Start(ctx, req)
	select {
	case <-task.Done():
	case <-ctx.Done():
		task.Cancel()
	}
	lr := task.Wait()
	if !lr.OK() || lr.Text == "" {
		return reply.Reply{}, nil, lr.Outcome.String()
	}
	if onChunk != nil {
		onChunk(lr.Text)
	}
	return reply.Reply{Text: lr.Text, Latency: lr.Elapsed},
		&tts.Speech{Data: lr.Audio, MIME: "audio/wav", Tier: "live"},
		lr.Outcome.String()
}

// video animates the persona portrait. Without speech the lip-sync vendor
// reads the text itself.
func (s *Service) video(ctx context.Context, p *persona.Persona, speech *tts.Speech, text string) string {
	if s.Lipsync == nil || !s.Lipsync.Available() || p.AvatarImage == "" {
		return ""
	}
	start := time.Now()
	var (
		url string
		ok  bool
	)
	if speech == nil {
		url, ok = s.Lipsync.GenerateFromText(ctx, p.AvatarImage, text, "")
	} else {
		name := p.ID + ".mp3"
		if speech.MIME == "audio/wav" {
			name = p.ID + ".wav"
		}
		url, ok = s.Lipsync.Generate(ctx, p.AvatarImage, speech.Data, name)
	}
	if !ok {
		return ""
	}
	s.Logger.Info("reply video ready", "persona", p.ID, "elapsed", time.Since(start).Round(time.Millisecond))
	return url
}

func toMessages(turns []session.Turn) []reply.Message {
	out := make([]reply.Message, 0, len(turns))
	for _, t := range turns {
		role := reply.RoleUser
		if t.Role == session.RoleAssistant {
			role = reply.RoleAssistant
		}
		out = append(out, reply.Message{Role: role, Content: t.Content})
	}
	return out
}

func newlyEarned(before, after []progression.Badge) []progression.Badge {
	had := make(map[string]bool, len(before))
	for _, b := range before {
		had[b.ID] = true
	}
	var out []progression.Badge
	for _, b := range after {
		if !had[b.ID] {
			out = append(out, b)
		}
	}
	return out
}
