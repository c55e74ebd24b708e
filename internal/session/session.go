// Package session holds per-visitor kiosk state: progression counters, the
// current conversation and the speaking indicator. Nothing here is durable.
package session

import (
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned for unknown or already-ended session ids.
var ErrNotFound = errors.New("session not found")

// Role tags a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Speaker drives the presentation-only speaking animation.
type Speaker string

const (
	SpeakerNone      Speaker = "none"
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one transcript entry. Notice marks a system-style message (a
// degraded reply) that must never be voiced or credited as persona output.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Notice  bool      `json:"notice,omitempty"`
	At      time.Time `json:"at"`
}

// Session is one visitor interaction. Callers serialize access through
// Manager.With; the methods themselves do no locking.
type Session struct {
	ID          string
	VisitorName string
	AvatarPath  string
	LeaderID    string

	XP             int
	QuestionsAsked int
	leadersChatted map[string]struct{}

	Conversation []Turn
	Speaking     Speaker

	// assistant replies since the last leader switch, used for insight cards
	RepliesThisLeader int

	CreatedAt time.Time
	LastSeen  time.Time
}

func newSession(id, visitor string, now time.Time) *Session {
	return &Session{
		ID:             id,
		VisitorName:    visitor,
		leadersChatted: make(map[string]struct{}),
		Speaking:       SpeakerNone,
		CreatedAt:      now,
		LastSeen:       now,
	}
}

// SelectLeader switches persona. The conversation resets; counters and the
// chatted set persist.
func (s *Session) SelectLeader(id string) {
	s.LeaderID = id
	s.leadersChatted[id] = struct{}{}
	s.Conversation = nil
	s.RepliesThisLeader = 0
	s.Speaking = SpeakerNone
}

// ClearLeader leaves the current persona without touching progression.
func (s *Session) ClearLeader() {
	s.LeaderID = ""
	s.Conversation = nil
	s.RepliesThisLeader = 0
	s.Speaking = SpeakerNone
}

// AppendTurn adds a turn to the transcript.
func (s *Session) AppendTurn(t Turn) {
	if t.At.IsZero() {
		t.At = time.Now()
	}
	s.Conversation = append(s.Conversation, t)
	if t.Role == RoleAssistant && !t.Notice {
		s.RepliesThisLeader++
	}
}

// Award credits one answered question worth xp points.
func (s *Session) Award(xp int) {
	if xp < 0 {
		xp = 0
	}
	s.QuestionsAsked++
	s.XP += xp
}

// LeadersChatted returns the distinct persona ids chatted with, sorted.
func (s *Session) LeadersChatted() []string {
	out := make([]string, 0, len(s.leadersChatted))
	for id := range s.leadersChatted {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LeadersChattedCount is len(LeadersChatted()) without the allocation.
func (s *Session) LeadersChattedCount() int { return len(s.leadersChatted) }

// History returns a copy of the conversation excluding notice turns, which
// are not part of what the persona said.
func (s *Session) History() []Turn {
	out := make([]Turn, 0, len(s.Conversation))
	for _, t := range s.Conversation {
		if t.Notice {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Snapshot is an immutable copy of the session for callers outside the lock.
type Snapshot struct {
	ID             string    `json:"session_id"`
	VisitorName    string    `json:"visitor_name"`
	AvatarPath     string    `json:"avatar_path,omitempty"`
	LeaderID       string    `json:"leader_id,omitempty"`
	XP             int       `json:"xp"`
	QuestionsAsked int       `json:"questions_asked"`
	LeadersChatted []string  `json:"leaders_chatted"`
	Conversation   []Turn    `json:"conversation"`
	Speaking       Speaker   `json:"who_speaking"`
	CreatedAt      time.Time `json:"created_at"`
	LastSeen       time.Time `json:"last_seen"`
}

// Snapshot copies the session.
func (s *Session) Snapshot() Snapshot {
	conv := make([]Turn, len(s.Conversation))
	copy(conv, s.Conversation)
	return Snapshot{
		ID:             s.ID,
		VisitorName:    s.VisitorName,
		AvatarPath:     s.AvatarPath,
		LeaderID:       s.LeaderID,
		XP:             s.XP,
		QuestionsAsked: s.QuestionsAsked,
		LeadersChatted: s.LeadersChatted(),
		Conversation:   conv,
		Speaking:       s.Speaking,
		CreatedAt:      s.CreatedAt,
		LastSeen:       s.LastSeen,
	}
}
