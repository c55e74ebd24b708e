package kiosk

import (
	"strings"

	"github.com/apresai/summit/internal/progression"
	"github.com/apresai/summit/internal/session"
)

// InsightEvery is how many genuine replies separate insight cards.
const InsightEvery = 3

// ProgressView is the XP panel.
type ProgressView struct {
	XP             int                 `json:"xp"`
	XPLabel        string              `json:"xp_label"`
	Level          progression.Level   `json:"level"`
	Fraction       float64             `json:"fraction"`
	QuestionsAsked int                 `json:"questions_asked"`
	LeadersChatted int                 `json:"leaders_chatted"`
	TotalLeaders   int                 `json:"total_leaders"`
	Badges         []progression.Badge `json:"badges"`
	AllBadges      []progression.Badge `json:"all_badges"`
}

// Progress returns the XP panel for a session.
func (s *Service) Progress(sid string) (ProgressView, error) {
	var v ProgressView
	err := s.Sessions.With(sid, func(sess *session.Session) error {
		v = s.progressOf(sess)
		return nil
	})
	return v, err
}

// SnapshotProgress builds the XP panel from a snapshot, such as the one End
// returns after the session is gone.
func (s *Service) SnapshotProgress(snap session.Snapshot) ProgressView {
	return s.viewOf(snap.XP, snap.QuestionsAsked, len(snap.LeadersChatted))
}

func (s *Service) progressOf(sess *session.Session) ProgressView {
	return s.viewOf(sess.XP, sess.QuestionsAsked, sess.LeadersChattedCount())
}

func (s *Service) viewOf(xp, questions, chatted int) ProgressView {
	total := s.Registry.Len()
	earned := progression.EarnedBadges(questions, chatted, total)
	if earned == nil {
		earned = []progression.Badge{}
	}
	return ProgressView{
		XP:             xp,
		XPLabel:        progression.FormatXP(xp),
		Level:          progression.LevelFor(xp),
		Fraction:       progression.ProgressFraction(xp),
		QuestionsAsked: questions,
		LeadersChatted: chatted,
		TotalLeaders:   total,
		Badges:         earned,
		AllBadges:      progression.Catalog(total),
	}
}

// Insight returns the current insight card for the session, or "".
func (s *Service) Insight(sid string) (string, error) {
	var out string
	err := s.Sessions.With(sid, func(sess *session.Session) error {
		hist := sess.History()
		for i := len(hist) - 1; i >= 0; i-- {
			if hist[i].Role == session.RoleAssistant {
				out = insightFor(sess.RepliesThisLeader, hist[i].Content)
				break
			}
		}
		return nil
	})
	return out, err
}

// insightFor shows the first sentence of every third reply.
func insightFor(replies int, text string) string {
	if replies == 0 || replies%InsightEvery != 0 {
		return ""
	}
	return FirstSentence(text)
}

// FirstSentence returns text up to and including the first sentence end.
func FirstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		return text[:i+1]
	}
	return text
}
