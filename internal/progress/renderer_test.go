package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/apresai/summit/internal/kiosk"
	"github.com/apresai/summit/internal/progression"
)

func view(xp, questions int) kiosk.ProgressView {
	return kiosk.ProgressView{
		XP:             xp,
		XPLabel:        progression.FormatXP(xp),
		Level:          progression.LevelFor(xp),
		Fraction:       progression.ProgressFraction(xp),
		QuestionsAsked: questions,
		LeadersChatted: 1,
		TotalLeaders:   3,
		Badges:         progression.EarnedBadges(questions, 1, 3),
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{0, "[....]"},
		{0.5, "[##..]"},
		{1, "[####]"},
		{-1, "[....]"},
		{2, "[####]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, renderBar(tt.pct, 4))
	}
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0:05", formatElapsed(5*time.Second))
	assert.Equal(t, "2:03", formatElapsed(123*time.Second))
}

func TestPanelPlain(t *testing.T) {
	r := &Renderer{width: 80}
	out := r.Panel(view(150, 3))
	assert.Contains(t, out, "Apprentice · level 2")
	assert.Contains(t, out, "150 XP")
	assert.Contains(t, out, "150 XP to Strategist")
	assert.Contains(t, out, "3 questions · 1/3 leaders")
	assert.Contains(t, out, "Ice Breaker")
}

func TestPanelTopLevel(t *testing.T) {
	r := &Renderer{width: 80}
	out := r.Panel(view(1600, 32))
	assert.Contains(t, out, "Oracle")
	assert.Contains(t, out, "the next milestone")
}

func TestReplyPlain(t *testing.T) {
	r := &Renderer{width: 80}
	res := kiosk.TurnResult{
		Reply:     "Stay curious. Always.",
		XPAwarded: 50,
		NewBadges: progression.EarnedBadges(1, 1, 3)[:1],
		Insight:   "Stay curious.",
	}
	out := r.Reply("Aria Chen", res, 2*time.Second)
	assert.Contains(t, out, "Aria Chen  (0:02, +50 XP)")
	assert.Contains(t, out, "Stay curious. Always.")
	assert.Contains(t, out, "New badge: 🧊 Ice Breaker")
	assert.Contains(t, out, "Insight: Stay curious.")

	degraded := r.Reply("Aria Chen", kiosk.TurnResult{Reply: "*Connection issue*", Degraded: true}, time.Second)
	assert.Equal(t, "*Connection issue*\n", degraded)
}

func TestStreamedReplyPlain(t *testing.T) {
	r := &Renderer{width: 80}
	assert.Equal(t, "Aria Chen\n", r.StreamHeader("Aria Chen"))

	res := kiosk.TurnResult{
		Reply:     "Stay curious.",
		XPAwarded: 50,
		NewBadges: []progression.Badge{{Icon: "🧊", Name: "Ice Breaker"}},
	}
	assert.Equal(t, "\n(0:03, +50 XP)\nNew badge: 🧊 Ice Breaker\n", r.StreamEnd(res, 3*time.Second))
}
