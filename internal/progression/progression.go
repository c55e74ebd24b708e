// Package progression maps a visitor's cumulative counters to a level, a
// title and a set of earned badges. Everything here is pure: no I/O, no state.
package progression

import (
	"fmt"
	"math"
)

// Level is one tier of the XP ladder.
type Level struct {
	Index int    `json:"level"`
	Title string `json:"title"`
	Base  int    `json:"base"`
	Next  int    `json:"next_threshold"`
}

type tier struct {
	threshold int
	title     string
}

// levels must stay ascending with levels[0].threshold == 0.
var levels = []tier{
	{0, "Observer"},
	{100, "Apprentice"},
	{300, "Strategist"},
	{600, "Advisor"},
	{1000, "Visionary"},
	{1500, "Oracle"},
}

// OpenEndedStep is added to the final threshold so progression never stops.
const OpenEndedStep = 500

// LevelFor returns the highest tier whose threshold is <= xp. Negative xp is
// treated as zero.
func LevelFor(xp int) Level {
	if xp < 0 {
		xp = 0
	}
	i := 0
	for j, t := range levels {
		if xp >= t.threshold {
			i = j
		}
	}
	next := levels[len(levels)-1].threshold + OpenEndedStep
	if i+1 < len(levels) {
		next = levels[i+1].threshold
	}
	return Level{
		Index: i,
		Title: levels[i].title,
		Base:  levels[i].threshold,
		Next:  next,
	}
}

// ProgressFraction is the position of xp between its tier base and the next
// threshold, clamped to [0, 1].
func ProgressFraction(xp int) float64 {
	lvl := LevelFor(xp)
	span := lvl.Next - lvl.Base
	if span <= 0 {
		return 1
	}
	f := float64(xp-lvl.Base) / float64(span)
	return math.Max(0, math.Min(1, f))
}

// Titles returns the level titles in ascending order.
func Titles() []string {
	out := make([]string, len(levels))
	for i, t := range levels {
		out[i] = t.title
	}
	return out
}

// FormatXP renders xp for compact display: 950 → "950", 1200 → "1.2K".
func FormatXP(xp int) string {
	if xp >= 1000 {
		return fmt.Sprintf("%.1fK", float64(xp)/1000)
	}
	return fmt.Sprintf("%d", xp)
}
