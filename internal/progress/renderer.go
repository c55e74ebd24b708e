// Package progress renders the visitor's XP panel and replies in a terminal.
package progress

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"

	"github.com/apresai/summit/internal/kiosk"
	"github.com/apresai/summit/internal/progression"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F26522")).
			Padding(0, 1)

	levelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F26522"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Italic(true)

	insightStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#04B575")).
			PaddingLeft(1).
			Italic(true)
)

// Renderer draws styled output on a TTY and plain lines elsewhere.
type Renderer struct {
	isTTY bool
	width int
}

// NewRenderer auto-detects TTY mode and terminal width for out.
func NewRenderer(out *os.File) *Renderer {
	tty := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())

	width := 80
	if tty {
		if w, _, err := term.GetSize(out.Fd()); err == nil && w > 0 {
			width = w
		}
	}
	return &Renderer{isTTY: tty, width: width}
}

// NewPlainRenderer never styles its output.
func NewPlainRenderer(width int) *Renderer { return &Renderer{width: width} }

// Panel renders the XP panel: level, bar, counters and earned badges.
func (r *Renderer) Panel(v kiosk.ProgressView) string {
	next := fmt.Sprintf("%d XP to %s", v.Level.Next-v.XP, nextTitle(v.Level.Index))
	bar := renderBar(v.Fraction, r.barWidth())
	lines := []string{
		fmt.Sprintf("%s · level %d", v.Level.Title, v.Level.Index+1),
		fmt.Sprintf("%s %3d%%  %s XP", bar, int(v.Fraction*100), v.XPLabel),
		fmt.Sprintf("%d questions · %d/%d leaders · %s", v.QuestionsAsked, v.LeadersChatted, v.TotalLeaders, next),
	}
	if len(v.Badges) > 0 {
		icons := make([]string, len(v.Badges))
		for i, b := range v.Badges {
			icons[i] = b.Icon + " " + b.Name
		}
		lines = append(lines, "Badges: "+strings.Join(icons, "  "))
	}

	if !r.isTTY {
		return strings.Join(lines, "\n")
	}
	lines[0] = levelStyle.Render(lines[0])
	lines[2] = dimStyle.Render(lines[2])
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// Reply renders one turn as the persona's answer or a notice.
func (r *Renderer) Reply(name string, res kiosk.TurnResult, elapsed time.Duration) string {
	var b strings.Builder
	if res.Degraded {
		if r.isTTY {
			b.WriteString(noticeStyle.Render(res.Reply))
		} else {
			b.WriteString(res.Reply)
		}
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(r.header(name, fmt.Sprintf("  (%s, +%d XP)", formatElapsed(elapsed), res.XPAwarded)))
	if r.isTTY {
		b.WriteString(lipgloss.NewStyle().Width(r.width - 2).Render(res.Reply))
	} else {
		b.WriteString(res.Reply)
	}
	b.WriteString("\n")
	b.WriteString(r.footer(res))
	return b.String()
}

// StreamHeader introduces a reply whose text is printed as it arrives.
func (r *Renderer) StreamHeader(name string) string { return r.header(name, "") }

// StreamEnd closes a streamed reply with its timing, XP, badges and insight.
func (r *Renderer) StreamEnd(res kiosk.TurnResult, elapsed time.Duration) string {
	line := fmt.Sprintf("(%s, +%d XP)", formatElapsed(elapsed), res.XPAwarded)
	if r.isTTY {
		line = dimStyle.Render(line)
	}
	return "\n" + line + "\n" + r.footer(res)
}

func (r *Renderer) footer(res kiosk.TurnResult) string {
	var b strings.Builder
	for _, badge := range res.NewBadges {
		fmt.Fprintf(&b, "New badge: %s %s\n", badge.Icon, badge.Name)
	}
	if res.Insight != "" {
		if r.isTTY {
			b.WriteString(insightStyle.Render("Insight: "+res.Insight) + "\n")
		} else {
			b.WriteString("Insight: " + res.Insight + "\n")
		}
	}
	return b.String()
}

func (r *Renderer) header(name, detail string) string {
	if r.isTTY {
		return levelStyle.Render(name) + dimStyle.Render(detail) + "\n"
	}
	return name + detail + "\n"
}

func nextTitle(index int) string {
	titles := progression.Titles()
	if index+1 < len(titles) {
		return titles[index+1]
	}
	return "the next milestone"
}

// barWidth returns the width available for the bar, accounting for the
// panel border, percent and XP label.
func (r *Renderer) barWidth() int {
	w := r.width - 24
	if w < 20 {
		w = 20
	}
	if w > 40 {
		w = 40
	}
	return w
}

// renderBar draws a [####....] style bar of the given width.
func renderBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	empty := width - filled
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", empty) + "]"
}

// formatElapsed formats a duration as M:SS.
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	mins := total / 60
	secs := total % 60
	return fmt.Sprintf("%d:%02d", mins, secs)
}
