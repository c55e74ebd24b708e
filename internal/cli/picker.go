package cli

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/apresai/summit/internal/persona"
)

var errPickerCancelled = errors.New("cancelled")

// style constants
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F26522")).
			MarginBottom(1)

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#F26522")).
			MarginBottom(1).
			PaddingBottom(0)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F26522")).
			Bold(true)

	nameStyle = lipgloss.NewStyle().
			Bold(true)

	roleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			PaddingLeft(6)

	currentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)
)

// pickerModel is the Bubble Tea model for choosing a leader.
type pickerModel struct {
	title     string
	leaders   []*persona.Persona
	current   string
	cursor    int
	width     int
	chosen    string
	cancelled bool
}

func newPickerModel(title string, leaders []*persona.Persona, current string) pickerModel {
	m := pickerModel{title: title, leaders: leaders, current: current}
	for i, p := range leaders {
		if p.ID == current {
			m.cursor = i
		}
	}
	return m
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.cancelled = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.leaders)-1 {
				m.cursor++
			}

		case "enter", " ":
			if len(m.leaders) > 0 {
				m.chosen = m.leaders[m.cursor].ID
				return m, tea.Quit
			}

		default:
			// number keys jump straight to a leader
			if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
				if n := int(msg.Runes[0] - '1'); n >= 0 && n < len(m.leaders) && n < 9 {
					m.cursor = n
					m.chosen = m.leaders[n].ID
					return m, tea.Quit
				}
			}
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	var b strings.Builder

	b.WriteString(headerBorder.Render(titleStyle.Render(m.title)))
	b.WriteString("\n")

	for i, p := range m.leaders {
		cursor := "  "
		if m.cursor == i {
			cursor = cursorStyle.Render("> ")
		}
		line := fmt.Sprintf("%s%d. %s %s  %s", cursor, i+1, p.Emoji, nameStyle.Render(p.Name), roleStyle.Render(p.Role))
		if p.ID == m.current {
			line += currentStyle.Render("  (current)")
		}
		b.WriteString(line + "\n")
		if m.cursor == i {
			b.WriteString(detailStyle.Render(p.Personality.CommunicationStyle) + "\n")
		}
	}

	b.WriteString(helpStyle.Render("  j/k or arrows to navigate | enter or 1-9 to choose | q to quit"))
	b.WriteString("\n")
	return b.String()
}

// pickLeader runs the picker and returns the chosen leader id.
func pickLeader(title string, leaders []*persona.Persona, current string) (string, error) {
	p := tea.NewProgram(newPickerModel(title, leaders, current))
	result, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("TUI error: %w", err)
	}
	final := result.(pickerModel)
	if final.cancelled || final.chosen == "" {
		return "", errPickerCancelled
	}
	return final.chosen, nil
}
