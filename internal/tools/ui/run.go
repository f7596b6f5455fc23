package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// actionTimeout bounds how long a seed or migrate action may run before the
// TUI gives up on it.
const actionTimeout = 2 * time.Minute

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	detailStyle = lipgloss.NewStyle().Faint(true)
)

type actionMsg struct {
	details []string
	err     error
}

// model drives a single ops action: spinner line while running, then the
// outcome with its detail bullets.
type model struct {
	title   string
	details []string
	err     error
	done    bool
	action  func(context.Context) ([]string, error)
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		details, err := m.action(ctx)
		return actionMsg{details: details, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case actionMsg:
		m.details = msg.details
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("campuslink " + m.title))
	b.WriteString("\n")
	switch {
	case !m.done:
		b.WriteString("\nRunning...\n")
		return b.String()
	case m.err != nil:
		b.WriteString(fmt.Sprintf("%s: %v\n", failStyle.Render("FAILED"), m.err))
	default:
		b.WriteString(okStyle.Render("OK") + "\n")
	}
	for _, d := range m.details {
		b.WriteString(detailStyle.Render("- "+d) + "\n")
	}
	return b.String()
}

// Run executes the action behind the TUI and hands back its outcome so the
// cobra command can set the exit code. CI mode never reaches this path.
func Run(title string, action func(context.Context) ([]string, error)) ([]string, error) {
	m := model{title: title, action: action}
	p := tea.NewProgram(m)
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	res := final.(model)
	return res.details, res.err
}
