package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"studium/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	readyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	doneStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))
)

var artifactLabels = []struct {
	dataType string
	label    string
}{
	{"summary", "Summary"},
	{"vocabulary", "Vocabulary"},
	{"questions", "Quiz"},
	{"flashcards", "Flashcards"},
	{"grammar", "Grammar"},
}

type model struct {
	events <-chan session.Progress

	bar     progress.Model
	message string
	step    int
	total   int
	ready   map[string]bool
	done    bool
}

func initialModel(events <-chan session.Progress) model {
	return model{
		events: events,
		bar:    progress.New(progress.WithDefaultGradient()),
		ready:  make(map[string]bool),
	}
}

func waitForEvent(events <-chan session.Progress) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return nil
		}
		return event
	}
}

func (m model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 8
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}

	case session.Progress:
		m.message = msg.Message
		m.step = msg.Step
		m.total = msg.TotalSteps
		if msg.DataType != "" {
			m.ready[msg.DataType] = true
		}

		cmd := m.bar.SetPercent(msg.Percent)
		if msg.Terminal() {
			m.done = true
			return m, tea.Sequence(cmd, tea.Quit)
		}
		return m, tea.Batch(cmd, waitForEvent(m.events))

	case progress.FrameMsg:
		barModel, cmd := m.bar.Update(msg)
		m.bar = barModel.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Analyzing class"))
	if m.total > 0 {
		b.WriteString(messageStyle.Render(
			fmt.Sprintf("  step %d/%d", m.step, m.total),
		))
	}
	b.WriteString("\n\n")
	b.WriteString("  " + m.bar.View() + "\n\n")

	for _, artifact := range artifactLabels {
		if m.ready[artifact.dataType] {
			b.WriteString(readyStyle.Render("  ✓ " + artifact.label))
		} else {
			b.WriteString(pendingStyle.Render("  · " + artifact.label))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.done {
		b.WriteString(doneStyle.Render("  " + m.message))
	} else {
		b.WriteString(messageStyle.Render("  " + m.message))
	}
	b.WriteString("\n")

	return b.String()
}

// Run displays analysis progress until the run's terminal event arrives
// or the user quits.
func Run(events <-chan session.Progress) error {
	p := tea.NewProgram(initialModel(events))
	_, err := p.Run()
	return err
}
