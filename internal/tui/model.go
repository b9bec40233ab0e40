package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/lunavoice/luna/core"
	"github.com/lunavoice/luna/core/events"
)

// Controls is the slice of the orchestrator the UI drives.
type Controls interface {
	StartListening(ctx context.Context) error
	StopListening()
	Reset()
}

type orbState int

const (
	orbHidden orbState = iota
	orbIdle
	orbListening
	orbProcessing
	orbSpeaking
)

var (
	orbIdleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	orbListeningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	orbSpeakingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	userStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	assistantStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type transcriptLine struct {
	speaker string
	text    string
	isError bool
}

// Model is the bubbletea model for the assistant window.
type Model struct {
	bridge   *Bridge
	controls Controls

	orb    orbState
	status string
	lines  []transcriptLine

	spinner  spinner.Model
	viewport viewport.Model
	width    int
	ready    bool
}

func NewModel(bus *orchestration.Bus, controls Controls) Model {
	indicator := spinner.New()
	indicator.Spinner = spinner.Dot
	indicator.Style = orbSpeakingStyle

	return Model{
		bridge:   NewBridge(bus),
		controls: controls,
		orb:      orbIdle,
		status:   "Press space to talk.",
		spinner:  indicator,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.bridge.Wait())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.bridge.Close()
			return m, tea.Quit
		case " ", "space":
			if m.orb == orbListening {
				m.controls.StopListening()
				return m, nil
			}
			if err := m.controls.StartListening(context.Background()); err != nil {
				m.status = err.Error()
			}
			return m, nil
		case "r":
			m.controls.Reset()
			return m, nil
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		chrome := 4 // orb line, blank, blank, help line
		if !m.ready {
			m.viewport = viewport.New(msg.Width, max(msg.Height-chrome, 1))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = max(msg.Height-chrome, 1)
		}
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EventMsg:
		m.applyEvent(msg.Event)
		return m, m.bridge.Wait()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) applyEvent(event events.Event) {
	switch event := event.(type) {
	case events.ListeningStarted:
		m.orb = orbListening
		m.status = "Listening..."
	case events.ListeningStopped:
		m.orb = orbProcessing
		m.status = "Thinking..."
	case events.ProcessingStarted:
		m.orb = orbProcessing
		m.status = "Thinking..."
		m.appendLine(transcriptLine{speaker: "You", text: event.Transcript})
	case events.ResponseFull:
		m.orb = orbSpeaking
		m.status = "Speaking..."
		m.appendLine(transcriptLine{speaker: "Luna", text: event.Text})
	case events.ConversationEnded:
		m.orb = orbIdle
		m.status = "Press space to talk."
	case events.ConversationReset:
		m.orb = orbIdle
		m.status = "Conversation reset."
		m.lines = nil
		m.refreshViewport()
	case events.OrbVisibility:
		if !event.Visible {
			m.orb = orbHidden
		} else if m.orb == orbHidden {
			m.orb = orbIdle
		}
	case events.ErrorReported:
		m.appendLine(transcriptLine{
			speaker: event.Source,
			text:    event.Err.Error(),
			isError: true,
		})
	}
}

func (m *Model) appendLine(line transcriptLine) {
	m.lines = append(m.lines, line)
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	var rendered []string
	for _, line := range m.lines {
		label := userStyle.Render(line.speaker + ":")
		if line.isError {
			label = errorStyle.Render(line.speaker + ":")
		} else if line.speaker == "Luna" {
			label = assistantStyle.Render(line.speaker + ":")
		}
		rendered = append(rendered, wordwrap.String(fmt.Sprintf("%s %s", label, line.text), m.viewport.Width))
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return ""
	}

	var orb string
	switch m.orb {
	case orbHidden:
		orb = " "
	case orbIdle:
		orb = orbIdleStyle.Render("●")
	case orbListening:
		orb = orbListeningStyle.Render("◉")
	case orbProcessing:
		orb = m.spinner.View()
	case orbSpeaking:
		orb = orbSpeakingStyle.Render("◍")
	}

	header := fmt.Sprintf("%s %s", orb, statusStyle.Render(m.status))
	help := helpStyle.Render("space: talk  r: reset  q: quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", header, m.viewport.View(), help)
}

// Run drives the terminal program until the user quits or ctx ends.
func Run(ctx context.Context, bus *orchestration.Bus, controls Controls) error {
	model := NewModel(bus, controls)
	program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := program.Run()
	model.bridge.Close()
	if err != nil && ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
