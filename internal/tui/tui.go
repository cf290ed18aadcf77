// Package tui renders the interactive terminal front end: a status header,
// the live task event feed, and a text input for typed tasks.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hfyydd/Open-AutoGLM/internal/orchestrator"
)

// maxFeedLines bounds the on-screen event history.
const maxFeedLines = 200

// Controller is the narrow slice of the orchestrator the TUI drives.
type Controller interface {
	StartRecording() error
	StopRecording() error
	SubmitTask(text string) error
	Cancel() error
	State() orchestrator.State
}

var _ Controller = (*orchestrator.Orchestrator)(nil)

// EventMsg wraps one task event for the bubbletea update loop.
type EventMsg struct{ Event orchestrator.Event }

// StreamClosedMsg signals that the orchestrator shut down.
type StreamClosedMsg struct{}

type tickMsg time.Time

// Pre-computed styles, one per visual role.
var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	runStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	feedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	finishStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Model is the bubbletea model for the task runner UI.
type Model struct {
	ctrl   Controller
	events <-chan orchestrator.Event

	input         textinput.Model
	feed          []string
	status        string
	recording     bool
	recordingFor  time.Duration
	width, height int
	closed        bool
}

// New constructs the UI model over a controller and its event stream.
func New(ctrl Controller, events <-chan orchestrator.Event) Model {
	input := textinput.New()
	input.Placeholder = "type a task and press enter"
	input.CharLimit = 500
	input.Focus()

	return Model{
		ctrl:   ctrl,
		events: events,
		input:  input,
	}
}

// waitForEvent blocks on the subscription channel as a tea command.
func waitForEvent(events <-chan orchestrator.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return StreamClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick(), textinput.Blink)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+r":
			m.toggleRecording()
			return m, nil
		case "esc":
			if err := m.ctrl.Cancel(); err != nil {
				m.status = err.Error()
			}
			return m, nil
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if text == "" {
				return m, nil
			}
			if err := m.ctrl.SubmitTask(text); err != nil {
				m.status = err.Error()
			} else {
				m.status = ""
			}
			return m, nil
		}

	case tickMsg:
		if m.recording {
			m.recordingFor += 250 * time.Millisecond
		}
		return m, tick()

	case EventMsg:
		m.apply(msg.Event)
		return m, waitForEvent(m.events)

	case StreamClosedMsg:
		m.closed = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// toggleRecording flips between recording and stopped on one key. The
// decision keys off the controller's state, not the local flag: a recording
// can end without a transcribing event (empty capture, cancellation), and
// the toggle must not go stale when it does.
func (m *Model) toggleRecording() {
	var err error
	if m.ctrl.State() == orchestrator.StateRecording {
		err = m.ctrl.StopRecording()
		m.recording = false
	} else {
		err = m.ctrl.StartRecording()
	}
	if err != nil {
		m.status = err.Error()
		return
	}
	m.status = ""
}

// apply folds one task event into the visible state.
func (m *Model) apply(ev orchestrator.Event) {
	switch ev.Kind {
	case orchestrator.EventListening:
		m.recording = true
		m.recordingFor = 0
	case orchestrator.EventTranscribing,
		orchestrator.EventTranscriptionFailed,
		orchestrator.EventTaskFailed:
		m.recording = false
	}
	m.push(renderEvent(ev))
}

func (m *Model) push(line string) {
	m.feed = append(m.feed, line)
	if len(m.feed) > maxFeedLines {
		m.feed = m.feed[len(m.feed)-maxFeedLines:]
	}
}

// renderEvent maps one event to a styled feed line.
func renderEvent(ev orchestrator.Event) string {
	stamp := dimStyle.Render(ev.Time.Format("15:04:05"))
	switch ev.Kind {
	case orchestrator.EventStarted:
		return fmt.Sprintf("%s %s %s", stamp, runStyle.Render("task"), feedStyle.Render(ev.Text))
	case orchestrator.EventListening:
		return fmt.Sprintf("%s %s", stamp, recStyle.Render("listening"))
	case orchestrator.EventTranscribing:
		return fmt.Sprintf("%s %s", stamp, busyStyle.Render("transcribing"))
	case orchestrator.EventTranscriptionFailed:
		return fmt.Sprintf("%s %s %s", stamp, failStyle.Render("no transcript"), errStyle.Render(ev.Text))
	case orchestrator.EventThinking:
		return fmt.Sprintf("%s %s %s", stamp, busyStyle.Render("think"), feedStyle.Render(ev.Text))
	case orchestrator.EventActing:
		return fmt.Sprintf("%s %s %s", stamp, runStyle.Render("act"), feedStyle.Render(ev.Text))
	case orchestrator.EventStepFailed:
		return fmt.Sprintf("%s %s %s", stamp, failStyle.Render("step failed"), errStyle.Render(ev.Text))
	case orchestrator.EventFinished:
		return fmt.Sprintf("%s %s %s", stamp, finishStyle.Render("finished"), feedStyle.Render(ev.Text))
	case orchestrator.EventTaskFailed:
		return fmt.Sprintf("%s %s %s", stamp, failStyle.Render("task failed"), errStyle.Render(ev.Text))
	default:
		return fmt.Sprintf("%s %s", stamp, feedStyle.Render(ev.Text))
	}
}

// statusLine renders the state header.
func (m Model) statusLine() string {
	switch m.ctrl.State() {
	case orchestrator.StateRecording:
		return recStyle.Render(fmt.Sprintf("● REC %.1fs", m.recordingFor.Seconds()))
	case orchestrator.StateTranscribing:
		return busyStyle.Render("… transcribing")
	case orchestrator.StateRunning:
		return runStyle.Render("▸ running task")
	default:
		return idleStyle.Render("○ idle")
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.closed {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("AutoGLM"))
	b.WriteString("  ")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	// Show the tail of the feed that fits the window.
	visible := m.feed
	if m.height > 8 && len(visible) > m.height-8 {
		visible = visible[len(visible)-(m.height-8):]
	}
	if len(visible) == 0 {
		b.WriteString(dimStyle.Render("no tasks yet"))
		b.WriteString("\n")
	}
	for _, line := range visible {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(errStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("ctrl+r record · enter submit · esc cancel · ctrl+c quit"))
	return b.String()
}
