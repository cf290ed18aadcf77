package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hfyydd/Open-AutoGLM/internal/orchestrator"
)

// fakeController records which operations the UI invoked.
type fakeController struct {
	state orchestrator.State

	startErr, submitErr error

	// emptyStop makes StopRecording behave like a zero-chunk recording:
	// the controller returns to idle without any event.
	emptyStop bool

	starts, stops, cancels int
	submitted              []string
}

func (f *fakeController) StartRecording() error {
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.state = orchestrator.StateRecording
	return nil
}

func (f *fakeController) StopRecording() error {
	f.stops++
	if f.emptyStop {
		f.state = orchestrator.StateIdle
	} else {
		f.state = orchestrator.StateTranscribing
	}
	return nil
}

func (f *fakeController) SubmitTask(text string) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, text)
	f.state = orchestrator.StateRunning
	return nil
}

func (f *fakeController) Cancel() error {
	f.cancels++
	f.state = orchestrator.StateIdle
	return nil
}

func (f *fakeController) State() orchestrator.State { return f.state }

func key(s string) tea.KeyMsg {
	switch s {
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model
}

func TestRecordToggle(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	m := New(ctrl, make(chan orchestrator.Event))

	m = update(t, m, key("ctrl+r"))
	if ctrl.starts != 1 {
		t.Fatalf("starts = %d, want 1", ctrl.starts)
	}

	// The UI tracks recording from the event stream, not the keypress.
	m = update(t, m, EventMsg{Event: orchestrator.Event{Kind: orchestrator.EventListening, Time: time.Now()}})

	m = update(t, m, key("ctrl+r"))
	if ctrl.stops != 1 {
		t.Fatalf("stops = %d, want 1", ctrl.stops)
	}
}

func TestRecordToggleAfterEmptyRecording(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{emptyStop: true}
	m := New(ctrl, make(chan orchestrator.Event))

	m = update(t, m, key("ctrl+r"))
	m = update(t, m, EventMsg{Event: orchestrator.Event{Kind: orchestrator.EventListening, Time: time.Now()}})

	// A recording with no captured audio ends silently: the controller goes
	// back to idle and no further event arrives.
	m = update(t, m, key("ctrl+r"))
	if ctrl.stops != 1 {
		t.Fatalf("stops = %d, want 1", ctrl.stops)
	}

	// The next toggle must start a fresh recording, not try to stop again.
	m = update(t, m, key("ctrl+r"))
	if ctrl.starts != 2 {
		t.Errorf("starts = %d, want 2", ctrl.starts)
	}
	if ctrl.stops != 1 {
		t.Errorf("stops = %d, want 1", ctrl.stops)
	}
	if m.status != "" {
		t.Errorf("status = %q, want empty", m.status)
	}
}

func TestRecordToggleAfterCancelledRecording(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	m := New(ctrl, make(chan orchestrator.Event))

	m = update(t, m, key("ctrl+r"))
	m = update(t, m, EventMsg{Event: orchestrator.Event{Kind: orchestrator.EventListening, Time: time.Now()}})

	// Cancelling mid-recording ends the task with a failure event only.
	m = update(t, m, key("esc"))
	m = update(t, m, EventMsg{Event: orchestrator.Event{Kind: orchestrator.EventTaskFailed, Text: "cancelled by user", Time: time.Now()}})
	if m.recording {
		t.Error("recording flag not cleared by task failure")
	}

	m = update(t, m, key("ctrl+r"))
	if ctrl.starts != 2 {
		t.Errorf("starts = %d, want 2", ctrl.starts)
	}
	if ctrl.stops != 0 {
		t.Errorf("stops = %d, want 0", ctrl.stops)
	}
}

func TestEnterSubmitsInput(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	m := New(ctrl, make(chan orchestrator.Event))
	m.input.SetValue("  open WeChat  ")

	m = update(t, m, key("enter"))
	if len(ctrl.submitted) != 1 || ctrl.submitted[0] != "open WeChat" {
		t.Fatalf("submitted = %v, want [open WeChat]", ctrl.submitted)
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
}

func TestEnterIgnoresBlankInput(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	m := New(ctrl, make(chan orchestrator.Event))
	m.input.SetValue("   ")

	update(t, m, key("enter"))
	if len(ctrl.submitted) != 0 {
		t.Fatalf("submitted = %v, want none", ctrl.submitted)
	}
}

func TestEscCancels(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{state: orchestrator.StateRunning}
	m := New(ctrl, make(chan orchestrator.Event))

	update(t, m, key("esc"))
	if ctrl.cancels != 1 {
		t.Fatalf("cancels = %d, want 1", ctrl.cancels)
	}
}

func TestOperationErrorShownInStatus(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{startErr: errors.New("microphone busy")}
	m := New(ctrl, make(chan orchestrator.Event))

	m = update(t, m, key("ctrl+r"))
	if !strings.Contains(m.View(), "microphone busy") {
		t.Error("operation error not rendered")
	}
}

func TestEventsAppendToFeed(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	m := New(ctrl, make(chan orchestrator.Event))

	now := time.Now()
	for _, ev := range []orchestrator.Event{
		{Kind: orchestrator.EventStarted, Text: "turn on the light", Time: now},
		{Kind: orchestrator.EventThinking, Text: "plan", Time: now},
		{Kind: orchestrator.EventActing, Text: "toggle", Time: now},
		{Kind: orchestrator.EventFinished, Text: "done", Time: now},
	} {
		m = update(t, m, EventMsg{Event: ev})
	}

	view := m.View()
	for _, want := range []string{"turn on the light", "plan", "toggle", "done"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestFeedIsBounded(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	m := New(ctrl, make(chan orchestrator.Event))

	for i := 0; i < maxFeedLines+50; i++ {
		m = update(t, m, EventMsg{Event: orchestrator.Event{
			Kind: orchestrator.EventThinking, Text: "x", Time: time.Now(),
		}})
	}
	if len(m.feed) != maxFeedLines {
		t.Errorf("feed length = %d, want %d", len(m.feed), maxFeedLines)
	}
}

func TestStreamCloseQuits(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	m := New(ctrl, make(chan orchestrator.Event))

	next, cmd := m.Update(StreamClosedMsg{})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("command did not produce tea.QuitMsg")
	}
	if !next.(Model).closed {
		t.Error("model not marked closed")
	}
}
