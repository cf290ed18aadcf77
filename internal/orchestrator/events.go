package orchestrator

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the stage an [Event] reports.
type EventKind int

const (
	// EventStarted reports that a task was accepted; Text carries the task text.
	EventStarted EventKind = iota

	// EventListening reports that audio capture has begun.
	EventListening

	// EventTranscribing reports that a finished recording was handed to the
	// transcription provider.
	EventTranscribing

	// EventTranscriptionFailed reports a failed transcription; Text carries
	// the reason. Terminal for the voice attempt.
	EventTranscriptionFailed

	// EventThinking carries the agent's reasoning note for one step.
	EventThinking

	// EventActing carries the agent's action note for one step.
	EventActing

	// EventStepFailed reports a failed agent step; Text carries the reason.
	EventStepFailed

	// EventFinished reports task success; Text carries the agent's closing
	// message. Terminal.
	EventFinished

	// EventTaskFailed reports task failure or cancellation; Text carries the
	// reason. Terminal.
	EventTaskFailed
)

// String returns the kind's wire-stable name.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventListening:
		return "listening"
	case EventTranscribing:
		return "transcribing"
	case EventTranscriptionFailed:
		return "transcription_failed"
	case EventThinking:
		return "thinking"
	case EventActing:
		return "acting"
	case EventStepFailed:
		return "step_failed"
	case EventFinished:
		return "finished"
	case EventTaskFailed:
		return "task_failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the kind ends a task.
func (k EventKind) Terminal() bool {
	switch k {
	case EventTranscriptionFailed, EventFinished, EventTaskFailed:
		return true
	}
	return false
}

// Event is one entry of the ordered task event stream. Events are immutable
// and delivered to every subscriber in emission order.
type Event struct {
	// Kind identifies the stage this event reports.
	Kind EventKind

	// TaskID groups all events of one task, from capture through terminal
	// outcome. Voice tasks receive their ID when recording starts.
	TaskID uuid.UUID

	// Text is the kind-specific payload: task text for Started, note for
	// Thinking and Acting, reason for failures, closing message for Finished.
	// Empty for Listening and Transcribing.
	Text string

	// Time is when the event was emitted.
	Time time.Time
}
