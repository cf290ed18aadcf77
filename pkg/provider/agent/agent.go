// Package agent defines the Session interface for task-executing agent
// backends.
//
// A session wraps an agent's step-by-step execution contract: Reset clears
// all prior conversation state, and repeated Step calls advance one task from
// its opening text to a terminal outcome. The agent's internal reasoning and
// device actions are opaque to callers; only the per-step thinking/action
// notes and the terminal flag cross the boundary.
//
// A session holds mutable per-task state and is NOT safe for concurrent Step
// calls: the caller serializes them (the orchestrator issues at most one
// step at a time).
package agent

import (
	"context"
	"errors"
)

// ErrTerminal is returned by Step when the current task has already reached a
// terminal outcome and Reset has not been called since.
var ErrTerminal = errors.New("agent: task already reached a terminal state")

// ErrNotStarted is returned by a continuation Step (empty task text) when no
// task has been opened since the last Reset.
var ErrNotStarted = errors.New("agent: no task in progress")

// ErrAlreadyStarted is returned by an opening Step (non-empty task text) when
// a task is already in progress.
var ErrAlreadyStarted = errors.New("agent: task already in progress")

// StepResult is the outcome of one agent step.
type StepResult struct {
	// Thinking is the agent's reasoning note for this step.
	Thinking string

	// Action is the action the agent took (or decided to take) this step.
	Action string

	// Finished is true when this step completed the task. No further Step
	// calls are valid until Reset.
	Finished bool

	// Message is the agent's closing summary. Only meaningful when Finished
	// is true.
	Message string
}

// Session is the abstraction over any step-wise agent backend.
type Session interface {
	// Reset clears all prior step and conversation state. It is idempotent
	// and must be called before the first step of every new task.
	Reset()

	// Step advances the task by one agent step. The first call of a task
	// supplies the task text; subsequent calls supply an empty string and
	// continue the in-progress task. A call may block for an unbounded
	// duration; cancel ctx to abandon it.
	//
	// Calling Step with text after a task has started returns
	// [ErrAlreadyStarted]; a continuation call before any task has started
	// returns [ErrNotStarted]; any call after a terminal outcome returns
	// [ErrTerminal]. Any other error marks the task as terminally failed.
	Step(ctx context.Context, text string) (*StepResult, error)
}
