// Package mock provides a test double for the agent.Session interface.
//
// Use Session in unit tests to script a sequence of step outcomes and to
// verify the task texts an orchestrator submits, without a live agent backend.
// All fields are safe to set before calling any method; mutating them during a
// concurrent call is the caller's responsibility.
//
// Example:
//
//	s := &mock.Session{
//	    Results: []*agent.StepResult{
//	        {Thinking: "open the app", Action: `tap(element="Clock")`},
//	        {Finished: true, Message: "done"},
//	    },
//	}
package mock

import (
	"context"
	"sync"

	"github.com/hfyydd/Open-AutoGLM/pkg/provider/agent"
)

// StepCall records a single invocation of Step.
type StepCall struct {
	// Ctx is the context passed to Step.
	Ctx context.Context
	// Text is the task text passed to Step. Empty for continuation steps.
	Text string
}

// Session is a mock implementation of agent.Session.
//
// Each Step call consumes the next entry of Results. When Results runs out,
// Step returns a finished result so loops driven by the mock always
// terminate. Set Err to inject an error instead.
type Session struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Results is the sequence of step outcomes returned by Step, in order.
	Results []*agent.StepResult

	// Err, if non-nil, is returned by every Step call instead of a result.
	Err error

	// Block, if non-nil, makes Step wait until the channel is closed or the
	// context is cancelled. Use it to hold a step in flight.
	Block chan struct{}

	// --- Call records (read after test) ---

	// StepCalls records every invocation of Step in order.
	StepCalls []StepCall

	// ResetCalls counts invocations of Reset.
	ResetCalls int

	next int
}

// Compile-time assertion that Session satisfies agent.Session.
var _ agent.Session = (*Session)(nil)

// Reset implements agent.Session. It rewinds the scripted results so the
// session can run another task.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCalls++
	s.next = 0
}

// Step implements agent.Session.
func (s *Session) Step(ctx context.Context, text string) (*agent.StepResult, error) {
	s.mu.Lock()
	s.StepCalls = append(s.StepCalls, StepCall{Ctx: ctx, Text: text})
	block := s.Block
	err := s.Err
	var result *agent.StepResult
	if err == nil {
		if s.next < len(s.Results) {
			result = s.Results[s.next]
			s.next++
		} else {
			result = &agent.StepResult{Finished: true, Message: "done"}
		}
	}
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StepCount returns the number of Step invocations so far.
func (s *Session) StepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.StepCalls)
}
