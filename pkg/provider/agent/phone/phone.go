// Package phone provides an agent.Session that drives a phone-automation
// agent over an OpenAI-compatible chat completions API.
//
// Each step sends the accumulated conversation to the model and parses the
// reply into a thinking note and one action expression. The model signals
// task completion with a finish(message="…") action. The conversation is held
// in memory for the lifetime of one task and wiped by Reset, so no state
// leaks between tasks.
package phone

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/hfyydd/Open-AutoGLM/pkg/provider/agent"
)

// defaultSystemPrompt instructs the model to emit exactly one action per
// reply in the expression form the parser understands.
const defaultSystemPrompt = `You are a phone automation agent. You operate the user's phone to complete their task one action at a time.

For every reply, first reason about the current state inside <think></think> tags, then emit exactly one action expression on its own line, for example:
  tap(element="Settings")
  type(text="hello")
  swipe(direction="up")
When the task is complete, emit:
  finish(message="<short summary of the outcome>")`

// continuePrompt is sent as the user turn for every step after the first.
const continuePrompt = "The action was performed. Continue with the next step."

// Completer is the narrow model-call contract the session needs. It is
// implemented by the openai-go and any-llm-go backends in this package.
type Completer interface {
	// Complete sends the conversation and returns the assistant reply text.
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Message is one turn of the conversation sent to the model.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the turn.
	Content string
}

// Compile-time assertion that Session satisfies agent.Session.
var _ agent.Session = (*Session)(nil)

// Session implements agent.Session by holding a per-task conversation and
// delegating each step to a Completer.
type Session struct {
	completer    Completer
	systemPrompt string
	deviceID     string

	mu       sync.Mutex
	history  []Message
	started  bool
	terminal bool
}

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithSystemPrompt replaces the built-in agent instructions.
func WithSystemPrompt(prompt string) Option {
	return func(s *Session) {
		if prompt != "" {
			s.systemPrompt = prompt
		}
	}
}

// WithDeviceID names the target device in the agent instructions. The agent
// backend uses it to address a specific connected phone.
func WithDeviceID(id string) Option {
	return func(s *Session) { s.deviceID = id }
}

// NewSession constructs a Session backed by the given Completer.
func NewSession(completer Completer, opts ...Option) (*Session, error) {
	if completer == nil {
		return nil, fmt.Errorf("phone: completer must not be nil")
	}
	s := &Session{
		completer:    completer,
		systemPrompt: defaultSystemPrompt,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Reset implements agent.Session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.started = false
	s.terminal = false
}

// Step implements agent.Session.
func (s *Session) Step(ctx context.Context, text string) (*agent.StepResult, error) {
	s.mu.Lock()
	switch {
	case s.terminal:
		s.mu.Unlock()
		return nil, agent.ErrTerminal
	case text != "" && s.started:
		s.mu.Unlock()
		return nil, agent.ErrAlreadyStarted
	case text == "" && !s.started:
		s.mu.Unlock()
		return nil, agent.ErrNotStarted
	}

	if text != "" {
		s.history = append(s.history, Message{Role: "system", Content: s.prompt()})
		s.history = append(s.history, Message{Role: "user", Content: text})
		s.started = true
	} else {
		s.history = append(s.history, Message{Role: "user", Content: continuePrompt})
	}
	messages := make([]Message, len(s.history))
	copy(messages, s.history)
	s.mu.Unlock()

	reply, err := s.completer.Complete(ctx, messages)
	if err != nil {
		s.mu.Lock()
		s.terminal = true
		s.mu.Unlock()
		return nil, fmt.Errorf("phone: step: %w", err)
	}

	result := parseStep(reply)

	s.mu.Lock()
	s.history = append(s.history, Message{Role: "assistant", Content: reply})
	if result.Finished {
		s.terminal = true
	}
	s.mu.Unlock()

	return &result, nil
}

// prompt returns the system prompt with the device line appended when a
// device ID is configured.
func (s *Session) prompt() string {
	if s.deviceID == "" {
		return s.systemPrompt
	}
	return s.systemPrompt + "\n\nTarget device: " + s.deviceID
}

var (
	// thinkRe captures the content of a <think></think> block.
	thinkRe = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

	// actionRe matches a single action expression on its own line.
	actionRe = regexp.MustCompile(`(?m)^[ \t]*([a-zA-Z_][a-zA-Z0-9_]*\(.*\))[ \t]*$`)

	// finishRe extracts the closing message from a finish action.
	finishRe = regexp.MustCompile(`(?s)^finish\((?:message=)?"?(.*?)"?\)$`)
)

// parseStep splits one model reply into the step's thinking note, action
// expression, and terminal flag.
//
// A reply with no recognisable action expression is treated as the agent
// answering in prose, which terminates the task with the reply as the
// closing message.
func parseStep(reply string) agent.StepResult {
	var result agent.StepResult

	rest := reply
	if m := thinkRe.FindStringSubmatch(reply); m != nil {
		result.Thinking = strings.TrimSpace(m[1])
		rest = thinkRe.ReplaceAllString(reply, "")
	}

	actions := actionRe.FindAllStringSubmatch(rest, -1)
	if len(actions) == 0 {
		text := strings.TrimSpace(rest)
		if result.Thinking == "" {
			result.Thinking = text
		}
		result.Finished = true
		result.Message = text
		return result
	}

	// The last action expression wins; some models restate earlier steps.
	result.Action = actions[len(actions)-1][1]

	if result.Thinking == "" {
		if idx := strings.Index(rest, result.Action); idx >= 0 {
			result.Thinking = strings.TrimSpace(rest[:idx])
		}
	}

	if m := finishRe.FindStringSubmatch(result.Action); m != nil {
		result.Finished = true
		result.Message = strings.TrimSpace(m[1])
	}
	return result
}
