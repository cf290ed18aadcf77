// Package asr defines the Client interface for batch speech recognition
// backends.
//
// Unlike a streaming recognizer, an ASR client performs exactly one
// recognition call per finished audio buffer and returns the committed text.
// Implementations must not retry internally: retry and fallback policy
// belongs to the caller (see internal/resilience) so that the call count per
// client stays deterministic and testable.
//
// Implementations must be safe for concurrent use.
package asr

import (
	"context"
	"errors"
	"fmt"

	"github.com/hfyydd/Open-AutoGLM/pkg/audio"
)

// Kind classifies a recognition failure so the caller can present distinct
// remediation ("nothing heard" vs "service unreachable" vs "check your key").
type Kind int

const (
	// KindNetwork covers transport failures and unexpected HTTP statuses.
	KindNetwork Kind = iota

	// KindAuthorization covers rejected credentials (HTTP 401/403).
	KindAuthorization

	// KindEmptyResult means the service answered successfully but heard
	// nothing: the response carried an empty or missing text field.
	KindEmptyResult
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuthorization:
		return "authorization"
	case KindEmptyResult:
		return "empty result"
	default:
		return "unknown"
	}
}

// Error is the classified failure type returned by all ASR clients.
type Error struct {
	// Kind is the failure classification.
	Kind Kind

	// Provider names the client that produced the error (used in logs).
	Provider string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("asr: %s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("asr: %s: %s: %v", e.Provider, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure classification from err. ok is false when err
// does not wrap an *Error.
func KindOf(err error) (kind Kind, ok bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

// Client is the abstraction over any batch speech recognition backend.
type Client interface {
	// Transcribe performs one recognition call for the given buffer and
	// returns the recognised text trimmed of surrounding whitespace. A
	// successful call that yields no text fails with an *Error of
	// [KindEmptyResult]; all other failures are classified as
	// [KindNetwork] or [KindAuthorization].
	Transcribe(ctx context.Context, buf *audio.Buffer) (string, error)
}
