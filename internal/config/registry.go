package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hfyydd/Open-AutoGLM/internal/capture"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/agent/phone"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/asr"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	asr   map[string]func(ProviderEntry) (asr.Client, error)
	agent map[string]func(ProviderEntry) (phone.Completer, error)
	audio map[string]func(AudioConfig) (capture.Backend, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		asr:   make(map[string]func(ProviderEntry) (asr.Client, error)),
		agent: make(map[string]func(ProviderEntry) (phone.Completer, error)),
		audio: make(map[string]func(AudioConfig) (capture.Backend, error)),
	}
}

// RegisterASR registers a speech recognition provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterASR(name string, factory func(ProviderEntry) (asr.Client, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[name] = factory
}

// RegisterAgent registers an agent completion backend factory under name.
func (r *Registry) RegisterAgent(name string, factory func(ProviderEntry) (phone.Completer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agent[name] = factory
}

// RegisterAudio registers a capture backend factory under name.
func (r *Registry) RegisterAudio(name string, factory func(AudioConfig) (capture.Backend, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio[name] = factory
}

// CreateASR instantiates a speech recognition client using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateASR(entry ProviderEntry) (asr.Client, error) {
	r.mu.RLock()
	factory, ok := r.asr[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateAgent instantiates an agent completion backend using the factory
// registered under entry.Name.
func (r *Registry) CreateAgent(entry ProviderEntry) (phone.Completer, error) {
	r.mu.RLock()
	factory, ok := r.agent[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: agent/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateAudio instantiates a capture backend using the factory registered
// under cfg.Backend.
func (r *Registry) CreateAudio(cfg AudioConfig) (capture.Backend, error) {
	r.mu.RLock()
	factory, ok := r.audio[string(cfg.Backend)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio/%q", ErrProviderNotRegistered, cfg.Backend)
	}
	return factory(cfg)
}
