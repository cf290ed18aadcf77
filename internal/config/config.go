// Package config provides the configuration schema, loader, and provider
// registry for the AutoGLM voice task runner.
package config

import "log/slog"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to its log/slog equivalent. Unknown levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// AudioBackend selects the microphone capture implementation.
type AudioBackend string

const (
	// BackendMiniaudio captures from the system default input device.
	BackendMiniaudio AudioBackend = "miniaudio"

	// BackendFake is an in-process backend for tests and demos.
	BackendFake AudioBackend = "fake"
)

// IsValid reports whether b is a recognised audio backend.
func (b AudioBackend) IsValid() bool {
	return b == BackendMiniaudio || b == BackendFake
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	App        AppConfig        `yaml:"app"`
	Audio      AudioConfig      `yaml:"audio"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Correction CorrectionConfig `yaml:"correction"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// AppConfig holds task runner settings that are not tied to a provider.
type AppConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxSteps caps the number of agent steps per task. Tasks that exceed
	// the cap fail instead of looping. Zero means the built-in default.
	MaxSteps int `yaml:"max_steps"`

	// Device identifies the phone the agent operates, injected into the
	// agent system prompt (e.g. "pixel-8").
	Device string `yaml:"device"`
}

// AudioConfig holds microphone capture settings.
type AudioConfig struct {
	// Backend selects the capture implementation.
	Backend AudioBackend `yaml:"backend"`

	// SampleRate is the capture rate in Hz. Speech models expect 16000.
	SampleRate int `yaml:"sample_rate"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each entry selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	// ASR is the primary speech recognition provider.
	ASR ProviderEntry `yaml:"asr"`

	// ASRFallbacks lists providers tried in order when the primary fails.
	ASRFallbacks []ProviderEntry `yaml:"asr_fallbacks"`

	// Agent is the language model that plans and executes task steps.
	Agent ProviderEntry `yaml:"agent"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "glm", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	// ${VAR} references are expanded from the environment at load time.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g. "glm-4.5", "whisper-1").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// CorrectionConfig tunes the transcript entity correction pass.
type CorrectionConfig struct {
	// Entities lists canonical names (apps, contacts) that recognised text
	// is corrected towards. Empty disables correction.
	Entities []string `yaml:"entities"`

	// PhoneticThreshold is the minimum similarity for words that share a
	// phonetic code. Zero means the built-in default.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// FuzzyThreshold is the minimum similarity for words with no phonetic
	// agreement. Zero means the built-in default.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// MetricsConfig holds settings for the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled starts an HTTP server exposing /metrics and /health.
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the TCP address the metrics server listens on.
	ListenAddr string `yaml:"listen_addr"`
}
