package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Default values applied by [LoadFromReader] when the file leaves a field
// unset.
const (
	DefaultSampleRate  = 16000
	DefaultListenAddr  = ":9090"
	DefaultMaxSteps    = 50
	DefaultAudioDevice = "default"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"asr":   {"glm", "openai", "whisper"},
	"agent": {"glm", "openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment
// references in credentials, applies defaults, and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	expandEnv(cfg)
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv resolves ${VAR} references in API keys so secrets never need to
// live in the config file itself.
func expandEnv(cfg *Config) {
	cfg.Providers.ASR.APIKey = os.ExpandEnv(cfg.Providers.ASR.APIKey)
	for i := range cfg.Providers.ASRFallbacks {
		cfg.Providers.ASRFallbacks[i].APIKey = os.ExpandEnv(cfg.Providers.ASRFallbacks[i].APIKey)
	}
	cfg.Providers.Agent.APIKey = os.ExpandEnv(cfg.Providers.Agent.APIKey)
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = LogInfo
	}
	if cfg.App.MaxSteps == 0 {
		cfg.App.MaxSteps = DefaultMaxSteps
	}
	if cfg.Audio.Backend == "" {
		cfg.Audio.Backend = BackendMiniaudio
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = DefaultListenAddr
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.App.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("app.log_level %q is invalid; valid values: debug, info, warn, error", cfg.App.LogLevel))
	}
	if cfg.App.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("app.max_steps %d is negative", cfg.App.MaxSteps))
	}

	if !cfg.Audio.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("audio.backend %q is invalid; valid values: miniaudio, fake", cfg.Audio.Backend))
	}
	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is out of range [8000, 48000]", cfg.Audio.SampleRate))
	}

	validateProviderName("asr", cfg.Providers.ASR.Name)
	for i, entry := range cfg.Providers.ASRFallbacks {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.asr_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("asr", entry.Name)
	}
	validateProviderName("agent", cfg.Providers.Agent.Name)

	if cfg.Providers.ASR.Name == "" && len(cfg.Providers.ASRFallbacks) > 0 {
		errs = append(errs, errors.New("providers.asr_fallbacks requires a primary providers.asr"))
	}
	if cfg.Providers.ASR.Name == "" {
		slog.Warn("no ASR provider configured; voice input will be unavailable")
	}
	if cfg.Providers.Agent.Name == "" {
		errs = append(errs, errors.New("providers.agent.name is required"))
	}

	if t := cfg.Correction.PhoneticThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("correction.phonetic_threshold %.2f is out of range [0, 1]", t))
	}
	if t := cfg.Correction.FuzzyThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("correction.fuzzy_threshold %.2f is out of range [0, 1]", t))
	}
	for i, entity := range cfg.Correction.Entities {
		if entity == "" {
			errs = append(errs, fmt.Errorf("correction.entities[%d] is empty", i))
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr == "" {
		errs = append(errs, errors.New("metrics.listen_addr is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
