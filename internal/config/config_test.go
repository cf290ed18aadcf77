package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hfyydd/Open-AutoGLM/internal/capture"
	"github.com/hfyydd/Open-AutoGLM/internal/config"
	"github.com/hfyydd/Open-AutoGLM/pkg/audio"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/agent/phone"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/asr"
)

const sampleYAML = `
app:
  log_level: info
  max_steps: 25
  device: pixel-8

audio:
  backend: fake
  sample_rate: 16000

providers:
  asr:
    name: glm
    api_key: zai-test
  asr_fallbacks:
    - name: openai
      api_key: sk-test
      model: whisper-1
  agent:
    name: glm
    api_key: zai-test
    model: glm-4.5

correction:
  entities:
    - WeChat
    - Taobao
  phonetic_threshold: 0.7

metrics:
  enabled: true
  listen_addr: ":9100"
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.App.LogLevel != config.LogInfo {
		t.Errorf("App.LogLevel = %q, want info", cfg.App.LogLevel)
	}
	if cfg.App.MaxSteps != 25 {
		t.Errorf("App.MaxSteps = %d, want 25", cfg.App.MaxSteps)
	}
	if cfg.App.Device != "pixel-8" {
		t.Errorf("App.Device = %q, want pixel-8", cfg.App.Device)
	}
	if cfg.Audio.Backend != config.BackendFake {
		t.Errorf("Audio.Backend = %q, want fake", cfg.Audio.Backend)
	}
	if cfg.Providers.ASR.Name != "glm" {
		t.Errorf("Providers.ASR.Name = %q, want glm", cfg.Providers.ASR.Name)
	}
	if len(cfg.Providers.ASRFallbacks) != 1 || cfg.Providers.ASRFallbacks[0].Model != "whisper-1" {
		t.Errorf("Providers.ASRFallbacks = %+v", cfg.Providers.ASRFallbacks)
	}
	if len(cfg.Correction.Entities) != 2 {
		t.Errorf("Correction.Entities = %v", cfg.Correction.Entities)
	}
	if cfg.Metrics.ListenAddr != ":9100" {
		t.Errorf("Metrics.ListenAddr = %q, want :9100", cfg.Metrics.ListenAddr)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
app:
  log_level: info
  colour_scheme: solarized
providers:
  agent:
    name: glm
`))
	if err == nil {
		t.Fatal("LoadFromReader() accepted an unknown field")
	}
}

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(`
providers:
  agent:
    name: glm
`))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if cfg.App.LogLevel != config.LogInfo {
		t.Errorf("default log level = %q, want info", cfg.App.LogLevel)
	}
	if cfg.App.MaxSteps != config.DefaultMaxSteps {
		t.Errorf("default max steps = %d, want %d", cfg.App.MaxSteps, config.DefaultMaxSteps)
	}
	if cfg.Audio.Backend != config.BackendMiniaudio {
		t.Errorf("default audio backend = %q, want miniaudio", cfg.Audio.Backend)
	}
	if cfg.Audio.SampleRate != config.DefaultSampleRate {
		t.Errorf("default sample rate = %d, want %d", cfg.Audio.SampleRate, config.DefaultSampleRate)
	}
}

func TestLoadFromReaderExpandsEnvInAPIKeys(t *testing.T) {
	t.Setenv("AUTOGLM_TEST_KEY", "secret-from-env")

	cfg, err := config.LoadFromReader(strings.NewReader(`
providers:
  asr:
    name: glm
    api_key: ${AUTOGLM_TEST_KEY}
  agent:
    name: glm
    api_key: ${AUTOGLM_TEST_KEY}
`))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if cfg.Providers.ASR.APIKey != "secret-from-env" {
		t.Errorf("ASR.APIKey = %q, want expanded value", cfg.Providers.ASR.APIKey)
	}
	if cfg.Providers.Agent.APIKey != "secret-from-env" {
		t.Errorf("Agent.APIKey = %q, want expanded value", cfg.Providers.Agent.APIKey)
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantSub string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.App.LogLevel = "verbose" },
			wantSub: "app.log_level",
		},
		{
			name:    "negative max steps",
			mutate:  func(c *config.Config) { c.App.MaxSteps = -1 },
			wantSub: "app.max_steps",
		},
		{
			name:    "bad audio backend",
			mutate:  func(c *config.Config) { c.Audio.Backend = "pulseaudio" },
			wantSub: "audio.backend",
		},
		{
			name:    "sample rate out of range",
			mutate:  func(c *config.Config) { c.Audio.SampleRate = 4000 },
			wantSub: "audio.sample_rate",
		},
		{
			name:    "fallback without name",
			mutate:  func(c *config.Config) { c.Providers.ASRFallbacks[0].Name = "" },
			wantSub: "asr_fallbacks[0].name",
		},
		{
			name: "fallbacks without primary",
			mutate: func(c *config.Config) {
				c.Providers.ASR = config.ProviderEntry{}
			},
			wantSub: "requires a primary",
		},
		{
			name:    "missing agent",
			mutate:  func(c *config.Config) { c.Providers.Agent.Name = "" },
			wantSub: "providers.agent.name",
		},
		{
			name:    "phonetic threshold out of range",
			mutate:  func(c *config.Config) { c.Correction.PhoneticThreshold = 1.5 },
			wantSub: "phonetic_threshold",
		},
		{
			name:    "empty entity",
			mutate:  func(c *config.Config) { c.Correction.Entities = []string{"WeChat", ""} },
			wantSub: "correction.entities[1]",
		},
		{
			name: "metrics enabled without address",
			mutate: func(c *config.Config) {
				c.Metrics.Enabled = true
				c.Metrics.ListenAddr = ""
			},
			wantSub: "metrics.listen_addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
			if err != nil {
				t.Fatalf("LoadFromReader() error = %v", err)
			}
			tt.mutate(cfg)
			err = config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() accepted an invalid config")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

type nopASR struct{}

func (nopASR) Transcribe(context.Context, *audio.Buffer) (string, error) { return "", nil }

type nopCompleter struct{}

func (nopCompleter) Complete(context.Context, []phone.Message) (string, error) { return "", nil }

func TestRegistryCreate(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterASR("glm", func(config.ProviderEntry) (asr.Client, error) {
		return nopASR{}, nil
	})
	reg.RegisterAgent("glm", func(config.ProviderEntry) (phone.Completer, error) {
		return nopCompleter{}, nil
	})
	reg.RegisterAudio("fake", func(cfg config.AudioConfig) (capture.Backend, error) {
		return capture.NewFakeBackend(cfg.SampleRate), nil
	})

	if _, err := reg.CreateASR(config.ProviderEntry{Name: "glm"}); err != nil {
		t.Errorf("CreateASR(glm) error = %v", err)
	}
	if _, err := reg.CreateAgent(config.ProviderEntry{Name: "glm"}); err != nil {
		t.Errorf("CreateAgent(glm) error = %v", err)
	}
	backend, err := reg.CreateAudio(config.AudioConfig{Backend: config.BackendFake, SampleRate: 16000})
	if err != nil {
		t.Fatalf("CreateAudio(fake) error = %v", err)
	}
	if backend.SampleRate() != 16000 {
		t.Errorf("backend sample rate = %d, want 16000", backend.SampleRate())
	}

	if _, err := reg.CreateASR(config.ProviderEntry{Name: "unknown"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateASR(unknown) error = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateAudio(config.AudioConfig{Backend: "unknown"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateAudio(unknown) error = %v, want ErrProviderNotRegistered", err)
	}
}
