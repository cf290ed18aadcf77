package config_test

import (
	"strings"
	"testing"

	"github.com/hfyydd/Open-AutoGLM/internal/config"
)

func loadSample(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	return cfg
}

func TestDiffNoChanges(t *testing.T) {
	t.Parallel()

	old := loadSample(t)
	new := loadSample(t)
	if d := config.Diff(old, new); d.Any() {
		t.Errorf("Diff() of identical configs = %+v, want empty", d)
	}
}

func TestDiffLogLevel(t *testing.T) {
	t.Parallel()

	old := loadSample(t)
	new := loadSample(t)
	new.App.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("Diff() = %+v, want LogLevelChanged to debug", d)
	}
	if d.EntitiesChanged || d.MaxStepsChanged {
		t.Errorf("Diff() flagged unrelated changes: %+v", d)
	}
}

func TestDiffEntities(t *testing.T) {
	t.Parallel()

	old := loadSample(t)
	new := loadSample(t)
	new.Correction.Entities = append(new.Correction.Entities, "Alipay")

	d := config.Diff(old, new)
	if !d.EntitiesChanged {
		t.Fatalf("Diff() = %+v, want EntitiesChanged", d)
	}
	if len(d.NewCorrection.Entities) != 3 {
		t.Errorf("NewCorrection.Entities = %v", d.NewCorrection.Entities)
	}
}

func TestDiffThresholds(t *testing.T) {
	t.Parallel()

	old := loadSample(t)
	new := loadSample(t)
	new.Correction.FuzzyThreshold = 0.9

	if d := config.Diff(old, new); !d.EntitiesChanged {
		t.Errorf("Diff() = %+v, want EntitiesChanged for threshold change", d)
	}
}

func TestDiffMaxSteps(t *testing.T) {
	t.Parallel()

	old := loadSample(t)
	new := loadSample(t)
	new.App.MaxSteps = 10

	d := config.Diff(old, new)
	if !d.MaxStepsChanged || d.NewMaxSteps != 10 {
		t.Errorf("Diff() = %+v, want MaxStepsChanged to 10", d)
	}
}

func TestDiffIgnoresProviderChanges(t *testing.T) {
	t.Parallel()

	old := loadSample(t)
	new := loadSample(t)
	new.Providers.Agent.Model = "glm-5"
	new.Audio.SampleRate = 44100

	if d := config.Diff(old, new); d.Any() {
		t.Errorf("Diff() flagged restart-only changes: %+v", d)
	}
}
