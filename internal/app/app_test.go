package app_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/hfyydd/Open-AutoGLM/internal/app"
	"github.com/hfyydd/Open-AutoGLM/internal/capture"
	"github.com/hfyydd/Open-AutoGLM/internal/config"
	"github.com/hfyydd/Open-AutoGLM/internal/orchestrator"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/agent"
	agentmock "github.com/hfyydd/Open-AutoGLM/pkg/provider/agent/mock"
	asrmock "github.com/hfyydd/Open-AutoGLM/pkg/provider/asr/mock"
)

// testConfig returns a minimal valid config with the fake audio backend and
// metrics disabled.
func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			LogLevel: config.LogInfo,
			MaxSteps: 10,
			Device:   "test-phone",
		},
		Audio: config.AudioConfig{
			Backend:    config.BackendFake,
			SampleRate: 16000,
		},
		Providers: config.ProvidersConfig{
			Agent: config.ProviderEntry{Name: "glm", APIKey: "test"},
		},
	}
}

func newTestRecorder(t *testing.T) *capture.Recorder {
	t.Helper()
	rec, err := capture.NewRecorder(capture.NewFakeBackend(16000))
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	return rec
}

func TestNewWithInjectedDoubles(t *testing.T) {
	t.Parallel()

	session := &agentmock.Session{
		Results: []*agent.StepResult{
			{Thinking: "plan", Action: "tap", Finished: true, Message: "done"},
		},
	}
	a, err := app.New(context.Background(), testConfig(),
		app.WithRecorder(newTestRecorder(t)),
		app.WithASR(&asrmock.Client{}),
		app.WithSession(session),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- a.Run(ctx) }()

	orch := a.Orchestrator()
	events, unsubscribe := orch.Subscribe()
	defer unsubscribe()

	if err := orch.SubmitTask("open settings"); err != nil {
		t.Fatalf("SubmitTask() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	var kinds []orchestrator.EventKind
	for len(kinds) < 4 {
		select {
		case ev := <-events:
			kinds = append(kinds, ev.Kind)
		case <-deadline:
			t.Fatalf("timed out; got %v", kinds)
		}
	}
	want := []orchestrator.EventKind{
		orchestrator.EventStarted,
		orchestrator.EventThinking,
		orchestrator.EventActing,
		orchestrator.EventFinished,
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}

	cancel()
	if err := <-runDone; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewBuildsRecorderFromConfig(t *testing.T) {
	t.Parallel()

	// Only the agent session is injected; the recorder comes from the fake
	// audio backend registration and the ASR slot stays unconfigured.
	a, err := app.New(context.Background(), testConfig(),
		app.WithSession(&agentmock.Session{}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- a.Run(ctx) }()

	orch := a.Orchestrator()
	if err := orch.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if err := orch.StopRecording(); err != nil {
		t.Fatalf("StopRecording() error = %v", err)
	}

	cancel()
	if err := <-runDone; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	_ = a.Shutdown(shutdownCtx)
}

func TestNewRejectsUnknownAgentProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Providers.Agent.Name = "no-such-provider"

	_, err := app.New(context.Background(), cfg,
		app.WithRecorder(newTestRecorder(t)),
		app.WithASR(&asrmock.Client{}),
	)
	if err == nil {
		t.Fatal("New() accepted an unregistered agent provider")
	}
}

func TestNewSetsLogLevel(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.App.LogLevel = config.LogDebug

	var level slog.LevelVar
	_, err := app.New(context.Background(), cfg,
		app.WithRecorder(newTestRecorder(t)),
		app.WithASR(&asrmock.Client{}),
		app.WithSession(&agentmock.Session{}),
		app.WithLogLevelVar(&level),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
}

func TestMetricsServerLifecycle(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddr = "127.0.0.1:0"

	a, err := app.New(context.Background(), cfg,
		app.WithRecorder(newTestRecorder(t)),
		app.WithASR(&asrmock.Client{}),
		app.WithSession(&agentmock.Session{}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-runDone; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(),
		app.WithRecorder(newTestRecorder(t)),
		app.WithASR(&asrmock.Client{}),
		app.WithSession(&agentmock.Session{}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("first Shutdown() error = %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}
