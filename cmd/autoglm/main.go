// Command autoglm runs the voice task agent: push-to-talk recording,
// transcription, and step-wise phone task execution in a terminal UI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/hfyydd/Open-AutoGLM/internal/app"
	"github.com/hfyydd/Open-AutoGLM/internal/config"
	"github.com/hfyydd/Open-AutoGLM/internal/observe"
	"github.com/hfyydd/Open-AutoGLM/internal/orchestrator"
	"github.com/hfyydd/Open-AutoGLM/internal/tui"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	headless := flag.Bool("headless", false, "run without the terminal UI, logging events instead")
	task := flag.String("task", "", "submit one task, wait for it to finish, and exit (implies -headless)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("autoglm", version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "autoglm: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "autoglm: %v\n", err)
		}
		return 1
	}

	// The level var is shared with the app so config reloads can adjust it.
	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel.SlogLevel())
	logger := newLogger(level, *headless || *task != "")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "autoglm"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	application, err := app.New(ctx, cfg,
		app.WithLogLevelVar(level),
		app.WithVersion(version),
		app.WithConfigWatch(*configPath),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("autoglm starting",
		"version", version,
		"config", *configPath,
		"audio_backend", cfg.Audio.Backend,
		"asr", cfg.Providers.ASR.Name,
		"agent", cfg.Providers.Agent.Name,
	)

	var exitCode int
	switch {
	case *task != "":
		exitCode = runSingleTask(ctx, application, *task)
	case *headless:
		exitCode = runHeadless(ctx, application)
	default:
		exitCode = runTUI(ctx, application)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	return exitCode
}

// runTUI drives the application behind the interactive terminal UI.
func runTUI(ctx context.Context, application *app.App) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	orch := application.Orchestrator()
	events, unsubscribe := orch.Subscribe()
	defer unsubscribe()

	program := tea.NewProgram(tui.New(orch, events), tea.WithContext(ctx), tea.WithAltScreen())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return application.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("ui: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	return 0
}

// runHeadless logs the event stream until interrupted. Useful on machines
// without a usable terminal, with tasks submitted via a future control API.
func runHeadless(ctx context.Context, application *app.App) int {
	orch := application.Orchestrator()
	events, unsubscribe := orch.Subscribe()
	defer unsubscribe()

	go logEvents(events)

	slog.Info("running headless, press Ctrl+C to shut down")
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	return 0
}

// runSingleTask submits one typed task and exits when it reaches a terminal
// event. The exit code reflects the task outcome.
func runSingleTask(ctx context.Context, application *app.App, text string) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	orch := application.Orchestrator()
	events, unsubscribe := orch.Subscribe()
	defer unsubscribe()

	runDone := make(chan error, 1)
	go func() { runDone <- application.Run(ctx) }()

	if err := orch.SubmitTask(text); err != nil {
		slog.Error("submit failed", "err", err)
		cancel()
		<-runDone
		return 1
	}

	code := 1
loop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			logEvent(ev)
			if ev.Kind == orchestrator.EventFinished {
				code = 0
				break loop
			}
			if ev.Kind.Terminal() {
				break loop
			}
		case <-ctx.Done():
			break loop
		}
	}

	cancel()
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	return code
}

func logEvents(events <-chan orchestrator.Event) {
	for ev := range events {
		logEvent(ev)
	}
}

func logEvent(ev orchestrator.Event) {
	slog.Info("task event", "kind", ev.Kind, "task_id", ev.TaskID, "text", ev.Text)
}

// newLogger writes structured logs to stderr. In TUI mode logs go to a file
// so they do not fight the alternate screen.
func newLogger(level *slog.LevelVar, toStderr bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if toStderr {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	f, err := os.OpenFile("autoglm.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(f, opts))
}
