// Package app wires all subsystems into a running voice task application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the control loop, and Shutdown tears everything
// down in order.
//
// For testing, inject mock implementations via functional options
// (WithRecorder, WithASR, WithSession). When an option is not provided, New
// creates real implementations from the config through the provider registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hfyydd/Open-AutoGLM/internal/capture"
	"github.com/hfyydd/Open-AutoGLM/internal/config"
	"github.com/hfyydd/Open-AutoGLM/internal/health"
	"github.com/hfyydd/Open-AutoGLM/internal/observe"
	"github.com/hfyydd/Open-AutoGLM/internal/orchestrator"
	"github.com/hfyydd/Open-AutoGLM/internal/resilience"
	"github.com/hfyydd/Open-AutoGLM/internal/transcript"
	"github.com/hfyydd/Open-AutoGLM/internal/transcript/phonetic"
	"github.com/hfyydd/Open-AutoGLM/pkg/audio"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/agent"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/agent/phone"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/asr"
)

// shutdownTimeout bounds the metrics server drain during Run teardown.
const shutdownTimeout = 5 * time.Second

// App owns all subsystem lifetimes around the task orchestrator.
type App struct {
	cfg       *config.Config
	registry  *config.Registry
	version   string
	watchPath string
	level     *slog.LevelVar
	logger    *slog.Logger

	recorder orchestrator.Recorder
	asr      asr.Client
	session  agent.Session

	orch    *orchestrator.Orchestrator
	metrics *observe.MetricsServer
	watcher *config.Watcher

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRegistry replaces the default provider registry.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) {
		if r != nil {
			a.registry = r
		}
	}
}

// WithRecorder injects a recorder instead of creating one from config.
func WithRecorder(r orchestrator.Recorder) Option {
	return func(a *App) { a.recorder = r }
}

// WithASR injects a speech recognition client instead of creating one from
// config.
func WithASR(c asr.Client) Option {
	return func(a *App) { a.asr = c }
}

// WithSession injects an agent session instead of creating one from config.
func WithSession(s agent.Session) Option {
	return func(a *App) { a.session = s }
}

// WithLogLevelVar shares the process log level so config reloads can adjust
// it at runtime.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithVersion stamps the build version onto the health endpoint.
func WithVersion(v string) Option {
	return func(a *App) {
		if v != "" {
			a.version = v
		}
	}
}

// WithConfigWatch starts a file watcher on path so safe settings (log level,
// correction entities, step cap) apply without a restart.
func WithConfigWatch(path string) Option {
	return func(a *App) { a.watchPath = path }
}

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		registry: DefaultRegistry(),
		version:  "dev",
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.level != nil {
		a.level.Set(cfg.App.LogLevel.SlogLevel())
	}

	if err := a.initRecorder(); err != nil {
		return nil, fmt.Errorf("app: init recorder: %w", err)
	}
	if err := a.initASR(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init asr: %w", err)
	}
	if err := a.initSession(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init agent: %w", err)
	}
	if err := a.initOrchestrator(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init orchestrator: %w", err)
	}
	if err := a.initMetricsServer(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init metrics server: %w", err)
	}
	if err := a.initWatcher(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init config watcher: %w", err)
	}

	return a, nil
}

// Orchestrator exposes the task state machine for front ends.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orch
}

// initRecorder builds the capture recorder from config unless injected.
func (a *App) initRecorder() error {
	if a.recorder != nil {
		return nil
	}
	backend, err := a.registry.CreateAudio(a.cfg.Audio)
	if err != nil {
		return err
	}
	rec, err := capture.NewRecorder(backend)
	if err != nil {
		return err
	}
	a.recorder = rec
	a.closers = append(a.closers, rec.Close)
	return nil
}

// initASR builds the recognition client, wrapping the primary in a failover
// group when fallbacks are configured.
func (a *App) initASR() error {
	if a.asr != nil {
		return nil
	}
	primary := a.cfg.Providers.ASR
	if primary.Name == "" {
		a.asr = unavailableASR{}
		return nil
	}

	client, err := a.registry.CreateASR(primary)
	if err != nil {
		return err
	}
	if closer, ok := client.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}
	if len(a.cfg.Providers.ASRFallbacks) == 0 {
		a.asr = client
		return nil
	}

	group := resilience.NewASRFallback(client, primary.Name, resilience.FallbackConfig{})
	for _, entry := range a.cfg.Providers.ASRFallbacks {
		fb, err := a.registry.CreateASR(entry)
		if err != nil {
			return fmt.Errorf("fallback %q: %w", entry.Name, err)
		}
		if closer, ok := fb.(interface{ Close() error }); ok {
			a.closers = append(a.closers, closer.Close)
		}
		group.AddFallback(entry.Name, fb)
	}
	a.asr = group
	return nil
}

// initSession builds the phone agent session from config unless injected.
func (a *App) initSession() error {
	if a.session != nil {
		return nil
	}
	completer, err := a.registry.CreateAgent(a.cfg.Providers.Agent)
	if err != nil {
		return err
	}
	session, err := phone.NewSession(completer, phone.WithDeviceID(a.cfg.App.Device))
	if err != nil {
		return err
	}
	a.session = session
	return nil
}

func (a *App) initOrchestrator() error {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(a.logger),
		orchestrator.WithMaxSteps(a.cfg.App.MaxSteps),
	}
	if c := buildCorrector(a.cfg.Correction); c != nil {
		opts = append(opts, orchestrator.WithCorrector(c))
	}

	orch, err := orchestrator.New(a.recorder, a.asr, a.session, opts...)
	if err != nil {
		return err
	}
	a.orch = orch
	return nil
}

func (a *App) initMetricsServer() error {
	if !a.cfg.Metrics.Enabled {
		return nil
	}
	taskLoop := health.Checker{
		Name: "task-loop",
		Check: func(context.Context) error {
			select {
			case <-a.orch.Done():
				return errors.New("control loop stopped")
			default:
				return nil
			}
		},
	}
	a.metrics = observe.NewMetricsServer(a.cfg.Metrics.ListenAddr, a.version, a.logger, taskLoop)
	return nil
}

func (a *App) initWatcher() error {
	if a.watchPath == "" {
		return nil
	}
	w, err := config.NewWatcher(a.watchPath, a.applyReload)
	if err != nil {
		return err
	}
	a.watcher = w
	a.closers = append(a.closers, func() error {
		w.Stop()
		return nil
	})
	return nil
}

// applyReload folds hot-reloadable config changes into the running system.
func (a *App) applyReload(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.SlogLevel())
		a.logger.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.EntitiesChanged {
		a.orch.SetCorrector(buildCorrector(d.NewCorrection))
		a.logger.Info("correction entities reloaded", "count", len(d.NewCorrection.Entities))
	}
	if d.MaxStepsChanged {
		a.orch.SetMaxSteps(d.NewMaxSteps)
		a.logger.Info("step cap changed", "max_steps", d.NewMaxSteps)
	}
}

// buildCorrector constructs the transcript corrector, or nil when no
// entities are configured.
func buildCorrector(cfg config.CorrectionConfig) *transcript.Corrector {
	if len(cfg.Entities) == 0 {
		return nil
	}
	var matcherOpts []phonetic.Option
	if cfg.PhoneticThreshold > 0 {
		matcherOpts = append(matcherOpts, phonetic.WithPhoneticThreshold(cfg.PhoneticThreshold))
	}
	if cfg.FuzzyThreshold > 0 {
		matcherOpts = append(matcherOpts, phonetic.WithFuzzyThreshold(cfg.FuzzyThreshold))
	}
	return transcript.NewCorrector(cfg.Entities,
		transcript.WithMatcher(phonetic.New(matcherOpts...)))
}

// Run starts the orchestrator control loop and the metrics endpoint, then
// blocks until ctx is cancelled or a subsystem fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.orch.Run(ctx)
	})

	if a.metrics != nil {
		if err := a.metrics.Start(); err != nil {
			return fmt.Errorf("app: start metrics server: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.metrics.Stop(stopCtx)
		})
	}

	a.logger.Info("app running",
		"audio_backend", a.cfg.Audio.Backend,
		"asr", a.cfg.Providers.ASR.Name,
		"agent", a.cfg.Providers.Agent.Name,
		"metrics", a.cfg.Metrics.Enabled,
	)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.logger.Warn("closer error", "index", i, "err", err)
			}
		}
		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases already-initialised subsystems after a failed New.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("closer error during failed init", "index", i, "err", err)
		}
	}
	a.closers = nil
}

// unavailableASR rejects every transcription; installed when no ASR provider
// is configured so typed tasks still work.
type unavailableASR struct{}

func (unavailableASR) Transcribe(context.Context, *audio.Buffer) (string, error) {
	return "", &asr.Error{Kind: asr.KindNetwork, Provider: "none",
		Err: errors.New("no recognition provider configured")}
}
