// Package orchestrator sequences voice capture, transcription, and the
// agent step loop into one ordered task event stream.
//
// The Orchestrator is a four-state machine (Idle, Recording, Transcribing,
// Running) driven by a single control goroutine. The control goroutine is
// the only writer of the state and the only publisher of events; blocking
// work (transcription calls, agent steps) runs in background goroutines
// that report back through one completion channel tagged with the task ID,
// so results of a cancelled task are recognised and discarded instead of
// corrupting the next task.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hfyydd/Open-AutoGLM/internal/capture"
	"github.com/hfyydd/Open-AutoGLM/internal/observe"
	"github.com/hfyydd/Open-AutoGLM/internal/transcript"
	"github.com/hfyydd/Open-AutoGLM/pkg/audio"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/agent"
	"github.com/hfyydd/Open-AutoGLM/pkg/provider/asr"
)

// cancelledReason is the failure text carried by the terminal event of a
// user-cancelled task.
const cancelledReason = "cancelled by user"

// defaultMaxSteps bounds the agent step loop so a model that never emits a
// terminal step cannot run a task forever.
const defaultMaxSteps = 50

// ErrClosed is returned by operations invoked after the orchestrator's Run
// loop has exited.
var ErrClosed = errors.New("orchestrator: closed")

// State is the orchestrator's current stage.
type State int32

const (
	StateIdle State = iota
	StateRecording
	StateTranscribing
	StateRunning
)

// String returns the state's display name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// InvalidTransitionError reports an operation invoked from a state that
// forbids it. It is returned to the caller, never published to the event
// stream, because it reflects a usage error rather than a task failure.
type InvalidTransitionError struct {
	Op    string
	State State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("orchestrator: %s not valid in state %s", e.Op, e.State)
}

// Recorder is the capture contract the orchestrator needs. Implemented by
// [capture.Recorder].
type Recorder interface {
	Start() error
	Stop() (*audio.Buffer, error)
	Abort()
}

var _ Recorder = (*capture.Recorder)(nil)

// Orchestrator is the voice task state machine. Construct with [New], drive
// with [Orchestrator.Run], and operate through StartRecording, StopRecording,
// SubmitTask, Cancel, and Subscribe.
type Orchestrator struct {
	recorder Recorder
	asr      asr.Client
	session  agent.Session
	metrics  *observe.Metrics
	logger   *slog.Logger

	// corrector and maxSteps are hot-reloadable via SetCorrector and
	// SetMaxSteps.
	corrector atomic.Pointer[transcript.Corrector]
	maxSteps  atomic.Int32

	events *broadcaster

	cmds        chan command
	completions chan completion
	closed      chan struct{}

	// stateView mirrors the control loop's state for lock-free reads.
	stateView atomic.Int32

	// Control-loop-owned fields. Never touched outside the run loop.
	state      State
	task       taskInfo
	taskCtx    context.Context
	taskCancel context.CancelFunc
}

// taskInfo tracks the in-flight task. The zero value means no task.
type taskInfo struct {
	id        uuid.UUID
	text      string
	voice     bool
	stepCount int
	started   time.Time
}

type opKind int

const (
	opStartRecording opKind = iota
	opStopRecording
	opSubmitTask
	opCancel
)

func (op opKind) String() string {
	switch op {
	case opStartRecording:
		return "StartRecording"
	case opStopRecording:
		return "StopRecording"
	case opSubmitTask:
		return "SubmitTask"
	case opCancel:
		return "Cancel"
	default:
		return "unknown"
	}
}

// command is one caller operation awaiting a reply from the control loop.
type command struct {
	op    opKind
	text  string
	reply chan error
}

type completionKind int

const (
	transcribeDone completionKind = iota
	stepDone
)

// completion is a finished piece of background work. The task ID lets the
// control loop discard completions that belong to a cancelled task.
type completion struct {
	kind   completionKind
	taskID uuid.UUID
	text   string
	step   *agent.StepResult
	err    error
	took   time.Duration
}

// Option is a functional option for configuring an [Orchestrator].
type Option func(*Orchestrator)

// WithCorrector attaches an entity-vocabulary corrector applied to
// transcribed text before it becomes a task.
func WithCorrector(c *transcript.Corrector) Option {
	return func(o *Orchestrator) { o.corrector.Store(c) }
}

// WithMetrics overrides the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxSteps bounds the number of agent steps per task.
func WithMaxSteps(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxSteps.Store(int32(n))
		}
	}
}

// WithSubscriberBuffer sets the per-subscriber event channel capacity.
func WithSubscriberBuffer(n int) Option {
	return func(o *Orchestrator) { o.events = newBroadcaster(n) }
}

// New constructs an Orchestrator. recorder, asrClient, and session are
// required; Run must be called before operations are accepted.
func New(recorder Recorder, asrClient asr.Client, session agent.Session, opts ...Option) (*Orchestrator, error) {
	if recorder == nil {
		return nil, fmt.Errorf("orchestrator: recorder must not be nil")
	}
	if asrClient == nil {
		return nil, fmt.Errorf("orchestrator: asr client must not be nil")
	}
	if session == nil {
		return nil, fmt.Errorf("orchestrator: agent session must not be nil")
	}

	o := &Orchestrator{
		recorder:    recorder,
		asr:         asrClient,
		session:     session,
		metrics:     observe.DefaultMetrics(),
		logger:      slog.Default(),
		events:      newBroadcaster(defaultSubscriberBuffer),
		cmds:        make(chan command),
		completions: make(chan completion),
		closed:      make(chan struct{}),
	}
	o.maxSteps.Store(defaultMaxSteps)
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// SetCorrector swaps the transcript corrector. Safe to call while tasks run;
// the new vocabulary applies from the next transcription on. A nil corrector
// disables correction.
func (o *Orchestrator) SetCorrector(c *transcript.Corrector) {
	o.corrector.Store(c)
}

// SetMaxSteps changes the per-task step cap. Values below one are ignored.
func (o *Orchestrator) SetMaxSteps(n int) {
	if n > 0 {
		o.maxSteps.Store(int32(n))
	}
}

// Subscribe attaches a new event subscriber. The returned channel delivers
// events in emission order from this point on; cancel releases it. A late
// subscriber does not see earlier events.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	return o.events.subscribe()
}

// Done returns a channel that is closed once the control loop has exited.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.closed
}

// State returns the current stage. The value may be stale by the time the
// caller acts on it; operations revalidate against the live state.
func (o *Orchestrator) State() State {
	return State(o.stateView.Load())
}

// Recording reports whether a recording is in progress.
func (o *Orchestrator) Recording() bool {
	return o.State() == StateRecording
}

// StartRecording opens the capture device and begins a voice task. Valid
// only from Idle.
func (o *Orchestrator) StartRecording() error {
	return o.do(command{op: opStartRecording})
}

// StopRecording finishes the active recording and hands the audio to the
// transcription provider. Valid only from Recording. A recording that
// captured no audio is discarded silently.
func (o *Orchestrator) StopRecording() error {
	return o.do(command{op: opStopRecording})
}

// SubmitTask starts the agent loop for typed task text. Valid only from
// Idle. Blank text is a silent no-op.
func (o *Orchestrator) SubmitTask(text string) error {
	return o.do(command{op: opSubmitTask, text: text})
}

// Cancel aborts the active stage. Valid from Recording, Transcribing, and
// Running; the task ends with a cancellation failure event and any result
// still in flight is discarded when it arrives.
func (o *Orchestrator) Cancel() error {
	return o.do(command{op: opCancel})
}

// do submits a command to the control loop and waits for its reply.
func (o *Orchestrator) do(cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case o.cmds <- cmd:
	case <-o.closed:
		return ErrClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-o.closed:
		return ErrClosed
	}
}

// Run executes the control loop until ctx is cancelled. On exit it aborts
// any active recording, cancels the in-flight task, and closes all
// subscriber channels. Run must be called exactly once.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer func() {
		close(o.closed)
		if o.state == StateRecording {
			o.recorder.Abort()
			o.metrics.ActiveRecordings.Add(context.Background(), -1)
		}
		if o.taskCancel != nil {
			o.taskCancel()
		}
		o.events.close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-o.cmds:
			cmd.reply <- o.handle(ctx, cmd)
		case c := <-o.completions:
			o.complete(ctx, c)
		}
	}
}

// handle executes one caller operation. Runs on the control loop.
func (o *Orchestrator) handle(ctx context.Context, cmd command) error {
	switch cmd.op {
	case opStartRecording:
		return o.startRecording()
	case opStopRecording:
		return o.stopRecording(ctx)
	case opSubmitTask:
		return o.submitTask(ctx, cmd.text, uuid.Nil)
	case opCancel:
		return o.cancel(ctx)
	default:
		return fmt.Errorf("orchestrator: unknown operation %v", cmd.op)
	}
}

func (o *Orchestrator) startRecording() error {
	if o.state != StateIdle {
		return &InvalidTransitionError{Op: opStartRecording.String(), State: o.state}
	}
	if err := o.recorder.Start(); err != nil {
		return fmt.Errorf("orchestrator: start recording: %w", err)
	}

	o.task = taskInfo{id: uuid.New(), voice: true}
	o.setState(StateRecording)
	o.metrics.ActiveRecordings.Add(context.Background(), 1)
	o.logger.Info("recording started", "task_id", o.task.id)
	o.emit(EventListening, "")
	return nil
}

func (o *Orchestrator) stopRecording(ctx context.Context) error {
	if o.state != StateRecording {
		return &InvalidTransitionError{Op: opStopRecording.String(), State: o.state}
	}

	o.metrics.ActiveRecordings.Add(context.Background(), -1)
	buf, err := o.recorder.Stop()
	switch {
	case errors.Is(err, capture.ErrEmptyRecording):
		// Nothing was said; drop the attempt without an event.
		o.logger.Debug("empty recording discarded", "task_id", o.task.id)
		o.reset()
		return nil
	case err != nil:
		o.logger.Warn("recording stop failed", "task_id", o.task.id, "error", err)
		o.emit(EventTranscriptionFailed, err.Error())
		o.reset()
		return nil
	}

	o.setState(StateTranscribing)
	o.emit(EventTranscribing, "")

	o.taskCtx, o.taskCancel = context.WithCancel(ctx)
	taskCtx := o.taskCtx
	id := o.task.id
	o.logger.Info("transcribing recording",
		"task_id", id, "duration", buf.Duration())

	go func() {
		spanCtx, span := observe.StartSpan(taskCtx, "asr.transcribe",
			trace.WithAttributes(attribute.String("task_id", id.String())))
		defer span.End()

		start := time.Now()
		text, err := o.asr.Transcribe(spanCtx, buf)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "transcription failed")
		} else {
			observe.Logger(spanCtx, o.logger).Debug("transcription call returned", "task_id", id)
		}
		o.deliver(completion{
			kind:   transcribeDone,
			taskID: id,
			text:   text,
			err:    err,
			took:   time.Since(start),
		})
	}()
	return nil
}

// submitTask validates and starts the agent loop. For voice tasks the ID of
// the recording carries over; typed tasks get a fresh one.
func (o *Orchestrator) submitTask(ctx context.Context, text string, id uuid.UUID) error {
	fromVoice := id != uuid.Nil
	if !fromVoice && o.state != StateIdle {
		return &InvalidTransitionError{Op: opSubmitTask.String(), State: o.state}
	}
	if strings.TrimSpace(text) == "" {
		// Blank input is swallowed without an event.
		o.reset()
		return nil
	}
	text = strings.TrimSpace(text)

	if corrector := o.corrector.Load(); corrector != nil {
		corrected, changes := corrector.Correct(text)
		for _, ch := range changes {
			o.logger.Debug("transcript corrected",
				"heard", ch.Heard, "applied", ch.Applied, "confidence", ch.Confidence)
		}
		text = corrected
	}

	if !fromVoice {
		id = uuid.New()
	}
	o.task = taskInfo{
		id:      id,
		text:    text,
		voice:   fromVoice,
		started: time.Now(),
	}
	o.setState(StateRunning)
	o.metrics.ActiveTasks.Add(context.Background(), 1)
	o.logger.Info("task started", "task_id", id, "text", text, "voice", fromVoice)
	o.emit(EventStarted, text)

	if o.taskCtx == nil {
		// Typed path; the voice path reuses the context created for the
		// transcription call so one Cancel severs the whole task.
		o.taskCtx, o.taskCancel = context.WithCancel(ctx)
	}
	o.spawnStep(o.taskCtx, id, text, true)
	return nil
}

// spawnStep runs one agent step in the background. The first step of a task
// resets the session and passes the task text.
func (o *Orchestrator) spawnStep(ctx context.Context, id uuid.UUID, text string, first bool) {
	go func() {
		if first {
			o.session.Reset()
		}
		spanCtx, span := observe.StartSpan(ctx, "agent.step",
			trace.WithAttributes(attribute.String("task_id", id.String())))
		defer span.End()

		start := time.Now()
		res, err := o.session.Step(spanCtx, text)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "agent step failed")
		}
		o.deliver(completion{
			kind:   stepDone,
			taskID: id,
			step:   res,
			err:    err,
			took:   time.Since(start),
		})
	}()
}

func (o *Orchestrator) cancel(ctx context.Context) error {
	switch o.state {
	case StateRecording:
		o.recorder.Abort()
		o.metrics.ActiveRecordings.Add(context.Background(), -1)
	case StateTranscribing:
		// The in-flight transcription result will arrive with a stale task
		// ID and be discarded.
	case StateRunning:
		o.metrics.ActiveTasks.Add(context.Background(), -1)
		o.metrics.RecordTaskCompleted(context.Background(), "cancelled", time.Since(o.task.started).Seconds())
	default:
		return &InvalidTransitionError{Op: opCancel.String(), State: o.state}
	}

	o.logger.Info("task cancelled", "task_id", o.task.id, "state", o.state)
	o.emit(EventTaskFailed, cancelledReason)
	o.reset()
	return nil
}

// complete processes one background completion. Runs on the control loop.
func (o *Orchestrator) complete(ctx context.Context, c completion) {
	if c.taskID != o.task.id {
		// Result of a cancelled or superseded task.
		o.logger.Debug("stale completion discarded", "task_id", c.taskID)
		return
	}

	switch c.kind {
	case transcribeDone:
		o.completeTranscribe(ctx, c)
	case stepDone:
		o.completeStep(ctx, c)
	}
}

func (o *Orchestrator) completeTranscribe(ctx context.Context, c completion) {
	if o.state != StateTranscribing {
		return
	}
	o.metrics.TranscriptionDuration.Record(context.Background(), c.took.Seconds())

	if c.err != nil {
		reason := transcriptionFailureReason(c.err)
		if kind, ok := asr.KindOf(c.err); ok {
			o.metrics.RecordProviderError(context.Background(), "asr", kind.String())
		}
		o.logger.Warn("transcription failed", "task_id", c.taskID, "error", c.err)
		o.emit(EventTranscriptionFailed, reason)
		o.reset()
		return
	}

	o.logger.Info("transcription finished", "task_id", c.taskID, "text", c.text)
	if err := o.submitTask(ctx, c.text, c.taskID); err != nil {
		// Unreachable from Transcribing, but never let it escape the loop.
		o.logger.Error("voice submit rejected", "task_id", c.taskID, "error", err)
		o.reset()
	}
}

func (o *Orchestrator) completeStep(ctx context.Context, c completion) {
	if o.state != StateRunning {
		return
	}

	if c.err != nil {
		o.metrics.RecordAgentStep(context.Background(), "error", c.took.Seconds())
		o.logger.Warn("agent step failed",
			"task_id", c.taskID, "step", o.task.stepCount+1, "error", c.err)
		o.failTask(c.err.Error())
		return
	}

	o.metrics.RecordAgentStep(context.Background(), "ok", c.took.Seconds())
	o.task.stepCount++
	o.emit(EventThinking, c.step.Thinking)
	o.emit(EventActing, c.step.Action)

	if c.step.Finished {
		o.metrics.ActiveTasks.Add(context.Background(), -1)
		o.metrics.RecordTaskCompleted(context.Background(), "finished", time.Since(o.task.started).Seconds())
		o.logger.Info("task finished",
			"task_id", c.taskID, "steps", o.task.stepCount, "message", c.step.Message)
		o.emit(EventFinished, c.step.Message)
		o.reset()
		return
	}

	if limit := int(o.maxSteps.Load()); o.task.stepCount >= limit {
		o.failTask(fmt.Sprintf("step limit reached (%d)", limit))
		return
	}

	o.spawnStep(o.taskCtx, c.taskID, "", false)
}

// failTask emits the step failure pair and returns to Idle.
func (o *Orchestrator) failTask(reason string) {
	o.metrics.ActiveTasks.Add(context.Background(), -1)
	o.metrics.RecordTaskCompleted(context.Background(), "failed", time.Since(o.task.started).Seconds())
	o.emit(EventStepFailed, reason)
	o.emit(EventTaskFailed, reason)
	o.reset()
}

// reset returns the machine to Idle and severs the task context.
func (o *Orchestrator) reset() {
	if o.taskCancel != nil {
		o.taskCancel()
		o.taskCancel = nil
	}
	o.taskCtx = nil
	o.task = taskInfo{}
	o.setState(StateIdle)
}

func (o *Orchestrator) setState(s State) {
	o.state = s
	o.stateView.Store(int32(s))
}

// emit publishes one event for the current task.
func (o *Orchestrator) emit(kind EventKind, text string) {
	o.events.publish(Event{
		Kind:   kind,
		TaskID: o.task.id,
		Text:   text,
		Time:   time.Now(),
	})
}

// deliver hands a completion to the control loop, giving up when the loop
// has exited so background goroutines never leak.
func (o *Orchestrator) deliver(c completion) {
	select {
	case o.completions <- c:
	case <-o.closed:
	}
}

// transcriptionFailureReason maps a transcription error to the
// human-readable reason carried by the failure event.
func transcriptionFailureReason(err error) string {
	kind, ok := asr.KindOf(err)
	if !ok {
		return err.Error()
	}
	switch kind {
	case asr.KindAuthorization:
		return "transcription authorization failed"
	case asr.KindEmptyResult:
		return "no speech recognised"
	default:
		return "transcription service unreachable"
	}
}
