// Package orchestrator wires capture, interpretation, routing, and spoken
// feedback into a single voice command session.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sera-labs/voicekit/internal/capture"
	"github.com/sera-labs/voicekit/internal/command"
	"github.com/sera-labs/voicekit/internal/feedback"
	"github.com/sera-labs/voicekit/internal/interpret"
	"github.com/sera-labs/voicekit/internal/metrics"
	"github.com/sera-labs/voicekit/internal/store"
	"github.com/sera-labs/voicekit/internal/trace"
)

// State is the coarse session state surfaced to clients.
type State string

const (
	// StateClosed means no session is open.
	StateClosed State = "closed"
	// StateListening means capture is active (including the permission prompt).
	StateListening State = "listening"
	// StateProcessing means an utterance is being interpreted or executed.
	StateProcessing State = "processing"
	// StateConfirming means a low-confidence command awaits manual confirmation.
	StateConfirming State = "confirming"
)

// ErrBusy is returned when StartListening is called while a session is open.
var ErrBusy = errors.New("a voice session is already active")

// ErrNoPending is returned by ExecuteCommand when nothing awaits confirmation.
var ErrNoPending = errors.New("no command awaiting confirmation")

// Event is one orchestrator output sent back to the client.
type Event struct {
	Type         string               `json:"type"`
	State        State                `json:"state,omitempty"`
	Text         string               `json:"text,omitempty"`
	Command      *command.Interpreted `json:"command,omitempty"`
	Result       *command.Result      `json:"result,omitempty"`
	AutoExecuted bool                 `json:"auto_executed,omitempty"`
	ErrorKind    ErrKind              `json:"error_kind,omitempty"`
	Message      string               `json:"message,omitempty"`
	AutoCloseMs  int64                `json:"auto_close_ms,omitempty"`
	Audio        []byte               `json:"-"`
}

// EventCallback is invoked for each orchestrator event (status, transcript,
// command outcome, audio).
type EventCallback func(Event)

// History records executed commands. Implemented by the store; nil disables
// recording.
type History interface {
	RecordCommand(ctx context.Context, rec store.CommandRecord) error
}

// Config holds orchestrator configuration.
type Config struct {
	Recognizer  capture.Recognizer
	Interpreter *interpret.Interpreter
	Router      *command.Router
	Feedback    *feedback.Synthesizer
	History     History
	Tracer      *trace.Tracer
	UserID      string

	// AutoExecuteThreshold gates execution without confirmation. Commands at
	// or above it run immediately; below it they are surfaced for manual
	// confirmation. Defaults to 0.8.
	AutoExecuteThreshold float64
	// SilenceTimeout finalizes an utterance after this much silence.
	SilenceTimeout time.Duration
	// AutoCloseDelay closes the session this long after a successful result.
	AutoCloseDelay time.Duration
	// Language is passed to the recognizer.
	Language string

	OnEvent EventCallback
}

// Orchestrator owns one client's voice session lifecycle.
type Orchestrator struct {
	cfg    Config
	engine *capture.Engine
	agg    *capture.Aggregator

	mu        sync.Mutex
	state     State
	gen       uint64
	pending   *pendingCommand
	autoClose *feedback.Timer
	done      chan struct{}
}

// pendingCommand is a surfaced low-confidence command awaiting confirmation,
// carrying the trace run and start time of the utterance that produced it so
// a manual confirm continues the same run.
type pendingCommand struct {
	cmd       *command.Interpreted
	runID     string
	startedAt time.Time
}

// New creates an orchestrator and starts its capture event pump.
func New(cfg Config) *Orchestrator {
	if cfg.AutoExecuteThreshold <= 0 {
		cfg.AutoExecuteThreshold = 0.8
	}
	if cfg.AutoCloseDelay <= 0 {
		cfg.AutoCloseDelay = feedback.DefaultAutoCloseDelay
	}
	if cfg.OnEvent == nil {
		cfg.OnEvent = func(Event) {}
	}

	o := &Orchestrator{
		cfg:    cfg,
		engine: capture.NewEngine(cfg.Recognizer),
		agg:    capture.NewAggregator(capture.AggregatorConfig{SilenceTimeout: cfg.SilenceTimeout}),
		state:  StateClosed,
		done:   make(chan struct{}),
	}
	o.agg.OnInterim = func(text string) {
		o.emit(Event{Type: "interim_transcript", Text: text})
	}
	o.agg.OnUtterance = func(u capture.Utterance) {
		o.mu.Lock()
		gen := o.gen
		o.mu.Unlock()
		go o.process(u, gen, "auto")
	}
	o.agg.OnAutoStop = o.engine.Stop

	go o.pump()
	return o
}

// State returns the current session state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// StartListening opens a capture session. It blocks while microphone
// permission is acquired. Returns ErrBusy if a session is already open,
// including while a previous utterance is still processing.
func (o *Orchestrator) StartListening(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateClosed {
		o.mu.Unlock()
		o.emit(Event{Type: "error", ErrorKind: ErrKindSessionBusy, Message: MessageFor(ErrKindSessionBusy)})
		return ErrBusy
	}
	o.cancelAutoCloseLocked()
	o.pending = nil
	o.state = StateListening
	o.mu.Unlock()

	o.emit(Event{Type: "status", State: StateListening})

	err := o.engine.Start(ctx, capture.Config{
		Continuous:     true,
		Language:       o.cfg.Language,
		InterimResults: true,
	})
	if err != nil {
		if errors.Is(err, capture.ErrAborted) {
			// The user cancelled while the permission prompt was pending;
			// Cancel already closed the session and reported the state.
			return err
		}
		o.mu.Lock()
		o.state = StateClosed
		o.mu.Unlock()

		kind := startErrKind(err)
		o.emit(Event{Type: "error", ErrorKind: kind, Message: MessageFor(kind), State: StateClosed})
		o.speak(MessageFor(kind))
		return err
	}
	return nil
}

// StopListening gracefully ends capture; any pending speech is finalized and
// flows through interpretation.
func (o *Orchestrator) StopListening() {
	o.engine.Stop()
}

// ToggleListening starts capture when closed and stops it when listening.
// While processing it reports busy rather than queueing a new session.
func (o *Orchestrator) ToggleListening(ctx context.Context) error {
	switch o.State() {
	case StateListening:
		o.StopListening()
		return nil
	case StateClosed:
		return o.StartListening(ctx)
	default:
		o.emit(Event{Type: "error", ErrorKind: ErrKindSessionBusy, Message: MessageFor(ErrKindSessionBusy)})
		return ErrBusy
	}
}

// ExecuteCommand runs the command awaiting manual confirmation.
func (o *Orchestrator) ExecuteCommand(ctx context.Context) error {
	o.mu.Lock()
	p := o.pending
	if p == nil {
		o.mu.Unlock()
		return ErrNoPending
	}
	o.pending = nil
	o.state = StateProcessing
	gen := o.gen
	o.mu.Unlock()

	o.emit(Event{Type: "status", State: StateProcessing})
	o.execute(ctx, p.cmd, gen, "manual", p.runID, p.startedAt)
	return nil
}

// ProcessText runs the typed-command path: the text goes straight through
// interpretation and the same confidence gate as a spoken utterance. While
// capture is open or an utterance is processing it reports busy; a typed
// command while a confirmation is pending replaces the pending command.
func (o *Orchestrator) ProcessText(ctx context.Context, text string) error {
	o.mu.Lock()
	if o.state == StateProcessing || o.state == StateListening {
		o.mu.Unlock()
		o.emit(Event{Type: "error", ErrorKind: ErrKindSessionBusy, Message: MessageFor(ErrKindSessionBusy)})
		return ErrBusy
	}
	o.cancelAutoCloseLocked()
	o.pending = nil
	gen := o.gen
	o.mu.Unlock()

	o.process(capture.Utterance{Text: text, CapturedAt: time.Now()}, gen, "auto")
	return nil
}

// Cancel dismisses the session: capture is aborted, any in-flight
// interpretation is discarded, and a pending confirmation is dropped.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	o.gen++
	o.pending = nil
	o.state = StateClosed
	o.cancelAutoCloseLocked()
	o.mu.Unlock()

	o.agg.Reset()
	o.engine.Abort()
	o.emit(Event{Type: "status", State: StateClosed})
}

// Close tears the orchestrator down. Safe to call once, typically on client
// disconnect.
func (o *Orchestrator) Close() {
	o.Cancel()
	close(o.done)
}

// pump forwards capture events into the aggregator and surfaces
// capture-level errors.
func (o *Orchestrator) pump() {
	for {
		select {
		case <-o.done:
			return
		case ev := <-o.engine.Events():
			o.agg.Feed(ev)
			switch ev.Type {
			case capture.EventEnded:
				o.closeIfListening()
			case capture.EventError:
				o.captureError(ev.Kind)
			}
		}
	}
}

// closeIfListening returns the session to closed after capture ends without
// an utterance in flight.
func (o *Orchestrator) closeIfListening() {
	o.mu.Lock()
	if o.state != StateListening {
		o.mu.Unlock()
		return
	}
	o.state = StateClosed
	o.mu.Unlock()
	o.emit(Event{Type: "status", State: StateClosed})
}

func (o *Orchestrator) captureError(kind capture.ErrorKind) {
	if kind == capture.ErrKindAborted {
		// User initiated; Cancel already reported the state change.
		return
	}
	o.mu.Lock()
	o.state = StateClosed
	o.mu.Unlock()

	ek := captureErrKind(kind)
	o.emit(Event{Type: "error", ErrorKind: ek, Message: MessageFor(ek), State: StateClosed})
	o.speak(MessageFor(ek))
}

// process interprets one utterance and applies the confidence gate. A gen
// mismatch at any checkpoint means the session was cancelled; the result is
// discarded without side effects. At most one utterance is in flight at a
// time: a final arriving while a previous one is still interpreting, or
// while a confirmation is pending, is dropped.
func (o *Orchestrator) process(u capture.Utterance, gen uint64, mode string) {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	if o.state == StateProcessing || o.state == StateConfirming {
		o.mu.Unlock()
		metrics.TranscriptsDiscarded.Inc()
		slog.Info("utterance dropped, command already in flight", "text", u.Text)
		return
	}
	o.state = StateProcessing
	o.mu.Unlock()

	o.emit(Event{Type: "status", State: StateProcessing})
	o.emit(Event{Type: "transcript", Text: u.Text})

	e2eStart := time.Now()
	runID := o.cfg.Tracer.StartRun()

	interpStart := time.Now()
	cmd, err := o.cfg.Interpreter.Interpret(context.Background(), u)
	if err != nil {
		kind := ErrKindInterpreterUnavailable
		if errors.Is(err, interpret.ErrTimeout) {
			kind = ErrKindInterpreterTimeout
		}
		o.cfg.Tracer.RecordSpan(runID, "interpret", interpStart, msSince(interpStart), u.Text, "", "error", err.Error())
		o.cfg.Tracer.EndRun(runID, msSince(e2eStart), u.Text, "", 0, "", "error")
		o.fail(gen, kind)
		return
	}
	o.cfg.Tracer.RecordSpan(runID, "interpret", interpStart, msSince(interpStart),
		u.Text, fmt.Sprintf("intent=%s confidence=%.2f", cmd.Intent, cmd.Confidence), "ok", "")

	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		o.cfg.Tracer.EndRun(runID, msSince(e2eStart), u.Text, string(cmd.Intent), cmd.Confidence, "", "discarded")
		return
	}
	if cmd.Confidence < o.cfg.AutoExecuteThreshold {
		o.pending = &pendingCommand{cmd: cmd, runID: runID, startedAt: e2eStart}
		o.state = StateConfirming
		o.mu.Unlock()

		metrics.AutoExecuted.WithLabelValues("surfaced").Inc()
		o.cfg.Tracer.EndRun(runID, msSince(e2eStart), u.Text, string(cmd.Intent), cmd.Confidence, cmd.Response, "surfaced")
		slog.Info("command_surfaced", "intent", cmd.Intent, "confidence", cmd.Confidence)
		o.emit(Event{Type: "command_pending", State: StateConfirming, Command: cmd})
		return
	}
	o.mu.Unlock()

	o.execute(context.Background(), cmd, gen, mode, runID, e2eStart)
}

// execute dispatches one command and surfaces the outcome.
func (o *Orchestrator) execute(ctx context.Context, cmd *command.Interpreted, gen uint64, mode, runID string, e2eStart time.Time) {
	execStart := time.Now()
	res := o.cfg.Router.Execute(ctx, o.cfg.UserID, *cmd)
	o.cfg.Tracer.RecordSpan(runID, "execute", execStart, msSince(execStart),
		string(cmd.Intent), res.Message, spanStatus(res.Success), string(res.Kind))

	o.mu.Lock()
	if gen != o.gen {
		// Session cancelled while the store call was in flight; the side
		// effect stands but nothing is surfaced.
		o.mu.Unlock()
		o.cfg.Tracer.EndRun(runID, msSince(e2eStart), cmd.OriginalText, string(cmd.Intent), cmd.Confidence, res.Message, "discarded")
		return
	}
	o.state = StateClosed
	o.mu.Unlock()

	metrics.AutoExecuted.WithLabelValues(mode).Inc()
	metrics.E2EDuration.Observe(time.Since(e2eStart).Seconds())
	o.record(ctx, cmd, res)
	o.cfg.Tracer.EndRun(runID, msSince(e2eStart), cmd.OriginalText, string(cmd.Intent), cmd.Confidence, res.Message, spanStatus(res.Success))

	if !res.Success {
		kind := resultErrKind(res.Kind)
		o.emit(Event{Type: "error", ErrorKind: kind, Message: res.Message, State: StateClosed, Command: cmd, Result: &res})
		o.speak(res.Message)
		return
	}

	slog.Info("command_executed", "intent", cmd.Intent, "confidence", cmd.Confidence, "mode", mode, "ref", res.SideEffectRef)
	o.emit(Event{
		Type:         "command_executed",
		State:        StateClosed,
		Command:      cmd,
		Result:       &res,
		AutoExecuted: mode == "auto",
		AutoCloseMs:  o.cfg.AutoCloseDelay.Milliseconds(),
	})
	o.speak(speechText(cmd, res))
	o.scheduleAutoClose()
}

// fail closes the session with a spoken, typed error.
func (o *Orchestrator) fail(gen uint64, kind ErrKind) {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	o.state = StateClosed
	o.mu.Unlock()

	o.emit(Event{Type: "error", ErrorKind: kind, Message: MessageFor(kind), State: StateClosed})
	o.speak(MessageFor(kind))
}

func (o *Orchestrator) record(ctx context.Context, cmd *command.Interpreted, res command.Result) {
	if o.cfg.History == nil {
		return
	}
	rec := store.CommandRecord{
		ID:            uuid.NewString(),
		UserID:        o.cfg.UserID,
		Intent:        string(cmd.Intent),
		Transcript:    cmd.OriginalText,
		Confidence:    cmd.Confidence,
		Success:       res.Success,
		ErrorKind:     string(res.Kind),
		SideEffectRef: res.SideEffectRef,
		CreatedAt:     time.Now(),
	}
	if err := o.cfg.History.RecordCommand(ctx, rec); err != nil {
		slog.Warn("command history write failed", "error", err)
	}
}

// speak synthesizes feedback best-effort and forwards audio to the client.
func (o *Orchestrator) speak(text string) {
	if o.cfg.Feedback == nil || text == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	o.cfg.Feedback.Speak(ctx, text, func(audio []byte) {
		o.emit(Event{Type: "speech_audio", Audio: audio})
	})
}

func (o *Orchestrator) scheduleAutoClose() {
	o.mu.Lock()
	o.cancelAutoCloseLocked()
	o.autoClose = feedback.ScheduleAutoClose(o.cfg.AutoCloseDelay, func() {
		o.emit(Event{Type: "status", State: StateClosed})
	})
	o.mu.Unlock()
}

func (o *Orchestrator) cancelAutoCloseLocked() {
	if o.autoClose != nil {
		o.autoClose.Cancel()
		o.autoClose = nil
	}
}

func (o *Orchestrator) emit(ev Event) {
	o.cfg.OnEvent(ev)
}

// speechText picks what gets spoken for a successful result: the processor's
// conversational reply when present, otherwise the router's message.
func speechText(cmd *command.Interpreted, res command.Result) string {
	if cmd.Response != "" {
		return cmd.Response
	}
	return res.Message
}

func spanStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

func startErrKind(err error) ErrKind {
	switch {
	case errors.Is(err, capture.ErrNotSupported):
		return ErrKindCaptureUnsupported
	case errors.Is(err, capture.ErrPermissionDenied):
		return ErrKindCapturePermissionDenied
	case errors.Is(err, capture.ErrSessionActive):
		return ErrKindSessionBusy
	default:
		return ErrKindCaptureFailed
	}
}

func captureErrKind(kind capture.ErrorKind) ErrKind {
	switch kind {
	case capture.ErrKindPermissionDenied:
		return ErrKindCapturePermissionDenied
	case capture.ErrKindNoSpeech:
		return ErrKindCaptureNoSpeech
	case capture.ErrKindNotSupported:
		return ErrKindCaptureUnsupported
	default:
		return ErrKindCaptureFailed
	}
}

func resultErrKind(kind command.ErrorKind) ErrKind {
	switch kind {
	case command.ErrKindMissingField:
		return ErrKindMissingField
	case command.ErrKindUnknownDestination:
		return ErrKindUnknownDestination
	case command.ErrKindStoreFailure:
		return ErrKindStoreFailure
	default:
		return ErrKindStoreFailure
	}
}
