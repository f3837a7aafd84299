package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sera-labs/voicekit/internal/metrics"
)

// Status is the lifecycle state of a capture session.
type Status string

const (
	StatusIdle                 Status = "idle"
	StatusRequestingPermission Status = "requesting_permission"
	StatusListening            Status = "listening"
	StatusProcessing           Status = "processing"
	StatusError                Status = "error"
)

// Session is a snapshot of the current capture session.
type Session struct {
	Status      Status
	InterimText string
	FinalText   string
	AudioLevel  float64
	ErrorKind   ErrorKind
}

// Engine wraps a Recognizer behind a uniform start/stop/abort lifecycle and
// re-emits its events after state-machine bookkeeping. At most one session is
// listening at a time; Start is rejected until a previous session has
// returned to idle. Abort is valid from any non-idle state and suppresses any
// in-flight final result.
type Engine struct {
	rec Recognizer

	mu      sync.Mutex
	status  Status
	session Session
	gen     uint64
	cancel  chan struct{}

	events chan Event
}

// NewEngine creates an engine over the given recognizer adapter.
func NewEngine(rec Recognizer) *Engine {
	return &Engine{
		rec:    rec,
		status: StatusIdle,
		events: make(chan Event, 16),
	}
}

// IsSupported reports whether the platform recognizer capability is present.
func (e *Engine) IsSupported() bool {
	return e.rec.IsSupported()
}

// Events returns the engine's event stream. Events from a single session are
// delivered in capture order.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Status returns the current lifecycle state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Session returns a snapshot of the current session.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Start begins a capture session. It blocks while microphone permission is
// acquired. Fails with ErrNotSupported, ErrPermissionDenied, ErrSessionActive,
// or ErrAborted (the caller cancelled during the permission prompt); on
// failure the engine is back at idle, never stuck in listening.
func (e *Engine) Start(ctx context.Context, cfg Config) error {
	e.mu.Lock()
	if e.status != StatusIdle {
		e.mu.Unlock()
		return ErrSessionActive
	}
	if !e.rec.IsSupported() {
		e.session = Session{Status: StatusIdle, ErrorKind: ErrKindNotSupported}
		e.mu.Unlock()
		metrics.Errors.WithLabelValues("capture", "not_supported").Inc()
		return ErrNotSupported
	}
	e.status = StatusRequestingPermission
	e.session = Session{Status: StatusRequestingPermission}
	gen := e.gen
	e.mu.Unlock()

	err := e.rec.Start(ctx, cfg)

	e.mu.Lock()
	if gen != e.gen {
		// Aborted while the permission prompt was pending.
		e.mu.Unlock()
		return ErrAborted
	}
	if err != nil {
		e.status = StatusIdle
		kind := classifyStartError(err)
		e.session = Session{Status: StatusIdle, ErrorKind: kind}
		e.mu.Unlock()
		metrics.Errors.WithLabelValues("capture", string(kind)).Inc()
		if errors.Is(err, ErrPermissionDenied) {
			return ErrPermissionDenied
		}
		if errors.Is(err, ErrNotSupported) {
			return ErrNotSupported
		}
		return err
	}
	e.status = StatusListening
	e.session = Session{Status: StatusListening}
	cancel := make(chan struct{})
	e.cancel = cancel
	e.mu.Unlock()

	metrics.SessionsTotal.Inc()
	metrics.SessionsActive.Inc()
	go e.forward(gen, cancel)
	return nil
}

// Stop requests a graceful end of the session: the recognizer finalizes any
// pending speech and emits final then ended events.
func (e *Engine) Stop() {
	e.mu.Lock()
	active := e.status == StatusListening || e.status == StatusRequestingPermission
	e.mu.Unlock()
	if active {
		e.rec.Stop()
	}
}

// Abort hard-cancels the session from any non-idle state, discarding pending
// interim text. Any in-flight final result is suppressed.
func (e *Engine) Abort() {
	e.mu.Lock()
	if e.status == StatusIdle {
		e.mu.Unlock()
		return
	}
	e.gen++
	wasListening := e.status == StatusListening
	e.status = StatusIdle
	e.session = Session{Status: StatusIdle}
	if e.cancel != nil {
		close(e.cancel)
		e.cancel = nil
	}
	e.mu.Unlock()

	e.rec.Abort()
	if wasListening {
		metrics.SessionsActive.Dec()
	}
}

// forward pumps recognizer events to the engine channel until the session
// ends. Events from a superseded generation (aborted session) are dropped.
// cancel lets Abort retire the forwarder even while it is parked waiting for
// a recognizer event, so it never consumes the next session's events.
func (e *Engine) forward(gen uint64, cancel <-chan struct{}) {
	for {
		var ev Event
		select {
		case <-cancel:
			return
		case next, ok := <-e.rec.Events():
			if !ok {
				e.teardown(gen)
				return
			}
			ev = next
		}

		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return
		}
		done := e.applyLocked(ev)
		e.mu.Unlock()

		e.emit(ev)
		if done {
			metrics.SessionsActive.Dec()
			return
		}
	}
}

// teardown handles the recognizer closing its event channel without a
// terminal event.
func (e *Engine) teardown(gen uint64) {
	e.mu.Lock()
	if gen == e.gen && e.status != StatusIdle {
		e.gen++
		e.status = StatusIdle
		e.session = Session{Status: StatusIdle}
		e.cancel = nil
		e.mu.Unlock()
		e.emit(Event{Type: EventEnded})
		metrics.SessionsActive.Dec()
		return
	}
	e.mu.Unlock()
}

// applyLocked updates session state for one event and reports whether the
// session reached a terminal state.
func (e *Engine) applyLocked(ev Event) bool {
	switch ev.Type {
	case EventInterim:
		e.session.InterimText = ev.Text
	case EventFinal:
		e.session.FinalText = ev.Text
		e.session.InterimText = ""
	case EventEnded:
		e.gen++
		e.status = StatusIdle
		e.session.Status = StatusIdle
		e.cancel = nil
		return true
	case EventError:
		e.gen++
		e.status = StatusIdle
		e.session.Status = StatusIdle
		e.session.ErrorKind = ev.Kind
		e.cancel = nil
		metrics.Errors.WithLabelValues("capture", string(ev.Kind)).Inc()
		return true
	}
	return false
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		slog.Warn("capture event dropped, consumer too slow", "type", ev.Type)
	}
}

func classifyStartError(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return ErrKindPermissionDenied
	case errors.Is(err, ErrNotSupported):
		return ErrKindNotSupported
	default:
		return ErrKindUnknown
	}
}
