package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sera-labs/voicekit/internal/capture"
)

// startTimeout bounds how long a start waits for the client's permission
// prompt before giving up.
const startTimeout = 30 * time.Second

// controlFrame is a recognizer control message sent to the client.
type controlFrame struct {
	Type           string `json:"type"`
	Continuous     bool   `json:"continuous,omitempty"`
	Language       string `json:"language,omitempty"`
	InterimResults bool   `json:"interim_results,omitempty"`
}

// recognizer adapts the client's platform speech recognizer over the
// WebSocket: control frames go out, recognition events come back in via
// deliver. It implements capture.Recognizer.
type recognizer struct {
	supported bool
	send      func(controlFrame) error

	mu     sync.Mutex
	ack    chan capture.Event
	events chan capture.Event
	closed bool
}

func newRecognizer(supported bool, send func(controlFrame) error) *recognizer {
	return &recognizer{
		supported: supported,
		send:      send,
		events:    make(chan capture.Event, 16),
	}
}

func (r *recognizer) IsSupported() bool {
	return r.supported
}

// Start asks the client to begin recognition and blocks until the client
// acknowledges with a started event or reports an error. The started ack
// arrives only after microphone permission has been granted.
func (r *recognizer) Start(ctx context.Context, cfg capture.Config) error {
	r.mu.Lock()
	ack := make(chan capture.Event, 1)
	r.ack = ack
	r.mu.Unlock()

	err := r.send(controlFrame{
		Type:           "rec_start",
		Continuous:     cfg.Continuous,
		Language:       cfg.Language,
		InterimResults: cfg.InterimResults,
	})
	if err != nil {
		r.clearAck()
		return fmt.Errorf("send rec_start: %w", err)
	}

	select {
	case ev := <-ack:
		r.clearAck()
		if ev.Type == capture.EventError {
			return startError(ev)
		}
		return nil
	case <-ctx.Done():
		r.clearAck()
		return ctx.Err()
	case <-time.After(startTimeout):
		r.clearAck()
		return errors.New("recognizer start timed out")
	}
}

func (r *recognizer) Stop() {
	if err := r.send(controlFrame{Type: "rec_stop"}); err != nil {
		slog.Debug("send rec_stop", "error", err)
	}
}

func (r *recognizer) Abort() {
	if err := r.send(controlFrame{Type: "rec_abort"}); err != nil {
		slog.Debug("send rec_abort", "error", err)
	}
}

func (r *recognizer) Events() <-chan capture.Event {
	return r.events
}

// deliver routes one recognition event from the client. A pending start sees
// the started (or error) event as its ack; everything flows to the event
// channel for the capture engine.
func (r *recognizer) deliver(ev capture.Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.ack != nil && (ev.Type == capture.EventStarted || ev.Type == capture.EventError) {
		r.ack <- ev
		r.ack = nil
		if ev.Type == capture.EventError {
			// Start failed; nothing downstream is listening yet.
			r.mu.Unlock()
			return
		}
	}
	r.mu.Unlock()

	select {
	case r.events <- ev:
	default:
		slog.Warn("recognizer event dropped", "type", ev.Type)
	}
}

// close tears the adapter down on disconnect.
func (r *recognizer) close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.ack = nil
	r.mu.Unlock()
	close(r.events)
}

func (r *recognizer) clearAck() {
	r.mu.Lock()
	r.ack = nil
	r.mu.Unlock()
}

func startError(ev capture.Event) error {
	switch ev.Kind {
	case capture.ErrKindPermissionDenied:
		return capture.ErrPermissionDenied
	case capture.ErrKindNotSupported:
		return capture.ErrNotSupported
	default:
		return fmt.Errorf("recognizer start failed: %s", ev.Code)
	}
}
