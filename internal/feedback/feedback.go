// Package feedback speaks confirmation messages and manages auto-dismiss
// timers for transient voice-capture UI.
package feedback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sera-labs/voicekit/internal/metrics"
)

// DefaultAutoCloseDelay is how long a successful auto-executed command stays
// on screen before the transient surface dismisses itself.
const DefaultAutoCloseDelay = 2000 * time.Millisecond

// Synthesizer provides best-effort spoken feedback. A nil speaker means the
// platform has no speech-synthesis capability; Speak becomes a no-op, never
// an error.
type Synthesizer struct {
	speaker Speaker
}

// NewSynthesizer creates a synthesizer over the given speaker, which may be
// nil when no TTS backend is configured.
func NewSynthesizer(speaker Speaker) *Synthesizer {
	return &Synthesizer{speaker: speaker}
}

// Available reports whether spoken feedback is possible.
func (s *Synthesizer) Available() bool {
	return s != nil && s.speaker != nil
}

// Speak synthesizes text and hands the audio to deliver. Best-effort: all
// failures are logged and swallowed, and deliver is only called on success.
func (s *Synthesizer) Speak(ctx context.Context, text string, deliver func(audio []byte)) {
	if !s.Available() || text == "" {
		return
	}

	start := time.Now()
	audio, err := s.speaker.Synthesize(ctx, text)
	if err != nil {
		slog.Warn("speech synthesis failed", "error", err)
		metrics.Errors.WithLabelValues("speak", "synth").Inc()
		return
	}
	metrics.StageDuration.WithLabelValues("speak").Observe(time.Since(start).Seconds())

	if deliver != nil {
		deliver(audio)
	}
}

// Timer is a cancellable auto-close timer. Cancelling an already-fired timer
// is a no-op.
type Timer struct {
	mu    sync.Mutex
	t     *time.Timer
	fired bool
}

// ScheduleAutoClose runs onClose after d unless cancelled first.
func ScheduleAutoClose(d time.Duration, onClose func()) *Timer {
	timer := &Timer{}
	timer.t = time.AfterFunc(d, func() {
		timer.mu.Lock()
		timer.fired = true
		timer.mu.Unlock()
		onClose()
	})
	return timer
}

// Cancel stops the timer if it has not fired yet.
func (t *Timer) Cancel() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.fired {
		t.t.Stop()
	}
}
