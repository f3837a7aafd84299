package capture

import (
	"strings"
	"sync"
	"time"

	"github.com/sera-labs/voicekit/internal/metrics"
)

// AggregatorConfig controls utterance finalization.
type AggregatorConfig struct {
	// SilenceTimeout finalizes the current utterance when no interim update
	// arrives within it while listening.
	SilenceTimeout time.Duration
}

// DefaultAggregatorConfig returns defaults tuned for short spoken commands.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{SilenceTimeout: 1500 * time.Millisecond}
}

// Aggregator consumes capture events and produces discrete Utterances.
// OnUtterance fires exactly once per natural pause; OnInterim fires on every
// interim update for live UI echo. If no interim update arrives within the
// silence timeout, a stop is synthesized as though a final result arrived
// with the last known interim text. Empty and whitespace-only finals are
// discarded, and a session aborted before any final emits nothing.
type Aggregator struct {
	cfg AggregatorConfig

	// OnInterim receives every interim transcript update.
	OnInterim func(text string)
	// OnUtterance receives each finalized utterance.
	OnUtterance func(u Utterance)
	// OnAutoStop fires when the silence timeout ends the utterance, so the
	// owner can stop the capture session.
	OnAutoStop func()

	mu          sync.Mutex
	timer       *time.Timer
	lastInterim string
	active      bool
	now         func() time.Time
}

// NewAggregator creates an aggregator with the given config.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = DefaultAggregatorConfig().SilenceTimeout
	}
	return &Aggregator{cfg: cfg, now: time.Now}
}

// Feed consumes one capture event.
func (a *Aggregator) Feed(ev Event) {
	a.mu.Lock()
	switch ev.Type {
	case EventStarted:
		a.active = true
		a.lastInterim = ""
		a.armLocked()
		a.mu.Unlock()

	case EventInterim:
		a.active = true
		a.lastInterim = ev.Text
		a.armLocked()
		onInterim := a.OnInterim
		a.mu.Unlock()
		if onInterim != nil {
			onInterim(ev.Text)
		}

	case EventFinal:
		if !a.active {
			// Already finalized by the silence timeout; this is the
			// recognizer catching up after the synthesized stop.
			a.mu.Unlock()
			return
		}
		a.disarmLocked()
		a.active = false
		a.lastInterim = ""
		a.emitLocked(ev.Text)

	case EventEnded, EventError:
		// Manual stop delivers its final before ended; an abort before any
		// final must not emit.
		a.disarmLocked()
		a.active = false
		a.lastInterim = ""
		a.mu.Unlock()

	default:
		a.mu.Unlock()
	}
}

// Reset cancels the silence timer and drops pending interim text without
// emitting. Used on session teardown.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.disarmLocked()
	a.active = false
	a.lastInterim = ""
	a.mu.Unlock()
}

func (a *Aggregator) armLocked() {
	a.disarmLocked()
	a.timer = time.AfterFunc(a.cfg.SilenceTimeout, a.silenceExpired)
}

func (a *Aggregator) disarmLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// silenceExpired synthesizes a final result from the last interim text.
func (a *Aggregator) silenceExpired() {
	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return
	}
	a.active = false
	a.timer = nil
	text := a.lastInterim
	a.lastInterim = ""
	metrics.SilenceAutoStops.Inc()
	onAutoStop := a.OnAutoStop
	a.emitLocked(text)

	if onAutoStop != nil {
		onAutoStop()
	}
}

// emitLocked trims and delivers the utterance, releasing the lock before the
// callback runs. Blank text is silently discarded.
func (a *Aggregator) emitLocked(text string) {
	text = strings.TrimSpace(text)
	onUtterance := a.OnUtterance
	capturedAt := a.now()
	a.mu.Unlock()

	if text == "" {
		metrics.TranscriptsDiscarded.Inc()
		return
	}
	metrics.UtterancesTotal.Inc()
	if onUtterance != nil {
		onUtterance(Utterance{Text: text, CapturedAt: capturedAt})
	}
}
