// Package capture manages the lifecycle of a platform speech recognizer and
// turns its raw event stream into discrete utterances ready for interpretation.
package capture

import (
	"context"
	"errors"
	"time"
)

// EventType identifies a recognizer event.
type EventType string

const (
	EventStarted EventType = "started"
	EventInterim EventType = "interim"
	EventFinal   EventType = "final"
	EventEnded   EventType = "ended"
	EventError   EventType = "error"
)

// ErrorKind classifies recognizer failures.
type ErrorKind string

const (
	ErrKindPermissionDenied ErrorKind = "permission_denied"
	ErrKindNoSpeech         ErrorKind = "no_speech"
	ErrKindAborted          ErrorKind = "aborted"
	ErrKindNotSupported     ErrorKind = "not_supported"
	ErrKindUnknown          ErrorKind = "unknown"
)

// Event is one recognizer occurrence. Text is set for interim/final events,
// Kind for error events. Code carries the raw platform error code when the
// kind is unknown.
type Event struct {
	Type EventType
	Text string
	Kind ErrorKind
	Code string
}

// Config controls recognizer behavior for one capture session.
type Config struct {
	// Continuous keeps the recognizer listening after a final result.
	Continuous bool
	// Language is a BCP-47 locale tag, e.g. "en-US".
	Language string
	// InterimResults requests partial transcripts while speech is in progress.
	InterimResults bool
}

// Recognizer adapts a platform speech-recognition capability. Start blocks
// until microphone permission has been acquired and recognition is running,
// or fails. Implementations deliver events on the Events channel in capture
// order; the channel is closed when the adapter is torn down.
type Recognizer interface {
	IsSupported() bool
	Start(ctx context.Context, cfg Config) error
	Stop()
	Abort()
	Events() <-chan Event
}

// Sentinel errors returned by Engine.Start.
var (
	ErrNotSupported     = errors.New("speech recognition not supported")
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrSessionActive    = errors.New("capture session already active")
	ErrAborted          = errors.New("capture session aborted")
)

// Utterance is one finalized span of recognized speech.
type Utterance struct {
	Text       string
	CapturedAt time.Time
}
