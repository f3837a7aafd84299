package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecognizer scripts the platform recognizer for engine tests. A non-nil
// startGate makes Start block, standing in for the permission prompt.
type fakeRecognizer struct {
	supported bool
	startErr  error
	startGate chan struct{}
	events    chan Event
	stopped   bool
	aborted   bool
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{supported: true, events: make(chan Event, 16)}
}

func (f *fakeRecognizer) IsSupported() bool { return f.supported }

func (f *fakeRecognizer) Start(_ context.Context, _ Config) error {
	if f.startGate != nil {
		<-f.startGate
	}
	return f.startErr
}

func (f *fakeRecognizer) Stop()  { f.stopped = true }
func (f *fakeRecognizer) Abort() { f.aborted = true }

func (f *fakeRecognizer) Events() <-chan Event { return f.events }

func waitEvent(t *testing.T, ch <-chan Event, want EventType) Event {
	t.Helper()
	select {
	case ev := <-ch:
		if ev.Type != want {
			t.Fatalf("got event %q, want %q", ev.Type, want)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %q event", want)
		return Event{}
	}
}

func TestEngineStartRejectsUnsupported(t *testing.T) {
	rec := newFakeRecognizer()
	rec.supported = false
	e := NewEngine(rec)

	err := e.Start(context.Background(), Config{})
	require.ErrorIs(t, err, ErrNotSupported)
	assert.Equal(t, StatusIdle, e.Status())
	assert.Equal(t, ErrKindNotSupported, e.Session().ErrorKind)
}

func TestEngineStartPermissionDenied(t *testing.T) {
	rec := newFakeRecognizer()
	rec.startErr = ErrPermissionDenied
	e := NewEngine(rec)

	err := e.Start(context.Background(), Config{})
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StatusIdle, e.Status(), "engine never stuck in listening after a failed start")
}

func TestEngineStartRejectsConcurrentSession(t *testing.T) {
	rec := newFakeRecognizer()
	e := NewEngine(rec)

	require.NoError(t, e.Start(context.Background(), Config{}))
	assert.Equal(t, StatusListening, e.Status())

	err := e.Start(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestEngineForwardsEventsInOrder(t *testing.T) {
	rec := newFakeRecognizer()
	e := NewEngine(rec)
	require.NoError(t, e.Start(context.Background(), Config{}))

	rec.events <- Event{Type: EventInterim, Text: "buy"}
	rec.events <- Event{Type: EventInterim, Text: "buy milk"}
	rec.events <- Event{Type: EventFinal, Text: "buy milk"}
	rec.events <- Event{Type: EventEnded}

	waitEvent(t, e.Events(), EventInterim)
	waitEvent(t, e.Events(), EventInterim)
	fin := waitEvent(t, e.Events(), EventFinal)
	assert.Equal(t, "buy milk", fin.Text)
	waitEvent(t, e.Events(), EventEnded)

	assert.Eventually(t, func() bool { return e.Status() == StatusIdle }, time.Second, 5*time.Millisecond)
}

func TestEngineAbortSuppressesInFlightFinal(t *testing.T) {
	rec := newFakeRecognizer()
	e := NewEngine(rec)
	require.NoError(t, e.Start(context.Background(), Config{}))

	e.Abort()
	assert.True(t, rec.aborted)
	assert.Equal(t, StatusIdle, e.Status())

	// A final that was already in flight when the abort landed must be
	// dropped, not delivered.
	rec.events <- Event{Type: EventFinal, Text: "stale result"}

	select {
	case ev := <-e.Events():
		t.Fatalf("unexpected event after abort: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngineRestartAfterAbortDeliversEvents(t *testing.T) {
	rec := newFakeRecognizer()
	e := NewEngine(rec)

	// Abort with no event in flight leaves the old session's forwarder
	// parked; it must not consume the new session's first event.
	require.NoError(t, e.Start(context.Background(), Config{}))
	e.Abort()

	require.NoError(t, e.Start(context.Background(), Config{}))
	rec.events <- Event{Type: EventFinal, Text: "add a task"}

	ev := waitEvent(t, e.Events(), EventFinal)
	assert.Equal(t, "add a task", ev.Text)
}

func TestEngineAbortDuringPermissionPrompt(t *testing.T) {
	rec := newFakeRecognizer()
	rec.startGate = make(chan struct{})
	e := NewEngine(rec)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(context.Background(), Config{}) }()

	require.Eventually(t, func() bool {
		return e.Status() == StatusRequestingPermission
	}, time.Second, time.Millisecond)

	e.Abort()
	close(rec.startGate)

	require.ErrorIs(t, <-errCh, ErrAborted)
	assert.Equal(t, StatusIdle, e.Status())
}

func TestEngineRestartAfterSessionEnds(t *testing.T) {
	rec := newFakeRecognizer()
	e := NewEngine(rec)
	require.NoError(t, e.Start(context.Background(), Config{}))

	rec.events <- Event{Type: EventEnded}
	waitEvent(t, e.Events(), EventEnded)

	assert.Eventually(t, func() bool {
		return e.Start(context.Background(), Config{}) == nil
	}, time.Second, 5*time.Millisecond, "engine must return to idle and accept a new session")
}

func TestEngineErrorEventRecordsKind(t *testing.T) {
	rec := newFakeRecognizer()
	e := NewEngine(rec)
	require.NoError(t, e.Start(context.Background(), Config{}))

	rec.events <- Event{Type: EventError, Kind: ErrKindNoSpeech}
	ev := waitEvent(t, e.Events(), EventError)
	assert.Equal(t, ErrKindNoSpeech, ev.Kind)
	assert.Eventually(t, func() bool { return e.Status() == StatusIdle }, time.Second, 5*time.Millisecond)
}

func TestEngineStopOnlyWhileActive(t *testing.T) {
	rec := newFakeRecognizer()
	e := NewEngine(rec)

	e.Stop()
	assert.False(t, rec.stopped, "stop is a no-op at idle")

	require.NoError(t, e.Start(context.Background(), Config{}))
	e.Stop()
	assert.True(t, rec.stopped)
}
