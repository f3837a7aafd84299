// Package ws serves the voice session WebSocket: recognition events stream
// in from the client, orchestrator events and feedback audio stream out.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sera-labs/voicekit/internal/capture"
	"github.com/sera-labs/voicekit/internal/command"
	"github.com/sera-labs/voicekit/internal/feedback"
	"github.com/sera-labs/voicekit/internal/interpret"
	"github.com/sera-labs/voicekit/internal/orchestrator"
	"github.com/sera-labs/voicekit/internal/trace"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandlerConfig holds the shared collaborators for all voice sessions.
type HandlerConfig struct {
	Interpreter *interpret.Interpreter
	Router      *command.Router
	Feedback    *feedback.Synthesizer
	History     orchestrator.History
	TraceStore  *trace.Store

	AutoExecuteThreshold float64
	SilenceTimeout       time.Duration
	AutoCloseDelay       time.Duration
	MaxConcurrent        int
}

// Handler manages WebSocket voice sessions with admission control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
}

// NewHandler creates a WebSocket handler with shared collaborators and a
// concurrency limit.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 100
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, maxConc),
	}
}

// sessionMetadata is the first text frame sent by the client.
type sessionMetadata struct {
	UserID          string `json:"user_id"`
	Language        string `json:"language"`
	SpeechSupported bool   `json:"speech_supported"`
}

// clientMessage is any subsequent text frame from the client: UI commands
// and recognition events share one envelope.
type clientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Kind string `json:"kind,omitempty"`
	Code string `json:"code,omitempty"`
}

// ServeHTTP upgrades the connection and runs the voice session.
// Returns 503 at max concurrent session capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.runSession(conn)
}

func (h *Handler) runSession(conn *websocket.Conn) {
	meta, err := readMetadata(conn)
	if err != nil {
		slog.Error("read metadata", "error", err)
		return
	}
	if meta.UserID == "" {
		meta.UserID = "local"
	}
	if meta.Language == "" {
		meta.Language = "en-US"
	}

	sessionID := uuid.NewString()
	slog.Info("voice session started", "session_id", sessionID, "user_id", meta.UserID, "speech_supported", meta.SpeechSupported)

	var tracer *trace.Tracer
	if h.cfg.TraceStore != nil {
		metaJSON, _ := json.Marshal(meta)
		if err = h.cfg.TraceStore.CreateSession(sessionID, string(metaJSON)); err != nil {
			slog.Warn("trace session create failed", "error", err)
		} else {
			tracer = trace.NewTracer(h.cfg.TraceStore, sessionID)
			defer func() {
				tracer.Close()
				if endErr := h.cfg.TraceStore.EndSession(sessionID); endErr != nil {
					slog.Warn("trace session end failed", "error", endErr)
				}
			}()
		}
	}

	send := newEventSender(conn)
	rec := newRecognizer(meta.SpeechSupported, func(f controlFrame) error {
		return send.sendJSON(f)
	})

	orch := orchestrator.New(orchestrator.Config{
		Recognizer:           rec,
		Interpreter:          h.cfg.Interpreter,
		Router:               h.cfg.Router,
		Feedback:             h.cfg.Feedback,
		History:              h.cfg.History,
		Tracer:               tracer,
		UserID:               meta.UserID,
		AutoExecuteThreshold: h.cfg.AutoExecuteThreshold,
		SilenceTimeout:       h.cfg.SilenceTimeout,
		AutoCloseDelay:       h.cfg.AutoCloseDelay,
		Language:             meta.Language,
		OnEvent:              send.sendEvent,
	})
	defer orch.Close()
	defer rec.close()

	h.readLoop(conn, orch, rec)
	slog.Info("voice session ended", "session_id", sessionID)
}

// readLoop dispatches client frames until disconnect. Blocking session
// operations run on their own goroutines so recognition events keep flowing.
func (h *Handler) readLoop(conn *websocket.Conn, orch *orchestrator.Orchestrator, rec *recognizer) {
	ctx := context.Background()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			slog.Info("connection closed", "error", err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg clientMessage
		if err = json.Unmarshal(data, &msg); err != nil {
			slog.Warn("bad client frame", "error", err)
			continue
		}

		switch msg.Type {
		case "start":
			go func() { logIgnoredErr(orch.StartListening(ctx)) }()
		case "stop":
			orch.StopListening()
		case "toggle":
			go func() { logIgnoredErr(orch.ToggleListening(ctx)) }()
		case "cancel":
			orch.Cancel()
		case "confirm":
			go func() { logIgnoredErr(orch.ExecuteCommand(ctx)) }()
		case "text":
			text := msg.Text
			go func() { logIgnoredErr(orch.ProcessText(ctx, text)) }()
		case "rec_started":
			rec.deliver(capture.Event{Type: capture.EventStarted})
		case "rec_interim":
			rec.deliver(capture.Event{Type: capture.EventInterim, Text: msg.Text})
		case "rec_final":
			rec.deliver(capture.Event{Type: capture.EventFinal, Text: msg.Text})
		case "rec_ended":
			rec.deliver(capture.Event{Type: capture.EventEnded})
		case "rec_error":
			rec.deliver(capture.Event{Type: capture.EventError, Kind: recErrorKind(msg.Kind), Code: msg.Code})
		default:
			slog.Warn("unknown client frame", "type", msg.Type)
		}
	}
}

// eventSender serializes concurrent writes to one connection. Audio goes out
// as a binary frame before the JSON event that references it.
type eventSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newEventSender(conn *websocket.Conn) *eventSender {
	return &eventSender{conn: conn}
}

func (s *eventSender) sendEvent(ev orchestrator.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Audio != nil {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, ev.Audio); err != nil {
			slog.Error("write audio", "error", err)
		}
	}

	jsonBytes, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err = s.conn.WriteMessage(websocket.TextMessage, jsonBytes); err != nil {
		slog.Error("write event", "error", err)
	}
}

func (s *eventSender) sendJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, jsonBytes)
}

func readMetadata(conn *websocket.Conn) (*sessionMetadata, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var meta sessionMetadata
	if err = json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// recErrorKind maps platform recognizer error codes to capture kinds.
func recErrorKind(kind string) capture.ErrorKind {
	switch kind {
	case "not-allowed", "service-not-allowed", "permission_denied":
		return capture.ErrKindPermissionDenied
	case "no-speech", "no_speech":
		return capture.ErrKindNoSpeech
	case "aborted":
		return capture.ErrKindAborted
	case "not_supported":
		return capture.ErrKindNotSupported
	default:
		return capture.ErrKindUnknown
	}
}

func logIgnoredErr(err error) {
	if err != nil {
		slog.Debug("session op", "error", err)
	}
}
