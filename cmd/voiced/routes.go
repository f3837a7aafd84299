package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sera-labs/voicekit/internal/capture"
	"github.com/sera-labs/voicekit/internal/command"
	"github.com/sera-labs/voicekit/internal/interpret"
	"github.com/sera-labs/voicekit/internal/store"
	"github.com/sera-labs/voicekit/internal/trace"
)

const (
	// defaultListLimit is how many records list endpoints return when the
	// caller omits the ?limit= query parameter.
	defaultListLimit = 50

	// defaultTraceSessionLimit is how many trace sessions are returned when
	// the caller omits the ?limit= query parameter.
	defaultTraceSessionLimit = 20
)

type deps struct {
	cfg         config
	db          *store.SQLite
	interpreter *interpret.Interpreter
	router      *command.Router
	traceStore  *trace.Store
	wsHandler   http.Handler
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("/ws/voice", d.wsHandler)
	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/capture/text", d.handleText)
	mux.HandleFunc("GET /api/tasks", d.handleTasks)
	mux.HandleFunc("GET /api/notes", d.handleNotes)
	mux.HandleFunc("GET /api/events", d.handleEvents)
	mux.HandleFunc("GET /api/search", d.handleSearch)
	mux.HandleFunc("GET /api/history", d.handleHistory)
	registerTraceRoutes(mux, d.traceStore)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleText runs the typed-command path: interpretation and the same
// confidence gate as a spoken utterance, without a capture session.
func (d deps) handleText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string `json:"text"`
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		http.Error(w, "text required", http.StatusBadRequest)
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = d.cfg.userID
	}

	cmd, err := d.interpreter.Interpret(r.Context(), capture.Utterance{Text: req.Text, CapturedAt: time.Now()})
	if err != nil {
		slog.Error("interpret text command", "error", err)
		http.Error(w, "command processor unavailable", http.StatusBadGateway)
		return
	}

	resp := map[string]any{
		"command":       cmd,
		"auto_executed": false,
	}
	if cmd.Confidence >= d.cfg.autoExecuteThreshold {
		res := d.router.Execute(r.Context(), userID, *cmd)
		d.recordCommand(r, userID, cmd, res)
		resp["result"] = res
		resp["auto_executed"] = true
	}
	writeJSON(w, resp)
}

func (d deps) recordCommand(r *http.Request, userID string, cmd *command.Interpreted, res command.Result) {
	rec := store.CommandRecord{
		ID:            uuid.NewString(),
		UserID:        userID,
		Intent:        string(cmd.Intent),
		Transcript:    cmd.OriginalText,
		Confidence:    cmd.Confidence,
		Success:       res.Success,
		ErrorKind:     string(res.Kind),
		SideEffectRef: res.SideEffectRef,
		CreatedAt:     time.Now(),
	}
	if err := d.db.RecordCommand(r.Context(), rec); err != nil {
		slog.Warn("command history write failed", "error", err)
	}
}

func (d deps) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := d.db.ListTasks(r.Context(), d.userID(r), queryInt(r, "limit", defaultListLimit))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"tasks": tasks})
}

func (d deps) handleNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := d.db.ListNotes(r.Context(), d.userID(r), queryInt(r, "limit", defaultListLimit))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"notes": notes})
}

func (d deps) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := d.db.ListEvents(r.Context(), d.userID(r), queryInt(r, "limit", defaultListLimit))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"events": events})
}

func (d deps) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		http.Error(w, "q required", http.StatusBadRequest)
		return
	}
	hits, err := d.db.Search(r.Context(), d.userID(r), command.SearchPayload{
		Query: q,
		Scope: r.URL.Query().Get("scope"),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"hits": hits})
}

func (d deps) handleHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := d.db.ListCommandHistory(r.Context(), d.userID(r), queryInt(r, "limit", defaultListLimit))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"history": recs})
}

func (d deps) userID(r *http.Request) string {
	if id := r.URL.Query().Get("user_id"); id != "" {
		return id
	}
	return d.cfg.userID
}

func registerTraceRoutes(mux *http.ServeMux, ts *trace.Store) {
	mux.HandleFunc("GET /api/traces/sessions", func(w http.ResponseWriter, r *http.Request) {
		if ts == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		limit := queryInt(r, "limit", defaultTraceSessionLimit)
		offset := queryInt(r, "offset", 0)
		sessions, total, err := ts.ListSessions(limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"sessions": sessions, "total": total})
	})

	mux.HandleFunc("GET /api/traces/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if ts == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		sess, runs, err := ts.GetSession(r.PathValue("id"))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"session": sess, "runs": runs})
	})

	mux.HandleFunc("GET /api/traces/sessions/{id}/runs/{runId}", func(w http.ResponseWriter, r *http.Request) {
		if ts == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		run, spans, err := ts.GetRun(r.PathValue("id"), r.PathValue("runId"))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"run": run, "spans": spans})
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
